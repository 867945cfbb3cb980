package types

import "github.com/gagliardetto/solana-go"

// RewardDistributionEvent records a referral-style reward payout. The
// referral chain (upper ↔ upper_upper) is modeled as optional foreign
// public keys, never as embedded pointers (spec §9 "Cyclic references").
// This package stores the two links as given and does not traverse the
// chain. Natural key: (user, signature).
type RewardDistributionEvent struct {
	EventMeta

	ProgramID ProgramID
	User      solana.PublicKey
	Amount    uint64
	Mint      solana.PublicKey

	// Upper is the direct referrer, if any. UpperUpper is the referrer's
	// own referrer. Both are nil when the user has no upline.
	Upper      *solana.PublicKey
	UpperUpper *solana.PublicKey
}

func (e RewardDistributionEvent) EventType() string  { return "RewardDistributionEvent" }
func (e RewardDistributionEvent) Meta() EventMeta    { return e.EventMeta }
func (e RewardDistributionEvent) Collection() string { return "RewardDistributionEvents" }
func (e RewardDistributionEvent) NaturalKey() map[string]interface{} {
	return map[string]interface{}{
		"user":      e.User.String(),
		"signature": e.Signature.String(),
	}
}
func (e RewardDistributionEvent) SourceProgramID() string { return e.ProgramID.String() }
func (e RewardDistributionEvent) Document() map[string]interface{} {
	d := e.metaFields()
	d["program_id"] = e.ProgramID.String()
	d["user"] = e.User.String()
	d["amount"] = e.Amount
	d["mint"] = e.Mint.String()
	if e.Upper != nil {
		d["upper"] = e.Upper.String()
	}
	if e.UpperUpper != nil {
		d["upper_upper"] = e.UpperUpper.String()
	}
	return d
}
