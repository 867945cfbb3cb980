package types

import "github.com/gagliardetto/solana-go"

// NftClaimEvent records a user claiming an NFT reward. Natural key:
// (user, signature).
type NftClaimEvent struct {
	EventMeta

	ProgramID ProgramID
	User      solana.PublicKey
	Mint      solana.PublicKey
	ClaimID   uint64
}

func (e NftClaimEvent) EventType() string  { return "NftClaimEvent" }
func (e NftClaimEvent) Meta() EventMeta    { return e.EventMeta }
func (e NftClaimEvent) Collection() string { return "NftClaimEvents" }
func (e NftClaimEvent) NaturalKey() map[string]interface{} {
	return map[string]interface{}{
		"user":      e.User.String(),
		"signature": e.Signature.String(),
	}
}
func (e NftClaimEvent) SourceProgramID() string { return e.ProgramID.String() }
func (e NftClaimEvent) Document() map[string]interface{} {
	d := e.metaFields()
	d["program_id"] = e.ProgramID.String()
	d["user"] = e.User.String()
	d["mint"] = e.Mint.String()
	d["claim_id"] = e.ClaimID
	return d
}
