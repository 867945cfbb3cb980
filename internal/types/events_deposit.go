package types

import "github.com/gagliardetto/solana-go"

// DepositEvent records a user depositing into a pool or vault. Natural
// key: (user, signature).
type DepositEvent struct {
	EventMeta

	ProgramID ProgramID
	User      solana.PublicKey
	Vault     solana.PublicKey
	Mint      solana.PublicKey
	Amount    uint64
}

func (e DepositEvent) EventType() string  { return "DepositEvent" }
func (e DepositEvent) Meta() EventMeta    { return e.EventMeta }
func (e DepositEvent) Collection() string { return "DepositEvents" }
func (e DepositEvent) NaturalKey() map[string]interface{} {
	return map[string]interface{}{
		"user":      e.User.String(),
		"signature": e.Signature.String(),
	}
}
func (e DepositEvent) SourceProgramID() string { return e.ProgramID.String() }
func (e DepositEvent) Document() map[string]interface{} {
	d := e.metaFields()
	d["program_id"] = e.ProgramID.String()
	d["user"] = e.User.String()
	d["vault"] = e.Vault.String()
	d["mint"] = e.Mint.String()
	d["amount"] = e.Amount
	return d
}
