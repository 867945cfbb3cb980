package types

import "github.com/gagliardetto/solana-go"

// LaunchEvent records a token launch (bonding-curve open) by a tracked
// program. Natural key: (mint, signature).
type LaunchEvent struct {
	EventMeta

	ProgramID    ProgramID
	Mint         solana.PublicKey
	Creator      solana.PublicKey
	TargetRaise  uint64
	CurveAddress solana.PublicKey
}

func (e LaunchEvent) EventType() string  { return "LaunchEvent" }
func (e LaunchEvent) Meta() EventMeta    { return e.EventMeta }
func (e LaunchEvent) Collection() string { return "LaunchEvents" }
func (e LaunchEvent) NaturalKey() map[string]interface{} {
	return map[string]interface{}{
		"mint":      e.Mint.String(),
		"signature": e.Signature.String(),
	}
}
func (e LaunchEvent) SourceProgramID() string { return e.ProgramID.String() }
func (e LaunchEvent) Document() map[string]interface{} {
	d := e.metaFields()
	d["program_id"] = e.ProgramID.String()
	d["mint"] = e.Mint.String()
	d["creator"] = e.Creator.String()
	d["target_raise"] = e.TargetRaise
	d["curve_address"] = e.CurveAddress.String()
	return d
}
