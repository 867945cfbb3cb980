package types

import "github.com/gagliardetto/solana-go"

// PoolCreationEvent records a new liquidity pool being initialized.
// Natural key: (pool_address, signature) — a pool is created exactly
// once, but dedup is keyed on the pair so replay during reconnect or
// backfill can never double-insert.
type PoolCreationEvent struct {
	EventMeta

	ProgramID  ProgramID
	PoolAddress solana.PublicKey
	MintA      solana.PublicKey
	MintB      solana.PublicKey
	TickSpacing uint16
	InitialSqrtPrice uint64
	Creator    solana.PublicKey
}

func (e PoolCreationEvent) EventType() string  { return "PoolCreationEvent" }
func (e PoolCreationEvent) Meta() EventMeta    { return e.EventMeta }
func (e PoolCreationEvent) Collection() string { return "PoolCreationEvents" }
func (e PoolCreationEvent) NaturalKey() map[string]interface{} {
	return map[string]interface{}{
		"pool_address": e.PoolAddress.String(),
		"signature":    e.Signature.String(),
	}
}
func (e PoolCreationEvent) SourceProgramID() string { return e.ProgramID.String() }
func (e PoolCreationEvent) Document() map[string]interface{} {
	d := e.metaFields()
	d["program_id"] = e.ProgramID.String()
	d["pool_address"] = e.PoolAddress.String()
	d["mint_a"] = e.MintA.String()
	d["mint_b"] = e.MintB.String()
	d["tick_spacing"] = e.TickSpacing
	d["initial_sqrt_price"] = e.InitialSqrtPrice
	d["creator"] = e.Creator.String()
	return d
}
