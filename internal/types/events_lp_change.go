package types

import "github.com/gagliardetto/solana-go"

// LpChangeKind distinguishes a deposit into, versus a withdrawal from, a
// liquidity position.
type LpChangeKind string

const (
	LpChangeDeposit  LpChangeKind = "deposit"
	LpChangeWithdraw LpChangeKind = "withdraw"
)

// LpChangeEvent records a liquidity-position mutation within a concentrated
// liquidity pool. Natural key: (pool_address, signature).
type LpChangeEvent struct {
	EventMeta

	ProgramID    ProgramID
	PoolAddress  solana.PublicKey
	Owner        solana.PublicKey
	Kind         LpChangeKind
	LiquidityDelta uint64
	TickLower    int32
	TickUpper    int32
	AmountA      uint64
	AmountB      uint64
}

func (e LpChangeEvent) EventType() string  { return "LpChangeEvent" }
func (e LpChangeEvent) Meta() EventMeta    { return e.EventMeta }
func (e LpChangeEvent) Collection() string { return "LpChangeEvents" }
func (e LpChangeEvent) NaturalKey() map[string]interface{} {
	return map[string]interface{}{
		"pool_address": e.PoolAddress.String(),
		"signature":    e.Signature.String(),
	}
}
func (e LpChangeEvent) SourceProgramID() string { return e.ProgramID.String() }
func (e LpChangeEvent) Document() map[string]interface{} {
	d := e.metaFields()
	d["program_id"] = e.ProgramID.String()
	d["pool_address"] = e.PoolAddress.String()
	d["owner"] = e.Owner.String()
	d["kind"] = string(e.Kind)
	d["liquidity_delta"] = e.LiquidityDelta
	d["tick_lower"] = e.TickLower
	d["tick_upper"] = e.TickUpper
	d["amount_a"] = e.AmountA
	d["amount_b"] = e.AmountB
	return d
}
