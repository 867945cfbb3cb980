package types

import "github.com/gagliardetto/solana-go"

// SwapDirection indicates which side of the pool was sold into.
type SwapDirection string

const (
	SwapAToB SwapDirection = "a_to_b"
	SwapBToA SwapDirection = "b_to_a"
)

// SwapEvent records a single swap against a tracked pool. Natural key:
// (pool_address, signature). A transaction can contain at most one swap
// log per pool for the decoders registered here.
type SwapEvent struct {
	EventMeta

	ProgramID   ProgramID
	PoolAddress solana.PublicKey
	Trader      solana.PublicKey
	Direction   SwapDirection
	AmountIn    uint64
	AmountOut   uint64
	FeeAmount   uint64

	// Optional symbol fields; the decoder and parser.Enrich leave them nil.
	MintInSymbol  *string
	MintOutSymbol *string
}

func (e SwapEvent) EventType() string  { return "SwapEvent" }
func (e SwapEvent) Meta() EventMeta    { return e.EventMeta }
func (e SwapEvent) Collection() string { return "SwapEvents" }
func (e SwapEvent) NaturalKey() map[string]interface{} {
	return map[string]interface{}{
		"pool_address": e.PoolAddress.String(),
		"signature":    e.Signature.String(),
	}
}
func (e SwapEvent) SourceProgramID() string { return e.ProgramID.String() }
func (e SwapEvent) Document() map[string]interface{} {
	d := e.metaFields()
	d["program_id"] = e.ProgramID.String()
	d["pool_address"] = e.PoolAddress.String()
	d["trader"] = e.Trader.String()
	d["direction"] = string(e.Direction)
	d["amount_in"] = e.AmountIn
	d["amount_out"] = e.AmountOut
	d["fee_amount"] = e.FeeAmount
	if e.MintInSymbol != nil {
		d["mint_in_symbol"] = *e.MintInSymbol
	}
	if e.MintOutSymbol != nil {
		d["mint_out_symbol"] = *e.MintOutSymbol
	}
	return d
}
