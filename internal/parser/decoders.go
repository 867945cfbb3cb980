package parser

import (
	"fmt"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"solana-event-core/internal/errs"
	"solana-event-core/internal/types"
)

func meta(sig solana.Signature, slot uint64) types.EventMeta {
	return types.EventMeta{Signature: sig, Slot: slot, ProcessedAt: time.Now().UTC()}
}

// --- TokenCreationEvent ------------------------------------------------

type tokenCreationLayout struct {
	ProgramID     solana.PublicKey
	Mint          solana.PublicKey
	Creator       solana.PublicKey
	Name          string
	Symbol        string
	Decimals      uint8
	URI           string
	InitialSupply uint64
}

// TokenCreationDecoder decodes TokenCreationEvent payloads.
type TokenCreationDecoder struct{}

func (TokenCreationDecoder) EventType() string { return "TokenCreationEvent" }

func (TokenCreationDecoder) Parse(payload []byte, sig solana.Signature, slot uint64) (types.DecodedEvent, error) {
	var l tokenCreationLayout
	if err := bin.NewBorshDecoder(payload).Decode(&l); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrShapeMismatch, err)
	}
	if l.Name == "" {
		return nil, fmt.Errorf("%w: name is empty", errs.ErrValidation)
	}
	if l.Decimals > 18 {
		return nil, fmt.Errorf("%w: decimals %d exceeds 18", errs.ErrValidation, l.Decimals)
	}
	if len(l.Symbol) == 0 || len(l.Symbol) > 10 {
		return nil, fmt.Errorf("%w: symbol %q has invalid length", errs.ErrValidation, l.Symbol)
	}
	return types.TokenCreationEvent{
		EventMeta:     meta(sig, slot),
		ProgramID:     l.ProgramID,
		Mint:          l.Mint,
		Creator:       l.Creator,
		Name:          l.Name,
		Symbol:        l.Symbol,
		Decimals:      l.Decimals,
		URI:           l.URI,
		InitialSupply: l.InitialSupply,
	}, nil
}

// --- PoolCreationEvent --------------------------------------------------

type poolCreationLayout struct {
	ProgramID        solana.PublicKey
	PoolAddress      solana.PublicKey
	MintA            solana.PublicKey
	MintB            solana.PublicKey
	TickSpacing      uint16
	InitialSqrtPrice uint64
	Creator          solana.PublicKey
}

// PoolCreationDecoder decodes PoolCreationEvent payloads.
type PoolCreationDecoder struct{}

func (PoolCreationDecoder) EventType() string { return "PoolCreationEvent" }

func (PoolCreationDecoder) Parse(payload []byte, sig solana.Signature, slot uint64) (types.DecodedEvent, error) {
	var l poolCreationLayout
	if err := bin.NewBorshDecoder(payload).Decode(&l); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrShapeMismatch, err)
	}
	if l.MintA.Equals(l.MintB) {
		return nil, fmt.Errorf("%w: pool mints must differ", errs.ErrValidation)
	}
	if l.InitialSqrtPrice == 0 {
		return nil, fmt.Errorf("%w: initial sqrt price cannot be zero", errs.ErrValidation)
	}
	return types.PoolCreationEvent{
		EventMeta:        meta(sig, slot),
		ProgramID:        l.ProgramID,
		PoolAddress:      l.PoolAddress,
		MintA:            l.MintA,
		MintB:            l.MintB,
		TickSpacing:      l.TickSpacing,
		InitialSqrtPrice: l.InitialSqrtPrice,
		Creator:          l.Creator,
	}, nil
}

// --- NftClaimEvent --------------------------------------------------------

type nftClaimLayout struct {
	ProgramID solana.PublicKey
	User      solana.PublicKey
	Mint      solana.PublicKey
	ClaimID   uint64
}

// NftClaimDecoder decodes NftClaimEvent payloads.
type NftClaimDecoder struct{}

func (NftClaimDecoder) EventType() string { return "NftClaimEvent" }

func (NftClaimDecoder) Parse(payload []byte, sig solana.Signature, slot uint64) (types.DecodedEvent, error) {
	var l nftClaimLayout
	if err := bin.NewBorshDecoder(payload).Decode(&l); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrShapeMismatch, err)
	}
	return types.NftClaimEvent{
		EventMeta: meta(sig, slot),
		ProgramID: l.ProgramID,
		User:      l.User,
		Mint:      l.Mint,
		ClaimID:   l.ClaimID,
	}, nil
}

// --- RewardDistributionEvent ---------------------------------------------

type rewardDistributionLayout struct {
	ProgramID      solana.PublicKey
	User           solana.PublicKey
	Amount         uint64
	Mint           solana.PublicKey
	HasUpper       bool
	Upper          solana.PublicKey
	HasUpperUpper  bool
	UpperUpper     solana.PublicKey
}

// RewardDistributionDecoder decodes RewardDistributionEvent payloads.
type RewardDistributionDecoder struct{}

func (RewardDistributionDecoder) EventType() string { return "RewardDistributionEvent" }

func (RewardDistributionDecoder) Parse(payload []byte, sig solana.Signature, slot uint64) (types.DecodedEvent, error) {
	var l rewardDistributionLayout
	if err := bin.NewBorshDecoder(payload).Decode(&l); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrShapeMismatch, err)
	}
	if l.Amount == 0 {
		return nil, fmt.Errorf("%w: reward amount cannot be zero", errs.ErrValidation)
	}

	ev := types.RewardDistributionEvent{
		EventMeta: meta(sig, slot),
		ProgramID: l.ProgramID,
		User:      l.User,
		Amount:    l.Amount,
		Mint:      l.Mint,
	}
	if l.HasUpper {
		u := l.Upper
		ev.Upper = &u
	}
	if l.HasUpperUpper {
		uu := l.UpperUpper
		ev.UpperUpper = &uu
	}
	return ev, nil
}

// --- LpChangeEvent --------------------------------------------------------

type lpChangeLayout struct {
	ProgramID      solana.PublicKey
	PoolAddress    solana.PublicKey
	Owner          solana.PublicKey
	Kind           uint8 // 0 = deposit, 1 = withdraw
	LiquidityDelta uint64
	TickLower      int32
	TickUpper      int32
	AmountA        uint64
	AmountB        uint64
}

// LpChangeDecoder decodes LpChangeEvent payloads.
type LpChangeDecoder struct{}

func (LpChangeDecoder) EventType() string { return "LpChangeEvent" }

func (LpChangeDecoder) Parse(payload []byte, sig solana.Signature, slot uint64) (types.DecodedEvent, error) {
	var l lpChangeLayout
	if err := bin.NewBorshDecoder(payload).Decode(&l); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrShapeMismatch, err)
	}
	if l.TickLower >= l.TickUpper {
		return nil, fmt.Errorf("%w: tick_lower must be < tick_upper", errs.ErrValidation)
	}

	kind := types.LpChangeDeposit
	switch l.Kind {
	case 0:
		kind = types.LpChangeDeposit
	case 1:
		kind = types.LpChangeWithdraw
	default:
		return nil, fmt.Errorf("%w: unrecognized lp change kind %d", errs.ErrValidation, l.Kind)
	}

	return types.LpChangeEvent{
		EventMeta:      meta(sig, slot),
		ProgramID:      l.ProgramID,
		PoolAddress:    l.PoolAddress,
		Owner:          l.Owner,
		Kind:           kind,
		LiquidityDelta: l.LiquidityDelta,
		TickLower:      l.TickLower,
		TickUpper:      l.TickUpper,
		AmountA:        l.AmountA,
		AmountB:        l.AmountB,
	}, nil
}

// --- DepositEvent ----------------------------------------------------------

type depositLayout struct {
	ProgramID solana.PublicKey
	User      solana.PublicKey
	Vault     solana.PublicKey
	Mint      solana.PublicKey
	Amount    uint64
}

// DepositDecoder decodes DepositEvent payloads.
type DepositDecoder struct{}

func (DepositDecoder) EventType() string { return "DepositEvent" }

func (DepositDecoder) Parse(payload []byte, sig solana.Signature, slot uint64) (types.DecodedEvent, error) {
	var l depositLayout
	if err := bin.NewBorshDecoder(payload).Decode(&l); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrShapeMismatch, err)
	}
	if l.Amount == 0 {
		return nil, fmt.Errorf("%w: deposit amount cannot be zero", errs.ErrValidation)
	}
	return types.DepositEvent{
		EventMeta: meta(sig, slot),
		ProgramID: l.ProgramID,
		User:      l.User,
		Vault:     l.Vault,
		Mint:      l.Mint,
		Amount:    l.Amount,
	}, nil
}

// --- LaunchEvent ------------------------------------------------------------

type launchLayout struct {
	ProgramID    solana.PublicKey
	Mint         solana.PublicKey
	Creator      solana.PublicKey
	TargetRaise  uint64
	CurveAddress solana.PublicKey
}

// LaunchDecoder decodes LaunchEvent payloads.
type LaunchDecoder struct{}

func (LaunchDecoder) EventType() string { return "LaunchEvent" }

func (LaunchDecoder) Parse(payload []byte, sig solana.Signature, slot uint64) (types.DecodedEvent, error) {
	var l launchLayout
	if err := bin.NewBorshDecoder(payload).Decode(&l); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrShapeMismatch, err)
	}
	if l.TargetRaise == 0 {
		return nil, fmt.Errorf("%w: target raise cannot be zero", errs.ErrValidation)
	}
	return types.LaunchEvent{
		EventMeta:    meta(sig, slot),
		ProgramID:    l.ProgramID,
		Mint:         l.Mint,
		Creator:      l.Creator,
		TargetRaise:  l.TargetRaise,
		CurveAddress: l.CurveAddress,
	}, nil
}

// --- SwapEvent ---------------------------------------------------------------

type swapLayout struct {
	ProgramID   solana.PublicKey
	PoolAddress solana.PublicKey
	Trader      solana.PublicKey
	Direction   uint8 // 0 = a_to_b, 1 = b_to_a
	AmountIn    uint64
	AmountOut   uint64
	FeeAmount   uint64
}

// SwapDecoder decodes SwapEvent payloads.
type SwapDecoder struct{}

func (SwapDecoder) EventType() string { return "SwapEvent" }

func (SwapDecoder) Parse(payload []byte, sig solana.Signature, slot uint64) (types.DecodedEvent, error) {
	var l swapLayout
	if err := bin.NewBorshDecoder(payload).Decode(&l); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrShapeMismatch, err)
	}
	if l.AmountIn == 0 || l.AmountOut == 0 {
		return nil, fmt.Errorf("%w: swap amounts cannot be zero", errs.ErrValidation)
	}

	dir := types.SwapAToB
	switch l.Direction {
	case 0:
		dir = types.SwapAToB
	case 1:
		dir = types.SwapBToA
	default:
		return nil, fmt.Errorf("%w: unrecognized swap direction %d", errs.ErrValidation, l.Direction)
	}

	return types.SwapEvent{
		EventMeta:   meta(sig, slot),
		ProgramID:   l.ProgramID,
		PoolAddress: l.PoolAddress,
		Trader:      l.Trader,
		Direction:   dir,
		AmountIn:    l.AmountIn,
		AmountOut:   l.AmountOut,
		FeeAmount:   l.FeeAmount,
	}, nil
}

// RegisterAll registers every decoder the core ships with. A duplicate
// discriminator here is an implementation bug, not a runtime
// configuration error, so cmd/listener calls MustRegister.
func RegisterAll(r *Registry) {
	r.MustRegister(TokenCreationDecoder{})
	r.MustRegister(PoolCreationDecoder{})
	r.MustRegister(NftClaimDecoder{})
	r.MustRegister(RewardDistributionDecoder{})
	r.MustRegister(LpChangeDecoder{})
	r.MustRegister(DepositDecoder{})
	r.MustRegister(LaunchDecoder{})
	r.MustRegister(SwapDecoder{})
}
