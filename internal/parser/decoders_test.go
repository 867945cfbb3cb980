package parser

import (
	"bytes"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"solana-event-core/internal/errs"
	"solana-event-core/internal/types"
)

func encode(t *testing.T, v interface{}) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, bin.NewBorshEncoder(&buf).Encode(v))
	return buf.Bytes()
}

func TestTokenCreationDecoder_RejectsOversizedDecimals(t *testing.T) {
	payload := encode(t, tokenCreationLayout{
		ProgramID: solana.NewWallet().PublicKey(),
		Mint:      solana.NewWallet().PublicKey(),
		Creator:   solana.NewWallet().PublicKey(),
		Name:      "Test",
		Symbol:    "TST",
		Decimals:  200,
		URI:       "https://example.com",
	})

	_, err := TokenCreationDecoder{}.Parse(payload, solana.Signature{}, 1)
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestTokenCreationDecoder_RejectsEmptyName(t *testing.T) {
	payload := encode(t, tokenCreationLayout{
		ProgramID: solana.NewWallet().PublicKey(),
		Mint:      solana.NewWallet().PublicKey(),
		Creator:   solana.NewWallet().PublicKey(),
		Name:      "",
		Symbol:    "TST",
		Decimals:  9,
		URI:       "https://example.com",
	})

	_, err := TokenCreationDecoder{}.Parse(payload, solana.Signature{}, 1)
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestTokenCreationDecoder_RejectsMalformedPayload(t *testing.T) {
	_, err := TokenCreationDecoder{}.Parse([]byte{1, 2, 3}, solana.Signature{}, 1)
	require.ErrorIs(t, err, errs.ErrShapeMismatch)
}

func TestPoolCreationDecoder_RejectsIdenticalMints(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	payload := encode(t, poolCreationLayout{
		ProgramID:        solana.NewWallet().PublicKey(),
		PoolAddress:      solana.NewWallet().PublicKey(),
		MintA:            mint,
		MintB:            mint,
		TickSpacing:      1,
		InitialSqrtPrice: 1,
		Creator:          solana.NewWallet().PublicKey(),
	})

	_, err := PoolCreationDecoder{}.Parse(payload, solana.Signature{}, 1)
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestLpChangeDecoder_RejectsInvertedTickRange(t *testing.T) {
	payload := encode(t, lpChangeLayout{
		ProgramID:      solana.NewWallet().PublicKey(),
		PoolAddress:    solana.NewWallet().PublicKey(),
		Owner:          solana.NewWallet().PublicKey(),
		Kind:           0,
		LiquidityDelta: 10,
		TickLower:      100,
		TickUpper:      50,
	})

	_, err := LpChangeDecoder{}.Parse(payload, solana.Signature{}, 1)
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestLpChangeDecoder_DecodesWithdrawKind(t *testing.T) {
	payload := encode(t, lpChangeLayout{
		ProgramID:      solana.NewWallet().PublicKey(),
		PoolAddress:    solana.NewWallet().PublicKey(),
		Owner:          solana.NewWallet().PublicKey(),
		Kind:           1,
		LiquidityDelta: 10,
		TickLower:      -10,
		TickUpper:      10,
	})

	ev, err := LpChangeDecoder{}.Parse(payload, solana.Signature{}, 1)
	require.NoError(t, err)
	require.Equal(t, types.LpChangeWithdraw, ev.(types.LpChangeEvent).Kind)
}

func TestSwapDecoder_RejectsZeroAmounts(t *testing.T) {
	payload := encode(t, swapLayout{
		ProgramID:   solana.NewWallet().PublicKey(),
		PoolAddress: solana.NewWallet().PublicKey(),
		Trader:      solana.NewWallet().PublicKey(),
		Direction:   0,
		AmountIn:    0,
		AmountOut:   0,
	})

	_, err := SwapDecoder{}.Parse(payload, solana.Signature{}, 1)
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestRewardDistributionDecoder_NilUplineWhenAbsent(t *testing.T) {
	payload := encode(t, rewardDistributionLayout{
		ProgramID: solana.NewWallet().PublicKey(),
		User:      solana.NewWallet().PublicKey(),
		Amount:    10,
		Mint:      solana.NewWallet().PublicKey(),
	})

	ev, err := RewardDistributionDecoder{}.Parse(payload, solana.Signature{}, 1)
	require.NoError(t, err)

	rd := ev.(types.RewardDistributionEvent)
	require.Nil(t, rd.Upper)
	require.Nil(t, rd.UpperUpper)
}
