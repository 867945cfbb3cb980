package metadata

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

type fakeOnChain struct {
	info TokenInfo
	ok   bool
	err  error
	hits int
}

func (f *fakeOnChain) Resolve(ctx context.Context, mint solana.PublicKey) (TokenInfo, bool, error) {
	f.hits++
	return f.info, f.ok, f.err
}

func TestProvider_PrefersOnChainWhenAvailable(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	oc := &fakeOnChain{info: TokenInfo{Symbol: "FOO"}, ok: true}
	p, err := NewProvider(oc, nil)
	require.NoError(t, err)

	got := p.Resolve(context.Background(), mint)
	require.Equal(t, "FOO", got.Symbol)
}

func TestProvider_FallsBackToCuratedListOnChainMiss(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	oc := &fakeOnChain{ok: false}
	curated := []byte(`[{"mint":"` + mint.String() + `","symbol":"BAR","logo_uri":"https://x/y.png"}]`)
	p, err := NewProvider(oc, curated)
	require.NoError(t, err)

	got := p.Resolve(context.Background(), mint)
	require.Equal(t, "BAR", got.Symbol)
}

func TestProvider_FallsBackToDefaultWhenNoTierMatches(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	oc := &fakeOnChain{ok: false, err: errors.New("rpc unavailable")}
	p, err := NewProvider(oc, nil)
	require.NoError(t, err)

	got := p.Resolve(context.Background(), mint)
	require.Equal(t, DefaultFallback, got)
}

func TestProvider_CachesResolvedValue(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	oc := &fakeOnChain{info: TokenInfo{Symbol: "FOO"}, ok: true}
	p, err := NewProvider(oc, nil)
	require.NoError(t, err)

	_ = p.Resolve(context.Background(), mint)
	_ = p.Resolve(context.Background(), mint)

	require.Equal(t, 1, oc.hits)
}
