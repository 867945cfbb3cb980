package metadata

import (
	"bytes"
	"context"
	"errors"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	data []byte
	err  error
}

func (f *fakeFetcher) GetAccountInfo(ctx context.Context, address solana.PublicKey, commitment rpc.CommitmentType) ([]byte, error) {
	return f.data, f.err
}

func encodeAccount(t *testing.T, v metadataAccountData) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, bin.NewBorshEncoder(&buf).Encode(v))
	return buf.Bytes()
}

func TestMetaplexResolver_DecodesNameSymbolURI(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	data := encodeAccount(t, metadataAccountData{
		Key:             4,
		UpdateAuthority: solana.NewWallet().PublicKey(),
		Mint:            mint,
		Name:            "Wrapped Foo",
		Symbol:          "wFOO",
		Uri:             "https://example.com/foo.json",
	})

	r := NewMetaplexResolver(&fakeFetcher{data: data}, rpc.CommitmentConfirmed)
	info, ok, err := r.Resolve(context.Background(), mint)

	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "wFOO", info.Symbol)
	require.Equal(t, "https://example.com/foo.json", info.LogoURI)
}

func TestMetaplexResolver_MissingAccountReturnsNotOK(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	r := NewMetaplexResolver(&fakeFetcher{data: nil}, rpc.CommitmentConfirmed)

	info, ok, err := r.Resolve(context.Background(), mint)

	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, TokenInfo{}, info)
}

func TestMetaplexResolver_FetchErrorPropagates(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	r := NewMetaplexResolver(&fakeFetcher{err: errors.New("rpc down")}, rpc.CommitmentConfirmed)

	_, ok, err := r.Resolve(context.Background(), mint)

	require.Error(t, err)
	require.False(t, ok)
}
