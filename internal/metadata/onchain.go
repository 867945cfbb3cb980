// Metaplex on-chain metadata lookup: tier 1 of the 3-tier fallback
// chain in provider.go. Derives the token metadata PDA the same way
// the rest of the parser decodes Anchor/Borsh payloads (internal/parser
// /decoders.go's bin.NewBorshDecoder pattern), just against an account
// fetched by address instead of a transaction log line.
package metadata

import (
	"context"
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// metadataProgramID is the well-known Metaplex Token Metadata program.
var metadataProgramID = solana.MustPublicKeyFromBase58("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")

// AccountFetcher is the subset of rpcclient.Client the resolver needs,
// kept as an interface so it can be exercised without a live RPC
// endpoint (mirrors OnChainResolver's own reason for being an
// interface).
type AccountFetcher interface {
	GetAccountInfo(ctx context.Context, address solana.PublicKey, commitment rpc.CommitmentType) ([]byte, error)
}

// MetaplexResolver implements OnChainResolver against the Metaplex
// token metadata account layout. It decodes only the leading fields it
// needs (name, symbol, uri); everything after Uri in the real account
// (creators, collection, uses, ...) is left unread, which Borsh
// decoding tolerates since it simply stops consuming bytes.
type MetaplexResolver struct {
	fetcher    AccountFetcher
	commitment rpc.CommitmentType
}

// NewMetaplexResolver builds a resolver reading accounts through fetcher
// at the given commitment.
func NewMetaplexResolver(fetcher AccountFetcher, commitment rpc.CommitmentType) *MetaplexResolver {
	return &MetaplexResolver{fetcher: fetcher, commitment: commitment}
}

// metadataAccountData is the leading portion of the Metaplex Metadata
// account Borsh layout (the "key" discriminant, update authority, mint,
// then the Data struct's name/symbol/uri strings).
type metadataAccountData struct {
	Key             uint8
	UpdateAuthority solana.PublicKey
	Mint            solana.PublicKey
	Name            string
	Symbol          string
	Uri             string
}

// metadataPDA derives the deterministic metadata account address for
// mint: seeds ["metadata", metadataProgramID, mint], owned by
// metadataProgramID.
func metadataPDA(mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{
			[]byte("metadata"),
			metadataProgramID.Bytes(),
			mint.Bytes(),
		},
		metadataProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("metadata: derive PDA for mint %s: %w", mint, err)
	}
	return addr, nil
}

// Resolve fetches and decodes the Metaplex metadata account for mint.
// A missing account (never minted through Metaplex, or not yet
// confirmed) is reported as ok=false, not an error, so Provider falls
// through to the curated list.
func (r *MetaplexResolver) Resolve(ctx context.Context, mint solana.PublicKey) (TokenInfo, bool, error) {
	pda, err := metadataPDA(mint)
	if err != nil {
		return TokenInfo{}, false, err
	}

	data, err := r.fetcher.GetAccountInfo(ctx, pda, r.commitment)
	if err != nil {
		return TokenInfo{}, false, fmt.Errorf("metadata: fetch account %s: %w", pda, err)
	}
	if len(data) == 0 {
		return TokenInfo{}, false, nil
	}

	var acct metadataAccountData
	if err := bin.NewBorshDecoder(data).Decode(&acct); err != nil {
		return TokenInfo{}, false, fmt.Errorf("metadata: decode account %s: %w", pda, err)
	}

	return TokenInfo{
		Symbol:      strings.TrimRight(acct.Symbol, "\x00"),
		Description: "",
		LogoURI:     strings.TrimRight(acct.Uri, "\x00"),
	}, true, nil
}
