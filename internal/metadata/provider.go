// Package metadata resolves human-readable token metadata (logo URI,
// description, symbol) for events that enrich their decoded payload
// post-parse (spec §4.B). It follows a 3-tier fallback chain and caches
// resolved entries the way the teacher's parser caches block timestamps
// (internal/parser/parser.go's timestampCache): a plain map guarded by a
// mutex, best-effort, silent on miss.
package metadata

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// TokenInfo is the resolved metadata for one mint.
type TokenInfo struct {
	Symbol      string
	LogoURI     string
	Description string
}

// OnChainResolver is tier 1: a lookup against the chain itself (the
// SPL token metadata program account). It is an interface so the
// provider can be tested without a live RPC endpoint.
type OnChainResolver interface {
	Resolve(ctx context.Context, mint solana.PublicKey) (TokenInfo, bool, error)
}

// CuratedEntry is one row of the embedded curated token list, tier 2.
type CuratedEntry struct {
	Mint        string `json:"mint"`
	Symbol      string `json:"symbol"`
	LogoURI     string `json:"logo_uri"`
	Description string `json:"description"`
}

// Provider resolves token metadata through on-chain lookup, falling back
// to a curated static list, falling back to hard-coded defaults.
type Provider struct {
	onChain OnChainResolver
	curated map[string]TokenInfo
	fallback TokenInfo

	mu    sync.Mutex
	cache map[solana.PublicKey]TokenInfo
}

// DefaultFallback is returned when neither the on-chain lookup nor the
// curated list has an entry for a mint.
var DefaultFallback = TokenInfo{Symbol: "UNKNOWN", LogoURI: "", Description: ""}

// NewProvider builds a Provider. onChain may be nil, in which case tier 1
// is skipped entirely (useful in tests and in deployments without a
// metadata program indexed).
func NewProvider(onChain OnChainResolver, curatedJSON []byte) (*Provider, error) {
	curated := make(map[string]TokenInfo)
	if len(curatedJSON) > 0 {
		var entries []CuratedEntry
		if err := json.Unmarshal(curatedJSON, &entries); err != nil {
			return nil, err
		}
		for _, e := range entries {
			curated[e.Mint] = TokenInfo{Symbol: e.Symbol, LogoURI: e.LogoURI, Description: e.Description}
		}
	}

	return &Provider{
		onChain:  onChain,
		curated:  curated,
		fallback: DefaultFallback,
		cache:    make(map[solana.PublicKey]TokenInfo),
	}, nil
}

// Resolve returns the best available TokenInfo for mint, trying the
// cache, then on-chain, then the curated list, then the fallback —
// in that order, caching whichever tier answered.
func (p *Provider) Resolve(ctx context.Context, mint solana.PublicKey) TokenInfo {
	p.mu.Lock()
	if info, ok := p.cache[mint]; ok {
		p.mu.Unlock()
		return info
	}
	p.mu.Unlock()

	info := p.resolveUncached(ctx, mint)

	p.mu.Lock()
	p.cache[mint] = info
	p.mu.Unlock()
	return info
}

func (p *Provider) resolveUncached(ctx context.Context, mint solana.PublicKey) TokenInfo {
	if p.onChain != nil {
		if info, ok, err := p.onChain.Resolve(ctx, mint); err == nil && ok {
			return info
		}
	}
	if info, ok := p.curated[mint.String()]; ok {
		return info
	}
	return p.fallback
}
