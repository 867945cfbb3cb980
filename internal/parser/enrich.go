package parser

import (
	"context"

	"solana-event-core/internal/metadata"
	"solana-event-core/internal/types"
)

// Enrich resolves token metadata for the event types that carry
// optional post-decode enrichment fields (spec §4.B), replacing each
// event in place. Events with no enrichable fields pass through
// unchanged. A resolution failure never fails the batch: the
// corresponding fields are simply left nil, same as the teacher's
// timestamp-cache miss behavior.
func Enrich(ctx context.Context, events []types.DecodedEvent, provider *metadata.Provider) []types.DecodedEvent {
	if provider == nil {
		return events
	}
	for i, ev := range events {
		switch e := ev.(type) {
		case types.TokenCreationEvent:
			info := provider.Resolve(ctx, e.Mint)
			if info.LogoURI != "" {
				e.MetadataLogoURI = &info.LogoURI
			}
			if info.Description != "" {
				e.MetadataDescription = &info.Description
			}
			events[i] = e
		case types.SwapEvent:
			// The swap event carries no mint, only PoolAddress and the
			// trader-facing amounts, so it passes through unchanged:
			// MintInSymbol and MintOutSymbol are not set here.
			events[i] = e
		}
	}
	return events
}
