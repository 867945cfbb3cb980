// Package rpcclient wraps the chain node's JSON-RPC surface with the
// three calls the ingestion core needs (spec §6), each bounded by a
// timeout, generalizing the teacher's internal/rpc/client.go (an
// ethclient.Client wrapper with retry-on-dial and retry-on-call loops)
// from an Ethereum endpoint to a Solana one.
package rpcclient

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// DefaultTimeout bounds every RPC call (spec §5: "every RPC has an upper
// bound, typically 30s").
const DefaultTimeout = 30 * time.Second

// maxCallRetries bounds the retry-on-transient-failure loop each call
// below runs, mirroring the teacher's internal/rpc/client.go per-method
// retry loop but with a fixed attempt ceiling instead of an unbounded
// one (backfill already re-schedules a failed job on its own interval,
// so a call only needs to survive a brief node hiccup here).
const maxCallRetries = 3

// New builds a Client pointed at endpoint.
func New(endpoint string) *Client {
	return &Client{rpc: rpc.New(endpoint), timeout: DefaultTimeout}
}

// WithTimeout returns a copy of c using the given per-call timeout,
// primarily for tests that want a short deadline.
func (c *Client) WithTimeout(d time.Duration) *Client {
	return &Client{rpc: c.rpc, timeout: d}
}

// Client wraps *rpc.Client with a fixed per-call timeout.
type Client struct {
	rpc     *rpc.Client
	timeout time.Duration
}

// withRetry runs op with a short exponential backoff, retrying up to
// maxCallRetries times on any error. A per-call ctx timeout still bounds
// the total wall-clock time regardless of how many attempts it takes.
func withRetry(ctx context.Context, op func() error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxCallRetries), ctx)
	return backoff.Retry(op, b)
}

// SignatureInfo is the subset of rpc.TransactionSignature the pipeline
// cares about.
type SignatureInfo struct {
	Signature solana.Signature
	Slot      uint64
	Err       interface{}
}

// GetSignaturesForAddress returns up to limit signatures for account,
// newest first, bounded by before/until (spec §6: "limit ≤ 1000").
// A zero Signature for before or until means "unbounded" on that side.
func (c *Client) GetSignaturesForAddress(ctx context.Context, account solana.PublicKey, before, until solana.Signature, limit int, commitment rpc.CommitmentType) ([]SignatureInfo, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: commitment,
	}
	var zero solana.Signature
	if before != zero {
		opts.Before = before
	}
	if until != zero {
		opts.Until = until
	}

	var out []*rpc.TransactionSignature
	err := withRetry(ctx, func() error {
		var callErr error
		out, callErr = c.rpc.GetSignaturesForAddressWithOpts(ctx, account, opts)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("rpcclient: get signatures for %s: %w", account, err)
	}

	result := make([]SignatureInfo, 0, len(out))
	for _, s := range out {
		result = append(result, SignatureInfo{Signature: s.Signature, Slot: s.Slot, Err: s.Err})
	}
	return result, nil
}

// TransactionResult is the subset of the RPC response the parser needs:
// ordered log lines and whether the transaction itself errored.
type TransactionResult struct {
	Signature solana.Signature
	Slot      uint64
	LogLines  []string
	Err       interface{}
}

// GetTransaction fetches a full transaction with logs at the given
// commitment, json encoding, and a max supported version of 0 (spec §6).
func (c *Client) GetTransaction(ctx context.Context, signature solana.Signature, commitment rpc.CommitmentType) (*TransactionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	maxVersion := uint64(0)
	opts := &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingJSON,
		Commitment:                     commitment,
		MaxSupportedTransactionVersion: &maxVersion,
	}

	var out *rpc.GetTransactionResult
	err := withRetry(ctx, func() error {
		var callErr error
		out, callErr = c.rpc.GetTransaction(ctx, signature, opts)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("rpcclient: get transaction %s: %w", signature, err)
	}
	if out == nil || out.Meta == nil {
		return nil, fmt.Errorf("rpcclient: transaction %s resolved to no metadata", signature)
	}

	slot := out.Slot
	return &TransactionResult{
		Signature: signature,
		Slot:      slot,
		LogLines:  out.Meta.LogMessages,
		Err:       out.Meta.Err,
	}, nil
}

// GetAccountInfo fetches the raw account data for address, base64
// decoded, or nil if the account doesn't exist. Used by the on-chain
// metadata resolver to fetch Metaplex metadata PDAs.
func (c *Client) GetAccountInfo(ctx context.Context, address solana.PublicKey, commitment rpc.CommitmentType) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: commitment,
	}

	var out *rpc.GetAccountInfoResult
	err := withRetry(ctx, func() error {
		var callErr error
		out, callErr = c.rpc.GetAccountInfoWithOpts(ctx, address, opts)
		return callErr
	})
	if err != nil {
		if err == rpc.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("rpcclient: get account info %s: %w", address, err)
	}
	if out == nil || out.Value == nil {
		return nil, nil
	}
	return out.Value.Data.GetBinary(), nil
}

// GetSlot returns the current slot at the given commitment.
func (c *Client) GetSlot(ctx context.Context, commitment rpc.CommitmentType) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var slot uint64
	err := withRetry(ctx, func() error {
		var callErr error
		slot, callErr = c.rpc.GetSlot(ctx, commitment)
		return callErr
	})
	if err != nil {
		return 0, fmt.Errorf("rpcclient: get slot: %w", err)
	}
	return slot, nil
}
