// Package parser turns raw program log lines into typed DecodedEvent
// values. It generalizes the teacher's internal/parser/parser.go — a
// single Parse(ctx, log) entry point dispatching on an ABI event
// signature (topic0) with a silent skip on lookup miss — from Ethereum
// log-topic dispatch to Solana 8-byte Anchor-style discriminator
// dispatch, the way other_examples/e5ddb984_..._oracle.go.go derives
// and checks a discriminator before Borsh-decoding the remainder of the
// "Program data: " payload.
package parser

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"

	"solana-event-core/internal/errs"
	"solana-event-core/internal/types"
)

// programDataPrefix is the log line prefix Anchor-style programs use to
// emit a base64 CPI event payload.
const programDataPrefix = "Program data: "

// discriminatorSeed is the fixed prefix hashed with an event's type name
// to derive its 8-byte discriminator (DESIGN.md Open Question #1: this
// is always "event:", never per-program-configurable).
const discriminatorSeed = "event:"

// Discriminator derives the 8-byte discriminator for eventType:
// sha256("event:" + eventType)[:8].
func Discriminator(eventType string) types.Discriminator {
	sum := sha256.Sum256([]byte(discriminatorSeed + eventType))
	var d types.Discriminator
	copy(d[:], sum[:8])
	return d
}

// Decoder turns one event type's Borsh-encoded payload (with its leading
// 8-byte discriminator already stripped) into a DecodedEvent.
type Decoder interface {
	// EventType is the registered name the discriminator is derived from.
	EventType() string
	// Parse decodes payload (post-discriminator) into a DecodedEvent,
	// stamping it with sig and slot, and validates its fields.
	Parse(payload []byte, sig solana.Signature, slot uint64) (types.DecodedEvent, error)
}

// Registry dispatches raw log batches to the Decoder whose discriminator
// matches. Registration happens once at startup; a duplicate
// discriminator is a configuration error that must fail loudly rather
// than silently shadow a decoder.
type Registry struct {
	decoders map[types.Discriminator]Decoder
	names    map[types.Discriminator]string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		decoders: make(map[types.Discriminator]Decoder),
		names:    make(map[types.Discriminator]string),
	}
}

// Register computes d's discriminator and adds it, failing if another
// decoder already registered under the same 8 bytes.
func (r *Registry) Register(d Decoder) error {
	disc := Discriminator(d.EventType())
	if existing, ok := r.names[disc]; ok {
		return fmt.Errorf("%w: %s and %s share discriminator %x", errs.ErrConfiguration, existing, d.EventType(), disc)
	}
	r.decoders[disc] = d
	r.names[disc] = d.EventType()
	return nil
}

// MustRegister panics on registration failure, for use during
// process-startup wiring where a collision must stop the boot sequence.
func (r *Registry) MustRegister(d Decoder) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// Len reports how many decoders are registered.
func (r *Registry) Len() int { return len(r.decoders) }

// Parse extracts every Anchor-style CPI event payload out of logs and
// decodes each with its matching registered Decoder. Log lines that
// aren't "Program data: " payloads, payloads shorter than 8 bytes, and
// payloads whose discriminator matches no registered decoder are all
// silently skipped — only a registered-but-malformed payload is an
// error, mirroring the teacher's lookup-miss-is-not-an-error behavior.
// A decode/validation failure on one line never aborts the rest of the
// batch (spec §4.B step 4): every remaining line is still attempted, and
// the per-line errors are joined into the returned error for the caller
// to log at warn level.
func (r *Registry) Parse(logs []string, sig solana.Signature, slot uint64) ([]types.DecodedEvent, error) {
	var events []types.DecodedEvent
	var errs []error
	for _, line := range logs {
		payload, ok := extractProgramData(line)
		if !ok || len(payload) < 8 {
			continue
		}

		var disc types.Discriminator
		copy(disc[:], payload[:8])

		d, ok := r.decoders[disc]
		if !ok {
			continue
		}

		ev, err := d.Parse(payload[8:], sig, slot)
		if err != nil {
			errs = append(errs, fmt.Errorf("parser: decode %s in tx %s: %w", d.EventType(), sig, err))
			continue
		}
		events = append(events, ev)
	}
	if len(errs) > 0 {
		return events, errors.Join(errs...)
	}
	return events, nil
}

func extractProgramData(line string) ([]byte, bool) {
	rest, ok := strings.CutPrefix(line, programDataPrefix)
	if !ok {
		return nil, false
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(rest))
	if err != nil {
		return nil, false
	}
	return raw, true
}
