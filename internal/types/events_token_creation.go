package types

import "github.com/gagliardetto/solana-go"

// TokenCreationEvent records a new SPL mint being created by a tracked
// program. Natural key: (program_id, signature) — a program can only
// legitimately emit one creation event per transaction.
type TokenCreationEvent struct {
	EventMeta

	ProgramID   ProgramID
	Mint        solana.PublicKey
	Creator     solana.PublicKey
	Name        string
	Symbol      string
	Decimals    uint8
	URI         string
	InitialSupply uint64

	// Enriched post-decode by the metadata provider; nil until resolved,
	// and left nil (never an error) if enrichment fails.
	MetadataLogoURI    *string
	MetadataDescription *string
}

func (e TokenCreationEvent) EventType() string { return "TokenCreationEvent" }
func (e TokenCreationEvent) Meta() EventMeta   { return e.EventMeta }
func (e TokenCreationEvent) Collection() string { return "TokenCreationEvents" }
func (e TokenCreationEvent) NaturalKey() map[string]interface{} {
	return map[string]interface{}{
		"program_id": e.ProgramID.String(),
		"signature":  e.Signature.String(),
	}
}
func (e TokenCreationEvent) SourceProgramID() string { return e.ProgramID.String() }
func (e TokenCreationEvent) Document() map[string]interface{} {
	d := e.metaFields()
	d["program_id"] = e.ProgramID.String()
	d["mint"] = e.Mint.String()
	d["creator"] = e.Creator.String()
	d["name"] = e.Name
	d["symbol"] = e.Symbol
	d["decimals"] = e.Decimals
	d["uri"] = e.URI
	d["initial_supply"] = e.InitialSupply
	if e.MetadataLogoURI != nil {
		d["metadata_logo_uri"] = *e.MetadataLogoURI
	}
	if e.MetadataDescription != nil {
		d["metadata_description"] = *e.MetadataDescription
	}
	return d
}
