package parser

import (
	"bytes"
	"encoding/base64"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"solana-event-core/internal/errs"
)

func TestDiscriminator_IsStableAndDistinctPerEventType(t *testing.T) {
	a := Discriminator("SwapEvent")
	b := Discriminator("SwapEvent")
	c := Discriminator("DepositEvent")

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}

func TestRegistry_Register_RejectsDuplicateDiscriminator(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(SwapDecoder{}))

	dup := struct{ SwapDecoder }{}
	err := r.Register(dup)
	require.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestRegisterAll_RegistersAllEightDecodersWithoutCollision(t *testing.T) {
	r := NewRegistry()
	RegisterAll(r)
	require.Equal(t, 8, r.Len())
}

func encodeProgramData(eventType string, body []byte) string {
	payload := append(append([]byte{}, Discriminator(eventType)[:]...), body...)
	return "Program data: " + base64.StdEncoding.EncodeToString(payload)
}

func TestRegistry_Parse_DecodesMatchingDiscriminator(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(DepositDecoder{}))

	var buf bytes.Buffer
	enc := bin.NewBorshEncoder(&buf)
	require.NoError(t, enc.Encode(depositLayout{
		ProgramID: solana.NewWallet().PublicKey(),
		User:      solana.NewWallet().PublicKey(),
		Vault:     solana.NewWallet().PublicKey(),
		Mint:      solana.NewWallet().PublicKey(),
		Amount:    42,
	}))

	sig := solana.Signature{}
	line := encodeProgramData("DepositEvent", buf.Bytes())

	events, err := r.Parse([]string{"Program log: noise", line}, sig, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "DepositEvent", events[0].EventType())
}

func TestRegistry_Parse_SkipsUnknownDiscriminatorSilently(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(DepositDecoder{}))

	line := encodeProgramData("SomeUnregisteredEvent", []byte{1, 2, 3})
	events, err := r.Parse([]string{line}, solana.Signature{}, 1)
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestRegistry_Parse_SkipsNonProgramDataLines(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(DepositDecoder{}))

	events, err := r.Parse([]string{"Program log: hello", "Program consumed 500 compute units"}, solana.Signature{}, 1)
	require.NoError(t, err)
	require.Empty(t, events)
}
