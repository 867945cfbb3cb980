package rpcclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew_DefaultTimeout(t *testing.T) {
	c := New("https://api.mainnet-beta.solana.com")
	require.Equal(t, DefaultTimeout, c.timeout)
}

func TestWithTimeout_OverridesWithoutMutatingOriginal(t *testing.T) {
	c := New("https://api.mainnet-beta.solana.com")
	short := c.WithTimeout(5 * time.Second)

	require.Equal(t, 5*time.Second, short.timeout)
	require.Equal(t, DefaultTimeout, c.timeout)
	require.Same(t, c.rpc, short.rpc)
}
