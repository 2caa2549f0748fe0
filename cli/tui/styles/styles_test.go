package styles

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	require.Equal(t, "hello", Truncate("hello", 5))
	require.Equal(t, "hel…", Truncate("hello", 4))
	require.Equal(t, "şe…", Truncate("şeker", 3))
	require.Equal(t, "h", Truncate("hello", 1))
}
