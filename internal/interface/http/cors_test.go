package http

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveOrigin(t *testing.T) {
	require.Equal(t, "*", resolveOrigin("https://a.test", nil))
	require.Equal(t, "*", resolveOrigin("https://a.test", []string{"https://b.test", "*"}))
	require.Equal(t, "https://A.test", resolveOrigin("https://A.test", []string{"https://a.test"}))
	require.Equal(t, "https://b.test", resolveOrigin("https://c.test", []string{"https://b.test"}))
}
