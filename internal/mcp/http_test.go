package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeHostPort(t *testing.T) {
	host, port, err := normalizeHostPort("", "127.0.0.1", 8730)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", host)
	assert.Equal(t, 8730, port)

	host, port, err = normalizeHostPort("localhost:9000", "127.0.0.1", 8730)
	require.NoError(t, err)
	assert.Equal(t, "localhost", host)
	assert.Equal(t, 9000, port)

	host, port, err = normalizeHostPort("[::1]:9000", "127.0.0.1", 8730)
	require.NoError(t, err)
	assert.Equal(t, "::1", host)
	assert.Equal(t, 9000, port)

	_, _, err = normalizeHostPort("localhost:notaport", "127.0.0.1", 8730)
	assert.Error(t, err)
}

func TestNormalizeHostPortDefaultsEmptyConfig(t *testing.T) {
	host, port, err := normalizeHostPort("", "", 0)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", host)
	assert.Equal(t, 8730, port)
}
