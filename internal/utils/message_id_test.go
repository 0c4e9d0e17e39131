package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateMessageID(t *testing.T) {
	id := GenerateMessageID("nora@warmdomain.io")

	require.True(t, strings.HasPrefix(id, "<"))
	require.True(t, strings.HasSuffix(id, "@warmdomain.io>"))

	other := GenerateMessageID("nora@warmdomain.io")
	assert.NotEqual(t, id, other, "each call yields a fresh id")
}

func TestGenerateMessageIDWithoutDomain(t *testing.T) {
	id := GenerateMessageID("")
	assert.True(t, strings.HasSuffix(id, "@localhost>"))
}

func TestNormalizeMessageID(t *testing.T) {
	assert.Equal(t, "abc@example.com", NormalizeMessageID("<abc@example.com>"))
	assert.Equal(t, "abc@example.com", NormalizeMessageID("  <abc@example.com>  "))
	assert.Equal(t, "abc@example.com", NormalizeMessageID("abc@example.com"))
	assert.Equal(t, "", NormalizeMessageID(""))
}

func TestGenerateNanoIDWithPrefix(t *testing.T) {
	id := GenerateNanoIDWithPrefix("wses", 21)

	require.True(t, strings.HasPrefix(id, "wses_"))
	assert.Len(t, id, len("wses_")+21)
	assert.NotEqual(t, id, GenerateNanoIDWithPrefix("wses", 21))
}
