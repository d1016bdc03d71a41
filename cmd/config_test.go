package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sheetchat/sheetchat/internal/config"
)

func TestPrintConfig(t *testing.T) {
	var buf bytes.Buffer

	cfg := config.DefaultConfig()
	cfg.LLM.APIKey = "sk-abcdefgh12345678"
	printConfig(&buf, cfg)

	out := buf.String()
	assert.Contains(t, out, "Host: 127.0.0.1")
	assert.Contains(t, out, "Port: 8742")
	assert.Contains(t, out, "Provider: gemini")
	assert.Contains(t, out, "sk-a...5678")
	assert.NotContains(t, out, "sk-abcdefgh12345678")
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "(not set)", maskSecret(""))
	assert.Equal(t, "****", maskSecret("short"))
	assert.Equal(t, "sk-a...wxyz", maskSecret("sk-abcdefg-wxyz"))
}
