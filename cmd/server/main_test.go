package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_ReturnsConfigurationError(t *testing.T) {
	t.Setenv("LEDGER_BACKEND", "postgres")

	err := run("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
	assert.Contains(t, err.Error(), "LEDGER_BACKEND")
}

func TestRun_ReturnsInitializationError(t *testing.T) {
	t.Setenv("STREAK_TIMEZONE", "Mars/Olympus_Mons")
	t.Setenv("DATABASE_PATH", t.TempDir()+"/moviemeter.db")

	err := run("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize services")
}
