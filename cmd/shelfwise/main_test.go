package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwise/shelfwise/internal/catalog"
	"github.com/shelfwise/shelfwise/internal/catalog/provider"
)

func TestStatusNote(t *testing.T) {
	active := catalog.ProviderStatus{Registered: true, Enabled: true, Configured: true, Breaker: "closed"}
	assert.Empty(t, statusNote(active))

	unknown := active
	unknown.Registered = false
	assert.Equal(t, "unknown adapter", statusNote(unknown))

	envOff := active
	envOff.EnvDisabled = true
	assert.Equal(t, "disabled by environment", statusNote(envOff))

	noKey := active
	noKey.Configured = false
	assert.Equal(t, "missing credentials", statusNote(noKey))

	open := active
	open.Breaker = "open"
	assert.Equal(t, "circuit open", statusNote(open))
}

func TestRootCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["lookup"])
	assert.True(t, names["providers"])
	assert.True(t, names["discover"])
}

func TestDiscoverQuery(t *testing.T) {
	q, err := discoverQuery("young-adult", 2025, 3)
	require.NoError(t, err)
	assert.Equal(t, provider.DiscoverQuery{List: "young-adult", Year: 2025, Month: time.March}, q)

	q, err = discoverQuery("", 0, 0)
	require.NoError(t, err)
	assert.Zero(t, q)

	_, err = discoverQuery("", 0, 13)
	assert.Error(t, err)
	_, err = discoverQuery("", -1, 0)
	assert.Error(t, err)
}
