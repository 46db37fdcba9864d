package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentpulse/rentpulse/internal/fetcher/headless"
	"github.com/rentpulse/rentpulse/internal/store/memory"
)

func TestNew_DryRunGraph(t *testing.T) {
	a, err := New(context.Background(), Options{DryRun: true})
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Logger)
	assert.NotNil(t, a.Roster)
	assert.NotNil(t, a.Renderer)
	assert.NotNil(t, a.Fetcher)
	assert.NotNil(t, a.Registry)
	assert.NotNil(t, a.Orchestrator)
	assert.NotNil(t, a.Metrics)

	// Dry runs never touch Postgres or launch a browser.
	_, ok := a.Store.(*memory.Store)
	assert.True(t, ok)
	_, ok = a.Renderer.(*headless.Noop)
	assert.True(t, ok)
}

func TestNew_BadConfigPath(t *testing.T) {
	_, err := New(context.Background(), Options{ConfigPath: "/does/not/exist.json"})
	require.Error(t, err)
}
