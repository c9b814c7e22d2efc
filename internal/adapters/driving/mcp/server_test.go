package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	t.Run("nil pipeline service returns error", func(t *testing.T) {
		server, err := NewServer(&Ports{})
		require.Error(t, err)
		assert.Nil(t, server)
		assert.ErrorIs(t, err, ErrMissingPipelineService)
	})

	t.Run("valid ports creates server", func(t *testing.T) {
		server, err := NewServer(&Ports{Pipeline: &mockPipelineService{}})
		require.NoError(t, err)
		assert.NotNil(t, server)
		assert.NotEmpty(t, server.prices, "default price table is used")
	})
}

func TestPorts_Validate(t *testing.T) {
	t.Run("pipeline only is valid", func(t *testing.T) {
		ports := &Ports{Pipeline: &mockPipelineService{}}
		assert.NoError(t, ports.Validate())
	})

	t.Run("all ports is valid", func(t *testing.T) {
		ports := &Ports{
			Pipeline: &mockPipelineService{},
			Prompts:  &mockPromptStore{},
			Watcher:  &mockWatcher{started: make(chan struct{})},
		}
		assert.NoError(t, ports.Validate())
	})
}

func TestServer_watchPrompts(t *testing.T) {
	t.Run("starts and stops the watcher", func(t *testing.T) {
		watcher := &mockWatcher{started: make(chan struct{})}
		server, err := NewServer(&Ports{Pipeline: &mockPipelineService{}, Watcher: watcher})
		require.NoError(t, err)

		stop := server.watchPrompts(context.Background())
		select {
		case <-watcher.started:
		case <-time.After(time.Second):
			t.Fatal("watcher not started")
		}
		stop()
	})

	t.Run("watch failure is not fatal", func(t *testing.T) {
		watcher := &mockWatcher{err: errors.New("inotify limit reached")}
		server, err := NewServer(&Ports{Pipeline: &mockPipelineService{}, Watcher: watcher})
		require.NoError(t, err)

		stop := server.watchPrompts(context.Background())
		stop()
	})

	t.Run("no watcher", func(t *testing.T) {
		server, err := NewServer(&Ports{Pipeline: &mockPipelineService{}})
		require.NoError(t, err)
		server.watchPrompts(context.Background())()
	})
}
