package tls

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewServerTLS_Disabled(t *testing.T) {
	cfg, src, err := NewServerTLS(context.Background(), &TLSConfig{Enabled: false}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.Nil(t, cfg)
	assert.Nil(t, src)
	assert.NoError(t, src.Close())
}

func TestLoadTLSConfig_Defaults(t *testing.T) {
	cfg, err := LoadTLSConfig()
	require.NoError(t, err)

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "unix:///run/spire/sockets/agent.sock", cfg.SocketPath)
}
