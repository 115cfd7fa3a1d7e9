package httptransport

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewServerAppliesConfig(t *testing.T) {
	server := NewServer(ServerConfig{
		Address:      ":8080",
		ReadTimeout:  time.Second,
		WriteTimeout: 2 * time.Second,
		IdleTimeout:  30 * time.Second,
	}, http.NotFoundHandler())

	require.Equal(t, ":8080", server.Addr)
	require.Equal(t, time.Second, server.ReadTimeout)
	require.Equal(t, 2*time.Second, server.WriteTimeout)
	require.Equal(t, 30*time.Second, server.IdleTimeout)
}

func TestNewServerDefaultsTimeouts(t *testing.T) {
	server := NewServer(ServerConfig{Address: ":9090"}, nil)

	require.Equal(t, 5*time.Second, server.ReadTimeout)
	require.Equal(t, 10*time.Second, server.WriteTimeout)
	require.Equal(t, 60*time.Second, server.IdleTimeout)
}
