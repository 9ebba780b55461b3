package tcp

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tachymeter-service/internal/model"
	"tachymeter-service/internal/protocol"
)

func TestScanFindsListeningBridge(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	closed, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	deadAddr := closed.Addr().String()
	closed.Close()

	s := NewScanner(zap.NewNop(), &Config{
		Endpoints:   []string{listener.Addr().String(), deadAddr, "not-an-endpoint"},
		ConnTimeout: 500 * time.Millisecond,
		Prober: func(ctx context.Context, cfg protocol.ConnectionConfig) (string, error) {
			return "TM30", nil
		},
	})
	assert.True(t, s.IsAvailable())

	found, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, model.ConnectionTypeTCP, found[0].Connection.Type)
	assert.Equal(t, "127.0.0.1", found[0].Connection.Host)
	assert.True(t, found[0].Responded)
	assert.Equal(t, "TM30", found[0].Name)
}

func TestScannerUnavailableWithoutEndpoints(t *testing.T) {
	assert.False(t, NewScanner(zap.NewNop(), nil).IsAvailable())
}
