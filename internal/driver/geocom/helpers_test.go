package geocom

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tachymeter-service/internal/protocol"
	"tachymeter-service/internal/simulator"
)

func testTimeouts() Timeouts {
	return Timeouts{
		Write:      200 * time.Millisecond,
		Reply:      300 * time.Millisecond,
		Quiescence: 30 * time.Millisecond,
		Receive:    2 * time.Second,
	}
}

func opcodeOf(request []byte) string {
	body := strings.TrimPrefix(string(request), "%R1Q,")
	op, _, _ := strings.Cut(body, ":")
	return op
}

// scripted answers by opcode; opcodes without an entry get no reply
func scripted(replies map[string]string) protocol.Responder {
	return func(request []byte, reply func([]byte)) {
		if r, ok := replies[opcodeOf(request)]; ok {
			reply([]byte(r))
		}
	}
}

func openPipe(t *testing.T, respond protocol.Responder) (*protocol.PipeConnection, *Executor) {
	t.Helper()
	pipe := protocol.NewPipeConnection(respond, zap.NewNop())
	require.NoError(t, pipe.Open(context.Background()))
	t.Cleanup(func() { pipe.Close() })
	return pipe, NewExecutor(pipe, testTimeouts(), zap.NewNop())
}

func openSimulator(t *testing.T, opts ...simulator.Option) (*simulator.Instrument, *Executor) {
	t.Helper()
	sim := simulator.New(opts...)
	pipe := sim.Transport(zap.NewNop())
	require.NoError(t, pipe.Open(context.Background()))
	t.Cleanup(func() { pipe.Close() })
	return sim, NewExecutor(pipe, testTimeouts(), zap.NewNop())
}

func countOpcode(requests []string, opcode string) int {
	n := 0
	for _, r := range requests {
		if opcodeOf([]byte(r)) == opcode {
			n++
		}
	}
	return n
}

// angleDiff returns the smallest distance between two angles on the circle
func angleDiff(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 2*math.Pi)
	if d > math.Pi {
		d = 2*math.Pi - d
	}
	return d
}
