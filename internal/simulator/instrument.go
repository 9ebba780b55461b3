// internal/simulator/instrument.go
package simulator

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"tachymeter-service/internal/protocol"
)

// GeoCOM return codes produced by the simulator
const (
	rcOK       = 0
	rcUndef    = 1
	rcIVParam  = 2
	rcEDMError = 1285
)

// State is a snapshot of the simulated instrument
type State struct {
	Name     string  `json:"name"`
	Program  int     `json:"program"`
	Azimuth  float64 `json:"azimuth"`
	Zenith   float64 `json:"zenith"`
	Distance float64 `json:"distance"`
	Face     int     `json:"face"`
}

// Instrument is an in-process GeoCOM responder. It keeps the pointed angles
// and reports them back as measured angles.
type Instrument struct {
	mu       sync.Mutex
	state    State
	edmFails bool
	silent   map[string]bool
	preamble int
	chunk    int
	delay    time.Duration
	counts   map[string]int
	logger   *zap.Logger
}

// Option configures an Instrument
type Option func(*Instrument)

// WithName sets the name returned by the instrument name query
func WithName(name string) Option {
	return func(in *Instrument) { in.state.Name = name }
}

// WithProgram sets the initial measurement program code
func WithProgram(program int) Option {
	return func(in *Instrument) { in.state.Program = program }
}

// WithAngles sets the initial horizontal and vertical angle
func WithAngles(azimuth, zenith float64) Option {
	return func(in *Instrument) {
		in.state.Azimuth = azimuth
		in.state.Zenith = zenith
	}
}

// WithDistance sets the slope distance reported by every measurement
func WithDistance(distance float64) Option {
	return func(in *Instrument) { in.state.Distance = distance }
}

// WithEDMFailure makes every distance trigger fail
func WithEDMFailure() Option {
	return func(in *Instrument) { in.edmFails = true }
}

// WithSilentOpcodes makes the instrument never answer the given opcodes
func WithSilentOpcodes(opcodes ...string) Option {
	return func(in *Instrument) {
		for _, op := range opcodes {
			in.silent[op] = true
		}
	}
}

// WithStatusPreamble adds n status fields ahead of the measured values
func WithStatusPreamble(n int) Option {
	return func(in *Instrument) { in.preamble = n }
}

// WithChunkedReplies delivers replies in pieces of size bytes, delay apart
func WithChunkedReplies(size int, delay time.Duration) Option {
	return func(in *Instrument) {
		in.chunk = size
		in.delay = delay
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(in *Instrument) { in.logger = logger }
}

// New creates a simulated instrument on face 1 in IR fast mode
func New(opts ...Option) *Instrument {
	in := &Instrument{
		state: State{
			Name:     "TS-SIM",
			Program:  1,
			Azimuth:  0,
			Zenith:   math.Pi / 2,
			Distance: 25.0,
			Face:     1,
		},
		silent: make(map[string]bool),
		counts: make(map[string]int),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Transport returns a pipe transport answered by this instrument
func (in *Instrument) Transport(logger *zap.Logger) *protocol.PipeConnection {
	return protocol.NewPipeConnection(in.Respond, logger)
}

// State returns a snapshot of the instrument
func (in *Instrument) State() State {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.state
}

// Count returns how many requests for opcode were received
func (in *Instrument) Count(opcode string) int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.counts[opcode]
}

// SetEDMFailure switches distance trigger failures on or off
func (in *Instrument) SetEDMFailure(fail bool) {
	in.mu.Lock()
	in.edmFails = fail
	in.mu.Unlock()
}

// Respond handles one request line. It satisfies protocol.Responder.
func (in *Instrument) Respond(request []byte, reply func([]byte)) {
	opcode, args, ok := parseRequest(string(request))

	in.mu.Lock()
	var answer string
	if !ok {
		answer = replyLine(rcIVParam)
	} else {
		in.counts[opcode]++
		if in.silent[opcode] {
			in.mu.Unlock()
			in.logger.Debug("Simulator ignoring request", zap.String("opcode", opcode))
			return
		}
		answer = in.handle(opcode, args)
	}
	chunk, delay := in.chunk, in.delay
	in.mu.Unlock()

	in.logger.Debug("Simulator reply",
		zap.String("opcode", opcode),
		zap.String("reply", strings.TrimSpace(answer)),
	)
	deliver([]byte(answer), chunk, delay, reply)
}

// handle must be called with mu held
func (in *Instrument) handle(opcode string, args []float64) string {
	switch opcode {
	case "17018":
		return replyLine(rcOK, formatFloat(float64(in.state.Program)))

	case "17019":
		if len(args) < 1 {
			return replyLine(rcIVParam)
		}
		in.state.Program = int(args[0])
		return replyLine(rcOK)

	case "2008":
		if in.edmFails {
			return replyLine(rcEDMError)
		}
		return replyLine(rcOK)

	case "2108":
		fields := make([]string, 0, in.preamble+3)
		for i := 0; i < in.preamble; i++ {
			fields = append(fields, "0")
		}
		fields = append(fields,
			formatFloat(in.state.Azimuth),
			formatFloat(in.state.Zenith),
			formatFloat(in.state.Distance),
		)
		return replyLine(rcOK, fields...)

	case "9027":
		if len(args) < 2 {
			return replyLine(rcIVParam)
		}
		in.state.Azimuth = math.Mod(args[0], 2*math.Pi)
		in.state.Zenith = args[1]
		return replyLine(rcOK)

	case "9028":
		in.state.Azimuth = math.Mod(in.state.Azimuth+math.Pi, 2*math.Pi)
		in.state.Zenith = 2*math.Pi - in.state.Zenith
		in.state.Face = 3 - in.state.Face
		return replyLine(rcOK)

	case "5004":
		return replyLine(rcOK, strconv.Quote(in.state.Name))

	default:
		return replyLine(rcUndef)
	}
}

// parseRequest splits "%R1Q,<opcode>:<args>\r\n"
func parseRequest(line string) (opcode string, args []float64, ok bool) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, "%R1Q,") {
		return "", nil, false
	}

	body := strings.TrimPrefix(line, "%R1Q,")
	opcode, rawArgs, found := strings.Cut(body, ":")
	if !found || opcode == "" {
		return "", nil, false
	}
	if rawArgs == "" {
		return opcode, nil, true
	}

	for _, field := range strings.Split(rawArgs, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return opcode, nil, false
		}
		args = append(args, v)
	}
	return opcode, args, true
}

func replyLine(rc int, fields ...string) string {
	line := fmt.Sprintf("%%R1P,0,0:%d", rc)
	if len(fields) > 0 {
		line += "," + strings.Join(fields, ",")
	}
	return line + "\r\n"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// deliver hands data to reply at once, or in chunks from a goroutine
func deliver(data []byte, chunk int, delay time.Duration, reply func([]byte)) {
	if chunk <= 0 || chunk >= len(data) {
		reply(data)
		return
	}

	go func() {
		for len(data) > 0 {
			n := chunk
			if n > len(data) {
				n = len(data)
			}
			reply(data[:n])
			data = data[n:]
			if len(data) > 0 && delay > 0 {
				time.Sleep(delay)
			}
		}
	}()
}
