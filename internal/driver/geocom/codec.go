// internal/driver/geocom/codec.go
package geocom

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	requestPrefix = "%R1Q,"
	replyPrefix   = "%R1P,"
	terminator    = "\r\n"
)

// Opcodes used by the engine. Arguments are appended by Encode.
var Opcodes = struct {
	GetMeasProgram  string
	SetMeasProgram  string
	MeasureDistance string
	GetAnglesDist   string
	MakePositioning string
	ChangeFace      string
	InstrumentName  string
}{
	GetMeasProgram:  "17018", // BAP_GetMeasPrg
	SetMeasProgram:  "17019", // BAP_SetMeasPrg
	MeasureDistance: "2008",  // TMC_DoMeasure
	GetAnglesDist:   "2108",  // TMC_GetSimpleMea
	MakePositioning: "9027",  // AUT_MakePositioning
	ChangeFace:      "9028",  // AUT_ChangeFace
	InstrumentName:  "5004",  // CSV_GetInstrumentName
}

// Reply signatures matched by substring against the raw reply
const (
	SignatureOK            = replyPrefix + "0,0:0" + terminator
	SignatureIRFast        = replyPrefix + "0,0:0,1" + terminator
	SignatureIRPrecise     = replyPrefix + "0,0:0,11" + terminator
	SignatureReflectorless = replyPrefix + "0,0:0,3" + terminator
)

// Frame is one rendered request line
type Frame struct {
	Opcode string
	Args   []string
}

// Encode builds a request frame. Arguments are rendered in plain decimal
// notation, never with an exponent. NaN and infinities are rejected.
func Encode(opcode string, args ...float64) (Frame, error) {
	if strings.TrimSpace(opcode) == "" {
		return Frame{}, fmt.Errorf("encode: empty opcode")
	}

	rendered := make([]string, len(args))
	for i, a := range args {
		if math.IsNaN(a) || math.IsInf(a, 0) {
			return Frame{}, fmt.Errorf("encode: argument %d is not finite", i)
		}
		rendered[i] = decimal.NewFromFloat(a).String()
	}
	return Frame{Opcode: opcode, Args: rendered}, nil
}

func mustEncode(opcode string, args ...float64) Frame {
	f, err := Encode(opcode, args...)
	if err != nil {
		panic(err)
	}
	return f
}

// String renders the frame as it goes on the wire
func (f Frame) String() string {
	return requestPrefix + f.Opcode + ":" + strings.Join(f.Args, ",") + terminator
}

// Bytes renders the frame as it goes on the wire
func (f Frame) Bytes() []byte {
	return []byte(f.String())
}

// Reply is a decoded reply: the raw text plus its comma-split fields
type Reply struct {
	Raw    string
	Fields []string
}

// Decode splits a raw reply into fields. Field counts are not checked here;
// each step validates the positions it needs.
func Decode(raw []byte) *Reply {
	s := string(raw)
	trimmed := strings.TrimRight(s, "\r\n")
	return &Reply{
		Raw:    s,
		Fields: strings.Split(trimmed, ","),
	}
}

// Contains reports whether the raw reply includes signature
func (r *Reply) Contains(signature string) bool {
	return strings.Contains(r.Raw, signature)
}

// LastFloats parses the last n fields as numbers
func (r *Reply) LastFloats(n int) ([]float64, error) {
	if len(r.Fields) < n {
		return nil, fmt.Errorf("%w: want %d trailing fields, got %d in %q", ErrMalformedReply, n, len(r.Fields), r.Raw)
	}

	values := make([]float64, n)
	for i, field := range r.Fields[len(r.Fields)-n:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q is not numeric", ErrMalformedReply, field)
		}
		values[i] = v
	}
	return values, nil
}

// ReturnCode extracts <rc> from a "%R1P,<comRC>,<trId>:<rc>" header.
// ok is false when the reply carries no such header.
func (r *Reply) ReturnCode() (rc int, ok bool) {
	idx := strings.Index(r.Raw, replyPrefix)
	if idx < 0 {
		return 0, false
	}

	header := r.Raw[idx+len(replyPrefix):]
	colon := strings.IndexByte(header, ':')
	if colon < 0 {
		return 0, false
	}

	rest := header[colon+1:]
	if end := strings.IndexAny(rest, ",\r\n"); end >= 0 {
		rest = rest[:end]
	}
	code, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil {
		return 0, false
	}
	return code, true
}

// LastString returns the last field with surrounding quotes removed
func (r *Reply) LastString() string {
	if len(r.Fields) == 0 {
		return ""
	}
	return strings.Trim(strings.TrimSpace(r.Fields[len(r.Fields)-1]), `"`)
}
