// Package console decodes the firmware's debug UART stream: event ring
// dumps, telemetry lines and free-form debug messages.
package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Kind classifies a debug line
type Kind int

const (
	KindText Kind = iota
	KindEvent
	KindTelemetry
	KindDumpStart
	KindDumpEnd
)

func (k Kind) String() string {
	switch k {
	case KindEvent:
		return "event"
	case KindTelemetry:
		return "telemetry"
	case KindDumpStart:
		return "dump-start"
	case KindDumpEnd:
		return "dump-end"
	}
	return "text"
}

const (
	eventPrefix     = "[EVENT] "
	telemetryPrefix = "[TELEM] "
	dumpStart       = "[EVENT] === Event Ring Dump ==="
	dumpEnd         = "[EVENT] === End Dump ==="
)

var ErrMalformed = errors.New("malformed debug line")

// Event is one event ring entry
type Event struct {
	Name   string
	Arg    uint8
	Clock  uint32
	Value1 uint32
	Value2 uint32
}

// Telemetry is one periodic level report, voltages in microvolts
type Telemetry struct {
	Bus     uint32
	Sense   uint32
	Supply  uint32
	Status  uint32
	Faults  uint32
	Sampler string
	Error   string
}

// Record is one decoded line
type Record struct {
	Kind      Kind
	Raw       string
	Event     *Event
	Telemetry *Telemetry
}

// Parse decodes one line without its terminator
func Parse(line string) (Record, error) {
	line = strings.TrimRight(line, "\r\n")
	rec := Record{Kind: KindText, Raw: line}

	switch {
	case line == dumpStart:
		rec.Kind = KindDumpStart
	case line == dumpEnd:
		rec.Kind = KindDumpEnd
	case strings.HasPrefix(line, eventPrefix):
		evt, err := parseEvent(strings.TrimPrefix(line, eventPrefix))
		if err != nil {
			return rec, fmt.Errorf("%w: %q: %v", ErrMalformed, line, err)
		}
		rec.Kind = KindEvent
		rec.Event = evt
	case strings.HasPrefix(line, telemetryPrefix):
		tel, err := parseTelemetry(strings.TrimPrefix(line, telemetryPrefix))
		if err != nil {
			return rec, fmt.Errorf("%w: %q: %v", ErrMalformed, line, err)
		}
		rec.Kind = KindTelemetry
		rec.Telemetry = tel
	}
	return rec, nil
}

// fields splits "k=v" pairs; bare words are returned separately
func fields(s string) (map[string]string, []string) {
	kv := make(map[string]string)
	var words []string
	for _, f := range strings.Fields(s) {
		if i := strings.IndexByte(f, '='); i > 0 {
			kv[f[:i]] = f[i+1:]
		} else {
			words = append(words, f)
		}
	}
	return kv, words
}

func parseUint(kv map[string]string, key string, base, bits int) (uint64, error) {
	v, ok := kv[key]
	if !ok {
		return 0, fmt.Errorf("missing %s", key)
	}
	n, err := strconv.ParseUint(v, base, bits)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func parseEvent(s string) (*Event, error) {
	kv, words := fields(s)
	if len(words) != 1 {
		return nil, errors.New("expected one event name")
	}
	evt := &Event{Name: strings.TrimSuffix(words[0], "!")}

	arg, err := parseUint(kv, "arg", 16, 8)
	if err != nil {
		return nil, err
	}
	clock, err := parseUint(kv, "clock", 10, 32)
	if err != nil {
		return nil, err
	}
	v1, err := parseUint(kv, "v1", 10, 32)
	if err != nil {
		return nil, err
	}
	v2, err := parseUint(kv, "v2", 10, 32)
	if err != nil {
		return nil, err
	}
	evt.Arg = uint8(arg)
	evt.Clock = uint32(clock)
	evt.Value1 = uint32(v1)
	evt.Value2 = uint32(v2)
	return evt, nil
}

func parseTelemetry(s string) (*Telemetry, error) {
	kv, _ := fields(s)
	tel := &Telemetry{Sampler: kv["sampler"], Error: kv["error"]}

	status, err := parseUint(kv, "status", 16, 32)
	if err != nil {
		return nil, err
	}
	faults, err := parseUint(kv, "faults", 10, 32)
	if err != nil {
		return nil, err
	}
	tel.Status = uint32(status)
	tel.Faults = uint32(faults)
	if tel.Error != "" {
		return tel, nil
	}

	for key, dst := range map[string]*uint32{"bus": &tel.Bus, "sense": &tel.Sense, "supply": &tel.Supply} {
		v, err := parseUint(kv, key, 10, 32)
		if err != nil {
			return nil, err
		}
		*dst = uint32(v)
	}
	return tel, nil
}

// Reader decodes records from a debug stream
type Reader struct {
	sc *bufio.Scanner
}

// NewReader reads lines from r
func NewReader(r io.Reader) *Reader {
	return &Reader{sc: bufio.NewScanner(r)}
}

// Next returns the next record. Malformed lines come back as KindText
// together with an ErrMalformed error so the caller can keep going.
// io.EOF marks the end of the stream.
func (r *Reader) Next() (Record, error) {
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return Record{}, err
		}
		return Record{}, io.EOF
	}
	return Parse(r.sc.Text())
}
