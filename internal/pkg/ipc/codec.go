package ipc

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"
)

// maxLineSize bounds a single encoded message
const maxLineSize = 64 << 20

// Encoder writes newline-delimited messages. It is safe for concurrent use.
type Encoder struct {
	mu sync.Mutex
	w  io.Writer
}

// NewEncoder returns an encoder writing to w
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes m followed by a newline
func (e *Encoder) Encode(m Message) error {
	data, err := Marshal(m)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.w.Write(data); err != nil {
		return fmt.Errorf("ipc: write %s: %w", m.Kind(), err)
	}
	return nil
}

// Decoder reads newline-delimited messages
type Decoder struct {
	scanner *bufio.Scanner
}

// NewDecoder returns a decoder reading from r
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Decoder{scanner: scanner}
}

// Decode returns the next message. It returns io.EOF once the stream ends.
// Blank lines are skipped. A malformed line returns an error wrapping
// ErrMalformed or ErrUnknownKind; decoding can continue after it.
func (d *Decoder) Decode() (Message, error) {
	for d.scanner.Scan() {
		line := d.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		return Unmarshal(line)
	}
	if err := d.scanner.Err(); err != nil {
		if errors.Is(err, io.ErrClosedPipe) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("ipc: read: %w", err)
	}
	return nil, io.EOF
}

// IsRecoverable reports whether a Decode error only affected one line
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrMalformed) || errors.Is(err, ErrUnknownKind)
}
