// Package linereader implements the line protocol spoken by the temperature
// board: each record is a run of UTF-8 text terminated by a newline.
package linereader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Delimiter terminates every record on the wire.
const Delimiter = '\n'

// Label is the prefix printed in front of every reading.
const Label = "Temperatura:"

var (
	// ErrTimeout is returned when the underlying port reports a read timeout
	// before a full record arrives.
	ErrTimeout = errors.New("timed out waiting for record")
	// ErrInvalidText is returned by Decode when a record is not valid UTF-8.
	ErrInvalidText = errors.New("record is not valid UTF-8 text")
)

// Reader reads newline-terminated records.
type Reader struct {
	r *bufio.Reader
}

// NewReader creates a new record reader on top of r. A read from r that
// returns no bytes and no error is treated as a timeout, which is how
// go.bug.st/serial ports report an expired read deadline.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(timeoutReader{r})}
}

// ReadRecord blocks until a full record is available and returns it without
// the trailing delimiter. Bytes of an unterminated record that precede an
// error are discarded.
func (r *Reader) ReadRecord() ([]byte, error) {
	b, err := r.r.ReadBytes(Delimiter)
	if err != nil {
		return nil, err
	}
	return b[:len(b)-1], nil
}

type timeoutReader struct {
	io.Reader
}

func (r timeoutReader) Read(p []byte) (int, error) {
	n, err := r.Reader.Read(p)
	if n == 0 && err == nil && len(p) > 0 {
		return 0, ErrTimeout
	}
	return n, err
}

// Decode decodes a record as text and strips the surrounding whitespace.
// An empty string means the record carried nothing worth printing.
func Decode(record []byte) (string, error) {
	if !utf8.Valid(record) {
		return "", fmt.Errorf("%w: %q", ErrInvalidText, record)
	}
	return strings.TrimSpace(string(record)), nil
}

// FormatReading formats a decoded reading the way it is printed.
func FormatReading(label, text string) string {
	return label + " " + text
}

// WriteReading writes a decoded reading to w as a single line.
func WriteReading(w io.Writer, label, text string) error {
	_, err := io.WriteString(w, FormatReading(label, text)+"\n")
	return err
}

// WriteRecord writes text to w as a single record.
func WriteRecord(w io.Writer, text string) error {
	if strings.IndexByte(text, Delimiter) >= 0 {
		return fmt.Errorf("record %q contains a delimiter", text)
	}
	_, err := io.WriteString(w, text+"\n")
	return err
}
