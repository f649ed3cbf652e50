package linereader

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRecord(t *testing.T) {
	r := NewReader(strings.NewReader("  23.5\r\n\r\n24.0\npartial"))

	rec, err := r.ReadRecord()
	require.NoError(t, err)
	assert.Equal(t, []byte("  23.5\r"), rec)

	rec, err = r.ReadRecord()
	require.NoError(t, err)
	assert.Equal(t, []byte("\r"), rec)

	rec, err = r.ReadRecord()
	require.NoError(t, err)
	assert.Equal(t, []byte("24.0"), rec)

	_, err = r.ReadRecord()
	assert.ErrorIs(t, err, io.EOF)
}

type stallReader struct{}

func (stallReader) Read(p []byte) (int, error) { return 0, nil }

func TestReadRecordTimeout(t *testing.T) {
	r := NewReader(stallReader{})
	_, err := r.ReadRecord()
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name   string
		record []byte
		want   string
	}{
		{"padded", []byte("  23.5\r"), "23.5"},
		{"carriage return only", []byte("\r"), ""},
		{"empty", nil, ""},
		{"tabs", []byte("\t 19.25 \t"), "19.25"},
		{"inner spaces kept", []byte(" 21 C "), "21 C"},
		{"unicode", []byte(" 22.1 °C"), "22.1 °C"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := Decode(test.record)
			require.NoError(t, err)
			assert.Equal(t, test.want, got)

			again, err := Decode([]byte(got))
			require.NoError(t, err)
			assert.Equal(t, got, again, "stripping must be idempotent")
		})
	}
}

func TestDecodeInvalid(t *testing.T) {
	_, err := Decode([]byte{'2', '3', 0xff})
	assert.ErrorIs(t, err, ErrInvalidText)
}

func TestWriteReading(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReading(&buf, Label, "23.5"))
	assert.Equal(t, "Temperatura: 23.5\n", buf.String())
}

func TestWriteRecord(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRecord(&buf, "25.00"))
	assert.Equal(t, "25.00\n", buf.String())

	assert.Error(t, WriteRecord(&buf, "a\nb"))

	rec, err := NewReader(&buf).ReadRecord()
	require.NoError(t, err)
	assert.Equal(t, []byte("25.00"), rec)
}
