package thermline

import "fmt"

// Kind classifies the faults that stop the daemon. A Kind can be used as the
// target of errors.Is.
type Kind uint8

const (
	_ Kind = iota
	// DeviceUnavailable means the serial device could not be opened.
	DeviceUnavailable
	// DecodeFailure means a record was not valid text.
	DecodeFailure
	// IOFailure means reading from the device failed.
	IOFailure
)

// String returns a string representation of the kind.
func (k Kind) String() string {
	switch k {
	case DeviceUnavailable:
		return "device unavailable"
	case DecodeFailure:
		return "decode failure"
	case IOFailure:
		return "I/O failure"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

func (k Kind) Error() string { return k.String() }

// Error is a fault of a known kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the kind of e.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}
