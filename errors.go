package zipfsm

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel format errors. The core FSMs return them either as is or wrapped
// with errors.Wrap (for example a central directory header missing its
// ZIP64 extra field), and drivers may wrap them further with
// offset/operation context; errors.Is still matches through the wrap.
var (
	// ErrNotAZipFile is returned when no end-of-central-directory signature
	// can be found within the valid backward-scan window.
	ErrNotAZipFile = errors.New("zipfsm: not a zip file")

	// ErrInvalidEocd is returned when an end-of-central-directory record (or
	// one of its ZIP64 companions) is structurally invalid.
	ErrInvalidEocd = errors.New("zipfsm: invalid end of central directory record")

	// ErrInvalidLocalHeader is returned when a local file header's signature
	// does not match.
	ErrInvalidLocalHeader = errors.New("zipfsm: invalid local file header")

	// ErrInvalidCentralHeader is returned when a central directory header is
	// structurally invalid, including a missing required ZIP64 extra field.
	ErrInvalidCentralHeader = errors.New("zipfsm: invalid central directory header")
)

// UnsupportedError reports a structurally valid but unsupported feature,
// such as an unregistered compression method or a multi-disk archive.
type UnsupportedError struct {
	Detail string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("zipfsm: unsupported: %s", e.Detail)
}

// ErrMultiDisk is returned when an archive's end-of-central-directory record
// declares more than one disk; multi-disk archives are out of scope.
var ErrMultiDisk = &UnsupportedError{Detail: "multi-disk archives are not supported"}

func errUnsupportedMethod(method uint16) error {
	return &UnsupportedError{Detail: fmt.Sprintf("compression method %d", method)}
}

// WrongSizeError reports that the number of bytes produced while decoding an
// entry did not match the size declared for it.
type WrongSizeError struct {
	Expected uint64
	Actual   uint64
}

func (e *WrongSizeError) Error() string {
	return fmt.Sprintf("zipfsm: wrong size: expected %d bytes, got %d", e.Expected, e.Actual)
}

// WrongChecksumError reports that the CRC-32 of the bytes produced while
// decoding an entry did not match the checksum declared for it.
type WrongChecksumError struct {
	Expected uint32
	Actual   uint32
}

func (e *WrongChecksumError) Error() string {
	return fmt.Sprintf("zipfsm: wrong checksum: expected %#08x, got %#08x", e.Expected, e.Actual)
}

// needMoreError signals that a parser needs at least AtLeast bytes to make
// progress. It never escapes the package: FSM Process loops translate it
// into a request for more input rather than surfacing it as an error to
// drivers.
type needMoreError struct {
	atLeast int
}

func (e *needMoreError) Error() string {
	return fmt.Sprintf("zipfsm: need at least %d bytes", e.atLeast)
}

func needMore(n int) error { return &needMoreError{atLeast: n} }

// isNeedMore reports whether err is a needMoreError, returning the minimum
// byte count required to retry the parse.
func isNeedMore(err error) (int, bool) {
	var n *needMoreError
	if errors.As(err, &n) {
		return n.atLeast, true
	}
	return 0, false
}

// wrapIO attaches operation and offset context to an I/O error from a
// driver's byte source, while preserving it for errors.Cause/errors.Unwrap.
func wrapIO(op string, offset uint64, err error) error {
	return errors.Wrapf(err, "zipfsm: io error during %s at offset %d", op, offset)
}
