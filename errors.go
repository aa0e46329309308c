package exfat

import (
	"errors"

	"github.com/dsoprea/go-logging"
)

// ErrorKind classifies a build or parse failure so callers can react to the
// failure mode rather than parsing error strings.
type ErrorKind int

const (
	// ErrorKindNone is the zero value; never attached to a real error.
	ErrorKindNone ErrorKind = iota

	// ErrorKindMalformedImage covers main/backup boot-region mismatch,
	// nonzero must_be_zero, boot-signature mismatch, and boot-checksum
	// mismatch.
	ErrorKindMalformedImage

	// ErrorKindMalformedFat covers FAT successors outside the valid
	// cluster range, cycles, and unparseable FAT byte lengths.
	ErrorKindMalformedFat

	// ErrorKindMalformedDirectory covers unknown in-use type-codes, orphan
	// FileName entries, secondary-count mismatches, and name-length
	// overruns.
	ErrorKindMalformedDirectory

	// ErrorKindMalformedUpcaseTable covers compressed-run overflow and
	// checksum mismatch against the table's directory entry.
	ErrorKindMalformedUpcaseTable

	// ErrorKindHostIoError covers unreadable source paths and unwritable
	// destination paths.
	ErrorKindHostIoError

	// ErrorKindInvalidArguments covers missing boot-sector templates and
	// contradictory CLI flags.
	ErrorKindInvalidArguments
)

func (ek ErrorKind) String() string {
	switch ek {
	case ErrorKindMalformedImage:
		return "MalformedImage"
	case ErrorKindMalformedFat:
		return "MalformedFat"
	case ErrorKindMalformedDirectory:
		return "MalformedDirectory"
	case ErrorKindMalformedUpcaseTable:
		return "MalformedUpcaseTable"
	case ErrorKindHostIoError:
		return "HostIoError"
	case ErrorKindInvalidArguments:
		return "InvalidArguments"
	default:
		return "None"
	}
}

// KindedError pairs an ErrorKind with a human-readable context string. It
// implements error and unwraps to the underlying cause.
type KindedError struct {
	Kind    ErrorKind
	Context string
	Cause   error
}

func (ke *KindedError) Error() string {
	if ke.Cause != nil {
		return ke.Kind.String() + ": " + ke.Context + ": " + ke.Cause.Error()
	}

	return ke.Kind.String() + ": " + ke.Context
}

func (ke *KindedError) Unwrap() error {
	return ke.Cause
}

// NewKindedError builds a KindedError and returns it unwrapped, so that
// errors.As and IsKind find it directly.
func NewKindedError(kind ErrorKind, context string, cause error) error {
	ke := &KindedError{
		Kind:    kind,
		Context: context,
		Cause:   cause,
	}

	log.Wrap(ke)

	return ke
}

// IsKind reports whether err (or something it wraps) is a KindedError of the
// given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ke *KindedError
	if errors.As(err, &ke) {
		return ke.Kind == kind
	}

	return false
}
