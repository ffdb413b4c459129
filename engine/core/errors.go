package core

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Kind classifies an error by how the caller is expected to react to it.
type Kind int

const (
	KindUnknown Kind = iota
	// Initialization failures abort startup.
	KindInit
	// Synchronization failures surface unexpected semaphore, acquire, submit or present results.
	KindSync
	// Capacity failures are recoverable: the operation is skipped or degraded.
	KindCapacity
	// Usage failures report a broken call contract.
	KindUsage
)

func (k Kind) String() string {
	switch k {
	case KindInit:
		return "init"
	case KindSync:
		return "sync"
	case KindCapacity:
		return "capacity"
	case KindUsage:
		return "usage"
	default:
		return "unknown"
	}
}

// Kind markers, test with errors.Is.
var (
	ErrInit     = errors.New("initialization error")
	ErrSync     = errors.New("synchronization error")
	ErrCapacity = errors.New("capacity error")
	ErrUsage    = errors.New("usage error")
)

var (
	ErrNoSuitableDevice     = errors.New("no suitable physical device")
	ErrMissingExtension     = errors.New("required extension not available")
	ErrNoSurfaceFormat      = errors.New("no acceptable surface format")
	ErrAllocatorExhausted   = errors.New("memory block exhausted")
	ErrStagingExhausted     = errors.New("staging region exhausted")
	ErrDescriptorsExhausted = errors.New("descriptor collection exhausted")
	ErrLayoutsDeclared      = errors.New("descriptor layouts already declared")
	ErrFrameNotAcquired     = errors.New("no frame acquired for submission")
	ErrOutputInvalid        = errors.New("presentation output is invalid")
	ErrInvalidTexture       = errors.New("invalid texture data")
	ErrAssetNotFound        = errors.New("asset not found")
)

func (k Kind) marker() error {
	switch k {
	case KindInit:
		return ErrInit
	case KindSync:
		return ErrSync
	case KindCapacity:
		return ErrCapacity
	case KindUsage:
		return ErrUsage
	default:
		return nil
	}
}

func mark(err error, kind Kind) error {
	if m := kind.marker(); m != nil {
		return errors.Mark(err, m)
	}
	return err
}

// NewError creates an error of the given kind, recording the caller as its source location.
func NewError(kind Kind, format string, args ...interface{}) error {
	return mark(errors.NewWithDepthf(1, format, args...), kind)
}

// Raise creates an error of the given kind that also matches sentinel with errors.Is.
func Raise(sentinel error, kind Kind, format string, args ...interface{}) error {
	return mark(errors.Mark(errors.NewWithDepthf(1, format, args...), sentinel), kind)
}

// WrapError annotates err while keeping it as the cause. The new link records the caller.
func WrapError(err error, kind Kind, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return mark(errors.WrapWithDepthf(1, err, format, args...), kind)
}

// KindOf reports the most severe kind marked anywhere in the chain.
func KindOf(err error) Kind {
	for _, k := range []Kind{KindInit, KindSync, KindCapacity, KindUsage} {
		if errors.Is(err, k.marker()) {
			return k
		}
	}
	return KindUnknown
}

func IsCapacity(err error) bool {
	return errors.Is(err, ErrCapacity)
}

// ErrorLocation returns "file:line function" for the innermost recorded call site.
func ErrorLocation(err error) string {
	file, line, fn, ok := errors.GetOneLineSource(err)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s:%d %s", file, line, fn)
}
