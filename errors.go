package coredata

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/coredata/internal/normalize"
	"github.com/hupe1980/coredata/internal/shard"
)

var (
	// ErrDatasetExists is matched by DatasetExistsError.
	ErrDatasetExists = errors.New("dataset already exists")
	// ErrDatasetNotFound is matched by DatasetNotFoundError.
	ErrDatasetNotFound = errors.New("dataset not found")
	// ErrRecordNotFound is matched by RecordNotFoundError.
	ErrRecordNotFound = errors.New("record not found")
	// ErrConfig is matched by ConfigError.
	ErrConfig = errors.New("invalid configuration")
	// ErrLineOutOfRange is returned by FetchLine for a line the shard does not have.
	ErrLineOutOfRange = errors.New("line out of range")
	// ErrClosed is returned when using a closed Store.
	ErrClosed = errors.New("store is closed")
)

// DatasetExistsError is returned when a conversion or publish target
// already holds a dataset.
type DatasetExistsError struct {
	Path string
}

func (e *DatasetExistsError) Error() string {
	return fmt.Sprintf("dataset already exists: %s", e.Path)
}

func (e *DatasetExistsError) Is(target error) bool { return target == ErrDatasetExists }

// DatasetNotFoundError is returned when a location has no metadata file.
type DatasetNotFoundError struct {
	Path string
}

func (e *DatasetNotFoundError) Error() string {
	return fmt.Sprintf("no dataset at %s", e.Path)
}

func (e *DatasetNotFoundError) Is(target error) bool { return target == ErrDatasetNotFound }

// RecordNotFoundError is returned for a sequence number outside [0, Len).
type RecordNotFoundError struct {
	Seq int
	Len int
}

func (e *RecordNotFoundError) Error() string {
	return fmt.Sprintf("record %d not found (dataset has %d records)", e.Seq, e.Len)
}

func (e *RecordNotFoundError) Is(target error) bool { return target == ErrRecordNotFound }

// ConfigError reports an invalid option value.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ConfigError struct {
	Field  string
	Reason string
	cause  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

func (e *ConfigError) Unwrap() error { return e.cause }

// IOError wraps a storage failure with the operation and blob involved.
// IO errors are propagated, never retried.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// translateError maps internal errors onto the public taxonomy. Errors that
// already belong to it, and context errors, pass through unchanged.
func translateError(op, path string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var (
		dee *DatasetExistsError
		dnf *DatasetNotFoundError
		rnf *RecordNotFoundError
		ce  *ConfigError
		ioe *IOError
	)
	if errors.As(err, &dee) || errors.As(err, &dnf) || errors.As(err, &rnf) || errors.As(err, &ce) || errors.As(err, &ioe) {
		return err
	}

	if errors.Is(err, shard.ErrInvalidCapacity) {
		return &ConfigError{Field: "LinesPerShard", Reason: err.Error(), cause: err}
	}
	if errors.Is(err, normalize.ErrUnknownOption) {
		return &ConfigError{Field: "preprocess", Reason: err.Error(), cause: err}
	}
	if errors.Is(err, ErrLineOutOfRange) || errors.Is(err, ErrClosed) {
		return err
	}
	return &IOError{Op: op, Path: path, Err: err}
}
