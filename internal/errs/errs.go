// Package errs defines the structured error kinds scint surfaces at
// its boundaries and the exit-code table the CLI maps them to: a
// single Error type tagged with a Kind, whose exit code is looked up
// in a descriptor table.
package errs

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Kind identifies one of the error categories scint reports.
type Kind int

const (
	KindManifest Kind = iota
	KindLockfile
	KindResolve
	KindNetwork
	KindInstall
	KindCompile
	KindPermission
	KindPlatform
	KindCache
)

type descriptor struct {
	kind     Kind
	value    string
	exitCode int
}

var descriptors = []descriptor{
	{KindManifest, "MANIFEST_ERROR", 4},
	{KindLockfile, "LOCKFILE_ERROR", 5},
	{KindResolve, "RESOLVE_ERROR", 6},
	{KindNetwork, "NETWORK_ERROR", 7},
	{KindInstall, "INSTALL_ERROR", 8},
	{KindCompile, "COMPILE_ERROR", 9},
	{KindPermission, "PERMISSION_ERROR", 10},
	{KindPlatform, "PLATFORM_ERROR", 11},
	{KindCache, "CACHE_ERROR", 12},
}

func describe(k Kind) descriptor {
	for _, d := range descriptors {
		if d.kind == k {
			return d
		}
	}
	return descriptor{kind: k, value: "UNKNOWN_ERROR", exitCode: 1}
}

// Error is a single structured failure of a known Kind. It wraps an
// underlying cause the way pkg/errors.Wrap preserves a stack, and always
// knows its own exit code.
type Error struct {
	Kind    Kind
	Op      string // the operation that failed, e.g. "cache.Build"
	Subject string // the thing it failed on, e.g. a full-name or path
	Cause   error
}

func (e *Error) Error() string {
	d := describe(e.Kind)
	if e.Subject != "" {
		return fmt.Sprintf("%s: %s (%s): %v", e.Op, d.value, e.Subject, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, d.value, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// ExitCode returns the CLI exit code associated with e's kind.
func (e *Error) ExitCode() int { return describe(e.Kind).exitCode }

// New builds a structured Error, wrapping cause with pkg/errors so a stack
// trace is attached the first time a raw error crosses a component
// boundary.
func New(kind Kind, op, subject string, cause error) *Error {
	if cause == nil {
		cause = errors.New("unspecified error")
	}
	return &Error{Kind: kind, Op: op, Subject: subject, Cause: errors.WithStack(cause)}
}

// ExitCode extracts the exit code for any error, defaulting to 1 for
// errors that never crossed a structured boundary and 0 for nil.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var se *Error
	if errors.As(err, &se) {
		return se.ExitCode()
	}
	return 1
}

// Collect aggregates multiple failures (e.g. several follow-up jobs
// failing under fail_fast=false) into one error using go-multierror, so
// callers that need a single error value don't have to special-case the
// zero/one/many cases themselves.
func Collect(errs ...error) error {
	var merr *multierror.Error
	for _, e := range errs {
		if e != nil {
			merr = multierror.Append(merr, e)
		}
	}
	if merr == nil {
		return nil
	}
	return merr
}
