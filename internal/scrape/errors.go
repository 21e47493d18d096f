package scrape

import (
	"errors"
	"fmt"
)

// FailureKind classifies scrape failures for retry policy. Transient
// kinds are retried with backoff; structural kinds are deferred, since
// retrying a missing tab or a changed page layout cannot help.
type FailureKind string

// Failure kinds.
const (
	FailurePoolExhausted      FailureKind = "pool_exhausted"
	FailureNavigationTimeout  FailureKind = "navigation_timeout"
	FailureSessionCrash       FailureKind = "session_crash"
	FailureSectionUnavailable FailureKind = "section_unavailable"
	FailureParse              FailureKind = "parse_error"
	FailureStorage            FailureKind = "storage_error"
	FailureUnknown            FailureKind = "unknown"
)

// Transient reports whether the kind warrants an in-place retry.
func (k FailureKind) Transient() bool {
	switch k {
	case FailurePoolExhausted, FailureNavigationTimeout, FailureSessionCrash, FailureStorage:
		return true
	}
	return false
}

// Structural reports whether the kind indicates a page or layout problem
// that retrying cannot fix.
func (k FailureKind) Structural() bool {
	return k == FailureSectionUnavailable || k == FailureParse
}

// Error is the classified scrape failure.
type Error struct {
	Kind    FailureKind
	Section Section
	Msg     string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// NewPoolExhausted marks a failed session acquisition.
func NewPoolExhausted(err error) error {
	return &Error{Kind: FailurePoolExhausted, Err: err}
}

// NewNavigationTimeout marks a page load that never stabilized.
func NewNavigationTimeout(url string, err error) error {
	return &Error{Kind: FailureNavigationTimeout, Msg: url, Err: err}
}

// NewSessionCrash marks a browser session that died or was abandoned
// mid-action.
func NewSessionCrash(err error) error {
	return &Error{Kind: FailureSessionCrash, Err: err}
}

// NewSectionUnavailable marks a section whose tab or content marker never
// appeared.
func NewSectionUnavailable(section Section, err error) error {
	return &Error{Kind: FailureSectionUnavailable, Section: section, Err: err}
}

// NewParseError marks a DOM that rendered but did not contain the
// section's required structure.
func NewParseError(section Section, msg string) error {
	return &Error{Kind: FailureParse, Section: section, Msg: msg}
}

// NewStorageError marks a persistence failure. Writes are retried
// without re-scraping.
func NewStorageError(err error) error {
	return &Error{Kind: FailureStorage, Err: err}
}

// KindOf extracts the failure kind from an error chain.
func KindOf(err error) FailureKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return FailureUnknown
}
