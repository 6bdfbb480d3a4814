package source

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	// KindTransient: timeouts, navigation failures, 5xx. Worth retrying.
	KindTransient ErrorKind = iota
	// KindParse: the page came back but the extraction failed or was
	// incomplete. The record is skipped; the run continues.
	KindParse
	// KindBlocked: the site is refusing us (403, 429, captcha wall).
	// Fatal for the run.
	KindBlocked
	// KindUnreachable: cannot reach the site at all (DNS, connect).
	// Fatal for the run.
	KindUnreachable
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindParse:
		return "parse"
	case KindBlocked:
		return "blocked"
	case KindUnreachable:
		return "unreachable"
	}
	return "unknown"
}

// FetchError is the typed failure every Source method returns.
type FetchError struct {
	Kind ErrorKind
	Op   string // "listing" or "detail"
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s %s %s: %v", e.Kind, e.Op, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func Transient(op, url string, err error) error {
	return &FetchError{Kind: KindTransient, Op: op, URL: url, Err: err}
}

func ParseFailure(op, url string, err error) error {
	return &FetchError{Kind: KindParse, Op: op, URL: url, Err: err}
}

func Blocked(op, url string, err error) error {
	return &FetchError{Kind: KindBlocked, Op: op, URL: url, Err: err}
}

func Unreachable(op, url string, err error) error {
	return &FetchError{Kind: KindUnreachable, Op: op, URL: url, Err: err}
}

// KindOf reports the fetch-error kind; unknown errors count as transient so
// the retry budget, not the classifier, decides their fate.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindTransient
}

// IsFatal reports whether the error is systemic and must abort the run.
func IsFatal(err error) bool {
	k := KindOf(err)
	return k == KindBlocked || k == KindUnreachable
}

func IsTransient(err error) bool { return KindOf(err) == KindTransient }
