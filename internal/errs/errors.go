// Package errs holds the error taxonomy shared by the backend clients,
// the local cache and the reconciliation services.
//
// Every typed error reports its kind through errors.Is against one of the
// sentinels below, so callers can branch without type assertions:
//
//	if errors.Is(err, errs.ErrDuplicatesPresent) { ... }
package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrBackend marks a remote call that returned error entries.
	ErrBackend = errors.New("backend error")

	// ErrDuplicatesPresent marks a blocked creation because the remote
	// namespace already violates name uniqueness.
	ErrDuplicatesPresent = errors.New("duplicates present")

	// ErrNotFound marks a referenced name or object that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrPersistence marks a failed local store write.
	ErrPersistence = errors.New("persistence error")
)

// APIError is one error entry returned by the remote catalog API.
type APIError struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Detail   string `json:"detail"`
	Field    string `json:"field,omitempty"`
}

func (e APIError) String() string {
	if e.Field != "" {
		return fmt.Sprintf("%s/%s: %s (field %s)", e.Category, e.Code, e.Detail, e.Field)
	}
	return fmt.Sprintf("%s/%s: %s", e.Category, e.Code, e.Detail)
}

// BackendError wraps the error entries of a failed remote call verbatim.
type BackendError struct {
	Op         string
	StatusCode int
	Errors     []APIError
	Err        error
}

func (e *BackendError) Error() string {
	var b strings.Builder
	b.WriteString("backend ")
	b.WriteString(e.Op)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	switch {
	case len(e.Errors) > 0:
		b.WriteString(": ")
		parts := make([]string, len(e.Errors))
		for i, ae := range e.Errors {
			parts[i] = ae.String()
		}
		b.WriteString(strings.Join(parts, "; "))
	case e.Err != nil:
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *BackendError) Unwrap() error { return e.Err }

func (e *BackendError) Is(target error) bool { return target == ErrBackend }

// First returns the first error entry, if any.
func (e *BackendError) First() (APIError, bool) {
	if len(e.Errors) == 0 {
		return APIError{}, false
	}
	return e.Errors[0], true
}

func NewBackendError(op string, entries ...APIError) *BackendError {
	return &BackendError{Op: op, Errors: entries}
}

// DuplicatesPresentError blocks creation until cleanup has run.
type DuplicatesPresentError struct {
	Environment string
	Items       map[string][]string
	Categories  map[string][]string
}

func (e *DuplicatesPresentError) Error() string {
	names := make([]string, 0, len(e.Items)+len(e.Categories))
	for n := range e.Categories {
		names = append(names, "category "+n)
	}
	for n := range e.Items {
		names = append(names, "item "+n)
	}
	sort.Strings(names)
	return fmt.Sprintf("%s has duplicate catalog names, run cleanup first: %s",
		e.Environment, strings.Join(names, ", "))
}

func (e *DuplicatesPresentError) Is(target error) bool { return target == ErrDuplicatesPresent }

// NotFoundError reports a missing named resource.
type NotFoundError struct {
	Resource string
	Name     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.Name)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func NewNotFoundError(resource, name string) *NotFoundError {
	return &NotFoundError{Resource: resource, Name: name}
}

// PersistenceError reports a rolled back local transaction. Remote writes
// already committed are not undone.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("local store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// Persist wraps err as a PersistenceError; nil stays nil.
func Persist(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

func IsBackend(err error) bool           { return errors.Is(err, ErrBackend) }
func IsDuplicatesPresent(err error) bool { return errors.Is(err, ErrDuplicatesPresent) }
func IsNotFound(err error) bool          { return errors.Is(err, ErrNotFound) }
func IsPersistence(err error) bool       { return errors.Is(err, ErrPersistence) }
