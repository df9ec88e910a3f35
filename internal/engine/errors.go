package engine

import (
	"errors"
	"fmt"
)

// RuntimeError is an engine failure that is not a batch outcome.
//
// Batch outcomes (applied, rejected, reset) are reported in Result. A
// RuntimeError means the request itself could not be served:
//   - Stopped: the engine or tree no longer accepts work
//   - Unknown tree: no open tree has the id
//   - Duplicate tree: a tree with the id is already open
//   - Journal: the outcome was computed but could not be recorded
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// TreeID identifies the affected tree.
	TreeID string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeStopped indicates the engine or tree was stopped.
	ErrCodeStopped RuntimeErrorCode = "STOPPED"

	// ErrCodeUnknownTree indicates no open tree has the requested id.
	ErrCodeUnknownTree RuntimeErrorCode = "UNKNOWN_TREE"

	// ErrCodeDuplicateTree indicates a tree id is already open.
	ErrCodeDuplicateTree RuntimeErrorCode = "DUPLICATE_TREE"

	// ErrCodeJournal indicates a journal write failed.
	ErrCodeJournal RuntimeErrorCode = "JOURNAL_FAILED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.TreeID != "" {
		msg = fmt.Sprintf("%s (tree=%s)", msg, e.TreeID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error { return e.Err }

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsStopped reports whether err means the engine no longer accepts work.
func IsStopped(err error) bool { return hasCode(err, ErrCodeStopped) }

// IsUnknownTree reports whether err names a tree that is not open.
func IsUnknownTree(err error) bool { return hasCode(err, ErrCodeUnknownTree) }

// IsJournalError reports whether err is a failed journal write.
func IsJournalError(err error) bool { return hasCode(err, ErrCodeJournal) }

func newStoppedError(treeID string) *RuntimeError {
	return &RuntimeError{Code: ErrCodeStopped, Message: "engine stopped", TreeID: treeID}
}

func newUnknownTreeError(treeID string) *RuntimeError {
	return &RuntimeError{Code: ErrCodeUnknownTree, Message: "tree is not open", TreeID: treeID}
}

func newDuplicateTreeError(treeID string) *RuntimeError {
	return &RuntimeError{Code: ErrCodeDuplicateTree, Message: "tree is already open", TreeID: treeID}
}

func newJournalError(treeID, what string, err error) *RuntimeError {
	return &RuntimeError{Code: ErrCodeJournal, Message: "write " + what, TreeID: treeID, Err: err}
}
