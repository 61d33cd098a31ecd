package repository

import "errors"

// ErrNotFound is returned when a requested record is not found in the repository.
// This abstracts away the underlying storage implementation (SQL, NoSQL, etc.)
// from the service layer.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateVote is returned by the ledger when the storage uniqueness
// constraint rejects an insert. Callers must branch on it explicitly.
var ErrDuplicateVote = errors.New("duplicate vote")

// ErrCounterContended is returned when a counter kept changing under
// reconciliation for every attempt
var ErrCounterContended = errors.New("counter contended")
