// README: Document store abstraction (get/put/update/delete/query/watch/transactions).
package docstore

import (
	"context"
	"errors"

	"newber/internal/apperr"
)

// Record is one document's fields. Integers are int64, floats float64, nested objects Record or
// map[string]any, timestamps time.Time.
type Record map[string]any

var (
	ErrNotFound = apperr.New(apperr.ErrNotFound, "document not found")

	// ErrReadAfterWrite mirrors Firestore: every transactional read must precede the first write.
	ErrReadAfterWrite = errors.New("docstore: read after write in transaction")
)

type Op string

const (
	OpEqual    Op = "=="
	OpNotEqual Op = "!="
)

type Filter struct {
	Field string
	Op    Op
	Value any
}

func Eq(field string, v any) Filter {
	return Filter{Field: field, Op: OpEqual, Value: v}
}

func NotEq(field string, v any) Filter {
	return Filter{Field: field, Op: OpNotEqual, Value: v}
}

// Increment is an update transform that adds By to an integer field (missing field counts as 0).
type Increment struct {
	By int64
}

func Inc(n int64) Increment {
	return Increment{By: n}
}

type Snapshot struct {
	Collection string
	ID         string
	Data       Record
	Exists     bool
}

// Handle stops a watch. Once Cancel returns no further snapshot is dispatched; a callback that
// was already running when Cancel was called may still finish.
type Handle interface {
	Cancel()
}

// Tx is the view of the store inside RunTransaction. All Gets must come before any write.
type Tx interface {
	Get(collection, id string) (Record, error)
	Set(collection, id string, rec Record) error
	Update(collection, id string, fields Record) error
	Delete(collection, id string) error
}

type Store interface {
	Get(ctx context.Context, collection, id string) (Record, error)
	Put(ctx context.Context, collection, id string, rec Record) error
	// Update fails with ErrNotFound when the document does not exist.
	Update(ctx context.Context, collection, id string, fields Record) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, filters ...Filter) ([]Snapshot, error)
	// Watch calls fn with the current state and then with every change to the document.
	// fn runs on a store-owned goroutine and must not block for long.
	Watch(ctx context.Context, collection, id string, fn func(Snapshot)) (Handle, error)
	// RunTransaction commits every write staged by fn atomically, or none if fn returns an error.
	// The error returned by fn is returned unchanged.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
