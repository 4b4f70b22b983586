// Copyright Contributors to the Open Cluster Management project
package store

import (
	"context"
)

// Kind identifies one of the ACL documents owned by the enforcement layer's
// configuration schema.
type Kind string

const (
	KindRoles        Kind = "roles"
	KindRolesMapping Kind = "rolesmapping"
)

// Kinds lists every document kind handled by a sync cycle.
var Kinds = []Kind{KindRoles, KindRolesMapping}

// RawDocument is the untyped key/value form a document has in the store.
type RawDocument map[string]interface{}

type GetStatus int

const (
	GetFound GetStatus = iota
	GetNotFound
	GetError
)

// GetResult is a tagged result for a document read. Callers switch on Status
// instead of interpreting error types.
type GetResult struct {
	Status  GetStatus
	Raw     RawDocument
	Version int64
	Err     error
}

type UpdateStatus int

const (
	UpdateOK UpdateStatus = iota
	UpdateConflict
	UpdateTransient
)

type UpdateResult struct {
	Status UpdateStatus
	Err    error
}

// DocumentStore is the contract with the backing document store.
type DocumentStore interface {
	// GetMany reads the given documents in one batched query.
	// A kind missing from the store reports GetNotFound, never an error.
	GetMany(ctx context.Context, kinds ...Kind) map[Kind]GetResult

	// Update writes a document using optimistic concurrency. The write only
	// lands if the stored version still matches expectedVersion; otherwise
	// the result is UpdateConflict.
	Update(ctx context.Context, kind Kind, raw RawDocument, expectedVersion int64) UpdateResult

	// Insert seeds a document that does not exist yet.
	Insert(ctx context.Context, kind Kind, raw RawDocument) error

	// NotifyReload hints the store to propagate the changed documents to its
	// consumers. Fire-and-forget; failures are logged, not returned.
	NotifyReload(ctx context.Context, kinds []Kind)
}
