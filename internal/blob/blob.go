// Package blob stores rendered inspection reports in an S3-compatible object
// store. The service treats it as an opaque collaborator: failures degrade the
// attachment, never the record.
package blob

import (
	"context"
)

type StoredObject struct {
	// Ref is the opaque key the service keeps on the record.
	Ref string
	// PublicLocator is the externally reachable URL of the object.
	PublicLocator string
}

type Store interface {
	Put(ctx context.Context, data []byte, contentType string) (*StoredObject, error)
	Get(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
}
