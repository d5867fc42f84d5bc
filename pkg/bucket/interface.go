// Package bucket defines the payload store used for version content.
// Payloads are opaque byte sequences addressed by an id.
package bucket

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("bucket entry not found")

type Store interface {
	Put(ctx context.Context, id string, data []byte) error
	// Get returns ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) ([]byte, error)
	// Reset removes all entries.
	Reset(ctx context.Context) error
}
