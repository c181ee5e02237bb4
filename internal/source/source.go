// Package source defines the contract with the remote stream enumeration and
// transfer collaborator, plus an HTTP-backed implementation of it.
package source

import (
	"context"
	"errors"

	"mediafetch/internal/selection"
)

var (
	// ErrNotFound indicates the asset does not exist or is unavailable.
	ErrNotFound = errors.New("asset not found")

	// ErrInvalidReference indicates the asset reference is malformed.
	ErrInvalidReference = errors.New("invalid asset reference")

	// ErrUnavailable indicates the enumeration service could not be reached
	// or timed out. Unlike the other two, this is transient.
	ErrUnavailable = errors.New("source unavailable")
)

// AssetInfo is the basic metadata of a remote media asset.
type AssetInfo struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	ThumbnailURL    string `json:"thumbnail_url"`
	DurationSeconds int64  `json:"duration_seconds"`
	ViewCount       int64  `json:"view_count"`
}

// Provider enumerates streams for an asset and transfers stream bytes.
//
// Resolve failures distinguish not-found, malformed reference, and
// unreachable service via the package sentinels. Fetch blocks until the
// transfer completes and fails if zero bytes were written; it is suitable for
// running on a worker goroutine.
type Provider interface {
	Resolve(ctx context.Context, ref string) (AssetInfo, []selection.StreamDescriptor, error)
	Fetch(ctx context.Context, stream selection.StreamDescriptor, destPath string) error
}
