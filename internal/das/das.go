// Package das implements the asset source client against a DAS
// (Digital Asset Standard) indexing API such as Helius.
package das

import (
	"context"
	"fmt"

	"nftgate/internal/domain"
)

// AssetFetcher retrieves the full owned-asset list for a wallet.
type AssetFetcher interface {
	// AssetsByOwner issues a single indexed query for all assets owned
	// by the address. Truncated indexer responses are returned as-is;
	// pagination is a known limitation.
	AssetsByOwner(ctx context.Context, owner string) ([]domain.AssetRecord, error)
}

// TransportError is the typed failure for everything that goes wrong at
// the indexer boundary: request errors, non-success status, JSON-RPC
// error objects and malformed result envelopes. It never escapes as a
// panic; callers receive it as an error value.
type TransportError struct {
	// StatusCode is the HTTP status when one was received, 0 otherwise.
	StatusCode int

	// Cause describes the failure for logs and operator notifications.
	Cause string

	// Err is the underlying error when one exists.
	Err error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("das transport error (status %d): %s", e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("das transport error: %s", e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
