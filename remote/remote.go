// Package remote defines the contract with the remote asset API: the
// capability the network source consumes and the error kinds it classifies.
// The HTTP implementation lives in remote/httpapi; tests and embedders can
// supply their own Client.
package remote

import (
	"context"
	"errors"
	"fmt"
)

// Asset is one named asset as served by the remote API.
type Asset struct {
	Path        string
	Content     []byte
	ContentHash string
	Size        int64
}

// Client fetches a named asset's raw content at a given ref (branch or tag).
// Read-only: there is no write capability against the remote API.
type Client interface {
	FetchAsset(ctx context.Context, path, ref string) (*Asset, error)
}

// Error kinds the network source cares about. Implementations wrap these
// with %w so errors.Is works through any decoration.
var (
	ErrNotFound     = errors.New("remote: asset not found")
	ErrUnauthorized = errors.New("remote: unauthorized")
	// ErrForbidden covers both quota exhaustion and real permission denials;
	// the API does not distinguish them, so it stays retryable.
	ErrForbidden = errors.New("remote: rate limited or forbidden")
)

// APIError reports a non-2xx response outside the mapped kinds above,
// carrying the upstream status and message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remote: upstream status %d: %s", e.Status, e.Message)
}

// IsPermanent reports whether err is a failure that retrying cannot fix:
// the asset does not exist or the credentials are bad. Forbidden (403) is
// treated as transient because it usually means rate limiting.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnauthorized)
}
