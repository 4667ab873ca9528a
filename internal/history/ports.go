package history

import (
	"context"
	"net/url"

	"sefaria/internal/platform/sefariaapi"
)

// Syncer posts the pending log. *sefariaapi.Client implements it.
type Syncer interface {
	SyncHistory(ctx context.Context, form url.Values) (*sefariaapi.SyncResponse, error)
}

// Books names the book of a ref. *library.Library implements it.
type Books interface {
	ResolveBookTitle(ref string) (string, bool)
}
