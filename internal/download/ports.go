package download

import (
	"context"
	"io"

	"sefaria/internal/platform/sefariaapi"
)

// Source is the export host. *sefariaapi.Client implements it.
type Source interface {
	GetManifest(ctx context.Context) (*sefariaapi.Manifest, error)
	DownloadArchive(ctx context.Context, title string, dst io.Writer, progress func(received, total int64)) error
}

// Catalog lists the titles of a package. *library.Library implements it.
type Catalog interface {
	Titles() []string
	TitlesInCategories(cats []string) []string
}
