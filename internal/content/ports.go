package content

import (
	"context"

	"sefaria/internal/platform/sefariaapi"
)

//go:generate mockgen -source=ports.go -destination=mock_ports_test.go -package=content

// Resolver maps refs to books. *library.Library implements it.
type Resolver interface {
	ResolveBookTitle(ref string) (string, bool)
	CategoryForTitle(title string) (string, bool)
	SectionRef(ref string) string
}

// Fetcher is the network tier. *sefariaapi.Client implements it.
type Fetcher interface {
	GetText(ctx context.Context, ref string) (*sefariaapi.TextResponse, error)
	GetLinks(ctx context.Context, ref string) ([]sefariaapi.RawLink, error)
}

// Prioritizer is told about books served from the network so their archives
// are fetched sooner.
type Prioritizer interface {
	PrioritizeDownload(title string)
}

// Prompter asks the user whether a failed network request should be retried.
type Prompter interface {
	ConfirmRetry(ctx context.Context, ref string, err error) bool
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, ref string, err error) bool

func (f PrompterFunc) ConfirmRetry(ctx context.Context, ref string, err error) bool {
	return f(ctx, ref, err)
}
