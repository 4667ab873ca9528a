package links

import (
	"context"

	"sefaria/internal/entity"
)

// Source is the content cache as seen by the aggregator. *content.Service
// implements it.
type Source interface {
	Links(ctx context.Context, ref string) ([]entity.LinkStub, error)
	Commentators(sectionRef string) []string
}

// Sectioner maps a ref to its section. *library.Library implements it.
type Sectioner interface {
	SectionRef(ref string) string
}

type Aggregator struct {
	source   Source
	sections Sectioner
}

func NewAggregator(source Source, sections Sectioner) *Aggregator {
	return &Aggregator{source: source, sections: sections}
}

// SummarizeLinks summarizes links using the commentator list cached for
// sectionRef.
func (a *Aggregator) SummarizeLinks(sectionRef string, links []entity.LinkStub) []CategorySummary {
	return Summarize(links, a.source.Commentators(sectionRef))
}

// SummarizeRef loads the links of ref and summarizes them.
func (a *Aggregator) SummarizeRef(ctx context.Context, ref string) ([]CategorySummary, error) {
	links, err := a.source.Links(ctx, ref)
	if err != nil {
		return nil, err
	}
	return a.SummarizeLinks(a.sections.SectionRef(ref), links), nil
}
