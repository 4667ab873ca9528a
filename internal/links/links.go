// Package links turns the link list of a section into the per category
// summary shown next to the text.
package links

import (
	"sort"

	"sefaria/internal/entity"
)

const (
	CategoryCommentary = "Commentary"
	// CategoryAll is the aggregate of every link.
	CategoryAll = "All"
	// CategoryOther collects links that carry no category.
	CategoryOther = "Other"
)

// PriorityCommentators sort ahead of every other commentator, in this order.
var PriorityCommentators = []string{"Rashi", "Ibn Ezra", "Ramban", "Sforno"}

type BookSummary struct {
	Title    string   `json:"title"`
	Category string   `json:"category"`
	Count    int      `json:"count"`
	RefList  []string `json:"refList"`
}

type CategorySummary struct {
	Category string        `json:"category"`
	Count    int           `json:"count"`
	Books    []BookSummary `json:"books"`
}

// Summarize groups links by category and then by text title. Commentators
// known to apply to the section but absent from links are listed with a zero
// count.
func Summarize(links []entity.LinkStub, commentators []string) []CategorySummary {
	type bucket struct {
		count int
		books map[string]*BookSummary
	}
	buckets := make(map[string]*bucket)
	get := func(cat string) *bucket {
		b, ok := buckets[cat]
		if !ok {
			b = &bucket{books: make(map[string]*BookSummary)}
			buckets[cat] = b
		}
		return b
	}

	for _, l := range links {
		cat := l.Category
		if cat == "" {
			cat = CategoryOther
		}
		title := l.TextTitle
		if title == "" {
			title = l.SourceRef
		}
		b := get(cat)
		b.count++
		book, ok := b.books[title]
		if !ok {
			book = &BookSummary{Title: title, Category: cat, RefList: []string{}}
			b.books[title] = book
		}
		book.Count++
		book.RefList = append(book.RefList, l.SourceRef)
	}

	if len(commentators) > 0 {
		b := get(CategoryCommentary)
		for _, c := range commentators {
			if _, ok := b.books[c]; !ok {
				b.books[c] = &BookSummary{Title: c, Category: CategoryCommentary, RefList: []string{}}
			}
		}
	}

	var out []CategorySummary
	for cat, b := range buckets {
		cs := CategorySummary{Category: cat, Count: b.count, Books: make([]BookSummary, 0, len(b.books))}
		for _, book := range b.books {
			cs.Books = append(cs.Books, *book)
		}
		if cat == CategoryCommentary {
			sortCommentators(cs.Books)
		} else {
			sort.Slice(cs.Books, func(i, j int) bool { return cs.Books[i].Title < cs.Books[j].Title })
		}
		out = append(out, cs)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.Category == CategoryCommentary) != (b.Category == CategoryCommentary) {
			return a.Category == CategoryCommentary
		}
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Category < b.Category
	})

	// Drop an empty commentary bucket; append All unless there are no links.
	if len(out) > 0 && out[0].Category == CategoryCommentary && len(out[0].Books) == 0 {
		out = out[1:]
	}
	if len(links) > 0 {
		out = append(out, CategorySummary{Category: CategoryAll, Count: len(links), Books: []BookSummary{}})
	}
	if out == nil {
		out = []CategorySummary{}
	}
	return out
}

func sortCommentators(books []BookSummary) {
	rank := make(map[string]int, len(PriorityCommentators))
	for i, c := range PriorityCommentators {
		rank[c] = i
	}
	sort.Slice(books, func(i, j int) bool {
		ri, iok := rank[books[i].Title]
		rj, jok := rank[books[j].Title]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return books[i].Title < books[j].Title
		}
	})
}
