// Package library resolves refs to the books of the table of contents.
package library

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"sefaria/internal/entity"
)

const (
	CategoryCommentary = "Commentary"
	CategoryTargum     = "Targum"

	// Offline data produced before the commentary refactor.
	legacyCommentary = "Commentary2"

	defaultDepth = 2
)

// Library is the table-of-contents index. It is safe for concurrent use.
type Library struct {
	mu      sync.RWMutex
	indexes map[string]entity.BookIndex
	toc     []entity.TOCNode
}

func New() *Library {
	return &Library{indexes: make(map[string]entity.BookIndex)}
}

// Load replaces the index with the titles found in toc.
func (l *Library) Load(toc []entity.TOCNode) {
	indexes := make(map[string]entity.BookIndex)
	walk(toc, nil, indexes)

	l.mu.Lock()
	l.indexes = indexes
	l.toc = toc
	l.mu.Unlock()
}

// LoadJSON reads a TOC document.
func (l *Library) LoadJSON(r io.Reader) error {
	var toc []entity.TOCNode
	if err := json.NewDecoder(r).Decode(&toc); err != nil {
		return fmt.Errorf("decode toc: %w", err)
	}
	l.Load(toc)
	return nil
}

func (l *Library) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return l.LoadJSON(f)
}

func walk(nodes []entity.TOCNode, path []string, out map[string]entity.BookIndex) {
	for _, n := range nodes {
		if n.Title == "" {
			walk(n.Contents, append(append([]string{}, path...), n.Category), out)
			continue
		}
		cats := n.Categories
		if len(cats) == 0 {
			cats = append([]string{}, path...)
		}
		out[n.Title] = entity.BookIndex{
			Title:        n.Title,
			HeTitle:      n.HeTitle,
			Categories:   cats,
			Depth:        n.Depth,
			AddressTypes: n.AddressTypes,
			SectionNames: n.SectionNames,
		}
	}
}

// TOC returns the tree last loaded.
func (l *Library) TOC() []entity.TOCNode {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.toc
}

func (l *Library) Index(title string) (entity.BookIndex, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx, ok := l.indexes[title]
	return idx, ok
}

// Titles returns every known title, unordered.
func (l *Library) Titles() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.indexes))
	for t := range l.indexes {
		out = append(out, t)
	}
	return out
}

// TitlesInCategories returns the titles whose category path starts with cats.
// An empty cats matches every title.
func (l *Library) TitlesInCategories(cats []string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []string
	for title, idx := range l.indexes {
		if hasPrefix(idx.Categories, cats) {
			out = append(out, title)
		}
	}
	return out
}

func hasPrefix(path, prefix []string) bool {
	if len(prefix) > len(path) {
		return false
	}
	for i := range prefix {
		if path[i] != prefix[i] {
			return false
		}
	}
	return true
}

// ResolveBookTitle returns the longest known title that prefixes ref. Titles
// may contain numerals, so the scan shrinks from the full string and the first
// hit wins.
func (l *Library) ResolveBookTitle(ref string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := len(ref); i > 0; i-- {
		if _, ok := l.indexes[ref[:i]]; ok {
			return ref[:i], true
		}
	}
	return "", false
}

// CategoryForTitle returns the category used to group a book. Commentary and
// Targum take precedence over the first listed category.
func (l *Library) CategoryForTitle(title string) (string, bool) {
	idx, ok := l.Index(title)
	if !ok {
		return "", false
	}
	cat := idx.PrimaryCategory()
	if cat == legacyCommentary {
		cat = CategoryCommentary
	}
	if idx.HasCategory(CategoryCommentary) {
		cat = CategoryCommentary
	} else if idx.HasCategory(CategoryTargum) {
		cat = CategoryTargum
	}
	return cat, true
}

// SectionRef truncates a segment ref to the section that is fetched and
// cached as a unit. Refs that do not resolve are returned unchanged.
func (l *Library) SectionRef(ref string) string {
	title, ok := l.ResolveBookTitle(ref)
	if !ok {
		return ref
	}
	idx, _ := l.Index(title)
	depth := idx.Depth
	if depth == 0 {
		depth = defaultDepth
	}

	address := strings.TrimSpace(ref[len(title):])
	if i := strings.Index(address, "-"); i >= 0 {
		address = address[:i]
	}
	if address == "" || depth == 1 {
		return title
	}
	parts := strings.Split(address, ":")
	if len(parts) >= depth {
		parts = parts[:depth-1]
	}
	return title + " " + strings.Join(parts, ":")
}

// ParentRef drops the last addressing level: "Zohar 1:2:3" -> "Zohar 1:2",
// "Genesis 1" -> "Genesis".
func ParentRef(ref string) string {
	if i := strings.LastIndex(ref, ":"); i >= 0 {
		return ref[:i]
	}
	if i := strings.LastIndex(ref, " "); i >= 0 {
		return ref[:i]
	}
	return ref
}

// FileStem maps a ref to the name of its offline JSON file.
func FileStem(ref string) string {
	return strings.NewReplacer(" ", "_", ":", ".").Replace(ref)
}
