// Package content resolves refs to section content from memory, a downloaded
// book archive or the network, in that order.
package content

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"sefaria/internal/entity"
	"sefaria/internal/library"
	"sefaria/internal/metrics"
	"sefaria/internal/platform/sefariaapi"

	"golang.org/x/sync/singleflight"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("no connectivity")
	ErrParse       = errors.New("malformed offline content")
)

const CategoryCommentary = "Commentary"

type Options struct {
	IsLinkRequest bool
}

type Config struct {
	LibraryDir string
	SourceDir  string
	// DisableLocalArchives forces the network tier. Debug only.
	DisableLocalArchives bool
}

// Stats counts resolutions per tier.
type Stats struct {
	Memory  int `json:"memory"`
	Local   int `json:"local"`
	Network int `json:"network"`
	Failed  int `json:"failed"`
}

type Service struct {
	resolver    Resolver
	fetcher     Fetcher
	prioritizer Prioritizer
	prompter    Prompter
	cfg         Config
	inflight    singleflight.Group

	mu              sync.Mutex
	sections        map[string]*entity.ContentRecord
	requests        map[string]*entity.ContentRecord
	commentators    map[string][]string
	sectionVersions map[string]entity.VersionInfo
	bookVersions    map[string]entity.VersionInfo
	stats           Stats
}

func NewService(resolver Resolver, fetcher Fetcher, prioritizer Prioritizer, prompter Prompter, cfg Config) *Service {
	return &Service{
		resolver:        resolver,
		fetcher:         fetcher,
		prioritizer:     prioritizer,
		prompter:        prompter,
		cfg:             cfg,
		sections:        make(map[string]*entity.ContentRecord),
		requests:        make(map[string]*entity.ContentRecord),
		commentators:    make(map[string][]string),
		sectionVersions: make(map[string]entity.VersionInfo),
		bookVersions:    make(map[string]entity.VersionInfo),
	}
}

// Get resolves ref. The tiers are tried strictly in order; a memory hit does
// no I/O and returns the same record as the call that filled it. Concurrent
// misses for the same request share one resolution.
func (s *Service) Get(ctx context.Context, ref string, opts Options) (*entity.ContentRecord, error) {
	title, ok := s.resolver.ResolveBookTitle(ref)
	if !ok {
		s.count("failed")
		return nil, fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	sectionRef := s.resolver.SectionRef(ref)
	key := library.FileStem(sectionRef)

	if rec := s.lookup(s.sections, key); rec != nil {
		s.count("memory")
		return rec, nil
	}
	if rec := s.lookup(s.requests, requestKey(ref, opts)); rec != nil {
		s.count("memory")
		return rec, nil
	}

	v, err, _ := s.inflight.Do(requestKey(ref, opts), func() (interface{}, error) {
		return s.resolve(ctx, title, ref, sectionRef, opts)
	})
	if err != nil {
		s.count("failed")
		return nil, err
	}
	return v.(*entity.ContentRecord), nil
}

func (s *Service) resolve(ctx context.Context, title, ref, sectionRef string, opts Options) (*entity.ContentRecord, error) {
	key := library.FileStem(sectionRef)

	rec, err := s.loadLocal(title, ref, sectionRef)
	switch {
	case err == nil:
		s.finish(rec, title, true)
		s.store(s.sections, key, rec)
		s.count("local")
		return rec, nil
	case !errors.Is(err, errNoArchive):
		log.Printf("content local_failed ref=%s title=%s err=%v", ref, title, err)
		return nil, fmt.Errorf("%s: %w", ref, ErrNotFound)
	}

	if s.prioritizer != nil {
		s.prioritizer.PrioritizeDownload(title)
	}
	rec, err = s.loadRemoteWithRetry(ctx, ref, sectionRef, title, opts)
	if err != nil {
		return nil, err
	}
	fullSection := !opts.IsLinkRequest || ref == sectionRef
	s.finish(rec, title, fullSection)
	s.store(s.requests, requestKey(ref, opts), rec)
	if !opts.IsLinkRequest {
		s.store(s.sections, key, rec)
	}
	s.count("network")
	return rec, nil
}

// Resolution tells where a ref points in the library.
type Resolution struct {
	Ref        string `json:"ref"`
	Title      string `json:"title"`
	Category   string `json:"category"`
	SectionRef string `json:"section_ref"`
}

func (s *Service) Resolve(ref string) (Resolution, error) {
	title, ok := s.resolver.ResolveBookTitle(ref)
	if !ok {
		return Resolution{}, fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	category, _ := s.resolver.CategoryForTitle(title)
	return Resolution{Ref: ref, Title: title, Category: category, SectionRef: s.resolver.SectionRef(ref)}, nil
}

// Links returns the annotated links of a segment, or of every segment when
// ref names a whole section.
func (s *Service) Links(ctx context.Context, ref string) ([]entity.LinkStub, error) {
	rec, err := s.Get(ctx, ref, Options{IsLinkRequest: true})
	if err != nil {
		return nil, err
	}
	want := 0
	if ref != rec.SectionRef {
		want = segmentIndex(ref)
	}
	var out []entity.LinkStub
	for _, seg := range rec.Content {
		if want == 0 || seg.Index == want {
			out = append(out, seg.Links...)
		}
	}
	return out, nil
}

// Commentators returns the commentary titles seen for sectionRef.
func (s *Service) Commentators(sectionRef string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commentators[sectionRef]...)
}

// VersionInfo merges book level metadata under the section's.
func (s *Service) VersionInfo(ref string) (entity.VersionInfo, bool) {
	title, ok := s.resolver.ResolveBookTitle(ref)
	if !ok {
		return entity.VersionInfo{}, false
	}
	sectionRef := s.resolver.SectionRef(ref)

	s.mu.Lock()
	defer s.mu.Unlock()
	sec, secOK := s.sectionVersions[sectionRef]
	book, bookOK := s.bookVersions[title]
	return sec.Merge(book), secOK || bookOK
}

func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Service) lookup(m map[string]*entity.ContentRecord, key string) *entity.ContentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return m[key]
}

func (s *Service) store(m map[string]*entity.ContentRecord, key string, rec *entity.ContentRecord) {
	s.mu.Lock()
	m[key] = rec
	s.mu.Unlock()
}

func (s *Service) count(tier string) {
	metrics.ContentLookups.WithLabelValues(tier).Inc()
	s.mu.Lock()
	defer s.mu.Unlock()
	switch tier {
	case "memory":
		s.stats.Memory++
	case "local":
		s.stats.Local++
	case "network":
		s.stats.Network++
	default:
		s.stats.Failed++
	}
}

func requestKey(ref string, opts Options) string {
	if opts.IsLinkRequest {
		return "links:" + ref
	}
	return "text:" + ref
}

// loadLocal reads sectionRef from the book archive. A failed lookup is
// retried once against the whole-book file, as depth-1 texts are exported
// as a single document.
func (s *Service) loadLocal(title, ref, sectionRef string) (*entity.ContentRecord, error) {
	if s.cfg.DisableLocalArchives || s.cfg.LibraryDir == "" {
		return nil, errNoArchive
	}
	archive := filepath.Join(s.cfg.LibraryDir, title+".zip")
	if _, err := os.Stat(archive); err != nil {
		return nil, errNoArchive
	}

	rec, err := s.loadFile(archive, library.FileStem(sectionRef), ref, sectionRef, title)
	if err == nil {
		return rec, nil
	}
	log.Printf("content depth1_fallback ref=%s title=%s err=%v", ref, title, err)
	return s.loadFile(archive, library.FileStem(title), ref, sectionRef, title)
}

func (s *Service) loadFile(archive, stem, ref, sectionRef, title string) (*entity.ContentRecord, error) {
	name := stem + ".json"
	if err := ensureExtracted(archive, s.cfg.SourceDir, name); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(filepath.Join(s.cfg.SourceDir, name))
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrParse)
	}
	return parseDoc(raw, ref, sectionRef, title)
}

func (s *Service) loadRemoteWithRetry(ctx context.Context, ref, sectionRef, title string, opts Options) (*entity.ContentRecord, error) {
	rec, err := s.loadRemote(ctx, ref, sectionRef, title, opts)
	if err == nil {
		return rec, nil
	}
	if errors.Is(err, sefariaapi.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	if ctx.Err() == nil && s.prompter != nil && s.prompter.ConfirmRetry(ctx, ref, err) {
		rec, err = s.loadRemote(ctx, ref, sectionRef, title, opts)
		if err == nil {
			return rec, nil
		}
		if errors.Is(err, sefariaapi.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", ref, ErrNotFound)
		}
	}
	log.Printf("content network_failed ref=%s err=%v", ref, err)
	return nil, fmt.Errorf("%s: %v: %w", ref, err, ErrUnavailable)
}

func (s *Service) loadRemote(ctx context.Context, ref, sectionRef, title string, opts Options) (*entity.ContentRecord, error) {
	if opts.IsLinkRequest {
		links, err := s.fetcher.GetLinks(ctx, ref)
		if err != nil {
			return nil, err
		}
		return recordFromLinks(ref, sectionRef, title, links), nil
	}
	res, err := s.fetcher.GetText(ctx, ref)
	if err != nil {
		return nil, err
	}
	return recordFromText(ref, sectionRef, title, res), nil
}

// finish annotates links and fills the satellite caches. The commentator
// list is only taken from records covering a whole section.
func (s *Service) finish(rec *entity.ContentRecord, title string, fullSection bool) {
	for i := range rec.Content {
		for j := range rec.Content[i].Links {
			s.annotate(&rec.Content[i].Links[j])
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, done := s.commentators[rec.SectionRef]; !done && fullSection {
		s.commentators[rec.SectionRef] = commentatorList(rec)
	}
	if !rec.Versions.IsZero() {
		s.sectionVersions[rec.SectionRef] = rec.Versions
		if _, ok := s.bookVersions[title]; !ok {
			s.bookVersions[title] = rec.Versions
		}
	}
	rec.Versions = s.sectionVersions[rec.SectionRef].Merge(s.bookVersions[title])
	rec.Commentators = s.commentators[rec.SectionRef]
}

func (s *Service) annotate(l *entity.LinkStub) {
	book, ok := s.resolver.ResolveBookTitle(l.SourceRef)
	if !ok {
		return
	}
	if l.TextTitle == "" {
		l.TextTitle = book
	}
	if l.Category == "" {
		l.Category, _ = s.resolver.CategoryForTitle(book)
	}
}

func commentatorList(rec *entity.ContentRecord) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, seg := range rec.Content {
		for _, l := range seg.Links {
			if l.Category != CategoryCommentary || l.TextTitle == "" || seen[l.TextTitle] {
				continue
			}
			seen[l.TextTitle] = true
			out = append(out, l.TextTitle)
		}
	}
	sort.Strings(out)
	return out
}

func recordFromText(ref, sectionRef, title string, res *sefariaapi.TextResponse) *entity.ContentRecord {
	rec := &entity.ContentRecord{
		Ref:        ref,
		SectionRef: sectionRef,
		HeRef:      res.HeRef,
		Book:       title,
		Versions: entity.VersionInfo{
			VersionTitle:    res.VersionTitle,
			HeVersionTitle:  res.HeVersionTitle,
			License:         res.License,
			VersionSource:   res.VersionSource,
			HeVersionSource: res.HeVersionSource,
		},
	}
	if res.SectionRef != "" {
		rec.SectionRef = res.SectionRef
	}

	links := groupLinks(res.Commentary)
	n := len(res.Text)
	if len(res.He) > n {
		n = len(res.He)
	}
	for i := 0; i < n; i++ {
		seg := entity.Segment{Index: i + 1, Links: links[i+1]}
		if i < len(res.Text) {
			seg.Text = res.Text[i]
		}
		if i < len(res.He) {
			seg.He = res.He[i]
		}
		if seg.Text == "" && seg.He == "" && len(seg.Links) == 0 {
			continue
		}
		rec.Content = append(rec.Content, seg)
	}
	return rec
}

func recordFromLinks(ref, sectionRef, title string, raw []sefariaapi.RawLink) *entity.ContentRecord {
	rec := &entity.ContentRecord{Ref: ref, SectionRef: sectionRef, Book: title}
	links := groupLinks(raw)
	indexes := make([]int, 0, len(links))
	for idx := range links {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	for _, idx := range indexes {
		rec.Content = append(rec.Content, entity.Segment{Index: idx, Links: links[idx]})
	}
	return rec
}

func groupLinks(raw []sefariaapi.RawLink) map[int][]entity.LinkStub {
	out := make(map[int][]entity.LinkStub)
	for _, l := range raw {
		idx := segmentIndex(l.AnchorRef)
		if idx == 0 {
			continue
		}
		out[idx] = append(out[idx], entity.LinkStub{
			SourceRef:   l.Source(),
			SourceHeRef: l.SourceHeRef,
			Category:    l.Category,
			TextTitle:   l.CollectiveTitle.En,
		})
	}
	return out
}

// segmentIndex reads the last address of a ref: "Genesis 1:3-5" -> 3.
func segmentIndex(ref string) int {
	sp := strings.LastIndex(ref, " ")
	if sp < 0 {
		return 0
	}
	addr := ref[sp+1:]
	if i := strings.Index(addr, "-"); i >= 0 {
		addr = addr[:i]
	}
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		addr = addr[i+1:]
	}
	n, err := strconv.Atoi(addr)
	if err != nil {
		return 0
	}
	return n
}
