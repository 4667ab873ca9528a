package content

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"sefaria/internal/entity"
	"sefaria/internal/library"
)

var errNoArchive = errors.New("archive not downloaded")

// offlineDoc is one JSON file of an unzipped book archive: either a single
// section or, for depth-1 texts, every section keyed by ref.
type offlineDoc struct {
	offlineSection
	Sections map[string]offlineSection `json:"sections"`
}

type offlineSection struct {
	Ref             string           `json:"ref"`
	HeRef           string           `json:"heRef"`
	SectionRef      string           `json:"sectionRef"`
	Content         []offlineSegment `json:"content"`
	VersionTitle    string           `json:"versionTitle"`
	HeVersionTitle  string           `json:"heVersionTitle"`
	License         string           `json:"license"`
	VersionSource   string           `json:"versionSource"`
	HeVersionSource string           `json:"heVersionSource"`
}

type offlineSegment struct {
	SegmentNumber segmentNumber `json:"segmentNumber"`
	Text          string        `json:"text"`
	He            string        `json:"he"`
	Links         []offlineLink `json:"links"`
}

type offlineLink struct {
	SourceRef   string `json:"sourceRef"`
	SourceHeRef string `json:"sourceHeRef"`
	Category    string `json:"category"`
	Commentator string `json:"commentator"`
}

// segmentNumber accepts both "3" and 3; exports differ between schema versions.
type segmentNumber int

func (n *segmentNumber) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" {
		*n = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("segment number %q: %w", s, ErrParse)
	}
	*n = segmentNumber(v)
	return nil
}

func (s offlineSection) record(ref, sectionRef, book string) *entity.ContentRecord {
	rec := &entity.ContentRecord{
		Ref:        ref,
		SectionRef: sectionRef,
		HeRef:      s.HeRef,
		Book:       book,
		Versions: entity.VersionInfo{
			VersionTitle:    s.VersionTitle,
			HeVersionTitle:  s.HeVersionTitle,
			License:         s.License,
			VersionSource:   s.VersionSource,
			HeVersionSource: s.HeVersionSource,
		},
	}
	for i, seg := range s.Content {
		idx := int(seg.SegmentNumber)
		if idx == 0 {
			idx = i + 1
		}
		out := entity.Segment{Index: idx, Text: seg.Text, He: seg.He}
		for _, l := range seg.Links {
			out.Links = append(out.Links, entity.LinkStub{
				SourceRef:   l.SourceRef,
				SourceHeRef: l.SourceHeRef,
				Category:    l.Category,
				TextTitle:   l.Commentator,
			})
		}
		rec.Content = append(rec.Content, out)
	}
	return rec
}

// parseDoc picks the section for sectionRef out of raw. Whole-text documents
// are looked up by sectionRef and then one level up.
func parseDoc(raw []byte, ref, sectionRef, book string) (*entity.ContentRecord, error) {
	var doc offlineDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrParse)
	}
	if len(doc.Content) > 0 {
		return doc.record(ref, sectionRef, book), nil
	}
	if sec, ok := doc.Sections[sectionRef]; ok {
		return sec.record(ref, sectionRef, book), nil
	}
	parent := library.ParentRef(sectionRef)
	if sec, ok := doc.Sections[parent]; ok {
		return sec.record(ref, parent, book), nil
	}
	return nil, fmt.Errorf("no section %q in document: %w", sectionRef, ErrParse)
}

// ensureExtracted unzips archive into dir unless want already exists there.
// Files that already exist are left alone, so concurrent or repeated unpacks
// succeed.
func ensureExtracted(archive, dir, want string) error {
	if _, err := os.Stat(filepath.Join(dir, want)); err == nil {
		return nil
	}
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("open archive: %v: %w", err, ErrParse)
	}
	defer zr.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := filepath.Base(f.Name)
		if name == "." || name == ".." || name == "" {
			continue
		}
		if err := extractFile(f, filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return nil
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".unzip-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
