package entity

type LinkStub struct {
	SourceRef   string `json:"sourceRef"`
	SourceHeRef string `json:"sourceHeRef,omitempty"`
	Category    string `json:"category,omitempty"`
	TextTitle   string `json:"textTitle,omitempty"`
}

type Segment struct {
	Index int        `json:"segmentNumber"`
	Text  string     `json:"text"`
	He    string     `json:"he"`
	Links []LinkStub `json:"links,omitempty"`
}

// VersionInfo carries the edition metadata shown next to a text.
type VersionInfo struct {
	VersionTitle    string `json:"versionTitle,omitempty"`
	HeVersionTitle  string `json:"heVersionTitle,omitempty"`
	License         string `json:"license,omitempty"`
	VersionSource   string `json:"versionSource,omitempty"`
	HeVersionSource string `json:"heVersionSource,omitempty"`
}

// Merge returns v with every empty field filled from fallback.
func (v VersionInfo) Merge(fallback VersionInfo) VersionInfo {
	out := fallback
	if v.VersionTitle != "" {
		out.VersionTitle = v.VersionTitle
	}
	if v.HeVersionTitle != "" {
		out.HeVersionTitle = v.HeVersionTitle
	}
	if v.License != "" {
		out.License = v.License
	}
	if v.VersionSource != "" {
		out.VersionSource = v.VersionSource
	}
	if v.HeVersionSource != "" {
		out.HeVersionSource = v.HeVersionSource
	}
	return out
}

func (v VersionInfo) IsZero() bool {
	return v == VersionInfo{}
}

// ContentRecord is one cached section. Content is ordered by Segment.Index
// starting at 1; a missing index means no data for that position.
type ContentRecord struct {
	Ref          string      `json:"ref"`
	SectionRef   string      `json:"sectionRef"`
	HeRef        string      `json:"heRef,omitempty"`
	Book         string      `json:"book"`
	Content      []Segment   `json:"content"`
	Versions     VersionInfo `json:"versions"`
	Commentators []string    `json:"commentators,omitempty"`
}

// Segment returns the segment with the given 1-based index.
func (c *ContentRecord) Segment(index int) (Segment, bool) {
	for _, s := range c.Content {
		if s.Index == index {
			return s, true
		}
	}
	return Segment{}, false
}
