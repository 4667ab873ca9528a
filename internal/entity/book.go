package entity

// BookIndex describes one known title from the table of contents.
type BookIndex struct {
	Title         string         `json:"title"`
	HeTitle       string         `json:"heTitle"`
	Categories    []string       `json:"categories"`
	Depth         int            `json:"depth,omitempty"`
	AddressTypes  []string       `json:"addressTypes,omitempty"`
	SectionNames  []string       `json:"sectionNames,omitempty"`
	AltStructures map[string]any `json:"alts,omitempty"`
}

// PrimaryCategory returns the first listed category or "".
func (b BookIndex) PrimaryCategory() string {
	if len(b.Categories) == 0 {
		return ""
	}
	return b.Categories[0]
}

// HasCategory reports whether cat appears anywhere in the category path.
func (b BookIndex) HasCategory(cat string) bool {
	for _, c := range b.Categories {
		if c == cat {
			return true
		}
	}
	return false
}

// TOCNode is one node of the table-of-contents tree. Category nodes carry
// Contents; leaves carry a Title.
type TOCNode struct {
	Category     string    `json:"category,omitempty"`
	HeCategory   string    `json:"heCategory,omitempty"`
	Contents     []TOCNode `json:"contents,omitempty"`
	Title        string    `json:"title,omitempty"`
	HeTitle      string    `json:"heTitle,omitempty"`
	Categories   []string  `json:"categories,omitempty"`
	Depth        int       `json:"depth,omitempty"`
	AddressTypes []string  `json:"addressTypes,omitempty"`
	SectionNames []string  `json:"sectionNames,omitempty"`
}
