package entity

const (
	ActionAddSaved    = "add_saved"
	ActionDeleteSaved = "delete_saved"
)

// HistoryItem is a reading or saving event. TimeStamp is unix seconds.
type HistoryItem struct {
	Ref       string            `json:"ref" validate:"required"`
	HeRef     string            `json:"he_ref,omitempty"`
	Book      string            `json:"book,omitempty"`
	Versions  map[string]string `json:"versions,omitempty"`
	TimeStamp int64             `json:"time_stamp"`
	Secondary bool              `json:"secondary,omitempty"`
	Saved     bool              `json:"saved,omitempty"`
	// Action is set on locally generated save/unsave events until they are synced.
	Action string `json:"action,omitempty" validate:"omitempty,oneof=add_saved delete_saved"`
	// DeleteSaved is the server's tombstone flag.
	DeleteSaved bool `json:"delete_saved,omitempty"`
}

// SameVersions compares the language to version title selection of two items.
func (h HistoryItem) SameVersions(other HistoryItem) bool {
	if len(h.Versions) != len(other.Versions) {
		return false
	}
	for lang, v := range h.Versions {
		if other.Versions[lang] != v {
			return false
		}
	}
	return true
}

// Settings are the user preferences exchanged during sync.
type Settings struct {
	TimeStamp int64          `json:"time_stamp"`
	Values    map[string]any `json:"values,omitempty"`
}
