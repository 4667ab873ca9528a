package sefariaapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Timestamp decodes the manifest's update times. Exports have used unix
// seconds, RFC 3339 and zone-less ISO 8601 strings; the last is read as UTC.
type Timestamp struct {
	time.Time
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	if b[0] != '"' {
		secs, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			return fmt.Errorf("timestamp %s: %w", b, err)
		}
		whole := int64(secs)
		t.Time = time.Unix(whole, int64((secs-float64(whole))*1e9)).UTC()
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for _, layout := range isoLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			t.Time = v.UTC()
			return nil
		}
	}
	return fmt.Errorf("timestamp %q: unrecognized format", s)
}

// UnmarshalJSON accepts any Timestamp format for the per-title times.
func (m *Manifest) UnmarshalJSON(b []byte) error {
	var raw struct {
		SchemaVersion int                  `json:"schema_version"`
		Titles        map[string]Timestamp `json:"titles"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	m.SchemaVersion = raw.SchemaVersion
	m.Titles = make(map[string]time.Time, len(raw.Titles))
	for title, ts := range raw.Titles {
		m.Titles[title] = ts.Time
	}
	return nil
}
