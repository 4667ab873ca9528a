// Package history records reading and saving events and reconciles them with
// the account log on the server.
package history

import (
	"errors"
	"sort"

	"sefaria/internal/entity"
)

var ErrInvalidItem = errors.New("invalid history item")

// DuplicateWindow is how close two events for the same ref must be for the
// second to be dropped, in seconds.
const DuplicateWindow = 60

type Result struct {
	Synced   bool                 `json:"synced"`
	Skipped  bool                 `json:"skipped,omitempty"`
	History  []entity.HistoryItem `json:"history,omitempty"`
	Settings *entity.Settings     `json:"settings,omitempty"`
}

// MergeHistory combines the local log with the events returned by the server.
// Server tombstones win over any local saved state; ties in time keep server
// events first. Events identical in ref and time are kept once.
func MergeHistory(localPending, localSaved, serverEvents []entity.HistoryItem) (merged, saved []entity.HistoryItem) {
	deleted := make(map[string]bool)
	var serverSaved []entity.HistoryItem
	for _, e := range serverEvents {
		if e.DeleteSaved || e.Action == entity.ActionDeleteSaved {
			deleted[e.Ref] = true
		}
		if e.Saved {
			serverSaved = append(serverSaved, clean(e))
		}
	}

	type key struct {
		ref string
		ts  int64
	}
	seen := make(map[key]bool)
	merged = make([]entity.HistoryItem, 0, len(serverEvents)+len(localPending))
	for _, e := range serverEvents {
		k := key{e.Ref, e.TimeStamp}
		if seen[k] {
			continue
		}
		seen[k] = true
		merged = append(merged, e)
	}
	for _, e := range localPending {
		k := key{e.Ref, e.TimeStamp}
		if e.Action != "" || seen[k] {
			continue
		}
		seen[k] = true
		merged = append(merged, e)
	}
	sortDesc(merged)

	saved = make([]entity.HistoryItem, 0, len(serverSaved)+len(localSaved))
	savedRefs := make(map[string]bool)
	candidates := append(serverSaved, localSaved...)
	sortDesc(candidates)
	for _, e := range candidates {
		if deleted[e.Ref] || savedRefs[e.Ref] {
			continue
		}
		savedRefs[e.Ref] = true
		saved = append(saved, e)
	}
	return merged, saved
}

// sortDesc orders by time, newest first, keeping input order on ties.
func sortDesc(items []entity.HistoryItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].TimeStamp > items[j].TimeStamp
	})
}

func clean(e entity.HistoryItem) entity.HistoryItem {
	e.Action = ""
	e.DeleteSaved = false
	e.Saved = true
	return e
}

// lastPlaces keeps the newest non-secondary event of every book.
func lastPlaces(items []entity.HistoryItem) []entity.HistoryItem {
	out := []entity.HistoryItem{}
	books := make(map[string]bool)
	for _, e := range items {
		if e.Secondary || e.Action != "" {
			continue
		}
		book := e.Book
		if book == "" {
			book = e.Ref
		}
		if books[book] {
			continue
		}
		books[book] = true
		out = append(out, e)
	}
	return out
}
