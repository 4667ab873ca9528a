package history

import (
	"testing"

	"sefaria/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func refs(items []entity.HistoryItem) []string {
	out := make([]string, len(items))
	for i, e := range items {
		out[i] = e.Ref
	}
	return out
}

func TestMergeHistory_TombstoneWins(t *testing.T) {
	local := []entity.HistoryItem{{Ref: "Genesis 1:1", TimeStamp: 10}}
	saved := []entity.HistoryItem{{Ref: "Genesis 1:1", TimeStamp: 5, Saved: true}}
	server := []entity.HistoryItem{{Ref: "Genesis 1:1", TimeStamp: 20, DeleteSaved: true}}

	merged, mergedSaved := MergeHistory(local, saved, server)

	assert.Empty(t, mergedSaved)
	require.Len(t, merged, 2)
	assert.Equal(t, int64(20), merged[0].TimeStamp)
	assert.True(t, merged[0].DeleteSaved)
	assert.Equal(t, int64(10), merged[1].TimeStamp)
}

func TestMergeHistory(t *testing.T) {
	local := []entity.HistoryItem{
		{Ref: "Exodus 3:1", TimeStamp: 30},
		{Ref: "Exodus 3:2", TimeStamp: 25, Action: entity.ActionAddSaved},
		{Ref: "Berakhot 2a", TimeStamp: 15},
	}
	saved := []entity.HistoryItem{
		{Ref: "Zohar 1:2", TimeStamp: 12, Saved: true},
		{Ref: "Genesis 1:1", TimeStamp: 8, Saved: true},
	}
	server := []entity.HistoryItem{
		{Ref: "Genesis 2:1", TimeStamp: 15, Saved: true},
		{Ref: "Berakhot 2a", TimeStamp: 15},
		{Ref: "Exodus 3:2", TimeStamp: 25, Saved: true, Action: entity.ActionAddSaved},
		{Ref: "Zohar 1:2", TimeStamp: 40, DeleteSaved: true},
	}

	merged, mergedSaved := MergeHistory(local, saved, server)

	t.Run("history", func(t *testing.T) {
		assert.Equal(t, []string{"Zohar 1:2", "Exodus 3:1", "Exodus 3:2", "Genesis 2:1", "Berakhot 2a"}, refs(merged))
		for _, e := range merged {
			if e.Ref == "Exodus 3:2" {
				assert.Equal(t, entity.ActionAddSaved, e.Action, "the server copy is kept")
			}
		}
	})

	t.Run("saved", func(t *testing.T) {
		assert.Equal(t, []string{"Exodus 3:2", "Genesis 2:1", "Genesis 1:1"}, refs(mergedSaved))
		for _, e := range mergedSaved {
			assert.Empty(t, e.Action)
			assert.False(t, e.DeleteSaved)
		}
	})
}

func TestMergeHistory_TiesKeepServerFirst(t *testing.T) {
	local := []entity.HistoryItem{{Ref: "Local", TimeStamp: 10}}
	server := []entity.HistoryItem{{Ref: "Server", TimeStamp: 10}}

	merged, _ := MergeHistory(local, nil, server)
	assert.Equal(t, []string{"Server", "Local"}, refs(merged))
}

func TestMergeHistory_Empty(t *testing.T) {
	merged, saved := MergeHistory(nil, nil, nil)
	assert.NotNil(t, merged)
	assert.NotNil(t, saved)
	assert.Empty(t, merged)
	assert.Empty(t, saved)
}

func TestLastPlaces(t *testing.T) {
	items := []entity.HistoryItem{
		{Ref: "Genesis 3:1", Book: "Genesis", TimeStamp: 30},
		{Ref: "Rashi on Genesis 1:1:1", Book: "Rashi on Genesis", TimeStamp: 25, Secondary: true},
		{Ref: "Genesis 1:1", Book: "Genesis", TimeStamp: 20},
		{Ref: "Exodus 1:1", Book: "Exodus", TimeStamp: 10},
	}
	assert.Equal(t, []string{"Genesis 3:1", "Exodus 1:1"}, refs(lastPlaces(items)))
}
