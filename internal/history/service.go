package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"sync"
	"time"

	"sefaria/internal/entity"
	"sefaria/internal/kvstore"
	"sefaria/internal/metrics"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Service struct {
	store  kvstore.Store
	syncer Syncer
	books  Books
	now    func() time.Time

	// syncing keeps sync attempts from overlapping.
	syncing sync.Mutex

	mu        sync.Mutex
	loaded    bool
	pending   []entity.HistoryItem
	history   []entity.HistoryItem
	saved     []entity.HistoryItem
	lastPlace []entity.HistoryItem
	lastSync  int64
	settings  *entity.Settings
}

// NewService builds the engine. books may be nil; it fills in the book of
// events recorded without one.
func NewService(store kvstore.Store, syncer Syncer, books Books) *Service {
	return &Service{
		store:  store,
		syncer: syncer,
		books:  books,
		now:    time.Now,
	}
}

// Load reads the persisted log. It runs once; later calls are no-ops.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *Service) loadLocked(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	for key, dst := range map[string]any{
		kvstore.KeyLastSyncItems: &s.pending,
		kvstore.KeyHistory:       &s.history,
		kvstore.KeySavedItems:    &s.saved,
		kvstore.KeyLastPlace:     &s.lastPlace,
		kvstore.KeyLastSyncTime:  &s.lastSync,
		kvstore.KeySettings:      &s.settings,
	} {
		if _, err := s.store.Get(ctx, key, dst); err != nil {
			return fmt.Errorf("load %s: %w", key, err)
		}
	}
	s.loaded = true
	return nil
}

// RecordEvent appends item to the pending log. It reports false when the
// event repeats the previous one for the same ref within DuplicateWindow.
func (s *Service) RecordEvent(ctx context.Context, item entity.HistoryItem) (bool, error) {
	if err := validate.Struct(item); err != nil {
		return false, fmt.Errorf("%v: %w", err, ErrInvalidItem)
	}
	if item.TimeStamp == 0 {
		item.TimeStamp = s.now().Unix()
	}
	if item.Book == "" && s.books != nil {
		item.Book, _ = s.books.ResolveBookTitle(item.Ref)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(ctx); err != nil {
		return false, err
	}

	if n := len(s.pending); n > 0 && item.Action == "" {
		prev := s.pending[n-1]
		if prev.Ref == item.Ref && prev.Action == "" && item.TimeStamp-prev.TimeStamp < DuplicateWindow {
			return false, nil
		}
	}

	s.pending = append(s.pending, item)
	if item.Action == "" {
		s.history = append([]entity.HistoryItem{item}, s.history...)
	}
	if !item.Secondary && item.Action == "" {
		s.lastPlace = lastPlaces(append([]entity.HistoryItem{item}, s.lastPlace...))
	}
	switch {
	case item.Action == entity.ActionDeleteSaved:
		s.saved = removeRef(s.saved, item.Ref)
	case item.Action == entity.ActionAddSaved || item.Saved:
		s.saved = append([]entity.HistoryItem{clean(item)}, removeRef(s.saved, item.Ref)...)
	}

	return true, s.persistLocked(ctx)
}

// SaveHistoryItem records the snapshot taken now. With intent the snapshot
// is taken again after delay and the event is dropped when the reader moved
// to another ref or changed versions in between. onSave runs for recorded
// events only.
func (s *Service) SaveHistoryItem(ctx context.Context, getSnapshot func() entity.HistoryItem, withIntent bool, onSave func(entity.HistoryItem), delay time.Duration) (bool, error) {
	item := getSnapshot()
	if withIntent {
		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return false, ctx.Err()
		}
		again := getSnapshot()
		if again.Ref != item.Ref || !again.SameVersions(item) {
			return false, nil
		}
	}

	ok, err := s.RecordEvent(ctx, item)
	if err != nil || !ok {
		return false, err
	}
	if onSave != nil {
		onSave(item)
	}
	return true, nil
}

// SyncHistory sends the pending log and settings and merges the server's
// answer. Failures are logged and leave the pending log as it was. A call
// made while another is running returns at once with Skipped set.
func (s *Service) SyncHistory(ctx context.Context, settings *entity.Settings) Result {
	if !s.syncing.TryLock() {
		return Result{Skipped: true}
	}
	defer s.syncing.Unlock()

	s.mu.Lock()
	if err := s.loadLocked(ctx); err != nil {
		s.mu.Unlock()
		log.Printf("history sync_failed err=%v", err)
		metrics.HistorySyncs.WithLabelValues("failed").Inc()
		return Result{}
	}
	sent := append([]entity.HistoryItem(nil), s.pending...)
	lastSync := s.lastSync
	s.mu.Unlock()

	form, err := syncForm(sent, lastSync, settings)
	if err != nil {
		log.Printf("history sync_failed err=%v", err)
		metrics.HistorySyncs.WithLabelValues("failed").Inc()
		return Result{}
	}
	resp, err := s.syncer.SyncHistory(ctx, form)
	if err != nil {
		log.Printf("history sync_failed pending=%d err=%v", len(sent), err)
		metrics.HistorySyncs.WithLabelValues("failed").Inc()
		return Result{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	merged, saved := MergeHistory(s.history, s.saved, resp.UserHistory)
	s.history = merged
	s.saved = saved
	s.lastPlace = lastPlaces(merged)
	// Events recorded while the request was in flight stay pending.
	s.pending = append([]entity.HistoryItem{}, s.pending[len(sent):]...)
	s.lastSync = resp.LastSync
	if s.lastSync == 0 {
		s.lastSync = s.now().Unix()
	}

	local := settings
	if local == nil {
		local = s.settings
	}
	if resp.Settings != nil && (local == nil || resp.Settings.TimeStamp >= local.TimeStamp) {
		s.settings = resp.Settings
	} else if settings != nil {
		s.settings = settings
	}

	if err := s.persistLocked(ctx); err != nil {
		log.Printf("history persist_failed err=%v", err)
	}
	metrics.HistorySyncs.WithLabelValues("ok").Inc()
	log.Printf("history synced sent=%d received=%d", len(sent), len(resp.UserHistory))

	return Result{
		Synced:   true,
		History:  append([]entity.HistoryItem(nil), merged...),
		Settings: s.settings,
	}
}

// Run syncs right away and then every interval until ctx is done.
func (s *Service) Run(ctx context.Context, interval time.Duration, settings func() *entity.Settings) {
	if settings == nil {
		settings = func() *entity.Settings { return nil }
	}
	s.SyncHistory(ctx, settings())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SyncHistory(ctx, settings())
		}
	}
}

// History returns a page of the log, newest first.
func (s *Service) History(limit, offset int) []entity.HistoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if offset < 0 || offset >= len(s.history) {
		return []entity.HistoryItem{}
	}
	end := len(s.history)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return append([]entity.HistoryItem(nil), s.history[offset:end]...)
}

func (s *Service) Saved() []entity.HistoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.HistoryItem{}, s.saved...)
}

// LastPlace returns the last read ref of every book, most recent first.
func (s *Service) LastPlace() []entity.HistoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.HistoryItem{}, s.lastPlace...)
}

// Pending returns the events not yet accepted by the server.
func (s *Service) Pending() []entity.HistoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.HistoryItem{}, s.pending...)
}

func (s *Service) Settings() *entity.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

func (s *Service) persistLocked(ctx context.Context) error {
	for key, value := range map[string]any{
		kvstore.KeyLastSyncItems: s.pending,
		kvstore.KeyHistory:       s.history,
		kvstore.KeySavedItems:    s.saved,
		kvstore.KeyLastPlace:     s.lastPlace,
		kvstore.KeyLastSyncTime:  s.lastSync,
		kvstore.KeySettings:      s.settings,
	} {
		if err := s.store.Set(ctx, key, value); err != nil {
			return fmt.Errorf("persist %s: %w", key, err)
		}
	}
	return nil
}

func syncForm(items []entity.HistoryItem, lastSync int64, settings *entity.Settings) (url.Values, error) {
	if items == nil {
		items = []entity.HistoryItem{}
	}
	history, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	form := url.Values{}
	form.Set("user_history", string(history))
	form.Set("last_sync", strconv.FormatInt(lastSync, 10))
	if settings != nil {
		b, err := json.Marshal(settings)
		if err != nil {
			return nil, err
		}
		form.Set("settings", string(b))
	}
	return form, nil
}

func removeRef(items []entity.HistoryItem, ref string) []entity.HistoryItem {
	out := make([]entity.HistoryItem, 0, len(items))
	for _, e := range items {
		if e.Ref != ref {
			out = append(out, e)
		}
	}
	return out
}
