package download

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"sefaria/internal/entity"
	"sefaria/internal/kvstore"
	"sefaria/internal/metrics"
)

type Config struct {
	LibraryDir string
	SourceDir  string
}

type Service struct {
	store    kvstore.Store
	source   Source
	catalog  Catalog
	packages []Package
	failure  FailureHandler
	cfg      Config

	// running makes ResumeDownload single-flight.
	running sync.Mutex

	mu           sync.Mutex
	loaded       bool
	paused       bool
	state        *queueState
	available    map[string]time.Time
	lastDownload map[string]*time.Time
	clicked      map[string]bool
	subscribers  map[string]ProgressFunc
}

func NewService(store kvstore.Store, source Source, catalog Catalog, packages []Package, failure FailureHandler, cfg Config) *Service {
	return &Service{
		store:        store,
		source:       source,
		catalog:      catalog,
		packages:     packages,
		failure:      failure,
		cfg:          cfg,
		state:        newQueueState(),
		available:    make(map[string]time.Time),
		lastDownload: make(map[string]*time.Time),
		clicked:      make(map[string]bool),
		subscribers:  make(map[string]ProgressFunc),
	}
}

// Load reads the persisted state. It runs once; later calls are no-ops.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *Service) loadLocked(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	var (
		queue, inProgress, clicked []string
		available                  map[string]time.Time
		lastDownload               map[string]*time.Time
	)
	for key, dst := range map[string]any{
		kvstore.KeyDownloadQueue:      &queue,
		kvstore.KeyDownloadInProgress: &inProgress,
		kvstore.KeyPackagesClicked:    &clicked,
		kvstore.KeyAvailableDownloads: &available,
		kvstore.KeyLastDownload:       &lastDownload,
	} {
		if _, err := s.store.Get(ctx, key, dst); err != nil {
			return fmt.Errorf("load %s: %w", key, err)
		}
	}

	s.state = newQueueState()
	for title, ts := range lastDownload {
		if ts == nil {
			continue
		}
		if _, err := os.Stat(s.archivePath(title)); err != nil {
			log.Printf("download archive_missing title=%s", title)
			continue
		}
		s.lastDownload[title] = ts
		s.state.markDone(title)
	}
	s.state.restore(queue, inProgress)
	for title, ts := range available {
		s.available[title] = ts
	}
	for _, name := range clicked {
		s.clicked[name] = true
	}
	s.loaded = true

	if len(inProgress) > 0 {
		log.Printf("download requeued_after_restart titles=%s", strings.Join(inProgress, ","))
		return s.persistLocked(ctx)
	}
	return nil
}

// CheckForUpdates fetches the remote manifest and reports every title whose
// remote timestamp differs from the local one. Stale titles of packages the
// user asked for are queued; nothing is ever dequeued here.
func (s *Service) CheckForUpdates(ctx context.Context) (UpdateResult, error) {
	manifest, err := s.source.GetManifest(ctx)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("fetch manifest: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(ctx); err != nil {
		return UpdateResult{}, err
	}

	changed := make(map[string]bool)
	for title, remote := range manifest.Titles {
		s.available[title] = remote
		local := s.lastDownload[title]
		if local == nil || !remote.Equal(*local) {
			changed[title] = true
		}
	}

	wanted := s.wantedTitlesLocked()
	var queued int
	for title := range changed {
		if wanted[title] && s.state.enqueue(title) {
			queued++
		}
	}

	res := UpdateResult{TotalNewOrChanged: len(changed), NewPackages: []string{}}
	for _, pkg := range s.packages {
		for _, title := range s.catalog.TitlesInCategories(pkg.Categories) {
			if changed[title] {
				res.NewPackages = append(res.NewPackages, pkg.Name)
				break
			}
		}
	}

	log.Printf("download check_for_updates changed=%d queued=%d", len(changed), queued)
	if err := s.persistLocked(ctx); err != nil {
		return UpdateResult{}, err
	}
	return res, nil
}

// DownloadPackage marks name as wanted, queues its stale titles and works
// through the queue.
func (s *Service) DownloadPackage(ctx context.Context, name string) error {
	pkg, ok := s.packageByName(name)
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrUnknownPackage)
	}

	s.mu.Lock()
	if err := s.loadLocked(ctx); err != nil {
		s.mu.Unlock()
		return err
	}
	needManifest := len(s.available) == 0
	s.mu.Unlock()

	if needManifest {
		manifest, err := s.source.GetManifest(ctx)
		if err != nil {
			return fmt.Errorf("fetch manifest: %w", err)
		}
		s.mu.Lock()
		for title, ts := range manifest.Titles {
			s.available[title] = ts
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.clicked[pkg.Name] = true
	var queued int
	for _, title := range s.catalog.TitlesInCategories(pkg.Categories) {
		if s.staleLocked(title) && s.state.enqueue(title) {
			queued++
		}
	}
	log.Printf("download package_clicked name=%s queued=%d", pkg.Name, queued)
	err := s.persistLocked(ctx)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.ResumeDownload(ctx)
}

// ResumeDownload transfers queued titles one at a time, front first. A title
// left running by a previous process is retried before anything else. It
// returns immediately when another call is already working the queue.
func (s *Service) ResumeDownload(ctx context.Context) error {
	if !s.running.TryLock() {
		return nil
	}
	defer s.running.Unlock()

	s.mu.Lock()
	if err := s.loadLocked(ctx); err != nil {
		s.mu.Unlock()
		return err
	}
	for _, title := range s.state.inProgress() {
		s.state.toFront(title)
	}
	s.paused = false
	s.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.mu.Lock()
		title, ok := s.state.front()
		if !ok || s.paused {
			s.mu.Unlock()
			return nil
		}
		if err := s.state.start(title); err != nil {
			s.mu.Unlock()
			return err
		}
		err := s.persistLocked(ctx)
		s.mu.Unlock()
		if err != nil {
			return err
		}

		start := time.Now()
		err = s.transfer(ctx, title)

		s.mu.Lock()
		if err == nil {
			s.state.finish(title)
			if ts, ok := s.available[title]; ok {
				s.lastDownload[title] = &ts
			}
			metrics.Downloads.WithLabelValues("ok").Inc()
			log.Printf("download done title=%s duration_ms=%d", title, time.Since(start).Milliseconds())
		} else {
			s.state.toFront(title)
			metrics.Downloads.WithLabelValues("failed").Inc()
			log.Printf("download failed title=%s err=%v", title, err)
		}
		perr := s.persistLocked(ctx)
		s.mu.Unlock()
		if perr != nil {
			return perr
		}
		if err == nil {
			continue
		}

		if ctx.Err() != nil || s.failure == nil || s.failure.OnTransferFailed(title, err) == Pause {
			s.mu.Lock()
			s.paused = true
			s.mu.Unlock()
			return fmt.Errorf("%s: %v: %w", title, err, ErrTransferFailed)
		}
	}
}

// transfer downloads title next to the library and moves it into place.
// Files extracted from an older copy are removed.
func (s *Service) transfer(ctx context.Context, title string) error {
	if err := os.MkdirAll(s.cfg.LibraryDir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.cfg.LibraryDir, ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	err = s.source.DownloadArchive(ctx, title, tmp, func(received, total int64) {
		s.publish(entity.Progress{ReceivedBytes: received, TotalBytes: total})
	})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	if err := s.dropExtracted(tmp.Name()); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.archivePath(title))
}

func (s *Service) dropExtracted(archive string) error {
	if s.cfg.SourceDir == "" {
		return nil
	}
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()
	for _, f := range zr.File {
		name := filepath.Base(f.Name)
		if err := os.Remove(filepath.Join(s.cfg.SourceDir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// PrioritizeDownload moves a queued title to the head of the queue.
func (s *Service) PrioritizeDownload(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.get(title) != entity.StatusQueued {
		return
	}
	s.state.toFront(title)
	log.Printf("download prioritized title=%s", title)
	if err := s.persistLocked(context.Background()); err != nil {
		log.Printf("download persist_failed err=%v", err)
	}
}

// Pause stops the queue after the running transfer.
func (s *Service) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

// DeleteLibrary removes every archive and extracted file and forgets what was
// downloaded and wanted.
func (s *Service) DeleteLibrary(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	if !s.running.TryLock() {
		return ErrDownloadInProgress
	}
	defer s.running.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(ctx); err != nil {
		return err
	}

	archives, err := filepath.Glob(filepath.Join(s.cfg.LibraryDir, "*.zip"))
	if err != nil {
		return err
	}
	for _, a := range archives {
		if err := os.Remove(a); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	if s.cfg.SourceDir != "" {
		if err := os.RemoveAll(s.cfg.SourceDir); err != nil {
			return err
		}
	}

	s.state = newQueueState()
	s.lastDownload = make(map[string]*time.Time)
	s.clicked = make(map[string]bool)
	log.Printf("download library_deleted archives=%d", len(archives))
	return s.persistLocked(ctx)
}

func (s *Service) Subscribe(name string, fn ProgressFunc) {
	s.mu.Lock()
	s.subscribers[name] = fn
	s.mu.Unlock()
}

func (s *Service) Unsubscribe(name string) {
	s.mu.Lock()
	delete(s.subscribers, name)
	s.mu.Unlock()
}

func (s *Service) publish(p entity.Progress) {
	s.mu.Lock()
	fns := make([]ProgressFunc, 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(p)
	}
}

// Queue returns the queued titles in transfer order.
func (s *Service) Queue() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.queue()
}

func (s *Service) InProgress() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.inProgress()
}

// Titles returns the state of every known title, sorted by title.
func (s *Service) Titles() []entity.TitleState {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool)
	for _, t := range s.catalog.Titles() {
		seen[t] = true
	}
	for t := range s.available {
		seen[t] = true
	}
	for t := range s.state.status {
		seen[t] = true
	}

	out := make([]entity.TitleState, 0, len(seen))
	for t := range seen {
		out = append(out, s.titleStateLocked(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out
}

func (s *Service) titleStateLocked(title string) entity.TitleState {
	ts := entity.TitleState{Title: title, Status: s.state.get(title), LocalUpdated: s.lastDownload[title]}
	if remote, ok := s.available[title]; ok {
		ts.RemoteUpdated = &remote
	}
	return ts
}

// Packages returns every package with timestamps aggregated over its titles.
// A package is disabled when an ancestor is already wanted.
func (s *Service) Packages() []entity.PackageState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]entity.PackageState, 0, len(s.packages))
	for _, pkg := range s.packages {
		ps := entity.PackageState{
			Name:       pkg.Name,
			HeName:     pkg.HeName,
			Parent:     pkg.Parent,
			Categories: pkg.Categories,
			Clicked:    s.clicked[pkg.Name],
			Disabled:   s.ancestorClickedLocked(pkg),
		}
		titles := s.catalog.TitlesInCategories(pkg.Categories)
		complete := len(titles) > 0
		for _, t := range titles {
			if remote, ok := s.available[t]; ok && (ps.RemoteUpdated == nil || remote.After(*ps.RemoteUpdated)) {
				r := remote
				ps.RemoteUpdated = &r
			}
			local := s.lastDownload[t]
			if local == nil {
				complete = false
				continue
			}
			if ps.LocalUpdated == nil || local.Before(*ps.LocalUpdated) {
				l := *local
				ps.LocalUpdated = &l
			}
		}
		if !complete {
			ps.LocalUpdated = nil
		}
		out = append(out, ps)
	}
	return out
}

func (s *Service) ancestorClickedLocked(pkg Package) bool {
	seen := map[string]bool{pkg.Name: true}
	for parent := pkg.Parent; parent != "" && !seen[parent]; {
		seen[parent] = true
		if s.clicked[parent] {
			return true
		}
		p, ok := s.packageByName(parent)
		if !ok {
			return false
		}
		parent = p.Parent
	}
	return false
}

func (s *Service) HasPackage(name string) bool {
	_, ok := s.packageByName(name)
	return ok
}

func (s *Service) packageByName(name string) (Package, bool) {
	for _, p := range s.packages {
		if p.Name == name {
			return p, true
		}
	}
	return Package{}, false
}

func (s *Service) wantedTitlesLocked() map[string]bool {
	out := make(map[string]bool)
	for _, pkg := range s.packages {
		if !s.clicked[pkg.Name] {
			continue
		}
		for _, t := range s.catalog.TitlesInCategories(pkg.Categories) {
			out[t] = true
		}
	}
	return out
}

func (s *Service) staleLocked(title string) bool {
	return s.titleStateLocked(title).Stale()
}

func (s *Service) archivePath(title string) string {
	return filepath.Join(s.cfg.LibraryDir, title+".zip")
}

func (s *Service) persistLocked(ctx context.Context) error {
	clicked := make([]string, 0, len(s.clicked))
	for name := range s.clicked {
		clicked = append(clicked, name)
	}
	sort.Strings(clicked)

	queue := s.state.queue()
	metrics.DownloadQueueLength.Set(float64(len(queue)))

	for key, value := range map[string]any{
		kvstore.KeyDownloadQueue:      queue,
		kvstore.KeyDownloadInProgress: s.state.inProgress(),
		kvstore.KeyPackagesClicked:    clicked,
		kvstore.KeyAvailableDownloads: s.available,
		kvstore.KeyLastDownload:       s.lastDownload,
	} {
		if err := s.store.Set(ctx, key, value); err != nil {
			return fmt.Errorf("persist %s: %w", key, err)
		}
	}
	return nil
}
