package download

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"sefaria/internal/entity"
	"sefaria/internal/kvstore"
	"sefaria/internal/platform/sefariaapi"
	"sefaria/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) GetManifest(ctx context.Context) (*sefariaapi.Manifest, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sefariaapi.Manifest), args.Error(1)
}

func (m *mockSource) DownloadArchive(ctx context.Context, title string, dst io.Writer, progress func(received, total int64)) error {
	args := m.Called(ctx, title, dst, progress)
	return args.Error(0)
}

var (
	remoteTS = time.Unix(1700000000, 0).UTC()
	olderTS  = time.Unix(1600000000, 0).UTC()
)

type fixture struct {
	svc     *Service
	source  *mockSource
	store   *kvstore.MemoryStore
	cfg     Config
	order   []string
	orderMu sync.Mutex
}

func newFixture(t *testing.T, failure FailureHandler) *fixture {
	t.Helper()
	lib := testutil.NewLibrary(t)
	root := t.TempDir()
	f := &fixture{
		source: &mockSource{},
		store:  kvstore.NewMemoryStore(),
		cfg: Config{
			LibraryDir: filepath.Join(root, "library"),
			SourceDir:  filepath.Join(root, "source"),
		},
	}
	require.NoError(t, os.MkdirAll(f.cfg.LibraryDir, 0o755))
	f.svc = NewService(f.store, f.source, lib, DefaultPackages(lib.TOC()), failure, f.cfg)
	return f
}

// seed writes persisted state as a previous process would have left it.
func (f *fixture) seed(t *testing.T, values map[string]any) {
	t.Helper()
	for key, v := range values {
		require.NoError(t, f.store.Set(context.Background(), key, v))
	}
}

func (f *fixture) writeArchive(t *testing.T, title string) {
	t.Helper()
	testutil.WriteZip(t, filepath.Join(f.cfg.LibraryDir, title+".zip"), map[string]string{
		title + ".json": `{"content": []}`,
	})
}

// expectArchive serves a small archive for title and records the call order.
func (f *fixture) expectArchive(t *testing.T, title string) *mock.Call {
	body := testutil.ZipBytes(t, map[string]string{title + "_1.json": `{"content": []}`})
	return f.source.On("DownloadArchive", mock.Anything, title, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			f.orderMu.Lock()
			f.order = append(f.order, title)
			f.orderMu.Unlock()
			w := args.Get(2).(io.Writer)
			_, _ = w.Write(body)
			progress := args.Get(3).(func(received, total int64))
			progress(int64(len(body)), int64(len(body)))
		}).
		Return(nil)
}

func manifest(titles ...string) *sefariaapi.Manifest {
	m := &sefariaapi.Manifest{SchemaVersion: 6, Titles: make(map[string]time.Time)}
	for _, t := range titles {
		m.Titles[t] = remoteTS
	}
	return m
}

func statusOf(svc *Service, title string) entity.DownloadStatus {
	for _, ts := range svc.Titles() {
		if ts.Title == title {
			return ts.Status
		}
	}
	return ""
}

func TestService_CheckForUpdates(t *testing.T) {
	ctx := context.Background()

	t.Run("reports but does not queue without a wanted package", func(t *testing.T) {
		f := newFixture(t, nil)
		f.source.On("GetManifest", mock.Anything).Return(manifest("Genesis", "Exodus", "Berakhot"), nil).Once()

		res, err := f.svc.CheckForUpdates(ctx)
		require.NoError(t, err)

		assert.Equal(t, 3, res.TotalNewOrChanged)
		assert.Equal(t, []string{CompleteLibrary, "Tanakh", "Talmud"}, res.NewPackages)
		assert.Empty(t, f.svc.Queue())

		var available map[string]time.Time
		ok, err := f.store.Get(ctx, kvstore.KeyAvailableDownloads, &available)
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, available["Genesis"].Equal(remoteTS))
	})

	t.Run("queues stale titles of wanted packages and keeps the queue", func(t *testing.T) {
		f := newFixture(t, nil)
		f.writeArchive(t, "Exodus")
		f.writeArchive(t, "Genesis")
		f.seed(t, map[string]any{
			kvstore.KeyPackagesClicked: []string{"Tanakh"},
			kvstore.KeyDownloadQueue:   []string{"Genesis"},
			kvstore.KeyLastDownload: map[string]*time.Time{
				"Genesis": &remoteTS,
				"Exodus":  &olderTS,
			},
		})
		f.source.On("GetManifest", mock.Anything).Return(manifest("Genesis", "Exodus", "Berakhot"), nil).Once()

		res, err := f.svc.CheckForUpdates(ctx)
		require.NoError(t, err)

		assert.Equal(t, 2, res.TotalNewOrChanged, "Genesis is current")
		assert.Equal(t, []string{"Genesis", "Exodus"}, f.svc.Queue(), "Berakhot is not wanted")
	})

	t.Run("manifest failure", func(t *testing.T) {
		f := newFixture(t, nil)
		f.source.On("GetManifest", mock.Anything).Return(nil, errors.New("timeout")).Once()

		_, err := f.svc.CheckForUpdates(ctx)
		assert.Error(t, err)
	})
}

func TestService_DownloadPackage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.source.On("GetManifest", mock.Anything).Return(manifest("Genesis", "Berakhot"), nil).Once()
	f.expectArchive(t, "Genesis").Once()

	// A previously extracted copy of Genesis must not survive the update.
	require.NoError(t, os.MkdirAll(f.cfg.SourceDir, 0o755))
	stale := filepath.Join(f.cfg.SourceDir, "Genesis_1.json")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	var progress []entity.Progress
	f.svc.Subscribe("test", func(p entity.Progress) { progress = append(progress, p) })

	require.NoError(t, f.svc.DownloadPackage(ctx, "Tanakh"))

	assert.FileExists(t, filepath.Join(f.cfg.LibraryDir, "Genesis.zip"))
	assert.NoFileExists(t, stale)
	assert.Equal(t, entity.StatusDone, statusOf(f.svc, "Genesis"))
	assert.Equal(t, entity.StatusNotQueued, statusOf(f.svc, "Berakhot"))
	assert.Empty(t, f.svc.Queue())
	require.NotEmpty(t, progress)
	assert.Equal(t, progress[len(progress)-1].ReceivedBytes, progress[len(progress)-1].TotalBytes)

	var last map[string]*time.Time
	_, err := f.store.Get(ctx, kvstore.KeyLastDownload, &last)
	require.NoError(t, err)
	require.NotNil(t, last["Genesis"])
	assert.True(t, last["Genesis"].Equal(remoteTS))

	t.Run("package states", func(t *testing.T) {
		pkgs := f.svc.Packages()
		byName := make(map[string]entity.PackageState)
		for _, p := range pkgs {
			byName[p.Name] = p
		}
		tanakh := byName["Tanakh"]
		assert.True(t, tanakh.Clicked)
		assert.False(t, tanakh.Disabled)
		require.NotNil(t, tanakh.RemoteUpdated)
		assert.Nil(t, tanakh.LocalUpdated, "not every Tanakh title is downloaded")
		assert.False(t, byName["Talmud"].Clicked)
	})

	t.Run("current titles are not queued again", func(t *testing.T) {
		require.NoError(t, f.svc.DownloadPackage(ctx, "Tanakh"))
		f.source.AssertNumberOfCalls(t, "DownloadArchive", 1)
	})

	t.Run("unknown package", func(t *testing.T) {
		err := f.svc.DownloadPackage(ctx, "Music")
		assert.ErrorIs(t, err, ErrUnknownPackage)
	})
}

func TestService_Packages_Disabled(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, map[string]any{kvstore.KeyPackagesClicked: []string{CompleteLibrary}})
	require.NoError(t, f.svc.Load(context.Background()))

	for _, p := range f.svc.Packages() {
		if p.Name == CompleteLibrary {
			assert.True(t, p.Clicked)
			assert.False(t, p.Disabled)
			continue
		}
		assert.True(t, p.Disabled, p.Name)
	}
}

func TestService_ResumeDownload_AfterRestart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.seed(t, map[string]any{
		kvstore.KeyDownloadQueue:      []string{"Exodus"},
		kvstore.KeyDownloadInProgress: []string{"Genesis"},
		kvstore.KeyAvailableDownloads: manifest("Genesis", "Exodus").Titles,
	})

	require.NoError(t, f.svc.Load(ctx))
	assert.Equal(t, []string{"Genesis", "Exodus"}, f.svc.Queue())
	assert.Empty(t, f.svc.InProgress())

	var inProgress []string
	_, err := f.store.Get(ctx, kvstore.KeyDownloadInProgress, &inProgress)
	require.NoError(t, err)
	assert.Empty(t, inProgress)

	f.expectArchive(t, "Genesis").Once()
	f.expectArchive(t, "Exodus").Once()

	require.NoError(t, f.svc.ResumeDownload(ctx))
	assert.Equal(t, []string{"Genesis", "Exodus"}, f.order)
	assert.Empty(t, f.svc.Queue())
	assert.Equal(t, entity.StatusDone, statusOf(f.svc, "Exodus"))
	f.source.AssertExpectations(t)
}

func TestService_ResumeDownload_Failure(t *testing.T) {
	ctx := context.Background()
	seed := map[string]any{
		kvstore.KeyDownloadQueue:      []string{"Genesis", "Exodus"},
		kvstore.KeyAvailableDownloads: manifest("Genesis", "Exodus").Titles,
	}
	reset := errors.New("connection reset")

	t.Run("pause keeps the queue", func(t *testing.T) {
		var failed []string
		f := newFixture(t, FailureHandlerFunc(func(title string, err error) FailureAction {
			failed = append(failed, title)
			return Pause
		}))
		f.seed(t, seed)
		f.source.On("DownloadArchive", mock.Anything, "Genesis", mock.Anything, mock.Anything).Return(reset).Once()

		err := f.svc.ResumeDownload(ctx)
		assert.ErrorIs(t, err, ErrTransferFailed)
		assert.Equal(t, []string{"Genesis"}, failed)
		assert.Equal(t, []string{"Genesis", "Exodus"}, f.svc.Queue())
		assert.Empty(t, f.svc.InProgress())
		assert.NoFileExists(t, filepath.Join(f.cfg.LibraryDir, "Genesis.zip"))

		entries, err := os.ReadDir(f.cfg.LibraryDir)
		require.NoError(t, err)
		assert.Empty(t, entries, "partial downloads are cleaned up")
		f.source.AssertNotCalled(t, "DownloadArchive", mock.Anything, "Exodus", mock.Anything, mock.Anything)
	})

	t.Run("retry attempts the same title first", func(t *testing.T) {
		f := newFixture(t, FailureHandlerFunc(func(string, error) FailureAction { return Retry }))
		f.seed(t, seed)
		f.source.On("DownloadArchive", mock.Anything, "Genesis", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) { f.order = append(f.order, "Genesis") }).
			Return(reset).Once()
		f.expectArchive(t, "Genesis").Once()
		f.expectArchive(t, "Exodus").Once()

		require.NoError(t, f.svc.ResumeDownload(ctx))
		assert.Equal(t, []string{"Genesis", "Genesis", "Exodus"}, f.order)
		assert.Empty(t, f.svc.Queue())
	})

	t.Run("no handler pauses", func(t *testing.T) {
		f := newFixture(t, nil)
		f.seed(t, seed)
		f.source.On("DownloadArchive", mock.Anything, "Genesis", mock.Anything, mock.Anything).Return(reset).Once()

		assert.ErrorIs(t, f.svc.ResumeDownload(ctx), ErrTransferFailed)
	})
}

func TestService_PrioritizeDownload(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, map[string]any{kvstore.KeyDownloadQueue: []string{"Genesis", "Exodus", "Berakhot"}})
	require.NoError(t, f.svc.Load(context.Background()))

	f.svc.PrioritizeDownload("Berakhot")
	assert.Equal(t, []string{"Berakhot", "Genesis", "Exodus"}, f.svc.Queue())

	f.svc.PrioritizeDownload("Zohar")
	assert.Equal(t, []string{"Berakhot", "Genesis", "Exodus"}, f.svc.Queue())
	assert.Equal(t, entity.StatusNotQueued, statusOf(f.svc, "Zohar"))

	var queue []string
	_, err := f.store.Get(context.Background(), kvstore.KeyDownloadQueue, &queue)
	require.NoError(t, err)
	assert.Equal(t, []string{"Berakhot", "Genesis", "Exodus"}, queue)
}

func TestService_DeleteLibrary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.writeArchive(t, "Genesis")
	require.NoError(t, os.MkdirAll(f.cfg.SourceDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.cfg.SourceDir, "Genesis_1.json"), []byte("{}"), 0o644))
	f.seed(t, map[string]any{
		kvstore.KeyLastDownload:    map[string]*time.Time{"Genesis": &remoteTS},
		kvstore.KeyPackagesClicked: []string{"Tanakh"},
		kvstore.KeyDownloadQueue:   []string{"Exodus"},
	})
	require.NoError(t, f.svc.Load(ctx))
	require.Equal(t, entity.StatusDone, statusOf(f.svc, "Genesis"))

	assert.ErrorIs(t, f.svc.DeleteLibrary(ctx, false), ErrConfirmationRequired)
	assert.FileExists(t, filepath.Join(f.cfg.LibraryDir, "Genesis.zip"))

	require.NoError(t, f.svc.DeleteLibrary(ctx, true))
	assert.NoFileExists(t, filepath.Join(f.cfg.LibraryDir, "Genesis.zip"))
	assert.NoDirExists(t, f.cfg.SourceDir)
	for _, ts := range f.svc.Titles() {
		assert.Equal(t, entity.StatusNotQueued, ts.Status, ts.Title)
	}
	for _, p := range f.svc.Packages() {
		assert.False(t, p.Clicked, p.Name)
	}
}

func TestService_Watch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t, nil)
	f.writeArchive(t, "Genesis")
	f.seed(t, map[string]any{kvstore.KeyLastDownload: map[string]*time.Time{"Genesis": &remoteTS}})
	require.NoError(t, f.svc.Load(ctx))
	require.NoError(t, f.svc.Watch(ctx))

	require.NoError(t, os.Remove(filepath.Join(f.cfg.LibraryDir, "Genesis.zip")))

	assert.Eventually(t, func() bool {
		return statusOf(f.svc, "Genesis") == entity.StatusNotQueued
	}, 2*time.Second, 20*time.Millisecond)
}

func TestDefaultPackages(t *testing.T) {
	lib := testutil.NewLibrary(t)
	pkgs := DefaultPackages(lib.TOC())

	require.Len(t, pkgs, 4)
	assert.Equal(t, CompleteLibrary, pkgs[0].Name)
	assert.Empty(t, pkgs[0].Categories)
	assert.Equal(t, Package{Name: "Tanakh", HeName: "תנ״ך", Parent: CompleteLibrary, Categories: []string{"Tanakh"}}, pkgs[1])
}

func TestLoadPackages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "packages.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"en": "COMPLETE LIBRARY", "categories": []},
		{"en": "Tanakh with Rashi", "parent": "COMPLETE LIBRARY", "categories": ["Tanakh", "Commentary", "Rashi"]}
	]`), 0o644))

	pkgs, err := LoadPackages(path)
	require.NoError(t, err)
	require.Len(t, pkgs, 2)
	assert.Equal(t, []string{"Tanakh", "Commentary", "Rashi"}, pkgs[1].Categories)

	_, err = LoadPackages(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
