package download

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"

	"sefaria/internal/entity"

	"github.com/fsnotify/fsnotify"
)

// Watch follows the library directory until ctx is done. An archive removed
// or renamed by someone else puts its title back to not downloaded.
func (s *Service) Watch(ctx context.Context) error {
	if err := os.MkdirAll(s.cfg.LibraryDir, 0o755); err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(s.cfg.LibraryDir); err != nil {
		w.Close()
		return err
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}
				s.archiveRemoved(ctx, event.Name)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Printf("download watch_error err=%v", err)
			}
		}
	}()
	return nil
}

func (s *Service) archiveRemoved(ctx context.Context, path string) {
	name := filepath.Base(path)
	if filepath.Ext(name) != ".zip" {
		return
	}
	title := strings.TrimSuffix(name, ".zip")
	if _, err := os.Stat(path); err == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.get(title) != entity.StatusDone {
		return
	}
	s.state.reset(title)
	delete(s.lastDownload, title)
	log.Printf("download archive_removed title=%s", title)
	if err := s.persistLocked(ctx); err != nil {
		log.Printf("download persist_failed err=%v", err)
	}
}
