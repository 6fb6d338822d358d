package registry

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"exoseek/internal/platform/logger"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the registry when the artifact or metadata file changes
// events inside debounce are coalesced into one reload; blocks until ctx is done
func (r *Registry) Watch(ctx context.Context, debounce time.Duration) error {
	log := logger.Named("registry-watch")

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	targets := map[string]struct{}{}
	dirs := map[string]struct{}{}
	for _, p := range []string{r.opt.ArtifactPath, r.opt.MetadataPath} {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		targets[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for d := range dirs {
		if err := w.Add(d); err != nil {
			return err
		}
		log.Info().Str("dir", d).Msg("watching for model changes")
	}

	fire := make(chan struct{}, 1)
	var (
		tmu   sync.Mutex
		timer *time.Timer
	)
	schedule := func() {
		tmu.Lock()
		defer tmu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounce, func() {
			select {
			case fire <- struct{}{}:
			default:
			}
		})
	}
	defer func() {
		tmu.Lock()
		if timer != nil {
			timer.Stop()
		}
		tmu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if _, hit := targets[filepath.Clean(ev.Name)]; !hit {
				continue
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove) {
				log.Debug().Str("file", ev.Name).Str("op", ev.Op.String()).Msg("model file changed")
				schedule()
			}
		case <-fire:
			if _, err := r.Reload(ctx); err != nil {
				log.Warn().Err(err).Msg("watch triggered reload left model unloaded")
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("watcher error")
		}
	}
}
