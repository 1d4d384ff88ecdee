// Package watcher keeps the document store in step with reference document directories.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Sink receives file changes. docstore.Ingester satisfies it.
type Sink interface {
	Accepts(path string) bool
	IngestFile(ctx context.Context, path string) (bool, error)
	IngestDirectory(ctx context.Context, dir string, recursive bool) (int, error)
	DeleteFile(ctx context.Context, path string) error
}

// Watcher ingests created or modified files under its roots after a quiet period and deletes
// the documents of removed files.
type Watcher struct {
	roots     []string
	recursive bool
	sink      Sink
	debounce  time.Duration
	logger    *zap.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	pending map[string]*time.Timer
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the watcher logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long a path must be quiet before it is ingested.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates a watcher over roots. Missing roots are created on Start.
func New(roots []string, recursive bool, sink Sink, opts ...Option) *Watcher {
	w := &Watcher{
		roots:     roots,
		recursive: recursive,
		sink:      sink,
		debounce:  defaultDebounce,
		logger:    zap.NewNop(),
		pending:   make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start registers the roots and processes events until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw != nil {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for i, root := range w.roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			_ = fsw.Close()
			return err
		}
		if err := os.MkdirAll(abs, 0755); err != nil {
			_ = fsw.Close()
			return err
		}
		if err := w.watchTree(fsw, abs); err != nil {
			_ = fsw.Close()
			return err
		}
		w.roots[i] = abs
	}
	w.fsw = fsw
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.wg.Add(1)
	go w.run(runCtx, fsw)
	w.logger.Info("watching document directories",
		zap.Strings("roots", w.roots),
		zap.Bool("recursive", w.recursive))
	return nil
}

func (w *Watcher) watchTree(fsw *fsnotify.Watcher, dir string) error {
	if !w.recursive {
		return fsw.Add(dir)
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handle(ctx, fsw, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(ctx context.Context, fsw *fsnotify.Watcher, ev fsnotify.Event) {
	path := ev.Name
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.cancelPending(path)
		if !w.sink.Accepts(path) {
			return
		}
		if err := w.sink.DeleteFile(ctx, path); err != nil {
			w.logger.Warn("failed to delete document for removed file", zap.String("path", path), zap.Error(err))
		}
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			if ev.Has(fsnotify.Create) && w.recursive {
				w.addDirectory(ctx, fsw, path)
			}
			return
		}
		if w.sink.Accepts(path) {
			w.schedule(ctx, path)
		}
	}
}

// addDirectory watches a directory created under a root and ingests what is already in it.
func (w *Watcher) addDirectory(ctx context.Context, fsw *fsnotify.Watcher, dir string) {
	if err := w.watchTree(fsw, dir); err != nil {
		w.logger.Warn("failed to watch new directory", zap.String("path", dir), zap.Error(err))
		return
	}
	n, err := w.sink.IngestDirectory(ctx, dir, true)
	if err != nil {
		w.logger.Warn("failed to ingest new directory", zap.String("path", dir), zap.Error(err))
		return
	}
	w.logger.Debug("new directory ingested", zap.String("path", dir), zap.Int("files", n))
}

func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		written, err := w.sink.IngestFile(ctx, path)
		switch {
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			w.logger.Warn("failed to ingest changed file", zap.String("path", path), zap.Error(err))
		case written:
			w.logger.Debug("changed file ingested", zap.String("path", path))
		}
	})
}

func (w *Watcher) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

// Directories returns the watched root directories.
func (w *Watcher) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.roots...)
}

// Stop cancels pending ingestion and releases the fsnotify watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.fsw == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	w.cancel()
	fsw := w.fsw
	w.fsw = nil
	w.mu.Unlock()

	w.wg.Wait()
	_ = fsw.Close()
}
