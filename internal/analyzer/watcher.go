package analyzer

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher reloads the lexicon file into an Analyzer when it changes. A
// file that fails to parse is logged and the previous tables stay active.
type Watcher struct {
	path string
	an   *Analyzer
	fw   *fsnotify.Watcher
	// OnReload, when set, is called after each reload attempt.
	OnReload func(err error)
}

// Watch loads path once and starts watching its directory. Editors often
// replace files by rename, so the directory is watched, not the file.
func Watch(an *Analyzer, path string) (*Watcher, error) {
	lex, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	an.Swap(lex)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("lexicon watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("lexicon watcher add %s: %w", path, err)
	}
	return &Watcher{path: filepath.Clean(path), an: an, fw: fw}, nil
}

// Close stops watching; a running Run returns.
func (w *Watcher) Close() error { return w.fw.Close() }

// Run blocks until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fw.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				w.reload()
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Str("path", w.path).Msg("lexicon watcher error")
		}
	}
}

func (w *Watcher) reload() {
	lex, err := LoadFile(w.path)
	if err != nil {
		log.Error().Err(err).Str("path", w.path).Msg("lexicon reload rejected, keeping previous tables")
	} else {
		w.an.Swap(lex)
		log.Info().Str("path", w.path).Msg("lexicon reloaded")
	}
	if w.OnReload != nil {
		w.OnReload(err)
	}
}
