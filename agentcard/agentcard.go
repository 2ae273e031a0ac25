// Package agentcard supplies the AgentCard an agent publishes at its
// well-known discovery URL.
package agentcard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/ggoodman/a2a-server-go/a2a"
)

// Provider returns the current agent card.
type Provider interface {
	AgentCard(ctx context.Context) (*a2a.AgentCard, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (*a2a.AgentCard, error)

func (f ProviderFunc) AgentCard(ctx context.Context) (*a2a.AgentCard, error) { return f(ctx) }

// Static always returns card.
func Static(card *a2a.AgentCard) Provider {
	return ProviderFunc(func(context.Context) (*a2a.AgentCard, error) { return card, nil })
}

// Validate checks the fields every published card needs and fills in the
// protocol version when it is missing.
func Validate(card *a2a.AgentCard) error {
	var errs []error
	if card.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if card.URL == "" {
		errs = append(errs, errors.New("url is required"))
	}
	if card.Version == "" {
		errs = append(errs, errors.New("version is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("agentcard: invalid card: %w", err)
	}
	if card.ProtocolVersion == "" {
		card.ProtocolVersion = a2a.ProtocolVersion
	}
	return nil
}

// FileOption configures a File provider.
type FileOption func(*File)

// WithLogger sets the logger used to report reloads.
func WithLogger(l *slog.Logger) FileOption {
	return func(f *File) { f.log = l }
}

// WithOnReload registers fn to run after every successful reload.
func WithOnReload(fn func(*a2a.AgentCard)) FileOption {
	return func(f *File) { f.onReload = fn }
}

// File serves a card read from a JSON file and reloads it whenever the file
// changes. A reload that fails to read or validate keeps the previous card.
type File struct {
	path     string
	log      *slog.Logger
	onReload func(*a2a.AgentCard)
	card     atomic.Pointer[a2a.AgentCard]
}

// NewFile loads path and watches it until ctx is done. The initial load must
// succeed. When the platform offers no file notifications the card is served
// without reloading.
func NewFile(ctx context.Context, path string, opts ...FileOption) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("agentcard: resolving %q: %w", path, err)
	}
	f := &File{path: abs, log: slog.Default()}
	for _, opt := range opts {
		opt(f)
	}
	card, err := f.load()
	if err != nil {
		return nil, err
	}
	f.card.Store(card)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		f.log.Debug("agentcard.watch.unavailable", slog.String("err", err.Error()))
		return f, nil
	}
	// Watch the directory: editors and config management replace files by
	// rename, which drops a watch held on the file itself.
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		f.log.Debug("agentcard.watch.unavailable", slog.String("err", err.Error()))
		return f, nil
	}
	go f.watch(ctx, w)
	return f, nil
}

func (f *File) AgentCard(context.Context) (*a2a.AgentCard, error) {
	return f.card.Load(), nil
}

// Reload re-reads the file. On error the current card is kept.
func (f *File) Reload() error {
	card, err := f.load()
	if err != nil {
		return err
	}
	f.card.Store(card)
	if f.onReload != nil {
		f.onReload(card)
	}
	return nil
}

func (f *File) load() (*a2a.AgentCard, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("agentcard: reading %s: %w", f.path, err)
	}
	var card a2a.AgentCard
	if err := json.Unmarshal(b, &card); err != nil {
		return nil, fmt.Errorf("agentcard: decoding %s: %w", f.path, err)
	}
	if err := Validate(&card); err != nil {
		return nil, err
	}
	return &card, nil
}

func (f *File) watch(ctx context.Context, w *fsnotify.Watcher) {
	defer func() {
		_ = w.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != f.path {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if err := f.Reload(); err != nil {
				// Renames away and partial writes land here; the next event
				// for the path retries.
				f.log.Warn("agentcard.reload.fail", slog.String("path", f.path), slog.String("err", err.Error()))
				continue
			}
			f.log.Info("agentcard.reload.ok", slog.String("path", f.path))
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			f.log.Debug("agentcard.watch.error", slog.String("err", err.Error()))
		}
	}
}
