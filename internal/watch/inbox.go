// Package watch imports project documents dropped into an inbox directory.
//
// Every *.json file created or written in the directory is imported through
// the project registry once it has been quiet for the settle delay. The file
// is then renamed with an .imported or .rejected suffix so it is never
// processed twice.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/promptpack/internal/exchange"
	"github.com/fyrsmithlabs/promptpack/internal/logging"
	"github.com/fyrsmithlabs/promptpack/internal/project"
)

// Suffixes appended to processed files.
const (
	SuffixImported = ".imported"
	SuffixRejected = ".rejected"
)

// DefaultSettle is how long a file must go without events before import.
const DefaultSettle = 250 * time.Millisecond

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// Result reports the outcome of one inbox file.
type Result struct {
	// Path is the original file path.
	Path string

	// ProjectID is the imported project, empty on failure.
	ProjectID string

	// Err is the import error, nil on success.
	Err error
}

// Inbox watches a directory and imports documents into a registry.
type Inbox struct {
	dir     string
	manager project.Manager
	logger  *logging.Logger
	settle  time.Duration
	watcher *fsnotify.Watcher
	results chan Result
}

// Option configures an Inbox.
type Option func(*Inbox)

// WithLogger sets the inbox logger.
func WithLogger(l *logging.Logger) Option {
	return func(i *Inbox) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithSettle overrides DefaultSettle.
func WithSettle(d time.Duration) Option {
	return func(i *Inbox) {
		if d > 0 {
			i.settle = d
		}
	}
}

// New creates the inbox directory when missing and prepares a watcher.
func New(dir string, mgr project.Manager, opts ...Option) (*Inbox, error) {
	if dir == "" {
		return nil, errors.New("inbox directory is required")
	}
	if mgr == nil {
		return nil, errors.New("project manager cannot be nil")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating inbox directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	i := &Inbox{
		dir:     dir,
		manager: mgr,
		logger:  logging.NewNop(),
		settle:  DefaultSettle,
		watcher: watcher,
		results: make(chan Result, 16),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = i.logger.Named("watch")
	return i, nil
}

// Results returns the channel of processed files. Results are dropped when
// nobody reads them.
func (i *Inbox) Results() <-chan Result {
	return i.results
}

// Run imports files already in the inbox, then watches for new ones until
// ctx is cancelled. The watcher is closed on return.
func (i *Inbox) Run(ctx context.Context) error {
	defer i.watcher.Close()

	if err := i.watcher.Add(i.dir); err != nil {
		return fmt.Errorf("watching %s: %w", i.dir, err)
	}
	i.logger.Info(ctx, "watching inbox", zap.String("dir", i.dir))

	existing, err := pending(i.dir)
	if err != nil {
		return err
	}
	for _, path := range existing {
		i.ImportFile(ctx, path)
	}

	ticker := time.NewTicker(tickInterval(i.settle))
	defer ticker.Stop()
	seen := make(map[string]time.Time)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-i.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 && isDocument(event.Name) {
				seen[event.Name] = time.Now()
			}

		case err, ok := <-i.watcher.Errors:
			if !ok {
				return nil
			}
			i.logger.Warn(ctx, "inbox watcher error", zap.Error(err))

		case now := <-ticker.C:
			for _, path := range settled(seen, now, i.settle) {
				delete(seen, path)
				i.ImportFile(ctx, path)
			}
		}
	}
}

// ImportFile imports one document and renames it by outcome.
func (i *Inbox) ImportFile(ctx context.Context, path string) Result {
	res := Result{Path: path}

	data, err := readDocument(path)
	if errors.Is(err, os.ErrNotExist) {
		// Removed before it settled.
		return res
	}
	if err == nil {
		var p *project.Project
		p, err = i.manager.Import(ctx, data)
		if p != nil {
			res.ProjectID = p.ID
		}
	}
	res.Err = err

	suffix := SuffixImported
	if err != nil {
		suffix = SuffixRejected
		i.logger.Warn(ctx, "inbox document rejected", zap.String("file", filepath.Base(path)), zap.Error(err))
	} else {
		i.logger.Info(logging.WithProjectID(ctx, res.ProjectID), "inbox document imported",
			zap.String("file", filepath.Base(path)))
	}
	if err := os.Rename(path, path+suffix); err != nil {
		i.logger.Warn(ctx, "failed to mark inbox document", zap.String("file", filepath.Base(path)), zap.Error(err))
	}

	select {
	case i.results <- res:
	default:
	}
	return res
}

// readDocument reads at most one byte past the document size limit so the
// codec can reject oversized files without loading them whole.
func readDocument(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, exchange.MaxDocumentSize+1))
}

func isDocument(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// pending lists unprocessed documents in dir, sorted by name.
func pending(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading inbox: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.Type().IsRegular() && isDocument(e.Name()) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	return paths, nil
}

// settled returns the paths quiet for at least d, sorted for stable order.
func settled(seen map[string]time.Time, now time.Time, d time.Duration) []string {
	var paths []string
	for path, last := range seen {
		if now.Sub(last) >= d {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths
}

// tickInterval polls at half the settle delay, never below a millisecond.
func tickInterval(settle time.Duration) time.Duration {
	return max(settle/2, time.Millisecond)
}
