package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const filePrefix = "medcompare-"

// Options configures the global logger
type Options struct {
	Dir            string
	Level          slog.Level
	RetentionWeeks int
	MaxFileSize    int64
}

// RotatingLogger is an io.Writer that starts a new file every ISO week and
// whenever the current file reaches maxFileSize
type RotatingLogger struct {
	dir         string
	retention   time.Duration
	maxFileSize int64

	mu      sync.Mutex
	file    *os.File
	week    string
	part    int
	size    int64
	now     func() time.Time
	stop    chan struct{}
	stopped chan struct{}
}

// NewRotatingLogger opens the current week's log file in dir
func NewRotatingLogger(dir string, retentionWeeks int, maxFileSize int64) (*RotatingLogger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	rl := &RotatingLogger{
		dir:         dir,
		retention:   time.Duration(retentionWeeks) * 7 * 24 * time.Hour,
		maxFileSize: maxFileSize,
		now:         time.Now,
		stop:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}

	rl.mu.Lock()
	err := rl.open(weekKey(rl.now()))
	rl.mu.Unlock()
	if err != nil {
		return nil, err
	}

	go rl.cleanupLoop()
	return rl, nil
}

// weekKey returns the ISO week in YYYY-Www form
func weekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func (rl *RotatingLogger) fileName(week string, part int) string {
	if part == 0 {
		return filepath.Join(rl.dir, filePrefix+week+".log")
	}
	return filepath.Join(rl.dir, fmt.Sprintf("%s%s_%02d.log", filePrefix, week, part))
}

// open picks the first file of week that still has room (caller holds mu)
func (rl *RotatingLogger) open(week string) error {
	if rl.file != nil {
		if err := rl.file.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
		}
		rl.file = nil
	}

	part := 0
	if week == rl.week {
		part = rl.part
	}
	for {
		info, err := os.Stat(rl.fileName(week, part))
		if err != nil || rl.maxFileSize <= 0 || info.Size() < rl.maxFileSize {
			break
		}
		part++
	}

	path := rl.fileName(week, part)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	rl.file, rl.week, rl.part, rl.size = f, week, part, 0
	if info, err := f.Stat(); err == nil {
		rl.size = info.Size()
	}
	return nil
}

// Write appends p to the current file, rotating first when needed
func (rl *RotatingLogger) Write(p []byte) (int, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	week := weekKey(rl.now())
	switch {
	case week != rl.week:
		if err := rl.open(week); err != nil {
			return 0, err
		}
	case rl.maxFileSize > 0 && rl.size > 0 && rl.size+int64(len(p)) > rl.maxFileSize:
		rl.part++
		if err := rl.open(week); err != nil {
			return 0, err
		}
	}

	if rl.file == nil {
		return 0, fmt.Errorf("no log file available")
	}
	n, err := rl.file.Write(p)
	rl.size += int64(n)
	return n, err
}

// CurrentFile returns the path of the file being written
func (rl *RotatingLogger) CurrentFile() string {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.fileName(rl.week, rl.part)
}

// Cleanup removes log files last modified before the retention window and
// returns how many were removed. The file being written is never removed.
func (rl *RotatingLogger) Cleanup() (int, error) {
	entries, err := os.ReadDir(rl.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read log directory: %w", err)
	}

	current := filepath.Base(rl.CurrentFile())
	cutoff := rl.now().Add(-rl.retention)

	var old []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == current || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, ".log") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			old = append(old, name)
		}
	}
	sort.Strings(old)

	removed := 0
	for _, name := range old {
		if err := os.Remove(filepath.Join(rl.dir, name)); err == nil {
			removed++
		}
	}
	return removed, nil
}

func (rl *RotatingLogger) cleanupLoop() {
	defer close(rl.stopped)

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			if n, err := rl.Cleanup(); err != nil {
				fmt.Fprintf(os.Stderr, "log cleanup failed: %v\n", err)
			} else if n > 0 {
				fmt.Fprintf(os.Stdout, "Cleaned up %d old log files\n", n)
			}
		}
	}
}

// Close stops the cleanup loop and closes the current file
func (rl *RotatingLogger) Close() error {
	select {
	case <-rl.stop:
	default:
		close(rl.stop)
	}
	<-rl.stopped

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.file == nil {
		return nil
	}
	err := rl.file.Close()
	rl.file = nil
	return err
}

// NewLogger builds a logger writing text to stdout and, when opts.Dir is set,
// JSON to a rotating file. The returned func closes the file.
func NewLogger(opts Options) (*slog.Logger, func() error) {
	console := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: opts.Level})
	if opts.Dir == "" {
		return slog.New(console), func() error { return nil }
	}

	retention := opts.RetentionWeeks
	if retention <= 0 {
		retention = 4
	}
	rl, err := NewRotatingLogger(opts.Dir, retention, opts.MaxFileSize)
	if err != nil {
		l := slog.New(console)
		l.Error("Failed to initialize rotating logger, logging to console only", "error", err)
		return l, func() error { return nil }
	}

	file := slog.NewJSONHandler(rl, &slog.HandlerOptions{Level: opts.Level})
	return slog.New(&multiHandler{handlers: []slog.Handler{console, file}}), rl.Close
}

// multiHandler fans records out to every enabled handler
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: next}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: next}
}
