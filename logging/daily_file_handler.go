package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// dailyFile is shared by a handler and every handler derived from it, so a
// rotation done by one is seen by all.
type dailyFile struct {
	mutex           sync.Mutex
	currentFile     *os.File
	currentFileName string
	logDir          string
	prefix          string
	now             func() time.Time
}

// DailyFileHandler writes one plain text line per record to
// <logDir>/<prefix>-YYYY-MM-DD.log and mirrors every record to stdout.
type DailyFileHandler struct {
	file           *dailyFile
	attrs          string
	group          string
	defaultHandler slog.Handler
}

func NewDailyFileHandler(logDir, prefix string, opts *slog.HandlerOptions) (*DailyFileHandler, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	h := &DailyFileHandler{
		file: &dailyFile{
			logDir: logDir,
			prefix: prefix,
			now:    time.Now,
		},
		defaultHandler: slog.NewTextHandler(os.Stdout, opts),
	}

	h.file.mutex.Lock()
	defer h.file.mutex.Unlock()
	if err := h.file.rotateIfNeeded(); err != nil {
		return nil, err
	}
	return h, nil
}

// rotateIfNeeded must be called with the mutex held.
func (f *dailyFile) rotateIfNeeded() error {
	fileName := fmt.Sprintf("%s-%s.log", f.prefix, f.now().Format("2006-01-02"))
	if fileName == f.currentFileName {
		return nil
	}

	if f.currentFile != nil {
		f.currentFile.Close()
	}

	file, err := os.OpenFile(filepath.Join(f.logDir, fileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		f.currentFile = nil
		f.currentFileName = ""
		return fmt.Errorf("failed to open log file: %w", err)
	}

	f.currentFile = file
	f.currentFileName = fileName
	return nil
}

func (f *dailyFile) write(line string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if err := f.rotateIfNeeded(); err != nil {
		return err
	}
	_, err := f.currentFile.WriteString(line)
	return err
}

func (f *dailyFile) Close() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.currentFile == nil {
		return nil
	}
	err := f.currentFile.Close()
	f.currentFile = nil
	f.currentFileName = ""
	return err
}

func (h *DailyFileHandler) Handle(ctx context.Context, r slog.Record) error {
	var attrs strings.Builder
	attrs.WriteString(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&attrs, h.group, a)
		return true
	})

	logLine := fmt.Sprintf("[%s] %-5s %s%s\n", r.Time.Format("2006/01/02 15:04:05.000"), r.Level.String(), r.Message, attrs.String())

	// stdout still gets the record when the file cannot be written
	err := h.file.write(logLine)
	if err2 := h.defaultHandler.Handle(ctx, r); err2 != nil && err == nil {
		err = err2
	}
	return err
}

func (h *DailyFileHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var b strings.Builder
	b.WriteString(h.attrs)
	for _, a := range attrs {
		writeAttr(&b, h.group, a)
	}
	return &DailyFileHandler{
		file:           h.file,
		attrs:          b.String(),
		group:          h.group,
		defaultHandler: h.defaultHandler.WithAttrs(attrs),
	}
}

func (h *DailyFileHandler) WithGroup(name string) slog.Handler {
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &DailyFileHandler{
		file:           h.file,
		attrs:          h.attrs,
		group:          group,
		defaultHandler: h.defaultHandler.WithGroup(name),
	}
}

func (h *DailyFileHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.defaultHandler.Enabled(ctx, level)
}

// Close closes the current log file. Handlers derived from h share it.
func (h *DailyFileHandler) Close() error {
	return h.file.Close()
}

func writeAttr(b *strings.Builder, group string, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if group != "" {
		key = group + "." + key
	}
	fmt.Fprintf(b, " %s=%v", key, a.Value)
}
