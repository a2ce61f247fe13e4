package logging

import (
	"bytes"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"domus/models"
)

const maxLogSize = 2 * 1024 * 1024 // 2MB

// RotatingWriter appends to a log file and moves it to <path>.1 once it
// grows past maxSize. One backup is kept.
type RotatingWriter struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	size    int64
	maxSize int64
}

// Setup sends the standard logger to stdout and a rotating file at logPath,
// dropping lines below level.
func Setup(logPath string, level models.LogLevel) (*RotatingWriter, error) {
	rw, err := NewRotatingWriter(logPath, maxLogSize)
	if err != nil {
		return nil, err
	}
	log.SetOutput(&LevelFilter{Min: level, Out: io.MultiWriter(os.Stdout, rw)})
	return rw, nil
}

func NewRotatingWriter(logPath string, maxSize int64) (*RotatingWriter, error) {
	if dir := filepath.Dir(logPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	// Truncate if too large on startup
	if info, err := os.Stat(logPath); err == nil && info.Size() > maxSize {
		os.Truncate(logPath, 0)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	info, _ := f.Stat()
	size := int64(0)
	if info != nil {
		size = info.Size()
	}

	return &RotatingWriter{
		file:    f,
		path:    logPath,
		size:    size,
		maxSize: maxSize,
	}, nil
}

func (w *RotatingWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err = w.file.Write(p)
	w.size += int64(n)

	if w.size > w.maxSize {
		w.rotate()
	}

	return n, err
}

func (w *RotatingWriter) rotate() {
	w.file.Close()

	os.Rename(w.path, w.path+".1")

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return
	}

	w.file = f
	w.size = 0
}

func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

var levelRank = map[models.LogLevel]int{
	models.LogLevelDebug: 0,
	models.LogLevelInfo:  1,
	models.LogLevelWarn:  2,
	models.LogLevelError: 3,
}

// LevelFilter drops "[debug]", "[info]", ... tagged lines below Min.
// Untagged lines always pass.
type LevelFilter struct {
	Min models.LogLevel
	Out io.Writer
}

func (f *LevelFilter) Write(p []byte) (int, error) {
	if level, ok := lineLevel(p); ok && levelRank[level] < levelRank[f.Min] {
		return len(p), nil
	}
	return f.Out.Write(p)
}

func lineLevel(p []byte) (models.LogLevel, bool) {
	start := bytes.IndexByte(p, '[')
	if start < 0 {
		return "", false
	}
	end := bytes.IndexByte(p[start:], ']')
	if end < 0 {
		return "", false
	}
	level := models.LogLevel(p[start+1 : start+end])
	_, ok := levelRank[level]
	return level, ok
}
