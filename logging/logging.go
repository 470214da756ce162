package logging

import (
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

const maxLogSize = 2 * 1024 * 1024 // 2MB

// RotatingWriter appends to a log file and moves it to <path>.1 once it
// grows past maxSize. Only one backup is kept.
type RotatingWriter struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	size    int64
	maxSize int64
}

// Setup sends the standard logger to stdout and path. Any of secrets that
// appears in a log line is masked before it is written.
func Setup(path string, secrets ...string) (*RotatingWriter, error) {
	rw, err := NewRotatingWriter(path, maxLogSize)
	if err != nil {
		return nil, err
	}

	log.SetOutput(NewRedactingWriter(io.MultiWriter(os.Stdout, rw), secrets...))
	return rw, nil
}

func NewRotatingWriter(path string, maxSize int64) (*RotatingWriter, error) {
	// Truncate if too large on startup
	if info, err := os.Stat(path); err == nil && info.Size() > maxSize {
		os.Truncate(path, 0)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	size := int64(0)
	if info, _ := f.Stat(); info != nil {
		size = info.Size()
	}

	return &RotatingWriter{
		file:    f,
		path:    path,
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

// RedactingWriter masks credentials before passing lines on.
type RedactingWriter struct {
	out      io.Writer
	replacer *strings.Replacer
}

func NewRedactingWriter(out io.Writer, secrets ...string) *RedactingWriter {
	var pairs []string
	for _, s := range secrets {
		if len(s) >= 4 {
			pairs = append(pairs, s, "****")
		}
	}
	return &RedactingWriter{out: out, replacer: strings.NewReplacer(pairs...)}
}

func (w *RedactingWriter) Write(p []byte) (int, error) {
	if _, err := w.replacer.WriteString(w.out, string(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}
