package engine

import (
	"bytes"
	"strings"
	"sync"

	"gopad/internal/logging"
)

// lineWriter splits call-scoped output into lines and forwards each one as
// soon as it is complete. After Close, writes are dropped: output from
// goroutines outliving their call has no submission to belong to.
type lineWriter struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	emit   func(string)
	closed bool
}

func newLineWriter(emit func(string)) *lineWriter {
	return &lineWriter{emit: emit}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		logging.EngineDebug("dropped %d bytes written after call returned", len(p))
		return len(p), nil
	}

	w.buf.Write(p)
	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := string(w.buf.Next(i + 1))
		w.emit(strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r"))
	}
	return len(p), nil
}

// Close flushes a trailing partial line.
func (w *lineWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if w.buf.Len() > 0 {
		w.emit(w.buf.String())
		w.buf.Reset()
	}
	return nil
}
