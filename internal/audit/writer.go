package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// JSONWriter writes one JSON object per line.
type JSONWriter struct {
	mu    sync.Mutex
	w     io.Writer
	nowFn func() time.Time
}

func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{w: w, nowFn: time.Now}
}

func (j *JSONWriter) Record(_ context.Context, e Event) error {
	e, err := Normalize(e, j.nowFn())
	if err != nil {
		return err
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	b = append(b, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.w == nil {
		return ErrClosed
	}
	_, err = j.w.Write(b)
	return err
}

// Close detaches the writer. The underlying writer is not closed.
func (j *JSONWriter) Close() error {
	j.mu.Lock()
	j.w = nil
	j.mu.Unlock()
	return nil
}
