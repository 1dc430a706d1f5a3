// Package filemanager serializes structured records and plain text to
// durable storage without blocking the caller. Each write runs in its own
// goroutine, creates missing parent directories, and reports completion on
// a per-write channel. An outstanding-write counter supports drain and
// shutdown synchronization; it is decremented on success and failure alike,
// so Drain can never hang on a failed write.
package filemanager

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/swarmexec/logging"
)

// Encoder serializes a structured record for WriteRecord. The engine does
// not fix a record format; callers inject their own when JSON is not
// wanted.
type Encoder func(v any) ([]byte, error)

// Options configures a Manager.
type Options struct {
	// Encoder serializes records. Defaults to indented JSON.
	Encoder Encoder
	// Logger receives write failures no caller is waiting on.
	Logger logging.Logger
	// DirPerm is applied to created directories. Defaults to 0o755.
	DirPerm os.FileMode
	// FilePerm is applied to written files. Defaults to 0o644.
	FilePerm os.FileMode
}

// WithEncoder overrides the record serialization scheme.
func WithEncoder(enc Encoder) func(o *Options) {
	return func(o *Options) { o.Encoder = enc }
}

// WithLogger sets the logger for unobserved write failures.
func WithLogger(logger logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = logger }
}

// Manager coordinates asynchronous file writes. Safe for concurrent use.
type Manager struct {
	enc      Encoder
	logger   logging.Logger
	dirPerm  os.FileMode
	filePerm os.FileMode

	pending atomic.Int64
	wg      sync.WaitGroup
}

// New creates a Manager with optional overrides.
func New(optFns ...func(o *Options)) *Manager {
	opts := Options{
		Encoder:  func(v any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") },
		Logger:   logging.NoOpLogger{},
		DirPerm:  0o755,
		FilePerm: 0o644,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Manager{
		enc:      opts.Encoder,
		logger:   opts.Logger,
		dirPerm:  opts.DirPerm,
		filePerm: opts.FilePerm,
	}
}

// WriteRecord asynchronously serializes v and writes it to path. The
// returned channel receives exactly one value (nil on success) and is
// buffered, so ignoring it never blocks the write.
func (m *Manager) WriteRecord(path string, v any) <-chan error {
	return m.enqueue(path, func() ([]byte, error) { return m.enc(v) })
}

// WriteText asynchronously writes plain text content to path. Completion is
// signalled like WriteRecord.
func (m *Manager) WriteText(path, content string) <-chan error {
	return m.enqueue(path, func() ([]byte, error) { return []byte(content), nil })
}

// Pending returns the number of writes currently in flight.
func (m *Manager) Pending() int {
	return int(m.pending.Load())
}

// Drain blocks until all in-flight writes complete or the context is
// cancelled. Failed writes count as complete.
func (m *Manager) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close waits for all outstanding writes without a deadline.
func (m *Manager) Close() {
	m.wg.Wait()
}

func (m *Manager) enqueue(path string, produce func() ([]byte, error)) <-chan error {
	result := make(chan error, 1)

	m.pending.Add(1)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.pending.Add(-1)

		err := m.write(path, produce)
		if err != nil {
			m.logger.Error("file write failed", "path", path, "error", err)
		}
		result <- err
	}()

	return result
}

func (m *Manager) write(path string, produce func() ([]byte, error)) error {
	data, err := produce()
	if err != nil {
		return fmt.Errorf("filemanager: encode %s: %w", path, err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, m.dirPerm); err != nil {
			return fmt.Errorf("filemanager: create dir %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, m.filePerm); err != nil {
		return fmt.Errorf("filemanager: write %s: %w", path, err)
	}
	return nil
}
