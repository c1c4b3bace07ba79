// Package journal records chart lifecycle events as JSON lines in
// date-organized, size-rotated files.
package journal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

const fileName = "lifecycle.jsonl"

// Record is one journaled lifecycle event.
type Record struct {
	Time     time.Time `json:"time"`
	Event    string    `json:"event"` // mount, update, unmount
	Hook     string    `json:"hook"`
	NodeID   string    `json:"node_id"`
	OK       bool      `json:"ok"`
	Code     string    `json:"code,omitempty"`
	Error    string    `json:"error,omitempty"`
	Datasets int       `json:"datasets,omitempty"`
	Labels   int       `json:"labels,omitempty"`
}

// Writer handles async writing of records to <base>/<date>/lifecycle.jsonl.
type Writer struct {
	baseDir     string
	maxSizeMB   int
	writeCh     chan Record
	done        chan struct{}
	closeOnce   sync.Once
	wg          sync.WaitGroup
	currentDate string
	logger      *lumberjack.Logger
	mu          sync.Mutex
	now         func() time.Time
}

func NewWriter(baseDir string, bufferSize, maxSizeMB int) *Writer {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	w := &Writer{
		baseDir:   baseDir,
		maxSizeMB: maxSizeMB,
		writeCh:   make(chan Record, bufferSize),
		done:      make(chan struct{}),
		now:       time.Now,
	}

	w.wg.Add(1)
	go w.writeLoop()

	return w
}

// Write queues a record without blocking. A full buffer drops the record.
func (w *Writer) Write(rec Record) error {
	if rec.Time.IsZero() {
		rec.Time = w.now().UTC()
	}
	select {
	case <-w.done:
		return fmt.Errorf("journal: writer is closed")
	default:
	}
	select {
	case w.writeCh <- rec:
		return nil
	default:
		slog.Warn("journal buffer full, dropping record", "event", rec.Event, "node_id", rec.NodeID)
		return fmt.Errorf("journal: buffer full")
	}
}

// Close flushes pending records and closes the current file.
func (w *Writer) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		w.wg.Wait()

		timeout := time.After(5 * time.Second)
	drain:
		for {
			select {
			case rec := <-w.writeCh:
				w.writeRecord(rec)
			case <-timeout:
				slog.Warn("journal close timeout, some records may be lost")
				break drain
			default:
				break drain
			}
		}

		w.mu.Lock()
		defer w.mu.Unlock()
		if w.logger != nil {
			err = w.logger.Close()
		}
	})
	return err
}

func (w *Writer) writeLoop() {
	defer w.wg.Done()

	for {
		select {
		case rec := <-w.writeCh:
			w.writeRecord(rec)
		case <-w.done:
			return
		}
	}
}

func (w *Writer) writeRecord(rec Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		slog.Error("journal marshal failed", "error", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	date := rec.Time.UTC().Format("2006-01-02")
	if date != w.currentDate || w.logger == nil {
		if err := w.rotateForDate(date); err != nil {
			slog.Error("journal rotate failed", "error", err, "date", date)
			return
		}
	}

	if _, err := w.logger.Write(append(data, '\n')); err != nil {
		slog.Error("journal write failed", "error", err)
	}
}

func (w *Writer) rotateForDate(date string) error {
	if w.logger != nil {
		w.logger.Close()
		w.logger = nil
	}

	dir := filepath.Join(w.baseDir, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}

	filename := filepath.Join(dir, fileName)
	w.logger = &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    w.maxSizeMB,
		MaxBackups: 100,
		MaxAge:     30,
		LocalTime:  false,
	}
	w.currentDate = date
	slog.Info("journal file opened", "file", filename)
	return nil
}
