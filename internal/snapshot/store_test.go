package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const (
	id1 = "123e4567-e89b-12d3-a456-426614174000"
	id2 = "123e4567-e89b-12d3-a456-426614174001"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "snaps"))
	if err != nil {
		t.Fatalf("NewStore() = %v", err)
	}
	return store
}

func TestSaveListReadDelete(t *testing.T) {
	store := newStore(t)
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := store.Save(Meta{ID: id1, NodeID: "a", Format: "png", CreatedAt: older}, []byte("png-bytes")); err != nil {
		t.Fatalf("Save() = %v", err)
	}
	if err := store.Save(Meta{ID: id2, NodeID: "b", Format: "svg", CreatedAt: older.Add(time.Hour)}, []byte("<svg/>")); err != nil {
		t.Fatalf("Save() = %v", err)
	}

	all, err := store.List("")
	if err != nil {
		t.Fatalf("List() = %v", err)
	}
	if len(all) != 2 || all[0].ID != id2 {
		t.Fatalf("List() = %+v; want newest first", all)
	}
	onlyA, _ := store.List("a")
	if len(onlyA) != 1 || onlyA[0].ID != id1 {
		t.Fatalf("List(a) = %+v", onlyA)
	}

	meta, err := store.Get(id1)
	if err != nil {
		t.Fatalf("Get() = %v", err)
	}
	if meta.SizeBytes != len("png-bytes") {
		t.Fatalf("SizeBytes = %d; want %d", meta.SizeBytes, len("png-bytes"))
	}

	data, format, err := store.ReadImage(id2)
	if err != nil || format != "svg" || string(data) != "<svg/>" {
		t.Fatalf("ReadImage() = %q, %q, %v", data, format, err)
	}

	if err := store.Delete(id1); err != nil {
		t.Fatalf("Delete() = %v", err)
	}
	if _, err := store.Get(id1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() after Delete = %v; want ErrNotFound", err)
	}
	if err := store.Delete(id1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete() = %v; want ErrNotFound", err)
	}
}

func TestSaveRejectsBadInput(t *testing.T) {
	store := newStore(t)
	if err := store.Save(Meta{ID: "../etc/passwd", Format: "png"}, nil); err == nil {
		t.Fatal("Save() accepted invalid id")
	}
	if err := store.Save(Meta{ID: id1, Format: "exe"}, nil); err == nil {
		t.Fatal("Save() accepted unsupported format")
	}
}

func TestDeleteLogsImageCleanupFailureWhenImageMissing(t *testing.T) {
	dir := t.TempDir()
	store := &Store{dir: dir}
	jsonPath := filepath.Join(dir, id1+".json")

	metaBytes, err := json.Marshal(Meta{ID: id1, Format: "png"})
	if err != nil {
		t.Fatalf("json.Marshal() failed: %v", err)
	}
	if err := os.WriteFile(jsonPath, metaBytes, 0o644); err != nil {
		t.Fatalf("os.WriteFile() failed: %v", err)
	}

	var buf bytes.Buffer
	oldLogger := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() {
		slog.SetDefault(oldLogger)
	})

	if err := store.Delete(id1); err != nil {
		t.Fatalf("Delete() = %v; want nil", err)
	}
	if !strings.Contains(buf.String(), "snapshot image cleanup failed") {
		t.Fatalf("expected image cleanup debug log, got %q", buf.String())
	}
	if _, err := os.Stat(jsonPath); !os.IsNotExist(err) {
		t.Fatalf("meta sidecar still present: %v", err)
	}
}

func TestReadImageMissingFile(t *testing.T) {
	store := newStore(t)
	if err := store.Save(Meta{ID: id1, Format: "png"}, []byte("x")); err != nil {
		t.Fatalf("Save() = %v", err)
	}
	if err := os.Remove(filepath.Join(store.dir, id1+".png")); err != nil {
		t.Fatalf("os.Remove() failed: %v", err)
	}
	if _, _, err := store.ReadImage(id1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ReadImage() = %v; want ErrNotFound", err)
	}
}
