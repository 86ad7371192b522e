package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestScanDirectory(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "b.PNG"))
	touch(t, filepath.Join(root, "a.jpg"))
	touch(t, filepath.Join(root, "nested", "c.jpeg"))
	touch(t, filepath.Join(root, "scan.pdf"))
	touch(t, filepath.Join(root, "notes.txt"))
	touch(t, filepath.Join(root, ".hidden", "d.png"))

	res, err := ScanDirectory(root, true)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(root, "a.jpg"),
		filepath.Join(root, "b.PNG"),
		filepath.Join(root, "nested", "c.jpeg"),
	}
	if len(res.Images) != len(want) {
		t.Fatalf("images = %v", res.Images)
	}
	for i := range want {
		if res.Images[i] != want[i] {
			t.Errorf("images[%d] = %s, want %s", i, res.Images[i], want[i])
		}
	}
	if len(res.Skipped) != 1 || res.Stats.Skipped != 1 || res.Stats.Matched != 3 {
		t.Errorf("skipped = %v stats = %+v", res.Skipped, res.Stats)
	}

	withHidden, err := ScanDirectory(root, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(withHidden.Images) != 4 {
		t.Errorf("expected hidden image when not skipping, got %v", withHidden.Images)
	}
}

func TestScanDirectoryErrors(t *testing.T) {
	if _, err := ScanDirectory("  ", false); err == nil {
		t.Error("blank root must fail")
	}
	if _, err := ScanDirectory(filepath.Join(t.TempDir(), "missing"), false); err == nil {
		t.Error("missing root must fail")
	}
}

func TestWatcherEmitsInitialAndNewImages(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "old.png")
	touch(t, existing)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{root}, InitialScan: true, Debounce: 20 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}

	next := func() string {
		select {
		case p := <-events:
			return p
		case <-time.After(3 * time.Second):
			t.Fatal("timed out waiting for watcher event")
			return ""
		}
	}
	if got := next(); got != existing {
		t.Fatalf("initial scan emitted %s", got)
	}

	touch(t, filepath.Join(root, "ignored.txt"))
	created := filepath.Join(root, "new.jpg")
	touch(t, created)
	if got := next(); got != created {
		t.Fatalf("watcher emitted %s, want %s", got, created)
	}

	cancel()
	for range events {
	}
}
