package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"domus/models"
)

func TestRotatingWriterRotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "domus.log")
	w, err := NewRotatingWriter(path, 16)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer w.Close()

	if _, err := w.Write([]byte("first line 12345\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := w.Write([]byte("second\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	backup, err := os.ReadFile(path + ".1")
	if err != nil {
		t.Fatalf("expected backup file: %v", err)
	}
	if string(backup) != "first line 12345\n" {
		t.Fatalf("unexpected backup %q", backup)
	}
	current, _ := os.ReadFile(path)
	if string(current) != "second\n" {
		t.Fatalf("unexpected current log %q", current)
	}
}

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	f := &LevelFilter{Min: models.LogLevelInfo, Out: &buf}

	lines := []string{
		"2026/10/18 12:00:00 engine.go:80: [debug] SpatialJoinEmpty x\n",
		"2026/10/18 12:00:00 orchestrator.go:150: [info] /jj/: Page 1/3\n",
		"2026/10/18 12:00:00 main.go:20: Starting domus\n",
		"2026/10/18 12:00:00 listing.go:170: [warn] x: 専有面積 can not be found\n",
	}
	for _, l := range lines {
		n, err := f.Write([]byte(l))
		if err != nil || n != len(l) {
			t.Fatalf("write returned %d, %v", n, err)
		}
	}

	out := buf.String()
	if strings.Contains(out, "[debug]") {
		t.Fatal("debug line should be dropped")
	}
	for _, want := range []string{"[info]", "Starting domus", "[warn]"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output", want)
		}
	}
}
