package log_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lucabaldini/baldaquin/log"
)

func TestFileOutputter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.log")
	out, err := log.NewFileOutputter(path, log.Info)
	if err != nil {
		t.Fatalf("NewFileOutputter: %v", err)
	}
	prev := log.SetOutputter(out)
	log.Info.Print("run started")
	log.Debug.Print("should not appear")
	log.SetOutputter(prev)
	if err := out.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected log file to contain output")
	}
}
