package sink

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mobiletriage/pkg/model"
)

func readLines(t *testing.T, dir, prefix string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, prefix+"_*.jsonl"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one %s file, got %v (%v)", prefix, matches, err)
	}
	f, err := os.Open(matches[0])
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}

func TestRecordUpdateAppendsJSONLines(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	evt := model.UpdateEvent{
		Timestamp: time.Now().UTC(),
		Devices:   []model.DeviceRecord{{ID: "a", Platform: model.PlatformAndroid}},
		Alerts:    []model.Alert{{Kind: model.AlertHighDeviceCount, Severity: model.SeverityHigh}},
	}
	if err := s.RecordUpdate(evt); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.RecordUpdate(evt); err != nil {
		t.Fatalf("record: %v", err)
	}

	lines := readLines(t, dir, "monitoring")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var decoded model.UpdateEvent
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("line is not valid JSON: %v", err)
	}
	if len(decoded.Devices) != 1 || decoded.Devices[0].ID != "a" {
		t.Fatalf("round trip lost devices: %+v", decoded)
	}
}

func TestRecordBundle(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.RecordBundle(&model.AnalysisBundle{ID: "b1"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	lines := readLines(t, dir, "analysis")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
}

func TestBadDirFails(t *testing.T) {
	file := filepath.Join(t.TempDir(), "occupied")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if _, err := New(filepath.Join(file, "sub")); err == nil {
		t.Fatalf("expected error when sink dir cannot be created")
	}
}
