package telemetry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestOutputManager_Disabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil || om != nil {
		t.Fatalf("expected nil manager, got %v, %v", om, err)
	}
	// All methods tolerate a nil receiver.
	if err := om.WriteTick(TickStats{}); err != nil {
		t.Error(err)
	}
	if err := om.Close(); err != nil {
		t.Error(err)
	}
	if om.Dir() != "" {
		t.Error("expected empty dir")
	}
}

func TestOutputManager_WritesHeaderOnce(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("NewOutputManager: %v", err)
	}

	for tick := int32(0); tick < 3; tick++ {
		s := TickStats{
			Tick:   tick,
			Agents: 2,
			Hives: []HiveStats{
				{Tick: tick, Hive: "north", Agents: 1},
				{Tick: tick, Hive: "south", Agents: 1},
			},
		}
		if err := om.WriteTick(s); err != nil {
			t.Fatalf("WriteTick: %v", err)
		}
	}
	if err := om.WriteBookmark(Bookmark{Type: BookmarkColonyCollapse, Tick: 2, Description: "drop"}); err != nil {
		t.Fatalf("WriteBookmark: %v", err)
	}
	if err := om.WritePerf(PerfStats{}, 2); err != nil {
		t.Fatalf("WritePerf: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	lines := readLines(t, filepath.Join(dir, "telemetry.csv"))
	if len(lines) != 4 {
		t.Fatalf("telemetry.csv has %d lines, want 4", len(lines))
	}
	if !strings.HasPrefix(lines[0], "tick,agents,") {
		t.Errorf("unexpected header %q", lines[0])
	}
	if strings.Contains(lines[0], "Hives") {
		t.Error("hive rows should not appear in telemetry.csv")
	}

	hiveLines := readLines(t, filepath.Join(dir, "hives.csv"))
	if len(hiveLines) != 7 {
		t.Fatalf("hives.csv has %d lines, want 7", len(hiveLines))
	}
	if !strings.HasPrefix(hiveLines[1], "0,north,") || !strings.HasPrefix(hiveLines[2], "0,south,") {
		t.Errorf("unexpected hive rows %q %q", hiveLines[1], hiveLines[2])
	}

	bookmarks := readLines(t, filepath.Join(dir, "bookmarks.csv"))
	if len(bookmarks) != 2 || bookmarks[1] != "colony_collapse,2,drop" {
		t.Errorf("unexpected bookmarks.csv %q", bookmarks)
	}
}

func TestOutputManager_RunInfo(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("NewOutputManager: %v", err)
	}
	defer om.Close()

	id := NewRunID()
	if err := om.WriteRunInfo(RunInfo{ID: id, Seed: 9, Ticks: 100, Hives: []string{"north"}}); err != nil {
		t.Fatalf("WriteRunInfo: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "run.json"))
	if err != nil {
		t.Fatalf("read run.json: %v", err)
	}
	var info RunInfo
	if err := json.Unmarshal(data, &info); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if info.ID != id || info.Seed != 9 || len(info.Hives) != 1 {
		t.Errorf("unexpected run info %+v", info)
	}
	if NewRunID() == id {
		t.Error("run IDs should differ")
	}
}
