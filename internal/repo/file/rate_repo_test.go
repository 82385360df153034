package file

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRateRecordCountsWithinWindow(t *testing.T) {
	repo := NewRateRepo(filepath.Join(t.TempDir(), "rate_limit.json"))

	base := time.Unix(1_700_000_000, 0)
	for i := 1; i <= 3; i++ {
		count, err := repo.Record(42, base.Add(time.Duration(i)*time.Second), 10*time.Second)
		if err != nil {
			t.Fatalf("record #%d: %v", i, err)
		}
		if count != i {
			t.Fatalf("unexpected count after event #%d: %d", i, count)
		}
	}
}

func TestRateRecordDropsStaleStamps(t *testing.T) {
	repo := NewRateRepo(filepath.Join(t.TempDir(), "rate_limit.json"))

	base := time.Unix(1_700_000_000, 0)
	if _, err := repo.Record(42, base, 10*time.Second); err != nil {
		t.Fatalf("first record: %v", err)
	}

	count, err := repo.Record(42, base.Add(11*time.Second), 10*time.Second)
	if err != nil {
		t.Fatalf("record past window: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected stale stamp dropped, got count %d", count)
	}
}

func TestRateRecordPrunesEmptyUsersFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rate_limit.json")
	seed := `{"7":[],"42":[1700000000]}`
	if err := os.WriteFile(path, []byte(seed), 0o644); err != nil {
		t.Fatalf("seed rate file: %v", err)
	}

	repo := NewRateRepo(path)
	if _, err := repo.Record(42, time.Unix(1_700_000_005, 0), 10*time.Second); err != nil {
		t.Fatalf("record: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read rate file: %v", err)
	}

	var windows map[string][]int64
	if err := json.Unmarshal(data, &windows); err != nil {
		t.Fatalf("rate file is not a JSON map: %v", err)
	}
	if _, ok := windows["7"]; ok {
		t.Fatalf("expected empty window pruned, got %v", windows)
	}
	if len(windows["42"]) != 2 {
		t.Fatalf("unexpected window for 42: %v", windows["42"])
	}
}
