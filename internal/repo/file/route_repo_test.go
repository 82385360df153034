package file

import (
	"path/filepath"
	"testing"
	"time"
)

func TestRoutePutGetRoundTrip(t *testing.T) {
	repo := NewRouteRepo(filepath.Join(t.TempDir(), "routes.json"), time.Hour, 100)

	if err := repo.Put(1001, 42, 7); err != nil {
		t.Fatalf("put: %v", err)
	}

	entry, ok, err := repo.Get(1001)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatalf("expected route present")
	}
	if entry.UserID != 42 || entry.SourceMessageID != 7 {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	_, ok, err = repo.Get(9999)
	if err != nil {
		t.Fatalf("get absent: %v", err)
	}
	if ok {
		t.Fatalf("expected absent route")
	}
}

func TestRouteCapacityKeepsNewestEntries(t *testing.T) {
	repo := NewRouteRepo(filepath.Join(t.TempDir(), "routes.json"), 24*time.Hour, 5)

	base := time.Unix(1_700_000_000, 0)
	for i := 0; i < 8; i++ {
		tick := base.Add(time.Duration(i) * time.Minute)
		repo.now = func() time.Time { return tick }
		if err := repo.Put(100+i, int64(i), i); err != nil {
			t.Fatalf("put #%d: %v", i, err)
		}
	}

	repo.now = func() time.Time { return base.Add(time.Hour) }

	// the three oldest inserts must have been evicted
	for i := 0; i < 3; i++ {
		_, ok, err := repo.Get(100 + i)
		if err != nil {
			t.Fatalf("get evicted #%d: %v", i, err)
		}
		if ok {
			t.Fatalf("expected entry %d evicted by capacity bound", 100+i)
		}
	}
	for i := 3; i < 8; i++ {
		_, ok, err := repo.Get(100 + i)
		if err != nil {
			t.Fatalf("get surviving #%d: %v", i, err)
		}
		if !ok {
			t.Fatalf("expected entry %d to survive", 100+i)
		}
	}
}

func TestRouteTTLDropsExpiredOnSave(t *testing.T) {
	repo := NewRouteRepo(filepath.Join(t.TempDir(), "routes.json"), time.Hour, 100)

	base := time.Unix(1_700_000_000, 0)
	repo.now = func() time.Time { return base }
	if err := repo.Put(1, 42, 1); err != nil {
		t.Fatalf("put old: %v", err)
	}

	// a save two hours later must drop the expired entry regardless of capacity
	repo.now = func() time.Time { return base.Add(2 * time.Hour) }
	if err := repo.Put(2, 43, 2); err != nil {
		t.Fatalf("put new: %v", err)
	}

	_, ok, err := repo.Get(1)
	if err != nil {
		t.Fatalf("get expired: %v", err)
	}
	if ok {
		t.Fatalf("expected expired route dropped")
	}

	_, ok, err = repo.Get(2)
	if err != nil {
		t.Fatalf("get fresh: %v", err)
	}
	if !ok {
		t.Fatalf("expected fresh route kept")
	}
}

func TestRouteUpsertRefreshesTimestamp(t *testing.T) {
	repo := NewRouteRepo(filepath.Join(t.TempDir(), "routes.json"), time.Hour, 100)

	base := time.Unix(1_700_000_000, 0)
	repo.now = func() time.Time { return base }
	if err := repo.Put(1, 42, 1); err != nil {
		t.Fatalf("first put: %v", err)
	}

	repo.now = func() time.Time { return base.Add(30 * time.Minute) }
	if err := repo.Put(1, 42, 9); err != nil {
		t.Fatalf("second put: %v", err)
	}

	entry, ok, err := repo.Get(1)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if entry.SourceMessageID != 9 {
		t.Fatalf("expected upsert to replace entry, got %+v", entry)
	}
	if entry.Timestamp != base.Add(30*time.Minute).Unix() {
		t.Fatalf("expected refreshed timestamp, got %d", entry.Timestamp)
	}
}
