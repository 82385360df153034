package cleanup

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	filerepo "github.com/yayitinyu/RelayCat/internal/repo/file"
)

type failingRoutePruner struct{}

func (failingRoutePruner) Prune() (int, error) {
	return 0, errors.New("disk full")
}

func TestRunPrunesBothStores(t *testing.T) {
	dir := t.TempDir()

	routes := filerepo.NewRouteRepo(filepath.Join(dir, "routes.json"), time.Hour, 100)
	if err := routes.Put(1, 7, 11); err != nil {
		t.Fatalf("route put: %v", err)
	}

	rate := filerepo.NewRateRepo(filepath.Join(dir, "rate.json"))
	if _, err := rate.Record(7, time.Now().Add(-time.Hour), 10*time.Second); err != nil {
		t.Fatalf("rate record: %v", err)
	}

	job := New(routes, rate, 10*time.Second, time.Hour, nil)
	job.Run()

	if _, ok, err := routes.Get(1); err != nil || !ok {
		t.Fatalf("fresh route removed by sweep: ok=%v err=%v", ok, err)
	}
	if dropped, err := rate.Prune(time.Now(), 10*time.Second); err != nil || dropped != 0 {
		t.Fatalf("stale rate window survived the sweep: dropped=%d err=%v", dropped, err)
	}
}

func TestRunSurvivesPrunerFailure(t *testing.T) {
	dir := t.TempDir()

	rate := filerepo.NewRateRepo(filepath.Join(dir, "rate.json"))
	if _, err := rate.Record(7, time.Now().Add(-time.Hour), 10*time.Second); err != nil {
		t.Fatalf("rate record: %v", err)
	}

	job := New(failingRoutePruner{}, rate, 10*time.Second, time.Hour, nil)
	job.Run()

	if dropped, err := rate.Prune(time.Now(), 10*time.Second); err != nil || dropped != 0 {
		t.Fatalf("rate store not pruned after route failure: dropped=%d err=%v", dropped, err)
	}
}
