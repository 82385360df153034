package file

import (
	"strconv"
	"sync"
	"time"
)

// RateRepo persists per-user sliding-window event timestamps as a JSON
// object of stringified user id to arrays of unix seconds.
type RateRepo struct {
	path string
	mu   sync.Mutex
}

func NewRateRepo(path string) *RateRepo {
	return &RateRepo{path: path}
}

// Record drops this user's timestamps that fell out of the window, appends
// now, prunes empty lists, persists the map, and returns the resulting event
// count. The count is computed before the save, so it stays meaningful even
// when the write fails; the error is for logging only.
func (r *RateRepo) Record(userID int64, now time.Time, window time.Duration) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	windows := map[string][]int64{}
	if err := readJSON(r.path, &windows); err != nil {
		return 0, err
	}

	nowSec := now.Unix()
	oldest := nowSec - int64(window/time.Second)

	key := strconv.FormatInt(userID, 10)
	kept := make([]int64, 0, len(windows[key])+1)
	for _, t := range windows[key] {
		if t > oldest {
			kept = append(kept, t)
		}
	}
	kept = append(kept, nowSec)
	windows[key] = kept

	for k, stamps := range windows {
		if len(stamps) == 0 {
			delete(windows, k)
		}
	}

	return len(kept), writeJSON(r.path, windows)
}

// Prune drops every timestamp outside the window across all users and
// reports how many users were removed entirely.
func (r *RateRepo) Prune(now time.Time, window time.Duration) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	windows := map[string][]int64{}
	if err := readJSON(r.path, &windows); err != nil {
		return 0, err
	}

	before := len(windows)
	oldest := now.Unix() - int64(window/time.Second)
	for key, stamps := range windows {
		kept := stamps[:0]
		for _, t := range stamps {
			if t > oldest {
				kept = append(kept, t)
			}
		}
		if len(kept) == 0 {
			delete(windows, key)
			continue
		}
		windows[key] = kept
	}

	return before - len(windows), writeJSON(r.path, windows)
}
