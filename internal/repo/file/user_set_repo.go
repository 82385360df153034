package file

import "sync"

// UserSetRepo persists a set of Telegram user ids as a JSON array. The same
// type backs both the verified-user set and the banned-user set.
type UserSetRepo struct {
	path string
	mu   sync.Mutex
}

func NewUserSetRepo(path string) *UserSetRepo {
	return &UserSetRepo{path: path}
}

func (r *UserSetRepo) Contains(id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, err := r.load()
	if err != nil {
		return false, err
	}

	for _, v := range ids {
		if v == id {
			return true, nil
		}
	}
	return false, nil
}

// Add inserts id and reports whether the set changed.
func (r *UserSetRepo) Add(id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, err := r.load()
	if err != nil {
		return false, err
	}

	for _, v := range ids {
		if v == id {
			return false, nil
		}
	}

	ids = append(ids, id)
	if err := r.save(ids); err != nil {
		return false, err
	}
	return true, nil
}

// Remove deletes id and reports whether the set changed.
func (r *UserSetRepo) Remove(id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, err := r.load()
	if err != nil {
		return false, err
	}

	kept := ids[:0]
	for _, v := range ids {
		if v != id {
			kept = append(kept, v)
		}
	}
	if len(kept) == len(ids) {
		return false, nil
	}

	if err := r.save(kept); err != nil {
		return false, err
	}
	return true, nil
}

func (r *UserSetRepo) All() ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.load()
}

func (r *UserSetRepo) load() ([]int64, error) {
	var ids []int64
	if err := readJSON(r.path, &ids); err != nil {
		return nil, err
	}
	return dedupe(ids), nil
}

func (r *UserSetRepo) save(ids []int64) error {
	ids = dedupe(ids)
	if ids == nil {
		ids = []int64{}
	}
	return writeJSON(r.path, ids)
}

// dedupe collapses duplicates while preserving first-seen order.
func dedupe(ids []int64) []int64 {
	if len(ids) < 2 {
		return ids
	}

	seen := make(map[int64]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
