package file

import (
	"sort"
	"strconv"
	"sync"
	"time"
)

// RouteEntry links an admin-side message id back to the original sender and
// their source message. The JSON field names match the historical on-disk
// schema, so an existing routes.json keeps working.
type RouteEntry struct {
	UserID          int64 `json:"user_id"`
	SourceMessageID int   `json:"src_msg_id"`
	Timestamp       int64 `json:"ts"`
}

// RouteRepo persists the routing table keyed by stringified admin message
// id. TTL and capacity eviction run inline on every save; writes are rare
// (one per forwarded message) so no background sweep is needed.
type RouteRepo struct {
	path       string
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	mu         sync.Mutex
}

func NewRouteRepo(path string, ttl time.Duration, maxEntries int) *RouteRepo {
	return &RouteRepo{
		path:       path,
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (r *RouteRepo) Put(adminMessageID int, userID int64, sourceMessageID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	table, err := r.load()
	if err != nil {
		return err
	}

	table[routeKey(adminMessageID)] = RouteEntry{
		UserID:          userID,
		SourceMessageID: sourceMessageID,
		Timestamp:       r.now().Unix(),
	}

	return r.save(table)
}

func (r *RouteRepo) Get(adminMessageID int) (RouteEntry, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	table, err := r.load()
	if err != nil {
		return RouteEntry{}, false, err
	}

	entry, ok := table[routeKey(adminMessageID)]
	if !ok {
		return RouteEntry{}, false, nil
	}
	return entry, true, nil
}

// Prune rewrites the table, applying TTL and capacity eviction, and reports
// how many entries were dropped. Saves already evict inline; this exists for
// the maintenance sweep so a quiet deployment does not hold stale routes
// forever.
func (r *RouteRepo) Prune() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	table, err := r.load()
	if err != nil {
		return 0, err
	}

	before := len(table)
	if err := r.save(table); err != nil {
		return 0, err
	}
	return before - len(table), nil
}

func (r *RouteRepo) load() (map[string]RouteEntry, error) {
	table := map[string]RouteEntry{}
	if err := readJSON(r.path, &table); err != nil {
		return nil, err
	}
	return table, nil
}

// save drops entries older than the TTL, then bounds the table size keeping
// only the newest maxEntries by timestamp.
func (r *RouteRepo) save(table map[string]RouteEntry) error {
	cutoff := r.now().Unix() - int64(r.ttl/time.Second)
	for key, entry := range table {
		if entry.Timestamp < cutoff {
			delete(table, key)
		}
	}

	if r.maxEntries > 0 && len(table) > r.maxEntries {
		type keyed struct {
			key   string
			entry RouteEntry
		}
		entries := make([]keyed, 0, len(table))
		for key, entry := range table {
			entries = append(entries, keyed{key, entry})
		}
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].entry.Timestamp < entries[j].entry.Timestamp
		})
		for _, old := range entries[:len(entries)-r.maxEntries] {
			delete(table, old.key)
		}
	}

	return writeJSON(r.path, table)
}

func routeKey(adminMessageID int) string {
	return strconv.Itoa(adminMessageID)
}
