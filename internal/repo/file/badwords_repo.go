package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// BadWordsRepo manages the newline-delimited bad-word list. The file is the
// source of truth; admins may also edit it directly on disk.
type BadWordsRepo struct {
	path string
	mu   sync.Mutex
}

func NewBadWordsRepo(path string) *BadWordsRepo {
	return &BadWordsRepo{path: path}
}

// Lines returns the trimmed, non-empty entries. A missing file means the
// filter is disabled and loads as empty.
func (r *BadWordsRepo) Lines() ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.lines()
}

// Add appends entry unless an identical line already exists; reports whether
// the list changed.
func (r *BadWordsRepo) Add(entry string) (bool, error) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("read %s: %w", r.path, err)
	}
	for _, line := range parseLines(data) {
		if line == entry {
			return false, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o775); err != nil {
		return false, fmt.Errorf("create dir for %s: %w", r.path, err)
	}

	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", r.path, err)
	}
	defer func() { _ = f.Close() }()

	// a hand-edited file may lack the trailing newline; appending straight
	// onto it would merge the last line with the new entry
	record := entry + "\n"
	if len(data) > 0 && !strings.HasSuffix(string(data), "\n") {
		record = "\n" + record
	}

	if _, err := f.WriteString(record); err != nil {
		return false, fmt.Errorf("append to %s: %w", r.path, err)
	}
	return true, nil
}

// Remove deletes the whole-line-exact entry; reports whether the list
// changed. The rewrite is atomic like the JSON stores.
func (r *BadWordsRepo) Remove(entry string) (bool, error) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", r.path, err)
	}

	kept := make([]string, 0)
	changed := false
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == entry {
			changed = true
			continue
		}
		kept = append(kept, line)
	}
	if !changed {
		return false, nil
	}

	out := strings.Join(kept, "\n")
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(out), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return false, fmt.Errorf("rename %s: %w", tmp, err)
	}
	return true, nil
}

func (r *BadWordsRepo) lines() ([]string, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", r.path, err)
	}
	return parseLines(data), nil
}

func parseLines(data []byte) []string {
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
