// Package store keeps one YAML record per file in a directory and looks
// records up by remote identifier or title.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/wesm/ghsync/internal/models"
)

// ErrNotFound is returned by lookups that match no record.
var ErrNotFound = errors.New("record not found")

// Store is the set of records in one directory.
type Store struct {
	dir     string
	records []*models.SyncRecord
	dryRun  bool

	// skipped holds files Open could not load; they are never overwritten
	skipped map[string]bool
}

// Open reads every *.yaml / *.yml file in dir. Files that fail to parse are
// logged and skipped, and later saves leave them alone. A missing directory
// yields an empty store.
func Open(dir string) (*Store, error) {
	s := &Store{dir: dir, skipped: map[string]bool{}}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read record directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !isRecordFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("Warning: skipping %s: %v", path, err)
			s.skipped[path] = true
			continue
		}
		rec, err := Decode(data)
		if err != nil {
			log.Printf("Warning: skipping malformed record %s: %v", path, err)
			s.skipped[path] = true
			continue
		}
		rec.Path = path
		s.records = append(s.records, rec)
	}

	sort.Slice(s.records, func(i, j int) bool {
		return s.records[i].Path < s.records[j].Path
	})
	return s, nil
}

// SetDryRun makes Save and SaveRenamed report success without touching disk.
func (s *Store) SetDryRun(dryRun bool) {
	s.dryRun = dryRun
}

// Dir returns the record directory.
func (s *Store) Dir() string {
	return s.dir
}

// Skipped returns the files Open could not load, sorted.
func (s *Store) Skipped() []string {
	paths := make([]string, 0, len(s.skipped))
	for path := range s.skipped {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Records returns the loaded records in path order.
func (s *Store) Records() []*models.SyncRecord {
	return s.records
}

// FindByIssueNumber returns the issue record with the given number.
func (s *Store) FindByIssueNumber(number int) (*models.SyncRecord, error) {
	for _, rec := range s.records {
		if rec.Kind == models.KindIssue && rec.IssueNumber == number {
			return rec, nil
		}
	}
	return nil, fmt.Errorf("issue #%d: %w", number, ErrNotFound)
}

// FindByDiscussionID returns the idea record with the given discussion id.
func (s *Store) FindByDiscussionID(id string) (*models.SyncRecord, error) {
	for _, rec := range s.records {
		if rec.Kind == models.KindIdea && rec.DiscussionID == id {
			return rec, nil
		}
	}
	return nil, fmt.Errorf("discussion %s: %w", id, ErrNotFound)
}

// FindByDiscussionNumber returns the idea record with the given discussion
// number. Hand-written files sometimes carry the number without the id.
func (s *Store) FindByDiscussionNumber(number int) (*models.SyncRecord, error) {
	for _, rec := range s.records {
		if rec.Kind == models.KindIdea && number != 0 && rec.DiscussionNumber == number {
			return rec, nil
		}
	}
	return nil, fmt.Errorf("discussion #%d: %w", number, ErrNotFound)
}

// FindByTitle returns the first record of kind with the given title that
// has not been created remotely yet.
func (s *Store) FindByTitle(kind models.ItemKind, title string) (*models.SyncRecord, error) {
	for _, rec := range s.records {
		if rec.Kind == kind && rec.IsNew() && rec.Title == title {
			return rec, nil
		}
	}
	return nil, fmt.Errorf("%s %q: %w", kind, title, ErrNotFound)
}

// Add tracks a record that is not yet in the store.
func (s *Store) Add(rec *models.SyncRecord) {
	s.records = append(s.records, rec)
}

// Save writes rec to the file it was loaded from, or to its generated
// filename if it has none. The file is replaced atomically. It reports
// whether the content on disk changed.
func (s *Store) Save(rec *models.SyncRecord) (bool, error) {
	path := rec.Path
	if path == "" {
		path = filepath.Join(s.dir, Filename(rec))
	}
	return s.write(rec, path)
}

// SaveRenamed writes rec under its generated filename and removes the file
// it was previously stored in. Used once a record has a remote number.
func (s *Store) SaveRenamed(rec *models.SyncRecord) (bool, error) {
	oldPath := rec.Path
	path := filepath.Join(s.dir, Filename(rec))

	changed, err := s.write(rec, path)
	if err != nil {
		return false, err
	}
	if oldPath == "" || oldPath == path {
		return changed, nil
	}
	if !s.dryRun {
		if err := os.Remove(oldPath); err != nil && !os.IsNotExist(err) {
			return false, fmt.Errorf("failed to remove old record %s: %w", oldPath, err)
		}
	}
	return true, nil
}

func (s *Store) write(rec *models.SyncRecord, path string) (bool, error) {
	data, err := Encode(rec)
	if err != nil {
		return false, err
	}

	if path != rec.Path {
		path = s.freePath(path, data)
	}

	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, data) {
		if !s.dryRun {
			rec.Path = path
		}
		return false, nil
	}
	if s.dryRun {
		return true, nil
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return false, fmt.Errorf("failed to create record directory: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return false, fmt.Errorf("failed to write record %s: %w", path, err)
	}
	// atomic.WriteFile creates new files with 0600
	if err := os.Chmod(path, 0644); err != nil {
		return false, fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}
	rec.Path = path
	return true, nil
}

// freePath returns path, or path with a -2, -3, ... suffix when path holds a
// file that is not this record: one Open skipped, or any other content.
func (s *Store) freePath(path string, data []byte) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	candidate := path
	for i := 2; s.taken(candidate, data); i++ {
		candidate = fmt.Sprintf("%s-%d%s", stem, i, ext)
	}
	if candidate != path {
		log.Printf("Warning: %s is taken, writing %s instead", path, candidate)
	}
	return candidate
}

func (s *Store) taken(path string, data []byte) bool {
	if s.skipped[path] {
		return true
	}
	existing, err := os.ReadFile(path)
	if err != nil {
		return !os.IsNotExist(err)
	}
	return !bytes.Equal(existing, data)
}

func isRecordFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
