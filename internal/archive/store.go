// File path: internal/archive/store.go
package archive

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/nicodishanthj/Katral_copybook/internal/copybook"
)

// Entry is one decoded record as written to JSONL output and the archive.
type Entry struct {
	Record     int                    `json:"record"`
	RunID      string                 `json:"run_id,omitempty"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
	Conditions map[string][]string    `json:"conditions,omitempty"`
	Errors     map[string]string      `json:"errors,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// NewEntry converts a decode result. rec may be nil when the whole record
// failed; err then carries the reason.
func NewEntry(index int, rec *copybook.DecodedRecord, err error) Entry {
	entry := Entry{Record: index}
	if rec != nil {
		entry.Fields = rec.Map()
		if conds := rec.Conditions(); len(conds) > 0 {
			entry.Conditions = conds
		}
		entry.Errors = rec.Errors()
	}
	if err != nil {
		entry.Error = err.Error()
	}
	return entry
}

// Failed reports whether the record failed. Errors confined to REDEFINES
// views are listed in Errors without failing the record.
func (e Entry) Failed() bool { return e.Error != "" }

// CopybookInfo summarises the archived records of one copybook.
type CopybookInfo struct {
	Name    string `json:"name"`
	Records int    `json:"records"`
}

// Store keeps one JSONL file of decoded records per copybook.
type Store struct {
	path string
	mu   sync.RWMutex
}

// NewStore creates the archive directory if needed.
func NewStore(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("archive: path required")
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("archive: create dir: %w", err)
	}
	return &Store{path: path}, nil
}

// Root returns the archive directory.
func (s *Store) Root() string {
	if s == nil {
		return ""
	}
	return s.path
}

// AppendRecords adds entries to the copybook's archive.
func (s *Store) AppendRecords(ctx context.Context, name string, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.write(ctx, name, entries, os.O_APPEND|os.O_WRONLY|os.O_CREATE)
}

// ReplaceRecords overwrites the copybook's archive. An empty slice clears it.
func (s *Store) ReplaceRecords(ctx context.Context, name string, entries []Entry) error {
	return s.write(ctx, name, entries, os.O_TRUNC|os.O_WRONLY|os.O_CREATE)
}

func (s *Store) write(ctx context.Context, name string, entries []Entry, flags int) error {
	filePath, err := s.copybookFile(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := os.OpenFile(filePath, flags, 0o644)
	if err != nil {
		return fmt.Errorf("archive: open %s: %w", name, err)
	}
	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			file.Close()
			return err
		}
		if err := enc.Encode(entry); err != nil {
			file.Close()
			return fmt.Errorf("archive: encode record %d: %w", entry.Record, err)
		}
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("archive: flush %s: %w", name, err)
	}
	return file.Close()
}

// Records reads archived entries of a copybook, skipping offset entries and
// returning at most limit (limit <= 0 means all).
func (s *Store) Records(ctx context.Context, name string, offset, limit int) ([]Entry, error) {
	if s == nil {
		return nil, errors.New("archive: store not initialised")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read(ctx, name, offset, limit)
}

// Delete removes a copybook's archive. A missing archive is not an error.
func (s *Store) Delete(name string) error {
	filePath, err := s.copybookFile(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("archive: delete %s: %w", name, err)
	}
	return nil
}

// Copybooks lists archived copybooks with their record counts.
func (s *Store) Copybooks(ctx context.Context) ([]CopybookInfo, error) {
	if s == nil {
		return nil, errors.New("archive: store not initialised")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	dirEntries, err := os.ReadDir(s.path)
	if err != nil {
		return nil, fmt.Errorf("archive: read dir: %w", err)
	}
	infos := make([]CopybookInfo, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		name, ok := decodeCopybookFile(de.Name())
		if !ok {
			continue
		}
		entries, err := s.read(ctx, name, 0, 0)
		if err != nil {
			return nil, err
		}
		infos = append(infos, CopybookInfo{Name: name, Records: len(entries)})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos, nil
}

func (s *Store) read(ctx context.Context, name string, offset, limit int) ([]Entry, error) {
	filePath, err := s.copybookFile(name)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("archive: open %s: %w", name, err)
	}
	defer file.Close()
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64<<10), 16<<20)
	var (
		entries []Entry
		seen    int
	)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		seen++
		if seen <= offset {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(string(line)))
		dec.UseNumber()
		var entry Entry
		if err := dec.Decode(&entry); err != nil {
			return nil, fmt.Errorf("archive: decode %s line %d: %w", name, seen, err)
		}
		entries = append(entries, entry)
		if limit > 0 && len(entries) >= limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("archive: scan %s: %w", name, err)
	}
	return entries, nil
}

func (s *Store) copybookFile(name string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(name))
	if trimmed == "" {
		return "", errors.New("archive: copybook name required")
	}
	encoded := base64.RawURLEncoding.EncodeToString([]byte(trimmed))
	return filepath.Join(s.path, "copybook_"+encoded+".jsonl"), nil
}

func decodeCopybookFile(name string) (string, bool) {
	if !strings.HasPrefix(name, "copybook_") || !strings.HasSuffix(name, ".jsonl") {
		return "", false
	}
	encoded := strings.TrimSuffix(strings.TrimPrefix(name, "copybook_"), ".jsonl")
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", false
	}
	return string(data), true
}
