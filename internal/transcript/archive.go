// Package transcript archives meeting chat as JSONL files, one per thread.
package transcript

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/joebot/meetchat/internal/bus"
)

// Entry describes one archived thread.
type Entry struct {
	ThreadID  string
	CreatedAt time.Time
	UpdatedAt time.Time
	Count     int
}

type metadata struct {
	Type      string    `json:"_type"`
	ThreadID  string    `json:"thread_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Count     int       `json:"count"`
}

// Archive stores transcripts under a directory. The first line of each file
// is a metadata record; every following line is a message.
type Archive struct {
	dir string
	now func() time.Time
	mu  sync.Mutex
}

// NewArchive creates dir if needed and returns an archive rooted there.
func NewArchive(dir string) (*Archive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcript dir: %w", err)
	}
	return &Archive{dir: dir, now: time.Now}, nil
}

// Dir returns the archive directory.
func (a *Archive) Dir() string { return a.dir }

// Save merges msgs into the thread's transcript. Messages already archived
// under the same id are skipped, so saving a rejoined meeting appends only
// what is new.
func (a *Archive) Save(threadID string, msgs []bus.Message) error {
	if threadID == "" {
		return errors.New("transcript: empty thread id")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	meta, existing, err := a.read(threadID)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	now := a.now()
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = now
	}

	seen := make(map[string]bool, len(existing))
	for _, m := range existing {
		if m.ID != "" {
			seen[m.ID] = true
		}
	}
	all := existing
	for _, m := range msgs {
		if m.ID != "" && seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		all = append(all, m)
	}

	meta = metadata{
		Type:      "metadata",
		ThreadID:  threadID,
		CreatedAt: meta.CreatedAt,
		UpdatedAt: now,
		Count:     len(all),
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(meta); err != nil {
		return err
	}
	for _, m := range all {
		if err := enc.Encode(m); err != nil {
			return err
		}
	}

	path := a.path(threadID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return nil
}

// Load returns the archived messages of a thread. A missing transcript is
// reported with an error matching os.ErrNotExist.
func (a *Archive) Load(threadID string) ([]bus.Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, msgs, err := a.read(threadID)
	return msgs, err
}

// List returns every archived thread, most recently updated first.
func (a *Archive) List() ([]Entry, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		meta, ok := readMetadata(filepath.Join(a.dir, e.Name()))
		if !ok {
			continue
		}
		out = append(out, Entry{
			ThreadID:  meta.ThreadID,
			CreatedAt: meta.CreatedAt,
			UpdatedAt: meta.UpdatedAt,
			Count:     meta.Count,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func readMetadata(path string) (metadata, bool) {
	f, err := os.Open(path)
	if err != nil {
		return metadata{}, false
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	if !scanner.Scan() {
		return metadata{}, false
	}
	var meta metadata
	if json.Unmarshal(scanner.Bytes(), &meta) != nil || meta.Type != "metadata" {
		return metadata{}, false
	}
	return meta, true
}

func (a *Archive) read(threadID string) (metadata, []bus.Message, error) {
	f, err := os.Open(a.path(threadID))
	if err != nil {
		return metadata{}, nil, err
	}
	defer f.Close()

	var meta metadata
	var msgs []bus.Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024) // 1MB lines
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var probe struct {
			Type string `json:"_type"`
		}
		if json.Unmarshal(line, &probe) != nil {
			continue
		}
		if probe.Type == "metadata" {
			json.Unmarshal(line, &meta)
			continue
		}
		var m bus.Message
		if json.Unmarshal(line, &m) == nil {
			msgs = append(msgs, m)
		}
	}
	if err := scanner.Err(); err != nil {
		return meta, msgs, fmt.Errorf("read transcript: %w", err)
	}
	return meta, msgs, nil
}

func (a *Archive) path(threadID string) string {
	return filepath.Join(a.dir, safeFilename(threadID)+".jsonl")
}

func safeFilename(name string) string {
	unsafe := `<>:"/\|?*`
	for _, c := range unsafe {
		name = strings.ReplaceAll(name, string(c), "_")
	}
	return strings.TrimSpace(name)
}
