// Package audit keeps an append-only JSON-lines journal of moderation actions.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Baaaki/agora/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Action string

const (
	ActionSoftDelete Action = "soft_delete"
	ActionRestore    Action = "restore"
	ActionModerate   Action = "moderate"
	ActionLock       Action = "lock"
	ActionPin        Action = "pin"
	ActionDeactivate Action = "deactivate"
	ActionReactivate Action = "reactivate"
	ActionRoleChange Action = "role_change"
	ActionBanIP      Action = "ban_ip"
	ActionUnbanIP    Action = "unban_ip"
)

type Entry struct {
	ID         uuid.UUID `json:"id"`
	Action     Action    `json:"action"`
	ActorID    uuid.UUID `json:"actor_id"`
	TargetType string    `json:"target_type"`
	TargetID   string    `json:"target_id"`
	Detail     string    `json:"detail,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Recorder is what services use to record moderation actions.
type Recorder interface {
	Record(entry Entry) error
}

// Journal is a file-backed Recorder. Each entry is fsynced before Record returns.
type Journal struct {
	filePath string
	file     *os.File
	mu       sync.Mutex
}

func Open(filePath string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &Journal{filePath: filePath, file: file}, nil
}

func (j *Journal) Record(entry Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.file.Write(append(data, '\n')); err != nil {
		logger.Log.Error("Audit: failed to write entry", zap.String("action", string(entry.Action)), zap.Error(err))
		return err
	}
	if err := j.file.Sync(); err != nil {
		logger.Log.Error("Audit: failed to sync", zap.Error(err))
		return err
	}

	logger.Log.Debug("Audit: entry recorded",
		zap.String("action", string(entry.Action)),
		zap.String("actor_id", entry.ActorID.String()),
		zap.String("target_id", entry.TargetID),
	)
	return nil
}

// ReadAll returns every entry, oldest first. Unparseable lines are skipped.
func (j *Journal) ReadAll() ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.readLocked()
}

// Prune drops entries older than before and returns how many were removed.
// The journal is rewritten to a temp file and renamed into place.
func (j *Journal) Prune(before time.Time) (int, error) {
	start := time.Now()
	j.mu.Lock()
	defer j.mu.Unlock()

	all, err := j.readLocked()
	if err != nil {
		return 0, err
	}

	kept := all[:0:0]
	for _, e := range all {
		if !e.Timestamp.Before(before) {
			kept = append(kept, e)
		}
	}

	if err := j.file.Close(); err != nil {
		return 0, err
	}

	tmp := j.filePath + ".tmp"
	if err := writeEntries(tmp, kept); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp, j.filePath); err != nil {
		return 0, fmt.Errorf("replace journal: %w", err)
	}

	// The old handle points at the replaced inode; reopen before the next write.
	file, err := os.OpenFile(j.filePath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return 0, err
	}
	j.file = file

	removed := len(all) - len(kept)
	logger.Log.Info("Audit: journal pruned",
		zap.Int("removed", removed),
		zap.Int("remaining", len(kept)),
		zap.Duration("duration", time.Since(start)),
	)
	return removed, nil
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}

func (j *Journal) readLocked() ([]Entry, error) {
	file, err := os.Open(j.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, err
	}
	defer file.Close()

	entries := []Entry{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}

func writeEntries(path string, entries []Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Sync()
}

// Discard records nothing.
type Discard struct{}

func (Discard) Record(Entry) error { return nil }
