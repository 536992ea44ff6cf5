package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/KaramelBytes/insightgenie/internal/chat"
	"github.com/KaramelBytes/insightgenie/internal/dataset"
	"github.com/KaramelBytes/insightgenie/internal/utils"
)

const snapshotFileName = "session.json"

// snapshot is the on-disk form of a session. Derived artifacts are
// recomputed on restore.
type snapshot struct {
	ID        string         `json:"id"`
	Table     *dataset.Table `json:"table,omitempty"`
	History   []chat.Message `json:"history"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Save writes the session to dir/session.json using an atomic write.
func (s *Session) Save(dir string) error {
	if dir == "" {
		return errors.New("session directory not set")
	}
	s.touch()
	data, err := utils.PrettyJSON(snapshot{
		ID:        s.ID,
		Table:     s.table,
		History:   s.history.Messages(),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	})
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(filepath.Join(dir, snapshotFileName), data)
}

// Restore reads a session saved with Save.
func Restore(dir string, bins int) (*Session, error) {
	path := filepath.Join(dir, snapshotFileName)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("session not found at %s: %w", path, err)
		}
		return nil, fmt.Errorf("read session: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}
	s := New(snap.ID, bins)
	s.CreatedAt = snap.CreatedAt
	if snap.Table != nil {
		if err := s.install(snap.Table); err != nil {
			return nil, err
		}
	}
	s.history.Restore(snap.History)
	s.UpdatedAt = snap.UpdatedAt
	return s, nil
}
