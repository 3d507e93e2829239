package guest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/guestdesk/concierge/internal/model"
)

// Store persists the guest session record between page loads. Load returns
// (nil, nil) when no record exists.
type Store interface {
	Load(roomCode string) (*model.GuestSession, error)
	Save(roomCode string, sess *model.GuestSession) error
	Delete(roomCode string) error
}

// FileStore keeps one JSON file per room under a state directory, the
// device-local equivalent of the portal's browser storage.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(roomCode string) string {
	return filepath.Join(s.dir, "session-"+roomCode+".json")
}

func (s *FileStore) Load(roomCode string) (*model.GuestSession, error) {
	data, err := os.ReadFile(s.path(roomCode))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	var sess model.GuestSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

// Save writes through a temp file and renames so a crash mid-write never
// leaves a truncated record.
func (s *FileStore) Save(roomCode string, sess *model.GuestSession) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path(roomCode) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp, s.path(roomCode)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

func (s *FileStore) Delete(roomCode string) error {
	err := os.Remove(s.path(roomCode))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
