package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

var ErrNoSession = errors.New("not logged in; run `mb login`")

// Session is what `mb login` remembers between runs. The secret code is kept
// in clear text in a file only the owner can read.
type Session struct {
	Username string `json:"username"`
	Code     string `json:"code"`
	Role     string `json:"role"`
}

// Sessions stores one Session as session.json under Dir.
type Sessions struct {
	Dir string
}

// DefaultSessions keeps the session in ~/.mb.
func DefaultSessions() (Sessions, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Sessions{}, fmt.Errorf("locate home directory: %w", err)
	}
	return Sessions{Dir: filepath.Join(home, ".mb")}, nil
}

func (s Sessions) file() string {
	return filepath.Join(s.Dir, "session.json")
}

func (s Sessions) Save(sess Session) error {
	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return err
	}
	body, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.Dir, "session-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.file())
}

func (s Sessions) Load() (Session, error) {
	body, err := os.ReadFile(s.file())
	if errors.Is(err, fs.ErrNotExist) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, err
	}
	var sess Session
	if err := json.Unmarshal(body, &sess); err != nil {
		return Session{}, fmt.Errorf("read session: %w", err)
	}
	if sess.Username == "" {
		return Session{}, ErrNoSession
	}
	return sess, nil
}

func (s Sessions) Clear() error {
	err := os.Remove(s.file())
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func SaveSession(sess Session) error {
	s, err := DefaultSessions()
	if err != nil {
		return err
	}
	return s.Save(sess)
}

func LoadSession() (Session, error) {
	s, err := DefaultSessions()
	if err != nil {
		return Session{}, err
	}
	return s.Load()
}

func ClearSession() error {
	s, err := DefaultSessions()
	if err != nil {
		return err
	}
	return s.Clear()
}
