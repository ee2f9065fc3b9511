package main

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// StateDir persists per-interface debounce tokens and last-applied states.
// Every write goes through writeRename so a concurrent reader never observes
// a partially written file, even across a crash mid-write.
type StateDir struct {
	Dir string
}

// Token is the debounce marker for one handler invocation. The handler that
// still finds its own token on disk after the debounce window owns the
// transition; everyone else has been superseded.
type Token struct {
	Nanos int64
	State DfStatus
}

func (t Token) String() string {
	return strconv.FormatInt(t.Nanos, 10) + " " + t.State.String()
}

func ParseToken(s string) (Token, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return Token{}, errors.New("token must be '<nanos> <state>'")
	}
	nanos, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Token{}, errors.Wrap(err, "invalid token timestamp")
	}
	state, ok := ParseDfStatus(fields[1])
	if !ok {
		return Token{}, errors.New("invalid token state " + fields[1])
	}
	return Token{Nanos: nanos, State: state}, nil
}

func (s StateDir) tokenPath(iface string) string {
	return filepath.Join(s.Dir, iface+".token")
}

func (s StateDir) statePath(iface string) string {
	return filepath.Join(s.Dir, iface+".state")
}

func (s StateDir) WriteToken(iface string, token Token) error {
	return writeRename(s.tokenPath(iface), []byte(token.String()+"\n"))
}

// ReadToken returns ok=false when no token exists.
func (s StateDir) ReadToken(iface string) (Token, bool, error) {
	data, err := os.ReadFile(s.tokenPath(iface))
	if os.IsNotExist(err) {
		return Token{}, false, nil
	}
	if err != nil {
		return Token{}, false, errors.Wrap(err, "could not read token")
	}
	token, err := ParseToken(strings.TrimSpace(string(data)))
	if err != nil {
		return Token{}, false, err
	}
	return token, true, nil
}

func (s StateDir) WriteState(iface string, state DfStatus) error {
	return writeRename(s.statePath(iface), []byte(state.String()+"\n"))
}

// ReadState returns ok=false when no state was ever applied for iface.
func (s StateDir) ReadState(iface string) (DfStatus, bool, error) {
	data, err := os.ReadFile(s.statePath(iface))
	if os.IsNotExist(err) {
		return DfUnknown, false, nil
	}
	if err != nil {
		return DfUnknown, false, errors.Wrap(err, "could not read state")
	}
	state, ok := ParseDfStatus(strings.TrimSpace(string(data)))
	if !ok {
		return DfUnknown, false, errors.New("invalid persisted state " + strings.TrimSpace(string(data)))
	}
	return state, true, nil
}

// writeRename writes to a temporary file in the target directory, syncs it
// and renames it over the destination.
func writeRename(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "could not create state directory")
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp")
	if err != nil {
		return errors.Wrap(err, "could not create temporary file")
	}
	defer os.Remove(tmp.Name())

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "could not write temporary file")
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "could not sync temporary file")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "could not close temporary file")
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, "could not rename temporary file")
	}
	return nil
}
