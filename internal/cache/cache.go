// Package cache persists the discovered capability model on disk so a
// later session can skip the expensive live discovery.
//
// Each router gets its own file under the cache directory, derived from
// the router identity (scheme plus address), so multiple boxes can be
// cached side by side. Two codecs are supported: "json" for a
// human-readable, auditable file and "gob" for a compact binary one.
//
// Every read failure, from a missing file to a corrupt payload, surfaces
// as ErrMiss. The connection facade treats a miss as "discover live and
// rewrite"; cache problems are never fatal.
package cache

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/hausnet/fritzcore/internal/description"
	"github.com/hausnet/fritzcore/internal/fritzerr"
)

// Supported serialization formats.
const (
	FormatJSON = "json"
	FormatGob  = "gob"
)

// FormatVersion is bumped whenever the on-disk layout changes; entries
// with another version are treated as a miss.
const FormatVersion = 1

const (
	fileSuffix      = "_cache"
	dirPermissions  = 0o750
	filePermissions = 0o600
)

// ErrMiss reports that no usable cache entry exists for an identity.
var ErrMiss = errors.New("cache: miss")

// Fingerprint ties a cached model to one router in one software state.
// An entry is only valid while a live identity probe reports the same
// model name and version.
type Fingerprint struct {
	Address       string
	ModelName     string
	SystemVersion string
	FormatVersion int
}

// Matches reports whether the cached fingerprint still describes the
// given live identity.
func (f Fingerprint) Matches(modelName, systemVersion string) bool {
	return f.FormatVersion == FormatVersion &&
		f.ModelName == modelName &&
		f.SystemVersion == systemVersion
}

// Entry is the unit of persistence: the model plus its fingerprint.
type Entry struct {
	Fingerprint Fingerprint
	Model       *description.Model
}

// Store reads and writes entries below a directory, one file per router
// identity.
type Store struct {
	dir    string
	format string
}

// NewStore creates a store writing files in the given format below dir.
// An unknown format name is a configuration error, not a miss.
func NewStore(dir, format string) (*Store, error) {
	switch format {
	case FormatJSON, FormatGob:
	default:
		return nil, fritzerr.New(fritzerr.KindCache,
			"unknown cache format %q (use %q or %q)", format, FormatJSON, FormatGob)
	}
	return &Store{dir: dir, format: format}, nil
}

// Identity derives the cache identity from the router base URL, e.g.
// "http://192.168.178.1" becomes "192_168_178_1".
func Identity(address string) string {
	// Strip an optional scheme, then make the address filename-safe.
	if idx := strings.Index(address, "//"); idx >= 0 {
		address = address[idx+2:]
	}
	address = strings.ReplaceAll(address, ".", "_")
	return strings.ReplaceAll(address, ":", "_")
}

// Path returns the cache file location for an identity.
func (s *Store) Path(identity string) string {
	return filepath.Join(s.dir, identity+fileSuffix+"."+s.format)
}

// Save writes the entry for the identity, creating the cache directory on
// first use.
func (s *Store) Save(identity string, entry *Entry) error {
	if err := os.MkdirAll(s.dir, dirPermissions); err != nil {
		return fritzerr.Wrap(fritzerr.KindCache, err, "creating cache directory")
	}
	data, err := s.encode(entry)
	if err != nil {
		return fritzerr.Wrap(fritzerr.KindCache, err, "encoding cache entry")
	}
	if err := os.WriteFile(s.Path(identity), data, filePermissions); err != nil {
		return fritzerr.Wrap(fritzerr.KindCache, err, "writing cache file")
	}
	return nil
}

// Load reads the entry for the identity. Missing, unreadable or corrupt
// files all return ErrMiss; the caller falls back to live discovery. The
// flattened service index is rebuilt after decoding.
func (s *Store) Load(identity string) (*Entry, error) {
	data, err := os.ReadFile(s.Path(identity))
	if err != nil {
		return nil, ErrMiss
	}
	entry, err := s.decode(data)
	if err != nil || entry.Model == nil {
		return nil, ErrMiss
	}
	entry.Model.Scan()
	return entry, nil
}

// Drop removes the cache file for an identity. A missing file is fine.
func (s *Store) Drop(identity string) error {
	err := os.Remove(s.Path(identity))
	if err != nil && !os.IsNotExist(err) {
		return fritzerr.Wrap(fritzerr.KindCache, err, "removing cache file")
	}
	return nil
}

func (s *Store) encode(entry *Entry) ([]byte, error) {
	if s.format == FormatJSON {
		return json.MarshalIndent(entry, "", "  ")
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Store) decode(data []byte) (*Entry, error) {
	entry := &Entry{}
	if s.format == FormatJSON {
		if err := json.Unmarshal(data, entry); err != nil {
			return nil, err
		}
		return entry, nil
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(entry); err != nil {
		return nil, err
	}
	return entry, nil
}
