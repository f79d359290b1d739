package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

const fileName = "bakes.json"

// schema is mixed into every hash so a change of bake geometry invalidates
// old entries.
const schema = "blender-envmap/1"

// Inputs are everything that determines the content of a bake.
type Inputs struct {
	EnvironmentMap string
	BlendFile      string
	Script         []byte
	WhitePoint     float64
	Geometry       string // face sizes and level count
}

// Hash computes the SHA256 over the inputs.
func Hash(in Inputs) (string, error) {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00", schema, in.Geometry)

	for _, path := range []string{in.EnvironmentMap, in.BlendFile} {
		if err := hashFile(h, path); err != nil {
			return "", fmt.Errorf("hashing %s: %w", path, err)
		}
		h.Write([]byte{0})
	}

	h.Write(in.Script)
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatFloat(in.WhitePoint, 'g', -1, 64)))

	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(w, f)
	return err
}

// bakeCache is the on-disk format.
type bakeCache struct {
	Bakes map[string]string `json:"bakes"`
}

// Store maps output prefixes to the hash of the inputs that produced them.
type Store struct {
	path  string
	cache bakeCache
}

// Open loads the store kept in dir. A missing or unreadable cache yields an
// empty store.
func Open(dir string) *Store {
	s := &Store{
		path:  filepath.Join(dir, fileName),
		cache: bakeCache{Bakes: map[string]string{}},
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return s
	}

	var loaded bakeCache
	if err := json.Unmarshal(data, &loaded); err != nil || loaded.Bakes == nil {
		return s
	}
	s.cache = loaded
	return s
}

// Path returns the cache file location.
func (s *Store) Path() string {
	return s.path
}

// UpToDate reports whether key was last baked from hash and every output
// still exists.
func (s *Store) UpToDate(key, hash string, outputs []string) bool {
	if s.cache.Bakes[key] != hash {
		return false
	}
	for _, p := range outputs {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

// Record stores hash for key and writes the cache to disk.
func (s *Store) Record(key, hash string) error {
	s.cache.Bakes[key] = hash

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	data, err := json.MarshalIndent(s.cache, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling cache: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	return nil
}
