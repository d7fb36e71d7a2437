package build

import (
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
)

const manifestVersion = 1

// encMode uses Core Deterministic Encoding so an unchanged manifest always
// serializes to identical bytes.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("build: CBOR encoder initialization failed: " + err.Error())
	}
}

type manifestFile struct {
	Version int                          `cbor:"version"`
	Entries map[string]map[string]string `cbor:"entries"`
}

// Manifest records the fingerprint of every source compiled into each
// output, so incremental runs can skip sources that have not changed.
type Manifest struct {
	path    string
	entries map[string]map[string]string
	dirty   bool
	mu      sync.Mutex
}

// LoadManifest reads the manifest at path. A missing, unreadable or
// outdated manifest yields an empty one; the cost is a full recompile.
func LoadManifest(path string) *Manifest {
	m := &Manifest{path: path, entries: make(map[string]map[string]string)}

	data, err := os.ReadFile(path)
	if err != nil {
		return m
	}

	var file manifestFile
	if err := cbor.Unmarshal(data, &file); err != nil || file.Version != manifestVersion {
		return m
	}
	if file.Entries != nil {
		m.entries = file.Entries
	}

	return m
}

// Fresh reports whether source was last compiled into output with the
// given fingerprint.
func (m *Manifest) Fresh(output, source, fingerprint string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.entries[output][source] == fingerprint
}

// Known reports whether output has any recorded sources.
func (m *Manifest) Known(output string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.entries[output]) > 0
}

// Record stores the fingerprint of source for output.
func (m *Manifest) Record(output, source, fingerprint string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sources, ok := m.entries[output]
	if !ok {
		sources = make(map[string]string)
		m.entries[output] = sources
	}
	if sources[source] != fingerprint {
		sources[source] = fingerprint
		m.dirty = true
	}
}

// Save writes the manifest if it changed since it was loaded.
func (m *Manifest) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.dirty {
		return nil
	}

	data, err := encMode.Marshal(manifestFile{Version: manifestVersion, Entries: m.entries})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, m.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	m.dirty = false

	return nil
}

// Fingerprint returns the hex BLAKE3 digest of the file at path.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
