package capture

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/cclabsInc/RFCrack/rfcat"
)

var ErrNotFound = errors.New("capture not found")

// Store keeps captures as .cap files (hex text, same format the original
// tool wrote) with a .meta.yaml sidecar for the out-of-band metadata. Thin
// by design: identifier lookup only, no dedup, no indexing.
type Store struct {
	dir string
}

type metadata struct {
	Frequency  uint32 `yaml:"frequency"`
	Modulation string `yaml:"modulation"`
	Time       string `yaml:"time"`
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Save writes the capture and returns its identifier. Identifiers follow the
// Jan02_150405_payload naming of the original capture files, with a counter
// suffix when two captures land in the same second.
func (s *Store) Save(c *Capture) (string, error) {
	if len(c.Data) == 0 {
		return "", ErrEmptyPayload
	}

	id := c.Time.Format("Jan02_150405") + "_payload"
	for n := 1; ; n++ {
		if _, err := os.Stat(s.capPath(id)); os.IsNotExist(err) {
			break
		}
		id = fmt.Sprintf("%s_payload_%d", c.Time.Format("Jan02_150405"), n)
	}

	return id, s.SaveAs(id, c)
}

// SaveAs stores the capture under a caller-chosen identifier.
func (s *Store) SaveAs(id string, c *Capture) error {
	if len(c.Data) == 0 {
		return ErrEmptyPayload
	}
	if err := os.WriteFile(s.capPath(id), []byte(c.Hex()+"\n"), 0644); err != nil {
		return err
	}

	meta := metadata{
		Frequency:  c.Frequency,
		Modulation: c.Modulation.String(),
		Time:       c.Time.UTC().Format(time.RFC3339),
	}
	raw, err := yaml.Marshal(meta)
	if err != nil {
		return err
	}
	return os.WriteFile(s.metaPath(id), raw, 0644)
}

func (s *Store) Load(id string) (*Capture, error) {
	raw, err := os.ReadFile(s.capPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return nil, err
	}

	data, err := decodePayload(raw)
	if err != nil {
		return nil, fmt.Errorf("capture %s: %w", id, err)
	}

	c := &Capture{Data: data}

	metaRaw, err := os.ReadFile(s.metaPath(id))
	if err == nil {
		var meta metadata
		if err := yaml.Unmarshal(metaRaw, &meta); err == nil {
			c.Frequency = meta.Frequency
			if mod, err := rfcat.ParseModulation(meta.Modulation); err == nil {
				c.Modulation = mod
			}
			if t, err := time.Parse(time.RFC3339, meta.Time); err == nil {
				c.Time = t
			}
		}
	}

	return c, nil
}

// LoadFromPath wraps the raw bytes of an arbitrary capture file with
// caller-supplied metadata. The file itself may be metadata-less, so
// frequency and modulation always come from the caller.
func LoadFromPath(path string, frequency uint32, mod rfcat.Modulation) (*Capture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, err
	}

	data, err := decodePayload(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return New(data, frequency, mod)
}

// Delete is the only way a saved capture dies.
func (s *Store) Delete(id string) error {
	if err := os.Remove(s.capPath(id)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return err
	}
	os.Remove(s.metaPath(id))
	return nil
}

// List returns the saved capture identifiers in lexical order.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".cap") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".cap"))
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) capPath(id string) string {
	return filepath.Join(s.dir, id+".cap")
}

func (s *Store) metaPath(id string) string {
	return filepath.Join(s.dir, id+".meta.yaml")
}

// decodePayload accepts either hex text (the original's format) or a raw
// byte blob. Empty files never decode into a capture.
func decodePayload(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyPayload
	}
	trimmed := strings.TrimSpace(string(raw))
	if data, err := hex.DecodeString(trimmed); err == nil && len(data) > 0 {
		return data, nil
	}
	return raw, nil
}
