package services

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"price-dashboard/internal/models"
)

const cacheVersion = "v2"

var errCacheMiss = errors.New("dataset cache miss")

type cacheEntry struct {
	Version   string               `msgpack:"version"`
	CreatedAt time.Time            `msgpack:"created_at"`
	Skipped   int64                `msgpack:"skipped"`
	Rows      []models.Observation `msgpack:"rows"`
}

// datasetCache stores joined rows as msgpack. An entry is valid while it is
// newer than every source file.
type datasetCache struct {
	dir string
}

func (c *datasetCache) path(src Sources) string {
	h := sha256.New()
	for _, p := range src.paths() {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	name := fmt.Sprintf("dataset_%s_%s.msgpack", hex.EncodeToString(h.Sum(nil))[:16], cacheVersion)
	return filepath.Join(c.dir, name)
}

func (c *datasetCache) load(src Sources) (*cacheEntry, error) {
	path := c.path(src)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errCacheMiss
		}
		return nil, err
	}

	for _, p := range src.paths() {
		srcInfo, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat source: %w", err)
		}
		if !srcInfo.ModTime().Before(info.ModTime()) {
			return nil, errCacheMiss
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entry cacheEntry
	if err := msgpack.NewDecoder(bufio.NewReader(f)).Decode(&entry); err != nil {
		return nil, fmt.Errorf("decode cache: %w", err)
	}
	if entry.Version != cacheVersion {
		return nil, errCacheMiss
	}
	for i := range entry.Rows {
		entry.Rows[i].CalendarDate = entry.Rows[i].CalendarDate.UTC()
	}
	return &entry, nil
}

func (c *datasetCache) save(src Sources, entry cacheEntry) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}

	entry.Version = cacheVersion
	entry.CreatedAt = time.Now()

	path := c.path(src)
	tmp, err := os.CreateTemp(c.dir, strings.TrimSuffix(filepath.Base(path), ".msgpack")+"-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := msgpack.NewEncoder(w).Encode(&entry); err != nil {
		tmp.Close()
		return fmt.Errorf("encode cache: %w", err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
