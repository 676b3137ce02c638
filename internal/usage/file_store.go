package usage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// FileStore keeps the ledger as a single JSON document on local disk. Paths
// ending in ".zst" are zstd-compressed. Writes go to a temp file that is
// renamed into place, so a crash never leaves a half-written ledger.
type FileStore struct {
	path string
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a FileStore at path. The file is created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) compressed() bool {
	return strings.HasSuffix(f.path, ".zst")
}

func (f *FileStore) Describe() string { return "file:" + f.path }

func (f *FileStore) Load(ctx context.Context) (Snapshot, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("read ledger file: %w", err)
	}

	if f.compressed() {
		dec, err := zstd.NewReader(bytes.NewReader(raw))
		if err != nil {
			return Snapshot{}, fmt.Errorf("open zstd reader: %w", err)
		}
		defer dec.Close()
		raw, err = io.ReadAll(dec)
		if err != nil {
			return Snapshot{}, fmt.Errorf("decompress ledger file: %w", err)
		}
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("parse ledger file %s: %w", f.path, err)
	}
	return snap, nil
}

func (f *FileStore) Save(ctx context.Context, snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".usage-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	var w io.Writer = tmp
	var enc *zstd.Encoder
	if f.compressed() {
		enc, err = zstd.NewWriter(tmp, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			tmp.Close()
			return fmt.Errorf("create zstd writer: %w", err)
		}
		w = enc
	}
	if _, err := w.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write ledger: %w", err)
	}
	if enc != nil {
		if err := enc.Close(); err != nil {
			tmp.Close()
			return fmt.Errorf("flush zstd ledger: %w", err)
		}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp ledger file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace ledger file: %w", err)
	}
	return nil
}

// Clear deletes the ledger file. A missing file is not an error.
func (f *FileStore) Clear(ctx context.Context) error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete ledger file: %w", err)
	}
	return nil
}
