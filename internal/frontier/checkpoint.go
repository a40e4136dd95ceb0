package frontier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/sitecrawl/internal/model"
)

// Checkpoint is the durable form of a frontier. The JSON field names match
// the checkpoint files written by earlier versions of the crawler, so those
// can still be resumed.
//
// Design decision: We store only pending and explored rather than all four
// frontier sets. In-flight and deferred targets are written as pending, so
// a checkpoint never loses a target and the format stays readable by the
// older crawler.
type Checkpoint struct {
	// Pending are targets still to be fetched.
	Pending []string `json:"urls"`

	// Explored are targets that were already retired.
	Explored []string `json:"explored"`
}

// Checkpointer loads and saves checkpoints keyed by domain.
type Checkpointer interface {
	// Load returns the checkpoint for domain. A missing checkpoint is
	// reported with found == false and a nil error.
	Load(ctx context.Context, domain string) (cp *Checkpoint, found bool, err error)

	// Save replaces the checkpoint for domain.
	Save(ctx context.Context, domain string, cp *Checkpoint) error
}

// FileCheckpointer stores one JSON file per domain in a directory.
type FileCheckpointer struct {
	dir string
}

// NewFileCheckpointer creates a FileCheckpointer rooted at dir.
// The directory is created on the first Save.
func NewFileCheckpointer(dir string) *FileCheckpointer {
	return &FileCheckpointer{dir: dir}
}

// Path returns the checkpoint file for a domain.
func (f *FileCheckpointer) Path(domain string) string {
	return filepath.Join(f.dir, model.SafeDomain(domain)+".json")
}

// Load reads <dir>/<domain>.json.
func (f *FileCheckpointer) Load(ctx context.Context, domain string) (*Checkpoint, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	data, err := os.ReadFile(f.Path(domain))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	cp, err := decodeCheckpoint(data)
	if err != nil {
		return nil, false, err
	}
	return cp, true, nil
}

// decodeCheckpoint parses checkpoint JSON strictly. Unknown fields, missing
// lists or trailing data mean the file is not a checkpoint we wrote.
func decodeCheckpoint(data []byte) (*Checkpoint, error) {
	var raw struct {
		Pending  *[]string `json:"urls"`
		Explored *[]string `json:"explored"`
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptCheckpoint, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrCorruptCheckpoint)
	}
	if raw.Pending == nil || raw.Explored == nil {
		return nil, fmt.Errorf("%w: missing \"urls\" or \"explored\"", ErrCorruptCheckpoint)
	}

	return &Checkpoint{Pending: *raw.Pending, Explored: *raw.Explored}, nil
}

// Save writes the checkpoint to a temporary file and renames it into place,
// so readers only ever see a complete checkpoint.
func (f *FileCheckpointer) Save(ctx context.Context, domain string, cp *Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cp == nil {
		cp = &Checkpoint{}
	}
	if cp.Pending == nil {
		cp.Pending = []string{}
	}
	if cp.Explored == nil {
		cp.Explored = []string{}
	}

	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := os.MkdirAll(f.dir, 0750); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	tmp, err := os.CreateTemp(f.dir, "."+model.SafeDomain(domain)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create checkpoint file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close checkpoint: %w", err)
	}

	if err := os.Rename(tmpName, f.Path(domain)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace checkpoint: %w", err)
	}
	return nil
}

// Domains lists the domains with a checkpoint file, sorted. Ports appear
// in their file name form, e.g. "localhost_8080".
func (f *FileCheckpointer) Domains() ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	var domains []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
			continue
		}
		domains = append(domains, strings.TrimSuffix(name, ".json"))
	}
	return domains, nil
}
