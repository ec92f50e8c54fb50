package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"profiler-service/internal/crypto"
	"profiler-service/internal/models"
)

// FileStore keeps one <name>.json document per subject in a directory.
type FileStore struct {
	dir    string
	sealer *crypto.Sealer
	logger *zap.Logger
}

// sealedEnvelope is written instead of the record when sealing is enabled.
type sealedEnvelope struct {
	Sealed string `json:"sealed"`
}

// NewFileStore creates the directory if it does not exist.
func NewFileStore(dir string, sealer *crypto.Sealer, logger *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create profiles directory: %w", err)
	}
	logger.Info("Record store ready", zap.String("backend", "file"), zap.String("dir", dir))
	return &FileStore{dir: dir, sealer: sealer, logger: logger}, nil
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

func (s *FileStore) Save(_ context.Context, rec *models.Record) error {
	if rec == nil {
		return fmt.Errorf("%w: nil record", models.ErrInvalidInput)
	}
	if err := ValidateName(rec.Name); err != nil {
		return err
	}

	document, sealed, err := encodeRecord(rec, s.sealer)
	if err != nil {
		return err
	}
	data := []byte(document)
	if sealed {
		data, err = json.MarshalIndent(sealedEnvelope{Sealed: document}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal sealed record: %w", err)
		}
	}

	tmp, err := os.CreateTemp(s.dir, ".record-*")
	if err != nil {
		return fmt.Errorf("failed to save record %q: %w", rec.Name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to save record %q: %w", rec.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to save record %q: %w", rec.Name, err)
	}
	if err := os.Rename(tmp.Name(), s.path(rec.Name)); err != nil {
		return fmt.Errorf("failed to save record %q: %w", rec.Name, err)
	}

	s.logger.Debug("Record saved", zap.String("name", rec.Name), zap.Bool("sealed", sealed))
	return nil
}

func (s *FileStore) Load(_ context.Context, name string) (*models.Record, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", models.ErrRecordNotFound, name)
		}
		return nil, fmt.Errorf("failed to load record %q: %w", name, err)
	}

	var envelope sealedEnvelope
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Sealed != "" {
		return decodeRecord(envelope.Sealed, true, s.sealer)
	}
	return decodeRecord(string(data), false, s.sealer)
}

func (s *FileStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	names := []string{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}

func (s *FileStore) Delete(_ context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := os.Remove(s.path(name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", models.ErrRecordNotFound, name)
		}
		return fmt.Errorf("failed to delete record %q: %w", name, err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
