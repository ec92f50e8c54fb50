package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"profiler-service/internal/crypto"
	"profiler-service/internal/models"
)

// RecordStore persists one record per subject name. Saving a name that
// already exists replaces it.
type RecordStore interface {
	Save(ctx context.Context, rec *models.Record) error
	Load(ctx context.Context, name string) (*models.Record, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) error
	Close() error
}

// ValidateName rejects names that cannot be used as a record key or file name.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: record name is empty", models.ErrInvalidInput)
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: record name %q contains path characters", models.ErrInvalidInput, name)
	}
	return nil
}

// encodeRecord marshals a record and seals it when a sealer is configured.
func encodeRecord(rec *models.Record, sealer *crypto.Sealer) (string, bool, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", false, fmt.Errorf("failed to marshal record: %w", err)
	}
	if sealer == nil {
		return string(data), false, nil
	}
	sealed, err := sealer.Seal(data)
	if err != nil {
		return "", false, fmt.Errorf("failed to seal record: %w", err)
	}
	return sealed, true, nil
}

func decodeRecord(document string, sealed bool, sealer *crypto.Sealer) (*models.Record, error) {
	data := []byte(document)
	if sealed {
		if sealer == nil {
			return nil, fmt.Errorf("record is sealed and no encryption key is configured")
		}
		plain, err := sealer.Open(document)
		if err != nil {
			return nil, fmt.Errorf("failed to open sealed record: %w", err)
		}
		data = plain
	}

	var rec models.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return &rec, nil
}
