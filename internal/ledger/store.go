package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore persists the payee list as a pretty-printed JSON array, the
// lista.json format. The whole file is rewritten on every save through a
// temp-file rename, so readers never observe a partial write.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the payee list, creating an empty file when none exists yet.
func (s *FileStore) Load(ctx context.Context) ([]Payee, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		if err := s.Save(ctx, []Payee{}); err != nil {
			return nil, err
		}
		return []Payee{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger file %s: %w", s.path, err)
	}

	if len(raw) == 0 {
		return []Payee{}, nil
	}

	var payees []Payee
	if err := json.Unmarshal(raw, &payees); err != nil {
		return nil, fmt.Errorf("failed to parse ledger file %s: %w", s.path, err)
	}

	return payees, nil
}

func (s *FileStore) Save(ctx context.Context, payees []Payee) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if payees == nil {
		payees = []Payee{}
	}

	raw, err := json.MarshalIndent(payees, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp ledger file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write ledger file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close ledger file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace ledger file: %w", err)
	}

	return nil
}
