package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"mixevo/internal/model"
)

const runFile = "run.json"

// FileStore keeps one directory per run under Dir, each holding run.json.
type FileStore struct {
	Dir string

	mu sync.Mutex
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

func (s *FileStore) Init(_ context.Context) error {
	if s.Dir == "" {
		return errors.New("file store directory is required")
	}
	return os.MkdirAll(s.Dir, 0o755)
}

func (s *FileStore) SaveRun(_ context.Context, run model.RunRecord) error {
	if run.ID == "" {
		return errors.New("run id is required")
	}
	if filepath.Base(run.ID) != run.ID {
		return fmt.Errorf("invalid run id: %s", run.ID)
	}
	payload, err := EncodeRun(run)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	runDir := filepath.Join(s.Dir, run.ID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(runDir, runFile+".tmp")
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(runDir, runFile))
}

func (s *FileStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	if id == "" || filepath.Base(id) != id {
		return model.RunRecord{}, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.readRun(id)
}

func (s *FileStore) readRun(id string) (model.RunRecord, bool, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir, id, runFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.RunRecord{}, false, nil
		}
		return model.RunRecord{}, false, err
	}
	run, err := DecodeRun(data)
	if err != nil {
		return model.RunRecord{}, false, fmt.Errorf("decode run %s: %w", id, err)
	}
	return run, true, nil
}

func (s *FileStore) ListRuns(_ context.Context) ([]model.RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]model.RunSummary, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		run, ok, err := s.readRun(entry.Name())
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, run.Summary())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *FileStore) DeleteRun(_ context.Context, id string) error {
	if id == "" || filepath.Base(id) != id {
		return fmt.Errorf("invalid run id: %s", id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return os.RemoveAll(filepath.Join(s.Dir, id))
}
