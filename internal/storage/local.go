package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LocalStorage stores assets on the local filesystem.
type LocalStorage struct {
	baseDir string
	mu      sync.RWMutex
	assets  map[string]*AssetInfo
}

func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStorage{
		baseDir: baseDir,
		assets:  make(map[string]*AssetInfo),
	}, nil
}

func (s *LocalStorage) Save(_ context.Context, fileName, mimeType, category string, reader io.Reader) (*AssetInfo, error) {
	id := uuid.NewString()
	ext := filepath.Ext(fileName)
	storedName := id + ext
	fullPath := filepath.Join(s.baseDir, storedName)

	f, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("create asset: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, reader)
	if err != nil {
		os.Remove(fullPath)
		return nil, fmt.Errorf("write asset: %w", err)
	}

	info := &AssetInfo{
		ID:        id,
		FileName:  fileName,
		MIMEType:  mimeType,
		Category:  category,
		SizeBytes: n,
		Path:      storedName,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.assets[id] = info
	s.mu.Unlock()

	return info, nil
}

func (s *LocalStorage) Get(_ context.Context, id string) (*AssetInfo, io.ReadCloser, error) {
	s.mu.RLock()
	info, ok := s.assets[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}

	fullPath := filepath.Join(s.baseDir, info.Path)
	f, err := os.Open(fullPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open asset: %w", err)
	}
	return info, f, nil
}

func (s *LocalStorage) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	info, ok := s.assets[id]
	if ok {
		delete(s.assets, id)
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}

	fullPath := filepath.Join(s.baseDir, info.Path)
	return os.Remove(fullPath)
}

func (s *LocalStorage) UpdateInfo(_ context.Context, info *AssetInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assets[info.ID]; !ok {
		return fmt.Errorf("asset %s: %w", info.ID, ErrNotFound)
	}
	s.assets[info.ID] = info
	return nil
}

func (s *LocalStorage) List(_ context.Context) ([]AssetInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]AssetInfo, 0, len(s.assets))
	for _, info := range s.assets {
		result = append(result, *info)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}
