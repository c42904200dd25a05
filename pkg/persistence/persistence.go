package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "persistence")

// ErrNotExists 表示数据不存在
var ErrNotExists = fmt.Errorf("persistence data not exists")

// Store 存储接口
type Store interface {
	Save(data any) error
	Load(data any) error
}

// JSONFileStore 单个 JSON 文件存储（写临时文件后 rename，避免半写）
type JSONFileStore struct {
	mu   sync.Mutex
	path string
}

// NewJSONFileStore 创建 JSON 文件存储
func NewJSONFileStore(path string) *JSONFileStore {
	return &JSONFileStore{path: path}
}

// Path 文件路径
func (s *JSONFileStore) Path() string { return s.path }

// Save 保存数据
func (s *JSONFileStore) Save(data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.Debugf("Save: path=%s", s.path)
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Load 加载数据；文件不存在或为空时返回 ErrNotExists
func (s *JSONFileStore) Load(data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.Debugf("Load: path=%s", s.path)
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotExists
		}
		return err
	}
	if len(b) == 0 {
		return ErrNotExists
	}
	return json.Unmarshal(b, data)
}

// Clear 删除文件，不存在时不报错
func (s *JSONFileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// LoadOr 加载数据，不存在时保留 data 原值（调用方先填好默认值）
func LoadOr(store Store, data any) error {
	if err := store.Load(data); err != nil && err != ErrNotExists {
		return err
	}
	return nil
}
