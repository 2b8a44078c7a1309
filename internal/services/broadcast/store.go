package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
)

// JobState сохраняемое состояние рассылки.
// Пустой JobID означает, что активной рассылки нет.
type JobState struct {
	JobID            string   `json:"jobId"`
	ProcessedNumbers []string `json:"processedNumbers"`
	MessageBody      string   `json:"messageBody"`
}

// Idle сообщает, что рассылка не запущена.
func (s JobState) Idle() bool {
	return s.JobID == ""
}

func emptyState() JobState {
	return JobState{ProcessedNumbers: []string{}}
}

// Store долговременное хранилище состояния рассылки.
type Store interface {
	Load(ctx context.Context) (JobState, error)
	Save(ctx context.Context, state JobState) error
}

// FileStore хранит состояние в JSON-файле. Запись идёт через временный файл и rename,
// поэтому после сбоя на диске остаётся либо старое, либо новое состояние.
type FileStore struct {
	path string
}

// NewFileStore создает FileStore для файла path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load читает состояние. Отсутствующий файл означает пустое состояние.
func (f *FileStore) Load(_ context.Context) (JobState, error) {
	const op = "broadcast.FileStore.Load"

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return emptyState(), nil
	}
	if err != nil {
		return JobState{}, fmt.Errorf("%s: %w", op, err)
	}

	state := emptyState()
	if err := json.Unmarshal(data, &state); err != nil {
		return JobState{}, fmt.Errorf("%s: %w", op, err)
	}
	if state.ProcessedNumbers == nil {
		state.ProcessedNumbers = []string{}
	}
	return state, nil
}

// Save атомарно перезаписывает файл состояния.
func (f *FileStore) Save(_ context.Context, state JobState) error {
	const op = "broadcast.FileStore.Save"

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// RedisStore хранит состояние в одном ключе Redis без срока жизни.
type RedisStore struct {
	db  *redis.Client
	key string
}

// NewRedisStore создает RedisStore.
func NewRedisStore(db *redis.Client, key string) *RedisStore {
	return &RedisStore{db: db, key: key}
}

// Load читает состояние. Отсутствующий ключ означает пустое состояние.
func (r *RedisStore) Load(ctx context.Context) (JobState, error) {
	const op = "broadcast.RedisStore.Load"

	data, err := r.db.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return emptyState(), nil
	}
	if err != nil {
		return JobState{}, fmt.Errorf("%s: %w", op, err)
	}

	state := emptyState()
	if err := json.Unmarshal(data, &state); err != nil {
		return JobState{}, fmt.Errorf("%s: %w", op, err)
	}
	if state.ProcessedNumbers == nil {
		state.ProcessedNumbers = []string{}
	}
	return state, nil
}

// Save перезаписывает ключ.
func (r *RedisStore) Save(ctx context.Context, state JobState) error {
	const op = "broadcast.RedisStore.Save"

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := r.db.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
