// Package uploadlog records the metadata of every newly created document in
// an append-only log, kept either as a JSON file or as a Redis list.
package uploadlog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/docindex/docindex/internal/document"
	"github.com/redis/go-redis/v9"
)

type Log interface {
	Append(ctx context.Context, m document.Metadata) error
	List(ctx context.Context) ([]document.Metadata, error)
}

// FileLog keeps the log as a pretty-printed JSON array. Writers are
// serialized and every write replaces the file atomically.
type FileLog struct {
	mu   sync.Mutex
	path string
}

func NewFileLog(path string) *FileLog {
	return &FileLog{path: path}
}

func (l *FileLog) Append(ctx context.Context, m document.Metadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	entries, err := l.read()
	if err != nil {
		return err
	}
	entries = append(entries, m)
	return l.write(entries)
}

func (l *FileLog) List(ctx context.Context) ([]document.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read()
}

func (l *FileLog) read() ([]document.Metadata, error) {
	b, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return []document.Metadata{}, nil
	}
	if err != nil {
		return nil, err
	}
	entries := []document.Metadata{}
	if len(bytes.TrimSpace(b)) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("upload log %s is not a JSON array: %w", l.path, err)
	}
	return entries, nil
}

func (l *FileLog) write(entries []document.Metadata) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(entries); err != nil {
		return err
	}
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".upload-log-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), l.path)
}

// RedisLog keeps the log as a Redis list of JSON entries under one key.
type RedisLog struct {
	client *redis.Client
	key    string
}

func NewRedisLog(client *redis.Client, key string) *RedisLog {
	if key == "" {
		key = "docindex:upload-log"
	}
	return &RedisLog{client: client, key: key}
}

func (l *RedisLog) Append(ctx context.Context, m document.Metadata) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return l.client.RPush(ctx, l.key, b).Err()
}

func (l *RedisLog) List(ctx context.Context) ([]document.Metadata, error) {
	raw, err := l.client.LRange(ctx, l.key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]document.Metadata, 0, len(raw))
	for _, s := range raw {
		var m document.Metadata
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
