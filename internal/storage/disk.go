package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DiskStore — файловое хранилище вложений на локальном диске.
// Содержимое каталога отдаётся роутером по публичному базовому URL.
type DiskStore struct {
	dir     string
	baseURL string
}

func NewDiskStore(dir, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Upload надёжно сохраняет файл и возвращает его хранимый путь.
// Имя дополняется uuid, чтобы вложения с одинаковыми именами не
// затирали друг друга; исходное имя остаётся в хвосте.
func (s *DiskStore) Upload(ctx context.Context, filename string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := uuid.New().String() + "_" + sanitize(filename)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write attachment: %w", err)
	}
	return name, nil
}

// PublicURL возвращает URL, по которому вложение доступно клиентам
func (s *DiskStore) PublicURL(storedPath string) string {
	return s.baseURL + "/" + storedPath
}

// sanitize оставляет от имени файла безопасную базовую часть
func sanitize(filename string) string {
	base := filepath.Base(filename)
	base = strings.ReplaceAll(base, " ", "_")
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "file"
	}
	return base
}
