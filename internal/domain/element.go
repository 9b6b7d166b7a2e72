package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type ElementKind int

const (
	FolderKind ElementKind = 0
	FileKind   ElementKind = 1
)

// Element представляет строку единой коллекции: папку или файл,
// различаются по полю kind.
type Element struct {
	ID              uuid.UUID   `json:"id" db:"id"`
	Kind            ElementKind `json:"kind" db:"kind"`
	Name            string      `json:"name" db:"name"`
	ParentID        *uuid.UUID  `json:"parent_id,omitempty" db:"parent_id"`
	OwnerID         string      `json:"owner_id" db:"owner_id"`
	OwnerName       string      `json:"owner_name" db:"owner_name"`
	Application     string      `json:"application,omitempty" db:"application"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`
	Deleted         bool        `json:"deleted" db:"deleted"`
	Shared          ShareList   `json:"shared" db:"shared"`
	InheritedShares ShareList   `json:"inherited_shares" db:"inherited_shares"`

	// Поля только для файлов
	BlobID     string     `json:"blob_id,omitempty" db:"blob_id"`
	Metadata   *Metadata  `json:"metadata,omitempty" db:"metadata"`
	Thumbnails Thumbnails `json:"thumbnails,omitempty" db:"thumbnails"`

	// Заполняется только рекурсивным обходом: id предков от корня выборки
	// до родителя элемента.
	Parents pq.StringArray `json:"parents,omitempty" db:"parents"`
}

func (e *Element) IsFolder() bool {
	return e.Kind == FolderKind
}

func (e *Element) IsFile() bool {
	return e.Kind == FileKind
}

// FileSize возвращает размер файла в байтах; для папок и файлов без
// метаданных — 0.
func (e *Element) FileSize() int64 {
	if e.Metadata == nil {
		return 0
	}
	return e.Metadata.Size
}

// BlobIDs возвращает все ссылки элемента на blob-хранилище (основной блоб
// и превью), без дубликатов.
func (e *Element) BlobIDs() []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0, 1+len(e.Thumbnails))
	if e.BlobID != "" {
		seen[e.BlobID] = struct{}{}
		ids = append(ids, e.BlobID)
	}
	for _, blobID := range e.Thumbnails {
		if blobID == "" {
			continue
		}
		if _, ok := seen[blobID]; ok {
			continue
		}
		seen[blobID] = struct{}{}
		ids = append(ids, blobID)
	}
	return ids
}

// TotalFileSize суммирует размеры файлов набора; папки дают 0.
func TotalFileSize(elements []Element) int64 {
	var total int64
	for i := range elements {
		if elements[i].IsFile() {
			total += elements[i].FileSize()
		}
	}
	return total
}

// Metadata хранит содержательные атрибуты файла. Ключи JSON повторяют
// формат клиентов хранилища ("content-type", "size").
type Metadata struct {
	ContentType string `json:"content-type"`
	Size        int64  `json:"size"`
	Charset     string `json:"charset,omitempty"`
	Filename    string `json:"filename,omitempty"`
}

func (m Metadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *Metadata) Scan(src interface{}) error {
	if src == nil {
		return nil
	}
	data, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan metadata from %T", src)
	}
	return json.Unmarshal(data, m)
}

// Thumbnails отображает тег размера ("120x120") в id блоба превью.
type Thumbnails map[string]string

func (t Thumbnails) Value() (driver.Value, error) {
	if t == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(t)
}

func (t *Thumbnails) Scan(src interface{}) error {
	if src == nil {
		*t = nil
		return nil
	}
	data, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan thumbnails from %T", src)
	}
	return json.Unmarshal(data, t)
}

// InheritedShareUpdate — одна запись пакетного обновления inherited_shares,
// результат работы движка наследования.
type InheritedShareUpdate struct {
	ID              uuid.UUID
	InheritedShares ShareList
}
