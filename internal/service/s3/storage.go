package s3

import (
	"context"
	"io"
)

// Object — поток содержимого блоба вместе с его атрибутами.
type Object interface {
	io.ReadCloser
	ContentLength() int64
	ContentType() string
}

type s3Object struct {
	io.ReadCloser
	contentLength int64
	contentType   string
}

func (o *s3Object) ContentLength() int64 {
	return o.contentLength
}

func (o *s3Object) ContentType() string {
	return o.contentType
}

// Storage — контракт blob-хранилища, от которого зависит ядро:
// запись, чтение, дублирование и удаление по id.
type Storage interface {
	Write(ctx context.Context, blobID string, data io.Reader) error
	GetObject(ctx context.Context, blobID string) (Object, error)
	// Copy дублирует блоб на стороне хранилища и возвращает id копии.
	// Копия никогда не разделяет содержимое с оригиналом.
	Copy(ctx context.Context, blobID string) (string, error)
	Remove(ctx context.Context, blobID string) error
	RemoveMany(ctx context.Context, blobIDs []string) error
	// WriteToFile выгружает блоб в локальный файл (для сборки архивов).
	WriteToFile(ctx context.Context, blobID string, path string) error
}
