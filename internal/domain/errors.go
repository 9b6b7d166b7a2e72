package domain

import "errors"

// Типизированные ошибки ядра. Слои выше различают их через errors.Is;
// ошибки хранилищ оборачиваются через %w и несут причину дальше.
var (
	ErrNotFound      = errors.New("element not found")
	ErrNotAFolder    = errors.New("parent is not a folder")
	ErrForbidden     = errors.New("action is not allowed")
	ErrQuotaExceeded = errors.New("files too large: quota exceeded")
	ErrInvalid       = errors.New("invalid query or command")
)
