package service

import (
	"context"
	"net/http"

	"nestdrive/internal/domain"
)

// ElementStore — поверхность запросов к хранилищу элементов, от которой
// зависит ядро. Реализуется repository.ElementRepository.
type ElementStore interface {
	FindByQuery(ctx context.Context, q domain.ElementQuery, user domain.UserInfo) ([]domain.Element, error)
	FindOne(ctx context.Context, q domain.ElementQuery, user domain.UserInfo) (*domain.Element, error)
	GetByID(ctx context.Context, id string) (*domain.Element, error)
	Insert(ctx context.Context, element *domain.Element) error
	InsertAll(ctx context.Context, elements []*domain.Element) error
	Rename(ctx context.Context, id string, name string) error
	SetParent(ctx context.Context, id string, parentID *string) error
	SetShared(ctx context.Context, id string, shared domain.ShareList) error
	UpdateFile(ctx context.Context, element *domain.Element) error
	UpdateInheritedShares(ctx context.Context, updates []domain.InheritedShareUpdate) error
	SetDeleted(ctx context.Context, ids []string, deleted bool) error
	DeleteByIDs(ctx context.Context, ids []string) error
	ListRecursive(ctx context.Context, q domain.ElementQuery, user domain.UserInfo) ([]domain.Element, error)
}

// QuotaService — внешний сервис квот: чтение и инкрементное обновление
// счётчика занятого места.
type QuotaService interface {
	QuotaAndUsage(ctx context.Context, userID string) (*domain.QuotaUsage, error)
	// IncrementStorage сдвигает занятое место на delta (может быть
	// отрицательной) и сообщает, пересёк ли пользователь порог
	// notifyThreshold (процент занятого места).
	IncrementStorage(ctx context.Context, userID string, delta int64, notifyThreshold int) (used int64, notify bool, err error)
}

// Notifier получает сигнал о малом остатке места. Доставка уведомлений —
// внешняя подсистема.
type Notifier interface {
	NotifyLowSpace(ctx context.Context, userID string)
}

// FolderManager — операционная поверхность ядра над папками и файлами.
// Все операции выполняются от имени действующего пользователя; чтение
// ограничено видимостью (владение либо гранты), если не оговорено иное.
type FolderManager interface {
	FindByQuery(ctx context.Context, q domain.ElementQuery, user domain.UserInfo) ([]domain.Element, error)

	CreateFolder(ctx context.Context, parentID *string, folder *domain.Element, user domain.UserInfo) (*domain.Element, error)
	AddFile(ctx context.Context, parentID *string, doc *domain.Element, user domain.UserInfo) (*domain.Element, error)
	UpdateFile(ctx context.Context, id string, parentID *string, doc *domain.Element, user domain.UserInfo) (*domain.Element, error)

	Info(ctx context.Context, id string, user domain.UserInfo) (*domain.Element, error)
	List(ctx context.Context, parentID string, user domain.UserInfo) ([]domain.Element, error)
	ListRecursively(ctx context.Context, fromID *string, user domain.UserInfo) ([]domain.Element, error)

	Rename(ctx context.Context, id string, newName string, user domain.UserInfo) error
	Move(ctx context.Context, id string, destFolderID string, user domain.UserInfo) (*domain.Element, error)
	MoveAll(ctx context.Context, ids []string, destFolderID string, user domain.UserInfo) ([]string, error)
	Copy(ctx context.Context, id string, destFolderID *string, user domain.UserInfo) ([]domain.Element, error)
	CopyAll(ctx context.Context, ids []string, destFolderID *string, user domain.UserInfo) ([]domain.Element, error)

	UpdateShared(ctx context.Context, id string, user domain.UserInfo) error
	Share(ctx context.Context, id string, op domain.ShareOperation) ([]string, error)
	ShareAll(ctx context.Context, ids []string, op domain.ShareOperation) ([]string, error)

	Trash(ctx context.Context, id string, user domain.UserInfo) ([]string, error)
	Restore(ctx context.Context, id string, user domain.UserInfo) ([]string, error)
	// Delete необратимо удаляет элемент (для папки — всё поддерево) вместе
	// с блобами файлов и возвращает удалённые строки.
	Delete(ctx context.Context, id string, user domain.UserInfo) ([]domain.Element, error)

	DownloadFile(ctx context.Context, id string, user domain.UserInfo, w http.ResponseWriter, r *http.Request) error
	DownloadFiles(ctx context.Context, ids []string, user domain.UserInfo, w http.ResponseWriter, r *http.Request) error
}
