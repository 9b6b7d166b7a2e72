package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"nestdrive/internal/domain"
	"nestdrive/internal/service/s3"
)

// Число параллельных веток при пакетных операциях (MoveAll, CopyAll, Delete).
const batchConcurrency = 4

// FolderService — основная реализация FolderManager поверх хранилища
// элементов и blob-хранилища.
type FolderService struct {
	store ElementStore
	blobs s3.Storage
}

func NewFolderService(store ElementStore, blobs s3.Storage) *FolderService {
	return &FolderService{store: store, blobs: blobs}
}

// canManage проверяет право на управляющие операции: владелец либо
// унаследованный грант "manage".
func canManage(el *domain.Element, user domain.UserInfo) bool {
	if el.OwnerID == user.ID {
		return true
	}
	return el.InheritedShares.Grants(user, domain.ActionManage)
}

// canWrite проверяет право на изменение содержимого: владелец либо
// унаследованный грант "write".
func canWrite(el *domain.Element, user domain.UserInfo) bool {
	if el.OwnerID == user.ID {
		return true
	}
	return el.InheritedShares.Grants(user, domain.ActionWrite)
}

func (s *FolderService) FindByQuery(ctx context.Context, q domain.ElementQuery, user domain.UserInfo) ([]domain.Element, error) {
	return s.store.FindByQuery(ctx, q, user)
}

// visibleFolder возвращает неудалённую папку, видимую пользователю.
func (s *FolderService) visibleFolder(ctx context.Context, id string, user domain.UserInfo) (*domain.Element, error) {
	folder, err := s.store.FindOne(ctx, domain.ElementQuery{
		ID:         id,
		Visibility: domain.VisibilityInherited,
		Trash:      domain.TrashExclude,
	}, user)
	if err != nil {
		return nil, err
	}
	if !folder.IsFolder() {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotAFolder, id)
	}
	return folder, nil
}

// prepareChild заполняет служебные поля нового элемента и вычисляет его
// inherited_shares относительно родителя.
func (s *FolderService) prepareChild(ctx context.Context, parentID *string, el *domain.Element, user domain.UserInfo) error {
	if el.ID == uuid.Nil {
		el.ID = uuid.New()
	}
	el.OwnerID = user.ID
	el.OwnerName = user.Name
	now := time.Now().UTC()
	el.CreatedAt = now
	el.UpdatedAt = now
	el.Deleted = false
	el.ParentID = nil

	if parentID == nil {
		el.InheritedShares = el.Shared.Merge(nil)
		return nil
	}

	parent, err := s.visibleFolder(ctx, *parentID, user)
	if err != nil {
		return err
	}
	pid := parent.ID
	el.ParentID = &pid
	return mergeShared(parent, el)
}

func (s *FolderService) CreateFolder(ctx context.Context, parentID *string, folder *domain.Element, user domain.UserInfo) (*domain.Element, error) {
	if folder.Name == "" {
		return nil, fmt.Errorf("%w: folder name is required", domain.ErrInvalid)
	}
	folder.Kind = domain.FolderKind
	folder.BlobID = ""
	folder.Metadata = nil
	folder.Thumbnails = nil

	if err := s.prepareChild(ctx, parentID, folder, user); err != nil {
		return nil, err
	}
	if err := s.store.Insert(ctx, folder); err != nil {
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}
	log.Printf("[FolderService] Created folder %s (owner %s)", folder.ID, user.ID)
	return folder, nil
}

func (s *FolderService) AddFile(ctx context.Context, parentID *string, doc *domain.Element, user domain.UserInfo) (*domain.Element, error) {
	if doc.Name == "" {
		return nil, fmt.Errorf("%w: file name is required", domain.ErrInvalid)
	}
	doc.Kind = domain.FileKind

	if err := s.prepareChild(ctx, parentID, doc, user); err != nil {
		return nil, err
	}
	if err := s.store.Insert(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to add file: %w", err)
	}
	log.Printf("[FolderService] Added file %s under parent %v", doc.ID, doc.ParentID)
	return doc, nil
}

// UpdateFile заменяет содержательные поля файла (имя, блоб, метаданные,
// превью) и при необходимости пересчитывает наследование под родителем.
func (s *FolderService) UpdateFile(ctx context.Context, id string, parentID *string, doc *domain.Element, user domain.UserInfo) (*domain.Element, error) {
	existing, err := s.store.FindOne(ctx, domain.ElementQuery{
		ID:         id,
		Kind:       domain.KindOf(domain.FileKind),
		Visibility: domain.VisibilityInherited,
		Trash:      domain.TrashExclude,
	}, user)
	if err != nil {
		return nil, err
	}
	if !canWrite(existing, user) {
		return nil, fmt.Errorf("%w: no write access to %s", domain.ErrForbidden, id)
	}

	if doc.Name != "" {
		existing.Name = doc.Name
	}
	if doc.BlobID != "" {
		existing.BlobID = doc.BlobID
	}
	if doc.Metadata != nil {
		existing.Metadata = doc.Metadata
	}
	if doc.Thumbnails != nil {
		existing.Thumbnails = doc.Thumbnails
	}
	existing.UpdatedAt = time.Now().UTC()

	if parentID != nil {
		parent, err := s.visibleFolder(ctx, *parentID, user)
		if err != nil {
			return nil, err
		}
		pid := parent.ID
		existing.ParentID = &pid
		if err := mergeShared(parent, existing); err != nil {
			return nil, err
		}
	}
	if err := s.store.UpdateFile(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to update file %s: %w", id, err)
	}
	return existing, nil
}

func (s *FolderService) Info(ctx context.Context, id string, user domain.UserInfo) (*domain.Element, error) {
	return s.store.FindOne(ctx, domain.ElementQuery{
		ID:         id,
		Visibility: domain.VisibilityInherited,
		Trash:      domain.TrashExclude,
	}, user)
}

func (s *FolderService) List(ctx context.Context, parentID string, user domain.UserInfo) ([]domain.Element, error) {
	if _, err := s.visibleFolder(ctx, parentID, user); err != nil {
		return nil, err
	}
	return s.store.FindByQuery(ctx, domain.ElementQuery{
		ParentID:   &parentID,
		Visibility: domain.VisibilityInherited,
		Trash:      domain.TrashExclude,
		Sort:       []domain.SortField{{Field: "name", Order: domain.SortAsc}},
	}, user)
}

// ListRecursively возвращает видимые пользователю корневые папки (либо
// указанную папку) вместе со всеми потомками и их путями.
func (s *FolderService) ListRecursively(ctx context.Context, fromID *string, user domain.UserInfo) ([]domain.Element, error) {
	q := domain.ElementQuery{
		Visibility:   domain.VisibilityShared,
		Trash:        domain.TrashExclude,
		Hierarchical: true,
	}
	if fromID != nil {
		q.ID = *fromID
	} else {
		empty := ""
		q.ParentID = &empty
	}
	return s.store.ListRecursive(ctx, q, user)
}

func (s *FolderService) Rename(ctx context.Context, id string, newName string, user domain.UserInfo) error {
	if newName == "" {
		return fmt.Errorf("%w: name is required", domain.ErrInvalid)
	}
	el, err := s.Info(ctx, id, user)
	if err != nil {
		return err
	}
	if !canWrite(el, user) {
		return fmt.Errorf("%w: no write access to %s", domain.ErrForbidden, id)
	}
	return s.store.Rename(ctx, id, newName)
}

// Move переносит элемент в другую папку. Перед переносом прямые гранты
// элемента пересчитываются в его inherited_shares по текущему родителю,
// после чего цепочка наследования фиксируется: новый родитель на неё
// не влияет.
func (s *FolderService) Move(ctx context.Context, id string, destFolderID string, user domain.UserInfo) (*domain.Element, error) {
	el, err := s.Info(ctx, id, user)
	if err != nil {
		return nil, err
	}
	if !canManage(el, user) {
		return nil, fmt.Errorf("%w: no manage access to %s", domain.ErrForbidden, id)
	}
	dest, err := s.visibleFolder(ctx, destFolderID, user)
	if err != nil {
		return nil, err
	}
	if dest.ID == el.ID {
		return nil, fmt.Errorf("%w: cannot move %s into itself", domain.ErrInvalid, id)
	}
	if el.IsFolder() {
		subtree, err := s.subtreeIDs(ctx, el, user)
		if err != nil {
			return nil, err
		}
		for _, sid := range subtree {
			if sid == dest.ID.String() {
				return nil, fmt.Errorf("%w: cannot move %s into its own subtree", domain.ErrInvalid, id)
			}
		}
	}

	if err := s.UpdateShared(ctx, id, user); err != nil {
		return nil, err
	}
	destID := dest.ID.String()
	if err := s.store.SetParent(ctx, id, &destID); err != nil {
		return nil, fmt.Errorf("failed to move %s: %w", id, err)
	}
	log.Printf("[FolderService] Moved %s into %s", id, destFolderID)
	return s.store.GetByID(ctx, id)
}

// MoveAll переносит набор элементов. Ошибка одной ветки не прерывает
// остальные: возвращаются id успешно перенесённых вместе с первой
// ошибкой, чтобы вызывающий видел частичный результат.
func (s *FolderService) MoveAll(ctx context.Context, ids []string, destFolderID string, user domain.UserInfo) ([]string, error) {
	var g errgroup.Group
	g.SetLimit(batchConcurrency)

	moved := make([]bool, len(ids))
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			if _, err := s.Move(ctx, id, destFolderID, user); err != nil {
				return fmt.Errorf("failed to move %s: %w", id, err)
			}
			moved[i] = true
			return nil
		})
	}
	err := g.Wait()

	succeeded := make([]string, 0, len(ids))
	for i, id := range ids {
		if moved[i] {
			succeeded = append(succeeded, id)
		}
	}
	return succeeded, err
}

// copyFile создаёт независимую копию файла: блоб и превью дублируются
// в хранилище, копия получает свежий id и нового владельца.
func (s *FolderService) copyFile(ctx context.Context, src *domain.Element, destParent *domain.Element, user domain.UserInfo) (*domain.Element, error) {
	copied := *src
	copied.ID = uuid.New()
	copied.OwnerID = user.ID
	copied.OwnerName = user.Name
	now := time.Now().UTC()
	copied.CreatedAt = now
	copied.UpdatedAt = now
	copied.Deleted = false
	copied.ParentID = nil
	copied.Parents = nil
	if destParent != nil {
		pid := destParent.ID
		copied.ParentID = &pid
	}

	if src.BlobID != "" {
		newBlob, err := s.blobs.Copy(ctx, src.BlobID)
		if err != nil {
			return nil, fmt.Errorf("failed to copy blob of %s: %w", src.ID, err)
		}
		copied.BlobID = newBlob
	}
	if len(src.Thumbnails) > 0 {
		copied.Thumbnails = make(domain.Thumbnails, len(src.Thumbnails))
		for size, blobID := range src.Thumbnails {
			newBlob, err := s.blobs.Copy(ctx, blobID)
			if err != nil {
				return nil, fmt.Errorf("failed to copy thumbnail of %s: %w", src.ID, err)
			}
			copied.Thumbnails[size] = newBlob
		}
	}

	if destParent != nil {
		if err := mergeShared(destParent, &copied); err != nil {
			return nil, err
		}
	} else {
		copied.InheritedShares = copied.Shared.Merge(nil)
	}
	return &copied, nil
}

// Copy копирует файл или папку (с поддеревом) в целевую папку либо в корень.
// Возвращает все созданные элементы.
func (s *FolderService) Copy(ctx context.Context, id string, destFolderID *string, user domain.UserInfo) ([]domain.Element, error) {
	src, err := s.Info(ctx, id, user)
	if err != nil {
		return nil, err
	}

	var destParent *domain.Element
	if destFolderID != nil {
		destParent, err = s.visibleFolder(ctx, *destFolderID, user)
		if err != nil {
			return nil, err
		}
	}

	if src.IsFile() {
		copied, err := s.copyFile(ctx, src, destParent, user)
		if err != nil {
			return nil, err
		}
		if err := s.store.Insert(ctx, copied); err != nil {
			return nil, fmt.Errorf("failed to insert copy of %s: %w", id, err)
		}
		return []domain.Element{*copied}, nil
	}

	rows, err := s.store.ListRecursive(ctx, domain.ElementQuery{
		ID:           id,
		Visibility:   domain.VisibilityInherited,
		Trash:        domain.TrashExclude,
		Hierarchical: true,
	}, user)
	if err != nil {
		return nil, err
	}
	return s.copyTree(ctx, src, rows, destParent, user)
}

// copyTree копирует поддерево по уровням BFS: родители вставляются раньше
// детей, чтобы parent_id копий всегда ссылался на уже созданную строку.
func (s *FolderService) copyTree(ctx context.Context, root *domain.Element, rows []domain.Element, destParent *domain.Element, user domain.UserInfo) ([]domain.Element, error) {
	children := make(map[string][]*domain.Element)
	for i := range rows {
		if rows[i].ID == root.ID {
			continue
		}
		if rows[i].ParentID == nil {
			continue
		}
		pid := rows[i].ParentID.String()
		children[pid] = append(children[pid], &rows[i])
	}

	// oldID -> созданная копия
	copies := make(map[string]*domain.Element, len(rows))
	result := make([]domain.Element, 0, len(rows))

	level := []*domain.Element{root}
	for len(level) > 0 {
		batch := make([]*domain.Element, 0, len(level))
		for _, src := range level {
			var parent *domain.Element
			if src.ID == root.ID {
				parent = destParent
			} else {
				parent = copies[src.ParentID.String()]
			}

			var copied *domain.Element
			var err error
			if src.IsFile() {
				copied, err = s.copyFile(ctx, src, parent, user)
			} else {
				copied, err = s.copyFolderRow(src, parent, user)
			}
			if err != nil {
				return nil, err
			}
			copies[src.ID.String()] = copied
			batch = append(batch, copied)
		}
		if err := s.store.InsertAll(ctx, batch); err != nil {
			return nil, fmt.Errorf("failed to insert copied level: %w", err)
		}
		for _, copied := range batch {
			result = append(result, *copied)
		}

		next := make([]*domain.Element, 0)
		for _, src := range level {
			next = append(next, children[src.ID.String()]...)
		}
		level = next
	}

	log.Printf("[FolderService] Copied subtree of %s: %d elements", root.ID, len(result))
	return result, nil
}

func (s *FolderService) copyFolderRow(src *domain.Element, destParent *domain.Element, user domain.UserInfo) (*domain.Element, error) {
	copied := *src
	copied.ID = uuid.New()
	copied.OwnerID = user.ID
	copied.OwnerName = user.Name
	now := time.Now().UTC()
	copied.CreatedAt = now
	copied.UpdatedAt = now
	copied.Deleted = false
	copied.ParentID = nil
	copied.Parents = nil
	if destParent != nil {
		pid := destParent.ID
		copied.ParentID = &pid
		if err := mergeShared(destParent, &copied); err != nil {
			return nil, err
		}
	} else {
		copied.InheritedShares = copied.Shared.Merge(nil)
	}
	return &copied, nil
}

// CopyAll копирует набор элементов и возвращает все созданные строки.
// Ветки доводятся до конца независимо: отмена на первой ошибке оставила
// бы соседнюю копию полусозданной.
func (s *FolderService) CopyAll(ctx context.Context, ids []string, destFolderID *string, user domain.UserInfo) ([]domain.Element, error) {
	var g errgroup.Group
	g.SetLimit(batchConcurrency)

	parts := make([][]domain.Element, len(ids))
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			copied, err := s.Copy(ctx, id, destFolderID, user)
			if err != nil {
				return fmt.Errorf("failed to copy %s: %w", id, err)
			}
			parts[i] = copied
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := make([]domain.Element, 0, len(ids))
	for _, part := range parts {
		result = append(result, part...)
	}
	return result, nil
}

// UpdateShared пересчитывает inherited_shares элемента по его текущему
// родителю и распространяет результат на всё поддерево (для папок).
func (s *FolderService) UpdateShared(ctx context.Context, id string, user domain.UserInfo) error {
	el, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if el.ParentID == nil {
		el.InheritedShares = el.Shared.Merge(nil)
	} else {
		parent, err := s.store.GetByID(ctx, el.ParentID.String())
		if err != nil {
			return fmt.Errorf("failed to load parent of %s: %w", id, err)
		}
		if err := mergeShared(parent, el); err != nil {
			return err
		}
	}

	if el.IsFile() {
		return s.store.UpdateInheritedShares(ctx, []domain.InheritedShareUpdate{
			{ID: el.ID, InheritedShares: el.InheritedShares},
		})
	}

	rows, err := s.store.ListRecursive(ctx, domain.ElementQuery{
		ID:           id,
		Visibility:   domain.VisibilityAll,
		Hierarchical: true,
	}, user)
	if err != nil {
		return fmt.Errorf("failed to load subtree of %s: %w", id, err)
	}

	subtree := make([]*domain.Element, 0, len(rows))
	for i := range rows {
		if rows[i].ID == el.ID {
			// Корень берём с уже пересчитанными inherited_shares
			subtree = append(subtree, el)
			continue
		}
		subtree = append(subtree, &rows[i])
	}

	computer := newInheritShareComputer(el, subtree)
	if err := computer.compute(); err != nil {
		return fmt.Errorf("failed to compute inherited shares for %s: %w", id, err)
	}
	if err := s.store.UpdateInheritedShares(ctx, computer.updates()); err != nil {
		return fmt.Errorf("failed to persist inherited shares for %s: %w", id, err)
	}
	log.Printf("[FolderService] Recomputed inherited shares for subtree of %s (%d rows)", id, len(subtree))
	return nil
}

// Share изменяет прямые гранты элемента и распространяет наследование.
// Возвращает принципалов итогового списка прямых грантов.
func (s *FolderService) Share(ctx context.Context, id string, op domain.ShareOperation) ([]string, error) {
	el, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManage(el, op.User) {
		return nil, fmt.Errorf("%w: no manage access to %s", domain.ErrForbidden, id)
	}

	newShared := op.Apply(el.Shared)
	if err := s.store.SetShared(ctx, id, newShared); err != nil {
		return nil, fmt.Errorf("failed to update shares of %s: %w", id, err)
	}
	if err := s.UpdateShared(ctx, id, op.User); err != nil {
		return nil, err
	}
	return newShared.Principals(), nil
}

// ShareAll применяет одну операцию к набору элементов; возвращает
// объединённый список затронутых принципалов.
func (s *FolderService) ShareAll(ctx context.Context, ids []string, op domain.ShareOperation) ([]string, error) {
	seen := make(map[string]struct{})
	principals := make([]string, 0)
	for _, id := range ids {
		part, err := s.Share(ctx, id, op)
		if err != nil {
			return nil, fmt.Errorf("failed to share %s: %w", id, err)
		}
		for _, p := range part {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			principals = append(principals, p)
		}
	}
	return principals, nil
}

// subtreeIDs возвращает id элемента и всех его потомков (включая уже
// удалённые строки — для идемпотентности корзины).
func (s *FolderService) subtreeIDs(ctx context.Context, el *domain.Element, user domain.UserInfo) ([]string, error) {
	if el.IsFile() {
		return []string{el.ID.String()}, nil
	}
	rows, err := s.store.ListRecursive(ctx, domain.ElementQuery{
		ID:           el.ID.String(),
		Visibility:   domain.VisibilityAll,
		Trash:        domain.TrashAny,
		Hierarchical: true,
	}, user)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for i := range rows {
		ids = append(ids, rows[i].ID.String())
	}
	return ids, nil
}

func (s *FolderService) Trash(ctx context.Context, id string, user domain.UserInfo) ([]string, error) {
	el, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManage(el, user) {
		return nil, fmt.Errorf("%w: no manage access to %s", domain.ErrForbidden, id)
	}
	ids, err := s.subtreeIDs(ctx, el, user)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetDeleted(ctx, ids, true); err != nil {
		return nil, fmt.Errorf("failed to trash %s: %w", id, err)
	}
	log.Printf("[FolderService] Trashed %s (%d rows)", id, len(ids))
	return ids, nil
}

func (s *FolderService) Restore(ctx context.Context, id string, user domain.UserInfo) ([]string, error) {
	el, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManage(el, user) {
		return nil, fmt.Errorf("%w: no manage access to %s", domain.ErrForbidden, id)
	}
	ids, err := s.subtreeIDs(ctx, el, user)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetDeleted(ctx, ids, false); err != nil {
		return nil, fmt.Errorf("failed to restore %s: %w", id, err)
	}
	return ids, nil
}

// Delete необратимо удаляет элемент с поддеревом: строки и блобы
// удаляются параллельно. Возвращает удалённые элементы.
func (s *FolderService) Delete(ctx context.Context, id string, user domain.UserInfo) ([]domain.Element, error) {
	el, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManage(el, user) {
		return nil, fmt.Errorf("%w: no manage access to %s", domain.ErrForbidden, id)
	}

	var rows []domain.Element
	if el.IsFile() {
		rows = []domain.Element{*el}
	} else {
		rows, err = s.store.ListRecursive(ctx, domain.ElementQuery{
			ID:           id,
			Visibility:   domain.VisibilityAll,
			Trash:        domain.TrashAny,
			Hierarchical: true,
		}, user)
		if err != nil {
			return nil, err
		}
	}

	ids := make([]string, 0, len(rows))
	blobSeen := make(map[string]struct{})
	blobIDs := make([]string, 0, len(rows))
	for i := range rows {
		ids = append(ids, rows[i].ID.String())
		for _, blobID := range rows[i].BlobIDs() {
			if _, ok := blobSeen[blobID]; ok {
				continue
			}
			blobSeen[blobID] = struct{}{}
			blobIDs = append(blobIDs, blobID)
		}
	}

	// Обе ветки доводятся до конца: отмена одной при ошибке другой
	// оставила бы удаление полупримененным
	var g errgroup.Group
	g.Go(func() error {
		if err := s.store.DeleteByIDs(ctx, ids); err != nil {
			return fmt.Errorf("failed to delete rows of %s: %w", id, err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.blobs.RemoveMany(ctx, blobIDs); err != nil {
			return fmt.Errorf("failed to delete blobs of %s: %w", id, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Printf("[FolderService] Deleted %s: %d rows, %d blobs", id, len(ids), len(blobIDs))
	return rows, nil
}

// Типы, которые браузер может отобразить сам; остальные отдаются
// как attachment.
func inlineable(contentType string) bool {
	if strings.HasPrefix(contentType, "image/") {
		return true
	}
	switch contentType {
	case "application/pdf", "text/plain":
		return true
	}
	return false
}

// DownloadFile отдаёт содержимое файла либо архив папки. Для файлов
// поддерживается условное кэширование по ETag (id блоба).
func (s *FolderService) DownloadFile(ctx context.Context, id string, user domain.UserInfo, w http.ResponseWriter, r *http.Request) error {
	el, err := s.Info(ctx, id, user)
	if err != nil {
		return err
	}
	if el.IsFolder() {
		return s.DownloadFiles(ctx, []string{id}, user, w, r)
	}

	etag := `"` + el.BlobID + `"`
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return nil
	}

	obj, err := s.blobs.GetObject(ctx, el.BlobID)
	if err != nil {
		return fmt.Errorf("failed to open blob of %s: %w", id, err)
	}
	defer obj.Close()

	contentType := obj.ContentType()
	if contentType == "" && el.Metadata != nil {
		contentType = el.Metadata.ContentType
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	disposition := "attachment"
	if inlineable(contentType) {
		disposition = "inline"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`%s; filename="%s"`, disposition, el.Name))
	w.Header().Set("ETag", etag)
	if obj.ContentLength() > 0 {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", obj.ContentLength()))
	}

	if _, err := io.Copy(w, obj); err != nil {
		return fmt.Errorf("failed to stream blob of %s: %w", id, err)
	}
	return nil
}

// DownloadFiles собирает zip-архив из набора элементов (файлы и папки
// с поддеревьями) и отдаёт его в ответ.
func (s *FolderService) DownloadFiles(ctx context.Context, ids []string, user domain.UserInfo, w http.ResponseWriter, r *http.Request) error {
	rows := make([]domain.Element, 0, len(ids))
	archiveName := "archive"
	for _, id := range ids {
		el, err := s.Info(ctx, id, user)
		if err != nil {
			return err
		}
		if len(ids) == 1 {
			archiveName = el.Name
		}
		if el.IsFile() {
			rows = append(rows, *el)
			continue
		}
		subtree, err := s.store.ListRecursive(ctx, domain.ElementQuery{
			ID:           id,
			Visibility:   domain.VisibilityInherited,
			Trash:        domain.TrashExclude,
			Hierarchical: true,
		}, user)
		if err != nil {
			return err
		}
		rows = append(rows, subtree...)
	}

	builder := newArchiveBuilder(s.blobs)
	return builder.Stream(ctx, archiveName, rows, w)
}
