package service

import (
	"context"
	"fmt"
	"log"

	"nestdrive/internal/domain"
)

// QuotaFolderManager — декоратор над FolderManager: операции, меняющие
// занятое место (загрузка, копирование, удаление), проверяют квоту
// пользователя до выполнения и сдвигают счётчик после. Остальные операции
// делегируются без изменений.
type QuotaFolderManager struct {
	FolderManager

	store           ElementStore
	quotas          QuotaService
	cache           SessionCache
	notifier        Notifier
	notifyThreshold int
}

func NewQuotaFolderManager(inner FolderManager, store ElementStore, quotas QuotaService, cache SessionCache, notifier Notifier, notifyThreshold int) *QuotaFolderManager {
	return &QuotaFolderManager{
		FolderManager:   inner,
		store:           store,
		quotas:          quotas,
		cache:           cache,
		notifier:        notifier,
		notifyThreshold: notifyThreshold,
	}
}

// freeSpace возвращает свободное место пользователя: сначала из кэша
// сессии, при промахе — из сервиса квот с прогревом кэша.
func (q *QuotaFolderManager) freeSpace(ctx context.Context, userID string) (int64, error) {
	if q.cache != nil {
		usage, err := q.cache.Get(ctx, userID)
		if err != nil {
			log.Printf("[Quota] Session cache read failed for %s: %v", userID, err)
		} else if usage != nil {
			return usage.Free(), nil
		}
	}

	usage, err := q.quotas.QuotaAndUsage(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve quota for %s: %w", userID, err)
	}
	if q.cache != nil {
		if err := q.cache.Put(ctx, userID, *usage); err != nil {
			log.Printf("[Quota] Session cache write failed for %s: %v", userID, err)
		}
	}
	return usage.Free(), nil
}

func (q *QuotaFolderManager) ensureFreeSpace(ctx context.Context, userID string, required int64) error {
	if required <= 0 {
		return nil
	}
	free, err := q.freeSpace(ctx, userID)
	if err != nil {
		return err
	}
	if required > free {
		return fmt.Errorf("%w: need %d bytes, %d free", domain.ErrQuotaExceeded, required, free)
	}
	return nil
}

// applyDelta сдвигает счётчик занятого места, зеркалирует итог в кэш
// сессии и дёргает уведомление о малом остатке при пересечении порога.
func (q *QuotaFolderManager) applyDelta(ctx context.Context, userID string, delta int64) {
	if delta == 0 {
		return
	}
	_, notify, err := q.quotas.IncrementStorage(ctx, userID, delta, q.notifyThreshold)
	if err != nil {
		log.Printf("[Quota] Failed to shift used space for %s by %d: %v", userID, delta, err)
		return
	}
	if q.cache != nil {
		usage, err := q.quotas.QuotaAndUsage(ctx, userID)
		if err != nil {
			log.Printf("[Quota] Failed to refresh quota for %s: %v", userID, err)
		} else if err := q.cache.Put(ctx, userID, *usage); err != nil {
			log.Printf("[Quota] Session cache write failed for %s: %v", userID, err)
		}
	}
	if notify && q.notifier != nil {
		q.notifier.NotifyLowSpace(ctx, userID)
	}
}

// requiredForCopy считает объём, который займёт копия: размер файла либо
// сумма размеров файлов поддерева.
func (q *QuotaFolderManager) requiredForCopy(ctx context.Context, id string, user domain.UserInfo) (int64, error) {
	el, err := q.store.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if el.IsFile() {
		return el.FileSize(), nil
	}
	rows, err := q.store.ListRecursive(ctx, domain.ElementQuery{
		ID:           id,
		Visibility:   domain.VisibilityInherited,
		Trash:        domain.TrashExclude,
		Hierarchical: true,
	}, user)
	if err != nil {
		return 0, err
	}
	return domain.TotalFileSize(rows), nil
}

func (q *QuotaFolderManager) AddFile(ctx context.Context, parentID *string, doc *domain.Element, user domain.UserInfo) (*domain.Element, error) {
	if err := q.ensureFreeSpace(ctx, user.ID, doc.FileSize()); err != nil {
		return nil, err
	}
	added, err := q.FolderManager.AddFile(ctx, parentID, doc, user)
	if err != nil {
		return nil, err
	}
	q.applyDelta(ctx, user.ID, added.FileSize())
	return added, nil
}

func (q *QuotaFolderManager) UpdateFile(ctx context.Context, id string, parentID *string, doc *domain.Element, user domain.UserInfo) (*domain.Element, error) {
	// Обновление без нового содержимого (переименование, перенос) не
	// меняет занятое место
	if doc.Metadata == nil && doc.BlobID == "" {
		return q.FolderManager.UpdateFile(ctx, id, parentID, doc, user)
	}
	existing, err := q.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// Место и проверяется, и списывается у владельца файла
	delta := doc.FileSize() - existing.FileSize()
	if err := q.ensureFreeSpace(ctx, existing.OwnerID, delta); err != nil {
		return nil, err
	}
	updated, err := q.FolderManager.UpdateFile(ctx, id, parentID, doc, user)
	if err != nil {
		return nil, err
	}
	q.applyDelta(ctx, existing.OwnerID, delta)
	return updated, nil
}

func (q *QuotaFolderManager) Copy(ctx context.Context, id string, destFolderID *string, user domain.UserInfo) ([]domain.Element, error) {
	required, err := q.requiredForCopy(ctx, id, user)
	if err != nil {
		return nil, err
	}
	if err := q.ensureFreeSpace(ctx, user.ID, required); err != nil {
		return nil, err
	}
	copied, err := q.FolderManager.Copy(ctx, id, destFolderID, user)
	if err != nil {
		return nil, err
	}
	q.applyDelta(ctx, user.ID, domain.TotalFileSize(copied))
	return copied, nil
}

// CopyAll проверяет суммарный объём всего набора до первой копии:
// при нехватке места не копируется ничего.
func (q *QuotaFolderManager) CopyAll(ctx context.Context, ids []string, destFolderID *string, user domain.UserInfo) ([]domain.Element, error) {
	var required int64
	for _, id := range ids {
		size, err := q.requiredForCopy(ctx, id, user)
		if err != nil {
			return nil, err
		}
		required += size
	}
	if err := q.ensureFreeSpace(ctx, user.ID, required); err != nil {
		return nil, err
	}
	copied, err := q.FolderManager.CopyAll(ctx, ids, destFolderID, user)
	if err != nil {
		return nil, err
	}
	q.applyDelta(ctx, user.ID, domain.TotalFileSize(copied))
	return copied, nil
}

// Delete возвращает место владельцам удалённых файлов.
func (q *QuotaFolderManager) Delete(ctx context.Context, id string, user domain.UserInfo) ([]domain.Element, error) {
	deleted, err := q.FolderManager.Delete(ctx, id, user)
	if err != nil {
		return nil, err
	}

	// Файлы поддерева могут принадлежать разным владельцам
	byOwner := make(map[string]int64)
	for i := range deleted {
		if deleted[i].IsFile() {
			byOwner[deleted[i].OwnerID] += deleted[i].FileSize()
		}
	}
	for ownerID, size := range byOwner {
		q.applyDelta(ctx, ownerID, -size)
	}
	return deleted, nil
}
