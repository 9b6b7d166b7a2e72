package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nestdrive/internal/domain"
	"nestdrive/internal/service/s3"
)

// fakeStore — потокобезопасное in-memory хранилище элементов, повторяющее
// семантику запросов репозитория.
type fakeStore struct {
	mu       sync.Mutex
	elements map[string]domain.Element
}

func newFakeStore() *fakeStore {
	return &fakeStore{elements: make(map[string]domain.Element)}
}

func grantApplies(shares domain.ShareList, user domain.UserInfo, action string) bool {
	if action != "" {
		return shares.Grants(user, action)
	}
	for _, e := range shares {
		if e.AppliesTo(user) {
			return true
		}
	}
	return false
}

func matchesTrash(el domain.Element, trash domain.TrashFilter) bool {
	switch trash {
	case domain.TrashExclude:
		return !el.Deleted
	case domain.TrashOnly:
		return el.Deleted
	}
	return true
}

func (f *fakeStore) matches(el domain.Element, q domain.ElementQuery, user domain.UserInfo) bool {
	if q.ID != "" && el.ID.String() != q.ID {
		return false
	}
	if len(q.IDs) > 0 {
		found := false
		for _, id := range q.IDs {
			if el.ID.String() == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.Kind != nil && el.Kind != *q.Kind {
		return false
	}
	if q.ParentID != nil {
		if *q.ParentID == "" {
			if el.ParentID != nil {
				return false
			}
		} else if el.ParentID == nil || el.ParentID.String() != *q.ParentID {
			return false
		}
	}
	if !matchesTrash(el, q.Trash) {
		return false
	}
	switch q.Visibility {
	case domain.VisibilityOwner:
		return el.OwnerID == user.ID
	case domain.VisibilityShared:
		return el.OwnerID == user.ID || grantApplies(el.Shared, user, q.Action)
	case domain.VisibilityInherited:
		return el.OwnerID == user.ID || grantApplies(el.InheritedShares, user, q.Action)
	}
	return true
}

func (f *fakeStore) FindByQuery(_ context.Context, q domain.ElementQuery, user domain.UserInfo) ([]domain.Element, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]domain.Element, 0)
	for _, el := range f.elements {
		if f.matches(el, q, user) {
			result = append(result, el)
		}
	}
	return result, nil
}

func (f *fakeStore) FindOne(ctx context.Context, q domain.ElementQuery, user domain.UserInfo) (*domain.Element, error) {
	rows, err := f.FindByQuery(ctx, q, user)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: element", domain.ErrNotFound)
	}
	return &rows[0], nil
}

func (f *fakeStore) GetByID(_ context.Context, id string) (*domain.Element, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	el, ok := f.elements[id]
	if !ok {
		return nil, fmt.Errorf("%w: element %s", domain.ErrNotFound, id)
	}
	return &el, nil
}

func (f *fakeStore) Insert(_ context.Context, element *domain.Element) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.elements[element.ID.String()] = *element
	return nil
}

func (f *fakeStore) InsertAll(ctx context.Context, elements []*domain.Element) error {
	for _, el := range elements {
		if err := f.Insert(ctx, el); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeStore) mutate(id string, fn func(*domain.Element)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	el, ok := f.elements[id]
	if !ok {
		return fmt.Errorf("%w: element %s", domain.ErrNotFound, id)
	}
	fn(&el)
	f.elements[id] = el
	return nil
}

func (f *fakeStore) Rename(_ context.Context, id string, name string) error {
	return f.mutate(id, func(el *domain.Element) { el.Name = name })
}

func (f *fakeStore) SetParent(_ context.Context, id string, parentID *string) error {
	return f.mutate(id, func(el *domain.Element) {
		el.ParentID = nil
		if parentID != nil {
			pid := uuid.MustParse(*parentID)
			el.ParentID = &pid
		}
	})
}

func (f *fakeStore) SetShared(_ context.Context, id string, shared domain.ShareList) error {
	return f.mutate(id, func(el *domain.Element) { el.Shared = shared })
}

func (f *fakeStore) UpdateFile(_ context.Context, element *domain.Element) error {
	return f.mutate(element.ID.String(), func(el *domain.Element) { *el = *element })
}

func (f *fakeStore) UpdateInheritedShares(_ context.Context, updates []domain.InheritedShareUpdate) error {
	for _, u := range updates {
		if err := f.mutate(u.ID.String(), func(el *domain.Element) {
			el.InheritedShares = u.InheritedShares
		}); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeStore) SetDeleted(_ context.Context, ids []string, deleted bool) error {
	for _, id := range ids {
		if err := f.mutate(id, func(el *domain.Element) { el.Deleted = deleted }); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeStore) DeleteByIDs(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.elements, id)
	}
	return nil
}

func (f *fakeStore) ListRecursive(_ context.Context, q domain.ElementQuery, user domain.UserInfo) ([]domain.Element, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rootQuery := q
	rootQuery.Kind = domain.KindOf(domain.FolderKind)

	result := make([]domain.Element, 0)
	type frame struct {
		el      domain.Element
		parents pq.StringArray
	}
	queue := make([]frame, 0)
	for _, el := range f.elements {
		if f.matches(el, rootQuery, user) {
			queue = append(queue, frame{el: el})
		}
	}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		current.el.Parents = current.parents
		result = append(result, current.el)

		childParents := append(append(pq.StringArray{}, current.parents...), current.el.ID.String())
		for _, el := range f.elements {
			if el.ParentID == nil || el.ParentID.String() != current.el.ID.String() {
				continue
			}
			if !matchesTrash(el, q.Trash) {
				continue
			}
			queue = append(queue, frame{el: el, parents: childParents})
		}
	}
	return result, nil
}

// fakeBlobs — in-memory blob-хранилище, записывающее копирования и удаления.
type fakeBlobs struct {
	mu        sync.Mutex
	data      map[string][]byte
	copies    map[string]string // id копии -> id оригинала
	removed   []string
	removeErr error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{
		data:   make(map[string][]byte),
		copies: make(map[string]string),
	}
}

type fakeObject struct {
	io.ReadCloser
	length int64
}

func (o *fakeObject) ContentLength() int64 { return o.length }
func (o *fakeObject) ContentType() string  { return "application/octet-stream" }

func (b *fakeBlobs) Write(_ context.Context, blobID string, data io.Reader) error {
	content, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[blobID] = content
	return nil
}

func (b *fakeBlobs) GetObject(_ context.Context, blobID string) (s3.Object, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	content, ok := b.data[blobID]
	if !ok {
		return nil, fmt.Errorf("blob not found: %s", blobID)
	}
	return &fakeObject{
		ReadCloser: io.NopCloser(bytes.NewReader(content)),
		length:     int64(len(content)),
	}, nil
}

func (b *fakeBlobs) Copy(_ context.Context, blobID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	content, ok := b.data[blobID]
	if !ok {
		return "", fmt.Errorf("blob not found: %s", blobID)
	}
	newID := uuid.New().String()
	b.data[newID] = append([]byte(nil), content...)
	b.copies[newID] = blobID
	return newID, nil
}

func (b *fakeBlobs) Remove(_ context.Context, blobID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.removeErr != nil {
		return b.removeErr
	}
	delete(b.data, blobID)
	b.removed = append(b.removed, blobID)
	return nil
}

func (b *fakeBlobs) RemoveMany(ctx context.Context, blobIDs []string) error {
	for _, id := range blobIDs {
		if err := b.Remove(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (b *fakeBlobs) WriteToFile(ctx context.Context, blobID string, path string) error {
	obj, err := b.GetObject(ctx, blobID)
	if err != nil {
		return err
	}
	defer obj.Close()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	content, err := io.ReadAll(obj)
	if err != nil {
		return err
	}
	return os.WriteFile(path, content, 0o644)
}

func newTestService() (*FolderService, *fakeStore, *fakeBlobs) {
	store := newFakeStore()
	blobs := newFakeBlobs()
	return NewFolderService(store, blobs), store, blobs
}

func mustCreateFolder(t *testing.T, svc *FolderService, parent *domain.Element, name string, user domain.UserInfo, shared domain.ShareList) *domain.Element {
	t.Helper()
	var parentID *string
	if parent != nil {
		id := parent.ID.String()
		parentID = &id
	}
	created, err := svc.CreateFolder(context.Background(), parentID, &domain.Element{Name: name, Shared: shared}, user)
	require.NoError(t, err)
	return created
}

func mustAddFile(t *testing.T, svc *FolderService, blobs *fakeBlobs, parent *domain.Element, name string, size int64, user domain.UserInfo) *domain.Element {
	t.Helper()
	blobID := uuid.New().String()
	require.NoError(t, blobs.Write(context.Background(), blobID, bytes.NewReader(make([]byte, size))))

	var parentID *string
	if parent != nil {
		id := parent.ID.String()
		parentID = &id
	}
	doc := &domain.Element{
		Name:     name,
		BlobID:   blobID,
		Metadata: &domain.Metadata{ContentType: "application/octet-stream", Size: size},
	}
	added, err := svc.AddFile(context.Background(), parentID, doc, user)
	require.NoError(t, err)
	return added
}

var (
	owner  = domain.UserInfo{ID: "owner", Name: "Owner"}
	reader = domain.UserInfo{ID: "reader", Name: "Reader"}
)

func TestCreateFolderInheritsParentShares(t *testing.T) {
	svc, _, _ := newTestService()

	parent := mustCreateFolder(t, svc, nil, "parent", owner,
		domain.ShareList{{UserID: "reader", Actions: []string{"read"}}})
	child := mustCreateFolder(t, svc, parent, "child", owner,
		domain.ShareList{{UserID: "writer", Actions: []string{"write"}}})

	// Ребёнок видит и собственные гранты, и гранты родителя
	assert.True(t, child.InheritedShares.Grants(domain.UserInfo{ID: "reader"}, "read"))
	assert.True(t, child.InheritedShares.Grants(domain.UserInfo{ID: "writer"}, "write"))
	// У родителя грантов ребёнка нет
	assert.False(t, parent.InheritedShares.Grants(domain.UserInfo{ID: "writer"}, "write"))
}

func TestCreateFolderUnderInvisibleParent(t *testing.T) {
	svc, _, _ := newTestService()

	parent := mustCreateFolder(t, svc, nil, "private", owner, nil)
	parentID := parent.ID.String()

	_, err := svc.CreateFolder(context.Background(), &parentID, &domain.Element{Name: "intruder"}, reader)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSharePropagatesToSubtree(t *testing.T) {
	svc, store, blobs := newTestService()

	root := mustCreateFolder(t, svc, nil, "root", owner, nil)
	mid := mustCreateFolder(t, svc, root, "mid", owner, nil)
	leaf := mustAddFile(t, svc, blobs, mid, "doc.txt", 10, owner)

	_, err := svc.Share(context.Background(), root.ID.String(),
		domain.AddShareUser(owner, "reader", []string{"read"}))
	require.NoError(t, err)

	// Грант дошёл до всех уровней поддерева
	for _, id := range []string{root.ID.String(), mid.ID.String(), leaf.ID.String()} {
		el, err := store.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.True(t, el.InheritedShares.Grants(reader, "read"), "element %s", el.Name)
	}
}

func TestShareWithGroupGrantsMembersAccess(t *testing.T) {
	svc, _, blobs := newTestService()

	root := mustCreateFolder(t, svc, nil, "root", owner, nil)
	doc := mustAddFile(t, svc, blobs, root, "doc.txt", 10, owner)

	_, err := svc.Share(context.Background(), root.ID.String(),
		domain.AddShareGroup(owner, "team", []string{"read"}))
	require.NoError(t, err)

	member := domain.UserInfo{ID: "member", GroupIDs: []string{"team"}}
	el, err := svc.Info(context.Background(), doc.ID.String(), member)
	require.NoError(t, err)
	assert.True(t, el.InheritedShares.Grants(member, "read"))

	// Пользователь вне группы файла не видит
	_, err = svc.Info(context.Background(), doc.ID.String(), domain.UserInfo{ID: "outsider"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestShareRequiresManage(t *testing.T) {
	svc, _, _ := newTestService()

	root := mustCreateFolder(t, svc, nil, "root", owner, nil)

	// Посторонний не может раздавать доступ
	_, err := svc.Share(context.Background(), root.ID.String(),
		domain.AddShareUser(reader, "accomplice", []string{"read"}))
	assert.ErrorIs(t, err, domain.ErrForbidden)

	// После выдачи manage — может
	_, err = svc.Share(context.Background(), root.ID.String(),
		domain.AddShareUser(owner, "reader", []string{"read", "manage"}))
	require.NoError(t, err)
	_, err = svc.Share(context.Background(), root.ID.String(),
		domain.AddShareUser(reader, "friend", []string{"read"}))
	assert.NoError(t, err)
}

func TestShareRemoveRevokesFromSubtree(t *testing.T) {
	svc, store, _ := newTestService()

	root := mustCreateFolder(t, svc, nil, "root", owner, nil)
	child := mustCreateFolder(t, svc, root, "child", owner, nil)

	_, err := svc.Share(context.Background(), root.ID.String(),
		domain.AddShareUser(owner, "reader", []string{"read"}))
	require.NoError(t, err)

	_, err = svc.Share(context.Background(), root.ID.String(),
		domain.RemoveShareUser(owner, "reader", []string{"read"}))
	require.NoError(t, err)

	el, err := store.GetByID(context.Background(), child.ID.String())
	require.NoError(t, err)
	assert.False(t, el.InheritedShares.Grants(reader, "read"))
}

func TestMoveFreezesInheritance(t *testing.T) {
	svc, store, _ := newTestService()

	source := mustCreateFolder(t, svc, nil, "source", owner,
		domain.ShareList{{UserID: "from-source", Actions: []string{"read"}}})
	dest := mustCreateFolder(t, svc, nil, "dest", owner,
		domain.ShareList{{UserID: "from-dest", Actions: []string{"read"}}})
	moved := mustCreateFolder(t, svc, source, "moved", owner, nil)

	_, err := svc.Move(context.Background(), moved.ID.String(), dest.ID.String(), owner)
	require.NoError(t, err)

	el, err := store.GetByID(context.Background(), moved.ID.String())
	require.NoError(t, err)
	require.NotNil(t, el.ParentID)
	assert.Equal(t, dest.ID, *el.ParentID)

	// Наследование зафиксировано на момент переноса: гранты старого
	// родителя сохраняются, гранты нового не появляются
	assert.True(t, el.InheritedShares.Grants(domain.UserInfo{ID: "from-source"}, "read"))
	assert.False(t, el.InheritedShares.Grants(domain.UserInfo{ID: "from-dest"}, "read"))
}

func TestMoveIntoItselfRejected(t *testing.T) {
	svc, _, _ := newTestService()
	root := mustCreateFolder(t, svc, nil, "root", owner, nil)

	_, err := svc.Move(context.Background(), root.ID.String(), root.ID.String(), owner)
	assert.ErrorIs(t, err, domain.ErrInvalid)
}

func TestMoveIntoOwnSubtreeRejected(t *testing.T) {
	svc, _, _ := newTestService()
	root := mustCreateFolder(t, svc, nil, "root", owner, nil)
	child := mustCreateFolder(t, svc, root, "child", owner, nil)

	_, err := svc.Move(context.Background(), root.ID.String(), child.ID.String(), owner)
	assert.ErrorIs(t, err, domain.ErrInvalid)
}

func TestMoveAllReportsSucceededAndFirstError(t *testing.T) {
	svc, store, blobs := newTestService()

	dest := mustCreateFolder(t, svc, nil, "dest", owner, nil)
	a := mustAddFile(t, svc, blobs, nil, "a.txt", 1, owner)
	foreign := mustAddFile(t, svc, blobs, nil, "b.txt", 1, reader)

	moved, err := svc.MoveAll(context.Background(),
		[]string{a.ID.String(), foreign.ID.String()}, dest.ID.String(), owner)

	// Частичный результат: свой файл перенесён, ошибка по чужому наружу
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, []string{a.ID.String()}, moved)

	el, err := store.GetByID(context.Background(), a.ID.String())
	require.NoError(t, err)
	require.NotNil(t, el.ParentID)
	assert.Equal(t, dest.ID, *el.ParentID)
}

func TestMoveAllFullSuccess(t *testing.T) {
	svc, _, blobs := newTestService()

	dest := mustCreateFolder(t, svc, nil, "dest", owner, nil)
	a := mustAddFile(t, svc, blobs, nil, "a.txt", 1, owner)
	b := mustAddFile(t, svc, blobs, nil, "b.txt", 1, owner)

	moved, err := svc.MoveAll(context.Background(),
		[]string{a.ID.String(), b.ID.String()}, dest.ID.String(), owner)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID.String(), b.ID.String()}, moved)
}

func TestCopyFileNeverAliasesBlobs(t *testing.T) {
	svc, _, blobs := newTestService()

	src := mustAddFile(t, svc, blobs, nil, "doc.txt", 42, owner)

	copied, err := svc.Copy(context.Background(), src.ID.String(), nil, owner)
	require.NoError(t, err)
	require.Len(t, copied, 1)

	assert.NotEqual(t, src.ID, copied[0].ID)
	assert.NotEqual(t, src.BlobID, copied[0].BlobID)
	// Содержимое продублировано на стороне хранилища
	assert.Equal(t, src.BlobID, blobs.copies[copied[0].BlobID])
}

func TestCopyFolderSubtree(t *testing.T) {
	svc, store, blobs := newTestService()

	root := mustCreateFolder(t, svc, nil, "root", owner, nil)
	sub := mustCreateFolder(t, svc, root, "sub", owner, nil)
	doc := mustAddFile(t, svc, blobs, sub, "doc.txt", 5, owner)

	dest := mustCreateFolder(t, svc, nil, "dest", owner,
		domain.ShareList{{UserID: "dest-reader", Actions: []string{"read"}}})
	destID := dest.ID.String()

	copied, err := svc.Copy(context.Background(), root.ID.String(), &destID, owner)
	require.NoError(t, err)
	require.Len(t, copied, 3)

	byName := make(map[string]domain.Element)
	for _, el := range copied {
		byName[el.Name] = el
		assert.NotEqual(t, root.ID, el.ID)
		assert.NotEqual(t, sub.ID, el.ID)
		assert.NotEqual(t, doc.ID, el.ID)
	}

	// Структура повторена: root -> sub -> doc.txt
	require.NotNil(t, byName["root"].ParentID)
	assert.Equal(t, dest.ID, *byName["root"].ParentID)
	require.NotNil(t, byName["sub"].ParentID)
	assert.Equal(t, byName["root"].ID, *byName["sub"].ParentID)
	require.NotNil(t, byName["doc.txt"].ParentID)
	assert.Equal(t, byName["sub"].ID, *byName["doc.txt"].ParentID)

	// Копии наследуют гранты целевой папки
	assert.True(t, byName["doc.txt"].InheritedShares.Grants(domain.UserInfo{ID: "dest-reader"}, "read"))

	// Блоб файла продублирован, не разделён
	assert.NotEqual(t, doc.BlobID, byName["doc.txt"].BlobID)

	// Оригинал не пострадал
	original, err := store.GetByID(context.Background(), doc.ID.String())
	require.NoError(t, err)
	assert.Equal(t, doc.BlobID, original.BlobID)
}

func TestTrashAndRestoreSubtree(t *testing.T) {
	svc, store, blobs := newTestService()

	root := mustCreateFolder(t, svc, nil, "root", owner, nil)
	sub := mustCreateFolder(t, svc, root, "sub", owner, nil)
	doc := mustAddFile(t, svc, blobs, sub, "doc.txt", 5, owner)

	trashed, err := svc.Trash(context.Background(), root.ID.String(), owner)
	require.NoError(t, err)
	assert.Len(t, trashed, 3)

	// Спрятанное поддерево не видно обычным выборкам
	_, err = svc.Info(context.Background(), doc.ID.String(), owner)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Повторное помещение в корзину идемпотентно
	trashedAgain, err := svc.Trash(context.Background(), root.ID.String(), owner)
	require.NoError(t, err)
	assert.Len(t, trashedAgain, 3)

	restored, err := svc.Restore(context.Background(), root.ID.String(), owner)
	require.NoError(t, err)
	assert.Len(t, restored, 3)

	el, err := store.GetByID(context.Background(), doc.ID.String())
	require.NoError(t, err)
	assert.False(t, el.Deleted)
}

func TestDeleteRemovesRowsAndBlobs(t *testing.T) {
	svc, store, blobs := newTestService()

	root := mustCreateFolder(t, svc, nil, "root", owner, nil)
	doc := mustAddFile(t, svc, blobs, root, "doc.txt", 5, owner)

	deleted, err := svc.Delete(context.Background(), root.ID.String(), owner)
	require.NoError(t, err)
	require.Len(t, deleted, 2)

	// Строки удалены
	_, err = store.GetByID(context.Background(), root.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.GetByID(context.Background(), doc.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Блоб удалён из хранилища
	assert.Contains(t, blobs.removed, doc.BlobID)

	// Удаление возвращает полные строки: размер доступен для учёта квоты
	assert.Equal(t, int64(5), domain.TotalFileSize(deleted))
}

func TestDeleteFinishesRowsWhenBlobRemovalFails(t *testing.T) {
	svc, store, blobs := newTestService()

	root := mustCreateFolder(t, svc, nil, "root", owner, nil)
	doc := mustAddFile(t, svc, blobs, root, "doc.txt", 5, owner)

	blobs.removeErr = fmt.Errorf("storage unavailable")

	_, err := svc.Delete(context.Background(), root.ID.String(), owner)
	require.Error(t, err)

	// Ошибка хранилища блобов не отменяет удаление строк: обе ветки
	// доводятся до конца, наружу уходит первая ошибка
	_, err = store.GetByID(context.Background(), root.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.GetByID(context.Background(), doc.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteAlsoCoversTrashedRows(t *testing.T) {
	svc, store, blobs := newTestService()

	root := mustCreateFolder(t, svc, nil, "root", owner, nil)
	doc := mustAddFile(t, svc, blobs, root, "doc.txt", 5, owner)

	_, err := svc.Trash(context.Background(), doc.ID.String(), owner)
	require.NoError(t, err)

	deleted, err := svc.Delete(context.Background(), root.ID.String(), owner)
	require.NoError(t, err)
	assert.Len(t, deleted, 2)

	_, err = store.GetByID(context.Background(), doc.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRenameRequiresWrite(t *testing.T) {
	svc, store, blobs := newTestService()

	doc := mustAddFile(t, svc, blobs, nil, "doc.txt", 5, owner)

	err := svc.Rename(context.Background(), doc.ID.String(), "hacked.txt", reader)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, svc.Rename(context.Background(), doc.ID.String(), "renamed.txt", owner))
	el, err := store.GetByID(context.Background(), doc.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "renamed.txt", el.Name)
}

func TestListReturnsVisibleChildren(t *testing.T) {
	svc, _, blobs := newTestService()

	root := mustCreateFolder(t, svc, nil, "root", owner, nil)
	mustAddFile(t, svc, blobs, root, "a.txt", 1, owner)
	mustAddFile(t, svc, blobs, root, "b.txt", 1, owner)

	children, err := svc.List(context.Background(), root.ID.String(), owner)
	require.NoError(t, err)
	assert.Len(t, children, 2)

	// Чужой пользователь не видит ни папки, ни содержимого
	_, err = svc.List(context.Background(), root.ID.String(), reader)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateFileReplacesContent(t *testing.T) {
	svc, store, blobs := newTestService()

	doc := mustAddFile(t, svc, blobs, nil, "doc.txt", 5, owner)

	newBlob := uuid.New().String()
	require.NoError(t, blobs.Write(context.Background(), newBlob, bytes.NewReader(make([]byte, 9))))

	updated, err := svc.UpdateFile(context.Background(), doc.ID.String(), nil, &domain.Element{
		BlobID:   newBlob,
		Metadata: &domain.Metadata{ContentType: "text/plain", Size: 9},
	}, owner)
	require.NoError(t, err)
	assert.Equal(t, newBlob, updated.BlobID)
	assert.Equal(t, int64(9), updated.FileSize())

	el, err := store.GetByID(context.Background(), doc.ID.String())
	require.NoError(t, err)
	assert.Equal(t, newBlob, el.BlobID)
}
