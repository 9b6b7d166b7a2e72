package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"nestdrive/internal/domain"
)

// ElementRepository — адаптер хранилища элементов: транслирует
// domain.ElementQuery в SQL по единой плоской таблице elements.
type ElementRepository struct {
	db *sqlx.DB
}

func NewElementRepository(db *sqlx.DB) *ElementRepository {
	return &ElementRepository{db: db}
}

const elementColumns = `id, kind, name, parent_id, owner_id, owner_name, application,
        created_at, updated_at, deleted, shared, inherited_shares,
        blob_id, metadata, thumbnails`

// Допустимые имена колонок для проекции, сортировки и произвольных
// фильтров равенства. Всё, что не в списке, отклоняется как ErrInvalid.
var elementColumnSet = map[string]struct{}{
	"id": {}, "kind": {}, "name": {}, "parent_id": {}, "owner_id": {},
	"owner_name": {}, "application": {}, "created_at": {}, "updated_at": {},
	"deleted": {}, "shared": {}, "inherited_shares": {}, "blob_id": {},
	"metadata": {}, "thumbnails": {},
}

type whereBuilder struct {
	conds []string
	args  []interface{}
}

func (w *whereBuilder) add(format string, args ...interface{}) {
	placeholders := make([]interface{}, 0, len(args))
	for range args {
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(w.args)+len(placeholders)+1))
	}
	w.conds = append(w.conds, fmt.Sprintf(format, placeholders...))
	w.args = append(w.args, args...)
}

func (w *whereBuilder) addRaw(cond string) {
	w.conds = append(w.conds, cond)
}

func (w *whereBuilder) clause() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// principalJSON собирает аргумент для jsonb-содержания: массив с одной
// ACL-записью принципала, опционально с требуемым действием.
func principalJSON(field, id, action string) string {
	entry := map[string]interface{}{field: id}
	if action != "" {
		entry["actions"] = []string{action}
	}
	data, _ := json.Marshal([]interface{}{entry})
	return string(data)
}

func (w *whereBuilder) addVisibility(q domain.ElementQuery, user domain.UserInfo) {
	switch q.Visibility {
	case domain.VisibilityOwner:
		w.add("owner_id = %s", user.ID)
	case domain.VisibilityShared:
		w.addGrantFilter("shared", q.Action, user)
	case domain.VisibilityInherited:
		w.addGrantFilter("inherited_shares", q.Action, user)
	case domain.VisibilityAll:
	}
}

func (w *whereBuilder) addGrantFilter(column, action string, user domain.UserInfo) {
	ors := make([]string, 0, 2+len(user.GroupIDs))
	w.args = append(w.args, user.ID)
	ors = append(ors, fmt.Sprintf("owner_id = $%d", len(w.args)))
	w.args = append(w.args, principalJSON("userId", user.ID, action))
	ors = append(ors, fmt.Sprintf("%s @> $%d::jsonb", column, len(w.args)))
	for _, groupID := range user.GroupIDs {
		w.args = append(w.args, principalJSON("groupId", groupID, action))
		ors = append(ors, fmt.Sprintf("%s @> $%d::jsonb", column, len(w.args)))
	}
	w.conds = append(w.conds, "("+strings.Join(ors, " OR ")+")")
}

func buildWhere(q domain.ElementQuery, user domain.UserInfo) (*whereBuilder, error) {
	w := &whereBuilder{}
	w.addVisibility(q, user)

	if q.ID != "" {
		w.add("id = %s", q.ID)
	}
	if len(q.IDs) > 0 {
		w.add("id = ANY(%s)", pq.Array(q.IDs))
	}
	if q.Kind != nil {
		w.add("kind = %s", int(*q.Kind))
	}
	if q.ParentID != nil {
		if *q.ParentID == "" {
			w.addRaw("parent_id IS NULL")
		} else {
			w.add("parent_id = %s", *q.ParentID)
		}
	}
	switch q.Trash {
	case domain.TrashExclude:
		w.addRaw("deleted = FALSE")
	case domain.TrashOnly:
		w.addRaw("deleted = TRUE")
	}
	if q.NamePrefix != "" {
		w.add("name ILIKE %s || '%%'", q.NamePrefix)
	}
	if len(q.FullText) > 0 {
		w.add("to_tsvector('simple', name) @@ plainto_tsquery('simple', %s)",
			strings.Join(q.FullText, " "))
	}
	if q.Application != "" {
		w.add("application = %s", q.Application)
	}
	for key, value := range q.Params {
		if _, ok := elementColumnSet[key]; !ok {
			return nil, fmt.Errorf("%w: unknown filter column %q", domain.ErrInvalid, key)
		}
		w.add(key+" = %s", value)
	}
	return w, nil
}

func buildProjection(projection []string) (string, error) {
	if len(projection) == 0 {
		return elementColumns, nil
	}
	cols := make([]string, 0, len(projection))
	for _, field := range projection {
		if _, ok := elementColumnSet[field]; !ok {
			return "", fmt.Errorf("%w: unknown projection column %q", domain.ErrInvalid, field)
		}
		cols = append(cols, field)
	}
	return strings.Join(cols, ", "), nil
}

func buildTail(q domain.ElementQuery) (string, error) {
	var tail strings.Builder
	if len(q.Sort) > 0 {
		orders := make([]string, 0, len(q.Sort))
		for _, s := range q.Sort {
			if _, ok := elementColumnSet[s.Field]; !ok {
				return "", fmt.Errorf("%w: unknown sort column %q", domain.ErrInvalid, s.Field)
			}
			dir := "ASC"
			if s.Order == domain.SortDesc {
				dir = "DESC"
			}
			orders = append(orders, s.Field+" "+dir)
		}
		tail.WriteString(" ORDER BY " + strings.Join(orders, ", "))
	}
	if q.Skip > 0 {
		fmt.Fprintf(&tail, " OFFSET %d", q.Skip)
	}
	if q.Limit > 0 {
		fmt.Fprintf(&tail, " LIMIT %d", q.Limit)
	}
	return tail.String(), nil
}

// FindByQuery возвращает элементы по спецификации. Рекурсивные
// спецификации уходят в ListRecursive.
func (r *ElementRepository) FindByQuery(ctx context.Context, q domain.ElementQuery, user domain.UserInfo) ([]domain.Element, error) {
	if q.Hierarchical {
		return r.ListRecursive(ctx, q, user)
	}
	where, err := buildWhere(q, user)
	if err != nil {
		return nil, err
	}
	cols, err := buildProjection(q.Projection)
	if err != nil {
		return nil, err
	}
	tail, err := buildTail(q)
	if err != nil {
		return nil, err
	}

	query := "SELECT " + cols + " FROM elements" + where.clause() + tail
	var elements []domain.Element
	if err := r.db.SelectContext(ctx, &elements, query, where.args...); err != nil {
		return nil, fmt.Errorf("failed to query elements: %w", err)
	}
	return elements, nil
}

// FindOne возвращает единственный элемент спецификации либо ErrNotFound.
func (r *ElementRepository) FindOne(ctx context.Context, q domain.ElementQuery, user domain.UserInfo) (*domain.Element, error) {
	q.Limit = 1
	q.Hierarchical = false
	elements, err := r.FindByQuery(ctx, q, user)
	if err != nil {
		return nil, err
	}
	if len(elements) == 0 {
		return nil, domain.ErrNotFound
	}
	return &elements[0], nil
}

// GetByID — точечное чтение без фильтров видимости и корзины.
func (r *ElementRepository) GetByID(ctx context.Context, id string) (*domain.Element, error) {
	var element domain.Element
	query := "SELECT " + elementColumns + " FROM elements WHERE id = $1"
	if err := r.db.GetContext(ctx, &element, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get element: %w", err)
	}
	return &element, nil
}

const insertElementQuery = `
        INSERT INTO elements (id, kind, name, parent_id, owner_id, owner_name, application,
                              created_at, updated_at, deleted, shared, inherited_shares,
                              blob_id, metadata, thumbnails)
        VALUES (:id, :kind, :name, :parent_id, :owner_id, :owner_name, :application,
                :created_at, :updated_at, :deleted, :shared, :inherited_shares,
                :blob_id, :metadata, :thumbnails)`

func (r *ElementRepository) Insert(ctx context.Context, element *domain.Element) error {
	if _, err := r.db.NamedExecContext(ctx, insertElementQuery, element); err != nil {
		return fmt.Errorf("failed to insert element: %w", err)
	}
	return nil
}

// InsertAll вставляет набор строк одной транзакцией.
func (r *ElementRepository) InsertAll(ctx context.Context, elements []*domain.Element) error {
	if len(elements) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, element := range elements {
		if _, err := tx.NamedExecContext(ctx, insertElementQuery, element); err != nil {
			return fmt.Errorf("failed to insert element %s: %w", element.ID, err)
		}
	}
	return tx.Commit()
}

func (r *ElementRepository) Rename(ctx context.Context, id string, name string) error {
	return r.execOnID(ctx, `
        UPDATE elements
        SET name = $1, updated_at = CURRENT_TIMESTAMP
        WHERE id = $2`, name, id)
}

func (r *ElementRepository) SetParent(ctx context.Context, id string, parentID *string) error {
	return r.execOnID(ctx, `
        UPDATE elements
        SET parent_id = $1, updated_at = CURRENT_TIMESTAMP
        WHERE id = $2`, parentID, id)
}

func (r *ElementRepository) SetShared(ctx context.Context, id string, shared domain.ShareList) error {
	return r.execOnID(ctx, `
        UPDATE elements
        SET shared = $1, updated_at = CURRENT_TIMESTAMP
        WHERE id = $2`, shared, id)
}

// UpdateFile перезаписывает изменяемые поля файла; владелец и created_at
// не трогаются.
func (r *ElementRepository) UpdateFile(ctx context.Context, element *domain.Element) error {
	return r.execOnID(ctx, `
        UPDATE elements
        SET name = $1, parent_id = $2, blob_id = $3, metadata = $4,
            thumbnails = $5, inherited_shares = $6, updated_at = CURRENT_TIMESTAMP
        WHERE id = $7`,
		element.Name, element.ParentID, element.BlobID, element.Metadata,
		element.Thumbnails, element.InheritedShares, element.ID)
}

func (r *ElementRepository) execOnID(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update element: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateInheritedShares применяет пакет обновлений inherited_shares одной
// транзакцией — поддерево становится консистентным целиком либо никак.
func (r *ElementRepository) UpdateInheritedShares(ctx context.Context, updates []domain.InheritedShareUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, update := range updates {
		_, err := tx.ExecContext(ctx, `
            UPDATE elements
            SET inherited_shares = $1, updated_at = CURRENT_TIMESTAMP
            WHERE id = $2`, update.InheritedShares, update.ID)
		if err != nil {
			return fmt.Errorf("failed to update inherited shares for %s: %w", update.ID, err)
		}
	}
	return tx.Commit()
}

func (r *ElementRepository) SetDeleted(ctx context.Context, ids []string, deleted bool) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
        UPDATE elements
        SET deleted = $1, updated_at = CURRENT_TIMESTAMP
        WHERE id = ANY($2)`, deleted, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to set deleted flag: %w", err)
	}
	return nil
}

func (r *ElementRepository) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM elements WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to delete elements: %w", err)
	}
	return nil
}

// ListRecursive выполняет транзитивное замыкание: корни — папки, прошедшие
// базовый фильтр, плюс все элементы, чья цепочка родителей проходит через
// один из корней. Обход выполняется на стороне БД рекурсивным CTE; фильтр
// корзины применяется и до, и после обхода, потому что обход может вернуть
// потомков исключённых узлов.
func (r *ElementRepository) ListRecursive(ctx context.Context, q domain.ElementQuery, user domain.UserInfo) ([]domain.Element, error) {
	// Рекурсивный обход всегда возвращает полные строки: усечённая
	// проекция сломала бы накопление цепочки предков
	if len(q.Projection) > 0 {
		return nil, fmt.Errorf("%w: projection is not supported for recursive queries", domain.ErrInvalid)
	}
	rootQuery := q
	kind := domain.FolderKind
	rootQuery.Kind = &kind
	where, err := buildWhere(rootQuery, user)
	if err != nil {
		return nil, err
	}
	tail, err := buildTail(domain.ElementQuery{Sort: q.Sort, Skip: q.Skip, Limit: q.Limit})
	if err != nil {
		return nil, err
	}

	outer := ""
	switch q.Trash {
	case domain.TrashExclude:
		outer = " WHERE deleted = FALSE"
	case domain.TrashOnly:
		outer = " WHERE deleted = TRUE"
	}

	query := `
        WITH RECURSIVE roots AS (
            SELECT ` + elementColumns + `, ARRAY[]::text[] AS parents
            FROM elements` + where.clause() + `
        ), tree AS (
            SELECT * FROM roots

            UNION ALL

            SELECT c.id, c.kind, c.name, c.parent_id, c.owner_id, c.owner_name, c.application,
                   c.created_at, c.updated_at, c.deleted, c.shared, c.inherited_shares,
                   c.blob_id, c.metadata, c.thumbnails, t.parents || t.id::text
            FROM elements c
            INNER JOIN tree t ON c.parent_id = t.id
        )
        SELECT ` + elementColumns + `, parents FROM tree` + outer + tail

	var elements []domain.Element
	if err := r.db.SelectContext(ctx, &elements, query, where.args...); err != nil {
		return nil, fmt.Errorf("failed to list elements recursively: %w", err)
	}
	return elements, nil
}
