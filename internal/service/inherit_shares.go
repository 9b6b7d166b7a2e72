package service

import (
	"fmt"

	"nestdrive/internal/domain"
)

// inheritShareComputer пересчитывает inherited_shares для поддерева.
// На входе — изменённый корень (его inherited_shares уже пересчитан
// вызывающей стороной относительно его родителя) и все строки поддерева.
type inheritShareComputer struct {
	root *domain.Element
	rows []*domain.Element
	byID map[string]*domain.Element
	toDo map[string]struct{}
}

func newInheritShareComputer(root *domain.Element, rows []*domain.Element) *inheritShareComputer {
	return &inheritShareComputer{root: root, rows: rows}
}

// mergeShared пересчитывает inherited_shares элемента относительно родителя:
// прямые гранты элемента, объединённые с унаследованными грантами родителя.
func mergeShared(parent *domain.Element, current *domain.Element) error {
	if !parent.IsFolder() {
		return fmt.Errorf("%w: %s", domain.ErrNotAFolder, parent.ID)
	}
	current.InheritedShares = current.Shared.Merge(parent.InheritedShares)
	return nil
}

// compute обходит строки worklist-алгоритмом: узел разрешается только после
// того, как разрешён его родитель (рекурсивный спуск по необработанным
// родителям), поэтому отдельная топологическая сортировка не нужна.
func (c *inheritShareComputer) compute() error {
	c.byID = make(map[string]*domain.Element, len(c.rows))
	for _, row := range c.rows {
		c.byID[row.ID.String()] = row
	}
	c.toDo = make(map[string]struct{}, len(c.rows))
	for _, row := range c.rows {
		c.toDo[row.ID.String()] = struct{}{}
	}
	// Корень уже пересчитан вызывающей стороной
	delete(c.toDo, c.root.ID.String())

	for len(c.toDo) > 0 {
		var next string
		for id := range c.toDo {
			next = id
			break
		}
		if err := c.resolve(next); err != nil {
			return err
		}
	}
	return nil
}

func (c *inheritShareComputer) resolve(id string) error {
	delete(c.toDo, id)
	current := c.byID[id]
	if current.ParentID == nil {
		// Корневой элемент выборки без родителя: наследовать нечего
		current.InheritedShares = current.Shared.Merge(nil)
		return nil
	}
	parentID := current.ParentID.String()
	if _, pending := c.toDo[parentID]; pending {
		if err := c.resolve(parentID); err != nil {
			return err
		}
	}
	parent, ok := c.byID[parentID]
	if !ok {
		return fmt.Errorf("%w: parent %s of %s is outside the subtree", domain.ErrNotFound, parentID, id)
	}
	return mergeShared(parent, current)
}

// updates собирает пакет per-id обновлений для атомарной записи.
func (c *inheritShareComputer) updates() []domain.InheritedShareUpdate {
	batch := make([]domain.InheritedShareUpdate, 0, len(c.rows))
	for _, row := range c.rows {
		batch = append(batch, domain.InheritedShareUpdate{
			ID:              row.ID,
			InheritedShares: row.InheritedShares,
		})
	}
	return batch
}
