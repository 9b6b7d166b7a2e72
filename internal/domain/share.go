package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
)

// Действия, проверяемые при выдаче и использовании доступа.
const (
	ActionRead    = "read"
	ActionWrite   = "write"
	ActionComment = "comment"
	ActionManage  = "manage"
)

// ShareEntry — одна ACL-запись: либо пользователь, либо группа,
// с набором разрешённых действий.
type ShareEntry struct {
	UserID  string   `json:"userId,omitempty"`
	GroupID string   `json:"groupId,omitempty"`
	Actions []string `json:"actions"`
}

// Principal возвращает ключ принципала записи.
func (e ShareEntry) Principal() string {
	if e.UserID != "" {
		return "u:" + e.UserID
	}
	return "g:" + e.GroupID
}

func (e ShareEntry) HasAction(action string) bool {
	for _, a := range e.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// AppliesTo проверяет, относится ли запись к пользователю напрямую или
// через одну из его групп.
func (e ShareEntry) AppliesTo(user UserInfo) bool {
	if e.UserID != "" && e.UserID == user.ID {
		return true
	}
	if e.GroupID == "" {
		return false
	}
	for _, g := range user.GroupIDs {
		if g == e.GroupID {
			return true
		}
	}
	return false
}

// ShareList — множество ACL-записей. Хранится в JSONB, порядок не значим.
type ShareList []ShareEntry

func (l ShareList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

func (l *ShareList) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}
	data, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan share list from %T", src)
	}
	return json.Unmarshal(data, l)
}

// Merge объединяет два списка в новый: записи одного принципала
// схлопываются, действия объединяются. Исходные списки не меняются.
func (l ShareList) Merge(other ShareList) ShareList {
	if len(l) == 0 && len(other) == 0 {
		return ShareList{}
	}
	byPrincipal := make(map[string]*ShareEntry)
	order := make([]string, 0, len(l)+len(other))
	add := func(e ShareEntry) {
		key := e.Principal()
		existing, ok := byPrincipal[key]
		if !ok {
			copied := ShareEntry{UserID: e.UserID, GroupID: e.GroupID}
			copied.Actions = append(copied.Actions, e.Actions...)
			byPrincipal[key] = &copied
			order = append(order, key)
			return
		}
		for _, a := range e.Actions {
			if !existing.HasAction(a) {
				existing.Actions = append(existing.Actions, a)
			}
		}
	}
	for _, e := range l {
		add(e)
	}
	for _, e := range other {
		add(e)
	}
	merged := make(ShareList, 0, len(order))
	for _, key := range order {
		entry := *byPrincipal[key]
		sort.Strings(entry.Actions)
		merged = append(merged, entry)
	}
	return merged
}

// Grants проверяет, даёт ли список пользователю указанное действие.
func (l ShareList) Grants(user UserInfo, action string) bool {
	for _, e := range l {
		if e.AppliesTo(user) && e.HasAction(action) {
			return true
		}
	}
	return false
}

// Principals возвращает id всех пользователей и групп списка.
func (l ShareList) Principals() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(l))
	for _, e := range l {
		id := e.UserID
		if id == "" {
			id = e.GroupID
		}
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

type ShareOperationKind int

const (
	UserShare ShareOperationKind = iota
	UserShareRemove
	GroupShare
	GroupShareRemove
)

// ShareOperation описывает одно изменение прямых грантов элемента.
type ShareOperation struct {
	Kind    ShareOperationKind
	User    UserInfo // действующий пользователь
	UserID  string   // принципал-пользователь для User*-операций
	GroupID string   // принципал-группа для Group*-операций
	Actions []string
}

func AddShareUser(user UserInfo, userID string, actions []string) ShareOperation {
	return ShareOperation{Kind: UserShare, User: user, UserID: userID, Actions: actions}
}

func RemoveShareUser(user UserInfo, userID string, actions []string) ShareOperation {
	return ShareOperation{Kind: UserShareRemove, User: user, UserID: userID, Actions: actions}
}

func AddShareGroup(user UserInfo, groupID string, actions []string) ShareOperation {
	return ShareOperation{Kind: GroupShare, User: user, GroupID: groupID, Actions: actions}
}

func RemoveShareGroup(user UserInfo, groupID string, actions []string) ShareOperation {
	return ShareOperation{Kind: GroupShareRemove, User: user, GroupID: groupID, Actions: actions}
}

// Apply применяет операцию к списку прямых грантов и возвращает новый список.
func (op ShareOperation) Apply(shared ShareList) ShareList {
	entry := ShareEntry{UserID: op.UserID, GroupID: op.GroupID, Actions: op.Actions}
	switch op.Kind {
	case UserShare, GroupShare:
		return shared.Merge(ShareList{entry})
	case UserShareRemove, GroupShareRemove:
		result := make(ShareList, 0, len(shared))
		for _, e := range shared {
			if e.Principal() != entry.Principal() {
				result = append(result, e)
				continue
			}
			kept := ShareEntry{UserID: e.UserID, GroupID: e.GroupID}
			for _, a := range e.Actions {
				if !entry.HasAction(a) {
					kept.Actions = append(kept.Actions, a)
				}
			}
			if len(kept.Actions) > 0 {
				result = append(result, kept)
			}
		}
		return result
	}
	return shared
}
