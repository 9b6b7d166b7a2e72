package domain

// UserInfo — действующий пользователь запроса. Разрешение сессии выполняет
// внешний сервис аутентификации; сюда попадает уже готовый результат.
type UserInfo struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	GroupIDs []string `json:"group_ids,omitempty"`
}

// QuotaUsage — квота и занятое место пользователя в байтах.
type QuotaUsage struct {
	Quota int64 `json:"quota" db:"total_bytes_limit"`
	Used  int64 `json:"storage" db:"used_bytes"`
}

func (q QuotaUsage) Free() int64 {
	return q.Quota - q.Used
}
