package domain

// ElementSort задаёт направление сортировки.
type ElementSort int

const (
	SortAsc ElementSort = iota
	SortDesc
)

type SortField struct {
	Field string
	Order ElementSort
}

// Visibility определяет охват выборки относительно действующего пользователя.
type Visibility int

const (
	// VisibilityOwner — только элементы, которыми пользователь владеет.
	VisibilityOwner Visibility = iota
	// VisibilityShared — владелец либо прямой грант (shared).
	VisibilityShared
	// VisibilityInherited — владелец либо унаследованный грант
	// (inherited_shares).
	VisibilityInherited
	// VisibilityAll — без ограничения по пользователю. Только для
	// внутренних обходов поддеревьев: права проверяются до обхода.
	VisibilityAll
)

// TrashFilter — трёхзначный фильтр по флагу deleted.
type TrashFilter int

const (
	TrashAny TrashFilter = iota
	TrashExclude
	TrashOnly
)

// ElementQuery — неизменяемая спецификация запроса к хранилищу элементов.
// Все поля необязательны; нулевые значения означают отсутствие фильтра.
// Адаптер хранилища транслирует спецификацию в родной запрос один раз.
type ElementQuery struct {
	ID       string
	IDs      []string
	Kind     *ElementKind
	ParentID *string

	Visibility Visibility
	// Action сужает видимость по унаследованным грантам до записей,
	// содержащих это действие.
	Action string

	Trash       TrashFilter
	NamePrefix  string
	FullText    []string
	Application string

	// Params — произвольные фильтры равенства по колонкам элемента.
	Params map[string]interface{}

	Projection []string
	Sort       []SortField
	Skip       int
	Limit      int

	// Hierarchical включает рекурсивный режим: результат содержит
	// корневые папки, прошедшие базовый фильтр, и всех их потомков
	// с заполненным списком предков.
	Hierarchical bool
}

func KindOf(kind ElementKind) *ElementKind {
	return &kind
}
