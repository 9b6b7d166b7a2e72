package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShareListMerge(t *testing.T) {
	a := ShareList{
		{UserID: "u1", Actions: []string{"read", "write"}},
		{GroupID: "g1", Actions: []string{"read"}},
	}
	b := ShareList{
		{UserID: "u1", Actions: []string{"manage", "read"}},
		{UserID: "u2", Actions: []string{"read"}},
	}

	merged := a.Merge(b)
	require.Len(t, merged, 3)

	// Записи одного принципала схлопываются, действия объединяются
	byPrincipal := make(map[string]ShareEntry)
	for _, e := range merged {
		byPrincipal[e.Principal()] = e
	}
	assert.Equal(t, []string{"manage", "read", "write"}, byPrincipal["u:u1"].Actions)
	assert.Equal(t, []string{"read"}, byPrincipal["g:g1"].Actions)
	assert.Equal(t, []string{"read"}, byPrincipal["u:u2"].Actions)

	// Исходные списки не изменились
	assert.Equal(t, []string{"read", "write"}, a[0].Actions)
	assert.Equal(t, []string{"manage", "read"}, b[0].Actions)
}

func TestShareListMergeEmpty(t *testing.T) {
	var empty ShareList
	merged := empty.Merge(nil)
	assert.NotNil(t, merged)
	assert.Empty(t, merged)

	one := ShareList{{UserID: "u1", Actions: []string{"read"}}}
	assert.Equal(t, one, one.Merge(nil))
	assert.Equal(t, one, empty.Merge(one))
}

func TestShareListGrants(t *testing.T) {
	shares := ShareList{
		{UserID: "u1", Actions: []string{"read"}},
		{GroupID: "g1", Actions: []string{"write"}},
	}

	direct := UserInfo{ID: "u1"}
	viaGroup := UserInfo{ID: "u2", GroupIDs: []string{"g1"}}
	stranger := UserInfo{ID: "u3"}

	assert.True(t, shares.Grants(direct, ActionRead))
	assert.False(t, shares.Grants(direct, ActionWrite))
	assert.True(t, shares.Grants(viaGroup, ActionWrite))
	assert.False(t, shares.Grants(stranger, ActionRead))
}

func TestShareOperationApplyAdd(t *testing.T) {
	shared := ShareList{{UserID: "u1", Actions: []string{"read"}}}

	op := AddShareUser(UserInfo{ID: "owner"}, "u1", []string{"write"})
	result := op.Apply(shared)

	require.Len(t, result, 1)
	assert.Equal(t, []string{"read", "write"}, result[0].Actions)
	// Исходный список не изменился
	assert.Equal(t, []string{"read"}, shared[0].Actions)
}

func TestShareOperationApplyRemove(t *testing.T) {
	shared := ShareList{
		{UserID: "u1", Actions: []string{"read", "write"}},
		{GroupID: "g1", Actions: []string{"read"}},
	}

	// Снятие части действий оставляет запись с остатком
	result := RemoveShareUser(UserInfo{ID: "owner"}, "u1", []string{"write"}).Apply(shared)
	require.Len(t, result, 2)
	assert.Equal(t, []string{"read"}, result[0].Actions)

	// Снятие всех действий убирает запись целиком
	result = RemoveShareGroup(UserInfo{ID: "owner"}, "g1", []string{"read"}).Apply(shared)
	require.Len(t, result, 1)
	assert.Equal(t, "u:u1", result[0].Principal())
}

func TestShareListPrincipals(t *testing.T) {
	shares := ShareList{
		{UserID: "u1", Actions: []string{"read"}},
		{GroupID: "g1", Actions: []string{"read"}},
		{UserID: "u1", Actions: []string{"write"}},
	}
	assert.ElementsMatch(t, []string{"u1", "g1"}, shares.Principals())
}
