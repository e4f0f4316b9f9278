package backend

import (
	"testing"

	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/ordokr/lmssearch/internal/errors"
)

var filterable = []string{"category_id", "user_id", "created_at", "slug"}

func TestParseFilter_Valid(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"numeric equality", "category_id = 3"},
		{"numeric range", "user_id >= 10"},
		{"not equal", "category_id != 3"},
		{"date", "created_at > 2024-01-01"},
		{"quoted datetime", "created_at <= '2024-01-01 12:00:00'"},
		{"string", "slug = 'week-1'"},
		{"and or", "category_id = 1 OR category_id = 2 AND user_id < 5"},
		{"parens and not", "NOT (category_id = 1 or user_id = 2)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := ParseFilter(tt.expr, filterable)
			require.NoError(t, err)
			assert.NotNil(t, q)
		})
	}
}

func TestParseFilter_Precedence(t *testing.T) {
	q, err := ParseFilter("category_id = 1 OR category_id = 2 AND user_id < 5", filterable)
	require.NoError(t, err)

	dis, ok := q.(*query.DisjunctionQuery)
	require.True(t, ok, "OR should be the outermost operator")
	require.Len(t, dis.Disjuncts, 2)
	_, ok = dis.Disjuncts[1].(*query.ConjunctionQuery)
	assert.True(t, ok, "AND binds tighter than OR")
}

func TestParseFilter_NumericBounds(t *testing.T) {
	q, err := ParseFilter("user_id > 10", filterable)
	require.NoError(t, err)

	nr, ok := q.(*query.NumericRangeQuery)
	require.True(t, ok)
	require.NotNil(t, nr.Min)
	assert.Equal(t, 10.0, *nr.Min)
	assert.False(t, *nr.InclusiveMin)
	assert.Nil(t, nr.Max)
	assert.Equal(t, "user_id", nr.Field())
}

func TestParseFilter_Invalid(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"empty", "   "},
		{"unknown field", "title = 'x'"},
		{"missing operator", "category_id 3"},
		{"double equals", "category_id == 3"},
		{"bang", "category_id ! 3"},
		{"missing value", "category_id ="},
		{"unterminated", "slug = 'abc"},
		{"unbalanced", "(category_id = 1"},
		{"trailing", "category_id = 1 user_id = 2"},
		{"range on string", "slug > 'abc'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFilter(tt.expr, filterable)
			require.Error(t, err)
			assert.Equal(t, serrors.ErrCodeInvalidFilter, serrors.GetCode(err))
		})
	}
}
