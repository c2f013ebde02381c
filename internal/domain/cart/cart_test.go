package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/webshop/internal/domain/catalog"
)

func newTestArticle(id int64, label, price string) *catalog.Article {
	return &catalog.Article{ID: id, Label: label, Price: decimal.RequireFromString(price), Available: true}
}

func TestCart_AddSameArticleTwice(t *testing.T) {
	c := New("s1")
	a := newTestArticle(501, "Mug", "10.00")

	_, err := c.Add(a)
	require.NoError(t, err)
	l, err := c.Add(a)
	require.NoError(t, err)

	assert.Len(t, c.Lines, 1)
	assert.Equal(t, 2, l.Quantity)
	assert.Equal(t, StateActive, c.State())
}

func TestCart_AddNil(t *testing.T) {
	c := New("s1")
	_, err := c.Add(nil)
	require.ErrorIs(t, err, ErrNoArticle)
	assert.Equal(t, StateEmpty, c.State())
}

func TestCart_RemoveLastLineEnds(t *testing.T) {
	c := New("s1")
	_, _ = c.Add(newTestArticle(1, "A", "1.00"))
	_, _ = c.Add(newTestArticle(2, "B", "2.00"))

	ended, err := c.Remove(1)
	require.NoError(t, err)
	assert.False(t, ended)
	assert.Equal(t, StateActive, c.State())

	ended, err = c.Remove(2)
	require.NoError(t, err)
	assert.True(t, ended)
	assert.Equal(t, StateEmpty, c.State())

	_, err = c.Remove(2)
	require.ErrorIs(t, err, ErrLineNotFound)
}

func TestCart_Clear(t *testing.T) {
	c := New("s1")
	_, _ = c.Add(newTestArticle(1, "A", "1.00"))
	c.Clear()
	assert.Equal(t, StateEmpty, c.State())
}

func TestCart_ApplyIsAllOrNothing(t *testing.T) {
	c := New("s1")
	_, _ = c.Add(newTestArticle(1, "A", "1.00"))

	err := c.Apply(map[int64]int{1: 5, 99: 1})
	require.ErrorIs(t, err, ErrLineNotFound)
	assert.Equal(t, 1, c.Lines[1].Quantity)

	require.NoError(t, c.Apply(map[int64]int{1: 5}))
	assert.Equal(t, 5, c.Lines[1].Quantity)
}

func TestCart_PositiveLines(t *testing.T) {
	c := New("s1")
	for _, a := range []*catalog.Article{
		newTestArticle(3, "C", "3.00"),
		newTestArticle(1, "A", "1.00"),
		newTestArticle(2, "B", "2.00"),
		newTestArticle(4, "D", "4.00"),
	} {
		_, err := c.Add(a)
		require.NoError(t, err)
	}
	require.NoError(t, c.SetQuantity(2, 0))
	require.NoError(t, c.SetQuantity(4, -3))
	require.NoError(t, c.SetQuantity(3, 2))

	lines := c.PositiveLines()
	require.Len(t, lines, 2)
	assert.Equal(t, int64(1), lines[0].ArticleID)
	assert.Equal(t, int64(3), lines[1].ArticleID)
	assert.Equal(t, 2, lines[1].Quantity)

	assert.True(t, decimal.RequireFromString("7.00").Equal(c.Total()))
}

func TestCart_SetQuantityUnknownLine(t *testing.T) {
	c := New("s1")
	require.ErrorIs(t, c.SetQuantity(1, 3), ErrLineNotFound)
}
