package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/webshop/internal/domain/catalog"
)

func writeFeed(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feed.jsonl.gz")
	f, err := os.Create(path)
	require.NoError(t, err)

	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(strings.Join(lines, "\n")))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
	return path
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		label     string
		price     string
		available bool
		errMsg    string
	}{
		{name: "string price", line: `{"label":"Tamper","price":"19.99"}`, label: "Tamper", price: "19.99", available: true},
		{name: "number price", line: `{"label":"Descaler","price":9.95,"available":false}`, label: "Descaler", price: "9.95"},
		{name: "unknown fields", line: `{"sku":"x-1","label":" Mug ","price":"10","tags":["a"]}`, label: "Mug", price: "10", available: true},
		{name: "missing label", line: `{"price":"1.00"}`, errMsg: "label is required"},
		{name: "missing price", line: `{"label":"Mug"}`, errMsg: "price of \"Mug\" is required"},
		{name: "negative price", line: `{"label":"Mug","price":"-1"}`, errMsg: "negative"},
		{name: "bad price", line: `{"label":"Mug","price":"cheap"}`, errMsg: "price"},
		{name: "not json", line: `label=Mug`, errMsg: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := parseLine([]byte(tt.line))
			if tt.label == "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.label, a.Label)
			assert.True(t, decimal.RequireFromString(tt.price).Equal(a.Price))
			assert.Equal(t, tt.available, a.Available)
		})
	}
}

func TestMerge(t *testing.T) {
	art := func(label, price string) catalog.Article {
		return catalog.Article{Label: label, Price: decimal.RequireFromString(price), Available: true}
	}
	results := []fileResult{
		{articles: []catalog.Article{art("Mug", "10"), art("Tamper", "19.99"), art("mug", "11")}},
		{articles: []catalog.Article{art("MUG", "12"), art("Descaler", "9.95")}},
	}

	got := merge(results)
	require.Len(t, got, 3)
	assert.Equal(t, "mug", got[0].Label)
	assert.True(t, decimal.RequireFromString("11").Equal(got[0].Price))
	assert.Equal(t, "Tamper", got[1].Label)
	assert.Equal(t, "Descaler", got[2].Label)
}

func TestParseFeeds(t *testing.T) {
	first := writeFeed(t,
		`{"label":"Mug","price":"10.00"}`,
		``,
		`{"label":"","price":"1"}`,
		`{"label":"Tamper","price":"19.99"}`,
	)
	second := writeFeed(t, `{"label":"Descaler","price":9.95}`)

	results, err := parseFeeds(context.Background(), []string{first, second})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Len(t, results[0].articles, 2)
	assert.Equal(t, 1, results[0].invalid)
	assert.Len(t, results[1].articles, 1)
}

func TestParseFeeds_MissingFile(t *testing.T) {
	_, err := parseFeeds(context.Background(), []string{filepath.Join(t.TempDir(), "missing.gz")})
	require.Error(t, err)
}

func TestWrite_Batches(t *testing.T) {
	articles := make([]catalog.Article, batchSize+1)
	for i := range articles {
		articles[i] = catalog.Article{Label: "a" + decimal.NewFromInt(int64(i)).String(), Price: decimal.NewFromInt(1)}
	}
	tx := &mockTx{}
	repo := &mockRepo{}

	require.NoError(t, write(context.Background(), tx, repo, articles))
	assert.Equal(t, 2, tx.calls)
	assert.Equal(t, batchSize+1, repo.upserts)
	assert.NotZero(t, articles[batchSize].ID)
}

func TestWrite_StopsOnError(t *testing.T) {
	tx := &mockTx{}
	repo := &mockRepo{err: errors.New("disk full")}

	err := write(context.Background(), tx, repo, []catalog.Article{{Label: "Mug"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Mug")
}

// --- Mock implementations ---

type mockTx struct {
	calls int
}

func (m *mockTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}

type mockRepo struct {
	err     error
	upserts int
}

func (m *mockRepo) List(context.Context) ([]catalog.Article, error) { return nil, nil }

func (m *mockRepo) FindByID(context.Context, int64) (*catalog.Article, error) {
	return nil, catalog.ErrNotFound
}

func (m *mockRepo) FindByIDs(context.Context, []int64) ([]catalog.Article, error) { return nil, nil }

func (m *mockRepo) Upsert(_ context.Context, a *catalog.Article) error {
	if m.err != nil {
		return m.err
	}
	m.upserts++
	a.ID = int64(m.upserts)
	return nil
}
