package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/webshop/internal/domain/catalog"
	"github.com/xenking/webshop/internal/repository"
)

const (
	batchSize     = 500
	progressEvery = 100_000
	maxLineLen    = 64 * 1024
)

// fileResult holds the articles parsed from one feed file.
type fileResult struct {
	articles []catalog.Article
	invalid  int
}

func main() {
	var (
		databaseURL string
		dryRun      bool
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.BoolVar(&dryRun, "dry-run", false, "parse and merge feeds without writing to the database")
	flag.Usage = func() {
		_, _ = os.Stderr.WriteString("usage: catalog-import [flags] feed1.jsonl.gz [feed2.jsonl.gz ...]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, files, databaseURL, dryRun); err != nil {
		slog.Error("catalog import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog import completed successfully")
}

func run(ctx context.Context, files []string, databaseURL string, dryRun bool) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	slog.Info("parsing feeds", slog.Int("files", len(files)))

	results, err := parseFeeds(ctx, files)
	if err != nil {
		return errors.Wrap(err, "parse feeds")
	}

	articles := merge(results)
	slog.Info("feeds merged", slog.Int("articles", len(articles)))

	if dryRun || len(articles) == 0 {
		return nil
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	return write(ctx, repository.NewTransactor(pool), repository.NewArticleRepository(pool), articles)
}

// parseFeeds reads every feed concurrently.
func parseFeeds(ctx context.Context, files []string) ([]fileResult, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			var res fileResult
			if err := streamGzFile(ctx, f, func(line []byte) {
				a, err := parseLine(line)
				if err != nil {
					res.invalid++
					slog.Warn("skipping invalid line", slog.String("file", f), slog.String("error", err.Error()))
					return
				}
				res.articles = append(res.articles, a)
				if len(res.articles)%progressEvery == 0 {
					slog.Info("parse progress", slog.String("file", f), slog.Int("articles", len(res.articles)))
				}
			}); err != nil {
				return errors.Wrapf(err, "parse file %d", i+1)
			}

			slog.Info("file parsed",
				slog.String("file", f),
				slog.Int("articles", len(res.articles)),
				slog.Int("invalid", res.invalid),
			)
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// merge keeps one article per label. Feeds listed first win; within a feed
// the last line wins.
func merge(results []fileResult) []catalog.Article {
	index := make(map[string]int)
	var out []catalog.Article
	for _, r := range results {
		local := make(map[string]int)
		for _, a := range r.articles {
			key := strings.ToLower(a.Label)
			if i, ok := local[key]; ok {
				out[i] = a
				continue
			}
			if _, ok := index[key]; ok {
				continue
			}
			index[key] = len(out)
			local[key] = len(out)
			out = append(out, a)
		}
	}
	return out
}

// parseLine decodes one feed line: {"label":"…","price":"9.95","available":true}.
// The price may be a string or a number; available defaults to true.
func parseLine(line []byte) (catalog.Article, error) {
	a := catalog.Article{Available: true}
	var havePrice bool

	err := jx.DecodeBytes(line).ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "label":
			s, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "label")
			}
			a.Label = strings.TrimSpace(s)
		case "price":
			var raw string
			switch d.Next() {
			case jx.String:
				s, err := d.Str()
				if err != nil {
					return errors.Wrap(err, "price")
				}
				raw = s
			default:
				n, err := d.Num()
				if err != nil {
					return errors.Wrap(err, "price")
				}
				raw = n.String()
			}
			p, err := decimal.NewFromString(raw)
			if err != nil {
				return errors.Wrapf(err, "price %q", raw)
			}
			a.Price = p
			havePrice = true
		case "available":
			v, err := d.Bool()
			if err != nil {
				return errors.Wrap(err, "available")
			}
			a.Available = v
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return catalog.Article{}, err
	}

	switch {
	case a.Label == "":
		return catalog.Article{}, errors.New("label is required")
	case !havePrice:
		return catalog.Article{}, errors.Errorf("price of %q is required", a.Label)
	case a.Price.IsNegative():
		return catalog.Article{}, errors.Errorf("price of %q is negative", a.Label)
	}
	return a, nil
}

// streamGzFile opens a gzip-compressed file and calls fn for each non-empty
// line.
func streamGzFile(ctx context.Context, path string, fn func(line []byte)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 4096), maxLineLen)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		fn(line)
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

type transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// write upserts articles in batches, one transaction per batch.
func write(ctx context.Context, tx transactor, repo catalog.Repository, articles []catalog.Article) error {
	slog.Info("writing articles to database", slog.Int("count", len(articles)))

	for start := 0; start < len(articles); start += batchSize {
		batch := articles[start:min(start+batchSize, len(articles))]
		if err := tx.InTx(ctx, func(ctx context.Context) error {
			for i := range batch {
				if err := repo.Upsert(ctx, &batch[i]); err != nil {
					return errors.Wrapf(err, "upsert article %q", batch[i].Label)
				}
			}
			return nil
		}); err != nil {
			return err
		}

		slog.Info("write progress", slog.Int("written", start+len(batch)), slog.Int("total", len(articles)))
	}
	return nil
}
