// Command seed-menu loads menu items into the CMS from a JSON export, plain
// or gzip-compressed.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/taberna/internal/cms"
)

// itemJSON is one entry of the export.
type itemJSON struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	SectionID   int             `json:"sectionId"`
}

func main() {
	var (
		cmsURL      string
		apiToken    string
		menuFile    string
		concurrency int
	)

	flag.StringVar(&cmsURL, "cms-url", "http://localhost:1337", "CMS base URL (or TABERNA_CMS_URL env)")
	flag.StringVar(&apiToken, "api-token", "", "CMS API token with create permission (or CMS_API_TOKEN env)")
	flag.StringVar(&menuFile, "menu-file", "db/seed/menu.json", "path to the menu export (.json or .json.gz)")
	flag.IntVar(&concurrency, "concurrency", 4, "parallel create requests")
	flag.Parse()

	if v := os.Getenv("TABERNA_CMS_URL"); v != "" && !isFlagSet("cms-url") {
		cmsURL = v
	}
	if apiToken == "" {
		apiToken = os.Getenv("CMS_API_TOKEN")
	}
	if apiToken == "" {
		slog.Error("API token is required: set --api-token or CMS_API_TOKEN")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, cmsURL, apiToken, menuFile, concurrency); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func run(ctx context.Context, cmsURL, apiToken, menuFile string, concurrency int) error {
	items, err := readMenu(menuFile)
	if err != nil {
		return errors.Wrap(err, "read menu")
	}
	slog.Info("menu loaded", slog.String("path", menuFile), slog.Int("items", len(items)))

	client, err := cms.New(cmsURL, cms.Options{APIToken: apiToken, Timeout: 30 * time.Second})
	if err != nil {
		return errors.Wrap(err, "create cms client")
	}

	return createItems(ctx, client.Products(), items, concurrency)
}

// readMenu decodes the export, decompressing it when the name ends in .gz.
func readMenu(path string) ([]itemJSON, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}
	return decodeMenu(r)
}

func decodeMenu(r io.Reader) ([]itemJSON, error) {
	var items []itemJSON
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, errors.Wrap(err, "parse menu JSON")
	}
	for i, it := range items {
		if strings.TrimSpace(it.Name) == "" {
			return nil, errors.Errorf("item %d has no name", i)
		}
		if it.Price.IsNegative() {
			return nil, errors.Errorf("item %q has a negative price", it.Name)
		}
	}
	return items, nil
}

type itemCreator interface {
	Create(ctx context.Context, item cms.NewItem) (int, error)
}

// createItems posts every item with at most concurrency requests in flight.
// The first failure cancels the rest.
func createItems(ctx context.Context, c itemCreator, items []itemJSON, concurrency int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))

	var created atomic.Int64
	for _, it := range items {
		g.Go(func() error {
			id, err := c.Create(ctx, cms.NewItem{
				Name:        strings.TrimSpace(it.Name),
				Description: it.Description,
				Price:       it.Price,
				SectionID:   it.SectionID,
			})
			if err != nil {
				return err
			}
			n := created.Add(1)
			slog.Info("created menu item",
				slog.Int("id", id),
				slog.String("name", it.Name),
				slog.Int64("progress", n),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "create menu items")
	}
	return nil
}
