package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/thepicksmart/wish-harvest/config"
	"github.com/thepicksmart/wish-harvest/models"
	"github.com/thepicksmart/wish-harvest/scraper"
	"github.com/thepicksmart/wish-harvest/transform"
)

// seenCacheSize bounds the per-category product id dedupe cache.
const seenCacheSize = 8192

// Runner executes the harvest strictly sequentially: one category at a
// time, one page at a time, one item at a time. Output order matches
// discovery order, which downstream consumers rely on for deterministic
// re-runs.
type Runner struct {
	cfg     *config.Config
	client  *scraper.Client
	metrics *scraper.Metrics
	limiter *rate.Limiter
	seen    *lru.Cache[string, struct{}]

	// newWriter is a seam for tests; production runs always create real
	// category files.
	newWriter func(dir, label string) (*CategoryWriter, error)
}

// NewRunner builds a runner. The limiter enforces the minimum delay between
// detail fetches; feed pages are paced by their own backoff policy only.
func NewRunner(cfg *config.Config, client *scraper.Client, metrics *scraper.Metrics) (*Runner, error) {
	seen, err := lru.New[string, struct{}](seenCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create dedupe cache: %w", err)
	}

	limit := rate.Inf
	if cfg.DetailDelay > 0 {
		limit = rate.Every(cfg.DetailDelay)
	}

	return &Runner{
		cfg:       cfg,
		client:    client,
		metrics:   metrics,
		limiter:   rate.NewLimiter(limit, 1),
		seen:      seen,
		newWriter: NewCategoryWriter,
	}, nil
}

// Run harvests every configured category. A category that fails mid-way is
// finalized and logged, and the run proceeds to the next one; only context
// cancellation stops the run early.
func (r *Runner) Run(ctx context.Context, session scraper.Session) (*models.RunResult, error) {
	result := &models.RunResult{StartTime: time.Now()}

	for _, category := range r.sortedCategories() {
		if ctx.Err() != nil {
			result.EndTime = time.Now()
			return result, ctx.Err()
		}

		categoryResult := r.runCategory(ctx, session, category.id, category.label)
		result.Categories = append(result.Categories, categoryResult)

		if categoryResult.Err != nil {
			slog.Error("category failed, continuing with next",
				slog.String("category", category.label),
				slog.Any("error", categoryResult.Err),
			)
			continue
		}
		slog.Info("category complete",
			slog.String("category", category.label),
			slog.Int("pages", categoryResult.PagesFetched),
			slog.Int("items", categoryResult.ItemsSeen),
			slog.Int("records", categoryResult.RecordsOut),
		)
	}

	result.EndTime = time.Now()
	return result, nil
}

type category struct {
	id    string
	label string
}

// sortedCategories orders the configured category map by label so runs are
// deterministic despite map iteration order.
func (r *Runner) sortedCategories() []category {
	out := make([]category, 0, len(r.cfg.Categories))
	for id, label := range r.cfg.Categories {
		out = append(out, category{id: id, label: label})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].label < out[j].label })
	return out
}

// runCategory uses a named return so the deferred finalization can still
// fail the category after the body has returned.
func (r *Runner) runCategory(ctx context.Context, session scraper.Session, categoryID, label string) (result models.CategoryResult) {
	result.CategoryID = categoryID
	result.CategoryLabel = label

	// Dedupe is scoped to one category's walk: feed pages can repeat items
	// across offsets, but categories overlap upstream and a product listed
	// in two categories belongs in both output files.
	r.seen.Purge()

	writer, err := r.newWriter(r.cfg.OutputDir, label)
	if err != nil {
		result.Err = fmt.Errorf("category %s: %w", label, err)
		return result
	}
	// The file is terminated exactly once no matter how this category
	// ends; a mid-run failure still leaves a closed array behind.
	defer func() {
		if err := writer.Finalize(); err != nil {
			slog.Error("finalize output file",
				slog.String("category", label),
				slog.Any("error", err),
			)
			if result.Err == nil {
				result.Err = err
			}
		}
	}()

	slog.Info("category started",
		slog.String("category", label),
		slog.String("category_id", categoryID),
		slog.String("output", writer.Path()),
	)

	for page, err := range r.client.WalkFeed(ctx, session, categoryID) {
		if err != nil {
			result.Err = err
			return result
		}
		result.PagesFetched++

		items := r.client.ExtractItems(page, label)
		r.metrics.IncItems(len(items))

		for _, item := range items {
			result.ItemsSeen++
			if _, dup := r.seen.Get(item.ID); dup {
				result.Duplicates++
				continue
			}
			r.seen.Add(item.ID, struct{}{})

			written, err := r.processItem(ctx, session, writer, item)
			if err != nil {
				result.Err = fmt.Errorf("category %s item %s: %w", label, item.ID, err)
				return result
			}
			if written == 0 {
				result.ItemsSkipped++
			}
			result.RecordsOut += written
		}
	}

	return result
}

// processItem fetches one product's detail, transforms it, and streams the
// resulting records to the category file. Returns the record count.
func (r *Runner) processItem(ctx context.Context, session scraper.Session, writer *CategoryWriter, item models.ItemReference) (int, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	detail, err := r.client.FetchDetail(ctx, session, item.ID)
	if err != nil {
		return 0, err
	}

	records := transform.Records(detail, transform.Options{
		CategoryLabel: item.Category,
		Vendor:        r.cfg.Vendor,
		PriceFloor:    r.cfg.PriceFloor,
	})
	if err := writer.Append(records); err != nil {
		return 0, err
	}
	r.metrics.IncRecords(len(records))

	slog.Debug("item processed",
		slog.String("id", item.ID),
		slog.String("category", item.Category),
		slog.String("price", item.Price),
		slog.Int("records", len(records)),
	)
	return len(records), nil
}
