package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"strconv"

	"github.com/thepicksmart/wish-harvest/models"
)

// WalkFeed returns a lazy sequence of feed pages for one category. The
// offset cursor advances by the configured page size; the walk suspends
// between pages until the caller asks for the next one and is not
// restartable. Transient fetch failures retry the same page under the
// client's retry policy; a yielded non-nil error (retry exhaustion or
// cancellation) terminates the sequence.
func (c *Client) WalkFeed(ctx context.Context, s Session, categoryID string) iter.Seq2[*models.FeedPage, error] {
	return func(yield func(*models.FeedPage, error) bool) {
		for pageIndex := 0; pageIndex < c.cfg.PageCount; pageIndex++ {
			offset := pageIndex * c.cfg.PageSize

			var page *models.FeedPage
			err := c.retry.do(ctx, "feed page", c.metrics, func() error {
				fetched, err := c.fetchFeedPage(ctx, s, categoryID, offset)
				if err != nil {
					return err
				}
				page = fetched
				return nil
			})
			if err != nil {
				yield(nil, fmt.Errorf("category %s page %d: %w", categoryID, pageIndex, err))
				return
			}

			slog.Debug("feed page fetched",
				slog.String("category_id", categoryID),
				slog.Int("page", pageIndex),
				slog.Int("offset", offset),
				slog.Int("products", len(page.Data.Products)),
			)
			if !yield(page, nil) {
				return
			}
		}
	}
}

func (c *Client) fetchFeedPage(ctx context.Context, s Session, categoryID string, offset int) (*models.FeedPage, error) {
	resp, err := c.request(s).
		SetContext(ctx).
		SetHeader("Accept", acceptJSON).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetHeader("Referer", c.cfg.BaseURL+feedReferer).
		SetFormData(map[string]string{
			"count":                  strconv.Itoa(c.cfg.PageSize),
			"offset":                 strconv.Itoa(offset),
			"request_categories":     "false",
			"request_branded_filter": "false",
			"request_id":             categoryID,
		}).
		Post(routeFeed)
	if err != nil {
		return nil, classify(err)
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var page models.FeedPage
	if err := json.Unmarshal(resp.Body(), &page); err != nil {
		return nil, fmt.Errorf("decode feed page: %w", err)
	}
	return &page, nil
}
