package scraper

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/thepicksmart/wish-harvest/models"
)

// FetchDetail fetches the full product payload for one item reference,
// retrying transient failures under the same policy as the feed walk. The
// inter-call pacing between detail fetches is the caller's responsibility;
// this operation knows nothing about request rate.
func (c *Client) FetchDetail(ctx context.Context, s Session, productID string) (*models.ProductDetail, error) {
	var detail *models.ProductDetail
	err := c.retry.do(ctx, "product detail", c.metrics, func() error {
		fetched, err := c.fetchDetail(ctx, s, productID)
		if err != nil {
			return err
		}
		detail = fetched
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("product %s: %w", productID, err)
	}
	return detail, nil
}

func (c *Client) fetchDetail(ctx context.Context, s Session, productID string) (*models.ProductDetail, error) {
	resp, err := c.request(s).
		SetContext(ctx).
		SetHeader("Accept", acceptJSON).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetHeader("Referer", c.cfg.BaseURL+detailReferer+productID).
		SetFormData(map[string]string{
			"cid":                       productID,
			"request_sizing_chart_info": "true",
			"do_not_track":              "true",
		}).
		Post(routeDetail)
	if err != nil {
		return nil, classify(err)
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var detail models.ProductDetail
	if err := json.Unmarshal(resp.Body(), &detail); err != nil {
		return nil, fmt.Errorf("decode product detail: %w", err)
	}
	return &detail, nil
}
