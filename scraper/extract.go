package scraper

import (
	"log/slog"

	"github.com/thepicksmart/wish-harvest/models"
)

// ExtractItems maps one feed page into item references, preserving the
// upstream entry order. Entries missing any required field are malformed
// partials; each is skipped on its own and never aborts the page.
func (c *Client) ExtractItems(page *models.FeedPage, categoryLabel string) []models.ItemReference {
	items := make([]models.ItemReference, 0, len(page.Data.Products))
	for _, product := range page.Data.Products {
		item, ok := c.itemFromProduct(product, categoryLabel)
		if !ok {
			slog.Debug("skipping malformed feed entry",
				slog.String("category", categoryLabel),
				slog.String("id", product.ID),
			)
			continue
		}
		items = append(items, item)
	}
	return items
}

func (c *Client) itemFromProduct(product models.FeedProduct, categoryLabel string) (models.ItemReference, bool) {
	symbol := product.LocalizedValue.Symbol
	price := product.CommerceProductInfo.LoggingFields.LogProductPrice

	if product.ID == "" || product.FeedTileText == "" || symbol == "" || price == "" {
		return models.ItemReference{}, false
	}

	return models.ItemReference{
		ID:       product.ID,
		Link:     c.ProductLink(product.ID),
		Price:    symbol + price,
		Quantity: product.FeedTileText,
		Category: categoryLabel,
	}, true
}
