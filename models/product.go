// Package models defines the data structures exchanged between the
// harvesting stages: raw upstream payloads, intermediate item references,
// and the flattened storefront import records.
package models

import "time"

// ItemReference is one lightweight entry extracted from a category feed
// page. It is consumed exactly once by the detail fetcher.
type ItemReference struct {
	ID       string `json:"cid"`
	Link     string `json:"link"`
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
	Category string `json:"category"`
}

// FeedPage is the raw filtered-feed response. Only the fields the extractor
// reads are decoded; everything else upstream sends is ignored.
type FeedPage struct {
	Data struct {
		Products []FeedProduct `json:"products"`
	} `json:"data"`
}

// FeedProduct is one product entry inside a feed page.
type FeedProduct struct {
	ID             string `json:"id"`
	FeedTileText   string `json:"feed_tile_text"`
	LocalizedValue struct {
		Symbol string `json:"symbol"`
	} `json:"localized_value"`
	CommerceProductInfo struct {
		LoggingFields struct {
			LogProductPrice string `json:"log_product_price"`
		} `json:"logging_fields"`
	} `json:"commerce_product_info"`
}

// ProductDetail is the raw product-detail response, treated as an immutable
// external document.
type ProductDetail struct {
	Data struct {
		Contest Contest `json:"contest"`
	} `json:"data"`
}

// Contest is the detail payload's product body: listing copy, images, and
// the ordered purchasable variations.
type Contest struct {
	MetaTitle       string            `json:"meta_title"`
	Description     string            `json:"description"`
	SelectedPicture string            `json:"contest_selected_picture"`
	ExtraPhotoURLs  map[string]string `json:"extra_photo_urls"`

	CommerceProductInfo struct {
		Variations []Variation `json:"variations"`
	} `json:"commerce_product_info"`
}

// Variation is one size/color/price combination of a product listing.
type Variation struct {
	Size        string  `json:"size"`
	Color       string  `json:"color"`
	Price       float64 `json:"price"`
	RetailPrice float64 `json:"retail_price"`
	Inventory   int     `json:"inventory"`
}

// GoogleShopping is the nested blank sub-object the import template
// requires. The key spellings, leading spaces included, are part of the
// external contract and must not be cleaned up.
type GoogleShopping struct {
	ProductCategory string `json:" Google Product Category"`
	Gender          string `json:" Gender"`
	AgeGroup        string `json:" Age Group"`
	MPN             string `json:" MPN"`
	AdWordsGrouping string `json:" AdWords Grouping"`
	AdWordsLabels   string `json:" AdWords Labels"`
	Condition       string `json:" Condition"`
	CustomProduct   string `json:" Custom Product"`
	CustomLabel0    string `json:" Custom Label 0"`
	CustomLabel1    string `json:" Custom Label 1"`
	CustomLabel2    string `json:" Custom Label 2"`
	CustomLabel3    string `json:" Custom Label 3"`
	CustomLabel4    string `json:" Custom Label 4"`
}

// OutputRecord is one flattened variant row in the storefront bulk-import
// schema. Most fields are fixed placeholders the importer expects verbatim.
type OutputRecord struct {
	Collection                string         `json:"Collection"`
	Handle                    string         `json:"Handle"`
	Title                     string         `json:"Title"`
	BodyHTML                  string         `json:"Body (HTML)"`
	Vendor                    string         `json:"Vendor"`
	Type                      string         `json:"Type"`
	Tags                      string         `json:"Tags"`
	Published                 bool           `json:"Published"`
	Option1Name               string         `json:"Option1 Name,omitempty"`
	Option1Value              string         `json:"Option1 Value"`
	Option2Name               string         `json:"Option2 Name,omitempty"`
	Option2Value              string         `json:"Option2 Value"`
	Option3Name               string         `json:"Option3 Name,omitempty"`
	Option3Value              string         `json:"Option3 Value"`
	VariantSKU                int            `json:"Variant SKU"`
	VariantGrams              int            `json:"Variant Grams"`
	VariantInventoryTracker   string         `json:"Variant Inventory Tracker"`
	VariantInventoryQty       int            `json:"Variant Inventory Qty"`
	VariantInventoryPolicy    string         `json:"Variant Inventory Policy"`
	VariantFulfillmentService string         `json:"Variant Fulfillment Service"`
	VariantPrice              float64        `json:"Variant Price"`
	VariantCompareAtPrice     int            `json:"Variant Compare At Price"`
	VariantRequiresShipping   bool           `json:"Variant Requires Shipping"`
	VariantTaxable            bool           `json:"Variant Taxable"`
	VariantBarcode            string         `json:"Variant Barcode"`
	ImageSrc                  string         `json:"Image Src"`
	ImagePosition             any            `json:"Image Position"`
	ImageAltText              string         `json:"Image Alt Text"`
	GiftCard                  bool           `json:"Gift Card"`
	SEOTitle                  string         `json:"SEO Title"`
	SEODescription            string         `json:"SEO Description"`
	GoogleShopping            GoogleShopping `json:"Google Shopping "`
	VariantImage              string         `json:"Variant Image"`
	VariantWeightUnit         string         `json:"Variant Weight Unit"`
	VariantTaxCode            string         `json:"Variant Tax Code"`
}

// CategoryResult summarizes one category run.
type CategoryResult struct {
	CategoryID    string
	CategoryLabel string
	PagesFetched  int
	ItemsSeen     int
	ItemsSkipped  int
	Duplicates    int
	RecordsOut    int
	Err           error
}

// RunResult aggregates category results for the end-of-run summary.
type RunResult struct {
	StartTime  time.Time
	EndTime    time.Time
	Categories []CategoryResult
}

// TotalRecords returns the record count across all categories.
func (r *RunResult) TotalRecords() int {
	total := 0
	for _, c := range r.Categories {
		total += c.RecordsOut
	}
	return total
}

// FailedCategories lists the labels of categories that ended with an error.
func (r *RunResult) FailedCategories() []string {
	var failed []string
	for _, c := range r.Categories {
		if c.Err != nil {
			failed = append(failed, c.CategoryLabel)
		}
	}
	return failed
}
