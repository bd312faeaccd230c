// Package transform flattens raw product detail payloads into storefront
// bulk-import records.
package transform

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/thepicksmart/wish-harvest/models"
)

const (
	// markupBase and markupFactor implement the fixed sale-price formula
	// (price + 14) * 2, applied in the upstream currency unit.
	markupBase   = 14.0
	markupFactor = 2.0

	// compareAtMargin reconstructs the "discounted from" price from the
	// upstream retail price assuming a 30% margin.
	compareAtMargin = 0.7

	descriptionClass = "product-description"
)

// Options carries the per-run transformation parameters.
type Options struct {
	CategoryLabel string
	Vendor        string
	// PriceFloor excludes variations at or below this price. When the
	// first variation falls at or below the floor the whole product is
	// rejected: a cheap lead variation marks the listing as filler.
	PriceFloor float64
}

// Records maps one product detail payload into zero or more import records,
// one per qualifying variation, in variation order.
func Records(detail *models.ProductDetail, opts Options) []models.OutputRecord {
	contest := detail.Data.Contest
	images := imageList(contest)
	variations := contest.CommerceProductInfo.Variations

	body := descriptionHTML(contest.Description)

	records := make([]models.OutputRecord, 0, len(variations))
	position := 1
	for index, variation := range variations {
		if variation.Price <= opts.PriceFloor {
			if index == 0 {
				break
			}
			continue
		}

		imageSrc := ""
		if index < len(images) {
			imageSrc = images[index]
		}
		var imagePosition any = ""
		if imageSrc != "" {
			imagePosition = position
			position++
		}

		record := models.OutputRecord{
			Collection:                opts.CategoryLabel,
			Handle:                    strings.ToLower(contest.MetaTitle),
			Title:                     contest.MetaTitle,
			BodyHTML:                  body,
			Vendor:                    opts.Vendor,
			Published:                 true,
			Option1Value:              variation.Size,
			Option2Value:              variation.Color,
			VariantInventoryQty:       variation.Inventory,
			VariantInventoryPolicy:    "deny",
			VariantFulfillmentService: "manual",
			VariantPrice:              (variation.Price + markupBase) * markupFactor,
			VariantCompareAtPrice:     int(math.Round(variation.RetailPrice / compareAtMargin)),
			ImageSrc:                  imageSrc,
			ImagePosition:             imagePosition,
			VariantWeightUnit:         "kg",
		}
		if variation.Size != "" {
			record.Option1Name = "Size"
		}
		if variation.Color != "" {
			record.Option2Name = "Color"
		}
		records = append(records, record)
	}
	return records
}

// imageList builds the ordered candidate images for variant alignment: the
// auxiliary photos with their "small" size marker rewritten to "large",
// primary image prepended. Without auxiliaries the primary stands alone.
// Auxiliary keys are sorted numerically so re-runs stay deterministic.
func imageList(contest models.Contest) []string {
	if len(contest.ExtraPhotoURLs) == 0 {
		return []string{contest.SelectedPicture}
	}

	keys := make([]string, 0, len(contest.ExtraPhotoURLs))
	for key := range contest.ExtraPhotoURLs {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		left, errL := strconv.Atoi(keys[i])
		right, errR := strconv.Atoi(keys[j])
		if errL == nil && errR == nil {
			return left < right
		}
		return keys[i] < keys[j]
	})

	images := make([]string, 0, len(keys)+1)
	images = append(images, contest.SelectedPicture)
	for _, key := range keys {
		images = append(images, strings.ReplaceAll(contest.ExtraPhotoURLs[key], "small", "large"))
	}
	return images
}

// descriptionHTML wraps the listing description in the import template's
// paragraph markup, converting newlines to line breaks.
func descriptionHTML(description string) string {
	escaped := strings.ReplaceAll(description, "\n", "<br>")
	return `<p class="` + descriptionClass + `">` + escaped + `</p>`
}
