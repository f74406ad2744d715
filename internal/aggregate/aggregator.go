// Package aggregate collapses sync queue items into per-ASIN feed entries.
package aggregate

import (
	"sort"

	"resellhub-api/internal/model"

	"github.com/shopspring/decimal"
)

// Result holds the outcome of one aggregation pass. Entries are the ASINs
// ready for submission; Conflicts are the ASINs blocked by price
// disagreement.
type Result struct {
	Entries   []model.AggregatedEntry `json:"entries"`
	Conflicts []model.PriceConflict   `json:"conflicts"`
}

// Aggregate groups queue items by ASIN, summing quantities. If all items in
// a group agree on desired price the group becomes an entry; otherwise it is
// reported as a conflict and excluded. Pure and deterministic: the same
// queue snapshot yields the same result regardless of input order.
func Aggregate(items []model.SyncQueueItem) Result {
	groups := make(map[string][]model.SyncQueueItem)
	for _, item := range items {
		groups[item.ASIN] = append(groups[item.ASIN], item)
	}

	asins := make([]string, 0, len(groups))
	for asin := range groups {
		asins = append(asins, asin)
	}
	sort.Strings(asins)

	var result Result
	for _, asin := range asins {
		group := groups[asin]
		sort.Slice(group, func(i, j int) bool {
			if !group[i].AddedAt.Equal(group[j].AddedAt) {
				return group[i].AddedAt.Before(group[j].AddedAt)
			}
			return group[i].ID < group[j].ID
		})

		if prices := distinctPrices(group); len(prices) > 1 {
			result.Conflicts = append(result.Conflicts, model.PriceConflict{
				ASIN:   asin,
				Prices: prices,
				Items:  group,
			})
			continue
		}

		quantity := 0
		for _, item := range group {
			quantity += item.DesiredQuantity
		}
		result.Entries = append(result.Entries, model.AggregatedEntry{
			ASIN:     asin,
			Items:    group,
			Quantity: quantity,
			Price:    group[0].DesiredPrice,
		})
	}
	return result
}

// distinctPrices returns the distinct desired prices within a group, sorted
// ascending. Decimal equality ignores exponent representation, so 19.99 and
// 19.990 are the same price.
func distinctPrices(group []model.SyncQueueItem) []decimal.Decimal {
	var prices []decimal.Decimal
	for _, item := range group {
		seen := false
		for _, p := range prices {
			if p.Equal(item.DesiredPrice) {
				seen = true
				break
			}
		}
		if !seen {
			prices = append(prices, item.DesiredPrice)
		}
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i].LessThan(prices[j]) })
	return prices
}
