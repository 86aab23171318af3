// Package pricing computes quantity-tiered unit prices from a product's
// compact wholesale schedule ("10,50#9.0,8.0": ascending quantity
// thresholds, matching unit prices).
package pricing

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// UnitPrice returns the unit price for buying num units at the given base
// price under schedule. The tier with the highest threshold <= num wins;
// below the first threshold the base price applies. A malformed schedule
// falls back to the base price — callers must not depend on schedule
// validity.
func UnitPrice(base decimal.Decimal, schedule string, num int) decimal.Decimal {
	nums, prices, ok := parse(schedule)
	if !ok {
		return base
	}
	price := base
	for i := range nums {
		if num < nums[i] {
			break
		}
		price = prices[i]
	}
	return price
}

// Tier is one human-readable pricing range for display ("1~9" at 10.00).
type Tier struct {
	Range string          `json:"range"`
	Price decimal.Decimal `json:"price"`
}

// Tiers derives the display ranges for a schedule, consistent with
// UnitPrice. Returns nil for an empty or malformed schedule.
func Tiers(base decimal.Decimal, schedule string) []Tier {
	nums, prices, ok := parse(schedule)
	if !ok {
		return nil
	}
	var tiers []Tier
	if nums[0] > 1 {
		tiers = append(tiers, Tier{Range: fmt.Sprintf("1~%d", nums[0]-1), Price: base})
	}
	for i := range nums {
		if i == len(nums)-1 {
			tiers = append(tiers, Tier{Range: fmt.Sprintf("%d~", nums[i]), Price: prices[i]})
			continue
		}
		tiers = append(tiers, Tier{Range: fmt.Sprintf("%d~%d", nums[i], nums[i+1]-1), Price: prices[i]})
	}
	return tiers
}

func parse(schedule string) (nums []int, prices []decimal.Decimal, ok bool) {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		return nil, nil, false
	}
	parts := strings.Split(schedule, "#")
	if len(parts) != 2 {
		return nil, nil, false
	}
	numStrs := strings.Split(parts[0], ",")
	priceStrs := strings.Split(parts[1], ",")
	if len(numStrs) != len(priceStrs) || len(numStrs) == 0 {
		return nil, nil, false
	}
	prev := 0
	for i := range numStrs {
		n, err := strconv.Atoi(strings.TrimSpace(numStrs[i]))
		if err != nil || n <= prev {
			// thresholds must be positive and strictly increasing
			return nil, nil, false
		}
		p, err := decimal.NewFromString(strings.TrimSpace(priceStrs[i]))
		if err != nil {
			return nil, nil, false
		}
		nums = append(nums, n)
		prices = append(prices, p)
		prev = n
	}
	return nums, prices, true
}
