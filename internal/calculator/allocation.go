// Package calculator computes per-participant bill allocations.
//
// The engine is a pure function over a snapshot of item ownerships: no I/O,
// no shared state, safe to re-run on every viewer independently. Given the
// same items it always produces the same mapping, regardless of input order.
package calculator

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tabscan/tabscan/internal/models"
	"github.com/tabscan/tabscan/internal/money"
)

// ClaimedItem is one claimed item inside an allocation.
type ClaimedItem struct {
	Name string          `json:"name"`
	Cost decimal.Decimal `json:"cost"`
}

// Allocation is one participant's share of the bill.
type Allocation struct {
	// PreTax is the sum of the participant's claimed item costs.
	PreTax decimal.Decimal `json:"pre_tax"`

	// TaxShare and TipShare are the participant's proportional parts of
	// the transaction tax and tip.
	TaxShare decimal.Decimal `json:"tax_share"`
	TipShare decimal.Decimal `json:"tip_share"`

	// Total is PreTax + TaxShare + TipShare.
	Total decimal.Decimal `json:"total"`

	// Items lists the claimed items behind PreTax.
	Items []ClaimedItem `json:"items"`
}

// ComputeAllocations groups claimed items by owner and splits tax and tip
// proportionally to each owner's pre-tax share. Unclaimed items belong to
// nobody until claimed and contribute to no allocation.
//
// Proportional shares are computed in cents and reconciled with the
// largest-remainder method, so the tax shares sum exactly to tax and the
// tip shares exactly to tip. Remainder cents go to the owners with the
// largest fractional parts, ties broken by nickname, which also makes the
// result independent of item order.
//
// An empty claim set yields an empty mapping.
func ComputeAllocations(items []models.Item, tax, tip decimal.Decimal) map[string]Allocation {
	preTax := make(map[string]decimal.Decimal)
	claimed := make(map[string][]ClaimedItem)
	for _, item := range items {
		if !item.Claimed() {
			continue
		}
		owner := models.NormalizeNickname(item.Owner)
		preTax[owner] = preTax[owner].Add(item.Cost)
		claimed[owner] = append(claimed[owner], ClaimedItem{Name: item.Name, Cost: item.Cost})
	}

	totalPreTax := decimal.Zero
	for _, amount := range preTax {
		totalPreTax = totalPreTax.Add(amount)
	}
	if totalPreTax.IsZero() {
		return map[string]Allocation{}
	}

	owners := make([]string, 0, len(preTax))
	for owner := range preTax {
		owners = append(owners, owner)
	}
	sort.Strings(owners)

	taxShares := apportion(owners, preTax, totalPreTax, tax)
	tipShares := apportion(owners, preTax, totalPreTax, tip)

	allocations := make(map[string]Allocation, len(owners))
	for _, owner := range owners {
		amount := preTax[owner]
		allocations[owner] = Allocation{
			PreTax:   amount,
			TaxShare: taxShares[owner],
			TipShare: tipShares[owner],
			Total:    money.Round2(amount.Add(taxShares[owner]).Add(tipShares[owner])),
			Items:    claimed[owner],
		}
	}
	return allocations
}

// apportion splits amount across owners proportionally to their pre-tax
// weights using the largest-remainder method. The returned shares sum
// exactly to amount rounded to cents.
func apportion(owners []string, weights map[string]decimal.Decimal, totalWeight, amount decimal.Decimal) map[string]decimal.Decimal {
	amountCents := money.Cents(amount)
	totalCents := money.Cents(totalWeight)

	shares := make(map[string]decimal.Decimal, len(owners))
	if totalCents == 0 {
		for _, owner := range owners {
			shares[owner] = decimal.Zero
		}
		return shares
	}

	type remainder struct {
		owner string
		frac  int64
	}
	floors := make(map[string]int64, len(owners))
	remainders := make([]remainder, 0, len(owners))
	assigned := int64(0)

	for _, owner := range owners {
		num := amountCents * money.Cents(weights[owner])
		floors[owner] = num / totalCents
		assigned += floors[owner]
		remainders = append(remainders, remainder{owner: owner, frac: num % totalCents})
	}

	// Hand out the leftover cents to the largest fractional parts.
	// Owners are pre-sorted, so equal fractions resolve deterministically.
	sort.SliceStable(remainders, func(i, j int) bool {
		return remainders[i].frac > remainders[j].frac
	})
	leftover := amountCents - assigned
	for i := int64(0); i < leftover; i++ {
		floors[remainders[i%int64(len(remainders))].owner]++
	}

	for _, owner := range owners {
		shares[owner] = money.FromCents(floors[owner])
	}
	return shares
}
