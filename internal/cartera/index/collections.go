// Package index builds the lookup structures the calculators join against. Every
// structure is built in one pass and is read-only afterwards; accessors never hand
// out the internal maps.
package index

import (
	"context"
	"sort"

	"github.com/alanchaparro/bi-sub000/internal/cartera/period"
	"github.com/alanchaparro/bi-sub000/internal/cartera/types"
	"github.com/alanchaparro/bi-sub000/internal/cartera/yield"
)

// Key is the composite (contract, month) join key.
type Key struct {
	Contract string
	Month    period.Month
}

// Detail splits the amount collected for one key by payment channel.
type Detail struct {
	Total     float64
	ByChannel map[string]float64
}

// Collections indexes collection transactions three ways: total per key, total plus
// per-channel split per key, and contract -> month -> amount for cumulative sums.
type Collections struct {
	byKeyAmount     map[Key]float64
	byKeyDetailed   map[Key]*Detail
	byContractMonth map[string]map[period.Month]float64
	monthsOf        map[string][]period.Month
	channels        []string
	rows            int
}

func BuildCollections(ctx context.Context, txs []types.CollectionTransaction) (*Collections, error) {
	c := &Collections{
		byKeyAmount:     make(map[Key]float64),
		byKeyDetailed:   make(map[Key]*Detail),
		byContractMonth: make(map[string]map[period.Month]float64),
		monthsOf:        make(map[string][]period.Month),
		rows:            len(txs),
	}
	seen := make(map[string]struct{})

	for i := range txs {
		if err := yield.Every(ctx, i); err != nil {
			return nil, err
		}
		tx := &txs[i]
		k := Key{Contract: tx.ContractID, Month: tx.TransactionMonth}

		c.byKeyAmount[k] += tx.Amount

		d, ok := c.byKeyDetailed[k]
		if !ok {
			d = &Detail{ByChannel: make(map[string]float64, 1)}
			c.byKeyDetailed[k] = d
		}
		d.Total += tx.Amount
		d.ByChannel[tx.PaymentChannel] += tx.Amount

		months, ok := c.byContractMonth[tx.ContractID]
		if !ok {
			months = make(map[period.Month]float64)
			c.byContractMonth[tx.ContractID] = months
		}
		months[tx.TransactionMonth] += tx.Amount

		if _, ok := seen[tx.PaymentChannel]; !ok {
			seen[tx.PaymentChannel] = struct{}{}
			c.channels = append(c.channels, tx.PaymentChannel)
		}
	}
	sort.Strings(c.channels)

	// sorted month lists keep float sums in a fixed order
	for id, months := range c.byContractMonth {
		list := make([]period.Month, 0, len(months))
		for m := range months {
			list = append(list, m)
		}
		sort.Slice(list, func(a, b int) bool { return list[a] < list[b] })
		c.monthsOf[id] = list
	}
	return c, nil
}

// Rows is the number of transactions indexed.
func (c *Collections) Rows() int { return c.rows }

// Amount is the total collected for contract in month.
func (c *Collections) Amount(contract string, month period.Month) float64 {
	return c.byKeyAmount[Key{Contract: contract, Month: month}]
}

// AmountVia is the amount collected for contract in month through the accepted
// payment channels only.
func (c *Collections) AmountVia(contract string, month period.Month, accept func(channel string) bool) float64 {
	var sum float64
	c.EachChannel(contract, month, func(ch string, amt float64) {
		if accept(ch) {
			sum += amt
		}
	})
	return sum
}

// EachChannel calls fn for every payment channel used for contract in month, in
// channel order.
func (c *Collections) EachChannel(contract string, month period.Month, fn func(channel string, amount float64)) {
	d, ok := c.byKeyDetailed[Key{Contract: contract, Month: month}]
	if !ok {
		return
	}
	names := make([]string, 0, len(d.ByChannel))
	for ch := range d.ByChannel {
		names = append(names, ch)
	}
	sort.Strings(names)
	for _, ch := range names {
		fn(ch, d.ByChannel[ch])
	}
}

// Cumulative sums what contract paid from month from through month to, inclusive.
func (c *Collections) Cumulative(contract string, from, to period.Month) float64 {
	months, ok := c.byContractMonth[contract]
	if !ok || !from.Known() || !to.Known() || from > to {
		return 0
	}
	list := c.monthsOf[contract]
	var sum float64
	for i := sort.Search(len(list), func(i int) bool { return list[i] >= from }); i < len(list) && list[i] <= to; i++ {
		sum += months[list[i]]
	}
	return sum
}

// Channels lists every payment channel seen, sorted.
func (c *Collections) Channels() []string {
	return append([]string(nil), c.channels...)
}
