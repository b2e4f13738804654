package metrics

import (
	"context"
	"strconv"

	"github.com/alanchaparro/bi-sub000/internal/cartera/filter"
)

// Bucket is a collected-vs-due roll-up.
type Bucket struct {
	Contracts    int     `json:"contracts"`
	Paid         int     `json:"paid_contracts"`
	Due          float64 `json:"due"`
	Collected    float64 `json:"collected"`
	RecoveryRate float64 `json:"recovery_rate"`
}

func (b *Bucket) add(due, collected float64) {
	b.Contracts++
	b.Due += due
	b.Collected += collected
	if collected > 0 {
		b.Paid++
	}
}

func (b *Bucket) finish() {
	if b.Paid > b.Contracts {
		b.Paid = b.Contracts
	}
	b.RecoveryRate = ratio(b.Collected, b.Due)
}

func bucketFor(m map[string]*Bucket, key string) *Bucket {
	b, ok := m[key]
	if !ok {
		b = &Bucket{}
		m[key] = b
	}
	return b
}

func finishAll(m map[string]*Bucket) {
	for _, b := range m {
		b.finish()
	}
}

// TrendPoint is one management month: its roll-up plus the contract count per tramo.
type TrendPoint struct {
	Bucket
	Tramos map[string]int `json:"tramos"`
}

// MatrixCell counts contract-months and amount for one (collection channel, payment channel) pair.
type MatrixCell struct {
	Contracts int     `json:"contracts"`
	Amount    float64 `json:"amount"`
}

type PerformanceReport struct {
	Totals              Bucket                            `json:"totals"`
	ByTramo             map[string]*Bucket                `json:"by_tramo"`
	ByUnit              map[string]*Bucket                `json:"by_unit"`
	ByCollectionChannel map[string]*Bucket                `json:"by_collection_channel"`
	ByAgent             map[string]*Bucket                `json:"by_agent"`
	BySupervisor        map[string]*Bucket                `json:"by_supervisor"`
	ByPaymentChannel    map[string]*Bucket                `json:"by_payment_channel"`
	ChannelMatrix       map[string]map[string]*MatrixCell `json:"channel_matrix"`
	// PaymentChannels are the matrix columns: every payment channel in the collections
	// feed that the selection allows.
	PaymentChannels []string               `json:"payment_channels"`
	Trend           map[string]*TrendPoint `json:"trend"`
}

// Performance joins every filtered (contract, month) snapshot with what was collected
// for it that month and rolls collected vs due up by tramo, unit, collection channel,
// agent, supervisor and payment channel. Due is cuota plus overdue amount. With a
// payment channel filter only the amounts paid through the selected channels count.
func Performance(ctx context.Context, in Input, f filter.Compiled) (*PerformanceReport, error) {
	rep := &PerformanceReport{
		ByTramo:             make(map[string]*Bucket),
		ByUnit:              make(map[string]*Bucket),
		ByCollectionChannel: make(map[string]*Bucket),
		ByAgent:             make(map[string]*Bucket),
		BySupervisor:        make(map[string]*Bucket),
		ByPaymentChannel:    make(map[string]*Bucket),
		ChannelMatrix:       make(map[string]map[string]*MatrixCell),
		Trend:               make(map[string]*TrendPoint),
	}
	viaFilter := f.PaymentChannel.Active()

	err := in.eachFiltered(ctx, f, func(v resolved) {
		r := v.row
		due := r.CuotaAmount + r.OverdueAmount

		var collected float64
		if in.Collections != nil {
			if viaFilter {
				collected = in.Collections.AmountVia(r.ContractID, r.ManagementMonth, f.PaymentChannel.Allows)
			} else {
				collected = in.Collections.Amount(r.ContractID, r.ManagementMonth)
			}
		}

		tramo := strconv.Itoa(r.Tramo)
		rep.Totals.add(due, collected)
		bucketFor(rep.ByTramo, tramo).add(due, collected)
		bucketFor(rep.ByUnit, r.BusinessUnit).add(due, collected)
		bucketFor(rep.ByCollectionChannel, r.CollectionChannel).add(due, collected)
		bucketFor(rep.ByAgent, v.agent).add(due, collected)
		bucketFor(rep.BySupervisor, v.supervisor).add(due, collected)

		month := r.ManagementMonth.String()
		tp, ok := rep.Trend[month]
		if !ok {
			tp = &TrendPoint{Tramos: make(map[string]int)}
			rep.Trend[month] = tp
		}
		tp.add(due, collected)
		tp.Tramos[tramo]++

		if in.Collections == nil {
			return
		}
		row, ok := rep.ChannelMatrix[r.CollectionChannel]
		if !ok {
			row = make(map[string]*MatrixCell)
			rep.ChannelMatrix[r.CollectionChannel] = row
		}
		in.Collections.EachChannel(r.ContractID, r.ManagementMonth, func(ch string, amt float64) {
			if !f.PaymentChannel.Allows(ch) {
				return
			}
			bucketFor(rep.ByPaymentChannel, ch).add(due, amt)
			cell, ok := row[ch]
			if !ok {
				cell = &MatrixCell{}
				row[ch] = cell
			}
			cell.Contracts++
			cell.Amount += amt
		})
	})
	if err != nil {
		return nil, err
	}

	rep.Totals.finish()
	for _, m := range []map[string]*Bucket{rep.ByTramo, rep.ByUnit, rep.ByCollectionChannel, rep.ByAgent, rep.BySupervisor, rep.ByPaymentChannel} {
		finishAll(m)
	}
	for _, tp := range rep.Trend {
		tp.finish()
	}
	if in.Collections != nil {
		for _, ch := range in.Collections.Channels() {
			if f.PaymentChannel.Allows(ch) {
				rep.PaymentChannels = append(rep.PaymentChannels, ch)
			}
		}
	}
	return rep, nil
}
