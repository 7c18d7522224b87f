package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/store"
)

type MonthStat struct {
	Month   string  `json:"month"`
	Revenue float64 `json:"revenue"`
	Orders  int     `json:"orders"`
}

type Stats struct {
	TotalPayments     int         `json:"totalPayments"`
	TotalRevenue      float64     `json:"totalRevenue"`
	PaymentsToday     int         `json:"paymentsToday"`
	RevenueToday      float64     `json:"revenueToday"`
	PaymentsThisMonth int         `json:"paymentsThisMonth"`
	RevenueThisMonth  float64     `json:"revenueThisMonth"`
	PaymentsLastMonth int         `json:"paymentsLastMonth"`
	RevenueLastMonth  float64     `json:"revenueLastMonth"`
	AverageOrderValue float64     `json:"averageOrderValue"`
	Monthly           []MonthStat `json:"monthlyComparison"`
}

type bucket struct {
	n   int
	sum decimal.Decimal
}

func (b *bucket) add(v decimal.Decimal) {
	b.n++
	b.sum = b.sum.Add(v)
}

func money(d decimal.Decimal) float64 { return d.Round(2).InexactFloat64() }

// Stats aggregates completed payments relative to now, including a six month comparison.
func (s *Simulator) Stats(ctx context.Context, now time.Time) (Stats, error) {
	s.mu.Lock()
	payments, err := s.loadList(ctx, store.KeyCompletedPayments)
	s.mu.Unlock()
	if err != nil {
		return Stats{}, err
	}

	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	thisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	lastMonth := thisMonth.AddDate(0, -1, 0)

	months := make([]time.Time, 6)
	for i := range months {
		months[i] = thisMonth.AddDate(0, i-5, 0)
	}
	monthly := make([]bucket, 6)

	var all, day, cur, prev bucket
	for _, p := range payments {
		amt, err := decimal.NewFromString(p.Amount.Value)
		if err != nil {
			continue
		}
		at, err := time.Parse(time.RFC3339, p.CreateTime)
		if err != nil {
			continue
		}
		at = at.In(loc)

		all.add(amt)
		if !at.Before(today) && at.Before(today.AddDate(0, 0, 1)) {
			day.add(amt)
		}
		if !at.Before(thisMonth) && at.Before(thisMonth.AddDate(0, 1, 0)) {
			cur.add(amt)
		}
		if !at.Before(lastMonth) && at.Before(thisMonth) {
			prev.add(amt)
		}
		for i, start := range months {
			if !at.Before(start) && at.Before(start.AddDate(0, 1, 0)) {
				monthly[i].add(amt)
			}
		}
	}

	st := Stats{
		TotalPayments:     all.n,
		TotalRevenue:      money(all.sum),
		PaymentsToday:     day.n,
		RevenueToday:      money(day.sum),
		PaymentsThisMonth: cur.n,
		RevenueThisMonth:  money(cur.sum),
		PaymentsLastMonth: prev.n,
		RevenueLastMonth:  money(prev.sum),
		Monthly:           make([]MonthStat, 0, len(months)),
	}
	if all.n > 0 {
		st.AverageOrderValue = money(all.sum.Div(decimal.NewFromInt(int64(all.n))))
	}
	for i, start := range months {
		st.Monthly = append(st.Monthly, MonthStat{
			Month:   start.Format("2006-01"),
			Revenue: money(monthly[i].sum),
			Orders:  monthly[i].n,
		})
	}
	return st, nil
}
