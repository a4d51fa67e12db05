package services

import (
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/example/tandir/internal/lifecycle"
	"github.com/example/tandir/internal/models"
)

// divergenceTolerance is the largest per-figure difference between the
// incremental and recomputed numbers that still counts as agreement.
const divergenceTolerance = 0.01

// LiveStats maintains the same figures as ReportService, updated in place as
// orders arrive and transition. It feeds live dashboards; it is an
// optimization over the log, never a second source of truth. Verify detects
// drift and rebuilds the affected day from the log.
type LiveStats struct {
	mu   sync.Mutex
	loc  *time.Location
	days map[string]*dayAccum
}

type dayAccum struct {
	counts      map[string]int
	totalOrders int
	revenue     float64
	cost        float64
	top         *topAccumulator
	lastBucket  map[uint]string
}

// NewLiveStats constructs an empty accumulator grouping days in loc.
func NewLiveStats(loc *time.Location) *LiveStats {
	return &LiveStats{loc: loc, days: make(map[string]*dayAccum)}
}

func newDayAccum() *dayAccum {
	counts := make(map[string]int, len(lifecycle.Buckets))
	for _, b := range lifecycle.Buckets {
		counts[b] = 0
	}
	return &dayAccum{
		counts:     counts,
		top:        newTopAccumulator(),
		lastBucket: make(map[uint]string),
	}
}

// Apply folds one committed order state into the day it belongs to. Calling
// it again with the same state is a no-op, so replaying an event after a
// reconnect cannot double-count.
func (l *LiveStats) Apply(order *models.Order) {
	l.mu.Lock()
	defer l.mu.Unlock()

	day := order.CreatedAt.In(l.loc).Format("2006-01-02")
	acc, ok := l.days[day]
	if !ok {
		acc = newDayAccum()
		l.days[day] = acc
	}

	bucket := lifecycle.Bucket(order.Status)
	prev, seen := acc.lastBucket[order.ID]
	if !seen {
		acc.counts[bucket]++
		acc.totalOrders++
	} else if prev != bucket {
		acc.counts[prev]--
		acc.counts[bucket]++
	} else {
		return
	}
	acc.lastBucket[order.ID] = bucket

	wasFulfilled := seen && prev == lifecycle.BucketServed
	isFulfilled := bucket == lifecycle.BucketServed
	switch {
	case isFulfilled && !wasFulfilled:
		acc.revenue = round2(acc.revenue + order.Total)
		acc.cost = round2(acc.cost + OrderCost(order))
		acc.top.add(order.Items)
	case wasFulfilled && !isFulfilled:
		acc.revenue = round2(acc.revenue - order.Total)
		acc.cost = round2(acc.cost - OrderCost(order))
		acc.top.remove(order.Items)
	}
}

// Daily returns the incremental summary for a business day.
func (l *LiveStats) Daily(day string, topN int) *DailySummary {
	l.mu.Lock()
	defer l.mu.Unlock()

	summary := newDailySummary(day)
	acc, ok := l.days[day]
	if !ok {
		return summary
	}

	for b, n := range acc.counts {
		summary.StatusCounts[b] = n
	}
	summary.TotalOrders = acc.totalOrders
	summary.Revenue = acc.revenue
	summary.Cost = acc.cost
	summary.Profit = round2(acc.revenue - acc.cost)
	summary.Margin = Margin(summary.Profit, summary.Revenue)
	summary.TopItems = acc.top.ranked(topN)
	return summary
}

// MonthRevenue sums the tracked days of a business month (YYYY-MM).
func (l *LiveStats) MonthRevenue(month string) *MonthlySummary {
	l.mu.Lock()
	defer l.mu.Unlock()

	summary := &MonthlySummary{Month: month}
	for day, acc := range l.days {
		if !strings.HasPrefix(day, month+"-") {
			continue
		}
		summary.TotalOrders += acc.totalOrders
		summary.Revenue = round2(summary.Revenue + acc.revenue)
		summary.Cost = round2(summary.Cost + acc.cost)
	}
	summary.Profit = round2(summary.Revenue - summary.Cost)
	summary.Margin = Margin(summary.Profit, summary.Revenue)
	return summary
}

// Reset drops one day's incremental state.
func (l *LiveStats) Reset(day string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.days, day)
}

// Verify compares the incremental figures for a day against a full recompute
// from the log. On divergence beyond tolerance the day is rebuilt from the
// recomputed orders and false is returned; callers never surface this to end
// users.
func (l *LiveStats) Verify(day string, reports *ReportService) (bool, error) {
	authoritative, err := reports.RecomputeDaily(day, DefaultTopItems)
	if err != nil {
		return false, err
	}

	live := l.Daily(day, DefaultTopItems)
	if summariesAgree(live, authoritative) {
		return true, nil
	}

	log.Printf("[Reports] %v for %s: live revenue=%.2f recompute=%.2f, rebuilding",
		ErrAggregationInconsistency, day, live.Revenue, authoritative.Revenue)
	if err := l.Rebuild(day, reports); err != nil {
		return false, err
	}
	return false, nil
}

// Rebuild replaces one day's incremental state from the authoritative log.
func (l *LiveStats) Rebuild(day string, reports *ReportService) error {
	start, end, err := reports.dayWindow(day)
	if err != nil {
		return err
	}
	orders, err := reports.ordersBetween(start, end)
	if err != nil {
		return err
	}

	l.Reset(day)
	for i := range orders {
		l.Apply(&orders[i])
	}
	return nil
}

func summariesAgree(a, b *DailySummary) bool {
	if a.TotalOrders != b.TotalOrders {
		return false
	}
	for _, bucket := range lifecycle.Buckets {
		if a.StatusCounts[bucket] != b.StatusCounts[bucket] {
			return false
		}
	}
	return math.Abs(a.Revenue-b.Revenue) <= divergenceTolerance &&
		math.Abs(a.Cost-b.Cost) <= divergenceTolerance &&
		math.Abs(a.Profit-b.Profit) <= divergenceTolerance
}
