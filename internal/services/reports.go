package services

import (
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/example/tandir/internal/lifecycle"
	"github.com/example/tandir/internal/models"
)

// DefaultTopItems is the top-seller list length when the caller does not ask
// for a specific one.
const DefaultTopItems = 5

// TopItem is one entry of a day's best-seller ranking.
type TopItem struct {
	MenuItemID uint   `json:"menu_item_id"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
}

// DailySummary holds the aggregated figures for one business day. Revenue,
// cost and profit count only fulfilled (served-bucket) orders; cancelled and
// in-flight orders contribute zero.
type DailySummary struct {
	Day          string         `json:"day"`
	TotalOrders  int            `json:"total_orders"`
	StatusCounts map[string]int `json:"status_counts"`
	Revenue      float64        `json:"revenue"`
	Cost         float64        `json:"cost"`
	Profit       float64        `json:"profit"`
	Margin       float64        `json:"margin"`
	TopItems     []TopItem      `json:"top_items"`
}

// MonthlySummary holds the same revenue figures partitioned by month.
type MonthlySummary struct {
	Month       string  `json:"month"`
	TotalOrders int     `json:"total_orders"`
	Revenue     float64 `json:"revenue"`
	Cost        float64 `json:"cost"`
	Profit      float64 `json:"profit"`
	Margin      float64 `json:"margin"`
}

// ReportService computes aggregates with a single pass over the authoritative
// order log. It is the source of truth the incremental LiveStats is checked
// against. Queries are read-only and safe to re-run.
type ReportService struct {
	db  *gorm.DB
	loc *time.Location
}

// NewReportService constructs a ReportService grouping days in loc, the fixed
// business-day zone.
func NewReportService(db *gorm.DB, loc *time.Location) *ReportService {
	return &ReportService{db: db, loc: loc}
}

// DayKey renders t's business day as YYYY-MM-DD.
func (s *ReportService) DayKey(t time.Time) string {
	return t.In(s.loc).Format("2006-01-02")
}

// MonthKey renders t's business month as YYYY-MM.
func (s *ReportService) MonthKey(t time.Time) string {
	return t.In(s.loc).Format("2006-01")
}

// OrderCost sums quantity x cost-of-goods over the order's line snapshots.
func OrderCost(order *models.Order) float64 {
	var cost float64
	for _, item := range order.Items {
		cost += float64(item.Quantity) * item.CostOfGoods
	}
	return round2(cost)
}

// OrderProfit is total minus the snapshot cost of all lines.
func OrderProfit(order *models.Order) float64 {
	return round2(order.Total - OrderCost(order))
}

// Margin is profit over revenue as a percentage, 0 when revenue is 0.
func Margin(profit, revenue float64) float64 {
	if revenue == 0 {
		return 0
	}
	return round2(profit / revenue * 100)
}

// RecomputeDaily builds the full summary for one business day (YYYY-MM-DD)
// from the order log.
func (s *ReportService) RecomputeDaily(day string, topN int) (*DailySummary, error) {
	start, end, err := s.dayWindow(day)
	if err != nil {
		return nil, err
	}

	orders, err := s.ordersBetween(start, end)
	if err != nil {
		return nil, err
	}

	summary := newDailySummary(day)
	top := newTopAccumulator()
	for i := range orders {
		order := &orders[i]
		bucket := lifecycle.Bucket(order.Status)
		summary.StatusCounts[bucket]++
		summary.TotalOrders++

		if bucket != lifecycle.BucketServed {
			continue
		}
		summary.Revenue += order.Total
		summary.Cost += OrderCost(order)
		top.add(order.Items)
	}

	summary.Revenue = round2(summary.Revenue)
	summary.Cost = round2(summary.Cost)
	summary.Profit = round2(summary.Revenue - summary.Cost)
	summary.Margin = Margin(summary.Profit, summary.Revenue)
	summary.TopItems = top.ranked(topN)
	return summary, nil
}

// RecomputeMonthly builds the revenue summary for one business month.
func (s *ReportService) RecomputeMonthly(year int, month time.Month) (*MonthlySummary, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, s.loc)
	end := start.AddDate(0, 1, 0)

	orders, err := s.ordersBetween(start, end)
	if err != nil {
		return nil, err
	}

	summary := &MonthlySummary{Month: start.Format("2006-01")}
	for i := range orders {
		order := &orders[i]
		summary.TotalOrders++
		if !lifecycle.Fulfilled(order.Status) {
			continue
		}
		summary.Revenue += order.Total
		summary.Cost += OrderCost(order)
	}

	summary.Revenue = round2(summary.Revenue)
	summary.Cost = round2(summary.Cost)
	summary.Profit = round2(summary.Revenue - summary.Cost)
	summary.Margin = Margin(summary.Profit, summary.Revenue)
	return summary, nil
}

// TopItemsForDay ranks the day's fulfilled line items by summed quantity.
// Ties keep first-seen order.
func (s *ReportService) TopItemsForDay(day string, n int) ([]TopItem, error) {
	summary, err := s.RecomputeDaily(day, n)
	if err != nil {
		return nil, err
	}
	return summary.TopItems, nil
}

func (s *ReportService) dayWindow(day string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation("2006-01-02", day, s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse day %q: %w", day, err)
	}
	return start, start.Add(24 * time.Hour), nil
}

func (s *ReportService) ordersBetween(start, end time.Time) ([]models.Order, error) {
	var orders []models.Order
	if err := s.db.Preload("Items").
		Where("created_at >= ? AND created_at < ?", start.UTC(), end.UTC()).
		Order("id asc").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}
	return orders, nil
}

func newDailySummary(day string) *DailySummary {
	counts := make(map[string]int, len(lifecycle.Buckets))
	for _, b := range lifecycle.Buckets {
		counts[b] = 0
	}
	return &DailySummary{Day: day, StatusCounts: counts, TopItems: []TopItem{}}
}

// topAccumulator keeps per-item quantities plus first-seen order for stable
// tie breaking.
type topAccumulator struct {
	order []uint
	qty   map[uint]int
	names map[uint]string
}

func newTopAccumulator() *topAccumulator {
	return &topAccumulator{qty: make(map[uint]int), names: make(map[uint]string)}
}

func (t *topAccumulator) add(items []models.OrderItem) {
	for _, item := range items {
		if _, seen := t.qty[item.MenuItemID]; !seen {
			t.order = append(t.order, item.MenuItemID)
			t.names[item.MenuItemID] = item.Name
		}
		t.qty[item.MenuItemID] += item.Quantity
	}
}

func (t *topAccumulator) remove(items []models.OrderItem) {
	for _, item := range items {
		t.qty[item.MenuItemID] -= item.Quantity
	}
}

func (t *topAccumulator) ranked(n int) []TopItem {
	if n <= 0 {
		n = DefaultTopItems
	}
	ranked := make([]TopItem, 0, len(t.order))
	for _, id := range t.order {
		if t.qty[id] <= 0 {
			continue
		}
		ranked = append(ranked, TopItem{MenuItemID: id, Name: t.names[id], Quantity: t.qty[id]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Quantity > ranked[j].Quantity
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
