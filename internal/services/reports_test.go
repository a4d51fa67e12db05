package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/example/tandir/internal/lifecycle"
	"github.com/example/tandir/internal/models"
)

func TestDayRevenueCountsOnlyServedOrders(t *testing.T) {
	// Scenario: three dine-in orders (100, 200, 300); the second is
	// cancelled, the other two are served; day revenue must be 400.
	db := setupTestDB(t)
	svc := NewOrderService(db, NewAllocator(db, "ORD-"), nil, nil)
	reports := NewReportService(db, time.UTC)

	var orders []*models.Order
	for _, price := range []float64{100, 200, 300} {
		item := seedMenuItem(t, db, "Set", price, 0)
		order, err := svc.Create(CreateOrderInput{
			Channel: models.ChannelDineIn,
			Lines:   []OrderLineInput{{MenuItemID: item.ID, Quantity: 1}},
		})
		assert.NoError(t, err)
		orders = append(orders, order)
	}

	day := reports.DayKey(time.Now())

	advance(t, svc, orders[1].ID, lifecycle.StatusCancelled)
	summary, err := reports.RecomputeDaily(day, DefaultTopItems)
	assert.NoError(t, err)
	assert.InDelta(t, 0.0, summary.Revenue, 0.001, "no revenue before anything is served")

	fulfill(t, svc, orders[0])
	fulfill(t, svc, orders[2])
	summary, err = reports.RecomputeDaily(day, DefaultTopItems)
	assert.NoError(t, err)
	assert.InDelta(t, 400.0, summary.Revenue, 0.001)
	assert.Equal(t, 2, summary.StatusCounts[lifecycle.BucketServed])
	assert.Equal(t, 1, summary.StatusCounts[lifecycle.BucketCancelled])
}

func TestCostProfitMargin(t *testing.T) {
	// Scenario: quantity 2 at unit price 10 with cost-of-goods 4 -> cost 8,
	// profit 12, margin 60%.
	db := setupTestDB(t)
	svc := NewOrderService(db, NewAllocator(db, "ORD-"), nil, nil)
	reports := NewReportService(db, time.UTC)

	item := seedMenuItem(t, db, "Plov", 10, 4)
	order, err := svc.Create(CreateOrderInput{
		Channel: models.ChannelDineIn,
		Lines:   []OrderLineInput{{MenuItemID: item.ID, Quantity: 2}},
	})
	assert.NoError(t, err)
	fulfill(t, svc, order)

	day := reports.DayKey(time.Now())
	summary, err := reports.RecomputeDaily(day, DefaultTopItems)
	assert.NoError(t, err)
	assert.InDelta(t, 20.0, summary.Revenue, 0.001)
	assert.InDelta(t, 8.0, summary.Cost, 0.001)
	assert.InDelta(t, 12.0, summary.Profit, 0.001)
	assert.InDelta(t, 60.0, summary.Margin, 0.001)
}

func TestMarginZeroWhenRevenueZero(t *testing.T) {
	assert.Equal(t, 0.0, Margin(0, 0))
	assert.Equal(t, 0.0, Margin(12, 0))
}

func TestBucketCountsSumToTotal(t *testing.T) {
	db := setupTestDB(t)
	svc := NewOrderService(db, NewAllocator(db, "ORD-"), nil, nil)
	reports := NewReportService(db, time.UTC)
	item := seedMenuItem(t, db, "Tea", 2, 0.5)

	mk := func(channel string) *models.Order {
		order, err := svc.Create(CreateOrderInput{
			Channel: channel,
			Lines:   []OrderLineInput{{MenuItemID: item.ID, Quantity: 1}},
		})
		assert.NoError(t, err)
		return order
	}

	// A mix of raw statuses across channels, including the channel-specific
	// terminal labels that all land in the served bucket.
	mk(models.ChannelDineIn) // stays pending
	advance(t, svc, mk(models.ChannelDineIn).ID, lifecycle.StatusPreparing)
	advance(t, svc, mk(models.ChannelTakeaway).ID, lifecycle.StatusPreparing, lifecycle.StatusReady)
	fulfill(t, svc, mk(models.ChannelDineIn))   // served
	fulfill(t, svc, mk(models.ChannelTakeaway)) // completed
	fulfill(t, svc, mk(models.ChannelDelivery)) // delivered
	advance(t, svc, mk(models.ChannelOnline).ID, lifecycle.StatusPreparing, lifecycle.StatusReady, lifecycle.StatusOutForDelivery)
	advance(t, svc, mk(models.ChannelOnline).ID, lifecycle.StatusCancelled)

	day := reports.DayKey(time.Now())
	summary, err := reports.RecomputeDaily(day, DefaultTopItems)
	assert.NoError(t, err)

	sum := 0
	for _, bucket := range lifecycle.Buckets {
		sum += summary.StatusCounts[bucket]
	}
	assert.Equal(t, summary.TotalOrders, sum)
	assert.Equal(t, 8, summary.TotalOrders)
	assert.Equal(t, 3, summary.StatusCounts[lifecycle.BucketServed])
	assert.Equal(t, 2, summary.StatusCounts[lifecycle.BucketReady]) // ready + out_for_delivery
}

func TestTopItemsRankedWithStableTies(t *testing.T) {
	db := setupTestDB(t)
	svc := NewOrderService(db, NewAllocator(db, "ORD-"), nil, nil)
	reports := NewReportService(db, time.UTC)

	plov := seedMenuItem(t, db, "Plov", 10, 4)
	lagman := seedMenuItem(t, db, "Lagman", 8, 3)
	samsa := seedMenuItem(t, db, "Samsa", 3, 1)

	order, err := svc.Create(CreateOrderInput{
		Channel: models.ChannelDineIn,
		Lines: []OrderLineInput{
			{MenuItemID: plov.ID, Quantity: 2},
			{MenuItemID: lagman.ID, Quantity: 5},
			{MenuItemID: samsa.ID, Quantity: 2},
		},
	})
	assert.NoError(t, err)
	fulfill(t, svc, order)

	// A pending order sells nothing yet.
	_, err = svc.Create(CreateOrderInput{
		Channel: models.ChannelDineIn,
		Lines:   []OrderLineInput{{MenuItemID: samsa.ID, Quantity: 50}},
	})
	assert.NoError(t, err)

	day := reports.DayKey(time.Now())
	top, err := reports.TopItemsForDay(day, 5)
	assert.NoError(t, err)
	assert.Len(t, top, 3)
	assert.Equal(t, "Lagman", top[0].Name)
	assert.Equal(t, 5, top[0].Quantity)
	// Plov and Samsa tie at 2; Plov was seen first.
	assert.Equal(t, "Plov", top[1].Name)
	assert.Equal(t, "Samsa", top[2].Name)

	top, err = reports.TopItemsForDay(day, 2)
	assert.NoError(t, err)
	assert.Len(t, top, 2)
}

func TestMonthlyRevenue(t *testing.T) {
	db := setupTestDB(t)
	svc := NewOrderService(db, NewAllocator(db, "ORD-"), nil, nil)
	reports := NewReportService(db, time.UTC)
	item := seedMenuItem(t, db, "Plov", 10, 4)

	order, err := svc.Create(CreateOrderInput{
		Channel: models.ChannelDineIn,
		Lines:   []OrderLineInput{{MenuItemID: item.ID, Quantity: 3}},
	})
	assert.NoError(t, err)
	fulfill(t, svc, order)

	now := time.Now().UTC()
	summary, err := reports.RecomputeMonthly(now.Year(), now.Month())
	assert.NoError(t, err)
	assert.Equal(t, 1, summary.TotalOrders)
	assert.InDelta(t, 30.0, summary.Revenue, 0.001)
	assert.InDelta(t, 12.0, summary.Cost, 0.001)
	assert.InDelta(t, 18.0, summary.Profit, 0.001)
}

func TestIncrementalAgreesWithRecompute(t *testing.T) {
	db := setupTestDB(t)
	live := NewLiveStats(time.UTC)
	svc := NewOrderService(db, NewAllocator(db, "ORD-"), nil, live)
	reports := NewReportService(db, time.UTC)

	plov := seedMenuItem(t, db, "Plov", 10, 4)
	tea := seedMenuItem(t, db, "Tea", 2, 0.5)

	o1, err := svc.Create(CreateOrderInput{
		Channel: models.ChannelDineIn,
		Lines:   []OrderLineInput{{MenuItemID: plov.ID, Quantity: 2}, {MenuItemID: tea.ID, Quantity: 1}},
	})
	assert.NoError(t, err)
	o2, err := svc.Create(CreateOrderInput{
		Channel: models.ChannelTakeaway,
		Lines:   []OrderLineInput{{MenuItemID: tea.ID, Quantity: 4}},
	})
	assert.NoError(t, err)
	o3, err := svc.Create(CreateOrderInput{
		Channel: models.ChannelDelivery,
		Lines:   []OrderLineInput{{MenuItemID: plov.ID, Quantity: 1}},
	})
	assert.NoError(t, err)

	fulfill(t, svc, o1)
	fulfill(t, svc, o2)
	advance(t, svc, o3.ID, lifecycle.StatusPreparing, lifecycle.StatusCancelled)

	day := reports.DayKey(time.Now())
	authoritative, err := reports.RecomputeDaily(day, DefaultTopItems)
	assert.NoError(t, err)
	incremental := live.Daily(day, DefaultTopItems)

	assert.Equal(t, authoritative.TotalOrders, incremental.TotalOrders)
	assert.Equal(t, authoritative.StatusCounts, incremental.StatusCounts)
	assert.InDelta(t, authoritative.Revenue, incremental.Revenue, 0.001)
	assert.InDelta(t, authoritative.Cost, incremental.Cost, 0.001)
	assert.InDelta(t, authoritative.Profit, incremental.Profit, 0.001)
	assert.Equal(t, authoritative.TopItems, incremental.TopItems)

	ok, err := live.Verify(day, reports)
	assert.NoError(t, err)
	assert.True(t, ok)

	// Monthly figures agree too.
	month := reports.MonthKey(time.Now())
	now := time.Now().UTC()
	monthly, err := reports.RecomputeMonthly(now.Year(), now.Month())
	assert.NoError(t, err)
	liveMonthly := live.MonthRevenue(month)
	assert.InDelta(t, monthly.Revenue, liveMonthly.Revenue, 0.001)
	assert.Equal(t, monthly.TotalOrders, liveMonthly.TotalOrders)
}

func TestApplyIsIdempotentPerState(t *testing.T) {
	live := NewLiveStats(time.UTC)
	order := &models.Order{
		ID:        1,
		Status:    lifecycle.StatusServed,
		Total:     20,
		CreatedAt: time.Now().UTC(),
		Items:     []models.OrderItem{{MenuItemID: 1, Name: "Plov", Quantity: 2, CostOfGoods: 4}},
	}

	live.Apply(order)
	live.Apply(order) // replay after reconnect
	summary := live.Daily(order.CreatedAt.UTC().Format("2006-01-02"), DefaultTopItems)
	assert.Equal(t, 1, summary.TotalOrders)
	assert.InDelta(t, 20.0, summary.Revenue, 0.001)
	assert.InDelta(t, 8.0, summary.Cost, 0.001)
}

func TestVerifyRebuildsOnDivergence(t *testing.T) {
	db := setupTestDB(t)
	live := NewLiveStats(time.UTC)
	svc := NewOrderService(db, NewAllocator(db, "ORD-"), nil, live)
	reports := NewReportService(db, time.UTC)
	item := seedMenuItem(t, db, "Plov", 10, 4)

	order, err := svc.Create(CreateOrderInput{
		Channel: models.ChannelDineIn,
		Lines:   []OrderLineInput{{MenuItemID: item.ID, Quantity: 1}},
	})
	assert.NoError(t, err)
	fulfill(t, svc, order)

	// Poison the incremental state with an order the log never saw.
	live.Apply(&models.Order{
		ID:        9999,
		Status:    lifecycle.StatusServed,
		Total:     500,
		CreatedAt: time.Now().UTC(),
	})

	day := reports.DayKey(time.Now())
	ok, err := live.Verify(day, reports)
	assert.NoError(t, err)
	assert.False(t, ok, "divergence must be detected")

	// After the rebuild the incremental path matches the log again.
	authoritative, err := reports.RecomputeDaily(day, DefaultTopItems)
	assert.NoError(t, err)
	rebuilt := live.Daily(day, DefaultTopItems)
	assert.Equal(t, authoritative.TotalOrders, rebuilt.TotalOrders)
	assert.InDelta(t, authoritative.Revenue, rebuilt.Revenue, 0.001)

	ok, err = live.Verify(day, reports)
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestCancelAfterServedRemovesRevenue(t *testing.T) {
	// The lifecycle forbids leaving served, but the incremental engine is
	// defined for any bucket move; a rebuilt day must equal a replayed one.
	live := NewLiveStats(time.UTC)
	created := time.Now().UTC()
	order := &models.Order{ID: 7, Status: lifecycle.StatusServed, Total: 50, CreatedAt: created,
		Items: []models.OrderItem{{MenuItemID: 3, Name: "Manty", Quantity: 5, CostOfGoods: 2}}}
	live.Apply(order)

	day := created.Format("2006-01-02")
	assert.InDelta(t, 50.0, live.Daily(day, DefaultTopItems).Revenue, 0.001)

	order.Status = lifecycle.StatusCancelled
	live.Apply(order)
	summary := live.Daily(day, DefaultTopItems)
	assert.InDelta(t, 0.0, summary.Revenue, 0.001)
	assert.InDelta(t, 0.0, summary.Cost, 0.001)
	assert.Empty(t, summary.TopItems)
	assert.Equal(t, 1, summary.StatusCounts[lifecycle.BucketCancelled])
}
