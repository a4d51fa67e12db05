package services

import (
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/example/tandir/internal/lifecycle"
	"github.com/example/tandir/internal/models"
	"github.com/example/tandir/internal/realtime"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// A single connection keeps the in-memory database shared and serializes
	// concurrent writers the way the production store would.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to access sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.User{}, &models.MenuItem{}, &models.Order{}, &models.OrderItem{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

func seedMenuItem(t *testing.T, db *gorm.DB, name string, price, cost float64) models.MenuItem {
	t.Helper()

	item := models.MenuItem{Name: name, Category: "mains", Price: price, CostOfGoods: cost, Available: true}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("Failed to seed menu item: %v", err)
	}
	return item
}

// advance walks an order through the given statuses in sequence.
func advance(t *testing.T, svc *OrderService, orderID uint, statuses ...string) *models.Order {
	t.Helper()

	var order *models.Order
	var err error
	for _, status := range statuses {
		order, err = svc.Transition(orderID, status, nil)
		if err != nil {
			t.Fatalf("Transition to %s failed: %v", status, err)
		}
	}
	return order
}

// fulfill walks an order from pending to its channel's fulfilled terminal.
func fulfill(t *testing.T, svc *OrderService, order *models.Order) *models.Order {
	t.Helper()

	current := order.Status
	for {
		next, ok := lifecycle.NextStatus(order.Channel, current)
		if !ok {
			break
		}
		order = advance(t, svc, order.ID, next)
		current = next
	}
	return order
}

func timeUTC() *time.Location {
	return time.UTC
}

// capturePublisher records every published event for assertions.
type capturePublisher struct {
	events []realtime.OrderEvent
}

func (c *capturePublisher) Publish(ev realtime.OrderEvent) {
	c.events = append(c.events, ev)
}
