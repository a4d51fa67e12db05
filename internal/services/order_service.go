package services

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/example/tandir/internal/lifecycle"
	"github.com/example/tandir/internal/models"
	"github.com/example/tandir/internal/realtime"
)

// Publisher receives committed order events. *realtime.Hub satisfies it.
type Publisher interface {
	Publish(ev realtime.OrderEvent)
}

// OrderService owns the order write path: creation with number allocation,
// lifecycle transitions and payment-status updates. Every committed change is
// published exactly once, after the write lands.
type OrderService struct {
	db        *gorm.DB
	alloc     *Allocator
	publisher Publisher
	stats     *LiveStats
}

// NewOrderService constructs an OrderService. publisher and stats may be nil.
func NewOrderService(db *gorm.DB, alloc *Allocator, publisher Publisher, stats *LiveStats) *OrderService {
	return &OrderService{db: db, alloc: alloc, publisher: publisher, stats: stats}
}

// OrderLineInput is one requested line of a new order.
type OrderLineInput struct {
	MenuItemID uint `json:"menu_item_id"`
	Quantity   int  `json:"quantity"`
}

// CreateOrderInput carries everything needed to place an order.
type CreateOrderInput struct {
	Channel    string           `json:"channel"`
	Tax        float64          `json:"tax"`
	Discount   float64          `json:"discount"`
	EmployeeID *uint            `json:"employee_id"`
	Lines      []OrderLineInput `json:"items"`
}

// Create places a new order in status pending. Every line must reference an
// available menu item. Line items snapshot the menu item's name and cost of
// goods at this moment; later menu edits never touch the stored lines. Totals
// follow total = subtotal + tax - discount with subtotal summed over line
// totals.
func (s *OrderService) Create(input CreateOrderInput) (*models.Order, error) {
	if !lifecycle.ValidChannel(input.Channel) {
		return nil, ErrInvalidChannel
	}
	if len(input.Lines) == 0 {
		return nil, ErrEmptyOrder
	}

	order := models.Order{
		Channel:       input.Channel,
		Status:        lifecycle.StatusPending,
		PaymentStatus: models.PaymentPending,
		Tax:           round2(input.Tax),
		Discount:      round2(input.Discount),
		EmployeeID:    input.EmployeeID,
	}

	var subtotal float64
	for _, line := range input.Lines {
		if line.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}

		var item models.MenuItem
		if err := s.db.First(&item, "id = ?", line.MenuItemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrMenuItemNotFound
			}
			return nil, fmt.Errorf("load menu item: %w", err)
		}
		if !item.Available {
			return nil, fmt.Errorf("%w: %s", ErrMenuItemUnavailable, item.Name)
		}

		lineTotal := round2(item.Price * float64(line.Quantity))
		order.Items = append(order.Items, models.OrderItem{
			MenuItemID:  item.ID,
			Name:        item.Name,
			Quantity:    line.Quantity,
			UnitPrice:   item.Price,
			TotalPrice:  lineTotal,
			CostOfGoods: item.CostOfGoods,
		})
		subtotal += lineTotal
	}

	order.Subtotal = round2(subtotal)
	order.Total = round2(order.Subtotal + order.Tax - order.Discount)

	if err := s.alloc.Create(&order); err != nil {
		return nil, err
	}

	if s.stats != nil {
		s.stats.Apply(&order)
	}
	s.publish(realtime.OrderEvent{
		Type:        realtime.EventOrderCreated,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		Total:       order.Total,
		Channel:     order.Channel,
		EmployeeID:  order.EmployeeID,
		Timestamp:   time.Now().UTC(),
	})

	return &order, nil
}

// Transition moves an order to the target status. Only the channel path's
// immediate successor, or cancellation from a non-terminal state, is
// accepted; anything else returns ErrInvalidTransition and leaves the row
// unchanged. Entering a terminal state stamps CompletedAt exactly once.
func (s *OrderService) Transition(orderID uint, target string, actorID *uint) (*models.Order, error) {
	var order models.Order
	if err := s.db.Preload("Items").First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("load order: %w", err)
	}

	if !lifecycle.CanTransition(order.Channel, order.Status, target) {
		return nil, ErrInvalidTransition
	}

	updates := map[string]interface{}{"status": target}
	if lifecycle.IsTerminal(target) && order.CompletedAt == nil {
		now := time.Now().UTC()
		updates["completed_at"] = &now
	}

	// Guard on the previous status so a concurrent transition cannot be
	// silently overwritten.
	res := s.db.Model(&models.Order{}).
		Where("id = ? AND status = ?", order.ID, order.Status).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("update order status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrInvalidTransition
	}

	order.Status = target
	if v, ok := updates["completed_at"].(*time.Time); ok {
		order.CompletedAt = v
	}

	if s.stats != nil {
		s.stats.Apply(&order)
	}

	actor := actorID
	if actor == nil {
		actor = order.EmployeeID
	}
	s.publish(realtime.OrderEvent{
		Type:        realtime.EventStatusChanged,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		Total:       order.Total,
		Channel:     order.Channel,
		EmployeeID:  actor,
		Timestamp:   time.Now().UTC(),
	})

	return &order, nil
}

// SetPaymentStatus updates the payment field independently of the lifecycle.
// Marking an order paid requires a finalized (positive) total. Corrections on
// terminal orders are allowed.
func (s *OrderService) SetPaymentStatus(orderID uint, status string) (*models.Order, error) {
	switch status {
	case models.PaymentPending, models.PaymentPaid, models.PaymentRefunded:
	default:
		return nil, ErrInvalidPaymentStatus
	}

	var order models.Order
	if err := s.db.First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("load order: %w", err)
	}

	if status == models.PaymentPaid && order.Total <= 0 {
		return nil, ErrPaymentNotFinalized
	}

	if err := s.db.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("payment_status", status).Error; err != nil {
		return nil, fmt.Errorf("update payment status: %w", err)
	}

	order.PaymentStatus = status
	return &order, nil
}

// Get loads one order with its items.
func (s *OrderService) Get(orderID uint) (*models.Order, error) {
	var order models.Order
	if err := s.db.Preload("Items").First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("load order: %w", err)
	}
	return &order, nil
}

// Recent returns the newest orders with items, CreatedAt descending. This is
// the snapshot the live view bootstraps and re-synchronizes from.
func (s *OrderService) Recent(limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 200
	}
	var orders []models.Order
	if err := s.db.Preload("Items").
		Order("created_at desc, id desc").
		Limit(limit).Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("load recent orders: %w", err)
	}
	return orders, nil
}

func (s *OrderService) publish(ev realtime.OrderEvent) {
	if s.publisher != nil {
		s.publisher.Publish(ev)
	}
}

// round2 rounds to 2 decimal places, half away from zero. All money written
// to the store goes through this.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
