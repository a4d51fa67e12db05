package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/tandir/internal/middleware"
	"github.com/example/tandir/internal/models"
	"github.com/example/tandir/internal/services"
	"github.com/example/tandir/internal/utils"
)

// OrderHandler manages order endpoints.
type OrderHandler struct {
	db     *gorm.DB
	orders *services.OrderService
	alloc  *services.Allocator
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(db *gorm.DB, orders *services.OrderService, alloc *services.Allocator) *OrderHandler {
	return &OrderHandler{db: db, orders: orders, alloc: alloc}
}

// CreateOrder places a new order. When a staff member is authenticated the
// order is attributed to them; online orders may arrive without one.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	var input services.CreateOrderInput
	if err := c.BodyParser(&input); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if userID, ok := middleware.GetCurrentUserID(c); ok {
		input.EmployeeID = &userID
	} else if input.Channel != models.ChannelOnline {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	} else {
		input.EmployeeID = nil
	}

	order, err := h.orders.Create(input)
	if err != nil {
		return mapOrderError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"id":           order.ID,
			"order_number": order.OrderNumber,
			"channel":      order.Channel,
			"status":       order.Status,
			"total":        order.Total,
			"created_at":   order.CreatedAt,
		},
	})
}

// ListOrders returns orders, newest first, filtered by status or channel.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Order{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if channel := c.Query("channel"); channel != "" {
		query = query.Where("channel = ?", channel)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var orders []models.Order
	if err := query.Preload("Items").
		Order("created_at desc, id desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    orders,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// GetOrder returns a single order with its items.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	order, err := h.orders.Get(id)
	if err != nil {
		return mapOrderError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus advances an order along its channel path or cancels it.
func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var req statusRequest
	if err := c.BodyParser(&req); err != nil || req.Status == "" {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	var actor *uint
	if userID, ok := middleware.GetCurrentUserID(c); ok {
		actor = &userID
	}

	order, err := h.orders.Transition(id, req.Status, actor)
	if err != nil {
		return mapOrderError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

type paymentRequest struct {
	PaymentStatus string `json:"payment_status"`
}

// UpdatePayment sets the payment status, independent of the lifecycle.
func (h *OrderHandler) UpdatePayment(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var req paymentRequest
	if err := c.BodyParser(&req); err != nil || req.PaymentStatus == "" {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	order, err := h.orders.SetPaymentStatus(id, req.PaymentStatus)
	if err != nil {
		return mapOrderError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

// ReconcileNumbers runs the placeholder-number consistency pass.
func (h *OrderHandler) ReconcileNumbers(c *fiber.Ctx) error {
	report, err := h.alloc.Reconcile()
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": report})
}

func mapOrderError(err error) error {
	switch {
	case errors.Is(err, services.ErrOrderNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrInvalidTransition):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, services.ErrOrderCreationFailed):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, services.ErrInvalidChannel),
		errors.Is(err, services.ErrEmptyOrder),
		errors.Is(err, services.ErrInvalidQuantity),
		errors.Is(err, services.ErrMenuItemNotFound),
		errors.Is(err, services.ErrMenuItemUnavailable),
		errors.Is(err, services.ErrInvalidPaymentStatus),
		errors.Is(err, services.ErrPaymentNotFinalized):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return err
	}
}
