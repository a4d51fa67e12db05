package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/tandir/internal/models"
	"github.com/example/tandir/internal/utils"
)

// MenuHandler manages menu item endpoints.
type MenuHandler struct {
	db *gorm.DB
}

// NewMenuHandler constructs MenuHandler.
func NewMenuHandler(db *gorm.DB) *MenuHandler {
	return &MenuHandler{db: db}
}

type menuItemRequest struct {
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	CostOfGoods float64 `json:"cost_of_goods"`
	Available   *bool   `json:"available"`
}

// ListMenuItems returns the menu, optionally filtered by category.
func (h *MenuHandler) ListMenuItems(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.MenuItem{})

	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var items []models.MenuItem
	if err := query.Order("name asc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&items).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    items,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// CreateMenuItem adds a dish to the menu.
func (h *MenuHandler) CreateMenuItem(c *fiber.Ctx) error {
	var req menuItemRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.Name == "" || req.Price < 0 || req.CostOfGoods < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "missing or invalid fields")
	}

	item := models.MenuItem{
		Name:        req.Name,
		Category:    req.Category,
		Price:       req.Price,
		CostOfGoods: req.CostOfGoods,
		Available:   true,
	}
	if req.Available != nil {
		item.Available = *req.Available
	}

	if err := h.db.Create(&item).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": item})
}

// UpdateMenuItem edits a dish. Existing order lines keep their snapshots, so
// price or cost edits only affect future orders.
func (h *MenuHandler) UpdateMenuItem(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var item models.MenuItem
	if err := h.db.First(&item, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "menu item not found")
		}
		return err
	}

	var req menuItemRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.Name != "" {
		item.Name = req.Name
	}
	if req.Category != "" {
		item.Category = req.Category
	}
	if req.Price >= 0 {
		item.Price = req.Price
	}
	if req.CostOfGoods >= 0 {
		item.CostOfGoods = req.CostOfGoods
	}
	if req.Available != nil {
		item.Available = *req.Available
	}

	if err := h.db.Save(&item).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": item})
}

// DeleteMenuItem removes a dish from the menu.
func (h *MenuHandler) DeleteMenuItem(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	if err := h.db.Delete(&models.MenuItem{}, "id = ?", id).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true})
}

func parseID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	return uint(id), nil
}
