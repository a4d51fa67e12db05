package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/tandir/internal/services"
)

// ReportsHandler serves aggregated figures. Responses always come from the
// incremental stats after a consistency check against the full recompute, so
// a diverged dashboard self-heals on the next request.
type ReportsHandler struct {
	reports *services.ReportService
	live    *services.LiveStats
}

// NewReportsHandler constructs ReportsHandler.
func NewReportsHandler(reports *services.ReportService, live *services.LiveStats) *ReportsHandler {
	return &ReportsHandler{reports: reports, live: live}
}

// Daily returns the summary for one business day (?date=YYYY-MM-DD, default
// today).
func (h *ReportsHandler) Daily(c *fiber.Ctx) error {
	day := c.Query("date", h.reports.DayKey(time.Now()))

	if _, err := h.live.Verify(day, h.reports); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": h.live.Daily(day, services.DefaultTopItems)})
}

// Monthly returns the revenue summary for one business month.
func (h *ReportsHandler) Monthly(c *fiber.Ctx) error {
	now := time.Now()
	year := parseQueryInt(c, "year", now.Year())
	month := parseQueryInt(c, "month", int(now.Month()))
	if month < 1 || month > 12 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid month")
	}

	summary, err := h.reports.RecomputeMonthly(year, time.Month(month))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": summary})
}

// TopItems returns the day's best sellers (?date=, ?limit=).
func (h *ReportsHandler) TopItems(c *fiber.Ctx) error {
	day := c.Query("date", h.reports.DayKey(time.Now()))
	limit := parseQueryInt(c, "limit", services.DefaultTopItems)

	items, err := h.reports.TopItemsForDay(day, limit)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": items})
}

func parseQueryInt(c *fiber.Ctx, key string, fallback int) int {
	if parsed, err := strconv.Atoi(c.Query(key)); err == nil {
		return parsed
	}
	return fallback
}
