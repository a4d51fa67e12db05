package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/example/tandir/internal/models"
	"github.com/example/tandir/internal/services"
)

func setupOrderTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to access sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.User{}, &models.MenuItem{}, &models.Order{}, &models.OrderItem{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	alloc := services.NewAllocator(db, "ORD-")
	orders := services.NewOrderService(db, alloc, nil, nil)
	handler := NewOrderHandler(db, orders, alloc)

	app := fiber.New()
	app.Post("/api/orders", handler.CreateOrder)
	app.Get("/api/orders", handler.ListOrders)
	app.Get("/api/orders/:id", handler.GetOrder)
	app.Patch("/api/orders/:id/status", handler.UpdateStatus)
	app.Patch("/api/orders/:id/payment", handler.UpdatePayment)
	app.Post("/api/orders/reconcile-numbers", handler.ReconcileNumbers)

	return app, db
}

func jsonRequest(t *testing.T, app *fiber.App, method, target string, body interface{}) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	return resp
}

func decodeData(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()

	var payload map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("Response should be valid JSON: %v", err)
	}
	data, _ := payload["data"].(map[string]interface{})
	return data
}

func TestCreateOnlineOrderWithoutAuth(t *testing.T) {
	app, db := setupOrderTestApp(t)

	item := models.MenuItem{Name: "Plov", Price: 10, CostOfGoods: 4, Available: true}
	assert.NoError(t, db.Create(&item).Error)

	resp := jsonRequest(t, app, http.MethodPost, "/api/orders", fiber.Map{
		"channel": models.ChannelOnline,
		"items":   []fiber.Map{{"menu_item_id": item.ID, "quantity": 2}},
	})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	data := decodeData(t, resp)
	assert.Equal(t, "ORD-000001", data["order_number"])
	assert.Equal(t, "pending", data["status"])
	assert.InDelta(t, 20.0, data["total"].(float64), 0.001)
}

func TestCreateStaffChannelOrderRequiresAuth(t *testing.T) {
	app, db := setupOrderTestApp(t)

	item := models.MenuItem{Name: "Tea", Price: 2, Available: true}
	assert.NoError(t, db.Create(&item).Error)

	resp := jsonRequest(t, app, http.MethodPost, "/api/orders", fiber.Map{
		"channel": models.ChannelDineIn,
		"items":   []fiber.Map{{"menu_item_id": item.ID, "quantity": 1}},
	})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestUpdateStatusRejectsInvalidTransition(t *testing.T) {
	app, db := setupOrderTestApp(t)

	item := models.MenuItem{Name: "Plov", Price: 10, Available: true}
	assert.NoError(t, db.Create(&item).Error)

	resp := jsonRequest(t, app, http.MethodPost, "/api/orders", fiber.Map{
		"channel": models.ChannelOnline,
		"items":   []fiber.Map{{"menu_item_id": item.ID, "quantity": 1}},
	})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	id := uint(decodeData(t, resp)["id"].(float64))

	// pending -> ready skips preparing
	resp = jsonRequest(t, app, http.MethodPatch, fmt.Sprintf("/api/orders/%d/status", id), fiber.Map{"status": "ready"})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	resp = jsonRequest(t, app, http.MethodPatch, fmt.Sprintf("/api/orders/%d/status", id), fiber.Map{"status": "preparing"})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "preparing", decodeData(t, resp)["status"])
}

func TestUpdatePaymentValidation(t *testing.T) {
	app, db := setupOrderTestApp(t)

	item := models.MenuItem{Name: "Plov", Price: 10, Available: true}
	assert.NoError(t, db.Create(&item).Error)

	resp := jsonRequest(t, app, http.MethodPost, "/api/orders", fiber.Map{
		"channel": models.ChannelOnline,
		"items":   []fiber.Map{{"menu_item_id": item.ID, "quantity": 1}},
	})
	id := uint(decodeData(t, resp)["id"].(float64))

	resp = jsonRequest(t, app, http.MethodPatch, fmt.Sprintf("/api/orders/%d/payment", id), fiber.Map{"payment_status": "comped"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = jsonRequest(t, app, http.MethodPatch, fmt.Sprintf("/api/orders/%d/payment", id), fiber.Map{"payment_status": "paid"})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "paid", decodeData(t, resp)["payment_status"])
}

func TestReconcileNumbersEndpoint(t *testing.T) {
	app, db := setupOrderTestApp(t)

	stranded := models.Order{Channel: models.ChannelDineIn, Status: "pending", OrderNumber: "TMP-123-deadbeef"}
	assert.NoError(t, db.Create(&stranded).Error)

	resp := jsonRequest(t, app, http.MethodPost, "/api/orders/reconcile-numbers", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	data := decodeData(t, resp)
	assert.Equal(t, 1.0, data["scanned"])
	assert.Equal(t, 1.0, data["renamed"])
	assert.Equal(t, 0.0, data["failed"])

	var repaired models.Order
	assert.NoError(t, db.First(&repaired, "id = ?", stranded.ID).Error)
	assert.Equal(t, fmt.Sprintf("ORD-%06d", stranded.ID), repaired.OrderNumber)
}
