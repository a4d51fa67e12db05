package services

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/tandir/internal/models"
)

const (
	placeholderPrefix  = "TMP-"
	allocationAttempts = 3
)

// Allocator assigns display order numbers. The insert happens under a unique
// placeholder so no sequential number is reserved before the row is known to
// commit; once the store returns the surrogate id the row is renamed to
// prefix + zero-padded id. Numbering therefore restarts at 1 whenever the
// underlying id sequence is reset.
type Allocator struct {
	db     *gorm.DB
	prefix string
}

// NewAllocator constructs an Allocator writing numbers with the given prefix.
func NewAllocator(db *gorm.DB, prefix string) *Allocator {
	return &Allocator{db: db, prefix: prefix}
}

// FinalNumber renders the display number for a surrogate id. The pad keeps
// string order equal to numeric order up to id 999999; past that the number
// simply grows a digit and string sorts must fall back to the id column.
func (a *Allocator) FinalNumber(id uint) string {
	return fmt.Sprintf("%s%06d", a.prefix, id)
}

func placeholderNumber() string {
	return fmt.Sprintf("%s%d-%s", placeholderPrefix, time.Now().UnixNano(), uuid.NewString()[:8])
}

// IsPlaceholder reports whether a display number is still a pre-rename
// placeholder.
func IsPlaceholder(number string) bool {
	return strings.HasPrefix(number, placeholderPrefix)
}

// Create inserts the order (and its items) under a fresh placeholder number,
// retrying on placeholder collisions, then renames the row to its final
// sequential number. A failed rename is non-fatal: the order stays valid
// under its placeholder and Reconcile repairs it later.
func (a *Allocator) Create(order *models.Order) error {
	inserted := false
	for attempt := 0; attempt < allocationAttempts; attempt++ {
		order.OrderNumber = placeholderNumber()
		err := a.db.Create(order).Error
		if err == nil {
			inserted = true
			break
		}
		if !isUniqueViolation(err) {
			return fmt.Errorf("insert order: %w", err)
		}
		log.Printf("[Numbering] %v, retrying (%d/%d)", ErrAllocationRace, attempt+1, allocationAttempts)
	}
	if !inserted {
		return ErrOrderCreationFailed
	}

	final := a.FinalNumber(order.ID)
	if err := a.db.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("order_number", final).Error; err != nil {
		log.Printf("[Numbering] %v: order %d keeps placeholder %s: %v",
			ErrNumberingReconcile, order.ID, order.OrderNumber, err)
		return nil
	}

	order.OrderNumber = final
	return nil
}

// ReconcileReport summarizes one consistency pass over placeholder-numbered
// orders.
type ReconcileReport struct {
	Scanned int `json:"scanned"`
	Renamed int `json:"renamed"`
	Failed  int `json:"failed"`
}

// Reconcile renames every order still carrying a placeholder number. Each
// failure is reported once and left for the next pass; the method never
// retries in a loop.
func (a *Allocator) Reconcile() (ReconcileReport, error) {
	var report ReconcileReport

	var orders []models.Order
	if err := a.db.Where("order_number LIKE ?", placeholderPrefix+"%").
		Order("id asc").Find(&orders).Error; err != nil {
		return report, fmt.Errorf("scan placeholders: %w", err)
	}

	report.Scanned = len(orders)
	for _, order := range orders {
		final := a.FinalNumber(order.ID)
		if err := a.db.Model(&models.Order{}).Where("id = ?", order.ID).
			Update("order_number", final).Error; err != nil {
			report.Failed++
			log.Printf("[Numbering] %v: order %d (%s): %v",
				ErrNumberingReconcile, order.ID, order.OrderNumber, err)
			continue
		}
		report.Renamed++
	}

	return report, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if err == gorm.ErrDuplicatedKey {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
