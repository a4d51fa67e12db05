package models

import "time"

// Order channels. The channel fixes which terminal state ends the lifecycle.
const (
	ChannelDineIn   = "dine_in"
	ChannelTakeaway = "takeaway"
	ChannelDelivery = "delivery"
	ChannelOnline   = "online"
)

// Payment statuses, orthogonal to the lifecycle status.
const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentRefunded = "refunded"
)

// Order is the financial record of a sale. Rows are never deleted; a
// cancelled order stays in the log with status "cancelled".
//
// ID is the store-assigned surrogate and is strictly increasing across
// inserts. OrderNumber is the display identifier derived from it after the
// insert commits (see services.Allocator); until the rename lands it holds a
// unique placeholder.
type Order struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	OrderNumber   string      `gorm:"uniqueIndex;size:64" json:"order_number"`
	Channel       string      `gorm:"size:16;index" json:"channel"`
	Status        string      `gorm:"size:24;index" json:"status"`
	PaymentStatus string      `gorm:"size:16;default:pending" json:"payment_status"`
	Subtotal      float64     `gorm:"type:decimal(10,2)" json:"subtotal"`
	Tax           float64     `gorm:"type:decimal(10,2)" json:"tax"`
	Discount      float64     `gorm:"type:decimal(10,2)" json:"discount"`
	Total         float64     `gorm:"type:decimal(10,2)" json:"total"`
	EmployeeID    *uint       `gorm:"index" json:"employee_id"`
	Employee      *User       `json:"employee,omitempty"`
	CreatedAt     time.Time   `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	CompletedAt   *time.Time  `json:"completed_at"`
	Items         []OrderItem `json:"items,omitempty"`
}

// OrderItem is one line of an order. Name and CostOfGoods are copied from the
// menu item when the order is placed; they are point-in-time snapshots, not
// references.
type OrderItem struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	OrderID     uint    `gorm:"index" json:"order_id"`
	MenuItemID  uint    `gorm:"index" json:"menu_item_id"`
	Name        string  `gorm:"size:128" json:"name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `gorm:"type:decimal(10,2)" json:"unit_price"`
	TotalPrice  float64 `gorm:"type:decimal(10,2)" json:"total_price"`
	CostOfGoods float64 `gorm:"type:decimal(10,2)" json:"cost_of_goods"`
}
