package models

import "time"

// MenuItem is a sellable dish. CostOfGoods is the current ingredient cost;
// order lines snapshot it at order time so later cost edits never rewrite
// historical profit.
type MenuItem struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:128" json:"name"`
	Category    string    `gorm:"size:64;index" json:"category"`
	Price       float64   `gorm:"type:decimal(10,2)" json:"price"`
	CostOfGoods float64   `gorm:"type:decimal(10,2)" json:"cost_of_goods"`
	Available   bool      `gorm:"default:true" json:"available"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
