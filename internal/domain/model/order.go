package model

import "time"

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "Pending"
	OrderStatusProcessing     OrderStatus = "Processing"
	OrderStatusShipped        OrderStatus = "Shipped"
	OrderStatusOutForDelivery OrderStatus = "Out for Delivery"
	OrderStatusDelivered      OrderStatus = "Delivered"
	OrderStatusCancelled      OrderStatus = "Cancelled"
)

// ステータスがenumのメンバーか
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusOutForDelivery, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// 終端ステータス（以後の変更は不可）
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// 注文。作成時スナップショット（statusのみ可変）。
// 住所はIDで参照する（コピーしない）。
type Order struct {
	ID        int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64       `gorm:"not null;index;uniqueIndex:idx_orders_user_idem" json:"user_id"`
	AddressID int64       `gorm:"not null" json:"address_id"`
	Status    OrderStatus `gorm:"type:varchar(30);not null;index" json:"status"`

	PaymentMethod string `gorm:"type:varchar(50);not null" json:"payment_method"`

	//作成時点の価格で確定（以後の価格変更の影響を受けない）
	Subtotal int64 `gorm:"not null" json:"subtotal"`
	Total    int64 `gorm:"not null" json:"total"`

	//二重送信防止キー（user内で一意）
	IdempotencyKey string `gorm:"type:varchar(255);not null;uniqueIndex:idx_orders_user_idem" json:"-"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
