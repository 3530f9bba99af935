package repository

import (
	"context"

	"app/internal/domain/model"
)

type CartItemRepository interface {
	ListByUserID(ctx context.Context, userID int64) ([]model.CartItem, error)
	// 同一商品はプラス
	UpsertByUserAndProduct(ctx context.Context, userID int64, productID int64, addQty int64) (model.CartItem, error)
	UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error
	DeleteByID(ctx context.Context, cartItemID int64) error
	// 注文確定で消費した商品の明細を削除
	DeleteByUserAndProducts(ctx context.Context, userID int64, productIDs []int64) error
	FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error)
}
