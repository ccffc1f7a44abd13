package repository

import (
	"context"

	repo "autoparts/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	orders       repo.OrderRepository
	orderItems   repo.OrderItemRepository
	timeline     repo.OrderTimelineRepository
	deliveryOtps repo.DeliveryOtpRepository
	carts        repo.CartRepository
	cartItems    repo.CartItemRepository
	inventory    repo.InventoryRepository
	products     repo.ProductRepository
}

func (r *txReposGorm) Orders() repo.OrderRepository             { return r.orders }
func (r *txReposGorm) OrderItems() repo.OrderItemRepository     { return r.orderItems }
func (r *txReposGorm) Timeline() repo.OrderTimelineRepository   { return r.timeline }
func (r *txReposGorm) DeliveryOtps() repo.DeliveryOtpRepository { return r.deliveryOtps }
func (r *txReposGorm) Carts() repo.CartRepository               { return r.carts }
func (r *txReposGorm) CartItems() repo.CartItemRepository       { return r.cartItems }
func (r *txReposGorm) Inventory() repo.InventoryRepository      { return r.inventory }
func (r *txReposGorm) Products() repo.ProductRepository         { return r.products }

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

// Tx外でも同じrepo群を使えるように（読み取り専用の処理など）
func NewTxRepos(db *gorm.DB) repo.TxRepos {
	return &txReposGorm{
		orders:       NewOrderGormRepository(db),
		orderItems:   NewOrderItemGormRepository(db),
		timeline:     NewOrderTimelineGormRepository(db),
		deliveryOtps: NewDeliveryOtpGormRepository(db),
		carts:        NewCartGormRepository(db),
		cartItems:    NewCartGormRepository(db),
		inventory:    NewInventoryGormRepository(db),
		products:     NewProductGormRepository(db),
	}
}

func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		return fn(NewTxRepos(tx))
	})
}
