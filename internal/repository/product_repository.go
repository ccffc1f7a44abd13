package repository

import (
	"context"

	"autoparts/internal/domain/model"

	"github.com/shopspring/decimal"
)

// 一覧検索
type ProductListQuery struct {
	Page       int
	Limit      int
	Q          string
	PartTypeID *int64
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Sort       string
	// 管理画面用。非公開商品も含める
	IncludeInactive bool
}

// 商品の永続化（保存・取得）だけを約束。
type ProductRepository interface {
	List(ctx context.Context, q ProductListQuery) ([]model.Product, int64, error)
	FindByID(ctx context.Context, id int64) (model.Product, error)
	FindByIDs(ctx context.Context, ids []int64) ([]model.Product, error)

	Create(ctx context.Context, p model.Product) (model.Product, error)
	CreateBulk(ctx context.Context, ps []model.Product) error
	Update(ctx context.Context, p model.Product) error
	SoftDelete(ctx context.Context, id int64) error
	SoftDeleteMany(ctx context.Context, ids []int64) (int64, error)
}

type PartTypeRepository interface {
	List(ctx context.Context) ([]model.PartType, error)
	Create(ctx context.Context, pt model.PartType) (model.PartType, error)
	Exists(ctx context.Context, id int64) (bool, error)
}
