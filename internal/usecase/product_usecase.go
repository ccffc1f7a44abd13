package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"autoparts/internal/domain/model"
	repo "autoparts/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ProductUsecase struct {
	productRepo   repo.ProductRepository
	partTypeRepo  repo.PartTypeRepository
	inventoryRepo repo.InventoryRepository
	cache         ProductCache
	clock         Clock
	logger        *zap.Logger
}

// DI
func NewProductUsecase(
	productRepo repo.ProductRepository,
	partTypeRepo repo.PartTypeRepository,
	inventoryRepo repo.InventoryRepository,
	cache ProductCache,
	clock Clock,
	logger *zap.Logger,
) *ProductUsecase {
	return &ProductUsecase{
		productRepo:   productRepo,
		partTypeRepo:  partTypeRepo,
		inventoryRepo: inventoryRepo,
		cache:         cache,
		clock:         clock,
		logger:        logger,
	}
}

// GET /productsの入力DTO
type ListProductsInput struct {
	Page       int
	Limit      int
	Q          string
	PartTypeID *int64
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Sort       string
	// 管理画面
	IncludeInactive bool
}

type ProductListOutput struct {
	Items []model.Product `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

// 作成・インポートの1行
type ProductInput struct {
	Name        string           `json:"name"`
	SKU         string           `json:"sku"`
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Quantity    int64            `json:"quantity"`
	ImageURL    string           `json:"image_url"`
	PartTypeID  *int64           `json:"part_type_id"`
	IsActive    *bool            `json:"is_active"`
}

// 部分更新。nilは変更しない。
type ProductPatch struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Quantity    *int64           `json:"quantity"`
	ImageURL    *string          `json:"image_url"`
	PartTypeID  *int64           `json:"part_type_id"`
	IsActive    *bool            `json:"is_active"`
}

func (u *ProductUsecase) ListProducts(ctx context.Context, in ListProductsInput) (ProductListOutput, error) {
	if in.Page < 1 {
		return ProductListOutput{}, badRequest("invalid page")
	}
	if in.Limit < 1 || in.Limit > 100 {
		return ProductListOutput{}, badRequest("invalid limit")
	}
	if len(in.Q) > 100 {
		return ProductListOutput{}, badRequest("search too long")
	}
	if in.MinPrice != nil && in.MinPrice.IsNegative() {
		return ProductListOutput{}, badRequest("min_price must be >= 0")
	}
	if in.MaxPrice != nil && in.MaxPrice.IsNegative() {
		return ProductListOutput{}, badRequest("max_price must be >= 0")
	}
	if in.MinPrice != nil && in.MaxPrice != nil && in.MinPrice.GreaterThan(*in.MaxPrice) {
		return ProductListOutput{}, badRequest("min_price must be <= max_price")
	}
	switch in.Sort {
	case "", "new", "price_asc", "price_desc", "name":
	default:
		return ProductListOutput{}, badRequest("invalid sort")
	}

	items, total, err := u.productRepo.List(ctx, repo.ProductListQuery{
		Page:            in.Page,
		Limit:           in.Limit,
		Q:               strings.TrimSpace(in.Q),
		PartTypeID:      in.PartTypeID,
		MinPrice:        in.MinPrice,
		MaxPrice:        in.MaxPrice,
		Sort:            in.Sort,
		IncludeInactive: in.IncludeInactive,
	})
	if err != nil {
		return ProductListOutput{}, dbError(err)
	}

	return ProductListOutput{
		Items: items,
		Total: total,
		Page:  in.Page,
		Limit: in.Limit,
	}, nil
}

// 詳細はキャッシュ優先。キャッシュの失敗はDBにフォールバック。
func (u *ProductUsecase) GetProductDetail(ctx context.Context, productID int64) (model.Product, error) {
	if productID <= 0 {
		return model.Product{}, badRequest("invalid product id")
	}

	if p, ok, err := u.cache.Get(ctx, productID); err != nil {
		u.logger.Warn("product cache get failed", zap.Int64("product_id", productID), zap.Error(err))
	} else if ok {
		if !p.IsActive {
			return model.Product{}, notFound("product not found")
		}
		return p, nil
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, notFound("product not found")
	}
	if err != nil {
		return model.Product{}, dbError(err)
	}

	if err := u.cache.Set(ctx, p); err != nil {
		u.logger.Warn("product cache set failed", zap.Int64("product_id", productID), zap.Error(err))
	}

	if !p.IsActive {
		return model.Product{}, notFound("product not found")
	}
	return p, nil
}

func (u *ProductUsecase) AdminCreateProduct(ctx context.Context, adminUserID int64, in ProductInput) (model.Product, error) {
	if adminUserID <= 0 {
		return model.Product{}, unauthorized()
	}
	p, err := u.productFromInput(ctx, in)
	if err != nil {
		return model.Product{}, err
	}

	created, err := u.productRepo.Create(ctx, p)
	if errors.Is(err, repo.ErrDuplicate) {
		return model.Product{}, badRequest("sku already exists")
	}
	if err != nil {
		return model.Product{}, dbError(err)
	}

	u.logger.Info("product created", zap.Int64("product_id", created.ID), zap.Int64("admin_id", adminUserID))
	return created, nil
}

func (u *ProductUsecase) AdminUpdateProduct(ctx context.Context, adminUserID int64, productID int64, in ProductPatch) (model.Product, error) {
	if adminUserID <= 0 {
		return model.Product{}, unauthorized()
	}
	if productID <= 0 {
		return model.Product{}, badRequest("invalid product id")
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, notFound("product not found")
	}
	if err != nil {
		return model.Product{}, dbError(err)
	}
	before := p.Quantity

	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return model.Product{}, badRequest("name required")
		}
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Price != nil {
		if in.Price.IsNegative() {
			return model.Product{}, badRequest("price must be >= 0")
		}
		p.Price = in.Price.Round(2)
	}
	if in.Quantity != nil {
		if *in.Quantity < 0 {
			return model.Product{}, badRequest("quantity must be >= 0")
		}
		p.Quantity = *in.Quantity
	}
	if in.ImageURL != nil {
		p.ImageURL = strings.TrimSpace(*in.ImageURL)
	}
	if in.PartTypeID != nil {
		if err := u.checkPartType(ctx, *in.PartTypeID); err != nil {
			return model.Product{}, err
		}
		p.PartTypeID = in.PartTypeID
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	p.UpdatedAt = u.clock.Now()

	err = u.productRepo.Update(ctx, p)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, notFound("product not found")
	}
	if err != nil {
		return model.Product{}, dbError(err)
	}

	//数量を直接変えたときも履歴を残す
	if p.Quantity != before {
		if err := u.inventoryRepo.CreateAdjustment(ctx, model.InventoryAdjustment{
			ProductID:      p.ID,
			AdminUserID:    adminUserID,
			QuantityBefore: before,
			QuantityAfter:  p.Quantity,
			Delta:          p.Quantity - before,
			Reason:         "product update",
			CreatedAt:      p.UpdatedAt,
		}); err != nil {
			return model.Product{}, dbError(err)
		}
	}

	u.invalidate(ctx, productID)
	return p, nil
}

func (u *ProductUsecase) AdminDeleteProduct(ctx context.Context, adminUserID int64, productID int64) error {
	if adminUserID <= 0 {
		return unauthorized()
	}
	if productID <= 0 {
		return badRequest("invalid product id")
	}

	err := u.productRepo.SoftDelete(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return notFound("product not found")
	}
	if err != nil {
		return dbError(err)
	}

	u.invalidate(ctx, productID)
	return nil
}

func (u *ProductUsecase) AdminDeleteProducts(ctx context.Context, adminUserID int64, ids []int64) (int64, error) {
	if adminUserID <= 0 {
		return 0, unauthorized()
	}
	if len(ids) == 0 {
		return 0, badRequest("ids required")
	}
	for _, id := range ids {
		if id <= 0 {
			return 0, badRequest("invalid product id")
		}
	}

	n, err := u.productRepo.SoftDeleteMany(ctx, ids)
	if err != nil {
		return 0, dbError(err)
	}

	u.invalidate(ctx, ids...)
	return n, nil
}

// JSON配列の一括登録。1行でも不正なら何も登録しない。
func (u *ProductUsecase) ImportProducts(ctx context.Context, adminUserID int64, rows []ProductInput) (int, error) {
	if adminUserID <= 0 {
		return 0, unauthorized()
	}
	if len(rows) == 0 {
		return 0, badRequest("no products to import")
	}
	if len(rows) > 5000 {
		return 0, badRequest("too many products (max 5000)")
	}

	products := make([]model.Product, 0, len(rows))
	skus := make(map[string]int, len(rows))

	for i, row := range rows {
		p, err := u.productFromInput(ctx, row)
		if err != nil {
			if he, ok := AsHTTPError(err); ok {
				return 0, badRequest(fmt.Sprintf("row %d: %s", i+1, he.Message))
			}
			return 0, err
		}
		if p.SKU != "" {
			if prev, dup := skus[p.SKU]; dup {
				return 0, badRequest(fmt.Sprintf("row %d: sku %q duplicates row %d", i+1, p.SKU, prev))
			}
			skus[p.SKU] = i + 1
		}
		products = append(products, p)
	}

	err := u.productRepo.CreateBulk(ctx, products)
	if errors.Is(err, repo.ErrDuplicate) {
		return 0, badRequest("sku already exists")
	}
	if err != nil {
		return 0, dbError(err)
	}

	u.logger.Info("products imported", zap.Int("count", len(products)), zap.Int64("admin_id", adminUserID))
	return len(products), nil
}

func (u *ProductUsecase) ListPartTypes(ctx context.Context) ([]model.PartType, error) {
	list, err := u.partTypeRepo.List(ctx)
	if err != nil {
		return nil, dbError(err)
	}
	return list, nil
}

func (u *ProductUsecase) CreatePartType(ctx context.Context, adminUserID int64, name string) (model.PartType, error) {
	if adminUserID <= 0 {
		return model.PartType{}, unauthorized()
	}
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 100 {
		return model.PartType{}, badRequest("invalid name")
	}

	pt, err := u.partTypeRepo.Create(ctx, model.PartType{Name: name, CreatedAt: u.clock.Now()})
	if errors.Is(err, repo.ErrDuplicate) {
		return model.PartType{}, badRequest("part type already exists")
	}
	if err != nil {
		return model.PartType{}, dbError(err)
	}
	return pt, nil
}

// 在庫数の上書き＋調整履歴
func (u *ProductUsecase) AdminUpdateInventory(ctx context.Context, adminUserID int64, productID int64, newStock int64, reason string) error {
	if adminUserID <= 0 {
		return unauthorized()
	}
	if productID <= 0 {
		return badRequest("invalid product id")
	}
	if newStock < 0 {
		return badRequest("quantity must be >= 0")
	}
	if strings.TrimSpace(reason) == "" {
		return badRequest("reason required")
	}

	//変更前の在庫（before）
	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return notFound("product not found")
	}
	if err != nil {
		return dbError(err)
	}

	if err := u.inventoryRepo.SetStock(ctx, productID, newStock); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return notFound("product not found")
		}
		return dbError(err)
	}

	//履歴を作成（差分）
	if err := u.inventoryRepo.CreateAdjustment(ctx, model.InventoryAdjustment{
		ProductID:      productID,
		AdminUserID:    adminUserID,
		QuantityBefore: p.Quantity,
		QuantityAfter:  newStock,
		Delta:          newStock - p.Quantity,
		Reason:         strings.TrimSpace(reason),
		CreatedAt:      u.clock.Now(),
	}); err != nil {
		return dbError(err)
	}

	u.invalidate(ctx, productID)
	u.logger.Info("stock updated",
		zap.Int64("product_id", productID),
		zap.Int64("admin_id", adminUserID),
		zap.Int64("before", p.Quantity),
		zap.Int64("after", newStock),
	)
	return nil
}

func (u *ProductUsecase) productFromInput(ctx context.Context, in ProductInput) (model.Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Product{}, badRequest("name required")
	}
	if len(name) > 255 {
		return model.Product{}, badRequest("name too long")
	}
	if in.Price == nil {
		return model.Product{}, badRequest("price required")
	}
	if in.Price.IsNegative() {
		return model.Product{}, badRequest("price must be >= 0")
	}
	if in.Quantity < 0 {
		return model.Product{}, badRequest("quantity must be >= 0")
	}
	if in.PartTypeID != nil {
		if err := u.checkPartType(ctx, *in.PartTypeID); err != nil {
			return model.Product{}, err
		}
	}

	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	now := u.clock.Now()

	return model.Product{
		Name:        name,
		SKU:         strings.TrimSpace(in.SKU),
		Description: in.Description,
		Price:       in.Price.Round(2),
		Quantity:    in.Quantity,
		ImageURL:    strings.TrimSpace(in.ImageURL),
		PartTypeID:  in.PartTypeID,
		IsActive:    active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (u *ProductUsecase) checkPartType(ctx context.Context, id int64) error {
	if id <= 0 {
		return badRequest("invalid part_type_id")
	}
	ok, err := u.partTypeRepo.Exists(ctx, id)
	if err != nil {
		return dbError(err)
	}
	if !ok {
		return badRequest("unknown part_type_id")
	}
	return nil
}

func (u *ProductUsecase) invalidate(ctx context.Context, ids ...int64) {
	if err := u.cache.Delete(ctx, ids...); err != nil {
		u.logger.Warn("product cache delete failed", zap.Int64s("product_ids", ids), zap.Error(err))
	}
}
