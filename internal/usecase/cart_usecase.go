package usecase

import (
	"context"
	"errors"
	"net/http"

	"autoparts/internal/domain/model"
	repo "autoparts/internal/repository"

	"github.com/shopspring/decimal"
)

// CartUsecase は /cart の業務ロジックです。
// カート操作では在庫を見ない（在庫はチェックアウト時に確定する）。
type CartUsecase struct {
	cartRepo     repo.CartRepository
	cartItemRepo repo.CartItemRepository
	productRepo  repo.ProductRepository
}

func NewCartUsecase(
	cartRepo repo.CartRepository,
	cartItemRepo repo.CartItemRepository,
	productRepo repo.ProductRepository,
) *CartUsecase {
	return &CartUsecase{
		cartRepo:     cartRepo,
		cartItemRepo: cartItemRepo,
		productRepo:  productRepo,
	}
}

// price は追加時点の価格を返します。
type CartItemResponse struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	ImageURL  string          `json:"image_url"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int64           `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type CartResponse struct {
	CartID int64              `json:"cart_id"`
	Items  []CartItemResponse `json:"items"`
	Total  decimal.Decimal    `json:"total"`
}

type AddCartInput struct {
	ProductID int64
	Quantity  int64
}

type CartLineInput struct {
	ProductID int64
	Quantity  int64
}

// GetCart はカート取得（無ければ作って空を返す）。
func (u *CartUsecase) GetCart(ctx context.Context, userID int64) (CartResponse, error) {
	cart, err := u.cart(ctx, userID)
	if err != nil {
		return CartResponse{}, err
	}
	return u.buildCartResponse(ctx, cart.ID)
}

// AddToCart はカートに追加（同一商品は数量加算、価格は最初のまま）。
func (u *CartUsecase) AddToCart(ctx context.Context, userID int64, in AddCartInput) (CartResponse, error) {
	if in.ProductID <= 0 {
		return CartResponse{}, badRequest("invalid product_id")
	}
	// 0以下は1個扱い
	if in.Quantity <= 0 {
		in.Quantity = 1
	}

	cart, err := u.cart(ctx, userID)
	if err != nil {
		return CartResponse{}, err
	}

	// 商品チェック（公開のみ）
	p, err := u.productRepo.FindByID(ctx, in.ProductID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && !p.IsActive) {
		return CartResponse{}, notFound("product not found")
	}
	if err != nil {
		return CartResponse{}, dbError(err)
	}

	if err := u.cartItemRepo.UpsertByCartAndProduct(ctx, cart.ID, in.ProductID, in.Quantity, p.Price); err != nil {
		return CartResponse{}, dbError(err)
	}

	return u.buildCartResponse(ctx, cart.ID)
}

// 1つ減らす。0になったら行を消す。
func (u *CartUsecase) DecreaseQuantity(ctx context.Context, userID int64, productID int64) (CartResponse, error) {
	if productID <= 0 {
		return CartResponse{}, badRequest("invalid product_id")
	}

	cart, err := u.cart(ctx, userID)
	if err != nil {
		return CartResponse{}, err
	}

	item, err := u.cartItemRepo.FindByCartAndProduct(ctx, cart.ID, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, notFound("item not in cart")
	}
	if err != nil {
		return CartResponse{}, dbError(err)
	}

	if item.Quantity-1 <= 0 {
		err = u.cartItemRepo.DeleteByID(ctx, item.ID)
	} else {
		err = u.cartItemRepo.UpdateQuantity(ctx, item.ID, item.Quantity-1)
	}
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, dbError(err)
	}

	return u.buildCartResponse(ctx, cart.ID)
}

// 数量をまとめて上書き。0以下は削除、カートに無い商品は無視。
func (u *CartUsecase) BulkUpdate(ctx context.Context, userID int64, lines []CartLineInput) (CartResponse, error) {
	cart, err := u.cart(ctx, userID)
	if err != nil {
		return CartResponse{}, err
	}

	items, err := u.cartItemRepo.ListByCartID(ctx, cart.ID)
	if err != nil {
		return CartResponse{}, dbError(err)
	}
	byProduct := make(map[int64]model.CartItem, len(items))
	for _, it := range items {
		byProduct[it.ProductID] = it
	}

	for _, l := range lines {
		it, ok := byProduct[l.ProductID]
		if !ok {
			continue
		}
		if l.Quantity <= 0 {
			err = u.cartItemRepo.DeleteByID(ctx, it.ID)
			delete(byProduct, l.ProductID)
		} else {
			err = u.cartItemRepo.UpdateQuantity(ctx, it.ID, l.Quantity)
		}
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return CartResponse{}, dbError(err)
		}
	}

	return u.buildCartResponse(ctx, cart.ID)
}

// 明細削除（無ければ何もしない）
func (u *CartUsecase) RemoveItem(ctx context.Context, userID int64, productID int64) (CartResponse, error) {
	cart, err := u.cart(ctx, userID)
	if err != nil {
		return CartResponse{}, err
	}

	item, err := u.cartItemRepo.FindByCartAndProduct(ctx, cart.ID, productID)
	switch {
	case err == nil:
		if err := u.cartItemRepo.DeleteByID(ctx, item.ID); err != nil && !errors.Is(err, repo.ErrNotFound) {
			return CartResponse{}, dbError(err)
		}
	case !errors.Is(err, repo.ErrNotFound):
		return CartResponse{}, dbError(err)
	}

	return u.buildCartResponse(ctx, cart.ID)
}

func (u *CartUsecase) ClearCart(ctx context.Context, userID int64) (CartResponse, error) {
	cart, err := u.cart(ctx, userID)
	if err != nil {
		return CartResponse{}, err
	}
	if err := u.cartRepo.Clear(ctx, cart.ID); err != nil {
		return CartResponse{}, dbError(err)
	}
	return u.buildCartResponse(ctx, cart.ID)
}

func (u *CartUsecase) cart(ctx context.Context, userID int64) (model.Cart, error) {
	if userID <= 0 {
		return model.Cart{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	cart, err := u.cartRepo.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		return model.Cart{}, dbError(err)
	}
	return cart, nil
}

// cartIDの明細をまとめてCartResponseを作る。合計は保存済みの単価×数量。
func (u *CartUsecase) buildCartResponse(ctx context.Context, cartID int64) (CartResponse, error) {
	items, err := u.cartItemRepo.ListByCartID(ctx, cartID)
	if err != nil {
		return CartResponse{}, dbError(err)
	}

	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	products, err := u.productRepo.FindByIDs(ctx, ids)
	if err != nil {
		return CartResponse{}, dbError(err)
	}
	byID := make(map[int64]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	respItems := make([]CartItemResponse, 0, len(items))
	total := decimal.Zero

	for _, it := range items {
		p := byID[it.ProductID]
		line := it.LineTotal()
		respItems = append(respItems, CartItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			Name:      p.Name,
			ImageURL:  p.ImageURL,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			LineTotal: line,
		})
		total = total.Add(line)
	}

	return CartResponse{CartID: cartID, Items: respItems, Total: total}, nil
}
