package usecase_test

import (
	"context"
	"net/http"
	"testing"

	"autoparts/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type productFixture struct {
	store *memStore
	cache *memCache
	uc    *usecase.ProductUsecase
}

func newProductFixture(t *testing.T) *productFixture {
	t.Helper()
	s := newMemStore()
	c := newMemCache()
	return &productFixture{
		store: s,
		cache: c,
		uc:    usecase.NewProductUsecase(memProducts{s}, memPartTypes{s}, memInventory{s}, c, newClock(), zap.NewNop()),
	}
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// =====================
// 一覧・詳細
// =====================

func TestListProducts_Filters(t *testing.T) {
	f := newProductFixture(t)
	brakes := f.store.addPartType("Brakes")
	pad := f.store.addProduct("Brake Pad", "500.00", 3)
	pad.PartTypeID = &brakes.ID
	require.NoError(t, memProducts{f.store}.Update(context.Background(), pad))
	f.store.addProduct("Brake Disc", "1500.00", 2)
	f.store.addProduct("Oil Filter", "200.00", 9)

	out, err := f.uc.ListProducts(context.Background(), usecase.ListProductsInput{Page: 1, Limit: 10, Q: " brake ", Sort: "price_asc"})
	require.NoError(t, err)
	require.Len(t, out.Items, 2)
	assert.Equal(t, "Brake Pad", out.Items[0].Name)
	assert.Equal(t, int64(2), out.Total)

	out, err = f.uc.ListProducts(context.Background(), usecase.ListProductsInput{Page: 1, Limit: 10, PartTypeID: &brakes.ID})
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.Equal(t, pad.ID, out.Items[0].ID)

	out, err = f.uc.ListProducts(context.Background(), usecase.ListProductsInput{Page: 1, Limit: 10, MinPrice: dec("300"), MaxPrice: dec("1000")})
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "Brake Pad", out.Items[0].Name)
}

func TestListProducts_Validation(t *testing.T) {
	f := newProductFixture(t)
	cases := []usecase.ListProductsInput{
		{Page: 0, Limit: 10},
		{Page: 1, Limit: 101},
		{Page: 1, Limit: 10, Sort: "random"},
		{Page: 1, Limit: 10, MinPrice: dec("-1")},
		{Page: 1, Limit: 10, MinPrice: dec("10"), MaxPrice: dec("5")},
	}
	for _, in := range cases {
		_, err := f.uc.ListProducts(context.Background(), in)
		requireStatus(t, err, http.StatusBadRequest)
	}
}

func TestGetProductDetail_CachesAndHidesInactive(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()
	p := f.store.addProduct("Shock Absorber", "2200.00", 4)

	got, err := f.uc.GetProductDetail(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
	_, cached, _ := f.cache.Get(ctx, p.ID)
	assert.True(t, cached)

	// 非公開にするとキャッシュも消える
	inactive := false
	_, err = f.uc.AdminUpdateProduct(ctx, testAdminID, p.ID, usecase.ProductPatch{IsActive: &inactive})
	require.NoError(t, err)
	_, cached, _ = f.cache.Get(ctx, p.ID)
	assert.False(t, cached)

	_, err = f.uc.GetProductDetail(ctx, p.ID)
	requireStatus(t, err, http.StatusNotFound)
	_, err = f.uc.GetProductDetail(ctx, 9999)
	requireStatus(t, err, http.StatusNotFound)
}

// =====================
// 管理者の商品操作
// =====================

func TestAdminCreateProduct(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()

	p, err := f.uc.AdminCreateProduct(ctx, testAdminID, usecase.ProductInput{
		Name: " Tail Lamp ", SKU: "TL-01", Price: dec("349.999"), Quantity: 7,
	})
	require.NoError(t, err)
	assert.Equal(t, "Tail Lamp", p.Name)
	assert.Equal(t, "350", p.Price.String())
	assert.True(t, p.IsActive)

	_, err = f.uc.AdminCreateProduct(ctx, testAdminID, usecase.ProductInput{Name: "Copy", SKU: "TL-01", Price: dec("1")})
	requireStatus(t, err, http.StatusBadRequest)

	_, err = f.uc.AdminCreateProduct(ctx, testAdminID, usecase.ProductInput{Name: "No Price"})
	requireStatus(t, err, http.StatusBadRequest)

	unknown := int64(404)
	_, err = f.uc.AdminCreateProduct(ctx, testAdminID, usecase.ProductInput{Name: "X", Price: dec("1"), PartTypeID: &unknown})
	requireStatus(t, err, http.StatusBadRequest)
}

func TestAdminUpdateProduct_QuantityChangeIsRecorded(t *testing.T) {
	f := newProductFixture(t)
	p := f.store.addProduct("Battery", "4000.00", 5)
	qty := int64(8)

	updated, err := f.uc.AdminUpdateProduct(context.Background(), testAdminID, p.ID, usecase.ProductPatch{Quantity: &qty})

	require.NoError(t, err)
	assert.Equal(t, int64(8), updated.Quantity)
	adj := f.store.adjustmentsFor(p.ID)
	require.Len(t, adj, 1)
	assert.Equal(t, int64(3), adj[0].Delta)
	assert.Equal(t, testAdminID, adj[0].AdminUserID)
}

func TestImportProducts_AllOrNothing(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()

	_, err := f.uc.ImportProducts(ctx, testAdminID, []usecase.ProductInput{
		{Name: "Gasket", SKU: "G-1", Price: dec("50")},
		{Name: "", Price: dec("10")},
	})
	he := requireStatus(t, err, http.StatusBadRequest)
	assert.Contains(t, he.Message, "row 2")

	_, err = f.uc.ImportProducts(ctx, testAdminID, []usecase.ProductInput{
		{Name: "Gasket", SKU: "G-1", Price: dec("50")},
		{Name: "Gasket Set", SKU: "G-1", Price: dec("90")},
	})
	he = requireStatus(t, err, http.StatusBadRequest)
	assert.Contains(t, he.Message, "duplicates row 1")

	n, err := f.uc.ImportProducts(ctx, testAdminID, []usecase.ProductInput{
		{Name: "Gasket", SKU: "G-1", Price: dec("50"), Quantity: 10},
		{Name: "Valve", Price: dec("75"), Quantity: 4},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	out, err := f.uc.ListProducts(ctx, usecase.ListProductsInput{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.Total)

	_, err = f.uc.ImportProducts(ctx, testAdminID, nil)
	requireStatus(t, err, http.StatusBadRequest)
}

func TestAdminDeleteProducts(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()
	a := f.store.addProduct("A", "1", 1)
	b := f.store.addProduct("B", "1", 1)

	n, err := f.uc.AdminDeleteProducts(ctx, testAdminID, []int64{a.ID, b.ID, 777})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.ElementsMatch(t, []int64{a.ID, b.ID, 777}, f.cache.deleted)

	err = f.uc.AdminDeleteProduct(ctx, testAdminID, a.ID)
	requireStatus(t, err, http.StatusNotFound)

	_, err = f.uc.AdminDeleteProducts(ctx, testAdminID, nil)
	requireStatus(t, err, http.StatusBadRequest)
}

// =====================
// 在庫・部品種別
// =====================

func TestAdminUpdateInventory(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()
	p := f.store.addProduct("Coolant", "300.00", 10)

	require.NoError(t, f.uc.AdminUpdateInventory(ctx, testAdminID, p.ID, 4, "damaged in storage"))

	assert.Equal(t, int64(4), f.store.stock(p.ID))
	adj := f.store.adjustmentsFor(p.ID)
	require.Len(t, adj, 1)
	assert.Equal(t, int64(-6), adj[0].Delta)
	assert.Equal(t, int64(10), adj[0].QuantityBefore)
	assert.Equal(t, int64(4), adj[0].QuantityAfter)
	assert.Equal(t, "damaged in storage", adj[0].Reason)

	requireStatus(t, f.uc.AdminUpdateInventory(ctx, testAdminID, p.ID, -1, "x"), http.StatusBadRequest)
	requireStatus(t, f.uc.AdminUpdateInventory(ctx, testAdminID, p.ID, 3, " "), http.StatusBadRequest)
	requireStatus(t, f.uc.AdminUpdateInventory(ctx, testAdminID, 9999, 3, "x"), http.StatusNotFound)
}

func TestPartTypes(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()

	pt, err := f.uc.CreatePartType(ctx, testAdminID, "  Suspension ")
	require.NoError(t, err)
	assert.Equal(t, "Suspension", pt.Name)

	_, err = f.uc.CreatePartType(ctx, testAdminID, "suspension")
	requireStatus(t, err, http.StatusBadRequest)
	_, err = f.uc.CreatePartType(ctx, testAdminID, "")
	requireStatus(t, err, http.StatusBadRequest)

	list, err := f.uc.ListPartTypes(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
}
