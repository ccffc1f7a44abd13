package usecase_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"autoparts/internal/domain/model"
	repo "autoparts/internal/repository"

	"github.com/shopspring/decimal"
)

// =====================
// メモリ上のストア（Tx失敗時はスナップショットに戻す）
// =====================

type memState struct {
	products    map[int64]model.Product
	carts       map[int64]model.Cart
	cartItems   map[int64]model.CartItem
	orders      map[int64]model.Order
	orderItems  []model.OrderItem
	timeline    []model.OrderTimeline
	otps        map[int64]model.OrderDeliveryOtp
	adjustments []model.InventoryAdjustment
	partTypes   map[int64]model.PartType
}

func (s memState) clone() memState {
	c := memState{
		products:    make(map[int64]model.Product, len(s.products)),
		carts:       make(map[int64]model.Cart, len(s.carts)),
		cartItems:   make(map[int64]model.CartItem, len(s.cartItems)),
		orders:      make(map[int64]model.Order, len(s.orders)),
		orderItems:  append([]model.OrderItem(nil), s.orderItems...),
		timeline:    append([]model.OrderTimeline(nil), s.timeline...),
		otps:        make(map[int64]model.OrderDeliveryOtp, len(s.otps)),
		adjustments: append([]model.InventoryAdjustment(nil), s.adjustments...),
		partTypes:   make(map[int64]model.PartType, len(s.partTypes)),
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.carts {
		c.carts[k] = v
	}
	for k, v := range s.cartItems {
		c.cartItems[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.otps {
		c.otps[k] = v
	}
	for k, v := range s.partTypes {
		c.partTypes[k] = v
	}
	return c
}

type memStore struct {
	txMu   sync.Mutex
	mu     sync.Mutex
	nextID int64
	st     memState
}

func newMemStore() *memStore {
	return &memStore{
		st: memState{
			products:  map[int64]model.Product{},
			carts:     map[int64]model.Cart{},
			cartItems: map[int64]model.CartItem{},
			orders:    map[int64]model.Order{},
			otps:      map[int64]model.OrderDeliveryOtp{},
			partTypes: map[int64]model.PartType{},
		},
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

// WithinTx は1本ずつ直列に実行する
func (s *memStore) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snap := s.st.clone()
	s.mu.Unlock()

	if err := fn(memRepos{s}); err != nil {
		s.mu.Lock()
		s.st = snap
		s.mu.Unlock()
		return err
	}
	return nil
}

// database/sqlのBeginTxと同じく、ctxが終わっていたら始めない
type ctxTx struct{ s *memStore }

func (t ctxTx) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.s.WithinTx(ctx, fn)
}

// ---- テスト用ヘルパー ----

func (s *memStore) addProduct(name string, price string, qty int64) model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := model.Product{
		ID:       s.id(),
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Quantity: qty,
		IsActive: true,
	}
	s.st.products[p.ID] = p
	return p
}

func (s *memStore) stock(productID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.products[productID].Quantity
}

func (s *memStore) order(id int64) model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.orders[id]
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.orders)
}

func (s *memStore) cartItemCount(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.st.carts {
		if c.UserID != userID {
			continue
		}
		for _, it := range s.st.cartItems {
			if it.CartID == c.ID {
				n++
			}
		}
	}
	return n
}

func (s *memStore) actions(orderID int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, t := range s.st.timeline {
		if t.OrderID == orderID {
			out = append(out, t.Action)
		}
	}
	return out
}

func (s *memStore) putInCart(userID, productID, qty int64) {
	ctx := context.Background()
	carts := memCarts{s}
	c, _ := carts.GetOrCreateByUserID(ctx, userID)
	p, _ := memProducts{s}.FindByID(ctx, productID)
	_ = carts.UpsertByCartAndProduct(ctx, c.ID, productID, qty, p.Price)
}

// =====================
// TxRepos
// =====================

type memRepos struct{ s *memStore }

func (r memRepos) Orders() repo.OrderRepository { return memOrders{r.s} }
func (r memRepos) OrderItems() repo.OrderItemRepository { return memOrderItems{r.s} }
func (r memRepos) Timeline() repo.OrderTimelineRepository { return memTimeline{r.s} }
func (r memRepos) DeliveryOtps() repo.DeliveryOtpRepository { return memOtps{r.s} }
func (r memRepos) Carts() repo.CartRepository { return memCarts{r.s} }
func (r memRepos) CartItems() repo.CartItemRepository { return memCarts{r.s} }
func (r memRepos) Inventory() repo.InventoryRepository { return memInventory{r.s} }
func (r memRepos) Products() repo.ProductRepository { return memProducts{r.s} }

// ---- orders ----

type memOrders struct{ s *memStore }

func (m memOrders) FindByID(ctx context.Context, id int64) (model.Order, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	o, ok := m.s.st.orders[id]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (m memOrders) FindByIDForUpdate(ctx context.Context, id int64) (model.Order, error) {
	return m.FindByID(ctx, id)
}

func (m memOrders) FindByGatewayOrderID(ctx context.Context, gid string) (model.Order, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, o := range m.s.st.orders {
		if gid != "" && o.GatewayOrderID == gid {
			return o, nil
		}
	}
	return model.Order{}, repo.ErrNotFound
}

func (m memOrders) ListByUserID(ctx context.Context, userID int64, page, limit int) ([]model.Order, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var all []model.Order
	for _, o := range m.s.st.orders {
		if o.UserID == userID {
			all = append(all, o)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return pageOf(all, page, limit), int64(len(all)), nil
}

func (m memOrders) Create(ctx context.Context, o model.Order) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if o.IdempotencyKey != nil {
		for _, e := range m.s.st.orders {
			if e.IdempotencyKey != nil && *e.IdempotencyKey == *o.IdempotencyKey {
				return 0, repo.ErrDuplicate
			}
		}
	}
	o.ID = m.s.id()
	m.s.st.orders[o.ID] = o
	return o.ID, nil
}

func (m memOrders) Save(ctx context.Context, o model.Order) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.st.orders[o.ID]; !ok {
		return repo.ErrNotFound
	}
	m.s.st.orders[o.ID] = o
	return nil
}

func (m memOrders) FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, o := range m.s.st.orders {
		if o.UserID == userID && o.IdempotencyKey != nil && *o.IdempotencyKey == key {
			return o, true, nil
		}
	}
	return model.Order{}, false, nil
}

func (m memOrders) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var all []model.Order
	for _, o := range m.s.st.orders {
		if f.Status != "" && string(o.Status) != f.Status {
			continue
		}
		if f.UserID != nil && o.UserID != *f.UserID {
			continue
		}
		all = append(all, o)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return pageOf(all, f.Page, f.Limit), int64(len(all)), nil
}

func pageOf[T any](all []T, page, limit int) []T {
	start := (page - 1) * limit
	if start >= len(all) {
		return []T{}
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}

// ---- order items / timeline ----

type memOrderItems struct{ s *memStore }

func (m memOrderItems) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, it := range items {
		it.ID = m.s.id()
		it.OrderID = orderID
		m.s.st.orderItems = append(m.s.st.orderItems, it)
	}
	return nil
}

func (m memOrderItems) ListByOrderIDs(ctx context.Context, orderIDs []int64) (map[int64][]model.OrderItem, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	want := map[int64]bool{}
	for _, id := range orderIDs {
		want[id] = true
	}
	out := map[int64][]model.OrderItem{}
	for _, it := range m.s.st.orderItems {
		if want[it.OrderID] {
			out[it.OrderID] = append(out[it.OrderID], it)
		}
	}
	return out, nil
}

func (m memOrderItems) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []model.OrderItem
	for _, it := range m.s.st.orderItems {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	return out, nil
}

type memTimeline struct{ s *memStore }

func (m memTimeline) Append(ctx context.Context, e model.OrderTimeline) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	e.ID = m.s.id()
	m.s.st.timeline = append(m.s.st.timeline, e)
	return nil
}

func (m memTimeline) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderTimeline, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []model.OrderTimeline
	for _, e := range m.s.st.timeline {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ---- delivery otp ----

type memOtps struct{ s *memStore }

func (m memOtps) Upsert(ctx context.Context, otp model.OrderDeliveryOtp) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if prev, ok := m.s.st.otps[otp.OrderID]; ok {
		otp.ID = prev.ID
		otp.CreatedAt = prev.CreatedAt
	} else {
		otp.ID = m.s.id()
	}
	otp.IsVerified = false
	otp.VerifiedAt = nil
	m.s.st.otps[otp.OrderID] = otp
	return nil
}

func (m memOtps) FindActiveByOrderID(ctx context.Context, orderID int64) (model.OrderDeliveryOtp, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	o, ok := m.s.st.otps[orderID]
	if !ok || o.IsVerified {
		return model.OrderDeliveryOtp{}, repo.ErrNotFound
	}
	return o, nil
}

func (m memOtps) MarkVerified(ctx context.Context, id int64, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for k, o := range m.s.st.otps {
		if o.ID == id && !o.IsVerified {
			o.IsVerified = true
			o.VerifiedAt = &at
			m.s.st.otps[k] = o
			return nil
		}
	}
	return repo.ErrNotFound
}

// ---- cart / cart items ----

type memCarts struct{ s *memStore }

func (m memCarts) GetOrCreateByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	if c, err := m.FindByUserID(ctx, userID); err == nil {
		return c, nil
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c := model.Cart{ID: m.s.id(), UserID: userID}
	m.s.st.carts[c.ID] = c
	return c, nil
}

func (m memCarts) FindByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, c := range m.s.st.carts {
		if c.UserID == userID {
			return c, nil
		}
	}
	return model.Cart{}, repo.ErrNotFound
}

func (m memCarts) Clear(ctx context.Context, cartID int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for id, it := range m.s.st.cartItems {
		if it.CartID == cartID {
			delete(m.s.st.cartItems, id)
		}
	}
	return nil
}

func (m memCarts) ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []model.CartItem
	for _, it := range m.s.st.cartItems {
		if it.CartID == cartID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memCarts) FindByCartAndProduct(ctx context.Context, cartID, productID int64) (model.CartItem, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, it := range m.s.st.cartItems {
		if it.CartID == cartID && it.ProductID == productID {
			return it, nil
		}
	}
	return model.CartItem{}, repo.ErrNotFound
}

func (m memCarts) UpsertByCartAndProduct(ctx context.Context, cartID, productID, addQty int64, unitPrice decimal.Decimal) error {
	if it, err := m.FindByCartAndProduct(ctx, cartID, productID); err == nil {
		return m.UpdateQuantity(ctx, it.ID, it.Quantity+addQty)
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	it := model.CartItem{ID: m.s.id(), CartID: cartID, ProductID: productID, Quantity: addQty, UnitPrice: unitPrice}
	m.s.st.cartItems[it.ID] = it
	return nil
}

func (m memCarts) UpdateQuantity(ctx context.Context, id, qty int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	it, ok := m.s.st.cartItems[id]
	if !ok {
		return repo.ErrNotFound
	}
	it.Quantity = qty
	m.s.st.cartItems[id] = it
	return nil
}

func (m memCarts) DeleteByID(ctx context.Context, id int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.st.cartItems[id]; !ok {
		return repo.ErrNotFound
	}
	delete(m.s.st.cartItems, id)
	return nil
}

// ---- inventory ----

type memInventory struct{ s *memStore }

func (m memInventory) SetStock(ctx context.Context, productID, n int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.st.products[productID]
	if !ok {
		return repo.ErrNotFound
	}
	p.Quantity = n
	m.s.st.products[productID] = p
	return nil
}

func (m memInventory) DecreaseStockIfEnough(ctx context.Context, productID, qty int64) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.st.products[productID]
	if !ok || p.Quantity < qty {
		return false, nil
	}
	p.Quantity -= qty
	m.s.st.products[productID] = p
	return true, nil
}

func (m memInventory) IncreaseStock(ctx context.Context, productID, qty int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.st.products[productID]
	if !ok {
		return repo.ErrNotFound
	}
	p.Quantity += qty
	m.s.st.products[productID] = p
	return nil
}

func (m memInventory) CreateAdjustment(ctx context.Context, a model.InventoryAdjustment) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	a.ID = m.s.id()
	m.s.st.adjustments = append(m.s.st.adjustments, a)
	return nil
}

// ---- products / part types ----

type memProducts struct{ s *memStore }

func (m memProducts) List(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var all []model.Product
	for _, p := range m.s.st.products {
		if !q.IncludeInactive && !p.IsActive {
			continue
		}
		if q.Q != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(q.Q)) {
			continue
		}
		if q.PartTypeID != nil && (p.PartTypeID == nil || *p.PartTypeID != *q.PartTypeID) {
			continue
		}
		if q.MinPrice != nil && p.Price.LessThan(*q.MinPrice) {
			continue
		}
		if q.MaxPrice != nil && p.Price.GreaterThan(*q.MaxPrice) {
			continue
		}
		all = append(all, p)
	}
	switch q.Sort {
	case "price_asc":
		sort.Slice(all, func(i, j int) bool { return all[i].Price.LessThan(all[j].Price) })
	case "price_desc":
		sort.Slice(all, func(i, j int) bool { return all[i].Price.GreaterThan(all[j].Price) })
	case "name":
		sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	default:
		sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	}
	return pageOf(all, q.Page, q.Limit), int64(len(all)), nil
}

func (m memProducts) FindByID(ctx context.Context, id int64) (model.Product, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.st.products[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (m memProducts) FindByIDs(ctx context.Context, ids []int64) ([]model.Product, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []model.Product
	for _, id := range ids {
		if p, ok := m.s.st.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m memProducts) Create(ctx context.Context, p model.Product) (model.Product, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if p.SKU != "" {
		for _, e := range m.s.st.products {
			if e.SKU == p.SKU {
				return model.Product{}, repo.ErrDuplicate
			}
		}
	}
	p.ID = m.s.id()
	m.s.st.products[p.ID] = p
	return p, nil
}

func (m memProducts) CreateBulk(ctx context.Context, ps []model.Product) error {
	for _, p := range ps {
		if _, err := m.Create(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (m memProducts) Update(ctx context.Context, p model.Product) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.st.products[p.ID]; !ok {
		return repo.ErrNotFound
	}
	m.s.st.products[p.ID] = p
	return nil
}

func (m memProducts) SoftDelete(ctx context.Context, id int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.st.products[id]; !ok {
		return repo.ErrNotFound
	}
	delete(m.s.st.products, id)
	return nil
}

func (m memProducts) SoftDeleteMany(ctx context.Context, ids []int64) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := m.s.st.products[id]; ok {
			delete(m.s.st.products, id)
			n++
		}
	}
	return n, nil
}

type memPartTypes struct{ s *memStore }

func (m memPartTypes) List(ctx context.Context) ([]model.PartType, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := make([]model.PartType, 0, len(m.s.st.partTypes))
	for _, pt := range m.s.st.partTypes {
		out = append(out, pt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m memPartTypes) Create(ctx context.Context, pt model.PartType) (model.PartType, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, e := range m.s.st.partTypes {
		if strings.EqualFold(e.Name, pt.Name) {
			return model.PartType{}, repo.ErrDuplicate
		}
	}
	pt.ID = m.s.id()
	m.s.st.partTypes[pt.ID] = pt
	return pt, nil
}

func (m memPartTypes) Exists(ctx context.Context, id int64) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	_, ok := m.s.st.partTypes[id]
	return ok, nil
}

// =====================
// Tx外のリポジトリ
// =====================

type memUsers struct {
	mu    sync.Mutex
	users map[int64]*model.User
}

func newMemUsers(users ...model.User) *memUsers {
	m := &memUsers{users: map[int64]*model.User{}}
	for i := range users {
		u := users[i]
		m.users[u.ID] = &u
	}
	return m
}

func (m *memUsers) Create(ctx context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.users {
		if (u.Email != "" && e.Email == u.Email) || (u.Phone != "" && e.Phone == u.Phone) {
			return repo.ErrDuplicate
		}
	}
	u.ID = int64(len(m.users) + 1)
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) find(match func(*model.User) bool) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (m *memUsers) FindByID(ctx context.Context, id int64) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.ID == id })
}

func (m *memUsers) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return email != "" && u.Email == email })
}

func (m *memUsers) FindByPhone(ctx context.Context, phone string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return phone != "" && u.Phone == phone })
}

func (m *memUsers) FindByEmailConfirmTokenHash(ctx context.Context, h string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return h != "" && u.EmailConfirmTokenHash == h })
}

func (m *memUsers) Update(ctx context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return repo.ErrNotFound
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) IncrementTokenVersion(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.TokenVersion++
	return nil
}

func (m *memUsers) List(ctx context.Context, f repo.UserListFilter) ([]model.User, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.User
	for _, u := range m.users {
		if f.Search != "" && !strings.Contains(u.FullName+u.Email+u.Phone, f.Search) {
			continue
		}
		all = append(all, *u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return pageOf(all, f.Page, f.Limit), int64(len(all)), nil
}

func (m *memUsers) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return repo.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *memUsers) DeleteMany(ctx context.Context, ids []int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := m.users[id]; ok {
			delete(m.users, id)
			n++
		}
	}
	return n, nil
}

type memAddresses struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]model.Address
}

func newMemAddresses() *memAddresses {
	return &memAddresses{rows: map[int64]model.Address{}}
}

func (m *memAddresses) Create(ctx context.Context, a model.Address) (model.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	a.ID = m.nextID
	m.rows[a.ID] = a
	return a, nil
}

func (m *memAddresses) ListByUserID(ctx context.Context, userID int64) ([]model.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Address
	for _, a := range m.rows {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memAddresses) FindByID(ctx context.Context, id int64) (model.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return model.Address{}, repo.ErrNotFound
	}
	return a, nil
}

func (m *memAddresses) FindDefaultByUserID(ctx context.Context, userID int64) (model.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.rows {
		if a.UserID == userID && a.IsDefault {
			return a, nil
		}
	}
	return model.Address{}, repo.ErrNotFound
}

// gorm側と同じく住所の項目だけ更新する
func (m *memAddresses) Update(ctx context.Context, a model.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rows[a.ID]
	if !ok {
		return repo.ErrNotFound
	}
	a.UserID, a.IsDefault, a.CreatedAt = cur.UserID, cur.IsDefault, cur.CreatedAt
	m.rows[a.ID] = a
	return nil
}

func (m *memAddresses) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return repo.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memAddresses) IsOwnedByUser(ctx context.Context, id, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	return ok && a.UserID == userID, nil
}

func (m *memAddresses) SetDefault(ctx context.Context, userID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.rows[id]; !ok || a.UserID != userID {
		return repo.ErrNotFound
	}
	for k, a := range m.rows {
		if a.UserID == userID {
			a.IsDefault = k == id
			m.rows[k] = a
		}
	}
	return nil
}

// =====================
// 外部依存のフェイク
// =====================

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fixedClock {
	return &fixedClock{now: time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeGateway struct {
	mu        sync.Mutex
	createErr error
	nextID    string
	validSig  string
	webhookOK bool
	created   []int64
	// 呼ばれたらctxをキャンセルしてcontext.Canceledを返す
	cancel context.CancelFunc
}

func (g *fakeGateway) CreateOrder(ctx context.Context, amountPaise int64, currency, receipt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		g.cancel()
		return "", ctx.Err()
	}
	if g.createErr != nil {
		return "", g.createErr
	}
	g.created = append(g.created, amountPaise)
	return g.nextID, nil
}

func (g *fakeGateway) VerifyPaymentSignature(gatewayOrderID, paymentID, signature string) bool {
	return signature == g.validSig
}

func (g *fakeGateway) VerifyWebhookSignature(body []byte, signature string) bool {
	return g.webhookOK
}

// "h:" + 平文 をハッシュとみなす
type plainHasher struct{}

func (plainHasher) Hash(plain string) (string, error) { return "h:" + plain, nil }

func (plainHasher) Verify(plain, hashed string) bool { return hashed == "h:"+plain }

type fixedCodes struct{ code string }

func (f fixedCodes) NewCode(digits int) (string, error) { return f.code, nil }

type sentMessage struct {
	To   string
	Body string
}

type recordingSMS struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (r *recordingSMS) Send(ctx context.Context, to, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMessage{To: to, Body: body})
	return r.err
}

type recordingEmail struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (r *recordingEmail) Send(ctx context.Context, to, subject, htmlBody string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMessage{To: to, Body: htmlBody})
	return nil
}

type memCache struct {
	mu      sync.Mutex
	items   map[int64]model.Product
	deleted []int64
}

func newMemCache() *memCache { return &memCache{items: map[int64]model.Product{}} }

func (c *memCache) Get(ctx context.Context, id int64) (model.Product, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.items[id]
	return p, ok, nil
}

func (c *memCache) Set(ctx context.Context, p model.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[p.ID] = p
	return nil
}

func (c *memCache) Delete(ctx context.Context, ids ...int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.items, id)
	}
	c.deleted = append(c.deleted, ids...)
	return nil
}

// 在庫を戻していない注文が押さえている数量
func (s *memStore) reserved(productID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, it := range s.st.orderItems {
		if it.ProductID != productID {
			continue
		}
		if o, ok := s.st.orders[it.OrderID]; ok && !o.StockReleased {
			n += it.Quantity
		}
	}
	return n
}

func (s *memStore) clearCart(userID int64) {
	ctx := context.Background()
	carts := memCarts{s}
	if c, err := carts.FindByUserID(ctx, userID); err == nil {
		_ = carts.Clear(ctx, c.ID)
	}
}

func (s *memStore) adjustmentsFor(productID int64) []model.InventoryAdjustment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.InventoryAdjustment
	for _, a := range s.st.adjustments {
		if a.ProductID == productID {
			out = append(out, a)
		}
	}
	return out
}

func (s *memStore) addPartType(name string) model.PartType {
	pt, _ := memPartTypes{s}.Create(context.Background(), model.PartType{Name: name})
	return pt
}

type memChats struct {
	mu   sync.Mutex
	msgs []model.ChatMessage
}

func (m *memChats) Create(ctx context.Context, msg model.ChatMessage) (model.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = int64(len(m.msgs) + 1)
	m.msgs = append(m.msgs, msg)
	return msg, nil
}

func (m *memChats) ListConversation(ctx context.Context, userID int64, page, limit int) ([]model.ChatMessage, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.ChatMessage
	for _, msg := range m.msgs {
		if msg.UserID == userID {
			all = append(all, msg)
		}
	}
	return pageOf(all, page, limit), int64(len(all)), nil
}

func (m *memChats) ListThreads(ctx context.Context, page, limit int) ([]repo.ChatThread, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	last := map[int64]model.ChatMessage{}
	for _, msg := range m.msgs {
		last[msg.UserID] = msg
	}
	var all []repo.ChatThread
	for uid, msg := range last {
		all = append(all, repo.ChatThread{UserID: uid, LastMessage: msg.Message, LastIsAdmin: msg.IsAdmin, LastMessageAt: msg.SentAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UserID < all[j].UserID })
	return pageOf(all, page, limit), int64(len(all)), nil
}

type recordingHub struct {
	mu        sync.Mutex
	published []model.ChatMessage
}

func (h *recordingHub) Publish(msg model.ChatMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.published = append(h.published, msg)
}

type memRefreshTokens struct {
	repo.RefreshTokenRepository
	wiped []int64
}

func (m *memRefreshTokens) DeleteAllByUserID(ctx context.Context, userID int64) error {
	m.wiped = append(m.wiped, userID)
	return nil
}
