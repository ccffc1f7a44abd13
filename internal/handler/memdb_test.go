package handler_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"autoparts/internal/domain/model"
	repo "autoparts/internal/repository"

	"github.com/shopspring/decimal"
)

// HTTPテスト用のインメモリDB。ルートが使うメソッドだけ実装する。
type memDB struct {
	mu        sync.Mutex
	nextID    int64
	users     map[int64]*model.User
	products  map[int64]model.Product
	carts     map[int64]model.Cart
	cartItems map[int64]model.CartItem
	orders    map[int64]model.Order
	items     []model.OrderItem
	timeline  []model.OrderTimeline
	otps      map[int64]model.OrderDeliveryOtp
}

func newMemDB() *memDB {
	return &memDB{
		users:     map[int64]*model.User{},
		products:  map[int64]model.Product{},
		carts:     map[int64]model.Cart{},
		cartItems: map[int64]model.CartItem{},
		orders:    map[int64]model.Order{},
		otps:      map[int64]model.OrderDeliveryOtp{},
	}
}

func (db *memDB) id() int64 {
	db.nextID++
	return db.nextID
}

func (db *memDB) addUser(u model.User) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.users[u.ID] = &u
}

func (db *memDB) addProduct(name, price string, qty int64) model.Product {
	db.mu.Lock()
	defer db.mu.Unlock()
	p := model.Product{ID: db.id(), Name: name, Price: decimal.RequireFromString(price), Quantity: qty, IsActive: true}
	db.products[p.ID] = p
	return p
}

func (db *memDB) stock(productID int64) int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.products[productID].Quantity
}

func (db *memDB) order(id int64) model.Order {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.orders[id]
}

func (db *memDB) orderCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.orders)
}

func (db *memDB) actions(orderID int64) []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []string
	for _, t := range db.timeline {
		if t.OrderID == orderID {
			out = append(out, t.Action)
		}
	}
	return out
}

// ---- TransactionManager ----

// ロールバックはしない
func (db *memDB) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(memTx{db})
}

type memTx struct{ db *memDB }

func (t memTx) Orders() repo.OrderRepository { return memOrders{db: t.db} }
func (t memTx) OrderItems() repo.OrderItemRepository { return memOrderItems{db: t.db} }
func (t memTx) Timeline() repo.OrderTimelineRepository { return memTimeline{db: t.db} }
func (t memTx) DeliveryOtps() repo.DeliveryOtpRepository { return memOtps{db: t.db} }
func (t memTx) Carts() repo.CartRepository { return memCarts{db: t.db} }
func (t memTx) CartItems() repo.CartItemRepository { return memCartItems{db: t.db} }
func (t memTx) Inventory() repo.InventoryRepository { return memInventory{db: t.db} }
func (t memTx) Products() repo.ProductRepository { return memProducts{db: t.db} }

// ---- users / addresses ----

type memUsers struct {
	repo.UserRepository
	db *memDB
}

func (m memUsers) FindByID(ctx context.Context, id int64) (*model.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.users[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

type memAddresses struct {
	repo.AddressRepository
}

func (memAddresses) FindDefaultByUserID(ctx context.Context, userID int64) (model.Address, error) {
	return model.Address{}, repo.ErrNotFound
}

// ---- orders ----

type memOrders struct {
	repo.OrderRepository
	db *memDB
}

func (m memOrders) FindByID(ctx context.Context, id int64) (model.Order, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	o, ok := m.db.orders[id]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (m memOrders) FindByIDForUpdate(ctx context.Context, id int64) (model.Order, error) {
	return m.FindByID(ctx, id)
}

func (m memOrders) FindByGatewayOrderID(ctx context.Context, gid string) (model.Order, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, o := range m.db.orders {
		if gid != "" && o.GatewayOrderID == gid {
			return o, nil
		}
	}
	return model.Order{}, repo.ErrNotFound
}

func (m memOrders) FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, o := range m.db.orders {
		if o.UserID == userID && o.IdempotencyKey != nil && *o.IdempotencyKey == key {
			return o, true, nil
		}
	}
	return model.Order{}, false, nil
}

func (m memOrders) Create(ctx context.Context, o model.Order) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	o.ID = m.db.id()
	m.db.orders[o.ID] = o
	return o.ID, nil
}

func (m memOrders) Save(ctx context.Context, o model.Order) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.orders[o.ID]; !ok {
		return repo.ErrNotFound
	}
	m.db.orders[o.ID] = o
	return nil
}

type memOrderItems struct {
	repo.OrderItemRepository
	db *memDB
}

func (m memOrderItems) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, it := range items {
		it.ID = m.db.id()
		it.OrderID = orderID
		m.db.items = append(m.db.items, it)
	}
	return nil
}

func (m memOrderItems) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []model.OrderItem
	for _, it := range m.db.items {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	return out, nil
}

type memTimeline struct{ db *memDB }

func (m memTimeline) Append(ctx context.Context, e model.OrderTimeline) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	e.ID = m.db.id()
	m.db.timeline = append(m.db.timeline, e)
	return nil
}

func (m memTimeline) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderTimeline, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []model.OrderTimeline
	for _, t := range m.db.timeline {
		if t.OrderID == orderID {
			out = append(out, t)
		}
	}
	return out, nil
}

type memOtps struct{ db *memDB }

func (m memOtps) Upsert(ctx context.Context, otp model.OrderDeliveryOtp) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if prev, ok := m.db.otps[otp.OrderID]; ok {
		otp.ID = prev.ID
	} else {
		otp.ID = m.db.id()
	}
	otp.IsVerified = false
	otp.VerifiedAt = nil
	m.db.otps[otp.OrderID] = otp
	return nil
}

func (m memOtps) FindActiveByOrderID(ctx context.Context, orderID int64) (model.OrderDeliveryOtp, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	otp, ok := m.db.otps[orderID]
	if !ok || otp.IsVerified {
		return model.OrderDeliveryOtp{}, repo.ErrNotFound
	}
	return otp, nil
}

func (m memOtps) MarkVerified(ctx context.Context, id int64, at time.Time) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for k, otp := range m.db.otps {
		if otp.ID == id && !otp.IsVerified {
			otp.IsVerified = true
			otp.VerifiedAt = &at
			m.db.otps[k] = otp
			return nil
		}
	}
	return repo.ErrNotFound
}

// ---- carts ----

type memCarts struct{ db *memDB }

func (m memCarts) GetOrCreateByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	if c, err := m.FindByUserID(ctx, userID); err == nil {
		return c, nil
	}
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	c := model.Cart{ID: m.db.id(), UserID: userID}
	m.db.carts[c.ID] = c
	return c, nil
}

func (m memCarts) FindByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, c := range m.db.carts {
		if c.UserID == userID {
			return c, nil
		}
	}
	return model.Cart{}, repo.ErrNotFound
}

func (m memCarts) Clear(ctx context.Context, cartID int64) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for id, it := range m.db.cartItems {
		if it.CartID == cartID {
			delete(m.db.cartItems, id)
		}
	}
	return nil
}

type memCartItems struct{ db *memDB }

func (m memCartItems) ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []model.CartItem
	for _, it := range m.db.cartItems {
		if it.CartID == cartID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memCartItems) FindByCartAndProduct(ctx context.Context, cartID, productID int64) (model.CartItem, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, it := range m.db.cartItems {
		if it.CartID == cartID && it.ProductID == productID {
			return it, nil
		}
	}
	return model.CartItem{}, repo.ErrNotFound
}

func (m memCartItems) UpsertByCartAndProduct(ctx context.Context, cartID, productID, addQty int64, unitPrice decimal.Decimal) error {
	if it, err := m.FindByCartAndProduct(ctx, cartID, productID); err == nil {
		return m.UpdateQuantity(ctx, it.ID, it.Quantity+addQty)
	}
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	it := model.CartItem{ID: m.db.id(), CartID: cartID, ProductID: productID, Quantity: addQty, UnitPrice: unitPrice}
	m.db.cartItems[it.ID] = it
	return nil
}

func (m memCartItems) UpdateQuantity(ctx context.Context, id, qty int64) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	it, ok := m.db.cartItems[id]
	if !ok {
		return repo.ErrNotFound
	}
	it.Quantity = qty
	m.db.cartItems[id] = it
	return nil
}

func (m memCartItems) DeleteByID(ctx context.Context, id int64) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.cartItems[id]; !ok {
		return repo.ErrNotFound
	}
	delete(m.db.cartItems, id)
	return nil
}

// ---- products / inventory ----

type memProducts struct {
	repo.ProductRepository
	db *memDB
}

func (m memProducts) FindByID(ctx context.Context, id int64) (model.Product, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	p, ok := m.db.products[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (m memProducts) FindByIDs(ctx context.Context, ids []int64) ([]model.Product, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := make([]model.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.db.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type memInventory struct {
	repo.InventoryRepository
	db *memDB
}

func (m memInventory) DecreaseStockIfEnough(ctx context.Context, productID, qty int64) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	p, ok := m.db.products[productID]
	if !ok || p.Quantity < qty {
		return false, nil
	}
	p.Quantity -= qty
	m.db.products[productID] = p
	return true, nil
}

func (m memInventory) IncreaseStock(ctx context.Context, productID, qty int64) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	p, ok := m.db.products[productID]
	if !ok {
		return repo.ErrNotFound
	}
	p.Quantity += qty
	m.db.products[productID] = p
	return nil
}
