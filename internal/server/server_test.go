package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/handler"
	repo "app/internal/repository"
	"app/internal/server"
	"app/internal/usecase"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// =====================
// インメモリ実装。GORMの代わりにmapで永続化して、
// handler→usecase→repositoryを本物の配線のまま通す。
// =====================

type memStore struct {
	mu sync.Mutex

	users      map[int64]*model.User
	nextUserID int64

	sessions map[string]*model.Session

	products map[int64]model.Product

	cartItems  map[int64]model.CartItem
	nextCartID int64

	addresses  map[int64]model.Address
	nextAddrID int64

	orders      map[int64]model.Order
	nextOrderID int64

	orderItems map[int64][]model.OrderItem

	auditLogs []model.AuditLog
}

func newMemStore() *memStore {
	return &memStore{
		users:      map[int64]*model.User{},
		sessions:   map[string]*model.Session{},
		products:   map[int64]model.Product{},
		cartItems:  map[int64]model.CartItem{},
		addresses:  map[int64]model.Address{},
		orders:     map[int64]model.Order{},
		orderItems: map[int64][]model.OrderItem{},
	}
}

type memUserRepo struct{ s *memStore }

func (r *memUserRepo) Create(ctx context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return repo.ErrEmailConflict
		}
	}
	r.s.nextUserID++
	user.ID = r.s.nextUserID
	cp := *user
	r.s.users[user.ID] = &cp
	return nil
}

func (r *memUserRepo) FindByID(ctx context.Context, userID int64) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return nil, repo.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repo.ErrUserNotFound
}

func (r *memUserRepo) Update(ctx context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *user
	r.s.users[user.ID] = &cp
	return nil
}

type memSessionRepo struct{ s *memStore }

func (r *memSessionRepo) Create(ctx context.Context, session *model.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *session
	r.s.sessions[session.ID] = &cp
	return nil
}

func (r *memSessionRepo) FindByID(ctx context.Context, sessionID string) (*model.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	s, ok := r.s.sessions[sessionID]
	if !ok {
		return nil, repo.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memSessionRepo) Revoke(ctx context.Context, sessionID string, revokedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if s, ok := r.s.sessions[sessionID]; ok {
		at := revokedAt
		s.RevokedAt = &at
	}
	return nil
}

func (r *memSessionRepo) DeleteExpired(ctx context.Context, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, s := range r.s.sessions {
		if s.ExpiresAt.Before(now) {
			delete(r.s.sessions, id)
		}
	}
	return nil
}

type memProductRepo struct{ s *memStore }

func (r *memProductRepo) ListPublic(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Product
	for _, p := range r.s.products {
		if !p.IsActive {
			continue
		}
		if q.Q != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(q.Q)) {
			continue
		}
		if q.Category != "" && p.Category != q.Category {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r *memProductRepo) FindByID(ctx context.Context, id int64) (model.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (r *memProductRepo) Create(ctx context.Context, p model.Product) (model.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p.ID = int64(len(r.s.products) + 1)
	r.s.products[p.ID] = p
	return p, nil
}

func (r *memProductRepo) Update(ctx context.Context, p model.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.products[p.ID] = p
	return nil
}

func (r *memProductRepo) SoftDelete(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.products, id)
	return nil
}

type memCartRepo struct{ s *memStore }

func (r *memCartRepo) ListByUserID(ctx context.Context, userID int64) ([]model.CartItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.CartItem
	for _, ci := range r.s.cartItems {
		if ci.UserID == userID {
			out = append(out, ci)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memCartRepo) UpsertByUserAndProduct(ctx context.Context, userID int64, productID int64, addQty int64) (model.CartItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, ci := range r.s.cartItems {
		if ci.UserID == userID && ci.ProductID == productID {
			ci.Quantity += addQty
			r.s.cartItems[id] = ci
			return ci, nil
		}
	}
	r.s.nextCartID++
	ci := model.CartItem{ID: r.s.nextCartID, UserID: userID, ProductID: productID, Quantity: addQty}
	r.s.cartItems[ci.ID] = ci
	return ci, nil
}

func (r *memCartRepo) UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ci, ok := r.s.cartItems[cartItemID]
	if !ok {
		return repo.ErrNotFound
	}
	ci.Quantity = qty
	r.s.cartItems[cartItemID] = ci
	return nil
}

func (r *memCartRepo) DeleteByID(ctx context.Context, cartItemID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.cartItems, cartItemID)
	return nil
}

func (r *memCartRepo) DeleteByUserAndProducts(ctx context.Context, userID int64, productIDs []int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, ci := range r.s.cartItems {
		if ci.UserID != userID {
			continue
		}
		for _, pid := range productIDs {
			if ci.ProductID == pid {
				delete(r.s.cartItems, id)
			}
		}
	}
	return nil
}

func (r *memCartRepo) FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ci, ok := r.s.cartItems[cartItemID]
	if !ok {
		return model.CartItem{}, repo.ErrNotFound
	}
	return ci, nil
}

type memAddressRepo struct{ s *memStore }

func (r *memAddressRepo) Create(ctx context.Context, address model.Address) (model.Address, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextAddrID++
	address.ID = r.s.nextAddrID
	r.s.addresses[address.ID] = address
	return address, nil
}

func (r *memAddressRepo) ListByUserID(ctx context.Context, userID int64) ([]model.Address, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Address
	for _, a := range r.s.addresses {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memAddressRepo) FindByID(ctx context.Context, addressID int64) (model.Address, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.addresses[addressID]
	if !ok {
		return model.Address{}, repo.ErrNotFound
	}
	return a, nil
}

func (r *memAddressRepo) Update(ctx context.Context, address model.Address) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.addresses[address.ID] = address
	return nil
}

func (r *memAddressRepo) Delete(ctx context.Context, addressID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.addresses, addressID)
	return nil
}

func (r *memAddressRepo) IsOwnedByUser(ctx context.Context, addressID, userID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.addresses[addressID]
	return ok && a.UserID == userID, nil
}

func (r *memAddressRepo) SetDefault(ctx context.Context, userID, addressID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, a := range r.s.addresses {
		if a.UserID == userID {
			a.IsDefault = id == addressID
			r.s.addresses[id] = a
		}
	}
	return nil
}

type memOrderRepo struct{ s *memStore }

func (r *memOrderRepo) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[orderID]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (r *memOrderRepo) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Order
	for _, o := range r.s.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, int64(len(out)), nil
}

func (r *memOrderRepo) Create(ctx context.Context, order model.Order) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextOrderID++
	order.ID = r.s.nextOrderID
	order.CreatedAt = time.Now()
	r.s.orders[order.ID] = order
	return order.ID, nil
}

func (r *memOrderRepo) UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[orderID]
	if !ok {
		return repo.ErrNotFound
	}
	o.Status = status
	r.s.orders[orderID] = o
	return nil
}

func (r *memOrderRepo) FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.orders {
		if o.UserID == userID && o.IdempotencyKey == key {
			return o, true, nil
		}
	}
	return model.Order{}, false, nil
}

func (r *memOrderRepo) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Order
	for _, o := range r.s.orders {
		if f.Status != "" && string(o.Status) != f.Status {
			continue
		}
		if f.UserID != nil && o.UserID != *f.UserID {
			continue
		}
		if f.From != nil && o.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && o.CreatedAt.After(*f.To) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, int64(len(out)), nil
}

type memOrderItemRepo struct{ s *memStore }

func (r *memOrderItemRepo) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range items {
		items[i].OrderID = orderID
	}
	r.s.orderItems[orderID] = append(r.s.orderItems[orderID], items...)
	return nil
}

func (r *memOrderItemRepo) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.orderItems[orderID], nil
}

type memAuditRepo struct{ s *memStore }

func (r *memAuditRepo) Create(ctx context.Context, log model.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	log.ID = int64(len(r.s.auditLogs) + 1)
	r.s.auditLogs = append(r.s.auditLogs, log)
	return nil
}

func (r *memAuditRepo) List(ctx context.Context, filter repo.AuditLogFilter) ([]model.AuditLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]model.AuditLog, len(r.s.auditLogs))
	copy(out, r.s.auditLogs)
	return out, nil
}

type memTxRepos struct {
	orders     *memOrderRepo
	orderItems *memOrderItemRepo
	cartItems  *memCartRepo
	products   *memProductRepo
	users      *memUserRepo
	addresses  *memAddressRepo
	auditLogs  *memAuditRepo
}

func (r *memTxRepos) Orders() repo.OrderRepository         { return r.orders }
func (r *memTxRepos) OrderItems() repo.OrderItemRepository { return r.orderItems }
func (r *memTxRepos) CartItems() repo.CartItemRepository   { return r.cartItems }
func (r *memTxRepos) Products() repo.ProductRepository     { return r.products }
func (r *memTxRepos) Users() repo.UserRepository           { return r.users }
func (r *memTxRepos) Addresses() repo.AddressRepository    { return r.addresses }
func (r *memTxRepos) AuditLogs() repo.AuditLogRepository   { return r.auditLogs }

type memTxManager struct{ repos *memTxRepos }

func (m *memTxManager) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return fn(m.repos)
}

// =====================
// テスト用の部品
// =====================

type seqIDGen struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDGen) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("sid-%d", g.n)
}

type testClock struct{}

func (testClock) Now() time.Time { return time.Now() }

// Issueは"tok-<sid>"、Parseはその逆
type testIssuer struct{}

func (testIssuer) Issue(sessionID string, userID int64, role model.Role, now time.Time, expiresAt time.Time) (string, error) {
	return "tok-" + sessionID, nil
}

func (testIssuer) Parse(token string) (string, error) {
	if !strings.HasPrefix(token, "tok-") {
		return "", errors.New("invalid token")
	}
	return strings.TrimPrefix(token, "tok-"), nil
}

// 本番と同じ配線でechoを組み立てる
func newTestServer(t *testing.T, store *memStore) *echo.Echo {
	t.Helper()

	userRepo := &memUserRepo{s: store}
	sessionRepo := &memSessionRepo{s: store}
	productRepo := &memProductRepo{s: store}
	cartRepo := &memCartRepo{s: store}
	addressRepo := &memAddressRepo{s: store}
	auditRepo := &memAuditRepo{s: store}

	txManager := &memTxManager{repos: &memTxRepos{
		orders:     &memOrderRepo{s: store},
		orderItems: &memOrderItemRepo{s: store},
		cartItems:  cartRepo,
		products:   productRepo,
		users:      userRepo,
		addresses:  addressRepo,
		auditLogs:  auditRepo,
	}}

	hasher := usecase.NewBcryptPasswordHasher(bcrypt.MinCost)
	verifier := usecase.NewBcryptPasswordVerifier()

	authUC := usecase.NewAuthUsecase(userRepo, sessionRepo, hasher, verifier, testIssuer{}, &seqIDGen{}, testClock{}, validator.New(), 24*time.Hour)
	productUC := usecase.NewProductUsecase(productRepo, auditRepo)
	cartUC := usecase.NewCartUsecase(cartRepo, productRepo)
	orderUC := usecase.NewOrderUsecase(txManager, addressRepo)
	adminOrderUC := usecase.NewAdminOrderUsecase(txManager)
	addressUC := usecase.NewAddressUsecase(addressRepo)
	auditUC := usecase.NewAuditLogUsecase(auditRepo)

	cfg := config.Config{
		Port:      "8080",
		JWTSecret: "test-secret",
		GoEnv:     "dev",
		FEURL:     "http://localhost:3000",
		UploadDir: t.TempDir(),
	}

	handlers := server.Handlers{
		Product:       handler.NewProductHandler(productUC),
		Cart:          handler.NewCartHandler(cartUC),
		Order:         handler.NewOrderHandler(orderUC),
		AdminOrder:    handler.NewAdminOrderHandler(adminOrderUC),
		AdminProduct:  handler.NewAdminProductHandler(productUC, cfg.UploadDir),
		AdminAuditLog: handler.NewAdminAuditLogHandler(auditUC),
		Address:       handler.NewAddressHandler(addressUC),
		Auth:          handler.NewAuthHandler(authUC, cartUC, false),
	}

	return server.New(cfg, authUC, handlers)
}

func doJSON(e *echo.Echo, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if cookie != nil {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "session" {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

// 会員登録→ログイン→カートに単価100を2個→住所登録→注文確定までの一連の流れ。
// 合計はサーバー側の価格で200になり、カートは空になる。
func TestServer_PurchaseFlow(t *testing.T) {
	store := newMemStore()
	store.products[10] = model.Product{
		ID:       10,
		Name:     "Mug",
		Price:    100,
		Category: "kitchen",
		IsActive: true,
	}

	e := newTestServer(t, store)

	// 会員登録
	rec := doJSON(e, http.MethodPost, "/api/auth/register", map[string]any{
		"name":     "Taro",
		"email":    "taro@example.com",
		"mobile":   "0123456789",
		"password": "password123",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// ログインしてセッションCookieを受け取る
	rec = doJSON(e, http.MethodPost, "/api/auth/login", map[string]any{
		"email":    "taro@example.com",
		"password": "password123",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cookie := sessionCookie(t, rec)

	// /me はログイン済みユーザーを返す
	rec = doJSON(e, http.MethodGet, "/api/auth/me", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		User *model.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	require.NotNil(t, me.User)
	assert.Equal(t, "taro@example.com", me.User.Email)

	// 配送先住所を登録
	rec = doJSON(e, http.MethodPost, "/api/address", map[string]any{
		"name":    "Taro",
		"line1":   "1-2-3 Chuo",
		"city":    "Osaka",
		"state":   "Osaka",
		"pincode": "5300001",
	}, cookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var addr model.Address
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &addr))

	// 単価100の商品を2個カートへ
	rec = doJSON(e, http.MethodPost, "/api/cart/add", map[string]any{
		"product_id": 10,
		"quantity":   2,
	}, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var cart usecase.CartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cart))
	assert.Equal(t, int64(200), cart.Total)

	// 注文確定
	rec = doJSON(e, http.MethodPost, "/api/orders", map[string]any{
		"address_id":     addr.ID,
		"items":          []map[string]any{{"product_id": 10, "quantity": 2}},
		"payment_method": "cod",
	}, cookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var order usecase.OrderOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	assert.Equal(t, string(model.OrderStatusPending), order.Status)
	assert.Equal(t, int64(200), order.Subtotal)
	assert.Equal(t, int64(200), order.Total)
	require.Len(t, order.Items, 1)
	assert.Equal(t, int64(100), order.Items[0].Price)
	assert.Equal(t, int64(2), order.Items[0].Quantity)

	// 消費したカート明細は消えている
	rec = doJSON(e, http.MethodGet, "/api/cart", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cart))
	assert.Empty(t, cart.Items)
	assert.Equal(t, int64(0), cart.Total)

	// 注文一覧にも載る
	rec = doJSON(e, http.MethodGet, "/api/orders", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var orders []usecase.OrderOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)
}

// Cookieなしの /api/auth/me は200で user:null
func TestServer_MeWithoutSession(t *testing.T) {
	e := newTestServer(t, newMemStore())

	rec := doJSON(e, http.MethodGet, "/api/auth/me", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var me struct {
		User *model.User                `json:"user"`
		Cart []usecase.CartItemResponse `json:"cart"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Nil(t, me.User)
	assert.NotNil(t, me.Cart)
	assert.Empty(t, me.Cart)
}
