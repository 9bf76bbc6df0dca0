package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/roach88/shrimpzone/internal/api"
	"github.com/roach88/shrimpzone/internal/money"
)

// Routes served by FakeAPI, in ServeMux pattern form. Use them as keys for
// Fail and Hold.
const (
	RouteLogin          = "POST /api/auth/login"
	RouteVerify         = "POST /api/auth/verify-login-otp"
	RouteRegister       = "POST /api/auth/register"
	RouteCategories     = "GET /api/categories/all-categories"
	RouteFilterMeals    = "GET /api/products/filter"
	RouteGetCart        = "GET /api/cart/get-cart"
	RouteAddToCart      = "POST /api/cart/add-to-cart"
	RouteUpdateCart     = "PUT /api/cart/update-cart"
	RouteRemoveFromCart = "DELETE /api/cart/remove-from-cart/{productId}"
	RouteClearCart      = "DELETE /api/cart/clear-cart"
	RouteGetWishlist    = "GET /api/wishlist/"
	RouteWishlistAdd    = "POST /api/wishlist/add"
	RouteWishlistRemove = "DELETE /api/wishlist/remove/{productId}"
	RouteWishlistClear  = "DELETE /api/wishlist/clear"
)

// DefaultCode is the one-time code FakeAPI accepts unless SetCode says otherwise.
const DefaultCode = "123456"

// RecordedRequest is a request FakeAPI received.
type RecordedRequest struct {
	Route     string
	Path      string
	Body      string
	Auth      string
	RequestID string
}

type failure struct {
	status  int
	message string
	once    bool
}

// FakeAPI is an in-memory implementation of the Shrimp Zone HTTP API backed
// by httptest. It keeps one cart and one wishlist per signed-in user.
//
// Thread-safety: FakeAPI is safe for concurrent requests.
type FakeAPI struct {
	server *httptest.Server

	mu         sync.Mutex
	now        func() time.Time
	codeTTL    time.Duration
	categories []api.Category
	meals      []api.Meal
	codes      map[string]string   // email -> expected code
	tokens     map[string]api.User // token -> user
	carts      map[string][]api.CartItem
	wishlists  map[string][]string
	failures   map[string]failure
	holds      map[string]chan struct{}
	requests   []RecordedRequest
	nextUser   int
}

// NewFakeAPI starts a fake API server that is closed when the test ends.
func NewFakeAPI(t testing.TB) *FakeAPI {
	t.Helper()

	f := &FakeAPI{
		now:       time.Now,
		codeTTL:   5 * time.Minute,
		codes:     make(map[string]string),
		tokens:    make(map[string]api.User),
		carts:     make(map[string][]api.CartItem),
		wishlists: make(map[string][]string),
		failures:  make(map[string]failure),
		holds:     make(map[string]chan struct{}),
	}

	mux := http.NewServeMux()
	f.handle(mux, RouteLogin, f.login)
	f.handle(mux, RouteVerify, f.verify)
	f.handle(mux, RouteRegister, f.register)
	f.handle(mux, RouteCategories, f.listCategories)
	f.handle(mux, RouteFilterMeals, f.filterMeals)
	f.handle(mux, RouteGetCart, f.authed(f.getCart))
	f.handle(mux, RouteAddToCart, f.authed(f.addToCart))
	f.handle(mux, RouteUpdateCart, f.authed(f.updateCart))
	f.handle(mux, RouteRemoveFromCart, f.authed(f.removeFromCart))
	f.handle(mux, RouteClearCart, f.authed(f.clearCart))
	f.handle(mux, RouteGetWishlist, f.authed(f.getWishlist))
	f.handle(mux, RouteWishlistAdd, f.authed(f.wishlistAdd))
	f.handle(mux, RouteWishlistRemove, f.authed(f.wishlistRemove))
	f.handle(mux, RouteWishlistClear, f.authed(f.wishlistClear))

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

// URL returns the server's base URL.
func (f *FakeAPI) URL() string {
	return f.server.URL
}

// Close shuts the server down, releasing any held requests first.
func (f *FakeAPI) Close() {
	f.mu.Lock()
	for route, gate := range f.holds {
		close(gate)
		delete(f.holds, route)
	}
	f.mu.Unlock()
	f.server.Close()
}

// SetNow replaces the server clock used for code expiry.
func (f *FakeAPI) SetNow(now func() time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

// AddCategory registers a menu category.
func (f *FakeAPI) AddCategory(id, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.categories = append(f.categories, api.Category{ID: id, Name: name})
}

// AddMeal registers a meal on the menu.
func (f *FakeAPI) AddMeal(id, name, price, category string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meals = append(f.meals, api.Meal{
		ID:       id,
		Name:     name,
		Price:    money.MustParse(price),
		Category: category,
	})
}

// SetPrice changes a meal's catalog price. Lines already in carts keep the
// price they were added at.
func (f *FakeAPI) SetPrice(id, price string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.meals {
		if f.meals[i].ID == id {
			f.meals[i].Price = money.MustParse(price)
		}
	}
}

// SetCode sets the code the server expects for email.
func (f *FakeAPI) SetCode(email, code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[email] = code
}

// IssueToken signs in email without the code exchange and returns its token.
func (f *FakeAPI) IssueToken(email string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.issueTokenLocked(email)
}

func (f *FakeAPI) issueTokenLocked(email string) string {
	for token, u := range f.tokens {
		if u.Email == email {
			return token
		}
	}
	f.nextUser++
	token := fmt.Sprintf("token-%d", f.nextUser)
	f.tokens[token] = api.User{ID: fmt.Sprintf("user-%d", f.nextUser), Email: email, Role: "customer"}
	return token
}

// SetCartQuantity puts quantity units of a meal in the cart of the token's user.
func (f *FakeAPI) SetCartQuantity(token, productID string, quantity int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.tokens[token]
	meal, ok := f.mealLocked(productID)
	if !ok {
		panic("FakeAPI: unknown meal " + productID)
	}
	f.carts[u.ID] = upsertLine(f.carts[u.ID], meal, quantity)
}

// CartQuantity reports how many units of productID the token's user has.
func (f *FakeAPI) CartQuantity(token, productID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range f.carts[f.tokens[token].ID] {
		if item.ProductID() == productID {
			return item.Quantity
		}
	}
	return 0
}

// Wishlist returns the product ids saved by the token's user.
func (f *FakeAPI) Wishlist(token string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.wishlists[f.tokens[token].ID]...)
}

// Fail makes every request to route answer with status and message until
// ClearFailures is called.
func (f *FakeAPI) Fail(route string, status int, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[route] = failure{status: status, message: message}
}

// FailOnce makes the next request to route answer with status and message.
func (f *FakeAPI) FailOnce(route string, status int, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[route] = failure{status: status, message: message, once: true}
}

// ClearFailures removes every injected failure.
func (f *FakeAPI) ClearFailures() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = make(map[string]failure)
}

// Hold blocks requests to route until the returned release func is called.
// Held requests observe state as it is when they are released.
func (f *FakeAPI) Hold(route string) (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.holds[route] = gate
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			if f.holds[route] == gate {
				delete(f.holds, route)
				close(gate)
			}
			f.mu.Unlock()
		})
	}
}

// Requests returns every request received so far.
func (f *FakeAPI) Requests() []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RecordedRequest(nil), f.requests...)
}

// RequestCount returns how many requests hit route.
func (f *FakeAPI) RequestCount(route string) int {
	n := 0
	for _, r := range f.Requests() {
		if r.Route == route {
			n++
		}
	}
	return n
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, body []byte)

func (f *FakeAPI) handle(mux *http.ServeMux, route string, h handlerFunc) {
	mux.HandleFunc(route, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		f.mu.Lock()
		f.requests = append(f.requests, RecordedRequest{
			Route:     route,
			Path:      r.URL.Path,
			Body:      string(body),
			Auth:      r.Header.Get("Authorization"),
			RequestID: r.Header.Get(api.RequestIDHeader),
		})
		gate := f.holds[route]
		f.mu.Unlock()

		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}

		f.mu.Lock()
		fail, failing := f.failures[route]
		if failing && fail.once {
			delete(f.failures, route)
		}
		f.mu.Unlock()
		if failing {
			writeJSON(w, fail.status, api.Envelope{Success: false, Message: fail.message})
			return
		}

		h(w, r, body)
	})
}

func (f *FakeAPI) authed(h func(w http.ResponseWriter, r *http.Request, body []byte, u api.User)) handlerFunc {
	return func(w http.ResponseWriter, r *http.Request, body []byte) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		f.mu.Lock()
		u, ok := f.tokens[token]
		f.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, api.Envelope{Message: "Unauthorized"})
			return
		}
		h(w, r, body, u)
	}
}

func (f *FakeAPI) login(w http.ResponseWriter, r *http.Request, body []byte) {
	var req api.LoginRequest
	if err := json.Unmarshal(body, &req); err != nil || req.Email == "" {
		writeJSON(w, http.StatusBadRequest, api.Envelope{Message: "Email is required"})
		return
	}

	f.mu.Lock()
	if _, ok := f.codes[req.Email]; !ok {
		f.codes[req.Email] = DefaultCode
	}
	expires := f.now().Add(f.codeTTL)
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, api.LoginResponse{
		Envelope: api.Envelope{Success: true, Message: "OTP sent to your email"},
		Data:     api.CodeIssued{Email: req.Email, ExpiresAt: expires},
	})
}

func (f *FakeAPI) verify(w http.ResponseWriter, r *http.Request, body []byte) {
	var req api.VerifyRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, api.Envelope{Message: "Malformed request"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	want, ok := f.codes[req.Email]
	if !ok || req.OTP != want {
		writeJSON(w, http.StatusOK, api.Envelope{Success: false, Message: "Invalid OTP"})
		return
	}
	token := f.issueTokenLocked(req.Email)
	writeJSON(w, http.StatusOK, api.VerifyResponse{
		Envelope: api.Envelope{Success: true, Message: "Login successful"},
		Token:    token,
		User:     f.tokens[token],
	})
}

func (f *FakeAPI) register(w http.ResponseWriter, r *http.Request, body []byte) {
	var req api.RegisterRequest
	if err := json.Unmarshal(body, &req); err != nil || req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, api.Envelope{Message: "Email and password are required"})
		return
	}
	writeJSON(w, http.StatusCreated, api.RegisterResponse{
		Envelope: api.Envelope{Success: true, Message: "User registered successfully"},
	})
}

func (f *FakeAPI) listCategories(w http.ResponseWriter, r *http.Request, _ []byte) {
	f.mu.Lock()
	categories := append([]api.Category(nil), f.categories...)
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, api.CategoriesResponse{
		Envelope:   api.Envelope{Success: true},
		Categories: categories,
	})
}

func (f *FakeAPI) filterMeals(w http.ResponseWriter, r *http.Request, _ []byte) {
	q := r.URL.Query()
	category := q.Get("category")
	term := strings.ToLower(q.Get("searchTerm"))
	page := atoiDefault(q.Get("page"), 1)
	limit := atoiDefault(q.Get("limit"), 10)

	f.mu.Lock()
	var matched []api.Meal
	for _, m := range f.meals {
		if category != "" && m.Category != category {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(m.Name), term) {
			continue
		}
		matched = append(matched, m)
	}
	f.mu.Unlock()

	pages := (len(matched) + limit - 1) / limit
	start := (page - 1) * limit
	end := start + limit
	if start > len(matched) {
		start = len(matched)
	}
	if end > len(matched) {
		end = len(matched)
	}

	writeJSON(w, http.StatusOK, api.MealPage{
		Envelope: api.Envelope{Success: true},
		Data:     append([]api.Meal{}, matched[start:end]...),
		Total:    len(matched),
		Page:     page,
		Pages:    pages,
	})
}

func (f *FakeAPI) getCart(w http.ResponseWriter, r *http.Request, _ []byte, u api.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeCartLocked(w, u, "Cart retrieved")
}

func (f *FakeAPI) addToCart(w http.ResponseWriter, r *http.Request, body []byte, u api.User) {
	var req api.CartItemRequest
	if err := json.Unmarshal(body, &req); err != nil || req.ProductID == "" || req.Quantity < 1 {
		writeJSON(w, http.StatusBadRequest, api.Envelope{Message: "productId and quantity are required"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	meal, ok := f.mealLocked(req.ProductID)
	if !ok {
		writeJSON(w, http.StatusNotFound, api.Envelope{Message: "Product not found"})
		return
	}
	current := 0
	for _, item := range f.carts[u.ID] {
		if item.ProductID() == req.ProductID {
			current = item.Quantity
		}
	}
	f.carts[u.ID] = upsertLine(f.carts[u.ID], meal, current+req.Quantity)
	f.writeCartLocked(w, u, "Item added to cart")
}

func (f *FakeAPI) updateCart(w http.ResponseWriter, r *http.Request, body []byte, u api.User) {
	var req api.CartItemRequest
	if err := json.Unmarshal(body, &req); err != nil || req.ProductID == "" || req.Quantity < 1 {
		writeJSON(w, http.StatusBadRequest, api.Envelope{Message: "Quantity must be at least 1"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for i, item := range f.carts[u.ID] {
		if item.ProductID() == req.ProductID {
			f.carts[u.ID][i].Quantity = req.Quantity
			f.writeCartLocked(w, u, "Cart updated")
			return
		}
	}
	writeJSON(w, http.StatusNotFound, api.Envelope{Message: "Item not found in cart"})
}

func (f *FakeAPI) removeFromCart(w http.ResponseWriter, r *http.Request, _ []byte, u api.User) {
	productID := r.PathValue("productId")

	f.mu.Lock()
	defer f.mu.Unlock()
	items := f.carts[u.ID]
	for i, item := range items {
		if item.ProductID() == productID {
			f.carts[u.ID] = append(items[:i:i], items[i+1:]...)
			f.writeCartLocked(w, u, "Item removed from cart")
			return
		}
	}
	writeJSON(w, http.StatusNotFound, api.Envelope{Message: "Item not found in cart"})
}

func (f *FakeAPI) clearCart(w http.ResponseWriter, r *http.Request, _ []byte, u api.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.carts[u.ID] = nil
	f.writeCartLocked(w, u, "Cart cleared")
}

func (f *FakeAPI) getWishlist(w http.ResponseWriter, r *http.Request, _ []byte, u api.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := api.Wishlist{ID: "wishlist-" + u.ID, User: u.ID, Products: []api.Meal{}}
	for _, id := range f.wishlists[u.ID] {
		if meal, ok := f.mealLocked(id); ok {
			list.Products = append(list.Products, meal)
		}
	}
	writeJSON(w, http.StatusOK, api.WishlistResponse{
		Envelope: api.Envelope{Success: true},
		Data:     list,
	})
}

func (f *FakeAPI) wishlistAdd(w http.ResponseWriter, r *http.Request, body []byte, u api.User) {
	var req api.WishlistRequest
	if err := json.Unmarshal(body, &req); err != nil || req.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, api.Envelope{Message: "productId is required"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.mealLocked(req.ProductID); !ok {
		writeJSON(w, http.StatusNotFound, api.Envelope{Message: "Product not found"})
		return
	}
	for _, id := range f.wishlists[u.ID] {
		if id == req.ProductID {
			writeJSON(w, http.StatusBadRequest, api.Envelope{Message: "Product already in wishlist"})
			return
		}
	}
	f.wishlists[u.ID] = append(f.wishlists[u.ID], req.ProductID)
	writeJSON(w, http.StatusOK, api.WishlistActionResponse{
		Envelope: api.Envelope{Success: true, Message: "Added to wishlist"},
	})
}

func (f *FakeAPI) wishlistRemove(w http.ResponseWriter, r *http.Request, _ []byte, u api.User) {
	productID := r.PathValue("productId")

	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.wishlists[u.ID]
	for i, id := range list {
		if id == productID {
			f.wishlists[u.ID] = append(list[:i:i], list[i+1:]...)
			writeJSON(w, http.StatusOK, api.WishlistActionResponse{
				Envelope: api.Envelope{Success: true, Message: "Removed from wishlist"},
			})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, api.Envelope{Message: "Product not in wishlist"})
}

func (f *FakeAPI) wishlistClear(w http.ResponseWriter, r *http.Request, _ []byte, u api.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wishlists[u.ID] = nil
	writeJSON(w, http.StatusOK, api.WishlistActionResponse{
		Envelope: api.Envelope{Success: true, Message: "Wishlist cleared"},
	})
}

func (f *FakeAPI) mealLocked(id string) (api.Meal, bool) {
	for _, m := range f.meals {
		if m.ID == id {
			return m, true
		}
	}
	return api.Meal{}, false
}

func (f *FakeAPI) writeCartLocked(w http.ResponseWriter, u api.User, message string) {
	items := append([]api.CartItem{}, f.carts[u.ID]...)
	sort.SliceStable(items, func(i, j int) bool { return items[i].ProductID() < items[j].ProductID() })

	total := money.Zero
	for _, item := range items {
		price, _ := item.UnitPrice()
		total = total.Add(price.Times(item.Quantity))
	}
	writeJSON(w, http.StatusOK, api.CartResponse{
		Envelope: api.Envelope{Success: true, Message: message},
		Data: api.Cart{
			ID:          "cart-" + u.ID,
			User:        u.ID,
			Items:       items,
			TotalAmount: total,
		},
	})
}

func upsertLine(items []api.CartItem, meal api.Meal, quantity int) []api.CartItem {
	for i, item := range items {
		if item.ProductID() == meal.ID {
			items[i].Quantity = quantity
			return items
		}
	}
	price := meal.Price
	return append(items, api.CartItem{
		ID:       "item-" + meal.ID,
		Product:  &api.ProductRef{ID: meal.ID, Name: meal.Name, Price: meal.Price},
		Quantity: quantity,
		Price:    &price,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}
