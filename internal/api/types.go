package api

import (
	"time"

	"github.com/roach88/shrimpzone/internal/money"
)

// Envelope is the status part shared by every response body.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (e *Envelope) status() *Envelope { return e }

// enveloped is implemented by every response type.
type enveloped interface {
	status() *Envelope
}

// ProductRef is the product summary embedded in a cart item.
type ProductRef struct {
	ID     string       `json:"_id"`
	Name   string       `json:"name"`
	Price  money.Amount `json:"price"`
	Images []string     `json:"images,omitempty"`
}

// CartItem is one line of a server cart.
type CartItem struct {
	ID       string        `json:"_id"`
	Meal     string        `json:"meal,omitempty"`
	Product  *ProductRef   `json:"product,omitempty"`
	Quantity int           `json:"quantity"`
	Price    *money.Amount `json:"price,omitempty"`
}

// ProductID returns the product identifier of the line: the populated
// product's id, else the meal reference, else the item id.
func (i CartItem) ProductID() string {
	if i.Product != nil && i.Product.ID != "" {
		return i.Product.ID
	}
	if i.Meal != "" {
		return i.Meal
	}
	return i.ID
}

// DisplayName returns the product name or a placeholder.
func (i CartItem) DisplayName() string {
	if i.Product != nil && i.Product.Name != "" {
		return i.Product.Name
	}
	return "Product " + i.ProductID()
}

// UnitPrice returns the price stored on the line, else the populated
// product's price. The stored price wins even when it is zero, since the
// product price may have changed since. ok is false when neither is known.
func (i CartItem) UnitPrice() (price money.Amount, ok bool) {
	if i.Price != nil {
		return *i.Price, true
	}
	if i.Product != nil {
		return i.Product.Price, true
	}
	return money.Zero, false
}

// Cart is the server's cart for the signed-in user.
type Cart struct {
	ID          string       `json:"_id"`
	User        string       `json:"user"`
	Items       []CartItem   `json:"items"`
	TotalAmount money.Amount `json:"totalAmount"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// CartResponse is returned by every cart endpoint.
type CartResponse struct {
	Envelope
	Data Cart `json:"data"`
}

// CartItemRequest is the body of add-to-cart and update-cart.
type CartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Category groups meals on the menu.
type Category struct {
	ID          string    `json:"_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}

// CategoriesResponse is returned by all-categories.
type CategoriesResponse struct {
	Envelope
	Categories []Category `json:"categories"`
}

// Meal is a menu product.
type Meal struct {
	ID          string       `json:"_id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Price       money.Amount `json:"price"`
	Category    string       `json:"category"`
	Images      []string     `json:"images"`
	CreatedAt   time.Time    `json:"createdAt,omitempty"`
	UpdatedAt   time.Time    `json:"updatedAt,omitempty"`
}

// MealFilter selects meals. Zero fields are omitted from the query.
type MealFilter struct {
	Category   string
	SearchTerm string
	Page       int
	Limit      int
}

// MealPage is one page of filtered meals.
type MealPage struct {
	Envelope
	Data  []Meal `json:"data"`
	Total int    `json:"total"`
	Page  int    `json:"page"`
	Pages int    `json:"pages"`
}

// User is the authenticated customer.
type User struct {
	ID    string `json:"_id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// LoginRequest asks the server to email a one-time code.
type LoginRequest struct {
	Email string `json:"email"`
}

// CodeIssued describes an emailed one-time code.
type CodeIssued struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// LoginResponse is returned by /api/auth/login.
type LoginResponse struct {
	Envelope
	Data CodeIssued `json:"data"`
}

// VerifyRequest submits a one-time code.
type VerifyRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// VerifyResponse carries the bearer token on success.
type VerifyResponse struct {
	Envelope
	Token string `json:"token"`
	User  User   `json:"user"`
}

// RegisterRequest creates an account.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResponse is returned by /api/auth/register.
type RegisterResponse struct {
	Envelope
}

// Wishlist is the signed-in user's saved meals.
type Wishlist struct {
	ID       string `json:"_id"`
	User     string `json:"user"`
	Products []Meal `json:"products"`
}

// WishlistResponse is returned by GET /api/wishlist/.
type WishlistResponse struct {
	Envelope
	Data Wishlist `json:"data"`
}

// WishlistRequest is the body of wishlist add.
type WishlistRequest struct {
	ProductID string `json:"productId"`
}

// WishlistActionResponse is returned by wishlist add, remove and clear.
type WishlistActionResponse struct {
	Envelope
}
