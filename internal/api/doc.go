// Package api is the HTTP client for the Shrimp Zone restaurant API.
//
// The API owns every business rule: prices, stock, carts, wishlists and
// one-time-code authentication. This package only speaks the JSON contract:
//
//   - Auth:      POST /api/auth/login, /api/auth/verify-login-otp, /api/auth/register
//   - Catalog:   GET /api/categories/all-categories, /api/products/filter
//   - Cart:      GET get-cart, POST add-to-cart, PUT update-cart,
//     DELETE remove-from-cart/{id}, DELETE clear-cart (under /api/cart)
//   - Wishlist:  GET /api/wishlist/, POST add, DELETE remove/{id}, DELETE clear
//
// Cart and wishlist calls carry "Authorization: Bearer <token>". The token
// comes from a TokenSource; when none is available the call fails locally
// with a NOT_AUTHENTICATED error and no request is sent.
//
// Every failure is an *Error carrying one of three codes:
//
//   - NOT_AUTHENTICATED: no session, or the server answered 401
//   - NETWORK_FAILURE:   the request never produced an HTTP response
//   - SERVER_REJECTED:   non-2xx status, success=false, or an unreadable body
package api
