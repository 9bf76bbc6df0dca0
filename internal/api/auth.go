package api

import (
	"context"
	"net/http"
)

// RequestLoginCode asks the server to email a one-time code to email.
func (c *Client) RequestLoginCode(ctx context.Context, email string) (*CodeIssued, error) {
	var resp LoginResponse
	err := c.do(ctx, call{
		op: "request login code", method: http.MethodPost,
		path: "/api/auth/login", body: LoginRequest{Email: email},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// VerifyLoginCode exchanges a one-time code for a bearer token.
func (c *Client) VerifyLoginCode(ctx context.Context, email, code string) (*VerifyResponse, error) {
	var resp VerifyResponse
	err := c.do(ctx, call{
		op: "verify login code", method: http.MethodPost,
		path: "/api/auth/verify-login-otp", body: VerifyRequest{Email: email, OTP: code},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates an account. It returns the server's confirmation message.
func (c *Client) Register(ctx context.Context, email, password string) (string, error) {
	var resp RegisterResponse
	err := c.do(ctx, call{
		op: "register", method: http.MethodPost,
		path: "/api/auth/register", body: RegisterRequest{Email: email, Password: password},
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}
