// Package auth drives passwordless sign-in: the customer enters an email,
// receives a one-time code and submits it.
//
//	CollectingEmail --RequestCode ok--> AwaitingCode --Verify ok--> Authenticated
//	       ^                                  |
//	       +-------------- Reset -------------+
//
// A failed request or verification leaves the step unchanged and records
// the reason for display.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/shrimpzone/internal/api"
	"github.com/roach88/shrimpzone/internal/session"
)

// Step is a state of the sign-in flow.
type Step int

const (
	StepCollectingEmail Step = iota
	StepAwaitingCode
	StepAuthenticated
)

func (s Step) String() string {
	switch s {
	case StepCollectingEmail:
		return "collecting_email"
	case StepAwaitingCode:
		return "awaiting_code"
	case StepAuthenticated:
		return "authenticated"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

var (
	// ErrWrongStep is returned when an operation is not allowed in the
	// current step.
	ErrWrongStep = errors.New("operation not allowed in current step")

	// ErrEmailRequired is returned for a blank email. No request is made.
	ErrEmailRequired = errors.New("email is required")

	// ErrInvalidEmail is returned for an email without a local part and domain.
	ErrInvalidEmail = errors.New("email address is not valid")

	// ErrCodeRequired is returned for a blank code. No request is made.
	ErrCodeRequired = errors.New("verification code is required")

	// ErrPasswordRequired is returned when registering without a password.
	ErrPasswordRequired = errors.New("password is required")
)

// Messages shown when the server gives no reason.
const (
	msgSendFailed   = "Failed to send OTP"
	msgSendRetry    = "Failed to send OTP. Please try again."
	msgInvalidCode  = "Invalid OTP"
	msgInvalidRetry = "Invalid OTP. Please try again."
)

// Gateway is the server side of sign-in.
type Gateway interface {
	RequestLoginCode(ctx context.Context, email string) (*api.CodeIssued, error)
	VerifyLoginCode(ctx context.Context, email, code string) (*api.VerifyResponse, error)
	Register(ctx context.Context, email, password string) (string, error)
}

// Sessions starts a session once a code is verified.
type Sessions interface {
	Begin(ctx context.Context, token string, user api.User) (*session.Session, error)
}

// State is a snapshot of the flow for rendering.
type State struct {
	Step      Step
	Email     string
	ExpiresAt time.Time
	Error     string
}

// Flow is one sign-in attempt.
//
// Thread-safety: Flow is safe for concurrent use, but operations are meant
// to be driven by one customer in sequence.
type Flow struct {
	gw       Gateway
	sessions Sessions

	mu        sync.Mutex
	step      Step
	email     string
	expiresAt time.Time
	reason    string
}

// NewFlow starts a flow at StepCollectingEmail.
func NewFlow(gw Gateway, sessions Sessions) *Flow {
	return &Flow{gw: gw, sessions: sessions}
}

// NormalizeEmail trims, NFC-normalises and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(email)))
}

func checkEmail(email string) error {
	if email == "" {
		return ErrEmailRequired
	}
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" || strings.ContainsAny(email, " \t") {
		return ErrInvalidEmail
	}
	return nil
}

// RequestCode asks the server to email a code to email.
func (f *Flow) RequestCode(ctx context.Context, email string) error {
	email = NormalizeEmail(email)

	f.mu.Lock()
	if f.step != StepCollectingEmail {
		step := f.step
		f.mu.Unlock()
		return fmt.Errorf("request code in %s: %w", step, ErrWrongStep)
	}
	f.reason = ""
	f.mu.Unlock()

	if err := checkEmail(email); err != nil {
		f.fail(err.Error())
		return err
	}

	issued, err := f.gw.RequestLoginCode(ctx, email)
	if err != nil {
		f.fail(reasonFor(err, msgSendFailed, msgSendRetry))
		return fmt.Errorf("request code: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.step = StepAwaitingCode
	f.email = email
	f.expiresAt = issued.ExpiresAt
	slog.Debug("login code sent", "email", email, "expires_at", issued.ExpiresAt)
	return nil
}

// Verify submits code. Success starts a session and ends the flow.
func (f *Flow) Verify(ctx context.Context, code string) (*session.Session, error) {
	code = strings.TrimSpace(code)

	f.mu.Lock()
	if f.step != StepAwaitingCode {
		step := f.step
		f.mu.Unlock()
		return nil, fmt.Errorf("verify in %s: %w", step, ErrWrongStep)
	}
	email := f.email
	f.reason = ""
	f.mu.Unlock()

	if code == "" {
		f.fail(ErrCodeRequired.Error())
		return nil, ErrCodeRequired
	}

	resp, err := f.gw.VerifyLoginCode(ctx, email, code)
	if err != nil {
		f.fail(reasonFor(err, msgInvalidCode, msgInvalidRetry))
		return nil, fmt.Errorf("verify code: %w", err)
	}

	sess, err := f.sessions.Begin(ctx, resp.Token, resp.User)
	if err != nil {
		f.fail(err.Error())
		return nil, fmt.Errorf("verify code: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.step = StepAuthenticated
	return sess, nil
}

// Reset returns to email entry, discarding the pending code.
func (f *Flow) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step != StepAwaitingCode {
		return fmt.Errorf("reset in %s: %w", f.step, ErrWrongStep)
	}
	f.step = StepCollectingEmail
	f.expiresAt = time.Time{}
	f.reason = ""
	return nil
}

// Register creates an account. Registration does not sign in.
func (f *Flow) Register(ctx context.Context, email, password string) (string, error) {
	email = NormalizeEmail(email)
	if err := checkEmail(email); err != nil {
		return "", err
	}
	if password == "" {
		return "", ErrPasswordRequired
	}
	msg, err := f.gw.Register(ctx, email, password)
	if err != nil {
		return "", fmt.Errorf("register: %w", err)
	}
	return msg, nil
}

// ExpiresIn renders the code's remaining lifetime in whole minutes,
// rounding up, or "expired". It is empty when no code is pending.
func (f *Flow) ExpiresIn(now time.Time) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step != StepAwaitingCode || f.expiresAt.IsZero() {
		return ""
	}
	return FormatExpiry(f.expiresAt, now)
}

// FormatExpiry renders the time left until expiresAt.
func FormatExpiry(expiresAt, now time.Time) string {
	minutes := int(math.Ceil(expiresAt.Sub(now).Minutes()))
	if minutes <= 0 {
		return "expired"
	}
	return fmt.Sprintf("%d minute(s)", minutes)
}

// State returns a snapshot for rendering.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return State{Step: f.step, Email: f.email, ExpiresAt: f.expiresAt, Error: f.reason}
}

func (f *Flow) fail(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reason = reason
}

// reasonFor picks the text shown for a failed request: the server's own
// message when it rejected the call, fallback when it rejected without
// one, retry when the request never got an answer.
func reasonFor(err error, fallback, retry string) string {
	var ae *api.Error
	if !errors.As(err, &ae) || ae.Code == api.ErrCodeNetworkFailure {
		return retry
	}
	if ae.Message != "" {
		return ae.Message
	}
	return fallback
}
