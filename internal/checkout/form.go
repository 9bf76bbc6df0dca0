package checkout

import (
	"strings"
)

// Form is the checkout form as entered.
type Form struct {
	// Customer
	FirstName string `json:"firstName" yaml:"firstName"`
	LastName  string `json:"lastName" yaml:"lastName"`
	Email     string `json:"email" yaml:"email"`
	Phone     string `json:"phone" yaml:"phone"`

	// Delivery
	Address              string `json:"address" yaml:"address"`
	City                 string `json:"city" yaml:"city"`
	ZipCode              string `json:"zipCode" yaml:"zipCode"`
	DeliveryInstructions string `json:"deliveryInstructions,omitempty" yaml:"deliveryInstructions,omitempty"`

	// Payment
	CardNumber     string `json:"cardNumber" yaml:"cardNumber"`
	ExpiryMonth    string `json:"expiryMonth" yaml:"expiryMonth"`
	ExpiryYear     string `json:"expiryYear" yaml:"expiryYear"`
	CVV            string `json:"cvv" yaml:"cvv"`
	CardholderName string `json:"cardholderName" yaml:"cardholderName"`
}

// Field names a required form field.
type Field struct {
	Name  string // user-facing label
	value func(*Form) *string
}

// Fields lists the form fields in display order. Only DeliveryInstructions
// is optional.
var Fields = []Field{
	{"first name", func(f *Form) *string { return &f.FirstName }},
	{"last name", func(f *Form) *string { return &f.LastName }},
	{"email", func(f *Form) *string { return &f.Email }},
	{"phone", func(f *Form) *string { return &f.Phone }},
	{"address", func(f *Form) *string { return &f.Address }},
	{"city", func(f *Form) *string { return &f.City }},
	{"zip code", func(f *Form) *string { return &f.ZipCode }},
	{"card number", func(f *Form) *string { return &f.CardNumber }},
	{"expiry month", func(f *Form) *string { return &f.ExpiryMonth }},
	{"expiry year", func(f *Form) *string { return &f.ExpiryYear }},
	{"CVV", func(f *Form) *string { return &f.CVV }},
	{"cardholder name", func(f *Form) *string { return &f.CardholderName }},
}

// Value returns a pointer to the field in form.
func (fd Field) Value(form *Form) *string { return fd.value(form) }

// ValidationError lists the required fields left blank.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "Please fill in all required fields: " + strings.Join(e.Missing, ", ")
}

// Validate checks that every required field is non-blank. It returns a
// *ValidationError naming the blank fields in form order.
func (f Form) Validate() error {
	var missing []string
	for _, fd := range Fields {
		if strings.TrimSpace(*fd.Value(&f)) == "" {
			missing = append(missing, fd.Name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// FormatCardNumber keeps the digits of s and groups the first 16 in fours.
// Fewer than four digits are returned ungrouped.
func FormatCardNumber(s string) string {
	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) < 4 {
		return d
	}
	if len(d) > 16 {
		d = d[:16]
	}

	var b strings.Builder
	for i := 0; i < len(d); i += 4 {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(d[i:min(i+4, len(d))])
	}
	return b.String()
}

// MaskCardNumber hides all but the last four digits.
func MaskCardNumber(s string) string {
	d := strings.ReplaceAll(FormatCardNumber(s), " ", "")
	if len(d) <= 4 {
		return d
	}
	return strings.Repeat("•", len(d)-4) + d[len(d)-4:]
}
