package domain

import (
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type GuestAddress struct {
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

func (a GuestAddress) Validate() error {
	required := []struct {
		name, value string
	}{
		{"full_name", a.FullName},
		{"email", a.Email},
		{"line1", a.Line1},
		{"city", a.City},
		{"postal_code", a.PostalCode},
		{"country", a.Country},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return Validationf("%s is required", f.name)
		}
	}
	if _, err := mail.ParseAddress(a.Email); err != nil {
		return Validationf("email %q is invalid", a.Email)
	}
	return nil
}

type ShippingOption struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	EstimatedDays int             `json:"estimated_days"`
}

type CheckoutSummary struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Discount decimal.Decimal `json:"discount"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

type CheckoutSession struct {
	SessionID              string           `json:"session_id"`
	Address                *GuestAddress    `json:"address,omitempty"`
	ShippingOptions        []ShippingOption `json:"shipping_options,omitempty"`
	SelectedShippingOption *ShippingOption  `json:"selected_shipping_option,omitempty"`
	Summary                *CheckoutSummary `json:"summary,omitempty"`
	CreatedAt              time.Time        `json:"created_at"`
	UpdatedAt              time.Time        `json:"updated_at"`
}

func NewCheckoutSession(sessionID string, now time.Time) *CheckoutSession {
	return &CheckoutSession{
		SessionID: sessionID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// OfferedOption returns the snapshotted option with the given id.
func (s *CheckoutSession) OfferedOption(id string) (ShippingOption, bool) {
	for _, o := range s.ShippingOptions {
		if o.ID == id {
			return o, true
		}
	}
	return ShippingOption{}, false
}
