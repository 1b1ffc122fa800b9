package mercadopago

import (
	"strings"

	"github.com/shopspring/decimal"
)

// BackURLs are the browser return targets the gateway redirects to after the
// payer finishes (or abandons) the hosted checkout.
type BackURLs struct {
	Success string `json:"success,omitempty"`
	Failure string `json:"failure,omitempty"`
	Pending string `json:"pending,omitempty"`
}

// PreferenceCreateParams contains the fields required to open a hosted
// checkout preference for a single payment attempt.
type PreferenceCreateParams struct {
	Title             string
	Quantity          int
	UnitPrice         decimal.Decimal
	Currency          string
	PayerName         string
	PayerEmail        string
	ExternalReference string
	NotificationURL   string
	BackURLs          BackURLs
}

type preferenceItem struct {
	Title      string          `json:"title"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	CurrencyID string          `json:"currency_id,omitempty"`
}

type preferencePayer struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type preferenceRequest struct {
	Items             []preferenceItem `json:"items"`
	Payer             *preferencePayer `json:"payer,omitempty"`
	BackURLs          *BackURLs        `json:"back_urls,omitempty"`
	AutoReturn        string           `json:"auto_return,omitempty"`
	ExternalReference string           `json:"external_reference,omitempty"`
	NotificationURL   string           `json:"notification_url,omitempty"`
}

func (p PreferenceCreateParams) toRequest() *preferenceRequest {
	quantity := p.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	req := &preferenceRequest{
		Items: []preferenceItem{{
			Title:      strings.TrimSpace(p.Title),
			Quantity:   quantity,
			UnitPrice:  p.UnitPrice,
			CurrencyID: strings.ToUpper(strings.TrimSpace(p.Currency)),
		}},
		ExternalReference: strings.TrimSpace(p.ExternalReference),
		NotificationURL:   strings.TrimSpace(p.NotificationURL),
	}
	if p.PayerName != "" || p.PayerEmail != "" {
		req.Payer = &preferencePayer{
			Name:  strings.TrimSpace(p.PayerName),
			Email: strings.TrimSpace(p.PayerEmail),
		}
	}
	if p.BackURLs != (BackURLs{}) {
		urls := p.BackURLs
		req.BackURLs = &urls
		req.AutoReturn = "approved"
	}
	return req
}

// Preference is the gateway's hosted checkout descriptor.
type Preference struct {
	ID                string `json:"id"`
	InitPoint         string `json:"init_point"`
	SandboxInitPoint  string `json:"sandbox_init_point"`
	ExternalReference string `json:"external_reference"`
}

// CheckoutURL picks the redirect target for the payer's browser.
func (p *Preference) CheckoutURL(sandbox bool) string {
	if p == nil {
		return ""
	}
	if sandbox && p.SandboxInitPoint != "" {
		return p.SandboxInitPoint
	}
	return p.InitPoint
}

// Payment is the authoritative gateway-side record of a payment attempt.
type Payment struct {
	ID                int64           `json:"id"`
	Status            string          `json:"status"`
	StatusDetail      string          `json:"status_detail"`
	ExternalReference string          `json:"external_reference"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	CurrencyID        string          `json:"currency_id"`
	PaymentMethodID   string          `json:"payment_method_id"`
	DateApproved      string          `json:"date_approved"`
}

type apiErrorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Status  int    `json:"status"`
}
