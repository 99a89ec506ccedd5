package billing

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

const DefaultStripeBaseURL = "https://api.stripe.com"

// StripeError is the error body of the Stripe REST API.
type StripeError struct {
	Status  int    `json:"-"`
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *StripeError) Error() string {
	return fmt.Sprintf("stripe error (status %d, %s): %s", e.Status, e.Type, e.Message)
}

type stripeErrorBody struct {
	Error StripeError `json:"error"`
}

type listResponse[T any] struct {
	Data    []T  `json:"data"`
	HasMore bool `json:"has_more"`
}

type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type Subscription struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// SessionParams describes a hosted checkout page with a single line item.
type SessionParams struct {
	CustomerID    string
	CustomerEmail string
	PriceID       string
	Mode          string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
	// SubscriptionMetadata is copied onto the subscription so later
	// webhook events can find the user.
	SubscriptionMetadata map[string]string
	TrialDays            int
}

// Stripe is a thin form-encoded REST client for the few endpoints checkout
// needs.
type Stripe struct {
	httpClient *resty.Client
}

func NewStripe(baseURL, secretKey string) *Stripe {
	if baseURL == "" {
		baseURL = DefaultStripeBaseURL
	}
	return &Stripe{
		httpClient: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(30*time.Second).
			SetAuthToken(secretKey).
			SetHeader("Accept", "application/json"),
	}
}

func (s *Stripe) req(ctx context.Context, result any) *resty.Request {
	return s.httpClient.R().
		SetContext(ctx).
		SetResult(result).
		SetError(&stripeErrorBody{})
}

func handleError(res *resty.Response, err error, what string) error {
	if err != nil {
		return fmt.Errorf("stripe %s failed: %w", what, err)
	}
	if res.IsError() {
		if body, ok := res.Error().(*stripeErrorBody); ok && body.Error.Message != "" {
			e := body.Error
			e.Status = res.StatusCode()
			return &e
		}
		return &StripeError{Status: res.StatusCode(), Message: res.Status()}
	}
	return nil
}

// FindCustomer returns the first customer with email, or nil.
func (s *Stripe) FindCustomer(ctx context.Context, email string) (*Customer, error) {
	var result listResponse[Customer]
	res, err := s.req(ctx, &result).
		SetQueryParams(map[string]string{"email": email, "limit": "1"}).
		Get("/v1/customers")
	if err := handleError(res, err, "customer lookup"); err != nil {
		return nil, err
	}
	if len(result.Data) == 0 {
		return nil, nil
	}
	return &result.Data[0], nil
}

// HasSubscription reports whether the customer has ever subscribed.
func (s *Stripe) HasSubscription(ctx context.Context, customerID string) (bool, error) {
	var result listResponse[Subscription]
	res, err := s.req(ctx, &result).
		SetQueryParams(map[string]string{"customer": customerID, "status": "all", "limit": "1"}).
		Get("/v1/subscriptions")
	if err := handleError(res, err, "subscription lookup"); err != nil {
		return false, err
	}
	return len(result.Data) > 0, nil
}

func (s *Stripe) CreateCheckoutSession(ctx context.Context, p SessionParams) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", p.Mode)
	form.Set("line_items[0][price]", p.PriceID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", p.SuccessURL)
	form.Set("cancel_url", p.CancelURL)
	if p.CustomerID != "" {
		form.Set("customer", p.CustomerID)
	} else if p.CustomerEmail != "" {
		form.Set("customer_email", p.CustomerEmail)
	}
	for k, v := range p.Metadata {
		form.Set("metadata["+k+"]", v)
	}
	for k, v := range p.SubscriptionMetadata {
		form.Set("subscription_data[metadata]["+k+"]", v)
	}
	if p.TrialDays > 0 {
		form.Set("subscription_data[trial_period_days]", strconv.Itoa(p.TrialDays))
	}

	var result CheckoutSession
	res, err := s.req(ctx, &result).
		SetFormDataFromValues(form).
		Post("/v1/checkout/sessions")
	if err := handleError(res, err, "checkout session"); err != nil {
		return nil, err
	}
	return &result, nil
}
