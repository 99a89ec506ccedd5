package billing

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/raine/vintifi/internal/adapter"
	"github.com/raine/vintifi/internal/apierror"
	"github.com/raine/vintifi/internal/auth"
	"github.com/raine/vintifi/internal/storage"
)

var prices = map[string]string{
	"pro_monthly":      "price_pro_m",
	"pro_annual":       "price_pro_a",
	"business_monthly": "price_biz_m",
	"pack_10":          "price_p10",
	"pack_30":          "price_p30",
}

var user = auth.User{ID: "u1", Email: "seller@example.com"}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) ListingSaved(userID, listingID, title string, price *float64) {
	m.Called(userID, listingID, title, price)
}

func (m *mockNotifier) CheckoutCreated(userID, kind, priceKey string) {
	m.Called(userID, kind, priceKey)
}

func (m *mockNotifier) ProcessingFailed(userID, operation, message string) {
	m.Called(userID, operation, message)
}

// stripeServer fakes the three endpoints and records the checkout form.
func stripeServer(t *testing.T, customers, subscriptions string) (*httptest.Server, *map[string]string) {
	t.Helper()
	form := map[string]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/customers":
			assert.Equal(t, "seller@example.com", r.URL.Query().Get("email"))
			fmt.Fprintf(w, `{"data":%s}`, customers)
		case "/v1/subscriptions":
			assert.Equal(t, "cus_1", r.URL.Query().Get("customer"))
			fmt.Fprintf(w, `{"data":%s}`, subscriptions)
		case "/v1/checkout/sessions":
			require.NoError(t, r.ParseForm())
			for k := range r.PostForm {
				form[k] = r.PostForm.Get(k)
			}
			if form["line_items[0][price]"] == "price_broken" {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such price"}}`))
				return
			}
			w.Write([]byte(`{"id":"cs_1","url":"https://checkout.stripe.test/cs_1"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &form
}

func TestCreateCheckout_FirstSubscription(t *testing.T) {
	srv, form := stripeServer(t, `[]`, `[]`)
	n := &mockNotifier{}
	n.On("CheckoutCreated", "u1", "subscription", "pro_annual").Once()

	svc := NewService(ServiceOpts{Stripe: NewStripe(srv.URL, "sk_test"), Prices: prices, Notifier: n})
	res, err := svc.CreateCheckout(context.Background(), user, "https://app.test", adapter.CheckoutRequest{
		Type: TypeSubscription, Tier: "Pro", Annual: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.test/cs_1", res.URL)

	f := *form
	assert.Equal(t, "subscription", f["mode"])
	assert.Equal(t, "price_pro_a", f["line_items[0][price]"])
	assert.Equal(t, "1", f["line_items[0][quantity]"])
	assert.Equal(t, "seller@example.com", f["customer_email"])
	assert.Equal(t, "https://app.test/dashboard?checkout=success", f["success_url"])
	assert.Equal(t, "https://app.test/settings", f["cancel_url"])
	assert.Equal(t, "u1", f["metadata[user_id]"])
	assert.Equal(t, "subscription", f["metadata[type]"])
	assert.Equal(t, "pro", f["subscription_data[metadata][tier]"])
	assert.Equal(t, "7", f["subscription_data[trial_period_days]"])
	n.AssertExpectations(t)
}

func TestCreateCheckout_ReturningSubscriberGetsNoTrial(t *testing.T) {
	srv, form := stripeServer(t, `[{"id":"cus_1","email":"seller@example.com"}]`, `[{"id":"sub_1","status":"canceled"}]`)
	svc := NewService(ServiceOpts{Stripe: NewStripe(srv.URL, "sk_test"), Prices: prices})

	_, err := svc.CreateCheckout(context.Background(), user, "", adapter.CheckoutRequest{Type: TypeSubscription, Tier: "business"})
	require.NoError(t, err)

	f := *form
	assert.Equal(t, "cus_1", f["customer"])
	assert.NotContains(t, f, "customer_email")
	assert.NotContains(t, f, "subscription_data[trial_period_days]")
	assert.Equal(t, "price_biz_m", f["line_items[0][price]"])
	assert.Equal(t, "https://vintifi.app/settings", f["cancel_url"])
}

func TestCreateCheckout_CreditPack(t *testing.T) {
	srv, form := stripeServer(t, `[]`, `[]`)
	svc := NewService(ServiceOpts{Stripe: NewStripe(srv.URL, "sk_test"), Prices: prices})

	_, err := svc.CreateCheckout(context.Background(), user, "https://app.test", adapter.CheckoutRequest{Type: TypeCreditPack, Pack: "30"})
	require.NoError(t, err)

	f := *form
	assert.Equal(t, "payment", f["mode"])
	assert.Equal(t, "price_p30", f["line_items[0][price]"])
	assert.Equal(t, "pack_30", f["metadata[price_key]"])
	assert.NotContains(t, f, "subscription_data[trial_period_days]")
}

func TestCreateCheckout_Errors(t *testing.T) {
	srv, _ := stripeServer(t, `[]`, `[]`)
	svc := NewService(ServiceOpts{Stripe: NewStripe(srv.URL, "sk_test"), Prices: map[string]string{"pro_monthly": "price_broken"}})
	ctx := context.Background()

	_, err := svc.CreateCheckout(ctx, user, "", adapter.CheckoutRequest{Type: TypeSubscription, Tier: "business", Annual: true})
	assert.Equal(t, "Price not configured for business annual", apierror.Message(err))
	assert.Equal(t, http.StatusBadRequest, apierror.Status(err))

	_, err = svc.CreateCheckout(ctx, user, "", adapter.CheckoutRequest{Type: TypeCreditPack, Pack: "75"})
	assert.Equal(t, "Price not configured for pack 75", apierror.Message(err))

	_, err = svc.CreateCheckout(ctx, user, "", adapter.CheckoutRequest{})
	assert.Equal(t, "price_id required", apierror.Message(err))

	_, err = svc.CreateCheckout(ctx, auth.User{ID: "u2"}, "", adapter.CheckoutRequest{Type: TypeSubscription})
	assert.Equal(t, http.StatusUnauthorized, apierror.Status(err))

	_, err = svc.CreateCheckout(ctx, user, "", adapter.CheckoutRequest{Type: TypeSubscription})
	var stripeErr *StripeError
	require.ErrorAs(t, err, &stripeErr)
	assert.Equal(t, "No such price", stripeErr.Message)
	assert.Equal(t, http.StatusBadRequest, stripeErr.Status)

	unconfigured := NewService(ServiceOpts{Prices: prices})
	_, err = unconfigured.CreateCheckout(ctx, user, "", adapter.CheckoutRequest{Type: TypeSubscription})
	assert.Equal(t, http.StatusServiceUnavailable, apierror.Status(err))
}

func TestVerifySignature(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	payload := []byte(`{"id":"evt_1"}`)
	sig := Sign(payload, "whsec", now.Unix())

	assert.NoError(t, VerifySignature(payload, fmt.Sprintf("t=%d,v1=bogus,v1=%s", now.Unix(), sig), "whsec", now))
	assert.ErrorIs(t, VerifySignature(payload, fmt.Sprintf("t=%d,v1=%s", now.Unix(), sig), "other", now), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature([]byte(`{"id":"evt_2"}`), fmt.Sprintf("t=%d,v1=%s", now.Unix(), sig), "whsec", now), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature(payload, fmt.Sprintf("t=%d,v1=%s", now.Unix(), sig), "whsec", now.Add(10*time.Minute)), ErrStaleSignature)
	assert.ErrorIs(t, VerifySignature(payload, "", "whsec", now), ErrNoSignature)
	assert.ErrorIs(t, VerifySignature(payload, "v1=abc", "whsec", now), ErrNoSignature)
}

func newStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	key, err := storage.DeriveKey("test")
	require.NoError(t, err)
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), key)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func deliver(t *testing.T, svc *Service, payload string) error {
	t.Helper()
	now := svc.now()
	header := fmt.Sprintf("t=%d,v1=%s", now.Unix(), Sign([]byte(payload), "whsec", now.Unix()))
	return svc.HandleWebhook(context.Background(), []byte(payload), header)
}

func TestHandleWebhook_CreditPackIsAppliedOnce(t *testing.T) {
	store := newStore(t)
	_, err := store.EnsureProfile("u1", "")
	require.NoError(t, err)
	svc := NewService(ServiceOpts{Store: store, WebhookSecret: "whsec"})

	payload := `{"id":"evt_1","type":"checkout.session.completed","data":{"object":{
		"id":"cs_1","mode":"payment","metadata":{"type":"credit_pack","user_id":"u1","price_key":"pack_30"}}}}`
	require.NoError(t, deliver(t, svc, payload))
	require.NoError(t, deliver(t, svc, payload))

	p, err := store.GetProfile("u1")
	require.NoError(t, err)
	assert.Equal(t, storage.MonthlyAllowance("free")+30, p.CreditsBalance)
}

func TestHandleWebhook_SubscriptionLifecycle(t *testing.T) {
	store := newStore(t)
	_, err := store.EnsureProfile("u1", "")
	require.NoError(t, err)
	svc := NewService(ServiceOpts{Store: store, WebhookSecret: "whsec"})

	require.NoError(t, deliver(t, svc, `{"id":"evt_1","type":"checkout.session.completed","data":{"object":{
		"id":"cs_1","mode":"subscription","metadata":{"type":"subscription","user_id":"u1","tier":"business"}}}}`))
	p, err := store.GetProfile("u1")
	require.NoError(t, err)
	assert.Equal(t, "business", p.SubscriptionTier)

	require.NoError(t, deliver(t, svc, `{"id":"evt_2","type":"customer.subscription.updated","data":{"object":{
		"id":"sub_1","status":"past_due","metadata":{"user_id":"u1","tier":"pro"}}}}`))
	p, err = store.GetProfile("u1")
	require.NoError(t, err)
	assert.Equal(t, "business", p.SubscriptionTier, "inactive updates are ignored")

	require.NoError(t, deliver(t, svc, `{"id":"evt_3","type":"customer.subscription.deleted","data":{"object":{
		"id":"sub_1","status":"canceled","metadata":{"user_id":"u1"}}}}`))
	p, err = store.GetProfile("u1")
	require.NoError(t, err)
	assert.Equal(t, "free", p.SubscriptionTier)
}

func TestHandleWebhook_Rejects(t *testing.T) {
	store := newStore(t)
	svc := NewService(ServiceOpts{Store: store, WebhookSecret: "whsec"})

	err := svc.HandleWebhook(context.Background(), []byte(`{}`), "t=1,v1=abc")
	assert.Equal(t, http.StatusBadRequest, apierror.Status(err))

	unconfigured := NewService(ServiceOpts{Store: store})
	err = unconfigured.HandleWebhook(context.Background(), []byte(`{}`), "")
	assert.Equal(t, http.StatusServiceUnavailable, apierror.Status(err))
}

func TestPackCredits(t *testing.T) {
	assert.Equal(t, 10, packCredits("pack_10"))
	assert.Equal(t, 75, packCredits("pack_75"))
	assert.Equal(t, 0, packCredits("pro_monthly"))
}
