package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"

	stripe "github.com/stripe/stripe-go/v82"

	"stripelink/internal/types"
)

// stripeAPIBase is the default Stripe API base URL.
// Overridable in tests via StripeGatewayConfig.BaseURL.
const stripeAPIBase = "https://api.stripe.com"

// Dashboard base URLs. Test-mode keys route to the test dashboard.
const (
	dashboardBaseLive = "https://dashboard.stripe.com"
	dashboardBaseTest = "https://dashboard.stripe.com/test"
)

// testModeMarker identifies a test-mode secret key (sk_test_..., rk_test_...).
const testModeMarker = "_test_"

// customerSearchLimit bounds the exact-email customer search. Duplicates
// beyond this window are old enough that the newest-wins tie-break does
// not change.
const customerSearchLimit = 5

// SecretSource resolves the active Stripe secret and the default billing
// portal configuration at call time. Satisfied by *settings.Resolver.
// Lazy resolution is deliberate: the gateway must construct cleanly even
// when nothing is configured yet, so the settings UI stays reachable.
type SecretSource interface {
	Secret(ctx context.Context) (types.SecretString, error)
	PortalConfiguration(ctx context.Context) (string, error)
}

// Customer is the subset of a Stripe customer this service reads.
type Customer struct {
	ID       string            `json:"id"`
	Email    string            `json:"email"`
	Created  int64             `json:"created"`
	Metadata map[string]string `json:"metadata"`
}

// Subscription is the result of creating a subscription: the id, the
// provider-side status, and the payment intent client secret when the
// first invoice requires client-side confirmation.
type Subscription struct {
	ID           string
	Status       string
	ClientSecret string
}

// StripeGatewayConfig holds the configuration for creating a StripeGateway.
type StripeGatewayConfig struct {
	BaseURL string // Override for testing; defaults to stripeAPIBase
	Logger  *slog.Logger
}

// StripeGateway talks to the Stripe REST API through BaseClient. It
// wraps the four calls this service needs — customer search, customer
// create, billing-portal session create, subscription create — plus the
// dashboard URL derivation. Making the calls over plain REST keeps all
// outbound traffic on the shared resilience path and makes httptest
// coverage straightforward; stripe-go is used for its pinned APIVersion.
type StripeGateway struct {
	base    *BaseClient
	secrets SecretSource
	baseURL string
	logger  *slog.Logger
}

// NewStripeGateway creates a StripeGateway. Construction never fails and
// never touches the network; a missing secret surfaces as
// billing_not_configured on the first call that needs one.
func NewStripeGateway(httpClient *http.Client, secrets SecretSource, cfg StripeGatewayConfig) *StripeGateway {
	base := NewBaseClient(
		httpClient,
		"stripe",
		DefaultRetryPolicy(),
		"stripelink/1.0",
	)
	return NewStripeGatewayWithBase(base, secrets, cfg)
}

// NewStripeGatewayWithBase creates a StripeGateway with a pre-configured
// BaseClient. Used by tests to control retry behavior.
func NewStripeGatewayWithBase(base *BaseClient, secrets SecretSource, cfg StripeGatewayConfig) *StripeGateway {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = stripeAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &StripeGateway{
		base:    base,
		secrets: secrets,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// ---------------------------------------------------------------------------
// Gateway operations
// ---------------------------------------------------------------------------

// SearchCustomersByEmail queries Stripe for customers whose email matches
// exactly, newest first. The provider does not guarantee ordering, so the
// result is sorted here; callers picking the first element get the most
// recently created match.
func (g *StripeGateway) SearchCustomersByEmail(ctx context.Context, email string) ([]Customer, error) {
	secret, err := g.resolveSecret(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("query", fmt.Sprintf("email:%q", email))
	params.Set("limit", fmt.Sprintf("%d", customerSearchLimit))

	resp, err := g.doGet(ctx, secret, "/v1/customers/search", params)
	if err != nil {
		return nil, g.wrapTransportError("SearchCustomersByEmail", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, g.handleErrorResponse(resp, "SearchCustomersByEmail")
	}

	var result stripeSearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to decode Stripe customer search response",
			err,
		)
	}

	sort.Slice(result.Data, func(i, j int) bool {
		return result.Data[i].Created > result.Data[j].Created
	})
	return result.Data, nil
}

// CreateCustomer creates a new Stripe customer with the given email and
// metadata.
func (g *StripeGateway) CreateCustomer(ctx context.Context, email string, metadata map[string]string) (Customer, error) {
	secret, err := g.resolveSecret(ctx)
	if err != nil {
		return Customer{}, err
	}

	params := url.Values{}
	params.Set("email", email)
	for k, v := range metadata {
		params.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	resp, err := g.doPost(ctx, secret, "/v1/customers", params)
	if err != nil {
		return Customer{}, g.wrapTransportError("CreateCustomer", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Customer{}, g.handleErrorResponse(resp, "CreateCustomer")
	}

	var customer Customer
	if err := json.NewDecoder(resp.Body).Decode(&customer); err != nil {
		return Customer{}, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to decode Stripe customer creation response",
			err,
		)
	}
	return customer, nil
}

// CreatePortalSession creates a billing-portal session for the customer
// and returns its hosted URL. The configuration id falls back from the
// explicit argument to the resolver's default; when neither is set the
// parameter is omitted and Stripe uses the account default portal.
func (g *StripeGateway) CreatePortalSession(ctx context.Context, customerID, returnURL, configurationID string) (string, error) {
	secret, err := g.resolveSecret(ctx)
	if err != nil {
		return "", err
	}

	if configurationID == "" {
		configurationID, err = g.secrets.PortalConfiguration(ctx)
		if err != nil {
			return "", err
		}
	}

	params := url.Values{}
	params.Set("customer", customerID)
	params.Set("return_url", returnURL)
	if configurationID != "" {
		params.Set("configuration", configurationID)
	}

	resp, err := g.doPost(ctx, secret, "/v1/billing_portal/sessions", params)
	if err != nil {
		return "", g.wrapTransportError("CreatePortalSession", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", g.handleErrorResponse(resp, "CreatePortalSession")
	}

	var session stripePortalSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to decode Stripe portal session response",
			err,
		)
	}
	return session.URL, nil
}

// CreateSubscription subscribes the customer to the given price. The
// latest invoice's payment intent is expanded so the client secret can
// be handed to a front end for payment confirmation.
func (g *StripeGateway) CreateSubscription(ctx context.Context, customerID, priceID string, metadata map[string]string) (Subscription, error) {
	secret, err := g.resolveSecret(ctx)
	if err != nil {
		return Subscription{}, err
	}

	params := url.Values{}
	params.Set("customer", customerID)
	params.Set("items[0][price]", priceID)
	params.Set("expand[]", "latest_invoice.payment_intent")
	for k, v := range metadata {
		params.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	resp, err := g.doPost(ctx, secret, "/v1/subscriptions", params)
	if err != nil {
		return Subscription{}, g.wrapTransportError("CreateSubscription", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Subscription{}, g.handleErrorResponse(resp, "CreateSubscription")
	}

	var sub stripeSubscription
	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		return Subscription{}, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to decode Stripe subscription response",
			err,
		)
	}

	out := Subscription{ID: sub.ID, Status: sub.Status}
	if sub.LatestInvoice != nil && sub.LatestInvoice.PaymentIntent != nil {
		out.ClientSecret = sub.LatestInvoice.PaymentIntent.ClientSecret
	}
	return out, nil
}

// CustomerDashboardURL returns the Stripe dashboard page for a customer.
// Test-mode keys route to the test dashboard.
func (g *StripeGateway) CustomerDashboardURL(ctx context.Context, customerID string) (string, error) {
	base, err := g.dashboardBase(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/customers/%s", base, customerID), nil
}

// SubscriptionDashboardURL returns the Stripe dashboard page for a
// subscription.
func (g *StripeGateway) SubscriptionDashboardURL(ctx context.Context, subscriptionID string) (string, error) {
	base, err := g.dashboardBase(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/subscriptions/%s", base, subscriptionID), nil
}

func (g *StripeGateway) dashboardBase(ctx context.Context) (string, error) {
	secret, err := g.resolveSecret(ctx)
	if err != nil {
		return "", err
	}
	if strings.Contains(secret.Unmask(), testModeMarker) {
		return dashboardBaseTest, nil
	}
	return dashboardBaseLive, nil
}

// resolveSecret fetches the active secret, failing with
// billing_not_configured when none is available from any source.
func (g *StripeGateway) resolveSecret(ctx context.Context) (types.SecretString, error) {
	secret, err := g.secrets.Secret(ctx)
	if err != nil {
		return "", err
	}
	if secret.IsEmpty() {
		return "", types.NewAppError(
			types.ErrCodeNotConfigured,
			"no Stripe secret key is configured",
			nil,
		)
	}
	return secret, nil
}

// ---------------------------------------------------------------------------
// HTTP helpers
// ---------------------------------------------------------------------------

func (g *StripeGateway) doGet(ctx context.Context, secret types.SecretString, path string, params url.Values) (*http.Response, error) {
	reqURL := g.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	g.setAuthHeaders(req, secret)

	return g.base.Do(req)
}

func (g *StripeGateway) doPost(ctx context.Context, secret types.SecretString, path string, params url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	g.setAuthHeaders(req, secret)

	return g.base.Do(req)
}

func (g *StripeGateway) setAuthHeaders(req *http.Request, secret types.SecretString) {
	req.Header.Set("Authorization", "Bearer "+secret.Unmask())
	req.Header.Set("Stripe-Version", stripe.APIVersion)
}

// ---------------------------------------------------------------------------
// Error handling
// ---------------------------------------------------------------------------

type stripeErrorResponse struct {
	Error stripeErrorBody `json:"error"`
}

type stripeErrorBody struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Param   string `json:"param"`
}

// handleErrorResponse reads a Stripe error body and maps it to an
// AppError carrying the provider's message.
func (g *StripeGateway) handleErrorResponse(resp *http.Response, operation string) error {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamStripe,
			fmt.Sprintf("%s: Stripe returned status %d and response body was unreadable", operation, resp.StatusCode),
			readErr,
		)
	}

	var stripeErr stripeErrorResponse
	if jsonErr := json.Unmarshal(body, &stripeErr); jsonErr != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamStripe,
			fmt.Sprintf("%s: Stripe returned status %d with non-JSON body", operation, resp.StatusCode),
			jsonErr,
		)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return types.NewAppError(
			types.ErrCodeUpstreamRateLimited,
			fmt.Sprintf("%s: Stripe rate limit exceeded", operation),
			nil,
		)
	case resp.StatusCode >= 500:
		return types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("%s: Stripe server error: %s", operation, stripeErr.Error.Message),
			nil,
		)
	default:
		return types.NewAppErrorWithDetails(
			types.ErrCodeUpstreamStripe,
			fmt.Sprintf("%s: Stripe error (%d): %s", operation, resp.StatusCode, stripeErr.Error.Message),
			nil,
			map[string]any{
				"stripe_type": stripeErr.Error.Type,
				"stripe_code": stripeErr.Error.Code,
			},
		)
	}
}

// wrapTransportError wraps a BaseClient transport error with operation
// context. Errors already shaped by BaseClient pass through unchanged.
func (g *StripeGateway) wrapTransportError(operation string, err error) error {
	if _, ok := err.(*types.AppError); ok {
		return err
	}
	return types.NewAppError(
		types.ErrCodeUpstreamStripe,
		fmt.Sprintf("%s: Stripe request failed: %v", operation, err),
		err,
	)
}

// ---------------------------------------------------------------------------
// Stripe response types
// ---------------------------------------------------------------------------

type stripeSearchResult struct {
	Data    []Customer `json:"data"`
	HasMore bool       `json:"has_more"`
}

type stripePortalSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type stripeSubscription struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	LatestInvoice *stripeInvoice `json:"latest_invoice"`
	Created       int64          `json:"created"`
}

type stripeInvoice struct {
	ID            string               `json:"id"`
	PaymentIntent *stripePaymentIntent `json:"payment_intent"`
}

type stripePaymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}
