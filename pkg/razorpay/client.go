package razorpay

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strings"

	rzpsdk "github.com/razorpay/razorpay-go"
	rzperrors "github.com/razorpay/razorpay-go/errors"

	"github.com/aquaflowhq/aquaflow-backend/pkg/config"
	pkgerrors "github.com/aquaflowhq/aquaflow-backend/pkg/errors"
	"github.com/aquaflowhq/aquaflow-backend/pkg/logger"
)

var (
	errKeyRequired    = stdErrors.New("razorpay key is required")
	errSecretRequired = stdErrors.New("razorpay secret is required")
	errLoggerRequired = stdErrors.New("razorpay logger is required")
)

// Client exposes Razorpay primitives with centralized auth, timeout handling,
// and error mapping. All SDK calls run under the caller's context deadline; a
// deadline hit surfaces as GATEWAY_UNAVAILABLE, which callers must treat as
// "settlement unknown", never as confirmed failure.
type Client struct {
	sdk      *rzpsdk.Client
	key      string
	currency string
	logger   *logger.Logger
}

// NewClient initializes the Razorpay wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.RazorpayConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	key := strings.TrimSpace(cfg.Key)
	if key == "" {
		return nil, errKeyRequired
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errSecretRequired
	}

	currency := strings.TrimSpace(cfg.Currency)
	if currency == "" {
		currency = "INR"
	}

	c := &Client{
		sdk:      rzpsdk.NewClient(key, secret),
		key:      key,
		currency: currency,
		logger:   logg,
	}

	logg.Info(ctx, "razorpay client initialized")
	return c, nil
}

// Key returns the public Razorpay key id, needed by checkout frontends.
func (c *Client) Key() string {
	if c == nil {
		return ""
	}
	return c.key
}

// Currency returns the configured settlement currency.
func (c *Client) Currency() string {
	if c == nil {
		return ""
	}
	return c.currency
}

// call runs fn off-goroutine so the SDK's blocking HTTP round trip honors the
// caller's context. The SDK call is never cancelled mid-flight; on deadline
// the result is abandoned and the caller sees a retryable error.
func (c *Client) call(ctx context.Context, op string, fn func() (map[string]any, error)) (map[string]any, error) {
	type result struct {
		body map[string]any
		err  error
	}
	done := make(chan result, 1)
	go func() {
		body, err := fn()
		done <- result{body: body, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, ctx.Err(), op+" timed out")
	case res := <-done:
		if res.err != nil {
			return nil, mapSDKError(op, res.err)
		}
		return res.body, nil
	}
}

func mapSDKError(op string, err error) error {
	var badRequest *rzperrors.BadRequestError
	if stdErrors.As(err, &badRequest) {
		return pkgerrors.Wrap(pkgerrors.CodeGatewayRejected, err, op+" rejected by gateway")
	}
	return pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, op+" failed")
}

func stringField(body map[string]any, key string) string {
	if body == nil {
		return ""
	}
	if v, ok := body[key].(string); ok {
		return v
	}
	return ""
}

func intField(body map[string]any, key string) int64 {
	if body == nil {
		return 0
	}
	switch v := body[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

func itemsOf(body map[string]any) []map[string]any {
	raw, ok := body["items"].([]any)
	if !ok {
		return nil
	}
	items := make([]map[string]any, 0, len(raw))
	for _, entry := range raw {
		if m, ok := entry.(map[string]any); ok {
			items = append(items, m)
		}
	}
	return items
}

func notesOf(body map[string]any) map[string]any {
	if m, ok := body["notes"].(map[string]any); ok {
		return m
	}
	return nil
}

func requireID(op string, body map[string]any) (string, error) {
	id := stringField(body, "id")
	if id == "" {
		return "", pkgerrors.New(pkgerrors.CodeGatewayRejected, fmt.Sprintf("%s returned no id", op))
	}
	return id, nil
}
