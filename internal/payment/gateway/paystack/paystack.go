package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MphoBeeThwala/ahava-healthcare/internal/config"
	paymentdomain "github.com/MphoBeeThwala/ahava-healthcare/internal/payment/domain"
	"go.uber.org/zap"
)

// Client talks to the Paystack REST API. Construction never fails so
// the application can boot without credentials; calls return
// ErrGatewayUnavailable until a secret key is configured.
type Client struct {
	secretKey     string
	webhookSecret string
	baseURL       string
	http          *http.Client
	log           *zap.Logger
}

func NewClient(cfg config.Config, log *zap.Logger) *Client {
	timeout := cfg.Paystack.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		secretKey:     cfg.Paystack.SecretKey,
		webhookSecret: cfg.Paystack.WebhookSecret,
		baseURL:       strings.TrimRight(cfg.Paystack.BaseURL, "/"),
		http:          &http.Client{Timeout: timeout},
		log:           log.Named("paystack"),
	}
}

type apiResponse struct {
	Status  bool           `json:"status"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

func (c *Client) Initialize(ctx context.Context, params paymentdomain.InitializeParams) (*paymentdomain.InitializeResult, error) {
	body := map[string]any{
		"email":     params.Email,
		"amount":    params.AmountCents,
		"reference": params.Reference,
	}
	if params.Currency != "" {
		body["currency"] = params.Currency
	}
	if params.CallbackURL != "" {
		body["callback_url"] = params.CallbackURL
	}
	if len(params.Metadata) > 0 {
		body["metadata"] = params.Metadata
	}

	resp, err := c.call(ctx, http.MethodPost, "/transaction/initialize", body)
	if err != nil {
		return nil, err
	}

	return &paymentdomain.InitializeResult{
		AuthorizationURL: readString(resp.Data, "authorization_url"),
		AccessCode:       readString(resp.Data, "access_code"),
		Reference:        readString(resp.Data, "reference"),
		Raw:              resp.Data,
	}, nil
}

func (c *Client) Verify(ctx context.Context, reference string) (*paymentdomain.VerifyResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, paymentdomain.ErrMissingReference
	}

	resp, err := c.call(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return nil, err
	}

	result := &paymentdomain.VerifyResult{Raw: resp.Data}
	switch readString(resp.Data, "status") {
	case "success":
		result.Status = paymentdomain.VerifySuccess
	case "failed":
		result.Status = paymentdomain.VerifyFailed
	default:
		result.Status = paymentdomain.VerifyAbandoned
	}
	if amount, ok := resp.Data["amount"].(float64); ok {
		result.AmountCents = int64(amount)
	}
	return result, nil
}

func (c *Client) Refund(ctx context.Context, params paymentdomain.RefundParams) (map[string]any, error) {
	reference := strings.TrimSpace(params.Reference)
	if reference == "" {
		return nil, paymentdomain.ErrMissingReference
	}

	body := map[string]any{
		"transaction": reference,
	}
	if params.AmountCents != nil {
		body["amount"] = *params.AmountCents
	}
	if params.Reason != "" {
		body["merchant_note"] = params.Reason
	}

	resp, err := c.call(ctx, http.MethodPost, "/refund", body)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// VerifySignature checks the x-paystack-signature header: HMAC-SHA512
// over the raw body, hex encoded. Returns false when no secret is
// configured so unverifiable payloads are never accepted.
func (c *Client) VerifySignature(payload []byte, signature string) bool {
	secret := c.webhookSecret
	if secret == "" {
		secret = c.secretKey
	}
	if secret == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha512.New, []byte(secret))
	_, _ = mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// NewReference produces a unique transaction reference, e.g.
// AHV-1717000000000-9F3A2B1C.
func (c *Client) NewReference() string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("AHV-%d-%s", time.Now().UnixMilli(), strings.ToUpper(hex.EncodeToString(buf)))
}

func (c *Client) call(ctx context.Context, method, path string, body map[string]any) (*apiResponse, error) {
	if c.secretKey == "" {
		return nil, paymentdomain.ErrGatewayUnavailable
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed apiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("paystack %s %s: unexpected response (%d)", method, path, resp.StatusCode)
	}
	if resp.StatusCode >= 400 || !parsed.Status {
		c.log.Warn("paystack request rejected",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", parsed.Message),
		)
		return nil, fmt.Errorf("paystack %s %s: %s", method, path, parsed.Message)
	}
	return &parsed, nil
}

func readString(data map[string]any, key string) string {
	if data == nil {
		return ""
	}
	value, ok := data[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}
