package newebpay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vibepay/newebpay-bridge/internal/domain"
	apperrors "github.com/vibepay/newebpay-bridge/internal/domain/errors"
	"github.com/vibepay/newebpay-bridge/internal/utils/metrics"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const maxResponseBytes = 1 << 20

// Client calls the processor's server-to-server APIs.
type Client struct {
	vault      *Vault
	endpoints  Endpoints
	httpClient *http.Client
	log        *zap.Logger
	metrics    *metrics.Metrics
}

func NewClient(vault *Vault, endpoints Endpoints, timeout time.Duration, log *zap.Logger, m *metrics.Metrics) *Client {
	return &Client{
		vault:     vault,
		endpoints: endpoints,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		},
		log:     log,
		metrics: m,
	}
}

var _ domain.Gateway = (*Client)(nil)

func (c *Client) AlterStatus(ctx context.Context, orderNo, periodNo string, alter domain.AlterType) error {
	post := NewForm().
		Set("RespondType", "JSON").
		Set("Version", PeriodVersion).
		Set("MerOrderNo", orderNo).
		Set("PeriodNo", periodNo).
		Set("AlterType", string(alter)).
		SetInt("TimeStamp", c.vault.now().Unix())
	cipherHex := c.vault.Encrypt(post.Encode())

	form := url.Values{
		"MerchantID_": {c.vault.MerchantID()},
		"PostData_":   {cipherHex},
		"TradeSha":    {c.vault.Sign(cipherHex)},
	}

	n, err := c.post(ctx, "alter_status", c.endpoints.AlterStatus(), form)
	if err != nil {
		return err
	}
	if !n.Succeeded() {
		c.log.Warn("alter status rejected",
			zap.String("merchant_order_no", orderNo),
			zap.String("period_no", periodNo),
			zap.String("alter_type", string(alter)),
			zap.String("status", n.Status),
			zap.String("message", n.Message),
		)
		return apperrors.ErrGatewayRejected(strings.TrimSpace(n.Status + " " + n.Message))
	}
	return nil
}

func (c *Client) QueryTradeInfo(ctx context.Context, orderNo string, amount int64) (*domain.TradeStatus, error) {
	form := url.Values{
		"MerchantID":      {c.vault.MerchantID()},
		"Version":         {QueryVersion},
		"RespondType":     {"JSON"},
		"CheckValue":      {c.vault.QueryCheckValue(orderNo, amount)},
		"TimeStamp":       {strconv.FormatInt(c.vault.now().Unix(), 10)},
		"MerchantOrderNo": {orderNo},
		"Amt":             {strconv.FormatInt(amount, 10)},
	}

	n, err := c.post(ctx, "query_trade_info", c.endpoints.QueryTradeInfo(), form)
	if err != nil {
		return nil, err
	}
	if !n.Succeeded() {
		return nil, apperrors.ErrGatewayRejected(strings.TrimSpace(n.Status + " " + n.Message))
	}

	if code := n.Get("CheckCode"); code != "" {
		if code != c.vault.TradeCheckCode(orderNo, amount, n.Get("TradeNo")) {
			c.log.Error("query trade info check code mismatch", zap.String("merchant_order_no", orderNo))
			return nil, apperrors.ErrSignatureMismatch("query trade info check code")
		}
	}

	return tradeStatusFrom(n)
}

func tradeStatusFrom(n *Notification) (*domain.TradeStatus, error) {
	amount, err := parseAmount(n.Get("Amt"))
	if err != nil {
		return nil, err
	}
	return &domain.TradeStatus{
		MerchantOrderNo: n.Get("MerchantOrderNo"),
		TradeNo:         n.Get("TradeNo"),
		Amount:          amount,
		Status:          n.Get("TradeStatus"),
		PaymentType:     n.Get("PaymentType"),
		RespondCode:     n.Get("RespondCode"),
		AuthCode:        n.Get("Auth"),
		PayTime:         parseTime(n.Get("PayTime")),
		Message:         n.Message,
	}, nil
}

func (c *Client) post(ctx context.Context, operation, endpoint string, form url.Values) (*Notification, error) {
	start := time.Now()
	outcome := "error"
	defer func() {
		if c.metrics != nil {
			c.metrics.GatewayCalls.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("gateway call failed", zap.String("operation", operation), zap.Error(err))
		return nil, apperrors.ErrGatewayUnavailable(operation)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, apperrors.ErrGatewayUnavailable(operation)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		c.log.Warn("gateway returned error status", zap.String("operation", operation), zap.Int("status", resp.StatusCode))
		return nil, apperrors.ErrGatewayUnavailable(fmt.Sprintf("%s returned %d", operation, resp.StatusCode))
	}

	n, err := c.parseResponse(body)
	if err != nil {
		c.log.Warn("gateway response unparseable", zap.String("operation", operation), zap.Error(err))
		return nil, apperrors.ErrGatewayUnavailable(operation)
	}

	// Status codes are open-ended, so the label only separates success from rejection.
	outcome = "rejected"
	if n.Succeeded() {
		outcome = "success"
	}
	return n, nil
}

// parseResponse accepts plain JSON envelopes and the encrypted {"period": "..."} form.
func (c *Client) parseResponse(body []byte) (*Notification, error) {
	var wrapped struct {
		Period string `json:"period"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Period != "" {
		plain, err := c.vault.Decrypt(wrapped.Period)
		if err != nil {
			return nil, err
		}
		return parseNotification(plain)
	}
	return parseNotification(string(body))
}
