package ibkr

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"trade-ledger/internal/api"
	"trade-ledger/internal/interfaces"
	"trade-ledger/internal/logger"
	"trade-ledger/internal/types"
)

// Params configure a Client Portal gateway connection. Paths may contain
// the {account} placeholder.
type Params struct {
	BaseURL            string
	AccountID          string
	TradesPath         string
	SummaryPath        string
	InsecureSkipVerify bool
	Timeout            time.Duration
	// Retries is how many extra attempts a request gets after a transport
	// failure or a 5xx answer.
	Retries int
}

// Client reads executions and the account summary from a locally running
// IBKR Client Portal gateway.
type Client struct {
	p     Params
	http  *api.Client
	retry *api.RetryConfig
}

var _ interfaces.ExecutionSource = (*Client)(nil)

func NewClient(p Params) *Client {
	if p.Timeout <= 0 {
		p.Timeout = 10 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if p.InsecureSkipVerify {
		// The gateway serves a self-signed certificate on localhost.
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	retry := api.DefaultRetryConfig()
	retry.MaxAttempts = 1 + max(p.Retries, 0)
	return &Client{
		p: p,
		http: api.NewClient(
			api.WithBaseURL(strings.TrimRight(p.BaseURL, "/")),
			api.WithTimeout(p.Timeout),
			api.WithTransport(transport),
			api.WithHeader("User-Agent", "trade-ledger/1.0"),
			api.WithHeader("Accept", "application/json"),
			api.WithLogging(true),
		),
		retry: retry,
	}
}

func (c *Client) Name() string { return "IBKR" }

// Executions returns the gateway's execution reports untouched. Both a bare
// array and a {"transactions": [...]} wrapper are accepted; an empty body is
// an empty batch.
func (c *Client) Executions(ctx context.Context) ([]types.RawExecution, error) {
	data, err := c.makeRequest(ctx, c.p.TradesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch executions: %w", err)
	}
	execs, err := parseExecutions(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode executions: %w", err)
	}
	logger.Debug(ctx, "Executions fetched", "source", c.Name(), "count", len(execs))
	return execs, nil
}

// NetLiquidation reads the account's net liquidation value from the
// portfolio summary.
func (c *Client) NetLiquidation(ctx context.Context) (decimal.Decimal, error) {
	if c.p.AccountID == "" && strings.Contains(c.p.SummaryPath, "{account}") {
		return decimal.Zero, errors.New("IBKR_ACCOUNT_ID is not set")
	}
	data, err := c.makeRequest(ctx, c.p.SummaryPath)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch account summary: %w", err)
	}
	return parseNetLiquidation(data)
}

func (c *Client) makeRequest(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.http.GETWithRetry(ctx, strings.ReplaceAll(path, "{account}", c.p.AccountID), c.retry)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrSourceUnavailable, err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%w: gateway returned status %d for %s", interfaces.ErrSourceUnavailable, resp.StatusCode, path)
	}
	return resp.Body, nil
}

func decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func parseExecutions(data []byte) ([]types.RawExecution, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []types.RawExecution{}, nil
	}

	var list []types.RawExecution
	if trimmed[0] == '[' {
		if err := decode(trimmed, &list); err != nil {
			return nil, err
		}
	} else {
		var wrapped struct {
			Transactions []types.RawExecution `json:"transactions"`
			Trades       []types.RawExecution `json:"trades"`
		}
		if err := decode(trimmed, &wrapped); err != nil {
			return nil, err
		}
		list = wrapped.Transactions
		if list == nil {
			list = wrapped.Trades
		}
	}
	if list == nil {
		list = []types.RawExecution{}
	}
	return list, nil
}

// parseNetLiquidation understands the three summary shapes the gateway has
// been seen to return:
//
//	{"netLiquidation": 100000}
//	{"netliquidation": {"amount": 100000, "currency": "USD"}}
//	[{"tag": "NetLiquidation", "value": "100000"}]
func parseNetLiquidation(data []byte) (decimal.Decimal, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []struct {
			Tag   string `json:"tag"`
			Value any    `json:"value"`
		}
		if err := decode(trimmed, &items); err != nil {
			return decimal.Zero, fmt.Errorf("failed to decode account summary: %w", err)
		}
		for _, item := range items {
			if strings.EqualFold(item.Tag, "NetLiquidation") {
				return toDecimal(item.Value)
			}
		}
		return decimal.Zero, errors.New("account summary has no NetLiquidation tag")
	}

	var summary map[string]any
	if err := decode(trimmed, &summary); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode account summary: %w", err)
	}
	for key, v := range summary {
		if !strings.EqualFold(key, "netLiquidation") {
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			return toDecimal(nested["amount"])
		}
		return toDecimal(v)
	}
	return decimal.Zero, errors.New("account summary has no netLiquidation field")
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case json.Number:
		return decimal.NewFromString(n.String())
	case string:
		return decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(n), ",", ""))
	case float64:
		return decimal.NewFromFloat(n), nil
	default:
		return decimal.Zero, fmt.Errorf("unexpected net liquidation value %v", v)
	}
}
