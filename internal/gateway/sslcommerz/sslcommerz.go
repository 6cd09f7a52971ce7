// Package sslcommerz is a client for the SSLCommerz hosted payment session
// API.
package sslcommerz

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/payment"
)

const (
	initPath       = "/gwprocess/v4/api.php"
	statusSuccess  = "SUCCESS"
	maxResponseLen = 1 << 20
)

// Config holds merchant credentials and callback URLs.
type Config struct {
	BaseURL       string        `default:"https://sandbox.sslcommerz.com" usage:"SSLCommerz API base URL"`
	StoreID       string        `usage:"SSLCommerz store id"`
	StorePassword string        `usage:"SSLCommerz store password"`
	Currency      string        `default:"BDT" usage:"Settlement currency"`
	SuccessURL    string        `usage:"Redirect after successful payment"`
	FailURL       string        `usage:"Redirect after failed payment"`
	CancelURL     string        `usage:"Redirect after cancelled payment"`
	IPNURL        string        `usage:"Instant payment notification callback"`
	Timeout       time.Duration `default:"10s" usage:"Gateway request timeout"`
}

// Enabled reports whether credentials are configured.
func (c Config) Enabled() bool {
	return c.StoreID != "" && c.StorePassword != ""
}

var _ payment.Gateway = (*Client)(nil)

// Client starts SSLCommerz payment sessions.
type Client struct {
	cfg  Config
	http *http.Client
}

// New creates a Client. A nil httpClient uses http.DefaultClient.
func New(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if cfg.Currency == "" {
		cfg.Currency = "BDT"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: httpClient}
}

// Initiate opens a payment session for req and returns the hosted payment
// page URL.
func (c *Client) Initiate(ctx context.Context, req payment.InitRequest) (string, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	form := c.form(req)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+initPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.Wrap(err, "build request")
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", errors.Wrap(err, "send init request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseLen))
	if err != nil {
		return "", errors.Wrap(err, "read init response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("init request: unexpected status %d", resp.StatusCode)
	}

	r, err := decodeInitResponse(body)
	if err != nil {
		return "", errors.Wrap(err, "decode init response")
	}
	if !strings.EqualFold(r.Status, statusSuccess) {
		reason := r.FailedReason
		if reason == "" {
			reason = "status " + r.Status
		}
		return "", errors.Errorf("init rejected: %s", reason)
	}
	if r.GatewayPageURL == "" {
		return "", errors.New("init response has no gateway page url")
	}
	return r.GatewayPageURL, nil
}

func (c *Client) form(req payment.InitRequest) url.Values {
	cus := req.Customer
	name := cus.Name
	if name == "" {
		name = "Customer"
	}
	return url.Values{
		"store_id":         {c.cfg.StoreID},
		"store_passwd":     {c.cfg.StorePassword},
		"total_amount":     {req.Amount.StringFixed(2)},
		"currency":         {c.cfg.Currency},
		"tran_id":          {req.TransactionID},
		"value_a":          {req.OrderID},
		"success_url":      {c.cfg.SuccessURL},
		"fail_url":         {c.cfg.FailURL},
		"cancel_url":       {c.cfg.CancelURL},
		"ipn_url":          {c.cfg.IPNURL},
		"shipping_method":  {"NO"},
		"product_name":     {"Order " + req.OrderID},
		"product_category": {"general"},
		"product_profile":  {"general"},
		"cus_name":         {name},
		"cus_email":        {cus.Email},
		"cus_phone":        {cus.Phone},
		"cus_add1":         {cus.Address},
		"cus_city":         {"N/A"},
		"cus_country":      {"Bangladesh"},
	}
}

type initResponse struct {
	Status         string
	FailedReason   string
	GatewayPageURL string
}

func decodeInitResponse(body []byte) (initResponse, error) {
	var r initResponse
	err := jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "status":
			r.Status, err = optString(d)
		case "failedreason":
			r.FailedReason, err = optString(d)
		case "GatewayPageURL":
			r.GatewayPageURL, err = optString(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return r, err
}

// optString reads a string that may be null.
func optString(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}
