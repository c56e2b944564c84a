package twilio

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

	"github.com/acme/dialburst/internal/config"
	"github.com/acme/dialburst/internal/telephony"
)

const defaultBaseURL = "https://api.twilio.com/2010-04-01"

// Client places outbound calls through the Twilio REST API.
type Client struct {
	accountSID  string
	authToken   string
	fromNumber  string
	baseURL     string
	ringTimeout int
	httpClient  *http.Client
}

// NewClient constructs a Twilio dialer from configuration.
func NewClient(cfg config.TelephonyConfig) (*Client, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("twilio: account sid and auth token are required")
	}
	if cfg.FromNumber == "" {
		return nil, fmt.Errorf("twilio: from number is required")
	}
	baseURL := cfg.APIBaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		accountSID:  cfg.AccountSID,
		authToken:   cfg.AuthToken,
		fromNumber:  cfg.FromNumber,
		baseURL:     strings.TrimRight(baseURL, "/"),
		ringTimeout: cfg.RingTimeout,
		httpClient:  &http.Client{Timeout: timeout},
	}, nil
}

type callResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

type accountResponse struct {
	SID          string `json:"sid"`
	FriendlyName string `json:"friendly_name"`
	Status       string `json:"status"`
	Type         string `json:"type"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// PlaceCall starts an outbound call via the Calls endpoint.
func (c *Client) PlaceCall(ctx context.Context, req telephony.PlaceCallRequest) (telephony.PlaceCallResult, error) {
	form := url.Values{}
	form.Set("From", c.fromNumber)
	form.Set("To", req.To)
	form.Set("Url", req.AnswerURL)
	form.Set("Method", "POST")
	if req.StatusCallbackURL != "" {
		form.Set("StatusCallback", req.StatusCallbackURL)
		form.Set("StatusCallbackEvent", "initiated,ringing,answered,completed")
		form.Set("StatusCallbackMethod", "POST")
	}
	if c.ringTimeout > 0 {
		form.Set("Timeout", strconv.Itoa(c.ringTimeout))
	}

	reqURL := fmt.Sprintf("%s/Accounts/%s/Calls.json", c.baseURL, c.accountSID)
	body, err := c.do(ctx, http.MethodPost, reqURL, strings.NewReader(form.Encode()))
	if err != nil {
		return telephony.PlaceCallResult{}, err
	}

	var call callResponse
	if err := json.Unmarshal(body, &call); err != nil {
		return telephony.PlaceCallResult{}, fmt.Errorf("twilio: decode call response: %w", err)
	}
	if call.SID == "" {
		return telephony.PlaceCallResult{}, fmt.Errorf("twilio: response missing call sid")
	}

	return telephony.PlaceCallResult{ProviderCallID: call.SID, Status: call.Status}, nil
}

// FetchAccount retrieves the account resource for inspection.
func (c *Client) FetchAccount(ctx context.Context) (telephony.Account, error) {
	reqURL := fmt.Sprintf("%s/Accounts/%s.json", c.baseURL, c.accountSID)
	body, err := c.do(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return telephony.Account{}, err
	}

	var account accountResponse
	if err := json.Unmarshal(body, &account); err != nil {
		return telephony.Account{}, fmt.Errorf("twilio: decode account response: %w", err)
	}

	return telephony.Account{
		SID:          account.SID,
		FriendlyName: account.FriendlyName,
		Status:       account.Status,
		Type:         account.Type,
	}, nil
}

func (c *Client) do(ctx context.Context, method, reqURL string, payload io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, reqURL, payload)
	if err != nil {
		return nil, fmt.Errorf("twilio: build request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("twilio: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("twilio: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("twilio: api error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("twilio: api error (%d)", resp.StatusCode)
	}

	return body, nil
}
