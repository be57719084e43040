package steps

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds every call to the steps API.
const DefaultTimeout = 8 * time.Second

const maxBodyBytes = 1 << 20

// Client calls the steps API on behalf of a signed-in user.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the API rooted at baseURL. A nil
// httpClient gets one with DefaultTimeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

type submitRequest struct {
	Steps int64 `json:"steps"`
}

// Total fetches the current aggregate.
func (c *Client) Total(ctx context.Context, bearer string) (Record, error) {
	body, err := c.do(ctx, http.MethodGet, "/steps", bearer, nil)
	if err != nil {
		return Record{}, err
	}
	var record Record
	if err := json.Unmarshal(body, &record); err != nil {
		return Record{}, &Error{Kind: KindInvalidResponse, Message: "The steps service sent an unexpected response.", Err: err}
	}
	return record, nil
}

// Submit records n steps for today. A second submission on the same day
// fails with KindAlreadySubmitted.
func (c *Client) Submit(ctx context.Context, bearer string, n int64) error {
	_, err := c.do(ctx, http.MethodPost, "/steps", bearer, submitRequest{Steps: n})
	return err
}

func (c *Client) do(ctx context.Context, method, path, bearer string, payload any) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindUnavailable, Message: "The steps service is unavailable. Please try again later.", Err: err}
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{Kind: KindUnavailable, StatusCode: resp.StatusCode, Message: "The steps service response was cut short.", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			Kind:       classify(method, resp.StatusCode),
			StatusCode: resp.StatusCode,
			Message:    errorMessage(method, resp, responseBody),
		}
	}
	return responseBody, nil
}

// classify maps an HTTP status to a Kind. The API answers a duplicate daily
// submission with 400.
func classify(method string, status int) Kind {
	switch {
	case status == http.StatusBadRequest && method == http.MethodPost:
		return KindAlreadySubmitted
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindUnauthorized
	case status >= 500:
		return KindUnavailable
	default:
		return KindUnknown
	}
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func errorMessage(method string, resp *http.Response, body []byte) string {
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err == nil {
		if msg := strings.TrimSpace(parsed.Message); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(parsed.Error); msg != "" {
			return msg
		}
	}
	if trimmed := strings.TrimSpace(string(body)); trimmed != "" && !json.Valid(body) {
		return trimmed
	}
	if method == http.MethodPost {
		return fmt.Sprintf("submission failed: %s", resp.Status)
	}
	return fmt.Sprintf("request failed: %s", resp.Status)
}

// IsUnauthorized reports whether the API rejected the caller's token.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == KindUnauthorized
}
