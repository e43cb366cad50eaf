// Package portal is the HTTP client for the supplier portal API.
package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/go-supplier-portal/internal/errors"
	"github.com/jrsteele09/go-supplier-portal/needs"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

const maxResponseBytes = 8 << 20

// Client talks to the portal API. It is safe for concurrent use.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	tokenSource oauth2.TokenSource
	metrics     *Metrics
	userAgent   string
	timeout     time.Duration
}

// Option defines a function type to modify the Client instance.
type Option func(*Client)

// WithHTTPClient uses hc as the base client. Its transport is wrapped, not replaced.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			cp := *hc
			c.httpClient = &cp
		}
	}
}

// WithTokenSource sets where bearer tokens are read from for every request.
func WithTokenSource(src oauth2.TokenSource) Option {
	return func(c *Client) {
		c.tokenSource = src
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New creates a Client for the API rooted at baseURL.
func New(baseURL string, options ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidConfig, "[portal.New] base URL %q", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		userAgent:  "go-supplier-portal",
		timeout:    15 * time.Second,
	}
	for _, opt := range options {
		opt(c)
	}

	mw := []Middleware{RequestID(), BearerToken(c.tokenSource), LogRequests()}
	if c.metrics != nil {
		mw = append(mw, c.metrics.Middleware())
	}
	c.httpClient.Transport = ChainTransport(c.httpClient.Transport, mw...)
	if c.timeout > 0 {
		c.httpClient.Timeout = c.timeout
	}
	return c, nil
}

// Login exchanges credentials for a bearer token. A 4xx answer is reported as
// apperrors.ErrInvalidCredentials with the portal's message.
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResponse, error) {
	var lr LoginResponse
	err := c.do(ctx, call{
		method:   http.MethodPost,
		route:    RouteLogin,
		in:       creds,
		out:      &lr,
		fallback: MsgLoginFailed,
		rejected: apperrors.ErrInvalidCredentials,
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(lr.Token) == "" {
		return nil, &APIError{
			Status:  http.StatusOK,
			Message: MsgLoginFailed,
			Err:     apperrors.Wrapf(apperrors.ErrMalformedResponse, "[Client.Login] response has no token"),
		}
	}
	return &lr, nil
}

// Register submits a supplier application and returns the portal's confirmation message.
func (c *Client) Register(ctx context.Context, reg Registration) (string, error) {
	var mr messageResponse
	if err := c.do(ctx, call{
		method:   http.MethodPost,
		route:    RouteRegister,
		in:       reg,
		out:      &mr,
		fallback: MsgRegisterFailed,
	}); err != nil {
		return "", err
	}
	return mr.Message, nil
}

// Needs fetches the open procurement needs.
func (c *Client) Needs(ctx context.Context) ([]needs.Need, error) {
	var nr needsResponse
	if err := c.do(ctx, call{
		method:   http.MethodGet,
		route:    RouteNeeds,
		out:      &nr,
		fallback: MsgNeedsFailed,
	}); err != nil {
		return nil, err
	}
	if nr.Needs == nil {
		return []needs.Need{}, nil
	}
	return nr.Needs, nil
}

// SubmitProposal sends the whole selection as one request. Anything but {"success": true}
// is a failure.
func (c *Client) SubmitProposal(ctx context.Context, req ProposalRequest) error {
	if len(req.RequestIDs) == 0 {
		return apperrors.Wrapf(apperrors.ErrInvalidRequest, "[Client.SubmitProposal] no request ids")
	}

	var sr submitResponse
	if err := c.do(ctx, call{
		method:   http.MethodPost,
		route:    RouteSubmitProposal,
		in:       req,
		out:      &sr,
		fallback: MsgSubmitFailed,
	}); err != nil {
		return err
	}
	if !sr.Success {
		msg := strings.TrimSpace(sr.Message)
		if msg == "" {
			msg = MsgSubmitFailed
		}
		return &APIError{Status: http.StatusOK, Message: msg, Err: apperrors.ErrRequestFailed}
	}
	return nil
}

type call struct {
	method   string
	route    string
	in       any
	out      any
	fallback string
	rejected error // classification for 4xx answers, defaults to statusError
}

func (c *Client) do(ctx context.Context, cl call) error {
	var body io.Reader
	if cl.in != nil {
		data, err := json.Marshal(cl.in)
		if err != nil {
			return &APIError{Message: cl.fallback, Err: errors.Wrap(err, "marshal request")}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.route, body)
	if err != nil {
		return &APIError{Message: cl.fallback, Err: apperrors.Wrapf(apperrors.ErrInvalidRequest, "build request: %v", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if cl.in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Message: cl.fallback, Err: fmt.Errorf("%w: %s %s: %v", apperrors.ErrNetwork, cl.method, cl.route, err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &APIError{Status: resp.StatusCode, Message: cl.fallback, Err: fmt.Errorf("%w: read body: %v", apperrors.ErrNetwork, err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		classification := statusError(resp.StatusCode)
		if cl.rejected != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
			classification = cl.rejected
		}
		return &APIError{
			Status:  resp.StatusCode,
			Message: serverMessage(data, cl.fallback),
			Err:     fmt.Errorf("%w: %s %s returned %d", classification, cl.method, cl.route, resp.StatusCode),
		}
	}

	if cl.out == nil {
		return nil
	}
	if err := json.Unmarshal(data, cl.out); err != nil {
		return &APIError{
			Status:  resp.StatusCode,
			Message: cl.fallback,
			Err:     fmt.Errorf("%w: %s %s: %v", apperrors.ErrMalformedResponse, cl.method, cl.route, err),
		}
	}
	return nil
}
