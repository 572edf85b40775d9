package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"kenivoire-client/internal/model"
	"kenivoire-client/internal/session"
)

// Spec describes one outbound request relative to the API base URL.
type Spec struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

type Response struct {
	Status int
	Body   []byte
}

func (r *Response) Decode(out any) error {
	if len(r.Body) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, out)
}

type Config struct {
	BaseURL        string
	Tokens         *session.Store
	HTTPClient     *http.Client
	RefreshTimeout time.Duration
	Logger         zerolog.Logger
}

// Gateway is the only path to the backend. It attaches the current
// access credential, detects expiry failures and coordinates token
// renewal so that any number of concurrently failing calls share a
// single refresh request.
type Gateway struct {
	baseURL        string
	httpClient     *http.Client
	tokens         *session.Store
	refreshTimeout time.Duration
	log            zerolog.Logger

	mu         sync.Mutex
	refreshing bool
	waiters    []chan error

	onLoggedOut func()
}

func New(cfg Config) *Gateway {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	refreshTimeout := cfg.RefreshTimeout
	if refreshTimeout <= 0 {
		refreshTimeout = 15 * time.Second
	}
	return &Gateway{
		baseURL:        cfg.BaseURL,
		httpClient:     httpClient,
		tokens:         cfg.Tokens,
		refreshTimeout: refreshTimeout,
		log:            cfg.Logger,
	}
}

// OnLoggedOut registers the signal fired exactly once when a refresh
// failure forces the session out. Must be set before the gateway is
// shared across goroutines.
func (g *Gateway) OnLoggedOut(fn func()) {
	g.onLoggedOut = fn
}

// Call dispatches the request with the current credential. On an
// authorization failure it runs the refresh protocol and replays the
// request once with the renewed credential; a second authorization
// failure for the same call is fatal.
func (g *Gateway) Call(ctx context.Context, spec Spec) (*Response, error) {
	resp, err := g.dispatch(ctx, spec)
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusUnauthorized {
		return finish(resp)
	}

	if err := g.awaitRefresh(ctx); err != nil {
		return nil, err
	}

	resp, err = g.dispatch(ctx, spec)
	if err != nil {
		return nil, err
	}
	if resp.Status == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: %s %s rejected after renewal", ErrSessionExpired, spec.Method, spec.Path)
	}
	return finish(resp)
}

// Refresh renews the credential through the same single-flight guard the
// reactive path uses; a scheduler-triggered renewal therefore never
// races a reactive one.
func (g *Gateway) Refresh(ctx context.Context) error {
	return g.awaitRefresh(ctx)
}

// awaitRefresh ensures at most one refresh request is in flight. Callers
// arriving while one is running are queued and settled with its outcome.
func (g *Gateway) awaitRefresh(ctx context.Context) error {
	g.mu.Lock()
	if g.refreshing {
		ch := make(chan error, 1)
		g.waiters = append(g.waiters, ch)
		g.mu.Unlock()
		select {
		case err := <-ch:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	g.refreshing = true
	g.mu.Unlock()

	err := g.refresh()

	g.mu.Lock()
	g.refreshing = false
	waiters := g.waiters
	g.waiters = nil
	g.mu.Unlock()

	for _, ch := range waiters {
		ch <- err
	}
	return err
}

func (g *Gateway) refresh() error {
	sess, ok := g.tokens.Current()
	if !ok || sess.RefreshToken == "" {
		return fmt.Errorf("%w: no refresh credential", ErrSessionExpired)
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.refreshTimeout)
	defer cancel()

	body, err := json.Marshal(map[string]string{"refresh": sess.RefreshToken})
	if err != nil {
		return g.forceLogout(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url("auth/token/refresh/"), bytes.NewReader(body))
	if err != nil {
		return g.forceLogout(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return g.forceLogout(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return g.forceLogout(err)
	}
	if resp.StatusCode != http.StatusOK {
		return g.forceLogout(fmt.Errorf("refresh endpoint returned status %d", resp.StatusCode))
	}

	var pair model.TokenPair
	if err := json.Unmarshal(data, &pair); err != nil {
		return g.forceLogout(err)
	}
	if pair.Refresh == "" {
		// Backend may choose not to rotate; keep the stored one.
		pair.Refresh = sess.RefreshToken
	}
	next, err := session.FromTokenPair(pair)
	if err != nil {
		return g.forceLogout(err)
	}
	if err := g.tokens.Set(next); err != nil {
		return g.forceLogout(err)
	}

	g.log.Debug().Str("subject", next.SubjectID).Time("expires_at", next.ExpiresAt).Msg("access credential renewed")
	return nil
}

// forceLogout clears all session state and fires the logged-out signal.
// Runs inside the single-flight refresh, so the signal fires once no
// matter how many waiters were queued.
func (g *Gateway) forceLogout(cause error) error {
	g.log.Warn().Err(cause).Msg("refresh failed, forcing logout")
	if err := g.tokens.Clear(); err != nil {
		g.log.Error().Err(err).Msg("clearing persisted session failed")
	}
	if g.onLoggedOut != nil {
		go g.onLoggedOut()
	}
	return fmt.Errorf("%w: %v", ErrSessionExpired, cause)
}

func (g *Gateway) dispatch(ctx context.Context, spec Spec) (*Response, error) {
	var body io.Reader
	if spec.Body != nil {
		data, err := json.Marshal(spec.Body)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	target := g.url(spec.Path)
	if len(spec.Query) > 0 {
		target += "?" + spec.Query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, spec.Method, target, body)
	if err != nil {
		return nil, err
	}
	if spec.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sess, ok := g.tokens.Current(); ok {
		req.Header.Set("Authorization", "Bearer "+sess.AccessToken)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", spec.Method, spec.Path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", spec.Method, spec.Path, err)
	}
	return &Response{Status: resp.StatusCode, Body: data}, nil
}

func (g *Gateway) url(path string) string {
	return strings.TrimSuffix(g.baseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

func finish(resp *Response) (*Response, error) {
	if resp.Status >= 400 {
		return nil, &APIError{Status: resp.Status, Body: resp.Body}
	}
	return resp, nil
}
