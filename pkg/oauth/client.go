package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/palisadeproject/palisade/pkg/clock"
	"github.com/palisadeproject/palisade/pkg/retry"
)

// ErrExchangeFailed is returned for any failure along the code-for-token
// exchange or the userinfo fetch. Provider error bodies stay server-side;
// callers surface only this coarse classification.
var ErrExchangeFailed = errors.New("oauth exchange failed")

// Profile is the normalized identity fetched from the provider's userinfo
// endpoint. ID is the provider-scoped subject; email alone is not a
// stable cross-provider key.
type Profile struct {
	Provider string
	ID       string
	Email    string
	Name     string
}

// Config configures a provider client.
type Config struct {
	// Provider names the provider (e.g. "github", "google").
	Provider string

	ClientID     string
	ClientSecret string

	AuthURL     string
	TokenURL    string
	UserinfoURL string
	RedirectURL string

	Scopes []string

	// PKCE enables the S256 code challenge on the authorization request.
	PKCE bool

	// Timeout bounds each outbound call (token exchange, userinfo).
	// Zero means DefaultTimeout.
	Timeout time.Duration
}

// DefaultTimeout bounds outbound provider calls when none is configured.
const DefaultTimeout = 10 * time.Second

// Client executes the authorization-code (+ PKCE) flow against one
// provider. Clients are immutable and safe for concurrent use.
type Client struct {
	cfg     Config
	oconfig oauth2.Config
	clk     clock.Clock
	timeout time.Duration
}

// NewClient creates a provider client.
func NewClient(cfg Config, clk clock.Clock) (*Client, error) {
	if cfg.Provider == "" {
		return nil, errors.New("oauth provider name must not be empty")
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("oauth provider %q: client credentials must not be empty", cfg.Provider)
	}
	if cfg.AuthURL == "" || cfg.TokenURL == "" || cfg.UserinfoURL == "" {
		return nil, fmt.Errorf("oauth provider %q: endpoint URLs must not be empty", cfg.Provider)
	}
	if clk == nil {
		clk = clock.Real()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		cfg: cfg,
		oconfig: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
			RedirectURL: cfg.RedirectURL,
			Scopes:      cfg.Scopes,
		},
		clk:     clk,
		timeout: timeout,
	}, nil
}

// Provider returns the configured provider name.
func (c *Client) Provider() string { return c.cfg.Provider }

// Begin starts a fresh authorization attempt: it generates the state (and
// PKCE verifier when enabled) and returns the provider redirect URL. The
// returned State must be persisted before the user agent is redirected.
func (c *Client) Begin(target string) (string, State, error) {
	value, err := newStateValue()
	if err != nil {
		return "", State{}, err
	}

	st := State{
		Value:     value,
		Target:    target,
		CreatedAt: c.clk.Now(),
	}

	var opts []oauth2.AuthCodeOption
	if c.cfg.PKCE {
		st.Verifier = oauth2.GenerateVerifier()
		opts = append(opts, oauth2.S256ChallengeOption(st.Verifier))
	}

	return c.oconfig.AuthCodeURL(value, opts...), st, nil
}

// Exchange trades the authorization code for an access token and fetches
// the normalized profile from the userinfo endpoint. Both calls honor the
// configured timeout; any failure is reported as ErrExchangeFailed.
func (c *Client) Exchange(ctx context.Context, code string, st State) (*Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var opts []oauth2.AuthCodeOption
	if st.Verifier != "" {
		opts = append(opts, oauth2.VerifierOption(st.Verifier))
	}

	tok, err := c.oconfig.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: token endpoint: %v", ErrExchangeFailed, err)
	}

	return c.fetchProfile(ctx, tok)
}

// fetchProfile calls the userinfo endpoint. Transient failures are retried
// within the collaborator's own contract; the pipeline above never
// retries.
func (c *Client) fetchProfile(ctx context.Context, tok *oauth2.Token) (*Profile, error) {
	httpClient := c.oconfig.Client(ctx, tok)

	body, err := retry.DoWithValue(ctx, retry.Config{
		MaxAttempts:  2,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		Clock:        c.clk,
	}, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.UserinfoURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("userinfo status %d", resp.StatusCode)
		}
		return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	})
	if err != nil {
		return nil, fmt.Errorf("%w: userinfo: %v", ErrExchangeFailed, err)
	}

	profile, err := c.decodeProfile(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	return profile, nil
}

// decodeProfile normalizes the userinfo payload. Providers disagree on
// field names; "sub" (OIDC) and "id" are both accepted for the subject.
func (c *Client) decodeProfile(body []byte) (*Profile, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode userinfo: %v", err)
	}

	id := stringField(raw, "sub")
	if id == "" {
		id = stringField(raw, "id")
	}
	if id == "" {
		return nil, errors.New("userinfo missing subject id")
	}

	return &Profile{
		Provider: c.cfg.Provider,
		ID:       id,
		Email:    stringField(raw, "email"),
		Name:     stringField(raw, "name"),
	}, nil
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	default:
		return ""
	}
}
