// AngelaMos | 2026
// rest.go

package identity

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/carterperez-dev/roadwatch/internal/config"
	"github.com/carterperez-dev/roadwatch/internal/core"
)

// RESTProvider talks to an Identity Toolkit style accounts API.
type RESTProvider struct {
	client *resty.Client
}

func NewRESTProvider(cfg config.IdentityConfig) *RESTProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	if cfg.APIKey != "" {
		client.SetQueryParam("key", cfg.APIKey)
	}

	return &RESTProvider{client: client}
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type lookupRequest struct {
	Email []string `json:"email"`
}

type lookupResponse struct {
	Users []struct {
		LocalID string `json:"localId"`
		Email   string `json:"email"`
	} `json:"users"`
}

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type accountResponse struct {
	LocalID string `json:"localId"`
	Email   string `json:"email"`
}

type updateRequest struct {
	LocalID  string `json:"localId"`
	Password string `json:"password"`
}

func (p *RESTProvider) LookupByEmail(ctx context.Context, email string) (*Account, error) {
	var out lookupResponse
	var apiErr apiError

	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(lookupRequest{Email: []string{email}}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/accounts:lookup")
	if err := check(resp, err, &apiErr); err != nil {
		return nil, fmt.Errorf("lookup account %s: %w", email, err)
	}

	if len(out.Users) == 0 {
		return nil, fmt.Errorf("lookup account %s: %w", email, core.ErrNotFound)
	}

	return &Account{UID: out.Users[0].LocalID, Email: out.Users[0].Email}, nil
}

func (p *RESTProvider) Create(ctx context.Context, email, password string) (*Account, error) {
	var out accountResponse
	var apiErr apiError

	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(signUpRequest{Email: email, Password: password}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/accounts:signUp")
	if err := check(resp, err, &apiErr); err != nil {
		return nil, fmt.Errorf("create account %s: %w", email, err)
	}

	return &Account{UID: out.LocalID, Email: email}, nil
}

func (p *RESTProvider) Update(ctx context.Context, uid, password string) error {
	var apiErr apiError

	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(updateRequest{LocalID: uid, Password: password}).
		SetError(&apiErr).
		Post("/accounts:update")
	if err := check(resp, err, &apiErr); err != nil {
		return fmt.Errorf("update account %s: %w", uid, err)
	}

	return nil
}

func check(resp *resty.Response, err error, apiErr *apiError) error {
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrUnavailable, err)
	}

	if !resp.IsError() {
		return nil
	}

	msg := apiErr.Error.Message
	if msg == "" {
		msg = resp.Status()
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return fmt.Errorf("%s: %w", msg, core.ErrNotFound)
	case resp.StatusCode() >= http.StatusInternalServerError:
		return fmt.Errorf("%s: %w", msg, core.ErrUnavailable)
	default:
		return fmt.Errorf("identity provider rejected request: %s", msg)
	}
}

var _ Provider = (*RESTProvider)(nil)
