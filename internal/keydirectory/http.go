package keydirectory

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dmitrijs2005/gophmail/internal/common"
)

const DefaultTimeout = 10 * time.Second

// HTTPDirectory is a client of the key server REST API:
//
//	GET  /api/keys?email=<addr>       -> 200 [record...] | 404
//	POST /api/keys {email, publicKeyPem} -> record
//	POST /api/keys/verify?token=<t>
type HTTPDirectory struct {
	client *resty.Client
}

func NewHTTPDirectory(baseURL string, timeout time.Duration) *HTTPDirectory {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cl := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)
	return &HTTPDirectory{client: cl}
}

// Client exposes the underlying resty client, mostly for mocking transports.
func (d *HTTPDirectory) Client() *resty.Client { return d.client }

func handleError(resp *resty.Response, op string) error {
	if resp.StatusCode() == http.StatusNotFound {
		return common.NotFoundf("%s", op)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: %s: key server returned %d: %s",
			common.ErrCore, op, resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}

func (d *HTTPDirectory) FindPublicKeyByEmail(ctx context.Context, email string) (*PublicKeyRecord, error) {
	var list []PublicKeyRecord
	resp, err := d.client.R().
		SetContext(ctx).
		SetQueryParam("email", email).
		ForceContentType("application/json").
		SetResult(&list).
		Get("/api/keys")
	if err != nil {
		return nil, common.Coref(err, "find key of %s", email)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if err := handleError(resp, "find key of "+email); err != nil {
		return nil, err
	}

	if len(list) == 0 || list[0].PublicKeyPEM == "" {
		return nil, nil
	}
	rec := list[0]
	if rec.Email == "" {
		rec.Email = email
	}
	return &rec, nil
}

func (d *HTTPDirectory) UploadPublicKey(ctx context.Context, email, publicKeyPEM string) (*PublicKeyRecord, error) {
	body := map[string]string{"email": email, "publicKeyPem": publicKeyPEM}
	rec := PublicKeyRecord{Email: email, PublicKeyPEM: publicKeyPEM}
	resp, err := d.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		ForceContentType("application/json").
		SetResult(&rec).
		Post("/api/keys")
	if err != nil {
		return nil, common.Coref(err, "upload key of %s", email)
	}
	if err := handleError(resp, "upload key of "+email); err != nil {
		return nil, err
	}

	return &rec, nil
}

// VerifyKey confirms a previously uploaded key with the token the key server
// mailed to its owner.
func (d *HTTPDirectory) VerifyKey(ctx context.Context, token string) error {
	resp, err := d.client.R().
		SetContext(ctx).
		SetQueryParam("token", token).
		Post("/api/keys/verify")
	if err != nil {
		return common.Coref(err, "verify key")
	}
	return handleError(resp, "verify key")
}
