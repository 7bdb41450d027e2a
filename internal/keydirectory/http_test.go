package keydirectory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophmail/internal/common"
)

const baseURL = "http://keys.test"

func newMocked(t *testing.T) *HTTPDirectory {
	t.Helper()
	d := NewHTTPDirectory(baseURL+"/", 0)
	httpmock.ActivateNonDefault(d.Client().GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return d
}

func TestFindPublicKeyByEmail_Found(t *testing.T) {
	d := newMocked(t)

	httpmock.RegisterResponder("GET", baseURL+"/api/keys",
		func(req *http.Request) (*http.Response, error) {
			if req.URL.Query().Get("email") != "bob@example.com" {
				return httpmock.NewStringResponse(400, "bad email"), nil
			}
			return httpmock.NewJsonResponse(200, []PublicKeyRecord{
				{ID: 7, KeyID: "k-7", PublicKeyPEM: "PEM-7"},
				{ID: 8, PublicKeyPEM: "PEM-8"},
			})
		})

	rec, err := d.FindPublicKeyByEmail(context.Background(), "bob@example.com")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "PEM-7", rec.PublicKeyPEM)
	assert.Equal(t, "k-7", rec.KeyID)
	assert.Equal(t, "bob@example.com", rec.Email)
}

func TestFindPublicKeyByEmail_NotFoundAndEmpty(t *testing.T) {
	d := newMocked(t)
	ctx := context.Background()

	httpmock.RegisterResponder("GET", baseURL+"/api/keys", httpmock.NewStringResponder(404, ""))
	rec, err := d.FindPublicKeyByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, rec)

	httpmock.RegisterResponder("GET", baseURL+"/api/keys", httpmock.NewStringResponder(200, "[]"))
	rec, err = d.FindPublicKeyByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestFindPublicKeyByEmail_DecodesWithoutJSONContentType(t *testing.T) {
	d := newMocked(t)

	httpmock.RegisterResponder("GET", baseURL+"/api/keys",
		httpmock.NewStringResponder(200, `[{"email":"bob@example.com","publicKeyPem":"PEM-B","verified":true}]`))

	rec, err := d.FindPublicKeyByEmail(context.Background(), "bob@example.com")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "PEM-B", rec.PublicKeyPEM)
}

func TestFindPublicKeyByEmail_ServerError(t *testing.T) {
	d := newMocked(t)

	httpmock.RegisterResponder("GET", baseURL+"/api/keys", httpmock.NewStringResponder(500, "boom"))
	_, err := d.FindPublicKeyByEmail(context.Background(), "bob@example.com")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrCore))
	assert.Contains(t, err.Error(), "500")

	httpmock.RegisterResponder("GET", baseURL+"/api/keys", httpmock.NewStringResponder(200, "{not json"))
	_, err = d.FindPublicKeyByEmail(context.Background(), "bob@example.com")
	require.ErrorIs(t, err, common.ErrCore)
}

func TestUploadPublicKey(t *testing.T) {
	d := newMocked(t)

	var got map[string]string
	httpmock.RegisterResponder("POST", baseURL+"/api/keys",
		func(req *http.Request) (*http.Response, error) {
			if err := json.NewDecoder(req.Body).Decode(&got); err != nil {
				return httpmock.NewStringResponse(400, err.Error()), nil
			}
			return httpmock.NewJsonResponse(201, PublicKeyRecord{ID: 3, KeyID: "k-3", PublicKeyPEM: got["publicKeyPem"]})
		})

	rec, err := d.UploadPublicKey(context.Background(), "alice@example.com", "PEM-A")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got["email"])
	assert.Equal(t, "PEM-A", got["publicKeyPem"])
	assert.Equal(t, int64(3), rec.ID)
	assert.Equal(t, "PEM-A", rec.PublicKeyPEM)
}

func TestUploadPublicKey_Rejected(t *testing.T) {
	d := newMocked(t)
	httpmock.RegisterResponder("POST", baseURL+"/api/keys", httpmock.NewStringResponder(409, "exists"))

	_, err := d.UploadPublicKey(context.Background(), "alice@example.com", "PEM-A")
	require.ErrorIs(t, err, common.ErrCore)
}

func TestVerifyKey(t *testing.T) {
	d := newMocked(t)
	httpmock.RegisterResponder("POST", baseURL+"/api/keys/verify",
		func(req *http.Request) (*http.Response, error) {
			if req.URL.Query().Get("token") != "tok" {
				return httpmock.NewStringResponse(404, ""), nil
			}
			return httpmock.NewStringResponse(204, ""), nil
		})

	require.NoError(t, d.VerifyKey(context.Background(), "tok"))
	require.ErrorIs(t, d.VerifyKey(context.Background(), "other"), common.ErrNotFound)
}
