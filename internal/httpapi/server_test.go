package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"filippo.io/edwards25519"
	"github.com/gorilla/mux"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nftgate/internal/relay"
)

type stubVerifier struct {
	hasNFT     bool
	count      int
	err        error
	collection string
}

func (v *stubVerifier) HasRequiredNFT(_ context.Context, _, collection string) (bool, int, error) {
	v.collection = collection
	if v.err != nil {
		return false, 0, v.err
	}
	return v.hasNFT, v.count, nil
}

func validWallet() string {
	return base58.Encode(edwards25519.NewGeneratorPoint().Bytes())
}

func postVerify(t *testing.T, srv *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/verify-nft", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func newTestServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(opts).Router())
	t.Cleanup(srv.Close)
	return srv
}

func TestVerifyPositive(t *testing.T) {
	verifier := &stubVerifier{hasNFT: true, count: 2}
	srv := newTestServer(t, Options{Verifier: verifier, DefaultCollection: "COLL1"})

	resp := postVerify(t, srv, fmt.Sprintf(`{"wallet_address":%q,"tg_id":"42"}`, validWallet()))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body verifyResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.HasNFT)
	assert.Equal(t, 2, body.NFTCount)
	assert.Equal(t, "COLL1", verifier.collection, "default collection applies when the request names none")
}

func TestVerifyNegativeIsStill200(t *testing.T) {
	srv := newTestServer(t, Options{Verifier: &stubVerifier{}})

	resp := postVerify(t, srv, fmt.Sprintf(`{"wallet_address":%q,"tg_id":"42"}`, validWallet()))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body verifyResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body.HasNFT)
	assert.Zero(t, body.NFTCount)
}

func TestVerifyRequestCollectionOverridesDefault(t *testing.T) {
	verifier := &stubVerifier{hasNFT: true, count: 1}
	srv := newTestServer(t, Options{Verifier: verifier, DefaultCollection: "COLL1"})

	resp := postVerify(t, srv, fmt.Sprintf(`{"wallet_address":%q,"tg_id":"42","collection_id":"COLL2"}`, validWallet()))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "COLL2", verifier.collection)
}

func TestVerifyRejectsBadInput(t *testing.T) {
	srv := newTestServer(t, Options{Verifier: &stubVerifier{hasNFT: true}})

	cases := map[string]string{
		"malformed body":  `{not json`,
		"missing tg_id":   fmt.Sprintf(`{"wallet_address":%q}`, validWallet()),
		"numeric tg_id 0": fmt.Sprintf(`{"wallet_address":%q,"tg_id":"0"}`, validWallet()),
		"short address":   `{"wallet_address":"tooshort","tg_id":"42"}`,
		"bad base58":      `{"wallet_address":"0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl","tg_id":"42"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp := postVerify(t, srv, body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestVerifyTransportFailureIs502(t *testing.T) {
	srv := newTestServer(t, Options{Verifier: &stubVerifier{err: errors.New("das unreachable")}})

	resp := postVerify(t, srv, fmt.Sprintf(`{"wallet_address":%q,"tg_id":"42"}`, validWallet()))
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestVerifyDeliversWebhook(t *testing.T) {
	mb := relay.NewMailbox(4)
	r := mux.NewRouter()
	relay.NewHandler(mb, nil).Register(r)
	botSrv := httptest.NewServer(r)
	defer botSrv.Close()

	srv := newTestServer(t, Options{
		Verifier: &stubVerifier{hasNFT: true, count: 1},
		Webhook:  relay.NewClient(botSrv.URL + "/verify_callback"),
	})

	resp := postVerify(t, srv, fmt.Sprintf(`{"wallet_address":%q,"tg_id":"77"}`, validWallet()))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool { return mb.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	res, ok := mb.Poll()
	require.True(t, ok)
	assert.Equal(t, int64(77), res.UserID)
	assert.True(t, res.HasNFT)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, Options{Verifier: &stubVerifier{}})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}
