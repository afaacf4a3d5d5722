package custody

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vultisig/multisig-demo/internal/types"
)

type recordedRequest struct {
	Method string
	Path   string
	Auth   string
	CType  string
	Body   map[string]any
}

type recorder struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (r *recorder) all() []recordedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedRequest(nil), r.requests...)
}

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, r recordedRequest)) (*httptest.Server, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := recordedRequest{
			Method: r.Method,
			Path:   r.URL.EscapedPath(),
			Auth:   r.Header.Get("Authorization"),
			CType:  r.Header.Get("Content-Type"),
		}
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &req.Body)
		}
		rec.mu.Lock()
		rec.requests = append(rec.requests, req)
		rec.mu.Unlock()
		handler(w, req)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func newTestClient(baseURL string) *Client {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewClient(baseURL+"/api/v1/", "tenant-key", 5*time.Second, &statsd.NoOpClient{}, logger)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func testAccount() types.Account {
	return types.Account{
		ID:      "acc-1",
		Wallets: []types.AccountWallet{{Address: "0xabc", PublicKey: "pk-1"}},
	}
}

func TestCreateAccount(t *testing.T) {
	srv, rec := newTestServer(t, func(w http.ResponseWriter, r recordedRequest) {
		writeJSON(w, http.StatusCreated, map[string]any{
			"account": map[string]any{
				"id":         "acc-1",
				"externalId": r.Body["externalId"],
				"wallets":    []map[string]string{{"address": "0xabc", "publicKey": "pk-1"}},
			},
		})
	})
	client := newTestClient(srv.URL)

	account, err := client.CreateAccount(context.Background(), "My Account", "corr-1")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", account.ID)
	assert.Equal(t, "corr-1", account.ExternalID)

	requests := rec.all()
	require.Len(t, requests, 1)
	req := requests[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/v1/accounts", req.Path)
	assert.Equal(t, "tenant-key", req.Auth)
	assert.Equal(t, "application/json", req.CType)
	assert.Equal(t, map[string]any{"name": "My Account", "externalId": "corr-1"}, req.Body)
}

func TestCreateAccountMissingWallets(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r recordedRequest) {
		writeJSON(w, http.StatusOK, map[string]any{"account": map[string]any{"id": "acc-1"}})
	})
	client := newTestClient(srv.URL)

	_, err := client.CreateAccount(context.Background(), "My Account", "corr-1")
	assert.ErrorIs(t, err, ErrInvalidResponse)
	assert.EqualError(t, err, "fail to create account: invalid response: account acc-1 has no wallets")
}

func TestWalletOperations(t *testing.T) {
	srv, rec := newTestServer(t, func(w http.ResponseWriter, r recordedRequest) {
		switch r.Path {
		case "/api/v1/wallets":
			writeJSON(w, http.StatusCreated, map[string]any{"id": "wal-1", "name": r.Body["name"], "minWeightOfSigners": 2})
		default:
			writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		}
	})
	client := newTestClient(srv.URL)
	ctx := context.Background()

	wallet, err := client.CreateMultisigWallet(ctx, "My Wallet", 2)
	require.NoError(t, err)
	assert.Equal(t, "wal-1", wallet.ID)
	assert.Equal(t, 2, wallet.MinWeightOfSigners)

	require.NoError(t, client.AddSigner(ctx, wallet.ID, testAccount(), 1))
	require.NoError(t, client.GenerateWallet(ctx, wallet.ID, 2))

	requests := rec.all()
	require.Len(t, requests, 3)
	assert.Equal(t, map[string]any{"name": "My Wallet", "minWeightOfSigners": float64(2)}, requests[0].Body)

	addSigner := requests[1]
	assert.Equal(t, http.MethodPut, addSigner.Method)
	assert.Equal(t, "/api/v1/wallets/wal-1/signer", addSigner.Path)
	assert.Equal(t, map[string]any{
		"walletAddress":   "0xabc",
		"publicKey":       "pk-1",
		"publicKeyType":   "ED25519",
		"signatureWeight": float64(1),
	}, addSigner.Body)

	generate := requests[2]
	assert.Equal(t, http.MethodPut, generate.Method)
	assert.Equal(t, "/api/v1/wallets/wal-1/generate", generate.Path)
	assert.Equal(t, map[string]any{"minWeightOfSigners": float64(2)}, generate.Body)
}

func TestSignatureOperations(t *testing.T) {
	srv, rec := newTestServer(t, func(w http.ResponseWriter, r recordedRequest) {
		switch {
		case r.Path == "/api/v1/accounts/acc-1/signbase64":
			writeJSON(w, http.StatusOK, map[string]string{"signature": "c2ln"})
		case r.Path == "/api/v1/signatures" && r.Method == http.MethodPost:
			writeJSON(w, http.StatusCreated, map[string]any{"id": "proc-1", "walletId": r.Body["walletId"], "status": "pending"})
		case r.Path == "/api/v1/signatures/proc-1/sign":
			w.WriteHeader(http.StatusOK)
		case r.Path == "/api/v1/signatures/proc-1":
			writeJSON(w, http.StatusOK, map[string]any{"id": "proc-1", "status": "complete"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	client := newTestClient(srv.URL)
	ctx := context.Background()

	sig, err := client.CreateAccountSignature(ctx, "acc-1", "Hello World!")
	require.NoError(t, err)
	assert.Equal(t, "c2ln", sig)

	process, err := client.CreateMultiSigProcess(ctx, "wal-1", "Hello World!")
	require.NoError(t, err)
	assert.Equal(t, "proc-1", process.ID)
	assert.False(t, process.IsComplete())

	require.NoError(t, client.SignMultiSig(ctx, process.ID, sig))

	process, err = client.GetMultiSigProcess(ctx, "proc-1")
	require.NoError(t, err)
	assert.True(t, process.IsComplete())

	requests := rec.all()
	require.Len(t, requests, 4)
	assert.Equal(t, map[string]any{"b64DataToSign": "SGVsbG8gV29ybGQh"}, requests[0].Body)
	assert.Equal(t, map[string]any{"walletId": "wal-1", "b64DataToSign": "SGVsbG8gV29ybGQh"}, requests[1].Body)
	assert.Equal(t, map[string]any{"b64Signature": "c2ln"}, requests[2].Body)
	assert.Equal(t, http.MethodGet, requests[3].Method)
	assert.Nil(t, requests[3].Body)
}

func TestPathEscaping(t *testing.T) {
	srv, rec := newTestServer(t, func(w http.ResponseWriter, r recordedRequest) {
		writeJSON(w, http.StatusOK, map[string]any{"id": "x", "status": "pending"})
	})
	client := newTestClient(srv.URL)

	_, err := client.GetMultiSigProcess(context.Background(), "a/b")
	require.NoError(t, err)
	requests := rec.all()
	require.Len(t, requests, 1)
	assert.Equal(t, "/api/v1/signatures/a%2Fb", requests[0].Path)
}

func TestErrorClassification(t *testing.T) {
	testCases := []struct {
		name     string
		status   int
		body     string
		sentinel error
		message  string
	}{
		{name: "Unauthorized", status: http.StatusUnauthorized, body: `{"error":"bad key"}`, sentinel: ErrUnauthorized, message: "bad key"},
		{name: "Forbidden", status: http.StatusForbidden, body: ``, sentinel: ErrUnauthorized},
		{name: "Validation", status: http.StatusUnprocessableEntity, body: `{"message":"weight too low"}`, sentinel: ErrValidation, message: "weight too low"},
		{name: "Not found", status: http.StatusNotFound, body: `not here`, sentinel: ErrNotFound, message: "not here"},
		{name: "Conflict", status: http.StatusConflict, body: `{"error":"wallet not generated"}`, sentinel: ErrConflict, message: "wallet not generated"},
		{name: "Server", status: http.StatusBadGateway, body: ``, sentinel: ErrServer},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := newTestServer(t, func(w http.ResponseWriter, r recordedRequest) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			client := newTestClient(srv.URL)

			err := client.GenerateWallet(context.Background(), "wal-1", 2)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.sentinel)
			assert.Equal(t, tc.status, StatusCode(err))

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, http.MethodPut, apiErr.Method)
			assert.Equal(t, "/wallets/wal-1/generate", apiErr.Path)
			assert.Equal(t, tc.message, apiErr.Message)
			assert.Equal(t, tc.status >= 500, IsRetryable(err))
		})
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	client := newTestClient(srv.URL)

	err := client.SignMultiSig(context.Background(), "proc-1", "sig")
	assert.ErrorIs(t, err, ErrNetwork)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, 0, StatusCode(err))
}

func TestCancelledContext(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()
	client := newTestClient(srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.GetMultiSigProcess(ctx, "proc-1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsRetryable(err))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestWaitForMultiSigProcess(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			writeJSON(w, http.StatusOK, map[string]any{"id": "proc-1", "status": "pending"})
		case 2:
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			writeJSON(w, http.StatusOK, map[string]any{"id": "proc-1", "status": "complete"})
		}
	}))
	defer srv.Close()
	client := newTestClient(srv.URL)

	process, err := client.WaitForMultiSigProcess(context.Background(), "proc-1", 10*time.Millisecond, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, process.IsComplete())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestWaitForMultiSigProcessTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": "proc-1", "status": "pending"})
	}))
	defer srv.Close()
	client := newTestClient(srv.URL)

	process, err := client.WaitForMultiSigProcess(context.Background(), "proc-1", 10*time.Millisecond, 50*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, process)
	assert.Equal(t, types.SignatureStatusPending, process.Status)
}

func TestWaitForMultiSigProcessNotFound(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	client := newTestClient(srv.URL)

	process, err := client.WaitForMultiSigProcess(context.Background(), "proc-1", 10*time.Millisecond, time.Second)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, process)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestWaitForMultiSigProcessDefaultTimeout(t *testing.T) {
	saved := defaultWaitTimeout
	defaultWaitTimeout = 50 * time.Millisecond
	t.Cleanup(func() { defaultWaitTimeout = saved })

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusOK, map[string]any{"id": "proc-1", "status": "pending"})
	}))
	defer srv.Close()
	client := newTestClient(srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	process, err := client.WaitForMultiSigProcess(ctx, "proc-1", 10*time.Millisecond, 0)
	require.NoError(t, err)
	require.NotNil(t, process)
	assert.Equal(t, types.SignatureStatusPending, process.Status)
	assert.NoError(t, ctx.Err())
	assert.Less(t, atomic.LoadInt32(&calls), int32(20))
}

func TestWaitForMultiSigProcessFailuresAfterPending(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			writeJSON(w, http.StatusOK, map[string]any{"id": "proc-1", "status": "pending"})
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	client := newTestClient(srv.URL)

	process, err := client.WaitForMultiSigProcess(context.Background(), "proc-1", 10*time.Millisecond, 60*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, process)
	assert.Equal(t, types.SignatureStatusPending, process.Status)
	assert.Greater(t, atomic.LoadInt32(&calls), int32(1))
}

func TestWaitForMultiSigProcessFailuresOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	client := newTestClient(srv.URL)

	process, err := client.WaitForMultiSigProcess(context.Background(), "proc-1", 10*time.Millisecond, 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrServer)
	assert.Nil(t, process)
}
