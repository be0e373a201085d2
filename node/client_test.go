package node

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iov-one/cosign/coin"
	"github.com/iov-one/cosign/cosigntest"
	"github.com/iov-one/cosign/cosigntest/assert"
	"github.com/iov-one/cosign/errors"
	"github.com/stretchr/testify/require"
)

func newTestClient(t testing.TB, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL + "/")
	c.RetryDelay = time.Millisecond
	return c
}

func TestAccountMultisig(t *testing.T) {
	k1, k2 := cosigntest.NewKey(), cosigntest.NewKey()
	addr := "cosmos1xyz"

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/cosmos/auth/v1beta1/accounts/"+addr, r.URL.Path)
		_, _ = w.Write([]byte(`{"account": {
			"@type": "/cosmos.auth.v1beta1.BaseAccount",
			"address": "` + addr + `",
			"pub_key": {
				"@type": "/cosmos.crypto.multisig.LegacyAminoPubKey",
				"threshold": 2,
				"public_keys": [
					{"@type": "/cosmos.crypto.secp256k1.PubKey", "key": "` + base64.StdEncoding.EncodeToString(k1.PubKey()) + `"},
					{"@type": "/cosmos.crypto.secp256k1.PubKey", "key": "` + base64.StdEncoding.EncodeToString(k2.PubKey()) + `"}
				]
			},
			"account_number": "12",
			"sequence": "7"
		}}`))
	}))

	acc, err := c.Account(context.Background(), addr)
	assert.Nil(t, err)
	assert.Equal(t, true, acc.IsMultisig())
	assert.Equal(t, uint32(2), acc.Threshold)
	assert.Equal(t, [][]byte{k1.PubKey(), k2.PubKey()}, acc.PubKeys)
	assert.Equal(t, int64(12), acc.AccountNumber)
	assert.Equal(t, int64(7), acc.Sequence)
}

func TestAccountVestingWithoutKey(t *testing.T) {
	addr := "cosmos1abc"
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"account": {
			"@type": "/cosmos.vesting.v1beta1.ContinuousVestingAccount",
			"base_vesting_account": {"base_account": {
				"address": "` + addr + `", "pub_key": null, "account_number": "3", "sequence": "0"
			}}
		}}`))
	}))

	acc, err := c.Account(context.Background(), addr)
	assert.Nil(t, err)
	assert.Equal(t, false, acc.IsMultisig())
	assert.Equal(t, int64(3), acc.AccountNumber)
	assert.Equal(t, "", acc.PubKeyType)
}

func TestAccountErrors(t *testing.T) {
	cases := map[string]struct {
		status  int
		body    string
		wantErr *errors.Error
		// wantCalls is the number of requests the client makes.
		wantCalls int32
	}{
		"not found": {
			status:    http.StatusNotFound,
			body:      `{"code": 5, "message": "account cosmos1 not found", "details": []}`,
			wantErr:   errors.ErrNotFound,
			wantCalls: 1,
		},
		"not found reported as server error": {
			status:    http.StatusInternalServerError,
			body:      `{"code": 5, "message": "rpc error: code = NotFound", "details": []}`,
			wantErr:   errors.ErrNotFound,
			wantCalls: 1,
		},
		"bad address": {
			status:    http.StatusBadRequest,
			body:      `{"code": 3, "message": "decoding bech32 failed", "details": []}`,
			wantErr:   errors.ErrInput,
			wantCalls: 1,
		},
		"node down": {
			status:    http.StatusBadGateway,
			body:      `upstream unavailable`,
			wantErr:   errors.ErrNodeUnavailable,
			wantCalls: 3,
		},
		"garbage": {
			status:    http.StatusOK,
			body:      `{"account": `,
			wantErr:   errors.ErrNodeUnavailable,
			wantCalls: 3,
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			var calls int32
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			_, err := c.Account(context.Background(), "cosmos1x")
			assert.IsErr(t, tc.wantErr, err)
			assert.Equal(t, tc.wantCalls, atomic.LoadInt32(&calls))
		})
	}
}

func TestBalance(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/cosmos/bank/v1beta1/balances/cosmos1x/by_denom", r.URL.Path)
		switch r.URL.Query().Get("denom") {
		case "uatom":
			_, _ = w.Write([]byte(`{"balance": {"denom": "uatom", "amount": "1000"}}`))
		default:
			_, _ = w.Write([]byte(`{"balance": {"denom": "", "amount": ""}}`))
		}
	}))

	got, err := c.Balance(context.Background(), "cosmos1x", "uatom")
	assert.Nil(t, err)
	assert.Equal(t, coin.NewCoin(1000, "uatom"), *got)

	got, err = c.Balance(context.Background(), "cosmos1x", "uosmo")
	assert.Nil(t, err)
	assert.Equal(t, coin.NewCoin(0, "uosmo"), *got)
}

func TestBroadcastTx(t *testing.T) {
	txBytes := []byte("signed transaction")

	cases := map[string]struct {
		status   int
		body     string
		wantHash string
		wantErr  *errors.Error
	}{
		"accepted": {
			status:   http.StatusOK,
			body:     `{"tx_response": {"height": "0", "txhash": "ABCDEF", "code": 0, "raw_log": "[]"}}`,
			wantHash: "ABCDEF",
		},
		"rejected by check": {
			status:  http.StatusOK,
			body:    `{"tx_response": {"txhash": "ABCDEF", "codespace": "sdk", "code": 32, "raw_log": "account sequence mismatch, expected 5, got 4"}}`,
			wantErr: errors.ErrNodeRejected,
		},
		"malformed transaction": {
			status:  http.StatusBadRequest,
			body:    `{"code": 3, "message": "invalid empty tx"}`,
			wantErr: errors.ErrNodeRejected,
		},
		"server error": {
			status:  http.StatusServiceUnavailable,
			body:    `down`,
			wantErr: errors.ErrNodeUnavailable,
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			var calls int32
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				require.Equal(t, http.MethodPost, r.Method)
				require.Equal(t, "/cosmos/tx/v1beta1/txs", r.URL.Path)
				raw, err := ioutil.ReadAll(r.Body)
				require.NoError(t, err)
				var req struct {
					TxBytes []byte `json:"tx_bytes"`
					Mode    string `json:"mode"`
				}
				require.NoError(t, json.Unmarshal(raw, &req))
				require.Equal(t, txBytes, req.TxBytes)
				require.Equal(t, "BROADCAST_MODE_SYNC", req.Mode)

				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))

			hash, err := c.BroadcastTx(context.Background(), txBytes)
			assert.IsErr(t, tc.wantErr, err)
			assert.Equal(t, tc.wantHash, hash)
			// Broadcasts are never retried.
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
		})
	}
}

func TestBroadcastRejectionCarriesReason(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tx_response": {"code": 13, "codespace": "sdk", "raw_log": "insufficient fee"}}`))
	}))
	_, err := c.BroadcastTx(context.Background(), []byte("tx"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "insufficient fee")
}

func TestBroadcastUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := NewClient(srv.URL).BroadcastTx(context.Background(), []byte("tx"))
	assert.IsErr(t, errors.ErrNodeUnavailable, err)
}

func TestBroadcastTimeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.BroadcastTx(ctx, []byte("tx"))
	assert.IsErr(t, errors.ErrTimeout, err)
}
