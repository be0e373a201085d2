/*
Package node is a client of the REST API (LCD) of Cosmos SDK chain nodes.

Reads are retried while the node is unreachable. Broadcasts are never
retried, because a broadcast that timed out may still reach the chain.
*/
package node

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/iov-one/cosign"
	"github.com/iov-one/cosign/coin"
	"github.com/iov-one/cosign/cosmostx"
	"github.com/iov-one/cosign/errors"
	"github.com/iov-one/cosign/metrics"
)

// grpcNotFound is the gRPC status code the gateway uses for missing
// entities.
const grpcNotFound = 5

// Client implements cosign.Node over HTTP.
type Client struct {
	apiURL string
	cli    *http.Client
	// ReadAttempts is how many times a read is tried in total.
	ReadAttempts uint
	// RetryDelay is the base of the exponential backoff between reads.
	RetryDelay time.Duration
}

var _ cosign.Node = (*Client)(nil)

// NewClient returns a client of the node API at given URL, for example
// http://localhost:1317.
func NewClient(apiURL string) *Client {
	return &Client{
		apiURL:       strings.TrimRight(apiURL, "/"),
		cli:          &http.Client{Timeout: 30 * time.Second},
		ReadAttempts: 3,
		RetryDelay:   200 * time.Millisecond,
	}
}

// Account implements cosign.Node.
func (c *Client) Account(ctx context.Context, address string) (*cosign.Account, error) {
	var payload struct {
		Account accountJSON `json:"account"`
	}
	path := "/cosmos/auth/v1beta1/accounts/" + url.PathEscape(address)
	if err := c.read(ctx, "account", path, &payload); err != nil {
		return nil, err
	}
	return payload.Account.toAccount(address)
}

// Balance implements cosign.Node.
func (c *Client) Balance(ctx context.Context, address, denom string) (*coin.Coin, error) {
	var payload struct {
		Balance coin.Coin `json:"balance"`
	}
	path := "/cosmos/bank/v1beta1/balances/" + url.PathEscape(address) +
		"/by_denom?" + url.Values{"denom": {denom}}.Encode()
	if err := c.read(ctx, "balance", path, &payload); err != nil {
		return nil, err
	}
	if payload.Balance.Denom == "" {
		// Nodes return an empty coin for unknown denominations.
		zero := coin.NewCoin(0, denom)
		return &zero, nil
	}
	if err := payload.Balance.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrNodeUnavailable, err.Error())
	}
	return &payload.Balance, nil
}

// BroadcastTx implements cosign.Node. It waits only for the check of the
// node, not for the transaction to be included in a block.
func (c *Client) BroadcastTx(ctx context.Context, txBytes []byte) (hash string, err error) {
	defer func(start time.Time) { metrics.ObserveNodeRequest("broadcast", err, time.Since(start)) }(time.Now())

	body, err := json.Marshal(struct {
		TxBytes string `json:"tx_bytes"`
		Mode    string `json:"mode"`
	}{
		TxBytes: base64.StdEncoding.EncodeToString(txBytes),
		Mode:    "BROADCAST_MODE_SYNC",
	})
	if err != nil {
		return "", errors.Wrap(errors.ErrHuman, err.Error())
	}

	var payload struct {
		TxResponse struct {
			TxHash    string `json:"txhash"`
			Code      uint32 `json:"code"`
			Codespace string `json:"codespace"`
			RawLog    string `json:"raw_log"`
		} `json:"tx_response"`
	}
	if err := c.do(ctx, http.MethodPost, "/cosmos/tx/v1beta1/txs", body, &payload); err != nil {
		if errors.ErrInput.Is(err) || errors.ErrNotFound.Is(err) {
			return "", errors.Wrap(errors.ErrNodeRejected, err.Error())
		}
		return "", err
	}
	if resp := payload.TxResponse; resp.Code != 0 {
		return "", errors.ErrNodeRejected.Newf("%s code %d: %s", resp.Codespace, resp.Code, resp.RawLog)
	}
	if payload.TxResponse.TxHash == "" {
		return "", errors.Wrap(errors.ErrNodeUnavailable, "no transaction hash in response")
	}
	return payload.TxResponse.TxHash, nil
}

func (c *Client) read(ctx context.Context, method, path string, dest interface{}) (err error) {
	defer func(start time.Time) { metrics.ObserveNodeRequest(method, err, time.Since(start)) }(time.Now())

	log := cosign.GetLogger(ctx)
	return retry.Do(
		func() error {
			return c.do(ctx, http.MethodGet, path, nil, dest)
		},
		retry.Context(ctx),
		retry.Attempts(c.ReadAttempts),
		retry.Delay(c.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(errors.ErrNodeUnavailable.Is),
		retry.OnRetry(func(n uint, err error) {
			log.Debug("node read retry", "path", path, "attempt", n+1, "err", err)
		}),
	)
}

// do sends a single request. Transport failures and server errors are
// ErrNodeUnavailable, client errors are ErrInput or ErrNotFound.
func (c *Client) do(ctx context.Context, method, path string, body []byte, dest interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, c.apiURL+path, reader)
	if err != nil {
		return errors.Wrap(errors.ErrInput, err.Error())
	}
	req = req.WithContext(ctx)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.cli.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return errors.Wrap(errors.ErrTimeout, err.Error())
		}
		return errors.Wrap(errors.ErrNodeUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := ioutil.ReadAll(io.LimitReader(resp.Body, 1e5))
		return statusError(resp.StatusCode, b)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1e6)).Decode(dest); err != nil {
		return errors.Wrap(errors.ErrNodeUnavailable, fmt.Sprintf("decode response: %s", err))
	}
	return nil
}

func statusError(status int, body []byte) error {
	var gw struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	msg := string(body)
	if json.Unmarshal(body, &gw) == nil && gw.Message != "" {
		msg = gw.Message
	}
	switch {
	case status == http.StatusNotFound, gw.Code == grpcNotFound:
		return errors.Wrapf(errors.ErrNotFound, "node: %s", msg)
	case status >= 500:
		return errors.Wrapf(errors.ErrNodeUnavailable, "node: %d %s", status, msg)
	default:
		return errors.Wrapf(errors.ErrInput, "node: %d %s", status, msg)
	}
}

type accountJSON struct {
	Type          string       `json:"@type"`
	Address       string       `json:"address"`
	PubKey        *pubKeyJSON  `json:"pub_key"`
	AccountNumber int64        `json:"account_number,string"`
	Sequence      int64        `json:"sequence,string"`
	BaseAccount   *accountJSON `json:"base_account"`
	BaseVesting   *struct {
		BaseAccount *accountJSON `json:"base_account"`
	} `json:"base_vesting_account"`
}

type pubKeyJSON struct {
	Type       string        `json:"@type"`
	Key        []byte        `json:"key"`
	Threshold  uint32        `json:"threshold"`
	PublicKeys []*pubKeyJSON `json:"public_keys"`
}

// toAccount unwraps vesting and module accounts down to their base account.
func (a accountJSON) toAccount(address string) (*cosign.Account, error) {
	base := &a
	switch {
	case a.BaseAccount != nil:
		base = a.BaseAccount
	case a.BaseVesting != nil && a.BaseVesting.BaseAccount != nil:
		base = a.BaseVesting.BaseAccount
	}
	if base.Address != "" && base.Address != address {
		return nil, errors.Wrapf(errors.ErrNodeUnavailable, "node returned account %s", base.Address)
	}
	acc := &cosign.Account{
		Address:       address,
		AccountNumber: base.AccountNumber,
		Sequence:      base.Sequence,
	}
	if pk := base.PubKey; pk != nil {
		acc.PubKeyType = pk.Type
		switch pk.Type {
		case cosmostx.TypeURLMultisigPubKey:
			acc.Threshold = pk.Threshold
			for _, member := range pk.PublicKeys {
				acc.PubKeys = append(acc.PubKeys, member.Key)
			}
		default:
			acc.PubKey = pk.Key
		}
	}
	return acc, nil
}
