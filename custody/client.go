package custody

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/multisig-demo/common"
	"github.com/vultisig/multisig-demo/contexthelper"
	"github.com/vultisig/multisig-demo/internal/types"
)

const maxResponseSize = 1 << 20

var errProcessPending = errors.New("signature process is still pending")

// defaultWaitTimeout bounds WaitForMultiSigProcess when no timeout is given.
var defaultWaitTimeout = 30 * time.Second

type validator interface {
	IsValid() error
}

// Client wraps the custody API. Every method is a single request/response.
type Client struct {
	baseURL  string
	apiKey   string
	client   http.Client
	logger   *logrus.Logger
	sdClient statsd.ClientInterface
}

func NewClient(baseURL, apiKey string, timeout time.Duration, sdClient statsd.ClientInterface, logger *logrus.Logger) *Client {
	if sdClient == nil {
		sdClient = &statsd.NoOpClient{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client: http.Client{
			Timeout: timeout,
		},
		logger:   logger,
		sdClient: sdClient,
	}
}

func (c *Client) bodyCloser(body io.ReadCloser) {
	if body != nil {
		if err := body.Close(); err != nil {
			c.logger.Error("Failed to close body,err:", err)
		}
	}
}

func (c *Client) incCounter(name string, tags []string) {
	if err := c.sdClient.Count(name, 1, tags, 1); err != nil {
		c.logger.Errorf("fail to count metric, err: %v", err)
	}
}

func (c *Client) measureTime(name string, start time.Time, tags []string) {
	if err := c.sdClient.Timing(name, time.Since(start), tags, 1); err != nil {
		c.logger.Errorf("fail to measure time metric, err: %v", err)
	}
}

// do sends one JSON request and decodes a 2xx body into out when out is not
// nil. Non-2xx responses come back as *APIError.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	if err := contexthelper.CheckCancellation(ctx); err != nil {
		return fmt.Errorf("fail to %s: %w", op, err)
	}
	tags := []string{"op:" + strings.ReplaceAll(op, " ", "_")}
	c.incCounter("custody.request", tags)
	defer c.measureTime("custody.request.latency", time.Now(), tags)

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("fail to %s: fail to marshal request: %w", op, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("fail to %s: fail to create request: %w", op, err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.incCounter("custody.request.error", tags)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("fail to %s: %w", op, ctxErr)
		}
		return fmt.Errorf("fail to %s: %w: %w", op, ErrNetwork, err)
	}
	defer c.bodyCloser(resp.Body)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		c.incCounter("custody.request.error", tags)
		return fmt.Errorf("fail to %s: fail to read response: %w: %w", op, ErrNetwork, err)
	}

	c.logger.WithFields(logrus.Fields{
		"method": method,
		"path":   path,
		"status": resp.StatusCode,
	}).Debug("custody request completed")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.incCounter("custody.request.error", tags)
		return fmt.Errorf("fail to %s: %w", op, newAPIError(method, path, resp, raw))
	}
	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return fmt.Errorf("fail to %s: empty body: %w", op, ErrInvalidResponse)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("fail to %s: fail to decode response: %w: %w", op, ErrInvalidResponse, err)
	}
	if v, ok := out.(validator); ok {
		if err := v.IsValid(); err != nil {
			return fmt.Errorf("fail to %s: %w: %w", op, ErrInvalidResponse, err)
		}
	}
	return nil
}

// CreateAccount creates an account and its signing wallet. externalID is the
// caller's correlation id.
func (c *Client) CreateAccount(ctx context.Context, name, externalID string) (*types.Account, error) {
	req := types.AccountCreateRequest{
		Name:       name,
		ExternalID: externalID,
	}
	if err := req.IsValid(); err != nil {
		return nil, fmt.Errorf("fail to create account: %w", err)
	}
	var resp types.AccountCreateResponse
	if err := c.do(ctx, "create account", http.MethodPost, "/accounts", req, &resp); err != nil {
		return nil, err
	}
	return resp.Account, nil
}

// CreateMultisigWallet starts a multisig wallet. Signers must be added and the
// wallet generated before it can be used.
func (c *Client) CreateMultisigWallet(ctx context.Context, name string, minWeightOfSigners int) (*types.Wallet, error) {
	req := types.WalletCreateRequest{
		Name:               name,
		MinWeightOfSigners: minWeightOfSigners,
	}
	if err := req.IsValid(); err != nil {
		return nil, fmt.Errorf("fail to create wallet: %w", err)
	}
	var wallet types.Wallet
	if err := c.do(ctx, "create wallet", http.MethodPost, "/wallets", req, &wallet); err != nil {
		return nil, err
	}
	return &wallet, nil
}

// AddSigner registers the account's primary wallet on the multisig wallet.
func (c *Client) AddSigner(ctx context.Context, walletID string, account types.Account, weight int) error {
	signer, err := types.NewSigner(account, weight)
	if err != nil {
		return fmt.Errorf("fail to add signer: %w", err)
	}
	if err := signer.IsValid(); err != nil {
		return fmt.Errorf("fail to add signer: %w", err)
	}
	path := "/wallets/" + url.PathEscape(walletID) + "/signer"
	return c.do(ctx, "add signer", http.MethodPut, path, signer, nil)
}

// GenerateWallet finalizes the wallet. The service rejects it until the
// registered signer weight reaches minWeightOfSigners.
func (c *Client) GenerateWallet(ctx context.Context, walletID string, minWeightOfSigners int) error {
	path := "/wallets/" + url.PathEscape(walletID) + "/generate"
	req := types.WalletGenerateRequest{MinWeightOfSigners: minWeightOfSigners}
	return c.do(ctx, "generate wallet", http.MethodPut, path, req, nil)
}

// SignBase64 asks the service to sign already encoded data with the account key.
func (c *Client) SignBase64(ctx context.Context, accountID, b64DataToSign string) (string, error) {
	path := "/accounts/" + url.PathEscape(accountID) + "/signbase64"
	req := types.SignDataRequest{B64DataToSign: b64DataToSign}
	var resp types.SignDataResponse
	if err := c.do(ctx, "sign data", http.MethodPut, path, req, &resp); err != nil {
		return "", err
	}
	return resp.Signature, nil
}

// CreateAccountSignature signs data with one account, for later submission
// into a multisig process.
func (c *Client) CreateAccountSignature(ctx context.Context, accountID, data string) (string, error) {
	return c.SignBase64(ctx, accountID, common.EncodePayload(data))
}

// CreateMultiSigProcess opens a signature process over data on a generated wallet.
func (c *Client) CreateMultiSigProcess(ctx context.Context, walletID, data string) (*types.SignatureProcess, error) {
	req := types.SignatureProcessCreateRequest{
		WalletID:      walletID,
		B64DataToSign: common.EncodePayload(data),
	}
	if err := req.IsValid(); err != nil {
		return nil, fmt.Errorf("fail to create signature process: %w", err)
	}
	var process types.SignatureProcess
	if err := c.do(ctx, "create signature process", http.MethodPost, "/signatures", req, &process); err != nil {
		return nil, err
	}
	return &process, nil
}

// SignMultiSig submits one account signature into the process.
func (c *Client) SignMultiSig(ctx context.Context, processID, signature string) error {
	path := "/signatures/" + url.PathEscape(processID) + "/sign"
	req := types.SignatureSubmitRequest{B64Signature: signature}
	return c.do(ctx, "submit signature", http.MethodPut, path, req, nil)
}

func (c *Client) GetMultiSigProcess(ctx context.Context, processID string) (*types.SignatureProcess, error) {
	path := "/signatures/" + url.PathEscape(processID)
	var process types.SignatureProcess
	if err := c.do(ctx, "get signature process", http.MethodGet, path, nil, &process); err != nil {
		return nil, err
	}
	return &process, nil
}

// WaitForMultiSigProcess polls the process every interval until it is complete.
// A non-positive timeout falls back to defaultWaitTimeout. When the budget runs
// out after at least one successful poll, the last observed process is returned
// without error, even if the final attempts failed with network or 5xx errors.
// Those failures are retried within the same budget.
func (c *Client) WaitForMultiSigProcess(ctx context.Context, processID string, interval, timeout time.Duration) (*types.SignatureProcess, error) {
	var last *types.SignatureProcess
	if interval <= 0 {
		interval = time.Second
	}
	if timeout <= 0 {
		timeout = defaultWaitTimeout
	}
	backoff := retry.WithMaxDuration(timeout, retry.NewConstant(interval))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		process, err := c.GetMultiSigProcess(ctx, processID)
		if err != nil {
			if IsRetryable(err) {
				c.logger.WithFields(logrus.Fields{
					"process": processID,
					"error":   err,
				}).Warn("Failed to poll signature process, retrying")
				return retry.RetryableError(err)
			}
			return err
		}
		last = process
		if process.IsComplete() {
			return nil
		}
		c.logger.WithFields(logrus.Fields{
			"process": processID,
			"status":  process.Status,
		}).Debug("Waiting for signature process")
		return retry.RetryableError(errProcessPending)
	})
	switch {
	case err == nil, errors.Is(err, errProcessPending):
		return last, nil
	case last != nil && IsRetryable(err) && ctx.Err() == nil:
		c.logger.WithFields(logrus.Fields{
			"process": processID,
			"status":  last.Status,
			"error":   err,
		}).Warn("Poll budget exhausted after failures, returning last observed process")
		return last, nil
	default:
		return last, err
	}
}
