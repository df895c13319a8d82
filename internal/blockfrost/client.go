package blockfrost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goodnatureofminers/vesting-escrow/internal/cardano/model"
	"github.com/goodnatureofminers/vesting-escrow/internal/clock"
	"github.com/goodnatureofminers/vesting-escrow/internal/vesting"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

// Config controls the endpoint, credentials and retry policy of a Client.
type Config struct {
	BaseURL   string
	ProjectID string
	// RPS caps outgoing requests per second; zero disables pacing.
	RPS            int
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	PageSize       int
}

// DefaultConfig returns the retry policy used by the CLI.
func DefaultConfig(baseURL, projectID string) Config {
	return Config{
		BaseURL:        baseURL,
		ProjectID:      projectID,
		RPS:            10,
		MaxRetries:     4,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
		PageSize:       defaultCount,
	}
}

// Client queries UTxOs and submits transactions through Blockfrost.
type Client struct {
	cfg     Config
	http    *http.Client
	rl      ratelimit.Limiter
	metrics Metrics
	logger  *zap.Logger
}

// New constructs a Client. httpClient may carry a custom transport.
func New(cfg Config, httpClient *http.Client, metrics Metrics, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base url is required")
	}
	if cfg.ProjectID == "" {
		return nil, errors.New("project id is required")
	}
	if metrics == nil {
		return nil, errors.New("blockfrost client metrics is required")
	}
	if logger == nil {
		return nil, errors.New("blockfrost client logger is required")
	}
	if cfg.PageSize <= 0 || cfg.PageSize > defaultCount {
		cfg.PageSize = defaultCount
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	rl := ratelimit.NewUnlimited()
	if cfg.RPS > 0 {
		rl = ratelimit.New(cfg.RPS)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:     cfg,
		http:    httpClient,
		rl:      rl,
		metrics: metrics,
		logger:  logger.Named("blockfrost"),
	}, nil
}

// ListUnspentOutputs returns every unspent output at addr. An address the
// indexer has never seen yields an empty list.
func (c *Client) ListUnspentOutputs(ctx context.Context, addr model.Address) (utxos []model.UTxO, err error) {
	started := time.Now()
	defer func() {
		c.metrics.Observe(opListUtxos, err, started)
	}()

	utxos = []model.UTxO{}
	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		query.Set("count", strconv.Itoa(c.cfg.PageSize))

		var batch []utxoDTO
		found, err := c.get(ctx, opListUtxos, "/addresses/"+url.PathEscape(string(addr))+"/utxos", query, &batch)
		if err != nil {
			return nil, err
		}
		if !found {
			return utxos, nil
		}
		for _, dto := range batch {
			utxo, err := dto.toModel("")
			if err != nil {
				return nil, fmt.Errorf("%w: decode utxo: %v", vesting.ErrLedgerQueryFailure, err)
			}
			utxos = append(utxos, utxo)
		}
		if len(batch) < c.cfg.PageSize {
			return utxos, nil
		}
	}
}

// TransactionOutputs returns the outputs of txID, spent or not, in index
// order. An unknown transaction yields an empty list.
func (c *Client) TransactionOutputs(ctx context.Context, txID string) (utxos []model.UTxO, err error) {
	started := time.Now()
	defer func() {
		c.metrics.Observe(opTxOutputs, err, started)
	}()

	var tx txUtxosDTO
	found, err := c.get(ctx, opTxOutputs, "/txs/"+url.PathEscape(txID)+"/utxos", nil, &tx)
	if err != nil || !found {
		return nil, err
	}
	utxos = make([]model.UTxO, 0, len(tx.Outputs))
	for _, dto := range tx.Outputs {
		if dto.Collateral {
			continue
		}
		utxo, err := dto.toModel(txID)
		if err != nil {
			return nil, fmt.Errorf("%w: decode output: %v", vesting.ErrLedgerQueryFailure, err)
		}
		utxos = append(utxos, utxo)
	}
	return utxos, nil
}

// ProtocolParameters returns the fee parameters and PlutusV3 cost model of the
// current epoch.
func (c *Client) ProtocolParameters(ctx context.Context) (params vesting.ProtocolParameters, err error) {
	started := time.Now()
	defer func() {
		c.metrics.Observe(opParameters, err, started)
	}()

	var dto parametersDTO
	found, err := c.get(ctx, opParameters, "/epochs/latest/parameters", nil, &dto)
	if err != nil {
		return vesting.ProtocolParameters{}, err
	}
	if !found {
		return vesting.ProtocolParameters{}, fmt.Errorf("%w: protocol parameters not found", vesting.ErrLedgerQueryFailure)
	}
	if params, err = dto.toModel(); err != nil {
		return vesting.ProtocolParameters{}, fmt.Errorf("%w: decode protocol parameters: %v", vesting.ErrLedgerQueryFailure, err)
	}
	return params, nil
}

// Submit sends a signed transaction and returns its id. Submission is never
// retried: a timed out request may still have reached the mempool.
func (c *Client) Submit(ctx context.Context, tx model.SignedTransaction) (txID string, err error) {
	started := time.Now()
	defer func() {
		c.metrics.Observe(opSubmit, err, started)
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/tx/submit", nil, bytes.NewReader(tx.CBOR))
	if err != nil {
		return "", fmt.Errorf("%w: %v", vesting.ErrSubmissionFailure, err)
	}
	req.Header.Set("Content-Type", "application/cbor")

	c.rl.Take()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", vesting.ErrSubmissionFailure, err)
	}
	body, err := readBody(resp)
	if err != nil {
		return "", fmt.Errorf("%w: %v", vesting.ErrSubmissionFailure, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s", vesting.ErrSubmissionFailure, describe(resp.StatusCode, body))
	}
	if err := json.Unmarshal(body, &txID); err != nil {
		return "", fmt.Errorf("%w: decode tx id: %v", vesting.ErrSubmissionFailure, err)
	}
	c.logger.Info("transaction submitted", zap.String("tx_id", txID))
	return txID, nil
}

// get decodes a JSON response into out. It reports found=false on 404 and
// retries transport errors, 429 and 5xx with exponential backoff.
func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) (found bool, err error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := clock.Backoff(attempt-1, c.cfg.InitialBackoff, c.cfg.MaxBackoff)
			c.logger.Warn("retrying ledger query",
				zap.String("operation", op),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			c.metrics.ObserveRetry(op)
			if err := clock.SleepWithContext(ctx, delay); err != nil {
				return false, fmt.Errorf("%w: %v (last error: %v)", vesting.ErrLedgerQueryFailure, err, lastErr)
			}
		}

		found, retry, err := c.getOnce(ctx, path, query, out)
		if err == nil {
			return found, nil
		}
		if !retry || ctx.Err() != nil {
			return false, fmt.Errorf("%w: %v", vesting.ErrLedgerQueryFailure, err)
		}
		lastErr = err
	}
	return false, fmt.Errorf("%w: giving up after %d attempts: %v", vesting.ErrLedgerQueryFailure, c.cfg.MaxRetries+1, lastErr)
}

func (c *Client) getOnce(ctx context.Context, path string, query url.Values, out any) (found, retry bool, err error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return false, false, err
	}

	c.rl.Take()
	resp, err := c.http.Do(req)
	if err != nil {
		return false, true, err
	}
	body, err := readBody(resp)
	if err != nil {
		return false, true, err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.Unmarshal(body, out); err != nil {
			return false, false, fmt.Errorf("decode response: %w", err)
		}
		return true, false, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return false, true, errors.New(describe(resp.StatusCode, body))
	default:
		return false, false, errors.New(describe(resp.StatusCode, body))
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	target := c.cfg.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("project_id", c.cfg.ProjectID)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

func describe(status int, body []byte) string {
	var apiErr errorDTO
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return fmt.Sprintf("http %d %s: %s", status, apiErr.Error, apiErr.Message)
	}
	return fmt.Sprintf("http %d: %s", status, strings.TrimSpace(string(body)))
}
