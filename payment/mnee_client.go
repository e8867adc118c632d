package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-bounty/core"
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	TextCodeInvalidAddress    = "INVALID_ADDRESS"
	TextCodeUnauthorized      = "UNAUTHORIZED"

	defaultResponseLimit = 1 << 20 // 1 MiB
)

// addressPattern matches a base58 P2PKH address. Network validation remains
// with the provider; this gates obviously malformed input before any call.
var addressPattern = regexp.MustCompile(`^[13][a-km-zA-HJ-NP-Z1-9]{25,34}$`)

// FeeTier prices transfers whose atomic amount falls in [Min, Max]. A zero
// Max marks an open-ended top tier.
type FeeTier struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
	Fee int64 `json:"fee"`
}

// MNEEClient implements the payment boundary against the MNEE REST API.
// Transfers are deduplicated server side by the idempotency key, so a
// retried send can never move funds twice.
type MNEEClient struct {
	transport core.TransportAdapter
	baseURL   string
	apiKey    string
	address   string
	sandbox   bool
	timeout   time.Duration
	logger    core.Logger

	mu       sync.Mutex
	feeTiers []FeeTier
}

type MNEEOption func(*MNEEClient)

func WithBaseURL(baseURL string) MNEEOption {
	return func(c *MNEEClient) {
		trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

func WithSandbox(sandbox bool) MNEEOption {
	return func(c *MNEEClient) {
		c.sandbox = sandbox
	}
}

func WithTimeout(timeout time.Duration) MNEEOption {
	return func(c *MNEEClient) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

func WithLogger(logger core.Logger) MNEEOption {
	return func(c *MNEEClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithFeeTiers seeds the fee schedule so CalculateFee works without a
// round trip to the config endpoint.
func WithFeeTiers(tiers []FeeTier) MNEEOption {
	return func(c *MNEEClient) {
		if len(tiers) > 0 {
			c.feeTiers = append([]FeeTier(nil), tiers...)
		}
	}
}

func NewMNEEClient(transport core.TransportAdapter, apiKey string, walletAddress string, options ...MNEEOption) (*MNEEClient, error) {
	if transport == nil {
		return nil, fmt.Errorf("payment: transport adapter is required")
	}
	walletAddress = strings.TrimSpace(walletAddress)
	if walletAddress == "" {
		return nil, fmt.Errorf("payment: wallet address is required")
	}
	client := &MNEEClient{
		transport: transport,
		baseURL:   "https://api.mnee.io/v1",
		apiKey:    strings.TrimSpace(apiKey),
		address:   walletAddress,
		timeout:   30 * time.Second,
	}
	for _, option := range options {
		if option != nil {
			option(client)
		}
	}
	return client, nil
}

type transferResponse struct {
	TransactionID string `json:"transactionId"`
	Amount        int64  `json:"amount"`
	Recipient     string `json:"recipient"`
}

func (c *MNEEClient) SendPayment(ctx context.Context, address string, amount int64, idempotencyKey string) (core.PaymentReceipt, error) {
	address = strings.TrimSpace(address)
	if !addressPattern.MatchString(address) {
		return core.PaymentReceipt{}, goerrors.New(
			fmt.Sprintf("payment: recipient address %q is not a valid MNEE address", address),
			goerrors.CategoryValidation,
		).WithTextCode(TextCodeInvalidAddress)
	}
	if amount <= 0 {
		return core.PaymentReceipt{}, goerrors.New(
			fmt.Sprintf("payment: transfer amount must be positive, got %d", amount),
			goerrors.CategoryValidation,
		)
	}
	if strings.TrimSpace(idempotencyKey) == "" {
		return core.PaymentReceipt{}, goerrors.New(
			"payment: idempotency key is required for transfers",
			goerrors.CategoryValidation,
		)
	}

	payload, err := json.Marshal(map[string]any{
		"from":   c.address,
		"to":     address,
		"amount": amount,
	})
	if err != nil {
		return core.PaymentReceipt{}, goerrors.Wrap(err, goerrors.CategoryInternal, "payment: encode transfer payload")
	}

	body, err := c.do(ctx, http.MethodPost, "/transfer", payload, idempotencyKey)
	if err != nil {
		return core.PaymentReceipt{}, err
	}
	var res transferResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return core.PaymentReceipt{}, goerrors.Wrap(err, goerrors.CategoryExternal, "payment: decode transfer response")
	}
	if strings.TrimSpace(res.TransactionID) == "" {
		return core.PaymentReceipt{}, goerrors.New("payment: transfer response carried no transaction id", goerrors.CategoryExternal)
	}
	receipt := core.PaymentReceipt{
		TransactionID: res.TransactionID,
		Amount:        res.Amount,
		Recipient:     res.Recipient,
	}
	if receipt.Amount == 0 {
		receipt.Amount = amount
	}
	if receipt.Recipient == "" {
		receipt.Recipient = address
	}
	return receipt, nil
}

type balanceResponse struct {
	Address string `json:"address"`
	Balance int64  `json:"balance"`
	Pending int64  `json:"pending"`
}

func (c *MNEEClient) GetBalance(ctx context.Context) (core.Balance, error) {
	body, err := c.do(ctx, http.MethodGet, "/balance/"+c.address, nil, "")
	if err != nil {
		return core.Balance{}, err
	}
	var res balanceResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return core.Balance{}, goerrors.Wrap(err, goerrors.CategoryExternal, "payment: decode balance response")
	}
	balance := core.Balance{
		Address: res.Address,
		Amount:  res.Balance,
		Pending: res.Pending,
	}
	if balance.Address == "" {
		balance.Address = c.address
	}
	return balance, nil
}

func (c *MNEEClient) ValidateAddress(ctx context.Context, address string) (bool, error) {
	return addressPattern.MatchString(strings.TrimSpace(address)), nil
}

// CalculateFee resolves the atomic fee for a transfer amount from the
// provider's tier schedule, fetching the schedule on first use.
func (c *MNEEClient) CalculateFee(ctx context.Context, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, goerrors.New(
			fmt.Sprintf("payment: fee amount must be positive, got %d", amount),
			goerrors.CategoryValidation,
		)
	}
	tiers, err := c.loadFeeTiers(ctx)
	if err != nil {
		return 0, err
	}
	for _, tier := range tiers {
		if amount >= tier.Min && (tier.Max == 0 || amount <= tier.Max) {
			return tier.Fee, nil
		}
	}
	return 0, goerrors.New(
		fmt.Sprintf("payment: no fee tier covers amount %d", amount),
		goerrors.CategoryExternal,
	)
}

type configResponse struct {
	Fees []FeeTier `json:"fees"`
}

func (c *MNEEClient) loadFeeTiers(ctx context.Context) ([]FeeTier, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.feeTiers) > 0 {
		return c.feeTiers, nil
	}

	body, err := c.do(ctx, http.MethodGet, "/config", nil, "")
	if err != nil {
		return nil, err
	}
	var res configResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "payment: decode config response")
	}
	if len(res.Fees) == 0 {
		return nil, goerrors.New("payment: provider config carried no fee schedule", goerrors.CategoryExternal)
	}
	c.feeTiers = res.Fees
	return c.feeTiers, nil
}

// RequestFaucet tops up the operating wallet from the sandbox faucet. The
// production network has no faucet, so the call refuses outside sandbox mode.
func (c *MNEEClient) RequestFaucet(ctx context.Context) error {
	if !c.sandbox {
		return goerrors.New("payment: faucet is only available in sandbox mode", goerrors.CategoryOperation)
	}
	payload, err := json.Marshal(map[string]string{"address": c.address})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "payment: encode faucet payload")
	}
	_, err = c.do(ctx, http.MethodPost, "/faucet", payload, "")
	return err
}

func (c *MNEEClient) do(ctx context.Context, method string, path string, body []byte, idempotencyKey string) ([]byte, error) {
	if c == nil || c.transport == nil {
		return nil, goerrors.New("payment: mnee client is not configured", goerrors.CategoryInternal)
	}

	headers := map[string]string{
		"Accept": "application/json",
	}
	if c.apiKey != "" {
		headers["Authorization"] = "Bearer " + c.apiKey
	}
	if len(body) > 0 {
		headers["Content-Type"] = "application/json"
	}

	res, err := c.transport.Do(ctx, core.TransportRequest{
		Method:               method,
		URL:                  c.baseURL + path,
		Headers:              headers,
		Body:                 body,
		Idempotency:          idempotencyKey,
		Timeout:              c.timeout,
		MaxResponseBodyBytes: defaultResponseLimit,
	})
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= http.StatusBadRequest {
		return nil, mneeStatusError(method, path, res)
	}
	return res.Body, nil
}

type mneeErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// mneeStatusError maps provider failures onto error categories and text
// codes the payment retry loop inspects: auth failures, rejected addresses
// and empty wallets must not burn retry attempts.
func mneeStatusError(method string, path string, res core.TransportResponse) error {
	var detail mneeErrorBody
	if len(res.Body) > 0 {
		_ = json.Unmarshal(res.Body, &detail)
	}

	message := fmt.Sprintf("payment: mnee %s %s returned %d", method, path, res.StatusCode)
	if strings.TrimSpace(detail.Message) != "" {
		message = fmt.Sprintf("%s: %s", message, detail.Message)
	}

	category := goerrors.CategoryExternal
	textCode := ""
	code := strings.TrimSpace(strings.ToUpper(detail.Code))
	lowered := strings.ToLower(detail.Message)
	switch {
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		category = goerrors.CategoryAuth
		textCode = TextCodeUnauthorized
	case code == TextCodeInsufficientFunds || strings.Contains(lowered, "insufficient funds"):
		category = goerrors.CategoryOperation
		textCode = TextCodeInsufficientFunds
	case code == TextCodeInvalidAddress || strings.Contains(lowered, "invalid address"):
		category = goerrors.CategoryValidation
		textCode = TextCodeInvalidAddress
	case res.StatusCode == http.StatusTooManyRequests:
		category = goerrors.CategoryRateLimit
	case res.StatusCode >= http.StatusBadRequest && res.StatusCode < http.StatusInternalServerError:
		category = goerrors.CategoryBadInput
	}

	err := goerrors.New(message, category).WithCode(res.StatusCode)
	if textCode != "" {
		err.WithTextCode(textCode)
	}
	return err
}

var _ core.PaymentProvider = (*MNEEClient)(nil)
