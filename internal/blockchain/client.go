// Package blockchain reads exchange order state over Ethereum-style JSON-RPC.
package blockchain

import (
	"context"      // Call deadlines
	"encoding/hex" // ABI hex encoding
	"errors"       // Sentinel errors
	"fmt"          // Error wrapping
	"math/big"     // uint256 values
	"strings"      // Hex prefixes
	"sync/atomic"  // Request ids
	"time"         // Client timeout

	"clube_beneficios/internal/domain" // Order statuses

	"github.com/go-resty/resty/v2" // HTTP client
	"golang.org/x/crypto/sha3"     // Keccak-256 selectors
)

// getOrderStatus(uint256) selector, first four bytes of its keccak-256 hash
var orderStatusSelector = Selector("getOrderStatus(uint256)")

// On-chain status codes
var statusByCode = map[uint64]domain.ExchangeOrderStatus{
	0: domain.OrderOpen,
	1: domain.OrderFilled,
	2: domain.OrderCancelled,
	3: domain.OrderExpired,
}

// RPCError is an error object returned by the node
type RPCError struct {
	Code    int    `json:"code"`    // JSON-RPC error code
	Message string `json:"message"` // Node supplied reason
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	ID     uint64    `json:"id"`
	Result string    `json:"result"`
	Error  *RPCError `json:"error"`
}

// Client is a minimal JSON-RPC client
type Client struct {
	http   *resty.Client // Node endpoint
	nextID atomic.Uint64 // JSON-RPC request id
}

// NewClient creates a client for the node at url
func NewClient(url string, timeout time.Duration) *Client {
	http := resty.New().
		SetBaseURL(url).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond)
	return &Client{http: http}
}

func (c *Client) call(ctx context.Context, method string, params ...any) (string, error) {
	if params == nil {
		params = []any{}
	}
	req := rpcRequest{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method, Params: params}
	var out rpcResponse
	resp, err := c.http.R().SetContext(ctx).SetBody(req).SetResult(&out).Post("")
	if err != nil {
		return "", fmt.Errorf("%s: %w", method, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("%s: http status %d", method, resp.StatusCode())
	}
	if out.Error != nil {
		return "", out.Error
	}
	return out.Result, nil
}

// BlockNumber returns the latest block height
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	res, err := c.call(ctx, "eth_blockNumber")
	if err != nil {
		return 0, err
	}
	n, err := decodeQuantity(res)
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() {
		return 0, errors.New("block number overflows uint64")
	}
	return n.Uint64(), nil
}

// OrderStatus reads the status of an order from the exchange contract
func (c *Client) OrderStatus(ctx context.Context, contract string, orderID uint64) (domain.ExchangeOrderStatus, error) {
	call := map[string]string{
		"to":   contract,
		"data": EncodeCall(orderStatusSelector, new(big.Int).SetUint64(orderID)),
	}
	res, err := c.call(ctx, "eth_call", call, "latest")
	if err != nil {
		return "", err
	}
	code, err := decodeQuantity(res)
	if err != nil {
		return "", err
	}
	if !code.IsUint64() {
		return "", fmt.Errorf("unknown order status %s", code.String())
	}
	status, ok := statusByCode[code.Uint64()]
	if !ok {
		return "", fmt.Errorf("unknown order status %d", code.Uint64())
	}
	return status, nil
}

// Selector returns the 0x-prefixed 4-byte function selector of a signature
func Selector(signature string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	return "0x" + hex.EncodeToString(h.Sum(nil)[:4])
}

// EncodeCall appends each argument as a 32-byte big-endian word to the selector
func EncodeCall(selector string, args ...*big.Int) string {
	var b strings.Builder
	b.WriteString(selector)
	for _, a := range args {
		word := make([]byte, 32)
		a.FillBytes(word)
		b.WriteString(hex.EncodeToString(word))
	}
	return b.String()
}

// decodeQuantity parses a 0x-prefixed hex quantity or 32-byte word
func decodeQuantity(s string) (*big.Int, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return nil, errors.New("empty rpc result")
	}
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex quantity %q", s)
	}
	return n, nil
}
