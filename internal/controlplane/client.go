package controlplane

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"syscall"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/icnet/internal/config"
	"github.com/imamik/icnet/internal/util/retry"
)

var _ ControlPlane = (*Client)(nil)

// Client speaks the server's JSON-over-HTTP configuration protocol.
type Client struct {
	baseURL    string
	httpClient *http.Client
	startup    retry.Policy
	log        logr.Logger
}

// NewClient creates a client for the config endpoint at host:port.
// The startup policy bounds connection-refused retries during instance
// creation while the server's listening socket may not be open yet.
func NewClient(baseURL string, startup retry.Policy, log logr.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		startup:    startup,
		log:        log,
	}
}

type createResponse struct {
	InstanceID                 uint64 `json:"instance_id"`
	DefaultEffectiveCanisterID string `json:"default_effective_canister_id"`
	GatewayPort                uint16 `json:"gateway_port"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// CreateInstance provisions a new instance. Connection-refused errors are
// retried under the startup policy; once any response (or a non-refused
// transport error) has been observed the call is no longer retried.
func (c *Client) CreateInstance(ctx context.Context, spec InstanceSpec) (*Instance, error) {
	var out createResponse
	err := c.startup.Run(ctx, func() error {
		err := c.post(ctx, "/instances", spec, &out)
		if err == nil {
			return nil
		}
		if isConnectionRefused(err) {
			c.log.V(1).Info("config port not accepting connections yet", "error", err.Error())
			return err
		}
		return retry.Fatal(err)
	})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	return &Instance{
		ID:                         InstanceID(out.InstanceID),
		DefaultEffectiveCanisterID: out.DefaultEffectiveCanisterID,
		GatewayPort:                out.GatewayPort,
	}, nil
}

// InstallCanister installs one canister set on the instance.
func (c *Client) InstallCanister(ctx context.Context, id InstanceID, kind config.CanisterKind) error {
	body := struct {
		Kind config.CanisterKind `json:"kind"`
	}{Kind: kind}
	if err := c.post(ctx, fmt.Sprintf("/instances/%d/canisters", id), body, nil); err != nil {
		return fmt.Errorf("install %s canisters: %w", kind, err)
	}
	return nil
}

// SetBalances funds a principal with the given cycles and ICP balances.
func (c *Client) SetBalances(ctx context.Context, id InstanceID, principal string, cycles, icpE8s uint64) error {
	body := struct {
		Principal string `json:"principal"`
		Cycles    uint64 `json:"cycles"`
		IcpE8s    uint64 `json:"icp_e8s"`
	}{Principal: principal, Cycles: cycles, IcpE8s: icpE8s}
	if err := c.post(ctx, fmt.Sprintf("/instances/%d/balances", id), body, nil); err != nil {
		return fmt.Errorf("set balances for %s: %w", principal, err)
	}
	return nil
}

// SetArtificialDelay enables auto progress with the given update-call
// latency. The wire field is a pointer so an explicit zero (no injection)
// stays distinguishable from "not set" (server default).
func (c *Client) SetArtificialDelay(ctx context.Context, id InstanceID, delay *time.Duration) error {
	body := struct {
		ArtificialDelayMs *uint64 `json:"artificial_delay_ms"`
	}{}
	if delay != nil {
		ms := uint64(delay.Milliseconds())
		body.ArtificialDelayMs = &ms
	}
	if err := c.post(ctx, fmt.Sprintf("/instances/%d/auto_progress", id), body, nil); err != nil {
		return fmt.Errorf("configure auto progress: %w", err)
	}
	return nil
}

// RegisterBitcoindAdapter wires one bitcoin regtest adapter address.
func (c *Client) RegisterBitcoindAdapter(ctx context.Context, id InstanceID, addr string) error {
	return c.registerAdapter(ctx, id, "bitcoind", addr)
}

// RegisterDogecoindAdapter wires one dogecoin regtest adapter address.
func (c *Client) RegisterDogecoindAdapter(ctx context.Context, id InstanceID, addr string) error {
	return c.registerAdapter(ctx, id, "dogecoind", addr)
}

func (c *Client) registerAdapter(ctx context.Context, id InstanceID, adapter, addr string) error {
	body := struct {
		Addr string `json:"addr"`
	}{Addr: addr}
	if err := c.post(ctx, fmt.Sprintf("/instances/%d/adapters/%s", id, adapter), body, nil); err != nil {
		return fmt.Errorf("register %s adapter %s: %w", adapter, addr, err)
	}
	return nil
}

// RootKey fetches the instance's root public key as DER bytes.
func (c *Client) RootKey(ctx context.Context, id InstanceID) ([]byte, error) {
	var out struct {
		RootKeyDer string `json:"root_key_der"`
	}
	if err := c.get(ctx, fmt.Sprintf("/instances/%d/root_key", id), &out); err != nil {
		return nil, fmt.Errorf("fetch root key: %w", err)
	}
	der, err := base64.StdEncoding.DecodeString(out.RootKeyDer)
	if err != nil {
		return nil, fmt.Errorf("decode root key: %w", err)
	}
	return der, nil
}

// RequestGracefulStop asks the instance to flush and preserve its state.
func (c *Client) RequestGracefulStop(ctx context.Context, id InstanceID) error {
	if err := c.post(ctx, fmt.Sprintf("/instances/%d/stop", id), struct{}{}, nil); err != nil {
		return fmt.Errorf("graceful stop: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	c.log.V(2).Info("control-plane request", "method", req.Method, "url", req.URL.String())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		rej := &RejectionError{StatusCode: resp.StatusCode}
		var msg errorResponse
		if json.Unmarshal(data, &msg) == nil {
			rej.Message = msg.Message
		}
		return rej
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func isConnectionRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}
