// Package api is the game backend client. Every call serialises a request,
// attaches the bearer credential, performs exactly one HTTP round trip and
// returns either a typed payload or an *apierr.Error. Nothing is retried.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/lox/notakto/internal/apierr"
)

const maxBodyBytes = 1 << 20

// Client talks to the remote game backend.
type Client struct {
	baseURL   string
	http      *http.Client
	validator *Validator
	logger    *log.Logger
}

// NewClient creates a backend client. An empty base URL is a configuration
// error and is reported before any network attempt can happen.
func NewClient(baseURL string, httpClient *http.Client, logger *log.Logger) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, apierr.New(apierr.KindConfiguration, "", "API configuration error")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, &apierr.Error{Kind: apierr.KindConfiguration, Message: "invalid API URL", Err: err}
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, apierr.New(apierr.KindConfiguration, "", "invalid API URL: scheme and host are required")
	}

	validator, err := NewValidator()
	if err != nil {
		return nil, err
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		baseURL:   baseURL,
		http:      httpClient,
		validator: validator,
		logger:    logger.WithPrefix("api"),
	}, nil
}

// endpoint describes how one remote capability is called and how its
// responses are interpreted.
type endpoint struct {
	op       string
	method   string
	path     string
	schema   string
	fallback string // message for transport failures without one
	failure  string // generic message for non-success statuses

	// structured is set when the server returns {success:false, error}
	// bodies on failure statuses, which are then surfaced verbatim.
	structured bool
	// enveloped is set when success bodies carry the success discriminator.
	enveloped bool
}

var (
	epSignIn = endpoint{
		op: "sign-in", method: http.MethodPost, path: "/sign-in", schema: schemaSignIn,
		fallback: "Sign-in failed. Please try again.", failure: "Sign-in failed. Please try again.",
	}
	epCreateGame = endpoint{
		op: "create-game", method: http.MethodPost, path: "/create-game", schema: schemaCreateGame,
		fallback: "Failed to create game", failure: "Unable to create game",
	}
	epRegisterSession = endpoint{
		op: "register-session", method: http.MethodPost, path: "/api/game/create", schema: schemaRegisterSession,
		fallback: "Failed to create game", failure: "Unable to register game",
		structured: true, enveloped: true,
	}
	epMove = endpoint{
		op: "submit-move", method: http.MethodPost, path: "/api/game/move", schema: schemaGameState,
		fallback: "Failed to make move", failure: "Invalid move",
		structured: true, enveloped: true,
	}
	epReset = endpoint{
		op: "reset", method: http.MethodPost, path: "/api/game/reset", schema: schemaGameState,
		fallback: "Failed to reset game", failure: "Failed to reset game",
		structured: true, enveloped: true,
	}
	epUndo = endpoint{
		op: "undo", method: http.MethodPost, path: "/api/game/undo", schema: schemaGameState,
		fallback: "Failed to undo move", failure: "Failed to undo move",
		structured: true, enveloped: true,
	}
	epSkip = endpoint{
		op: "skip", method: http.MethodPost, path: "/api/game/skip", schema: schemaGameState,
		fallback: "Failed to skip move", failure: "Failed to skip move",
		structured: true, enveloped: true,
	}
	epUpdateConfig = endpoint{
		op: "update-configuration", method: http.MethodPost, path: "/api/game/config", schema: schemaGameState,
		fallback: "Failed to update configuration", failure: "Failed to update config",
		structured: true, enveloped: true,
	}
	epCreatePayment = endpoint{
		op: "create-payment", method: http.MethodPost, path: "/api/create-payment", schema: schemaCreatePayment,
		fallback: "Payment processing failed", failure: "Could not initiate payment",
		enveloped: true,
	}
	epOrderStatus = endpoint{
		op: "order-status", method: http.MethodGet, path: "/api/order-status/", schema: schemaOrderStatus,
		fallback: "Unable to verify payment status", failure: "Unable to verify payment status",
	}
)

// SignIn exchanges a bearer credential for the account profile.
func (c *Client) SignIn(ctx context.Context, token string) (*Profile, error) {
	var out Profile
	if err := c.do(ctx, epSignIn, epSignIn.path, token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateGame asks the server for a fresh game.
func (c *Client) CreateGame(ctx context.Context, token string, cfg Config) (*CreateGameResponse, error) {
	var out CreateGameResponse
	if err := c.do(ctx, epCreateGame, epCreateGame.path, token, createGameRequest{Config: cfg}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RegisterSession registers a created game as the caller's active session.
func (c *Client) RegisterSession(ctx context.Context, token, sessionID string, boards []Board, cfg Config) error {
	req := registerSessionRequest{SessionID: sessionID, Boards: boards, Config: cfg}
	return c.do(ctx, epRegisterSession, epRegisterSession.path, token, req, nil)
}

// SubmitMove plays a cell on a board.
func (c *Client) SubmitMove(ctx context.Context, token, sessionID string, boardIndex, cellIndex int) (*StateResponse, error) {
	req := moveRequest{SessionID: sessionID, BoardIndex: boardIndex, CellIndex: cellIndex}
	return c.state(ctx, epMove, token, req)
}

// Reset restarts the session's game.
func (c *Client) Reset(ctx context.Context, token, sessionID string) (*StateResponse, error) {
	return c.state(ctx, epReset, token, sessionRequest{SessionID: sessionID})
}

// Undo reverts the last move pair.
func (c *Client) Undo(ctx context.Context, token, sessionID string) (*StateResponse, error) {
	return c.state(ctx, epUndo, token, sessionRequest{SessionID: sessionID})
}

// Skip passes the player's turn.
func (c *Client) Skip(ctx context.Context, token, sessionID string) (*StateResponse, error) {
	return c.state(ctx, epSkip, token, sessionRequest{SessionID: sessionID})
}

// UpdateConfig submits the full configuration triple for a session.
func (c *Client) UpdateConfig(ctx context.Context, token, sessionID string, cfg Config) (*StateResponse, error) {
	return c.state(ctx, epUpdateConfig, token, configRequest{SessionID: sessionID, Config: cfg})
}

// CreatePayment starts a coin purchase with the payment provider.
func (c *Client) CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error) {
	var out PaymentResponse
	if err := c.do(ctx, epCreatePayment, epCreatePayment.path, "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// OrderStatus fetches the current status of a charge.
func (c *Client) OrderStatus(ctx context.Context, chargeID string) (ChargeStatus, error) {
	var out OrderStatus
	if err := c.do(ctx, epOrderStatus, epOrderStatus.path+url.PathEscape(chargeID), "", nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

func (c *Client) state(ctx context.Context, ep endpoint, token string, body any) (*StateResponse, error) {
	var out StateResponse
	if err := c.do(ctx, ep, ep.path, token, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// envelope is the discriminator shared by success and failure bodies.
type envelope struct {
	Success *bool           `json:"success"`
	Error   json.RawMessage `json:"error"`
}

func (e envelope) message() (string, bool) {
	if len(e.Error) == 0 {
		return "", false
	}
	var msg string
	if err := json.Unmarshal(e.Error, &msg); err != nil {
		// present but not a string: still a recognisable error shape
		return "", true
	}
	return msg, true
}

func (c *Client) do(ctx context.Context, ep endpoint, path, token string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &apierr.Error{Kind: apierr.KindTransport, Op: ep.op, Message: ep.fallback, Err: fmt.Errorf("marshal request: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, ep.method, c.baseURL+path, reader)
	if err != nil {
		return apierr.Transport(ep.op, err, ep.fallback)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("Request failed", "op", ep.op, "request_id", requestID, "error", err)
		return apierr.Transport(ep.op, err, ep.fallback)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return apierr.Transport(ep.op, err, ep.fallback)
	}

	c.logger.Debug("Response received", "op", ep.op, "request_id", requestID,
		"status", resp.StatusCode, "duration", time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.failureStatus(ep, resp.StatusCode, raw)
	}

	if !json.Valid(raw) {
		return apierr.SchemaMismatch(ep.op, fmt.Errorf("response is not JSON"))
	}

	if ep.enveloped {
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return apierr.SchemaMismatch(ep.op, err)
		}
		msg, hasError := env.message()
		switch {
		case env.Success != nil && !*env.Success:
			return apierr.Application(ep.op, msg, ep.failure)
		case env.Success == nil && hasError:
			return apierr.Application(ep.op, msg, ep.failure)
		case env.Success == nil:
			return apierr.New(apierr.KindUnexpectedShape, ep.op, "Unexpected response from server")
		}
	}

	if err := c.validator.Validate(ep.schema, raw); err != nil {
		c.logger.Warn("Response failed validation", "op", ep.op, "request_id", requestID, "error", err)
		return apierr.SchemaMismatch(ep.op, err)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apierr.SchemaMismatch(ep.op, err)
	}
	return nil
}

func (c *Client) failureStatus(ep endpoint, status int, raw []byte) error {
	c.logger.Debug("Non-success status", "op", ep.op, "status", status)
	if ep.structured {
		var env envelope
		if err := json.Unmarshal(raw, &env); err == nil && env.Success != nil && !*env.Success {
			msg, _ := env.message()
			return apierr.Application(ep.op, msg, ep.failure)
		}
	}
	return &apierr.Error{
		Kind:    apierr.KindApplication,
		Op:      ep.op,
		Message: ep.failure,
		Err:     fmt.Errorf("HTTP %d", status),
	}
}
