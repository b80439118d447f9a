package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/lox/notakto/internal/apierr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL, server.Client(), testLogger())
	require.NoError(t, err)
	return client
}

const stateBody = `{
	"success": true,
	"gameOver": false,
	"gameState": {
		"boards": [["X","","","","","","","",""]],
		"currentPlayer": 2,
		"gameHistory": [[["","","","","","","","",""]], [["X","","","","","","","",""]]]
	}
}`

func TestNewClientRequiresBaseURL(t *testing.T) {
	for _, base := range []string{"  ", "example.com", "/api", "http://", "://bad"} {
		_, err := NewClient(base, nil, testLogger())
		require.Error(t, err, base)
		assert.Equal(t, apierr.KindConfiguration, apierr.KindOf(err), base)
	}

	_, err := NewClient("https://notakto.example.com/", nil, testLogger())
	require.NoError(t, err)
}

func TestSubmitMoveSuccess(t *testing.T) {
	var got moveRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/game/move", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, stateBody)
	})

	resp, err := client.SubmitMove(context.Background(), "tok-1", "sess-1", 0, 4)
	require.NoError(t, err)
	assert.Equal(t, moveRequest{SessionID: "sess-1", BoardIndex: 0, CellIndex: 4}, got)
	assert.Equal(t, 2, resp.GameState.CurrentPlayer)
	assert.Len(t, resp.GameState.GameHistory, 2)
	assert.False(t, resp.GameOver)
}

func TestStructuredFailureSurfacedVerbatim(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"success":false,"error":"Board is already dead"}`)
	})

	_, err := client.SubmitMove(context.Background(), "tok", "sess", 1, 1)
	require.Error(t, err)
	assert.Equal(t, apierr.KindApplication, apierr.KindOf(err))
	assert.Equal(t, "Board is already dead", err.(*apierr.Error).Message)
}

func TestFailureBodyOnSuccessStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":false,"error":""}`)
	})

	_, err := client.Undo(context.Background(), "tok", "sess")
	require.Error(t, err)
	assert.Equal(t, apierr.KindApplication, apierr.KindOf(err))
	assert.Equal(t, "Failed to undo move", err.(*apierr.Error).Message)
}

func TestUnstructuredStatusIsGeneric(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"success":false,"error":"stack trace here"}`)
	})

	_, err := client.CreateGame(context.Background(), "tok", Config{NumberOfBoards: 3, BoardSize: 3, Difficulty: 1})
	require.Error(t, err)
	assert.Equal(t, apierr.KindApplication, apierr.KindOf(err))
	assert.Equal(t, "Unable to create game", err.(*apierr.Error).Message)
}

func TestSchemaMismatch(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>oops</html>`},
		{"missing gameState", `{"success":true}`},
		{"wrong currentPlayer type", `{"success":true,"gameState":{"boards":[],"currentPlayer":"1","gameHistory":[]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := client.Skip(context.Background(), "tok", "sess")
			require.Error(t, err)
			assert.Equal(t, apierr.KindSchemaMismatch, apierr.KindOf(err))
		})
	}
}

func TestUnexpectedShape(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"gameState":{}}`)
	})

	_, err := client.Reset(context.Background(), "tok", "sess")
	assert.Equal(t, apierr.KindUnexpectedShape, apierr.KindOf(err))
}

func TestErrorWithoutSuccessFlagIsApplication(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"error":"Session not found"}`)
	})

	_, err := client.Reset(context.Background(), "tok", "sess")
	require.Error(t, err)
	assert.Equal(t, apierr.KindApplication, apierr.KindOf(err))
	assert.Equal(t, "Session not found", err.(*apierr.Error).Message)
}

func TestTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client, err := NewClient(server.URL, server.Client(), testLogger())
	require.NoError(t, err)
	server.Close()

	_, err = client.UpdateConfig(context.Background(), "tok", "sess", Config{NumberOfBoards: 5, BoardSize: 4, Difficulty: 3})
	require.Error(t, err)
	assert.Equal(t, apierr.KindTransport, apierr.KindOf(err))
	assert.NotEmpty(t, err.(*apierr.Error).Message)
}

func TestCreateGameAndRegister(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/create-game":
			var cfg Config
			require.NoError(t, json.NewDecoder(r.Body).Decode(&cfg))
			assert.Equal(t, Config{NumberOfBoards: 2, BoardSize: 3, Difficulty: 2}, cfg)
			_, _ = io.WriteString(w, `{"sessionId":"s-9","boards":[[],[]],"numberOfBoards":2,"boardSize":3,"difficulty":2}`)
		case "/api/game/create":
			var req registerSessionRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "s-9", req.SessionID)
			_, _ = io.WriteString(w, `{"success":true}`)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	created, err := client.CreateGame(context.Background(), "tok", Config{NumberOfBoards: 2, BoardSize: 3, Difficulty: 2})
	require.NoError(t, err)
	assert.Equal(t, "s-9", created.SessionID)
	assert.Equal(t, 2, created.NumberOfBoards)

	err = client.RegisterSession(context.Background(), "tok", created.SessionID, created.Boards, created.Config)
	require.NoError(t, err)
}

func TestSignIn(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sign-in", r.URL.Path)
		_, _ = io.WriteString(w, `{"name":"Ada","email":"ada@example.com","profile_pic":"https://x/p.png","new_account":true}`)
	})

	profile, err := client.SignIn(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "Ada", profile.Name)
	assert.True(t, profile.NewAccount)
}

func TestPaymentEndpoints(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/api/create-payment":
			_, _ = io.WriteString(w, `{"success":true,"paymentUrl":"https://pay/x","chargeId":"ch_1"}`)
		case "/api/order-status/ch_1":
			assert.Equal(t, http.MethodGet, r.Method)
			_, _ = io.WriteString(w, `{"status":"paid"}`)
		}
	})

	payment, err := client.CreatePayment(context.Background(), PaymentRequest{Amount: "1.00", Currency: "INR"})
	require.NoError(t, err)
	assert.Equal(t, "ch_1", payment.ChargeID)

	status, err := client.OrderStatus(context.Background(), "ch_1")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, status)
}
