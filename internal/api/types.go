package api

// Board is the wire form of one playing surface: one entry per cell,
// "" for empty and "X" for occupied. The client never inspects it.
type Board []string

// GameState is the authoritative view returned by every state-changing call.
type GameState struct {
	Boards        []Board   `json:"boards"`
	CurrentPlayer int       `json:"currentPlayer"`
	GameHistory   [][]Board `json:"gameHistory"`
	Winner        string    `json:"winner,omitempty"`
}

// StateResponse is the success payload of move, reset, undo, skip and
// update-configuration.
type StateResponse struct {
	GameState GameState `json:"gameState"`
	GameOver  bool      `json:"gameOver"`
}

// Config is the configuration triple of a session.
type Config struct {
	NumberOfBoards int `json:"numberOfBoards"`
	BoardSize      int `json:"boardSize"`
	Difficulty     int `json:"difficulty"`
}

// CreateGameResponse is the success payload of create-game.
type CreateGameResponse struct {
	SessionID string  `json:"sessionId"`
	Boards    []Board `json:"boards"`
	Config
}

// Profile is the identity profile returned by sign-in.
type Profile struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	ProfilePic string `json:"profile_pic"`
	NewAccount bool   `json:"new_account"`
}

// PaymentRequest starts a coin purchase.
type PaymentRequest struct {
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	CustomerID   string `json:"customerId"`
	CustomerName string `json:"customerName"`
	OrderID      string `json:"orderId"`
}

// PaymentResponse carries the provider page and the charge to watch.
type PaymentResponse struct {
	PaymentURL string `json:"paymentUrl"`
	ChargeID   string `json:"chargeId"`
}

// ChargeStatus is a payment provider status string.
type ChargeStatus string

const (
	StatusPending   ChargeStatus = "pending"
	StatusPaid      ChargeStatus = "paid"
	StatusConfirmed ChargeStatus = "confirmed"
	StatusExpired   ChargeStatus = "expired"
	StatusCanceled  ChargeStatus = "canceled"
)

// OrderStatus is the payload of the order-status endpoint.
type OrderStatus struct {
	Status ChargeStatus `json:"status"`
}

type createGameRequest struct {
	Config
}

type registerSessionRequest struct {
	SessionID string  `json:"sessionId"`
	Boards    []Board `json:"boards"`
	Config
}

type moveRequest struct {
	SessionID  string `json:"sessionId"`
	BoardIndex int    `json:"boardIndex"`
	CellIndex  int    `json:"cellIndex"`
}

type sessionRequest struct {
	SessionID string `json:"sessionId"`
}

type configRequest struct {
	SessionID string `json:"sessionId"`
	Config
}
