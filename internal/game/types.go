package game

import (
	"time"
)

// Round status values. Exactly one round is in a non-crashed status at any time.
const (
	StatusWaiting = "WAITING"
	StatusFlying  = "FLYING"
	StatusCrashed = "CRASHED"
)

type Round struct {
	RoundID           string    `json:"round_id"`
	ServerSeed        string    `json:"-"` // Never expose until reveal
	HashCommitment    string    `json:"hash_commitment"`
	ClientSeed        string    `json:"client_seed"`
	CrashMultiplier   float64   `json:"-"` // Hidden until crash
	CurrentMultiplier float64   `json:"current_multiplier"`
	Status            string    `json:"status"`
	StartTime         time.Time `json:"start_time,omitempty"` // Flight start, not waiting start
	EndTime           time.Time `json:"end_time,omitempty"`
	Nonce             int       `json:"nonce"`
	Bets              map[string][]*Bet `json:"-"`
}

type Bet struct {
	UserID     string    `json:"user_id"`
	Amount     float64   `json:"amount"`
	CashedOut  bool      `json:"cashed_out"`
	Multiplier float64   `json:"multiplier,omitempty"` // Set only on cashout
	PlacedAt   time.Time `json:"placed_at"`
}

// RoundSnapshot is the externally visible view of the active round.
// Hidden fields (server seed, crash multiplier) are excluded by construction.
type RoundSnapshot struct {
	RoundID           string    `json:"round_id"`
	HashCommitment    string    `json:"hash_commitment"`
	ClientSeed        string    `json:"client_seed"`
	CurrentMultiplier float64   `json:"current_multiplier"`
	Status            string    `json:"status"`
	StartTime         time.Time `json:"start_time,omitempty"`
	EndTime           time.Time `json:"end_time,omitempty"`
	Nonce             int       `json:"nonce"`
}

type BetRequest struct {
	UserID       string  `json:"user_id"`
	Amount       float64 `json:"amount"`
	ResponseChan chan BetResponse `json:"-"`
}

type BetResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	RoundID  string `json:"round_id,omitempty"`
	BetIndex int    `json:"bet_index"`
}

type CashoutRequest struct {
	UserID       string `json:"user_id"`
	BetIndex     int    `json:"bet_index"`
	ResponseChan chan CashoutResponse `json:"-"`
}

type CashoutResponse struct {
	Success    bool    `json:"success"`
	Message    string  `json:"message"`
	RoundID    string  `json:"round_id,omitempty"`
	BetIndex   int     `json:"bet_index"`
	Multiplier float64 `json:"multiplier,omitempty"`
	Payout     float64 `json:"payout,omitempty"`
}

func (r *Round) snapshot() *RoundSnapshot {
	return &RoundSnapshot{
		RoundID:           r.RoundID,
		HashCommitment:    r.HashCommitment,
		ClientSeed:        r.ClientSeed,
		CurrentMultiplier: r.CurrentMultiplier,
		Status:            r.Status,
		StartTime:         r.StartTime,
		EndTime:           r.EndTime,
		Nonce:             r.Nonce,
	}
}
