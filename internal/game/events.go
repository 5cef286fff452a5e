package game

import (
	"time"
)

type EventType string

const (
	EventRoundWaiting     EventType = "round_waiting"
	EventRoundStarted     EventType = "round_started"
	EventMultiplierUpdate EventType = "multiplier_update"
	EventRoundCrashed     EventType = "round_crashed"
	EventBetPlaced        EventType = "bet_placed"
	EventBetCashedOut     EventType = "bet_cashed_out"
)

// Event is the tagged variant delivered to subscribers. Data holds one of the
// *Event payload structs below, matching Type.
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type RoundWaitingEvent struct {
	RoundID        string `json:"round_id"`
	WaitTimeMs     int64  `json:"wait_time_ms"`
	HashCommitment string `json:"hash_commitment"`
}

type RoundStartedEvent struct {
	RoundID   string    `json:"round_id"`
	StartTime time.Time `json:"start_time"`
}

type MultiplierUpdateEvent struct {
	RoundID    string  `json:"round_id"`
	Multiplier float64 `json:"multiplier"`
	ElapsedMs  int64   `json:"elapsed_ms"`
}

type RoundCrashedEvent struct {
	RoundID         string    `json:"round_id"`
	CrashMultiplier float64   `json:"crash_multiplier"`
	EndTime         time.Time `json:"end_time"`
	ServerSeed      string    `json:"server_seed"` // Revealed for verification
	ClientSeed      string    `json:"client_seed"`
	Nonce           int       `json:"nonce"`
}

type BetPlacedEvent struct {
	RoundID  string  `json:"round_id"`
	UserID   string  `json:"user_id"`
	Amount   float64 `json:"amount"`
	BetIndex int     `json:"bet_index"`
}

type BetCashedOutEvent struct {
	RoundID    string  `json:"round_id"`
	UserID     string  `json:"user_id"`
	BetIndex   int     `json:"bet_index"`
	Multiplier float64 `json:"multiplier"`
	Payout     float64 `json:"payout"`
}

// Emitter receives engine events. Emit must not block: round progression is
// independent of delivery.
type Emitter interface {
	Emit(event Event)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(event Event)

func (f EmitterFunc) Emit(event Event) {
	f(event)
}

// MultiEmitter fans events out to several subscribers in order.
type MultiEmitter []Emitter

func (m MultiEmitter) Emit(event Event) {
	for _, e := range m {
		e.Emit(event)
	}
}
