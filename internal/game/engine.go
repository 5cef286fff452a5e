package game

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"
)

const (
	betQueueSize   = 1000
	betTimeout     = 5 * time.Second
	cashoutTimeout = 500 * time.Millisecond
)

// Engine runs the perpetual crash-round cycle: WAITING -> FLYING -> CRASHED ->
// WAITING. A single goroutine owns all round state; PlaceBet and Cashout are
// delivered to it as messages and awaited synchronously, so a cashout can
// never race the crash transition.
type Engine struct {
	cfg     Config
	emitter Emitter
	history *History

	// Injectable for deterministic tests.
	now        func() time.Time
	crashPoint func(serverSeed, clientSeed string, nonce int) float64

	stateMutex     sync.RWMutex
	currentRound   *Round
	betChannel     chan BetRequest
	cashoutChannel chan CashoutRequest
	stopChan       chan struct{}
	nonce          int
}

func NewEngine(cfg Config, emitter Emitter) *Engine {
	e := &Engine{
		cfg:            cfg,
		emitter:        emitter,
		history:        NewHistory(cfg.HistorySize),
		now:            time.Now,
		betChannel:     make(chan BetRequest, betQueueSize),
		cashoutChannel: make(chan CashoutRequest, betQueueSize),
		stopChan:       make(chan struct{}),
	}
	e.crashPoint = func(serverSeed, clientSeed string, nonce int) float64 {
		return CrashPoint(serverSeed, clientSeed, nonce, cfg.HouseEdge, cfg.MinMultiplier, cfg.MaxMultiplier)
	}
	return e
}

func (e *Engine) Start() {
	go e.gameLoop()
}

func (e *Engine) Stop() {
	close(e.stopChan)
}

// CurrentState returns a snapshot of the active round without the hidden
// fields, or nil before the first round exists.
func (e *Engine) CurrentState() *RoundSnapshot {
	e.stateMutex.RLock()
	defer e.stateMutex.RUnlock()
	if e.currentRound == nil {
		return nil
	}
	return e.currentRound.snapshot()
}

// RecentResults returns the crash multipliers of recent rounds, newest first.
func (e *Engine) RecentResults() []float64 {
	return e.history.Results()
}

// UserBets returns copies of the user's bets in the active round.
func (e *Engine) UserBets(userID string) []Bet {
	e.stateMutex.RLock()
	defer e.stateMutex.RUnlock()

	if e.currentRound == nil {
		return []Bet{}
	}
	bets := e.currentRound.Bets[userID]
	out := make([]Bet, 0, len(bets))
	for _, b := range bets {
		out = append(out, *b)
	}
	return out
}

// PlaceBet submits a bet for the active round's betting window. The caller is
// responsible for debiting the stake beforehand and reversing it on failure.
func (e *Engine) PlaceBet(req BetRequest) BetResponse {
	respChan := make(chan BetResponse, 1)
	req.ResponseChan = respChan

	select {
	case e.betChannel <- req:
		select {
		case resp := <-respChan:
			return resp
		case <-time.After(betTimeout):
			return BetResponse{Success: false, Message: "Bet timeout"}
		}
	default:
		return BetResponse{Success: false, Message: "Bet queue full"}
	}
}

// Cashout converts the referenced bet into a payout at the live multiplier.
func (e *Engine) Cashout(req CashoutRequest) CashoutResponse {
	respChan := make(chan CashoutResponse, 1)
	req.ResponseChan = respChan

	select {
	case e.cashoutChannel <- req:
		select {
		case resp := <-respChan:
			return resp
		case <-time.After(cashoutTimeout):
			return CashoutResponse{Success: false, Message: "Cashout timeout"}
		}
	default:
		return CashoutResponse{Success: false, Message: "Cashout queue full"}
	}
}

func (e *Engine) gameLoop() {
	for {
		select {
		case <-e.stopChan:
			log.Println("[ENGINE] Game loop stopped")
			return
		default:
			if !e.runRound() {
				log.Println("[ENGINE] Game loop stopped")
				return
			}
		}
	}
}

// runRound drives one full round. Returns false when the engine was stopped
// mid-round.
func (e *Engine) runRound() bool {
	e.nonce++

	serverSeed := GenerateSeed()
	commitment := HashCommitment(serverSeed)
	clientSeed := GenerateSeed() // In production, aggregate from player inputs
	crashPoint := e.crashPoint(serverSeed, clientSeed, e.nonce)

	if crashPoint < e.cfg.MinMultiplier || crashPoint > e.cfg.MaxMultiplier {
		log.Printf("[ENGINE] Crash point %.4f out of [%.2f, %.2f], clamping", crashPoint, e.cfg.MinMultiplier, e.cfg.MaxMultiplier)
		crashPoint = math.Min(math.Max(crashPoint, e.cfg.MinMultiplier), e.cfg.MaxMultiplier)
	}

	roundID := fmt.Sprintf("R%d-%d", e.now().Unix(), e.nonce)

	e.stateMutex.Lock()
	e.currentRound = &Round{
		RoundID:           roundID,
		ServerSeed:        serverSeed,
		HashCommitment:    commitment,
		ClientSeed:        clientSeed,
		CrashMultiplier:   crashPoint,
		CurrentMultiplier: e.cfg.MinMultiplier,
		Status:            StatusWaiting,
		Nonce:             e.nonce,
		Bets:              make(map[string][]*Bet),
	}
	e.stateMutex.Unlock()

	log.Printf("[ENGINE] Round %s waiting, commitment %s...", roundID, commitment[:16])

	e.emitter.Emit(Event{Type: EventRoundWaiting, Data: RoundWaitingEvent{
		RoundID:        roundID,
		WaitTimeMs:     e.cfg.WaitDuration.Milliseconds(),
		HashCommitment: commitment,
	}})

	if !e.waitingPhase() {
		return false
	}
	if !e.flyingPhase() {
		return false
	}
	return e.crashedPhase()
}

// waitingPhase accepts bets until the betting window closes, then moves the
// round to FLYING.
func (e *Engine) waitingPhase() bool {
	timer := time.NewTimer(e.cfg.WaitDuration)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			e.stateMutex.Lock()
			e.currentRound.Status = StatusFlying
			e.currentRound.StartTime = e.now()
			roundID := e.currentRound.RoundID
			startTime := e.currentRound.StartTime
			e.stateMutex.Unlock()

			e.emitter.Emit(Event{Type: EventRoundStarted, Data: RoundStartedEvent{
				RoundID:   roundID,
				StartTime: startTime,
			}})
			return true

		case bet := <-e.betChannel:
			e.processBet(bet)
		case cashout := <-e.cashoutChannel:
			e.processCashout(cashout)
		case <-e.stopChan:
			return false
		}
	}
}

// flyingPhase ticks the multiplier until it reaches the hidden crash point.
func (e *Engine) flyingPhase() bool {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if e.tick() {
				return true
			}
		case bet := <-e.betChannel:
			e.processBet(bet)
		case cashout := <-e.cashoutChannel:
			e.processCashout(cashout)
		case <-e.stopChan:
			return false
		}
	}
}

// tick advances the live multiplier one step. Returns true once the round has
// crashed.
func (e *Engine) tick() bool {
	e.stateMutex.Lock()

	now := e.now()
	round := e.currentRound
	elapsed := now.Sub(round.StartTime)
	mult := multiplierAt(round.CrashMultiplier, elapsed, e.cfg.MaxFlightDuration)

	if elapsed >= e.cfg.MaxFlightDuration && mult < round.CrashMultiplier {
		// Flight must terminate at the crash point no matter what the
		// clock did.
		log.Printf("[ENGINE] Round %s exceeded max flight at %.2fx, forcing crash", round.RoundID, mult)
		mult = round.CrashMultiplier
	}

	if mult >= round.CrashMultiplier {
		round.Status = StatusCrashed
		round.CurrentMultiplier = round.CrashMultiplier
		round.EndTime = now

		crashed := RoundCrashedEvent{
			RoundID:         round.RoundID,
			CrashMultiplier: round.CrashMultiplier,
			EndTime:         round.EndTime,
			ServerSeed:      round.ServerSeed,
			ClientSeed:      round.ClientSeed,
			Nonce:           round.Nonce,
		}
		e.history.Push(round.CrashMultiplier)
		e.logForfeits(round)
		e.stateMutex.Unlock()

		e.emitter.Emit(Event{Type: EventRoundCrashed, Data: crashed})
		log.Printf("[ENGINE] Round %s crashed at %.2fx", crashed.RoundID, crashed.CrashMultiplier)
		return true
	}

	round.CurrentMultiplier = mult
	update := MultiplierUpdateEvent{
		RoundID:    round.RoundID,
		Multiplier: mult,
		ElapsedMs:  elapsed.Milliseconds(),
	}
	e.stateMutex.Unlock()

	e.emitter.Emit(Event{Type: EventMultiplierUpdate, Data: update})
	return false
}

// crashedPhase holds the crashed round on display for the inter-round pause,
// rejecting any commands that arrive meanwhile.
func (e *Engine) crashedPhase() bool {
	timer := time.NewTimer(e.cfg.WaitDuration)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			return true
		case bet := <-e.betChannel:
			e.processBet(bet)
		case cashout := <-e.cashoutChannel:
			e.processCashout(cashout)
		case <-e.stopChan:
			return false
		}
	}
}

func (e *Engine) processBet(req BetRequest) {
	resp := BetResponse{BetIndex: -1}
	defer func() {
		if req.ResponseChan != nil {
			req.ResponseChan <- resp
		}
	}()

	if req.Amount < e.cfg.MinBetAmount || req.Amount > e.cfg.MaxBetAmount {
		resp.Message = fmt.Sprintf("Bet must be between %.2f and %.2f", e.cfg.MinBetAmount, e.cfg.MaxBetAmount)
		return
	}

	e.stateMutex.Lock()
	defer e.stateMutex.Unlock()

	round := e.currentRound
	if round == nil || round.Status != StatusWaiting {
		resp.Message = "Betting is closed"
		return
	}

	if len(round.Bets[req.UserID]) >= e.cfg.MaxBetsPerUser {
		resp.Message = fmt.Sprintf("Bet limit of %d per round reached", e.cfg.MaxBetsPerUser)
		return
	}

	bet := &Bet{
		UserID:   req.UserID,
		Amount:   req.Amount,
		PlacedAt: e.now(),
	}
	round.Bets[req.UserID] = append(round.Bets[req.UserID], bet)
	betIndex := len(round.Bets[req.UserID]) - 1

	resp.Success = true
	resp.Message = "Bet placed successfully"
	resp.RoundID = round.RoundID
	resp.BetIndex = betIndex

	e.emitter.Emit(Event{Type: EventBetPlaced, Data: BetPlacedEvent{
		RoundID:  round.RoundID,
		UserID:   req.UserID,
		Amount:   req.Amount,
		BetIndex: betIndex,
	}})

	log.Printf("[BET] User %s placed %.2f (index %d)", req.UserID, req.Amount, betIndex)
}

func (e *Engine) processCashout(req CashoutRequest) {
	resp := CashoutResponse{BetIndex: req.BetIndex}
	defer func() {
		if req.ResponseChan != nil {
			req.ResponseChan <- resp
		}
	}()

	e.stateMutex.Lock()
	defer e.stateMutex.Unlock()

	round := e.currentRound
	if round == nil || round.Status != StatusFlying {
		resp.Message = "Cannot cash out now"
		return
	}

	bets := round.Bets[req.UserID]
	if req.BetIndex < 0 || req.BetIndex >= len(bets) {
		resp.Message = "Bet not found"
		return
	}

	bet := bets[req.BetIndex]
	if bet.CashedOut {
		resp.Message = "Already cashed out"
		return
	}

	mult := round.CurrentMultiplier
	payout := math.Round(bet.Amount*mult*100) / 100

	bet.CashedOut = true
	bet.Multiplier = mult

	resp.Success = true
	resp.Message = fmt.Sprintf("Cashed out at %.2fx", mult)
	resp.RoundID = round.RoundID
	resp.Multiplier = mult
	resp.Payout = payout

	e.emitter.Emit(Event{Type: EventBetCashedOut, Data: BetCashedOutEvent{
		RoundID:    round.RoundID,
		UserID:     req.UserID,
		BetIndex:   req.BetIndex,
		Multiplier: mult,
		Payout:     payout,
	}})

	log.Printf("[CASHOUT] User %s cashed out at %.2fx (payout %.2f)", req.UserID, mult, payout)
}

// logForfeits is called under stateMutex at the crash transition. Un-cashed
// bets stay CashedOut=false permanently; no payout is issued for them.
func (e *Engine) logForfeits(round *Round) {
	for userID, bets := range round.Bets {
		for i, bet := range bets {
			if !bet.CashedOut {
				log.Printf("[LOSS] User %s lost %.2f (index %d)", userID, bet.Amount, i)
			}
		}
	}
}

// multiplierAt is the display curve: linear from 1.00 at takeoff to the crash
// point at maxFlight. Progress is deliberately not clamped; it only exceeds
// 1.0 transiently on the tick that crosses the crash threshold.
func multiplierAt(crashMultiplier float64, elapsed, maxFlight time.Duration) float64 {
	progress := float64(elapsed) / float64(maxFlight)
	mult := 1.0 + (crashMultiplier-1.0)*progress
	return math.Round(mult*100) / 100
}
