package game

import (
	"sync"
	"testing"
	"time"
)

// recordingEmitter captures engine events for assertions.
type recordingEmitter struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingEmitter) Emit(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingEmitter) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recordingEmitter) eventsOfType(t EventType) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func newTestEngine(cfg Config) (*Engine, *recordingEmitter) {
	rec := &recordingEmitter{}
	e := NewEngine(cfg, rec)
	return e, rec
}

func testRound(status string, crash float64) *Round {
	return &Round{
		RoundID:           "R-test-1",
		ServerSeed:        "server_seed",
		HashCommitment:    HashCommitment("server_seed"),
		ClientSeed:        "client_seed",
		CrashMultiplier:   crash,
		CurrentMultiplier: 1.00,
		Status:            status,
		Nonce:             1,
		Bets:              make(map[string][]*Bet),
	}
}

func placeBet(e *Engine, userID string, amount float64) BetResponse {
	ch := make(chan BetResponse, 1)
	e.processBet(BetRequest{UserID: userID, Amount: amount, ResponseChan: ch})
	return <-ch
}

func cashout(e *Engine, userID string, betIndex int) CashoutResponse {
	ch := make(chan CashoutResponse, 1)
	e.processCashout(CashoutRequest{UserID: userID, BetIndex: betIndex, ResponseChan: ch})
	return <-ch
}

func TestMultiplierAt(t *testing.T) {
	tests := []struct {
		name      string
		crash     float64
		elapsed   time.Duration
		maxFlight time.Duration
		want      float64
	}{
		{"takeoff", 2.00, 0, 20 * time.Second, 1.00},
		{"halfway to 2x", 2.00, 10 * time.Second, 20 * time.Second, 1.50},
		{"full flight reaches crash point", 2.00, 20 * time.Second, 20 * time.Second, 2.00},
		{"halfway to 3.24x", 3.24, 10 * time.Second, 20 * time.Second, 2.12},
		{"progress past 1.0 is not clamped", 2.00, 25 * time.Second, 20 * time.Second, 2.25},
		{"quarter of max", 5.00, 5 * time.Second, 20 * time.Second, 2.00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := multiplierAt(tt.crash, tt.elapsed, tt.maxFlight)
			if got != tt.want {
				t.Errorf("multiplierAt(%v, %v, %v) = %v, want %v", tt.crash, tt.elapsed, tt.maxFlight, got, tt.want)
			}
		})
	}
}

func TestEngine_PlaceBet_Waiting(t *testing.T) {
	e, rec := newTestEngine(DefaultConfig())
	e.currentRound = testRound(StatusWaiting, 2.00)

	first := placeBet(e, "user1", 10)
	if !first.Success {
		t.Fatalf("first bet rejected: %s", first.Message)
	}
	if first.BetIndex != 0 {
		t.Errorf("first bet index = %d, want 0", first.BetIndex)
	}

	second := placeBet(e, "user1", 25)
	if !second.Success {
		t.Fatalf("second bet rejected: %s", second.Message)
	}
	if second.BetIndex != 1 {
		t.Errorf("second bet index = %d, want 1", second.BetIndex)
	}

	// Third bet in the same round must fail at the 2-bet cap.
	third := placeBet(e, "user1", 5)
	if third.Success {
		t.Error("third bet accepted, want rejection at bet cap")
	}

	if got := len(e.currentRound.Bets["user1"]); got != 2 {
		t.Errorf("ledger holds %d bets, want 2", got)
	}
	if got := len(rec.eventsOfType(EventBetPlaced)); got != 2 {
		t.Errorf("bet_placed events = %d, want 2 (failed bet must emit nothing)", got)
	}
}

func TestEngine_PlaceBet_WrongPhase(t *testing.T) {
	for _, status := range []string{StatusFlying, StatusCrashed} {
		t.Run(status, func(t *testing.T) {
			e, rec := newTestEngine(DefaultConfig())
			e.currentRound = testRound(status, 2.00)

			resp := placeBet(e, "user1", 10)
			if resp.Success {
				t.Errorf("bet accepted in %s phase", status)
			}
			if len(e.currentRound.Bets) != 0 {
				t.Error("ledger mutated by rejected bet")
			}
			if len(rec.Events()) != 0 {
				t.Error("rejected bet emitted events")
			}
		})
	}
}

func TestEngine_PlaceBet_NoRound(t *testing.T) {
	e, _ := newTestEngine(DefaultConfig())

	resp := placeBet(e, "user1", 10)
	if resp.Success {
		t.Error("bet accepted with no active round")
	}
}

func TestEngine_PlaceBet_AmountBounds(t *testing.T) {
	e, _ := newTestEngine(DefaultConfig())
	e.currentRound = testRound(StatusWaiting, 2.00)

	if resp := placeBet(e, "user1", 0.5); resp.Success {
		t.Error("bet below minimum accepted")
	}
	if resp := placeBet(e, "user1", 20000); resp.Success {
		t.Error("bet above maximum accepted")
	}
}

func TestEngine_Cashout_Success(t *testing.T) {
	e, rec := newTestEngine(DefaultConfig())
	round := testRound(StatusFlying, 2.00)
	round.CurrentMultiplier = 1.50
	round.Bets["user1"] = []*Bet{{UserID: "user1", Amount: 10}}
	e.currentRound = round

	resp := cashout(e, "user1", 0)
	if !resp.Success {
		t.Fatalf("cashout rejected: %s", resp.Message)
	}
	if resp.Multiplier != 1.50 {
		t.Errorf("multiplier = %v, want 1.50", resp.Multiplier)
	}
	if resp.Payout != 15.00 {
		t.Errorf("payout = %v, want 15.00 (amount * multiplier)", resp.Payout)
	}

	bet := round.Bets["user1"][0]
	if !bet.CashedOut || bet.Multiplier != 1.50 {
		t.Errorf("bet not marked cashed out at 1.50: %+v", bet)
	}

	// Cashing out the same bet again must fail with no side effects.
	again := cashout(e, "user1", 0)
	if again.Success {
		t.Error("second cashout of the same bet accepted")
	}
	if got := len(rec.eventsOfType(EventBetCashedOut)); got != 1 {
		t.Errorf("bet_cashed_out events = %d, want 1", got)
	}
}

func TestEngine_Cashout_Failures(t *testing.T) {
	e, _ := newTestEngine(DefaultConfig())

	t.Run("no round", func(t *testing.T) {
		if resp := cashout(e, "user1", 0); resp.Success {
			t.Error("cashout accepted with no round")
		}
	})

	t.Run("wrong phase", func(t *testing.T) {
		round := testRound(StatusWaiting, 2.00)
		round.Bets["user1"] = []*Bet{{UserID: "user1", Amount: 10}}
		e.currentRound = round
		if resp := cashout(e, "user1", 0); resp.Success {
			t.Error("cashout accepted during waiting phase")
		}
	})

	t.Run("unknown bet", func(t *testing.T) {
		e.currentRound = testRound(StatusFlying, 2.00)
		if resp := cashout(e, "user1", 0); resp.Success {
			t.Error("cashout accepted for nonexistent bet")
		}
	})

	t.Run("bad index", func(t *testing.T) {
		round := testRound(StatusFlying, 2.00)
		round.Bets["user1"] = []*Bet{{UserID: "user1", Amount: 10}}
		e.currentRound = round
		if resp := cashout(e, "user1", 1); resp.Success {
			t.Error("cashout accepted for out-of-range index")
		}
		if resp := cashout(e, "user1", -1); resp.Success {
			t.Error("cashout accepted for negative index")
		}
	})
}

func TestEngine_Tick(t *testing.T) {
	cfg := DefaultConfig() // 100ms ticks, 20s max flight
	e, rec := newTestEngine(cfg)

	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	round := testRound(StatusFlying, 2.00)
	round.StartTime = start
	e.currentRound = round

	// Halfway through max flight: 1 + (2.00-1)*0.5 = 1.50
	e.now = func() time.Time { return start.Add(10 * time.Second) }
	if crashed := e.tick(); crashed {
		t.Fatal("tick() reported crash at 1.50x, crash point is 2.00")
	}
	if round.CurrentMultiplier != 1.50 {
		t.Errorf("CurrentMultiplier = %v, want 1.50", round.CurrentMultiplier)
	}

	updates := rec.eventsOfType(EventMultiplierUpdate)
	if len(updates) != 1 {
		t.Fatalf("multiplier_update events = %d, want 1", len(updates))
	}
	update := updates[0].Data.(MultiplierUpdateEvent)
	if update.Multiplier != 1.50 || update.ElapsedMs != 10000 {
		t.Errorf("update = %+v, want multiplier 1.50 at 10000ms", update)
	}

	// Full flight: the multiplier reaches the crash point exactly.
	e.now = func() time.Time { return start.Add(20 * time.Second) }
	if crashed := e.tick(); !crashed {
		t.Fatal("tick() did not crash at the crash point")
	}
	if round.Status != StatusCrashed {
		t.Errorf("status = %s, want %s", round.Status, StatusCrashed)
	}
	if round.CurrentMultiplier != 2.00 {
		t.Errorf("CurrentMultiplier = %v, want exactly 2.00 at crash", round.CurrentMultiplier)
	}
	if round.EndTime.IsZero() {
		t.Error("EndTime not set at crash")
	}

	crashedEvents := rec.eventsOfType(EventRoundCrashed)
	if len(crashedEvents) != 1 {
		t.Fatalf("round_crashed events = %d, want 1", len(crashedEvents))
	}
	reveal := crashedEvents[0].Data.(RoundCrashedEvent)
	if reveal.ServerSeed != "server_seed" {
		t.Error("crash event must reveal the server seed")
	}
	if reveal.CrashMultiplier != 2.00 {
		t.Errorf("crash event multiplier = %v, want 2.00", reveal.CrashMultiplier)
	}

	results := e.RecentResults()
	if len(results) != 1 || results[0] != 2.00 {
		t.Errorf("RecentResults() = %v, want [2.00]", results)
	}
}

func TestEngine_Tick_MonotonicMultiplier(t *testing.T) {
	cfg := DefaultConfig()
	e, rec := newTestEngine(cfg)

	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	round := testRound(StatusFlying, 3.24)
	round.StartTime = start
	e.currentRound = round

	elapsed := time.Duration(0)
	for {
		elapsed += cfg.TickInterval
		now := start.Add(elapsed)
		e.now = func() time.Time { return now }
		if e.tick() {
			break
		}
	}

	prev := 0.0
	for _, ev := range rec.eventsOfType(EventMultiplierUpdate) {
		update := ev.Data.(MultiplierUpdateEvent)
		if update.Multiplier < prev {
			t.Fatalf("multiplier decreased: %v after %v", update.Multiplier, prev)
		}
		if update.Multiplier >= 3.24 {
			t.Fatalf("update emitted at %v, at or above crash point", update.Multiplier)
		}
		prev = update.Multiplier
	}
}

func TestEngine_CrashForfeitsBets(t *testing.T) {
	e, rec := newTestEngine(DefaultConfig())

	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	round := testRound(StatusFlying, 3.24)
	round.StartTime = start
	round.Bets["user1"] = []*Bet{{UserID: "user1", Amount: 20}}
	e.currentRound = round

	e.now = func() time.Time { return start.Add(25 * time.Second) }
	if !e.tick() {
		t.Fatal("tick() past max flight did not crash")
	}

	bet := round.Bets["user1"][0]
	if bet.CashedOut {
		t.Error("forfeited bet marked cashed out")
	}
	if len(rec.eventsOfType(EventBetCashedOut)) != 0 {
		t.Error("payout event emitted for forfeited bet")
	}
	if results := e.RecentResults(); len(results) != 1 || results[0] != 3.24 {
		t.Errorf("RecentResults() = %v, want [3.24]", results)
	}

	// Crashed phase rejects the late cashout.
	if resp := cashout(e, "user1", 0); resp.Success {
		t.Error("cashout accepted after crash")
	}
}

func TestEngine_Accessors(t *testing.T) {
	e, _ := newTestEngine(DefaultConfig())

	if e.CurrentState() != nil {
		t.Error("CurrentState() before first round, want nil")
	}
	if bets := e.UserBets("user1"); len(bets) != 0 {
		t.Errorf("UserBets() before first round = %v, want empty", bets)
	}

	round := testRound(StatusWaiting, 2.00)
	round.Bets["user1"] = []*Bet{{UserID: "user1", Amount: 10}}
	e.currentRound = round

	state := e.CurrentState()
	if state == nil || state.RoundID != "R-test-1" || state.Status != StatusWaiting {
		t.Fatalf("CurrentState() = %+v", state)
	}

	bets := e.UserBets("user1")
	if len(bets) != 1 {
		t.Fatalf("UserBets() length = %d, want 1", len(bets))
	}
	bets[0].Amount = 9999
	if round.Bets["user1"][0].Amount != 10 {
		t.Error("UserBets() must return copies")
	}
}

func TestEngine_RoundLifecycle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WaitDuration = 100 * time.Millisecond
	cfg.TickInterval = 10 * time.Millisecond
	cfg.MaxFlightDuration = 400 * time.Millisecond

	e, rec := newTestEngine(cfg)
	e.crashPoint = func(serverSeed, clientSeed string, nonce int) float64 { return 2.00 }

	e.Start()
	defer e.Stop()

	// Wait for the betting window to open, then bet and later cash out.
	deadline := time.Now().Add(2 * time.Second)
	for len(rec.eventsOfType(EventRoundWaiting)) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no round_waiting event within deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}

	betResp := e.PlaceBet(BetRequest{UserID: "user1", Amount: 10})
	if !betResp.Success {
		t.Fatalf("live bet rejected: %s", betResp.Message)
	}

	for len(rec.eventsOfType(EventRoundStarted)) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no round_started event within deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(3 * cfg.TickInterval)

	cashResp := e.Cashout(CashoutRequest{UserID: "user1", BetIndex: 0})
	if !cashResp.Success {
		t.Fatalf("live cashout rejected: %s", cashResp.Message)
	}
	if diff := cashResp.Payout - cashResp.Multiplier*10; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("payout %v != amount * multiplier %v", cashResp.Payout, cashResp.Multiplier*10)
	}

	for len(rec.eventsOfType(EventRoundCrashed)) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no round_crashed event within deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Event order for the first round: waiting -> started -> updates -> crashed.
	firstRoundID := rec.eventsOfType(EventRoundWaiting)[0].Data.(RoundWaitingEvent).RoundID
	var sequence []EventType
	for _, ev := range rec.Events() {
		switch data := ev.Data.(type) {
		case RoundWaitingEvent:
			if data.RoundID == firstRoundID {
				sequence = append(sequence, ev.Type)
			}
		case RoundStartedEvent:
			if data.RoundID == firstRoundID {
				sequence = append(sequence, ev.Type)
			}
		case MultiplierUpdateEvent:
			if data.RoundID == firstRoundID {
				sequence = append(sequence, ev.Type)
			}
		case RoundCrashedEvent:
			if data.RoundID == firstRoundID {
				sequence = append(sequence, ev.Type)
			}
		}
	}

	if sequence[0] != EventRoundWaiting {
		t.Errorf("first event = %s, want %s", sequence[0], EventRoundWaiting)
	}
	if sequence[1] != EventRoundStarted {
		t.Errorf("second event = %s, want %s", sequence[1], EventRoundStarted)
	}
	if sequence[len(sequence)-1] != EventRoundCrashed {
		t.Errorf("last event = %s, want %s", sequence[len(sequence)-1], EventRoundCrashed)
	}
	for _, typ := range sequence[2 : len(sequence)-1] {
		if typ != EventMultiplierUpdate {
			t.Errorf("mid-flight event = %s, want %s", typ, EventMultiplierUpdate)
		}
	}

	if len(e.RecentResults()) == 0 {
		t.Error("crash not recorded in recent results")
	}

	waiting := rec.eventsOfType(EventRoundWaiting)[0].Data.(RoundWaitingEvent)
	if waiting.WaitTimeMs != cfg.WaitDuration.Milliseconds() {
		t.Errorf("wait_time_ms = %d, want %d", waiting.WaitTimeMs, cfg.WaitDuration.Milliseconds())
	}
	if waiting.HashCommitment == "" {
		t.Error("round_waiting event missing hash commitment")
	}
}

func TestEngine_BetsRejectedWhileCrashed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WaitDuration = 200 * time.Millisecond
	cfg.TickInterval = 5 * time.Millisecond
	cfg.MaxFlightDuration = 20 * time.Millisecond

	e, rec := newTestEngine(cfg)
	e.crashPoint = func(serverSeed, clientSeed string, nonce int) float64 { return 1.50 }

	e.Start()
	defer e.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for len(rec.eventsOfType(EventRoundCrashed)) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no crash within deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Round is now in the crashed display pause.
	resp := e.PlaceBet(BetRequest{UserID: "user1", Amount: 10})
	if resp.Success {
		t.Error("bet accepted during crashed phase")
	}
}
