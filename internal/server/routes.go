package server

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/gofiber/contrib/websocket"

	"crashgame/internal/game"
	"crashgame/internal/wallet"
)

func (s *FiberServer) RegisterFiberRoutes() {
	s.App.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Accept,Authorization,Content-Type",
		AllowCredentials: false, // credentials require explicit origins
		MaxAge:           300,
	}))

	s.App.Get("/health", s.healthHandler)

	api := s.App.Group("/api/v1")

	api.Get("/game/state", s.getGameStateHandler)
	api.Get("/game/results", s.getResultsHandler)
	api.Get("/game/history", s.getHistoryHandler)
	api.Post("/game/bet", s.placeBetHandler)
	api.Post("/game/cashout", s.cashoutHandler)
	api.Post("/game/verify", s.verifyHandler)
	api.Get("/game/bets/:userId", s.getUserBetsHandler)
	api.Get("/user/:userId/balance", s.getUserBalanceHandler)
	api.Post("/user/:userId/balance", s.setUserBalanceHandler)

	s.App.Get("/ws", websocket.New(s.gameWebSocketHandler))
}

func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	health := fiber.Map{
		"database": s.db.Health(),
		"cache":    s.cache.Health(),
		"game": fiber.Map{
			"status":            "running",
			"connected_clients": s.hub.GetClientCount(),
		},
	}
	return c.JSON(health)
}

// getGameStateHandler returns the active round snapshot. Hidden fields are
// excluded by the snapshot type itself.
func (s *FiberServer) getGameStateHandler(c *fiber.Ctx) error {
	state := s.engine.CurrentState()
	if state == nil {
		return c.Status(404).JSON(fiber.Map{
			"error": "No active game round",
		})
	}
	return c.JSON(state)
}

// getResultsHandler returns the in-memory recent-results strip, newest first.
func (s *FiberServer) getResultsHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"results": s.engine.RecentResults(),
	})
}

// getHistoryHandler returns archived rounds with revealed seeds from postgres.
func (s *FiberServer) getHistoryHandler(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	records, err := s.roundStore.RecentRounds(c.Context(), limit)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to load round history",
		})
	}
	return c.JSON(fiber.Map{
		"rounds": records,
	})
}

// placeBetHandler debits the stake, then hands the bet to the engine. A
// rejected bet gets the stake refunded.
func (s *FiberServer) placeBetHandler(c *fiber.Ctx) error {
	var req game.BetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.UserID == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "User ID is required",
		})
	}
	if req.Amount <= 0 {
		return c.Status(400).JSON(fiber.Map{
			"error": "Amount must be positive",
		})
	}

	resp, balance, err := s.placeBet(c.Context(), req)
	if err == wallet.ErrInsufficientFunds {
		return c.Status(400).JSON(fiber.Map{
			"error":   "Insufficient balance",
			"balance": balance,
		})
	}
	if err != nil {
		return c.Status(500).JSON(fiber.Map{
			"error": "Transaction failed",
		})
	}

	status := 200
	if !resp.Success {
		status = 400
	}
	return c.Status(status).JSON(fiber.Map{
		"success":   resp.Success,
		"message":   resp.Message,
		"round_id":  resp.RoundID,
		"bet_index": resp.BetIndex,
		"balance":   balance,
	})
}

// placeBet runs the debit-place-refund sequence shared by REST and WS.
func (s *FiberServer) placeBet(ctx context.Context, req game.BetRequest) (game.BetResponse, float64, error) {
	balance, err := s.wallet.Debit(ctx, req.UserID, req.Amount)
	if err != nil {
		return game.BetResponse{}, balance, err
	}

	resp := s.engine.PlaceBet(req)
	if !resp.Success {
		if balance, err = s.wallet.Credit(ctx, req.UserID, req.Amount); err != nil {
			return resp, balance, err
		}
	}
	return resp, balance, nil
}

// cashoutHandler asks the engine to cash out, then credits the payout.
func (s *FiberServer) cashoutHandler(c *fiber.Ctx) error {
	var req game.CashoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.UserID == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "User ID is required",
		})
	}

	resp, balance, err := s.cashout(c.Context(), req)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to credit payout",
		})
	}

	status := 200
	if !resp.Success {
		status = 400
	}
	return c.Status(status).JSON(fiber.Map{
		"success":    resp.Success,
		"message":    resp.Message,
		"round_id":   resp.RoundID,
		"bet_index":  resp.BetIndex,
		"multiplier": resp.Multiplier,
		"payout":     resp.Payout,
		"balance":    balance,
	})
}

func (s *FiberServer) cashout(ctx context.Context, req game.CashoutRequest) (game.CashoutResponse, float64, error) {
	resp := s.engine.Cashout(req)
	if !resp.Success {
		return resp, 0, nil
	}

	balance, err := s.wallet.Credit(ctx, req.UserID, resp.Payout)
	return resp, balance, err
}

// verifyHandler recomputes a crashed round's outcome from the revealed seeds.
func (s *FiberServer) verifyHandler(c *fiber.Ctx) error {
	var req struct {
		ServerSeed      string  `json:"server_seed"`
		ClientSeed      string  `json:"client_seed"`
		Nonce           int     `json:"nonce"`
		HashCommitment  string  `json:"hash_commitment"`
		CrashMultiplier float64 `json:"crash_multiplier"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.ServerSeed == "" || req.ClientSeed == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "Server seed and client seed are required",
		})
	}

	cfg := s.gameCfg
	commitmentOK := req.HashCommitment == "" || game.VerifyCommitment(req.ServerSeed, req.HashCommitment)
	crashPoint := game.CrashPoint(req.ServerSeed, req.ClientSeed, req.Nonce, cfg.HouseEdge, cfg.MinMultiplier, cfg.MaxMultiplier)
	crashOK := game.VerifyCrashPoint(req.ServerSeed, req.ClientSeed, req.Nonce, cfg.HouseEdge, cfg.MinMultiplier, cfg.MaxMultiplier, req.CrashMultiplier)

	return c.JSON(fiber.Map{
		"valid":            commitmentOK && crashOK,
		"commitment_valid": commitmentOK,
		"crash_multiplier": crashPoint,
	})
}

func (s *FiberServer) getUserBetsHandler(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if userID == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "User ID is required",
		})
	}
	return c.JSON(fiber.Map{
		"user_id": userID,
		"bets":    s.engine.UserBets(userID),
	})
}

func (s *FiberServer) getUserBalanceHandler(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if userID == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "User ID is required",
		})
	}

	balance, err := s.wallet.Balance(c.Context(), userID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to read balance",
		})
	}
	return c.JSON(fiber.Map{
		"user_id": userID,
		"balance": balance,
	})
}

// setUserBalanceHandler sets a user's balance (for testing/admin)
func (s *FiberServer) setUserBalanceHandler(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if userID == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "User ID is required",
		})
	}

	var body struct {
		Balance float64 `json:"balance"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := s.wallet.SetBalance(c.Context(), userID, body.Balance); err != nil {
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to set balance",
		})
	}

	return c.JSON(fiber.Map{
		"user_id": userID,
		"balance": body.Balance,
		"message": "Balance updated successfully",
	})
}
