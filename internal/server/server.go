package server

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"crashgame/internal/cache"
	"crashgame/internal/database"
	"crashgame/internal/game"
	"crashgame/internal/recorder"
	"crashgame/internal/wallet"
)

type FiberServer struct {
	*fiber.App

	db         database.Service
	cache      cache.Service
	wallet     *wallet.Service
	roundStore *database.RoundStore
	engine     *game.Engine
	hub        *game.Hub
	gameCfg    game.Config
}

func New() *FiberServer {
	db := database.New()

	redisService := cache.New()
	if redisService == nil {
		log.Fatal("[SERVER] Redis is required for wallet functionality")
	}

	gameCfg := game.ConfigFromEnv()

	hub := game.NewHub()
	roundStore := database.NewRoundStore(db)
	rec := recorder.New(roundStore, redisService.GetClient(), gameCfg.HistorySize)

	// Hub gets events first so clients see the crash before the archive
	// write even starts; both are fire-and-forget from the engine's side.
	engine := game.NewEngine(gameCfg, game.MultiEmitter{hub, rec})

	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:  "crashgame",
			AppName:       "crashgame",
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  10 * time.Second,
			IdleTimeout:   120 * time.Second,
			StrictRouting: false,
		}),

		db:         db,
		cache:      redisService,
		wallet:     wallet.New(redisService.GetClient()),
		roundStore: roundStore,
		engine:     engine,
		hub:        hub,
		gameCfg:    gameCfg,
	}

	server.App.Use(recover.New())
	server.App.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
	}))

	go hub.Run()
	engine.Start()

	log.Println("[SERVER] Round engine started")

	return server
}

// Shutdown stops the round engine and closes connections. The in-flight round
// is abandoned unresolved; nothing is persisted for it.
func (s *FiberServer) Shutdown() error {
	log.Println("[SERVER] Shutting down...")

	if s.engine != nil {
		s.engine.Stop()
	}
	if s.cache != nil {
		s.cache.Close()
	}
	if s.db != nil {
		s.db.Close()
	}

	return nil
}
