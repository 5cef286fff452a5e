package game

import (
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

// Config holds the round engine tunables. Zero values are not usable; start
// from DefaultConfig or ConfigFromEnv.
type Config struct {
	WaitDuration      time.Duration // betting window and pause after crash
	TickInterval      time.Duration
	MaxFlightDuration time.Duration // flight length at which the multiplier reaches the crash point
	HouseEdge         float64
	MaxBetsPerUser    int
	HistorySize       int
	MinBetAmount      float64
	MaxBetAmount      float64
	MinMultiplier     float64
	MaxMultiplier     float64
}

func DefaultConfig() Config {
	return Config{
		WaitDuration:      5 * time.Second,
		TickInterval:      100 * time.Millisecond,
		MaxFlightDuration: 20 * time.Second,
		HouseEdge:         0.01,
		MaxBetsPerUser:    2,
		HistorySize:       20,
		MinBetAmount:      1.0,
		MaxBetAmount:      10000.0,
		MinMultiplier:     1.00,
		MaxMultiplier:     100.00,
	}
}

// ConfigFromEnv reads overrides for the contract tunables from the environment.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.WaitDuration = getEnvAsDuration("GAME_WAIT_DURATION_MS", cfg.WaitDuration)
	cfg.TickInterval = getEnvAsDuration("GAME_TICK_INTERVAL_MS", cfg.TickInterval)
	cfg.MaxFlightDuration = getEnvAsDuration("GAME_MAX_FLIGHT_MS", cfg.MaxFlightDuration)
	cfg.HouseEdge = getEnvAsFloat("GAME_HOUSE_EDGE", cfg.HouseEdge)
	cfg.MaxBetsPerUser = getEnvAsInt("GAME_MAX_BETS_PER_USER", cfg.MaxBetsPerUser)
	cfg.HistorySize = getEnvAsInt("GAME_HISTORY_SIZE", cfg.HistorySize)
	cfg.MinBetAmount = getEnvAsFloat("GAME_MIN_BET", cfg.MinBetAmount)
	cfg.MaxBetAmount = getEnvAsFloat("GAME_MAX_BET", cfg.MaxBetAmount)
	return cfg
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if floatVal, err := strconv.ParseFloat(val, 64); err == nil {
			return floatVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if ms, err := strconv.Atoi(val); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultVal
}
