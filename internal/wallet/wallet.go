// Package wallet is the ledger collaborator of the round engine: it debits
// stakes before a bet is handed to the engine and credits payouts after a
// cashout. The engine itself never touches balances.
package wallet

import (
	"context"
	"errors"
	"log"

	"github.com/redis/go-redis/v9"
)

const balanceKeyPrefix = "crash:balance:"

var ErrInsufficientFunds = errors.New("insufficient funds")

type Service struct {
	client *redis.Client
}

func New(client *redis.Client) *Service {
	return &Service{client: client}
}

func (s *Service) Balance(ctx context.Context, userID string) (float64, error) {
	balance, err := s.client.Get(ctx, balanceKeyPrefix+userID).Float64()
	if err == redis.Nil {
		return 0, nil
	}
	return balance, err
}

// Debit atomically removes a stake from the user's balance. The decrement is
// rolled back if it would drive the balance negative.
func (s *Service) Debit(ctx context.Context, userID string, amount float64) (float64, error) {
	key := balanceKeyPrefix + userID

	newBalance, err := s.client.IncrByFloat(ctx, key, -amount).Result()
	if err != nil {
		return 0, err
	}
	if newBalance < 0 {
		if _, rbErr := s.client.IncrByFloat(ctx, key, amount).Result(); rbErr != nil {
			log.Printf("[WALLET] Rollback failed for user %s: %v", userID, rbErr)
		}
		return newBalance + amount, ErrInsufficientFunds
	}
	return newBalance, nil
}

// Credit adds a payout (or a refund for a rejected bet) to the balance.
func (s *Service) Credit(ctx context.Context, userID string, amount float64) (float64, error) {
	return s.client.IncrByFloat(ctx, balanceKeyPrefix+userID, amount).Result()
}

// SetBalance overwrites the balance outright. Admin/testing use only.
func (s *Service) SetBalance(ctx context.Context, userID string, amount float64) error {
	return s.client.Set(ctx, balanceKeyPrefix+userID, amount, 0).Err()
}
