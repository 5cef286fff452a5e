package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RoundRecord is the archived form of a crashed round: everything a player
// needs to verify the outcome after the seed reveal.
type RoundRecord struct {
	RoundID         string    `json:"round_id"`
	ServerSeed      string    `json:"server_seed"`
	ClientSeed      string    `json:"client_seed"`
	HashCommitment  string    `json:"hash_commitment"`
	Nonce           int       `json:"nonce"`
	CrashMultiplier float64   `json:"crash_multiplier"`
	EndTime         time.Time `json:"end_time"`
}

type RoundStore struct {
	db *sql.DB
}

func NewRoundStore(svc Service) *RoundStore {
	return &RoundStore{db: svc.DB()}
}

func (s *RoundStore) SaveRound(ctx context.Context, rec RoundRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rounds (round_id, server_seed, client_seed, hash_commitment, nonce, crash_multiplier, ended_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (round_id) DO NOTHING`,
		rec.RoundID, rec.ServerSeed, rec.ClientSeed, rec.HashCommitment, rec.Nonce, rec.CrashMultiplier, rec.EndTime,
	)
	if err != nil {
		return fmt.Errorf("save round %s: %w", rec.RoundID, err)
	}
	return nil
}

// RecentRounds returns the most recently crashed rounds, newest first.
func (s *RoundStore) RecentRounds(ctx context.Context, limit int) ([]RoundRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT round_id, server_seed, client_seed, hash_commitment, nonce, crash_multiplier, ended_at
		 FROM rounds
		 ORDER BY ended_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent rounds: %w", err)
	}
	defer rows.Close()

	var records []RoundRecord
	for rows.Next() {
		var rec RoundRecord
		if err := rows.Scan(&rec.RoundID, &rec.ServerSeed, &rec.ClientSeed, &rec.HashCommitment,
			&rec.Nonce, &rec.CrashMultiplier, &rec.EndTime); err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *RoundStore) GetRound(ctx context.Context, roundID string) (*RoundRecord, error) {
	var rec RoundRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT round_id, server_seed, client_seed, hash_commitment, nonce, crash_multiplier, ended_at
		 FROM rounds WHERE round_id = $1`, roundID).
		Scan(&rec.RoundID, &rec.ServerSeed, &rec.ClientSeed, &rec.HashCommitment,
			&rec.Nonce, &rec.CrashMultiplier, &rec.EndTime)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get round %s: %w", roundID, err)
	}
	return &rec, nil
}
