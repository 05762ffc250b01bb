package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harmwatch/harmwatch/internal/harm"
)

type storePG struct {
	pool *pgxpool.Pool
}

// NewPGStore returns an AggregateStore backed by the harm_aggregate table,
// one JSONB document per encounter.
func NewPGStore(pool *pgxpool.Pool) AggregateStore {
	return &storePG{pool: pool}
}

func (s *storePG) Get(ctx context.Context, encounterID string) (*harm.Aggregate, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM harm_aggregate WHERE encounter_id = $1`, encounterID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get aggregate %s: %w", encounterID, err)
	}

	var agg harm.Aggregate
	if err := json.Unmarshal(raw, &agg); err != nil {
		return nil, fmt.Errorf("decode aggregate %s: %w", encounterID, err)
	}
	return &agg, nil
}

func (s *storePG) Put(ctx context.Context, agg *harm.Aggregate) error {
	raw, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("encode aggregate %s: %w", agg.EncounterID, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO harm_aggregate (encounter_id, patient_id, doc, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (encounter_id)
		DO UPDATE SET patient_id = $2, doc = $3, updated_at = $4`,
		agg.EncounterID, agg.PatientID, raw, agg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put aggregate %s: %w", agg.EncounterID, err)
	}
	return nil
}

func (s *storePG) Delete(ctx context.Context, encounterID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM harm_aggregate WHERE encounter_id = $1`, encounterID)
	if err != nil {
		return fmt.Errorf("delete aggregate %s: %w", encounterID, err)
	}
	return nil
}

func (s *storePG) ListEncounterIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT encounter_id FROM harm_aggregate ORDER BY encounter_id`)
	if err != nil {
		return nil, fmt.Errorf("list aggregates: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan encounter id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
