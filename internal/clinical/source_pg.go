package clinical

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harmwatch/harmwatch/internal/fact"
	"github.com/harmwatch/harmwatch/internal/timewindow"
)

type sourcePG struct {
	pool *pgxpool.Pool
}

// NewSource returns a FactSource backed by the clinical fact tables.
func NewSource(pool *pgxpool.Pool) FactSource {
	return &sourcePG{pool: pool}
}

func (s *sourcePG) ListFacts(ctx context.Context, encounterID string, kind fact.Kind, codes []string, w *timewindow.Window) ([]fact.Fact, error) {
	switch kind {
	case fact.KindObservation:
		return s.listObservations(ctx, encounterID, codes, w)
	case fact.KindProcedureRequest:
		return s.listProcedureRequests(ctx, encounterID, codes)
	case fact.KindMedicationOrder:
		return s.listMedicationOrders(ctx, encounterID)
	case fact.KindFlag:
		return s.listFlags(ctx, encounterID, codes)
	default:
		return nil, fmt.Errorf("unknown fact kind %q", kind)
	}
}

func (s *sourcePG) listObservations(ctx context.Context, encounterID string, codes []string, w *timewindow.Window) ([]fact.Fact, error) {
	query := `
		SELECT id, encounter_id, code, value_string, value_quantity,
		       effective_time, period_start, period_end, status
		FROM observation
		WHERE encounter_id = $1`
	args := []interface{}{encounterID}

	if len(codes) > 0 {
		args = append(args, codes)
		query += fmt.Sprintf(" AND code = ANY($%d)", len(args))
	}
	if w != nil {
		// Coarse prefilter only; the exact boundary rule (instant vs
		// whole-period membership) is re-applied in Go below so that
		// all backends agree on shift attribution.
		args = append(args, w.Start, w.End)
		query += fmt.Sprintf(" AND (effective_time >= $%d AND effective_time < $%d"+
			" OR period_start >= $%d AND period_start < $%d)",
			len(args)-1, len(args), len(args)-1, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list observations: %w", err)
	}
	defer rows.Close()

	var facts []fact.Fact
	for rows.Next() {
		var o fact.Observation
		var valueString *string
		var periodStart, periodEnd *time.Time
		if err := rows.Scan(&o.ID, &o.EncounterID, &o.Code, &valueString, &o.ValueQuantity,
			&o.EffectiveTime, &periodStart, &periodEnd, &o.Status); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		if valueString != nil {
			o.ValueString = *valueString
		}
		if periodStart != nil {
			p := fact.Period{Start: *periodStart}
			if periodEnd != nil {
				p.End = *periodEnd
			}
			o.EffectivePeriod = &p
		}
		facts = append(facts, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return filterWindow(facts, w), nil
}

func (s *sourcePG) listProcedureRequests(ctx context.Context, encounterID string, codes []string) ([]fact.Fact, error) {
	query := `
		SELECT id, encounter_id, code, scheduled_time, status
		FROM procedure_request
		WHERE encounter_id = $1`
	args := []interface{}{encounterID}
	if len(codes) > 0 {
		args = append(args, codes)
		query += fmt.Sprintf(" AND code = ANY($%d)", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list procedure requests: %w", err)
	}
	defer rows.Close()

	var facts []fact.Fact
	for rows.Next() {
		var p fact.ProcedureRequest
		if err := rows.Scan(&p.ID, &p.EncounterID, &p.Code, &p.ScheduledTime, &p.Status); err != nil {
			return nil, fmt.Errorf("scan procedure request: %w", err)
		}
		facts = append(facts, p)
	}
	return facts, rows.Err()
}

func (s *sourcePG) listMedicationOrders(ctx context.Context, encounterID string) ([]fact.Fact, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, encounter_id, identifiers, status, date_written
		FROM medication_order
		WHERE encounter_id = $1`, encounterID)
	if err != nil {
		return nil, fmt.Errorf("list medication orders: %w", err)
	}
	defer rows.Close()

	var facts []fact.Fact
	for rows.Next() {
		var m fact.MedicationOrder
		if err := rows.Scan(&m.ID, &m.EncounterID, &m.Identifiers, &m.Status, &m.DateWritten); err != nil {
			return nil, fmt.Errorf("scan medication order: %w", err)
		}
		facts = append(facts, m)
	}
	return facts, rows.Err()
}

func (s *sourcePG) listFlags(ctx context.Context, encounterID string, codes []string) ([]fact.Fact, error) {
	query := `
		SELECT id, encounter_id, code, period_start, period_end, status
		FROM flag
		WHERE encounter_id = $1`
	args := []interface{}{encounterID}
	if len(codes) > 0 {
		args = append(args, codes)
		query += fmt.Sprintf(" AND code = ANY($%d)", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list flags: %w", err)
	}
	defer rows.Close()

	var facts []fact.Fact
	for rows.Next() {
		var f fact.Flag
		var periodStart, periodEnd *time.Time
		if err := rows.Scan(&f.ID, &f.EncounterID, &f.Code, &periodStart, &periodEnd, &f.Status); err != nil {
			return nil, fmt.Errorf("scan flag: %w", err)
		}
		if periodStart != nil {
			p := fact.Period{Start: *periodStart}
			if periodEnd != nil {
				p.End = *periodEnd
			}
			f.Period = &p
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}
