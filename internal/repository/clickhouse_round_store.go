package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"MarkWatch/internal/domain/models"
	domrepo "MarkWatch/internal/domain/repository"
	pkgch "MarkWatch/pkg/clickhouse"
)

// CHRoundStore appends analysis round records. The plan is stored as a JSON
// blob; rounds are audit rows, not query targets.
type CHRoundStore struct {
	db       *sql.DB
	database string
}

func NewCHRoundStore(ch *pkgch.Client, database string) *CHRoundStore {
	return &CHRoundStore{db: ch.DB(), database: database}
}

func (s *CHRoundStore) Insert(ctx context.Context, rec *models.RoundRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("round record without id")
	}
	planJSON := ""
	if rec.Plan != nil {
		raw, err := json.Marshal(rec.Plan)
		if err != nil {
			return fmt.Errorf("marshal plan: %w", err)
		}
		planJSON = string(raw)
	}
	q := fmt.Sprintf(`INSERT INTO %s.rounds
        (id, reason, detail, assets, started_at, finished_at, status, plan, error)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.database)
	_, err := s.db.ExecContext(ctx, q,
		rec.ID,
		string(rec.Reason),
		rec.Detail,
		strings.Join(rec.Assets, ","),
		rec.StartedAt,
		rec.FinishedAt,
		string(rec.Status),
		planJSON,
		rec.Error,
	)
	if err != nil {
		return fmt.Errorf("insert round: %w", err)
	}
	return nil
}

func (s *CHRoundStore) Recent(ctx context.Context, limit int) ([]models.RoundRecord, error) {
	q := fmt.Sprintf(`
        SELECT id, reason, detail, assets, started_at, finished_at, status, plan, error
        FROM %s.rounds
        ORDER BY started_at DESC
        LIMIT ?`, s.database)
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("get rounds: %w", err)
	}
	defer rows.Close()

	out := make([]models.RoundRecord, 0, limit)
	for rows.Next() {
		var rec models.RoundRecord
		var reason, assets, status, planJSON string
		if err := rows.Scan(
			&rec.ID, &reason, &rec.Detail, &assets,
			&rec.StartedAt, &rec.FinishedAt, &status, &planJSON, &rec.Error,
		); err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		rec.Reason = models.TriggerReason(reason)
		rec.Status = models.RoundStatus(status)
		if assets != "" {
			rec.Assets = strings.Split(assets, ",")
		}
		if planJSON != "" {
			var plan models.TradePlan
			if err := json.Unmarshal([]byte(planJSON), &plan); err == nil {
				rec.Plan = &plan
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

var _ domrepo.RoundStore = (*CHRoundStore)(nil)
