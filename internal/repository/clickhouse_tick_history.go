package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"MarkWatch/internal/domain/models"
	domrepo "MarkWatch/internal/domain/repository"
	pkgch "MarkWatch/pkg/clickhouse"
)

// CHTickHistory archives mark-price ticks consumed from Kafka.
type CHTickHistory struct {
	db       *sql.DB
	database string
}

func NewCHTickHistory(ch *pkgch.Client, database string) *CHTickHistory {
	return &CHTickHistory{db: ch.DB(), database: database}
}

func (s *CHTickHistory) Init(ctx context.Context) error {
	return nil // schema applied by the clickhouse provider
}

func (s *CHTickHistory) StoreBatch(ctx context.Context, ticks []*models.MarkPriceTick) error {
	if len(ticks) == 0 {
		return nil
	}
	const chunkSize = 2000
	for start := 0; start < len(ticks); start += chunkSize {
		end := start + chunkSize
		if end > len(ticks) {
			end = len(ticks)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*5)
		for _, t := range ticks[start:end] {
			if t == nil || t.Symbol == "" || t.EventTime.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?)")
			args = append(args, t.EventTime, t.Symbol, t.MarkPrice, t.IndexPrice, t.FundingRate)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf(
			"INSERT INTO %s.mark_price_ticks (ts, symbol, mark_price, index_price, funding_rate) VALUES %s",
			s.database, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert ticks: %w", err)
		}
	}
	return nil
}

func (s *CHTickHistory) Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.MarkPriceTick, error) {
	q := fmt.Sprintf(`
        SELECT ts, symbol, mark_price, index_price, funding_rate
        FROM %s.mark_price_ticks
        WHERE symbol = ? AND ts >= ? AND ts <= ?
        ORDER BY ts DESC
        LIMIT ?`, s.database)
	rows, err := s.db.QueryContext(ctx, q, symbol, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("query ticks: %w", err)
	}
	defer rows.Close()

	var ticks []*models.MarkPriceTick
	for rows.Next() {
		var t models.MarkPriceTick
		if err := rows.Scan(&t.EventTime, &t.Symbol, &t.MarkPrice, &t.IndexPrice, &t.FundingRate); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		ticks = append(ticks, &t)
	}
	return ticks, rows.Err()
}

func (s *CHTickHistory) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHTickHistory) Close() error {
	return nil // connection owned by the clickhouse client
}

var _ domrepo.TickHistory = (*CHTickHistory)(nil)
