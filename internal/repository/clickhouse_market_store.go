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

// Schema returns the idempotent DDL for every table this package writes.
func Schema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.mark_price_ticks (
            ts DateTime64(3),
            symbol String,
            mark_price Float64,
            index_price Float64,
            funding_rate Float64
        ) ENGINE = MergeTree ORDER BY (symbol, ts)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.klines (
            symbol String,
            interval String,
            open_time DateTime,
            close_time DateTime,
            open Float64, high Float64, low Float64, close Float64,
            volume Float64, quote_volume Float64, trades Int64, taker_buy Float64,
            ema_5 Float64, ema_10 Float64, ema_20 Float64,
            macd Float64, macd_signal Float64, macd_hist Float64,
            boll_mid Float64, boll_upper Float64, boll_lower Float64,
            stoch_k Float64, stoch_d Float64, stoch_j Float64,
            updated_at DateTime DEFAULT now()
        ) ENGINE = ReplacingMergeTree(updated_at) ORDER BY (symbol, interval, open_time)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.news (
            source String,
            external_id String,
            title String,
            summary String,
            link String,
            published_at DateTime,
            fetched_at DateTime DEFAULT now()
        ) ENGINE = ReplacingMergeTree(fetched_at) ORDER BY (source, external_id)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.rounds (
            id String,
            reason String,
            detail String,
            assets String,
            started_at DateTime64(3),
            finished_at DateTime64(3),
            status String,
            plan String,
            error String
        ) ENGINE = MergeTree ORDER BY (started_at, id)`, database),
	}
}

const klineColumns = `symbol, interval, open_time, close_time,
    open, high, low, close, volume, quote_volume, trades, taker_buy,
    ema_5, ema_10, ema_20, macd, macd_signal, macd_hist,
    boll_mid, boll_upper, boll_lower, stoch_k, stoch_d, stoch_j`

// CHKlineStore keeps candles with their indicator columns in ClickHouse.
// The table is ReplacingMergeTree keyed on (symbol, interval, open_time), so
// a refresh is a plain insert and reads go through FINAL.
type CHKlineStore struct {
	db       *sql.DB
	database string
}

func NewCHKlineStore(ch *pkgch.Client, database string) *CHKlineStore {
	return &CHKlineStore{db: ch.DB(), database: database}
}

func (s *CHKlineStore) Upsert(ctx context.Context, klines []models.Kline) error {
	if len(klines) == 0 {
		return nil
	}
	const chunkSize = 500
	for start := 0; start < len(klines); start += chunkSize {
		end := start + chunkSize
		if end > len(klines) {
			end = len(klines)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*24)
		for _, k := range klines[start:end] {
			if k.Symbol == "" || k.Interval == "" || k.OpenTime.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				k.Symbol, k.Interval, k.OpenTime, k.CloseTime,
				k.Open, k.High, k.Low, k.Close, k.Volume, k.QuoteVol, k.Trades, k.TakerBuy,
				k.EMA5, k.EMA10, k.EMA20, k.MACD, k.MACDSignal, k.MACDHist,
				k.BollMid, k.BollUpper, k.BollLower, k.StochK, k.StochD, k.StochJ,
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s.klines (%s) VALUES %s",
			s.database, klineColumns, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert klines: %w", err)
		}
	}
	return nil
}

func (s *CHKlineStore) Latest(ctx context.Context, symbol, interval string, limit int) ([]models.Kline, error) {
	q := fmt.Sprintf(`
        SELECT %s
        FROM %s.klines FINAL
        WHERE symbol = ? AND interval = ?
        ORDER BY open_time DESC
        LIMIT ?`, klineColumns, s.database)
	rows, err := s.db.QueryContext(ctx, q, symbol, interval, limit)
	if err != nil {
		return nil, fmt.Errorf("get klines: %w", err)
	}
	defer rows.Close()

	out := make([]models.Kline, 0, limit)
	for rows.Next() {
		var k models.Kline
		if err := rows.Scan(
			&k.Symbol, &k.Interval, &k.OpenTime, &k.CloseTime,
			&k.Open, &k.High, &k.Low, &k.Close, &k.Volume, &k.QuoteVol, &k.Trades, &k.TakerBuy,
			&k.EMA5, &k.EMA10, &k.EMA20, &k.MACD, &k.MACDSignal, &k.MACDHist,
			&k.BollMid, &k.BollUpper, &k.BollLower, &k.StochK, &k.StochD, &k.StochJ,
		); err != nil {
			return nil, fmt.Errorf("scan kline: %w", err)
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	// reverse to ASC
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// CHNewsStore is the append-only news archive. Dedup by (source, external_id)
// happens in the table engine.
type CHNewsStore struct {
	db       *sql.DB
	database string
}

func NewCHNewsStore(ch *pkgch.Client, database string) *CHNewsStore {
	return &CHNewsStore{db: ch.DB(), database: database}
}

func (s *CHNewsStore) Insert(ctx context.Context, items []models.NewsItem) error {
	if len(items) == 0 {
		return nil
	}
	values := make([]string, 0, len(items))
	args := make([]interface{}, 0, len(items)*6)
	for _, it := range items {
		if it.ExternalID == "" {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?)")
		args = append(args,
			string(it.Source), it.ExternalID, it.Title, it.Summary, it.Link, it.PublishedAt)
	}
	if len(values) == 0 {
		return nil
	}
	q := fmt.Sprintf(
		"INSERT INTO %s.news (source, external_id, title, summary, link, published_at) VALUES %s",
		s.database, strings.Join(values, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("insert news: %w", err)
	}
	return nil
}

func (s *CHNewsStore) Latest(ctx context.Context, source models.NewsSource, limit int) ([]models.NewsItem, error) {
	q := fmt.Sprintf(`
        SELECT source, external_id, title, summary, link, published_at
        FROM %s.news FINAL
        WHERE source = ?
        ORDER BY published_at DESC
        LIMIT ?`, s.database)
	rows, err := s.db.QueryContext(ctx, q, string(source), limit)
	if err != nil {
		return nil, fmt.Errorf("get news: %w", err)
	}
	defer rows.Close()

	out := make([]models.NewsItem, 0, limit)
	for rows.Next() {
		var it models.NewsItem
		var src string
		if err := rows.Scan(&src, &it.ExternalID, &it.Title, &it.Summary, &it.Link, &it.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan news: %w", err)
		}
		it.Source = models.NewsSource(src)
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *CHNewsStore) NewestPublishedAt(ctx context.Context, source models.NewsSource) (time.Time, error) {
	q := fmt.Sprintf("SELECT max(published_at) FROM %s.news WHERE source = ?", s.database)
	var newest time.Time
	if err := s.db.QueryRowContext(ctx, q, string(source)).Scan(&newest); err != nil {
		return time.Time{}, fmt.Errorf("newest published_at: %w", err)
	}
	// max() over an empty set yields the epoch; treat it as "no rows yet"
	if newest.Unix() <= 0 {
		return time.Time{}, nil
	}
	return newest, nil
}

var _ domrepo.KlineStore = (*CHKlineStore)(nil)
var _ domrepo.NewsStore = (*CHNewsStore)(nil)
