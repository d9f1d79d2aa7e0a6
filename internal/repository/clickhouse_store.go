package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ChartPulse/internal/domain/models"
	"ChartPulse/internal/domain/repository"
	pkgch "ChartPulse/pkg/clickhouse"
	xhttp "ChartPulse/pkg/http"
	"ChartPulse/pkg/logger"
	"ChartPulse/pkg/util"
)

const (
	// storedTimeFormat is how price timestamps leave storage; the
	// forecasting pipeline expects this exact shape.
	storedTimeFormat = "2006-01-02T15:04:05Z"
	// isoFormat is how run and window times are rendered in API payloads.
	isoFormat  = "2006-01-02T15:04:05"
	dateFormat = "2006-01-02"

	// Rows per multi-VALUES insert.
	insertChunkSize = 1000

	statusSuccess = "success"
)

// ClickHouseStore implements Storage over ClickHouse.
type ClickHouseStore struct {
	db       *sql.DB
	ch       *pkgch.Client
	database string
	logger   *logger.Logger
}

// NewClickHouseStore creates ClickHouse-backed storage.
func NewClickHouseStore(client *pkgch.Client, database string, log *logger.Logger) repository.Storage {
	return &ClickHouseStore{db: client.DB(), ch: client, database: database, logger: log}
}

func (s *ClickHouseStore) table(name string) string {
	return s.database + "." + name
}

func (s *ClickHouseStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, schemaStatements(s.database))
}

// UpsertAsset inserts the asset row. ReplacingMergeTree keeps the newest
// row per (asset_class, symbol), so a plain insert is the upsert.
func (s *ClickHouseStore) UpsertAsset(ctx context.Context, a *models.Asset) error {
	q := fmt.Sprintf("INSERT INTO %s (asset_class, symbol, name, currency, source, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		s.table("assets"))
	if _, err := s.db.ExecContext(ctx, q,
		a.AssetClass, a.Symbol, a.Name, a.Currency, a.Source, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("upsert asset %s/%s: %w", a.AssetClass, a.Symbol, err)
	}
	return nil
}

func (s *ClickHouseStore) StorePriceBatch(ctx context.Context, batch *models.PriceBatch) error {
	if batch == nil || len(batch.Points) == 0 {
		return nil
	}
	points := batch.Points
	for start := 0; start < len(points); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(points) {
			end = len(points)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*6)
		for _, pt := range points[start:end] {
			if pt.Symbol == "" || pt.AsOf.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?)")
			args = append(args, pt.AssetClass, pt.Symbol, pt.AsOf.UTC(), pt.Value, pt.Currency, pt.Source)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (asset_class, symbol, as_of, value, currency, source) VALUES %s",
			s.table("price_history"), strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("store price batch %s/%s: %w", batch.AssetClass, batch.Symbol, err)
		}
	}
	return nil
}

// SeriesFor loads the stored series in ascending order. anyLast collapses
// duplicate rows that ReplacingMergeTree has not merged yet.
func (s *ClickHouseStore) SeriesFor(ctx context.Context, assetClass, symbol string, from, to time.Time) ([]string, []float64, error) {
	q := fmt.Sprintf(`SELECT as_of, anyLast(value) AS value
FROM %s
WHERE asset_class = ? AND symbol = ? AND as_of >= ? AND as_of <= ?
GROUP BY as_of
ORDER BY as_of ASC`, s.table("price_history"))

	rows, err := s.db.QueryContext(ctx, q, assetClass, symbol, from, to)
	if err != nil {
		return nil, nil, fmt.Errorf("load series %s/%s: %w", assetClass, symbol, err)
	}
	defer rows.Close()

	var (
		timestamps []string
		values     []float64
	)
	for rows.Next() {
		var (
			asOf time.Time
			v    float64
		)
		if err := rows.Scan(&asOf, &v); err != nil {
			return nil, nil, fmt.Errorf("scan series row: %w", err)
		}
		timestamps = append(timestamps, asOf.UTC().Format(storedTimeFormat))
		values = append(values, v)
	}
	return timestamps, values, rows.Err()
}

// StoreRun persists the run row, its windows, and on success the mape/mae
// metric rows. Failed runs keep NULL metrics and carry the error text.
func (s *ClickHouseStore) StoreRun(ctx context.Context, run *models.RunRecord) error {
	startDate, ok := util.ParseTime(run.StartDate)
	if !ok {
		return fmt.Errorf("invalid run start date %q", run.StartDate)
	}
	endDate, ok := util.ParseTime(run.EndDate)
	if !ok {
		return fmt.Errorf("invalid run end date %q", run.EndDate)
	}
	now := time.Now().UTC()

	var mape, mae interface{}
	if run.Status == statusSuccess {
		mape, mae = run.MAPE, run.MAE
	}
	q := fmt.Sprintf(`INSERT INTO %s
(asset_class, symbol, run_key, start_date, end_date, forecast_window, stride, frequency, status, mape, mae, total_points, run_week, cutoff_date, error, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table("backtest_runs"))
	if _, err := s.db.ExecContext(ctx, q,
		run.AssetClass, run.Symbol, run.RunKey,
		startDate, endDate,
		run.ForecastWindow, run.Stride, run.Frequency, run.Status,
		mape, mae, int32(run.TotalPoints),
		run.RunWeek, run.CutoffDate, run.Error, now,
	); err != nil {
		return fmt.Errorf("store run %s: %w", run.RunKey, err)
	}

	if err := s.storeWindows(ctx, run.RunKey, run.Windows, now); err != nil {
		return err
	}

	if run.Status == statusSuccess {
		mq := fmt.Sprintf("INSERT INTO %s (run_key, metric_name, metric_value, created_at) VALUES (?, ?, ?, ?), (?, ?, ?, ?)",
			s.table("run_metrics"))
		if _, err := s.db.ExecContext(ctx, mq,
			run.RunKey, "mape", run.MAPE, now,
			run.RunKey, "mae", run.MAE, now,
		); err != nil {
			return fmt.Errorf("store run metrics %s: %w", run.RunKey, err)
		}
	}

	s.logger.Debug("stored backtest run",
		logger.String("run_key", run.RunKey),
		logger.String("status", run.Status),
		logger.Int("windows", len(run.Windows)))
	return nil
}

func (s *ClickHouseStore) storeWindows(ctx context.Context, runKey string, windows []models.StoredWindow, now time.Time) error {
	if len(windows) == 0 {
		return nil
	}
	for start := 0; start < len(windows); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(windows) {
			end = len(windows)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*9)
		for _, w := range windows[start:end] {
			hs, err := parseWindowTime("history_start", w.HistoryStart)
			if err != nil {
				return err
			}
			he, err := parseWindowTime("history_end", w.HistoryEnd)
			if err != nil {
				return err
			}
			ts, err := parseWindowTime("target_start", w.TargetStart)
			if err != nil {
				return err
			}
			te, err := parseWindowTime("target_end", w.TargetEnd)
			if err != nil {
				return err
			}
			encoded, err := json.Marshal(w.Timestamps)
			if err != nil {
				return fmt.Errorf("encode window timestamps: %w", err)
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, runKey, hs, he, ts, te, w.ActualValue, w.ForecastValue, string(encoded), now)
		}
		q := fmt.Sprintf("INSERT INTO %s (run_key, history_start, history_end, target_start, target_end, actual_value, forecast_value, timestamps, created_at) VALUES %s",
			s.table("forecast_windows"), strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("store windows %s: %w", runKey, err)
		}
	}
	return nil
}

func parseWindowTime(label, s string) (time.Time, error) {
	t, ok := util.ParseTime(s)
	if !ok {
		return time.Time{}, fmt.Errorf("invalid window %s %q", label, s)
	}
	return t, nil
}

// AssetSummaries returns the latest successful run per symbol, newest
// first. argMax picks the row with the greatest created_at per group.
func (s *ClickHouseStore) AssetSummaries(ctx context.Context, assetClass string, limit int) ([]models.AssetSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	q := fmt.Sprintf(`SELECT
    r.symbol,
    a.name,
    r.run_key,
    r.mape,
    r.mae,
    r.total_points,
    r.run_week,
    r.run_timestamp
FROM (
    SELECT
        symbol,
        argMax(run_key, created_at) AS run_key,
        argMax(mape, created_at) AS mape,
        argMax(mae, created_at) AS mae,
        argMax(total_points, created_at) AS total_points,
        argMax(run_week, created_at) AS run_week,
        max(created_at) AS run_timestamp
    FROM %s
    WHERE asset_class = ? AND status = 'success'
    GROUP BY symbol
) AS r
LEFT JOIN (
    SELECT symbol, argMax(name, updated_at) AS name
    FROM %s
    WHERE asset_class = ?
    GROUP BY symbol
) AS a ON a.symbol = r.symbol
ORDER BY r.run_timestamp DESC
LIMIT ?`, s.table("backtest_runs"), s.table("assets"))

	rows, err := s.db.QueryContext(ctx, q, assetClass, assetClass, limit)
	if err != nil {
		return nil, fmt.Errorf("load summaries for %s: %w", assetClass, err)
	}
	defer rows.Close()

	var out []models.AssetSummary
	for rows.Next() {
		var (
			sum         models.AssetSummary
			mape, mae   sql.NullFloat64
			totalPoints int32
			runTS       time.Time
		)
		if err := rows.Scan(&sum.Symbol, &sum.Name, &sum.RunKey, &mape, &mae, &totalPoints, &sum.RunWeek, &runTS); err != nil {
			return nil, fmt.Errorf("scan summary row: %w", err)
		}
		sum.AssetClass = assetClass
		sum.MAPE = nullableFloat(mape)
		sum.MAE = nullableFloat(mae)
		sum.TotalPoints = int(totalPoints)
		sum.RunTimestamp = runTS.UTC().Format(isoFormat)
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *ClickHouseStore) RunDetail(ctx context.Context, assetClass, symbol string, windowLimit int) (*models.RunDetail, error) {
	if windowLimit <= 0 {
		windowLimit = 500
	}

	aq := fmt.Sprintf(`SELECT argMax(name, updated_at)
FROM %s
WHERE asset_class = ? AND symbol = ?
GROUP BY symbol`, s.table("assets"))
	var name string
	if err := s.db.QueryRowContext(ctx, aq, assetClass, symbol).Scan(&name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, xhttp.NotFoundErrorf("asset '%s' not found in %s database", symbol, assetClass)
		}
		return nil, fmt.Errorf("load asset %s/%s: %w", assetClass, symbol, err)
	}

	rq := fmt.Sprintf(`SELECT run_key, mape, mae, total_points, forecast_window, stride, frequency, run_week, created_at
FROM %s
WHERE asset_class = ? AND symbol = ? AND status = 'success'
ORDER BY created_at DESC
LIMIT 1`, s.table("backtest_runs"))
	var (
		sum         models.RunSummary
		mape, mae   sql.NullFloat64
		totalPoints int32
		createdAt   time.Time
	)
	err := s.db.QueryRowContext(ctx, rq, assetClass, symbol).Scan(
		&sum.RunKey, &mape, &mae, &totalPoints,
		&sum.ForecastWindow, &sum.Stride, &sum.Frequency,
		&sum.RunWeek, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, xhttp.NotFoundErrorf("no successful backtests found for %s", symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("load latest run %s/%s: %w", assetClass, symbol, err)
	}
	sum.Symbol = symbol
	sum.Name = name
	sum.AssetClass = assetClass
	sum.MAPE = nullableFloat(mape)
	sum.MAE = nullableFloat(mae)
	sum.TotalPoints = int(totalPoints)
	sum.RunTimestamp = createdAt.UTC().Format(isoFormat)

	windows, err := s.windowsFor(ctx, sum.RunKey, windowLimit)
	if err != nil {
		return nil, err
	}
	return &models.RunDetail{Summary: sum, Windows: windows}, nil
}

func (s *ClickHouseStore) windowsFor(ctx context.Context, runKey string, limit int) ([]models.StoredWindow, error) {
	q := fmt.Sprintf(`SELECT history_start, history_end, target_start, target_end, actual_value, forecast_value, timestamps
FROM %s
WHERE run_key = ?
ORDER BY target_start ASC
LIMIT ?`, s.table("forecast_windows"))

	rows, err := s.db.QueryContext(ctx, q, runKey, limit)
	if err != nil {
		return nil, fmt.Errorf("load windows %s: %w", runKey, err)
	}
	defer rows.Close()

	var out []models.StoredWindow
	for rows.Next() {
		var (
			w              models.StoredWindow
			hs, he, ts, te time.Time
			raw            string
		)
		if err := rows.Scan(&hs, &he, &ts, &te, &w.ActualValue, &w.ForecastValue, &raw); err != nil {
			return nil, fmt.Errorf("scan window row: %w", err)
		}
		w.HistoryStart = hs.UTC().Format(isoFormat)
		w.HistoryEnd = he.UTC().Format(isoFormat)
		w.TargetStart = ts.UTC().Format(isoFormat)
		w.TargetEnd = te.UTC().Format(isoFormat)
		if raw != "" {
			if err := json.Unmarshal([]byte(raw), &w.Timestamps); err != nil {
				s.logger.Warn("bad window timestamps",
					logger.String("run_key", runKey),
					logger.Error(err))
			}
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// PruneRuns drops runs older than the cutoff. Mutations are async; child
// tables go first so their subquery still sees the parent rows.
func (s *ClickHouseStore) PruneRuns(ctx context.Context, assetClass string, olderThan time.Time) error {
	sub := fmt.Sprintf("SELECT run_key FROM %s WHERE asset_class = ? AND created_at < ?", s.table("backtest_runs"))
	for _, child := range []string{"forecast_windows", "run_metrics"} {
		q := fmt.Sprintf("ALTER TABLE %s DELETE WHERE run_key IN (%s)", s.table(child), sub)
		if _, err := s.db.ExecContext(ctx, q, assetClass, olderThan); err != nil {
			return fmt.Errorf("prune %s: %w", child, err)
		}
	}
	q := fmt.Sprintf("ALTER TABLE %s DELETE WHERE asset_class = ? AND created_at < ?", s.table("backtest_runs"))
	if _, err := s.db.ExecContext(ctx, q, assetClass, olderThan); err != nil {
		return fmt.Errorf("prune backtest_runs: %w", err)
	}
	s.logger.Info("pruned backtest runs",
		logger.String("asset_class", assetClass),
		logger.String("older_than", olderThan.UTC().Format(dateFormat)))
	return nil
}

func (s *ClickHouseStore) Health(ctx context.Context) error {
	return s.ch.Health(ctx)
}

func (s *ClickHouseStore) Close() error {
	return nil // pool managed by pkg client
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
