package repository

import "fmt"

// schemaStatements returns the idempotent DDL applied by Init. Tables are
// qualified with the configured database so the DSN does not have to point
// at it before the first run.
func schemaStatements(database string) []string {
	return []string{
		fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS %s`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.assets (
    asset_class LowCardinality(String),
    symbol String,
    name String,
    currency String,
    source String,
    updated_at DateTime DEFAULT now()
) ENGINE = ReplacingMergeTree(updated_at)
ORDER BY (asset_class, symbol)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.price_history (
    asset_class LowCardinality(String),
    symbol String,
    as_of DateTime,
    value Float64,
    currency String,
    source String,
    created_at DateTime DEFAULT now()
) ENGINE = ReplacingMergeTree(created_at)
ORDER BY (asset_class, symbol, as_of, source)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.backtest_runs (
    asset_class LowCardinality(String),
    symbol String,
    run_key String,
    start_date Date,
    end_date Date,
    forecast_window String,
    stride String,
    frequency String,
    status LowCardinality(String),
    mape Nullable(Float64),
    mae Nullable(Float64),
    total_points Int32,
    run_week String,
    cutoff_date String,
    error String,
    created_at DateTime DEFAULT now()
) ENGINE = MergeTree
ORDER BY (asset_class, symbol, created_at)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.forecast_windows (
    run_key String,
    history_start DateTime,
    history_end DateTime,
    target_start DateTime,
    target_end DateTime,
    actual_value Float64,
    forecast_value Float64,
    timestamps String,
    created_at DateTime DEFAULT now()
) ENGINE = MergeTree
ORDER BY (run_key, target_start)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.run_metrics (
    run_key String,
    metric_name String,
    metric_value Float64,
    created_at DateTime DEFAULT now()
) ENGINE = MergeTree
ORDER BY (run_key, metric_name)`, database),
	}
}
