package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/linkmark/internal/model"
)

// DBFileName is the database file created inside the data directory.
const DBFileName = "linkmark.db"

// Store provides SQLite-based storage for site settings and statistics.
//
// Design decision: the pool is limited to one connection. SQLite allows a
// single writer, and serve, watch mode and the CLI may share one database
// file, so writes are serialized here instead of failing with SQLITE_BUSY.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Options configures Store behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a Store in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*Store, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw prevents modernc.org/sqlite from creating a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	schema := `
	-- One row of options per normalized site host
	CREATE TABLE IF NOT EXISTS site_settings (
		host TEXT PRIMARY KEY,
		options_json TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Link statistics reports
	CREATE TABLE IF NOT EXISTS stats_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		host TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		report_json TEXT NOT NULL,
		total INTEGER NOT NULL,
		external INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_stats_host ON stats_reports(host);
	CREATE INDEX IF NOT EXISTS idx_stats_timestamp ON stats_reports(timestamp);
	`

	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// Record is the stored settings of one site.
type Record struct {
	Host      string
	Options   model.Options
	UpdatedAt time.Time
}

// Get returns the settings stored for host, or nil if there are none.
func (s *Store) Get(ctx context.Context, host string) (*Record, error) {
	query := `SELECT host, options_json, updated_at FROM site_settings WHERE host = ?`

	var (
		rec       Record
		raw       string
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx, query, model.NormalizeHost(host)).Scan(&rec.Host, &raw, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	if err := json.Unmarshal([]byte(raw), &rec.Options); err != nil {
		return nil, fmt.Errorf("failed to parse settings for %s: %w", rec.Host, err)
	}
	rec.UpdatedAt = parseTimestamp(updatedAt)
	return &rec, nil
}

// Put stores opts as the complete settings of host.
func (s *Store) Put(ctx context.Context, host string, opts model.Options) error {
	data, err := json.Marshal(opts)
	if err != nil {
		return fmt.Errorf("failed to serialize settings: %w", err)
	}

	query := `
	INSERT INTO site_settings (host, options_json, updated_at)
	VALUES (?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(host) DO UPDATE SET
		options_json = excluded.options_json,
		updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.ExecContext(ctx, query, model.NormalizeHost(host), string(data)); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// Delete removes the settings of host. It reports whether a row existed.
func (s *Store) Delete(ctx context.Context, host string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM site_settings WHERE host = ?`, model.NormalizeHost(host))
	if err != nil {
		return false, fmt.Errorf("failed to delete settings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete settings: %w", err)
	}
	return n > 0, nil
}

// Hosts returns every host with stored settings, sorted.
func (s *Store) Hosts(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT host FROM site_settings ORDER BY host`)
	if err != nil {
		return nil, fmt.Errorf("failed to list hosts: %w", err)
	}
	defer rows.Close()

	var hosts []string
	for rows.Next() {
		var host string
		if err := rows.Scan(&host); err != nil {
			return nil, fmt.Errorf("failed to scan host: %w", err)
		}
		hosts = append(hosts, host)
	}
	return hosts, rows.Err()
}

// ReportMetadata summarizes a saved statistics report.
type ReportMetadata struct {
	ID        int64
	Host      string
	Timestamp time.Time
	Total     int
	External  int
}

// SaveStatsReport stores a statistics report under its site host.
func (s *Store) SaveStatsReport(ctx context.Context, report *model.StatsReport) (int64, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	query := `
	INSERT INTO stats_reports (host, report_json, total, external)
	VALUES (?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query,
		report.Site.NormalizedHost(), string(data), report.Totals.Total, report.Totals.External)
	if err != nil {
		return 0, fmt.Errorf("failed to save report: %w", err)
	}
	return res.LastInsertId()
}

// LatestStatsReport returns the newest report for host, or nil if none exists.
func (s *Store) LatestStatsReport(ctx context.Context, host string) (*model.StatsReport, error) {
	query := `
	SELECT report_json FROM stats_reports
	WHERE host = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT 1
	`

	var raw string
	err := s.db.QueryRowContext(ctx, query, model.NormalizeHost(host)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	var report model.StatsReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// StatsHistory lists saved reports for host, newest first.
func (s *Store) StatsHistory(ctx context.Context, host string) ([]ReportMetadata, error) {
	query := `
	SELECT id, host, timestamp, total, external FROM stats_reports
	WHERE host = ?
	ORDER BY timestamp DESC, id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, model.NormalizeHost(host))
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var results []ReportMetadata
	for rows.Next() {
		var (
			meta      ReportMetadata
			timestamp string
		)
		if err := rows.Scan(&meta.ID, &meta.Host, &timestamp, &meta.Total, &meta.External); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		meta.Timestamp = parseTimestamp(timestamp)
		results = append(results, meta)
	}
	return results, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
