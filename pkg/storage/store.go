// Package storage persists OHLCV series as one Parquet file per
// (symbol, granularity) under a base directory. Files are always rewritten
// wholesale: Save merges new bars with the stored series in memory, stages
// the result in DuckDB, exports it to a temporary Parquet file and renames
// it over the final path so concurrent readers never observe a partial
// write.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/stockpile/internal/logger"
	"github.com/rxtech-lab/stockpile/internal/types"
	"github.com/rxtech-lab/stockpile/pkg/errors"
)

// symbolPattern bounds the characters a stored symbol may contain. The
// symbol ends up in file names and in quoted DuckDB file paths, so anything
// outside this set is rejected at the store boundary.
var symbolPattern = regexp.MustCompile(`^[A-Z0-9]{1,12}([.\-][A-Z0-9]{1,4})?$`)

func validateSymbol(symbol string) error {
	if !symbolPattern.MatchString(strings.ToUpper(symbol)) {
		return errors.Newf(errors.ErrCodeInvalidSymbol, "invalid symbol format: %q", symbol)
	}

	return nil
}

// Granularity selects between the daily and intraday areas of the catalog.
type Granularity string

const (
	GranularityDaily    Granularity = "daily"
	GranularityIntraday Granularity = "intraday"
)

// GranularityFor returns the catalog area an interval belongs to.
func GranularityFor(interval types.Interval) Granularity {
	if interval.IsIntraday() {
		return GranularityIntraday
	}

	return GranularityDaily
}

// Store is a Parquet-backed catalog of OHLCV series.
type Store struct {
	baseDir string
	db      *sql.DB
	logger  *logger.Logger
	sq      sq.StatementBuilderType
}

// NewStore opens a store rooted at baseDir, creating the daily and intraday
// directories if needed. The embedded DuckDB instance is only used as a
// query engine; all durable state lives in the Parquet files.
func NewStore(baseDir string, log *logger.Logger) (*Store, error) {
	for _, area := range []Granularity{GranularityDaily, GranularityIntraday} {
		if err := os.MkdirAll(filepath.Join(baseDir, string(area)), 0755); err != nil {
			return nil, errors.Wrapf(errors.ErrCodeStorageWriteFailed, err, "failed to create %s directory", area)
		}
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to open DuckDB connection", err)
	}

	return &Store{
		baseDir: baseDir,
		db:      db,
		logger:  log,
		sq:      sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}, nil
}

// Close releases the embedded DuckDB instance.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}

	return nil
}

// FilePath returns the catalog path for a (symbol, interval) series.
// Daily series live at daily/SYMBOL.parquet, intraday series at
// intraday/SYMBOL_<interval>.parquet.
func (s *Store) FilePath(symbol string, interval types.Interval) string {
	symbol = strings.ToUpper(symbol)

	if interval.IsIntraday() {
		return filepath.Join(s.baseDir, string(GranularityIntraday), fmt.Sprintf("%s_%s.parquet", symbol, interval))
	}

	return filepath.Join(s.baseDir, string(GranularityDaily), symbol+".parquet")
}

// Save merges bars into the stored series for (symbol, interval) and
// rewrites the file atomically. On overlapping timestamps the incoming bar
// wins. Returns the number of rows the merge added over the previous file.
// Saving an empty series is a no-op.
func (s *Store) Save(symbol string, interval types.Interval, bars []types.MarketData) (int, error) {
	if err := validateSymbol(symbol); err != nil {
		return 0, err
	}

	if len(bars) == 0 {
		return 0, nil
	}

	existing, err := s.Load(symbol, interval, optional.None[time.Time](), optional.None[time.Time]())
	if err != nil {
		return 0, err
	}

	merged := types.MergeSeries(existing, bars)

	finalPath := s.FilePath(symbol, interval)
	tmpPath := fmt.Sprintf("%s.tmp-%s", finalPath, uuid.New().String())

	if err := s.writeParquet(tmpPath, merged); err != nil {
		os.Remove(tmpPath)

		return 0, err
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)

		return 0, errors.Wrapf(errors.ErrCodeStorageWriteFailed, err, "failed to replace %s", finalPath)
	}

	added := len(merged) - len(existing)

	s.logger.Info("saved series",
		zap.String("symbol", strings.ToUpper(symbol)),
		zap.String("interval", string(interval)),
		zap.String("path", finalPath),
		zap.Int("rows", len(merged)),
		zap.Int("added", added))

	return added, nil
}

// writeParquet stages bars in a DuckDB table and COPYs them to path.
func (s *Store) writeParquet(path string, bars []types.MarketData) (err error) {
	table := "staging_" + strings.ReplaceAll(uuid.New().String(), "-", "")

	_, err = s.db.Exec(fmt.Sprintf(`
		CREATE TABLE %s (
			time TIMESTAMP,
			symbol TEXT,
			open DOUBLE,
			high DOUBLE,
			low DOUBLE,
			close DOUBLE,
			volume DOUBLE
		)
	`, table))
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorageWriteFailed, "failed to create staging table", err)
	}

	defer func() {
		if _, dropErr := s.db.Exec("DROP TABLE IF EXISTS " + table); dropErr != nil && err == nil {
			err = errors.Wrap(errors.ErrCodeStorageWriteFailed, "failed to drop staging table", dropErr)
		}
	}()

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorageWriteFailed, "failed to begin transaction", err)
	}

	stmt, err := tx.Prepare(fmt.Sprintf(`
		INSERT INTO %s (time, symbol, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, table))
	if err != nil {
		tx.Rollback()

		return errors.Wrap(errors.ErrCodeStorageWriteFailed, "failed to prepare insert statement", err)
	}

	for _, bar := range bars {
		_, err = stmt.Exec(
			bar.Time.UTC(),
			bar.Symbol,
			bar.Open,
			bar.High,
			bar.Low,
			bar.Close,
			bar.Volume,
		)
		if err != nil {
			stmt.Close()
			tx.Rollback()

			return errors.Wrap(errors.ErrCodeStorageWriteFailed, "failed to insert bar", err)
		}
	}

	if err = stmt.Close(); err != nil {
		tx.Rollback()

		return errors.Wrap(errors.ErrCodeStorageWriteFailed, "failed to close insert statement", err)
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeStorageWriteFailed, "failed to commit staging rows", err)
	}

	_, err = s.db.Exec(fmt.Sprintf(`COPY (SELECT * FROM %s ORDER BY time) TO '%s' (FORMAT PARQUET)`, table, path))
	if err != nil {
		return errors.Wrapf(errors.ErrCodeStorageWriteFailed, err, "failed to export parquet to %s", path)
	}

	return nil
}

// Load returns the stored series for (symbol, interval), optionally bounded
// to [start, end], in ascending timestamp order. A missing file yields an
// empty series, not an error.
func (s *Store) Load(symbol string, interval types.Interval, start optional.Option[time.Time], end optional.Option[time.Time]) ([]types.MarketData, error) {
	if err := validateSymbol(symbol); err != nil {
		return nil, err
	}

	path := s.FilePath(symbol, interval)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return []types.MarketData{}, nil
	}

	builder := s.sq.
		Select("time", "symbol", "open", "high", "low", "close", "volume").
		From(fmt.Sprintf("read_parquet('%s')", path)).
		OrderBy("time ASC")

	if start.IsSome() {
		builder = builder.Where(sq.GtOrEq{"time": start.Unwrap().UTC()})
	}

	if end.IsSome() {
		builder = builder.Where(sq.LtOrEq{"time": end.Unwrap().UTC()})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build load query", err)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to read %s", path)
	}
	defer rows.Close()

	bars := []types.MarketData{}

	for rows.Next() {
		var bar types.MarketData

		err = rows.Scan(&bar.Time, &bar.Symbol, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan bar", err)
		}

		bar.Time = bar.Time.UTC()
		bars = append(bars, bar)
	}

	if err = rows.Err(); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to iterate %s", path)
	}

	return bars, nil
}

// LastTimestamp returns the most recent stored timestamp for
// (symbol, interval), or None when nothing is stored.
func (s *Store) LastTimestamp(symbol string, interval types.Interval) (optional.Option[time.Time], error) {
	if err := validateSymbol(symbol); err != nil {
		return optional.None[time.Time](), err
	}

	path := s.FilePath(symbol, interval)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return optional.None[time.Time](), nil
	}

	var last sql.NullTime

	query := fmt.Sprintf("SELECT max(time) FROM read_parquet('%s')", path)
	if err := s.db.QueryRow(query).Scan(&last); err != nil {
		return optional.None[time.Time](), errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to read last timestamp from %s", path)
	}

	if !last.Valid {
		return optional.None[time.Time](), nil
	}

	return optional.Some(last.Time.UTC()), nil
}

// Symbols returns the sorted list of symbols stored in the given catalog area.
func (s *Store) Symbols(granularity Granularity) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.baseDir, string(granularity), "*.parquet"))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to list catalog files", err)
	}

	seen := make(map[string]struct{}, len(matches))

	for _, match := range matches {
		stem := strings.TrimSuffix(filepath.Base(match), ".parquet")

		if granularity == GranularityIntraday {
			// Intraday files are named SYMBOL_<interval>.parquet.
			if idx := strings.LastIndex(stem, "_"); idx > 0 {
				stem = stem[:idx]
			}
		}

		seen[stem] = struct{}{}
	}

	symbols := make([]string, 0, len(seen))
	for symbol := range seen {
		symbols = append(symbols, symbol)
	}

	sort.Strings(symbols)

	return symbols, nil
}

// Delete removes a symbol's files from the given catalog area. For intraday
// data all interval files of the symbol are removed. Returns whether
// anything was deleted.
func (s *Store) Delete(symbol string, granularity Granularity) (bool, error) {
	if err := validateSymbol(symbol); err != nil {
		return false, err
	}

	symbol = strings.ToUpper(symbol)

	var paths []string

	if granularity == GranularityIntraday {
		matches, err := filepath.Glob(filepath.Join(s.baseDir, string(GranularityIntraday), symbol+"_*.parquet"))
		if err != nil {
			return false, errors.Wrap(errors.ErrCodeStorageDeleteFailed, "failed to list intraday files", err)
		}

		paths = matches
	} else {
		path := filepath.Join(s.baseDir, string(GranularityDaily), symbol+".parquet")
		if _, err := os.Stat(path); err == nil {
			paths = []string{path}
		}
	}

	if len(paths) == 0 {
		return false, nil
	}

	for _, path := range paths {
		if err := os.Remove(path); err != nil {
			return false, errors.Wrapf(errors.ErrCodeStorageDeleteFailed, err, "failed to delete %s", path)
		}

		s.logger.Info("deleted series file", zap.String("path", path))
	}

	return true, nil
}

// ExportCSV writes the stored series for (symbol, interval) to a CSV file
// under outDir and returns the file path.
func (s *Store) ExportCSV(symbol string, interval types.Interval, outDir string) (string, error) {
	if err := validateSymbol(symbol); err != nil {
		return "", err
	}

	symbol = strings.ToUpper(symbol)
	path := s.FilePath(symbol, interval)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", errors.Newf(errors.ErrCodeDataNotFound, "no stored data for %s (%s)", symbol, interval)
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", errors.Wrap(errors.ErrCodeStorageExportFailed, "failed to create export directory", err)
	}

	name := fmt.Sprintf("%s_daily.csv", symbol)
	if interval.IsIntraday() {
		name = fmt.Sprintf("%s_%s.csv", symbol, interval)
	}

	outPath := filepath.Join(outDir, name)

	query := fmt.Sprintf(`COPY (SELECT * FROM read_parquet('%s') ORDER BY time) TO '%s' (FORMAT CSV, HEADER)`, path, outPath)
	if _, err := s.db.Exec(query); err != nil {
		return "", errors.Wrapf(errors.ErrCodeStorageExportFailed, err, "failed to export %s to CSV", symbol)
	}

	s.logger.Info("exported series to CSV",
		zap.String("symbol", symbol),
		zap.String("path", outPath))

	return outPath, nil
}
