package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "spx-orb-trader/internal/errors"
	"spx-orb-trader/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ DataStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	-- One row per trading day, keyed by session date
	CREATE TABLE IF NOT EXISTS trading_days (
		date TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		reason TEXT,
		or_open REAL,
		or_high REAL,
		or_low REAL,
		or_close REAL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- At most one decision per day
	CREATE TABLE IF NOT EXISTS decisions (
		date TEXT PRIMARY KEY,
		setup TEXT NOT NULL,
		option_type TEXT NOT NULL,
		short_strike REAL NOT NULL,
		long_strike REAL NOT NULL,
		reference_price REAL NOT NULL,
		trigger_time DATETIME NOT NULL,
		fill_time DATETIME NOT NULL,
		gross_credit REAL NOT NULL,
		net_credit REAL NOT NULL,
		quantity INTEGER NOT NULL,
		risk_budget REAL NOT NULL,
		max_loss_per_spread REAL NOT NULL,
		equity_before REAL NOT NULL,
		order_id TEXT NOT NULL,
		order_status TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (date) REFERENCES trading_days(date)
	);

	-- Expiration settlement for a decided day
	CREATE TABLE IF NOT EXISTS settlements (
		date TEXT PRIMARY KEY,
		close_price REAL NOT NULL,
		settlement_value REAL NOT NULL,
		pnl_per_spread REAL NOT NULL,
		total_pnl REAL NOT NULL,
		settled_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (date) REFERENCES decisions(date)
	);

	CREATE INDEX IF NOT EXISTS idx_days_state ON trading_days(state);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// SaveDayState upserts the day's state and reason.
func (s *SQLiteStore) SaveDayState(ctx context.Context, date time.Time, state models.DayState, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trading_days (date, state, reason)
		VALUES (?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			state = excluded.state,
			reason = excluded.reason,
			updated_at = CURRENT_TIMESTAMP
	`, dateKey(date), string(state), reason)
	if err != nil {
		return fmt.Errorf("failed to save day state: %w", err)
	}
	return nil
}

// SaveOpeningRange attaches the captured range to the day's row.
func (s *SQLiteStore) SaveOpeningRange(ctx context.Context, date time.Time, or models.OpeningRange) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE trading_days
		SET or_open = ?, or_high = ?, or_low = ?, or_close = ?, updated_at = CURRENT_TIMESTAMP
		WHERE date = ?
	`, or.Open, or.High, or.Low, or.Close, dateKey(date))
	if err != nil {
		return fmt.Errorf("failed to save opening range: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no trading day row for %s", dateKey(date))
	}
	return nil
}

// GetDay returns the full day record, or nil when the date is unknown.
func (s *SQLiteStore) GetDay(ctx context.Context, date time.Time) (*models.DayResult, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT state, reason, or_open, or_high, or_low, or_close
		FROM trading_days WHERE date = ?
	`, dateKey(date))

	var (
		state, reason          string
		oOpen, oHigh, oLo, oCl sql.NullFloat64
	)
	if err := row.Scan(&state, &reason, &oOpen, &oHigh, &oLo, &oCl); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query day: %w", err)
	}

	day, err := time.Parse("2006-01-02", dateKey(date))
	if err != nil {
		return nil, err
	}

	result := &models.DayResult{
		Date:   day,
		State:  models.DayState(state),
		Reason: reason,
	}
	if oOpen.Valid {
		result.OpeningRange = &models.OpeningRange{
			Date:  day,
			Open:  oOpen.Float64,
			High:  oHigh.Float64,
			Low:   oLo.Float64,
			Close: oCl.Float64,
		}
	}

	decision, err := s.GetDecision(ctx, date)
	if err != nil && !apperrors.Is(err, apperrors.ErrNoDecision) {
		return nil, err
	}
	result.Decision = decision

	if decision != nil {
		settlement, err := s.getSettlement(ctx, date)
		if err != nil {
			return nil, err
		}
		result.Settlement = settlement
	}

	return result, nil
}

// SaveDecision records the day's one trade decision.
func (s *SQLiteStore) SaveDecision(ctx context.Context, d *models.TradeDecision) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO decisions (
			date, setup, option_type, short_strike, long_strike,
			reference_price, trigger_time, fill_time,
			gross_credit, net_credit, quantity,
			risk_budget, max_loss_per_spread, equity_before,
			order_id, order_status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, dateKey(d.Date), string(d.Setup), string(d.Spread.Type),
		d.Spread.ShortStrike, d.Spread.LongStrike,
		d.ReferencePrice, d.TriggerTime, d.FillTime,
		d.GrossCredit, d.NetCredit, d.Quantity,
		d.RiskBudget, d.MaxLossPerSpread, d.EquityBefore,
		d.OrderID, d.OrderStatus)
	if err != nil {
		return fmt.Errorf("failed to save decision: %w", err)
	}
	return nil
}

// GetDecision loads the day's decision. Returns ErrNoDecision when the
// day produced no trade.
func (s *SQLiteStore) GetDecision(ctx context.Context, date time.Time) (*models.TradeDecision, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT setup, option_type, short_strike, long_strike,
		       reference_price, trigger_time, fill_time,
		       gross_credit, net_credit, quantity,
		       risk_budget, max_loss_per_spread, equity_before,
		       order_id, order_status
		FROM decisions WHERE date = ?
	`, dateKey(date))

	var (
		d           models.TradeDecision
		setup, typ  string
		shortStrike float64
		longStrike  float64
	)
	err := row.Scan(&setup, &typ, &shortStrike, &longStrike,
		&d.ReferencePrice, &d.TriggerTime, &d.FillTime,
		&d.GrossCredit, &d.NetCredit, &d.Quantity,
		&d.RiskBudget, &d.MaxLossPerSpread, &d.EquityBefore,
		&d.OrderID, &d.OrderStatus)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.Wrapf(apperrors.ErrNoDecision, "date %s", dateKey(date))
		}
		return nil, fmt.Errorf("failed to query decision: %w", err)
	}

	d.Date, _ = time.Parse("2006-01-02", dateKey(date))
	d.Setup = models.SetupType(setup)
	d.Spread = models.Spread{
		Type:        models.OptionType(typ),
		ShortStrike: shortStrike,
		LongStrike:  longStrike,
	}
	return &d, nil
}

// SaveSettlement records the expiration outcome for a decided day.
func (s *SQLiteStore) SaveSettlement(ctx context.Context, date time.Time, settlement *models.SettlementResult) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO settlements (
			date, close_price, settlement_value, pnl_per_spread, total_pnl, settled_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`, dateKey(date), settlement.ClosePrice, settlement.SettlementValue,
		settlement.PnLPerSpread, settlement.TotalPnL, settlement.SettledAt)
	if err != nil {
		return fmt.Errorf("failed to save settlement: %w", err)
	}
	return nil
}

func (s *SQLiteStore) getSettlement(ctx context.Context, date time.Time) (*models.SettlementResult, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT close_price, settlement_value, pnl_per_spread, total_pnl, settled_at
		FROM settlements WHERE date = ?
	`, dateKey(date))

	var settlement models.SettlementResult
	err := row.Scan(&settlement.ClosePrice, &settlement.SettlementValue,
		&settlement.PnLPerSpread, &settlement.TotalPnL, &settlement.SettledAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query settlement: %w", err)
	}
	return &settlement, nil
}

// GetHistory returns day records between from and to, newest first.
func (s *SQLiteStore) GetHistory(ctx context.Context, from, to time.Time, limit int) ([]models.DayResult, error) {
	query := `
		SELECT date FROM trading_days
		WHERE date >= ? AND date <= ?
		ORDER BY date DESC
	`
	args := []interface{}{dateKey(from), dateKey(to)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan date: %w", err)
		}
		day, err := time.Parse("2006-01-02", key)
		if err != nil {
			return nil, err
		}
		dates = append(dates, day)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	results := make([]models.DayResult, 0, len(dates))
	for _, day := range dates {
		record, err := s.GetDay(ctx, day)
		if err != nil {
			return nil, err
		}
		if record != nil {
			results = append(results, *record)
		}
	}
	return results, nil
}
