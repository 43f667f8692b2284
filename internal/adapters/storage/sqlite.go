package storage

// sqlite.go: persistencia de estrategias, investors y apuestas.
// El mismo código sirve a SQLite y a Postgres (postgres.go): solo cambian el
// schema y los placeholders.
//
// Estrategia:
//   - `strategies`: una fila por estrategia; condiciones y parámetros como JSON.
//   - `investors`: snapshot del ledger (balance, contadores, flags). UPSERT.
//   - `wagers`: apuestas pending y liquidadas. El historial de un investor son
//     sus apuestas liquidadas en orden de liquidación.
//   - Cache en memoria del último snapshot guardado por investor: un ciclo sin
//     cambios no escribe nada.

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alejandrodnm/stakebot/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS strategies (
    id                 TEXT PRIMARY KEY,
    name               TEXT NOT NULL DEFAULT '',
    type               TEXT NOT NULL,
    sizing             TEXT NOT NULL DEFAULT '',
    params             TEXT NOT NULL DEFAULT '{}',
    conditions         TEXT NOT NULL DEFAULT '{}',
    linked_strategy_id TEXT NOT NULL DEFAULT '',
    updated_at         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS investors (
    id                    TEXT PRIMARY KEY,
    name                  TEXT NOT NULL DEFAULT '',
    strategy_id           TEXT NOT NULL,
    starting_balance      REAL NOT NULL DEFAULT 0,
    current_balance       REAL NOT NULL DEFAULT 0,
    status                TEXT NOT NULL DEFAULT 'stopped',
    bet_percentage        REAL NOT NULL DEFAULT 0,
    max_bets_per_week     INTEGER NOT NULL DEFAULT 0,
    bets_placed_this_week INTEGER NOT NULL DEFAULT 0,
    is_recovery_active    INTEGER NOT NULL DEFAULT 0,
    career_wins           INTEGER NOT NULL DEFAULT 0,
    career_losses         INTEGER NOT NULL DEFAULT 0,
    career_pushes         INTEGER NOT NULL DEFAULT 0,
    current_streak        INTEGER NOT NULL DEFAULT 0,
    updated_at            TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS wagers (
    id                TEXT PRIMARY KEY,
    investor_id       TEXT NOT NULL,
    opportunity_id    TEXT NOT NULL,
    strategy_id       TEXT NOT NULL,
    stake             REAL NOT NULL,
    odds_at_placement INTEGER NOT NULL DEFAULT 0,
    outcome           TEXT NOT NULL DEFAULT 'pending',
    payout            REAL NOT NULL DEFAULT 0,
    placed_at         TEXT NOT NULL,
    settled_at        TEXT
);

CREATE INDEX IF NOT EXISTS idx_wagers_investor ON wagers(investor_id, outcome);
CREATE INDEX IF NOT EXISTS idx_wagers_placed   ON wagers(placed_at);
`

// investorRow es la parte persistida de un investor (sin historial).
// Es comparable, así que sirve también como entrada de la cache.
type investorRow struct {
	ID                 string
	Name               string
	StrategyID         string
	StartingBalance    float64
	CurrentBalance     float64
	Status             domain.InvestorStatus
	BetPercentage      float64
	MaxBetsPerWeek     int
	BetsPlacedThisWeek int
	IsRecoveryActive   bool
	CareerWins         int
	CareerLosses       int
	CareerPushes       int
	CurrentStreak      int
}

func rowOf(inv domain.Investor) investorRow {
	return investorRow{
		ID:                 inv.ID,
		Name:               inv.Name,
		StrategyID:         inv.StrategyID,
		StartingBalance:    inv.StartingBalance,
		CurrentBalance:     inv.CurrentBalance,
		Status:             inv.Status,
		BetPercentage:      inv.BetPercentage,
		MaxBetsPerWeek:     inv.MaxBetsPerWeek,
		BetsPlacedThisWeek: inv.BetsPlacedThisWeek,
		IsRecoveryActive:   inv.IsRecoveryActive,
		CareerWins:         inv.CareerWins,
		CareerLosses:       inv.CareerLosses,
		CareerPushes:       inv.CareerPushes,
		CurrentStreak:      inv.CurrentStreak,
	}
}

// SQLStorage implementa ports.Storage sobre database/sql.
type SQLStorage struct {
	db     *sql.DB
	rebind func(string) string    // placeholders ? → los del driver
	cache  map[string]investorRow // investorID → último snapshot guardado
	mu     sync.Mutex
}

// Open elige el backend por el DSN: postgres:// o postgresql:// abren
// Postgres, cualquier otra cosa es una ruta SQLite.
func Open(dsn string) (*SQLStorage, error) {
	if isPostgresDSN(dsn) {
		return NewPostgresStorage(dsn)
	}
	return NewSQLiteStorage(dsn)
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada y aplica el
// schema. SQLite es pure Go, sin CGo.
func NewSQLiteStorage(path string) (*SQLStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	return newSQLStorage(db, func(q string) string { return q }), nil
}

func newSQLStorage(db *sql.DB, rebind func(string) string) *SQLStorage {
	return &SQLStorage{
		db:     db,
		rebind: rebind,
		cache:  make(map[string]investorRow),
	}
}

// Close cierra la conexión a la base de datos.
func (s *SQLStorage) Close() error {
	return s.db.Close()
}

// --- strategies ---

// SaveStrategy hace upsert de la definición completa.
func (s *SQLStorage) SaveStrategy(ctx context.Context, st domain.Strategy) error {
	params, err := json.Marshal(st.Params)
	if err != nil {
		return fmt.Errorf("storage.SaveStrategy: encode params: %w", err)
	}
	conditions, err := json.Marshal(st.Conditions)
	if err != nil {
		return fmt.Errorf("storage.SaveStrategy: encode conditions: %w", err)
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO strategies (id, name, type, sizing, params, conditions, linked_strategy_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name               = excluded.name,
			type               = excluded.type,
			sizing             = excluded.sizing,
			params             = excluded.params,
			conditions         = excluded.conditions,
			linked_strategy_id = excluded.linked_strategy_id,
			updated_at         = excluded.updated_at
	`), st.ID, st.Name, string(st.Type), string(st.Sizing), string(params), string(conditions),
		st.LinkedStrategyID, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("storage.SaveStrategy: upsert %s: %w", st.ID, err)
	}
	return nil
}

const strategyColumns = `id, name, type, sizing, params, conditions, linked_strategy_id`

// GetStrategy devuelve la estrategia por id.
func (s *SQLStorage) GetStrategy(ctx context.Context, id string) (domain.Strategy, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+strategyColumns+` FROM strategies WHERE id = ?`), id)
	st, err := scanStrategy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Strategy{}, fmt.Errorf("storage.GetStrategy: %q: %w", id, domain.ErrUnknownStrategy)
	}
	if err != nil {
		return domain.Strategy{}, fmt.Errorf("storage.GetStrategy: %w", err)
	}
	return st, nil
}

// ListStrategies devuelve todas las estrategias ordenadas por id.
func (s *SQLStorage) ListStrategies(ctx context.Context) ([]domain.Strategy, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+strategyColumns+` FROM strategies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("storage.ListStrategies: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Strategy
	for rows.Next() {
		st, err := scanStrategy(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.ListStrategies: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStrategy(r scanner) (domain.Strategy, error) {
	var st domain.Strategy
	var typ, sizing, params, conditions string
	if err := r.Scan(&st.ID, &st.Name, &typ, &sizing, &params, &conditions, &st.LinkedStrategyID); err != nil {
		return domain.Strategy{}, err
	}
	st.Type = domain.StrategyType(typ)
	st.Sizing = domain.SizingAlgorithm(sizing)
	if err := json.Unmarshal([]byte(params), &st.Params); err != nil {
		return domain.Strategy{}, fmt.Errorf("decode params of %s: %w", st.ID, err)
	}
	if err := json.Unmarshal([]byte(conditions), &st.Conditions); err != nil {
		return domain.Strategy{}, fmt.Errorf("decode conditions of %s: %w", st.ID, err)
	}
	return st, nil
}

// --- investors ---

// SaveInvestor hace upsert del snapshot. Si no cambió desde la última
// escritura no toca la DB.
func (s *SQLStorage) SaveInvestor(ctx context.Context, inv domain.Investor) error {
	row := rowOf(inv)

	s.mu.Lock()
	prev, cached := s.cache[inv.ID]
	s.mu.Unlock()
	if cached && prev == row {
		return nil
	}

	updated := inv.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO investors
			(id, name, strategy_id, starting_balance, current_balance, status,
			 bet_percentage, max_bets_per_week, bets_placed_this_week, is_recovery_active,
			 career_wins, career_losses, career_pushes, current_streak, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name                  = excluded.name,
			strategy_id           = excluded.strategy_id,
			starting_balance      = excluded.starting_balance,
			current_balance       = excluded.current_balance,
			status                = excluded.status,
			bet_percentage        = excluded.bet_percentage,
			max_bets_per_week     = excluded.max_bets_per_week,
			bets_placed_this_week = excluded.bets_placed_this_week,
			is_recovery_active    = excluded.is_recovery_active,
			career_wins           = excluded.career_wins,
			career_losses         = excluded.career_losses,
			career_pushes         = excluded.career_pushes,
			current_streak        = excluded.current_streak,
			updated_at            = excluded.updated_at
	`),
		row.ID, row.Name, row.StrategyID, row.StartingBalance, row.CurrentBalance, string(row.Status),
		row.BetPercentage, row.MaxBetsPerWeek, row.BetsPlacedThisWeek, boolToInt(row.IsRecoveryActive),
		row.CareerWins, row.CareerLosses, row.CareerPushes, row.CurrentStreak, formatTime(updated),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveInvestor: upsert %s: %w", inv.ID, err)
	}

	s.mu.Lock()
	s.cache[inv.ID] = row
	s.mu.Unlock()
	return nil
}

const investorColumns = `id, name, strategy_id, starting_balance, current_balance, status,
	bet_percentage, max_bets_per_week, bets_placed_this_week, is_recovery_active,
	career_wins, career_losses, career_pushes, current_streak, updated_at`

// GetInvestor devuelve el investor con su historial de apuestas liquidadas.
func (s *SQLStorage) GetInvestor(ctx context.Context, id string) (domain.Investor, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+investorColumns+` FROM investors WHERE id = ?`), id)
	inv, err := s.scanInvestor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Investor{}, fmt.Errorf("storage.GetInvestor: %q: %w", id, domain.ErrUnknownInvestor)
	}
	if err != nil {
		return domain.Investor{}, fmt.Errorf("storage.GetInvestor: %w", err)
	}

	inv.BetHistory, err = s.history(ctx, id)
	if err != nil {
		return domain.Investor{}, fmt.Errorf("storage.GetInvestor: %w", err)
	}
	return inv, nil
}

// ListInvestors devuelve todos los investors (con historial) ordenados por id.
func (s *SQLStorage) ListInvestors(ctx context.Context) ([]domain.Investor, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+investorColumns+` FROM investors ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("storage.ListInvestors: query: %w", err)
	}

	var out []domain.Investor
	for rows.Next() {
		inv, err := s.scanInvestor(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("storage.ListInvestors: %w", err)
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("storage.ListInvestors: %w", err)
	}
	// con una sola conexión hay que cerrar el cursor antes de la siguiente query
	rows.Close()

	for i := range out {
		out[i].BetHistory, err = s.history(ctx, out[i].ID)
		if err != nil {
			return nil, fmt.Errorf("storage.ListInvestors: %w", err)
		}
	}
	return out, nil
}

// scanInvestor lee una fila y refresca la cache con lo que hay en disco.
func (s *SQLStorage) scanInvestor(r scanner) (domain.Investor, error) {
	var inv domain.Investor
	var status, updated string
	var recovery int
	if err := r.Scan(
		&inv.ID, &inv.Name, &inv.StrategyID, &inv.StartingBalance, &inv.CurrentBalance, &status,
		&inv.BetPercentage, &inv.MaxBetsPerWeek, &inv.BetsPlacedThisWeek, &recovery,
		&inv.CareerWins, &inv.CareerLosses, &inv.CareerPushes, &inv.CurrentStreak, &updated,
	); err != nil {
		return domain.Investor{}, err
	}
	inv.Status = domain.InvestorStatus(status)
	inv.IsRecoveryActive = recovery == 1
	inv.UpdatedAt = parseTime(updated)

	s.mu.Lock()
	s.cache[inv.ID] = rowOf(inv)
	s.mu.Unlock()
	return inv, nil
}

// history devuelve las apuestas liquidadas en orden de liquidación.
func (s *SQLStorage) history(ctx context.Context, investorID string) ([]domain.Wager, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+wagerColumns+` FROM wagers
		WHERE investor_id = ? AND outcome != 'pending'
		ORDER BY settled_at, id`), investorID)
	if err != nil {
		return nil, fmt.Errorf("history of %s: %w", investorID, err)
	}
	defer rows.Close()
	return scanWagers(rows)
}

// --- wagers ---

// SaveWager hace upsert de la apuesta (al colocarla y al liquidarla).
func (s *SQLStorage) SaveWager(ctx context.Context, w domain.Wager) error {
	var settled sql.NullString
	if w.SettledAt != nil {
		settled = sql.NullString{String: formatTime(*w.SettledAt), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO wagers
			(id, investor_id, opportunity_id, strategy_id, stake, odds_at_placement,
			 outcome, payout, placed_at, settled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			outcome    = excluded.outcome,
			payout     = excluded.payout,
			settled_at = excluded.settled_at
	`), w.ID, w.InvestorID, w.OpportunityID, w.StrategyID, w.Stake, w.OddsAtPlacement,
		string(w.Outcome), w.Payout, formatTime(w.PlacedAt), settled)
	if err != nil {
		return fmt.Errorf("storage.SaveWager: upsert %s: %w", w.ID, err)
	}
	return nil
}

const wagerColumns = `id, investor_id, opportunity_id, strategy_id, stake, odds_at_placement,
	outcome, payout, placed_at, settled_at`

// GetWager devuelve la apuesta por id.
func (s *SQLStorage) GetWager(ctx context.Context, id string) (domain.Wager, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+wagerColumns+` FROM wagers WHERE id = ?`), id)
	if err != nil {
		return domain.Wager{}, fmt.Errorf("storage.GetWager: query: %w", err)
	}
	defer rows.Close()

	ws, err := scanWagers(rows)
	if err != nil {
		return domain.Wager{}, fmt.Errorf("storage.GetWager: %w", err)
	}
	if len(ws) == 0 {
		return domain.Wager{}, fmt.Errorf("storage.GetWager: %q: %w", id, domain.ErrUnknownWager)
	}
	return ws[0], nil
}

// ListWagers devuelve las apuestas del investor en orden de colocación.
// Un outcome vacío devuelve todas.
func (s *SQLStorage) ListWagers(ctx context.Context, investorID string, outcome domain.Outcome) ([]domain.Wager, error) {
	query := `SELECT ` + wagerColumns + ` FROM wagers WHERE investor_id = ?`
	args := []any{investorID}
	if outcome != "" {
		query += ` AND outcome = ?`
		args = append(args, string(outcome))
	}
	query += ` ORDER BY placed_at, id`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("storage.ListWagers: query: %w", err)
	}
	defer rows.Close()

	ws, err := scanWagers(rows)
	if err != nil {
		return nil, fmt.Errorf("storage.ListWagers: %w", err)
	}
	return ws, nil
}

func scanWagers(rows *sql.Rows) ([]domain.Wager, error) {
	var out []domain.Wager
	for rows.Next() {
		var w domain.Wager
		var outcome, placed string
		var settled sql.NullString
		if err := rows.Scan(
			&w.ID, &w.InvestorID, &w.OpportunityID, &w.StrategyID, &w.Stake, &w.OddsAtPlacement,
			&outcome, &w.Payout, &placed, &settled,
		); err != nil {
			return nil, fmt.Errorf("scan wager: %w", err)
		}
		w.Outcome = domain.Outcome(outcome)
		w.PlacedAt = parseTime(placed)
		if settled.Valid {
			t := parseTime(settled.String)
			w.SettledAt = &t
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// --- helpers internos ---

// timeLayout es RFC3339 con nanosegundos de ancho fijo: en UTC el orden
// lexicográfico coincide con el temporal.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
