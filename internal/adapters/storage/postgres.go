package storage

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
)

// Mismas tablas que SQLite. Los tiempos siguen como TEXT de ancho fijo para
// compartir el código de lectura; los importes van en DOUBLE PRECISION
// (REAL en Postgres es float4).
const postgresSchema = `
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
    starting_balance      DOUBLE PRECISION NOT NULL DEFAULT 0,
    current_balance       DOUBLE PRECISION NOT NULL DEFAULT 0,
    status                TEXT NOT NULL DEFAULT 'stopped',
    bet_percentage        DOUBLE PRECISION NOT NULL DEFAULT 0,
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
    stake             DOUBLE PRECISION NOT NULL,
    odds_at_placement INTEGER NOT NULL DEFAULT 0,
    outcome           TEXT NOT NULL DEFAULT 'pending',
    payout            DOUBLE PRECISION NOT NULL DEFAULT 0,
    placed_at         TEXT NOT NULL,
    settled_at        TEXT
);

CREATE INDEX IF NOT EXISTS idx_wagers_investor ON wagers(investor_id, outcome);
CREATE INDEX IF NOT EXISTS idx_wagers_placed   ON wagers(placed_at);
`

// NewPostgresStorage conecta a Postgres y aplica el schema.
func NewPostgresStorage(dsn string) (*SQLStorage, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage.NewPostgresStorage: open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewPostgresStorage: ping: %w", err)
	}
	if _, err := db.Exec(postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewPostgresStorage: apply schema: %w", err)
	}

	return newSQLStorage(db, rebindDollar), nil
}

func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// rebindDollar convierte los placeholders ? en $1, $2, ...
// Las queries del paquete no llevan ? dentro de literales.
func rebindDollar(query string) string {
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteByte(query[i])
	}
	return sb.String()
}
