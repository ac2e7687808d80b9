// Package archive keeps a SQLite history of shed shells and performed
// actions. It backs mint dedupe across restarts and the CLI history views.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"hermitbase/internal/life"
	"hermitbase/internal/logging"
	"hermitbase/internal/molt"
)

// MemoryPath opens a private in-memory archive.
const MemoryPath = ":memory:"

// Archive is the SQLite-backed history.
type Archive struct {
	db   *sql.DB
	path string
}

// Shell is one archived transition.
type Shell struct {
	ID              string
	Generation      int
	BornAt          time.Time
	EndedAt         time.Time
	OutgoingAddress string
	IncomingAddress string
	ActionCount     int
	ValueMoved      *big.Int
	FinalBalance    *big.Int
	MintTxHash      string
	TokenID         string
	MintError       string
	LifeSummary     string
}

// Stats summarizes the archive.
type Stats struct {
	Shells        int
	Minted        int
	Actions       int
	LedgerActions int
}

// Open opens or creates the archive at path.
func Open(ctx context.Context, path string) (*Archive, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection keeps :memory: a single database and serializes writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		logging.Get(logging.CategoryArchive).Debug("Failed to set sqlite busy_timeout: %v", err)
	}
	if path != MemoryPath {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
			logging.Get(logging.CategoryArchive).Debug("Failed to set sqlite journal_mode=WAL: %v", err)
		}
	}

	if err := applyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	logging.Archive("Archive opened at %s", path)
	return &Archive{db: db, path: path}, nil
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// RecordShell archives a transition summary. Recording the same generation
// twice updates the row, keeping an earlier mint if the newer one has none.
func (a *Archive) RecordShell(ctx context.Context, sum molt.Summary) error {
	_, err := a.db.ExecContext(ctx, `
INSERT INTO shells (
    id, generation, born_at, ended_at, outgoing_address, incoming_address,
    action_count, value_moved, final_balance, mint_tx, token_id, mint_error, life_summary
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (generation, born_at) DO UPDATE SET
    ended_at = excluded.ended_at,
    incoming_address = excluded.incoming_address,
    action_count = excluded.action_count,
    value_moved = excluded.value_moved,
    final_balance = excluded.final_balance,
    mint_tx = CASE WHEN excluded.mint_tx <> '' THEN excluded.mint_tx ELSE shells.mint_tx END,
    token_id = CASE WHEN excluded.mint_tx <> '' THEN excluded.token_id ELSE shells.token_id END,
    mint_error = excluded.mint_error,
    life_summary = excluded.life_summary`,
		uuid.NewString(),
		sum.OutgoingGeneration,
		sum.BornAt.UTC().UnixMilli(),
		sum.EndedAt.UTC().UnixMilli(),
		sum.OutgoingAddress,
		sum.IncomingAddress,
		sum.ActionCount,
		decimal(sum.ValueMoved),
		decimal(sum.FinalBalance),
		sum.MintTxHash,
		sum.TokenID,
		sum.MintError,
		sum.LifeSummary,
	)
	if err != nil {
		return fmt.Errorf("failed to record shell #%d: %w", sum.OutgoingGeneration, err)
	}
	logging.Archive("Archived shell #%d (mint=%q)", sum.OutgoingGeneration, sum.MintTxHash)
	return nil
}

// LookupMint implements molt.MintLedger.
func (a *Archive) LookupMint(ctx context.Context, generation int, bornAt time.Time) (molt.MintRecord, bool, error) {
	var rec molt.MintRecord
	err := a.db.QueryRowContext(ctx,
		"SELECT mint_tx, token_id FROM shells WHERE generation = ? AND born_at = ? AND mint_tx <> ''",
		generation, bornAt.UTC().UnixMilli(),
	).Scan(&rec.EffectID, &rec.TokenID)
	if err == sql.ErrNoRows {
		return molt.MintRecord{}, false, nil
	}
	if err != nil {
		return molt.MintRecord{}, false, fmt.Errorf("failed to look up mint: %w", err)
	}
	return rec, true, nil
}

// ListShells returns archived shells, newest generation first. limit <= 0
// returns all of them.
func (a *Archive) ListShells(ctx context.Context, limit int) ([]Shell, error) {
	query := `
SELECT id, generation, born_at, ended_at, outgoing_address, incoming_address,
       action_count, value_moved, final_balance, mint_tx, token_id, mint_error, life_summary
FROM shells ORDER BY generation DESC, born_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list shells: %w", err)
	}
	defer rows.Close()

	var shells []Shell
	for rows.Next() {
		var (
			s              Shell
			born, ended    int64
			value, balance string
		)
		if err := rows.Scan(&s.ID, &s.Generation, &born, &ended, &s.OutgoingAddress, &s.IncomingAddress,
			&s.ActionCount, &value, &balance, &s.MintTxHash, &s.TokenID, &s.MintError, &s.LifeSummary); err != nil {
			return nil, fmt.Errorf("failed to scan shell: %w", err)
		}
		s.BornAt = time.UnixMilli(born).UTC()
		s.EndedAt = time.UnixMilli(ended).UTC()
		s.ValueMoved = parseDecimal(value)
		s.FinalBalance = parseDecimal(balance)
		shells = append(shells, s)
	}
	return shells, rows.Err()
}

// RecordAction journals one performed action.
func (a *Archive) RecordAction(ctx context.Context, generation int, res life.Result, at time.Time) error {
	_, err := a.db.ExecContext(ctx,
		"INSERT INTO actions (id, generation, action, description, effect_id, value, performed_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		uuid.NewString(), generation, res.Action, res.Description, res.EffectID, decimal(res.Value), at.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record action: %w", err)
	}
	return nil
}

// Stats counts archived rows.
func (a *Archive) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := a.db.QueryRowContext(ctx, `
SELECT
    (SELECT COUNT(*) FROM shells),
    (SELECT COUNT(*) FROM shells WHERE mint_tx <> ''),
    (SELECT COUNT(*) FROM actions),
    (SELECT COUNT(*) FROM actions WHERE effect_id <> '')`,
	).Scan(&s.Shells, &s.Minted, &s.Actions, &s.LedgerActions)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read archive stats: %w", err)
	}
	return s, nil
}

func decimal(x *big.Int) string {
	if x == nil {
		return "0"
	}
	return x.String()
}

func parseDecimal(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return v
}
