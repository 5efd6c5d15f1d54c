// Package export writes aggregated scenario trees to a SQLite database, one
// row per node and one row per node result.
package export

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"iter"
	"sync"

	"github.com/agentic-research/impactree/internal/impact"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS scenarios (
	name TEXT PRIMARY KEY,
	ord INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS nodes (
	scenario TEXT NOT NULL,
	name TEXT NOT NULL,
	parent TEXT,
	depth INTEGER NOT NULL,
	path TEXT NOT NULL,
	ord INTEGER NOT NULL,
	imputed INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (scenario, name)
) WITHOUT ROWID;
CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(scenario, parent);

CREATE TABLE IF NOT EXISTS results (
	scenario TEXT NOT NULL,
	node TEXT NOT NULL,
	indicator TEXT NOT NULL,
	magnitude REAL NOT NULL,
	unit TEXT,
	samples JSON,
	PRIMARY KEY (scenario, node, indicator)
) WITHOUT ROWID;
`

// SQLiteWriter exports trees. It is safe for concurrent use.
type SQLiteWriter struct {
	db  *sql.DB
	mu  sync.Mutex
	ord int
}

// NewSQLiteWriter opens (or creates) dbPath and initializes the schema.
func NewSQLiteWriter(dbPath string) (*SQLiteWriter, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = MEMORY"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteWriter{db: db}, nil
}

// DB exposes the underlying handle for queries.
func (w *SQLiteWriter) DB() *sql.DB { return w.db }

// WriteTree exports every node of one aggregated scenario tree in a single
// transaction. Writing the same scenario twice replaces it.
func (w *SQLiteWriter) WriteTree(tree *impact.Tree) (err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	sc := tree.Scenario()
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, q := range []string{
		`DELETE FROM results WHERE scenario = ?`,
		`DELETE FROM nodes WHERE scenario = ?`,
	} {
		if _, err = tx.Exec(q, sc); err != nil {
			return fmt.Errorf("clear scenario %q: %w", sc, err)
		}
	}
	if _, err = tx.Exec(`INSERT OR REPLACE INTO scenarios (name, ord) VALUES (?, ?)`, sc, w.ord); err != nil {
		return fmt.Errorf("insert scenario %q: %w", sc, err)
	}

	stmtNode, err := tx.Prepare(`
		INSERT INTO nodes (scenario, name, parent, depth, path, ord, imputed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer func() { _ = stmtNode.Close() }()

	stmtResult, err := tx.Prepare(`
		INSERT INTO results (scenario, node, indicator, magnitude, unit, samples)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer func() { _ = stmtResult.Close() }()

	ord := 0
	for n := range tree.All() {
		var parent sql.NullString
		if p := n.Parent(); p != nil {
			parent = sql.NullString{String: p.Name(), Valid: true}
		}
		if _, err = stmtNode.Exec(sc, n.Name(), parent, n.Depth(), n.PathString(), ord, n.Imputed()); err != nil {
			return fmt.Errorf("insert node %s: %w", n.PathString(), err)
		}
		ord++

		results := n.Results()
		for _, ind := range results.Indicators() {
			v := results[ind]
			var samples any
			if v.Samples != nil {
				data, mErr := json.Marshal(v.Samples)
				if mErr != nil {
					return mErr
				}
				samples = string(data)
			}
			if _, err = stmtResult.Exec(sc, n.Name(), ind, v.Magnitude, v.Unit.Symbol, samples); err != nil {
				return fmt.Errorf("insert result %s [%s]: %w", n.PathString(), ind, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}
	w.ord++
	return nil
}

// WriteAll exports every tree of a result set in order.
func (w *SQLiteWriter) WriteAll(trees iter.Seq2[string, *impact.Tree]) error {
	for _, t := range trees {
		if err := w.WriteTree(t); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database.
func (w *SQLiteWriter) Close() error {
	return w.db.Close()
}
