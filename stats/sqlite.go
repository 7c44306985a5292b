package stats

import (
	"database/sql"
	"fmt"
	"os"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// SQLiteDumper appends every dump of the tree to a SQLite database, one row per
// scalar value. Consecutive dumps are told apart by their phase number.
type SQLiteDumper struct {
	*sql.DB

	fileName string
	phase    int
	closed   bool
}

// NewSQLiteDumper creates the database <name>.sqlite3. An empty name picks a
// unique one. The database is closed when the program exits through atexit.
func NewSQLiteDumper(name string) (*SQLiteDumper, error) {
	if name == "" {
		name = "zsim_stats_" + xid.New().String()
	}

	fileName := name + ".sqlite3"
	if _, err := os.Stat(fileName); err == nil {
		return nil, fmt.Errorf("file %s already exists", fileName)
	}

	db, err := sql.Open("sqlite3", fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", fileName, err)
	}

	d := &SQLiteDumper{DB: db, fileName: fileName}

	if err := d.createTable(); err != nil {
		_ = db.Close()
		return nil, err
	}

	atexit.Register(func() { _ = d.Close() })

	return d, nil
}

// FileName returns the path of the database file.
func (d *SQLiteDumper) FileName() string {
	return d.fileName
}

func (d *SQLiteDumper) createTable() error {
	_, err := d.Exec(`
		CREATE TABLE IF NOT EXISTS stats (
			phase INTEGER NOT NULL,
			path  TEXT    NOT NULL,
			idx   INTEGER NOT NULL,
			label TEXT,
			value INTEGER NOT NULL,
			descr TEXT
		)`)
	if err != nil {
		return fmt.Errorf("failed to create stats table: %w", err)
	}

	return nil
}

// Dump writes one row per scalar value under root in a single transaction.
func (d *SQLiteDumper) Dump(root *Aggregate) error {
	tx, err := d.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO stats (phase, path, idx, label, value, descr)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	var walkErr error
	Walk(root, func(s Sample) {
		if walkErr != nil {
			return
		}

		_, walkErr = stmt.Exec(d.phase, s.Path, s.Index, s.Label,
			int64(s.Value), s.Desc)
	})

	if walkErr != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to insert stats: %w", walkErr)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit stats: %w", err)
	}

	d.phase++

	return nil
}

// Close closes the database. It is safe to call more than once.
func (d *SQLiteDumper) Close() error {
	if d.closed {
		return nil
	}

	d.closed = true

	return d.DB.Close()
}
