package sqlite

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/robalyx/socialgraph/internal/export/fileutil"
	"github.com/robalyx/socialgraph/internal/graph"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// FileName is the name of the exported database.
const FileName = "graph.db"

const batchSize = 1000

const schema = `
	CREATE TABLE nodes (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL,
		image TEXT NOT NULL,
		anonymous INTEGER NOT NULL
	);
	CREATE TABLE edges (
		source TEXT NOT NULL,
		target TEXT NOT NULL,
		weight INTEGER NOT NULL,
		PRIMARY KEY (source, target)
	);
	CREATE TABLE meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
`

// Exporter handles exporting graphs to SQLite databases.
type Exporter struct {
	outDir string
}

// New creates a new SQLite exporter instance.
func New(outDir string) *Exporter {
	return &Exporter{outDir: outDir}
}

// Path returns the path of the exported database.
func (e *Exporter) Path() string {
	return filepath.Join(e.outDir, FileName)
}

// Export writes the graph to a fresh SQLite database that replaces the previous one.
func (e *Exporter) Export(g *graph.Graph) error {
	return fileutil.ReplaceFile(e.Path(), func(tmpPath string) error {
		return createDB(tmpPath, g)
	})
}

// createDB fills an empty SQLite database with the nodes and edges of the graph.
func createDB(path string, g *graph.Graph) error {
	conn, err := sqlite.OpenConn(path, sqlite.OpenCreate|sqlite.OpenReadWrite)
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}
	defer conn.Close()

	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	// Insert nodes in batches
	for i := 0; i < len(g.Nodes); i += batchSize {
		end := min(i+batchSize, len(g.Nodes))

		err := inTransaction(conn, func() error {
			for _, node := range g.Nodes[i:end] {
				if err := sqlitex.Execute(conn,
					"INSERT INTO nodes (id, label, image, anonymous) VALUES (?, ?, ?, ?)",
					&sqlitex.ExecOptions{
						Args: []any{node.ID, node.Label, node.Image, boolToInt(node.Anonymous)},
					}); err != nil {
					return fmt.Errorf("failed to insert node: %w", err)
				}
			}

			return nil
		})
		if err != nil {
			return err
		}
	}

	// Insert edges in batches
	for i := 0; i < len(g.Edges); i += batchSize {
		end := min(i+batchSize, len(g.Edges))

		err := inTransaction(conn, func() error {
			for _, edge := range g.Edges[i:end] {
				if err := sqlitex.Execute(conn,
					"INSERT INTO edges (source, target, weight) VALUES (?, ?, ?)",
					&sqlitex.ExecOptions{
						Args: []any{edge.Source, edge.Target, edge.Weight},
					}); err != nil {
					return fmt.Errorf("failed to insert edge: %w", err)
				}
			}

			return nil
		})
		if err != nil {
			return err
		}
	}

	err = sqlitex.Execute(conn, "INSERT INTO meta (key, value) VALUES (?, ?)", &sqlitex.ExecOptions{
		Args: []any{"generated_at", g.GeneratedAt.UTC().Format(time.RFC3339)},
	})
	if err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	return nil
}

// inTransaction runs fn between BEGIN and COMMIT, rolling back on error.
func inTransaction(conn *sqlite.Conn, fn func() error) error {
	if err := sqlitex.Execute(conn, "BEGIN TRANSACTION", nil); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(); err != nil {
		_ = sqlitex.Execute(conn, "ROLLBACK", nil)
		return err
	}

	if err := sqlitex.Execute(conn, "COMMIT", nil); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}

	return 0
}
