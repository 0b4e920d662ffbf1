// Package snapshot captures and restores all rows of one game across a fixed
// set of SQLite tables.
package snapshot

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/chronicle/internal/ir"
	"github.com/roach88/chronicle/internal/store"
)

// Table names one game-scoped table and the column holding the game id.
type Table struct {
	Name       string
	GameColumn string
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type tableInfo struct {
	Table
	columns []string
	known   map[string]bool
}

// Gateway implements engine.SnapshotGateway over SQL tables.
//
// Tables are listed parents first. Restore deletes in reverse order and
// inserts in forward order so foreign keys hold throughout.
type Gateway struct {
	store  *store.Store
	tables []tableInfo
}

// New validates the tables against the live schema and returns a Gateway.
// Tables must already exist. Columns declared REAL are rejected because
// floats are not replay-safe, and BLOB columns because snapshots hold no
// byte-string values.
func New(ctx context.Context, s *store.Store, tables ...Table) (*Gateway, error) {
	g := &Gateway{store: s}
	seen := make(map[string]bool)

	for _, t := range tables {
		if !identRe.MatchString(t.Name) || !identRe.MatchString(t.GameColumn) {
			return nil, fmt.Errorf("snapshot table %q: invalid identifier", t.Name)
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("snapshot table %q listed twice", t.Name)
		}
		seen[t.Name] = true

		info, err := describe(ctx, s.Conn(ctx), t)
		if err != nil {
			return nil, err
		}
		g.tables = append(g.tables, info)
	}
	return g, nil
}

func describe(ctx context.Context, conn store.DBTX, t Table) (tableInfo, error) {
	rows, err := conn.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", t.Name))
	if err != nil {
		return tableInfo{}, fmt.Errorf("describe %s: %w", t.Name, err)
	}
	defer rows.Close()

	info := tableInfo{Table: t, known: make(map[string]bool)}
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue any
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return tableInfo{}, fmt.Errorf("describe %s: %w", t.Name, err)
		}
		switch strings.ToUpper(colType) {
		case "REAL", "FLOAT", "DOUBLE", "NUMERIC", "DATETIME", "TIMESTAMP", "BLOB":
			return tableInfo{}, fmt.Errorf("snapshot table %s: column %s has unsupported type %s", t.Name, name, colType)
		}
		info.columns = append(info.columns, name)
		info.known[name] = true
	}
	if err := rows.Err(); err != nil {
		return tableInfo{}, fmt.Errorf("describe %s: %w", t.Name, err)
	}

	if len(info.columns) == 0 {
		return tableInfo{}, fmt.Errorf("snapshot table %s does not exist", t.Name)
	}
	if !info.known[t.GameColumn] {
		return tableInfo{}, fmt.Errorf("snapshot table %s has no column %s", t.Name, t.GameColumn)
	}
	return info, nil
}

// Tables returns the configured table names in order.
func (g *Gateway) Tables() []string {
	names := make([]string, len(g.tables))
	for i, t := range g.tables {
		names[i] = t.Name
	}
	return names
}

// Capture returns every row of the game as {table: [row, ...]}.
// Rows are ordered by all columns so equal states give equal snapshots.
func (g *Gateway) Capture(ctx context.Context, gameID int64) (ir.IRObject, error) {
	conn := g.store.Conn(ctx)
	snap := make(ir.IRObject, len(g.tables))

	for _, t := range g.tables {
		rows, err := captureTable(ctx, conn, t, gameID)
		if err != nil {
			return nil, err
		}
		snap[t.Name] = rows
	}
	return snap, nil
}

func captureTable(ctx context.Context, conn store.DBTX, t tableInfo, gameID int64) (ir.IRArray, error) {
	order := make([]string, len(t.columns))
	for i := range t.columns {
		order[i] = fmt.Sprintf("%d", i+1)
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? ORDER BY %s",
		strings.Join(t.columns, ", "), t.Name, t.GameColumn, strings.Join(order, ", "))

	rows, err := conn.QueryContext(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("capture %s: %w", t.Name, err)
	}
	defer rows.Close()

	out := ir.IRArray{}
	for rows.Next() {
		values := make([]any, len(t.columns))
		ptrs := make([]any, len(values))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("capture %s: %w", t.Name, err)
		}

		row := make(ir.IRObject, len(t.columns))
		for i, col := range t.columns {
			v, err := toIR(values[i])
			if err != nil {
				return nil, fmt.Errorf("capture %s.%s: %w", t.Name, col, err)
			}
			row[col] = v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("capture %s: %w", t.Name, err)
	}
	return out, nil
}

// Restore makes the stored rows of the game exactly match the snapshot.
// Rows absent from the snapshot are deleted. Tables missing from the
// snapshot end up empty for this game.
func (g *Gateway) Restore(ctx context.Context, gameID int64, snapshot ir.IRObject) error {
	for key := range snapshot {
		if !g.hasTable(key) {
			return fmt.Errorf("restore: snapshot has unknown table %q", key)
		}
	}

	conn := g.store.Conn(ctx)
	for i := len(g.tables) - 1; i >= 0; i-- {
		t := g.tables[i]
		query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", t.Name, t.GameColumn)
		if _, err := conn.ExecContext(ctx, query, gameID); err != nil {
			return fmt.Errorf("restore %s: %w", t.Name, err)
		}
	}

	for _, t := range g.tables {
		rows, ok := snapshot[t.Name].(ir.IRArray)
		if !ok {
			if _, present := snapshot[t.Name]; present {
				return fmt.Errorf("restore %s: rows must be an array", t.Name)
			}
			continue
		}
		for i, r := range rows {
			row, ok := r.(ir.IRObject)
			if !ok {
				return fmt.Errorf("restore %s[%d]: row must be an object", t.Name, i)
			}
			if err := insertRow(ctx, conn, t, gameID, row); err != nil {
				return fmt.Errorf("restore %s[%d]: %w", t.Name, i, err)
			}
		}
	}
	return nil
}

func insertRow(ctx context.Context, conn store.DBTX, t tableInfo, gameID int64, row ir.IRObject) error {
	cols := make([]string, 0, len(row))
	for col := range row {
		if !t.known[col] {
			return fmt.Errorf("unknown column %q", col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	if id, ok := row[t.GameColumn].(ir.IRInt); !ok || int64(id) != gameID {
		return fmt.Errorf("row does not belong to game %d", gameID)
	}

	args := make([]any, len(cols))
	marks := make([]string, len(cols))
	for i, col := range cols {
		v, err := fromIR(row[col])
		if err != nil {
			return fmt.Errorf("column %s: %w", col, err)
		}
		args[i] = v
		marks[i] = "?"
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.Name, strings.Join(cols, ", "), strings.Join(marks, ", "))
	_, err := conn.ExecContext(ctx, query, args...)
	return err
}

func (g *Gateway) hasTable(name string) bool {
	for _, t := range g.tables {
		if t.Name == name {
			return true
		}
	}
	return false
}

func toIR(v any) (ir.IRValue, error) {
	switch val := v.(type) {
	case nil:
		return ir.IRNull{}, nil
	case int64:
		return ir.IRInt(val), nil
	case string:
		return ir.IRString(val), nil
	case bool:
		return ir.IRBool(val), nil
	default:
		return nil, fmt.Errorf("unsupported column value %T", v)
	}
}

func fromIR(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRNull:
		return nil, nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRString:
		return string(val), nil
	case ir.IRBool:
		return bool(val), nil
	default:
		return nil, fmt.Errorf("unsupported snapshot value %T", v)
	}
}
