package hostenv

import (
	"context"
	"database/sql"

	"github.com/loomworks/loom/pkg/fault"
	"github.com/loomworks/loom/pkg/lease"
	"github.com/loomworks/loom/pkg/ports"
)

// newDB returns the database port plus the paired lease opener and
// transaction runner, all over the host's SQLite store. SQLite has a
// single handle, so every role maps to it.
func (h *Host) newDB(role string) (ports.DB, ports.Opener[*sql.Conn], ports.TxRunner) {
	db := h.store.DB()
	port := &dbPort{db: db, role: role}
	opener := func(ctx context.Context) (*lease.Releasable[*sql.Conn], error) {
		conn, err := db.Conn(ctx)
		if err != nil {
			return nil, fault.Acquire("failed to lease database connection", err).WithPort("db")
		}
		return &lease.Releasable[*sql.Conn]{
			Value: conn,
			Release: func(context.Context) error {
				return conn.Close()
			},
		}, nil
	}
	runner := func(ctx context.Context, fn ports.TxFunc) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fault.Effect("failed to begin transaction", err).WithPort("db").WithOp("tx")
		}
		if err := fn(ctx, tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return fault.Effect("failed to commit transaction", err).WithPort("db").WithOp("tx")
		}
		return nil
	}
	return port, opener, runner
}

// dbPort adapts *sql.DB to the DB port, returning rows as column-keyed
// maps.
type dbPort struct {
	db   *sql.DB
	role string
}

func (p *dbPort) Query(ctx context.Context, query string, args ...any) ([]ports.Row, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fault.Effect("query failed", err).WithPort("db").WithOp("query")
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fault.Effect("failed to read columns", err).WithPort("db").WithOp("query")
	}

	var out []ports.Row
	for rows.Next() {
		values := make([]any, len(cols))
		scan := make([]any, len(cols))
		for i := range values {
			scan[i] = &values[i]
		}
		if err := rows.Scan(scan...); err != nil {
			return nil, fault.Effect("failed to scan row", err).WithPort("db").WithOp("query")
		}
		row := make(ports.Row, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fault.Effect("row iteration failed", err).WithPort("db").WithOp("query")
	}
	return out, nil
}

func (p *dbPort) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fault.Effect("exec failed", err).WithPort("db").WithOp("exec")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fault.Effect("failed to count affected rows", err).WithPort("db").WithOp("exec")
	}
	return n, nil
}
