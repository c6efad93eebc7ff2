package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// NativeEngine forwards every query shape to SQLite as fixed SQL text with
// positional parameters and maps the driver's answer onto Result.
type NativeEngine struct {
	db  *gorm.DB
	now func() time.Time
}

// NewNativeEngine wraps an open database whose schema is in place
// (see OpenSQLite and EnsureSchema).
func NewNativeEngine(db *gorm.DB) *NativeEngine {
	return &NativeEngine{db: db, now: time.Now}
}

// OpenNative opens the database at path, ensures the schema and returns a
// ready engine. Any error means the native backend is unusable.
func OpenNative(path string) (*NativeEngine, error) {
	db, err := OpenSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := EnsureSchema(db); err != nil {
		closeDB(db)
		return nil, err
	}
	log.Debug().Str("component", "native").Str("path", path).Msg("sqlite schema ready")
	return NewNativeEngine(db), nil
}

// Kind implements Backend.
func (e *NativeEngine) Kind() BackendKind { return BackendNative }

// Execute implements Backend.
func (e *NativeEngine) Execute(ctx context.Context, q Query) (*Result, error) {
	if err := checkShape(q); err != nil {
		return nil, err
	}
	q = stampCreatedAt(q, e.now())
	text, args, kind := q.statement()

	db := e.db.WithContext(ctx)
	out := &Result{Rows: Rows{}}
	var tx *gorm.DB
	switch kind {
	case stmtRead:
		return e.query(ctx, text, args)
	case stmtInsert:
		// Inserts end in RETURNING id, so they run as a row query.
		tx = db.Raw(text, args...).Scan(&out.InsertID)
	default:
		tx = db.Exec(text, args...)
	}
	if err := tx.Error; err != nil {
		if isDuplicate(err) {
			return nil, fmt.Errorf("%w: %v", ErrUniqueViolation, err)
		}
		return nil, fmt.Errorf("%s: %w", q.Name(), err)
	}
	out.RowsAffected = tx.RowsAffected
	return out, nil
}

func (e *NativeEngine) query(ctx context.Context, text string, args []any) (*Result, error) {
	rows, err := e.db.WithContext(ctx).Raw(text, args...).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	return &Result{Rows: out}, nil
}

// Close implements Backend.
func (e *NativeEngine) Close() error {
	sqlDB, err := e.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// scanRows copies every row into a Row keyed by column name.
func scanRows(rows *sql.Rows) (Rows, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := Rows{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			// Drivers may reuse byte buffers between rows.
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
