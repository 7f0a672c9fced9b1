package sqlbacked

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/inkwell-ai/chatcore/pkg/chaterrors"
	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/repo"
)

// Collection is a generic repo.Repository[T] backed by a single table
// "<table>"(id TEXT PRIMARY KEY, user_id TEXT, data TEXT/JSONB). T is
// marshaled to JSON for storage and back for reads, the same blob-in-a-
// column approach pkg/repo/docbacked takes with its Mongo envelope, just
// expressed over database/sql instead of the driver's native documents.
type Collection[T any] struct {
	db        *DB
	table     string
	kind      string
	accessors repo.Accessors[T]
}

// NewCollection creates the backing table if it does not exist and
// returns a ready Collection.
func NewCollection[T any](ctx context.Context, db *DB, table, kind string, accessors repo.Accessors[T]) (*Collection[T], error) {
	ddl := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, user_id TEXT NOT NULL, data %s NOT NULL)`,
		table, db.jsonColumnType(),
	)
	if _, err := db.Conn.ExecContext(ctx, ddl); err != nil {
		return nil, &chaterrors.StorageError{Kind: kind + ".migrate", Err: err}
	}
	indexDDL := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_user_id ON %s (user_id)`, table, table)
	if _, err := db.Conn.ExecContext(ctx, indexDDL); err != nil {
		return nil, &chaterrors.StorageError{Kind: kind + ".migrate_index", Err: err}
	}
	return &Collection[T]{db: db, table: table, kind: kind, accessors: accessors}, nil
}

func (c *Collection[T]) FindByID(ctx context.Context, id chatid.ID) (T, error) {
	var zero T
	query := fmt.Sprintf(`SELECT data FROM %s WHERE id = %s`, c.table, c.db.placeholder(1))
	row := c.db.Conn.QueryRowContext(ctx, query, id.String())
	var data []byte
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return zero, &chaterrors.NotFound{Kind: c.kind, ID: id.String()}
		}
		return zero, &chaterrors.StorageError{Kind: c.kind + ".scan", Err: err}
	}
	var entity T
	if err := json.Unmarshal(data, &entity); err != nil {
		return zero, &chaterrors.StorageError{Kind: c.kind + ".decode", Err: err}
	}
	return entity, nil
}

func (c *Collection[T]) queryAll(ctx context.Context, query string, args ...any) ([]T, error) {
	rows, err := c.db.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &chaterrors.StorageError{Kind: c.kind + ".query", Err: err}
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, &chaterrors.StorageError{Kind: c.kind + ".scan", Err: err}
		}
		var entity T
		if err := json.Unmarshal(data, &entity); err != nil {
			return nil, &chaterrors.StorageError{Kind: c.kind + ".decode", Err: err}
		}
		out = append(out, entity)
	}
	return out, rows.Err()
}

func (c *Collection[T]) FindByUserID(ctx context.Context, userID chatid.ID) ([]T, error) {
	query := fmt.Sprintf(`SELECT data FROM %s WHERE user_id = %s`, c.table, c.db.placeholder(1))
	return c.queryAll(ctx, query, userID.String())
}

func (c *Collection[T]) FindAll(ctx context.Context) ([]T, error) {
	query := fmt.Sprintf(`SELECT data FROM %s`, c.table)
	return c.queryAll(ctx, query)
}

func (c *Collection[T]) Create(ctx context.Context, entity T) (T, error) {
	var zero T
	if c.accessors.Validate != nil {
		if problems := c.accessors.Validate(entity); len(problems) > 0 {
			return zero, &chaterrors.ValidationError{Fields: problems}
		}
	}
	id := c.accessors.ID(entity)
	if id == chatid.Nil {
		id = chatid.New()
		c.accessors.SetID(&entity, id)
	}
	data, err := json.Marshal(entity)
	if err != nil {
		return zero, &chaterrors.StorageError{Kind: c.kind + ".encode", Err: err}
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, user_id, data) VALUES (%s, %s, %s)`,
		c.table, c.db.placeholder(1), c.db.placeholder(2), c.db.placeholder(3))
	if _, err := c.db.Conn.ExecContext(ctx, query, id.String(), c.accessors.OwnerID(entity).String(), data); err != nil {
		return zero, &chaterrors.StorageError{Kind: c.kind + ".insert", Err: err}
	}
	return entity, nil
}

func (c *Collection[T]) Update(ctx context.Context, id chatid.ID, patch func(*T)) (T, error) {
	var zero T
	current, err := c.FindByID(ctx, id)
	if err != nil {
		return zero, err
	}
	patch(&current)
	c.accessors.SetID(&current, id)
	if c.accessors.Touch != nil {
		c.accessors.Touch(&current)
	}
	if c.accessors.Validate != nil {
		if problems := c.accessors.Validate(current); len(problems) > 0 {
			return current, &chaterrors.ValidationError{Fields: problems}
		}
	}
	data, err := json.Marshal(current)
	if err != nil {
		return zero, &chaterrors.StorageError{Kind: c.kind + ".encode", Err: err}
	}
	query := fmt.Sprintf(`UPDATE %s SET user_id = %s, data = %s WHERE id = %s`,
		c.table, c.db.placeholder(1), c.db.placeholder(2), c.db.placeholder(3))
	res, err := c.db.Conn.ExecContext(ctx, query, c.accessors.OwnerID(current).String(), data, id.String())
	if err != nil {
		return zero, &chaterrors.StorageError{Kind: c.kind + ".update", Err: err}
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return zero, &chaterrors.NotFound{Kind: c.kind, ID: id.String()}
	}
	return current, nil
}

func (c *Collection[T]) Delete(ctx context.Context, id chatid.ID) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = %s`, c.table, c.db.placeholder(1))
	res, err := c.db.Conn.ExecContext(ctx, query, id.String())
	if err != nil {
		return &chaterrors.StorageError{Kind: c.kind + ".delete", Err: err}
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return &chaterrors.NotFound{Kind: c.kind, ID: id.String()}
	}
	return nil
}

// SetDefault follows the same non-transactional unset-then-set ordering
// as the other three backends; each individual UPDATE is atomic at the
// row level which is all §4.2 requires in the absence of a transaction.
func (c *Collection[T]) SetDefault(ctx context.Context, userID, id chatid.ID, isDefault func(T) bool, setDefault func(*T, bool)) error {
	others, err := c.FindByUserID(ctx, userID)
	if err != nil {
		return err
	}
	for _, other := range others {
		otherID := c.accessors.ID(other)
		if otherID == id || !isDefault(other) {
			continue
		}
		if _, err := c.Update(ctx, otherID, func(v *T) { setDefault(v, false) }); err != nil {
			return err
		}
	}
	_, err = c.Update(ctx, id, func(v *T) { setDefault(v, true) })
	return err
}
