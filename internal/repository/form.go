package repository

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/handwriting-extractor/internal/common"
	"github.com/joseph-ayodele/handwriting-extractor/internal/entity"
)

type FormRepository interface {
	Create(ctx context.Context, name, data string) (*entity.Form, error)
	Get(ctx context.Context, id int64) (*entity.Form, error)
	List(ctx context.Context, offset, limit int) ([]*entity.Form, error)
	Update(ctx context.Context, id int64, upd entity.FormUpdate) (*entity.Form, error)
	Delete(ctx context.Context, id int64) error
}

type formRepository struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

func NewFormRepository(db *DB, logger *slog.Logger) FormRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &formRepository{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

var formColumns = []string{colID, colFormName, colData, colCreatedAt, colUpdatedAt}

func (r *formRepository) Create(ctx context.Context, name, data string) (*entity.Form, error) {
	now := r.now()
	query, args := entsql.Dialect(r.db.Dialect()).
		Insert(formDataTable).
		Columns(colFormName, colData, colCreatedAt, colUpdatedAt).
		Values(name, data, now, now).
		Returning(colID).
		Query()

	rows := &entsql.Rows{}
	if err := r.db.Driver.Query(ctx, query, args, rows); err != nil {
		r.logger.Error("failed to insert form", "form_name", name, "error", err)
		return nil, dbError("insert form", err)
	}
	defer rows.Close()

	var id int64
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, dbError("insert form", err)
		}
		return nil, dbError("insert form", stdsql.ErrNoRows)
	}
	if err := rows.Scan(&id); err != nil {
		return nil, dbError("scan form id", err)
	}

	r.logger.Debug("form created", "id", id, "form_name", name, "bytes", len(data))
	return &entity.Form{ID: id, FormName: name, Data: data, CreatedAt: now, UpdatedAt: now}, nil
}

func (r *formRepository) Get(ctx context.Context, id int64) (*entity.Form, error) {
	query, args := entsql.Dialect(r.db.Dialect()).
		Select(formColumns...).
		From(entsql.Table(formDataTable)).
		Where(entsql.EQ(colID, id)).
		Query()

	forms, err := r.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(forms) == 0 {
		return nil, common.NotFoundErrorf("Form with id %d not found", id)
	}
	return forms[0], nil
}

// List returns forms oldest first.
func (r *formRepository) List(ctx context.Context, offset, limit int) ([]*entity.Form, error) {
	sel := entsql.Dialect(r.db.Dialect()).
		Select(formColumns...).
		From(entsql.Table(formDataTable)).
		OrderBy(entsql.Asc(colID))
	if limit > 0 {
		sel = sel.Limit(limit)
	}
	if offset > 0 {
		if limit <= 0 && r.db.Dialect() == dialect.SQLite {
			// SQLite needs a LIMIT before OFFSET
			sel = sel.Limit(-1)
		}
		sel = sel.Offset(offset)
	}
	query, args := sel.Query()
	return r.query(ctx, query, args)
}

func (r *formRepository) Update(ctx context.Context, id int64, upd entity.FormUpdate) (*entity.Form, error) {
	if upd.FormName == nil && upd.Data == nil {
		return r.Get(ctx, id)
	}
	ub := entsql.Dialect(r.db.Dialect()).
		Update(formDataTable).
		Set(colUpdatedAt, r.now())
	if upd.FormName != nil {
		ub = ub.Set(colFormName, *upd.FormName)
	}
	if upd.Data != nil {
		ub = ub.Set(colData, *upd.Data)
	}
	query, args := ub.Where(entsql.EQ(colID, id)).Query()

	if err := r.exec(ctx, "update form", id, query, args); err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

func (r *formRepository) Delete(ctx context.Context, id int64) error {
	query, args := entsql.Dialect(r.db.Dialect()).
		Delete(formDataTable).
		Where(entsql.EQ(colID, id)).
		Query()
	return r.exec(ctx, "delete form", id, query, args)
}

func (r *formRepository) exec(ctx context.Context, op string, id int64, query string, args []any) error {
	var res stdsql.Result
	if err := r.db.Driver.Exec(ctx, query, args, &res); err != nil {
		r.logger.Error("failed to "+op, "id", id, "error", err)
		return dbError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dbError(op, err)
	}
	if n == 0 {
		return common.NotFoundErrorf("Form with id %d not found", id)
	}
	return nil
}

func (r *formRepository) query(ctx context.Context, query string, args []any) ([]*entity.Form, error) {
	rows := &entsql.Rows{}
	if err := r.db.Driver.Query(ctx, query, args, rows); err != nil {
		r.logger.Error("failed to query forms", "error", err)
		return nil, dbError("query forms", err)
	}
	defer rows.Close()

	var out []*entity.Form
	for rows.Next() {
		f := &entity.Form{}
		if err := rows.Scan(&f.ID, &f.FormName, &f.Data, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, dbError("scan form", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate forms", err)
	}
	return out, nil
}

func dbError(op string, err error) error {
	return common.NewAppError("DB_ERROR", op, fmt.Errorf("%w: %v", common.ErrDatabase, err))
}
