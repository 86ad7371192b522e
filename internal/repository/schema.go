package repository

import (
	"context"
	"fmt"
	"log/slog"

	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const formDataTable = "form_data"

// Column names of form_data.
const (
	colID        = "id"
	colFormName  = "form_name"
	colData      = "data"
	colCreatedAt = "created_at"
	colUpdatedAt = "updated_at"
)

var (
	// FormDataColumns holds the columns for the "form_data" table.
	FormDataColumns = []*schema.Column{
		{Name: colID, Type: field.TypeInt64, Increment: true},
		{Name: colFormName, Type: field.TypeString, Size: 255},
		{Name: colData, Type: field.TypeString, Size: 2147483647},
		{Name: colCreatedAt, Type: field.TypeTime},
		{Name: colUpdatedAt, Type: field.TypeTime},
	}
	// FormDataTable holds the schema information for the "form_data" table.
	FormDataTable = &schema.Table{
		Name:       formDataTable,
		Columns:    FormDataColumns,
		PrimaryKey: []*schema.Column{FormDataColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "formdata_form_name",
				Unique:  false,
				Columns: []*schema.Column{FormDataColumns[1]},
			},
		},
	}
	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		FormDataTable,
	}
)

// Migrate creates or alters the tables to match Tables.
func Migrate(ctx context.Context, db *DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	m, err := schema.NewMigrate(db.Driver)
	if err != nil {
		return fmt.Errorf("ent migrate: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		logger.Error("schema migration failed", "error", err)
		return fmt.Errorf("create schema: %w", err)
	}
	logger.Info("schema migrated", "tables", len(Tables), "dialect", db.Dialect())
	return nil
}
