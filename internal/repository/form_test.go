package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/joseph-ayodele/handwriting-extractor/internal/common"
	"github.com/joseph-ayodele/handwriting-extractor/internal/entity"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, Config{DSN: "file:" + filepath.Join(t.TempDir(), "forms.db")}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { Close(db, nil) })
	if err := Migrate(ctx, db, nil); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func TestFormRepositoryCRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewFormRepository(openTestDB(t), nil)

	created, err := repo.Create(ctx, "Handwriting Form - a.png", `{"Name": "JOHN"}`)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected an id")
	}

	got, err := repo.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.FormName != created.FormName || got.Data != created.Data {
		t.Errorf("Get = %+v, want %+v", got, created)
	}
	if got.CreatedAt.IsZero() || time.Since(got.CreatedAt) > time.Minute {
		t.Errorf("created_at not round-tripped: %v", got.CreatedAt)
	}

	name := "renamed"
	updated, err := repo.Update(ctx, created.ID, entity.FormUpdate{FormName: &name})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.FormName != "renamed" || updated.Data != created.Data {
		t.Errorf("Update = %+v", updated)
	}

	if err := repo.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(ctx, created.ID); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestFormRepositoryNotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewFormRepository(openTestDB(t), nil)

	_, err := repo.Get(ctx, 42)
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("Get: expected ErrNotFound, got %v", err)
	}
	if common.ErrorMessage(err) != "Form with id 42 not found" {
		t.Errorf("message = %q", common.ErrorMessage(err))
	}
	data := "{}"
	if _, err := repo.Update(ctx, 42, entity.FormUpdate{Data: &data}); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("Update: expected ErrNotFound, got %v", err)
	}
	if err := repo.Delete(ctx, 42); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("Delete: expected ErrNotFound, got %v", err)
	}
}

func TestFormRepositoryListPaging(t *testing.T) {
	ctx := context.Background()
	repo := NewFormRepository(openTestDB(t), nil)
	for _, n := range []string{"a", "b", "c"} {
		if _, err := repo.Create(ctx, n, "{}"); err != nil {
			t.Fatal(err)
		}
	}

	all, err := repo.List(ctx, 0, 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("List all = %d, %v", len(all), err)
	}
	if all[0].FormName != "a" || all[2].FormName != "c" {
		t.Errorf("unexpected order: %s..%s", all[0].FormName, all[2].FormName)
	}
	page, err := repo.List(ctx, 1, 1)
	if err != nil || len(page) != 1 || page[0].FormName != "b" {
		t.Fatalf("List(1,1) = %+v, %v", page, err)
	}
	tail, err := repo.List(ctx, 2, 0)
	if err != nil || len(tail) != 1 || tail[0].FormName != "c" {
		t.Fatalf("List(2,0) = %+v, %v", tail, err)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	if err := Migrate(context.Background(), db, nil); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if err := HealthCheck(context.Background(), db, time.Second, nil); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestSQLiteDSN(t *testing.T) {
	tests := map[string]string{
		"":                                  "file:forms.db?_pragma=foreign_keys(1)",
		"file:x.db":                         "file:x.db?_pragma=foreign_keys(1)",
		"sqlite://file:x.db?mode=rw":        "file:x.db?mode=rw&_pragma=foreign_keys(1)",
		"file:x.db?_pragma=foreign_keys(1)": "file:x.db?_pragma=foreign_keys(1)",
	}
	for in, want := range tests {
		if got := sqliteDSN(in); got != want {
			t.Errorf("sqliteDSN(%q) = %q, want %q", in, got, want)
		}
	}
	if !IsPostgres("postgres://u@h/db") || IsPostgres("file:x.db") {
		t.Error("IsPostgres misclassified")
	}
}
