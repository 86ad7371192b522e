package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/handwriting-extractor/internal/entity"
)

func TestFlatten(t *testing.T) {
	keys, values := FlattenJSON(`{"Name": "JOHN", "Address": {"City": "Lagos", "Zip": 100001}, "Phones": ["1", "2"], "Notes": null}`)
	want := []string{"Address.City", "Address.Zip", "Name", "Notes", "Phones[0]", "Phones[1]"}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v", keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys = %v, want %v", keys, want)
		}
	}
	if values["Address.Zip"] != float64(100001) || values["Notes"] != "" || values["Phones[1]"] != "2" {
		t.Errorf("values = %v", values)
	}

	keys, values = FlattenJSON("not json")
	if len(keys) != 1 || values["data"] != "not json" {
		t.Errorf("non-JSON data: %v %v", keys, values)
	}
}

func TestBuildWorkbook(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	forms := []*entity.Form{
		{ID: 1, FormName: "first", Data: `{"Name": "JOHN"}`, CreatedAt: now, UpdatedAt: now},
		{ID: 2, FormName: "second", Data: `{"raw_text": "scribbles", "Name": "ADA"}`, CreatedAt: now, UpdatedAt: now},
	}
	b, err := BuildWorkbook(forms)
	if err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d", len(rows))
	}
	header := rows[0]
	if header[1] != "Form Name" || header[4] != "Name" || header[5] != "raw_text" {
		t.Fatalf("header = %v", header)
	}
	if rows[1][4] != "JOHN" || rows[2][4] != "ADA" || rows[2][5] != "scribbles" {
		t.Errorf("rows = %v", rows)
	}
	if rows[1][2] != "2025-01-02T03:04:05Z" {
		t.Errorf("created_at cell = %q", rows[1][2])
	}
}
