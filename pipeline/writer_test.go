package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/thepicksmart/wish-harvest/models"
)

func sampleRecords(titles ...string) []models.OutputRecord {
	out := make([]models.OutputRecord, 0, len(titles))
	for _, title := range titles {
		out = append(out, models.OutputRecord{
			Collection:    "Home Decor",
			Title:         title,
			Vendor:        "ThePicksmart",
			Published:     true,
			ImagePosition: "",
		})
	}
	return out
}

func TestWriterBeginWritesOpener(t *testing.T) {
	dir := t.TempDir()
	writer, err := NewCategoryWriter(dir, "Home Decor")
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "Home Decor.json"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "[" {
		t.Fatalf("content=%q, want single opening bracket", data)
	}
	if err := writer.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
}

func TestWriterMidRunFileEndsInComma(t *testing.T) {
	dir := t.TempDir()
	writer, err := NewCategoryWriter(dir, "Watches")
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}

	if err := writer.Append(sampleRecords("A", "B")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := writer.Append(sampleRecords("C")); err != nil {
		t.Fatalf("append: %v", err)
	}

	data, err := os.ReadFile(writer.Path())
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.HasSuffix(string(data), ",") {
		t.Fatalf("mid-run file must end in a comma, got %q", string(data[len(data)-1:]))
	}
	if json.Valid(data) {
		t.Fatalf("mid-run file must be invalid JSON: the incomplete-run sentinel")
	}

	// Replacing the trailing comma with a bracket yields valid JSON for
	// any number of appends.
	patched := append(data[:len(data)-1], ']')
	if !json.Valid(patched) {
		t.Fatalf("comma-to-bracket patch should yield valid JSON: %s", patched)
	}

	if err := writer.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
}

func TestWriterFinalizeProducesValidArray(t *testing.T) {
	dir := t.TempDir()
	writer, err := NewCategoryWriter(dir, "Watches")
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}

	if err := writer.Append(sampleRecords("A", "B")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := writer.Append(sampleRecords("C")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := writer.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	data, err := os.ReadFile(writer.Path())
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var decoded []models.OutputRecord
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("finalized file is not a JSON array: %v", err)
	}
	if len(decoded) != 3 {
		t.Fatalf("decoded=%d records, want 3", len(decoded))
	}
	if decoded[0].Title != "A" || decoded[1].Title != "B" || decoded[2].Title != "C" {
		t.Fatalf("record order lost: %v", decoded)
	}
	if strings.Count(string(data), "]") != 1 {
		t.Fatalf("exactly one array terminator expected: %s", data)
	}
}

func TestWriterFinalizeIdempotent(t *testing.T) {
	dir := t.TempDir()
	writer, err := NewCategoryWriter(dir, "Watches")
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}
	if err := writer.Append(sampleRecords("A")); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := writer.Finalize(); err != nil {
		t.Fatalf("first finalize: %v", err)
	}
	if err := writer.Finalize(); err != nil {
		t.Fatalf("second finalize must be a no-op: %v", err)
	}

	data, err := os.ReadFile(writer.Path())
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !json.Valid(data) {
		t.Fatalf("double finalize corrupted the file: %s", data)
	}
	if strings.Count(string(data), "]") != 1 {
		t.Fatalf("competing terminators after double finalize: %s", data)
	}
}

func TestWriterEmptyCategoryFinalizesToEmptyArray(t *testing.T) {
	dir := t.TempDir()
	writer, err := NewCategoryWriter(dir, "Automotive")
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}
	if err := writer.Append(nil); err != nil {
		t.Fatalf("empty append should be a no-op: %v", err)
	}
	if err := writer.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	data, err := os.ReadFile(writer.Path())
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "[]" {
		t.Fatalf("content=%q, want []", data)
	}
}

func TestWriterAppendAfterFinalizeFails(t *testing.T) {
	dir := t.TempDir()
	writer, err := NewCategoryWriter(dir, "Watches")
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}
	if err := writer.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if err := writer.Append(sampleRecords("A")); err == nil {
		t.Fatalf("append after finalize should fail")
	}
}
