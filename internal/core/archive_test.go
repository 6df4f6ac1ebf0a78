package core

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var fixedTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestAssembler(t *testing.T) {
	asm := NewAssembler("docx", fixedTime)

	results := []RenderResult{
		{Index: 0, Document: []byte("doc-one"), Row: record("a", "1")},
		{Index: 1, Row: record("a", "2"), Err: &RowError{Index: 1, Message: "no data for placeholder {{b}}"}},
		{Index: 2, Document: []byte("doc-three"), Row: record("a", "3")},
	}
	for _, r := range results {
		if err := asm.Add(r); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	body, err := asm.Finalize()
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	names, contents := readZip(t, body)
	wantNames := []string{"document_1.docx", "error_document_2.txt", "document_3.docx"}
	if diff := cmp.Diff(wantNames, names); diff != "" {
		t.Errorf("member names mismatch (-want +got):\n%s", diff)
	}
	if string(contents["document_3.docx"]) != "doc-three" {
		t.Errorf("document_3.docx = %q", contents["document_3.docx"])
	}

	wantText := "Failed to generate document for row 2. Error: no data for placeholder {{b}}\nData: {\"a\":\"2\"}"
	if got := string(contents["error_document_2.txt"]); got != wantText {
		t.Errorf("error_document_2.txt = %q, want %q", got, wantText)
	}

	members := asm.Members()
	if len(members) != 3 || !members[1].Failed || members[0].Failed {
		t.Errorf("Members() = %+v", members)
	}
}

func TestAssembler_AllFailed(t *testing.T) {
	asm := NewAssembler("docx", fixedTime)
	for i := 0; i < 2; i++ {
		err := asm.Add(RenderResult{Index: i, Err: &RowError{Index: i, Message: "bad"}})
		if err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	_, err := asm.Finalize()
	if !errors.Is(err, ErrEmptyArchive) {
		t.Fatalf("Finalize() error = %v, want EmptyArchiveError", err)
	}
	if !strings.Contains(err.Error(), "all 2 rows failed") {
		t.Errorf("Finalize() error = %q", err)
	}
}

func TestAssembler_Empty(t *testing.T) {
	_, err := NewAssembler("docx", fixedTime).Finalize()
	if !errors.Is(err, ErrEmptyArchive) {
		t.Fatalf("Finalize() error = %v, want EmptyArchiveError", err)
	}
}

func TestAssembler_AddAfterFinalize(t *testing.T) {
	asm := NewAssembler("docx", fixedTime)
	if err := asm.Add(RenderResult{Index: 0, Document: []byte("x")}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if _, err := asm.Finalize(); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if err := asm.Add(RenderResult{Index: 1, Document: []byte("y")}); err == nil {
		t.Error("Add() after Finalize() succeeded")
	}
	if _, err := asm.Finalize(); err == nil {
		t.Error("second Finalize() succeeded")
	}
}

func TestMemberNames(t *testing.T) {
	if got := DocumentName(0, "docx"); got != "document_1.docx" {
		t.Errorf("DocumentName(0) = %q", got)
	}
	if got := FailureName(9); got != "error_document_10.txt" {
		t.Errorf("FailureName(9) = %q", got)
	}
	if got := ArchiveName(fixedTime); got != "generated_documents_1714564800000.zip" {
		t.Errorf("ArchiveName() = %q", got)
	}
}
