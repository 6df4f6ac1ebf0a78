// Package core provides the document merge pipeline.
//
// This package turns a spreadsheet and a Word template into one document per
// row. It has no HTTP dependencies and can be used by web handlers, CLI tools,
// or tests without modification.
//
// # Architecture
//
// The pipeline is built from small, independently testable pieces:
//
//   - Tabular reader: [ReadRows] turns XLSX or CSV bytes into [RowRecord]s.
//   - Template store: [OpenTemplate] validates a DOCX once; each row gets its
//     own [TemplateInstance] from [TemplateSource.Instantiate].
//   - Row renderer: [RenderRow] substitutes placeholders and returns a
//     [RenderResult] that is either a document or a [RowError].
//   - Archive assembler: [Assembler] writes results in row order.
//   - Generator: [Generator.Generate] drives the above.
//
// # Generation
//
//	gen := core.NewGenerator(core.WithWorkers(8))
//	res, err := gen.Generate(ctx, core.GenerateRequest{
//	    Template:   templateBytes,
//	    Data:       sheetBytes,
//	    DataName:   "people.xlsx",
//	    Delimiters: core.Delimiters{Start: "{{", End: "}}"},
//	})
//
// Rows render in parallel but the archive always lists them in source order:
// document_1.docx, error_document_2.txt, document_3.docx, and so on. A row
// that fails is recorded as a text member and never stops the batch; the
// request fails only when no row rendered.
//
// # Placeholders
//
// A placeholder is Start + name + End, for example {{firstName}} or
// [firstName]. Surrounding spaces in the name are ignored. Word often splits
// typed text across several runs; placeholders are matched on the text of a
// whole paragraph so that splitting does not matter. Values are formatted by
// [FormatValue].
//
// # Error Handling
//
// Request-level failures are [*Error] values with a [Kind]. [MapError] turns
// any error into a [UserMessage] with a support code:
//
//   - IN001: missing input
//   - DATA001-DATA002: unreadable or empty data
//   - TPL001-TPL003: invalid template
//   - GEN001: every row failed
package core
