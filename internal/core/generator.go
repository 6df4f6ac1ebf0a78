package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/docmerge/internal/logging"
)

// Phase is a step in the life of a single generation.
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseValidatingInputs Phase = "validating_inputs"
	PhaseReadingData      Phase = "reading_data"
	PhaseRendering        Phase = "rendering"
	PhaseAssembling       Phase = "assembling"
	PhaseDone             Phase = "done"
	PhaseErrored          Phase = "errored"
)

// DefaultWorkers is the number of rows rendered in parallel by default.
const DefaultWorkers = 4

// Generator runs the spreadsheet-to-documents pipeline.
type Generator struct {
	workers int
	now     func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithWorkers bounds how many rows render at once. n <= 0 keeps the default.
func WithWorkers(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.workers = n
		}
	}
}

// WithClock overrides the time source used for archive timestamps and names.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

func NewGenerator(opts ...Option) *Generator {
	g := &Generator{workers: DefaultWorkers, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// generation tracks the phase of one Generate call for logging.
type generation struct {
	log   *slog.Logger
	phase Phase
	start time.Time
}

func (r *generation) enter(p Phase) {
	r.log.Debug("generation phase", "from", r.phase, "to", p)
	r.phase = p
}

func (r *generation) fail(op string, err error) error {
	err = classify(op, err)
	r.log.Warn("generation failed",
		"phase", r.phase,
		"kind", KindOf(err),
		"error", err,
		"duration_ms", time.Since(r.start).Milliseconds(),
	)
	r.phase = PhaseErrored
	return err
}

// Generate renders one document per data row. Row failures are recorded in
// the archive; any other failure is returned as a classified *Error.
func (g *Generator) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	run := &generation{
		log:   logging.WithFields(ctx, "generation_id", uuid.NewString()),
		phase: PhaseIdle,
		start: time.Now(),
	}

	run.enter(PhaseValidatingInputs)
	if err := validateRequest(&req); err != nil {
		return nil, run.fail("validate", err)
	}

	run.enter(PhaseReadingData)
	rows, err := ReadRows(req.Data, req.DataName)
	if err != nil {
		return nil, run.fail("read data", err)
	}
	src, err := OpenTemplate(req.Template)
	if err != nil {
		return nil, run.fail("open template", err)
	}
	if err := src.Check(req.Delimiters); err != nil {
		return nil, run.fail("open template", err)
	}
	run.log.Info("generation started",
		"rows", len(rows),
		"start_delimiter", req.Delimiters.Start,
		"end_delimiter", req.Delimiters.End,
	)

	run.enter(PhaseRendering)
	results, err := g.renderAll(ctx, run.log, src, rows, req.Delimiters)
	if err != nil {
		return nil, run.fail("render", err)
	}

	run.enter(PhaseAssembling)
	now := g.now()
	res, err := g.assemble(src, results, req, now)
	if err != nil {
		return nil, run.fail("assemble", err)
	}

	run.enter(PhaseDone)
	run.log.Info("generation completed",
		"rows", res.Rows,
		"failed", res.Failed,
		"bytes", len(res.Body),
		"duration_ms", time.Since(run.start).Milliseconds(),
	)
	return res, nil
}

func validateRequest(req *GenerateRequest) error {
	if len(req.Template) == 0 {
		return missingInput("a template document is required")
	}
	if len(req.Data) == 0 {
		return missingInput("a data spreadsheet is required")
	}
	return req.Delimiters.Validate()
}

// renderAll renders every row on a bounded pool. Results keep row order.
func (g *Generator) renderAll(ctx context.Context, log *slog.Logger, src *TemplateSource, rows []RowRecord, d Delimiters) ([]RenderResult, error) {
	results := make([]RenderResult, len(rows))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for i, row := range rows {
		if egCtx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			results[i] = renderOne(src, row, i, d)
			if !results[i].OK() {
				log.Warn("row failed", "row", i+1, "error", results[i].Err.Message)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// renderOne never panics out; a panic inside the renderer fails the row.
func renderOne(src *TemplateSource, row RowRecord, index int, d Delimiters) (res RenderResult) {
	defer func() {
		if r := recover(); r != nil {
			res = RenderResult{
				Index: index,
				Row:   row,
				Err:   &RowError{Index: index, Message: fmt.Sprintf("internal error: %v", r)},
			}
		}
	}()

	inst, err := src.Instantiate()
	if err != nil {
		return RenderResult{Index: index, Row: row, Err: rowError(index, err)}
	}
	return RenderRow(inst, row, index, d)
}

func (g *Generator) assemble(src *TemplateSource, results []RenderResult, req GenerateRequest, now time.Time) (*GenerateResult, error) {
	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}

	if req.UnwrapSingle && len(results) == 1 && results[0].OK() {
		name := DocumentName(0, src.Extension())
		return &GenerateResult{
			Body:        results[0].Document,
			ContentType: contentTypeFor(src.Extension()),
			FileName:    name,
			Rows:        1,
			Members:     []ArchiveMember{{Name: name, Size: len(results[0].Document)}},
		}, nil
	}

	asm := NewAssembler(src.Extension(), now)
	for _, r := range results {
		if err := asm.Add(r); err != nil {
			return nil, err
		}
	}
	body, err := asm.Finalize()
	if err != nil {
		return nil, err
	}

	return &GenerateResult{
		Body:        body,
		ContentType: ContentTypeZip,
		FileName:    ArchiveName(now),
		Rows:        len(results),
		Failed:      failed,
		Members:     asm.Members(),
	}, nil
}

// ArchiveName is the download name of an archive built at t.
func ArchiveName(t time.Time) string {
	return fmt.Sprintf("generated_documents_%d.zip", t.UnixMilli())
}

func contentTypeFor(ext string) string {
	if ext == "docm" {
		return "application/vnd.ms-word.document.macroEnabled.12"
	}
	return ContentTypeDocx
}
