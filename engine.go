// Package forge is the core's external interface of §6: the Go-facing API
// the CLI/LSP/MCP/HTTP adapters (out of scope here) would consume. It wires
// the loader, analyser, scheduler, evaluator, validator, writer, and bridge
// packages behind one Engine, with a single entry point per pipeline stage.
package forge

import (
	"context"
	"fmt"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"

	"github.com/forgelang/forge/analyzer"
	"github.com/forgelang/forge/bridge"
	"github.com/forgelang/forge/config"
	"github.com/forgelang/forge/eval"
	"github.com/forgelang/forge/forgeerr"
	"github.com/forgelang/forge/loader"
	"github.com/forgelang/forge/model"
	"github.com/forgelang/forge/scheduler"
	"github.com/forgelang/forge/validator"
	"github.com/forgelang/forge/writer"
)

// Config is the engine's immutable configuration record (§9 design notes).
type Config = config.Config

// Diff is the writer's before/after record for one Write call (§4.8).
type Diff = writer.Diff

// ImportOptions controls how Import groups a workbook's sheets back into
// documents (§4.9).
type ImportOptions = bridge.ImportOptions

// Engine ties the pipeline together behind the interface of §6. It is safe
// for concurrent use: every operation builds its own Registry/Analyzer/
// Context rather than sharing mutable state across calls.
type Engine struct {
	cfg config.Config
}

// New constructs an Engine from cfg. Callers typically start from
// config.Default(), optionally overlaid with config.LoadFile.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Load reads path (plus its transitive includes) into a *model.Model,
// per §4.3.
func (e *Engine) Load(ctx context.Context, path string) (*model.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, forgeerr.Cancelled(err.Error())
	}
	return loader.Load(path)
}

// Report is the outcome of one Calculate pass: every error-valued cell and
// unit-algebra warning the evaluator surfaced, tagged with a RunID so a
// run's log lines can be correlated after the fact.
type Report struct {
	RunID    uuid.UUID
	Duration time.Duration
	Warnings []model.UnitWarning
	Errors   []eval.CellError
}

// Calculate runs the analyse/schedule/evaluate pipeline over m, mutating
// its scalars and columns in place with computed values (§4.4-§4.6).
func (e *Engine) Calculate(ctx context.Context, m *model.Model) (*model.Model, *Report, error) {
	start := time.Now()
	evalCfg := e.evalConfig()
	res, err := eval.Run(ctx, m, evalCfg)
	if err != nil {
		// pkg/errors.WithStack annotates the failure with a call stack for
		// the debug log only; the error returned to the caller is still the
		// unwrapped *forgeerr.Error so callers can keep using errors.Is
		// against the forgeerr taxonomy.
		e.cfg.Log.WithError(pkgerrors.WithStack(err)).Debug("calculate failed")
		return nil, nil, err
	}
	report := &Report{
		RunID:    uuid.NewV4(),
		Duration: time.Since(start),
		Warnings: res.Warnings,
		Errors:   res.Errors,
	}
	e.cfg.Log.WithFields(logFields(report)).Debug("calculate complete")
	return res.Model, report, nil
}

// Validate recomputes m and compares every stored value against its
// recomputed counterpart under the configured tolerance (§4.7).
func (e *Engine) Validate(ctx context.Context, m *model.Model) (*validator.Report, error) {
	return validator.Validate(ctx, m, e.cfg)
}

// Write persists m's computed state back into the YAML document at path,
// in place, per §4.8. path must match (or path must be the only document in)
// m's loaded documents; Load always sets Document.Path this way.
func (e *Engine) Write(ctx context.Context, path string, m *model.Model, dryRun bool) (*Diff, error) {
	docName, err := resolveDocName(m, path)
	if err != nil {
		return nil, err
	}
	return writer.Write(ctx, path, m, docName, dryRun)
}

// Export writes m's computed state to an .xlsx workbook at xlsxPath (§4.9).
func (e *Engine) Export(ctx context.Context, m *model.Model, xlsxPath string) error {
	return bridge.Export(ctx, m, xlsxPath)
}

// Import reads an .xlsx workbook back into a *model.Model (§4.9).
func (e *Engine) Import(ctx context.Context, xlsxPath string, opts ImportOptions) (*model.Model, error) {
	return bridge.Import(ctx, xlsxPath, opts)
}

// AuditStep is one cell in a value trace, in dependency order.
type AuditStep struct {
	Cell    model.CellAddr
	Formula string // empty for a literal cell
	Value   model.Value
}

// AuditTrace is the outcome of one Audit call: every cell the target
// transitively depends on, in the order the scheduler would evaluate them,
// ending with the target cell itself.
type AuditTrace struct {
	Target model.CellAddr
	Steps  []AuditStep
}

// Audit walks the dependency sub-graph rooted at cell and returns its value
// trace (§6, NEW: "supplementing the CLI's audit surface into a core
// operation the adapter can call"). cell is a CellAddr.String()-shaped
// address, e.g. "pricing:tax_rate" or "financials:revenue.gross_profit".
func (e *Engine) Audit(ctx context.Context, m *model.Model, cell string) (*AuditTrace, error) {
	addr, err := parseCellAddr(cell)
	if err != nil {
		return nil, err
	}
	reg, err := model.Build(m)
	if err != nil {
		return nil, err
	}
	id, ok := reg.Lookup(addr)
	if !ok {
		return nil, forgeerr.Reference("", cell, cell, "", nil)
	}

	az := analyzer.New(m, reg)
	g, err := az.Analyze()
	if err != nil {
		return nil, err
	}
	order, err := scheduler.Order(reg, g)
	if err != nil {
		return nil, err
	}
	wanted := dependencyClosure(g, id)

	if _, err := eval.Run(ctx, m, e.evalConfig()); err != nil {
		return nil, err
	}

	trace := &AuditTrace{Target: addr}
	for _, oid := range order {
		if !wanted[oid] {
			continue
		}
		c := reg.Cell(oid)
		step := AuditStep{Cell: c.Addr}
		if c.Formula != nil {
			step.Formula = c.Formula.String()
		}
		if c.Scalar != nil {
			step.Value = c.Scalar.Value
		} else {
			step.Value = model.Vec(c.Column.Values)
		}
		trace.Steps = append(trace.Steps, step)
	}
	return trace, nil
}

// dependencyClosure returns id and every cell id reaches transitively via
// g's edges (cell -> cells it reads).
func dependencyClosure(g *analyzer.Graph, id model.CellID) map[model.CellID]bool {
	seen := map[model.CellID]bool{id: true}
	stack := []model.CellID{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, dep := range g.Edges[cur] {
			if !seen[dep] {
				seen[dep] = true
				stack = append(stack, dep)
			}
		}
	}
	return seen
}

// parseCellAddr parses a CellAddr.String()-shaped address back into its
// parts: "doc:name" for a scalar, "doc:table.name" for a column.
func parseCellAddr(s string) (model.CellAddr, error) {
	docPart, rest, ok := strings.Cut(s, ":")
	if !ok {
		return model.CellAddr{}, forgeerr.Reference("", s, s, "", nil)
	}
	if table, name, ok := strings.Cut(rest, "."); ok {
		return model.CellAddr{Document: docPart, Table: table, Name: name}, nil
	}
	return model.CellAddr{Document: docPart, Name: rest}, nil
}

// resolveDocName finds the document path identifies within m, falling back
// to m's only document when path doesn't match (e.g. a freshly-built model
// never routed through Load).
func resolveDocName(m *model.Model, path string) (string, error) {
	for _, d := range m.Documents {
		if d.Path == path {
			return d.Name, nil
		}
	}
	if len(m.Documents) == 1 {
		return m.Documents[0].Name, nil
	}
	return "", forgeerr.IO(path, fmt.Errorf("ambiguous document for path: model has %d documents", len(m.Documents)))
}

func (e *Engine) evalConfig() eval.Config {
	if !e.cfg.Now.IsZero() {
		return eval.Config{Now: e.cfg.Now}
	}
	return eval.DefaultConfig()
}

func logFields(r *Report) map[string]interface{} {
	return map[string]interface{}{
		"run_id":   r.RunID.String(),
		"duration": r.Duration,
		"warnings": len(r.Warnings),
		"errors":   len(r.Errors),
	}
}
