// Package validator implements §4.7: for every cell with both a stored
// value and a formula, recompute and compare under a tolerance policy,
// collecting every mismatch rather than stopping at the first.
package validator

import (
	"context"
	"fmt"

	"github.com/google/go-cmp/cmp"

	"github.com/forgelang/forge/config"
	"github.com/forgelang/forge/eval"
	"github.com/forgelang/forge/forgeerr"
	"github.com/forgelang/forge/model"
)

// Mismatch is one authored-vs-computed discrepancy, per §4.7.
type Mismatch struct {
	Cell     model.CellAddr
	Row      int // -1 for a scalar mismatch
	Stored   model.Value
	Computed model.Value
	Diff     string
}

// Report is the outcome of one validation pass.
type Report struct {
	Mismatches []Mismatch
	Warnings   []model.UnitWarning
}

// Validate recomputes m and compares every stored value against its
// recomputed counterpart. It does not mutate the caller's m: it runs the
// evaluator over a clone so the original authored values remain available
// for comparison.
func Validate(ctx context.Context, m *model.Model, cfg config.Config) (*Report, error) {
	stored := m
	computed := model.Clone(m)

	evalCfg := eval.Config{Now: cfg.Now}
	if evalCfg.Now.IsZero() {
		evalCfg = eval.DefaultConfig()
	}
	res, err := eval.Run(ctx, computed, evalCfg)
	if err != nil {
		return nil, err
	}

	report := &Report{Warnings: res.Warnings}
	for _, cell := range res.Registry.Cells() {
		if cell.Formula == nil {
			continue
		}
		storedCell := lookupStored(stored, cell.Addr)
		if storedCell == nil {
			continue
		}
		compareCell(cfg, cell.Addr, storedCell, cell, report)
	}
	return report, nil
}

// lookupStored finds the corresponding cell in the pristine (pre-recompute)
// model so scalars without an authored value are skipped rather than
// reported as a false mismatch.
func lookupStored(stored *model.Model, addr model.CellAddr) *model.Cell {
	reg, err := model.Build(stored)
	if err != nil {
		return nil
	}
	id, ok := reg.Lookup(addr)
	if !ok {
		return nil
	}
	return reg.Cell(id)
}

func compareCell(cfg config.Config, addr model.CellAddr, stored, computed *model.Cell, report *Report) {
	if stored.Scalar != nil {
		if !stored.Scalar.HasValue {
			return
		}
		ok, diff := compareValues(cfg, stored.Scalar.Value, computed.Scalar.Value)
		if !ok {
			report.Mismatches = append(report.Mismatches, Mismatch{
				Cell: addr, Row: -1,
				Stored: stored.Scalar.Value, Computed: computed.Scalar.Value, Diff: diff,
			})
		}
		return
	}
	if stored.Column == nil || stored.Column.Formula == "" {
		return
	}
	for i, sv := range stored.Column.Values {
		if i >= len(computed.Column.Values) {
			break
		}
		cv := computed.Column.Values[i]
		ok, diff := compareValues(cfg, sv, cv)
		if !ok {
			report.Mismatches = append(report.Mismatches, Mismatch{
				Cell: addr, Row: i, Stored: sv, Computed: cv, Diff: diff,
			})
		}
	}
}

func compareValues(cfg config.Config, stored, computed model.Value) (bool, string) {
	if stored.Kind == model.KindText || computed.Kind == model.KindText {
		st, _ := stored.AsText()
		ct, _ := computed.AsText()
		if st == ct {
			return true, ""
		}
		return false, cmp.Diff(st, ct)
	}
	sn, serr := stored.AsNumber()
	cn, cerr := computed.AsNumber()
	if serr != nil || cerr != nil {
		return false, fmt.Sprintf("stored=%v computed=%v", stored, computed)
	}
	tol := cfg.Tolerance(cn)
	diff := sn - cn
	if diff < 0 {
		diff = -diff
	}
	if diff <= tol {
		return true, ""
	}
	return false, cmp.Diff(sn, cn)
}

// AsError renders a Report as a §4.7 validation error when it has any
// mismatch, for callers that want a single error instead of walking the
// mismatch list.
func (r *Report) AsError() error {
	if len(r.Mismatches) == 0 {
		return nil
	}
	first := r.Mismatches[0]
	return forgeerr.Validation(first.Cell.String(), first.Stored.String(), first.Computed.String(), first.Diff)
}
