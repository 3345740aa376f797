package runstore

import (
	"fmt"

	"github.com/google/cel-go/cel"

	srcerrors "srcreg/internal/errors"
	"srcreg/internal/export"
)

// Filter is a compiled CEL predicate over stored records.
//
// Variables: row (int); source_type, status, canonical_key, locator, reason,
// section, priority, evidence_level (string).
type Filter struct {
	expr string
	prg  cel.Program
}

var filterEnv = func() *cel.Env {
	env, err := cel.NewEnv(
		cel.Variable("row", cel.IntType),
		cel.Variable("source_type", cel.StringType),
		cel.Variable("status", cel.StringType),
		cel.Variable("canonical_key", cel.StringType),
		cel.Variable("locator", cel.StringType),
		cel.Variable("reason", cel.StringType),
		cel.Variable("section", cel.StringType),
		cel.Variable("priority", cel.StringType),
		cel.Variable("evidence_level", cel.StringType),
	)
	if err != nil {
		panic(fmt.Sprintf("runstore: building filter environment: %v", err))
	}
	return env
}()

// CompileFilter compiles a boolean CEL expression.
func CompileFilter(expr string) (*Filter, error) {
	ast, iss := filterEnv.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, srcerrors.New(srcerrors.FilterInvalid, "cannot compile filter", iss.Err()).
			WithDetails(map[string]string{"expression": expr})
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, srcerrors.New(srcerrors.FilterInvalid,
			fmt.Sprintf("filter must be a boolean expression, got %s", ast.OutputType()), nil).
			WithDetails(map[string]string{"expression": expr})
	}
	prg, err := filterEnv.Program(ast)
	if err != nil {
		return nil, srcerrors.New(srcerrors.FilterInvalid, "cannot plan filter", err)
	}
	return &Filter{expr: expr, prg: prg}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	return f.expr
}

// Match evaluates the filter against a record.
func (f *Filter) Match(r export.Row) (bool, error) {
	out, _, err := f.prg.Eval(map[string]any{
		"row":            int64(r.SourceRow),
		"source_type":    r.SourceType,
		"status":         r.Status,
		"canonical_key":  r.CanonicalKey,
		"locator":        r.SourceLocatorRaw,
		"reason":         r.InvalidReason,
		"section":        r.SourceSection,
		"priority":       r.Priority,
		"evidence_level": r.EvidenceLevel,
	})
	if err != nil {
		return false, fmt.Errorf("evaluating filter %q on row %d: %w", f.expr, r.SourceRow, err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter %q returned %T", f.expr, out.Value())
	}
	return b, nil
}
