// Package condition evaluates router branch predicates.
//
// Router nodes carry an ordered list of routes, each with a boolean
// expression over upstream outputs and workflow inputs. Expressions
// use expr-lang syntax ("score > 0.5 && category == 'news'"). Compiled
// programs are cached per expression, so re-evaluating a router on
// every poll tick stays cheap.
package condition

import (
	"errors"
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/randalmurphal/canvasgraph/pkg/canvasgraph"
)

var (
	// ErrBadExpression indicates an expression that fails to compile.
	ErrBadExpression = errors.New("bad route expression")

	// ErrNotBoolean indicates an expression evaluating to a non-boolean.
	ErrNotBoolean = errors.New("route expression is not boolean")
)

// Evaluator compiles and runs route expressions. Safe for concurrent
// use.
type Evaluator struct {
	mu       sync.RWMutex
	programs map[string]*vm.Program
}

// NewEvaluator creates an evaluator with an empty program cache.
func NewEvaluator() *Evaluator {
	return &Evaluator{programs: make(map[string]*vm.Program)}
}

// Evaluate runs a single expression against the environment. Unknown
// identifiers resolve to nil rather than failing, so a route can
// reference outputs of nodes that have not run yet.
func (e *Evaluator) Evaluate(expression string, env map[string]any) (bool, error) {
	prg, err := e.compile(expression)
	if err != nil {
		return false, err
	}
	if env == nil {
		env = map[string]any{}
	}

	result, err := vm.Run(prg, env)
	if err != nil {
		return false, fmt.Errorf("run route expression %q: %w", expression, err)
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q yielded %T", ErrNotBoolean, expression, result)
	}
	return b, nil
}

// ActiveRoute returns the id of the first route whose expression
// evaluates true. A route with an empty expression always matches,
// serving as the fallback branch. Returns ok=false when no route
// matches.
func (e *Evaluator) ActiveRoute(routes []canvasgraph.Route, env map[string]any) (string, bool, error) {
	for _, r := range routes {
		if r.Expression == "" {
			return r.ID, true, nil
		}
		matched, err := e.Evaluate(r.Expression, env)
		if err != nil {
			return "", false, fmt.Errorf("route %s: %w", r.ID, err)
		}
		if matched {
			return r.ID, true, nil
		}
	}
	return "", false, nil
}

// compile returns the cached program for the expression, compiling on
// first use.
func (e *Evaluator) compile(expression string) (*vm.Program, error) {
	e.mu.RLock()
	prg, ok := e.programs[expression]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	prg, err := expr.Compile(expression, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrBadExpression, expression, err)
	}

	e.mu.Lock()
	e.programs[expression] = prg
	e.mu.Unlock()
	return prg, nil
}
