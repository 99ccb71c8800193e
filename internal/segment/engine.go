// Package segment provides CEL-Go based filters that narrow the displayed
// order list, e.g. `city == "Pune" && amount > 1500.0`.
package segment

import (
	"container/list"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/500lbbicepcurl/Scalysis-public/internal/domain"
)

// ErrInvalidExpression is returned when a segment does not compile to a
// boolean CEL program.
var ErrInvalidExpression = errors.New("invalid segment expression")

// DefaultMaxPrograms bounds the compiled-program cache.
const DefaultMaxPrograms = 256

// Engine compiles and caches segment expressions. Segments arrive with
// each request, so the least recently used programs are evicted once
// maxPrograms are held.
type Engine struct {
	mu          sync.Mutex
	env         *cel.Env
	programs    map[string]*list.Element
	order       *list.List
	maxPrograms int
	maxWorkers  int
}

type programEntry struct {
	expr    string
	program cel.Program
}

// NewEngine creates a segment engine.
func NewEngine(maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 8
	}

	env, err := cel.NewEnv(
		cel.Variable("order", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("name", cel.StringType),
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("currency", cel.StringType),
		cel.Variable("city", cel.StringType),
		cel.Variable("province", cel.StringType),
		cel.Variable("country", cel.StringType),
		cel.Variable("zip", cel.StringType),
		cel.Variable("status", cel.StringType),
		cel.Variable("risk_score", cel.DoubleType),
		cel.Variable("flagged", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:         env,
		programs:    make(map[string]*list.Element),
		order:       list.New(),
		maxPrograms: DefaultMaxPrograms,
		maxWorkers:  maxWorkers,
	}, nil
}

// Validate compiles expr without caching it.
func (e *Engine) Validate(expr string) error {
	_, err := e.compile(expr)
	return err
}

// Filter returns the orders for which expr evaluates to true, preserving
// their order. An empty expression keeps every order.
func (e *Engine) Filter(orders []domain.OrderRecord, expr string) ([]domain.OrderRecord, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return orders, nil
	}

	program, err := e.program(expr)
	if err != nil {
		return nil, err
	}

	keep := make([]bool, len(orders))
	errs := make([]error, len(orders))
	var wg sync.WaitGroup

	// Limit concurrency with semaphore
	sem := make(chan struct{}, e.maxWorkers)

	for i := range orders {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			keep[idx], errs[idx] = match(program, &orders[idx])
		}(i)
	}

	wg.Wait()

	out := make([]domain.OrderRecord, 0, len(orders))
	for i := range orders {
		if errs[i] != nil {
			return nil, fmt.Errorf("order %s: %w", orders[i].OrderID, errs[i])
		}
		if keep[i] {
			out = append(out, orders[i])
		}
	}
	return out, nil
}

// CachedCount returns the number of compiled programs held.
func (e *Engine) CachedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.programs)
}

func (e *Engine) program(expr string) (cel.Program, error) {
	e.mu.Lock()
	if elem, ok := e.programs[expr]; ok {
		e.order.MoveToFront(elem)
		e.mu.Unlock()
		return elem.Value.(*programEntry).program, nil
	}
	e.mu.Unlock()

	p, err := e.compile(expr)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if elem, ok := e.programs[expr]; ok {
		e.order.MoveToFront(elem)
		return elem.Value.(*programEntry).program, nil
	}
	for e.order.Len() >= e.maxPrograms {
		oldest := e.order.Back()
		e.order.Remove(oldest)
		delete(e.programs, oldest.Value.(*programEntry).expr)
	}
	e.programs[expr] = e.order.PushFront(&programEntry{expr: expr, program: p})
	return p, nil
}

func (e *Engine) compile(expr string) (cel.Program, error) {
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("%w: expression must return bool, got %s", ErrInvalidExpression, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program: %w", err)
	}
	return program, nil
}

func match(program cel.Program, o *domain.OrderRecord) (bool, error) {
	out, _, err := program.Eval(activation(o))
	if err != nil {
		return false, fmt.Errorf("evaluation error: %w", err)
	}
	b, ok := out.(types.Bool)
	if !ok {
		return false, fmt.Errorf("expression returned %s, not bool", out.Type())
	}
	return bool(b), nil
}

func activation(o *domain.OrderRecord) map[string]any {
	amount, _ := o.Amount.Float64()
	score := 0.0
	if o.RiskScore != nil {
		score = *o.RiskScore
	}

	vars := map[string]any{
		"name":       o.Name,
		"amount":     amount,
		"currency":   o.Currency,
		"city":       o.City,
		"province":   o.Province,
		"country":    o.Country,
		"zip":        o.Zip,
		"status":     o.DeliveryStatus,
		"risk_score": score,
		"flagged":    o.FlaggedAt != nil,
	}

	order := make(map[string]any, len(vars)+2)
	for k, v := range vars {
		order[k] = v
	}
	order["id"] = o.OrderID
	order["address1"] = o.Address1
	vars["order"] = order
	return vars
}
