// Package cel compiles CEL expressions once and evaluates them against map variables.
// Script hooks evaluate against "node" and "event", lock list filters against "lock".
package cel

import (
	"fmt"
	"reflect"

	"github.com/google/cel-go/cel"
)

// Evaluator struct contains the CEL expression & the cel program used to evaluate expression vs. input variables.
type Evaluator struct {
	Name       string
	Expression string
	program    cel.Program
}

// NewEvaluator compiles expression with each of variables declared as map(string, dyn).
func NewEvaluator(name string, expression string, variables ...string) (*Evaluator, error) {
	if name == "" {
		return nil, fmt.Errorf("name can't be empty string")
	}
	if expression == "" {
		return nil, fmt.Errorf("expression can't be empty string")
	}
	if len(variables) == 0 {
		return nil, fmt.Errorf("at least one variable must be declared")
	}
	opts := make([]cel.EnvOption, 0, len(variables))
	for _, v := range variables {
		opts = append(opts, cel.Variable(v, cel.MapType(cel.StringType, cel.DynType)))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating CEL environment: %v", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("error compiling CEL expression %s: %v", name, issues.Err())
	}
	p, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("error creating Program: %v", err)
	}
	return &Evaluator{
		Name:       name,
		Expression: expression,
		program:    p,
	}, nil
}

// Evaluate runs the program against vars and returns the native Go value of the result.
func (e *Evaluator) Evaluate(vars map[string]any) (any, error) {
	out, _, err := e.program.Eval(vars)
	if err != nil {
		return nil, fmt.Errorf("error evaluating CEL expression %s: %v", e.Name, err)
	}
	return out.Value(), nil
}

// EvaluateBool runs the program and requires a boolean result.
func (e *Evaluator) EvaluateBool(vars map[string]any) (bool, error) {
	out, _, err := e.program.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("error evaluating CEL expression %s: %v", e.Name, err)
	}
	nv, err := out.ConvertToNative(reflect.TypeOf(true))
	if err != nil {
		return false, fmt.Errorf("error ConvertToNative, got err: %v", err)
	}
	if v, ok := nv.(bool); ok {
		return v, nil
	}
	return false, fmt.Errorf("error converting to bool, nv: %v", nv)
}
