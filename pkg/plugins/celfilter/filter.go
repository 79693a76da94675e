// Package celfilter provides a tracker plugin that drops events for which a
// CEL expression evaluates to false.
package celfilter

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"ktrace/internal/config"
	"ktrace/internal/logger"
	"ktrace/pkg/models"
	"ktrace/pkg/tracker"
)

// Expressions see a single variable, event, with the keys id, type, name,
// timestamp, properties, userId and sessionId.
func newEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable("event", cel.MapType(cel.StringType, cel.DynType)),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}

type Filter struct {
	name       string
	expression string
	program    cel.Program
	log        logger.Logger
}

var (
	_ tracker.Plugin        = (*Filter)(nil)
	_ tracker.BeforeTracker = (*Filter)(nil)
)

// New compiles cfg.Expression. The expression must return bool.
func New(cfg config.FilterConfig, log logger.Logger) (*Filter, error) {
	if log == nil {
		log = logger.NopLogger()
	}

	env, err := newEnv()
	if err != nil {
		return nil, err
	}

	ast, issues := env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("filter expression must return bool, got %v", ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	name := cfg.Name
	if name == "" {
		name = cfg.Expression
	}

	return &Filter{
		name:       name,
		expression: cfg.Expression,
		program:    program,
		log:        log,
	}, nil
}

// FromConfig builds one filter per configured entry.
func FromConfig(cfg config.PluginsConfig, log logger.Logger) ([]tracker.Plugin, error) {
	plugins := make([]tracker.Plugin, 0, len(cfg.Filters))
	for _, fc := range cfg.Filters {
		f, err := New(fc, log)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", fc.Name, err)
		}
		plugins = append(plugins, f)
	}
	return plugins, nil
}

// Validate reports whether expression compiles to a bool filter.
func Validate(expression string) error {
	_, err := New(config.FilterConfig{Expression: expression}, nil)
	return err
}

func (f *Filter) Name() string {
	return "celfilter:" + f.name
}

// Match evaluates the expression against e.
func (f *Filter) Match(ctx context.Context, e models.Event) (bool, error) {
	result, _, err := f.program.ContextEval(ctx, map[string]interface{}{
		"event": eventVars(e),
	})
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	keep, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}
	return keep, nil
}

// BeforeTrack keeps events the expression cannot be evaluated against.
func (f *Filter) BeforeTrack(e models.Event) (models.Event, bool) {
	keep, err := f.Match(context.Background(), e)
	if err != nil {
		f.log.Warnw("Filter evaluation failed, keeping event",
			"filter", f.name,
			"event_name", e.Name,
			"error", err,
		)
		return e, true
	}
	return e, keep
}

func eventVars(e models.Event) map[string]interface{} {
	props := e.Properties
	if props == nil {
		props = map[string]interface{}{}
	}
	return map[string]interface{}{
		"id":         e.ID,
		"type":       string(e.Type),
		"name":       e.Name,
		"timestamp":  e.Timestamp,
		"properties": props,
		"userId":     e.UserID,
		"sessionId":  e.SessionID,
	}
}
