package health

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func check(name string, err error) Checker {
	return CheckFunc{CheckName: name, Fn: func(context.Context) error { return err }}
}

func TestCheckerRegistry(t *testing.T) {
	tests := []struct {
		name     string
		required []Checker
		optional []Checker
		want     Status
	}{
		{"empty", nil, nil, StatusHealthy},
		{"all healthy", []Checker{check("sink", nil)}, []Checker{check("kafka", nil)}, StatusHealthy},
		{"optional down", []Checker{check("sink", nil)}, []Checker{check("kafka", errors.New("refused"))}, StatusDegraded},
		{"required down", []Checker{check("sink", errors.New("disk full"))}, []Checker{check("kafka", errors.New("refused"))}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewCheckerRegistry()
			for _, c := range tt.required {
				r.Register(c)
			}
			for _, c := range tt.optional {
				r.RegisterOptional(c)
			}

			h := r.Check(context.Background())
			assert.Equal(t, tt.want, h.Status)
			assert.Len(t, h.Checks, len(tt.required)+len(tt.optional))
		})
	}
}

func TestCheckerRegistry_Messages(t *testing.T) {
	r := NewCheckerRegistry()
	r.Register(check("sink", errors.New("disk full")))

	h := r.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, h.Checks["sink"].Status)
	assert.Equal(t, "disk full", h.Checks["sink"].Message)
}

func TestFileChecker(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, NewFileChecker(filepath.Join(dir, "data.json")).Check(context.Background()))
	assert.Error(t, NewFileChecker(filepath.Join(dir, "missing", "data.json")).Check(context.Background()))
}

func TestKafkaChecker_NoBrokers(t *testing.T) {
	assert.Error(t, NewKafkaChecker(nil).Check(context.Background()))
}
