package startup

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestStartupOrdering(t *testing.T) {
	var started []string

	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			started = append(started, name)
			return nil
		}
	}

	s := New(testLogger(), 1)
	s.AddDependency(&FuncDependency{Name: "api", Deps: []string{"db", "kafka"}, StartFunc: record("api")})
	s.AddDependency(&FuncDependency{Name: "db", StartFunc: record("db")})
	s.AddDependency(&FuncDependency{Name: "kafka", Deps: []string{"db"}, StartFunc: record("kafka")})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"db", "kafka", "api"}, started)
}

func TestStartupUnknownDependency(t *testing.T) {
	s := New(testLogger(), 1)
	s.AddDependency(&FuncDependency{Name: "api", Deps: []string{"missing"}})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestStartupRetries(t *testing.T) {
	attempts := 0
	s := New(testLogger(), 2)
	s.AddDependency(&FuncDependency{
		Name: "db",
		StartFunc: func(context.Context) error {
			attempts++
			if attempts < 2 {
				return errors.New("connection refused")
			}
			return nil
		},
	})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 2, attempts)
}

func TestStartupExhaustsAttempts(t *testing.T) {
	s := New(testLogger(), 1)
	s.AddDependency(&FuncDependency{
		Name:      "db",
		StartFunc: func(context.Context) error { return errors.New("connection refused") },
	})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "startup failed after 1 attempts")
}

func TestStopReversesOrder(t *testing.T) {
	var stopped []string

	s := New(testLogger(), 1)
	for _, name := range []string{"db", "kafka", "api"} {
		name := name
		s.AddDependency(&FuncDependency{
			Name: name,
			StopFunc: func(context.Context) error {
				stopped = append(stopped, name)
				return nil
			},
		})
	}

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, []string{"api", "kafka", "db"}, stopped)
}

func TestStopSkipsNeverStarted(t *testing.T) {
	stopped := false

	s := New(testLogger(), 1)
	s.AddDependency(&FuncDependency{
		Name:      "db",
		StartFunc: func(context.Context) error { return errors.New("boom") },
		StopFunc: func(context.Context) error {
			stopped = true
			return nil
		},
	})

	require.Error(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, stopped)
}
