// internal/integrations/types.go
package integrations

import (
	"context"
	"encoding/json"

	"github.com/bartek5186/mosync/internal/localtime"
	"github.com/bartek5186/mosync/internal/store"
	"github.com/rs/zerolog"
)

// Report to wynik jednego przebiegu joba. Failures > 0 oznacza częściowy
// sukces: przebieg się zakończył, ale część pozycji nie przeszła.
type Report interface {
	Failures() int
}

// Job to jeden przebieg synchronizacji uruchamiany przez scheduler.
type Job interface {
	Name() string
	Run(ctx context.Context) (Report, error) // blokuje do końca przebiegu
}

// SessionSetter: joby, którym sesję można podmienić przy starcie schedulera.
type SessionSetter interface {
	SetSessionID(id string)
}

// Deps: wspólne zależności przekazywane do fabryk.
type Deps struct {
	Log   zerolog.Logger
	Store *store.Store
	Clock localtime.Clock
}

type Factory func(deps Deps, raw json.RawMessage) (Job, error)
