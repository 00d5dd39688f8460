// Package consent tracks whether the operator accepted the risk of running
// external plugins. The state is a persisted global property; once
// REQUIRED or ACCEPTED it is never downgraded by the host.
package consent

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/agentx-labs/pluginhost/internal/registry"
)

// PropertyKey is the global property holding the consent state.
const PropertyKey = "plugins.risk.consent"

// State is the persisted consent value.
type State string

const (
	NotAccepted State = "NOT_ACCEPTED"
	Required    State = "REQUIRED"
	Accepted    State = "ACCEPTED"
)

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	switch s {
	case NotAccepted, Required, Accepted:
		return true
	}
	return false
}

// PropertyStore reads and writes named global properties.
type PropertyStore interface {
	Property(key string) (string, bool, error)
	SetProperty(key, value string) error
}

// Verifier applies the consent rules against a PropertyStore.
type Verifier struct {
	Store  PropertyStore
	Logger *log.Logger
}

// NewVerifier returns a Verifier over store.
func NewVerifier(store PropertyStore, logger *log.Logger) *Verifier {
	return &Verifier{Store: store, Logger: logger}
}

// State returns the persisted state. An absent property reads as
// NotAccepted; set reports whether it was present.
func (v *Verifier) State() (state State, set bool, err error) {
	raw, ok, err := v.Store.Property(PropertyKey)
	if err != nil {
		return "", false, fmt.Errorf("reading %s: %w", PropertyKey, err)
	}
	if !ok {
		return NotAccepted, false, nil
	}
	s := State(raw)
	if !s.Valid() {
		return NotAccepted, true, nil
	}
	return s, true, nil
}

// Verify runs once per startup. When reg holds at least one external unit
// and consent was not accepted, the state becomes REQUIRED and a warning is
// logged. Without external units the store is left untouched.
func (v *Verifier) Verify(reg *registry.Registry) (State, error) {
	external := reg.AllOfType(registry.External)
	if len(external) == 0 {
		state, _, err := v.State()
		return state, err
	}

	state, _, err := v.State()
	if err != nil {
		return "", err
	}
	if state == Accepted {
		return Accepted, nil
	}

	if state != Required {
		if err := v.Store.SetProperty(PropertyKey, string(Required)); err != nil {
			return "", fmt.Errorf("writing %s: %w", PropertyKey, err)
		}
	}
	if v.Logger != nil {
		v.Logger.Warn("external plugins are installed; the risk consent must be accepted",
			"plugins", len(external), "command", "consent accept")
	}
	return Required, nil
}

// Accept records that the operator accepted the risk.
func (v *Verifier) Accept() error {
	if err := v.Store.SetProperty(PropertyKey, string(Accepted)); err != nil {
		return fmt.Errorf("writing %s: %w", PropertyKey, err)
	}
	return nil
}
