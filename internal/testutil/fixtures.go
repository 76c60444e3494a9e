// Package testutil provides action fixtures and a call-recording fake
// backend for tests across the module.
package testutil

import (
	"fmt"

	"github.com/roach88/actionstore/internal/action"
)

// Mod adjusts a fixture action.
type Mod func(*action.Action)

// NewAction returns a valid action: a user login in company "acme" at Epoch,
// with one agent. Mods apply in order.
func NewAction(mods ...Mod) action.Action {
	a := action.Action{
		Timestamp:   At(0),
		CompanyID:   "acme",
		App:         "billing",
		Environment: "prod",
		Action:      action.Descriptor{Type: "user", Verb: "login"},
		Agents:      []action.Entity{{ID: "u1", Type: "user", Name: "Ada"}},
	}
	for _, mod := range mods {
		mod(&a)
	}
	return a
}

// NewActions returns n valid actions with ids "act-001"... and timestamps
// one second apart, oldest first.
func NewActions(n int, mods ...Mod) []action.Action {
	out := make([]action.Action, n)
	for i := range out {
		out[i] = NewAction(append([]Mod{WithID(SeqID(i + 1)), WithTimestamp(At(int64(i)))}, mods...)...)
	}
	return out
}

// SeqID renders the fixture id for position n.
func SeqID(n int) string {
	return fmt.Sprintf("act-%03d", n)
}

func WithID(id string) Mod { return func(a *action.Action) { a.ID = id } }

func WithTimestamp(ts string) Mod { return func(a *action.Action) { a.Timestamp = ts } }

func WithCompany(id string) Mod { return func(a *action.Action) { a.CompanyID = id } }

func WithApp(app string) Mod { return func(a *action.Action) { a.App = app } }

func WithVerb(verb string) Mod { return func(a *action.Action) { a.Action.Verb = verb } }

func WithTraceIDs(ids ...string) Mod { return func(a *action.Action) { a.TraceIDs = ids } }

func WithAgents(agents ...action.Entity) Mod {
	return func(a *action.Action) { a.Agents = agents }
}

func WithMeta(meta action.Object) Mod { return func(a *action.Action) { a.Meta = meta } }

// WithCost sets a cost in currency with the given amount.
func WithCost(amount float64, currency string) Mod {
	return func(a *action.Action) { a.Cost = &action.Cost{Amount: amount, Currency: currency} }
}

// Invalid breaks the action by clearing its required verb.
func Invalid() Mod { return func(a *action.Action) { a.Action.Verb = "" } }
