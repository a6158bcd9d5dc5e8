// Package core defines core types with zero external dependencies.
package core

import "fmt"

// Action is the terminal decision of one program invocation.
// Values match the kernel's enum xdp_action.
type Action uint32

const (
	ActionAborted  Action = 0
	ActionDrop     Action = 1
	ActionPass     Action = 2
	ActionTx       Action = 3
	ActionRedirect Action = 4
)

// Actions lists every Action in numeric order.
var Actions = []Action{ActionAborted, ActionDrop, ActionPass, ActionTx, ActionRedirect}

var actionNames = [...]string{
	ActionAborted:  "aborted",
	ActionDrop:     "drop",
	ActionPass:     "pass",
	ActionTx:       "tx",
	ActionRedirect: "redirect",
}

func (a Action) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return fmt.Sprintf("action(%d)", uint32(a))
}

// Valid reports whether a is one of the five defined actions.
func (a Action) Valid() bool {
	return a <= ActionRedirect
}

// ParseAction converts a lower-case action name to an Action.
func ParseAction(s string) (Action, error) {
	for i, name := range actionNames {
		if name == s {
			return Action(i), nil
		}
	}
	return ActionAborted, fmt.Errorf("%w: unknown action %q", ErrConfigInvalid, s)
}

// MarshalText encodes an Action by name.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText decodes an Action name.
func (a *Action) UnmarshalText(text []byte) error {
	v, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}
