package lifecycle

import (
	"fmt"
	"strings"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/types"
)

// State is an application lifecycle state
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateInitializing
	StatePaused
	StateActive
	StateSuspended
	StateHibernated
	StateTerminating
)

var stateNames = [...]string{
	StateUnloaded:     "UNLOADED",
	StateLoading:      "LOADING",
	StateInitializing: "INITIALIZING",
	StatePaused:       "PAUSED",
	StateActive:       "ACTIVE",
	StateSuspended:    "SUSPENDED",
	StateHibernated:   "HIBERNATED",
	StateTerminating:  "TERMINATING",
}

// String returns the string representation of the state
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// ParseState parses a state name, ignoring case
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if strings.EqualFold(n, name) {
			return State(i), nil
		}
	}
	return StateUnloaded, fmt.Errorf("unknown lifecycle state %q: %w", name, types.ErrInvalidInput)
}

// MarshalText implements encoding.TextMarshaler
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Events a pending transition can wait for
const (
	EventAppRunning    = "onAppRunning"
	EventAppReady      = "onAppReady"
	EventFirstFrame    = "onFirstFrame"
	EventAppTerminated = "onAppTerminated"
)

// Action is the collaborator call made when entering a state
type Action int

const (
	ActionNone Action = iota
	ActionRun
	ActionRenderCheck
	ActionSuspend
	ActionResume
	ActionHibernate
	ActionWake
	ActionTerminate
)

// Step describes entering a state from its neighbour
type Step struct {
	Action Action
	// Await is the event that must arrive before the new state takes
	// effect. Empty means the state is entered as soon as Action succeeds.
	Await string
}

var edges = map[State][]State{
	StateUnloaded:     {StateLoading},
	StateLoading:      {StateInitializing, StateTerminating},
	StateInitializing: {StatePaused, StateTerminating},
	StatePaused:       {StateActive, StateSuspended, StateTerminating},
	StateActive:       {StatePaused, StateTerminating},
	StateSuspended:    {StatePaused, StateHibernated, StateTerminating},
	StateHibernated:   {StateSuspended, StateTerminating},
	StateTerminating:  {StateUnloaded},
}

type transition struct {
	from, to State
}

var steps = map[transition]Step{
	{StateUnloaded, StateLoading}:     {},
	{StateLoading, StateInitializing}: {Action: ActionRun, Await: EventAppRunning},
	{StateInitializing, StatePaused}:  {Await: EventAppReady},
	{StatePaused, StateActive}:        {Action: ActionRenderCheck, Await: EventFirstFrame},
	{StateActive, StatePaused}:        {},
	{StatePaused, StateSuspended}:     {Action: ActionSuspend},
	{StateSuspended, StatePaused}:     {Action: ActionResume},
	{StateSuspended, StateHibernated}: {Action: ActionHibernate},
	{StateHibernated, StateSuspended}: {Action: ActionWake},
	{StateTerminating, StateUnloaded}: {},
}

// CanTransition reports whether to is a direct successor of from
func CanTransition(from, to State) bool {
	for _, next := range edges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StepFor returns the step for a direct transition
func StepFor(from, to State) (Step, bool) {
	if !CanTransition(from, to) {
		return Step{}, false
	}
	if to == StateTerminating {
		return Step{Action: ActionTerminate, Await: EventAppTerminated}, true
	}
	return steps[transition{from, to}], true
}

// Path returns the shortest sequence of states leading from one state to
// another, excluding from. It is empty when from == to and false when to is
// unreachable.
func Path(from, to State) ([]State, bool) {
	if from == to {
		return []State{}, true
	}

	prev := map[State]State{from: from}
	queue := []State{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range edges[cur] {
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = cur
			if next == to {
				var path []State
				for s := to; s != from; s = prev[s] {
					path = append([]State{s}, path...)
				}
				return path, true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}
