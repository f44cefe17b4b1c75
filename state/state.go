package state

import (
	"errors"
	"fmt"
)

// Status 回合生命周期状态
type Status int

const (
	NotStarted Status = iota
	InProgress
	RoundClosed
	Finished
)

func (s Status) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case RoundClosed:
		return "round_closed"
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ErrTransitionNotAllowed is returned when a state transition is not allowed.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// Machine 状态机。只允许显式登记过的转换，并在进入状态时执行钩子。
// Machine 本身不加锁，由持有它的房间在自己的锁内驱动。
type Machine struct {
	current     Status
	transitions map[Status]map[Status]func() bool // from -> to -> guard
	onEnter     map[Status][]func(from Status)
}

func NewMachine(initial Status) *Machine {
	return &Machine{
		current:     initial,
		transitions: make(map[Status]map[Status]func() bool),
		onEnter:     make(map[Status][]func(from Status)),
	}
}

// AddTransition declares from -> to as legal. A nil guard always allows it.
func (m *Machine) AddTransition(from, to Status, guard func() bool) {
	if _, exists := m.transitions[from]; !exists {
		m.transitions[from] = make(map[Status]func() bool)
	}
	m.transitions[from][to] = guard
}

// OnEnter registers a hook that runs after the machine enters s.
func (m *Machine) OnEnter(s Status, hook func(from Status)) {
	m.onEnter[s] = append(m.onEnter[s], hook)
}

// Current returns the current status.
func (m *Machine) Current() Status {
	return m.current
}

// Can reports whether ChangeState(to) would succeed right now.
func (m *Machine) Can(to Status) bool {
	conditions, exists := m.transitions[m.current]
	if !exists {
		return false
	}
	guard, exists := conditions[to]
	if !exists {
		return false
	}
	return guard == nil || guard()
}

// ChangeState moves to the given status and runs its enter hooks.
func (m *Machine) ChangeState(to Status) error {
	if !m.Can(to) {
		return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, m.current, to)
	}

	from := m.current
	m.current = to
	for _, hook := range m.onEnter[to] {
		hook(from)
	}
	return nil
}
