package sim

import "log"

// HookPos defines a position in the simulation where hooks can be invoked.
type HookPos struct {
	Name string
}

// HookCtx holds the information about the site where a hook is triggered.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   interface{}
	Detail interface{}
}

// Hookable is an object that accepts hooks.
type Hookable interface {
	// AcceptHook registers a hook.
	AcceptHook(hook Hook)
}

// HookPosBeforeEvent triggers before handling an event.
var HookPosBeforeEvent = &HookPos{Name: "BeforeEvent"}

// HookPosAfterEvent triggers after handling an event.
var HookPosAfterEvent = &HookPos{Name: "AfterEvent"}

// A Hook is a short piece of program invoked by a hookable object.
type Hook interface {
	Func(ctx HookCtx)
}

// HookableBase provides the utility functions for types that implement the
// Hookable interface.
type HookableBase struct {
	Hooks []Hook
}

// AcceptHook registers a hook.
func (h *HookableBase) AcceptHook(hook Hook) {
	h.Hooks = append(h.Hooks, hook)
}

// NumHooks returns the number of hooks registered.
func (h *HookableBase) NumHooks() int {
	return len(h.Hooks)
}

// InvokeHook triggers all the registered hooks.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.Hooks {
		hook.Func(ctx)
	}
}

// LogHookBase provides the common logic for hooks that log.
type LogHookBase struct {
	*log.Logger
}
