package module

import (
	"sync"

	errs "github.com/matzehuels/modgraph/pkg/errors"
)

// Call is a directed edge from a caller slot of one module into another module.
type Call struct {
	class string
	from  *Module
	slot  string
	to    *Module

	mu      sync.Mutex
	severed bool
}

// Connect creates a call from the caller slot of from into to.
//
// Returns INVALID_NAME if slot is not a valid name and DUPLICATE if the slot
// already has a call.
func Connect(from *Module, slot string, to *Module, class string) (*Call, error) {
	if from == nil || to == nil {
		return nil, errs.New(errs.ErrCodeInvalidInput, "call endpoints must not be nil")
	}
	if err := errs.ValidateSegment(slot); err != nil {
		return nil, err
	}
	c := &Call{class: class, from: from, slot: slot, to: to}

	from.mu.Lock()
	if _, ok := from.callers[slot]; ok {
		from.mu.Unlock()
		return nil, errs.New(errs.ErrCodeDuplicate, "caller slot %s.%s is already connected", from.obj, slot)
	}
	from.callers[slot] = c
	from.mu.Unlock()

	to.mu.Lock()
	to.callees = append(to.callees, c)
	to.mu.Unlock()
	return c, nil
}

// From returns the calling module.
func (c *Call) From() *Module { return c.from }

// To returns the called module.
func (c *Call) To() *Module { return c.to }

// Slot returns the caller slot name.
func (c *Call) Slot() string { return c.slot }

// Class returns the call class.
func (c *Call) Class() string { return c.class }

// Connected reports whether the call has not been severed.
func (c *Call) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.severed
}

// Sever removes the call from both endpoints. It reports whether this
// invocation did the severing; later invocations return false.
func (c *Call) Sever() bool {
	c.mu.Lock()
	if c.severed {
		c.mu.Unlock()
		return false
	}
	c.severed = true
	c.mu.Unlock()

	c.from.removeCaller(c)
	c.to.removeCallee(c)
	return true
}

func (c *Call) String() string {
	return c.from.FullName() + "." + c.slot + " -> " + c.to.FullName()
}
