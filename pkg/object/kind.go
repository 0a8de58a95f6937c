package object

// Relevance is the answer to a parameter relevance query.
type Relevance int

const (
	// NotApplicable means the kind does not answer relevance queries.
	// Callers must treat it as "skip this node", not as a failure.
	NotApplicable Relevance = iota
	// NotRelevant means the parameter does not affect the node.
	NotRelevant
	// Relevant means the parameter affects the node.
	Relevant
)

func (r Relevance) String() string {
	switch r {
	case NotRelevant:
		return "not-relevant"
	case Relevant:
		return "relevant"
	default:
		return "not-applicable"
	}
}

// Err returns ErrUnsupported for NotApplicable and nil otherwise.
func (r Relevance) Err() error {
	if r == NotApplicable {
		return ErrUnsupported
	}
	return nil
}

// Param identifies a parameter whose relevance is being queried.
// Implementations are compared by identity.
type Param interface {
	ParamName() string
}

// Visited records the objects a relevance query has already searched.
// It keeps recursive queries over cyclic call graphs finite.
type Visited map[Handle]struct{}

// Visit marks h as visited and reports whether it was new.
func (v Visited) Visit(h Handle) bool {
	if _, ok := v[h]; ok {
		return false
	}
	v[h] = struct{}{}
	return true
}

// Kind supplies the kind-specific behavior of an object.
//
// Hooks are always invoked without the graph's internal lock held, so they
// may call back into [Object] methods.
type Kind interface {
	// PerformCleanup tears down kind-specific state. It is only invoked for
	// objects whose cleanup mark is set.
	PerformCleanup(o *Object)

	// DisconnectCalls severs every call edge into or out of the object.
	// It must be idempotent.
	DisconnectCalls(o *Object)

	// IsParamRelevant reports whether p affects the object.
	IsParamRelevant(o *Object, visited Visited, p Param) Relevance
}

// Base is the default Kind. Embed it to override only some hooks.
type Base struct{}

// PerformCleanup does nothing.
func (Base) PerformCleanup(*Object) {}

// DisconnectCalls does nothing.
func (Base) DisconnectCalls(*Object) {}

// IsParamRelevant always answers NotApplicable.
func (Base) IsParamRelevant(*Object, Visited, Param) Relevance { return NotApplicable }

var _ Kind = Base{}
