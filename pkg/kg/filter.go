package kg

import "github.com/syedsany6/a2a-runtime/pkg/a2a"

// compiledFilter is the "portable implementation strategy" from §9 Design
// Notes: rather than re-running a GraphQL subscription query per patch, the
// subject/predicate/object the subscriber cares about are extracted once at
// subscribe time and checked with plain equality thereafter. A zero-value
// field means "don't filter on this component".
type compiledFilter struct {
	subject   string
	predicate string
	object    string
	graph     string
}

func (f compiledFilter) matches(s a2a.KGStatement) bool {
	if f.subject != "" && f.subject != s.Subject.ID {
		return false
	}
	if f.predicate != "" && f.predicate != s.Predicate.ID {
		return false
	}
	if f.graph != "" && f.graph != s.Graph {
		return false
	}
	if f.object != "" {
		objKey := s.Object.ID
		if !s.Object.IsResource() {
			if v, ok := s.Object.Value.(string); ok {
				objKey = v
			}
		}
		if f.object != objKey {
			return false
		}
	}
	return true
}

// compileFilter extracts subject/predicate/object/graph from the
// subscription's variables (a GraphQL subscription document typically
// parameterizes its arguments through $variables, so this reads the same
// names the query would bind). subscriptionQuery itself is accepted as
// documentation of intent but not parsed; filtering logic, not a full
// GraphQL engine, is what §9 requires for subscription matching.
func compileFilter(params a2a.KnowledgeSubscribeParams) (compiledFilter, error) {
	var f compiledFilter
	if params.Variables == nil {
		return f, nil
	}
	if v, ok := params.Variables["subject"].(string); ok {
		f.subject = v
	}
	if v, ok := params.Variables["predicate"].(string); ok {
		f.predicate = v
	}
	if v, ok := params.Variables["object"].(string); ok {
		f.object = v
	}
	if v, ok := params.Variables["graph"].(string); ok {
		f.graph = v
	}
	return f, nil
}
