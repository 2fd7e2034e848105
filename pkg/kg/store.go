// Package kg implements the Knowledge Store (§4.3): a set-semantic graph of
// KGStatements queryable via GraphQL, mutated through verified patches, and
// observable through compiled-filter subscriptions.
package kg

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/syedsany6/a2a-runtime/pkg/a2a"
	"github.com/syedsany6/a2a-runtime/pkg/errors"
)

// Store is the contract the dispatcher depends on.
type Store interface {
	Query(ctx context.Context, params a2a.KnowledgeQueryParams) (*a2a.KnowledgeQueryResult, error)
	Update(ctx context.Context, params a2a.KnowledgeUpdateParams) (*a2a.KnowledgeUpdateResult, []a2a.KnowledgeGraphChangeEvent, error)
	Subscribe(params a2a.KnowledgeSubscribeParams) (*Subscription, error)
	Unsubscribe(sub *Subscription)
}

// Subscription is a live knowledge/subscribe registration: a compiled
// filter plus the channel change events matching it are pushed to.
type Subscription struct {
	id     uint64
	filter compiledFilter
	Events chan a2a.KnowledgeGraphChangeEvent
}

// InMemoryStore holds the statement set in a map keyed by I5's identity
// tuple, guarded by a single mutex — reads and writes are infrequent
// enough relative to HTTP request latency that per-statement locking
// (as used for Tasks in pkg/stores) isn't warranted here.
type InMemoryStore struct {
	mu         sync.Mutex
	statements map[statementKey]a2a.KGStatement
	policy     VerificationPolicy
	subs       map[uint64]*Subscription
	nextSubID  uint64
}

type statementKey struct {
	subject   string
	predicate string
	object    any
	graph     string
}

func keyOf(s a2a.KGStatement) statementKey {
	id := s.Identity()
	return statementKey{subject: id[0].(string), predicate: id[1].(string), object: id[2], graph: id[3].(string)}
}

// NewInMemoryStore creates an empty store with the given verification
// policy (§5.4 — a plug-in, not hard-coded).
func NewInMemoryStore(policy VerificationPolicy) *InMemoryStore {
	if policy == nil {
		policy = AlwaysVerifyPolicy{}
	}
	return &InMemoryStore{
		statements: make(map[statementKey]a2a.KGStatement),
		policy:     policy,
		subs:       make(map[uint64]*Subscription),
	}
}

// Query executes params.Query against the current snapshot using
// graphql-go, the only supported queryLanguage (§4.3).
func (s *InMemoryStore) Query(ctx context.Context, params a2a.KnowledgeQueryParams) (*a2a.KnowledgeQueryResult, error) {
	if params.QueryLanguage != "graphql" {
		return nil, errors.ErrKnowledgeQueryError.WithMessagef("unsupported queryLanguage %q", params.QueryLanguage)
	}

	s.mu.Lock()
	snapshot := make([]a2a.KGStatement, 0, len(s.statements))
	for _, st := range s.statements {
		snapshot = append(snapshot, st)
	}
	s.mu.Unlock()

	snapshot = applyFilters(snapshot, params.Filters)

	schema, err := buildSchema(snapshot)
	if err != nil {
		return nil, errors.ErrKnowledgeQueryError.WithMessagef("failed to build schema: %v", err)
	}

	result := execute(ctx, schema, params.Query, params.Variables)

	out := &a2a.KnowledgeQueryResult{Data: result.data}
	if len(result.errors) > 0 {
		if result.data == nil {
			return nil, errors.ErrKnowledgeQueryError.WithMessagef("%s", result.errors[0])
		}
		out.Errors = result.errors
	}
	return out, nil
}

func applyFilters(statements []a2a.KGStatement, filters *a2a.KnowledgeQueryFilters) []a2a.KGStatement {
	if filters == nil {
		return statements
	}
	out := statements[:0:0]
	for _, st := range statements {
		if filters.RequiredCertainty != nil {
			if st.Certainty == nil || *st.Certainty < *filters.RequiredCertainty {
				continue
			}
		}
		out = append(out, st)
	}
	return out
}

// Update validates, verifies, and applies a batch of patches atomically
// (§4.3: "all-or-nothing within one update call").
func (s *InMemoryStore) Update(ctx context.Context, params a2a.KnowledgeUpdateParams) (*a2a.KnowledgeUpdateResult, []a2a.KnowledgeGraphChangeEvent, error) {
	for i := range params.Mutations {
		if err := params.Mutations[i].Validate(); err != nil {
			return nil, nil, errors.ErrInvalidParams.WithMessagef("mutation %d: %v", i, err)
		}
	}

	verdict, details, err := s.policy.Verify(ctx, params.Mutations, params.SourceAgentID, params.Justification)
	if err != nil {
		return nil, nil, errors.ErrKnowledgeUpdateError.WithMessagef("verification failed: %v", err)
	}
	if verdict == a2a.VerificationRejected {
		return nil, nil, errors.ErrAlignmentViolation.WithMessagef("rejected: %s", details)
	}

	s.mu.Lock()
	affected := make([]string, 0, len(params.Mutations))
	events := make([]a2a.KnowledgeGraphChangeEvent, 0, len(params.Mutations))
	applied := 0

	for _, patch := range params.Mutations {
		key := keyOf(patch.Statement)

		switch patch.Op {
		case a2a.PatchOpAdd:
			if _, exists := s.statements[key]; exists {
				continue // I7: duplicate add is a no-op
			}
			s.statements[key] = patch.Statement
		case a2a.PatchOpRemove:
			if _, exists := s.statements[key]; !exists {
				continue
			}
			delete(s.statements, key)
		case a2a.PatchOpReplace:
			delete(s.statements, key)
			s.statements[key] = patch.Statement
		}

		applied++
		affected = append(affected, subjectPredicateID(patch.Statement))
		events = append(events, a2a.KnowledgeGraphChangeEvent{
			Op:             patch.Op,
			Statement:      patch.Statement,
			ChangeID:       uuid.New().String(),
			Timestamp:      time.Now().UTC().Format(time.RFC3339Nano),
			ChangeMetadata: params.Metadata,
		})
	}
	s.mu.Unlock()

	s.dispatch(events)

	return &a2a.KnowledgeUpdateResult{
		Success:            true,
		StatementsAffected: applied,
		AffectedIDs:        affected,
		VerificationStatus: string(verdict),
	}, events, nil
}

func subjectPredicateID(s a2a.KGStatement) string {
	return fmt.Sprintf("%s|%s", s.Subject.ID, s.Predicate.ID)
}

// Subscribe compiles the filter once from params.Variables (see
// compileFilter; subscriptionQuery is not parsed) and registers the
// subscription for future change events.
func (s *InMemoryStore) Subscribe(params a2a.KnowledgeSubscribeParams) (*Subscription, error) {
	filter, err := compileFilter(params)
	if err != nil {
		return nil, errors.ErrKnowledgeSubscriptionError.WithMessagef("%v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	sub := &Subscription{
		id:     s.nextSubID,
		filter: filter,
		Events: make(chan a2a.KnowledgeGraphChangeEvent, 1024),
	}
	s.subs[sub.id] = sub
	return sub, nil
}

// Unsubscribe deregisters a subscription.
func (s *InMemoryStore) Unsubscribe(sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[sub.id]; ok {
		delete(s.subs, sub.id)
		close(sub.Events)
	}
}

// dispatch pushes each event, in patch-array order, to every subscription
// whose filter matches (§5: "All change events produced by a single
// knowledge/update are emitted in patch-array order").
func (s *InMemoryStore) dispatch(events []a2a.KnowledgeGraphChangeEvent) {
	s.mu.Lock()
	subs := make([]*Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	sort.Slice(subs, func(i, j int) bool { return subs[i].id < subs[j].id })

	for _, ev := range events {
		for _, sub := range subs {
			if !sub.filter.matches(ev.Statement) {
				continue
			}
			select {
			case sub.Events <- ev:
			default:
				// overflow: the Hub-side consumer owns KnowledgeSubscriptionError
				// delivery; here we simply drop to avoid blocking dispatch.
			}
		}
	}
}
