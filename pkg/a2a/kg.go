package a2a

import "fmt"

// KGResource identifies a subject or a resource-typed object by URI.
type KGResource struct {
	ID   string `json:"id"`
	Type string `json:"type,omitempty"`
}

// KGObject is the sum type described in §3: exactly one of a resource
// reference (ID set) or a literal value.
type KGObject struct {
	ID    string `json:"id,omitempty"`
	Type  string `json:"type,omitempty"`
	Value any    `json:"value,omitempty"`
}

// IsResource reports whether this object is a resource reference rather
// than a literal.
func (o KGObject) IsResource() bool {
	return o.ID != ""
}

// Validate enforces the xor between ID and Value.
func (o KGObject) Validate() error {
	hasID := o.ID != ""
	hasValue := o.Value != nil
	if hasID == hasValue {
		return fmt.Errorf("kg object must set exactly one of id or value")
	}
	return nil
}

// KGStatement is a single subject-predicate-object triple plus optional
// named-graph, certainty, and provenance metadata (§3).
type KGStatement struct {
	Subject    KGResource `json:"subject"`
	Predicate  KGResource `json:"predicate"`
	Object     KGObject   `json:"object"`
	Graph      string     `json:"graph,omitempty"`
	Certainty  *float64   `json:"certainty,omitempty"`
	Provenance any        `json:"provenance,omitempty"`
}

// Validate checks the statement's required fields and certainty range (I6).
func (s *KGStatement) Validate() error {
	if s.Subject.ID == "" {
		return fmt.Errorf("kg statement: subject.id must not be blank")
	}
	if s.Predicate.ID == "" {
		return fmt.Errorf("kg statement: predicate.id must not be blank")
	}
	if err := s.Object.Validate(); err != nil {
		return fmt.Errorf("kg statement: %w", err)
	}
	if s.Certainty != nil && (*s.Certainty < 0 || *s.Certainty > 1) {
		return fmt.Errorf("kg statement: certainty must be within [0,1]")
	}
	return nil
}

// Identity returns the tuple that identifies this statement for
// remove/replace matching (I5): subject, predicate, object (resource id
// or literal value), and graph.
func (s *KGStatement) Identity() [4]any {
	var objKey any
	if s.Object.IsResource() {
		objKey = s.Object.ID
	} else {
		objKey = s.Object.Value
	}
	return [4]any{s.Subject.ID, s.Predicate.ID, objKey, s.Graph}
}

// PatchOp enumerates the knowledge/update operation kinds.
type PatchOp string

const (
	PatchOpAdd     PatchOp = "add"
	PatchOpRemove  PatchOp = "remove"
	PatchOpReplace PatchOp = "replace"
)

// KnowledgeGraphPatch is a single add/remove/replace operation on a
// KGStatement, as submitted to knowledge/update.
type KnowledgeGraphPatch struct {
	Op        PatchOp     `json:"op"`
	Statement KGStatement `json:"statement"`
}

func (p *KnowledgeGraphPatch) Validate() error {
	switch p.Op {
	case PatchOpAdd, PatchOpRemove, PatchOpReplace:
	default:
		return fmt.Errorf("kg patch: unknown op %q", p.Op)
	}
	return p.Statement.Validate()
}

// KnowledgeGraphChangeEvent is published once per applied patch and
// delivered to matching knowledge/subscribe streams (§6).
type KnowledgeGraphChangeEvent struct {
	Op             PatchOp        `json:"op"`
	Statement      KGStatement    `json:"statement"`
	ChangeID       string         `json:"changeId"`
	Timestamp      string         `json:"timestamp"`
	ChangeMetadata map[string]any `json:"changeMetadata,omitempty"`
}

// KnowledgeQueryParams are the params for a knowledge/query call.
type KnowledgeQueryParams struct {
	QueryLanguage string                 `json:"queryLanguage"`
	Query         string                 `json:"query"`
	Variables     map[string]any         `json:"variables,omitempty"`
	Filters       *KnowledgeQueryFilters `json:"filters,omitempty"`
}

// KnowledgeQueryFilters narrow a query's result set, per §4.3.
// kg.InMemoryStore applies RequiredCertainty only; MaxAgeSeconds is
// accepted on the wire but not applied.
type KnowledgeQueryFilters struct {
	RequiredCertainty *float64 `json:"requiredCertainty,omitempty"`
	MaxAgeSeconds      *int64   `json:"maxAgeSeconds,omitempty"`
}

// KnowledgeQueryResult echoes GraphQL's {data, errors?} shape, plus an
// optional implementation-defined metadata bag.
type KnowledgeQueryResult struct {
	Data          any            `json:"data,omitempty"`
	Errors        []string       `json:"errors,omitempty"`
	QueryMetadata map[string]any `json:"queryMetadata,omitempty"`
}

// KnowledgeUpdateParams are the params for a knowledge/update call. The
// wire field is "mutations" per §6's bit-exact interface list even though
// §4.3 prose calls the same thing "patches" — kept as one Go field so the
// two descriptions resolve to a single shape.
type KnowledgeUpdateParams struct {
	Mutations     []KnowledgeGraphPatch `json:"mutations"`
	TaskID        string                `json:"taskId,omitempty"`
	SessionID     string                `json:"sessionId,omitempty"`
	SourceAgentID string                `json:"sourceAgentId,omitempty"`
	Justification string                `json:"justification,omitempty"`
	Metadata      map[string]any        `json:"metadata,omitempty"`
}

// VerificationStatus is the outcome of alignment verification for a batch
// of patches (§4.3, §5.4).
type VerificationStatus string

const (
	VerificationVerified      VerificationStatus = "Verified"
	VerificationPendingReview VerificationStatus = "Pending Review"
	VerificationRejected      VerificationStatus = "Rejected"
)

// KnowledgeUpdateResult is the result of a knowledge/update call.
type KnowledgeUpdateResult struct {
	Success             bool     `json:"success"`
	StatementsAffected  int      `json:"statementsAffected"`
	AffectedIDs         []string `json:"affectedIds,omitempty"`
	VerificationStatus  string   `json:"verificationStatus"`
	VerificationDetails string   `json:"verificationDetails,omitempty"`
}

// KnowledgeSubscribeParams are the params for a knowledge/subscribe call.
type KnowledgeSubscribeParams struct {
	SubscriptionQuery string                 `json:"subscriptionQuery"`
	QueryLanguage     string                 `json:"queryLanguage"`
	Variables         map[string]any         `json:"variables,omitempty"`
	Filters           *KnowledgeQueryFilters `json:"filters,omitempty"`
}
