package kg

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/syedsany6/a2a-runtime/pkg/a2a"
)

func addPatch(subject, predicate, value string) a2a.KnowledgeGraphPatch {
	return a2a.KnowledgeGraphPatch{
		Op: a2a.PatchOpAdd,
		Statement: a2a.KGStatement{
			Subject:   a2a.KGResource{ID: subject},
			Predicate: a2a.KGResource{ID: predicate},
			Object:    a2a.KGObject{Value: value},
		},
	}
}

func TestStoreUpdateAndQuery(t *testing.T) {
	Convey("Given an in-memory knowledge store", t, func() {
		store := NewInMemoryStore(AlwaysVerifyPolicy{})
		ctx := context.Background()

		Convey("adding a statement then querying it back", func() {
			result, events, err := store.Update(ctx, a2a.KnowledgeUpdateParams{
				Mutations: []a2a.KnowledgeGraphPatch{addPatch("agent:1", "knows", "topic:go")},
			})
			So(err, ShouldBeNil)
			So(result.Success, ShouldBeTrue)
			So(result.StatementsAffected, ShouldEqual, 1)
			So(len(events), ShouldEqual, 1)
			So(events[0].ChangeID, ShouldNotBeEmpty)

			qr, err := store.Query(ctx, a2a.KnowledgeQueryParams{
				QueryLanguage: "graphql",
				Query:         `{ statements(subject: "agent:1") { subject { id } object { value } } }`,
			})
			So(err, ShouldBeNil)
			So(qr.Data, ShouldNotBeNil)
		})

		Convey("duplicate add is a no-op per I7", func() {
			patch := addPatch("agent:2", "knows", "topic:rust")
			_, _, err := store.Update(ctx, a2a.KnowledgeUpdateParams{Mutations: []a2a.KnowledgeGraphPatch{patch}})
			So(err, ShouldBeNil)

			result, events, err := store.Update(ctx, a2a.KnowledgeUpdateParams{Mutations: []a2a.KnowledgeGraphPatch{patch}})
			So(err, ShouldBeNil)
			So(result.StatementsAffected, ShouldEqual, 0)
			So(len(events), ShouldEqual, 0)
		})

		Convey("unsupported query language is rejected", func() {
			_, err := store.Query(ctx, a2a.KnowledgeQueryParams{QueryLanguage: "sparql", Query: "x"})
			So(err, ShouldNotBeNil)
		})

		Convey("invalid mutation shape is rejected before verification", func() {
			bad := a2a.KnowledgeGraphPatch{Op: a2a.PatchOpAdd, Statement: a2a.KGStatement{}}
			_, _, err := store.Update(ctx, a2a.KnowledgeUpdateParams{Mutations: []a2a.KnowledgeGraphPatch{bad}})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestStoreSubscribeMatching(t *testing.T) {
	Convey("Given a subscription filtered to one subject", t, func() {
		store := NewInMemoryStore(AlwaysVerifyPolicy{})
		ctx := context.Background()

		sub, err := store.Subscribe(a2a.KnowledgeSubscribeParams{
			SubscriptionQuery: `subscription { statements(subject: "agent:1") { subject { id } } }`,
			QueryLanguage:     "graphql",
			Variables:         map[string]any{"subject": "agent:1"},
		})
		So(err, ShouldBeNil)
		defer store.Unsubscribe(sub)

		Convey("a matching update is delivered", func() {
			_, _, err := store.Update(ctx, a2a.KnowledgeUpdateParams{
				Mutations: []a2a.KnowledgeGraphPatch{addPatch("agent:1", "knows", "topic:go")},
			})
			So(err, ShouldBeNil)

			ev := <-sub.Events
			So(ev.Statement.Subject.ID, ShouldEqual, "agent:1")
		})

		Convey("a non-matching update is not delivered", func() {
			_, _, err := store.Update(ctx, a2a.KnowledgeUpdateParams{
				Mutations: []a2a.KnowledgeGraphPatch{addPatch("agent:2", "knows", "topic:rust")},
			})
			So(err, ShouldBeNil)

			select {
			case ev := <-sub.Events:
				t.Fatalf("unexpected event delivered: %+v", ev)
			default:
			}
		})
	})
}

func TestRequireJustificationPolicy(t *testing.T) {
	Convey("Given the require-justification policy", t, func() {
		policy := RequireJustificationPolicy{}
		ctx := context.Background()

		Convey("a batch with no justification is rejected", func() {
			verdict, details, err := policy.Verify(ctx, nil, "agent:1", "")
			So(err, ShouldBeNil)
			So(verdict, ShouldEqual, a2a.VerificationRejected)
			So(details, ShouldNotBeEmpty)
		})

		Convey("a batch with justification is verified", func() {
			verdict, _, err := policy.Verify(ctx, nil, "agent:1", "because")
			So(err, ShouldBeNil)
			So(verdict, ShouldEqual, a2a.VerificationVerified)
		})
	})
}
