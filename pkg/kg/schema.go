package kg

import (
	"context"

	"github.com/graphql-go/graphql"
	"github.com/syedsany6/a2a-runtime/pkg/a2a"
)

// buildSchema constructs the fixed statement schema against a query
// snapshot (Open Question resolution: the source does not define GraphQL
// execution semantics, so the reference implementation exposes the minimal
// schema a KGStatement needs — subject, predicate, object, graph, plus
// certainty — rather than inventing a broader type system).
func buildSchema(statements []a2a.KGStatement) (graphql.Schema, error) {
	resourceType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Resource",
		Fields: graphql.Fields{
			"id":   &graphql.Field{Type: graphql.String},
			"type": &graphql.Field{Type: graphql.String},
		},
	})

	objectType := graphql.NewObject(graphql.ObjectConfig{
		Name: "KGObject",
		Fields: graphql.Fields{
			"id":    &graphql.Field{Type: graphql.String},
			"type":  &graphql.Field{Type: graphql.String},
			"value": &graphql.Field{Type: graphql.String},
		},
		IsTypeOf: func(p graphql.IsTypeOfParams) bool { return true },
	})

	statementType := graphql.NewObject(graphql.ObjectConfig{
		Name: "KGStatement",
		Fields: graphql.Fields{
			"subject":   &graphql.Field{Type: resourceType},
			"predicate": &graphql.Field{Type: resourceType},
			"object":    &graphql.Field{Type: objectType},
			"graph":     &graphql.Field{Type: graphql.String},
			"certainty": &graphql.Field{Type: graphql.Float},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"statements": &graphql.Field{
				Type: graphql.NewList(statementType),
				Args: graphql.FieldConfigArgument{
					"subject":   &graphql.ArgumentConfig{Type: graphql.String},
					"predicate": &graphql.ArgumentConfig{Type: graphql.String},
					"object":    &graphql.ArgumentConfig{Type: graphql.String},
					"graph":     &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return resolveStatements(statements, p.Args), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: queryType})
}

func resolveStatements(statements []a2a.KGStatement, args map[string]any) []map[string]any {
	subject, _ := args["subject"].(string)
	predicate, _ := args["predicate"].(string)
	object, _ := args["object"].(string)
	graph, _ := args["graph"].(string)

	out := make([]map[string]any, 0, len(statements))
	for _, s := range statements {
		if subject != "" && s.Subject.ID != subject {
			continue
		}
		if predicate != "" && s.Predicate.ID != predicate {
			continue
		}
		if graph != "" && s.Graph != graph {
			continue
		}
		if object != "" {
			objKey := s.Object.ID
			if !s.Object.IsResource() {
				if v, ok := s.Object.Value.(string); ok {
					objKey = v
				}
			}
			if objKey != object {
				continue
			}
		}

		entry := map[string]any{
			"subject":   map[string]any{"id": s.Subject.ID, "type": s.Subject.Type},
			"predicate": map[string]any{"id": s.Predicate.ID},
			"object":    map[string]any{"id": s.Object.ID, "type": s.Object.Type, "value": s.Object.Value},
			"graph":     s.Graph,
		}
		if s.Certainty != nil {
			entry["certainty"] = *s.Certainty
		}
		out = append(out, entry)
	}
	return out
}

type execResult struct {
	data   any
	errors []string
}

func execute(ctx context.Context, schema graphql.Schema, query string, variables map[string]any) execResult {
	result := graphql.Do(graphql.Params{
		Schema:         schema,
		RequestString:  query,
		VariableValues: variables,
		Context:        ctx,
	})

	errs := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		errs = append(errs, e.Message)
	}

	return execResult{data: result.Data, errors: errs}
}
