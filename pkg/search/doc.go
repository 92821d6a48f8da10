// Package search answers documentation queries against a catalog.
//
// # Overview
//
// An Engine parses a query, decides which matchers apply, scores every
// catalog item, ranks the matches and returns the top results. Scoring
// checks the context for every item, so a cancelled query stops early and
// returns the context error instead of partial results. Large catalogs are
// scored in parallel shards.
//
// # Query Syntax
//
// Name queries:
//
//	render
//	Widget::render
//	rend
//
// Signature queries (inputs, then output):
//
//	Context -> Html
//	(&str, usize) -> Option<String>
//	-> bool
//
// Filters can be mixed into either form:
//
//	render kind:method ns:alpha limit:5
//
// Text with an arrow is matched on signatures only. Other type-shaped text,
// such as "Vec<u8>" or "u8, u16", is matched on both names and signatures
// and the scores add up. An empty query returns no results and no error.
//
// # Sessions
//
// A Session serializes the queries of one user typing into a search box.
// Every new query cancels the one in flight, and a superseded call returns
// ErrSuperseded, never results. When the new text only extends the previous
// name query, the session scores just the items the previous query matched.
//
// # Usage Example
//
//	engine := search.NewEngine(holder,
//		search.WithCache(search.NewMemoryCache(1024, time.Minute)),
//	)
//
//	results, err := engine.Query(ctx, "Context -> Html")
//	for _, r := range results {
//		fmt.Printf("%s (%s, score %.1f)\n", r.FullPath, r.Kind, r.Score)
//	}
//
// # Related Packages
//
//   - pkg/catalog: item model and index loading
//   - pkg/match: name and signature matchers
//   - pkg/rank: score weights and ordering
//   - pkg/index: catalog sources and reloading
package search
