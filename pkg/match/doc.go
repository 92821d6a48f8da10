// Package match scores catalog items against a query.
//
// Name matching assigns one tier per item, highest first:
//
//	exact        full name equal, ignoring case
//	path_suffix  "Widget::render" equals the tail of "alpha::Widget::render"
//	prefix       every query token prefixes an item token, in order
//	subsequence  query characters appear in order within the item's tokens
//	description  every query token prefixes a description token
//
// Type matching applies to type-shaped queries such as "Context -> Html" and
// compares them structurally with the signatures of function-like items.
//
// Scores carry a bounded bonus that orders items inside a tier. Turning tiers
// and bonuses into a single number is the ranker's job.
package match
