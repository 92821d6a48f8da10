// Package cli implements the docsearch command-line tool.
//
// # Commands
//
// query: search a local index file
//
//	docsearch query -index search-index.js -limit 5 "HashMap::get"
//	docsearch query -index search-index.js "(&str) -> String"
//
// remote: search a running server
//
//	docsearch remote -server http://localhost:8080 "kind:fn render"
//
// lookup: show one item by full path
//
//	docsearch lookup -index search-index.js any_key::AnyHash::eq
//
// stats: summarize an index
//
//	docsearch stats -index search-index.js
//
// weights: write or check a ranking weights file
//
//	docsearch weights -out weights.yaml
//	docsearch weights -check weights.yaml
package cli
