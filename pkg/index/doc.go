// Package index loads documentation indexes and keeps the live catalog
// current.
//
// Indexes come from a local file or an S3 object, in JSON or in the
// generated script form:
//
//	var searchIndex = {};
//	searchIndex["mopa"] = {"doc":"...","items":[[8,"Any","mopa","...",null,null]],"paths":[]};
//	initSearch(searchIndex);
//
// A Holder serves the current catalog to queries and swaps in a new one
// when the file changes (Watch) or on a schedule (Schedule):
//
//	holder := index.NewHolder(index.FileSource{Path: path}, log)
//	if _, err := holder.Reload(ctx); err != nil {
//		return err
//	}
//	go holder.Watch(ctx, path, 500*time.Millisecond)
//
//	engine := search.NewEngine(holder)
package index
