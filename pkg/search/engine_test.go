package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/docsearch/pkg/catalog"
	"github.com/platinummonkey/docsearch/pkg/rank"
)

const scenarioIndex = `{
	"alpha": {
		"doc": "Widgets and rendering.",
		"items": [
			{"kind": "struct", "name": "Widget", "path": "alpha", "desc": "A drawable widget."},
			{"kind": "method", "name": "render", "parent": 0,
			 "signature": {"inputs": ["self", "Context"], "output": "Html"}}
		]
	},
	"beta": {
		"items": [
			[5, "widget_render", "beta", "Render a widget to a string.", null,
			 {"inputs": [{"name": "Context"}], "output": {"name": "String"}}]
		]
	}
}`

func scenarioCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	var raw catalog.RawIndex
	require.NoError(t, json.Unmarshal([]byte(scenarioIndex), &raw))
	c, err := catalog.Build(&raw)
	require.NoError(t, err)
	return c
}

// largeCatalog builds n functions spread over three namespaces.
func largeCatalog(t *testing.T, n int) *catalog.Catalog {
	t.Helper()
	nss := []string{"core", "extra", "util"}
	raw := &catalog.RawIndex{}
	for _, ns := range nss {
		raw.Namespaces = append(raw.Namespaces, catalog.RawNamespace{ID: ns})
	}
	verbs := []string{"render", "read", "reset", "parse", "print", "write"}
	for i := 0; i < n; i++ {
		ns := &raw.Namespaces[i%len(nss)]
		ns.Items = append(ns.Items, catalog.RawItem{
			Kind: "fn",
			Name: fmt.Sprintf("%s_item_%d", verbs[i%len(verbs)], i),
			Path: fmt.Sprintf("%s::m%d", ns.ID, i%7),
			Signature: &catalog.RawSignature{
				Inputs: []catalog.RawType{{Name: "Context"}},
				Output: &catalog.RawType{Name: "Html"},
			},
		})
	}
	c, err := catalog.Build(raw)
	require.NoError(t, err)
	return c
}

func fullPaths(results []Result) []string {
	paths := make([]string, len(results))
	for i, r := range results {
		paths[i] = r.FullPath
	}
	return paths
}

func TestEngine_Scenario(t *testing.T) {
	engine := NewEngine(Static(scenarioCatalog(t)))
	ctx := context.Background()

	t.Run("exact outranks prefix", func(t *testing.T) {
		results, err := engine.Query(ctx, "render")
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha::Widget::render", "beta::widget_render"}, fullPaths(results))
		assert.Equal(t, "exact", results[0].Tier)
		assert.Equal(t, "prefix", results[1].Tier)
		assert.Greater(t, results[0].Score, results[1].Score)
	})

	t.Run("signature query", func(t *testing.T) {
		results, err := engine.Query(ctx, "Context -> Html")
		require.NoError(t, err)
		require.Equal(t, []string{"alpha::Widget::render"}, fullPaths(results))
		assert.Equal(t, "partial", results[0].TypeMatch)
		assert.Empty(t, results[0].Tier)
		assert.Equal(t, "(Widget, Context) -> Html", results[0].Signature)
	})

	t.Run("empty query", func(t *testing.T) {
		results, err := engine.Query(ctx, "")
		require.NoError(t, err)
		assert.NotNil(t, results)
		assert.Empty(t, results)

		results, err = engine.Query(ctx, "   ")
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("prefix query", func(t *testing.T) {
		results, err := engine.Query(ctx, "rend")
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha::Widget::render", "beta::widget_render"}, fullPaths(results))
		assert.Equal(t, "prefix", results[0].Tier)
		assert.Equal(t, "prefix", results[1].Tier)
	})
}

func TestEngine_ResultFields(t *testing.T) {
	engine := NewEngine(Static(scenarioCatalog(t)))

	results, err := engine.Query(context.Background(), "widget_render")
	require.NoError(t, err)
	require.NotEmpty(t, results)

	r := results[0]
	assert.Equal(t, "beta", r.Namespace)
	assert.Equal(t, "", r.Path)
	assert.Equal(t, "widget_render", r.Name)
	assert.Equal(t, catalog.KindFunction, r.Kind)
	assert.Equal(t, "Render a widget to a string.", r.Description)
	assert.Equal(t, "(Context) -> String", r.Signature)
	assert.False(t, r.Deprecated)
}

func TestEngine_Filters(t *testing.T) {
	engine := NewEngine(Static(scenarioCatalog(t)))
	ctx := context.Background()

	results, err := engine.Query(ctx, "render kind:fn")
	require.NoError(t, err)
	assert.Equal(t, []string{"beta::widget_render"}, fullPaths(results))

	results, err = engine.Query(ctx, "rend ns:alpha")
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha::Widget::render"}, fullPaths(results))

	results, err = engine.Query(ctx, "rend ns:gamma*")
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = engine.Query(ctx, "render kind:bogus")
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestEngine_Limits(t *testing.T) {
	engine := NewEngine(Static(scenarioCatalog(t)), WithOptions(Options{DefaultLimit: 5, MaxLimit: 10}))
	ctx := context.Background()

	resp, err := engine.Search(ctx, Request{Query: "rend limit:1"})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 1)
	assert.Equal(t, 2, resp.TotalCount)

	resp, err = engine.Search(ctx, Request{Query: "rend", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 1)

	assert.Equal(t, 5, engine.effectiveLimit(0, 0))
	assert.Equal(t, 7, engine.effectiveLimit(0, 7))
	assert.Equal(t, 3, engine.effectiveLimit(3, 7))
	assert.Equal(t, 10, engine.effectiveLimit(0, 5000))
}

func TestEngine_Modes(t *testing.T) {
	engine := NewEngine(Static(scenarioCatalog(t)))
	ctx := context.Background()

	tests := []struct {
		query string
		mode  string
	}{
		{"", ModeEmpty},
		{"kind:fn", ModeEmpty},
		{"render", ModeName},
		{"Context -> Html", ModeType},
		{"-> Html", ModeType},
		{"Vec<u8>", ModeNameType},
		{"Vec< broken", ModeName},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp, err := engine.Search(ctx, Request{Query: tt.query})
			require.NoError(t, err)
			assert.Equal(t, tt.mode, resp.Mode)
		})
	}
}

const genericIndex = `{
	"ns": {
		"items": [
			{"kind": "struct", "name": "FooBar", "path": "ns"},
			{"kind": "trait", "name": "FooBarExt", "path": "ns"},
			{"kind": "mod", "name": "foo_bar", "path": "ns"},
			{"kind": "fn", "name": "foo_bar_make", "path": "ns",
			 "signature": {"inputs": ["Foo<Bar>"], "output": "u8"}},
			{"kind": "fn", "name": "consume", "path": "ns",
			 "signature": {"inputs": ["Foo<Bar>", "u32"], "output": null}},
			{"kind": "fn", "name": "foo_bar_len", "path": "ns",
			 "signature": {"inputs": ["String"], "output": "usize"}}
		]
	}
}`

func TestEngine_TypeShapedQueryOnlyMatchesSignatures(t *testing.T) {
	var raw catalog.RawIndex
	require.NoError(t, json.Unmarshal([]byte(genericIndex), &raw))
	c, err := catalog.Build(&raw)
	require.NoError(t, err)
	engine := NewEngine(Static(c))

	resp, err := engine.Search(context.Background(), Request{Query: "Foo<Bar>"})
	require.NoError(t, err)
	assert.Equal(t, ModeNameType, resp.Mode)

	require.Equal(t, []string{"ns::foo_bar_make", "ns::consume"}, fullPaths(resp.Results))
	for _, r := range resp.Results {
		assert.True(t, r.Kind.IsFunctionLike(), "%s is a %s", r.FullPath, r.Kind)
		assert.NotEmpty(t, r.TypeMatch)
	}
	assert.Equal(t, "full", resp.Results[0].TypeMatch)
	assert.NotEmpty(t, resp.Results[0].Tier, "name score boosts the signature match")
	assert.Equal(t, "partial", resp.Results[1].TypeMatch)
}

func TestEngine_NoCatalog(t *testing.T) {
	engine := NewEngine(Static(nil))

	_, err := engine.Query(context.Background(), "render")
	assert.ErrorIs(t, err, ErrNoCatalog)

	_, err = engine.Lookup("alpha::Widget")
	assert.ErrorIs(t, err, ErrNoCatalog)

	_, err = engine.Namespaces()
	assert.ErrorIs(t, err, ErrNoCatalog)

	_, _, err = engine.Stats()
	assert.ErrorIs(t, err, ErrNoCatalog)
}

func TestEngine_Cancellation(t *testing.T) {
	engine := NewEngine(Static(largeCatalog(t, 500)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := engine.Query(ctx, "render")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, results)

	results, err = engine.Query(context.Background(), "render")
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}

func TestEngine_ParallelMatchesSequential(t *testing.T) {
	c := largeCatalog(t, 900)
	sequential := NewEngine(Static(c), WithOptions(Options{Workers: 1, MaxLimit: 2000, DefaultLimit: 2000}))
	parallel := NewEngine(Static(c), WithOptions(Options{Workers: 4, ParallelThreshold: 10, MaxLimit: 2000, DefaultLimit: 2000}))
	ctx := context.Background()

	for _, q := range []string{"render", "re", "item 4", "Context -> Html", "rst"} {
		t.Run(q, func(t *testing.T) {
			want, err := sequential.Search(ctx, Request{Query: q})
			require.NoError(t, err)
			got, err := parallel.Search(ctx, Request{Query: q})
			require.NoError(t, err)
			assert.Equal(t, want.TotalCount, got.TotalCount)
			assert.Equal(t, want.Results, got.Results)
		})
	}

	ctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err := parallel.Query(ctx, "render")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_LookupAndNamespaces(t *testing.T) {
	engine := NewEngine(Static(scenarioCatalog(t)))

	r, err := engine.Lookup("alpha::Widget::render")
	require.NoError(t, err)
	assert.Equal(t, "render", r.Name)
	assert.Equal(t, "Widget", r.Path)

	_, err = engine.Lookup("alpha::Gadget")
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	nss, err := engine.Namespaces()
	require.NoError(t, err)
	assert.Equal(t, []NamespaceInfo{
		{ID: "alpha", Doc: "Widgets and rendering.", Items: 2},
		{ID: "beta", Items: 1},
	}, nss)

	stats, version, err := engine.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Items)
	assert.NotEmpty(t, version)
}

func TestEngine_CustomRanker(t *testing.T) {
	w := rank.DefaultWeights()
	w.Prefix = 450
	r, err := rank.NewRanker(w)
	require.NoError(t, err)

	engine := NewEngine(Static(scenarioCatalog(t)), WithRanker(r))
	results, err := engine.Query(context.Background(), "rend")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.GreaterOrEqual(t, results[0].Score, 450.0)
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
	hits     int
	misses   int
}

func (o *recordingObserver) ObserveQuery(mode, outcome string, results int, took time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, mode+":"+outcome)
}

func (o *recordingObserver) ObserveCache(hit bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if hit {
		o.hits++
	} else {
		o.misses++
	}
}

func TestEngine_Observer(t *testing.T) {
	obs := &recordingObserver{}
	engine := NewEngine(Static(scenarioCatalog(t)), WithObserver(obs), WithCache(NewMemoryCache(16, time.Minute)))
	ctx := context.Background()

	_, err := engine.Query(ctx, "render")
	require.NoError(t, err)
	_, err = engine.Query(ctx, "render")
	require.NoError(t, err)
	_, err = engine.Query(ctx, "")
	require.NoError(t, err)
	_, err = engine.Query(ctx, "kind:nope")
	require.Error(t, err)

	assert.Equal(t, []string{"name:ok", "name:ok", "empty:empty", "empty:error"}, obs.outcomes)
	assert.Equal(t, 1, obs.hits)
	assert.Equal(t, 1, obs.misses)
}

func TestObservers_FanOut(t *testing.T) {
	a, b := &recordingObserver{}, &recordingObserver{}
	engine := NewEngine(Static(scenarioCatalog(t)), WithObserver(Observers(a, nil, b)))

	_, err := engine.Query(context.Background(), "render")
	require.NoError(t, err)

	assert.Equal(t, []string{"name:ok"}, a.outcomes)
	assert.Equal(t, a.outcomes, b.outcomes)
	assert.Same(t, a, Observers(nil, a))
}
