package search

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/docsearch/pkg/async"
	"github.com/platinummonkey/docsearch/pkg/catalog"
	"github.com/platinummonkey/docsearch/pkg/match"
	"github.com/platinummonkey/docsearch/pkg/observability"
	"github.com/platinummonkey/docsearch/pkg/rank"
)

var searchTracer = otel.Tracer("docsearch/search/engine")

// Query modes reported in responses and metrics.
const (
	ModeEmpty    = "empty"
	ModeName     = "name"
	ModeType     = "type"
	ModeNameType = "name+type"
)

// CatalogSource provides the catalog queries run against. Implementations
// may swap the catalog between calls; a query keeps the one it started with.
type CatalogSource interface {
	Current() *catalog.Catalog
}

type staticSource struct {
	cat *catalog.Catalog
}

func (s staticSource) Current() *catalog.Catalog { return s.cat }

// Static returns a CatalogSource that always yields c.
func Static(c *catalog.Catalog) CatalogSource {
	return staticSource{cat: c}
}

// Observer receives query outcomes. observability.Metrics implements it.
type Observer interface {
	ObserveQuery(mode, outcome string, results int, took time.Duration)
	ObserveCache(hit bool)
}

type nopObserver struct{}

func (nopObserver) ObserveQuery(string, string, int, time.Duration) {}
func (nopObserver) ObserveCache(bool)                               {}

type multiObserver []Observer

func (m multiObserver) ObserveQuery(mode, outcome string, results int, took time.Duration) {
	for _, o := range m {
		o.ObserveQuery(mode, outcome, results, took)
	}
}

func (m multiObserver) ObserveCache(hit bool) {
	for _, o := range m {
		o.ObserveCache(hit)
	}
}

// Observers fans outcomes out to every non-nil observer.
func Observers(obs ...Observer) Observer {
	var m multiObserver
	for _, o := range obs {
		if o != nil {
			m = append(m, o)
		}
	}
	if len(m) == 1 {
		return m[0]
	}
	return m
}

// Options tunes query execution.
type Options struct {
	// DefaultLimit applies when neither the request nor a limit: filter set one.
	DefaultLimit int
	// MaxLimit caps any requested limit.
	MaxLimit int
	// ParallelThreshold is the catalog size from which scoring is sharded.
	ParallelThreshold int
	// Workers is the number of scoring shards.
	Workers int
}

// DefaultOptions returns the default execution options.
func DefaultOptions() Options {
	return Options{
		DefaultLimit:      50,
		MaxLimit:          1000,
		ParallelThreshold: 4096,
		Workers:           4,
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithRanker sets the ranker.
func WithRanker(r *rank.Ranker) Option {
	return func(e *Engine) { e.ranker = r }
}

// WithCache sets the result cache.
func WithCache(c Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithObserver sets the outcome observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithOptions sets execution options. Zero fields keep their defaults.
func WithOptions(o Options) Option {
	return func(e *Engine) {
		if o.DefaultLimit > 0 {
			e.opts.DefaultLimit = o.DefaultLimit
		}
		if o.MaxLimit > 0 {
			e.opts.MaxLimit = o.MaxLimit
		}
		if o.ParallelThreshold > 0 {
			e.opts.ParallelThreshold = o.ParallelThreshold
		}
		if o.Workers > 0 {
			e.opts.Workers = o.Workers
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *observability.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// Engine answers queries against the current catalog. It is safe for
// concurrent use.
type Engine struct {
	source   CatalogSource
	ranker   *rank.Ranker
	parser   *QueryParser
	cache    Cache
	observer Observer
	logger   *observability.Logger
	opts     Options
}

// NewEngine creates an engine over source.
func NewEngine(source CatalogSource, opts ...Option) *Engine {
	e := &Engine{
		source:   source,
		ranker:   rank.Default(),
		parser:   NewQueryParser(),
		observer: nopObserver{},
		logger:   observability.NewLogger(observability.InfoLevel, nil),
		opts:     DefaultOptions(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.opts.MaxLimit < e.opts.DefaultLimit {
		e.opts.MaxLimit = e.opts.DefaultLimit
	}
	return e
}

// Request is a query request.
type Request struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// Response carries the ranked results of one query.
type Response struct {
	Query          string       `json:"query"`
	Parsed         *ParsedQuery `json:"parsed_query,omitempty"`
	Mode           string       `json:"mode"`
	Results        []Result     `json:"results"`
	TotalCount     int          `json:"total_count"`
	CatalogVersion string       `json:"catalog_version"`
	Cached         bool         `json:"cached,omitempty"`
}

// Result is one ranked item.
type Result struct {
	ID          int          `json:"id"`
	Namespace   string       `json:"namespace"`
	Path        string       `json:"path"`
	Name        string       `json:"name"`
	FullPath    string       `json:"full_path"`
	Kind        catalog.Kind `json:"kind"`
	Description string       `json:"description,omitempty"`
	Signature   string       `json:"signature,omitempty"`
	Score       float64      `json:"score"`
	Tier        string       `json:"tier,omitempty"`
	TypeMatch   string       `json:"type_match,omitempty"`
	Deprecated  bool         `json:"deprecated,omitempty"`
}

func newResult(e rank.Entry) Result {
	it := e.Item
	r := Result{
		ID:          it.ID,
		Namespace:   it.Namespace,
		Path:        it.PathString(),
		Name:        it.Name,
		FullPath:    it.FullPath(),
		Kind:        it.Kind,
		Description: it.Description,
		Score:       e.Score,
		Deprecated:  it.Deprecated,
	}
	if it.Signature != nil {
		r.Signature = it.Signature.String()
	}
	if e.Scores.HasName {
		r.Tier = e.Scores.Name.Tier.String()
	}
	if e.Scores.HasType {
		r.TypeMatch = "partial"
		if e.Scores.Type.Full {
			r.TypeMatch = "full"
		}
	}
	return r
}

// plan is a parsed and classified query.
type plan struct {
	parsed  *ParsedQuery
	name    match.NameQuery
	useName bool
	typ     match.TypeQuery
	useType bool
	limit   int
}

func (p *plan) mode() string {
	switch {
	case p.useName && p.useType:
		return ModeNameType
	case p.useType:
		return ModeType
	case p.useName:
		return ModeName
	default:
		return ModeEmpty
	}
}

// cacheKey identifies the plan's output for one catalog version. Case is
// kept because exact-case matches earn a larger bonus.
func (p *plan) cacheKey(version string) string {
	return version + "|" + p.mode() + "|" + p.parsed.filterKey() + "|" + strconv.Itoa(p.limit) + "|" + p.parsed.Text
}

func (p *plan) score(r *rank.Ranker, it *catalog.Item) (rank.Entry, bool) {
	if !p.parsed.accepts(it) {
		return rank.Entry{}, false
	}

	var s rank.Scores
	if p.useName {
		s.Name, s.HasName = match.Score(p.name, it)
	}
	if p.useType {
		s.Type, s.HasType = match.ScoreType(p.typ, it)
		// A type-shaped query only admits items whose signature matches;
		// the name score can lift an admitted item but never admit one.
		if !s.HasType {
			return rank.Entry{}, false
		}
	}
	if !s.Matched() {
		return rank.Entry{}, false
	}
	return r.Entry(it, s), true
}

// newPlan parses and classifies raw. Text with an arrow is a signature
// query; other type-shaped text is a signature query boosted by name
// matching; text that fails to parse as types falls back to name matching.
func (e *Engine) newPlan(raw string, limit int) (*plan, error) {
	parsed, err := e.parser.Parse(raw)
	if err != nil {
		return nil, err
	}

	p := &plan{parsed: parsed}
	text := parsed.Text

	if match.IsTypeShaped(text) {
		if tq, err := match.ParseTypeQuery(text); err == nil {
			p.typ, p.useType = tq, true
			if !tq.Arrow {
				p.name = match.NewNameQuery(text)
				p.useName = !p.name.Empty()
			}
		} else {
			p.name = match.NewNameQuery(text)
			p.useName = !p.name.Empty()
		}
	} else {
		p.name = match.NewNameQuery(text)
		p.useName = !p.name.Empty()
	}

	p.limit = e.effectiveLimit(parsed.Limit, limit)
	return p, nil
}

func (e *Engine) effectiveLimit(filter, requested int) int {
	limit := e.opts.DefaultLimit
	switch {
	case filter > 0:
		limit = filter
	case requested > 0:
		limit = requested
	}
	if limit > e.opts.MaxLimit {
		limit = e.opts.MaxLimit
	}
	return limit
}

// Query runs raw against the current catalog and returns ranked results.
// An empty query yields an empty slice and no error.
func (e *Engine) Query(ctx context.Context, raw string) ([]Result, error) {
	resp, err := e.Search(ctx, Request{Query: raw})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Search runs req against the current catalog.
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	resp, _, err := e.search(ctx, req, nil)
	return resp, err
}

// outcome is a completed execution plus what a session needs to narrow the
// next query.
type outcome struct {
	version string
	plan    *plan
	matched []int
}

// search executes req. When prev permits narrowing, only the items it
// matched are scored.
func (e *Engine) search(ctx context.Context, req Request, prev *outcome) (*Response, *outcome, error) {
	ctx, span := searchTracer.Start(ctx, "Engine.Search",
		trace.WithAttributes(
			attribute.String("search.query", req.Query),
			attribute.Int("search.limit", req.Limit),
		))
	defer span.End()
	start := time.Now()

	fail := func(mode, result string, err error) (*Response, *outcome, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
		e.observer.ObserveQuery(mode, result, 0, time.Since(start))
		return nil, nil, err
	}

	cat := e.source.Current()
	if cat == nil {
		return fail(ModeEmpty, "error", ErrNoCatalog)
	}

	p, err := e.newPlan(req.Query, req.Limit)
	if err != nil {
		return fail(ModeEmpty, "error", err)
	}
	mode := p.mode()
	span.SetAttributes(
		attribute.String("search.mode", mode),
		attribute.String("catalog.version", cat.Version()),
	)

	resp := &Response{
		Query:          req.Query,
		Parsed:         p.parsed,
		Mode:           mode,
		Results:        []Result{},
		CatalogVersion: cat.Version(),
	}
	if mode == ModeEmpty {
		e.observer.ObserveQuery(mode, "empty", 0, time.Since(start))
		return resp, nil, nil
	}

	key := p.cacheKey(cat.Version())
	if e.cache != nil {
		if cached, ok := e.cache.Get(ctx, key); ok {
			e.observer.ObserveCache(true)
			e.observer.ObserveQuery(mode, "ok", len(cached.Results), time.Since(start))
			cached.Cached = true
			cached.Query = req.Query
			return cached, &outcome{version: cat.Version(), plan: p}, nil
		}
		e.observer.ObserveCache(false)
	}

	var candidates []int
	if narrowable(prev, p, cat.Version()) {
		candidates = prev.matched
		span.SetAttributes(attribute.Int("search.candidates", len(candidates)))
	}

	entries, err := e.run(ctx, cat, p, candidates)
	if err != nil {
		result := "error"
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			result = "cancelled"
		}
		return fail(mode, result, err)
	}

	matched := make([]int, len(entries))
	for i, en := range entries {
		matched[i] = en.Item.ID
	}

	rank.Sort(entries)
	resp.TotalCount = len(entries)
	if len(entries) > p.limit {
		entries = entries[:p.limit]
	}
	for _, en := range entries {
		resp.Results = append(resp.Results, newResult(en))
	}

	if e.cache != nil {
		e.cache.Set(ctx, key, resp)
	}

	span.SetAttributes(attribute.Int("search.total", resp.TotalCount))
	e.observer.ObserveQuery(mode, "ok", len(resp.Results), time.Since(start))
	e.logger.WithFields(map[string]interface{}{
		"query":   req.Query,
		"mode":    mode,
		"total":   resp.TotalCount,
		"elapsed": time.Since(start).String(),
	}).Debug("query executed")

	return resp, &outcome{version: cat.Version(), plan: p, matched: matched}, nil
}

// narrowable reports whether the items prev matched are a superset of what
// p can match: same catalog, same filters, name-only on both sides, and p's
// text extending prev's.
func narrowable(prev *outcome, p *plan, version string) bool {
	if prev == nil || prev.matched == nil || prev.version != version {
		return false
	}
	if prev.plan.useType || p.useType || !prev.plan.useName || !p.useName {
		return false
	}
	if prev.plan.parsed.filterKey() != p.parsed.filterKey() {
		return false
	}
	return p.name.Narrows(prev.plan.name)
}

// run scores candidates, or the whole catalog when candidates is nil. It
// returns matched entries in no particular order, or ctx's error once ctx is
// done.
func (e *Engine) run(ctx context.Context, cat *catalog.Catalog, p *plan, candidates []int) ([]rank.Entry, error) {
	n := cat.Len()
	if candidates != nil {
		n = len(candidates)
	}
	at := func(i int) *catalog.Item {
		if candidates != nil {
			return cat.At(candidates[i])
		}
		return cat.At(i)
	}

	workers := e.opts.Workers
	if n < e.opts.ParallelThreshold || workers < 2 {
		return e.scoreRange(ctx, p, at, 0, n)
	}

	shard := (n + workers - 1) / workers
	parts := make([][]rank.Entry, workers)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo, hi := w*shard, min((w+1)*shard, n)
		if lo >= hi {
			break
		}
		w := w
		g.Go(func() error {
			entries, err := e.scoreRange(gctx, p, at, lo, hi)
			parts[w] = entries
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// gctx is cancelled after Wait; report the caller's own cancellation.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entries []rank.Entry
	for _, part := range parts {
		entries = append(entries, part...)
	}
	return entries, nil
}

func (e *Engine) scoreRange(ctx context.Context, p *plan, at func(int) *catalog.Item, lo, hi int) ([]rank.Entry, error) {
	var entries []rank.Entry
	for i := lo; i < hi; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if en, ok := p.score(e.ranker, at(i)); ok {
			entries = append(entries, en)
		}
	}
	return entries, nil
}

// Lookup resolves a full "namespace::path::name" path in the current catalog.
func (e *Engine) Lookup(full string) (Result, error) {
	cat := e.source.Current()
	if cat == nil {
		return Result{}, ErrNoCatalog
	}
	it, err := cat.LookupPath(full)
	if err != nil {
		return Result{}, err
	}
	return newResult(rank.Entry{Item: it}), nil
}

// Stats returns the current catalog's statistics and version.
func (e *Engine) Stats() (catalog.Stats, string, error) {
	cat := e.source.Current()
	if cat == nil {
		return catalog.Stats{}, "", ErrNoCatalog
	}
	return cat.Stats(), cat.Version(), nil
}

// NamespaceInfo summarizes a namespace.
type NamespaceInfo struct {
	ID    string `json:"id"`
	Doc   string `json:"doc,omitempty"`
	Items int    `json:"items"`
}

// Namespaces lists the current catalog's namespaces in order.
func (e *Engine) Namespaces() ([]NamespaceInfo, error) {
	cat := e.source.Current()
	if cat == nil {
		return nil, ErrNoCatalog
	}
	nss := cat.Namespaces()
	out := make([]NamespaceInfo, len(nss))
	for i, ns := range nss {
		out[i] = NamespaceInfo{ID: ns.ID, Doc: ns.Doc, Items: ns.Len()}
	}
	return out, nil
}

// Session serializes queries from one user. Each new query supersedes the
// one in flight: the older call is cancelled and never delivers results.
type Session struct {
	engine *Engine

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	last   *outcome
}

// NewSession creates a session on e.
func (e *Engine) NewSession() *Session {
	return &Session{engine: e}
}

// begin supersedes any in-flight query and returns the context and
// generation for a new one.
func (s *Session) begin(ctx context.Context) (context.Context, context.CancelFunc, uint64, *outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	return ctx, cancel, s.gen, s.last
}

// current reports whether gen is still the newest query. Callers hold mu.
func (s *Session) current(gen uint64) bool {
	return s.gen == gen
}

func (s *Session) finish(gen uint64, resp *Response, out *outcome, err error) (*Response, error) {
	if !s.current(gen) {
		return nil, ErrSuperseded
	}
	s.cancel = nil
	if err != nil {
		return nil, err
	}
	if out != nil {
		s.last = out
	}
	return resp, nil
}

// Search runs req, superseding any earlier query on s.
func (s *Session) Search(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel, gen, prev := s.begin(ctx)
	defer cancel()

	resp, out, err := s.engine.search(ctx, req, prev)

	s.mu.Lock()
	defer s.mu.Unlock()
	resp, err = s.finish(gen, resp, out, err)
	if errors.Is(err, ErrSuperseded) {
		s.engine.observer.ObserveQuery(ModeEmpty, "superseded", 0, 0)
	}
	return resp, err
}

// Query is Search with the default limit, returning only the results.
func (s *Session) Query(ctx context.Context, raw string) ([]Result, error) {
	resp, err := s.Search(ctx, Request{Query: raw})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Submit starts req in the background and calls deliver with its outcome.
// A superseded query is delivered ErrSuperseded and no results. deliver
// runs while the session is locked and must not call back into s.
func (s *Session) Submit(ctx context.Context, req Request, timeout time.Duration, deliver func(*Response, error)) {
	qctx, cancel, gen, prev := s.begin(ctx)

	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	taskName := fmt.Sprintf("session query %q", req.Query)
	async.SafeGo(qctx, timeout, taskName, func(ctx context.Context) error {
		defer cancel()
		resp, out, err := s.engine.search(ctx, req, prev)

		s.mu.Lock()
		defer s.mu.Unlock()
		resp, err = s.finish(gen, resp, out, err)
		deliver(resp, err)
		return nil
	})
}

// Cancel stops the in-flight query, if any. It will report ErrSuperseded.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
}
