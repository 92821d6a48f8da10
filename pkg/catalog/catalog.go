package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"iter"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/platinummonkey/docsearch/pkg/tokenize"
)

var catalogTracer = otel.Tracer("docsearch/catalog")

// PathSeparator joins path segments in display form.
const PathSeparator = "::"

// Item is a single documentable entity. Items are created by Build and must
// be treated as read-only; the token accessors return shared slices.
type Item struct {
	ID          int
	Namespace   string
	Kind        Kind
	Name        string
	Path        []string
	Description string
	Signature   *Signature
	Deprecated  bool

	parent   int
	nsOrder  int
	children []int

	nameTokens []string
	tokens     []string
	compact    string
	foldedName string
	segments   []string
	descTokens []string
}

// ParentID returns the catalog ID of the enclosing item, if any.
func (it *Item) ParentID() (int, bool) {
	return it.parent, it.parent >= 0
}

// NamespaceOrder is the insertion position of the item's namespace.
func (it *Item) NamespaceOrder() int { return it.nsOrder }

// NameTokens are the normalized tokens of Name.
func (it *Item) NameTokens() []string { return it.nameTokens }

// Tokens are the normalized tokens of Path followed by those of Name.
func (it *Item) Tokens() []string { return it.tokens }

// Compact is Tokens concatenated without separators.
func (it *Item) Compact() string { return it.compact }

// FoldedName is the case-folded Name.
func (it *Item) FoldedName() string { return it.foldedName }

// FoldedSegments is the case-folded namespace, path and name, in order.
func (it *Item) FoldedSegments() []string { return it.segments }

// DescriptionTokens are the normalized tokens of Description.
func (it *Item) DescriptionTokens() []string { return it.descTokens }

// PathString returns Path joined with "::".
func (it *Item) PathString() string {
	return strings.Join(it.Path, PathSeparator)
}

// FullPath returns namespace::path::name.
func (it *Item) FullPath() string {
	parts := make([]string, 0, len(it.Path)+2)
	parts = append(parts, it.Namespace)
	parts = append(parts, it.Path...)
	parts = append(parts, it.Name)
	return strings.Join(parts, PathSeparator)
}

func (it *Item) index() {
	it.nameTokens = tokenize.Normalize(it.Name)
	for _, seg := range it.Path {
		it.tokens = append(it.tokens, tokenize.Normalize(seg)...)
	}
	it.tokens = append(it.tokens, it.nameTokens...)
	it.compact = tokenize.Compact(it.tokens)
	it.foldedName = tokenize.Fold(it.Name)

	it.segments = make([]string, 0, len(it.Path)+2)
	it.segments = append(it.segments, tokenize.Fold(it.Namespace))
	for _, seg := range it.Path {
		it.segments = append(it.segments, tokenize.Fold(seg))
	}
	it.segments = append(it.segments, it.foldedName)

	it.descTokens = tokenize.Normalize(it.Description)
}

// Namespace is one originating library.
type Namespace struct {
	ID    string
	Doc   string
	Order int

	items []*Item
}

// Len returns the number of items in the namespace.
func (n *Namespace) Len() int { return len(n.items) }

// Items iterates the namespace's items in insertion order.
func (n *Namespace) Items() iter.Seq[*Item] {
	return func(yield func(*Item) bool) {
		for _, it := range n.items {
			if !yield(it) {
				return
			}
		}
	}
}

// Stats summarizes a catalog.
type Stats struct {
	Namespaces   int            `json:"namespaces"`
	Items        int            `json:"items"`
	FunctionLike int            `json:"function_like"`
	Duplicates   int            `json:"duplicates"`
	ByKind       map[string]int `json:"by_kind"`
}

// Catalog is the immutable set of items across all namespaces. It is safe for
// concurrent use by any number of readers.
type Catalog struct {
	items      []*Item
	namespaces []*Namespace
	nsByID     map[string]int
	byKey      map[string]int
	version    string
	stats      Stats
}

// Build validates raw and constructs a catalog. It fails atomically: on error
// no catalog is returned.
func Build(raw *RawIndex) (*Catalog, error) {
	return BuildContext(context.Background(), raw)
}

// BuildContext is Build with tracing.
func BuildContext(ctx context.Context, raw *RawIndex) (*Catalog, error) {
	_, span := catalogTracer.Start(ctx, "catalog.Build")
	defer span.End()

	if raw == nil {
		err := malformed("", -1, "nil index")
		span.RecordError(err)
		span.SetStatus(codes.Error, "nil index")
		return nil, err
	}

	b := &builder{
		cat: &Catalog{
			nsByID: make(map[string]int, len(raw.Namespaces)),
			byKey:  make(map[string]int),
		},
	}
	for i := range raw.Namespaces {
		if err := b.addNamespace(&raw.Namespaces[i]); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "malformed index")
			return nil, err
		}
	}

	c := b.finish()
	span.SetAttributes(
		attribute.Int("catalog.namespaces", c.stats.Namespaces),
		attribute.Int("catalog.items", c.stats.Items),
		attribute.Int("catalog.duplicates", c.stats.Duplicates),
		attribute.String("catalog.version", c.version),
	)
	span.SetStatus(codes.Ok, "catalog built")
	return c, nil
}

// Len returns the total number of items.
func (c *Catalog) Len() int { return len(c.items) }

// At returns the item with the given ID. IDs run from 0 to Len()-1 in
// namespace-then-insertion order.
func (c *Catalog) At(id int) *Item { return c.items[id] }

// Version is a content fingerprint; catalogs built from equal input share it.
func (c *Catalog) Version() string { return c.version }

// Stats returns counts describing the catalog.
func (c *Catalog) Stats() Stats {
	s := c.stats
	s.ByKind = make(map[string]int, len(c.stats.ByKind))
	for k, v := range c.stats.ByKind {
		s.ByKind[k] = v
	}
	return s
}

// All iterates every item in namespace-then-insertion order. The sequence is
// finite and can be ranged over any number of times.
func (c *Catalog) All() iter.Seq[*Item] {
	return func(yield func(*Item) bool) {
		for _, it := range c.items {
			if !yield(it) {
				return
			}
		}
	}
}

// Namespaces returns the namespaces in insertion order.
func (c *Catalog) Namespaces() []*Namespace {
	out := make([]*Namespace, len(c.namespaces))
	copy(out, c.namespaces)
	return out
}

// Namespace returns the namespace with the given ID.
func (c *Catalog) Namespace(id string) (*Namespace, bool) {
	i, ok := c.nsByID[id]
	if !ok {
		return nil, false
	}
	return c.namespaces[i], true
}

// Lookup returns the item identified by namespace, path and name.
func (c *Catalog) Lookup(namespace string, path []string, name string) (*Item, error) {
	id, ok := c.byKey[itemKey(namespace, path, name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, displayPath(namespace, path, name))
	}
	return c.items[id], nil
}

// LookupPath resolves a display path such as "alpha::Widget::render", whose
// first segment is the namespace and last segment the item name.
func (c *Catalog) LookupPath(full string) (*Item, error) {
	segs := tokenize.Segments(full)
	if len(segs) < 2 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, full)
	}
	return c.Lookup(segs[0], segs[1:len(segs)-1], segs[len(segs)-1])
}

// Parent returns the enclosing item of it.
func (c *Catalog) Parent(it *Item) (*Item, bool) {
	if it.parent < 0 {
		return nil, false
	}
	return c.items[it.parent], true
}

// Children returns the items whose parent is it, in insertion order.
func (c *Catalog) Children(it *Item) []*Item {
	out := make([]*Item, len(it.children))
	for i, id := range it.children {
		out[i] = c.items[id]
	}
	return out
}

func itemKey(namespace string, path []string, name string) string {
	return namespace + "\x00" + strings.Join(path, PathSeparator) + "\x00" + name
}

func displayPath(namespace string, path []string, name string) string {
	parts := append([]string{namespace}, path...)
	return strings.Join(append(parts, name), PathSeparator)
}

type builder struct {
	cat        *Catalog
	duplicates int
}

type stagedItem struct {
	kind      Kind
	name      string
	modPath   []string
	parentRaw int
	sig       *Signature
}

func (b *builder) addNamespace(rns *RawNamespace) error {
	id := strings.TrimSpace(rns.ID)
	if id == "" {
		return malformed("", -1, "namespace with empty identifier")
	}
	if _, exists := b.cat.nsByID[id]; exists {
		return malformed(id, -1, "duplicate namespace")
	}

	staged := make([]stagedItem, len(rns.Items))
	lastPath := ""
	for i, ri := range rns.Items {
		if strings.TrimSpace(ri.Kind) == "" {
			return malformed(id, i, "missing kind")
		}
		kind, err := ParseKind(ri.Kind)
		if err != nil {
			return malformed(id, i, "%v", err)
		}
		name := strings.TrimSpace(ri.Name)
		if name == "" {
			return malformed(id, i, "missing name")
		}

		p := strings.TrimSpace(ri.Path)
		switch {
		case p != "":
			lastPath = p
		case ri.InheritPath:
			p = lastPath
		}

		st := stagedItem{kind: kind, name: name, modPath: relativePath(id, p), parentRaw: -1}
		if ri.Signature != nil {
			sig, err := convertSignature(ri.Signature)
			if err != nil {
				return malformed(id, i, "signature: %v", err)
			}
			st.sig = sig
		}
		staged[i] = st
	}

	// Parents resolve only after the whole namespace is staged, so forward
	// references are legal.
	for i, ri := range rns.Items {
		if ri.Parent == nil {
			continue
		}
		p := *ri.Parent
		if len(rns.Paths) > 0 {
			if p < 0 || p >= len(rns.Paths) {
				return unresolved(id, i, "parent %d outside paths table of %d entries", p, len(rns.Paths))
			}
			target, err := resolvePathEntry(rns.Paths[p], staged, i)
			if err != nil {
				return unresolved(id, i, "%v", err)
			}
			staged[i].parentRaw = target
			continue
		}
		if p < 0 || p >= len(staged) || p == i {
			return unresolved(id, i, "parent index %d does not name another item in the namespace", p)
		}
		staged[i].parentRaw = p
	}

	paths, err := effectivePaths(id, staged)
	if err != nil {
		return err
	}

	ns := &Namespace{ID: id, Doc: rns.Doc, Order: len(b.cat.namespaces)}
	rawToID := make([]int, len(staged))
	created := make([]bool, len(staged))
	for i, st := range staged {
		key := itemKey(id, paths[i], st.name)
		if existing, ok := b.cat.byKey[key]; ok {
			rawToID[i] = existing
			b.duplicates++
			continue
		}

		it := &Item{
			ID:          len(b.cat.items),
			Namespace:   id,
			Kind:        st.kind,
			Name:        st.name,
			Path:        paths[i],
			Description: strings.TrimSpace(rns.Items[i].Description),
			Signature:   st.sig,
			Deprecated:  rns.Items[i].Deprecated,
			parent:      -1,
			nsOrder:     ns.Order,
		}
		b.cat.items = append(b.cat.items, it)
		b.cat.byKey[key] = it.ID
		ns.items = append(ns.items, it)
		rawToID[i] = it.ID
		created[i] = true
	}

	for i, st := range staged {
		if !created[i] {
			continue
		}
		it := b.cat.items[rawToID[i]]
		if st.parentRaw >= 0 {
			parent := b.cat.items[rawToID[st.parentRaw]]
			it.parent = parent.ID
			parent.children = append(parent.children, it.ID)
			bindReceiver(it.Signature, parent.Name)
		}
		it.index()
	}

	b.cat.nsByID[id] = len(b.cat.namespaces)
	b.cat.namespaces = append(b.cat.namespaces, ns)
	return nil
}

func (b *builder) finish() *Catalog {
	c := b.cat
	c.stats = Stats{
		Namespaces: len(c.namespaces),
		Items:      len(c.items),
		Duplicates: b.duplicates,
		ByKind:     make(map[string]int),
	}

	h := sha256.New()
	for _, it := range c.items {
		c.stats.ByKind[it.Kind.String()]++
		if it.Kind.IsFunctionLike() {
			c.stats.FunctionLike++
		}
		fmt.Fprintf(h, "%s\x00%s\x00%s\x00%d\x00%s\x00%t", it.Namespace, it.PathString(), it.Name, it.Kind, it.Description, it.Deprecated)
		if it.Signature != nil {
			h.Write([]byte(it.Signature.String()))
		}
		h.Write([]byte{'\n'})
	}
	for _, ns := range c.namespaces {
		h.Write([]byte(ns.ID + "\x00" + ns.Doc + "\n"))
	}
	c.version = hex.EncodeToString(h.Sum(nil))[:16]
	return c
}

// resolvePathEntry finds the staged item a parent table entry names,
// preferring one that lives in the child's module.
func resolvePathEntry(entry RawPath, staged []stagedItem, child int) (int, error) {
	kind, err := ParseKind(entry.Kind)
	if err != nil {
		return -1, fmt.Errorf("parent entry: %v", err)
	}
	name := strings.TrimSpace(entry.Name)

	found := -1
	for j, st := range staged {
		if j == child || st.kind != kind || st.name != name {
			continue
		}
		if samePath(st.modPath, staged[child].modPath) {
			return j, nil
		}
		if found < 0 {
			found = j
		}
	}
	if found < 0 {
		return -1, fmt.Errorf("parent %s %q not found", kind, name)
	}
	return found, nil
}

// effectivePaths computes each item's path: its module path, or its parent's
// path followed by the parent's name.
func effectivePaths(ns string, staged []stagedItem) ([][]string, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(staged))
	paths := make([][]string, len(staged))

	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case done:
			return nil
		case visiting:
			return unresolved(ns, i, "parent cycle")
		}
		state[i] = visiting
		if p := staged[i].parentRaw; p >= 0 {
			if err := visit(p); err != nil {
				return err
			}
			path := make([]string, 0, len(paths[p])+1)
			path = append(path, paths[p]...)
			paths[i] = append(path, staged[p].name)
		} else {
			paths[i] = staged[i].modPath
		}
		state[i] = done
		return nil
	}

	for i := range staged {
		if err := visit(i); err != nil {
			return nil, err
		}
	}
	return paths, nil
}

// relativePath splits a module path and drops a leading namespace segment.
func relativePath(ns, p string) []string {
	segs := tokenize.Segments(p)
	if len(segs) > 0 && strings.EqualFold(segs[0], ns) {
		segs = segs[1:]
	}
	if len(segs) == 0 {
		return []string{}
	}
	return segs
}

func samePath(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func convertSignature(rs *RawSignature) (*Signature, error) {
	sig := &Signature{Inputs: make([]TypeRef, 0, len(rs.Inputs))}
	for i, in := range rs.Inputs {
		t, err := convertType(in)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		sig.Inputs = append(sig.Inputs, t)
	}
	if rs.Output != nil {
		t, err := convertType(*rs.Output)
		if err != nil {
			return nil, fmt.Errorf("output: %w", err)
		}
		sig.Output = &t
	}
	return sig, nil
}

func convertType(rt RawType) (TypeRef, error) {
	name := strings.TrimSpace(rt.Name)
	if name == "" {
		return TypeRef{}, fmt.Errorf("type without name")
	}
	if len(rt.Generics) == 0 {
		t, err := ParseTypeRef(name)
		if err != nil {
			return TypeRef{}, err
		}
		return t.withKeys(), nil
	}
	args := make([]TypeRef, len(rt.Generics))
	for i, g := range rt.Generics {
		a, err := convertType(g)
		if err != nil {
			return TypeRef{}, fmt.Errorf("generic %d: %w", i, err)
		}
		args[i] = a
	}
	return NewTypeRef(name, args...), nil
}

// bindReceiver replaces "self" inputs with the owning type.
func bindReceiver(sig *Signature, owner string) {
	if sig == nil {
		return
	}
	for i, in := range sig.Inputs {
		if in.Key() == "self" && len(in.Args) == 0 {
			sig.Inputs[i] = NewTypeRef(owner)
		}
	}
}

// String describes a catalog for logs.
func (c *Catalog) String() string {
	return "catalog(" + c.version + ", " + strconv.Itoa(len(c.namespaces)) + " namespaces, " + strconv.Itoa(len(c.items)) + " items)"
}
