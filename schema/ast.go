package schema

// Kind discriminates the canonical AST node variants.
type Kind string

// AST node kinds.
const (
	KindAny         Kind = "any"
	KindObject      Kind = "object"
	KindArray       Kind = "array"
	KindString      Kind = "string"
	KindNumber      Kind = "number"
	KindInteger     Kind = "integer"
	KindBoolean     Kind = "boolean"
	KindNull        Kind = "null"
	KindEnumOnly    Kind = "enum"
	KindRef         Kind = "reference"
	KindComposition Kind = "composition"
)

// Node is one node of the canonical schema AST. Exactly one Kind applies;
// keyword fields are populated per variant, nil/zero when absent.
//
// Every node carries its canonical JSON Pointer. The pointer map on
// [Normalized] relates canonical pointers back to the original document.
type Node struct {
	Kind      Kind
	CanonPath string

	// Types carries a union type list when the source declared
	// type: [a, b, ...]; Kind is then the first listed type.
	Types []string

	// Value pinning, legal on any variant.
	Enum  []any
	Const *any

	// Numeric constraints.
	Minimum          *float64
	Maximum          *float64
	ExclusiveMinimum *float64
	ExclusiveMaximum *float64
	MultipleOf       *float64

	// String constraints.
	MinLength *int
	MaxLength *int
	Pattern   string
	Format    string

	// Object constraints.
	Properties           map[string]*Node
	PropertyOrder        []string
	Required             []string
	PatternProperties    map[string]*Node
	PatternPropertyOrder []string
	AdditionalAllowed    *bool
	AdditionalSchema     *Node
	PropertyNames        *Node
	MinProperties        *int
	MaxProperties        *int
	DependentRequired    map[string][]string
	DependentSchemas     map[string]*Node
	UnevaluatedAllowed   *bool

	// Array constraints.
	Items       *Node
	PrefixItems []*Node
	MinItems    *int
	MaxItems    *int
	UniqueItems bool
	Contains    *Node
	MinContains *int
	MaxContains *int

	// Composition, ordered as written.
	AllOf []*Node
	AnyOf []*Node
	OneOf []*Node
	Not   *Node
	If    *Node
	Then  *Node
	Else  *Node

	// Reference target, verbatim.
	Ref string

	// Annotations.
	Examples []any
	Default  any

	// Raw holds the canonicalized document fragment this node was built
	// from, suitable for compiling with a collaborator validator. A nil
	// Raw with BoolSchema set represents the boolean schemas true/false.
	Raw        map[string]any
	BoolSchema *bool
}

// IsBool reports whether the node is a boolean schema, returning its value.
func (n *Node) IsBool() (bool, bool) {
	if n.BoolSchema == nil {
		return false, false
	}

	return *n.BoolSchema, true
}

// HasComposition reports whether any applicator keyword is present.
func (n *Node) HasComposition() bool {
	return len(n.AllOf) > 0 || len(n.AnyOf) > 0 || len(n.OneOf) > 0 ||
		n.Not != nil || n.If != nil
}

// EffectiveMinimum returns the tightest lower bound and whether
// the bound excludes equality.
func (n *Node) EffectiveMinimum() (bound float64, exclusive, ok bool) {
	if n.Minimum != nil {
		bound, ok = *n.Minimum, true
	}

	if n.ExclusiveMinimum != nil && (!ok || *n.ExclusiveMinimum >= bound) {
		bound, exclusive, ok = *n.ExclusiveMinimum, true, true
	}

	return bound, exclusive, ok
}

// EffectiveMaximum returns the tightest upper bound and whether
// the bound excludes equality.
func (n *Node) EffectiveMaximum() (bound float64, exclusive, ok bool) {
	if n.Maximum != nil {
		bound, ok = *n.Maximum, true
	}

	if n.ExclusiveMaximum != nil && (!ok || *n.ExclusiveMaximum <= bound) {
		bound, exclusive, ok = *n.ExclusiveMaximum, true, true
	}

	return bound, exclusive, ok
}

// Walk visits n and every descendant in document order. The visitor
// returns false to prune the subtree.
func (n *Node) Walk(visit func(*Node) bool) {
	if n == nil || !visit(n) {
		return
	}

	for _, name := range n.PropertyOrder {
		n.Properties[name].Walk(visit)
	}

	for _, pat := range n.PatternPropertyOrder {
		n.PatternProperties[pat].Walk(visit)
	}

	n.AdditionalSchema.Walk(visit)
	n.PropertyNames.Walk(visit)

	for _, dep := range sortedKeys(n.DependentSchemas) {
		n.DependentSchemas[dep].Walk(visit)
	}

	for _, sub := range n.PrefixItems {
		sub.Walk(visit)
	}

	n.Items.Walk(visit)
	n.Contains.Walk(visit)

	for _, sub := range n.AllOf {
		sub.Walk(visit)
	}

	for _, sub := range n.AnyOf {
		sub.Walk(visit)
	}

	for _, sub := range n.OneOf {
		sub.Walk(visit)
	}

	n.Not.Walk(visit)
	n.If.Walk(visit)
	n.Then.Walk(visit)
	n.Else.Walk(visit)
}
