package ir

// Statically-built operator registry. Alias schemas for built-in operators
// are declared here and parsed once at startup; there is no dynamic
// registration path.

// builtinSchemas declares the alias schemas of the built-in operator set.
var builtinSchemas = []string{
	"aten::add(Tensor self, Tensor other) -> Tensor",
	"aten::sub(Tensor self, Tensor other) -> Tensor",
	"aten::mul(Tensor self, Tensor other) -> Tensor",
	"aten::div(Tensor self, Tensor other) -> Tensor",
	"aten::matmul(Tensor self, Tensor other) -> Tensor",
	"aten::relu(Tensor self) -> Tensor",
	"aten::sigmoid(Tensor self) -> Tensor",
	"aten::zeros_like(Tensor self) -> Tensor",
	"aten::cat(Tensor[] tensors, int dim) -> Tensor",
	"aten::size(Tensor self, int dim) -> int",
	"aten::len(Tensor[] self) -> int",

	// In-place variants write to self and return it.
	"aten::add_(Tensor(a!) self, Tensor other) -> Tensor(a!)",
	"aten::sub_(Tensor(a!) self, Tensor other) -> Tensor(a!)",
	"aten::mul_(Tensor(a!) self, Tensor other) -> Tensor(a!)",
	"aten::relu_(Tensor(a!) self) -> Tensor(a!)",
	"aten::copy_(Tensor(a!) self, Tensor src) -> Tensor(a!)",
	"aten::fill_(Tensor(a!) self, float value) -> Tensor(a!)",

	// Views return an alias of self without writing.
	"aten::t(Tensor(a) self) -> Tensor(a)",
	"aten::view(Tensor(a) self, int size) -> Tensor(a)",
	"aten::reshape(Tensor(a) self, int size) -> Tensor(a)",
	"aten::expand(Tensor(a) self, int size) -> Tensor(a)",
	"aten::select(Tensor(a) self, int dim, int index) -> Tensor(a)",
	"aten::slice(Tensor(a) self, int dim, int start, int end) -> Tensor(a)",
	"aten::chunk(Tensor(a) self, int chunks) -> Tensor(a)[]",

	// The output may alias self or be fresh; the conservative reading is
	// that it aliases self.
	"aten::cuda(Tensor(a) self) -> Tensor(a|fresh)",
}

var registry = make(map[Kind]*Schema)

func init() {
	for _, decl := range builtinSchemas {
		s := MustParseSchema(decl)
		registry[Kind(s.Name)] = s
	}
}

// RegisterSchema parses and registers an operator schema, replacing any
// schema previously registered under the same name.
func RegisterSchema(decl string) (*Schema, error) {
	s, err := ParseSchema(decl)
	if err != nil {
		return nil, err
	}
	registry[Kind(s.Name)] = s
	return s, nil
}

// LookupSchema returns the registered schema for an operator kind.
func LookupSchema(k Kind) (*Schema, bool) {
	s, ok := registry[k]
	return s, ok
}

// Schema returns the registered schema for the node's operator.
func (n *Node) Schema() (*Schema, bool) { return LookupSchema(n.kind) }
