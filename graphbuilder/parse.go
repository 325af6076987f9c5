package graphbuilder

// Parser for the graph listing format:
//
//	graph(%a : Tensor, %b : Tensor)
//	  %c : Tensor = aten::add_(%a, %b)
//	  %p : Bool = prim::Constant()
//	  %e : Tensor = prim::If(%p)
//	  block()
//	    return(%a)
//	  block()
//	    return(%b)
//	  end
//	  return(%c, %e)
//
// Indentation is not significant; sub-blocks are framed by block()/end.
// Lines starting with # are comments. A node line may carry an integer
// attribute group {chunks=2} and a source position suffix @file:line.

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nickng/alias-hunter/ir"
)

type parser struct {
	file   string
	lines  []string
	lineno int // 1-based line of lines[pos-1].
	pos    int
	graph  *ir.Graph
	values map[string]*ir.Value
}

// Parse parses a single graph listing. The file name is used for positions
// and error messages only.
func Parse(file, src string) (*ir.Graph, error) {
	p := &parser{
		file:   file,
		lines:  strings.Split(src, "\n"),
		values: make(map[string]*ir.Value),
	}
	g, err := p.parse()
	if err != nil {
		return nil, fmt.Errorf("%s:%d: %v", file, p.lineno, err)
	}
	return g, nil
}

// next returns the next non-blank, non-comment line, or false at EOF.
func (p *parser) next() (string, bool) {
	for p.pos < len(p.lines) {
		line := strings.TrimSpace(p.lines[p.pos])
		p.pos++
		p.lineno = p.pos
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return line, true
	}
	return "", false
}

// backup un-reads the last line returned by next.
func (p *parser) backup() { p.pos-- }

func (p *parser) parse() (*ir.Graph, error) {
	line, ok := p.next()
	if !ok {
		return nil, fmt.Errorf("empty listing")
	}
	body, err := matchCall(line, "graph")
	if err != nil {
		return nil, err
	}
	p.graph = ir.NewGraph()
	if err := p.declareInputs(p.graph.Block(), body); err != nil {
		return nil, err
	}
	if err := p.parseBlockBody(p.graph.Block()); err != nil {
		return nil, err
	}
	if _, ok := p.next(); ok {
		return nil, fmt.Errorf("trailing input after graph return")
	}
	return p.graph, nil
}

// parseBlockBody reads node lines until the block's return line.
func (p *parser) parseBlockBody(b *ir.Block) error {
	for {
		line, ok := p.next()
		if !ok {
			return fmt.Errorf("missing return at end of block")
		}
		if body, err := matchCall(line, "return"); err == nil {
			for _, name := range splitArgs(body) {
				v, err := p.lookup(name)
				if err != nil {
					return err
				}
				b.RegisterOutput(v)
			}
			return nil
		}
		if err := p.parseNode(b, line); err != nil {
			return err
		}
	}
}

// parseNode parses one node line plus any sub-blocks following it.
func (p *parser) parseNode(b *ir.Block, line string) error {
	var declPart string
	rest := line
	if i := strings.Index(line, "="); i >= 0 {
		declPart = strings.TrimSpace(line[:i])
		rest = strings.TrimSpace(line[i+1:])
	}

	pos := ir.Pos{File: p.file, Line: p.lineno}
	if i := strings.LastIndex(rest, "@"); i >= 0 {
		var err error
		if pos, err = parsePos(strings.TrimSpace(rest[i+1:])); err != nil {
			return err
		}
		rest = strings.TrimSpace(rest[:i])
	}

	attrs := map[string]int64{}
	if i := strings.Index(rest, "{"); i >= 0 {
		j := strings.Index(rest, "}")
		if j < i {
			return fmt.Errorf("malformed attribute group")
		}
		for _, kv := range splitArgs(rest[i+1 : j]) {
			eq := strings.Index(kv, "=")
			if eq < 0 {
				return fmt.Errorf("malformed attribute %q", kv)
			}
			val, err := strconv.ParseInt(strings.TrimSpace(kv[eq+1:]), 10, 64)
			if err != nil {
				return fmt.Errorf("malformed attribute %q: %v", kv, err)
			}
			attrs[strings.TrimSpace(kv[:eq])] = val
		}
		rest = strings.TrimSpace(rest[:i] + rest[j+1:])
	}

	open := strings.Index(rest, "(")
	if open < 0 || !strings.HasSuffix(rest, ")") {
		return fmt.Errorf("malformed node line %q", line)
	}
	kind := ir.Kind(strings.TrimSpace(rest[:open]))
	if kind == "" {
		return fmt.Errorf("missing operator kind")
	}

	n := b.AddNode(kind).SetPos(pos)
	for name, val := range attrs {
		n.SetIntAttr(name, val)
	}
	for _, arg := range splitArgs(rest[open+1 : len(rest)-1]) {
		v, err := p.lookup(arg)
		if err != nil {
			return err
		}
		n.AddInput(v)
	}
	if declPart != "" {
		if err := p.declareOutputs(n, declPart); err != nil {
			return err
		}
	}
	return p.parseSubBlocks(n)
}

// parseSubBlocks parses block()...end groups attached to the node, if any.
func (p *parser) parseSubBlocks(n *ir.Node) error {
	line, ok := p.next()
	if !ok {
		return nil
	}
	if _, err := matchCall(line, "block"); err != nil {
		p.backup()
		return nil
	}
	for {
		body, err := matchCall(line, "block")
		if err != nil {
			break
		}
		blk := n.AddBlock()
		if err := p.declareInputs(blk, body); err != nil {
			return err
		}
		if err := p.parseBlockBody(blk); err != nil {
			return err
		}
		line, ok = p.next()
		if !ok {
			return fmt.Errorf("missing end after block")
		}
	}
	if line != "end" {
		return fmt.Errorf("expected end after blocks, got %q", line)
	}
	return nil
}

// declareInputs declares "%name : Type" inputs on a graph or sub-block.
func (p *parser) declareInputs(b *ir.Block, decls string) error {
	for _, decl := range splitArgs(decls) {
		name, typ, err := p.parseDecl(decl)
		if err != nil {
			return err
		}
		p.values[name] = b.AddInput(name, typ)
	}
	return nil
}

// declareOutputs declares the "%x : T1, %y : T2" left-hand side of a node.
func (p *parser) declareOutputs(n *ir.Node, decls string) error {
	for _, decl := range splitArgs(decls) {
		name, typ, err := p.parseDecl(decl)
		if err != nil {
			return err
		}
		p.values[name] = n.AddOutput(name, typ)
	}
	return nil
}

func (p *parser) parseDecl(decl string) (string, *ir.Type, error) {
	i := strings.Index(decl, ":")
	if i < 0 {
		return "", nil, fmt.Errorf("malformed declaration %q (want %%name : Type)", decl)
	}
	name := strings.TrimSpace(decl[:i])
	if !strings.HasPrefix(name, "%") {
		return "", nil, fmt.Errorf("value name %q must start with %%", name)
	}
	name = name[1:]
	if _, exists := p.values[name]; exists {
		return "", nil, fmt.Errorf("redefinition of %%%s", name)
	}
	typ, err := parseType(strings.TrimSpace(decl[i+1:]))
	if err != nil {
		return "", nil, err
	}
	return name, typ, nil
}

func (p *parser) lookup(arg string) (*ir.Value, error) {
	if !strings.HasPrefix(arg, "%") {
		return nil, fmt.Errorf("value reference %q must start with %%", arg)
	}
	v, ok := p.values[arg[1:]]
	if !ok {
		return nil, fmt.Errorf("undefined value %s", arg)
	}
	return v, nil
}

// parseType parses Tensor, Int, Float, Bool, String, None, List[T],
// Tuple[T, ...], Dict[K, V], Optional[T], Future[T]; any other identifier
// is a class type.
func parseType(s string) (*ir.Type, error) {
	s = strings.TrimSpace(s)
	name := s
	var args []string
	if i := strings.Index(s, "["); i >= 0 {
		if !strings.HasSuffix(s, "]") {
			return nil, fmt.Errorf("malformed type %q", s)
		}
		name = s[:i]
		args = splitArgs(s[i+1 : len(s)-1])
	}
	elems := make([]*ir.Type, len(args))
	for i, a := range args {
		t, err := parseType(a)
		if err != nil {
			return nil, err
		}
		elems[i] = t
	}
	arity := func(n int) error {
		if len(elems) != n {
			return fmt.Errorf("type %s takes %d parameter(s), got %d", name, n, len(elems))
		}
		return nil
	}
	switch name {
	case "Tensor":
		return ir.TensorType, arity(0)
	case "Int", "int":
		return ir.IntType, arity(0)
	case "Float", "float":
		return ir.FloatType, arity(0)
	case "Bool", "bool":
		return ir.BoolType, arity(0)
	case "String", "str":
		return ir.StringType, arity(0)
	case "None":
		return ir.NoneType, arity(0)
	case "List":
		return &ir.Type{Kind: ir.ListKind, Elems: elems}, arity(1)
	case "Optional":
		return &ir.Type{Kind: ir.OptionalKind, Elems: elems}, arity(1)
	case "Future":
		return &ir.Type{Kind: ir.FutureKind, Elems: elems}, arity(1)
	case "Dict":
		return &ir.Type{Kind: ir.DictKind, Elems: elems}, arity(2)
	case "Tuple":
		return &ir.Type{Kind: ir.TupleKind, Elems: elems}, nil
	}
	if len(elems) > 0 {
		return nil, fmt.Errorf("class type %q cannot take parameters", name)
	}
	return ir.ClassOf(name), nil
}

func parsePos(s string) (ir.Pos, error) {
	i := strings.LastIndex(s, ":")
	if i < 0 {
		return ir.Pos{}, fmt.Errorf("malformed position %q (want file:line)", s)
	}
	line, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return ir.Pos{}, fmt.Errorf("malformed position %q: %v", s, err)
	}
	return ir.Pos{File: s[:i], Line: line}, nil
}

// matchCall matches "keyword( body )" and returns the body.
func matchCall(line, keyword string) (string, error) {
	if !strings.HasPrefix(line, keyword) {
		return "", fmt.Errorf("expected %s(...), got %q", keyword, line)
	}
	rest := strings.TrimSpace(line[len(keyword):])
	if !strings.HasPrefix(rest, "(") || !strings.HasSuffix(rest, ")") {
		return "", fmt.Errorf("expected %s(...), got %q", keyword, line)
	}
	return rest[1 : len(rest)-1], nil
}

// splitArgs splits a comma-separated list, respecting [] and () nesting.
func splitArgs(s string) []string {
	var args []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[', '(':
			depth++
		case ']', ')':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if last := strings.TrimSpace(s[start:]); last != "" {
		args = append(args, last)
	}
	return args
}
