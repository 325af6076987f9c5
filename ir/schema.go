package ir

// Operator schemas and the alias annotation mini-language.
//
// A schema describes the arguments and returns of an operator together with
// alias annotations, e.g.
//
//	aten::add_(Tensor(a!) self, Tensor other) -> Tensor(a!)
//
// An annotation names the alias sets a value belongs to before the call and,
// after "->", the sets it belongs to afterwards. "!" marks a write, "*" is
// the wildcard set ("may point anywhere"), "|" separates alternative sets.

import (
	"fmt"
	"log"
	"strings"
)

// WildcardSet is the alias set standing for "may point anywhere".
const WildcardSet = "*"

// AliasInfo is the alias annotation of a single argument or return.
type AliasInfo struct {
	Write      bool     // The operator writes to this value.
	BeforeSets []string // Alias sets before the call.
	AfterSets  []string // Alias sets after the call.
}

// WildcardBefore reports whether the value starts in the wildcard set.
func (ai *AliasInfo) WildcardBefore() bool { return containsSet(ai.BeforeSets, WildcardSet) }

// WildcardAfter reports whether the value ends up in the wildcard set.
func (ai *AliasInfo) WildcardAfter() bool { return containsSet(ai.AfterSets, WildcardSet) }

// BeforeSet returns the single before-set of the annotation.
func (ai *AliasInfo) BeforeSet() string {
	if len(ai.BeforeSets) != 1 {
		log.Panicf("ir: annotation has %d before-sets, expected 1", len(ai.BeforeSets))
	}
	return ai.BeforeSets[0]
}

// SameBeforeAndAfter reports whether the annotation leaves the alias sets
// unchanged by the call.
func (ai *AliasInfo) SameBeforeAndAfter() bool {
	if len(ai.BeforeSets) != len(ai.AfterSets) {
		return false
	}
	for i := range ai.BeforeSets {
		if ai.BeforeSets[i] != ai.AfterSets[i] {
			return false
		}
	}
	return true
}

func containsSet(sets []string, name string) bool {
	for _, s := range sets {
		if s == name {
			return true
		}
	}
	return false
}

func (ai *AliasInfo) String() string {
	var buf strings.Builder
	buf.WriteString(strings.Join(ai.BeforeSets, "|"))
	if ai.Write {
		buf.WriteString("!")
	}
	if !ai.SameBeforeAndAfter() {
		buf.WriteString(" -> ")
		buf.WriteString(strings.Join(ai.AfterSets, "|"))
	}
	return buf.String()
}

// Arg is a single schema argument or return.
type Arg struct {
	Name     string     // Argument name, empty for returns.
	TypeName string     // Type as written in the schema, e.g. "Tensor[]".
	Alias    *AliasInfo // nil if unannotated.
}

// Schema is the declared signature of an operator.
type Schema struct {
	Name    string // Qualified operator name, e.g. "aten::add_".
	Args    []Arg
	Returns []Arg
	VarArg  bool // Schema accepts unannotated trailing arguments.
	VarRet  bool // Schema produces unannotated trailing returns.
}

func (s *Schema) String() string {
	var buf strings.Builder
	buf.WriteString(s.Name)
	buf.WriteString("(")
	for i, a := range s.Args {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(a.TypeName)
		if a.Alias != nil {
			fmt.Fprintf(&buf, "(%s)", a.Alias)
		}
		if a.Name != "" {
			buf.WriteString(" " + a.Name)
		}
	}
	if s.VarArg {
		if len(s.Args) > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString("...")
	}
	buf.WriteString(") -> ")
	for i, r := range s.Returns {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(r.TypeName)
		if r.Alias != nil {
			fmt.Fprintf(&buf, "(%s)", r.Alias)
		}
	}
	if s.VarRet {
		if len(s.Returns) > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString("...")
	}
	return buf.String()
}

// schemaParser is a hand-rolled scanner over a schema declaration.
type schemaParser struct {
	src string
	pos int
}

// ParseSchema parses a schema declaration in the annotation mini-language.
func ParseSchema(src string) (*Schema, error) {
	p := &schemaParser{src: src}
	s, err := p.parse()
	if err != nil {
		return nil, fmt.Errorf("schema %q: %v", src, err)
	}
	return s, nil
}

// MustParseSchema is ParseSchema for statically known declarations.
func MustParseSchema(src string) *Schema {
	s, err := ParseSchema(src)
	if err != nil {
		log.Fatal(err)
	}
	return s
}

func (p *schemaParser) parse() (*Schema, error) {
	s := &Schema{}
	name := p.until('(')
	if name == "" {
		return nil, fmt.Errorf("missing operator name")
	}
	s.Name = strings.TrimSpace(name)
	if !p.eat("(") {
		return nil, fmt.Errorf("missing argument list")
	}
	for !p.eat(")") {
		if p.eat("...") {
			s.VarArg = true
			continue
		}
		arg, err := p.parseArg(true)
		if err != nil {
			return nil, err
		}
		s.Args = append(s.Args, arg)
		p.eat(",")
	}
	if !p.eat("->") {
		return nil, fmt.Errorf("missing return declaration")
	}
	parens := p.eat("(")
	for {
		if p.eat("...") {
			s.VarRet = true
		} else {
			ret, err := p.parseArg(false)
			if err != nil {
				return nil, err
			}
			s.Returns = append(s.Returns, ret)
		}
		if !p.eat(",") {
			break
		}
	}
	if parens && !p.eat(")") {
		return nil, fmt.Errorf("unclosed return list")
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("trailing input at offset %d", p.pos)
	}
	return s, nil
}

func (p *schemaParser) parseArg(named bool) (Arg, error) {
	var arg Arg
	typ := p.ident()
	if typ == "" {
		return arg, fmt.Errorf("missing type at offset %d", p.pos)
	}
	if p.eat("(") {
		ann, err := p.parseAnnotation()
		if err != nil {
			return arg, err
		}
		arg.Alias = ann
	}
	for p.eat("[]") {
		typ += "[]"
	}
	arg.TypeName = typ
	if named {
		arg.Name = p.ident()
	}
	return arg, nil
}

// parseAnnotation parses "a", "a!", "a|b", "*", "a! -> *" up to the
// closing parenthesis.
func (p *schemaParser) parseAnnotation() (*AliasInfo, error) {
	body := p.until(')')
	if !p.eat(")") {
		return nil, fmt.Errorf("unclosed annotation at offset %d", p.pos)
	}
	ai := &AliasInfo{}
	before := body
	if i := strings.Index(body, "->"); i >= 0 {
		before = body[:i]
		ai.AfterSets = splitSets(body[i+2:])
	}
	before = strings.TrimSpace(before)
	if strings.HasSuffix(before, "!") {
		ai.Write = true
		before = strings.TrimSuffix(before, "!")
	}
	ai.BeforeSets = splitSets(before)
	if len(ai.BeforeSets) == 0 {
		return nil, fmt.Errorf("empty annotation")
	}
	if ai.AfterSets == nil {
		ai.AfterSets = ai.BeforeSets
	}
	return ai, nil
}

func splitSets(s string) []string {
	var sets []string
	for _, part := range strings.Split(s, "|") {
		if part = strings.TrimSpace(part); part != "" {
			sets = append(sets, part)
		}
	}
	return sets
}

func (p *schemaParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

// eat consumes tok if it is next in the input.
func (p *schemaParser) eat(tok string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], tok) {
		p.pos += len(tok)
		return true
	}
	return false
}

// until returns the input up to (not consuming) the next occurrence of ch.
func (p *schemaParser) until(ch byte) string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] != ch {
		p.pos++
	}
	return strings.TrimSpace(p.src[start:p.pos])
}

// ident consumes an identifier (letters, digits, "_", "::", ".").
func (p *schemaParser) ident() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '_', c == ':', c == '.':
			p.pos++
		default:
			return p.src[start:p.pos]
		}
	}
	return p.src[start:p.pos]
}
