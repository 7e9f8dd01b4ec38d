// Package queryscope extracts operation and field names from a query
// document for authorization. It is a structural scanner, not an executor:
// it never validates the document against a schema and never fails — any
// input it cannot make sense of yields an empty result, which downstream
// checks treat as deny.
package queryscope

import "unicode"

// Extract returns, for each top-level operation in the document, the
// first-level field names requested under it. Nested selection sets are
// walked so that malformed nesting cannot derail the scan, but only the
// first level feeds the result. An empty or unparseable document returns an
// empty map.
func Extract(doc string) map[string][]string {
	toks := tokenize(doc)
	ops := make(map[string][]string)

	p := &parser{toks: toks}
	for !p.done() {
		// optional operation header: query Name($v: T) @dir / mutation / subscription
		switch p.peek().text {
		case "query", "mutation", "subscription":
			p.next()
			if p.peek().kind == tokIdent {
				p.next() // operation document name, not an operation selection
			}
			p.skipParens()
			p.skipDirectives()
		case "fragment":
			// fragment Name on Type { ... } — not an operation, skip whole body
			p.next()
			if p.peek().kind == tokIdent {
				p.next()
			}
			if p.peek().text == "on" {
				p.next()
				if p.peek().kind == tokIdent {
					p.next()
				}
			}
			p.skipDirectives()
			p.skipBracedBlock()
			continue
		}

		if p.peek().kind != tokPunct || p.peek().text != "{" {
			// stray token; drop it and keep scanning
			p.next()
			continue
		}

		p.next() // consume '{'
		p.selections(func(name string, fields []string) {
			if _, ok := ops[name]; !ok {
				ops[name] = []string{}
			}
			ops[name] = append(ops[name], fields...)
		})
	}

	return ops
}

type tokKind int

const (
	tokIdent tokKind = iota
	tokPunct
	tokEOF
)

type tok struct {
	kind tokKind
	text string
}

// tokenize splits the document into identifiers and single-rune punctuation.
// Commas are whitespace, strings and #-comments are discarded, "..." is one
// token.
func tokenize(doc string) []tok {
	var toks []tok
	runes := []rune(doc)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r) || r == ',':
			i++
		case r == '#':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
		case r == '"':
			i++
			for i < len(runes) && runes[i] != '"' {
				if runes[i] == '\\' {
					i++
				}
				i++
			}
			i++
		case r == '.' && i+2 < len(runes) && runes[i+1] == '.' && runes[i+2] == '.':
			toks = append(toks, tok{tokPunct, "..."})
			i += 3
		case isNameRune(r):
			start := i
			for i < len(runes) && isNameRune(runes[i]) {
				i++
			}
			toks = append(toks, tok{tokIdent, string(runes[start:i])})
		default:
			toks = append(toks, tok{tokPunct, string(r)})
			i++
		}
	}
	return toks
}

func isNameRune(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

type parser struct {
	toks []tok
	pos  int
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() tok {
	if p.done() {
		return tok{kind: tokEOF}
	}
	return p.toks[p.pos]
}

func (p *parser) next() tok {
	t := p.peek()
	p.pos++
	return t
}

// selections consumes entries of a top-level selection set up to its closing
// brace, emitting each operation name with its first-level fields.
func (p *parser) selections(emit func(name string, fields []string)) {
	for {
		t := p.peek()
		switch {
		case t.kind == tokEOF:
			return
		case t.text == "}":
			p.next()
			return
		case t.text == "...":
			p.next()
			p.skipFragmentRef()
		case t.kind == tokIdent:
			name := p.fieldName()
			p.skipParens()
			p.skipDirectives()

			var fields []string
			if p.peek().text == "{" {
				p.next()
				fields = p.fieldList()
			}
			emit(name, fields)
		default:
			p.next()
		}
	}
}

// fieldList consumes one selection set and returns its immediate field
// names, descending through deeper sets without recording them.
func (p *parser) fieldList() []string {
	fields := []string{}
	for {
		t := p.peek()
		switch {
		case t.kind == tokEOF:
			return fields
		case t.text == "}":
			p.next()
			return fields
		case t.text == "...":
			p.next()
			p.skipFragmentRef()
		case t.kind == tokIdent:
			fields = append(fields, p.fieldName())
			p.skipParens()
			p.skipDirectives()
			if p.peek().text == "{" {
				p.next()
				p.skipSelections()
			}
		default:
			p.next()
		}
	}
}

// fieldName consumes "name" or "alias : name" and returns the actual field.
func (p *parser) fieldName() string {
	name := p.next().text
	if p.peek().text == ":" {
		p.next()
		if p.peek().kind == tokIdent {
			name = p.next().text
		}
	}
	return name
}

// skipSelections discards a selection set whose opening brace was consumed.
func (p *parser) skipSelections() {
	depth := 1
	for depth > 0 {
		t := p.next()
		switch {
		case t.kind == tokEOF:
			return
		case t.text == "{":
			depth++
		case t.text == "}":
			depth--
		}
	}
}

// skipBracedBlock discards the next balanced braced block, if present.
func (p *parser) skipBracedBlock() {
	if p.peek().text != "{" {
		return
	}
	p.next()
	p.skipSelections()
}

// skipParens discards a balanced argument list, if present.
func (p *parser) skipParens() {
	if p.peek().text != "(" {
		return
	}
	depth := 0
	for {
		t := p.next()
		switch {
		case t.kind == tokEOF:
			return
		case t.text == "(":
			depth++
		case t.text == ")":
			depth--
			if depth == 0 {
				return
			}
		}
	}
}

// skipDirectives discards any @directive(args) sequence.
func (p *parser) skipDirectives() {
	for p.peek().text == "@" {
		p.next()
		if p.peek().kind == tokIdent {
			p.next()
		}
		p.skipParens()
	}
}

// skipFragmentRef discards a fragment spread or the header of an inline
// fragment. An inline fragment's braced body is dropped wholesale.
func (p *parser) skipFragmentRef() {
	if p.peek().text == "on" {
		p.next()
		if p.peek().kind == tokIdent {
			p.next()
		}
		p.skipDirectives()
		p.skipBracedBlock()
		return
	}
	if p.peek().kind == tokIdent {
		p.next()
	}
	p.skipDirectives()
}

// Operations returns just the operation names present in the document, in
// no particular order.
func Operations(doc string) []string {
	m := Extract(doc)
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	return names
}
