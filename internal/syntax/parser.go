package syntax

import (
	"fmt"
	"strings"

	"github.com/hvm-core/hvmc/internal/book"
	"github.com/hvm-core/hvmc/internal/port"
)

// opSymbols maps the §6 operator spellings to port.Op. The "f32." prefix
// is accepted and stripped: operand kind (int vs. float) is carried by
// the literal ports themselves (an F60 NUM), not by the operator symbol,
// so "f32.+" and "+" resolve to the same port.Op.
var opSymbols = map[string]port.Op{
	"+": port.OpAdd, "-": port.OpSub, "*": port.OpMul, "/": port.OpDiv, "%": port.OpMod,
	"==": port.OpEq, "!=": port.OpNe, "<": port.OpLt, ">": port.OpGt, "<=": port.OpLe, ">=": port.OpGe,
	"&": port.OpAnd, "|": port.OpOr, "^": port.OpXor, "<<": port.OpShl, ">>": port.OpShr,
}

func parseOperator(sym string) (port.Op, error) {
	sym = strings.TrimPrefix(sym, "f32.")
	op, ok := opSymbols[sym]
	if !ok {
		return 0, fmt.Errorf("syntax: unknown operator %q", sym)
	}
	return op, nil
}

// Parser turns a token stream into book.Builder registrations. One
// Parser instance parses one whole program (a sequence of `@name = ...`
// definitions).
type Parser struct {
	lex  *Lexer
	tok  Token
	err  error
	bld  *book.Builder
}

// Parse lexes and parses src, a §6 textual net program, registering every
// definition it finds into a fresh book.Builder.
func Parse(src string) (*book.Builder, error) {
	p := &Parser{lex: NewLexer(src), bld: book.NewBuilder()}
	p.advance()
	for p.tok.Type != EOF {
		if err := p.parseDef(); err != nil {
			return nil, err
		}
	}
	return p.bld, nil
}

// Build parses src and freezes the result into a Book in one step, the
// entry point the CLI's `run`/`reduce` commands use.
func Build(src string) (*book.Book, error) {
	bld, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return bld.Build()
}

func (p *Parser) advance() {
	if p.err != nil {
		return
	}
	tok, err := p.lex.Next()
	if err != nil {
		p.err = err
		return
	}
	p.tok = tok
}

func (p *Parser) expect(tt TokenType, what string) (Token, error) {
	if p.err != nil {
		return Token{}, p.err
	}
	if p.tok.Type != tt {
		return Token{}, fmt.Errorf("syntax: expected %s at offset %d, got %q", what, p.tok.Pos, p.tok.Lexeme)
	}
	tok := p.tok
	p.advance()
	return tok, nil
}

// defParse accumulates one definition's fresh CTR labels and node table
// as it descends through nested port expressions.
type defParse struct {
	nodes        []book.NodeTemplate
	nextLabel    uint8
	nextWire     int
	extraRedexes [][2]book.PortTemplate
}

// freshWire names a wire with no possible collision against a
// user-written identifier: the lexer never accepts '%' as an
// identifier byte, so these names are unique by construction.
func (d *defParse) freshWire() string {
	name := fmt.Sprintf("%%r%d", d.nextWire)
	d.nextWire++
	return name
}

func (d *defParse) addNode(n book.NodeTemplate) book.PortTemplate {
	idx := len(d.nodes)
	d.nodes = append(d.nodes, n)
	return book.Local(idx)
}

// parseDef parses `@name = <root> & <redex> & ...`.
func (p *Parser) parseDef() error {
	nameTok, err := p.expect(AT, "definition name (@name)")
	if err != nil {
		return err
	}
	name := strings.TrimPrefix(nameTok.Lexeme, "@")

	if _, err := p.expect(EQUALS, "'='"); err != nil {
		return err
	}

	d := &defParse{nextLabel: 1}
	root, err := p.parsePort(d)
	if err != nil {
		return err
	}

	var redexes [][2]book.PortTemplate
	for p.tok.Type == AMP {
		p.advance()
		left, err := p.parsePort(d)
		if err != nil {
			return err
		}
		if _, err := p.expect(TILDE, "'~'"); err != nil {
			return err
		}
		right, err := p.parsePort(d)
		if err != nil {
			return err
		}
		redexes = append(redexes, [2]book.PortTemplate{left, right})
	}

	if p.err != nil {
		return p.err
	}
	redexes = append(redexes, d.extraRedexes...)
	p.bld.DefineWithRedexes(name, root, d.nodes, redexes)
	return nil
}

// parsePort parses one port expression, allocating fresh nodes in d for
// any composite (CTR/OP2/MAT) form it encounters.
func (p *Parser) parsePort(d *defParse) (book.PortTemplate, error) {
	if p.err != nil {
		return book.PortTemplate{}, p.err
	}
	switch p.tok.Type {
	case STAR:
		p.advance()
		return book.Era(), nil

	case NUMBER:
		lit := p.tok.Lexeme
		p.advance()
		np, err := ParseNumberLiteral(lit)
		if err != nil {
			return book.PortTemplate{}, err
		}
		return book.Num(np.NumKind(), np.Value()), nil

	case AT:
		name := strings.TrimPrefix(p.tok.Lexeme, "@")
		p.advance()
		return book.RefByName(name), nil

	case IDENT:
		name := p.tok.Lexeme
		p.advance()
		return book.Var(name), nil

	case LBRACKET:
		p.advance()
		a, err := p.parsePort(d)
		if err != nil {
			return book.PortTemplate{}, err
		}
		b, err := p.parsePort(d)
		if err != nil {
			return book.PortTemplate{}, err
		}
		if _, err := p.expect(RBRACKET, "']'"); err != nil {
			return book.PortTemplate{}, err
		}
		return d.addNode(book.NodeTemplate{Tag: port.CTR, Sub: 0, Aux0: a, Aux1: b}), nil

	case LBRACE:
		p.advance()
		a, err := p.parsePort(d)
		if err != nil {
			return book.PortTemplate{}, err
		}
		b, err := p.parsePort(d)
		if err != nil {
			return book.PortTemplate{}, err
		}
		if _, err := p.expect(RBRACE, "'}'"); err != nil {
			return book.PortTemplate{}, err
		}
		label := d.nextLabel
		d.nextLabel++
		return d.addNode(book.NodeTemplate{Tag: port.CTR, Sub: label, Aux0: a, Aux1: b}), nil

	case QUESTION:
		p.advance()
		if _, err := p.expect(LANGLE, "'<' after '?'"); err != nil {
			return book.PortTemplate{}, err
		}
		a, err := p.parsePort(d)
		if err != nil {
			return book.PortTemplate{}, err
		}
		b, err := p.parsePort(d)
		if err != nil {
			return book.PortTemplate{}, err
		}
		if _, err := p.expect(RANGLE, "'>'"); err != nil {
			return book.PortTemplate{}, err
		}
		return d.addNode(book.NodeTemplate{Tag: port.MAT, Aux0: a, Aux1: b}), nil

	case LANGLE:
		// Do not call p.advance(): the lexer's position is already
		// sitting right after the '<' this LANGLE token represents, and
		// operator spellings ("==", "f32.+") don't tokenize under Next's
		// one-rune dispatch, so ScanOperator reads the raw bytes itself.
		sym, err := p.lex.ScanOperator()
		if err != nil {
			return book.PortTemplate{}, err
		}
		op, err := parseOperator(sym)
		if err != nil {
			return book.PortTemplate{}, err
		}
		p.advance() // now load the real first token of operand a
		a, err := p.parsePort(d)
		if err != nil {
			return book.PortTemplate{}, err
		}
		b, err := p.parsePort(d)
		if err != nil {
			return book.PortTemplate{}, err
		}
		if _, err := p.expect(RANGLE, "'>'"); err != nil {
			return book.PortTemplate{}, err
		}
		// An OP2 node only fires when a value arrives at its principal
		// port (rules.operate). `<op A B>` gives both operands
		// syntactically, so A is queued as a fresh redex against the
		// node's own principal port -- the value that "arrives" -- while
		// B is pre-wired into aux0 as the pending second operand. The
		// node's result (aux1) surfaces at this expression's use site
		// through a wire named once here and once at that use site.
		wire := d.freshWire()
		node := d.addNode(book.NodeTemplate{Tag: port.OP2, Sub: uint8(op), Aux0: b, Aux1: book.Var(wire)})
		d.extraRedexes = append(d.extraRedexes, [2]book.PortTemplate{a, node})
		return book.Var(wire), nil

	default:
		return book.PortTemplate{}, fmt.Errorf("syntax: unexpected token %q at offset %d", p.tok.Lexeme, p.tok.Pos)
	}
}
