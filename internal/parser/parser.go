// Package parser implements the recursive-descent syntax analysis for
// KAML (spec.md §4.4), driving a Shaper through a one-token (occasionally
// two-token) lookahead interface and assembling the ast node family.
//
// Unlike duhaifeng-light-lang's Pratt parser, which operates over a
// pre-tokenized slice with an integer cursor, this parser pulls tokens
// on demand from a shaper.Shaper — the shaper owns lookahead/push-back,
// so the parser's navigation helpers are thin wrappers around it. Binding
// power is generalized from the teacher's 8 levels to KAML's 14
// (spec.md §4.4 precedence table), and the grammar productions
// (use-stmt, param-seq, ternary-as-IfStmt, compile-time splice) are
// translated from original_source/kaml/recdec.py production-by-production.
package parser

import (
	"strconv"

	"kaml/internal/ast"
	"kaml/internal/diag"
	"kaml/internal/importer"
	"kaml/internal/scope"
	"kaml/internal/shaper"
	"kaml/internal/span"
	"kaml/internal/token"
)

// ============================================================
// Binding power (precedence) levels — spec.md §4.4 table, lowest to
// highest. Level 1 (comma) and level 2 (ternary/assignment) are handled
// by dedicated productions rather than the binary climber, since neither
// is a simple left-associative infix operator.
// ============================================================

const (
	bpNone         = 0
	bpOr           = 30  // or
	bpAnd          = 40  // and
	bpBitOr        = 50  // |
	bpBitXor       = 60  // ^
	bpBitAnd       = 70  // &
	bpEquality     = 80  // == !=
	bpRelational   = 90  // < <= > >=
	bpShift        = 100 // << >>
	bpAdditive     = 110 // + -
	bpMultiplicative = 120 // * / %
)

func infixBP(kind token.Kind) int {
	switch kind {
	case token.OR:
		return bpOr
	case token.AND:
		return bpAnd
	case token.PIPE:
		return bpBitOr
	case token.CARET:
		return bpBitXor
	case token.AMP:
		return bpBitAnd
	case token.EQ, token.NE:
		return bpEquality
	case token.LT, token.LTE, token.GT, token.GTE:
		return bpRelational
	case token.SHL, token.SHR:
		return bpShift
	case token.PLUS, token.MINUS:
		return bpAdditive
	case token.STAR, token.SLASH, token.PERCENT:
		return bpMultiplicative
	default:
		return bpNone
	}
}

// assignOps maps a level-2 compound-assignment token to its lexeme, which
// Assignment.Op carries verbatim (spec.md §4.4: "Op field carries the
// operator lexeme", not a desugared BinaryOp).
var assignOps = map[token.Kind]string{
	token.ASSIGN: "=",
	token.ADDEQ:  "+=",
	token.SUBEQ:  "-=",
	token.MULEQ:  "*=",
	token.DIVEQ:  "/=",
	token.MODEQ:  "%=",
	token.ANDEQ:  "&=",
	token.XOREQ:  "^=",
	token.OREQ:   "|=",
	token.SHLEQ:  "<<=",
	token.SHREQ:  ">>=",
}

// Error codes, per spec.md §7's taxonomy (E1xxx lex, E2xxx syntax, E3xxx
// semantic-at-parse-time).
const (
	codeExpectedToken       = "E2001"
	codeUnexpectedToken     = "E2002"
	codeDuplicateHashArg    = "E3001"
	codeBadParamDecoration  = "E3002"
	codeCompileTimeNonFunc  = "E3003"
	codeCompileTimeUnavail  = "E3004"
)

// Error is the error type returned by Parse on any abort: spec.md §7 says
// "every error aborts the current parse call and surfaces to the caller
// with location context" and "Partial ASTs are not emitted on failure" —
// so callers receive a non-nil error and must discard whatever *ast.TranslationUnit
// is returned (which is always nil alongside a non-nil error).
type Error struct {
	Diagnostic diag.Diagnostic
}

func (e *Error) Error() string { return e.Diagnostic.String() }

// CompileTimeInvoker evaluates a compile-time function definition against
// the current scope and returns the AST node to splice in at the call
// site (spec.md §4.4 "Compile-time function recognition"). AST evaluation
// is out of scope for this module (spec.md §1), so the default Parser has
// none configured and any compile-time call surfaces codeCompileTimeUnavail
// as a SemanticError (SPEC_FULL.md §4 "Compile-time function unsupported
// paths... surfaced as SemanticError").
type CompileTimeInvoker interface {
	Invoke(fn *ast.FuncDef, sc *scope.Scope) (ast.Node, error)
}

// Parser drives a shaper.Shaper through KAML's grammar, threading a Scope
// for compile-time function recognition (spec.md §4.1, §4.4) and an
// Importer for use-stmt splicing (spec.md §6).
type Parser struct {
	sh       *shaper.Shaper
	scope    *scope.Scope
	importer importer.Importer
	compile  CompileTimeInvoker
	filename string

	// lastConsumed is the most recently advance()-d token, used to compute
	// a production's end position. This must be per-Parser, not package
	// global: use-stmt splicing re-enters the parser recursively (the
	// importer's ParseFunc constructs a fresh Parser for the imported
	// file), and a shared global would have the inner parse clobber the
	// outer parse's position tracking on return.
	lastConsumed token.Token
}

// New constructs a Parser. imp and compile may be nil: with a nil importer
// a use-stmt still parses into its UseStmt chain but is not resolved (its
// Unit stays nil); a nil compile invoker makes any compile-time call abort
// with codeCompileTimeUnavail.
func New(sh *shaper.Shaper, sc *scope.Scope, imp importer.Importer, compile CompileTimeInvoker, filename string) *Parser {
	if sc == nil {
		sc = scope.New()
	}
	return &Parser{sh: sh, scope: sc, importer: imp, compile: compile, filename: filename}
}

// Parse drives the parser over the whole input, returning the
// TranslationUnit root or the first error encountered (spec.md §7
// propagation policy: abort-on-first-error, no partial AST).
func (p *Parser) Parse() (*ast.TranslationUnit, error) {
	startPos := p.peek(true).Span.Start
	tu := &ast.TranslationUnit{}

	for !p.atEnd() {
		p.skipStatementSeparators()
		if p.atEnd() {
			break
		}
		node, err := p.topItem()
		if err != nil {
			return nil, err
		}
		if node != nil {
			tu.Declarations = append(tu.Declarations, node)
		}
	}

	tu.Span = span.Span{Start: startPos, End: p.prevEnd()}
	return tu, nil
}

// ============================================================
// navigation helpers
// ============================================================

func (p *Parser) peek(filterWS bool) token.Token {
	return p.sh.Lookahead(1, filterWS)
}

func (p *Parser) next(filterWS bool) token.Token {
	return p.sh.Next(filterWS)
}

func (p *Parser) atEnd() bool {
	return p.peek(true).Kind == token.EOF
}

func (p *Parser) check(kind token.Kind) bool {
	return p.peek(true).Kind == kind
}

func (p *Parser) advance() token.Token {
	tok := p.next(true)
	p.lastConsumed = tok
	return tok
}

func (p *Parser) prevEnd() span.Position {
	return p.lastConsumed.Span.End
}

// expect consumes the next non-WS token if it matches kind, else aborts
// with a SyntaxError formatted per spec.md §7: "Expecting <kind>(<value?>)
// but got <actual>".
func (p *Parser) expect(kind token.Kind) (token.Token, error) {
	tok := p.peek(true)
	if tok.Kind != kind {
		return tok, p.errf(codeExpectedToken, tok.Span,
			"Expecting %s but got %s(%q)", kind, tok.Kind, tok.Lexeme)
	}
	return p.advance(), nil
}

func (p *Parser) errf(code string, sp span.Span, format string, args ...interface{}) error {
	return &Error{Diagnostic: diag.Errorf(code, sp, format, args...)}
}

// semiOrNL consumes a statement terminator: a SEMICOLON token, or a WS
// token whose lexeme contains a newline (spec.md §4.4 "Statement
// termination"; grounded on recdec.py's semi_or_nl, which accepts either).
// filterWS is false for this call specifically, since the newline itself
// carries the information; purely horizontal WS before the terminator is
// skipped.
func (p *Parser) semiOrNL() error {
	tok := p.next(false)
	for tok.Kind == token.WS && !containsNewline(tok.Lexeme) {
		tok = p.next(false)
	}
	if tok.Kind == token.SEMICOLON {
		p.lastConsumed = tok
		return nil
	}
	if tok.Kind == token.WS && containsNewline(tok.Lexeme) {
		p.lastConsumed = tok
		return nil
	}
	if tok.Kind == token.EOF || tok.Kind == token.RBRACE {
		p.sh.PushBack(tok)
		return nil
	}
	p.sh.PushBack(tok)
	return p.errf(codeExpectedToken, tok.Span, "Expecting ';' or a newline but got %s(%q)", tok.Kind, tok.Lexeme)
}

func containsNewline(s string) bool {
	for _, r := range s {
		if r == '\n' {
			return true
		}
	}
	return false
}

// skipStatementSeparators discards leading ';' and newline-bearing WS
// tokens between top-level items (recdec.py's top-level loop tolerates
// any number of blank/semicolon separators between items).
func (p *Parser) skipStatementSeparators() {
	for {
		tok := p.peek(false)
		if tok.Kind == token.SEMICOLON {
			p.next(false)
			continue
		}
		if tok.Kind == token.WS {
			p.next(false)
			continue
		}
		return
	}
}

// listSep consumes an optional separator between list elements: optional
// WS, optional ',', optional WS again (recdec.py's list_sep). If
// couldBeEnd is false and no separator was present at all, it is a
// syntax error.
func (p *Parser) listSep(couldBeEnd bool) error {
	sawAny := false
	for p.peek(false).Kind == token.WS {
		p.next(false)
		sawAny = true
	}
	if p.peek(false).Kind == token.COMMA {
		p.next(false)
		sawAny = true
		for p.peek(false).Kind == token.WS {
			p.next(false)
		}
	}
	if !sawAny && !couldBeEnd {
		tok := p.peek(false)
		return p.errf(codeExpectedToken, tok.Span, "Expecting ',' or whitespace separator but got %s(%q)", tok.Kind, tok.Lexeme)
	}
	return nil
}

// ============================================================
// top-level / statements
// ============================================================

func (p *Parser) topItem() (ast.Node, error) {
	switch p.peek(true).Kind {
	case token.USE:
		return p.useStmt()
	case token.DEF:
		return p.funcDef()
	default:
		return p.blockItem()
	}
}

// useStmt → USE ID (':' (ID | '*'))* ';' — builds a left-associative
// UseStmt chain, then invokes the importer with the dotted string (spec.md
// §4.4, §6; original_source/kaml/recdec.py's use_stmt/package_import).
// Per spec.md §4.5 ("UseStmt nodes nest left: use a:b:c becomes
// UseStmt(UseStmt("a","b"),"c")") and §8's S1/S2/S3 examples, the first
// two segments fold into one node (Name, Child, Root=nil); every segment
// after that wraps the prior chain in Root and carries only Child.
func (p *Parser) useStmt() (ast.Node, error) {
	start := p.advance() // USE
	firstTok, err := p.expect(token.ID)
	if err != nil {
		return nil, err
	}
	first := firstTok.Value.(string)
	dotted := first
	var chain *ast.UseStmt

	if !p.check(token.COLON) {
		chain = &ast.UseStmt{
			Base: ast.Base{Span: span.Span{Start: start.Span.Start, End: firstTok.Span.End}},
			Name: first,
		}
	} else {
		p.advance() // ':'
		child, childEnd, err := p.useSegment()
		if err != nil {
			return nil, err
		}
		dotted += ":" + child
		chain = &ast.UseStmt{
			Base:  ast.Base{Span: span.Span{Start: start.Span.Start, End: childEnd}},
			Name:  first,
			Child: child,
		}

		for child != "*" && p.check(token.COLON) {
			p.advance() // ':'
			seg, segEnd, err := p.useSegment()
			if err != nil {
				return nil, err
			}
			if seg != "*" {
				dotted += ":" + seg
			} else {
				dotted += ":*"
			}
			chain = &ast.UseStmt{
				Base:  ast.Base{Span: span.Span{Start: start.Span.Start, End: segEnd}},
				Root:  chain,
				Child: seg,
			}
			child = seg
		}
	}

	if err := p.semiOrNL(); err != nil {
		return nil, err
	}

	if p.importer == nil {
		return chain, nil
	}
	unit, err := p.importer.Import(dotted)
	if err != nil {
		return nil, p.errf(codeExpectedToken, chain.Span, "import %q failed: %v", dotted, err)
	}
	chain.Unit = unit
	return chain, nil
}

// useSegment parses one dotted segment after a ':' — either an ID or a
// terminal '*' ("all exports").
func (p *Parser) useSegment() (string, span.Position, error) {
	if p.check(token.STAR) {
		tok := p.advance()
		return "*", tok.Span.End, nil
	}
	tok, err := p.expect(token.ID)
	if err != nil {
		return "", span.Position{}, err
	}
	return tok.Value.(string), tok.Span.End, nil
}

// blockItem dispatches on the leading token kind (spec.md §4.4).
func (p *Parser) blockItem() (ast.Node, error) {
	switch p.peek(true).Kind {
	case token.SET:
		return p.setStmt()
	case token.IF:
		return p.ifChain()
	case token.WHILE:
		return p.whileStmt()
	case token.FOR:
		return p.forStmt()
	case token.RETURN:
		return p.returnStmt()
	case token.BREAK:
		return p.breakStmt()
	case token.CONTINUE:
		return p.continueStmt()
	case token.LBRACE:
		return p.suite()
	default:
		expr, err := p.expression()
		if err != nil {
			return nil, err
		}
		if err := p.semiOrNL(); err != nil {
			return nil, err
		}
		return expr, nil
	}
}

// suite → '{' block-item* '}'. Introduces exactly one scope frame (spec.md
// §3 invariant), pushed on entry and popped on every exit path.
func (p *Parser) suite() (*ast.Suite, error) {
	start, err := p.expect(token.LBRACE)
	if err != nil {
		return nil, err
	}
	p.scope.Push()
	defer p.scope.Pop()

	s := &ast.Suite{}
	for {
		p.skipStatementSeparators()
		if p.check(token.RBRACE) {
			break
		}
		if p.atEnd() {
			tok := p.peek(true)
			return nil, p.errf(codeExpectedToken, tok.Span, "Expecting '}' but got %s", tok.Kind)
		}
		item, err := p.topItem()
		if err != nil {
			return nil, err
		}
		if item != nil {
			s.Items = append(s.Items, item)
		}
	}
	end, err := p.expect(token.RBRACE)
	if err != nil {
		return nil, err
	}
	s.Span = span.Span{Start: start.Span.Start, End: end.Span.End}
	return s, nil
}

func (p *Parser) setStmt() (*ast.SetStmt, error) {
	start := p.advance() // SET
	nameTok, err := p.expect(token.ID)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.ASSIGN); err != nil {
		return nil, err
	}
	value, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.semiOrNL(); err != nil {
		return nil, err
	}
	return &ast.SetStmt{
		Base:  ast.Base{Span: span.Span{Start: start.Span.Start, End: p.prevEnd()}},
		Name:  nameTok.Value.(string),
		Value: value,
	}, nil
}

// ifChain → IF '(' expr ')' suite (ELIF '(' expr ')' suite)* (ELSE suite)?
// linked via IfStmt.Else (spec.md §4.4 if-chain; elif chains become
// nested IfStmt values, a bare else becomes the Suite terminal).
func (p *Parser) ifChain() (*ast.IfStmt, error) {
	return p.ifOrElif(token.IF)
}

func (p *Parser) ifOrElif(leading token.Kind) (*ast.IfStmt, error) {
	start, err := p.expect(leading)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	then, err := p.suite()
	if err != nil {
		return nil, err
	}

	stmt := &ast.IfStmt{
		Base: ast.Base{Span: span.Span{Start: start.Span.Start, End: then.Span.End}},
		Cond: cond,
		Then: then,
	}

	if p.check(token.ELIF) {
		elif, err := p.ifOrElif(token.ELIF)
		if err != nil {
			return nil, err
		}
		stmt.Else = elif
		stmt.Span.End = elif.Span.End
	} else if p.check(token.ELSE) {
		p.advance()
		elseBody, err := p.suite()
		if err != nil {
			return nil, err
		}
		stmt.Else = elseBody
		stmt.Span.End = elseBody.Span.End
	}
	return stmt, nil
}

func (p *Parser) whileStmt() (*ast.WhileStmt, error) {
	start, err := p.expect(token.WHILE)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	body, err := p.suite()
	if err != nil {
		return nil, err
	}
	return &ast.WhileStmt{
		Base: ast.Base{Span: span.Span{Start: start.Span.Start, End: body.Span.End}},
		Cond: cond,
		Body: body,
	}, nil
}

// forStmt → FOR '(' [expr] ';' [expr] ';' [expr] ')' suite — a C-style
// three-clause loop (spec.md §3 ForStmt; recdec.py's for_stmt stub gives
// only the node shape, so clause optionality follows the C convention the
// node's field names (Init/Cond/Step, all nilable) imply).
func (p *Parser) forStmt() (*ast.ForStmt, error) {
	start, err := p.expect(token.FOR)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}

	stmt := &ast.ForStmt{}
	if !p.check(token.SEMICOLON) {
		init, err := p.expression()
		if err != nil {
			return nil, err
		}
		stmt.Init = init
	}
	if _, err := p.expect(token.SEMICOLON); err != nil {
		return nil, err
	}

	if !p.check(token.SEMICOLON) {
		cond, err := p.expression()
		if err != nil {
			return nil, err
		}
		stmt.Cond = cond
	}
	if _, err := p.expect(token.SEMICOLON); err != nil {
		return nil, err
	}

	if !p.check(token.RPAREN) {
		step, err := p.expression()
		if err != nil {
			return nil, err
		}
		stmt.Step = step
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}

	body, err := p.suite()
	if err != nil {
		return nil, err
	}
	stmt.Body = body
	stmt.Span = span.Span{Start: start.Span.Start, End: body.Span.End}
	return stmt, nil
}

func (p *Parser) returnStmt() (*ast.ReturnStmt, error) {
	start := p.advance() // RETURN
	stmt := &ast.ReturnStmt{Base: ast.Base{Span: span.Span{Start: start.Span.Start, End: start.Span.End}}}

	// Checked with filterWS=false: a newline-bearing WS here terminates a
	// bare `return` (spec.md §4.4 statement termination), so it must be
	// seen before deciding whether an expression follows. Peeking with
	// filterWS=true would skip straight past that WS to the *next*
	// statement's first token and wrongly parse it as the return value.
	tok := p.peek(false)
	bare := tok.Kind == token.SEMICOLON || tok.Kind == token.RBRACE || tok.Kind == token.EOF ||
		(tok.Kind == token.WS && containsNewline(tok.Lexeme))
	if !bare {
		expr, err := p.expression()
		if err != nil {
			return nil, err
		}
		stmt.Expr = expr
	}
	if err := p.semiOrNL(); err != nil {
		return nil, err
	}
	stmt.Span.End = p.prevEnd()
	return stmt, nil
}

func (p *Parser) breakStmt() (*ast.BreakStmt, error) {
	start := p.advance()
	if err := p.semiOrNL(); err != nil {
		return nil, err
	}
	return &ast.BreakStmt{Base: ast.Base{Span: span.Span{Start: start.Span.Start, End: p.prevEnd()}}}, nil
}

func (p *Parser) continueStmt() (*ast.ContinueStmt, error) {
	start := p.advance()
	if err := p.semiOrNL(); err != nil {
		return nil, err
	}
	return &ast.ContinueStmt{Base: ast.Base{Span: span.Span{Start: start.Span.Start, End: p.prevEnd()}}}, nil
}

// ============================================================
// function definitions + ParamSeq grammar
// ============================================================

// funcDef → DEF (ID | STRING_LIT) param-seq suite. A STRING_LIT name
// marks the definition compile-time (spec.md §4.4); the definition is
// bound into the current scope frame so later parses can recognize
// compile-time calls by name (spec.md §4.4 "Compile-time function
// recognition").
func (p *Parser) funcDef() (*ast.FuncDef, error) {
	start, err := p.expect(token.DEF)
	if err != nil {
		return nil, err
	}

	var name string
	var compileTime bool
	nameTok := p.peek(true)
	switch nameTok.Kind {
	case token.ID:
		p.advance()
		name = nameTok.Value.(string)
	case token.STRING_LIT:
		p.advance()
		name = stringValue(nameTok)
		compileTime = true
	default:
		return nil, p.errf(codeExpectedToken, nameTok.Span, "Expecting function name (ID or STRING_LIT) but got %s", nameTok.Kind)
	}

	params, err := p.paramSeq()
	if err != nil {
		return nil, err
	}

	decl := &ast.FuncDecl{
		Base:        ast.Base{Span: span.Span{Start: start.Span.Start, End: p.prevEnd()}},
		Name:        name,
		Params:      params,
		CompileTime: compileTime,
	}

	body, err := p.suite()
	if err != nil {
		return nil, err
	}

	def := &ast.FuncDef{
		Base: ast.Base{Span: span.Span{Start: start.Span.Start, End: body.Span.End}},
		Decl: decl,
		Body: body,
	}
	p.scope.Bind(name, def)
	return def, nil
}

// paramSeq → (hash-param)? (dot-param)* (kwarg-param)? ('(' positional
// ')')? (spec.md §4.4). Declaration order in the grammar is hash, then
// any number of dots, then at most one kwarg bracket, then the
// parenthesized positional list — each piece is optional.
func (p *Parser) paramSeq() (*ast.ParamSeq, error) {
	seq := &ast.ParamSeq{}
	start := p.peek(true).Span.Start
	sawHash := false

	for p.check(token.HASH) {
		hashTok := p.advance()
		if sawHash {
			return nil, p.errf(codeDuplicateHashArg, hashTok.Span, "a parameter sequence may carry at most one #id decoration")
		}
		sawHash = true
		idTok, err := p.expect(token.ID)
		if err != nil {
			return nil, err
		}
		seq.HashArg = &ast.HashDecl{
			Base: ast.Base{Span: span.Span{Start: hashTok.Span.Start, End: idTok.Span.End}},
			Name: idTok.Value.(string),
		}
	}

	for p.check(token.DOT) {
		dotTok := p.advance()
		idTok, err := p.expect(token.ID)
		if err != nil {
			return nil, err
		}
		seq.DotArgs = append(seq.DotArgs, &ast.DotDecl{
			Base: ast.Base{Span: span.Span{Start: dotTok.Span.Start, End: idTok.Span.End}},
			Name: idTok.Value.(string),
		})
	}

	if p.check(token.LBRACKET) {
		kw, err := p.kwargParam()
		if err != nil {
			return nil, err
		}
		seq.KWArgs = kw.KWArgs
		seq.KWArgOrder = kw.KWArgOrder
	}

	if p.check(token.LPAREN) {
		p.advance()
		if !p.check(token.RPAREN) {
			for {
				decl, err := p.paramDef()
				if err != nil {
					return nil, err
				}
				seq.Positional = append(seq.Positional, decl)
				if p.check(token.RPAREN) {
					break
				}
				if err := p.listSep(false); err != nil {
					return nil, err
				}
				if p.check(token.RPAREN) {
					break
				}
			}
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
	}

	seq.Span = span.Span{Start: start, End: p.prevEnd()}
	return seq, nil
}

// kwargParam → '[' (ID ('=' expression)? (',' | WS)*)* ']' → KWArgDecl
// folded into the caller's ParamSeq.KWArgs.
func (p *Parser) kwargParam() (*ast.KWArgDecl, error) {
	start, err := p.expect(token.LBRACKET)
	if err != nil {
		return nil, err
	}
	decl := &ast.KWArgDecl{KWArgs: map[string]ast.Expr{}}
	for !p.check(token.RBRACKET) {
		idTok, err := p.expect(token.ID)
		if err != nil {
			return nil, err
		}
		name := idTok.Value.(string)
		var value ast.Expr = emptyExpr(idTok.Span)
		if p.check(token.ASSIGN) {
			p.advance()
			value, err = p.expression()
			if err != nil {
				return nil, err
			}
		}
		decl.KWArgs[name] = value
		decl.KWArgOrder = append(decl.KWArgOrder, name)
		if p.check(token.RBRACKET) {
			break
		}
		if err := p.listSep(true); err != nil {
			return nil, err
		}
	}
	end, err := p.expect(token.RBRACKET)
	if err != nil {
		return nil, err
	}
	decl.Span = span.Span{Start: start.Span.Start, End: end.Span.End}
	return decl, nil
}

// paramDef → ID ('=' expression)?, with compile-time function splicing:
// if ID is already bound in scope to a compile-time FuncDef, the
// identifier names an invocation rather than a declaration, and the
// compile-time invoker's result is spliced in instead of a VariableDecl
// (spec.md §4.4 "Compile-time function recognition"; recdec.py's
// function_params calls this out as the reason param parsing consults
// scope at all).
func (p *Parser) paramDef() (*ast.VariableDecl, error) {
	idTok, err := p.expect(token.ID)
	if err != nil {
		return nil, err
	}
	name := idTok.Value.(string)

	if bound, lookupErr := p.scope.Lookup(name); lookupErr == nil {
		if fn, isFunc := bound.(*ast.FuncDef); isFunc {
			if !fn.Decl.CompileTime {
				return nil, p.errf(codeCompileTimeNonFunc, idTok.Span, "%q is not a compile-time function", name)
			}
			if p.compile == nil {
				return nil, p.errf(codeCompileTimeUnavail, idTok.Span, "compile-time evaluation of %q is not supported", name)
			}
			p.scope.Push()
			spliced, err := p.compile.Invoke(fn, p.scope)
			p.scope.Pop()
			if err != nil {
				return nil, p.errf(codeCompileTimeUnavail, idTok.Span, "compile-time call to %q failed: %v", name, err)
			}
			if decl, ok := spliced.(*ast.VariableDecl); ok {
				return decl, nil
			}
			return nil, p.errf(codeBadParamDecoration, idTok.Span, "compile-time call to %q did not produce a parameter declaration", name)
		}
	}

	decl := &ast.VariableDecl{
		Base:    ast.Base{Span: span.Span{Start: idTok.Span.Start, End: idTok.Span.End}},
		Name:    name,
		Initial: emptyExpr(idTok.Span),
	}
	if p.check(token.ASSIGN) {
		p.advance()
		init, err := p.expression()
		if err != nil {
			return nil, err
		}
		decl.Initial = init
		decl.Span.End = p.prevEnd()
	}
	return decl, nil
}

func emptyExpr(sp span.Span) *ast.EmptyExpr {
	return &ast.EmptyExpr{ExprBase: ast.ExprBase{Base: ast.Base{Span: sp}}}
}

func stringValue(t token.Token) string {
	if s, ok := t.Value.(string); ok {
		return s
	}
	return t.Lexeme
}

// ============================================================
// Expression parsing — precedence climbing, 14 levels (spec.md §4.4).
// ============================================================

// expression is the level-1 (comma) entry point. A bare top-level
// expression never needs the comma form (commas only separate list
// elements, handled by listSep), so level 1 simply falls through to
// level 2 (ternary/assignment); it exists as its own production to mirror
// the table and to be the single public entry point every caller uses.
func (p *Parser) expression() (ast.Expr, error) {
	return p.assignmentExpr()
}

// assignmentExpr is level 2: ternary and assignment share the lowest
// binding level above comma, both right-associative. Per spec.md §4.4,
// "Assignments produce Assignment nodes whose op field carries the
// operator lexeme. The ternary a ? b : c produces an IfStmt with
// single-expression Suite branches." Grounded on recdec.py's
// conditional_expression, which parses or_test() and then looks for a
// trailing '?' or assignment operator at this same level.
func (p *Parser) assignmentExpr() (ast.Expr, error) {
	left, err := p.orTest()
	if err != nil {
		return nil, err
	}

	if p.check(token.QUESTION) {
		qTok := p.advance()
		thenExpr, err := p.assignmentExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.COLON); err != nil {
			return nil, err
		}
		elseExpr, err := p.assignmentExpr()
		if err != nil {
			return nil, err
		}
		thenSuite := &ast.Suite{
			Base:  ast.Base{Span: thenExpr.GetSpan()},
			Items: []ast.Node{thenExpr},
		}
		elseSuite := &ast.Suite{
			Base:  ast.Base{Span: elseExpr.GetSpan()},
			Items: []ast.Node{elseExpr},
		}
		return &ast.IfStmt{
			Base: ast.Base{Span: span.Span{Start: qTok.Span.Start, End: elseExpr.GetSpan().End}},
			Cond: left,
			Then: thenSuite,
			Else: elseSuite,
		}, nil
	}

	if lexeme, ok := assignOps[p.peek(true).Kind]; ok {
		p.advance()
		value, err := p.assignmentExpr()
		if err != nil {
			return nil, err
		}
		return &ast.Assignment{
			ExprBase: ast.ExprBase{Base: ast.Base{Span: span.Span{Start: left.GetSpan().Start, End: value.GetSpan().End}}},
			Target:   left,
			Op:       lexeme,
			Value:    value,
		}, nil
	}

	return left, nil
}

func (p *Parser) orTest() (ast.Expr, error) {
	left, err := p.andTest()
	if err != nil {
		return nil, err
	}
	for p.check(token.OR) {
		opTok := p.advance()
		right, err := p.andTest()
		if err != nil {
			return nil, err
		}
		left = &ast.TestOp{
			ExprBase: ast.ExprBase{Base: ast.Base{Span: span.Span{Start: left.GetSpan().Start, End: right.GetSpan().End}}},
			LHS:      left, Op: opTok.Kind, RHS: right,
		}
	}
	return left, nil
}

func (p *Parser) andTest() (ast.Expr, error) {
	left, err := p.binary(bpBitOr)
	if err != nil {
		return nil, err
	}
	for p.check(token.AND) {
		opTok := p.advance()
		right, err := p.binary(bpBitOr)
		if err != nil {
			return nil, err
		}
		left = &ast.TestOp{
			ExprBase: ast.ExprBase{Base: ast.Base{Span: span.Span{Start: left.GetSpan().Start, End: right.GetSpan().End}}},
			LHS:      left, Op: opTok.Kind, RHS: right,
		}
	}
	return left, nil
}

// binary implements the left-associative binary levels (bitwise or/xor/
// and, equality, relational, shift, additive, multiplicative — spec.md
// §4.4 levels 5-12) as one precedence-climbing loop parameterized by the
// minimum binding power to accept, bottoming out at unary.
func (p *Parser) binary(minBP int) (ast.Expr, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		opTok := p.peek(true)
		bp := infixBP(opTok.Kind)
		if bp == bpNone || bp < minBP {
			return left, nil
		}
		p.advance()
		right, err := p.binary(bp + 1) // left-associative: right operand binds tighter
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{
			ExprBase: ast.ExprBase{Base: ast.Base{Span: span.Span{Start: left.GetSpan().Start, End: right.GetSpan().End}}},
			LHS:      left, Op: opTok.Kind, RHS: right,
		}
	}
}

// unary is level 13: prefix `+ - ! ~`, right-recursive into itself
// (recdec.py's unary_expression; marked there "# TODO: test this right
// recursion" — covered here by TestPrecedenceUnaryRightAssociative).
func (p *Parser) unary() (ast.Expr, error) {
	tok := p.peek(true)
	switch tok.Kind {
	case token.PLUS, token.MINUS, token.BANG, token.TILDE:
		p.advance()
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOp{
			ExprBase: ast.ExprBase{Base: ast.Base{Span: span.Span{Start: tok.Span.Start, End: operand.GetSpan().End}}},
			Op:       tok.Kind, Expr: operand,
		}, nil
	default:
		return p.postfix()
	}
}

// postfix is level 14: `.` attr, `[` index, `(` call, composed
// left-to-right over a primary expression (spec.md §4.4). SCOPEDID is
// lexed as a single token (see internal/lexer's maybeScopedID), so it
// needs no postfix composition of its own — it surfaces as an Identifier
// whose Name is the full scoped lexeme.
func (p *Parser) postfix() (ast.Expr, error) {
	expr, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek(true).Kind {
		case token.DOT:
			p.advance()
			nameTok, err := p.expect(token.ID)
			if err != nil {
				return nil, err
			}
			expr = &ast.GetAttr{
				ExprBase: ast.ExprBase{Base: ast.Base{Span: span.Span{Start: expr.GetSpan().Start, End: nameTok.Span.End}}},
				Base_:    expr, Name: nameTok.Value.(string),
			}
		case token.LBRACKET:
			p.advance()
			index, err := p.expression()
			if err != nil {
				return nil, err
			}
			end, err := p.expect(token.RBRACKET)
			if err != nil {
				return nil, err
			}
			expr = &ast.GetItem{
				ExprBase: ast.ExprBase{Base: ast.Base{Span: span.Span{Start: expr.GetSpan().Start, End: end.Span.End}}},
				Base_:    expr, Index: index,
			}
		case token.LPAREN:
			params, err := p.callArgs()
			if err != nil {
				return nil, err
			}
			expr = &ast.FuncCall{
				ExprBase: ast.ExprBase{Base: ast.Base{Span: span.Span{Start: expr.GetSpan().Start, End: params.Span.End}}},
				Callee:   expr, Params: params,
			}
		default:
			return expr, nil
		}
	}
}

// callArgs reuses the param-seq grammar for call-site arguments (spec.md
// §4.4: "Function call arguments reuse param-seq syntax").
func (p *Parser) callArgs() (*ast.ParamSeq, error) {
	return p.paramSeq()
}

// primary parses literals, identifiers, and parenthesized expressions
// (spec.md §4.4).
func (p *Parser) primary() (ast.Expr, error) {
	tok := p.peek(true)
	switch tok.Kind {
	case token.INT_LIT:
		p.advance()
		return &ast.NumberLiteral{
			ExprBase: ast.ExprBase{Base: ast.Base{Span: tok.Span}},
			Value:    numericValue(tok),
			Kind:     ast.NumericInt,
		}, nil
	case token.FLOAT_LIT:
		p.advance()
		return &ast.NumberLiteral{
			ExprBase: ast.ExprBase{Base: ast.Base{Span: tok.Span}},
			Value:    numericValue(tok),
			Kind:     ast.NumericFloat,
		}, nil
	case token.STRING_LIT:
		p.advance()
		return &ast.StringLiteral{
			ExprBase: ast.ExprBase{Base: ast.Base{Span: tok.Span}},
			Value:    stringValue(tok),
		}, nil
	case token.TRUE:
		p.advance()
		return &ast.BoolLiteral{ExprBase: ast.ExprBase{Base: ast.Base{Span: tok.Span}}, Value: true}, nil
	case token.FALSE:
		p.advance()
		return &ast.BoolLiteral{ExprBase: ast.ExprBase{Base: ast.Base{Span: tok.Span}}, Value: false}, nil
	case token.ID, token.SCOPEDID:
		p.advance()
		return &ast.Identifier{ExprBase: ast.ExprBase{Base: ast.Base{Span: tok.Span}}, Name: identValue(tok)}, nil
	case token.LPAREN:
		p.advance()
		inner, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return inner, nil
	default:
		return nil, p.errf(codeUnexpectedToken, tok.Span, "Expecting an expression but got %s(%q)", tok.Kind, tok.Lexeme)
	}
}

func identValue(t token.Token) string {
	if s, ok := t.Value.(string); ok {
		return s
	}
	return t.Lexeme
}

func numericValue(t token.Token) interface{} {
	switch v := t.Value.(type) {
	case int64, float64:
		return v
	case string:
		if t.Kind == token.FLOAT_LIT {
			f, _ := strconv.ParseFloat(v, 64)
			return f
		}
		i, _ := strconv.ParseInt(v, 0, 64)
		return i
	default:
		return v
	}
}

