package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kaml/internal/ast"
	"kaml/internal/importer"
	"kaml/internal/lexer"
	"kaml/internal/scope"
	"kaml/internal/shaper"
)

func parseOK(t *testing.T, source string) *ast.TranslationUnit {
	t.Helper()
	p := New(shaper.New(lexer.New(source, "t.kaml")), nil, nil, nil, "t.kaml")
	tu, err := p.Parse()
	require.NoError(t, err)
	require.NotNil(t, tu)
	return tu
}

func parseErr(t *testing.T, source string) error {
	t.Helper()
	p := New(shaper.New(lexer.New(source, "t.kaml")), nil, nil, nil, "t.kaml")
	tu, err := p.Parse()
	require.Error(t, err)
	require.Nil(t, tu)
	return err
}

func exprOf(t *testing.T, tu *ast.TranslationUnit) ast.Expr {
	t.Helper()
	require.Len(t, tu.Declarations, 1)
	expr, ok := tu.Declarations[0].(ast.Expr)
	require.Truef(t, ok, "expected an expression, got %T", tu.Declarations[0])
	return expr
}

// ---------------------------------------------------------------------
// Precedence table (spec.md §4.4) — associativity per level.
// ---------------------------------------------------------------------

func TestPrecedenceLeftAssociativeLevels(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"or", "a or b or c"},
		{"and", "a and b and c"},
		{"bitOr", "a | b | c"},
		{"bitXor", "a ^ b ^ c"},
		{"bitAnd", "a & b & c"},
		{"equality", "a == b == c"},
		{"relational", "a < b < c"},
		{"shift", "a << b << c"},
		{"additive", "a + b + c"},
		{"multiplicative", "a * b * c"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tu := parseOK(t, tc.src+";")
			expr := exprOf(t, tu)
			// left-associative: (a op b) op c, so RHS is a leaf and LHS is
			// itself a binary/test node.
			switch n := expr.(type) {
			case *ast.TestOp:
				_, rhsIsOp := n.RHS.(*ast.TestOp)
				require.False(t, rhsIsOp, "expected right-hand leaf, chain should nest on the left")
				_, lhsIsOp := n.LHS.(*ast.TestOp)
				require.True(t, lhsIsOp, "expected left-hand nesting")
			case *ast.BinaryOp:
				_, rhsIsOp := n.RHS.(*ast.BinaryOp)
				require.False(t, rhsIsOp, "expected right-hand leaf, chain should nest on the left")
				_, lhsIsOp := n.LHS.(*ast.BinaryOp)
				require.True(t, lhsIsOp, "expected left-hand nesting")
			default:
				t.Fatalf("unexpected node type %T", expr)
			}
		})
	}
}

func TestPrecedenceUnaryRightAssociative(t *testing.T) {
	tu := parseOK(t, "- - x;")
	expr := exprOf(t, tu)
	outer, ok := expr.(*ast.UnaryOp)
	require.True(t, ok)
	require.Equal(t, "-", outer.Op.String())
	inner, ok := outer.Expr.(*ast.UnaryOp)
	require.True(t, ok)
	require.Equal(t, "-", inner.Op.String())
	_, ok = inner.Expr.(*ast.Identifier)
	require.True(t, ok)
}

func TestPrecedenceClimbsAdditiveOverMultiplicative(t *testing.T) {
	tu := parseOK(t, "1 + 2 * 3;")
	expr := exprOf(t, tu)
	add, ok := expr.(*ast.BinaryOp)
	require.True(t, ok)
	require.Equal(t, "+", add.Op.String())
	mul, ok := add.RHS.(*ast.BinaryOp)
	require.True(t, ok)
	require.Equal(t, "*", mul.Op.String())
}

func TestPrecedencePostfixBindsTighterThanUnary(t *testing.T) {
	// "- a" rather than "-a": a hyphen glued to a letter lexes as part of
	// a hyphenated identifier.
	tu := parseOK(t, "- a.b;")
	expr := exprOf(t, tu)
	unary, ok := expr.(*ast.UnaryOp)
	require.True(t, ok)
	attr, ok := unary.Expr.(*ast.GetAttr)
	require.True(t, ok)
	require.Equal(t, "b", attr.Name)
}

func TestPrecedenceTernaryAndAssignmentShareLevel2(t *testing.T) {
	tuTernary := parseOK(t, "a ? b : c;")
	ifStmt, ok := exprOf(t, tuTernary).(*ast.IfStmt)
	require.True(t, ok, "ternary must produce an IfStmt usable as an Expr")
	require.Len(t, ifStmt.Then.Items, 1)
	require.Len(t, ifStmt.Else.(*ast.Suite).Items, 1)

	tuAssign := parseOK(t, "x = y;")
	assign, ok := exprOf(t, tuAssign).(*ast.Assignment)
	require.True(t, ok)
	require.Equal(t, "=", assign.Op)
}

func TestPrecedenceAssignmentRightAssociative(t *testing.T) {
	tu := parseOK(t, "a = b = c;")
	outer, ok := exprOf(t, tu).(*ast.Assignment)
	require.True(t, ok)
	require.Equal(t, "=", outer.Op)
	inner, ok := outer.Value.(*ast.Assignment)
	require.True(t, ok)
	require.Equal(t, "=", inner.Op)
}

func TestPrecedenceCompoundAssignmentKeepsLexeme(t *testing.T) {
	tu := parseOK(t, "x += 1;")
	assign, ok := exprOf(t, tu).(*ast.Assignment)
	require.True(t, ok)
	require.Equal(t, "+=", assign.Op)
	_, isBinary := assign.Value.(*ast.BinaryOp)
	require.False(t, isBinary, "Assignment.Op must carry the raw lexeme, not a desugared BinaryOp")
}

// ---------------------------------------------------------------------
// ParamSeq grammar (spec.md §8 S4/S8).
// ---------------------------------------------------------------------

func TestParamSeqPositionalWithDefault(t *testing.T) {
	// S4: -def fn(arg1=0, arg2){}
	tu := parseOK(t, `-def fn(arg1=0, arg2){}`)
	require.Len(t, tu.Declarations, 1)
	fn, ok := tu.Declarations[0].(*ast.FuncDef)
	require.True(t, ok)
	require.Equal(t, "fn", fn.Decl.Name)
	require.False(t, fn.Decl.CompileTime)
	require.Len(t, fn.Decl.Params.Positional, 2)

	arg1 := fn.Decl.Params.Positional[0]
	require.Equal(t, "arg1", arg1.Name)
	lit, ok := arg1.Initial.(*ast.NumberLiteral)
	require.True(t, ok)
	require.Equal(t, ast.NumericInt, lit.Kind)

	arg2 := fn.Decl.Params.Positional[1]
	require.Equal(t, "arg2", arg2.Name)
	_, isEmpty := arg2.Initial.(*ast.EmptyExpr)
	require.True(t, isEmpty, "omitted default must be EmptyExpr, not nil")
}

func TestParamSeqFullDecoration(t *testing.T) {
	// S8: -def fn#id.class[key=value](x){}
	tu := parseOK(t, `-def fn#id.class[key=value](x){}`)
	fn := tu.Declarations[0].(*ast.FuncDef)
	params := fn.Decl.Params

	require.NotNil(t, params.HashArg)
	require.Equal(t, "id", params.HashArg.Name)

	require.Len(t, params.DotArgs, 1)
	require.Equal(t, "class", params.DotArgs[0].Name)

	require.Contains(t, params.KWArgs, "key")
	require.Equal(t, []string{"key"}, params.KWArgOrder)
	ident, ok := params.KWArgs["key"].(*ast.Identifier)
	require.True(t, ok)
	require.Equal(t, "value", ident.Name)

	require.Len(t, params.Positional, 1)
	require.Equal(t, "x", params.Positional[0].Name)
}

func TestParamSeqDuplicateHashIsError(t *testing.T) {
	err := parseErr(t, `-def fn#a#b(){}`)
	require.Error(t, err)
}

func TestCallArgsReuseParamSeqGrammar(t *testing.T) {
	// spec.md §§158,184: positional → (ID ('=' expression)? (sep)?)*, and
	// call-site arguments reuse this grammar unchanged — entries start
	// with an ID, never a bare literal.
	tu := parseOK(t, `foo(a, b);`)
	call, ok := exprOf(t, tu).(*ast.FuncCall)
	require.True(t, ok)
	require.Len(t, call.Params.Positional, 2)
	require.Equal(t, "a", call.Params.Positional[0].Name)
	require.Equal(t, "b", call.Params.Positional[1].Name)
}

// ---------------------------------------------------------------------
// Compile-time function recognition (spec.md §4.4).
// ---------------------------------------------------------------------

type stubInvoker struct {
	node ast.Node
	err  error
}

func (s *stubInvoker) Invoke(fn *ast.FuncDef, sc *scope.Scope) (ast.Node, error) {
	return s.node, s.err
}

func TestCompileTimeFunctionSplicedWhenInvokerConfigured(t *testing.T) {
	spliced := &ast.VariableDecl{Name: "spliced", Initial: &ast.EmptyExpr{}}
	src := `-def "gen"(){} -def fn(gen){}`
	p := New(shaper.New(lexer.New(src, "t.kaml")), nil, nil, &stubInvoker{node: spliced}, "t.kaml")
	tu, err := p.Parse()
	require.NoError(t, err)

	fn := tu.Declarations[1].(*ast.FuncDef)
	require.Len(t, fn.Decl.Params.Positional, 1)
	require.Equal(t, "spliced", fn.Decl.Params.Positional[0].Name)
}

func TestCompileTimeFunctionWithoutInvokerIsSemanticError(t *testing.T) {
	err := parseErr(t, `-def "gen"(){} -def fn(gen){}`)
	perr, ok := err.(*Error)
	require.True(t, ok)
	require.Equal(t, codeCompileTimeUnavail, perr.Diagnostic.Code)
}

func TestNonCompileTimeFunctionInParamPositionIsError(t *testing.T) {
	err := parseErr(t, `-def helper(){} -def fn(helper){}`)
	perr, ok := err.(*Error)
	require.True(t, ok)
	require.Equal(t, codeCompileTimeNonFunc, perr.Diagnostic.Code)
}

// ---------------------------------------------------------------------
// use-stmt chain construction (spec.md §4.5, §8 S1/S2/S3).
// ---------------------------------------------------------------------

type stubImporter struct {
	seen []string
	err  error
}

func (s *stubImporter) Import(dotted string) (*ast.TranslationUnit, error) {
	s.seen = append(s.seen, dotted)
	if s.err != nil {
		return nil, s.err
	}
	// A distinguishable unit (carrying dotted as an Identifier) so tests
	// can confirm it is reachable from the UseStmt node it was spliced
	// into, not just that Import was called.
	return &ast.TranslationUnit{Declarations: []ast.Node{&ast.Identifier{Name: dotted}}}, nil
}

func TestUseStmtSingleSegment(t *testing.T) {
	// S1: use foo;
	imp := &stubImporter{}
	p := New(shaper.New(lexer.New(`-use foo;`, "t.kaml")), nil, imp, nil, "t.kaml")
	tu, err := p.Parse()
	require.NoError(t, err)

	use := tu.Declarations[0].(*ast.UseStmt)
	require.Equal(t, "foo", use.Name)
	require.Equal(t, "", use.Child)
	require.Nil(t, use.Root)
	require.Equal(t, []string{"foo"}, imp.seen)
}

func TestUseStmtSplicesImportedUnitIntoTree(t *testing.T) {
	// spec.md §4.4: the importer's returned AST is spliced in, not
	// discarded once Import has been called.
	imp := &stubImporter{}
	p := New(shaper.New(lexer.New(`-use foo;`, "t.kaml")), nil, imp, nil, "t.kaml")
	tu, err := p.Parse()
	require.NoError(t, err)

	use := tu.Declarations[0].(*ast.UseStmt)
	require.NotNil(t, use.Unit)
	spliced := use.Unit.Declarations[0].(*ast.Identifier)
	require.Equal(t, "foo", spliced.Name)
}

func TestUseStmtTwoSegmentsFoldIntoOneNode(t *testing.T) {
	// S2: use a:b;
	imp := &stubImporter{}
	p := New(shaper.New(lexer.New(`-use a:b;`, "t.kaml")), nil, imp, nil, "t.kaml")
	tu, err := p.Parse()
	require.NoError(t, err)

	use := tu.Declarations[0].(*ast.UseStmt)
	require.Equal(t, "a", use.Name)
	require.Equal(t, "b", use.Child)
	require.Nil(t, use.Root)
	require.Equal(t, []string{"a:b"}, imp.seen)
}

func TestUseStmtThreeSegmentsNestLeft(t *testing.T) {
	// use a:b:c becomes UseStmt(UseStmt("a","b"),"c") per spec.md §4.5.
	imp := &stubImporter{}
	p := New(shaper.New(lexer.New(`-use a:b:c;`, "t.kaml")), nil, imp, nil, "t.kaml")
	tu, err := p.Parse()
	require.NoError(t, err)

	outer := tu.Declarations[0].(*ast.UseStmt)
	require.Equal(t, "c", outer.Child)
	require.NotNil(t, outer.Root)
	require.Equal(t, "a", outer.Root.Name)
	require.Equal(t, "b", outer.Root.Child)
	require.Nil(t, outer.Root.Root)
	require.Equal(t, []string{"a:b:c"}, imp.seen)
}

func TestUseStmtTrailingStarStopsChain(t *testing.T) {
	// S3: use a:b:*;
	imp := &stubImporter{}
	p := New(shaper.New(lexer.New(`-use a:b:*;`, "t.kaml")), nil, imp, nil, "t.kaml")
	tu, err := p.Parse()
	require.NoError(t, err)

	outer := tu.Declarations[0].(*ast.UseStmt)
	require.Equal(t, "*", outer.Child)
	require.Equal(t, []string{"a:b:*"}, imp.seen)
}

func TestUseStmtImportFailurePropagates(t *testing.T) {
	imp := &stubImporter{err: importer.ErrNotFound}
	p := New(shaper.New(lexer.New(`-use missing;`, "t.kaml")), nil, imp, nil, "t.kaml")
	_, err := p.Parse()
	require.Error(t, err)
}

// ---------------------------------------------------------------------
// Statement termination (spec.md §4.4).
// ---------------------------------------------------------------------

func TestStatementTerminatedBySemicolon(t *testing.T) {
	tu := parseOK(t, "-return 1; -return 2;")
	require.Len(t, tu.Declarations, 2)
}

func TestStatementTerminatedByNewline(t *testing.T) {
	tu := parseOK(t, "x\ny\n")
	require.Len(t, tu.Declarations, 2)
}

func TestBareReturnFollowedByNewlineDoesNotSwallowNextStatement(t *testing.T) {
	tu := parseOK(t, "-def fn(){ -return\nx; }")
	fn := tu.Declarations[0].(*ast.FuncDef)
	require.Len(t, fn.Body.Items, 2)
	ret, ok := fn.Body.Items[0].(*ast.ReturnStmt)
	require.True(t, ok)
	require.Nil(t, ret.Expr, "bare return must not consume the following statement as its value")
	_, ok = fn.Body.Items[1].(*ast.Identifier)
	require.True(t, ok)
}

func TestReturnWithExpressionOnSameLine(t *testing.T) {
	tu := parseOK(t, "-def fn(){ -return 1 + 2; }")
	fn := tu.Declarations[0].(*ast.FuncDef)
	ret := fn.Body.Items[0].(*ast.ReturnStmt)
	require.NotNil(t, ret.Expr)
	_, ok := ret.Expr.(*ast.BinaryOp)
	require.True(t, ok)
}

func TestMissingTerminatorIsSyntaxError(t *testing.T) {
	err := parseErr(t, "x y")
	perr, ok := err.(*Error)
	require.True(t, ok)
	require.Equal(t, codeExpectedToken, perr.Diagnostic.Code)
}

// ---------------------------------------------------------------------
// Statements and control flow.
// ---------------------------------------------------------------------

func TestIfElifElseChain(t *testing.T) {
	src := `-if (x) { y; } -elif (z) { w; } -else { v; }`
	tu := parseOK(t, src)
	ifStmt := tu.Declarations[0].(*ast.IfStmt)
	elif, ok := ifStmt.Else.(*ast.IfStmt)
	require.True(t, ok)
	_, ok = elif.Else.(*ast.Suite)
	require.True(t, ok)
}

func TestWhileStmt(t *testing.T) {
	tu := parseOK(t, `-while (x) { y; }`)
	_, ok := tu.Declarations[0].(*ast.WhileStmt)
	require.True(t, ok)
}

func TestForStmtAllClausesOptional(t *testing.T) {
	tu := parseOK(t, `-for (;;) { x; }`)
	forStmt := tu.Declarations[0].(*ast.ForStmt)
	require.Nil(t, forStmt.Init)
	require.Nil(t, forStmt.Cond)
	require.Nil(t, forStmt.Step)
}

func TestForStmtAllClausesPresent(t *testing.T) {
	tu := parseOK(t, `-for (i = 0; i < 10; i = i + 1) { x; }`)
	forStmt := tu.Declarations[0].(*ast.ForStmt)
	require.NotNil(t, forStmt.Init)
	require.NotNil(t, forStmt.Cond)
	require.NotNil(t, forStmt.Step)
}

func TestSuiteInducesExactlyOneScopeFrame(t *testing.T) {
	sc := scope.New()
	depthBefore := sc.Depth()
	p := New(shaper.New(lexer.New(`{ x; }`, "t.kaml")), sc, nil, nil, "t.kaml")
	_, err := p.Parse()
	require.NoError(t, err)
	require.Equal(t, depthBefore, sc.Depth(), "scope must be balanced after parsing a suite")
}

func TestSetStmt(t *testing.T) {
	tu := parseOK(t, `-set x = 1;`)
	set, ok := tu.Declarations[0].(*ast.SetStmt)
	require.True(t, ok)
	require.Equal(t, "x", set.Name)
}

func TestBreakAndContinue(t *testing.T) {
	tu := parseOK(t, `-while (x) { -break; -continue; }`)
	loop := tu.Declarations[0].(*ast.WhileStmt)
	_, ok := loop.Body.Items[0].(*ast.BreakStmt)
	require.True(t, ok)
	_, ok = loop.Body.Items[1].(*ast.ContinueStmt)
	require.True(t, ok)
}

// ---------------------------------------------------------------------
// Parse-time error propagation (spec.md §7: abort-on-first-error, no
// partial AST).
// ---------------------------------------------------------------------

func TestParseAbortsOnFirstErrorNoPartialAST(t *testing.T) {
	p := New(shaper.New(lexer.New(`x; y z; w;`, "t.kaml")), nil, nil, nil, "t.kaml")
	tu, err := p.Parse()
	require.Error(t, err)
	require.Nil(t, tu)
}
