// Package ast defines the abstract syntax tree produced by the KAML
// parser (spec §3). Node variants are a closed tagged family: one Go
// struct per node kind, each embedding a Base that carries the node's
// source Span. There is no reflection-driven node construction (contrast
// the original Python `ASTNode.__slots__` machinery, see DESIGN NOTES §9
// of spec.md) — fields are ordinary exported struct fields.
package ast

import (
	"kaml/internal/span"
	"kaml/internal/token"
)

// Node is implemented by every AST node.
type Node interface {
	nodeNode()
	GetSpan() span.Span
}

// Expr is implemented by expression nodes.
type Expr interface {
	Node
	exprNode()
}

// Stmt is implemented by statement nodes.
type Stmt interface {
	Node
	stmtNode()
}

// Base carries the common Span field embedded by every node.
type Base struct {
	Span span.Span
}

func (b Base) nodeNode()          {}
func (b Base) GetSpan() span.Span { return b.Span }

// ExprBase is embedded by expression nodes.
type ExprBase struct{ Base }

func (ExprBase) exprNode() {}

// StmtBase is embedded by statement nodes.
type StmtBase struct{ Base }

func (StmtBase) stmtNode() {}

// ============================================================
// Root / empty
// ============================================================

// EmptyNode is an empty root node. Parser.Parse does not produce it: empty
// input parses to a TranslationUnit with no declarations.
type EmptyNode struct{ Base }

// TranslationUnit is the AST root for a source file.
type TranslationUnit struct {
	Base
	Declarations []Node
}

// Suite is a brace-delimited block; it induces exactly one scope frame
// (spec §3 invariant).
type Suite struct {
	Base
	Items []Node
}

func (Suite) stmtNode() {}

// ============================================================
// Empty-expression sentinel
// ============================================================

// EmptyExpr is the sentinel used for an absent initializer/value,
// distinct from any real expression node (spec §4.5: "a declaration x
// differs from x = null in the tree" — x's initializer is EmptyExpr, not
// some literal null node and not a nil interface value).
type EmptyExpr struct{ ExprBase }

// ============================================================
// use statement
// ============================================================

// UseStmt is a left-associative chain of dotted import segments:
// `use a:b:c` becomes UseStmt(UseStmt("a","b"),"c"). The innermost node
// has a nil Root, its Name holds the first segment and its Child the
// second segment ("" for a single-segment `use a`); every later segment
// wraps the chain so far in Root and carries only Child (an identifier or
// "*"), leaving Name empty. Unit
// is the TranslationUnit the importer resolved for the full dotted path
// (spec §4.4: "its returned AST is spliced in"); it is set only on the
// chain's outermost node and nil when no importer was configured.
type UseStmt struct {
	Base
	Root  *UseStmt
	Name  string
	Child string // "", an identifier, or "*"
	Unit  *TranslationUnit
}

func (UseStmt) stmtNode() {}

// ============================================================
// Function declaration
// ============================================================

// FuncDef binds a FuncDecl to its body Suite.
type FuncDef struct {
	Base
	Decl *FuncDecl
	Body *Suite
}

func (FuncDef) stmtNode() {}

// FuncDecl names a function and its parameter sequence. CompileTime is
// set when the function name token was a STRING_LIT rather than an ID
// (spec §4.4 func-def production).
type FuncDecl struct {
	Base
	Name        string
	Params      *ParamSeq
	CompileTime bool
}

// ParamSeq aggregates the four parameter-decoration kinds a KAML function
// declaration (or call) may carry. At most one HashArg is allowed (spec §3
// invariant); KWArgs preserves declaration order via KWArgOrder.
type ParamSeq struct {
	Base
	Positional []*VariableDecl
	HashArg    *HashDecl
	DotArgs    []*DotDecl
	KWArgs     map[string]Expr
	KWArgOrder []string
}

// VariableDecl is a positional parameter: a name with an optional
// initializer (EmptyExpr when absent).
type VariableDecl struct {
	Base
	Name    string
	Initial Expr
}

// KWArgDecl carries `[key=value, ...]` parameter decorations.
type KWArgDecl struct {
	Base
	KWArgs     map[string]Expr
	KWArgOrder []string
}

// HashDecl is a `#id` parameter decoration.
type HashDecl struct {
	Base
	Name string
}

// DotDecl is a `.class` parameter decoration.
type DotDecl struct {
	Base
	Name string
}

// ============================================================
// Statements
// ============================================================

// IfStmt's Else is nil, another *IfStmt (elif), or a *Suite (spec §3
// invariant). IfStmt satisfies both Stmt and Expr: the ternary `a ? b : c`
// produces an IfStmt used directly in expression position (spec §4.4),
// while an `-if` statement uses the same type in statement position.
type IfStmt struct {
	Base
	Cond Expr
	Then *Suite
	Else Node
}

func (IfStmt) stmtNode() {}
func (IfStmt) exprNode() {}

// WhileStmt is a conditional loop.
type WhileStmt struct {
	Base
	Cond Expr
	Body *Suite
}

func (WhileStmt) stmtNode() {}

// ForStmt is a C-style three-clause loop; Init/Cond/Step are nil when
// the corresponding clause was omitted.
type ForStmt struct {
	Base
	Init Node
	Cond Expr
	Step Node
	Body *Suite
}

func (ForStmt) stmtNode() {}

// SetStmt is `-set name = value`.
type SetStmt struct {
	Base
	Name  string
	Value Expr
}

func (SetStmt) stmtNode() {}

// ReturnStmt's Expr is nil for a bare `-return`.
type ReturnStmt struct {
	Base
	Expr Expr
}

func (ReturnStmt) stmtNode() {}

// BreakStmt is `-break`.
type BreakStmt struct{ Base }

func (BreakStmt) stmtNode() {}

// ContinueStmt is `-continue`.
type ContinueStmt struct{ Base }

func (ContinueStmt) stmtNode() {}

// ============================================================
// Literals
// ============================================================

// NumericKind tags whether a NumberLiteral came from an INT_LIT or
// FLOAT_LIT token (spec §4.5: "the parser attaches a numeric_kind tag").
type NumericKind int

const (
	NumericInt NumericKind = iota
	NumericFloat
)

func (k NumericKind) String() string {
	if k == NumericFloat {
		return "float"
	}
	return "int"
}

// NumberLiteral carries a parsed numeric value (int64 or float64 in
// Value, selected by Kind).
type NumberLiteral struct {
	ExprBase
	Value interface{}
	Kind  NumericKind
}

// StringLiteral is already-coalesced string content (spec §4.5: the
// parser always consumes a single STRING_LIT per literal; the shaper did
// the concatenation).
type StringLiteral struct {
	ExprBase
	Value string
}

// BoolLiteral is `true` or `false`.
type BoolLiteral struct {
	ExprBase
	Value bool
}

// ============================================================
// Expressions
// ============================================================

// Identifier is a bare name reference.
type Identifier struct {
	ExprBase
	Name string
}

// UnaryOp is a prefix operator: `+ - ! ~`.
type UnaryOp struct {
	ExprBase
	Op   token.Kind
	Expr Expr
}

// BinaryOp is an arithmetic/bitwise/relational/equality infix operator.
type BinaryOp struct {
	ExprBase
	LHS Expr
	Op  token.Kind
	RHS Expr
}

// TestOp is `and`/`or` — kept distinct from BinaryOp so a later evaluator
// can short-circuit (spec §4.4).
type TestOp struct {
	ExprBase
	LHS Expr
	Op  token.Kind
	RHS Expr
}

// Assignment is `target op value` for op in {=, +=, -=, *=, /=, %=,
// <<=, >>=, &=, ^=, |=}. Op carries the operator's lexeme, not a
// desugared binary op (spec §4.4: "Assignments produce Assignment nodes
// whose op field carries the operator lexeme").
type Assignment struct {
	ExprBase
	Target Expr
	Op     string
	Value  Expr
}

// GetItem is `base[index]`.
type GetItem struct {
	ExprBase
	Base_ Expr
	Index Expr
}

// GetAttr is `base.name`.
type GetAttr struct {
	ExprBase
	Base_ Expr
	Name  string
}

// FuncCall is `callee(params)`, where params reuses ParamSeq call-site
// syntax (hash/dot/kwarg/positional, spec §4.4).
type FuncCall struct {
	ExprBase
	Callee Expr
	Params *ParamSeq
}
