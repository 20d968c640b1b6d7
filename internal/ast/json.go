package ast

import (
	"kaml/internal/span"
)

// NodeToMap converts an AST node into a map suitable for JSON
// serialization, producing a tagged-union structure: every node carries a
// "kind" field. Used for debug rendering and by `kaml parse --json`.
func NodeToMap(node Node) map[string]interface{} {
	if node == nil {
		return nil
	}

	switch n := node.(type) {
	case *EmptyNode:
		return m("EmptyNode", n.Span)
	case *TranslationUnit:
		return m("TranslationUnit", n.Span, "declarations", nodeSlice(n.Declarations))
	case *Suite:
		return m("Suite", n.Span, "items", nodeSlice(n.Items))
	case *EmptyExpr:
		return m("EmptyExpr", n.Span)
	case *UseStmt:
		result := m("UseStmt", n.Span, "name", n.Name, "child", n.Child)
		if n.Root != nil {
			result["root"] = NodeToMap(n.Root)
		}
		if n.Unit != nil {
			result["unit"] = NodeToMap(n.Unit)
		}
		return result
	case *FuncDef:
		return m("FuncDef", n.Span, "decl", NodeToMap(n.Decl), "body", NodeToMap(n.Body))
	case *FuncDecl:
		return m("FuncDecl", n.Span,
			"name", n.Name,
			"compileTime", n.CompileTime,
			"params", NodeToMap(n.Params))
	case *ParamSeq:
		result := m("ParamSeq", n.Span,
			"positional", nodeSlice(declSlice(n.Positional)),
			"dotArgs", nodeSlice(dotSlice(n.DotArgs)))
		if n.HashArg != nil {
			result["hashArg"] = NodeToMap(n.HashArg)
		}
		if len(n.KWArgOrder) > 0 {
			kw := make(map[string]interface{}, len(n.KWArgOrder))
			for _, k := range n.KWArgOrder {
				kw[k] = NodeToMap(n.KWArgs[k])
			}
			result["kwargs"] = kw
			result["kwargOrder"] = append([]string(nil), n.KWArgOrder...)
		}
		return result
	case *VariableDecl:
		return m("VariableDecl", n.Span, "name", n.Name, "initial", NodeToMap(n.Initial))
	case *KWArgDecl:
		kw := make(map[string]interface{}, len(n.KWArgOrder))
		for _, k := range n.KWArgOrder {
			kw[k] = NodeToMap(n.KWArgs[k])
		}
		return m("KWArgDecl", n.Span, "kwargs", kw)
	case *HashDecl:
		return m("HashDecl", n.Span, "name", n.Name)
	case *DotDecl:
		return m("DotDecl", n.Span, "name", n.Name)
	case *IfStmt:
		result := m("IfStmt", n.Span, "cond", NodeToMap(n.Cond), "then", NodeToMap(n.Then))
		if n.Else != nil {
			result["else"] = NodeToMap(n.Else)
		}
		return result
	case *WhileStmt:
		return m("WhileStmt", n.Span, "cond", NodeToMap(n.Cond), "body", NodeToMap(n.Body))
	case *ForStmt:
		return m("ForStmt", n.Span,
			"init", NodeToMap(n.Init),
			"cond", NodeToMap(n.Cond),
			"step", NodeToMap(n.Step),
			"body", NodeToMap(n.Body))
	case *SetStmt:
		return m("SetStmt", n.Span, "name", n.Name, "value", NodeToMap(n.Value))
	case *ReturnStmt:
		result := m("ReturnStmt", n.Span)
		if n.Expr != nil {
			result["expr"] = NodeToMap(n.Expr)
		}
		return result
	case *BreakStmt:
		return m("BreakStmt", n.Span)
	case *ContinueStmt:
		return m("ContinueStmt", n.Span)
	case *NumberLiteral:
		return m("NumberLiteral", n.Span, "value", n.Value, "numericKind", n.Kind.String())
	case *StringLiteral:
		return m("StringLiteral", n.Span, "value", n.Value)
	case *BoolLiteral:
		return m("BoolLiteral", n.Span, "value", n.Value)
	case *Identifier:
		return m("Identifier", n.Span, "name", n.Name)
	case *UnaryOp:
		return m("UnaryOp", n.Span, "op", n.Op.String(), "expr", NodeToMap(n.Expr))
	case *BinaryOp:
		return m("BinaryOp", n.Span, "lhs", NodeToMap(n.LHS), "op", n.Op.String(), "rhs", NodeToMap(n.RHS))
	case *TestOp:
		return m("TestOp", n.Span, "lhs", NodeToMap(n.LHS), "op", n.Op.String(), "rhs", NodeToMap(n.RHS))
	case *Assignment:
		return m("Assignment", n.Span, "target", NodeToMap(n.Target), "op", n.Op, "value", NodeToMap(n.Value))
	case *GetItem:
		return m("GetItem", n.Span, "base", NodeToMap(n.Base_), "index", NodeToMap(n.Index))
	case *GetAttr:
		return m("GetAttr", n.Span, "base", NodeToMap(n.Base_), "name", n.Name)
	case *FuncCall:
		return m("FuncCall", n.Span, "callee", NodeToMap(n.Callee), "params", NodeToMap(n.Params))
	default:
		return map[string]interface{}{"kind": "Unknown"}
	}
}

// ---- helpers ----

func m(kind string, s span.Span, kvs ...interface{}) map[string]interface{} {
	result := map[string]interface{}{
		"kind": kind,
		"span": spanToMap(s),
	}
	for i := 0; i+1 < len(kvs); i += 2 {
		key := kvs[i].(string)
		result[key] = kvs[i+1]
	}
	return result
}

func spanToMap(s span.Span) map[string]interface{} {
	return map[string]interface{}{
		"start": map[string]interface{}{"offset": s.Start.Offset, "line": s.Start.Line, "column": s.Start.Column},
		"end":   map[string]interface{}{"offset": s.End.Offset, "line": s.End.Line, "column": s.End.Column},
	}
}

func nodeSlice(nodes []Node) []interface{} {
	result := make([]interface{}, len(nodes))
	for i, n := range nodes {
		result[i] = NodeToMap(n)
	}
	return result
}

func declSlice(decls []*VariableDecl) []Node {
	result := make([]Node, len(decls))
	for i, d := range decls {
		result[i] = d
	}
	return result
}

func dotSlice(decls []*DotDecl) []Node {
	result := make([]Node, len(decls))
	for i, d := range decls {
		result[i] = d
	}
	return result
}
