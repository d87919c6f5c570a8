package templates

import (
	"text/template/parse"

	"manifestctl/internal/analyzer"
)

const (
	printfFunction = "printf"
	hasKeyFunction = "hasKey"
)

// Tree is the analyzer view of a parsed Go template, including every
// template it defines.
//
// Only references evaluated against the root data count as free variables:
// ".name" outside range/with bodies and "$.name" anywhere. Inside a range or
// with body dot is rebound, so ".name" there refers to the iterated element.
type Tree struct {
	free        []string
	filters     []analyzer.Application
	tests       []string
	assignments []string
	calls       []analyzer.Call
}

var _ analyzer.Tree = (*Tree)(nil)

func (t *Tree) FreeVariables() []string                     { return t.free }
func (t *Tree) FilterApplications() []analyzer.Application { return t.filters }
func (t *Tree) DefinedTests() []string                      { return t.tests }
func (t *Tree) Assignments() []string                       { return t.assignments }
func (t *Tree) Calls() []analyzer.Call                      { return t.calls }

// newTree walks the given parse trees.
func newTree(trees ...*parse.Tree) *Tree {
	t := &Tree{}
	for _, tree := range trees {
		if tree == nil || tree.Root == nil {
			continue
		}
		t.walk(tree.Root, true)
	}
	return t
}

// walk visits node. rooted reports whether dot is the root data.
func (t *Tree) walk(node parse.Node, rooted bool) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, child := range n.Nodes {
			t.walk(child, rooted)
		}
	case *parse.ActionNode:
		t.pipe(n.Pipe, rooted)
	case *parse.IfNode:
		t.branch(&n.BranchNode, rooted, rooted)
	case *parse.WithNode:
		t.branch(&n.BranchNode, rooted, false)
	case *parse.RangeNode:
		t.branch(&n.BranchNode, rooted, false)
	case *parse.TemplateNode:
		t.pipe(n.Pipe, rooted)
	}
}

// branch visits an if/with/range node. The pipeline and else branch see the
// enclosing dot, the body sees bodyRooted.
func (t *Tree) branch(n *parse.BranchNode, rooted, bodyRooted bool) {
	t.pipe(n.Pipe, rooted)
	t.walk(n.List, bodyRooted)
	if n.ElseList != nil {
		t.walk(n.ElseList, rooted)
	}
}

func (t *Tree) pipe(p *parse.PipeNode, rooted bool) {
	if p == nil {
		return
	}

	// Variables live apart from the data fields, so "$x" never binds ".x".
	for _, decl := range p.Decl {
		if len(decl.Ident) > 0 {
			t.assignments = append(t.assignments, decl.Ident[0])
		}
	}

	for i, cmd := range p.Cmds {
		for _, arg := range cmd.Args {
			t.operand(arg, rooted)
		}

		name, ok := function(cmd)
		if !ok {
			continue
		}

		piped := p.Cmds[:i]
		t.calls = append(t.calls, analyzer.Call{Function: name, Args: callArgs(cmd, piped, rooted)})

		// The filtered value is the piped one, or the last explicit argument.
		var subject parse.Node
		switch {
		case len(piped) > 0:
			if prev := piped[len(piped)-1]; len(prev.Args) == 1 {
				subject = prev.Args[0]
			}
		case len(cmd.Args) > 1:
			subject = cmd.Args[len(cmd.Args)-1]
		}
		if subject != nil {
			subjectName, _ := rootVariable(subject, rooted)
			t.filters = append(t.filters, analyzer.Application{Filter: name, Subject: subjectName})
		}

		if name == hasKeyFunction && len(piped) == 0 && len(cmd.Args) == 3 {
			if isRootData(cmd.Args[1], rooted) {
				if key, ok := cmd.Args[2].(*parse.StringNode); ok {
					t.tests = append(t.tests, key.Text)
				}
			}
		}
	}
}

// operand records the free variables of a command argument.
func (t *Tree) operand(node parse.Node, rooted bool) {
	switch n := node.(type) {
	case *parse.FieldNode:
		if rooted && len(n.Ident) > 0 {
			t.free = append(t.free, n.Ident[0])
		}
	case *parse.VariableNode:
		if len(n.Ident) > 1 && n.Ident[0] == "$" {
			t.free = append(t.free, n.Ident[1])
		}
	case *parse.ChainNode:
		t.operand(n.Node, rooted)
	case *parse.PipeNode:
		t.pipe(n, rooted)
	}
}

// function returns the name of the function a command invokes.
func function(cmd *parse.CommandNode) (string, bool) {
	if len(cmd.Args) == 0 {
		return "", false
	}
	ident, ok := cmd.Args[0].(*parse.IdentifierNode)
	if !ok {
		return "", false
	}
	return ident.Ident, true
}

// callArgs returns the positional arguments of a function command. The
// result of the piped commands is passed last, as text/template does.
func callArgs(cmd *parse.CommandNode, piped []*parse.CommandNode, rooted bool) []analyzer.Expr {
	args := make([]analyzer.Expr, 0, len(cmd.Args))
	for _, arg := range cmd.Args[1:] {
		args = append(args, expr(arg, rooted))
	}
	if len(piped) > 0 {
		args = append(args, pipelineExpr(piped, rooted))
	}
	return args
}

func expr(node parse.Node, rooted bool) analyzer.Expr {
	switch n := node.(type) {
	case *parse.StringNode:
		return analyzer.Expr{Kind: analyzer.ExprLiteral, Value: n.Text, Source: n.String()}
	case *parse.FieldNode, *parse.VariableNode:
		if name, ok := rootVariable(n, rooted); ok {
			return analyzer.Expr{Kind: analyzer.ExprVariable, Value: name, Source: n.String()}
		}
	case *parse.PipeNode:
		if len(n.Decl) == 0 && len(n.Cmds) > 0 {
			return pipelineExpr(n.Cmds, rooted)
		}
	}
	return analyzer.Expr{Kind: analyzer.ExprOther, Source: node.String()}
}

// pipelineExpr simplifies the value of a pipeline, recognising printf with a
// literal format.
func pipelineExpr(cmds []*parse.CommandNode, rooted bool) analyzer.Expr {
	last := cmds[len(cmds)-1]
	piped := cmds[:len(cmds)-1]

	name, ok := function(last)
	if !ok {
		if len(piped) == 0 && len(last.Args) == 1 {
			return expr(last.Args[0], rooted)
		}
		return analyzer.Expr{Kind: analyzer.ExprOther, Source: last.String()}
	}

	args := callArgs(last, piped, rooted)
	if name == printfFunction && len(args) > 0 && args[0].Kind == analyzer.ExprLiteral {
		return analyzer.Expr{Kind: analyzer.ExprFormat, Value: args[0].Value, Args: args[1:], Source: last.String()}
	}
	return analyzer.Expr{Kind: analyzer.ExprOther, Source: last.String()}
}

// rootVariable returns the value name of a plain root reference such as
// ".name" (when dot is the root data) or "$.name".
func rootVariable(node parse.Node, rooted bool) (string, bool) {
	switch n := node.(type) {
	case *parse.FieldNode:
		if rooted && len(n.Ident) == 1 {
			return n.Ident[0], true
		}
	case *parse.VariableNode:
		if len(n.Ident) == 2 && n.Ident[0] == "$" {
			return n.Ident[1], true
		}
	}
	return "", false
}

// isRootData reports whether node evaluates to the root data: "$", or "."
// when dot has not been rebound.
func isRootData(node parse.Node, rooted bool) bool {
	switch n := node.(type) {
	case *parse.DotNode:
		return rooted
	case *parse.VariableNode:
		return len(n.Ident) == 1 && n.Ident[0] == "$"
	}
	return false
}
