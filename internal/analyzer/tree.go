package analyzer

// Tree is the introspection surface a templating backend exposes for static
// analysis. Implementations must not render or perform I/O.
type Tree interface {
	// FreeVariables returns every variable referenced but not bound by an
	// enclosing scope in the template.
	FreeVariables() []string
	// FilterApplications returns every filter (or filter-like function)
	// application in the template.
	FilterApplications() []Application
	// DefinedTests returns the variables used as the subject of an
	// existence test.
	DefinedTests() []string
	// Assignments returns the names bound by in-template assignments, spelled
	// as FreeVariables spells them. A backend whose variables live apart from
	// the data (Go's "$x") keeps the sigil so they never match a free variable.
	Assignments() []string
	// Calls returns every function call in the template.
	Calls() []Call
}

// Application is a filter applied to a subject expression.
type Application struct {
	Filter string
	// Subject is the variable name when the filtered expression is a plain
	// variable reference, empty otherwise.
	Subject string
}

// Call is a function invocation with its positional arguments.
type Call struct {
	Function string
	Args     []Expr
}

// ExprKind classifies call arguments.
type ExprKind int

const (
	// ExprOther is any argument shape the analyzer does not interpret.
	ExprOther ExprKind = iota
	// ExprLiteral is a string literal; Value holds the string.
	ExprLiteral
	// ExprVariable is a plain variable reference; Value holds the name.
	ExprVariable
	// ExprFormat is a literal format string applied to arguments;
	// Value holds the format and Args its operands.
	ExprFormat
)

// Expr is a simplified view of an argument expression.
type Expr struct {
	Kind  ExprKind
	Value string
	Args  []Expr
	// Source is the original text, used in error messages.
	Source string
}
