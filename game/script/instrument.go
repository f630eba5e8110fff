package script

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/file"
	"github.com/dop251/goja/parser"
)

const (
	// DefaultIterations is the loop budget used when no limit is configured
	DefaultIterations = 10000

	// DefaultLoopMessage is thrown when a guarded loop runs out of budget
	DefaultLoopMessage = "Possible infinite loop detected"

	counterPrefix = "_LP"
)

// Limit bounds every loop of an instrumented script. A positive Timeout
// switches the guard from counting iterations to measuring wall-clock time
// since the loop was entered.
type Limit struct {
	Iterations int           `json:"iterations,omitempty"`
	Timeout    time.Duration `json:"timeout,omitempty"`
}

// DefaultLimit is the iteration budget applied to learner code
var DefaultLimit = Limit{Iterations: DefaultIterations}

func (l Limit) normalized() Limit {
	if l.Timeout <= 0 && l.Iterations <= 0 {
		return DefaultLimit
	}
	return l
}

// SyntaxError reports source that could not be parsed
type SyntaxError struct {
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("SyntaxError: %s (line %d, column %d)", e.Message, e.Line, e.Column)
}

// Instrument rewrites source so that every while, for, do-while, for-in and
// for-of loop declares its own counter before the loop and checks it at the
// top of each iteration, throwing an Error carrying message once limit is
// exceeded. Everything else in the source is left byte for byte.
func Instrument(source string, limit Limit, message string) (string, error) {
	program, err := parser.ParseFile(nil, "", source, 0, parser.WithDisableSourceMaps)
	if err != nil {
		return "", toSyntaxError(err)
	}

	if message == "" {
		message = DefaultLoopMessage
	}

	in := &instrumenter{
		src:     source,
		base:    program.File.Base(),
		limit:   limit.normalized(),
		message: quoteJS(message),
	}
	for _, stmt := range program.Body {
		in.statement(stmt, -1, 0)
	}

	return in.apply(), nil
}

func toSyntaxError(err error) error {
	var list parser.ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		return &SyntaxError{Line: list[0].Position.Line, Column: list[0].Position.Column, Message: list[0].Message}
	}
	var single *parser.Error
	if errors.As(err, &single) {
		return &SyntaxError{Line: single.Position.Line, Column: single.Position.Column, Message: single.Message}
	}
	return &SyntaxError{Message: err.Error()}
}

func quoteJS(s string) string {
	// a JSON string is a valid JS string literal; encoding/json also escapes U+2028 and U+2029
	data, err := json.Marshal(s)
	if err != nil {
		return strconv.Quote(s)
	}
	return string(data)
}

// insertion is text spliced into the source at a byte offset
type insertion struct {
	at      int
	text    string
	depth   int
	closing bool
}

type instrumenter struct {
	src     string
	base    int
	limit   Limit
	message string
	next    int
	edits   []insertion
}

func (in *instrumenter) offset(idx file.Idx) int {
	return int(idx) - in.base
}

// counterName returns the next counter identifier that does not occur anywhere in the source
func (in *instrumenter) counterName() string {
	for {
		name := counterPrefix + strconv.Itoa(in.next)
		in.next++
		if !strings.Contains(in.src, name) {
			return name
		}
	}
}

func (in *instrumenter) insert(at, depth int, closing bool, text string) {
	in.edits = append(in.edits, insertion{at: at, text: text, depth: depth, closing: closing})
}

// skipTrailing moves past whitespace, comments and one semicolon that end a statement
func (in *instrumenter) skipTrailing(pos int) int {
	i := pos
	for i < len(in.src) {
		switch {
		case in.src[i] == ' ' || in.src[i] == '\t' || in.src[i] == '\r' || in.src[i] == '\n':
			i++
		case strings.HasPrefix(in.src[i:], "/*"):
			end := strings.Index(in.src[i+2:], "*/")
			if end < 0 {
				return pos
			}
			i += end + 4
		case strings.HasPrefix(in.src[i:], "//"):
			end := strings.IndexByte(in.src[i:], '\n')
			if end < 0 {
				return pos
			}
			i += end + 1
		case in.src[i] == ';':
			return i + 1
		default:
			return pos
		}
	}
	return pos
}

func (in *instrumenter) guards() (before, inside string) {
	name := in.counterName()
	if in.limit.Timeout > 0 {
		before = fmt.Sprintf("var %s = Date.now();", name)
		inside = fmt.Sprintf("if (Date.now() - %s > %d) { throw new Error(%s); }", name, in.limit.Timeout.Milliseconds(), in.message)
		return before, inside
	}
	before = fmt.Sprintf("var %s = 0;", name)
	inside = fmt.Sprintf("if (++%s > %d) { throw new Error(%s); }", name, in.limit.Iterations, in.message)
	return before, inside
}

// protect guards one loop. prefixAt is where the counter declaration goes
// (the first label when the loop is labelled, otherwise the loop itself).
// The declaration and the loop are wrapped in a block so the pair stays a
// single statement wherever the loop appears.
func (in *instrumenter) protect(loop ast.Statement, body ast.Statement, prefixAt int, depth int) {
	if loop.Idx0() <= 0 || body == nil || body.Idx0() <= 0 {
		return
	}

	start := in.offset(loop.Idx0())
	if prefixAt >= 0 {
		start = prefixAt
	}
	end := in.skipTrailing(in.offset(loop.Idx1()))

	before, inside := in.guards()
	in.insert(start, depth, false, "{ "+before+" ")

	if block, ok := body.(*ast.BlockStatement); ok {
		in.insert(in.offset(block.LeftBrace)+1, depth+1, false, " "+inside)
	} else {
		bodyStart := in.offset(body.Idx0())
		bodyEnd := in.skipTrailing(in.offset(body.Idx1()))
		if bodyEnd > end {
			end = bodyEnd
		}
		in.insert(bodyStart, depth+1, false, "{ "+inside+" ")
		in.insert(bodyEnd, depth+1, true, " }")
	}

	in.insert(end, depth, true, " }")
}

// apply splices every insertion into the source. At equal offsets closing
// text goes first (innermost first), then opening text (outermost first).
func (in *instrumenter) apply() string {
	if len(in.edits) == 0 {
		return in.src
	}

	sort.SliceStable(in.edits, func(i, j int) bool {
		a, b := in.edits[i], in.edits[j]
		if a.at != b.at {
			return a.at < b.at
		}
		if a.closing != b.closing {
			return a.closing
		}
		if a.closing {
			return a.depth > b.depth
		}
		return a.depth < b.depth
	})

	var sb strings.Builder
	sb.Grow(len(in.src) + len(in.edits)*48)
	last := 0
	for _, e := range in.edits {
		sb.WriteString(in.src[last:e.at])
		sb.WriteString(e.text)
		last = e.at
	}
	sb.WriteString(in.src[last:])
	return sb.String()
}

func (in *instrumenter) statements(list []ast.Statement, depth int) {
	for _, stmt := range list {
		in.statement(stmt, -1, depth)
	}
}

func (in *instrumenter) statement(stmt ast.Statement, prefixAt int, depth int) {
	switch s := stmt.(type) {
	case nil:
	case *ast.BlockStatement:
		if s != nil {
			in.statements(s.List, depth)
		}
	case *ast.ExpressionStatement:
		in.expression(s.Expression, depth)
	case *ast.IfStatement:
		in.expression(s.Test, depth)
		in.statement(s.Consequent, -1, depth)
		in.statement(s.Alternate, -1, depth)
	case *ast.LabelledStatement:
		if prefixAt < 0 && s.Label != nil && s.Label.Idx0() > 0 {
			prefixAt = in.offset(s.Label.Idx0())
		}
		in.statement(s.Statement, prefixAt, depth)
	case *ast.WhileStatement:
		in.protect(s, s.Body, prefixAt, depth)
		in.expression(s.Test, depth)
		in.statement(s.Body, -1, depth+2)
	case *ast.DoWhileStatement:
		in.protect(s, s.Body, prefixAt, depth)
		in.statement(s.Body, -1, depth+2)
		in.expression(s.Test, depth)
	case *ast.ForStatement:
		in.protect(s, s.Body, prefixAt, depth)
		in.forInitializer(s.Initializer, depth)
		in.expression(s.Test, depth)
		in.expression(s.Update, depth)
		in.statement(s.Body, -1, depth+2)
	case *ast.ForInStatement:
		in.protect(s, s.Body, prefixAt, depth)
		in.forInto(s.Into, depth)
		in.expression(s.Source, depth)
		in.statement(s.Body, -1, depth+2)
	case *ast.ForOfStatement:
		in.protect(s, s.Body, prefixAt, depth)
		in.forInto(s.Into, depth)
		in.expression(s.Source, depth)
		in.statement(s.Body, -1, depth+2)
	case *ast.ReturnStatement:
		in.expression(s.Argument, depth)
	case *ast.ThrowStatement:
		in.expression(s.Argument, depth)
	case *ast.SwitchStatement:
		in.expression(s.Discriminant, depth)
		for _, c := range s.Body {
			in.expression(c.Test, depth)
			in.statements(c.Consequent, depth)
		}
	case *ast.TryStatement:
		in.statement(s.Body, -1, depth)
		if s.Catch != nil {
			in.statement(s.Catch.Body, -1, depth)
		}
		if s.Finally != nil {
			in.statement(s.Finally, -1, depth)
		}
	case *ast.VariableStatement:
		in.bindings(s.List, depth)
	case *ast.LexicalDeclaration:
		in.bindings(s.List, depth)
	case *ast.WithStatement:
		in.expression(s.Object, depth)
		in.statement(s.Body, -1, depth)
	case *ast.FunctionDeclaration:
		in.function(s.Function, depth)
	case *ast.ClassDeclaration:
		in.class(s.Class, depth)
	}
}

func (in *instrumenter) bindings(list []*ast.Binding, depth int) {
	for _, b := range list {
		if b != nil {
			in.expression(b.Target, depth)
			in.expression(b.Initializer, depth)
		}
	}
}

func (in *instrumenter) forInitializer(init ast.ForLoopInitializer, depth int) {
	switch i := init.(type) {
	case *ast.ForLoopInitializerExpression:
		in.expression(i.Expression, depth)
	case *ast.ForLoopInitializerVarDeclList:
		in.bindings(i.List, depth)
	case *ast.ForLoopInitializerLexicalDecl:
		in.bindings(i.LexicalDeclaration.List, depth)
	}
}

func (in *instrumenter) forInto(into ast.ForInto, depth int) {
	switch i := into.(type) {
	case *ast.ForIntoVar:
		if i.Binding != nil {
			in.expression(i.Binding.Target, depth)
			in.expression(i.Binding.Initializer, depth)
		}
	case *ast.ForDeclaration:
		in.expression(i.Target, depth)
	case *ast.ForIntoExpression:
		in.expression(i.Expression, depth)
	}
}

func (in *instrumenter) function(fn *ast.FunctionLiteral, depth int) {
	if fn == nil {
		return
	}
	in.parameters(fn.ParameterList, depth)
	if fn.Body != nil {
		in.statements(fn.Body.List, depth)
	}
}

func (in *instrumenter) parameters(params *ast.ParameterList, depth int) {
	if params == nil {
		return
	}
	in.bindings(params.List, depth)
	in.expression(params.Rest, depth)
}

func (in *instrumenter) class(cls *ast.ClassLiteral, depth int) {
	if cls == nil {
		return
	}
	in.expression(cls.SuperClass, depth)
	for _, element := range cls.Body {
		switch e := element.(type) {
		case *ast.MethodDefinition:
			in.expression(e.Key, depth)
			in.function(e.Body, depth)
		case *ast.FieldDefinition:
			in.expression(e.Key, depth)
			in.expression(e.Initializer, depth)
		case *ast.ClassStaticBlock:
			if e.Block != nil {
				in.statements(e.Block.List, depth)
			}
		}
	}
}

// expression looks for function and class bodies nested in expressions
func (in *instrumenter) expression(expr ast.Expression, depth int) {
	switch e := expr.(type) {
	case nil:
	case *ast.FunctionLiteral:
		in.function(e, depth)
	case *ast.ArrowFunctionLiteral:
		if e == nil {
			return
		}
		in.parameters(e.ParameterList, depth)
		switch body := e.Body.(type) {
		case *ast.BlockStatement:
			in.statements(body.List, depth)
		case *ast.ExpressionBody:
			in.expression(body.Expression, depth)
		}
	case *ast.ClassLiteral:
		in.class(e, depth)
	case *ast.ArrayLiteral:
		for _, v := range e.Value {
			in.expression(v, depth)
		}
	case *ast.ArrayPattern:
		for _, v := range e.Elements {
			in.expression(v, depth)
		}
		in.expression(e.Rest, depth)
	case *ast.ObjectLiteral:
		for _, p := range e.Value {
			in.expression(p, depth)
		}
	case *ast.ObjectPattern:
		for _, p := range e.Properties {
			in.expression(p, depth)
		}
		in.expression(e.Rest, depth)
	case *ast.PropertyShort:
		in.expression(e.Initializer, depth)
	case *ast.PropertyKeyed:
		in.expression(e.Key, depth)
		in.expression(e.Value, depth)
	case *ast.SpreadElement:
		in.expression(e.Expression, depth)
	case *ast.AssignExpression:
		in.expression(e.Left, depth)
		in.expression(e.Right, depth)
	case *ast.BinaryExpression:
		in.expression(e.Left, depth)
		in.expression(e.Right, depth)
	case *ast.ConditionalExpression:
		in.expression(e.Test, depth)
		in.expression(e.Consequent, depth)
		in.expression(e.Alternate, depth)
	case *ast.CallExpression:
		in.expression(e.Callee, depth)
		for _, arg := range e.ArgumentList {
			in.expression(arg, depth)
		}
	case *ast.NewExpression:
		in.expression(e.Callee, depth)
		for _, arg := range e.ArgumentList {
			in.expression(arg, depth)
		}
	case *ast.DotExpression:
		in.expression(e.Left, depth)
	case *ast.PrivateDotExpression:
		in.expression(e.Left, depth)
	case *ast.BracketExpression:
		in.expression(e.Left, depth)
		in.expression(e.Member, depth)
	case *ast.OptionalChain:
		in.expression(e.Expression, depth)
	case *ast.Optional:
		in.expression(e.Expression, depth)
	case *ast.SequenceExpression:
		for _, v := range e.Sequence {
			in.expression(v, depth)
		}
	case *ast.TemplateLiteral:
		in.expression(e.Tag, depth)
		for _, v := range e.Expressions {
			in.expression(v, depth)
		}
	case *ast.UnaryExpression:
		in.expression(e.Operand, depth)
	case *ast.AwaitExpression:
		in.expression(e.Argument, depth)
	case *ast.YieldExpression:
		in.expression(e.Argument, depth)
	case *ast.Binding:
		in.expression(e.Target, depth)
		in.expression(e.Initializer, depth)
	}
}
