package token

// Type identifies the category of a token.
type Type string

// Token carries the lexical item along with its source position.
type Token struct {
	Type    Type
	Literal string
	Pos     Position
}

// Position describes a byte offset and 1-based line/column.
type Position struct {
	Offset int
	Line   int
	Column int
}

// Span represents an inclusive start and end position for a node.
type Span struct {
	Start Position
	End   Position
}

const (
	Illegal Type = "ILLEGAL"
	EOF     Type = "EOF"
	Newline Type = "NEWLINE"
	Indent  Type = "INDENT"
	Dedent  Type = "DEDENT"

	// identifiers and literals
	Ident  Type = "IDENT"
	Number Type = "NUMBER"

	// keywords
	Class  Type = "CLASS"
	Def    Type = "DEF"
	If     Type = "IF"
	Elif   Type = "ELIF"
	Else   Type = "ELSE"
	While  Type = "WHILE"
	Return Type = "RETURN"
	Pass   Type = "PASS"
	Global Type = "GLOBAL"
	True   Type = "TRUE"
	False  Type = "FALSE"
	None   Type = "NONE"
	And    Type = "AND"
	Or     Type = "OR"
	Not    Type = "NOT"
	Is     Type = "IS"

	// operators
	Assign       Type = "ASSIGN"       // =
	Plus         Type = "PLUS"         // +
	Minus        Type = "MINUS"        // -
	Star         Type = "STAR"         // *
	SlashSlash   Type = "SLASHSLASH"   // //
	Percent      Type = "PERCENT"      // %
	Equal        Type = "EQUAL"        // ==
	NotEqual     Type = "NOTEQUAL"     // !=
	Less         Type = "LESS"         // <
	LessEqual    Type = "LESSEQUAL"    // <=
	Greater      Type = "GREATER"      // >
	GreaterEqual Type = "GREATEREQUAL" // >=
	Arrow        Type = "ARROW"        // ->

	// delimiters
	Comma  Type = "COMMA"
	Colon  Type = "COLON"
	Dot    Type = "DOT"
	LParen Type = "LPAREN"
	RParen Type = "RPAREN"
)

var keywords = map[string]Type{
	"class":  Class,
	"def":    Def,
	"if":     If,
	"elif":   Elif,
	"else":   Else,
	"while":  While,
	"return": Return,
	"pass":   Pass,
	"global": Global,
	"True":   True,
	"False":  False,
	"None":   None,
	"and":    And,
	"or":     Or,
	"not":    Not,
	"is":     Is,
}

// LookupIdent returns the keyword token type or Ident.
func LookupIdent(ident string) Type {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return Ident
}
