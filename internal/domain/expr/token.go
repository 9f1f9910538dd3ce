// Package expr implements the compact boolean expression language used by
// inline rule conditions (spec §4.4): a lexer, a recursive-descent parser
// producing an AST, and a type checker that walks the AST against an
// optional tool input schema.
package expr

// TokenKind classifies a lexical token. Keyword-like operators (in,
// not_in, contains, matches, starts_with, ends_with) are lexed as plain
// TokIdent tokens and disambiguated by the parser, since starts_with and
// ends_with can appear both as infix operators and as function calls.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokIdent
	TokNumber
	TokString
	TokTrue
	TokFalse
	TokNull
	TokLParen
	TokRParen
	TokLBracket
	TokRBracket
	TokDot
	TokComma
	TokPlus
	TokMinus
	TokSlash
	TokStarOp // '*' arithmetic multiplication
	TokBang
	TokAndAnd
	TokOrOr
	TokEq
	TokNeq
	TokLt
	TokGt
	TokLte
	TokGte
)

// Token is a single lexical token with its source position (rune offset),
// used for error messages.
type Token struct {
	Kind   TokenKind
	Text   string
	Number float64
	Pos    int
}

// relOperatorKeywords are identifiers that act as infix operators in the
// `rel` grammar rule (spec §4.4) when not immediately followed by '('.
var relOperatorKeywords = map[string]bool{
	"in":          true,
	"not_in":      true,
	"contains":    true,
	"matches":     true,
	"starts_with": true,
	"ends_with":   true,
}
