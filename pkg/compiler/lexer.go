package compiler

import (
	"fmt"
	"strconv"
	"unicode"
)

var keywords = map[string]TokenType{
	"int":    INT,
	"return": RETURN,
}

// punctuation holds every single-character token.
var punctuation = map[rune]TokenType{
	'{': LBRACE,
	'}': RBRACE,
	'(': LPAREN,
	')': RPAREN,
	';': SEMICOLON,
	'+': PLUS,
	'-': MINUS,
	'*': STAR,
	'/': SLASH,
}

var charEscapes = map[rune]rune{
	'n':  '\n',
	'r':  '\r',
	't':  '\t',
	'0':  0,
	'\\': '\\',
	'\'': '\'',
}

// Lexer splits source text into tokens and tracks the current line.
type Lexer struct {
	src  []rune
	off  int
	line int
}

func newLexer(src string) *Lexer {
	return &Lexer{src: []rune(src), line: 1}
}

func (l *Lexer) eof() bool {
	return l.off >= len(l.src)
}

// at looks n runes ahead; past the end it yields 0.
func (l *Lexer) at(n int) rune {
	if i := l.off + n; i < len(l.src) {
		return l.src[i]
	}
	return 0
}

func (l *Lexer) next(n int) {
	for ; n > 0 && !l.eof(); n-- {
		if l.src[l.off] == '\n' {
			l.line++
		}
		l.off++
	}
}

// takeWhile consumes the longest run of runes satisfying ok.
func (l *Lexer) takeWhile(ok func(rune) bool) string {
	start := l.off
	for !l.eof() && ok(l.at(0)) {
		l.next(1)
	}
	return string(l.src[start:l.off])
}

// skipTrivia drops whitespace, line comments and block comments.
func (l *Lexer) skipTrivia() error {
	for !l.eof() {
		switch {
		case unicode.IsSpace(l.at(0)):
			l.next(1)
		case l.at(0) == '/' && l.at(1) == '/':
			l.takeWhile(func(r rune) bool { return r != '\n' })
		case l.at(0) == '/' && l.at(1) == '*':
			opened := l.line
			l.next(2)
			for !(l.at(0) == '*' && l.at(1) == '/') {
				if l.eof() {
					return fmt.Errorf("unterminated block comment (opened on line %d)", opened)
				}
				l.next(1)
			}
			l.next(2)
		default:
			return nil
		}
	}
	return nil
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}

func isHexDigit(r rune) bool {
	return unicode.Is(unicode.ASCII_Hex_Digit, r)
}

// number reads a decimal or 0x-prefixed literal. The parser range-checks it.
func (l *Lexer) number(line int) (Token, error) {
	var lexeme string
	if l.at(0) == '0' && (l.at(1) == 'x' || l.at(1) == 'X') {
		prefix := string(l.src[l.off : l.off+2])
		l.next(2)
		digits := l.takeWhile(isHexDigit)
		if digits == "" {
			return Token{}, fmt.Errorf("hex literal without digits on line %d", line)
		}
		lexeme = prefix + digits
	} else {
		lexeme = l.takeWhile(unicode.IsDigit)
	}
	if isIdentStart(l.at(0)) {
		return Token{}, fmt.Errorf("invalid suffix %q on integer literal on line %d", l.at(0), line)
	}
	return Token{Type: INTEGER, Lexeme: lexeme, Line: line}, nil
}

// char reads 'c' or an escape such as '\n' and yields its code point as an
// INTEGER token.
func (l *Lexer) char(line int) (Token, error) {
	l.next(1)
	val := l.at(0)
	switch val {
	case '\'':
		return Token{}, fmt.Errorf("empty character literal on line %d", line)
	case '\\':
		esc, ok := charEscapes[l.at(1)]
		if !ok {
			return Token{}, fmt.Errorf("unknown escape sequence \\%c on line %d", l.at(1), line)
		}
		val = esc
		l.next(2)
	default:
		l.next(1)
	}
	if l.at(0) != '\'' {
		return Token{}, fmt.Errorf("unterminated character literal on line %d", line)
	}
	l.next(1)
	return Token{Type: INTEGER, Lexeme: strconv.Itoa(int(val)), Line: line}, nil
}

func (l *Lexer) nextToken() (Token, error) {
	if err := l.skipTrivia(); err != nil {
		return Token{}, err
	}
	line := l.line
	r := l.at(0)

	switch {
	case l.eof():
		return Token{Type: EOF, Line: line}, nil
	case isIdentStart(r):
		word := l.takeWhile(isIdentPart)
		tt, ok := keywords[word]
		if !ok {
			tt = IDENTIFIER
		}
		return Token{Type: tt, Lexeme: word, Line: line}, nil
	case unicode.IsDigit(r):
		return l.number(line)
	case r == '\'':
		return l.char(line)
	}

	if tt, ok := punctuation[r]; ok {
		l.next(1)
		return Token{Type: tt, Lexeme: string(r), Line: line}, nil
	}
	return Token{}, fmt.Errorf("unexpected character %q on line %d", r, line)
}

// Lex returns every token in src, ending with EOF, or the first lexical
// error together with the tokens read before it.
func Lex(src string) ([]Token, error) {
	l := newLexer(src)
	var tokens []Token
	for {
		tok, err := l.nextToken()
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, nil
		}
	}
}
