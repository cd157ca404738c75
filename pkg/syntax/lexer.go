package syntax

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"goscheme/pkg/diag"
)

// errNoMatch means an alternative does not apply at this position and the
// next one should be tried. Any other error aborts the alternation.
var errNoMatch = errors.New("no match")

// lexFn tries to match one token kind at the start of input.
type lexFn func(input string) (Token, string, error)

// alternatives are tried in order; the first match wins. The order
// disambiguates, e.g. #t is a boolean before it could be anything else.
var alternatives = []lexFn{
	lexString,
	lexBoolean,
	lexCharacter,
	lexIdentifier,
	lexNumber,
	lexPunctuator,
	lexWhitespace,
	lexComment,
}

// Tokenize returns the next token at the start of input and the input that
// remains after it. On failure it returns a *diag.Error of kind LexError
// whose Remainder is the unconsumed input; the caller stamps the position.
func Tokenize(input string) (Token, string, error) {
	for _, alt := range alternatives {
		tok, rest, err := alt(input)
		if err == nil {
			tok.Lexeme = input[:len(input)-len(rest)]
			return tok, rest, nil
		}
		if !errors.Is(err, errNoMatch) {
			return Token{}, input, err
		}
	}
	return Token{}, input, lexError(input, "no token matches")
}

// TokenizeAll splits input into tokens, trivia included.
func TokenizeAll(input string) ([]Token, error) {
	var tokens []Token
	for input != "" {
		tok, rest, err := Tokenize(input)
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
		input = rest
	}
	return tokens, nil
}

func lexError(remainder, msg string) *diag.Error {
	return &diag.Error{Kind: diag.LexError, Near: remainder, Remainder: remainder, Msg: msg}
}

//  Small combinators

// tag consumes prefix.
func tag(input, prefix string) (string, bool) {
	if strings.HasPrefix(input, prefix) {
		return input[len(prefix):], true
	}
	return input, false
}

// takeWhile consumes the longest prefix whose runes satisfy pred.
func takeWhile(input string, pred func(rune) bool) (string, string) {
	i := 0
	for i < len(input) {
		r, w := utf8.DecodeRuneInString(input[i:])
		if !pred(r) {
			break
		}
		i += w
	}
	return input[:i], input[i:]
}

// oneOf consumes a single rune from set.
func oneOf(input, set string) (rune, string, bool) {
	r, w := utf8.DecodeRuneInString(input)
	if w == 0 || !strings.ContainsRune(set, r) {
		return 0, input, false
	}
	return r, input[w:], true
}

// atDelimiter is the zero-width lookahead that ends characters and
// identifiers: whitespace, ( ) " ; or end of input.
func atDelimiter(input string) bool {
	if input == "" {
		return true
	}
	_, _, ok := oneOf(input, " \t\r\n()\";")
	return ok
}

//  Alternatives

func lexString(input string) (Token, string, error) {
	rest, ok := tag(input, `"`)
	if !ok {
		return Token{}, input, errNoMatch
	}
	var sb strings.Builder
	for {
		r, w := utf8.DecodeRuneInString(rest)
		switch {
		case w == 0:
			return Token{}, input, lexError(input, "unterminated string")
		case r == '"':
			return Token{Type: STRING, Text: sb.String()}, rest[w:], nil
		case r == '\\':
			esc, after, ok := oneOf(rest[w:], `\"n`)
			if !ok {
				return Token{}, input, lexError(input, "unknown escape in string")
			}
			if esc == 'n' {
				esc = '\n'
			}
			sb.WriteRune(esc)
			rest = after
		default:
			sb.WriteRune(r)
			rest = rest[w:]
		}
	}
}

func lexBoolean(input string) (Token, string, error) {
	rest, ok := tag(input, "#")
	if !ok {
		return Token{}, input, errNoMatch
	}
	r, rest, ok := oneOf(rest, "tf")
	if !ok {
		return Token{}, input, errNoMatch
	}
	return Token{Type: BOOLEAN, Bool: r == 't'}, rest, nil
}

func lexCharacter(input string) (Token, string, error) {
	rest, ok := tag(input, `#\`)
	if !ok {
		return Token{}, input, errNoMatch
	}
	var c rune
	if after, ok := tag(rest, "space"); ok {
		c, rest = ' ', after
	} else if after, ok := tag(rest, "newline"); ok {
		c, rest = '\n', after
	} else {
		r, w := utf8.DecodeRuneInString(rest)
		if w == 0 {
			return Token{}, input, errNoMatch
		}
		c, rest = r, rest[w:]
	}
	if !atDelimiter(rest) {
		return Token{}, input, errNoMatch
	}
	return Token{Type: CHARACTER, Char: c}, rest, nil
}

const (
	specialInitial    = "!$%&*/:<=>?^_~"
	specialSubsequent = "+-.@"
)

func isInitial(r rune) bool {
	return unicode.IsLetter(r) || strings.ContainsRune(specialInitial, r)
}

func isSubsequent(r rune) bool {
	return isInitial(r) || unicode.IsDigit(r) || strings.ContainsRune(specialSubsequent, r)
}

func nonPeculiar(input string) (string, string, bool) {
	r, w := utf8.DecodeRuneInString(input)
	if w == 0 || !isInitial(r) {
		return "", input, false
	}
	tail, rest := takeWhile(input[w:], isSubsequent)
	return input[:w+len(tail)], rest, true
}

func peculiar(input string) (string, string, bool) {
	for _, p := range []string{"+", "-", "..."} {
		if rest, ok := tag(input, p); ok {
			return p, rest, true
		}
	}
	return "", input, false
}

func lexIdentifier(input string) (Token, string, error) {
	name, rest, ok := nonPeculiar(input)
	if !ok {
		name, rest, ok = peculiar(input)
	}
	if !ok || !atDelimiter(rest) {
		return Token{}, input, errNoMatch
	}
	return Token{Type: IDENTIFIER, Text: name}, rest, nil
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// recognizeFloat matches [sign] digit* "." digit+.
func recognizeFloat(input string) (string, string, bool) {
	_, rest, _ := oneOf(input, "+-")
	_, rest = takeWhile(rest, isDigit)
	rest, ok := tag(rest, ".")
	if !ok {
		return "", input, false
	}
	frac, rest := takeWhile(rest, isDigit)
	if frac == "" {
		return "", input, false
	}
	return input[:len(input)-len(rest)], rest, true
}

// recognizeInteger matches [sign] digit+.
func recognizeInteger(input string) (string, string, bool) {
	_, rest, _ := oneOf(input, "+-")
	digits, rest := takeWhile(rest, isDigit)
	if digits == "" {
		return "", input, false
	}
	return input[:len(input)-len(rest)], rest, true
}

func lexNumber(input string) (Token, string, error) {
	if lit, rest, ok := recognizeFloat(input); ok {
		f, err := strconv.ParseFloat(lit, 32)
		if err != nil {
			return Token{}, input, lexError(input, "too large")
		}
		return Token{Type: NUMBER, Num: Float(float32(f))}, rest, nil
	}
	lit, rest, ok := recognizeInteger(input)
	if !ok {
		return Token{}, input, errNoMatch
	}
	i, err := strconv.ParseInt(lit, 10, 32)
	if err != nil {
		return Token{}, input, lexError(input, "too large")
	}
	return Token{Type: NUMBER, Num: Int(int32(i))}, rest, nil
}

// punctuators is ordered so the longer of two overlapping forms wins.
var punctuators = []string{"#(", "(", ")", "'", "`", ",@", ",", "."}

func lexPunctuator(input string) (Token, string, error) {
	for _, p := range punctuators {
		if rest, ok := tag(input, p); ok {
			return Token{Type: PUNCTUATOR, Text: p}, rest, nil
		}
	}
	return Token{}, input, errNoMatch
}

func isBlank(r rune) bool { return r == ' ' || r == '\t' || r == '\r' || r == '\n' }

func lexWhitespace(input string) (Token, string, error) {
	ws, rest := takeWhile(input, isBlank)
	if ws == "" {
		return Token{}, input, errNoMatch
	}
	return Token{Type: WHITESPACE}, rest, nil
}

func lexComment(input string) (Token, string, error) {
	rest, ok := tag(input, ";")
	if !ok {
		return Token{}, input, errNoMatch
	}
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		return Token{Type: COMMENT}, rest[i+1:], nil
	}
	return Token{Type: COMMENT}, "", nil
}
