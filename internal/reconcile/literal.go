package reconcile

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// literalParser reads the subset of Python literal syntax a model writes
// when asked for a dict: strings (single, double or triple quoted, with
// escapes, raw prefix and implicit concatenation), numbers, None, True,
// False, dicts, lists and tuples. Comments run from '#' to end of line.
type literalParser struct {
	src string
	pos int
}

// parseLiteral decodes text as exactly one Python literal.
func parseLiteral(text string) (any, error) {
	p := &literalParser{src: text}
	v, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected trailing input")
	}
	return v, nil
}

func (p *literalParser) errorf(format string, args ...any) error {
	return fmt.Errorf("literal at offset %d: %s", p.pos, fmt.Sprintf(format, args...))
}

func (p *literalParser) skipSpace() {
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v':
			p.pos++
		case c == '\\' && strings.HasPrefix(p.src[p.pos:], "\\\n"):
			p.pos += 2
		case c == '#':
			for p.pos < len(p.src) && p.src[p.pos] != '\n' {
				p.pos++
			}
		default:
			return
		}
	}
}

func (p *literalParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *literalParser) value() (any, error) {
	p.skipSpace()
	c := p.peek()
	switch {
	case c == 0:
		return nil, p.errorf("unexpected end of input")
	case c == '{':
		return p.dict()
	case c == '[':
		return p.sequence('[', ']')
	case c == '(':
		return p.sequence('(', ')')
	case c == '\'' || c == '"' || p.stringPrefix() > 0:
		return p.stringSeq()
	case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
		return p.number()
	}

	word := p.word()
	switch word {
	case "None":
		return nil, nil
	case "True":
		return true, nil
	case "False":
		return false, nil
	case "":
		return nil, p.errorf("unexpected %q", c)
	}
	return nil, p.errorf("unknown name %q", word)
}

func (p *literalParser) word() string {
	start := p.pos
	for p.pos < len(p.src) {
		r, size := utf8.DecodeRuneInString(p.src[p.pos:])
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		p.pos += size
	}
	return p.src[start:p.pos]
}

func (p *literalParser) dict() (any, error) {
	p.pos++ // {
	out := map[string]any{}
	for {
		p.skipSpace()
		if p.peek() == '}' {
			p.pos++
			return out, nil
		}
		k, err := p.value()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.peek() != ':' {
			return nil, p.errorf("expected ':' after dict key")
		}
		p.pos++
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		out[keyString(k)] = v

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case '}':
		default:
			return nil, p.errorf("expected ',' or '}' in dict")
		}
	}
}

// sequence reads a list or tuple. A parenthesized single value without a
// trailing comma is grouping, not a tuple, and yields the value itself.
func (p *literalParser) sequence(open, close byte) (any, error) {
	p.pos++ // open
	out := []any{}
	commas := 0
	for {
		p.skipSpace()
		if p.peek() == close {
			p.pos++
			if open == '(' && len(out) == 1 && commas == 0 {
				return out[0], nil
			}
			return out, nil
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)

		p.skipSpace()
		switch p.peek() {
		case ',':
			commas++
			p.pos++
		case close:
		default:
			return nil, p.errorf("expected ',' or %q", close)
		}
	}
}

// stringPrefix returns the length of a string prefix (r, u, b and their
// combinations) directly followed by a quote, or 0.
func (p *literalParser) stringPrefix() int {
	for n := 1; n <= 2 && p.pos+n < len(p.src); n++ {
		prefix := strings.ToLower(p.src[p.pos : p.pos+n])
		if strings.Trim(prefix, "rub") != "" {
			return 0
		}
		if q := p.src[p.pos+n]; q == '\'' || q == '"' {
			return n
		}
	}
	return 0
}

// stringSeq reads one or more adjacent string literals and joins them.
func (p *literalParser) stringSeq() (any, error) {
	var b strings.Builder
	for {
		s, err := p.str()
		if err != nil {
			return nil, err
		}
		b.WriteString(s)

		p.skipSpace()
		if c := p.peek(); c != '\'' && c != '"' && p.stringPrefix() == 0 {
			return b.String(), nil
		}
	}
}

func (p *literalParser) str() (string, error) {
	n := p.stringPrefix()
	raw := strings.ContainsAny(p.src[p.pos:p.pos+n], "rR")
	p.pos += n

	quote := p.src[p.pos : p.pos+1]
	if strings.HasPrefix(p.src[p.pos:], strings.Repeat(quote, 3)) {
		quote = strings.Repeat(quote, 3)
	}
	p.pos += len(quote)

	var b strings.Builder
	for {
		if p.pos >= len(p.src) {
			return "", p.errorf("unterminated string")
		}
		if strings.HasPrefix(p.src[p.pos:], quote) {
			p.pos += len(quote)
			return b.String(), nil
		}
		c := p.src[p.pos]
		if c == '\n' && len(quote) == 1 {
			return "", p.errorf("newline in single-quoted string")
		}
		if c != '\\' || p.pos+1 >= len(p.src) {
			b.WriteByte(c)
			p.pos++
			continue
		}
		if raw {
			// an escaped quote does not end a raw string but keeps its backslash
			b.WriteString(p.src[p.pos : p.pos+2])
			p.pos += 2
			continue
		}
		if err := p.escape(&b); err != nil {
			return "", err
		}
	}
}

var simpleEscapes = map[byte]string{
	'\\': "\\", '\'': "'", '"': "\"", 'n': "\n", 't': "\t", 'r': "\r",
	'a': "\a", 'b': "\b", 'f': "\f", 'v': "\v", '\n': "",
}

// escape decodes the backslash sequence at p.pos. Unknown escapes are kept
// verbatim.
func (p *literalParser) escape(b *strings.Builder) error {
	c := p.src[p.pos+1]
	if s, ok := simpleEscapes[c]; ok {
		b.WriteString(s)
		p.pos += 2
		return nil
	}

	switch {
	case c >= '0' && c <= '7':
		end := p.pos + 1
		for end < len(p.src) && end < p.pos+4 && p.src[end] >= '0' && p.src[end] <= '7' {
			end++
		}
		v, _ := strconv.ParseUint(p.src[p.pos+1:end], 8, 32)
		b.WriteRune(rune(v))
		p.pos = end
		return nil
	case c == 'x' || c == 'u' || c == 'U':
		digits := map[byte]int{'x': 2, 'u': 4, 'U': 8}[c]
		start := p.pos + 2
		if start+digits > len(p.src) {
			return p.errorf("truncated \\%c escape", c)
		}
		v, err := strconv.ParseUint(p.src[start:start+digits], 16, 32)
		if err != nil || !utf8.ValidRune(rune(v)) {
			return p.errorf("invalid \\%c escape", c)
		}
		b.WriteRune(rune(v))
		p.pos = start + digits
		return nil
	}

	b.WriteString(p.src[p.pos : p.pos+2])
	p.pos += 2
	return nil
}

func (p *literalParser) number() (any, error) {
	start := p.pos
	if c := p.peek(); c == '-' || c == '+' {
		p.pos++
		p.skipSpace()
	}
	digitsStart := p.pos
	isFloat := false
scan:
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c >= '0' && c <= '9', c == '_':
		case c == '.':
			isFloat = true
		case c == 'e' || c == 'E':
			isFloat = true
			if p.pos+1 < len(p.src) && (p.src[p.pos+1] == '-' || p.src[p.pos+1] == '+') {
				p.pos++
			}
		default:
			break scan
		}
		p.pos++
	}
	sign := strings.TrimSpace(p.src[start:digitsStart])
	digits := strings.ReplaceAll(p.src[digitsStart:p.pos], "_", "")
	if digits == "" {
		return nil, p.errorf("malformed number")
	}
	text := sign + digits
	if !isFloat {
		if v, err := strconv.ParseInt(text, 10, 64); err == nil {
			return v, nil
		}
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, p.errorf("malformed number %q", text)
	}
	return v, nil
}

// keyString renders a non-string dict key the way str() would for the
// common cases.
func keyString(k any) string {
	switch t := k.(type) {
	case string:
		return t
	case nil:
		return "None"
	case bool:
		if t {
			return "True"
		}
		return "False"
	default:
		return fmt.Sprint(t)
	}
}
