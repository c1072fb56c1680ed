// Package reconcile splits a free-form model response into one reasoning
// block per requested symbol.
package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"crypto-llm-analyst/internal/logger"
	"crypto-llm-analyst/internal/types"
)

const (
	StrategyStructured = "structured"
	StrategyLine       = "line"
)

// Splitter maps a model response onto the requested symbols. The result
// always holds exactly one key per symbol.
type Splitter interface {
	Split(ctx context.Context, response string, symbols []string) types.ReasoningBlocks
}

// New returns the splitter for a configured strategy. Unknown strategies
// fall back to the structured parser.
func New(strategy string, log *logger.Logger) Splitter {
	if strategy == StrategyLine {
		return NewLineParser(log)
	}
	return NewParser(log)
}

// Parser decodes the response as a JSON object, then as a Python-style
// literal mapping, and finally falls back to per-symbol pattern matching.
type Parser struct {
	log *logger.Logger
}

func NewParser(log *logger.Logger) *Parser {
	return &Parser{log: log}
}

var fencedBlock = regexp.MustCompile("(?s)\\A```(?:json|JSON)?[ \\t]*\\n(.*?)\\n?```\\z")

// Split never fails. When a mapping decodes and is non-empty it is
// authoritative; symbols missing from it stay nil.
func (p *Parser) Split(ctx context.Context, response string, symbols []string) types.ReasoningBlocks {
	blocks := make(types.ReasoningBlocks, len(symbols))

	decoded, strategy := p.decode(response)
	if len(decoded) > 0 {
		for _, s := range symbols {
			blocks[s] = decoded[s]
		}
	} else {
		strategy = "pattern"
		for _, s := range symbols {
			blocks[s] = matchSymbol(response, s)
		}
	}

	if missing := blocks.Unmatched(symbols); len(missing) > 0 {
		p.log.Warn(ctx, "Unmatched symbols in reasoning", "symbols", missing, "strategy", strategy)
	} else {
		p.log.Debug(ctx, "Reasoning split", "symbols", len(symbols), "strategy", strategy)
	}
	return blocks
}

func (p *Parser) decode(response string) (map[string]*string, string) {
	text := strings.TrimSpace(response)
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}
	if m, ok := decodeJSON(text); ok {
		return m, "json"
	}
	if m, ok := decodeLiteral(text); ok {
		return m, "literal"
	}
	return nil, ""
}

// decodeJSON accepts only a top-level JSON object.
func decodeJSON(text string) (map[string]*string, bool) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, false
	}
	out := make(map[string]*string, len(raw))
	for k, v := range raw {
		out[k] = jsonText(v)
	}
	return out, true
}

func jsonText(v json.RawMessage) *string {
	trimmed := bytes.TrimSpace(v)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return &s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		s = string(trimmed)
		return &s
	}
	s = buf.String()
	return &s
}

// decodeLiteral reads a Python-style {'KEY': 'value'} mapping. None maps
// to nil.
func decodeLiteral(text string) (map[string]*string, bool) {
	if !strings.HasPrefix(text, "{") || !strings.HasSuffix(text, "}") {
		return nil, false
	}
	v, err := parseLiteral(text)
	if err != nil {
		return nil, false
	}
	raw, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	out := make(map[string]*string, len(raw))
	for k, v := range raw {
		out[k] = literalText(v)
	}
	return out, true
}

func literalText(v any) *string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return &t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return nil
		}
		s := string(b)
		return &s
	}
}

// matchSymbol returns the first 'SYMBOL': '...' value in text, matched
// across newlines. Backslash escapes inside the value are decoded and do
// not end it.
func matchSymbol(text, symbol string) *string {
	re := regexp.MustCompile(`(?s)'` + regexp.QuoteMeta(symbol) + `'\s*:\s*'((?:[^'\\]|\\.)*)'`)
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v := m[1]
	if strings.Contains(v, "\\") {
		if s, err := (&literalParser{src: "'''" + v + "'''"}).str(); err == nil {
			v = s
		}
	}
	return &v
}
