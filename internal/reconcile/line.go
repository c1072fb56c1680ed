package reconcile

import (
	"context"
	"strings"

	"crypto-llm-analyst/internal/logger"
	"crypto-llm-analyst/internal/types"
)

// LineParser reads responses written as "SYMBOL: text" sections. A section
// runs from its prefix line to the next line that opens another requested
// symbol. Symbols that never open a section map to nil.
type LineParser struct {
	log *logger.Logger
}

func NewLineParser(log *logger.Logger) *LineParser {
	return &LineParser{log: log}
}

func (p *LineParser) Split(ctx context.Context, response string, symbols []string) types.ReasoningBlocks {
	blocks := make(types.ReasoningBlocks, len(symbols))
	for _, s := range symbols {
		blocks[s] = nil
	}

	var (
		current string
		lines   []string
	)
	flush := func() {
		if current == "" || blocks[current] != nil {
			return
		}
		text := strings.TrimSpace(strings.Join(lines, "\n"))
		blocks[current] = &text
	}

	for _, line := range strings.Split(response, "\n") {
		if sym, rest, ok := openingLine(line, symbols); ok {
			flush()
			current, lines = sym, []string{rest}
			continue
		}
		if current != "" {
			lines = append(lines, line)
		}
	}
	flush()

	if missing := blocks.Unmatched(symbols); len(missing) > 0 {
		p.log.Warn(ctx, "Unmatched symbols in reasoning", "symbols", missing, "strategy", StrategyLine)
	}
	return blocks
}

// openingLine recognises "SYMBOL:" after optional list or emphasis markup.
func openingLine(line string, symbols []string) (string, string, bool) {
	t := strings.TrimLeft(strings.TrimSpace(line), "-*#> ")
	for _, s := range symbols {
		if rest, ok := strings.CutPrefix(t, s); ok {
			rest = strings.TrimLeft(rest, "*")
			if after, ok := strings.CutPrefix(rest, ":"); ok {
				return s, strings.TrimSpace(strings.TrimLeft(after, "*")), true
			}
		}
	}
	return "", "", false
}
