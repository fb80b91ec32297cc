package pipeline

import (
	"context"
	"strings"

	"github.com/koustreak/greeny/internal/database"
	"github.com/koustreak/greeny/internal/errs"
	"github.com/koustreak/greeny/internal/llm"
)

// Synthesizer turns a question into one SQL statement.
type Synthesizer struct {
	llm     llm.Completer
	prompts *Prompts
	dialect database.Dialect
}

// NewSynthesizer returns a Synthesizer writing SQL for dialect d.
func NewSynthesizer(c llm.Completer, p *Prompts, d database.Dialect) *Synthesizer {
	return &Synthesizer{llm: c, prompts: p, dialect: d}
}

// Synthesize makes one completion call and returns the cleaned statement.
// The statement is not validated. A model failure or an empty reply is an
// upstream error.
func (s *Synthesizer) Synthesize(ctx context.Context, question, schemaText string, topK int) (string, error) {
	prompt, err := s.prompts.Synthesize(s.dialect, question, schemaText, topK)
	if err != nil {
		return "", errs.Wrap(errs.ErrKindUnknown, "failed to build synthesis prompt", err)
	}

	raw, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		if errs.IsTimeout(err) {
			return "", err
		}
		return "", errs.Wrap(errs.ErrKindUpstream, "query synthesis failed", err)
	}

	sql := cleanSQL(raw)
	if strings.TrimSpace(sql) == "" {
		return "", errs.New(errs.ErrKindUpstream, "model returned an empty query")
	}
	return sql, nil
}
