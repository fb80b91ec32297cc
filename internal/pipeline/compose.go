package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/koustreak/greeny/internal/errs"
	"github.com/koustreak/greeny/internal/llm"
	"github.com/koustreak/greeny/internal/logger"
	"github.com/koustreak/greeny/internal/query"
)

// ChartPolicy controls whether the model's chart choice is kept.
type ChartPolicy string

const (
	// ChartAdvisory keeps a valid model choice and derives one only when it
	// is missing or unknown.
	ChartAdvisory ChartPolicy = "advisory"
	// ChartStrict always derives the chart type with ClassifyChart.
	ChartStrict ChartPolicy = "strict"
)

// ParseChartPolicy accepts "advisory" (or "") and "strict".
func ParseChartPolicy(s string) (ChartPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ChartAdvisory):
		return ChartAdvisory, nil
	case string(ChartStrict):
		return ChartStrict, nil
	}
	return "", errs.Newf(errs.ErrKindInvalidInput, "unknown chart policy %q (want advisory or strict)", s)
}

// Composer turns a query result into an Answer with a second completion.
type Composer struct {
	llm     llm.Completer
	prompts *Prompts
	policy  ChartPolicy
	schema  *jsonschema.Resolved
}

// NewComposer returns a Composer validating replies against the Answer schema.
func NewComposer(c llm.Completer, p *Prompts, policy ChartPolicy) (*Composer, error) {
	resolved, err := answerSchema()
	if err != nil {
		return nil, err
	}
	if policy == "" {
		policy = ChartAdvisory
	}
	return &Composer{llm: c, prompts: p, policy: policy, schema: resolved}, nil
}

// answerSchema derives the reply schema from Answer. Extra keys are tolerated
// and data_type is limited to its two values.
func answerSchema() (*jsonschema.Resolved, error) {
	s, err := jsonschema.For[Answer](nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build answer schema: %w", err)
	}
	s.AdditionalProperties = nil
	if dt, ok := s.Properties["data_type"]; ok {
		dt.Enum = []any{string(DataTypeText), string(DataTypeData)}
	}
	if data, ok := s.Properties["data"]; ok && data.Items != nil {
		data.Items.AdditionalProperties = nil
	}
	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve answer schema: %w", err)
	}
	return resolved, nil
}

// Compose never fails: model errors and unusable replies yield
// FallbackAnswer. Data from a failed execution is discarded.
func (c *Composer) Compose(ctx context.Context, question, sql string, result query.Result) *Answer {
	a, _ := c.compose(ctx, question, sql, result)
	return a
}

// compose also reports whether the fallback was used.
func (c *Composer) compose(ctx context.Context, question, sql string, result query.Result) (*Answer, bool) {
	log := logger.FromContext(ctx)

	prompt, err := c.prompts.Compose(question, sql, result.Text)
	if err != nil {
		log.ErrorWith("failed to build composition prompt", err, nil)
		return FallbackAnswer(), true
	}

	raw, err := c.llm.Complete(ctx, prompt)
	if err != nil {
		log.WarnWith("answer composition failed", err, nil)
		return FallbackAnswer(), true
	}

	a, err := c.parse(raw)
	if err != nil {
		log.WarnWith("unusable composition reply", err, map[string]any{"reply": truncate(raw, 300)})
		return FallbackAnswer(), true
	}

	if result.Failed() && a.DataType == DataTypeData {
		a.DataType = DataTypeText
	}
	if c.policy == ChartStrict && a.DataType == DataTypeData {
		a.ChartType = ""
	}
	a.Normalize(question)
	if c.policy == ChartStrict && a.DataType == DataTypeData {
		a.ChartType = ClassifyChart(question, a.Data)
	}
	return a, false
}

// parse extracts, validates and decodes the reply.
func (c *Composer) parse(raw string) (*Answer, error) {
	body := extractJSON(raw)
	if body == "" {
		return nil, errs.New(errs.ErrKindUpstream, "reply contains no JSON object")
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, errs.Wrap(errs.ErrKindUpstream, "reply is not valid JSON", err)
	}
	dropNulls(doc)

	if err := c.schema.Validate(doc); err != nil {
		return nil, errs.Wrap(errs.ErrKindUpstream, "reply does not match the answer format", err)
	}

	// Re-encode the cleaned document so numbers like 2023.0 decode into int.
	clean, err := json.Marshal(doc)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindUpstream, "failed to re-encode reply", err)
	}
	var a Answer
	if err := json.Unmarshal(clean, &a); err != nil {
		return nil, errs.Wrap(errs.ErrKindUpstream, "failed to decode reply", err)
	}
	return &a, nil
}

// dropNulls removes null members so that an explicit null reads as absent.
func dropNulls(doc map[string]any) {
	for k, v := range doc {
		switch val := v.(type) {
		case nil:
			delete(doc, k)
		case map[string]any:
			dropNulls(val)
		case []any:
			for _, item := range val {
				if m, ok := item.(map[string]any); ok {
					dropNulls(m)
				}
			}
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return query.Clip(s, n) + "..."
}
