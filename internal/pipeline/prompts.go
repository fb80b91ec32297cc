package pipeline

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/koustreak/greeny/internal/database"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

// Prompts holds the parsed prompt templates.
type Prompts struct {
	synthesize *template.Template
	compose    *template.Template
}

// LoadPrompts parses the embedded prompt templates.
func LoadPrompts() (*Prompts, error) {
	p := &Prompts{}
	var err error
	if p.synthesize, err = loadPrompt("synthesize.tmpl"); err != nil {
		return nil, err
	}
	if p.compose, err = loadPrompt("compose.tmpl"); err != nil {
		return nil, err
	}
	return p, nil
}

func loadPrompt(name string) (*template.Template, error) {
	data, err := promptFS.ReadFile("prompts/" + name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	t, err := template.New(name).Option("missingkey=error").Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return t, nil
}

type synthesizeVars struct {
	DialectName string
	QuoteName   string
	Quote       string
	CurrentDate string
	TopK        int
	Schema      string
	Question    string
}

type composeVars struct {
	Fallback string
	Question string
	SQL      string
	Result   string
}

func (p *Prompts) Synthesize(d database.Dialect, question, schemaText string, topK int) (string, error) {
	v := synthesizeVars{
		DialectName: "PostgreSQL",
		QuoteName:   "double quotes",
		Quote:       `"`,
		CurrentDate: "CURRENT_DATE",
		TopK:        topK,
		Schema:      schemaText,
		Question:    question,
	}
	if d == database.DialectMySQL {
		v.DialectName, v.QuoteName, v.Quote, v.CurrentDate = "MySQL", "backticks", "`", "CURDATE()"
	}
	return render(p.synthesize, v)
}

func (p *Prompts) Compose(question, sql, resultText string) (string, error) {
	return render(p.compose, composeVars{
		Fallback: FallbackPhrase,
		Question: question,
		SQL:      sql,
		Result:   resultText,
	})
}

func render(t *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", t.Name(), err)
	}
	return sb.String(), nil
}
