package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/greeny/internal/database"
)

func TestPrompts_SynthesizeByDialect(t *testing.T) {
	p, err := LoadPrompts()
	require.NoError(t, err)

	pg, err := p.Synthesize(database.DialectPostgres, "How many companies?", "companyinfo:\n  - id (integer)\n", 5)
	require.NoError(t, err)
	assert.Contains(t, pg, "PostgreSQL expert")
	assert.Contains(t, pg, "double quotes")
	assert.Contains(t, pg, "LIMIT 5")
	assert.Contains(t, pg, "companyinfo:\n  - id (integer)\n")

	my, err := p.Synthesize(database.DialectMySQL, "How many companies?", "companyinfo:\n  - id (int)\n", 7)
	require.NoError(t, err)
	assert.Contains(t, my, "MySQL expert")
	assert.Contains(t, my, "backticks (`)")
	assert.Contains(t, my, "CURDATE()")
	assert.Contains(t, my, "LIMIT 7")
}

func TestPrompts_Compose(t *testing.T) {
	p, err := LoadPrompts()
	require.NoError(t, err)

	out, err := p.Compose("How many companies?", "SELECT COUNT(*) FROM companyinfo", "Error: relation does not exist")
	require.NoError(t, err)
	assert.Contains(t, out, FallbackPhrase)
	assert.Contains(t, out, "Question: How many companies?")
	assert.Contains(t, out, "SQL Result: Error: relation does not exist")
}
