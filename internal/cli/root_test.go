package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/greeny/internal/errs"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("DATABASE_URL", "")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	isolate(t)
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "greeny dev")
}

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCmd()
	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "migrate", "seed", "ask", "schema", "version"} {
		assert.True(t, names[want], want)
	}
}

func TestStoreCommands_RequireDSN(t *testing.T) {
	isolate(t)
	for _, args := range [][]string{{"schema"}, {"migrate"}, {"seed"}, {"ask", "how many companies?"}} {
		_, err := execute(t, args...)
		require.Error(t, err, args)
		assert.True(t, errs.IsInvalidInput(err), args)
		assert.Contains(t, err.Error(), "DSN is required", args)
	}
}

func TestUnsupportedDriverFlag(t *testing.T) {
	isolate(t)
	_, err := execute(t, "--driver", "oracle", "--dsn", "oracle://x", "schema")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}

func TestAsk_RequiresQuestion(t *testing.T) {
	isolate(t)
	_, err := execute(t, "ask")
	assert.Error(t, err)
}
