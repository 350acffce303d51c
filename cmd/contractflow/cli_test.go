package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/contractflow/pkg/core"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	verbose, dataDir, user, configPath = false, "", "", ""
	inputFile, showJSON, showYAML = "", false, false
	explicit, signerName, imageFile, confirm = false, "", "", false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCLI_Workflow(t *testing.T) {
	dir := t.TempDir()
	base := []string{"--data-dir", dir, "--user", "owner"}
	cmd := func(args ...string) []string { return append(append([]string{}, args...), base...) }

	out, err := run(t, "Poster series, three sizes.", cmd("new")...)
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	require.NotEmpty(t, id)

	out, err = run(t, "", cmd("stage", id)...)
	require.NoError(t, err)
	assert.Equal(t, "edit (editable)\n", out)

	_, err = run(t, "", cmd("stage", id, "send")...)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)

	_, err = run(t, "", cmd("stage", id, "sign")...)
	require.NoError(t, err)

	out, err = run(t, "", cmd("sign", id, "designer", "--name", "Alice")...)
	require.NoError(t, err)
	assert.Equal(t, "signed as designer, stage send\n", out)

	_, err = run(t, "Sneaky change.", cmd("edit", id)...)
	assert.ErrorIs(t, err, core.ErrReadOnly)

	_, err = run(t, "", cmd("unsign", id, "designer")...)
	assert.ErrorIs(t, err, core.ErrConfirmationRequired)

	out, err = run(t, "", cmd("unsign", id, "designer", "--confirm")...)
	require.NoError(t, err)
	assert.Equal(t, "unsigned designer, stage edit\n", out)

	_, err = run(t, "Poster series, four sizes.", cmd("edit", id)...)
	require.NoError(t, err)

	out, err = run(t, "", cmd("show", id)...)
	require.NoError(t, err)
	assert.Equal(t, "Poster series, four sizes.", out)

	out, err = run(t, "", cmd("show", id, "--json")...)
	require.NoError(t, err)
	var c core.Contract
	require.NoError(t, json.Unmarshal([]byte(out), &c))
	assert.Equal(t, core.StatusDraft, c.Status)
	assert.Equal(t, 2, c.Metadata.ViewCount)

	out, err = run(t, "", cmd("status", id)...)
	require.NoError(t, err)
	assert.Contains(t, out, "draft (source: ")
}

func TestCLI_SignerFromEnvironment(t *testing.T) {
	t.Setenv("CONTRACTFLOW_USER", "owner")
	base := []string{"--data-dir", t.TempDir()}
	cmd := func(args ...string) []string { return append(append([]string{}, args...), base...) }

	out, err := run(t, "Logo refresh.", cmd("new")...)
	require.NoError(t, err)
	id := strings.TrimSpace(out)

	_, err = run(t, "", cmd("stage", id, "sign")...)
	require.NoError(t, err)
	_, err = run(t, "", cmd("sign", id, "designer", "--name", "Alice")...)
	require.NoError(t, err)

	out, err = run(t, "", cmd("show", id, "--json")...)
	require.NoError(t, err)
	var c core.Contract
	require.NoError(t, json.Unmarshal([]byte(out), &c))
	assert.Equal(t, "owner", c.Metadata.SignedBy)
}

func TestCLI_Version(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "contractflow version "))
}
