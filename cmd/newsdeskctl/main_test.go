package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_UserLifecycle(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("NEWSDESK_PASSWORD", "")
	dbFlags := []string{"--database-driver", "sqlite", "--database-dsn", filepath.Join(t.TempDir(), "ctl.db")}
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, run(ctx, append([]string{"createuser", "-u", "editor", "-p", "s3cret"}, dbFlags...), &out))
	assert.Contains(t, out.String(), `created user "editor"`)

	out.Reset()
	require.NoError(t, run(ctx, append([]string{"token", "--username", "editor"}, dbFlags...), &out))
	first := strings.TrimSpace(out.String())
	assert.Len(t, first, 40)

	out.Reset()
	require.NoError(t, run(ctx, append([]string{"token", "--username", "editor"}, dbFlags...), &out))
	assert.Equal(t, first, strings.TrimSpace(out.String()))

	err := run(ctx, append([]string{"createuser", "-u", "editor", "-p", "other"}, dbFlags...), &out)
	assert.Error(t, err)

	out.Reset()
	require.NoError(t, run(ctx, append([]string{"deleteuser", "--username", "editor"}, dbFlags...), &out))
	assert.Contains(t, out.String(), `deleted user "editor"`)

	err = run(ctx, append([]string{"token", "--username", "editor"}, dbFlags...), &out)
	assert.ErrorContains(t, err, "not found")
}

func TestRun_BadInvocations(t *testing.T) {
	chdir(t, t.TempDir())
	ctx := context.Background()
	var out bytes.Buffer

	assert.ErrorContains(t, run(ctx, nil, &out), "missing command")
	assert.ErrorContains(t, run(ctx, []string{"token"}, &out), "--username is required")
	assert.ErrorContains(t, run(ctx, []string{"token", "-u", "x", "extra"}, &out), "unexpected argument")
	assert.ErrorContains(t, run(ctx, []string{"frobnicate", "-u", "x", "--database-driver", "sqlite", "--database-dsn", filepath.Join(t.TempDir(), "x.db")}, &out), "unknown command")
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent to testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
