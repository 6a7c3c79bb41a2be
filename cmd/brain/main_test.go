package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AmitS1009/Constructure-AI/internal/testutil"
	"github.com/AmitS1009/Constructure-AI/pkg/state"
)

type cliEnv struct {
	configPath string
	storePath  string
}

func newCLIEnv(t *testing.T, baseURL string) cliEnv {
	t.Helper()
	t.Setenv(envBaseURL, "")
	t.Setenv(envToken, "")

	dir := t.TempDir()
	env := cliEnv{
		configPath: filepath.Join(dir, "config.yaml"),
		storePath:  filepath.Join(dir, "data", "threads.db"),
	}
	config := "base_url: " + baseURL + "\n" +
		"token: secret\n" +
		"timeout: 5s\n" +
		"log_level: error\n" +
		"store_path: " + env.storePath + "\n"
	require.NoError(t, os.WriteFile(env.configPath, []byte(config), 0o600))
	return env
}

func (e cliEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	args = append(args, "--config", e.configPath)
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestAskAndManageThreads(t *testing.T) {
	srv := testutil.NewQueryServer(t, testutil.Bytes(
		"__THREAD_ID__:42\n\n", "D-101 is ", "90 min rated.",
		"\n\n__SOURCES__\n", `[{"doc_name":"doors.pdf","page_num":2,"text":"D-101 90 min"}]`))
	env := newCLIEnv(t, srv.URL)

	stdout, _, err := env.run(t, "ask", "Which doors are", "fire rated?")
	require.NoError(t, err)
	assert.Equal(t, "D-101 is 90 min rated.\n\nSources:\n  - doors.pdf (p. 2)\n\nThread: 42\n", stdout)

	requests := srv.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "Bearer secret", requests[0].Header.Get("Authorization"))
	assert.JSONEq(t, `{"question":"Which doors are fire rated?","history":[],"thread_id":null}`, string(requests[0].Body))

	stdout, _, err = env.run(t, "threads")
	require.NoError(t, err)
	assert.Contains(t, stdout, "ID")
	assert.Contains(t, stdout, "Which doors are fire rated?")

	stdout, _, err = env.run(t, "show", "42")
	require.NoError(t, err)
	assert.Equal(t, "You: Which doors are fire rated?\n\nBrain: D-101 is 90 min rated.\n  - doors.pdf (p. 2)\n", stdout)

	out := filepath.Join(t.TempDir(), "thread.html")
	_, _, err = env.run(t, "export", "42", "--out", out)
	require.NoError(t, err)
	page, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(page), "<title>Which doors are fire rated?</title>")

	stdout, _, err = env.run(t, "delete", "42")
	require.NoError(t, err)
	assert.Equal(t, "Deleted thread 42.\n", stdout)

	_, _, err = env.run(t, "show", "42")
	assert.True(t, errors.Is(err, state.ErrThreadNotFound))
}

func TestAskContinuesThread(t *testing.T) {
	srv := testutil.NewQueryServer(t, testutil.Bytes("Follow-up answer."))
	env := newCLIEnv(t, srv.URL)

	require.NoError(t, os.MkdirAll(filepath.Dir(env.storePath), 0o700))
	store, err := state.OpenBoltStore(env.storePath)
	require.NoError(t, err)
	require.NoError(t, store.SaveTurn(context.Background(), 8, seedTurn()...))
	require.NoError(t, store.Close())

	stdout, _, err := env.run(t, "ask", "--last", "And the frames?")
	require.NoError(t, err)
	assert.Equal(t, "Follow-up answer.\n\nThread: 8\n", stdout)

	requests := srv.Requests()
	require.Len(t, requests, 1)
	assert.JSONEq(t, `{
		"question": "And the frames?",
		"history": [
			{"role": "user", "content": "Which doors are fire rated?"},
			{"role": "assistant", "content": "D-101."}
		],
		"thread_id": 8
	}`, string(requests[0].Body))

	stdout, _, err = env.run(t, "ask", "--thread", "8", "One more?")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Thread: 8")
}

func TestAskFailure(t *testing.T) {
	srv := testutil.NewQueryServer(t, nil, testutil.WithStatus(401, "invalid token"))
	env := newCLIEnv(t, srv.URL)

	_, _, err := env.run(t, "ask", "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestUsageErrors(t *testing.T) {
	env := newCLIEnv(t, "http://localhost:1")

	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown command", args: []string{"frobnicate"}},
		{name: "ask without question", args: []string{"ask"}},
		{name: "thread and last", args: []string{"ask", "--thread", "3", "--last", "q"}},
		{name: "show without id", args: []string{"show"}},
		{name: "show bad id", args: []string{"show", "abc"}},
		{name: "delete zero id", args: []string{"delete", "0"}},
		{name: "unknown flag", args: []string{"threads", "--bogus"}},
		{name: "bad log level", args: []string{"threads", "--log-level", "loud"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := env.run(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), nil, &stdout, &stderr))
	for _, cmd := range commands {
		assert.Contains(t, stderr.String(), cmd.summary)
	}
	assert.True(t, strings.Contains(stderr.String(), envBaseURL))
}
