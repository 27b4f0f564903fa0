package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/So-hel/signalmatrix-repo/internal/analysis"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := newApp(&stdout, &stderr).RunContext(context.Background(), append([]string{"signalmatrix"}, args...))
	return stdout.String(), err
}

func githubServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/users/octocat":
			_, _ = w.Write([]byte(`{"login":"octocat","name":"The Octocat","bio":null,"public_repos":0,"followers":3}`))
		case "/users/octocat/repos":
			_, _ = w.Write([]byte(`[]`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Not Found"}`))
		}
	}))
	t.Cleanup(srv.Close)

	t.Setenv("GITHUB_API_URL", srv.URL)
	t.Setenv("GITHUB_TOKEN", "")
	return srv
}

func TestScoreCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"user":{"login":"octocat","bio":"hi"},"repos":[]}`), 0o600))

	out, err := run(t, "score", path)
	require.NoError(t, err)

	var bundle analysis.ScoreBundle
	require.NoError(t, json.Unmarshal([]byte(out), &bundle))
	assert.Equal(t, analysis.Compute(analysis.NewSnapshot(analysis.User{Login: "octocat", Bio: "hi"}, nil, nil)), bundle)
}

func TestScoreCommand_Errors(t *testing.T) {
	_, err := run(t, "score")
	assert.Error(t, err)

	_, err = run(t, "score", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"user":`), 0o600))
	_, err = run(t, "score", bad)
	assert.Error(t, err)
}

func TestAnalyzeCommand_NoAI(t *testing.T) {
	githubServer(t)

	out, err := run(t, "analyze", "--no-ai", "octocat")
	require.NoError(t, err)

	var report map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "0/50", report["overall_score"])
	assert.Equal(t, analysis.DecisionNotReady, report["recruiter_decision"])
	assert.Equal(t, "N/A", report["executive_summary"])
}

func TestAnalyzeCommand_Errors(t *testing.T) {
	githubServer(t)

	_, err := run(t, "analyze", "--no-ai", "ghost")
	require.Error(t, err)
	assert.Equal(t, "GitHub user 'ghost' not found", err.Error())

	_, err = run(t, "analyze", "bad_name")
	assert.Error(t, err)

	_, err = run(t, "analyze", "--no-ai", "--resume", filepath.Join(t.TempDir(), "nope.txt"), "octocat")
	assert.Error(t, err)
}

func TestConfigCommand(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test-abcd1234")
	t.Setenv("GITHUB_TOKEN", "")

	out, err := run(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "OPENAI_API_KEY:")
	assert.Contains(t, out, "****1234")
	assert.Contains(t, out, "MISSING")
	assert.NotContains(t, out, "sk-test")
}
