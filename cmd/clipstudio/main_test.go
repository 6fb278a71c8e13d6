package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"clipstudio/apitest"
	"clipstudio/types"
)

type cliTestEnv struct {
	fake       *apitest.Server
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	for _, key := range []string{"OPENAI_API_KEY", "CLIPSTUDIO_URL", "CLIPSTUDIO_CREDENTIALS", "CLIPSTUDIO_CREDENTIALS_PATH", "KAFKA_BROKERS", "S3_BUCKET", "CLIPSTUDIO_ARCHIVE_DIR"} {
		t.Setenv(key, "")
	}

	fake := apitest.New()
	srv := fake.Start()
	t.Cleanup(srv.Close)

	base := t.TempDir()
	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[api]
base_url = %q
clip_poll_interval_ms = 10
job_poll_interval_ms = 10

[logging]
level = "error"
file = %q

[credentials]
backend = "file"
path = %q

[archive]
dir = %q
`, srv.URL, filepath.Join(base, "clipstudio.log"), filepath.Join(base, "credentials.json"), filepath.Join(base, "archive"))
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	return &cliTestEnv{fake: fake, configPath: configPath, baseDir: base}
}

func runCLI(t *testing.T, env *cliTestEnv, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestKeySetShowClear(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "", "key", "show")
	if err != nil || strings.TrimSpace(out) != "(not set)" {
		t.Fatalf("show before set = %q, %v", out, err)
	}

	if _, _, err := runCLI(t, env, "sk-abcdefghijklmnop\n", "key", "set"); err != nil {
		t.Fatalf("key set: %v", err)
	}
	out, _, err = runCLI(t, env, "", "key", "show")
	if err != nil {
		t.Fatalf("key show: %v", err)
	}
	if !strings.HasPrefix(out, "sk-") || !strings.Contains(out, "mnop") || strings.Contains(out, "abcdefghijkl") {
		t.Fatalf("key show = %q; want masked key", out)
	}

	info, err := os.Stat(filepath.Join(env.baseDir, "credentials.json"))
	if err != nil {
		t.Fatalf("stat credentials: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("credentials mode = %v; want 0600", info.Mode().Perm())
	}

	if _, _, err := runCLI(t, env, "", "key", "clear"); err != nil {
		t.Fatalf("key clear: %v", err)
	}
	out, _, _ = runCLI(t, env, "", "key", "show")
	if strings.TrimSpace(out) != "(not set)" {
		t.Fatalf("show after clear = %q", out)
	}
}

func TestGenerateSavesClips(t *testing.T) {
	env := setupCLITestEnv(t)
	outDir := filepath.Join(env.baseDir, "out")

	if _, _, err := runCLI(t, env, "", "key", "set", "sk-test-key-123456"); err != nil {
		t.Fatalf("key set: %v", err)
	}

	out, _, err := runCLI(t, env, "", "generate",
		"-p", "a kite over the dunes", "-p", "waves at night", "-d", "8", "-o", outDir)
	if err != nil {
		t.Fatalf("generate: %v\n%s", err, out)
	}
	if !strings.Contains(out, "$1.60") {
		t.Fatalf("output missing total cost: %s", out)
	}

	subs := env.fake.Submissions()
	if len(subs) != 2 {
		t.Fatalf("submissions = %d; want 2", len(subs))
	}
	for _, s := range subs {
		if s.Duration != 8 || s.APIKey != "sk-test-key-123456" {
			t.Fatalf("unexpected submission %+v", s)
		}
		if _, err := os.Stat(filepath.Join(outDir, "clip_"+s.ClipID+".mp4")); err != nil {
			t.Fatalf("clip %s not saved: %v", s.ClipID, err)
		}
		if _, err := os.Stat(filepath.Join(env.baseDir, "archive", "clip_"+s.ClipID+".mp4")); err != nil {
			t.Fatalf("clip %s not archived: %v", s.ClipID, err)
		}
	}
}

func TestGenerateAsksBeforeDefaultKey(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "n\n", "generate", "-p", "a lantern", "-o", env.baseDir)
	if err == nil || !strings.Contains(err.Error(), "no API key") {
		t.Fatalf("err = %v; want no API key error", err)
	}
	if !strings.Contains(out, "[y/N]") {
		t.Fatalf("no confirmation prompt in output: %q", out)
	}
	if len(env.fake.Submissions()) != 0 {
		t.Fatal("declined generation reached the server")
	}

	if _, _, err := runCLI(t, env, "y\n", "generate", "-p", "a lantern", "-o", env.baseDir); err != nil {
		t.Fatalf("generate after confirming: %v", err)
	}
	subs := env.fake.Submissions()
	if len(subs) != 1 || subs[0].APIKey != "" {
		t.Fatalf("submissions = %+v; want one without api key", subs)
	}
}

func TestGenerateReportsFailedClips(t *testing.T) {
	env := setupCLITestEnv(t)
	env.fake.ScriptClips(
		types.ClipStatusResponse{Status: types.ClipGenerating},
		types.ClipStatusResponse{Status: types.ClipFailed, Error: "content policy"},
	)

	out, _, err := runCLI(t, env, "", "generate", "--yes", "-p", "something", "-o", env.baseDir)
	if err == nil || !strings.Contains(err.Error(), "1 of 1 clips failed") {
		t.Fatalf("err = %v; want failure count", err)
	}
	if !strings.Contains(out, "content policy") {
		t.Fatalf("output missing server error: %s", out)
	}
}

func TestGenerateRejectsBadInput(t *testing.T) {
	env := setupCLITestEnv(t)

	cases := []struct {
		name string
		args []string
		want string
	}{
		{"no prompt", []string{"generate", "--yes"}, "at least one --prompt"},
		{"bad duration", []string{"generate", "--yes", "-p", "x", "-d", "5"}, "duration must be one of"},
		{"missing ref", []string{"generate", "--yes", "-p", "x", "--ref", "/nonexistent.png"}, "nonexistent.png"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, _, err := runCLI(t, env, "", c.args...)
			if err == nil || !strings.Contains(err.Error(), c.want) {
				t.Fatalf("err = %v; want %q", err, c.want)
			}
		})
	}
	if len(env.fake.Submissions()) != 0 {
		t.Fatal("invalid input reached the server")
	}
}

func TestScriptHeadless(t *testing.T) {
	env := setupCLITestEnv(t)
	outDir := filepath.Join(env.baseDir, "videos")

	out, _, err := runCLI(t, env, "", "script", "--headless",
		"--text", "A fox wakes. It runs through snow. It finds the den.",
		"--style", "watercolor", "--max-clips", "4", "-o", outDir)
	if err != nil {
		t.Fatalf("script: %v\n%s", err, out)
	}

	reqs := env.fake.ProcessRequests()
	if len(reqs) != 1 || reqs[0].Style != "watercolor" || reqs[0].MaxClips != 4 {
		t.Fatalf("process requests = %+v", reqs)
	}
	gens := env.fake.GenerateRequests()
	if len(gens) != 1 || gens[0].GlobalStyle != "watercolor" {
		t.Fatalf("generate requests = %+v", gens)
	}
	if !strings.Contains(out, "Video saved to") {
		t.Fatalf("output missing saved path: %s", out)
	}
	matches, _ := filepath.Glob(filepath.Join(outDir, "video_*.mp4"))
	if len(matches) != 1 {
		t.Fatalf("saved videos = %v; want one", matches)
	}
}

func TestScriptHeadlessJobFailure(t *testing.T) {
	env := setupCLITestEnv(t)
	env.fake.ScriptJobs(
		types.JobStatusResponse{Status: types.JobProcessing, Progress: 5},
		types.JobStatusResponse{Status: types.JobFailed, Error: "stitching failed"},
	)

	_, _, err := runCLI(t, env, "", "script", "--headless", "--text", "One. Two. Three.", "-o", env.baseDir)
	if err == nil || !strings.Contains(err.Error(), "stitching failed") {
		t.Fatalf("err = %v; want job failure", err)
	}
}

func TestScriptHeadlessNeedsSource(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, env, "", "script", "--headless")
	if err == nil || !strings.Contains(err.Error(), "needs a script") {
		t.Fatalf("err = %v", err)
	}
}

func TestConfigShowAndInit(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "", "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "clip_poll_interval_ms = 10") {
		t.Fatalf("config show output:\n%s", out)
	}

	target := filepath.Join(env.baseDir, "new", "config.toml")
	if _, _, err := runCLI(t, env, "", "config", "init", "--path", target); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, _, err := runCLI(t, env, "", "config", "init", "--path", target); err == nil {
		t.Fatal("second init without --overwrite should fail")
	}
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"#", "Prompt"}, [][]string{{"1", "a kite"}, {"2"}}, []columnAlignment{alignRight})
	for _, want := range []string{"#", "PROMPT", "a kite", "╭"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}
	if renderTable(nil, nil, nil) != "" {
		t.Fatal("table without headers should render empty")
	}
}
