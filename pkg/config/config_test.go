package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// isolate 清理可能影响测试的宿主机环境变量
func isolate(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_RESPONSES_ENDPOINT", "OPENAI_CHAT_ENDPOINT",
		"OPENAI_REQUEST_STYLE", "OPENAI_RESPONSE_FORMAT", "GEMINI_API_KEY", "OLLAMA_API_KEY",
		"OLLAMA_BASE_URL", "TASKTER_DISABLE_HOST_CONFIG",
	} {
		t.Setenv(key, "")
	}
	// 避免读取工作目录下的 config.*
	dir := t.TempDir()
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir failed: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", dir)
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Paths.DataDir != DefaultDataDir {
		t.Errorf("Expected data dir %q, got %q", DefaultDataDir, cfg.Paths.DataDir)
	}
	if cfg.Paths.Board != filepath.Join(DefaultDataDir, "board.json") {
		t.Errorf("Unexpected board path %q", cfg.Paths.Board)
	}
	if cfg.Paths.RunningAgents != filepath.Join(DefaultDataDir, "running_agents.json") {
		t.Errorf("Unexpected running agents path %q", cfg.Paths.RunningAgents)
	}
	if cfg.Providers.OpenAI.ResponsesEndpoint != "https://api.openai.com/v1/responses" {
		t.Errorf("Unexpected responses endpoint %q", cfg.Providers.OpenAI.ResponsesEndpoint)
	}
	if cfg.Providers.OpenAI.ChatEndpoint != "https://api.openai.com/v1/chat/completions" {
		t.Errorf("Unexpected chat endpoint %q", cfg.Providers.OpenAI.ChatEndpoint)
	}
	if cfg.Providers.Ollama.BaseURL != DefaultOllamaBaseURL {
		t.Errorf("Unexpected ollama base url %q", cfg.Providers.Ollama.BaseURL)
	}
	if cfg.Scheduler.Timezone != "America/New_York" {
		t.Errorf("Unexpected timezone %q", cfg.Scheduler.Timezone)
	}
	if cfg.Storage.Driver != "json" {
		t.Errorf("Unexpected storage driver %q", cfg.Storage.Driver)
	}
	if cfg.APIKey("gemini") != "" {
		t.Errorf("Expected no gemini key")
	}
}

func TestLoad_LegacyEnv(t *testing.T) {
	isolate(t)
	t.Setenv("GEMINI_API_KEY", "  g-key ")
	t.Setenv("OPENAI_BASE_URL", "https://proxy.example.com/")
	t.Setenv("OPENAI_REQUEST_STYLE", "chat")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.APIKey("gemini") != "g-key" {
		t.Errorf("Expected legacy gemini key, got %q", cfg.APIKey("gemini"))
	}
	if cfg.Providers.OpenAI.ChatEndpoint != "https://proxy.example.com/v1/chat/completions" {
		t.Errorf("Unexpected chat endpoint %q", cfg.Providers.OpenAI.ChatEndpoint)
	}
	if cfg.Providers.OpenAI.RequestStyle != "chat" {
		t.Errorf("Unexpected request style %q", cfg.Providers.OpenAI.RequestStyle)
	}
}

func TestLoad_DisableHostConfig(t *testing.T) {
	isolate(t)
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("TASKTER_DISABLE_HOST_CONFIG", "1")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.APIKey("gemini") != "" {
		t.Errorf("Expected legacy env to be ignored, got %q", cfg.APIKey("gemini"))
	}
}

func TestLoad_FileAndOptions(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	content := `
paths:
  data_dir: ` + filepath.Join(dir, "data") + `
  board: ` + filepath.Join(dir, "custom-board.json") + `
providers:
  openai:
    api_key: from-file
    responses_endpoint: https://example.com/responses
scheduler:
  max_concurrency: 4
tools:
  timeout: 90s
`
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(file, WithOllama("", "http://ollama:11434/"), WithOpenAI(OpenAIConfig{APIKey: "from-flag"}))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Paths.Board != filepath.Join(dir, "custom-board.json") {
		t.Errorf("Unexpected board path %q", cfg.Paths.Board)
	}
	if cfg.Paths.Agents != filepath.Join(dir, "data", "agents.json") {
		t.Errorf("Unexpected agents path %q", cfg.Paths.Agents)
	}
	if cfg.APIKey("openai") != "from-flag" {
		t.Errorf("Expected option to win, got %q", cfg.APIKey("openai"))
	}
	if cfg.Providers.OpenAI.ResponsesEndpoint != "https://example.com/responses" {
		t.Errorf("Unexpected responses endpoint %q", cfg.Providers.OpenAI.ResponsesEndpoint)
	}
	if cfg.Providers.Ollama.BaseURL != "http://ollama:11434" {
		t.Errorf("Unexpected ollama base url %q", cfg.Providers.Ollama.BaseURL)
	}
	if cfg.Scheduler.MaxConcurrency != 4 {
		t.Errorf("Unexpected max concurrency %d", cfg.Scheduler.MaxConcurrency)
	}
	if cfg.Tools.Timeout != 90*time.Second {
		t.Errorf("Unexpected tool timeout %v", cfg.Tools.Timeout)
	}
}

func TestLoad_PrefixedEnv(t *testing.T) {
	isolate(t)
	t.Setenv("TASKTER_PROVIDERS__OLLAMA__API_KEY", "env-ollama")
	t.Setenv("TASKTER_STORAGE__DRIVER", "sqlite")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.APIKey("ollama") != "env-ollama" {
		t.Errorf("Expected env key, got %q", cfg.APIKey("ollama"))
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Errorf("Expected sqlite driver, got %q", cfg.Storage.Driver)
	}
}

func TestResolve_InvalidResponseFormat(t *testing.T) {
	cfg := Default()
	cfg.Providers.OpenAI.ResponseFormat = "{not json"
	if err := cfg.Resolve(); err == nil {
		t.Error("Expected error for invalid response_format JSON")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}

	cfg.Storage.Driver = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for unknown storage driver")
	}

	cfg = Default()
	cfg.Telegram.Enabled = true
	if err := cfg.Validate(); err != ErrTelegramToken {
		t.Errorf("Expected ErrTelegramToken, got %v", err)
	}
}
