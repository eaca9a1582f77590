package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "API_KEY", "GEMINI_API_KEY", "USE_MOCK_AI", "CONNECT_DELAY", "REPLY_DELAY", "DOCTOR_CHAT_ID", "MODEL_NAME"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.ModelName != "gemini-3-flash-preview" {
		t.Errorf("ModelName = %q", cfg.ModelName)
	}
	if !cfg.UseMockAI {
		t.Error("expected mock AI without an API key")
	}
	if cfg.ConnectDelay != 2*time.Second {
		t.Errorf("ConnectDelay = %v, want 2s", cfg.ConnectDelay)
	}
	if cfg.ReplyDelay != 1500*time.Millisecond {
		t.Errorf("ReplyDelay = %v, want 1.5s", cfg.ReplyDelay)
	}
	if cfg.DoctorChatID != 0 {
		t.Errorf("DoctorChatID = %d, want 0", cfg.DoctorChatID)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "secret")
	t.Setenv("USE_MOCK_AI", "")
	t.Setenv("CONNECT_DELAY", "250ms")
	t.Setenv("REPLY_DELAY", "not-a-duration")
	t.Setenv("DOCTOR_CHAT_ID", "42")

	cfg := Load()

	if cfg.APIKey != "secret" {
		t.Errorf("APIKey = %q, want GEMINI_API_KEY fallback", cfg.APIKey)
	}
	if cfg.UseMockAI {
		t.Error("expected real AI client when a key is set")
	}
	if cfg.ConnectDelay != 250*time.Millisecond {
		t.Errorf("ConnectDelay = %v", cfg.ConnectDelay)
	}
	if cfg.ReplyDelay != 1500*time.Millisecond {
		t.Errorf("invalid duration should keep default, got %v", cfg.ReplyDelay)
	}
	if cfg.DoctorChatID != 42 {
		t.Errorf("DoctorChatID = %d, want 42", cfg.DoctorChatID)
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("KAFKA_TOPIC=from_dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("KAFKA_TOPIC", "")
	os.Unsetenv("KAFKA_TOPIC")

	LoadEnv(path)

	if got := Load().KafkaTopic; got != "from_dotenv" {
		t.Errorf("KafkaTopic = %q, want value from .env", got)
	}
}
