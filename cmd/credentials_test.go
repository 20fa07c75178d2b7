package cmd

import (
	"bytes"
	"strings"
	"testing"

	"news-radar/internal/config"
)

func TestCredentialsListsMaskedKeysOnly(t *testing.T) {
	prev := appCfg
	t.Cleanup(func() { appCfg = prev })
	appCfg = config.Config{Classifier: config.ClassifierConfig{APIKeys: []string{"sk-live-abcdef123456", "sk-live-zyxwvu987654"}}}

	var out bytes.Buffer
	credentialsCmd.SetOut(&out)
	t.Cleanup(func() { credentialsCmd.SetOut(nil) })
	if err := credentialsCmd.RunE(credentialsCmd, nil); err != nil {
		t.Fatalf("RunE: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "2 keys configured") {
		t.Fatalf("missing count: %q", got)
	}
	if strings.Contains(got, "abcdef123456") || strings.Contains(got, "zyxwvu987654") {
		t.Fatalf("unmasked key printed: %q", got)
	}
	if strings.Contains(strings.ToLower(got), "healthy") {
		t.Fatalf("health is not known to this command: %q", got)
	}
}
