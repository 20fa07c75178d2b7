package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestFillDefaults(t *testing.T) {
	t.Setenv(APIKeysEnv, "")
	var c Config
	c.Sources.RSS = []RSSFeed{{Name: "blog", URL: "https://example.com/feed"}}
	c.FillDefaults()

	if c.Storage.Type != "redis" {
		t.Errorf("storage type = %q", c.Storage.Type)
	}
	if c.Sources.Lookback != 72*time.Hour {
		t.Errorf("lookback = %v", c.Sources.Lookback)
	}
	if c.Sources.RSS[0].Tier != "trusted" {
		t.Errorf("rss tier default = %q", c.Sources.RSS[0].Tier)
	}
	if c.Scheduler.MinAnalysisInterval != 15*time.Minute || c.Scheduler.StaleThreshold != 30*time.Minute {
		t.Errorf("scheduler defaults: %+v", c.Scheduler)
	}
	if c.Classifier.Retries() != 2 {
		t.Errorf("max retries = %d", c.Classifier.Retries())
	}
	if c.Credentials.CooldownMultiplier != 2 {
		t.Errorf("multiplier = %v", c.Credentials.CooldownMultiplier)
	}
}

func TestFillDefaultsMergesEnvKeys(t *testing.T) {
	t.Setenv(APIKeysEnv, " sk-two ,sk-one,, sk-three")
	c := Config{Classifier: ClassifierConfig{APIKeys: []string{"sk-one", ""}}}
	c.FillDefaults()
	want := []string{"sk-one", "sk-two", "sk-three"}
	if len(c.Classifier.APIKeys) != len(want) {
		t.Fatalf("keys = %v, want %v", c.Classifier.APIKeys, want)
	}
	for i := range want {
		if c.Classifier.APIKeys[i] != want[i] {
			t.Errorf("key[%d] = %q, want %q", i, c.Classifier.APIKeys[i], want[i])
		}
	}
}

func TestMaxRetriesZeroDisablesRetries(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader("classifier:\n  max_retries: 0\n")); err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	c.FillDefaults()
	if got := c.Classifier.Retries(); got != 0 {
		t.Fatalf("explicit max_retries 0 became %d", got)
	}

	var unset Config
	unset.FillDefaults()
	if got := unset.Classifier.Retries(); got != 2 {
		t.Fatalf("unset max_retries = %d, want 2", got)
	}
}
