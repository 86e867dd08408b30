package config

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Port != "8081" {
		t.Errorf("port = %s, want 8081", cfg.Port)
	}
	if cfg.MaxMessageLength != 4000 {
		t.Errorf("max message length = %d, want 4000", cfg.MaxMessageLength)
	}
	if cfg.MessageLimit != 30 || cfg.MessageWindow != time.Minute {
		t.Errorf("message limit = %d/%s, want 30/1m", cfg.MessageLimit, cfg.MessageWindow)
	}
	if cfg.CrisisAlertLimit != 3 || cfg.CrisisAlertWindow != 5*time.Minute {
		t.Errorf("crisis limit = %d/%s, want 3/5m", cfg.CrisisAlertLimit, cfg.CrisisAlertWindow)
	}
	if cfg.QueueCapPerUser != 100 || cfg.QueueTTL != 168*time.Hour {
		t.Errorf("queue = %d/%s, want 100/168h", cfg.QueueCapPerUser, cfg.QueueTTL)
	}
	if cfg.CounselorLoadCap != 5 {
		t.Errorf("counselor load cap = %d, want 5", cfg.CounselorLoadCap)
	}
	if cfg.EscalateCritical != 2*time.Minute || cfg.EscalateLow != 30*time.Minute {
		t.Errorf("escalation delays = %s/%s, want 2m/30m", cfg.EscalateCritical, cfg.EscalateLow)
	}
	if cfg.CrisisConfidenceFloor != 0.45 {
		t.Errorf("confidence floor = %v, want 0.45", cfg.CrisisConfidenceFloor)
	}
}

func TestRejectsNonPositiveBounds(t *testing.T) {
	cases := map[string]string{
		"COUNSELOR_LOAD_CAP":   "0",
		"MAX_ESCALATION_LEVEL": "0",
		"QUEUE_CAP_PER_USER":   "-1",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := LoadConfig(); err == nil {
				t.Fatalf("%s=%s accepted", key, value)
			}
		})
	}
}
