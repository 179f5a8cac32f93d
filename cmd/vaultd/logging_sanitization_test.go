package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"stellavault/observability/logging"
)

func TestStartupLogRedactsOperatorIdentities(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{}))

	adminAddress := "svt1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh"
	keystorePath := "/var/lib/vaultd/operator.key"
	logger.Info("configuration loaded",
		slog.String("network", "stellavault-local"),
		logging.MaskField("admin", adminAddress),
		logging.MaskField("keystore", keystorePath))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to decode log payload: %v", err)
	}

	for _, key := range []string{"admin", "keystore", "fee_collector"} {
		if logging.IsAllowlisted(key) {
			t.Fatalf("%s must not be allowlisted for logging: %v", key, logging.RedactionAllowlist())
		}
	}

	raw := buf.Bytes()
	if bytes.Contains(raw, []byte(adminAddress)) {
		t.Fatalf("log output leaked admin address: %s", raw)
	}
	if bytes.Contains(raw, []byte(keystorePath)) {
		t.Fatalf("log output leaked keystore path: %s", raw)
	}

	for _, key := range []string{"admin", "keystore"} {
		value, ok := entry[key].(string)
		if !ok {
			t.Fatalf("expected string %s attribute, got %T", key, entry[key])
		}
		if value != logging.RedactedValue {
			t.Fatalf("expected redacted %s, got %q", key, value)
		}
	}

	if network, _ := entry["network"].(string); network != "stellavault-local" {
		t.Fatalf("allowlisted network must pass through, got %q", entry["network"])
	}
}

func TestMaskValueLeavesEmptyValuesVisible(t *testing.T) {
	if got := logging.MaskValue(""); got != "" {
		t.Fatalf("empty value should pass through, got %q", got)
	}
	if got := logging.MaskValue("svt1operator"); got != logging.RedactedValue {
		t.Fatalf("non-empty value must be masked, got %q", got)
	}
}
