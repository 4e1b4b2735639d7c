package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateConfigAcceptsDefaultConfig(t *testing.T) {
	configFile = ""
	cmd := validateConfigCmd()
	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("validate-config on empty path: %v", err)
	}
}

func TestValidateConfigRejectsBadRule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rift.yaml")
	badYAML := "rules:\n  - id: broken\n    match:\n      path:\n        regex: \"[unterminated\"\n"
	if err := os.WriteFile(path, []byte(badYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	configFile = path
	defer func() { configFile = "" }()
	cmd := validateConfigCmd()
	if err := cmd.RunE(cmd, nil); err == nil {
		t.Fatal("expected an error for an invalid path regex, got nil")
	}
}

func TestLintStubsReportsDuplicateID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imposter.json")
	doc := `{
		"port": 4000,
		"protocol": "http",
		"stubs": [
			{"id": "dup", "predicates": [{"equals": {"path": "/a"}}], "responses": [{"is": {"statusCode": 200}}]},
			{"id": "dup", "predicates": [{"equals": {"path": "/b"}}], "responses": [{"is": {"statusCode": 200}}]}
		]
	}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write imposter doc: %v", err)
	}

	cmd := lintStubsCmd()
	if err := cmd.RunE(cmd, []string{path}); err != nil {
		t.Fatalf("lint-stubs: %v", err)
	}
}

func TestLintStubsRejectsUnreadableFile(t *testing.T) {
	cmd := lintStubsCmd()
	if err := cmd.RunE(cmd, []string{filepath.Join(t.TempDir(), "missing.json")}); err == nil {
		t.Fatal("expected an error for a missing file, got nil")
	}
}
