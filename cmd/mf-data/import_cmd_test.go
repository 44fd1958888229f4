package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func writeTestSchemas(t *testing.T, dir string) {
	t.Helper()
	writeFile(t, filepath.Join(dir, "10_wave.json"), `{
  "schema_name": "wave",
  "attributes": [
    {"name": "wave_id", "type": "string", "system": true},
    {"name": "wave_name", "type": "string", "required": true}
  ]
}`)
	writeFile(t, filepath.Join(dir, "20_application.json"), `{
  "schema_name": "application",
  "key_attribute": "app_id",
  "display_attribute": "app_name",
  "attributes": [
    {"name": "app_id", "type": "string", "system": true},
    {"name": "app_name", "type": "string", "required": true},
    {"name": "wave_id", "type": "relationship", "rel_entity": "wave", "rel_key": "wave_id", "rel_display_attribute": "wave_name", "listMultiSelect": true}
  ]
}`)
	writeFile(t, filepath.Join(dir, "30_server.json"), `{
  "schema_name": "server",
  "attributes": [
    {"name": "server_id", "type": "string", "system": true},
    {"name": "server_name", "type": "string", "required": true},
    {"name": "app_id", "type": "relationship", "rel_entity": "application", "rel_key": "app_id", "rel_display_attribute": "app_name"},
    {"name": "server_environment", "type": "string"}
  ]
}`)
}

func runCLI(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(args)
	return cmd.Execute()
}

func readRecords(t *testing.T, path string) []map[string]any {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	var records []map[string]any
	if err := json.Unmarshal(b, &records); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return records
}

func TestImportApplyAndRollback(t *testing.T) {
	tmp := t.TempDir()
	schemaDir := filepath.Join(tmp, "schemas")
	inventoryDir := filepath.Join(tmp, "inventory")
	manifestDir := filepath.Join(tmp, "manifests")
	for _, d := range []string{schemaDir, inventoryDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", d, err)
		}
	}
	writeTestSchemas(t, schemaDir)

	input := filepath.Join(tmp, "intake.csv")
	writeFile(t, input, "wave_name,app_name,wave_id,server_name,server_environment\n"+
		"Wave 1,Billing,Wave 1,web01,prod\n"+
		"Wave 1,Billing,,web02,prod\n")

	err := runCLI(t, "import",
		"--input", input,
		"--schemas", schemaDir,
		"--inventory", inventoryDir,
		"--manifest-dir", manifestDir,
		"--apply",
	)
	if err != nil {
		t.Fatalf("import --apply: %v", err)
	}

	servers := readRecords(t, filepath.Join(inventoryDir, "server.json"))
	if len(servers) != 2 {
		t.Fatalf("expected 2 servers, got %d", len(servers))
	}
	apps := readRecords(t, filepath.Join(inventoryDir, "application.json"))
	if len(apps) != 1 {
		t.Fatalf("expected 1 application, got %d", len(apps))
	}
	waves := readRecords(t, filepath.Join(inventoryDir, "wave.json"))
	if len(waves) != 1 {
		t.Fatalf("expected 1 wave, got %d", len(waves))
	}

	// the wave reference on the application must hold the generated wave id
	waveID, _ := waves[0]["wave_id"].(string)
	if waveID == "" {
		t.Fatal("wave_id not assigned")
	}
	refs, ok := apps[0]["wave_id"].([]any)
	if !ok || len(refs) != 1 || refs[0] != waveID {
		t.Fatalf("application wave reference not back-filled: %v", apps[0]["wave_id"])
	}
	// the server must point at the generated application id
	appID, _ := apps[0]["app_id"].(string)
	if appID == "" {
		t.Fatal("app_id not assigned")
	}
	for _, srv := range servers {
		if srv["app_id"] != appID {
			t.Fatalf("server app reference not back-filled: %v", srv["app_id"])
		}
	}

	manifests, err := filepath.Glob(filepath.Join(manifestDir, "run-*.json"))
	if err != nil || len(manifests) != 1 {
		t.Fatalf("expected 1 manifest, got %v (%v)", manifests, err)
	}

	err = runCLI(t, "rollback",
		"--manifest", manifests[0],
		"--schemas", schemaDir,
		"--inventory", inventoryDir,
	)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}

	for _, name := range []string{"wave", "application", "server"} {
		records := readRecords(t, filepath.Join(inventoryDir, name+".json"))
		if len(records) != 0 {
			t.Fatalf("expected empty %s inventory after rollback, got %d records", name, len(records))
		}
	}
}

func TestImportDryRunTouchesNothing(t *testing.T) {
	tmp := t.TempDir()
	schemaDir := filepath.Join(tmp, "schemas")
	inventoryDir := filepath.Join(tmp, "inventory")
	for _, d := range []string{schemaDir, inventoryDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", d, err)
		}
	}
	writeTestSchemas(t, schemaDir)

	input := filepath.Join(tmp, "intake.csv")
	writeFile(t, input, "server_name\nweb01\n")

	reportPath := filepath.Join(tmp, "report.json")
	err := runCLI(t, "import",
		"--input", input,
		"--schemas", schemaDir,
		"--inventory", inventoryDir,
		"--report", reportPath,
	)
	if err != nil {
		t.Fatalf("import dry run: %v", err)
	}

	if _, err := os.Stat(filepath.Join(inventoryDir, "server.json")); !os.IsNotExist(err) {
		t.Fatal("dry run must not write inventory")
	}
	if _, err := os.Stat(reportPath); err != nil {
		t.Fatalf("report not written: %v", err)
	}
}

func TestImportRejectsOversizedSheet(t *testing.T) {
	tmp := t.TempDir()
	schemaDir := filepath.Join(tmp, "schemas")
	if err := os.MkdirAll(schemaDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeTestSchemas(t, schemaDir)

	input := filepath.Join(tmp, "intake.csv")
	writeFile(t, input, "server_name\nweb01\nweb02\n")

	err := runCLI(t, "import",
		"--input", input,
		"--schemas", schemaDir,
		"--inventory", filepath.Join(tmp, "inventory"),
		"--max-rows", "1",
	)
	if err == nil {
		t.Fatal("expected error for oversized sheet")
	}
	if code := exitCode(err); code != exitValidation {
		t.Fatalf("expected exit code %d, got %d", exitValidation, code)
	}
}

func TestTemplateCommand(t *testing.T) {
	tmp := t.TempDir()
	schemaDir := filepath.Join(tmp, "schemas")
	if err := os.MkdirAll(schemaDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeTestSchemas(t, schemaDir)

	output := filepath.Join(tmp, "template.xlsx")
	err := runCLI(t, "template", "--schemas", schemaDir, "--output", output)
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	if _, err := os.Stat(output); err != nil {
		t.Fatalf("template not written: %v", err)
	}

	err = runCLI(t, "template", "--schemas", schemaDir, "--output", output, "--schema", "vm")
	if err == nil {
		t.Fatal("expected error for unknown schema")
	}
	if code := exitCode(err); code != exitUsage {
		t.Fatalf("expected exit code %d, got %d", exitUsage, code)
	}
}
