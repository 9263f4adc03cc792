package intent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const sampleYAML = `
id: support-triage
version: "1.0.0"
gate:
  min_pass_rate: 0.8
scenarios:
  - id: S1
    category: billing
    input:
      text: double charged
    expect:
      equals:
        queue: billing
`

const sampleJSON = `{
  "id": "support-triage",
  "version": "1.0.0",
  "gate": {"min_pass_rate": 0.8},
  "scenarios": [
    {"id": "S1", "category": "billing",
     "input": {"text": "double charged"},
     "expect": {"equals": {"queue": "billing"}}}
  ]
}`

func TestLoad_YAMLAndJSONAgree(t *testing.T) {
	fromYAML, err := Load([]byte(sampleYAML), ".yaml")
	if err != nil {
		t.Fatalf("yaml: %v", err)
	}
	fromJSON, err := Load([]byte(sampleJSON), ".json")
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	if diff := cmp.Diff(fromYAML, fromJSON); diff != "" {
		t.Errorf("yaml/json mismatch (-yaml +json):\n%s", diff)
	}
	if fromYAML.Key() != "support-triage@1.0.0" {
		t.Errorf("Key() = %q", fromYAML.Key())
	}
}

func TestLoad_DetectsFormatWithoutExtension(t *testing.T) {
	if _, err := Load([]byte(sampleJSON), ""); err != nil {
		t.Errorf("json content detection: %v", err)
	}
	if _, err := Load([]byte(sampleYAML), ""); err != nil {
		t.Errorf("yaml content detection: %v", err)
	}
}

func TestLoad_InvalidDocumentFails(t *testing.T) {
	if _, err := Load([]byte("id: only-an-id\n"), ".yaml"); err == nil {
		t.Error("expected validation failure for incomplete document")
	}
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "intent.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0644); err != nil {
		t.Fatal(err)
	}
	spec, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if spec.ID != "support-triage" {
		t.Errorf("ID = %q", spec.ID)
	}
}

func TestSkeleton_IsLoadable(t *testing.T) {
	if _, err := Load([]byte(Skeleton), ".yaml"); err != nil {
		t.Errorf("schema skeleton must load cleanly: %v", err)
	}
}
