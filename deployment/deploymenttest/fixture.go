// Package deploymenttest writes a small heart disease deployment directory
// for tests.
package deploymenttest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"heartrisk/deployment"
)

var Features = []string{
	"age", "sex", "cp", "trestbps", "chol", "fbs", "restecg",
	"thalach", "exang", "oldpeak", "slope", "ca", "thal",
}

var Classes = []string{
	"no disease", "very mild", "mild", "severe", "immediate danger",
}

// ReferencePayload is the sample patient; the fixture model classifies it
// as "very mild" with probabilities 0.1, 0.5, 0.2, 0.1, 0.1.
const ReferencePayload = `{"age":55,"sex":"Male","cp":"Typical Angina","trestbps":130,"chol":250,"fbs":"False","restecg":"Normal","thalach":150,"exang":"No","oldpeak":1.5,"slope":"Flat","ca":0.0,"thal":"Normal"}`

// Model splits on oldpeak (encoded column 16) and then age (column 0).
const Model = `{
  "format": "heartrisk-model",
  "version": 1,
  "preprocessor": {"features": [
    {"name": "age", "kind": "numeric"},
    {"name": "sex", "kind": "categorical", "categories": ["Female", "Male"]},
    {"name": "cp", "kind": "categorical", "categories": ["Asymptomatic", "Atypical Angina", "Non-anginal Pain", "Typical Angina"], "handle_unknown": "ignore"},
    {"name": "trestbps", "kind": "numeric"},
    {"name": "chol", "kind": "numeric"},
    {"name": "fbs", "kind": "boolean"},
    {"name": "restecg", "kind": "categorical", "categories": ["LV Hypertrophy", "Normal", "ST-T Abnormality"], "handle_unknown": "ignore"},
    {"name": "thalach", "kind": "numeric"},
    {"name": "exang", "kind": "categorical", "categories": ["No", "Yes"]},
    {"name": "oldpeak", "kind": "numeric"},
    {"name": "slope", "kind": "categorical", "categories": ["Downsloping", "Flat", "Upsloping"], "handle_unknown": "ignore"},
    {"name": "ca", "kind": "numeric", "impute": 0},
    {"name": "thal", "kind": "categorical", "categories": ["Fixed Defect", "Normal", "Reversable Defect"], "handle_unknown": "ignore"}
  ]},
  "estimator": {
    "type": "decision_tree",
    "n_classes": 5,
    "n_features": 24,
    "nodes": [
      {"feature_idx": 16, "threshold": 1.0, "left_child": 1, "right_child": 2},
      {"is_leaf": true, "value": [6, 2, 1, 1, 0]},
      {"feature_idx": 0, "threshold": 60, "left_child": 3, "right_child": 4},
      {"is_leaf": true, "value": [1, 5, 2, 1, 1]},
      {"is_leaf": true, "value": [0, 1, 2, 3, 4]}
    ]
  }
}`

// Write populates dir with the fixture artifacts. Metadata files carry
// padding and a trailing newline the loader must tolerate.
func Write(t testing.TB, dir string) {
	t.Helper()
	files := deployment.DefaultFiles()
	write(t, filepath.Join(dir, files.Model), Model)
	write(t, filepath.Join(dir, files.Features), "  "+strings.Join(Features, "\n")+"  \n")
	write(t, filepath.Join(dir, files.Classes), strings.Join(Classes, "\r\n")+"\n")
}

// Load writes the fixture into a temporary directory and loads it.
func Load(t testing.TB) *deployment.Artifacts {
	t.Helper()
	dir := t.TempDir()
	Write(t, dir)
	a, err := deployment.Load(dir, deployment.DefaultFiles())
	if err != nil {
		t.Fatalf("load fixture deployment: %v", err)
	}
	return a
}

func write(t testing.TB, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}
