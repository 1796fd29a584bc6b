package http

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"heartrisk/config"
	"heartrisk/deployment"
	"heartrisk/deployment/deploymenttest"
	"heartrisk/monitoring"
	"heartrisk/predict"
)

func newTestHandler(t *testing.T, variant string) http.Handler {
	t.Helper()
	return newHandlerFor(t, deploymenttest.Load(t), variant)
}

func newHandlerFor(t *testing.T, artifacts *deployment.Artifacts, variant string) http.Handler {
	t.Helper()
	opts := predict.Options{CacheSize: 8}
	if variant == config.VariantExtended {
		opts.BooleanFields = []string{"fbs"}
	}
	service, err := predict.NewService(artifacts, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg := DefaultServerConfig()
	cfg.Variant = variant
	return NewHandler(cfg, service, monitoring.NewMetricsCollector(), zap.NewNop())
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var payload map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json %q: %v", w.Body.String(), err)
	}
	return w, payload
}

func stringList(values interface{}) []string {
	items := values.([]interface{})
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.(string)
	}
	return out
}

func withoutField(t *testing.T, field string) string {
	t.Helper()
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(deploymenttest.ReferencePayload), &payload); err != nil {
		t.Fatal(err)
	}
	delete(payload, field)
	data, _ := json.Marshal(payload)
	return string(data)
}

func TestHealthHandler(t *testing.T) {
	h := newTestHandler(t, config.VariantClassic)
	w, payload := do(t, h, http.MethodGet, "/api/health", "")
	if w.Code != http.StatusOK || payload["status"] != "ok" {
		t.Fatalf("unexpected health response %d %v", w.Code, payload)
	}
}

func TestHomeListsMetadata(t *testing.T) {
	for _, variant := range []string{config.VariantClassic, config.VariantExtended} {
		t.Run(variant, func(t *testing.T) {
			w, payload := do(t, newTestHandler(t, variant), http.MethodGet, "/", "")
			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", w.Code)
			}
			if payload["status"] != "running" {
				t.Fatalf("unexpected status %v", payload["status"])
			}
			if !reflect.DeepEqual(stringList(payload["features"]), deploymenttest.Features) {
				t.Fatalf("unexpected features %v", payload["features"])
			}
			if !reflect.DeepEqual(stringList(payload["classes"]), deploymenttest.Classes) {
				t.Fatalf("unexpected classes %v", payload["classes"])
			}
		})
	}
}

func TestFeaturesAndClasses(t *testing.T) {
	h := newTestHandler(t, config.VariantExtended)

	w, payload := do(t, h, http.MethodGet, "/api/features", "")
	if w.Code != http.StatusOK || payload["count"].(float64) != 13 {
		t.Fatalf("unexpected features response %d %v", w.Code, payload)
	}
	w, payload = do(t, h, http.MethodGet, "/api/classes", "")
	if w.Code != http.StatusOK || payload["count"].(float64) != 5 {
		t.Fatalf("unexpected classes response %d %v", w.Code, payload)
	}
}

func TestClassicHasNoFeatureEndpoint(t *testing.T) {
	h := newTestHandler(t, config.VariantClassic)
	req := httptest.NewRequest(http.MethodGet, "/api/features", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestExtendedNotFound(t *testing.T) {
	w, payload := do(t, newTestHandler(t, config.VariantExtended), http.MethodGet, "/api/unknown", "")
	if w.Code != http.StatusNotFound || payload["error"] != "Endpoint not found" {
		t.Fatalf("unexpected response %d %v", w.Code, payload)
	}
}

func TestClassicPredict(t *testing.T) {
	h := newTestHandler(t, config.VariantClassic)
	w, payload := do(t, h, http.MethodPost, "/api/predict", deploymenttest.ReferencePayload)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", w.Code, payload)
	}
	if payload["predicted_class"].(float64) != 1 || payload["predicted_label"] != "very mild" {
		t.Fatalf("unexpected prediction %v", payload)
	}

	probs := payload["class_probabilities"].(map[string]interface{})
	if len(probs) != len(deploymenttest.Classes) {
		t.Fatalf("expected %d probabilities, got %d", len(deploymenttest.Classes), len(probs))
	}
	sum, max := 0.0, 0.0
	for _, v := range probs {
		p := v.(float64)
		sum += p
		max = math.Max(max, p)
	}
	if math.Abs(sum-1) > 1e-3 {
		t.Fatalf("probabilities should sum to 1, got %f", sum)
	}
	if payload["confidence"].(float64) != max {
		t.Fatalf("confidence %v should equal max probability %v", payload["confidence"], max)
	}
}

func TestExtendedPredict(t *testing.T) {
	h := newTestHandler(t, config.VariantExtended)
	w, payload := do(t, h, http.MethodPost, "/api/predict", deploymenttest.ReferencePayload)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", w.Code, payload)
	}
	if payload["success"] != true {
		t.Fatalf("expected success, got %v", payload)
	}

	prediction := payload["prediction"].(map[string]interface{})
	if prediction["class"] != "very mild" || prediction["color"] != "#434139" {
		t.Fatalf("unexpected prediction %v", prediction)
	}
	if prediction["confidence"].(float64) != 50 {
		t.Fatalf("expected confidence 50, got %v", prediction["confidence"])
	}

	probs := payload["probabilities"].(map[string]interface{})
	sum := 0.0
	for _, v := range probs {
		sum += v.(float64)
	}
	if math.Abs(sum-100) > 0.1 {
		t.Fatalf("percentages should sum to 100, got %f", sum)
	}

	input := payload["input_data"].(map[string]interface{})
	if input["fbs"] != "False" || input["oldpeak"].(float64) != 1.5 {
		t.Fatalf("input should be echoed unchanged, got %v", input)
	}
}

func TestPredictMissingAge(t *testing.T) {
	for _, variant := range []string{config.VariantClassic, config.VariantExtended} {
		t.Run(variant, func(t *testing.T) {
			h := newTestHandler(t, variant)
			w, payload := do(t, h, http.MethodPost, "/api/predict", withoutField(t, "age"))
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			if !reflect.DeepEqual(stringList(payload["missing_features"]), []string{"age"}) {
				t.Fatalf("unexpected missing features %v", payload["missing_features"])
			}
		})
	}
}

func TestExtendedMissingMessage(t *testing.T) {
	h := newTestHandler(t, config.VariantExtended)
	_, payload := do(t, h, http.MethodPost, "/api/predict", `{"age": 40, "unused": 1}`)
	msg := payload["error"].(string)
	if !strings.HasPrefix(msg, "Missing required fields: ['sex', 'cp'") {
		t.Fatalf("unexpected message %q", msg)
	}
	if len(payload["missing_features"].([]interface{})) != 12 {
		t.Fatalf("expected 12 missing features, got %v", payload["missing_features"])
	}
}

func TestPredictRejectsBadBodies(t *testing.T) {
	tests := []struct {
		variant string
		body    string
		message string
	}{
		{config.VariantClassic, "", "No JSON data received"},
		{config.VariantClassic, "not json", "No JSON data received"},
		{config.VariantClassic, "[1, 2]", "No JSON data received"},
		{config.VariantClassic, "null", "No JSON data received"},
		{config.VariantClassic, "{}", "Missing input features"},
		{config.VariantExtended, "", "No data provided"},
		{config.VariantExtended, `"text"`, "No data provided"},
		{config.VariantExtended, "{}", "No data provided"},
		{config.VariantExtended, `{"age": 1} trailing`, "No data provided"},
		{config.VariantExtended, `{"age": 1}}`, "No data provided"},
		{config.VariantClassic, `{"age": 1}]`, "No JSON data received"},
	}
	for _, tt := range tests {
		t.Run(tt.variant+" "+tt.body, func(t *testing.T) {
			w, payload := do(t, newTestHandler(t, tt.variant), http.MethodPost, "/api/predict", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			if payload["error"] != tt.message {
				t.Fatalf("expected %q, got %v", tt.message, payload["error"])
			}
		})
	}
}

func TestPredictInferenceFailure(t *testing.T) {
	var reference map[string]interface{}
	json.Unmarshal([]byte(deploymenttest.ReferencePayload), &reference)
	reference["fbs"] = "perhaps"
	body, _ := json.Marshal(reference)

	w, payload := do(t, newTestHandler(t, config.VariantExtended), http.MethodPost, "/api/predict", string(body))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if payload["success"] != false || !strings.Contains(payload["error"].(string), "fbs") {
		t.Fatalf("unexpected failure body %v", payload)
	}

	w, payload = do(t, newTestHandler(t, config.VariantClassic), http.MethodPost, "/api/predict", string(body))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if payload["error"] != "Prediction failed" || payload["details"] == "" {
		t.Fatalf("unexpected failure body %v", payload)
	}
}

// linearDeployment loads a one feature logistic regression deployment.
func linearDeployment(t *testing.T) *deployment.Artifacts {
	t.Helper()
	dir := t.TempDir()
	files := deployment.DefaultFiles()
	model := `{
	  "format": "heartrisk-model",
	  "version": 1,
	  "preprocessor": {"features": [{"name": "age", "kind": "numeric"}]},
	  "estimator": {"type": "logistic_regression", "coef": [[0.5], [0], [-0.5]], "intercept": [0, 0, 0]}
	}`
	for name, content := range map[string]string{
		files.Model:    model,
		files.Features: "age\n",
		files.Classes:  "low\nmedium\nhigh\n",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	a, err := deployment.Load(dir, files)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return a
}

func TestPredictInfiniteInputFails(t *testing.T) {
	artifacts := linearDeployment(t)

	w, payload := do(t, newHandlerFor(t, artifacts, config.VariantClassic), http.MethodPost, "/api/predict", `{"age":"inf"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if payload["error"] != "Prediction failed" || !strings.Contains(payload["details"].(string), "infinity") {
		t.Fatalf("unexpected failure body %v", payload)
	}

	w, payload = do(t, newHandlerFor(t, artifacts, config.VariantExtended), http.MethodPost, "/api/predict", `{"age":"-Infinity"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if payload["success"] != false {
		t.Fatalf("unexpected failure body %v", payload)
	}

	w, payload = do(t, newHandlerFor(t, artifacts, config.VariantClassic), http.MethodPost, "/api/predict", `{"age":40}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if payload["predicted_label"] != "low" {
		t.Fatalf("unexpected prediction %v", payload)
	}
}

func TestWriteJSONEncodingFailure(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, http.StatusOK, map[string]float64{"confidence": math.NaN()})

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json %q: %v", w.Body.String(), err)
	}
	if payload["error"] != "Internal server error" {
		t.Fatalf("unexpected body %v", payload)
	}
}

func TestExtendedMethodNotAllowed(t *testing.T) {
	h := newTestHandler(t, config.VariantExtended)

	w, payload := do(t, h, http.MethodGet, "/api/predict", "")
	if w.Code != http.StatusMethodNotAllowed || payload["error"] != "Method not allowed" {
		t.Fatalf("unexpected response %d %v", w.Code, payload)
	}
	if !strings.Contains(w.Header().Get("Allow"), http.MethodPost) {
		t.Fatalf("unexpected Allow header %q", w.Header().Get("Allow"))
	}

	w, _ = do(t, h, http.MethodPost, "/api/features", `{}`)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestMetricSummaryEndpoint(t *testing.T) {
	h := newTestHandler(t, config.VariantExtended)
	do(t, h, http.MethodPost, "/api/predict", deploymenttest.ReferencePayload)

	w, payload := do(t, h, http.MethodGet, "/api/metrics/http_request_duration_ms", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if payload["count"].(float64) != 1 {
		t.Fatalf("unexpected summary %v", payload)
	}

	w, _ = do(t, h, http.MethodGet, "/api/metrics/unknown", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestHandler(t, config.VariantExtended)
	do(t, h, http.MethodPost, "/api/predict", deploymenttest.ReferencePayload)

	w, payload := do(t, h, http.MethodGet, "/api/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	counters := payload["counters"].(map[string]interface{})
	if counters["predictions_total{label=very mild}"].(float64) != 1 {
		t.Fatalf("unexpected counters %v", counters)
	}
}

func TestRiskColorIsCaseInsensitive(t *testing.T) {
	if riskColor("No Disease") != "#0be469" {
		t.Fatalf("expected folded match, got %s", riskColor("No Disease"))
	}
	if riskColor("unheard of") != defaultRiskColor {
		t.Fatal("expected default color")
	}
}
