package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"heartrisk/config"
	"heartrisk/monitoring"
	"heartrisk/predict"
)

// API serves the prediction endpoints for one response variant.
type API struct {
	service *predict.Service
	metrics *monitoring.MetricsCollector
	logger  *zap.Logger
	variant string

	// allowed methods per registered path, for 405 answers
	allowed map[string][]string
}

func (a *API) Register(mux *http.ServeMux) {
	a.allowed = make(map[string][]string)
	a.handle(mux, http.MethodGet, "/", "/{$}", a.handleHome)
	a.handle(mux, http.MethodPost, "/api/predict", "", a.handlePredict)
	a.handle(mux, http.MethodGet, "/api/health", "", handleHealth)
	a.handle(mux, http.MethodGet, "/api/metrics", "", a.handleMetrics)
	mux.HandleFunc("GET /api/metrics/{name}", a.handleMetricSummary)

	if a.variant == config.VariantExtended {
		a.handle(mux, http.MethodGet, "/api/features", "", a.handleFeatures)
		a.handle(mux, http.MethodGet, "/api/classes", "", a.handleClasses)
		mux.HandleFunc("/", a.handleUnmatched)
	}
}

// handle registers method+path; pattern overrides path in the mux pattern.
func (a *API) handle(mux *http.ServeMux, method, path, pattern string, h http.HandlerFunc) {
	if pattern == "" {
		pattern = path
	}
	mux.HandleFunc(method+" "+pattern, h)
	a.allowed[path] = append(a.allowed[path], method)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleUnmatched answers 405 for a known path with the wrong method and
// 404 for everything else.
func (a *API) handleUnmatched(w http.ResponseWriter, r *http.Request) {
	if methods, ok := a.allowed[r.URL.Path]; ok {
		allow := strings.Join(methods, ", ")
		for _, m := range methods {
			if m == http.MethodGet {
				allow += ", " + http.MethodHead
			}
		}
		w.Header().Set("Allow", allow+", "+http.MethodOptions)
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "Method not allowed"})
		return
	}
	writeJSON(w, http.StatusNotFound, errorBody{Error: "Endpoint not found"})
}

func (a *API) handleHome(w http.ResponseWriter, r *http.Request) {
	features, classes := a.service.Features(), a.service.Classes()
	if a.variant == config.VariantClassic {
		writeJSON(w, http.StatusOK, classicHome{
			Message:     "Heart Disease Risk Prediction API is running",
			Status:      "running",
			ModelLoaded: true,
			NumFeatures: len(features),
			Features:    features,
			Classes:     classes,
		})
		return
	}
	writeJSON(w, http.StatusOK, extendedHome{
		Status:  "running",
		Model:   "Heart Disease Risk Prediction Model",
		Version: "1.0",
		Endpoints: map[string]string{
			"/":             "Model information (GET)",
			"/api/predict":  "Make prediction (POST)",
			"/api/features": "Get feature list (GET)",
			"/api/classes":  "Get class names (GET)",
		},
		Features: features,
		Classes:  classes,
	})
}

func (a *API) handleFeatures(w http.ResponseWriter, r *http.Request) {
	features := a.service.Features()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"features": features,
		"count":    len(features),
	})
}

func (a *API) handleClasses(w http.ResponseWriter, r *http.Request) {
	classes := a.service.Classes()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"classes": classes,
		"count":   len(classes),
	})
}

func (a *API) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.metrics.Snapshot())
}

func (a *API) handleMetricSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := a.metrics.GetMetricSummary(r.PathValue("name"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handlePredict(w http.ResponseWriter, r *http.Request) {
	payload, err := decodePayload(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "Request body too large"})
			return
		}
	}
	// an empty object counts as no data for the extended variant
	if a.variant == config.VariantExtended && len(payload) == 0 {
		payload = nil
	}

	prediction, err := a.service.Predict(r.Context(), payload)
	if err != nil {
		a.recordFailure(r, err)
		status, body := a.failure(err)
		writeJSON(w, status, body)
		return
	}

	a.metrics.Inc("predictions_total", map[string]string{"label": prediction.Label})
	if a.variant == config.VariantClassic {
		writeJSON(w, http.StatusOK, newClassicPrediction(prediction, a.service.Classes()))
		return
	}
	writeJSON(w, http.StatusOK, newExtendedPrediction(prediction, a.service.Classes(), payload))
}

func (a *API) failure(err error) (int, interface{}) {
	var missing *predict.MissingFieldsError
	classic := a.variant == config.VariantClassic

	switch {
	case errors.Is(err, predict.ErrNoData):
		if classic {
			return http.StatusBadRequest, errorBody{Error: "No JSON data received"}
		}
		return http.StatusBadRequest, errorBody{Error: "No data provided"}
	case errors.As(err, &missing):
		if classic {
			return http.StatusBadRequest, errorBody{Error: "Missing input features", MissingFeatures: missing.Fields}
		}
		return http.StatusBadRequest, errorBody{
			Error:           "Missing required fields: " + pyList(missing.Fields),
			MissingFeatures: missing.Fields,
		}
	default:
		if classic {
			return http.StatusInternalServerError, errorBody{Error: "Prediction failed", Details: err.Error()}
		}
		success := false
		return http.StatusInternalServerError, errorBody{Success: &success, Error: err.Error()}
	}
}

func (a *API) recordFailure(r *http.Request, err error) {
	kind := "inference"
	if predict.IsClientError(err) {
		kind = "validation"
	} else {
		a.logger.Error("prediction failed",
			zap.String("request_id", GetRequestID(r.Context())),
			zap.Error(err))
	}
	a.metrics.Inc("prediction_failures_total", map[string]string{"kind": kind})
}

// decodePayload reads a single JSON object. Numbers are kept as json.Number
// so the input echo reproduces them verbatim.
func decodePayload(body io.Reader) (map[string]interface{}, error) {
	if body == nil {
		return nil, predict.ErrNoData
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var value interface{}
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, errors.New("unexpected data after JSON object")
	}
	payload, ok := value.(map[string]interface{})
	if !ok {
		return nil, predict.ErrNoData
	}
	return payload, nil
}

// writeJSON encodes body before touching the response so an encoding
// failure still reaches the client as a 500.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		data, _ = json.Marshal(errorBody{Error: "Internal server error", Details: err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(data, '\n'))
}
