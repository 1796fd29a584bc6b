package http

import (
	"math"
	"strings"

	"golang.org/x/text/cases"

	"heartrisk/predict"
)

const defaultRiskColor = "#95a5a6"

// riskColors keys are case-folded labels.
var riskColors = map[string]string{
	"no disease":       "#0be469",
	"very mild":        "#434139",
	"mild":             "#322f2c",
	"severe":           "#433c3b",
	"immediate danger": "#716378",
}

type errorBody struct {
	Success         *bool    `json:"success,omitempty"`
	Error           string   `json:"error"`
	Details         string   `json:"details,omitempty"`
	MissingFeatures []string `json:"missing_features,omitempty"`
}

type classicHome struct {
	Message     string   `json:"message"`
	Status      string   `json:"status"`
	ModelLoaded bool     `json:"model_loaded"`
	NumFeatures int      `json:"num_features"`
	Features    []string `json:"features"`
	Classes     []string `json:"classes"`
}

type extendedHome struct {
	Status    string            `json:"status"`
	Model     string            `json:"model"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
	Features  []string          `json:"features"`
	Classes   []string          `json:"classes"`
}

type classicPrediction struct {
	PredictedClass     int                `json:"predicted_class"`
	PredictedLabel     string             `json:"predicted_label"`
	Confidence         float64            `json:"confidence"`
	ClassProbabilities map[string]float64 `json:"class_probabilities"`
}

type extendedPrediction struct {
	Success       bool                   `json:"success"`
	Prediction    predictionSummary      `json:"prediction"`
	Probabilities map[string]float64     `json:"probabilities"`
	InputData     map[string]interface{} `json:"input_data"`
}

type predictionSummary struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	Color      string  `json:"color"`
}

// newClassicPrediction reports fractions rounded to 4 decimals.
func newClassicPrediction(p *predict.Prediction, classes []string) classicPrediction {
	probs := make(map[string]float64, len(classes))
	for i, label := range classes {
		probs[label] = round(p.Probabilities[i], 4)
	}
	return classicPrediction{
		PredictedClass:     p.ClassIndex,
		PredictedLabel:     p.Label,
		Confidence:         round(p.Confidence, 4),
		ClassProbabilities: probs,
	}
}

// newExtendedPrediction reports percentages rounded to 2 decimals.
func newExtendedPrediction(p *predict.Prediction, classes []string, input map[string]interface{}) extendedPrediction {
	probs := make(map[string]float64, len(classes))
	for i, label := range classes {
		probs[label] = round(p.Probabilities[i]*100, 2)
	}
	return extendedPrediction{
		Success: true,
		Prediction: predictionSummary{
			Class:      p.Label,
			Confidence: round(p.Confidence*100, 2),
			Color:      riskColor(p.Label),
		},
		Probabilities: probs,
		InputData:     input,
	}
}

func riskColor(label string) string {
	if color, ok := riskColors[cases.Fold().String(label)]; ok {
		return color
	}
	return defaultRiskColor
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

// pyList renders names as ['a', 'b'].
func pyList(names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = "'" + strings.ReplaceAll(name, "'", `\'`) + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
