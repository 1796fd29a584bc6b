package ml

// Classifier is a loaded, immutable model. Rows are raw feature values in
// schema order: json.Number, float64, string, bool or nil.
type Classifier interface {
	Predict(row []interface{}) (int, error)
	PredictProba(row []interface{}) ([]float64, error)
	NumClasses() int
	InputFeatures() []string
}

// Estimator operates on already encoded numeric vectors.
type Estimator interface {
	PredictProba(x []float64) ([]float64, error)
	NumClasses() int
	NumInputs() int
}

// Argmax returns the index of the largest probability, lowest index on ties.
func Argmax(probs []float64) int {
	best := 0
	for i := 1; i < len(probs); i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}
	return best
}
