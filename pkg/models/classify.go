package models

// EmotionUpdate is a single confident classification result, upserted by
// quote id.
type EmotionUpdate struct {
	ID         int64   `json:"id"`
	Emotion    string  `json:"emotion"`
	Confidence float64 `json:"confidence"`
	Model      string  `json:"model"`
}

// ClassifyReport summarizes one classification run
type ClassifyReport struct {
	Requested        int     `json:"requested"`
	LabeledTotal     int     `json:"labeled_total"`
	LabeledConfident int     `json:"labeled_confident"`
	Threshold        float64 `json:"threshold"`
}
