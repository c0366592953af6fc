package models

import "time"

// RecognizedText is flattened OCR output.
type RecognizedText struct {
	Text      string    `json:"text"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"created_at"`
}
