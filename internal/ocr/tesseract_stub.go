//go:build !cgo

package ocr

import "context"

// Tesseract is a placeholder when built without CGO.
type Tesseract struct{}

// NewTesseract returns an engine whose Recognize always fails.
func NewTesseract(string) *Tesseract { return &Tesseract{} }

func (e *Tesseract) Name() string { return "tesseract (unavailable)" }

func (e *Tesseract) Recognize(context.Context, []byte, string) (string, error) {
	return "", ErrUnavailable
}
