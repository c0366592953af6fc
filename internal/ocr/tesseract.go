//go:build cgo

package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract recognizes text with a fresh gosseract client per call. Clients are not
// safe for concurrent use, so none is shared.
type Tesseract struct {
	tessdataPrefix string
	clientFactory  func() *gosseract.Client
}

// NewTesseract constructs the engine. An empty tessdataPrefix keeps libtesseract's default.
func NewTesseract(tessdataPrefix string) *Tesseract {
	return &Tesseract{tessdataPrefix: tessdataPrefix, clientFactory: gosseract.NewClient}
}

func (e *Tesseract) Name() string { return "tesseract" }

// Recognize runs OCR over an encoded image and returns the flattened text.
func (e *Tesseract) Recognize(ctx context.Context, image []byte, language string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	client := e.clientFactory()
	defer client.Close()

	if e.tessdataPrefix != "" {
		client.TessdataPrefix = e.tessdataPrefix
	}
	if err := client.SetLanguage(language); err != nil {
		return "", fmt.Errorf("set language %s: %w", language, err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return text, nil
}
