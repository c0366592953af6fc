// Package recognition turns an uploaded image into text through an OCR engine.
package recognition

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"insightsnap/internal/models"
)

// Languages is the fixed set of Tesseract language codes offered to users.
var Languages = []string{"eng", "spa", "fra", "deu", "hin", "jpn", "chi_sim"}

var (
	ErrUnsupportedLanguage = errors.New("unsupported ocr language")
	ErrUnsupportedImage    = errors.New("unsupported image type, want png, jpg or jpeg")
	ErrImageDecode         = errors.New("cannot decode image")
	ErrEmptyImage          = errors.New("image is empty")
	// ErrEngine wraps every failure reported by the OCR engine.
	ErrEngine = errors.New("ocr engine failed")
)

var imageTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

// Recognizer is an external OCR engine.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte, language string) (string, error)
}

// Upload is an image exactly as the user sent it.
type Upload struct {
	Name string
	Data []byte
}

// Result echoes the original image and carries the recognized text.
type Result struct {
	// Image is a data URL of the unmodified upload.
	Image  string                `json:"image"`
	Width  int                   `json:"width"`
	Height int                   `json:"height"`
	Text   models.RecognizedText `json:"recognized"`
}

type Adapter struct {
	engine Recognizer
	logger *zap.Logger
	now    func() time.Time
}

func NewAdapter(engine Recognizer, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{engine: engine, logger: logger, now: time.Now}
}

// SupportedLanguage reports whether lang is one of Languages.
func SupportedLanguage(lang string) bool {
	for _, l := range Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// Recognize validates the language and image, then runs the engine once.
// The engine is never called for an unsupported language or an undecodable image.
func (a *Adapter) Recognize(ctx context.Context, up Upload, lang string) (*Result, error) {
	if !SupportedLanguage(lang) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}
	mime, ok := imageTypes[strings.ToLower(filepath.Ext(up.Name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedImage, up.Name)
	}
	if len(up.Data) == 0 {
		return nil, ErrEmptyImage
	}

	img, err := imaging.Decode(bytes.NewReader(up.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	// hand the engine a normalised PNG so orientation and container quirks are settled here
	var normalised bytes.Buffer
	if err := imaging.Encode(&normalised, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	start := a.now()
	text, err := a.engine.Recognize(ctx, normalised.Bytes(), lang)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEngine, err)
	}
	a.logger.Debug("ocr finished",
		zap.String("language", lang),
		zap.Int("chars", len(text)),
		zap.Duration("took", a.now().Sub(start)),
	)

	bounds := img.Bounds()
	return &Result{
		Image:  "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(up.Data),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Text: models.RecognizedText{
			Text:      text,
			Language:  lang,
			CreatedAt: a.now().UTC(),
		},
	}, nil
}
