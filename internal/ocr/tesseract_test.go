package ocr

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"
)

// Exercises libtesseract itself; set TEST_TESSERACT=1 on a machine with eng.traineddata.
func TestTesseractRecognizeBlankImage(t *testing.T) {
	if os.Getenv("TEST_TESSERACT") != "1" {
		t.Skip("set TEST_TESSERACT=1 to run tesseract-backed tests")
	}
	img := image.NewGray(image.Rect(0, 0, 64, 32))
	for i := range img.Pix {
		img.Pix[i] = uint8(color.White.Y >> 8)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := NewTesseract(os.Getenv("TESSDATA_PREFIX")).Recognize(context.Background(), buf.Bytes(), "eng"); err != nil {
		t.Fatalf("Recognize: %v", err)
	}
}

func TestTesseractHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewTesseract("").Recognize(ctx, nil, "eng"); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}
