// Package ocr provides optical character recognition using Tesseract.
//
// With CGO enabled this uses the gosseract bindings and needs libtesseract and the
// trained data for every language it is asked for. Without CGO, Recognize always
// fails with ErrUnavailable.
package ocr

import "errors"

var ErrUnavailable = errors.New("ocr engine unavailable: built without cgo")
