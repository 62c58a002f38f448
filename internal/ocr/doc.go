// Package ocr recognises the text inside detected regions using Tesseract.
//
// This package wraps the Tesseract OCR engine (via gosseract/v2). The
// detector finds where words are; a Recognizer crops the bounding rectangle
// of each detected polygon and reads it as a single line of text.
//
// # Prerequisites
//
// Tesseract must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr
//   - macOS: brew install tesseract
//   - Windows: Download from https://github.com/UB-Mannheim/tesseract/wiki
//
// Language data files are required for each language:
//   - Ubuntu/Debian: apt-get install tesseract-ocr-eng (for English)
//   - Other languages: tesseract-ocr-<lang> packages
//
// Several languages can be combined with "+", as in "eng+deu".
//
// # Concurrency
//
// A Tesseract client holds one image at a time, so a Recognizer serialises
// its calls. Batch runs with several workers share one Recognizer.
package ocr
