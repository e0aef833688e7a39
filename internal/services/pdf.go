package services

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNoPDFText is returned for PDFs without an extractable text layer (scans).
var ErrNoPDFText = errors.New("o PDF nao contem texto extraivel")

type PDFService struct{}

func NewPDFService() *PDFService {
	return &PDFService{}
}

// PageCount returns the number of pages in the PDF at path.
func (s *PDFService) PageCount(path string) (int, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()
	return r.NumPage(), nil
}

// ExtractText returns the plain text of every page and the page count.
func (s *PDFService) ExtractText(path string) (string, int, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	pages := r.NumPage()
	if pages == 0 {
		return "", 0, fmt.Errorf("pdf has no pages")
	}

	reader, err := r.GetPlainText()
	if err != nil {
		return "", pages, fmt.Errorf("extract pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", pages, fmt.Errorf("read pdf text: %w", err)
	}

	text := strings.TrimSpace(buf.String())
	if text == "" {
		return "", pages, ErrNoPDFText
	}
	return text, pages, nil
}
