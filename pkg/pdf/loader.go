package pdf

import (
	"bytes"
	"fmt"
	"strings"

	lpdf "github.com/ledongthuc/pdf"
)

// Page is the plain text of one PDF page. Number is 1-based.
type Page struct {
	Number int
	Text   string
}

// Loader extracts page text from a PDF binary.
type Loader interface {
	Load(data []byte) ([]Page, error)
}

type PlainTextLoader struct{}

func NewPlainTextLoader() *PlainTextLoader {
	return &PlainTextLoader{}
}

// Load returns one entry per page that has a text layer. Pages without
// extractable text are skipped rather than reported as errors.
func (l *PlainTextLoader) Load(data []byte) (pages []Page, err error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty pdf")
	}

	// the parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	total := reader.NumPage()
	pages = make([]Page, 0, total)
	for i := 1; i <= total; i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", i, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}

	return pages, nil
}
