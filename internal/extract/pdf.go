package extract

import (
	"fmt"

	"github.com/ledongthuc/pdf"
)

// pdfPages extracts text per real PDF page, preserving native page numbers.
// Pages with no extractable text are skipped.
func pdfPages(path string) ([]Page, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()

	var pages []Page
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract pdf page %d: %w", i, err)
		}
		if text == "" {
			continue
		}
		pages = append(pages, Page{Text: text, Number: i})
	}
	return pages, nil
}
