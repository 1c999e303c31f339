package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	appErr "github.com/lorebase/lorebase/internal/pkg/errors"
)

// Page is one unit of paginated raw text in document order.
type Page struct {
	Text   string
	Number int
}

// WordsPerPage is the page size used when a format has no native page
// boundaries (plain text, markdown, docx).
const WordsPerPage = 500

// Pages extracts paginated text from the file at path, dispatching on the
// file extension. Unsupported extensions fail before any downstream work.
func Pages(path string) ([]Page, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return pdfPages(path)
	case ".docx":
		return docxPages(path)
	case ".odt", ".rtf":
		return catPages(path)
	case ".md", ".markdown":
		return markdownPages(path)
	case ".txt":
		return textPages(path)
	default:
		return nil, fmt.Errorf("%w: %s", appErr.ErrUnsupportedFile, filepath.Ext(path))
	}
}

func textPages(path string) ([]Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read text file: %w", err)
	}
	return estimatePages(string(data)), nil
}

// estimatePages splits unpaginated text into synthetic pages of WordsPerPage
// words each, numbered from 1.
func estimatePages(text string) []Page {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var pages []Page
	for start := 0; start < len(words); start += WordsPerPage {
		end := start + WordsPerPage
		if end > len(words) {
			end = len(words)
		}
		pages = append(pages, Page{
			Text:   strings.Join(words[start:end], " "),
			Number: start/WordsPerPage + 1,
		})
	}
	return pages
}
