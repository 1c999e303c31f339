package extract

import (
	"fmt"

	"github.com/lu4p/cat"
)

// catPages handles ODT and RTF through lu4p/cat. Neither format exposes page
// boundaries, so pages are estimated by word count.
func catPages(path string) ([]Page, error) {
	text, err := cat.File(path)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}
	return estimatePages(text), nil
}
