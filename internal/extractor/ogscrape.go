package extractor

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ScrapeOpenGraph fetches the page behind mediaURL and pulls the Open
// Graph title and image tags from its head. It is used as a last-chance
// metadata source when the extractor's own probe fails; it cannot be used
// to download media.
func ScrapeOpenGraph(ctx context.Context, mediaURL string) (*Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page fetch returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	metadata := &Metadata{
		Title:        metaProperty(doc, "og:title"),
		ThumbnailURL: metaProperty(doc, "og:image"),
	}
	if metadata.Title == "" {
		metadata.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	if metadata.Title == "" {
		return nil, fmt.Errorf("page at %s carries no usable metadata", mediaURL)
	}

	return metadata, nil
}

func metaProperty(doc *goquery.Document, property string) string {
	selector := fmt.Sprintf(`meta[property=%q]`, property)
	if content, exists := doc.Find(selector).First().Attr("content"); exists {
		return strings.TrimSpace(content)
	}

	return ""
}
