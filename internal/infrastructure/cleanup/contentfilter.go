package cleanup

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/cookbookhq/backend/internal/infrastructure/config"
)

// contentFilterStrategy prunes junk from the whole document instead of
// picking a single container. It is the last strategy before fallback and
// handles pages whose recipe content is spread across the body.
type contentFilterStrategy struct {
	minOutputSize int
}

func newContentFilterStrategy(cfg config.ContentFilterConfig) *contentFilterStrategy {
	return &contentFilterStrategy{minOutputSize: cfg.MinOutputSize}
}

func (s *contentFilterStrategy) Name() string { return StrategyContentFilter }

func (s *contentFilterStrategy) Clean(rawHTML string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", fmt.Errorf("parse document: %w", err)
	}

	body := doc.Find("body")
	if body.Length() == 0 {
		return "", nil
	}

	pruneJunk(body)
	removeComments(body)
	stripAttributes(body)

	out, err := body.Html()
	if err != nil {
		return "", fmt.Errorf("render body: %w", err)
	}
	out = strings.TrimSpace(out)
	if len(out) < s.minOutputSize {
		return "", nil
	}
	return out, nil
}
