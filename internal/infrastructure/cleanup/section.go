package cleanup

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/cookbookhq/backend/internal/infrastructure/config"
)

// sectionSelectors lists the container elements considered as recipe
// section candidates.
const sectionSelectors = "article, section, main, div[class*=recipe], div[id*=recipe]"

// sectionStrategy locates the single container most likely to hold the
// recipe and returns it alone, discarding the rest of the page.
type sectionStrategy struct {
	minConfidence int
	minOutputSize int
	keywords      []string
}

func newSectionStrategy(cfg config.SectionConfig, minOutputSize int) *sectionStrategy {
	keywords := make([]string, 0, len(cfg.Keywords))
	for _, kw := range cfg.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return &sectionStrategy{
		minConfidence: cfg.MinConfidence,
		minOutputSize: minOutputSize,
		keywords:      keywords,
	}
}

func (s *sectionStrategy) Name() string { return StrategySectionBased }

func (s *sectionStrategy) Clean(rawHTML string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", fmt.Errorf("parse document: %w", err)
	}

	var best *goquery.Selection
	bestScore := 0
	doc.Find(sectionSelectors).Each(func(_ int, sel *goquery.Selection) {
		score := s.score(sel)
		if score > bestScore {
			best = sel
			bestScore = score
		}
	})
	if best == nil || bestScore < s.minConfidence {
		return "", nil
	}

	pruneJunk(best)
	removeComments(best)
	stripAttributes(best)

	out, err := goquery.OuterHtml(best)
	if err != nil {
		return "", fmt.Errorf("render section: %w", err)
	}
	out = strings.TrimSpace(out)
	if len(out) < s.minOutputSize {
		return "", nil
	}
	return out, nil
}

// score rates a container by recipe keyword density and structural shape:
// ingredient and instruction content usually appears as lists under
// subheadings in a reasonably long block of text.
func (s *sectionStrategy) score(sel *goquery.Selection) int {
	text := strings.ToLower(sel.Text())

	score := 0
	for _, kw := range s.keywords {
		if strings.Contains(text, kw) {
			score += 10
		}
	}
	if sel.Find("ul, ol").Length() >= 2 {
		score += 20
	}
	if sel.Find("h2, h3").Length() >= 2 {
		score += 10
	}
	if len(text) > 1000 {
		score += 10
	}
	return score
}
