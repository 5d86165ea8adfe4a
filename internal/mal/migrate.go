package mal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/nyaadere/animatch/internal/cache"
	"github.com/nyaadere/animatch/internal/domain"
)

var canonicalRe = regexp.MustCompile(`myanimelist\.net/anime/(\d+)`)

// MigrateHTMLCache walks a legacy colly HTML cache directory, extracts
// character and people links from every cached MAL character page, and
// prewarms the key/value cache with the resulting candidate sets. Files
// that are not MAL character pages are skipped.
func MigrateHTMLCache(ctx context.Context, cacheDir string, c *cache.Cache, ttl cache.Options, log zerolog.Logger) error {
	log = log.With().Str("module", "mal").Logger()
	log.Info().Str("cache_dir", cacheDir).Msg("Starting HTML cache migration")

	var migrated, skipped, errorCount int
	err := filepath.Walk(cacheDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("error accessing file")
			errorCount++
			return nil // Continue processing
		}
		if info.IsDir() {
			return nil
		}

		file, err := os.Open(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("failed to open file")
			errorCount++
			return nil
		}

		doc, err := html.Parse(file)
		file.Close()
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("failed to parse HTML")
			errorCount++
			return nil
		}

		set, malID := extractCandidates(doc)
		if malID == 0 || (len(set.Characters) == 0 && len(set.People) == 0) {
			skipped++
			return nil
		}
		set.MalID = malID

		key := fmt.Sprintf("mal:characters:%d", malID)
		c.Set(ctx, key, set, ttl.TTL)

		migrated++
		if migrated%100 == 0 {
			log.Info().Int("migrated", migrated).Msg("Migration progress")
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "failed to walk cache directory")
	}

	log.Info().
		Int("migrated", migrated).
		Int("skipped", skipped).
		Int("errors", errorCount).
		Msg("HTML cache migration complete")

	return nil
}

// extractCandidates walks the parsed tree collecting character and people
// anchors, and pulls the MAL id from the canonical link.
func extractCandidates(doc *html.Node) (*domain.CandidateSet, int) {
	set := &domain.CandidateSet{}
	seen := make(map[string]bool)
	malID := 0

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "link":
				if attr(n, "rel") == "canonical" {
					if m := canonicalRe.FindStringSubmatch(attr(n, "href")); len(m) >= 2 {
						malID, _ = strconv.Atoi(m[1])
					}
				}
			case "a":
				href := attr(n, "href")
				name := strings.TrimSpace(nodeText(n))
				if name != "" && !seen[href] {
					switch {
					case characterLinkRe.MatchString(href):
						seen[href] = true
						set.Characters = append(set.Characters, domain.Candidate{Name: name, Link: href})
					case peopleLinkRe.MatchString(href):
						seen[href] = true
						set.People = append(set.People, domain.Candidate{Name: name, Link: href})
					}
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return set, malID
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		b.WriteString(nodeText(child))
	}
	return b.String()
}
