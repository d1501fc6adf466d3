package ruleset

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"adshield/config"
)

const defaultMaxConcurrentReads = 5

// Line prefixes understood by ParseLines. A line without a prefix is a
// domain pattern, unless it looks like a selector or a network rule.
const (
	prefixDomain  = "domain:"
	prefixKeyword = "keyword:"
	prefixMarker  = "marker:"
	prefixFrame   = "frame:"
	prefixImage   = "image:"
)

// ParseLines sorts rule-file lines into Lists. Empty lines and lines starting
// with "!" or "#" are comments.
func ParseLines(lines []string) Lists {
	var l Lists
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "!") || strings.HasPrefix(line, "#") {
			continue
		}

		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, prefixDomain):
			l.DomainPatterns = append(l.DomainPatterns, line[len(prefixDomain):])
		case strings.HasPrefix(lower, prefixKeyword):
			l.AttributeKeywords = append(l.AttributeKeywords, line[len(prefixKeyword):])
		case strings.HasPrefix(lower, prefixMarker):
			l.DataMarkers = append(l.DataMarkers, line[len(prefixMarker):])
		case strings.HasPrefix(lower, prefixFrame):
			l.FrameKeywords = append(l.FrameKeywords, line[len(prefixFrame):])
		case strings.HasPrefix(lower, prefixImage):
			l.AdImageToken = strings.TrimSpace(line[len(prefixImage):])
		case strings.HasPrefix(line, "[") || strings.HasPrefix(line, "."):
			l.AttributeKeywords = append(l.AttributeKeywords, line)
		case strings.HasPrefix(line, "|") || strings.HasPrefix(line, "@@") || strings.Contains(line, "$"):
			l.NetworkRules = append(l.NetworkRules, line)
		default:
			l.DomainPatterns = append(l.DomainPatterns, line)
		}
	}
	return l
}

// LoadFiles reads rule files concurrently and merges them in the order the
// paths were given. A file that cannot be read fails the whole load; the
// caller keeps its previous rule set in that case.
func LoadFiles(ctx context.Context, paths []string) (Lists, error) {
	results := make([][]string, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultMaxConcurrentReads)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			lines, err := readLines(path)
			if err != nil {
				return fmt.Errorf("read rule file %s: %w", path, err)
			}
			results[i] = lines
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Lists{}, err
	}

	var merged Lists
	for _, lines := range results {
		merged = merged.Merge(ParseLines(lines))
	}
	return merged, nil
}

// Load builds the rule set described by cfg: the rules section (with
// defaults for omitted lists) followed by every configured rule file.
func Load(ctx context.Context, cfg *config.Config) (*RuleSet, error) {
	if cfg == nil {
		return New(DefaultLists()), nil
	}
	lists := FromConfig(&cfg.Rules)
	if len(cfg.AdBlock.RuleFiles) > 0 {
		extra, err := LoadFiles(ctx, cfg.AdBlock.RuleFiles)
		if err != nil {
			return nil, err
		}
		lists = lists.Merge(extra)
	}
	return New(lists), nil
}

func readLines(path string) ([]string, error) {
	file, err := os.Open(strings.TrimPrefix(path, "file://"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}
