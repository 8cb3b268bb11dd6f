package goalcast

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/richard-senior/goalcast/internal/logger"
	"github.com/richard-senior/goalcast/pkg/transport"
)

// DownloadHistoricalData fetches the season CSV for each given league code
// from the historical host into the raw data directory. Season is in the
// host's compact form, e.g. "2324" for 2023/24. Per-league failures are
// logged and skipped; the download fails only when nothing was retrieved
func DownloadHistoricalData(leagueCodes []string, season string) error {
	if err := os.MkdirAll(Config.RawDataPath, 0755); err != nil {
		return fmt.Errorf("failed to create raw data dir: %w", err)
	}

	downloaded := 0
	for _, code := range leagueCodes {
		url := fmt.Sprintf("%s/mmz4281/%s/%s.csv", Config.HistoricalBaseUrl, season, code)
		data, err := transport.Request(url, nil, nil)
		if err != nil {
			logger.Error("Failed", code, err)
			continue
		}

		target := filepath.Join(Config.RawDataPath, fmt.Sprintf("%s_%s.csv", code, season))
		if err := os.WriteFile(target, data, 0644); err != nil {
			logger.Error("Failed to write", target, err)
			continue
		}
		logger.Info("Downloaded", fmt.Sprintf("%s_%s.csv", code, season))
		downloaded++
	}

	if downloaded == 0 {
		return fmt.Errorf("downloaded no historical data for season %s", season)
	}
	return nil
}

// DiscoverSeasonCSVs scrapes a league data index page on the historical
// host and returns the CSV links it advertises, resolved to absolute URLs.
// Useful for finding which divisions a country page actually carries
func DiscoverSeasonCSVs(indexPage string) ([]string, error) {
	data, err := transport.GetHtml(Config.HistoricalBaseUrl + "/" + indexPage)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch index page %s: %w", indexPage, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse index page %s: %w", indexPage, err)
	}

	var links []string
	seen := map[string]struct{}{}
	doc.Find(`a[href$=".csv"]`).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		if !strings.HasPrefix(href, "http") {
			href = Config.HistoricalBaseUrl + "/" + strings.TrimPrefix(href, "/")
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}
		links = append(links, href)
	})

	logger.Info("Discovered CSV links on", indexPage, len(links))
	return links, nil
}
