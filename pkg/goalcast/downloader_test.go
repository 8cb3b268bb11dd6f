package goalcast

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverSeasonCSVs(t *testing.T) {
	useTestConfig(t)
	fastTransport(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/englandm.php" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<html><body>
			<a href="mmz4281/2324/E0.csv">Premier League</a>
			<a href="mmz4281/2324/E1.csv">Championship</a>
			<a href="mmz4281/2324/E0.csv">Premier League again</a>
			<a href="notes.txt">Notes</a>
		</body></html>`)
	}))
	defer server.Close()

	Config.HistoricalBaseUrl = server.URL

	links, err := DiscoverSeasonCSVs("englandm.php")
	require.NoError(t, err)
	assert.Equal(t, []string{
		server.URL + "/mmz4281/2324/E0.csv",
		server.URL + "/mmz4281/2324/E1.csv",
	}, links, "duplicate and non-CSV links are filtered out")
}

func TestDownloadHistoricalDataSkipsFailures(t *testing.T) {
	useTestConfig(t)
	fastTransport(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/mmz4281/2324/E0.csv" {
			fmt.Fprint(w, sampleCSV)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	Config.HistoricalBaseUrl = server.URL

	require.NoError(t, DownloadHistoricalData([]string{"E0", "XX9"}, "2324"),
		"one missing league must not fail the download")

	data, err := os.ReadFile(filepath.Join(Config.RawDataPath, "E0_2324.csv"))
	require.NoError(t, err)
	assert.Equal(t, sampleCSV, string(data))

	_, err = os.Stat(filepath.Join(Config.RawDataPath, "XX9_2324.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestDownloadHistoricalDataFailsWhenNothingRetrieved(t *testing.T) {
	useTestConfig(t)
	fastTransport(t)

	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	Config.HistoricalBaseUrl = server.URL

	assert.Error(t, DownloadHistoricalData([]string{"E0"}, "2324"))
}
