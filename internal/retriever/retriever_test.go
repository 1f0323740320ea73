package retriever

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/segment-cli/internal/config"
	"github.com/sells-group/segment-cli/internal/model"
	"github.com/sells-group/segment-cli/internal/resilience"
	"github.com/sells-group/segment-cli/internal/scrape"
	"github.com/sells-group/segment-cli/pkg/duckduck"
	"github.com/sells-group/segment-cli/pkg/serper"
)

func testRetrieveConfig() config.RetrieveConfig {
	return config.RetrieveConfig{
		Concurrency:    4,
		TimeoutSecs:    5,
		Retries:        0,
		ProviderQPS:    1000,
		MaxPerQuery:    10,
		ScrapeTopN:     2,
		ScrapeParallel: 2,
	}
}

// stubScraper returns canned text or an error for every URL.
type stubScraper struct {
	text  string
	err   error
	calls atomic.Int64
}

func (s *stubScraper) Scrape(_ context.Context, targetURL string) (*scrape.Result, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &scrape.Result{URL: targetURL, Text: s.text, Source: "stub"}, nil
}

func serperServer(t *testing.T, handler http.HandlerFunc) serper.Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return serper.NewClient("test-key", serper.WithBaseURL(ts.URL))
}

func organicResponse(results ...serper.OrganicResult) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(serper.SearchResponse{Organic: results})
	}
}

func plan(queries ...model.Query) model.QueryPlan {
	return model.QueryPlan{Queries: queries}
}

func TestRetrieve_BuildsRecordsFromSearchResults(t *testing.T) {
	client := serperServer(t, organicResponse(
		serper.OrganicResult{Title: "Market Report", Link: "https://reports.example/a", Snippet: "The market is large.", Date: "Jan 5, 2025"},
		serper.OrganicResult{Title: "Another", Link: "https://news.example/b", Snippet: "More data."},
	))

	r := New(testRetrieveConfig(), client, nil, nil)
	recs, err := r.Retrieve(context.Background(), plan(
		model.Query{Text: "widget market size", Category: model.CategoryMarketSize, Endpoint: "search"},
	))
	require.NoError(t, err)
	require.Len(t, recs, 2)

	first := recs[0]
	assert.Equal(t, "https://reports.example/a", first.URL)
	assert.Equal(t, "reports.example", first.Domain)
	assert.Equal(t, model.ContentTypeWeb, first.ContentType)
	assert.Equal(t, []model.QueryCategory{model.CategoryMarketSize}, first.Categories)
	require.NotNil(t, first.PublishedAt)
	assert.Equal(t, 2025, first.PublishedAt.Year())
	assert.False(t, first.ScrapeOK)
	assert.Equal(t, "The market is large.", first.Snippet)
}

func TestRetrieve_DeduplicatesAcrossQueries(t *testing.T) {
	client := serperServer(t, organicResponse(
		serper.OrganicResult{Title: "Shared", Link: "https://shared.example/page", Snippet: "snippet"},
	))

	r := New(testRetrieveConfig(), client, nil, nil)
	recs, err := r.Retrieve(context.Background(), plan(
		model.Query{Text: "q one", Category: model.CategoryMarketSize, Endpoint: "search"},
		model.Query{Text: "q two", Category: model.CategorySegments, Endpoint: "search"},
	))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.ElementsMatch(t,
		[]model.QueryCategory{model.CategoryMarketSize, model.CategorySegments},
		recs[0].Categories)
}

func TestRetrieve_ScrapeSuccessSetsContent(t *testing.T) {
	client := serperServer(t, organicResponse(
		serper.OrganicResult{Title: "Page", Link: "https://a.example/1", Snippet: "short snippet"},
	))
	scraper := &stubScraper{text: "Full page content with far more detail."}

	r := New(testRetrieveConfig(), client, nil, scraper)
	recs, err := r.Retrieve(context.Background(), plan(
		model.Query{Text: "q", Category: model.CategoryTrends, Endpoint: "search"},
	))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].ScrapeOK)
	assert.Equal(t, "Full page content with far more detail.", recs[0].Content)
	assert.Equal(t, "short snippet", recs[0].Snippet)
}

func TestRetrieve_ScrapeFailureKeepsSnippet(t *testing.T) {
	client := serperServer(t, organicResponse(
		serper.OrganicResult{Title: "Page", Link: "https://a.example/1", Snippet: "only the snippet"},
	))
	scraper := &stubScraper{err: eris.New("blocked")}

	r := New(testRetrieveConfig(), client, nil, scraper)
	recs, err := r.Retrieve(context.Background(), plan(
		model.Query{Text: "q", Category: model.CategoryTrends, Endpoint: "search"},
	))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.False(t, recs[0].ScrapeOK)
	assert.Empty(t, recs[0].Content)
	assert.Equal(t, "only the snippet", recs[0].Body())
}

func TestRetrieve_OnlyTopNScraped(t *testing.T) {
	client := serperServer(t, organicResponse(
		serper.OrganicResult{Title: "1", Link: "https://a.example/1", Snippet: "s"},
		serper.OrganicResult{Title: "2", Link: "https://a.example/2", Snippet: "s"},
		serper.OrganicResult{Title: "3", Link: "https://a.example/3", Snippet: "s"},
		serper.OrganicResult{Title: "4", Link: "https://a.example/4", Snippet: "s"},
	))
	scraper := &stubScraper{text: "content"}

	cfg := testRetrieveConfig()
	cfg.ScrapeTopN = 2
	r := New(cfg, client, nil, scraper)
	_, err := r.Retrieve(context.Background(), plan(
		model.Query{Text: "q", Category: model.CategoryTrends, Endpoint: "search"},
	))
	require.NoError(t, err)
	assert.Equal(t, int64(2), scraper.calls.Load())
}

func TestRetrieve_FallbackProviderOnPrimaryFailure(t *testing.T) {
	primary := serperServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	ddg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(duckduck.AnswerResponse{
			Heading:      "Widgets",
			AbstractText: "Widgets are devices.",
			AbstractURL:  "https://ref.example/widgets",
			RelatedTopics: []duckduck.RelatedTopic{
				{Text: "Widget makers", FirstURL: "https://ref.example/makers"},
			},
		})
	}))
	t.Cleanup(ddg.Close)
	fallback := duckduck.NewClient(duckduck.WithBaseURL(ddg.URL))

	r := New(testRetrieveConfig(), primary, fallback, nil)
	recs, err := r.Retrieve(context.Background(), plan(
		model.Query{Text: "widgets", Category: model.CategoryMarketSize, Endpoint: "search"},
	))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "https://ref.example/widgets", recs[0].URL)
	assert.False(t, recs[0].ScrapeOK)
	require.NotNil(t, recs[0].Categories)
	assert.Nil(t, recs[0].PublishedAt)
}

func TestRetrieve_PrimaryFailureWithoutFallbackYieldsEmpty(t *testing.T) {
	primary := serperServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	r := New(testRetrieveConfig(), primary, nil, nil)
	recs, err := r.Retrieve(context.Background(), plan(
		model.Query{Text: "q", Category: model.CategoryTrends, Endpoint: "search"},
	))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRetrieve_MaxPerQueryCapsResults(t *testing.T) {
	var results []serper.OrganicResult
	for i := 0; i < 20; i++ {
		results = append(results, serper.OrganicResult{
			Title:   "r",
			Link:    "https://many.example/" + string(rune('a'+i)),
			Snippet: "s",
		})
	}
	client := serperServer(t, organicResponse(results...))

	cfg := testRetrieveConfig()
	cfg.MaxPerQuery = 5
	r := New(cfg, client, nil, nil)
	recs, err := r.Retrieve(context.Background(), plan(
		model.Query{Text: "q", Category: model.CategoryTrends, Endpoint: "search"},
	))
	require.NoError(t, err)
	assert.Len(t, recs, 5)
}

func TestRetrieve_NewsEndpointMapsContentType(t *testing.T) {
	client := serperServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(serper.SearchResponse{
			News: []serper.NewsResult{
				{Title: "Funding news", Link: "https://news.example/funding", Snippet: "raised", Date: "2 days ago"},
			},
		})
	})

	r := New(testRetrieveConfig(), client, nil, nil)
	recs, err := r.Retrieve(context.Background(), plan(
		model.Query{Text: "q", Category: model.CategoryCompetitors, Endpoint: "news"},
	))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, model.ContentTypeNews, recs[0].ContentType)
	assert.NotNil(t, recs[0].PublishedAt)
}

func TestRetrieve_LocaleForwardedToProvider(t *testing.T) {
	var got struct {
		GL string `json:"gl"`
		HL string `json:"hl"`
	}
	client := serperServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(serper.SearchResponse{})
	})

	r := New(testRetrieveConfig(), client, nil, nil, WithLocale("de", "de"))
	_, err := r.Retrieve(context.Background(), plan(
		model.Query{Text: "q", Category: model.CategoryTrends, Endpoint: "search"},
	))
	require.NoError(t, err)
	assert.Equal(t, "de", got.GL)
	assert.Equal(t, "de", got.HL)
}

func TestRetrieve_SharedBreakerInjected(t *testing.T) {
	primary := serperServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	set := resilience.NewBreakerSet(ProviderBreakerConfig())
	cfg := testRetrieveConfig()
	cfg.Concurrency = 1
	r := New(cfg, primary, nil, nil, WithBreaker(set.Get("serper")))

	// Five single-attempt failures reach the trip threshold; the shared set
	// sees the breaker open.
	var queries []model.Query
	for i := 0; i < 5; i++ {
		queries = append(queries, model.Query{Text: fmt.Sprintf("q%d", i), Category: model.CategoryTrends, Endpoint: "search"})
	}
	_, err := r.Retrieve(context.Background(), plan(queries...))
	require.NoError(t, err)
	assert.Equal(t, resilience.BreakerOpen, set.States()["serper"])
}

func TestRetrieve_CancelledContext(t *testing.T) {
	client := serperServer(t, organicResponse())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := New(testRetrieveConfig(), client, nil, nil)
	_, err := r.Retrieve(ctx, plan(
		model.Query{Text: "q", Category: model.CategoryTrends, Endpoint: "search"},
	))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseDate(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	got := parseDate("Jan 5, 2025", now)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), *got)

	got = parseDate("2024-11-20", now)
	require.NotNil(t, got)
	assert.Equal(t, 11, int(got.Month()))

	got = parseDate("3 days ago", now)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2025, 5, 29, 12, 0, 0, 0, time.UTC), *got)

	got = parseDate("2 months ago", now)
	require.NotNil(t, got)
	assert.Equal(t, time.Month(4), got.Month())

	assert.Nil(t, parseDate("", now))
	assert.Nil(t, parseDate("last Tuesday", now))
}
