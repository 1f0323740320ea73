package duckduck

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstantAnswer_Success(t *testing.T) {
	t.Parallel()

	want := AnswerResponse{
		Heading:      "Software as a service",
		AbstractText: "SaaS is a software licensing and delivery model...",
		AbstractURL:  "https://en.wikipedia.org/wiki/Software_as_a_service",
		RelatedTopics: []RelatedTopic{
			{Text: "Cloud computing", FirstURL: "https://en.wikipedia.org/wiki/Cloud_computing"},
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "saas market", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("no_html"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(want)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	got, err := client.InstantAnswer(context.Background(), "saas market")

	require.NoError(t, err)
	assert.Equal(t, want.Heading, got.Heading)
	assert.Equal(t, want.AbstractURL, got.AbstractURL)
	require.Len(t, got.RelatedTopics, 1)
	assert.Equal(t, "Cloud computing", got.RelatedTopics[0].Text)
}

func TestInstantAnswer_EmptyAnswer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(AnswerResponse{})
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	got, err := client.InstantAnswer(context.Background(), "obscure query")

	require.NoError(t, err)
	assert.Empty(t, got.AbstractText)
	assert.Empty(t, got.RelatedTopics)
}

func TestInstantAnswer_HTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.InstantAnswer(context.Background(), "query")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestInstantAnswer_MalformedJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.InstantAnswer(context.Background(), "query")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()
	c := NewClient()
	hc := c.(*httpClient)
	assert.Equal(t, "https://api.duckduckgo.com", hc.baseURL)
	assert.NotNil(t, hc.http)
}
