package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	c "fx.service/api"
)

func testClient(t *testing.T, handler http.HandlerFunc) NewsClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	nc := GetClientForHost(strings.TrimPrefix(srv.URL, "http://"), c.WithScheme("http"), c.WithRateLimit(1000, 1000))
	log, _ := test.NewNullLogger()
	nc.Log = log
	return nc
}

func TestGetCombinedNews_MergesFeedsInOrderAndSkipsFailures(t *testing.T) {
	nc := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sindonews/ekbis":
			w.Write([]byte(`{"success":true,"data":{"posts":[
				{"title":"Rupiah menguat","description":"Kurs turun","pubDate":"2024-10-01T10:00:00+07:00","link":"https://a/1","thumbnail":"https://a/1.jpg"},
				{"title":"BI tahan suku bunga","description":"","pubDate":"2024-10-01T11:00:00+07:00","link":"https://a/2"}
			]}}`))
		case "/tempo/bisnis":
			w.Write([]byte(`{"success":true,"data":{"posts":[{"title":"IHSG naik","link":"https://b/1"}]}}`))
		case "/antara/politik":
			w.Write([]byte(`{"success":false,"message":"not found","data":null}`))
		default:
			http.Error(w, "down", http.StatusNotFound)
		}
	})

	articles := nc.GetCombinedNews(context.Background())
	require.Len(t, articles, 3)

	assert.Equal(t, "Rupiah menguat", articles[0].Headline)
	assert.Equal(t, "Sindonews - Ekbis", articles[0].Source)
	assert.Equal(t, "https://a/1.jpg", articles[0].Image)

	assert.Equal(t, "N/A", articles[1].Summary)
	assert.Equal(t, "N/A", articles[1].Image)

	assert.Equal(t, "IHSG naik", articles[2].Headline)
	assert.Equal(t, "Tempo - Bisnis", articles[2].Source)
	assert.Equal(t, "N/A", articles[2].Date)
}

func TestGetCombinedNews_AllFeedsDown(t *testing.T) {
	nc := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusNotFound)
	})

	assert.Empty(t, nc.GetCombinedNews(context.Background()))
}

func TestHeadlines(t *testing.T) {
	assert.Equal(t, "No recent news available.", Headlines(nil))
	assert.Equal(t, "- a\n- b\n", Headlines([]Article{{Headline: "a"}, {Headline: "b"}}))
}

func TestFeedSource(t *testing.T) {
	assert.Equal(t, "Cnn - Internasional", Feed{Route: "cnn", Category: "internasional"}.Source())
}
