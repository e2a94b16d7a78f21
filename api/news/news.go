package news

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	c "fx.service/api"
)

const (
	HostDefault = "api-berita-indonesia.vercel.app"

	notAvailable   = "N/A"
	defaultTimeout = 15 * time.Second
)

// Feed is one route/category pair of the news aggregator.
type Feed struct {
	Route    string
	Category string
}

func (f Feed) Source() string {
	return capitalize(f.Route) + " - " + capitalize(f.Category)
}

// DefaultFeeds are the economic, business and political feeds the dashboard
// shows, in display order.
var DefaultFeeds = []Feed{
	{Route: "sindonews", Category: "ekbis"},
	{Route: "sindonews", Category: "international"},
	{Route: "tempo", Category: "bisnis"},
	{Route: "antara", Category: "politik"},
	{Route: "cnn", Category: "internasional"},
}

type Article struct {
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
	Source   string `json:"source"`
	Date     string `json:"date"`
	Link     string `json:"link"`
	Image    string `json:"image"`
}

type feedResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Posts []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			PubDate     string `json:"pubDate"`
			Link        string `json:"link"`
			Thumbnail   string `json:"thumbnail"`
		} `json:"posts"`
	} `json:"data"`
}

type NewsClient struct {
	*c.Client
	Feeds []Feed
	Log   logrus.FieldLogger
}

func GetClient(opts ...c.Option) NewsClient {
	return GetClientForHost(HostDefault, opts...)
}

func GetClientForHost(host string, opts ...c.Option) NewsClient {
	return NewsClient{
		Client: c.ClientFactory(host, "", defaultTimeout, opts...),
		Feeds:  DefaultFeeds,
		Log:    logrus.WithField("component", "news"),
	}
}

// GetCombinedNews fetches every feed concurrently and returns the articles in
// feed order. A failing feed is logged and skipped.
func (nc *NewsClient) GetCombinedNews(ctx context.Context) []Article {
	results := make([][]Article, len(nc.Feeds))

	g, gctx := errgroup.WithContext(ctx)
	for i, feed := range nc.Feeds {
		g.Go(func() error {
			articles, err := nc.GetFeed(gctx, feed)
			if err != nil {
				nc.Log.WithError(err).WithField("feed", feed.Route+"/"+feed.Category).Warn("skipping news feed")
				return nil
			}
			results[i] = articles
			return nil
		})
	}
	_ = g.Wait()

	var combined []Article
	for _, articles := range results {
		combined = append(combined, articles...)
	}
	return combined
}

// GetFeed fetches a single feed. An unsuccessful response yields no articles.
func (nc *NewsClient) GetFeed(ctx context.Context, feed Feed) ([]Article, error) {
	endpoint := &url.URL{Path: "/" + feed.Route + "/" + feed.Category}

	response, err := nc.Client.Connection.Request(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	var raw feedResponse
	if err := json.NewDecoder(response.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("error unmarshaling %s/%s: %w", feed.Route, feed.Category, err)
	}

	if !raw.Success {
		return nil, nil
	}

	articles := make([]Article, 0, len(raw.Data.Posts))
	for _, post := range raw.Data.Posts {
		articles = append(articles, Article{
			Headline: orDefault(post.Title, notAvailable),
			Summary:  orDefault(post.Description, notAvailable),
			Source:   feed.Source(),
			Date:     orDefault(post.PubDate, notAvailable),
			Link:     orDefault(post.Link, notAvailable),
			Image:    orDefault(post.Thumbnail, notAvailable),
		})
	}

	return articles, nil
}

// Headlines renders the article titles as a markdown list for prompts.
func Headlines(articles []Article) string {
	if len(articles) == 0 {
		return "No recent news available."
	}

	var sb strings.Builder
	for _, a := range articles {
		sb.WriteString("- ")
		sb.WriteString(a.Headline)
		sb.WriteString("\n")
	}
	return sb.String()
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
