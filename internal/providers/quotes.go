package providers

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"

	"calflow/internal/config"
	"calflow/internal/outbound"
)

// Quote is a single quotation with its author.
type Quote struct {
	Text     string `json:"text"`
	Author   string `json:"author"`
	Category string `json:"category,omitempty"`
}

func (q Quote) String() string {
	if q.Author == "" {
		return q.Text
	}
	return fmt.Sprintf("%s - %s", q.Text, q.Author)
}

// ZenQuotes serves random motivational quotes.
type ZenQuotes struct {
	client  *outbound.Client
	baseURL string
}

func NewZenQuotes(client *outbound.Client, baseURL string) *ZenQuotes {
	return &ZenQuotes{client: client, baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (z *ZenQuotes) Quote(ctx context.Context) (Quote, error) {
	var payload []struct {
		Q string `json:"q"`
		A string `json:"a"`
	}
	err := z.client.Do(ctx, outbound.Call{Service: "zenquotes", Op: "random", URL: z.baseURL + "/random"}, &payload)
	if err != nil {
		return Quote{}, upstream("zenquotes", err)
	}
	if len(payload) == 0 || strings.TrimSpace(payload[0].Q) == "" {
		return Quote{}, noResult("zenquotes returned no quote")
	}
	return Quote{Text: payload[0].Q, Author: payload[0].A}, nil
}

// NinjaQuotes serves quotes from a random category out of a fixed list.
type NinjaQuotes struct {
	client     *outbound.Client
	baseURL    string
	apiKey     string
	categories []string
	pick       func(n int) int
}

func NewNinjaQuotes(client *outbound.Client, baseURL, apiKey string, categories []string) *NinjaQuotes {
	return &NinjaQuotes{
		client:     client,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		categories: categories,
		pick:       rand.IntN,
	}
}

func (n *NinjaQuotes) Quote(ctx context.Context) (Quote, error) {
	if n.apiKey == "" {
		return Quote{}, config.Missing("API_NINJAS_KEY")
	}

	query := url.Values{}
	category := ""
	if len(n.categories) > 0 {
		category = n.categories[n.pick(len(n.categories))]
		query.Set("category", category)
	}

	var payload []struct {
		Quote    string `json:"quote"`
		Author   string `json:"author"`
		Category string `json:"category"`
	}
	err := n.client.Do(ctx, outbound.Call{
		Service: "api-ninjas",
		Op:      "quotes",
		URL:     n.baseURL + "/quotes",
		Query:   query,
		Header:  http.Header{"X-Api-Key": {n.apiKey}},
	}, &payload)
	if err != nil {
		return Quote{}, upstream("api-ninjas", err)
	}
	if len(payload) == 0 || strings.TrimSpace(payload[0].Quote) == "" {
		return Quote{}, noResult("no %s quote available", category)
	}

	author := payload[0].Author
	if author == "" {
		author = "Unknown"
	}
	return Quote{Text: payload[0].Quote, Author: author, Category: category}, nil
}
