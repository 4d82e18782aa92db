package skill

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/domain"
	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/tool"
)

var trendTimeWindows = []string{"1h", "6h", "24h", "7d"}

// Trend is one detected topic with its relevance score.
type Trend struct {
	Topic     string  `json:"topic"`
	Relevance float64 `json:"relevance_score"`
	Source    string  `json:"source"`
	URL       string  `json:"url"`
}

// NewTrend validates and builds a Trend. Relevance outside [0,1] or a
// non-HTTP URL is a data error from the upstream feed, rejected here so it
// never reaches a report.
func NewTrend(topic string, relevance float64, source, url string) (*Trend, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, &domain.ValidationError{Field: "topic", Reason: "must not be empty"}
	}
	if relevance < 0 || relevance > 1 {
		return nil, &domain.ValidationError{Field: "relevance_score", Reason: fmt.Sprintf("must be within [0, 1], got %v", relevance)}
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, &domain.ValidationError{Field: "url", Reason: fmt.Sprintf("must be an http(s) URL, got %q", url)}
	}
	return &Trend{Topic: topic, Relevance: relevance, Source: source, URL: url}, nil
}

// TrendReport is the trend_detector output object.
type TrendReport struct {
	Trends      []Trend   `json:"trends"`
	Niche       string    `json:"niche"`
	TimeWindow  string    `json:"time_window"`
	RetrievedAt time.Time `json:"retrieved_at"`
}

var trendDetectorMetadata = Metadata{
	ID:          "trend_detector",
	Version:     "1.0.0",
	Name:        "Trend Detector",
	Description: "Scans niche news feeds and surfaces trending topics above a relevance threshold.",
	Category:    CategoryPerception,
	InputSchema: Schema{
		Type: "object",
		Properties: map[string]Property{
			"niche":         {Type: "string", Description: "Content niche to scan, e.g. fashion"},
			"time_window":   {Type: "string", Enum: trendTimeWindows, Description: "Lookback window"},
			"min_relevance": {Type: "number", Description: "Minimum relevance score to keep, default 0.75"},
		},
		Required: []string{"niche"},
	},
	OutputSchema: Schema{
		Type: "object",
		Properties: map[string]Property{
			"trends":       {Type: "array", Description: "Matching trends, highest relevance first"},
			"niche":        {Type: "string"},
			"time_window":  {Type: "string"},
			"retrieved_at": {Type: "string", Description: "RFC 3339 timestamp"},
		},
	},
	MCPServers: MCPServers{Required: []string{"news"}},
	Resources:  []string{"news://{niche}/trending"},
	Constraints: map[string]any{
		"max_cost_per_call_usd": 0.0,
	},
}

// TrendDetector reads the niche trending feed through the tool boundary,
// filters by relevance, and reports what is worth acting on.
type TrendDetector struct {
	tools  tool.Caller
	logger *zap.Logger
}

// NewTrendDetector builds the skill bound to a tool caller.
func NewTrendDetector(tools tool.Caller, logger *zap.Logger) *TrendDetector {
	return &TrendDetector{tools: tools, logger: logger}
}

func (d *TrendDetector) Meta() Metadata { return trendDetectorMetadata }

// Execute scans the feed for the niche and returns a TrendReport. The
// trends slice is always non-nil, a quiet feed yields an empty report
// rather than an error.
func (d *TrendDetector) Execute(ctx context.Context, input map[string]any) (*Result, error) {
	niche := strings.TrimSpace(stringField(input, "niche", ""))
	if niche == "" {
		return nil, &domain.ValidationError{Field: "niche", Reason: "is required"}
	}
	window := stringField(input, "time_window", "24h")
	if !enumMember(window, trendTimeWindows) {
		return nil, &domain.ValidationError{
			Field:  "time_window",
			Reason: fmt.Sprintf("must be one of %v, got %q", trendTimeWindows, window),
		}
	}
	minRelevance, err := floatField(input, "min_relevance", 0.75)
	if err != nil {
		return nil, err
	}
	if minRelevance < 0 || minRelevance > 1 {
		return nil, &domain.ValidationError{
			Field:  "min_relevance",
			Reason: fmt.Sprintf("must be within [0, 1], got %v", minRelevance),
		}
	}

	uri := fmt.Sprintf("news://%s/trending", niche)
	data, err := d.tools.ReadResource(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("read trending feed for %s: %w", niche, err)
	}

	var feed struct {
		Articles []struct {
			Title     string  `json:"title"`
			Relevance float64 `json:"relevance"`
			Source    string  `json:"source"`
			URL       string  `json:"url"`
		} `json:"articles"`
	}
	if err := json.Unmarshal(data, &feed); err != nil {
		return nil, fmt.Errorf("parse trending feed for %s: %w", niche, err)
	}

	trends := make([]Trend, 0, len(feed.Articles))
	for _, a := range feed.Articles {
		trend, err := NewTrend(a.Title, a.Relevance, a.Source, a.URL)
		if err != nil {
			d.logger.Warn("skipping malformed feed article",
				zap.String("niche", niche),
				zap.String("title", a.Title),
				zap.Error(err))
			continue
		}
		if trend.Relevance >= minRelevance {
			trends = append(trends, *trend)
		}
	}
	sort.SliceStable(trends, func(i, j int) bool {
		return trends[i].Relevance > trends[j].Relevance
	})

	d.logger.Info("trend scan complete",
		zap.String("niche", niche),
		zap.String("time_window", window),
		zap.Int("articles", len(feed.Articles)),
		zap.Int("trends", len(trends)))

	return &Result{
		Output: TrendReport{
			Trends:      trends,
			Niche:       niche,
			TimeWindow:  window,
			RetrievedAt: time.Now().UTC(),
		},
	}, nil
}
