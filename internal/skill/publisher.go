package skill

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/domain"
	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/tool"
)

const perPostCostUSD = 0.001

// Publication is the per-platform outcome of a publish request.
type Publication struct {
	Platform    string `json:"platform"`
	Status      string `json:"status"` // success, scheduled, failed
	PostID      string `json:"post_id,omitempty"`
	URL         string `json:"url,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
	Error       string `json:"error,omitempty"`
}

// PublishReport is the social_publisher output object.
type PublishReport struct {
	Publications []Publication `json:"publications"`
	TotalCostUSD float64       `json:"total_cost_usd"`
}

var socialPublisherMetadata = Metadata{
	ID:          "social_publisher",
	Version:     "1.0.0",
	Name:        "Social Publisher",
	Description: "Publishes content to one or more social platforms, isolating per-platform failures.",
	Category:    CategoryEngagement,
	InputSchema: Schema{
		Type: "object",
		Properties: map[string]Property{
			"platforms":     {Type: "array", Description: "Target platforms, in publish order"},
			"content":       {Type: "object", Description: "Post content; text is required"},
			"agent_id":      {Type: "string", Description: "Publishing agent"},
			"schedule_time": {Type: "string", Description: "RFC 3339; when set, posts are scheduled instead of published"},
			"ai_disclosure": {Type: "boolean", Description: "Append the AI-generated disclosure, default true"},
		},
		Required: []string{"platforms", "content", "agent_id"},
	},
	OutputSchema: Schema{
		Type: "object",
		Properties: map[string]Property{
			"publications":   {Type: "array", Description: "One entry per requested platform, request order"},
			"total_cost_usd": {Type: "number"},
		},
	},
	MCPServers: MCPServers{Required: []string{"social"}},
	Resources:  []string{},
	Constraints: map[string]any{
		"max_cost_per_call_usd": 0.01,
		"requires_disclosure":   true,
	},
}

// SocialPublisher fans one piece of content out to the requested platforms
// through the social tool server. A failure on one platform is recorded in
// that platform's Publication and never aborts the rest.
type SocialPublisher struct {
	tools  tool.Caller
	logger *zap.Logger
}

// NewSocialPublisher builds the skill bound to a tool caller.
func NewSocialPublisher(tools tool.Caller, logger *zap.Logger) *SocialPublisher {
	return &SocialPublisher{tools: tools, logger: logger}
}

func (p *SocialPublisher) Meta() Metadata { return socialPublisherMetadata }

func (p *SocialPublisher) Execute(ctx context.Context, input map[string]any) (*Result, error) {
	platforms := stringSliceField(input, "platforms")
	if len(platforms) == 0 {
		return nil, &domain.ValidationError{Field: "platforms", Reason: "must list at least one platform"}
	}
	for _, platform := range platforms {
		if !enumMember(platform, captionPlatforms) {
			return nil, &domain.ValidationError{
				Field:  "platforms",
				Reason: fmt.Sprintf("must be one of %v, got %q", captionPlatforms, platform),
			}
		}
	}

	content, _ := input["content"].(map[string]any)
	text := strings.TrimSpace(stringField(content, "text", ""))
	if text == "" {
		return nil, &domain.ValidationError{Field: "content.text", Reason: "is required"}
	}
	hashtags := stringSliceField(content, "hashtags")
	mediaURLs := stringSliceField(content, "media_urls")

	agentID := strings.TrimSpace(stringField(input, "agent_id", ""))
	if agentID == "" {
		return nil, &domain.ValidationError{Field: "agent_id", Reason: "is required"}
	}

	scheduleTime := stringField(input, "schedule_time", "")
	if scheduleTime != "" {
		if _, err := time.Parse(time.RFC3339, scheduleTime); err != nil {
			return nil, &domain.ValidationError{
				Field:  "schedule_time",
				Reason: fmt.Sprintf("must be RFC 3339, got %q", scheduleTime),
			}
		}
	}
	disclose := boolField(input, "ai_disclosure", true)

	publications := make([]Publication, 0, len(platforms))
	var totalCost float64
	for _, platform := range platforms {
		pub := p.publishOne(ctx, platform, text, hashtags, mediaURLs, agentID, scheduleTime, disclose)
		if pub.Status != "failed" {
			totalCost += perPostCostUSD
		}
		publications = append(publications, pub)
	}

	p.logger.Info("publish fan-out complete",
		zap.String("agent_id", agentID),
		zap.Int("platforms", len(platforms)),
		zap.Float64("total_cost_usd", totalCost))

	return &Result{
		Output:  PublishReport{Publications: publications, TotalCostUSD: totalCost},
		CostUSD: totalCost,
	}, nil
}

func (p *SocialPublisher) publishOne(ctx context.Context, platform, text string, hashtags, mediaURLs []string, agentID, scheduleTime string, disclose bool) Publication {
	body := formatForPlatform(platform, text, hashtags, disclose)

	args := map[string]any{
		"text":     body,
		"agent_id": agentID,
	}
	if len(mediaURLs) > 0 {
		args["media_urls"] = mediaURLs
	}
	if scheduleTime != "" {
		args["schedule_time"] = scheduleTime
	}

	res, err := p.tools.CallTool(ctx, platform+".create_post", args)
	if err != nil {
		p.logger.Warn("platform publish failed",
			zap.String("platform", platform),
			zap.String("agent_id", agentID),
			zap.Error(err))
		return Publication{Platform: platform, Status: "failed", Error: err.Error()}
	}

	pub := Publication{
		Platform: platform,
		Status:   "success",
		PostID:   res.String("post_id"),
		URL:      res.String("url"),
	}
	if scheduleTime != "" {
		pub.Status = "scheduled"
		pub.PublishedAt = scheduleTime
	} else {
		pub.PublishedAt = time.Now().UTC().Format(time.RFC3339)
	}
	return pub
}

// formatForPlatform shapes the text for one platform's conventions: twitter
// gets the hard 280 cut, instagram carries hashtags in the body, and every
// platform gets the disclosure when required.
func formatForPlatform(platform, text string, hashtags []string, disclose bool) string {
	body := text
	switch platform {
	case "instagram", "tiktok":
		if len(hashtags) > 0 {
			body += "\n\n" + strings.Join(hashtags, " ")
		}
	case "linkedin":
		if len(hashtags) > 0 {
			body += "\n" + strings.Join(hashtags, " ")
		}
	}
	if disclose {
		body += "\n\n🤖 AI-generated content"
	}
	return truncateRunes(body, platformCharLimit(platform))
}
