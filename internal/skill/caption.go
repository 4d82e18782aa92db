package skill

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/domain"
	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/tool"
)

var (
	captionPlatforms = []string{"twitter", "instagram", "tiktok", "linkedin"}
	captionTones     = []string{"excited", "professional", "casual", "empowering", "educational"}
)

// platformCharLimit returns the hard caption length for a platform.
// Unknown platforms get the conservative 2200 default.
func platformCharLimit(platform string) int {
	switch platform {
	case "twitter":
		return 280
	case "instagram", "tiktok":
		return 2200
	case "linkedin":
		return 3000
	default:
		return 2200
	}
}

// Caption is the caption_writer output object.
type Caption struct {
	Caption                  string   `json:"caption"`
	CharacterCount           int      `json:"character_count"`
	HashtagsUsed             []string `json:"hashtags_used"`
	EstimatedEngagementScore float64  `json:"estimated_engagement_score"`
	PlatformCompliance       bool     `json:"platform_compliance"`
}

var captionWriterMetadata = Metadata{
	ID:          "caption_writer",
	Version:     "1.0.0",
	Name:        "Caption Writer",
	Description: "Writes platform-compliant post captions in a persona's voice.",
	Category:    CategoryGeneration,
	InputSchema: Schema{
		Type: "object",
		Properties: map[string]Property{
			"topic":                  {Type: "string", Description: "What the caption is about"},
			"persona_id":             {Type: "string", Description: "Persona whose voice to write in"},
			"platform":               {Type: "string", Enum: captionPlatforms},
			"tone":                   {Type: "string", Enum: captionTones, Description: "Default casual"},
			"max_length":             {Type: "integer", Description: "Caller cap on caption length, default 2200"},
			"include_hashtags":       {Type: "boolean", Description: "Default true"},
			"include_call_to_action": {Type: "boolean", Description: "Default true"},
		},
		Required: []string{"topic", "persona_id", "platform"},
	},
	OutputSchema: Schema{
		Type: "object",
		Properties: map[string]Property{
			"caption":                    {Type: "string"},
			"character_count":            {Type: "integer"},
			"hashtags_used":              {Type: "array"},
			"estimated_engagement_score": {Type: "number"},
			"platform_compliance":        {Type: "boolean"},
		},
	},
	MCPServers: MCPServers{Required: []string{"llm"}},
	Resources:  []string{},
	Constraints: map[string]any{
		"max_cost_per_call_usd": 0.01,
	},
}

// CaptionWriter drafts a caption through the text-generation tool, then
// shapes it to the target platform: call to action, hashtags, and a hard
// truncation to whichever is tighter, the caller's max_length or the
// platform limit.
type CaptionWriter struct {
	tools  tool.Caller
	logger *zap.Logger
}

// NewCaptionWriter builds the skill bound to a tool caller.
func NewCaptionWriter(tools tool.Caller, logger *zap.Logger) *CaptionWriter {
	return &CaptionWriter{tools: tools, logger: logger}
}

func (w *CaptionWriter) Meta() Metadata { return captionWriterMetadata }

func (w *CaptionWriter) Execute(ctx context.Context, input map[string]any) (*Result, error) {
	topic := strings.TrimSpace(stringField(input, "topic", ""))
	if topic == "" {
		return nil, &domain.ValidationError{Field: "topic", Reason: "is required"}
	}
	personaID := strings.TrimSpace(stringField(input, "persona_id", ""))
	if personaID == "" {
		return nil, &domain.ValidationError{Field: "persona_id", Reason: "is required"}
	}
	platform := stringField(input, "platform", "")
	if !enumMember(platform, captionPlatforms) {
		return nil, &domain.ValidationError{
			Field:  "platform",
			Reason: fmt.Sprintf("must be one of %v, got %q", captionPlatforms, platform),
		}
	}
	tone := stringField(input, "tone", "casual")
	if !enumMember(tone, captionTones) {
		return nil, &domain.ValidationError{
			Field:  "tone",
			Reason: fmt.Sprintf("must be one of %v, got %q", captionTones, tone),
		}
	}
	maxLength, err := intField(input, "max_length", 2200)
	if err != nil {
		return nil, err
	}
	if maxLength <= 0 {
		return nil, &domain.ValidationError{Field: "max_length", Reason: fmt.Sprintf("must be positive, got %d", maxLength)}
	}
	includeHashtags := boolField(input, "include_hashtags", true)
	includeCTA := boolField(input, "include_call_to_action", true)

	res, err := w.tools.CallTool(ctx, "generate_text", map[string]any{
		"prompt":     fmt.Sprintf("Write a %s social media caption about %s.", tone, topic),
		"persona_id": personaID,
		"platform":   platform,
	})
	if err != nil {
		return nil, fmt.Errorf("generate caption draft: %w", err)
	}
	caption := strings.TrimSpace(res.String("text"))
	if caption == "" {
		caption = strings.TrimSpace(res.String("caption"))
	}
	if caption == "" {
		return nil, &domain.TransientDependencyError{
			Dependency: "llm",
			Err:        fmt.Errorf("generate_text returned no text"),
		}
	}

	if includeCTA {
		caption += " " + callToAction(tone)
	}
	var hashtags []string
	if includeHashtags {
		hashtags = hashtagsFor(topic)
		caption += " " + strings.Join(hashtags, " ")
	}

	limit := platformCharLimit(platform)
	if maxLength < limit {
		limit = maxLength
	}
	caption = truncateRunes(caption, limit)

	count := len([]rune(caption))
	out := Caption{
		Caption:                  caption,
		CharacterCount:           count,
		HashtagsUsed:             hashtags,
		EstimatedEngagementScore: engagementScore(caption),
		PlatformCompliance:       count <= platformCharLimit(platform),
	}

	w.logger.Info("caption written",
		zap.String("platform", platform),
		zap.String("persona_id", personaID),
		zap.Int("character_count", count),
		zap.Float64("engagement", out.EstimatedEngagementScore))

	return &Result{Output: out, CostUSD: 0.01}, nil
}

// truncateRunes cuts to at most limit runes, trimming a trailing partial word.
func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	cut := string(runes[:limit])
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut)
}

func callToAction(tone string) string {
	switch tone {
	case "excited":
		return "Drop a comment and let me know what you think!"
	case "professional":
		return "Share your perspective in the comments."
	case "empowering":
		return "Tag someone who needs to see this."
	case "educational":
		return "Save this post for later."
	default:
		return "What do you think?"
	}
}

// hashtagsFor derives up to three hashtags from the topic words.
func hashtagsFor(topic string) []string {
	words := strings.Fields(strings.ToLower(topic))
	tags := make([]string, 0, 3)
	for _, w := range words {
		var b strings.Builder
		for _, r := range w {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				b.WriteRune(r)
			}
		}
		if b.Len() < 3 {
			continue
		}
		tags = append(tags, "#"+b.String())
		if len(tags) == 3 {
			break
		}
	}
	return tags
}

// engagementScore is a cheap pre-publish heuristic: hashtags, a question,
// and emoji each bump the 0.5 baseline, capped at 1.0.
func engagementScore(caption string) float64 {
	score := 0.5
	if strings.Contains(caption, "#") {
		score += 0.1
	}
	if strings.Contains(caption, "?") {
		score += 0.1
	}
	if containsEmoji(caption) {
		score += 0.15
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func containsEmoji(s string) bool {
	for _, r := range s {
		if r >= 0x1F300 && r <= 0x1FAFF || r >= 0x2600 && r <= 0x27BF {
			return true
		}
	}
	return false
}
