package skill

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/domain"
	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/tool"
)

func publishInput(overrides map[string]any) map[string]any {
	input := map[string]any{
		"platforms": []any{"twitter", "instagram"},
		"content": map[string]any{
			"text":     "New drop is live.",
			"hashtags": []any{"#newdrop", "#style"},
		},
		"agent_id": "agent-1",
	}
	for k, v := range overrides {
		input[k] = v
	}
	return input
}

func TestPublisherFansOutInOrder(t *testing.T) {
	tools := &stubCaller{tools: map[string]tool.Result{
		"twitter.create_post":   {"post_id": "tw-1", "url": "https://twitter.example/tw-1"},
		"instagram.create_post": {"post_id": "ig-1", "url": "https://instagram.example/ig-1"},
	}}
	p := NewSocialPublisher(tools, zap.NewNop())

	res, err := p.Execute(context.Background(), publishInput(nil))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	report := res.Output.(PublishReport)

	if len(report.Publications) != 2 {
		t.Fatalf("publications = %d, want 2", len(report.Publications))
	}
	if report.Publications[0].Platform != "twitter" || report.Publications[1].Platform != "instagram" {
		t.Errorf("publications out of request order: %+v", report.Publications)
	}
	for _, pub := range report.Publications {
		if pub.Status != "success" {
			t.Errorf("%s status = %q, want success", pub.Platform, pub.Status)
		}
		if pub.PostID == "" {
			t.Errorf("%s missing post_id", pub.Platform)
		}
	}
	if report.TotalCostUSD != 2*perPostCostUSD {
		t.Errorf("total_cost_usd = %v", report.TotalCostUSD)
	}
}

func TestPublisherIsolatesPlatformFailure(t *testing.T) {
	tools := &stubCaller{
		tools: map[string]tool.Result{
			"twitter.create_post":  {"post_id": "tw-1"},
			"linkedin.create_post": {"post_id": "li-1"},
		},
		toolErrs: map[string]error{
			"instagram.create_post": &domain.TransientDependencyError{
				Dependency: "social",
				Err:        errors.New("rate limited"),
			},
		},
	}
	p := NewSocialPublisher(tools, zap.NewNop())

	res, err := p.Execute(context.Background(), publishInput(map[string]any{
		"platforms": []any{"twitter", "instagram", "linkedin"},
	}))
	if err != nil {
		t.Fatalf("one failing platform must not fail the call: %v", err)
	}
	report := res.Output.(PublishReport)

	if len(report.Publications) != 3 {
		t.Fatalf("publications = %d, want 3", len(report.Publications))
	}
	if report.Publications[0].Status != "success" {
		t.Errorf("twitter status = %q", report.Publications[0].Status)
	}
	if report.Publications[1].Status != "failed" {
		t.Errorf("instagram status = %q, want failed", report.Publications[1].Status)
	}
	if report.Publications[1].Error == "" {
		t.Error("failed publication missing error detail")
	}
	if report.Publications[2].Status != "success" {
		t.Errorf("linkedin status = %q, want success after earlier failure", report.Publications[2].Status)
	}
	if report.TotalCostUSD != 2*perPostCostUSD {
		t.Errorf("total_cost_usd = %v, failed platform must not be billed", report.TotalCostUSD)
	}
}

func TestPublisherSchedules(t *testing.T) {
	tools := &stubCaller{tools: map[string]tool.Result{
		"twitter.create_post": {"post_id": "tw-1"},
	}}
	p := NewSocialPublisher(tools, zap.NewNop())

	res, err := p.Execute(context.Background(), publishInput(map[string]any{
		"platforms":     []any{"twitter"},
		"schedule_time": "2026-09-01T09:00:00Z",
	}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	pub := res.Output.(PublishReport).Publications[0]
	if pub.Status != "scheduled" {
		t.Errorf("status = %q, want scheduled", pub.Status)
	}
	if pub.PublishedAt != "2026-09-01T09:00:00Z" {
		t.Errorf("published_at = %q", pub.PublishedAt)
	}
	if len(tools.callArgs) != 1 || tools.callArgs[0]["schedule_time"] != "2026-09-01T09:00:00Z" {
		t.Errorf("schedule_time not forwarded: %v", tools.callArgs)
	}
}

func TestPublisherTwitterTruncationAndDisclosure(t *testing.T) {
	tools := &stubCaller{tools: map[string]tool.Result{
		"twitter.create_post": {"post_id": "tw-1"},
	}}
	p := NewSocialPublisher(tools, zap.NewNop())

	long := strings.Repeat("big announcement ", 30)
	_, err := p.Execute(context.Background(), publishInput(map[string]any{
		"platforms": []any{"twitter"},
		"content":   map[string]any{"text": long},
	}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	sent, _ := tools.callArgs[0]["text"].(string)
	if n := len([]rune(sent)); n > 280 {
		t.Errorf("sent %d runes to twitter, want <= 280", n)
	}
}

func TestPublisherDisclosureToggle(t *testing.T) {
	tools := &stubCaller{tools: map[string]tool.Result{
		"instagram.create_post": {"post_id": "ig-1"},
	}}
	p := NewSocialPublisher(tools, zap.NewNop())

	if _, err := p.Execute(context.Background(), publishInput(map[string]any{
		"platforms": []any{"instagram"},
	})); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	sent, _ := tools.callArgs[0]["text"].(string)
	if !strings.Contains(sent, "AI-generated") {
		t.Errorf("disclosure missing by default: %q", sent)
	}

	tools.callArgs = nil
	if _, err := p.Execute(context.Background(), publishInput(map[string]any{
		"platforms":     []any{"instagram"},
		"ai_disclosure": false,
	})); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	sent, _ = tools.callArgs[0]["text"].(string)
	if strings.Contains(sent, "AI-generated") {
		t.Errorf("disclosure present despite ai_disclosure=false: %q", sent)
	}
}

func TestPublisherInputValidation(t *testing.T) {
	p := NewSocialPublisher(&stubCaller{}, zap.NewNop())
	cases := []struct {
		name  string
		input map[string]any
		field string
	}{
		{"no platforms", publishInput(map[string]any{"platforms": []any{}}), "platforms"},
		{"unknown platform", publishInput(map[string]any{"platforms": []any{"myspace"}}), "platforms"},
		{"missing text", publishInput(map[string]any{"content": map[string]any{}}), "content.text"},
		{"missing agent", publishInput(map[string]any{"agent_id": ""}), "agent_id"},
		{"bad schedule", publishInput(map[string]any{"schedule_time": "tomorrow"}), "schedule_time"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := p.Execute(context.Background(), tc.input)
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tc.field {
				t.Errorf("field = %q, want %q", ve.Field, tc.field)
			}
		})
	}
}
