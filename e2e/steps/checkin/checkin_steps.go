package checkin

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string, headers map[string]string) error
	Do(method, path string, body interface{}, headers map[string]string) error
	GetResponseField(field string) (interface{}, error)
	GetAdminToken() string
}

// RegisterSteps registers operator and override steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &checkinSteps{tc: tc}

	ctx.Step(`^I scan wristband "([^"]*)"$`, steps.scan)
	ctx.Step(`^I search for "([^"]*)"$`, steps.search)
	ctx.Step(`^I select registrant "([^"]*)"$`, steps.selectRegistrant)
	ctx.Step(`^I confirm the check-in$`, steps.confirm)
	ctx.Step(`^I dismiss the result$`, steps.dismiss)
	ctx.Step(`^an admin overrides with reason "([^"]*)"$`, steps.overrideAsAdmin)
	ctx.Step(`^I override with reason "([^"]*)" without authentication$`, steps.overrideWithoutAuth)

	ctx.Step(`^the notice code should be "([^"]*)"$`, steps.noticeCodeShouldBe)
	ctx.Step(`^the issues should include "([^"]*)"$`, steps.issuesShouldInclude)
	ctx.Step(`^the first candidate should be "([^"]*)"$`, steps.firstCandidateShouldBe)
}

type checkinSteps struct {
	tc TestContext
}

func (s *checkinSteps) scan(ctx context.Context, code string) error {
	return s.tc.POST("/session/scan", map[string]string{"code": code})
}

func (s *checkinSteps) search(ctx context.Context, query string) error {
	return s.tc.GET("/session/search?q="+url.QueryEscape(query), nil)
}

func (s *checkinSteps) selectRegistrant(ctx context.Context, registrantID string) error {
	return s.tc.POST("/session/select", map[string]string{"registrant_id": registrantID})
}

func (s *checkinSteps) confirm(ctx context.Context) error {
	return s.tc.POST("/session/confirm", nil)
}

func (s *checkinSteps) dismiss(ctx context.Context) error {
	return s.tc.POST("/session/dismiss", nil)
}

func (s *checkinSteps) overrideAsAdmin(ctx context.Context, reason string) error {
	if s.tc.GetAdminToken() == "" {
		return godog.ErrPending
	}
	return s.tc.Do("POST", "/session/override", map[string]string{"reason": reason}, map[string]string{
		"Authorization": "Bearer " + s.tc.GetAdminToken(),
	})
}

func (s *checkinSteps) overrideWithoutAuth(ctx context.Context, reason string) error {
	return s.tc.POST("/session/override", map[string]string{"reason": reason})
}

func (s *checkinSteps) noticeCodeShouldBe(ctx context.Context, code string) error {
	v, err := s.tc.GetResponseField("notice.code")
	if err != nil {
		return err
	}
	if v != code {
		return fmt.Errorf("expected notice %q, got %v", code, v)
	}
	return nil
}

func (s *checkinSteps) issuesShouldInclude(ctx context.Context, issue string) error {
	v, err := s.tc.GetResponseField("issues")
	if err != nil {
		return err
	}
	list, _ := v.([]interface{})
	for _, item := range list {
		if strings.EqualFold(fmt.Sprint(item), issue) {
			return nil
		}
	}
	return fmt.Errorf("issue %q not in %v", issue, list)
}

func (s *checkinSteps) firstCandidateShouldBe(ctx context.Context, registrantID string) error {
	v, err := s.tc.GetResponseField("candidates.0.registrant.id")
	if err != nil {
		return err
	}
	if v != registrantID {
		return fmt.Errorf("expected first candidate %s, got %v", registrantID, v)
	}
	return nil
}
