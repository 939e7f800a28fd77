package common

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	PUT(path string, body interface{}) error
	GET(path string, headers map[string]string) error
	GetLastStatusCode() int
	GetLastResponseBody() []byte
	GetResponseField(field string) (interface{}, error)
	ResponseContains(field string) bool
}

// RegisterSteps registers terminal reset, connectivity and response
// assertion steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^the terminal is idle$`, steps.terminalIsIdle)
	ctx.Step(`^the terminal is "(online|degraded|offline)"$`, steps.forceConnectivity)
	ctx.Step(`^the registrant snapshot is refreshed$`, steps.refreshSnapshot)
	ctx.Step(`^connectivity is handed back to the probe$`, steps.releaseConnectivity)

	ctx.Step(`^the response status should be (\d+)$`, steps.responseStatusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.fieldShouldEqual)
	ctx.Step(`^the response field "([^"]*)" should be (true|false)$`, steps.fieldShouldBeBool)
	ctx.Step(`^the response field "([^"]*)" should be present$`, steps.fieldShouldBePresent)
	ctx.Step(`^the response should contain (\d+) "([^"]*)"$`, steps.listShouldHaveLength)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) terminalIsIdle(ctx context.Context) error {
	if err := s.tc.POST("/session/clear", nil); err != nil {
		return err
	}
	if s.tc.GetLastStatusCode() != 200 {
		return fmt.Errorf("clear session: status %d: %s", s.tc.GetLastStatusCode(), s.tc.GetLastResponseBody())
	}
	return s.fieldShouldEqual(ctx, "state", "idle")
}

func (s *commonSteps) refreshSnapshot(ctx context.Context) error {
	if err := s.tc.POST("/session/snapshot", nil); err != nil {
		return err
	}
	return s.responseStatusShouldBe(ctx, 200)
}

func (s *commonSteps) forceConnectivity(ctx context.Context, status string) error {
	if err := s.tc.PUT("/connectivity", map[string]string{"status": status}); err != nil {
		return err
	}
	return s.fieldShouldEqual(ctx, "connectivity", status)
}

func (s *commonSteps) releaseConnectivity(ctx context.Context) error {
	if err := s.tc.PUT("/connectivity", map[string]string{"status": "auto"}); err != nil {
		return err
	}
	return s.responseStatusShouldBe(ctx, 200)
}

func (s *commonSteps) responseStatusShouldBe(ctx context.Context, expected int) error {
	if got := s.tc.GetLastStatusCode(); got != expected {
		return fmt.Errorf("expected status %d, got %d: %s", expected, got, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *commonSteps) fieldShouldEqual(ctx context.Context, field, expected string) error {
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != expected {
		return fmt.Errorf("expected %s to be %q, got %q", field, expected, got)
	}
	return nil
}

func (s *commonSteps) fieldShouldBeBool(ctx context.Context, field, expected string) error {
	want, _ := strconv.ParseBool(expected)
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		if !want {
			// false booleans are omitted from state responses
			return nil
		}
		return err
	}
	got, ok := v.(bool)
	if !ok || got != want {
		return fmt.Errorf("expected %s to be %v, got %v", field, want, v)
	}
	return nil
}

func (s *commonSteps) fieldShouldBePresent(ctx context.Context, field string) error {
	if !s.tc.ResponseContains(field) {
		return fmt.Errorf("expected field %s in %s", field, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *commonSteps) listShouldHaveLength(ctx context.Context, n int, field string) error {
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	list, ok := v.([]interface{})
	if !ok {
		return fmt.Errorf("%s is not a list", field)
	}
	if len(list) != n {
		return fmt.Errorf("expected %d %s, got %d", n, field, len(list))
	}
	return nil
}
