package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (interface{}, error)
}

// RegisterSteps registers offline queue and reconciliation steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &syncSteps{tc: tc}

	ctx.Step(`^I look at the sync status$`, steps.syncStatus)
	ctx.Step(`^the pending bind for "([^"]*)" should be listed$`, steps.pendingShouldList)
	ctx.Step(`^the queue is eventually empty$`, steps.queueEventuallyEmpty)
}

type syncSteps struct {
	tc TestContext
}

func (s *syncSteps) syncStatus(ctx context.Context) error {
	return s.tc.GET("/sync", nil)
}

func (s *syncSteps) pendingShouldList(ctx context.Context, tokenCode string) error {
	v, err := s.tc.GetResponseField("pending")
	if err != nil {
		return err
	}
	list, _ := v.([]interface{})
	for _, item := range list {
		op, _ := item.(map[string]interface{})
		if op["token_code"] == tokenCode {
			return nil
		}
	}
	return fmt.Errorf("no pending bind for %s in %v", tokenCode, list)
}

// queueEventuallyEmpty drains until nothing is pending. The terminal may
// already be draining on its own after a connectivity change.
func (s *syncSteps) queueEventuallyEmpty(ctx context.Context) error {
	deadline := time.Now().Add(10 * time.Second)
	for {
		if err := s.tc.POST("/sync/drain", nil); err != nil {
			return err
		}
		if err := s.syncStatus(ctx); err != nil {
			return err
		}
		v, err := s.tc.GetResponseField("pending")
		if err != nil {
			return err
		}
		list, _ := v.([]interface{})
		if len(list) == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%d binds still pending", len(list))
		}
		time.Sleep(250 * time.Millisecond)
	}
}
