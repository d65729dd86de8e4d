package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
)

type timingScenario struct {
	policy *TimingPolicy
	now    time.Time
	public domain.SourceSchedule
	portal domain.SourceSchedule
}

func (s *timingScenario) parse(value string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, value, s.policy.Location()); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q", value)
}

func (s *timingScenario) theTimeIs(value string) error {
	t, err := s.parse(value)
	if err != nil {
		return err
	}
	s.now = t
	return nil
}

func (s *timingScenario) publicLastUpdatedAt(value string) error {
	t, err := s.parse(value)
	if err != nil {
		return err
	}
	s.public.Advance(t)
	return nil
}

func (s *timingScenario) publicNeverUpdated() error {
	s.public = domain.SourceSchedule{}
	return nil
}

func (s *timingScenario) portalLastUpdatedAt(value string) error {
	t, err := s.parse(value)
	if err != nil {
		return err
	}
	s.portal.Advance(t)
	return nil
}

func (s *timingScenario) publicShouldBeDue() error {
	if d := s.policy.PublicDecision(s.now, s.public); !d.Due {
		return fmt.Errorf("expected public feed to be due, reason %q", d.Reason)
	}
	return nil
}

func (s *timingScenario) publicShouldNotBeDue() error {
	if d := s.policy.PublicDecision(s.now, s.public); d.Due {
		return fmt.Errorf("expected public feed not to be due, reason %q", d.Reason)
	}
	return nil
}

func (s *timingScenario) publicReasonShouldBe(reason string) error {
	if d := s.policy.PublicDecision(s.now, s.public); d.Reason != reason {
		return fmt.Errorf("expected reason %q, got %q", reason, d.Reason)
	}
	return nil
}

func (s *timingScenario) portalShouldBeDue() error {
	if d := s.policy.PortalDecision(s.now, s.portal); !d.Due {
		return fmt.Errorf("expected portal to be due, reason %q", d.Reason)
	}
	return nil
}

func (s *timingScenario) portalShouldNotBeDue() error {
	if d := s.policy.PortalDecision(s.now, s.portal); d.Due {
		return fmt.Errorf("expected portal not to be due, reason %q", d.Reason)
	}
	return nil
}

func initializeTimingScenario(ctx *godog.ScenarioContext) {
	s := &timingScenario{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		*s = timingScenario{policy: NewTimingPolicy(nil)}
		return ctx, nil
	})

	ctx.Step(`^the time is "([^"]*)"$`, s.theTimeIs)
	ctx.Step(`^the public feed was last updated at "([^"]*)"$`, s.publicLastUpdatedAt)
	ctx.Step(`^the public feed was never updated$`, s.publicNeverUpdated)
	ctx.Step(`^the portal was last updated at "([^"]*)"$`, s.portalLastUpdatedAt)
	ctx.Step(`^the public feed should be due$`, s.publicShouldBeDue)
	ctx.Step(`^the public feed should not be due$`, s.publicShouldNotBeDue)
	ctx.Step(`^the public decision reason should be "([^"]*)"$`, s.publicReasonShouldBe)
	ctx.Step(`^the portal should be due$`, s.portalShouldBeDue)
	ctx.Step(`^the portal should not be due$`, s.portalShouldNotBeDue)
}

func TestTimingFeature(t *testing.T) {
	if _, err := time.LoadLocation(DefaultLocationName); err != nil {
		t.Skipf("time zone database unavailable: %v", err)
	}

	suite := godog.TestSuite{
		Name:                "timing",
		ScenarioInitializer: initializeTimingScenario,
		Options: &godog.Options{
			Format:   "progress",
			Paths:    []string{"testdata/features/timing.feature"},
			Strict:   true,
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("timing feature scenarios failed")
	}
}
