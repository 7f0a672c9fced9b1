package postturn

import "testing"

func TestNewSchedulerRejectsInvalidCronExpression(t *testing.T) {
	r := &Runner{}
	if _, err := NewScheduler(r, "not a cron expression"); err == nil {
		t.Fatal("expected an error for an invalid cron expression")
	}
}

func TestNewSchedulerAcceptsAStandardFiveFieldExpression(t *testing.T) {
	r := &Runner{}
	s, err := NewScheduler(r, "0 */6 * * *")
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	s.Start()
	s.Stop()
}
