package resilience

import (
	"testing"
	"time"
)

func TestFromRetryConfig_ZeroKeepsDefaults(t *testing.T) {
	d := DefaultRetryPolicy()
	p := FromRetryConfig(0, 0, 0, 0, -1)
	if p.MaxAttempts != d.MaxAttempts || p.InitialBackoff != d.InitialBackoff || p.Jitter != d.Jitter {
		t.Errorf("got %+v, want defaults %+v", p, d)
	}
}

func TestFromBreakerConfig(t *testing.T) {
	c := FromBreakerConfig(2, 90)
	if c.FailureThreshold != 2 || c.Cooldown != 90*time.Second {
		t.Errorf("unexpected config: %+v", c)
	}
	d := FromBreakerConfig(0, 0)
	if def := DefaultBreakerConfig(); d.FailureThreshold != def.FailureThreshold || d.Cooldown != def.Cooldown {
		t.Errorf("zero values should keep defaults, got %+v", d)
	}
}
