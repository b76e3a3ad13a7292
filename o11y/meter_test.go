package o11y

import (
	"context"
	"testing"
)

func TestPoolUtilization(t *testing.T) {
	// PoolUtilization should not panic even without explicit InitMeter.
	ctx := context.Background()
	PoolUtilization(ctx, "stt", 5, 2)
}

func TestOutboundActive(t *testing.T) {
	ctx := context.Background()
	OutboundActive(ctx, 3)
}

func TestTurnLatency(t *testing.T) {
	ctx := context.Background()
	TurnLatency(ctx, "thinking", 123.45)
}

func TestCallCost(t *testing.T) {
	ctx := context.Background()
	CallCost(ctx, 0.0042)
}

func TestCounter(t *testing.T) {
	ctx := context.Background()
	Counter(ctx, "test.counter", 5)
}

func TestHistogram(t *testing.T) {
	ctx := context.Background()
	Histogram(ctx, "test.histogram", 99.9)
}

func TestInitMeter(t *testing.T) {
	if err := InitMeter("test-meter-service"); err != nil {
		t.Fatalf("InitMeter: %v", err)
	}

	ctx := context.Background()
	PoolUtilization(ctx, "stt", 1, 0)
	OutboundActive(ctx, 1)
	TurnLatency(ctx, "speaking", 50.0)
	CallCost(ctx, 0.001)
	Counter(ctx, "post_init.counter", 1)
	Histogram(ctx, "post_init.histogram", 42.0)
}

func TestInitMeter_Reinit(t *testing.T) {
	if err := InitMeter("service-a"); err != nil {
		t.Fatalf("InitMeter service-a: %v", err)
	}
	if err := InitMeter("service-b"); err != nil {
		t.Fatalf("InitMeter service-b: %v", err)
	}

	ctx := context.Background()
	PoolUtilization(ctx, "stt", 0, 0)
}
