package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSinkObserveCommandIncrementsCounterAndHistogram(t *testing.T) {
	before := testutil.ToFloat64(CommandsProcessedTotal.WithLabelValues("get"))

	start := time.Now().Add(-5 * time.Millisecond)
	(Sink{}).ObserveCommand("get", start)

	after := testutil.ToFloat64(CommandsProcessedTotal.WithLabelValues("get"))
	if after != before+1 {
		t.Errorf("CommandsProcessedTotal[get] = %v, want %v", after, before+1)
	}

	samples := testutil.CollectAndCount(CommandDurationSeconds)
	if samples == 0 {
		t.Error("expected CommandDurationSeconds to have at least one observed series")
	}
}

func TestSinkObserveExpiredAndEvicted(t *testing.T) {
	before := testutil.ToFloat64(ExpiredKeysTotal)
	(Sink{}).ObserveExpired(3)
	if after := testutil.ToFloat64(ExpiredKeysTotal); after != before+3 {
		t.Errorf("ExpiredKeysTotal = %v, want %v", after, before+3)
	}

	beforeEvicted := testutil.ToFloat64(EvictedKeysTotal)
	(Sink{}).ObserveEvicted()
	if after := testutil.ToFloat64(EvictedKeysTotal); after != beforeEvicted+1 {
		t.Errorf("EvictedKeysTotal = %v, want %v", after, beforeEvicted+1)
	}
}
