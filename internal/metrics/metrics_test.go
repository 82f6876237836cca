package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveChannelCrawl(t *testing.T) {
	before := testutil.ToFloat64(channelCrawlsTotal.WithLabelValues("done_exhausted"))
	storedBefore := testutil.ToFloat64(messagesStoredTotal)

	ObserveChannelCrawl("done_exhausted", 3, 150*time.Millisecond)
	ObserveChannelCrawl("done_exhausted", 0, time.Second)

	if got := testutil.ToFloat64(channelCrawlsTotal.WithLabelValues("done_exhausted")) - before; got != 2 {
		t.Errorf("expected 2 crawls recorded, got %f", got)
	}
	if got := testutil.ToFloat64(messagesStoredTotal) - storedBefore; got != 3 {
		t.Errorf("expected 3 stored messages recorded, got %f", got)
	}
	if n := testutil.CollectAndCount(channelCrawlDurationSeconds); n != 1 {
		t.Errorf("expected duration histogram to be collected, got %d", n)
	}
}

func TestObserveIndexBatch(t *testing.T) {
	docsBefore := testutil.ToFloat64(indexedDocumentsTotal)
	failedBefore := testutil.ToFloat64(indexBatchesTotal.WithLabelValues("error"))

	ObserveIndexBatch("ok", 100)
	ObserveIndexBatch("error", 50)

	if got := testutil.ToFloat64(indexedDocumentsTotal) - docsBefore; got != 100 {
		t.Errorf("expected only successful documents counted, got %f", got)
	}
	if got := testutil.ToFloat64(indexBatchesTotal.WithLabelValues("error")) - failedBefore; got != 1 {
		t.Errorf("expected one failed batch, got %f", got)
	}
}

func TestObservePlatformAndLoop(t *testing.T) {
	ObservePlatformRequest("transient")
	ObserveRateLimitDelay(20 * time.Millisecond)
	ObserveLoopIteration("crawler", "ok")

	if val := testutil.ToFloat64(platformRequestsTotal.WithLabelValues("transient")); val < 1 {
		t.Errorf("expected transient platform request recorded, got %f", val)
	}
	if val := testutil.ToFloat64(loopIterationsTotal.WithLabelValues("crawler", "ok")); val < 1 {
		t.Errorf("expected loop iteration recorded, got %f", val)
	}
}
