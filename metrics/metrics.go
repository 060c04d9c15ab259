// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package metrics

import (
	"context"
)

var (
	Counters = map[string]counterOpts{
		"tasks_submitted_count": {
			Help:   "Count of submitted tasks.",
			Labels: labelSet{"func"},
		},
		"tasks_completed_count": {
			Help:   "Count of completed tasks.",
			Labels: labelSet{"func", "status"},
		},
		"actors_spawned_count": {
			Help:   "Count of spawned actors.",
			Labels: labelSet{"class"},
		},
		"actor_calls_count": {
			Help:   "Count of completed actor method calls.",
			Labels: labelSet{"class", "method", "status"},
		},
		"submissions_rejected_count": {
			Help: "Count of submissions rejected by admission control.",
		},
	}
	Gauges = map[string]gaugeOpts{
		"actors_live": {
			Help: "Current number of live actors.",
		},
		"calls_inflight": {
			Help: "Current number of tasks and actor calls that have not completed.",
		},
	}
	Histograms = map[string]histogramOpts{
		"call_latency_seconds": {
			Help:    "Latency of tasks and actor calls in seconds, from submission to completion.",
			Labels:  labelSet{"kind"},
			Buckets: []float64{0.001, 0.01, 0.1, 1, 10, 100},
		},
	}
)

// GetTasksSubmittedCountCounter returns a Counter to set metric tasks_submitted_count (count of submitted tasks).
func GetTasksSubmittedCountCounter(ctx context.Context, fn string) Counter {
	return getCounter(ctx, "tasks_submitted_count", map[string]string{"func": fn})
}

// GetTasksCompletedCountCounter returns a Counter to set metric tasks_completed_count (count of completed tasks).
func GetTasksCompletedCountCounter(ctx context.Context, fn, status string) Counter {
	return getCounter(ctx, "tasks_completed_count", map[string]string{"func": fn, "status": status})
}

// GetActorsSpawnedCountCounter returns a Counter to set metric actors_spawned_count (count of spawned actors).
func GetActorsSpawnedCountCounter(ctx context.Context, class string) Counter {
	return getCounter(ctx, "actors_spawned_count", map[string]string{"class": class})
}

// GetActorCallsCountCounter returns a Counter to set metric actor_calls_count (count of completed actor method calls).
func GetActorCallsCountCounter(ctx context.Context, class, method, status string) Counter {
	return getCounter(ctx, "actor_calls_count", map[string]string{"class": class, "method": method, "status": status})
}

// GetSubmissionsRejectedCountCounter returns a Counter to set metric submissions_rejected_count (count of submissions rejected by admission control).
func GetSubmissionsRejectedCountCounter(ctx context.Context) Counter {
	return getCounter(ctx, "submissions_rejected_count", nil)
}

// GetActorsLiveGauge returns a Gauge to set metric actors_live (current number of live actors).
func GetActorsLiveGauge(ctx context.Context) Gauge {
	return getGauge(ctx, "actors_live", nil)
}

// GetCallsInflightGauge returns a Gauge to set metric calls_inflight (current number of tasks and actor calls that have not completed).
func GetCallsInflightGauge(ctx context.Context) Gauge {
	return getGauge(ctx, "calls_inflight", nil)
}

// GetCallLatencySecondsHistogram returns a Histogram to set metric call_latency_seconds (latency of tasks and actor calls in seconds).
func GetCallLatencySecondsHistogram(ctx context.Context, kind string) Histogram {
	return getHistogram(ctx, "call_latency_seconds", map[string]string{"kind": kind})
}
