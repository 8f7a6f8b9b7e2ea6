package service

import "time"

// priorityOffsetMicros is how many microseconds one priority level advances a
// request against concurrently arriving lower-priority requests (10 ms per
// level). Priority is a nudge, not global preemption: a request older than
// 10ms x delta-priority still pops first.
const priorityOffsetMicros = 10_000

// ComputeScore derives the intake-queue ordering score. Lower score pops
// earlier; arrival time dominates within a priority level, so FIFO holds per
// (course, priority).
func ComputeScore(now time.Time, priority int) float64 {
	return float64(now.UnixMicro()) - float64(priority)*priorityOffsetMicros
}
