// Package reactive 提供防抖的自动校验控制器
package reactive

import "time"

// Task 已安排的任务
type Task interface {
	// Cancel 取消任务，任务已执行或已取消时返回 false
	Cancel() bool
}

// Scheduler 延迟执行任务
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Task
}

// RealScheduler 基于 time.AfterFunc 的调度器
type RealScheduler struct{}

// AfterFunc 在 d 之后于新的 goroutine 中执行 f
func (RealScheduler) AfterFunc(d time.Duration, f func()) Task {
	return timerTask{timer: time.AfterFunc(d, f)}
}

type timerTask struct {
	timer *time.Timer
}

func (t timerTask) Cancel() bool {
	return t.timer.Stop()
}
