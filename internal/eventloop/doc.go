// Package eventloop provides a single goroutine task loop with a frame
// queue and cancellable timers.
//
// All tasks posted to a Loop run sequentially on the goroutine that called
// Run, so code driven by the loop needs no locking of its own state. Three
// kinds of scheduling are offered:
//
//   - Post queues a task to run as soon as the loop is idle.
//   - NextFrame queues a task for the next frame tick (16ms by default).
//     Tasks queued during a frame run on the following one.
//   - AfterFunc runs a task on the loop after a delay. Stopping the returned
//     Timer guarantees the task will not run, even if the delay already
//     elapsed and the task is waiting in the queue.
package eventloop
