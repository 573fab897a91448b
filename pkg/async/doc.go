// Package async runs best-effort background work.
//
// A Runner owns a bounded queue and a fixed set of workers. Submit never
// blocks the caller: when the queue is full the task is dropped and logged.
// Each task runs with its own timeout, detached from the submitter's
// cancellation but keeping its context values, and a failing or panicking
// task is logged without affecting any other task.
//
// Webhook delivery and usage tracking go through a Runner so that a slow
// endpoint or a metrics insert can never hold up the request that triggered
// it.
package async
