// Package service contains the application use cases. It resolves visibility,
// applies the assignment and lifecycle rules, runs store writes in
// transactions and, once a write has committed, flushes its side effects:
// cache invalidation first, then background job enqueue.
//
// Side-effect failures are logged and never undo or fail the write. The
// service depends only on the store, cache and jobs abstractions, never on a
// concrete database or Redis client.
package service
