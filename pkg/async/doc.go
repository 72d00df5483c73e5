// Package async provides a generic single-assignment Future and small helpers
// for coordinating asynchronous work.
//
// The package is centred around the generic type Future that represents the
// eventual result of an asynchronous operation. A Future is obtained in one of
// two ways: Async starts the supplied function in its own goroutine and
// returns the future for its result, while NewFuture returns an unresolved
// future that some other component settles later via Complete. The second
// form is what a queue worker uses to deliver a result to a waiting
// submitter.
//
// A future is resolved exactly once; Complete is idempotent and later calls
// are ignored. Readers can block indefinitely with Await, bound the wait with
// AwaitContext or AwaitWithTimeout, or poll with IsComplete. WaitAll collects
// the results of several futures, joining any errors.
//
// # Usage
//
//	fut := async.NewFuture[int]()
//
//	go func() {
//	    // ... produce a value ...
//	    fut.Complete(42, nil)
//	}()
//
//	v, err := fut.AwaitContext(ctx)
//
// # Error Handling
//
// Await and friends return whatever error the producer passed to Complete.
// AwaitWithTimeout returns ErrTimeout when the deadline passes first, and
// AwaitContext returns the context error; in both cases the future itself
// remains pending for other readers.
package async
