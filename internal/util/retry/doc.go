// Package retry provides a bounded exponential backoff policy for transient
// failures.
//
// A [Policy] caps both the number of attempts and the total elapsed time.
// It is used for control-plane calls that fail with connection-refused while
// the server process is still opening its listening socket. Errors wrapped
// with [Fatal] stop the retry loop immediately.
package retry
