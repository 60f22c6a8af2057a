// Package logs reads the booksync run log for `booksync log`.
//
// Last returns the trailing lines of the log with a bounded ring buffer and
// the byte offset where reading stopped. Follow polls from that offset and
// hands new lines to a callback until the context ends. Both accept an
// optional run filter so a single sync run can be isolated from a log that
// accumulates many.
package logs
