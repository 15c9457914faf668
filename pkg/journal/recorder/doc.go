// Package recorder writes relay session records asynchronously.
//
// The relay calls Record once per stream from its request goroutine. Record
// hands the record to a buffered channel and returns; a single worker writes
// records to storage with a per-write timeout. A full buffer drops the record
// and increments the journal_dropped_total metric rather than slowing the
// relay. Close drains the buffer before returning.
package recorder
