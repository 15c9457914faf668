// Package journal records one SessionRecord per relayed stream.
//
// The journal audits transport, not market data: who connected, for how
// long, how many bytes and chunks were relayed and how the stream ended.
// Prices never reach it.
//
// The Storage interface is implemented in the storage subpackage by memory,
// SQLite, PostgreSQL and Redis Streams backends. The recorder subpackage
// writes records asynchronously so the relay never waits on storage, and the
// retention subpackage prunes records by age and count on a cron schedule.
package journal
