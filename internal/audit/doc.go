// Package audit delivers authentication audit events off the intent path.
//
// A [Dispatcher] owns one worker goroutine and a bounded queue. Events past
// the queue are dropped and counted, or wait for room, per [Config]. Close
// drains what was accepted.
//
// Sinks: [NoOpSink], [ChannelSink] for in-process consumers, [JSONWriterSink]
// for line-delimited files and [LogSink] for a zerolog logger.
//
// Which events exist is decided by the orchestrator and the flow functions,
// not here. This package does not import fleetAuth.
package audit
