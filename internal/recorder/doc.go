// Package recorder batches pipeline output and flushes it to durable
// storage.
//
// Each record kind accumulates in its own batch under two independent
// triggers, whichever fires first: the batch reaching its configured size,
// or the flush interval elapsing since the batch's first unflushed record.
// A flush is one transactional multi-row write, retried as a unit with
// backoff; an exhausted batch is logged with enough detail to replay and
// then dropped so memory stays bounded. When every input channel has
// closed, one final flush of any partial batches runs before the recorder
// exits.
package recorder
