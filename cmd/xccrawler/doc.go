// Package main hosts the xccrawler entrypoint.
//
// Pipeline: the discovery package walks the meet listing, dedup drops meets
// the store already holds and orders the rest most recent first, and the
// dispatcher drains them through a fixed pool of workers. Each worker
// fetches one meet page through the shared colly fetcher (one semaphore caps
// listing and meet requests together), parses it, optionally archives the
// raw HTML, writes the meet in a single transaction and optionally publishes
// a meet.ingested notification.
//
// Failures are per meet. A meet that cannot be fetched, parsed or written is
// recorded in the run summary and retried on the next run, since it is not
// in the store. Only a failed first listing page aborts a run.
//
// Commands:
//
//	xccrawler ingest [--concurrency N] [--max-meets N] [--dry-run]
//	xccrawler directory
//	xccrawler parse page.html [--meet-id N --name ... --date M/D/YY --state ST]
//
// Configuration comes from an optional --config file, a .env file and
// XCCRAWLER_* environment variables (XCCRAWLER_DB_DSN sets db.dsn).
package main
