// Package crawler implements the depth-bounded crawl core: the unit of work
// (Task), the expansion step that fetches a page and schedules its unseen
// links, and the session that seeds a run and waits for the task graph to
// drain. Fetching, deduplication, and scheduling are injected through the
// Fetcher, Frontier, and Submitter interfaces.
package crawler
