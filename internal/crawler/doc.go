// Package crawler implements incremental channel crawling: the scheduler that picks which channels
// are due, the processor that pages backward through a channel's history down to its stored
// watermark, and the crawl pass that ties them together.
//
// A channel's LastSeenMessageID only moves forward and only after the messages below it are
// durably stored, so a crash mid-crawl re-fetches work instead of skipping it.
package crawler
