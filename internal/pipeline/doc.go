// Package pipeline runs the crawl of each seed as a sequence of steps and
// crawls a batch of seeds concurrently.
//
// Every seed gets its own model.CrawlRun. A step records progress and
// failures on the run; a failing or panicking seed never stops the others.
package pipeline
