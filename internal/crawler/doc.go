// Package crawler crawls the pages of one registrable domain.
//
// # Architecture
//
// The package is built from small parts that a coordinator composes:
//
//   - Classifier: decides what a raw href is (page, document, script or rejected)
//   - Frontier: FIFO of pages to visit with an insert-only visited set
//   - Parse: extracts anchors and image sources with goquery
//   - Spider: the event-driven coordinator that owns the Frontier
//
// The Spider runs up to N fetch workers. A worker fetches one page, normalizes
// its text, classifies its links, builds the page record (extracting linked
// documents on the way) and emits it through the model.CrawlRun. It then sends
// the discovered page links back to the coordinator, which is the only
// goroutine that queues or dequeues links. Workers only claim redirect
// targets in the Frontier's visited set. The crawl ends when the Frontier
// is empty and no worker is running.
//
// # Scope
//
// The allowed domain is fixed when the crawl starts. A link is followed only
// when its registrable domain equals the seed's, so subdomains such as
// blog.example.org are in scope for a seed on www.example.org.
//
// # Usage
//
//	spider := crawler.NewSpider(fetchClient,
//		crawler.WithMaxDepth(10),
//		crawler.WithDocumentExtractor(extractor),
//	)
//	err := spider.Crawl(ctx, run)
package crawler
