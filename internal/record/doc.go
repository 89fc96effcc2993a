// Package record assembles the output record of one crawled page.
//
// A Builder takes the page's normalized text, image sources and document
// links, extracts every document concurrently and returns a
// model.PageRecord whose FileTexts line up with FileURLs index by index.
// One Builder serves one crawl run: documents linked from several pages of
// the run are downloaded and extracted only once.
package record
