// Package domain derives registrable domains (eTLD+1) from URLs.
//
// Every scope decision in the crawler compares registrable domains rather
// than hosts, so www.example.org, news.example.org and example.org all belong
// to the same crawl. The computation uses the public suffix list bundled with
// golang.org/x/net/publicsuffix, which handles multi-label suffixes such as
// co.uk correctly.
//
// # Usage
//
//	d, err := domain.Resolve("https://www.example.co.uk/about?x=1")
//	// d == "example.co.uk"
package domain
