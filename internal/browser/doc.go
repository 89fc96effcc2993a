// Package browser implements the sequential crawl mode.
//
// A Session drives one real browser per seed through a Driver. Page links
// are visited by navigation; javascript: links can only be reached by
// clicking, so the session re-finds their anchor by Fingerprint on the
// source page and clicks it. When the native click fails, a scroll plus DOM
// click is tried once before the link is given up.
//
// ChromeDriver is the chromedp implementation. Tests use a fake Driver.
package browser
