package model

// Seed is one crawl target read from the input file.
// It is created once per entity and never modified.
type Seed struct {
	// EntityID identifies the organization the URL belongs to.
	// Numeric ids are kept in canonical decimal form (see seed.CanonicalID).
	EntityID string `json:"entityId"`

	// URL is the absolute seed URL the crawl starts from (depth 0).
	URL string `json:"seedURL"`

	// Domain is the registrable domain of URL. Every page the crawl
	// accepts must resolve to this domain.
	Domain string `json:"allowedDomain"`
}

// PageRecord is the output record for one successfully fetched page.
// Records are built once and owned by the sink afterwards.
type PageRecord struct {
	// URL is the final URL the page was served from.
	URL string `json:"url"`

	// EntityID is the id of the seed this page was reached from.
	EntityID string `json:"entityId"`

	// Depth is the number of link hops from the seed page.
	Depth int `json:"depth"`

	// Text is the normalized readable text of the page.
	Text string `json:"text"`

	// ImageURLs are the absolute img src URLs in document order.
	ImageURLs []string `json:"imageURLs"`

	// FileURLs are the document links found on the page in discovery order.
	FileURLs []string `json:"fileURLs"`

	// FileTexts holds the extracted text for FileURLs[i] at index i.
	// A document that could not be extracted has an empty entry.
	FileTexts []string `json:"fileTexts"`
}

// ExtractedDocument is the text extracted from one linked document.
type ExtractedDocument struct {
	// SourceURL is the document URL as it was linked from the page.
	SourceURL string `json:"sourceURL"`

	// FinalURL is the URL after redirects; the format is derived from it.
	FinalURL string `json:"finalURL"`

	// ParentPageURL is the page the link was found on.
	ParentPageURL string `json:"parentPageURL"`

	// Domain is the registrable domain of the parent page. It names the
	// side-artifact subdirectory.
	Domain string `json:"domain"`

	// Text is the extracted text with control characters removed.
	Text string `json:"text"`
}
