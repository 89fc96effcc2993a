package config

import "maps"

// SiteConfig holds the crawl settings for one registrable domain.
type SiteConfig struct {
	// Cookie is sent with every request to the site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra HTTP headers for the site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Depth overrides the global depth limit when non-zero.
	Depth int `yaml:"depth,omitempty"`

	// Mode overrides the global crawl mode ("http" or "browser").
	Mode string `yaml:"mode,omitempty"`

	// IgnorePatterns are glob patterns of URL paths never crawled.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns, when set, restrict crawling to matching paths.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// File is the structure of the .domaincrawl configuration file.
type File struct {
	// Sites maps registrable domains (e.g. "example.org") to their settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every site unless overridden.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig merges the site entry for domain over the defaults.
func (cf *File) GetSiteConfig(domain string) SiteConfig {
	result := cf.Defaults
	if len(cf.Defaults.Headers) > 0 {
		result.Headers = maps.Clone(cf.Defaults.Headers)
	}

	site, ok := cf.Sites[domain]
	if !ok {
		return result
	}
	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if site.Depth != 0 {
		result.Depth = site.Depth
	}
	if site.Mode != "" {
		result.Mode = site.Mode
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		maps.Copy(result.Headers, site.Headers)
	}
	if len(site.IgnorePatterns) > 0 {
		result.IgnorePatterns = site.IgnorePatterns
	}
	if len(site.FollowPatterns) > 0 {
		result.FollowPatterns = site.FollowPatterns
	}
	return result
}
