// Package main provides the entry point for the domaincrawl CLI.
//
// domaincrawl crawls the web sites listed in a seed file, stays inside each
// seed's registrable domain and records the readable text, images and linked
// documents of every page it reaches.
//
// Usage:
//
//	domaincrawl crawl seeds.csv
//	domaincrawl pages [entity-id]
//
// See --help for all available options.
package main

func main() {
	Execute()
}
