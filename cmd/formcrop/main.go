// Package main provides the entry point for the formcrop CLI.
//
// formcrop cuts the photo, signature and full-page images out of scanned
// application forms and fits each one into its upload size limit.
//
// Usage:
//
//	formcrop process scan.jpg
//	formcrop process --mode folders INCOMING
//	formcrop watch INCOMING
//
// See --help for all available options.
package main

import "os"

func main() {
	os.Exit(Execute())
}
