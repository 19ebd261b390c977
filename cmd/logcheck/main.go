// Package main provides the logcheck CLI.
//
// logcheck drives a headless browser against the log viewer, checks that it renders and
// responds to a click, and keeps screenshots, a manifest and a JSON log for every run.
//
// Usage:
//
//	logcheck run [--url http://localhost:5006] [--engine chromedp]
//	logcheck list
//	logcheck show <run-id>
//	logcheck serve [--port 8787]
package main

func main() {
	Execute()
}
