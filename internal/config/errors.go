package config

import "errors"

var (
	// ErrInvalidURL is returned when the target URL is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid target URL")
	// ErrUnknownEngine is returned for an engine other than playwright or chromedp.
	ErrUnknownEngine = errors.New("unknown browser engine")
	// ErrInvalidViewport is returned when the viewport is not WxH with positive sides.
	ErrInvalidViewport = errors.New("invalid viewport")
	// ErrInvalidTimeout is returned for a non-positive step timeout.
	ErrInvalidTimeout = errors.New("invalid timeout")
	// ErrConfigNotFound is returned when an explicitly named config file is missing.
	ErrConfigNotFound = errors.New("config file not found")
)
