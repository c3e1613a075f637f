package net

import "net/url"

func urlQueryEscape(s string) string { return url.QueryEscape(s) }

func urlQueryUnescape(s string) (string, error) { return url.QueryUnescape(s) }
