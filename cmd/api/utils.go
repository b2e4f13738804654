package main

import (
	"net/http"
	"strconv"
)

func parseLimit(r *http.Request, fallback int) int {
	limitParam := r.URL.Query().Get("limit")
	if limitParam == "" {
		return fallback
	}
	if l, err := strconv.Atoi(limitParam); err == nil && l > 0 {
		return l
	}
	return fallback
}

func parseBoolParam(r *http.Request, name string) bool {
	b, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && b
}
