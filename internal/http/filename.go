package http

import "strings"

// DefaultFilename is used when the response does not name the file.
const DefaultFilename = "reel.mp4"

// ResolveFilename extracts the filename parameter from a Content-Disposition
// header value. It never fails: a missing or malformed header yields
// DefaultFilename.
//
// Extended parameters (filename*=UTF-8''...) are not decoded.
func ResolveFilename(header string) string {
	return resolveFilename(header, DefaultFilename)
}

func resolveFilename(header, fallback string) string {
	idx := strings.Index(header, "filename=")
	if idx < 0 {
		return fallback
	}
	rest := strings.TrimSpace(header[idx+len("filename="):])
	if rest == "" {
		return fallback
	}

	var name string
	if q := rest[0]; q == '"' || q == '\'' {
		if end := strings.IndexByte(rest[1:], q); end >= 0 {
			name = rest[1 : end+1]
		} else {
			name = rest[1:]
		}
	} else {
		name = rest
		if semi := strings.IndexByte(name, ';'); semi >= 0 {
			name = name[:semi]
		}
	}

	name = baseName(strings.TrimSpace(name))
	if name == "" || name == "." || name == ".." {
		return fallback
	}
	return name
}

// baseName drops any directory components a server might smuggle in.
func baseName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		return name[i+1:]
	}
	return name
}
