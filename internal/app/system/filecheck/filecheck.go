// Package filecheck validates upload candidates before a file record is
// created. It enforces a size cap, an extension deny-list, and a MIME type
// allow-list, and sanitizes the proposed filename.
package filecheck

import (
	"errors"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strings"
)

// DefaultMaxSize is the upload size cap when no override is configured (10 MiB).
const DefaultMaxSize = 10 * 1024 * 1024

// maxStemLength limits the filename stem (name without extension).
const maxStemLength = 200

// Typed rejection reasons. Handlers switch on these to pick a status code.
var (
	ErrTooLarge           = errors.New("file exceeds maximum size")
	ErrForbiddenExtension = errors.New("file extension is not allowed")
	ErrForbiddenType      = errors.New("file type is not allowed")
	ErrInvalidName        = errors.New("invalid filename")
)

// defaultForbiddenExtensions blocks executable and script payloads regardless
// of the declared MIME type.
var defaultForbiddenExtensions = map[string]bool{
	"exe": true,
	"bat": true,
	"cmd": true,
	"com": true,
	"msi": true,
	"scr": true,
	"dll": true,
	"sh":  true,
	"ps1": true,
	"vbs": true,
	"jar": true,
}

// defaultAllowedTypes is the document and image allow-list. A candidate is
// accepted if either its declared type or the type guessed from its extension
// is on the list.
var defaultAllowedTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"application/vnd.ms-powerpoint":                                     true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
	"application/zip": true,
	"text/plain":      true,
	"text/csv":        true,
	"text/markdown":   true,
	"image/png":       true,
	"image/jpeg":      true,
	"image/gif":       true,
	"image/webp":      true,
	"image/svg+xml":   true,
}

// Candidate is an upload proposal: what the client claims to be sending.
type Candidate struct {
	Name         string
	Size         int64
	DeclaredType string
}

// Admitted is a sanitized, validated upload ready for the store.
type Admitted struct {
	Name        string
	Size        int64
	ContentType string
}

// Gate holds validation configuration. The zero value is not usable;
// construct with New.
type Gate struct {
	maxSize      int64
	forbiddenExt map[string]bool
	allowedTypes map[string]bool
}

// Option configures a Gate.
type Option func(*Gate)

// WithMaxSize overrides the default size cap.
func WithMaxSize(n int64) Option {
	return func(g *Gate) {
		if n > 0 {
			g.maxSize = n
		}
	}
}

// WithForbiddenExtensions replaces the extension deny-list.
// Extensions are lowercase without the leading dot.
func WithForbiddenExtensions(exts []string) Option {
	return func(g *Gate) {
		m := make(map[string]bool, len(exts))
		for _, e := range exts {
			m[strings.ToLower(strings.TrimPrefix(e, "."))] = true
		}
		g.forbiddenExt = m
	}
}

// WithAllowedTypes replaces the MIME type allow-list.
// An empty list disables MIME checking entirely.
func WithAllowedTypes(types []string) Option {
	return func(g *Gate) {
		m := make(map[string]bool, len(types))
		for _, t := range types {
			m[strings.ToLower(t)] = true
		}
		g.allowedTypes = m
	}
}

// New creates a Gate with the default limits, adjusted by opts.
func New(opts ...Option) *Gate {
	g := &Gate{
		maxSize:      DefaultMaxSize,
		forbiddenExt: defaultForbiddenExtensions,
		allowedTypes: defaultAllowedTypes,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// MaxSize returns the configured size cap in bytes.
func (g *Gate) MaxSize() int64 {
	return g.maxSize
}

// Admit validates a candidate and returns the sanitized result, or one of the
// typed errors (possibly wrapped with detail). It never mutates any state.
func (g *Gate) Admit(c Candidate) (Admitted, error) {
	name, err := SanitizeName(c.Name)
	if err != nil {
		return Admitted{}, err
	}

	if c.Size > g.maxSize {
		return Admitted{}, fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, c.Size, g.maxSize)
	}

	ext := extOf(name)
	if ext != "" && g.forbiddenExt[ext] {
		return Admitted{}, fmt.Errorf("%w: .%s", ErrForbiddenExtension, ext)
	}

	declared := normalizeType(c.DeclaredType)
	guessed := normalizeType(mime.TypeByExtension("." + ext))

	if len(g.allowedTypes) > 0 {
		// Accept if either the declared or the guessed type is allowed,
		// matching how browsers and proxies disagree about types.
		if !g.allowedTypes[declared] && !g.allowedTypes[guessed] {
			reported := declared
			if reported == "" {
				reported = guessed
			}
			if reported == "" {
				reported = "unknown"
			}
			return Admitted{}, fmt.Errorf("%w: %s", ErrForbiddenType, reported)
		}
	}

	contentType := declared
	if contentType == "" {
		contentType = guessed
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return Admitted{
		Name:        name,
		Size:        c.Size,
		ContentType: contentType,
	}, nil
}

// SanitizeName strips path components, null bytes, and control characters
// from a proposed filename and truncates the stem to a safe length.
// Returns ErrInvalidName if nothing usable remains.
func SanitizeName(name string) (string, error) {
	// Browsers on Windows send backslash-separated paths.
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)

	// Strip null bytes and control characters.
	name = strings.Map(func(r rune) rune {
		if r == 0 || r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)

	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "", ErrInvalidName
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if len(stem) > maxStemLength {
		stem = stem[:maxStemLength]
	}
	if stem == "" && ext == "" {
		return "", ErrInvalidName
	}

	return stem + ext, nil
}

// extOf returns the lowercase extension of name without the dot.
func extOf(name string) string {
	ext := filepath.Ext(name)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// normalizeType lowercases a MIME type and drops parameters like charset.
func normalizeType(t string) string {
	t = strings.TrimSpace(strings.ToLower(t))
	if i := strings.Index(t, ";"); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return t
}
