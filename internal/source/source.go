// Package source loads raw schedule text from a file, stdin or an http(s) URL.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	appLog "concordiacal/internal/log"
)

// Stdin is the reference that selects standard input.
const Stdin = "-"

// maxBodyBytes bounds how much schedule text is read from any source.
const maxBodyBytes = 4 << 20

// Result is the outcome of loading one reference.
type Result struct {
	Ref  string
	Text string
	// Unchanged is true when a URL answered 304 against the last load.
	Unchanged bool
}

// cacheEntry holds HTTP validators for a single URL.
type cacheEntry struct {
	ETag         string
	LastModified string
	Text         string
}

// Loader reads schedule text. It remembers HTTP validators per URL so
// repeated loads can be answered with 304 Not Modified.
type Loader struct {
	client *http.Client
	stdin  io.Reader

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewLoader creates a Loader reading "-" from stdin. A nil client gets a
// 15 second timeout.
func NewLoader(client *http.Client, stdin io.Reader) *Loader {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if stdin == nil {
		stdin = os.Stdin
	}
	return &Loader{client: client, stdin: stdin, cache: make(map[string]cacheEntry)}
}

// Load reads ref, which is "-", a file path or an http(s) URL.
func (l *Loader) Load(ctx context.Context, ref string) (Result, error) {
	switch {
	case ref == "":
		return Result{}, errors.New("source reference is empty")
	case ref == Stdin:
		text, err := readLimited(l.stdin)
		if err != nil {
			return Result{}, fmt.Errorf("read stdin: %w", err)
		}
		return Result{Ref: ref, Text: text}, nil
	case isURL(ref):
		return l.fetch(ctx, ref)
	default:
		f, err := os.Open(ref)
		if err != nil {
			return Result{}, err
		}
		defer f.Close()
		text, err := readLimited(f)
		if err != nil {
			return Result{}, fmt.Errorf("read %s: %w", ref, err)
		}
		return Result{Ref: ref, Text: text}, nil
	}
}

func (l *Loader) fetch(ctx context.Context, url string) (Result, error) {
	l.mu.Lock()
	meta, cached := l.cache[url]
	l.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, err
	}
	if cached {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Info("schedule fetch start", "url", redactURL(url))

	resp, err := l.client.Do(req)
	if err != nil {
		if cached {
			appLog.Error("schedule fetch failed, using last body", err, "url", redactURL(url))
			return Result{Ref: url, Text: meta.Text}, nil
		}
		return Result{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		text, err := readLimited(resp.Body)
		if err != nil {
			return Result{}, err
		}
		l.mu.Lock()
		l.cache[url] = cacheEntry{
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			Text:         text,
		}
		l.mu.Unlock()
		appLog.Info("schedule fetch success", "url", redactURL(url), "bytes", len(text))
		return Result{Ref: url, Text: text}, nil

	case http.StatusNotModified:
		if !cached {
			return Result{}, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Info("schedule not modified", "url", redactURL(url))
		return Result{Ref: url, Text: meta.Text, Unchanged: true}, nil

	default:
		if cached {
			appLog.Error("schedule fetch non-OK, using last body", errors.New(resp.Status), "url", redactURL(url), "status", resp.StatusCode)
			return Result{Ref: url, Text: meta.Text}, nil
		}
		return Result{}, fmt.Errorf("fetch %s: %s", redactURL(url), resp.Status)
	}
}

// ErrTooLarge is returned for input longer than maxBodyBytes.
var ErrTooLarge = fmt.Errorf("schedule text exceeds %d bytes", maxBodyBytes)

func readLimited(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBodyBytes+1))
	if err != nil {
		return "", err
	}
	if len(data) > maxBodyBytes {
		return "", ErrTooLarge
	}
	return string(data), nil
}

func isURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// redactURL hides path and query of a URL for logging, e.g.
// https://example.com/private?token=abcd -> https://example.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + redactedSuffix
}
