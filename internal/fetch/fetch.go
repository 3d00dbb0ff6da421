// Package fetch retrieves corpus sources: standard input, local files and http(s) URLs.
//
// Every source is read through a size limit, and each opened source reports a content
// type hint (from the HTTP header or the file extension) so callers can decide whether
// to run it through HTML extraction.
package fetch

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Default size limits.
const (
	DefaultMaxFileBytes = 50 * 1024 * 1024  // local files and stdin
	DefaultMaxHTTPBytes = 100 * 1024 * 1024 // http bodies, which may lack Content-Length
)

// DefaultTimeout bounds a whole HTTP request.
const DefaultTimeout = 30 * time.Second

const userAgent = "langsift/0.1"

// Kind is the type of a source.
type Kind int

const (
	KindStdin Kind = iota
	KindFile
	KindURL
)

func (k Kind) String() string {
	switch k {
	case KindStdin:
		return "stdin"
	case KindFile:
		return "file"
	case KindURL:
		return "url"
	default:
		return "unknown"
	}
}

// Source is an opened corpus source. Callers must Close it.
type Source struct {
	Name        string
	Kind        Kind
	ContentType string // media type without parameters; empty when unknown
	io.ReadCloser
}

// limitedReadCloser wraps an io.ReadCloser to enforce size limits
type limitedReadCloser struct {
	io.ReadCloser
	N      int64  // max bytes remaining
	source string // for error messages
}

func (l *limitedReadCloser) Read(p []byte) (n int, err error) {
	if l.N <= 0 {
		return 0, fmt.Errorf("content from %q exceeds size limit", l.source)
	}
	if int64(len(p)) > l.N {
		p = p[0:l.N]
	}
	n, err = l.ReadCloser.Read(p)
	l.N -= int64(n)
	return
}

// Fetcher opens sources. The zero value is not usable; use New.
type Fetcher struct {
	client       *http.Client
	stdin        io.ReadCloser
	maxFileBytes int64
	maxHTTPBytes int64
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLimits overrides the size limits. Non-positive values keep the defaults.
func WithLimits(maxFileBytes, maxHTTPBytes int64) Option {
	return func(f *Fetcher) {
		if maxFileBytes > 0 {
			f.maxFileBytes = maxFileBytes
		}
		if maxHTTPBytes > 0 {
			f.maxHTTPBytes = maxHTTPBytes
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithStdin replaces os.Stdin as the "-" source.
func WithStdin(r io.Reader) Option {
	return func(f *Fetcher) { f.stdin = io.NopCloser(r) }
}

// New creates a Fetcher with an HTTP client tuned for one-off downloads.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:       newHTTPClient(DefaultTimeout),
		stdin:        os.Stdin,
		maxFileBytes: DefaultMaxFileBytes,
		maxHTTPBytes: DefaultMaxHTTPBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// MaxBytes returns the size limit applied to sources of kind k.
func (f *Fetcher) MaxBytes(k Kind) int64 {
	if k == KindURL {
		return f.maxHTTPBytes
	}
	return f.maxFileBytes
}

// newHTTPClient splits the request timeout across the connection phases.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: timeout / 6,
			}).DialContext,
			TLSHandshakeTimeout:   timeout / 6,
			ResponseHeaderTimeout: timeout / 2,
			DisableKeepAlives:     true,
		},
	}
}

// Open opens a source:
//   - "-" reads from standard input
//   - URLs starting with "http://" or "https://" are fetched via HTTP
//   - everything else is treated as a local file path
func (f *Fetcher) Open(ctx context.Context, source string) (*Source, error) {
	switch {
	case source == "-":
		return &Source{
			Name: "stdin",
			Kind: KindStdin,
			ReadCloser: &limitedReadCloser{
				ReadCloser: f.stdin,
				N:          f.maxFileBytes,
				source:     "stdin",
			},
		}, nil
	case strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://"):
		return f.openURL(ctx, source)
	default:
		return f.openFile(source)
	}
}

func (f *Fetcher) openURL(ctx context.Context, url string) (*Source, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for URL %q: %w", url, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL %q: %w", url, err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP request failed for URL %q: status %d", url, resp.StatusCode)
	}

	if contentLength := resp.Header.Get("Content-Length"); contentLength != "" {
		if size, err := strconv.ParseInt(contentLength, 10, 64); err == nil && size > f.maxHTTPBytes {
			resp.Body.Close()
			return nil, fmt.Errorf("HTTP content too large (%d bytes > %d bytes limit)", size, f.maxHTTPBytes)
		}
	}

	return &Source{
		Name:        url,
		Kind:        KindURL,
		ContentType: mediaType(resp.Header.Get("Content-Type")),
		ReadCloser: &limitedReadCloser{
			ReadCloser: resp.Body,
			N:          f.maxHTTPBytes,
			source:     url,
		},
	}, nil
}

func (f *Fetcher) openFile(path string) (*Source, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("file %q does not exist", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to access file %q: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%q is a directory", path)
	}
	if info.Size() > f.maxFileBytes {
		return nil, fmt.Errorf("file %q is too large (%d bytes > %d bytes limit)", path, info.Size(), f.maxFileBytes)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %q: %w", path, err)
	}

	return &Source{
		Name:        path,
		Kind:        KindFile,
		ContentType: mediaType(mime.TypeByExtension(filepath.Ext(path))),
		ReadCloser:  file,
	}, nil
}

// ReadAll opens a source and reads it fully.
func (f *Fetcher) ReadAll(ctx context.Context, source string) ([]byte, *Source, error) {
	src, err := f.Open(ctx, source)
	if err != nil {
		return nil, nil, err
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", src.Name, err)
	}
	return data, src, nil
}

func mediaType(header string) string {
	if header == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return mt
}
