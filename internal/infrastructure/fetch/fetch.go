package fetch

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"taskpilot/internal/application/port/output"
)

var (
	_ output.Downloader = (*HTTPDownloader)(nil)
	_ output.FileSink   = (*DirSink)(nil)
)

// DefaultMaxBytes caps a single download.
const DefaultMaxBytes = 50 << 20

type HTTPDownloader struct {
	client   *http.Client
	maxBytes int64
	logger   output.LoggerPort
}

type Config struct {
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
	Logger    output.LoggerPort
}

func DefaultConfig() Config {
	return Config{
		Timeout:   60 * time.Second,
		MaxBytes:  DefaultMaxBytes,
		UserAgent: "taskpilot/1.0",
	}
}

type uaTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *uaTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(req)
}

func NewHTTPDownloader(cfg Config) *HTTPDownloader {
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &HTTPDownloader{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: &uaTransport{base: http.DefaultTransport, userAgent: cfg.UserAgent},
		},
		maxBytes: maxBytes,
		logger:   cfg.Logger,
	}
}

func (d *HTTPDownloader) Download(ctx context.Context, rawURL string) (*output.FetchedFile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read download body: %w", err)
	}
	if int64(len(data)) > d.maxBytes {
		return nil, fmt.Errorf("download %s exceeds %d bytes", rawURL, d.maxBytes)
	}

	if d.logger != nil {
		d.logger.Debug("downloaded", "url", rawURL, "bytes", len(data))
	}
	return &output.FetchedFile{
		Data:               data,
		ContentType:        resp.Header.Get("Content-Type"),
		ContentDisposition: resp.Header.Get("Content-Disposition"),
	}, nil
}

var filenameRe = regexp.MustCompile(`(?i)filename="?([^";]+)"?`)

// FileName picks the stored name for a download: the Content-Disposition
// filename, else the last URL path segment, else "download".
func FileName(rawURL, contentDisposition string) string {
	if contentDisposition != "" {
		if _, params, err := mime.ParseMediaType(contentDisposition); err == nil && params["filename"] != "" {
			return params["filename"]
		}
		if m := filenameRe.FindStringSubmatch(contentDisposition); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
			return base
		}
	}
	return "download"
}

// DirSink writes downloads into a local directory.
type DirSink struct {
	dir string
}

func NewDirSink(dir string) *DirSink {
	return &DirSink{dir: dir}
}

func (s *DirSink) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}

	target := filepath.Join(s.dir, safeName(name))
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", target, err)
	}
	return target, nil
}

func safeName(name string) string {
	name = filepath.Base(filepath.Clean("/" + name))
	if name == "/" || name == "." || name == "" {
		return "download"
	}
	return name
}
