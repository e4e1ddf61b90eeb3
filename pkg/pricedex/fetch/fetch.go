package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/cognicore/pricedex/pkg/pricedex/internalerr"
)

// Provenance says where a dataset snapshot came from.
type Provenance string

const (
	ProvenanceCache   Provenance = "cache"
	ProvenanceNetwork Provenance = "network"
)

// Dataset is the raw dataset text plus its provenance. Transient;
// only the cache entry persists it.
type Dataset struct {
	Text       string
	Provenance Provenance
}

// Progress receives discrete phase notifications during a fetch, so a
// caller can surface "searching cache" / "downloading" to its user.
type Progress interface {
	CheckingCache()
	Downloading()
}

// Fetcher retrieves the dataset cache-first with network fallback.
// Once populated, the cache is authoritative: the network is consulted
// again only after an explicit PurgeCache.
type Fetcher struct {
	URL        string
	Cache      *Cache
	HTTPClient *http.Client
	Logger     zerolog.Logger
	Progress   Progress
}

// FetchDataset returns the dataset text and its provenance.
//
// Protocol: read the cache entry for the dataset's logical path and
// return it on a hit; otherwise download, bypassing intermediate HTTP
// caches. A successful download is written back to the cache
// best-effort — a cache-write failure is logged and swallowed, the
// downloaded text is still returned. When both sources fail the
// result wraps ErrDatasetUnavailable with the network failure reason.
func (f *Fetcher) FetchDataset(ctx context.Context) (Dataset, error) {
	key := f.cacheKey()

	if f.Progress != nil {
		f.Progress.CheckingCache()
	}
	if f.Cache != nil {
		text, ok, err := f.Cache.Read(key)
		if err != nil {
			f.Logger.Warn().Err(err).Str("key", key).Msg("cache read failed, falling back to network")
		}
		if ok {
			return Dataset{Text: text, Provenance: ProvenanceCache}, nil
		}
	}

	if f.Progress != nil {
		f.Progress.Downloading()
	}
	text, err := f.download(ctx)
	if err != nil {
		return Dataset{}, fmt.Errorf("%w: %v", internalerr.ErrDatasetUnavailable, err)
	}

	if f.Cache != nil {
		if err := f.Cache.Write(key, text); err != nil {
			f.Logger.Warn().Err(err).Str("key", key).Msg("cache write failed, serving network copy anyway")
		}
	}

	return Dataset{Text: text, Provenance: ProvenanceNetwork}, nil
}

// PurgeCache removes the cached dataset, forcing the next fetch onto
// the network. Safe to call when nothing is cached.
func (f *Fetcher) PurgeCache() error {
	if f.Cache == nil {
		return nil
	}
	return f.Cache.Purge(f.cacheKey())
}

func (f *Fetcher) download(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return "", err
	}
	// Bypass intermediate HTTP caches; the file cache is the only
	// cache this system trusts.
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	client := f.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	// Captive portals and expired share links answer 200 with an HTML
	// page. Importing one as CSV would wipe out good data with junk.
	if looksLikeHTML(body) {
		return "", fmt.Errorf("response is an HTML page, not a dataset")
	}

	return string(body), nil
}

func (f *Fetcher) cacheKey() string {
	if u, err := url.Parse(f.URL); err == nil && u.Path != "" {
		return u.Path
	}
	return f.URL
}

// looksLikeHTML reports whether body starts with an HTML document.
// Only the leading tokens are inspected; a CSV field containing "<" is
// not an HTML document.
func looksLikeHTML(body []byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if !bytes.HasPrefix(trimmed, []byte("<")) {
		return false
	}

	z := html.NewTokenizer(bytes.NewReader(trimmed))
	for i := 0; i < 8; i++ {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.DoctypeToken:
			return true
		case html.CommentToken:
			continue
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "html", "head", "body", "meta", "title", "script":
				return true
			}
			return false
		default:
			return false
		}
	}
	return false
}
