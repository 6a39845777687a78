package platform

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gcottom/retry"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// roomFetcher performs the HTTP side of liveness probes and stream
// resolution shared by the platform plugins.
type roomFetcher struct {
	client  *http.Client
	headers [][2]string
	cookies string
}

func newRoomFetcher(deps Deps) *roomFetcher {
	f := &roomFetcher{
		client:  &http.Client{Timeout: 15 * time.Second},
		headers: deps.Streamer.HeaderPairs(),
	}
	if deps.Streamer.Download != nil {
		f.cookies = deps.Streamer.Download.Cookies
	}
	return f
}

// fetch retrieves the room page body, retrying transient failures.
func (f *roomFetcher) fetch(ctx context.Context, url string) (string, error) {
	res, err := retry.Retry(retry.NewAlgSimpleDefault(), 3, f.fetchOnce, ctx, url)
	if err != nil {
		return "", err
	}
	return res[0].(string), nil
}

func (f *roomFetcher) fetchOnce(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	req.Header.Set("User-Agent", defaultUserAgent)
	for _, h := range f.headers {
		req.Header.Set(h[0], h[1])
	}
	if f.cookies != "" {
		req.Header.Set("Cookie", f.cookies)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("room page returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// unescapeJSONURL undoes the escaping stream URLs carry inside embedded
// room-page JSON.
func unescapeJSONURL(s string) string {
	s = strings.ReplaceAll(s, `\/`, `/`)
	s = strings.ReplaceAll(s, `\u0026`, "&")
	return s
}
