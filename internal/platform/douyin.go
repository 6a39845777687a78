package platform

import (
	"context"
	"fmt"
	"regexp"
)

// PlatformDouyin is the platform tag for live.douyin.com broadcasters.
const PlatformDouyin = "DOUYIN"

func init() {
	Register(PlatformDouyin, newDouyin)
}

var (
	douyinStatusRe = regexp.MustCompile(`"status"\s*:\s*(\d+)\s*,\s*"status_str"`)
	douyinFlvRe    = regexp.MustCompile(`"flv_pull_url"\s*:\s*\{\s*"FULL_HD1"\s*:\s*"([^"]+)"`)
	douyinFlvSDRe  = regexp.MustCompile(`"flv_pull_url"\s*:\s*\{[^}]*?"([^"]*?)"\s*:\s*"(http[^"]+)"`)
)

// douyinPlugin records live.douyin.com rooms via the room-state JSON
// embedded in the page.
type douyinPlugin struct {
	*basePlugin
	fetcher *roomFetcher
}

func newDouyin(deps Deps) Plugin {
	p := &douyinPlugin{
		basePlugin: newBase(deps),
		fetcher:    newRoomFetcher(deps),
	}
	p.checkLive = p.isLive
	p.resolveURL = p.streamURL
	return p
}

// Room status 2 means streaming; 4 is ended.
func (p *douyinPlugin) isLive(ctx context.Context) (bool, error) {
	page, err := p.fetcher.fetch(ctx, p.deps.Streamer.URL)
	if err != nil {
		return false, err
	}
	m := douyinStatusRe.FindStringSubmatch(page)
	if m == nil {
		return false, fmt.Errorf("no room status in page")
	}
	return m[1] == "2", nil
}

func (p *douyinPlugin) streamURL(ctx context.Context) (string, error) {
	page, err := p.fetcher.fetch(ctx, p.deps.Streamer.URL)
	if err != nil {
		return "", err
	}

	if m := douyinFlvRe.FindStringSubmatch(page); m != nil {
		return unescapeJSONURL(m[1]), nil
	}
	// Fall back to whatever quality the room offers.
	if m := douyinFlvSDRe.FindStringSubmatch(page); m != nil {
		return unescapeJSONURL(m[2]), nil
	}
	return "", fmt.Errorf("no flv pull url in page")
}
