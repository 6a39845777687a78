package platform

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// PlatformHuya is the platform tag for huya.com broadcasters.
const PlatformHuya = "HUYA"

func init() {
	Register(PlatformHuya, newHuya)
}

var (
	huyaLiveRe   = regexp.MustCompile(`"eLiveStatus"\s*:\s*(\d+)`)
	huyaFlvURLRe = regexp.MustCompile(`"sFlvUrl"\s*:\s*"([^"]+)"`)
	huyaStreamRe = regexp.MustCompile(`"sStreamName"\s*:\s*"([^"]+)"`)
	huyaSuffixRe = regexp.MustCompile(`"sFlvUrlSuffix"\s*:\s*"([^"]+)"`)
	huyaAntiRe   = regexp.MustCompile(`"sFlvAntiCode"\s*:\s*"([^"]+)"`)
)

// huyaPlugin records huya.com rooms. Liveness and stream endpoints come
// from the stream JSON embedded in the room page.
type huyaPlugin struct {
	*basePlugin
	fetcher *roomFetcher
}

func newHuya(deps Deps) Plugin {
	p := &huyaPlugin{
		basePlugin: newBase(deps),
		fetcher:    newRoomFetcher(deps),
	}
	p.checkLive = p.isLive
	p.resolveURL = p.streamURL
	return p
}

// eLiveStatus 2 means on air; 1 is offline, 3 is replay.
func (p *huyaPlugin) isLive(ctx context.Context) (bool, error) {
	page, err := p.fetcher.fetch(ctx, p.deps.Streamer.URL)
	if err != nil {
		return false, err
	}
	m := huyaLiveRe.FindStringSubmatch(page)
	if m == nil {
		return false, fmt.Errorf("no live status in room page")
	}
	return m[1] == "2", nil
}

func (p *huyaPlugin) streamURL(ctx context.Context) (string, error) {
	page, err := p.fetcher.fetch(ctx, p.deps.Streamer.URL)
	if err != nil {
		return "", err
	}

	base := huyaFlvURLRe.FindStringSubmatch(page)
	name := huyaStreamRe.FindStringSubmatch(page)
	if base == nil || name == nil {
		return "", fmt.Errorf("no stream info in room page")
	}

	suffix := "flv"
	if m := huyaSuffixRe.FindStringSubmatch(page); m != nil {
		suffix = m[1]
	}

	url := fmt.Sprintf("%s/%s.%s", unescapeJSONURL(base[1]), name[1], suffix)
	if m := huyaAntiRe.FindStringSubmatch(page); m != nil && m[1] != "" {
		url += "?" + unescapeJSONURL(strings.ReplaceAll(m[1], "&amp;", "&"))
	}
	return url, nil
}
