package jm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
)

var (
	defaultAPIDomains = []string{
		"www.cdnaspa.vip",
		"www.cdnaspa.club",
		"www.cdnplaystation6.vip",
		"www.cdnplaystation6.cc",
	}
	defaultImageDomains = []string{
		"cdn-msp.jmapiproxy1.cc",
		"cdn-msp.jmapiproxy2.cc",
		"cdn-msp2.jmapiproxy2.cc",
		"cdn-msp3.jmapiproxy2.cc",
		"cdn-msp.jmapinodeudzn.net",
		"cdn-msp3.jmapinodeudzn.net",
	}
	domainServerURLs = []string{
		"https://rup4a04-c01.tos-ap-southeast-1.bytepluses.com/newsvr-2025.txt",
		"https://rup4a04-c02.tos-cn-hongkong.bytepluses.com/newsvr-2025.txt",
	}
)

// domainSet tracks the rotating API and image CDN domains, refreshed
// once per process from the encrypted domain list servers.
type domainSet struct {
	mu        sync.RWMutex
	apiList   []string
	imageList []string
	refreshed bool
}

func newDomainSet() *domainSet {
	return &domainSet{
		apiList:   append([]string{}, defaultAPIDomains...),
		imageList: append([]string{}, defaultImageDomains...),
	}
}

func (d *domainSet) api() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return merge(d.apiList, defaultAPIDomains)
}

func (d *domainSet) images() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return merge(d.imageList, defaultImageDomains)
}

func (d *domainSet) ensure(ctx context.Context, client *http.Client) {
	d.mu.RLock()
	done := d.refreshed
	d.mu.RUnlock()
	if done {
		return
	}

	latest := fetchLatestDomains(ctx, client)
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(latest) > 0 {
		d.apiList = merge(latest, defaultAPIDomains)
	}
	d.refreshed = true
}

func fetchLatestDomains(ctx context.Context, client *http.Client) []string {
	for _, u := range domainServerURLs {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			continue
		}
		resp, err := client.Do(req)
		if err != nil {
			continue
		}
		raw, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		text := strings.TrimSpace(string(raw))
		for len(text) > 0 && text[0] > 127 {
			text = text[1:]
		}
		decoded, err := decryptData(text, "", domainListSecret)
		if err != nil {
			continue
		}
		var m struct {
			Server []string `json:"Server"`
		}
		if err := json.Unmarshal([]byte(decoded), &m); err != nil {
			continue
		}
		out := make([]string, 0, len(m.Server))
		for _, s := range m.Server {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func merge(primary, fallback []string) []string {
	out := make([]string, 0, len(primary)+len(fallback))
	seen := map[string]struct{}{}
	for _, list := range [][]string{primary, fallback} {
		for _, d := range list {
			d = strings.TrimSpace(d)
			if d == "" {
				continue
			}
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}
	return out
}
