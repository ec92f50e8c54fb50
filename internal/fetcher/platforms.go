package fetcher

import (
	"net/url"
	"strings"
)

// Platform is one social search endpoint expanded for a query.
type Platform struct {
	Name string
	URL  string
}

type queryEncoding int

const (
	encodePlus    queryEncoding = iota // spaces become "+"
	encodePercent                      // spaces become "%20"
	encodeCompact                      // spaces removed, for tag and channel names
)

type platformTemplate struct {
	name     string
	prefix   string
	suffix   string
	encoding queryEncoding
}

var platformTable = []platformTemplate{
	{"Twitter/X", "https://nitter.net/search?f=tweets&q=", "", encodePlus},
	{"Reddit", "https://www.reddit.com/search/?q=", "", encodePlus},
	{"YouTube", "https://www.youtube.com/results?search_query=", "", encodePlus},
	{"Instagram", "https://www.instagram.com/explore/tags/", "/", encodeCompact},
	{"Facebook", "https://www.facebook.com/search/top?q=", "", encodePercent},
	{"TikTok", "https://www.tiktok.com/search?q=", "", encodePercent},
	{"LinkedIn", "https://www.linkedin.com/search/results/all/?keywords=", "", encodePercent},
	{"Telegram", "https://t.me/s/", "", encodeCompact},
	{"Mastodon", "https://mastodon.social/tags/", "", encodeCompact},
	{"Pinterest", "https://www.pinterest.com/search/pins/?q=", "", encodePercent},
	{"Tumblr", "https://www.tumblr.com/search/", "", encodePercent},
	{"Twitch", "https://www.twitch.tv/search?term=", "", encodePercent},
	{"Discord.me", "https://discord.me/servers/search?q=", "", encodePlus},
	{"4chan Archive", "https://archive.4plebs.org/_/search/text/", "/", encodePercent},
	{"Parler", "https://parler.com/search?q=", "", encodePercent},
}

// Platforms expands a free-text query into the fixed platform table.
func Platforms(query string) []Platform {
	query = strings.TrimSpace(query)
	out := make([]Platform, 0, len(platformTable))
	for _, t := range platformTable {
		out = append(out, Platform{
			Name: t.name,
			URL:  t.prefix + encodeQuery(query, t.encoding) + t.suffix,
		})
	}
	return out
}

func encodeQuery(q string, enc queryEncoding) string {
	switch enc {
	case encodePlus:
		return url.QueryEscape(q)
	case encodePercent:
		return strings.ReplaceAll(url.QueryEscape(q), "+", "%20")
	default:
		return url.PathEscape(strings.ReplaceAll(q, " ", ""))
	}
}
