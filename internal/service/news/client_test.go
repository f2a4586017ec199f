package news

import (
	"testing"

	"github.com/mmcdole/gofeed"
)

func TestStripHTML(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"plain text", "plain text"},
		{"<p>funding rate <b>spikes</b></p>", "funding rate spikes"},
		{"  <div>\nETF inflows&nbsp;resume</div>  ", "ETF inflows resume"},
		{"a &lt; b &amp; c", "a < b & c"},
	}
	for _, c := range cases {
		if got := stripHTML(c.in); got != c.want {
			t.Errorf("stripHTML(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestEntryIDFallbackChain(t *testing.T) {
	cases := []struct {
		name  string
		entry *gofeed.Item
		want  string
	}{
		{"guid wins", &gofeed.Item{GUID: "g1", Link: "l1", Title: "t1"}, "g1"},
		{"link next", &gofeed.Item{Link: "l1", Title: "t1"}, "l1"},
		{"title last", &gofeed.Item{Title: "t1"}, "t1"},
	}
	for _, c := range cases {
		if got := entryID(c.entry); got != c.want {
			t.Errorf("%s: entryID = %q, want %q", c.name, got, c.want)
		}
	}
}
