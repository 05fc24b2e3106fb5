// Package colab extracts notebook identifiers from Google Colab URLs.
package colab

import (
	"net/url"
	"strings"
)

// NotebookID returns the notebook id in a Colab URL:
//
//	https://colab.research.google.com/drive/<id>
//	https://colab.research.google.com/github/<org>/<repo>/blob/<ref>/<name>.ipynb
//
// Other URLs yield their last path segment. Query and fragment are ignored.
// An empty or unparsable URL yields "".
func NotebookID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	segs := make([]string, 0, 8)
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	if len(segs) == 0 {
		return ""
	}

	for i, s := range segs {
		if s == "drive" && i+1 < len(segs) {
			return segs[i+1]
		}
	}
	last := segs[len(segs)-1]
	if segs[0] == "github" {
		return strings.TrimSuffix(last, ".ipynb")
	}
	return last
}
