package server

import "trading-bot-dashboard/internal/types"

// ViewOf is the snapshot as it leaves the process: identical to s except that
// the API secret and access token are masked.
func ViewOf(s types.State) types.State {
	s.Session.Credentials = s.Session.Credentials.Redacted()
	return s
}
