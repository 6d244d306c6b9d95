// Package dashboard serves the browser dashboard as an embedded asset.
//
// The page is a single static HTML file compiled into the binary with
// go:embed. It loads GET /api/data once and then follows the "snapshot"
// channel of the WebSocket endpoint, so it never polls the API.
//
// A directory can be given to serve an edited copy from disk instead, which
// avoids a rebuild while working on the page.
package dashboard
