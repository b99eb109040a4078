// Package api exposes the library over HTTP. Routing is handled by
// chi; responses are JSON except the cover endpoint, which streams the
// rendered image. Error mapping is centralised so handlers stay thin.
package api
