// Package tablestate provides StateAdapter implementations.
//
// Memory keeps the snapshot in process. URL mirrors it into query parameters
// so that pagination, sorting and filters survive reloads and can be shared
// as links:
//
//	?page=2&size=50&sort=name:asc,created:desc&f.status=active
//
// Page is one-based in the URL and zero-based in the snapshot. Parameters
// equal to the defaults are omitted.
package tablestate
