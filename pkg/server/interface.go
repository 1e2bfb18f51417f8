/*
Package server implements msgpack IPC for POI search.

The server reads a stream of msgpack messages from stdin and writes one msgpack
response per request to stdout. Logs go to stderr so they never mix with the
stream. On start the server announces itself with:

	{"status": "ready"}

# IPC

Every request carries an "id", echoed back in the response, and an "action".
A request without an action is a search.

Search requests look like:

	{"id": "q1", "action": "search", "q": "кафе пушк", "lat": 50.45, "lon": 30.52, "l": 10}

lat and lon are optional and default to the last located position. The
response lists hits nearest first, with distances in meters and time in
microseconds:

	{"id": "q1", "r": [{"id": "p1", "t": "Кафе Пушкін", "d": 0, "la": 50.45, "lo": 30.52}], "c": 1, "t": 85}

The reference position can be moved without searching:

	{"id": "l1", "action": "locate", "lat": 49.84, "lon": 24.03}

Datasets are switched at runtime. The new index replaces the old one only when
loading succeeds:

	{"id": "d1", "action": "load", "dataset": "lviv"}
	{"id": "i1", "action": "info"}

An empty dataset loads the default one. The info response also lists the
datasets found in the data directory under "datasets".

Failures are reported as {"id", "e", "c"} with an HTTP-like code: 400 for bad
requests, 503 while no index is loaded and 500 for anything else.

Requests are handled one at a time in arrival order.
*/
package server

// Actions understood by the server.
const (
	ActionSearch = "search"
	ActionLocate = "locate"
	ActionLoad   = "load"
	ActionInfo   = "info"
)

// Request is the union of all request fields. Unused fields are omitted.
type Request struct {
	ID      string   `msgpack:"id"`
	Action  string   `msgpack:"action,omitempty"`
	Query   string   `msgpack:"q,omitempty"`
	Lat     *float64 `msgpack:"lat,omitempty"`
	Lon     *float64 `msgpack:"lon,omitempty"`
	Limit   int      `msgpack:"l,omitempty"`
	Dataset string   `msgpack:"dataset,omitempty"`
}

// SearchResult - one hit
type SearchResult struct {
	ID    string  `msgpack:"id"`
	Title string  `msgpack:"t"`
	Dist  int     `msgpack:"d"`
	Lat   float64 `msgpack:"la"`
	Lon   float64 `msgpack:"lo"`
}

// SearchResponse - search response, TimeTaken in microseconds
type SearchResponse struct {
	ID        string         `msgpack:"id"`
	Results   []SearchResult `msgpack:"r"`
	Count     int            `msgpack:"c"`
	TimeTaken int64          `msgpack:"t"`
}

// LocateResponse - confirms the new reference position
type LocateResponse struct {
	ID     string  `msgpack:"id"`
	Status string  `msgpack:"status"`
	Lat    float64 `msgpack:"lat"`
	Lon    float64 `msgpack:"lon"`
}

// LoadResponse - dataset load result
type LoadResponse struct {
	ID       string   `msgpack:"id"`
	Status   string   `msgpack:"status"`
	Dataset  string   `msgpack:"dataset"`
	POIs     int      `msgpack:"pois"`
	Skipped  int      `msgpack:"skipped"`
	Warnings []string `msgpack:"warnings,omitempty"`
}

// InfoResponse - state of the loaded index
type InfoResponse struct {
	ID      string         `msgpack:"id"`
	Status  string         `msgpack:"status"`
	Dataset string         `msgpack:"dataset"`
	Source  string         `msgpack:"source"`
	Stats   map[string]int `msgpack:"stats"`
	Lat     float64        `msgpack:"lat"`
	Lon     float64        `msgpack:"lon"`
	// Available names the datasets in the data directory.
	Available []string `msgpack:"datasets,omitempty"`
}

// ErrorResponse holds basic error information
type ErrorResponse struct {
	ID    string `msgpack:"id"`
	Error string `msgpack:"e"`
	Code  int    `msgpack:"c"`
}
