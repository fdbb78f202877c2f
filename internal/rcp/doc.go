// Package rcp implements the JSON framing of the RED RCP2 camera control protocol.
//
// The camera speaks JSON text frames over a plain WebSocket on port 9998. Clients open with
// an rcp_config frame, then poll parameters with rcp_get and change them with rcp_set.
// There is no request/response correlation: every reply, including the acknowledgement of
// a set, arrives as an unsolicited frame whose type starts with "rcp_cur".
package rcp
