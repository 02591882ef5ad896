// Package api defines the JSON payloads exchanged between the grabarr
// daemon's HTTP surface and its clients, plus converters from the queue's
// persistence records into those transport shapes.
package api
