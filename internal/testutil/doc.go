// Package testutil provides shared test fixtures, most notably a
// programmable in-memory fake of the Human Pages API that the client,
// poll and lifecycle tests drive with scripted status sequences.
package testutil
