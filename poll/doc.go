// Package poll implements the fallback delivery mechanism: a fixed-interval
// loop that fetches job status, synthesizes the same event shape a push
// notification would have carried, and merges message monitoring into the
// same tick so replies can be generated while a status is still awaited.
//
// Within one tick the status check always runs before the message batch, so
// a transition observed in the same tick as new messages is reported
// without waiting for message processing. Message processing for a tick
// completes before the next tick begins.
package poll
