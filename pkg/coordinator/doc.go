/*
Package coordinator is the HTTP/JSON client for the task coordinator.

The node uses four endpoints:

	GET  /platforms/list          platform catalog with detector binaries
	POST /projects/forPlatforms   projects runnable on a set of platforms
	POST /assignments/retrieve    claim tasks for a set of projects
	POST /results/submit          report a finished assignment

Every request carries the API key verbatim in the Authorization header.

Failures come back as *StatusError for non-2xx answers and *TransportError
when the coordinator cannot be reached. Both implement Transient() bool so
callers can retry 5xx, 429, 408 and connection failures while giving up on
other client errors. Undecodable answers are plain errors.
*/
package coordinator
