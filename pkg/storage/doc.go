/*
Package storage provides the node's local ledger, backed by BoltDB.

The ledger is informational: it records which results the coordinator
acknowledged and the latest detection outcome of each platform, so an
operator can inspect a node with `dicc history` and `dicc platforms`
without asking the coordinator. Nothing in the execution path reads it back;
losing the file loses history, never work.

# Layout

	<data-dir>/dicc.db
	  results/     key: assignment ID (big-endian uint64)  value: ResultRecord JSON
	  detections/  key: platform ID   (big-endian uint64)  value: DetectionRecord JSON

Big-endian keys make cursor order match numeric ID order.

# Concurrency

BoltDB allows one writer process. Workers inside the running node share the
BoltStore (bolt.DB is safe for concurrent use); inspection commands open the
file with OpenReadOnly and give up after a short timeout while a node is
running.

Failed assignments are never recorded.
*/
package storage
