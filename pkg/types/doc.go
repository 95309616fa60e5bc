/*
Package types defines the data model shared by the dicc worker node.

# Core Types

  - Platform: an execution environment identified by a detector binary
  - Project: a coordinator project with one ProjectPlatform per platform
  - ProjectPlatform: the binary (and priority) a project uses on a platform
  - Assignment: one unit of work for a project, with its input payload
  - AssignmentResult: what a successful execution reports back

All types are plain values. Projects hold a map of platform bindings, so
they are deep-copied with Clone before being handed to another goroutine;
after that no worker ever mutates a value another worker can see.

# Assembly

The coordinator answers the compatibility lookup with flat
(project, platform, binary) rows. BuildProjects folds them into one Project
per project ID, keyed by platform ID within the project, and returns the
projects sorted by ID so every worker polls with the same ordering.
*/
package types
