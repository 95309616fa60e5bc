/*
Package executor runs a single assignment on this node.

For one assignment the executor, strictly in order:

 1. picks the first platform ID from the caller's list that the project
    supports (ErrPlatformNotFound otherwise),
 2. materializes the project binary to <data-dir>/projects/<name>/bin/<file>
    and marks it executable,
 3. writes the input verbatim to <data-dir>/projects/<name>/inputs/<id>.bin,
 4. runs the binary with --input <absolute input path>,
 5. turns exit status 0 into an AssignmentResult and anything else into an
    *ExecutionError.

Binaries ending in .jar are launched through the Java launcher. The
executor holds no per-assignment state, so one instance per worker is
enough.
*/
package executor
