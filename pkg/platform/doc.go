/*
Package platform decides which execution environments this node supports.

Every platform offered by the coordinator ships a detector binary. The
registry downloads each detector to <data-dir>/platforms/<id>.bin, verifies
it, marks it executable and runs it; a zero exit status makes the platform
valid. Detection runs once at startup, sequentially, before any worker
starts.

	registry := platform.NewRegistry(platform.Config{
		DataDir: dataDir,
		Fetcher: fetcher,
		Runner:  runner.NewExecRunner(),
	})
	registry.Add(catalog...)

	valid, err := registry.DetectAll(ctx)
	if err != nil {
		return err // filesystem or network fault
	}
	ids := valid.IDs()

A platform whose detector fails is a normal outcome and is only excluded.
*/
package platform
