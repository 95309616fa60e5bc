package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/dicc/pkg/download"
	"github.com/cuemby/dicc/pkg/runner"
	"github.com/cuemby/dicc/pkg/types"
)

// memFetcher writes fixed content for known URLs
type memFetcher struct {
	files map[string]string
}

func (f *memFetcher) Materialize(_ context.Context, d download.Download, path string) error {
	content, ok := f.files[d.URL]
	if !ok {
		return &download.FetchError{URL: d.URL, Err: errors.New("unexpected status 404")}
	}
	return os.WriteFile(path, []byte(content), 0644)
}

// recordingRunner returns a canned output and remembers the command
type recordingRunner struct {
	out  runner.Output
	err  error
	last runner.CommandSpec
}

func (r *recordingRunner) Run(_ context.Context, spec runner.CommandSpec) (runner.Output, error) {
	r.last = spec
	return r.out, r.err
}

func demoProject(platformIDs ...int64) types.Project {
	p := types.NewProject(42, "demo")
	for _, id := range platformIDs {
		p.AddPlatform(types.ProjectPlatform{
			Platform: types.Platform{ID: id},
			Binary:   download.New(fmt.Sprintf("https://cdn.example/p%d/demo", id)),
		})
	}
	return p
}

func TestSelectPlatformFollowsCallerOrder(t *testing.T) {
	project := demoProject(1, 2)

	pp, err := SelectPlatform(project, []int64{2, 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, pp.Platform.ID)

	pp, err = SelectPlatform(project, []int64{5, 1, 2})
	require.NoError(t, err)
	assert.EqualValues(t, 1, pp.Platform.ID)

	_, err = SelectPlatform(project, []int64{3})
	assert.ErrorIs(t, err, ErrPlatformNotFound)

	_, err = SelectPlatform(project, nil)
	assert.ErrorIs(t, err, ErrPlatformNotFound)
}

func TestSelectPlatformIgnoresPriority(t *testing.T) {
	project := types.NewProject(1, "prio")
	project.AddPlatform(types.ProjectPlatform{Platform: types.Platform{ID: 1}, Priority: 1})
	project.AddPlatform(types.ProjectPlatform{Platform: types.Platform{ID: 2}, Priority: 100})

	pp, err := SelectPlatform(project, []int64{1, 2})
	require.NoError(t, err)
	assert.EqualValues(t, 1, pp.Platform.ID)
}

func TestExecuteLaysOutFilesAndPassesInput(t *testing.T) {
	dir := t.TempDir()
	run := &recordingRunner{out: runner.Output{Stdout: []byte("ok"), Stderr: []byte("warn"), ExitCode: 0}}
	e := New(Config{
		DataDir: dir,
		Fetcher: &memFetcher{files: map[string]string{"https://cdn.example/p2/demo": "bin-p2"}},
		Runner:  run,
	})

	a := types.Assignment{ID: 7, Project: demoProject(1, 2), Input: []byte("abc")}
	result, err := e.Execute(context.Background(), a, []int64{2, 1})
	require.NoError(t, err)

	assert.EqualValues(t, 7, result.AssignmentID)
	assert.Equal(t, "ok", result.Stdout)
	assert.Equal(t, "warn", result.Stderr)
	assert.Equal(t, 0, result.ExitCode)

	binPath := filepath.Join(dir, "projects", "demo", "bin", "demo")
	inputPath := filepath.Join(dir, "projects", "demo", "inputs", "7.bin")

	content, err := os.ReadFile(binPath)
	require.NoError(t, err)
	assert.Equal(t, "bin-p2", string(content), "platform 2 binary selected")

	input, err := os.ReadFile(inputPath)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(input))

	absBin, _ := filepath.Abs(binPath)
	absInput, _ := filepath.Abs(inputPath)
	assert.Equal(t, absBin, run.last.Path)
	assert.Equal(t, []string{"--input", absInput}, run.last.Args)
}

func TestExecuteJarUsesJavaLauncher(t *testing.T) {
	project := types.NewProject(3, "jvm-demo")
	project.AddPlatform(types.ProjectPlatform{
		Platform: types.Platform{ID: 9},
		Binary:   download.New("https://cdn.example/app.jar?v=2"),
	})
	run := &recordingRunner{}
	e := New(Config{
		DataDir: t.TempDir(),
		Fetcher: &memFetcher{files: map[string]string{"https://cdn.example/app.jar?v=2": "PK"}},
		Runner:  run,
	})

	_, err := e.Execute(context.Background(), types.Assignment{ID: 1, Project: project}, []int64{9})
	require.NoError(t, err)
	assert.Equal(t, download.JavaLauncher, run.last.Path)
	require.Len(t, run.last.Args, 4)
	assert.Equal(t, "-jar", run.last.Args[0])
	assert.Equal(t, "app.jar", filepath.Base(run.last.Args[1]))
	assert.Equal(t, "--input", run.last.Args[2])
}

func TestExecuteNonZeroExit(t *testing.T) {
	run := &recordingRunner{out: runner.Output{Stdout: []byte("partial"), ExitCode: 2}}
	e := New(Config{
		DataDir: t.TempDir(),
		Fetcher: &memFetcher{files: map[string]string{"https://cdn.example/p1/demo": "x"}},
		Runner:  run,
	})

	result, err := e.Execute(context.Background(), types.Assignment{ID: 8, Project: demoProject(1)}, []int64{1})
	assert.Nil(t, result)
	require.ErrorIs(t, err, ErrExecutionFailed)

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, 2, execErr.ExitCode)
	assert.Equal(t, "partial", string(execErr.Stdout))
}

func TestExecuteWithoutExitStatus(t *testing.T) {
	spawnErr := errors.New("exec format error")
	run := &recordingRunner{out: runner.Output{ExitCode: -1}, err: spawnErr}
	e := New(Config{
		DataDir: t.TempDir(),
		Fetcher: &memFetcher{files: map[string]string{"https://cdn.example/p1/demo": "x"}},
		Runner:  run,
	})

	_, err := e.Execute(context.Background(), types.Assignment{ID: 9, Project: demoProject(1)}, []int64{1})
	assert.ErrorIs(t, err, ErrExecutionFailed)
	assert.ErrorIs(t, err, spawnErr)
}

func TestExecuteFetchFailureIsFetchError(t *testing.T) {
	run := &recordingRunner{}
	e := New(Config{DataDir: t.TempDir(), Fetcher: &memFetcher{}, Runner: run})

	_, err := e.Execute(context.Background(), types.Assignment{ID: 1, Project: demoProject(1)}, []int64{1})
	var fetchErr *download.FetchError
	assert.ErrorAs(t, err, &fetchErr)
	assert.Empty(t, run.last.Path, "nothing runs when the binary is unavailable")
}

func TestExecuteNoPlatformTouchesNothing(t *testing.T) {
	dir := t.TempDir()
	e := New(Config{DataDir: dir, Fetcher: &memFetcher{}, Runner: &recordingRunner{}})

	_, err := e.Execute(context.Background(), types.Assignment{ID: 1, Project: demoProject(1)}, []int64{2})
	assert.ErrorIs(t, err, ErrPlatformNotFound)
	assert.NoDirExists(t, filepath.Join(dir, "projects"))
}

func TestExecuteRunsRealBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("stub binary is a shell script")
	}

	e := New(Config{
		DataDir: t.TempDir(),
		Fetcher: &memFetcher{files: map[string]string{"https://cdn.example/p1/demo": "#!/bin/sh\ncat \"$2\"\n"}},
		Runner:  runner.NewExecRunner(),
	})

	result, err := e.Execute(context.Background(), types.Assignment{ID: 7, Project: demoProject(1), Input: []byte("abc")}, []int64{1})
	require.NoError(t, err)
	assert.Equal(t, "abc", result.Stdout)
	assert.Equal(t, 0, result.ExitCode)
	assert.Positive(t, result.Duration)
}

func TestDirName(t *testing.T) {
	tests := []struct {
		name    string
		project types.Project
		want    string
	}{
		{"plain", types.Project{ID: 1, Name: "demo"}, "demo"},
		{"separators", types.Project{ID: 1, Name: "a/b\\c"}, "a_b_c"},
		{"empty", types.Project{ID: 5, Name: " "}, "project-5"},
		{"dotdot", types.Project{ID: 6, Name: ".."}, "project-6"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dirName(tt.project))
		})
	}
}

func TestBinaryName(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"plain", "https://cdn.example/bin/runner", "runner"},
		{"trailing slash", "https://cdn.example/bin/", "platform-4.bin"},
		{"encoded dotdot", "https://cdn.example/bin/%2e%2e", "platform-4.bin"},
		{"encoded dot", "https://cdn.example/bin/%2E", "platform-4.bin"},
		{"encoded separator", "https://cdn.example/bin/a%5Cb", "a_b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pp := types.ProjectPlatform{Platform: types.Platform{ID: 4}, Binary: download.New(tt.url)}
			assert.Equal(t, tt.want, binaryName(pp))
		})
	}
}

func TestExecuteDotDotBinaryStaysInBinDir(t *testing.T) {
	dir := t.TempDir()
	url := "https://cdn.example/bin/%2e%2e"
	project := types.NewProject(42, "demo")
	project.AddPlatform(types.ProjectPlatform{Platform: types.Platform{ID: 4}, Binary: download.New(url)})

	run := &recordingRunner{}
	e := New(Config{DataDir: dir, Fetcher: &memFetcher{files: map[string]string{url: "bin"}}, Runner: run})

	_, err := e.Execute(context.Background(), types.Assignment{ID: 1, Project: project}, []int64{4})
	require.NoError(t, err)

	want, _ := filepath.Abs(filepath.Join(dir, "projects", "demo", "bin", "platform-4.bin"))
	assert.Equal(t, want, run.last.Path)
	assert.FileExists(t, want)
}
