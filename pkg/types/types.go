package types

import (
	"sort"
	"time"

	"github.com/cuemby/dicc/pkg/download"
)

// Platform is a local execution environment, certified usable by running
// its detector binary. Platforms are values and never mutated after
// construction.
type Platform struct {
	ID       int64
	Name     string
	Detector download.Download
}

// Clone returns a deep copy
func (p Platform) Clone() Platform {
	return Platform{ID: p.ID, Name: p.Name, Detector: p.Detector.Clone()}
}

// ProjectPlatform says a project can run on Platform using Binary.
//
// Priority is coordinator metadata. Binary selection does not consult it;
// the caller's platform order decides.
type ProjectPlatform struct {
	Platform Platform
	Binary   download.Download
	Priority int
}

// Clone returns a deep copy
func (pp ProjectPlatform) Clone() ProjectPlatform {
	return ProjectPlatform{
		Platform: pp.Platform.Clone(),
		Binary:   pp.Binary.Clone(),
		Priority: pp.Priority,
	}
}

// Project is a unit of work offered by the coordinator, bound to one or
// more platforms keyed by platform ID.
type Project struct {
	ID        int64
	Name      string
	Platforms map[int64]ProjectPlatform
}

// NewProject creates a project without platforms
func NewProject(id int64, name string) Project {
	return Project{ID: id, Name: name, Platforms: make(map[int64]ProjectPlatform)}
}

// AddPlatform binds pp to the project, replacing any existing binding for
// the same platform.
func (p *Project) AddPlatform(pp ProjectPlatform) {
	if p.Platforms == nil {
		p.Platforms = make(map[int64]ProjectPlatform)
	}
	p.Platforms[pp.Platform.ID] = pp
}

// Platform returns the binding for platformID
func (p Project) Platform(platformID int64) (ProjectPlatform, bool) {
	pp, ok := p.Platforms[platformID]
	return pp, ok
}

// PlatformIDs returns the bound platform IDs in ascending order
func (p Project) PlatformIDs() []int64 {
	ids := make([]int64, 0, len(p.Platforms))
	for id := range p.Platforms {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Clone returns a deep copy
func (p Project) Clone() Project {
	out := Project{ID: p.ID, Name: p.Name, Platforms: make(map[int64]ProjectPlatform, len(p.Platforms))}
	for id, pp := range p.Platforms {
		out.Platforms[id] = pp.Clone()
	}
	return out
}

// CloneProjects deep-copies a project list
func CloneProjects(projects []Project) []Project {
	out := make([]Project, len(projects))
	for i, p := range projects {
		out[i] = p.Clone()
	}
	return out
}

// ProjectIDs returns the IDs of projects in list order
func ProjectIDs(projects []Project) []int64 {
	ids := make([]int64, len(projects))
	for i, p := range projects {
		ids[i] = p.ID
	}
	return ids
}

// ProjectBinding is one (project, platform, binary) row as returned by the
// coordinator's project compatibility lookup.
type ProjectBinding struct {
	ProjectID   int64
	ProjectName string
	PlatformID  int64
	Binary      download.Download
	Priority    int
}

// BuildProjects folds bindings into projects. Bindings whose platform is
// not in platforms are ignored, so every returned project has at least one
// platform. The result is sorted by ascending project ID.
func BuildProjects(bindings []ProjectBinding, platforms map[int64]Platform) []Project {
	byID := make(map[int64]*Project)
	for _, b := range bindings {
		platform, ok := platforms[b.PlatformID]
		if !ok {
			continue
		}

		project, ok := byID[b.ProjectID]
		if !ok {
			p := NewProject(b.ProjectID, b.ProjectName)
			project = &p
			byID[b.ProjectID] = project
		}

		project.AddPlatform(ProjectPlatform{
			Platform: platform.Clone(),
			Binary:   b.Binary.Clone(),
			Priority: b.Priority,
		})
	}

	projects := make([]Project, 0, len(byID))
	for _, p := range byID {
		projects = append(projects, *p)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].ID < projects[j].ID })
	return projects
}

// Assignment is one unit of work bound to exactly one project
type Assignment struct {
	ID      int64
	Project Project
	Input   []byte
}

// AssignmentResult is the outcome of a successfully executed assignment
type AssignmentResult struct {
	AssignmentID int64
	Stdout       string
	Stderr       string
	ExitCode     int
	Duration     time.Duration
}
