package coordinator

// Wire types of the coordinator's JSON API. Field names follow the
// coordinator, not Go conventions.

type binaryInfo struct {
	ID          int64  `json:"id"`
	Checksum    string `json:"checksum"`
	DownloadURL string `json:"downloadURL"`
}

type platformInfo struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	DetectorBinary binaryInfo `json:"detectorBinary"`
}

type projectsForPlatformsRequest struct {
	PlatformIDs []int64 `json:"PlatformsIDs"`
}

type projectInfo struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type projectBinary struct {
	ID         int64       `json:"id"`
	Priority   int         `json:"priority"`
	PlatformID int64       `json:"platformID"`
	Binary     binaryInfo  `json:"binary"`
	Project    projectInfo `json:"project"`
}

type projectsForPlatformsResponse struct {
	ProjectIDs      []int64         `json:"projectsIDs"`
	ProjectBinaries []projectBinary `json:"projectsBinaries"`
}

type retrieveAssignmentsRequest struct {
	ProjectIDs []int64 `json:"acceptedProjectsIDs"`
	TaskCount  int     `json:"taskCount"`
}

type taskInfo struct {
	ID        int64  `json:"id"`
	GroupID   int64  `json:"groupID"`
	ProjectID int64  `json:"projectID"`
	InputData string `json:"inputData"`
}

type assignmentInfo struct {
	ID   int64    `json:"id"`
	Task taskInfo `json:"task"`
}

type retrieveAssignmentsResponse struct {
	Assignments []assignmentInfo `json:"assignments"`
}

type submitResultRequest struct {
	ExecutionTime int64  `json:"executionTime"` // milliseconds
	AssignmentID  int64  `json:"assignmentID"`
	StdErr        string `json:"stdErr"`
	StdOut        string `json:"stdOut"`
	ExitCode      int    `json:"exitCode"`
}

type submitResultResponse struct {
	ID int64 `json:"id"`
}
