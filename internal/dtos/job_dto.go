package dtos

type ManualJobRequest struct {
	Company  string `json:"company" binding:"required,max=200"`
	JobTitle string `json:"jobTitle" binding:"required,max=200"`
	Stage    string `json:"stage"` // Defaults to "applied" if empty
	Salary   string `json:"salary"`
	Location string `json:"location"`
	Contact  string `json:"contact"`
	Notes    string `json:"notes"`
}

// UpdateJobRequest carries only the fields the client wants changed.
type UpdateJobRequest struct {
	Company      *string `json:"Company" binding:"omitempty,max=200"`
	JobTitle     *string `json:"Job_Title" binding:"omitempty,max=200"`
	CurrentStage *string `json:"Current_Stage"`
	Salary       *string `json:"Salary"`
	Location     *string `json:"Location"`
	Contact      *string `json:"Contact"`
	Notes        *string `json:"Notes"`
}

type StageUpdateRequest struct {
	Stage string `json:"stage" binding:"required"`
	Notes string `json:"notes"`
}

type EmailStageRequest struct {
	JobID string `json:"jobId" binding:"required"`
	Stage string `json:"stage" binding:"required"`
}

type MergeJobsRequest struct {
	SourceJobID string `json:"sourceJobId" binding:"required"`
	TargetJobID string `json:"targetJobId" binding:"required"`
}

type MergeCompaniesRequest struct {
	SourceCompanyID string `json:"sourceCompanyId" binding:"required"`
	TargetCompanyID string `json:"targetCompanyId" binding:"required"`
}
