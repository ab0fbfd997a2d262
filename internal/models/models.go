package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// StringArray stores a string slice as JSON text so the same schema works on
// Postgres and SQLite.
type StringArray []string

func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("failed to scan StringArray")
	}
	if len(raw) == 0 {
		*a = StringArray{}
		return nil
	}
	return json.Unmarshal(raw, a)
}

// Contains reports whether s is already in the array.
func (a StringArray) Contains(s string) bool {
	for _, v := range a {
		if v == s {
			return true
		}
	}
	return false
}

// Union returns a new array holding a's values followed by the values of
// others that a did not already contain. Order is preserved.
func (a StringArray) Union(others ...StringArray) StringArray {
	out := make(StringArray, 0, len(a))
	seen := make(map[string]struct{}, len(a))
	add := func(v string) {
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	for _, v := range a {
		add(v)
	}
	for _, o := range others {
		for _, v := range o {
			add(v)
		}
	}
	return out
}

type User struct {
	ID        string    `gorm:"type:text;primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Subject issued by the identity provider.
	UID             string `gorm:"type:text;uniqueIndex;not null" json:"uid"`
	DisplayName     string `json:"displayName"`
	Email           string `gorm:"index" json:"email"`
	EmailCode       string `gorm:"type:text;uniqueIndex;not null" json:"emailCode"`
	ForwardingEmail string `json:"forwardingEmail"`
	// Code claimed by a forwarding-code change that has not finished yet.
	PendingEmailCode *string `gorm:"type:text;uniqueIndex" json:"pendingEmailCode,omitempty"`
	Plan             string  `gorm:"default:'free'" json:"plan"`
	JobCount         int     `json:"jobCount"`
	EmailCount       int     `json:"emailCount"`
}

func (User) TableName() string { return "users" }

func (u User) HasPendingCode() bool {
	return u.PendingEmailCode != nil && *u.PendingEmailCode != ""
}

// Job is one application to one company for one role.
type Job struct {
	ID           string      `gorm:"type:text;primaryKey" json:"id"`
	Company      string      `gorm:"index" json:"Company"`
	JobTitle     string      `json:"Job_Title"`
	CurrentStage string      `json:"Current_Stage"`
	Salary       *string     `json:"Salary"`
	Location     *string     `json:"Location"`
	Contact      *string     `json:"Contact"`
	Notes        *string     `json:"Notes"`
	AppliedDate  *time.Time  `json:"Applied_Date"`
	LastUpdated  *time.Time  `gorm:"index" json:"Last_Updated"`
	UpdateTime   *time.Time  `json:"Update_Time"`
	EmailIDs     StringArray `gorm:"column:email_ids;type:text" json:"Email_IDs"`
	TrackingCode string      `gorm:"index;not null" json:"Tracking_Code"`
	UserID       string      `gorm:"column:user_id;index" json:"User_ID"`

	// Set when the job was folded into another one by a duplicate merge.
	MergedInto *string    `gorm:"column:merged_into;index" json:"_merged_into,omitempty"`
	MergedAt   *time.Time `gorm:"column:merged_at" json:"_merged_at,omitempty"`
}

func (Job) TableName() string { return "jobs" }

// IsMerged reports whether the job was superseded by a merge.
func (j *Job) IsMerged() bool {
	return j.MergedInto != nil && *j.MergedInto != ""
}

// Normalize fills defaults the store does not enforce.
func (j *Job) Normalize() {
	if j.EmailIDs == nil {
		j.EmailIDs = StringArray{}
	}
	if strings.TrimSpace(j.CurrentStage) == "" {
		j.CurrentStage = string(StageApplied)
	}
	j.TrackingCode = strings.ToUpper(strings.TrimSpace(j.TrackingCode))
}

// JobDetail is one timeline entry: one inbound email mapped to one stage.
type JobDetail struct {
	ID             string     `gorm:"type:text;primaryKey" json:"id"`
	JobID          string     `gorm:"column:job_id;index;not null" json:"Job_ID"`
	UserID         string     `gorm:"column:user_id" json:"User_ID"`
	TrackingCode   string     `json:"Tracking_Code"`
	EmailID        string     `gorm:"column:email_id" json:"Email_ID"`
	Stage          string     `json:"Stage"`
	Sender         string     `json:"Sender"`
	Subject        string     `json:"Subject"`
	ContentSummary string     `gorm:"type:text" json:"Content_Summary"`
	Notes          *string    `json:"Notes"`
	SentDate       string     `json:"Sent_Date"`
	UpdateTime     *time.Time `gorm:"index" json:"Update_Time"`
}

func (JobDetail) TableName() string { return "job_details" }

func (d *JobDetail) Normalize() {
	if strings.TrimSpace(d.Stage) == "" {
		d.Stage = string(StageApplied)
	}
}

// InboundEmail is a forwarded message as parsed from the mail webhook.
type InboundEmail struct {
	ID               string     `gorm:"type:text;primaryKey" json:"id"`
	OriginalSender   string     `json:"Original_Sender"`
	ForwarderEmail   string     `gorm:"index" json:"Forwarder_Email"`
	ReceiverEmail    string     `json:"Receiver_Email"`
	TrackingCode     string     `gorm:"index" json:"Tracking_Code"`
	OriginalSentAt   string     `json:"Original_Sent_At"`
	Subject          string     `json:"Subject"`
	ContentDetails   string     `gorm:"type:text" json:"Content_Details"`
	Processed        bool       `json:"Processed"`
	ProcessingStatus string     `json:"Processing_Status,omitempty"`
	ProcessingError  string     `json:"Processing_Error,omitempty"`
	JobID            string     `gorm:"column:job_id" json:"Job_ID,omitempty"`
	UpdateTime       *time.Time `gorm:"index" json:"Update_Time"`
}

func (InboundEmail) TableName() string { return "mailin" }

// Processing states recorded on InboundEmail.
const (
	ProcessingQueued    = "queued"
	ProcessingCompleted = "completed"
	ProcessingFailed    = "failed"
)
