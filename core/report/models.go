// Package report implements report submission, evaluator assignment, feedback and dashboards.
package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/reportal/core"
	"github.com/trezcool/reportal/core/assignment"
	"github.com/trezcool/reportal/core/user"
)

// Statuses
const (
	StatusSubmitted   = "submitted"
	StatusUnderReview = "under_review"
	StatusEvaluated   = "evaluated"
	StatusRejected    = "rejected"
)

const DefaultMaxGrade = 100.0

var (
	AllStatuses     = []string{StatusSubmitted, StatusUnderReview, StatusEvaluated, StatusRejected}
	PendingStatuses = []string{StatusSubmitted, StatusUnderReview}
)

type Report struct {
	ID               string    `json:"id"`
	StudentID        string    `json:"student_id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Department       string    `json:"department"`
	Batch            string    `json:"batch"`
	Supervisor       string    `json:"supervisor"`
	FileName         string    `json:"-"` // storage key
	OriginalFilename string    `json:"original_filename"`
	FileSize         int64     `json:"file_size"`
	Status           string    `json:"status"`
	SubmittedAt      time.Time `json:"submitted_at"` // UTC
	UpdatedAt        time.Time `json:"updated_at"`   // UTC
}

// DisplayFilename is the name the file is served under.
func (r Report) DisplayFilename() string {
	if r.OriginalFilename != "" {
		return r.OriginalFilename
	}
	return storedBase(r.FileName)
}

type Feedback struct {
	ID          string       `json:"id"`
	ReportID    string       `json:"report_id"`
	EvaluatorID string       `json:"evaluator_id"`
	Comments    string       `json:"comments"`
	Grade       null.Float64 `json:"grade"`
	MaxGrade    float64      `json:"max_grade"`
	CreatedAt   time.Time    `json:"created_at"` // UTC
	UpdatedAt   time.Time    `json:"updated_at"` // UTC
}

// GradePercentage is 0 when there is no grade (or max grade).
func (fb Feedback) GradePercentage() float64 {
	if !fb.Grade.Valid || fb.MaxGrade == 0 {
		return 0
	}
	return fb.Grade.Float64 / fb.MaxGrade * 100
}

func (fb Feedback) MarshalJSON() ([]byte, error) {
	type feedback Feedback
	return json.Marshal(struct {
		feedback
		GradePercentage float64 `json:"grade_percentage"`
	}{feedback(fb), fb.GradePercentage()})
}

// Upload is a report file as received from the client.
type Upload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// NewReport contains information needed for a student to submit a report.
type NewReport struct {
	Title       string  `json:"title" form:"title" validate:"required,notblank,max=200"`
	Description string  `json:"description" form:"description"`
	Department  string  `json:"department" form:"department" validate:"required,max=100"`
	Batch       string  `json:"batch" form:"batch" validate:"required,max=20"`
	Supervisor  string  `json:"supervisor" form:"supervisor" validate:"max=100"`
	File        *Upload `json:"-" form:"-"`
}

// Validate cleans the input, defaults department and batch to the student's, and checks the upload.
func (nr *NewReport) Validate(student user.User, validate *validator.Validate) error {
	nr.Title = core.CleanString(nr.Title)
	nr.Description = core.CleanString(nr.Description)
	nr.Department = core.CleanString(nr.Department)
	nr.Batch = core.CleanString(nr.Batch)
	nr.Supervisor = core.CleanString(nr.Supervisor)
	if nr.Department == "" {
		nr.Department = student.Department
	}
	if nr.Batch == "" {
		nr.Batch = student.Batch
	}

	if err := ValidateUpload(nr.File); err != nil {
		return err
	}
	return validate.Struct(nr)
}

// UpdateFeedback is what an evaluator saves on a report. A nil grade keeps the report under review.
type UpdateFeedback struct {
	Comments string       `json:"comments"`
	Grade    null.Float64 `json:"grade"`
	MaxGrade float64      `json:"max_grade" validate:"gt=0,lte=999.99"`
}

func (uf *UpdateFeedback) Validate(validate *validator.Validate) error {
	uf.Comments = core.CleanString(uf.Comments)
	if uf.MaxGrade == 0 {
		uf.MaxGrade = DefaultMaxGrade
	}
	return validate.Struct(uf)
}

// QueryFilter applies AND operation on the set fields.
// StudentName, EvaluatorID and Assigned are resolved by the Service into IDs and StudentIDs.
type QueryFilter struct {
	Status      []string `query:"status"`     // nil: ignored, empty: matches nothing
	Department  string   `query:"department"` // exact
	Batch       string   `query:"batch"`      // case-insensitive contains
	StudentName string   `query:"student"`
	EvaluatorID string   `query:"evaluator"`
	Assigned    bool     `query:"assigned"` // the calling evaluator's queue
	IDs         []string `query:"-"`        // nil: ignored, empty: matches nothing
	StudentIDs  []string `query:"-"`        // nil: ignored, empty: matches nothing
}

func (qf *QueryFilter) Clean() {
	qf.Department = core.CleanString(qf.Department)
	qf.Batch = core.CleanString(qf.Batch)
	qf.StudentName = core.CleanString(qf.StudentName)
	qf.EvaluatorID = core.CleanString(qf.EvaluatorID)
	if len(qf.Status) == 0 {
		return
	}
	status := make([]string, 0, len(qf.Status))
	for _, s := range qf.Status {
		if s = core.CleanString(s, true /* lower */); s != "" {
			status = append(status, s)
		}
	}
	if len(status) == 0 {
		status = nil // only blanks given
	}
	qf.Status = status
}

type FeedbackFilter struct {
	ReportIDs    []string
	EvaluatorIDs []string
	GradedOnly   bool
}

// Detail is a report with everything shown on its page.
type Detail struct {
	Report
	Student      user.User                     `json:"student"`
	Feedback     []Feedback                    `json:"feedback"`
	Assignments  []assignment.ReportAssignment `json:"assignments"`
	UserFeedback *Feedback                     `json:"user_feedback,omitempty"`
	CanGrade     bool                          `json:"can_grade"`
}

// Count is one row of a grouped count.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}
