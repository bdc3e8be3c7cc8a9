// Package assignment holds the two links that grant an evaluator rights over student work:
// the per-report ReportAssignment and the persistent evaluator/student mapping.
package assignment

import (
	"context"
	"errors"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/reportal/core"
)

var ErrNotFound = errors.New("assignment not found")

// ReportAssignment links an evaluator to a single report. Unique per (report, evaluator).
type ReportAssignment struct {
	ID          string      `json:"id"`
	ReportID    string      `json:"report_id"`
	EvaluatorID string      `json:"evaluator_id"`
	AssignedBy  null.String `json:"assigned_by"`
	AssignedAt  time.Time   `json:"assigned_at"`
	IsActive    bool        `json:"is_active"`
}

// StudentAssignment is the persistent evaluator/student mentorship. Unique per (evaluator, student).
type StudentAssignment struct {
	ID          string      `json:"id"`
	EvaluatorID string      `json:"evaluator_id"`
	StudentID   string      `json:"student_id"`
	AssignedBy  null.String `json:"assigned_by"`
	CreatedAt   time.Time   `json:"created_at"`
	IsActive    bool        `json:"is_active"`
}

// ReportFilter applies AND operation on the set fields. Nil slices are ignored;
// empty non-nil slices match nothing.
type ReportFilter struct {
	ReportIDs    []string
	EvaluatorIDs []string
	ActiveOnly   bool
}

type StudentFilter struct {
	EvaluatorIDs []string
	StudentIDs   []string
	ActiveOnly   bool
}

type Repository interface {
	// GetOrCreateReportAssignment returns the existing (report, evaluator) assignment or creates `ra`.
	// An existing inactive assignment is re-activated.
	GetOrCreateReportAssignment(ctx context.Context, ra ReportAssignment, exec ...core.DBExecutor) (ReportAssignment, bool, error)
	QueryReportAssignments(ctx context.Context, filter ReportFilter, exec ...core.DBExecutor) ([]ReportAssignment, error)
	DeleteReportAssignments(ctx context.Context, filter ReportFilter, exec ...core.DBExecutor) (int, error)

	// GetOrCreateStudentAssignment returns the existing (evaluator, student) mapping or creates `sa`.
	// An existing inactive mapping is re-activated.
	GetOrCreateStudentAssignment(ctx context.Context, sa StudentAssignment, exec ...core.DBExecutor) (StudentAssignment, bool, error)
	QueryStudentAssignments(ctx context.Context, filter StudentFilter, exec ...core.DBExecutor) ([]StudentAssignment, error)
	// DeleteUserAssignments removes every mapping and report assignment where one of ids is the evaluator or student.
	DeleteUserAssignments(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
}

// EvaluatorIDs returns the distinct evaluator IDs of the given mappings, in order.
func EvaluatorIDs(mappings []StudentAssignment) []string {
	seen := make(map[string]struct{}, len(mappings))
	ids := make([]string, 0, len(mappings))
	for _, m := range mappings {
		if _, ok := seen[m.EvaluatorID]; ok {
			continue
		}
		seen[m.EvaluatorID] = struct{}{}
		ids = append(ids, m.EvaluatorID)
	}
	return ids
}

// StudentIDs returns the distinct student IDs of the given mappings, in order.
func StudentIDs(mappings []StudentAssignment) []string {
	seen := make(map[string]struct{}, len(mappings))
	ids := make([]string, 0, len(mappings))
	for _, m := range mappings {
		if _, ok := seen[m.StudentID]; ok {
			continue
		}
		seen[m.StudentID] = struct{}{}
		ids = append(ids, m.StudentID)
	}
	return ids
}

// ReportIDs returns the distinct report IDs of the given assignments, in order.
func ReportIDs(assignments []ReportAssignment) []string {
	seen := make(map[string]struct{}, len(assignments))
	ids := make([]string, 0, len(assignments))
	for _, a := range assignments {
		if _, ok := seen[a.ReportID]; ok {
			continue
		}
		seen[a.ReportID] = struct{}{}
		ids = append(ids, a.ReportID)
	}
	return ids
}
