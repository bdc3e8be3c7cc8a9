package dummydb

import (
	"context"

	"github.com/trezcool/reportal/core"
	"github.com/trezcool/reportal/core/assignment"
)

type assignmentRepository struct {
	db *DB
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *DB) assignment.Repository {
	return &assignmentRepository{db: db}
}

func (repo *assignmentRepository) GetOrCreateReportAssignment(_ context.Context, ra assignment.ReportAssignment, _ ...core.DBExecutor) (assignment.ReportAssignment, bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for id, a := range repo.db.reportAssignments {
		if a.ReportID == ra.ReportID && a.EvaluatorID == ra.EvaluatorID {
			if !a.IsActive {
				a.IsActive = true
				repo.db.reportAssignments[id] = a
			}
			return a, false, nil
		}
	}
	ra.ID = repo.db.newID()
	repo.db.reportAssignments[ra.ID] = ra
	return ra, true, nil
}

func matchReportAssignment(a assignment.ReportAssignment, filter assignment.ReportFilter) bool {
	return inOrAll(filter.ReportIDs, a.ReportID) &&
		inOrAll(filter.EvaluatorIDs, a.EvaluatorID) &&
		(!filter.ActiveOnly || a.IsActive)
}

func (repo *assignmentRepository) QueryReportAssignments(_ context.Context, filter assignment.ReportFilter, _ ...core.DBExecutor) ([]assignment.ReportAssignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var ids []string
	for id, a := range repo.db.reportAssignments {
		if matchReportAssignment(a, filter) {
			ids = append(ids, id)
		}
	}
	ids = repo.db.sortedIDs(ids)

	// newest first
	assignments := make([]assignment.ReportAssignment, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		assignments = append(assignments, repo.db.reportAssignments[ids[i]])
	}
	return assignments, nil
}

func (repo *assignmentRepository) DeleteReportAssignments(_ context.Context, filter assignment.ReportFilter, _ ...core.DBExecutor) (int, error) {
	if filter.ReportIDs == nil && filter.EvaluatorIDs == nil {
		return 0, nil
	}
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var cnt int
	for id, a := range repo.db.reportAssignments {
		if matchReportAssignment(a, filter) {
			delete(repo.db.reportAssignments, id)
			cnt++
		}
	}
	return cnt, nil
}

func (repo *assignmentRepository) GetOrCreateStudentAssignment(_ context.Context, sa assignment.StudentAssignment, _ ...core.DBExecutor) (assignment.StudentAssignment, bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for id, m := range repo.db.studentAssignments {
		if m.EvaluatorID == sa.EvaluatorID && m.StudentID == sa.StudentID {
			if !m.IsActive {
				m.IsActive = true
				repo.db.studentAssignments[id] = m
			}
			return m, false, nil
		}
	}
	sa.ID = repo.db.newID()
	repo.db.studentAssignments[sa.ID] = sa
	return sa, true, nil
}

func (repo *assignmentRepository) QueryStudentAssignments(_ context.Context, filter assignment.StudentFilter, _ ...core.DBExecutor) ([]assignment.StudentAssignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var ids []string
	for id, m := range repo.db.studentAssignments {
		if inOrAll(filter.EvaluatorIDs, m.EvaluatorID) && inOrAll(filter.StudentIDs, m.StudentID) && (!filter.ActiveOnly || m.IsActive) {
			ids = append(ids, id)
		}
	}
	ids = repo.db.sortedIDs(ids)

	// newest first
	mappings := make([]assignment.StudentAssignment, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		mappings = append(mappings, repo.db.studentAssignments[ids[i]])
	}
	return mappings, nil
}

func (repo *assignmentRepository) DeleteUserAssignments(_ context.Context, ids []string, _ ...core.DBExecutor) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var cnt int
	for id, m := range repo.db.studentAssignments {
		if core.ContainsString(ids, m.EvaluatorID) || core.ContainsString(ids, m.StudentID) {
			delete(repo.db.studentAssignments, id)
			cnt++
		}
	}
	for id, a := range repo.db.reportAssignments {
		if core.ContainsString(ids, a.EvaluatorID) {
			delete(repo.db.reportAssignments, id)
			cnt++
		}
	}
	return cnt, nil
}
