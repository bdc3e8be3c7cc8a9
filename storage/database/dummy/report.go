package dummydb

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/reportal/core"
	"github.com/trezcool/reportal/core/report"
)

type reportRepository struct {
	db *DB
}

var _ report.Repository = (*reportRepository)(nil) // interface compliance check

func NewReportRepository(db *DB) report.Repository {
	return &reportRepository{db: db}
}

func (repo *reportRepository) CreateReport(_ context.Context, rep report.Report, _ ...core.DBExecutor) (report.Report, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.users[rep.StudentID]; !ok {
		return report.Report{}, errors.New("student does not exist")
	}
	rep.ID = repo.db.newID()
	repo.db.reports[rep.ID] = rep
	return rep, nil
}

func (repo *reportRepository) GetReport(_ context.Context, id string, _ ...core.DBExecutor) (report.Report, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if rep, ok := repo.db.reports[id]; ok {
		return rep, nil
	}
	return report.Report{}, report.ErrNotFound
}

func matchReport(rep report.Report, filter *report.QueryFilter) bool {
	if filter == nil {
		return true
	}
	return inOrAll(filter.Status, rep.Status) &&
		(filter.Department == "" || rep.Department == filter.Department) &&
		(filter.Batch == "" || contains(rep.Batch, filter.Batch)) &&
		inOrAll(filter.IDs, rep.ID) &&
		inOrAll(filter.StudentIDs, rep.StudentID)
}

// query returns the matching reports in insertion order. Callers hold a lock.
func (repo *reportRepository) query(filter *report.QueryFilter) []report.Report {
	ids := make([]string, 0, len(repo.db.reports))
	for id, rep := range repo.db.reports {
		if matchReport(rep, filter) {
			ids = append(ids, id)
		}
	}
	reports := make([]report.Report, 0, len(ids))
	for _, id := range repo.db.sortedIDs(ids) {
		reports = append(reports, repo.db.reports[id])
	}
	return reports
}

func (repo *reportRepository) QueryReports(_ context.Context, filter *report.QueryFilter, ordering []core.DBOrdering, page core.Page, _ ...core.DBExecutor) ([]report.Report, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	reports := repo.query(filter)
	sortBy(len(reports), func(i, j int) { reports[i], reports[j] = reports[j], reports[i] }, func(i int, field string) (interface{}, bool) {
		r := reports[i]
		switch field {
		case "submitted_at":
			return r.SubmittedAt, true
		case "updated_at":
			return r.UpdatedAt, true
		case "title":
			return r.Title, true
		case "status":
			return r.Status, true
		case "department":
			return r.Department, true
		case "batch":
			return r.Batch, true
		}
		return nil, false
	}, ordering)

	start, end := page.Bounds(len(reports))
	return reports[start:end], nil
}

func (repo *reportRepository) CountReports(_ context.Context, filter *report.QueryFilter, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return len(repo.query(filter)), nil
}

func (repo *reportRepository) CountReportsBy(_ context.Context, field string, _ ...core.DBExecutor) ([]report.Count, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var key func(report.Report) string
	switch field {
	case "status":
		key = func(r report.Report) string { return r.Status }
	case "department":
		key = func(r report.Report) string { return r.Department }
	default:
		return nil, errors.Errorf("cannot group reports by %q", field)
	}

	counts := make(map[string]int)
	for _, rep := range repo.db.reports {
		counts[key(rep)]++
	}
	result := make([]report.Count, 0, len(counts))
	for k, c := range counts {
		result = append(result, report.Count{Key: k, Count: c})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Key < result[j].Key
	})
	return result, nil
}

func (repo *reportRepository) UpdateReportStatus(_ context.Context, rep report.Report, _ ...core.DBExecutor) (report.Report, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	stored, ok := repo.db.reports[rep.ID]
	if !ok {
		return report.Report{}, report.ErrNotFound
	}
	stored.Status = rep.Status
	stored.UpdatedAt = rep.UpdatedAt
	repo.db.reports[rep.ID] = stored
	return stored, nil
}

func (repo *reportRepository) DeleteReports(_ context.Context, ids []string, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var cnt int
	for _, id := range ids {
		if _, ok := repo.db.reports[id]; ok {
			delete(repo.db.reports, id)
			cnt++
		}
	}
	return cnt, nil
}

type feedbackRepository struct {
	db *DB
}

var _ report.FeedbackRepository = (*feedbackRepository)(nil) // interface compliance check

func NewFeedbackRepository(db *DB) report.FeedbackRepository {
	return &feedbackRepository{db: db}
}

func (repo *feedbackRepository) GetOrCreateFeedback(_ context.Context, fb report.Feedback, _ ...core.DBExecutor) (report.Feedback, bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, f := range repo.db.feedback {
		if f.ReportID == fb.ReportID && f.EvaluatorID == fb.EvaluatorID {
			return f, false, nil
		}
	}
	if _, ok := repo.db.reports[fb.ReportID]; !ok {
		return report.Feedback{}, false, errors.New("report does not exist")
	}
	fb.ID = repo.db.newID()
	repo.db.feedback[fb.ID] = fb
	return fb, true, nil
}

func matchFeedback(fb report.Feedback, filter report.FeedbackFilter) bool {
	return inOrAll(filter.ReportIDs, fb.ReportID) &&
		inOrAll(filter.EvaluatorIDs, fb.EvaluatorID) &&
		(!filter.GradedOnly || fb.Grade.Valid)
}

func (repo *feedbackRepository) QueryFeedback(_ context.Context, filter report.FeedbackFilter, _ ...core.DBExecutor) ([]report.Feedback, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var ids []string
	for id, fb := range repo.db.feedback {
		if matchFeedback(fb, filter) {
			ids = append(ids, id)
		}
	}
	ids = repo.db.sortedIDs(ids)

	// newest first
	feedback := make([]report.Feedback, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		feedback = append(feedback, repo.db.feedback[ids[i]])
	}
	return feedback, nil
}

func (repo *feedbackRepository) UpdateFeedback(_ context.Context, fb report.Feedback, _ ...core.DBExecutor) (report.Feedback, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	stored, ok := repo.db.feedback[fb.ID]
	if !ok {
		return report.Feedback{}, report.ErrFeedbackNotFound
	}
	stored.Comments = fb.Comments
	stored.Grade = fb.Grade
	stored.MaxGrade = fb.MaxGrade
	stored.UpdatedAt = fb.UpdatedAt
	repo.db.feedback[fb.ID] = stored
	return stored, nil
}

func (repo *feedbackRepository) DeleteFeedback(_ context.Context, filter report.FeedbackFilter, _ ...core.DBExecutor) (int, error) {
	if filter.ReportIDs == nil && filter.EvaluatorIDs == nil {
		return 0, nil
	}
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var cnt int
	for id, fb := range repo.db.feedback {
		if matchFeedback(fb, filter) {
			delete(repo.db.feedback, id)
			cnt++
		}
	}
	return cnt, nil
}
