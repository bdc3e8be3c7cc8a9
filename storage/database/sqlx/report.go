package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/reportal/core"
	"github.com/trezcool/reportal/core/report"
)

const (
	reportTable   = "project_report"
	feedbackTable = "feedback"
)

var (
	reportColumns = []string{
		"id", "student_id", "title", "description", "department", "batch", "supervisor",
		"file_name", "original_filename", "file_size", "status", "submitted_at", "updated_at",
	}
	feedbackColumns = []string{"id", "report_id", "evaluator_id", "comments", "grade", "max_grade", "created_at", "updated_at"}

	groupableReportColumns = []string{"status", "department"}
)

type reportRow struct {
	ID               string    `db:"id"`
	StudentID        string    `db:"student_id"`
	Title            string    `db:"title"`
	Description      string    `db:"description"`
	Department       string    `db:"department"`
	Batch            string    `db:"batch"`
	Supervisor       string    `db:"supervisor"`
	FileName         string    `db:"file_name"`
	OriginalFilename string    `db:"original_filename"`
	FileSize         int64     `db:"file_size"`
	Status           string    `db:"status"`
	SubmittedAt      time.Time `db:"submitted_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

type feedbackRow struct {
	ID          string       `db:"id"`
	ReportID    string       `db:"report_id"`
	EvaluatorID string       `db:"evaluator_id"`
	Comments    string       `db:"comments"`
	Grade       null.Float64 `db:"grade"`
	MaxGrade    float64      `db:"max_grade"`
	CreatedAt   time.Time    `db:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at"`
}

type reportRepository struct {
	repository
}

var _ report.Repository = (*reportRepository)(nil) // interface compliance check

func NewReportRepository(exec core.DBExecutor) report.Repository {
	return &reportRepository{repository{exec: exec}}
}

func (repo reportRepository) CreateReport(ctx context.Context, rep report.Report, exec ...core.DBExecutor) (report.Report, error) {
	rep.ID = uuid.NewString()
	q := psql.Insert(reportTable).Columns(reportColumns...).Values(
		rep.ID, rep.StudentID, rep.Title, rep.Description, rep.Department, rep.Batch, rep.Supervisor,
		rep.FileName, rep.OriginalFilename, rep.FileSize, rep.Status, rep.SubmittedAt.UTC(), rep.UpdatedAt.UTC(),
	)
	if _, err := repo.execute(ctx, exec, q); err != nil {
		return report.Report{}, errors.Wrap(err, "inserting report")
	}
	return rep, nil
}

func (repo reportRepository) GetReport(ctx context.Context, id string, exec ...core.DBExecutor) (report.Report, error) {
	if _, err := uuid.Parse(id); err != nil {
		return report.Report{}, report.ErrNotFound
	}
	var row reportRow
	if err := repo.getOne(ctx, exec, &row, psql.Select(reportColumns...).From(reportTable).Where(sq.Eq{"id": id})); err != nil {
		return report.Report{}, trapNoRowsErr(err, report.ErrNotFound, "finding report")
	}
	return report.Report(row), nil
}

func (repo reportRepository) where(filter *report.QueryFilter) sq.And {
	where := sq.And{}
	if filter == nil {
		return where
	}
	where = inFilter(where, "status", filter.Status, false)
	if filter.Department != "" {
		where = append(where, sq.Eq{"department": filter.Department})
	}
	if filter.Batch != "" {
		where = append(where, sq.ILike{"batch": ilike(filter.Batch)})
	}
	where = inFilter(where, "id", filter.IDs, true)
	return inFilter(where, "student_id", filter.StudentIDs, true)
}

func (repo reportRepository) QueryReports(ctx context.Context, filter *report.QueryFilter, ordering []core.DBOrdering, page core.Page, exec ...core.DBExecutor) ([]report.Report, error) {
	q := psql.Select(reportColumns...).From(reportTable).Where(repo.where(filter))
	q = paginate(orderBy(q, ordering), page)

	var rows []reportRow
	if err := repo.selectAll(ctx, exec, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying reports")
	}
	reports := make([]report.Report, 0, len(rows))
	for _, row := range rows {
		reports = append(reports, report.Report(row))
	}
	return reports, nil
}

func (repo reportRepository) CountReports(ctx context.Context, filter *report.QueryFilter, exec ...core.DBExecutor) (int, error) {
	cnt, err := repo.count(ctx, exec, psql.Select("COUNT(*)").From(reportTable).Where(repo.where(filter)))
	return cnt, errors.Wrap(err, "counting reports")
}

func (repo reportRepository) CountReportsBy(ctx context.Context, field string, exec ...core.DBExecutor) ([]report.Count, error) {
	if !core.ContainsString(groupableReportColumns, field) {
		return nil, errors.Errorf("cannot group reports by %q", field)
	}
	q := psql.Select(field+" AS key", "COUNT(*) AS count").
		From(reportTable).
		GroupBy(field).
		OrderBy("count DESC", "key ASC")

	var counts []report.Count
	if err := repo.selectAll(ctx, exec, &counts, q); err != nil {
		return nil, errors.Wrap(err, "counting reports by "+field)
	}
	return counts, nil
}

func (repo reportRepository) UpdateReportStatus(ctx context.Context, rep report.Report, exec ...core.DBExecutor) (report.Report, error) {
	q := psql.Update(reportTable).
		Set("status", rep.Status).
		Set("updated_at", rep.UpdatedAt.UTC()).
		Where(sq.Eq{"id": rep.ID})
	cnt, err := repo.execute(ctx, exec, q)
	if err != nil {
		return report.Report{}, errors.Wrap(err, "updating report status")
	}
	if cnt == 0 {
		return report.Report{}, report.ErrNotFound
	}
	return rep, nil
}

func (repo reportRepository) DeleteReports(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	cnt, err := repo.execute(ctx, exec, psql.Delete(reportTable).Where(sq.Eq{"id": validUUIDs(ids)}))
	return cnt, errors.Wrap(err, "deleting reports")
}

type feedbackRepository struct {
	repository
}

var _ report.FeedbackRepository = (*feedbackRepository)(nil) // interface compliance check

func NewFeedbackRepository(exec core.DBExecutor) report.FeedbackRepository {
	return &feedbackRepository{repository{exec: exec}}
}

func (repo feedbackRepository) GetOrCreateFeedback(ctx context.Context, fb report.Feedback, exec ...core.DBExecutor) (report.Feedback, bool, error) {
	var row feedbackRow
	insert := psql.Insert(feedbackTable).
		Columns(feedbackColumns...).
		Values(uuid.NewString(), fb.ReportID, fb.EvaluatorID, fb.Comments, fb.Grade, fb.MaxGrade, fb.CreatedAt.UTC(), fb.UpdatedAt.UTC()).
		Suffix("ON CONFLICT (report_id, evaluator_id) DO NOTHING RETURNING *")
	err := repo.getOne(ctx, exec, &row, insert)
	if err == nil {
		return report.Feedback(row), true, nil
	}
	if err = trapNoRowsErr(err, nil, "inserting feedback"); err != nil {
		return report.Feedback{}, false, err
	}

	// already given
	where := sq.Eq{"report_id": fb.ReportID, "evaluator_id": fb.EvaluatorID}
	if err = repo.getOne(ctx, exec, &row, psql.Select(feedbackColumns...).From(feedbackTable).Where(where)); err != nil {
		return report.Feedback{}, false, errors.Wrap(err, "getting feedback")
	}
	return report.Feedback(row), false, nil
}

func feedbackWhere(filter report.FeedbackFilter) sq.And {
	where := sq.And{}
	where = inFilter(where, "report_id", filter.ReportIDs, true)
	where = inFilter(where, "evaluator_id", filter.EvaluatorIDs, true)
	if filter.GradedOnly {
		where = append(where, sq.NotEq{"grade": nil})
	}
	return where
}

func (repo feedbackRepository) QueryFeedback(ctx context.Context, filter report.FeedbackFilter, exec ...core.DBExecutor) ([]report.Feedback, error) {
	q := psql.Select(feedbackColumns...).From(feedbackTable).Where(feedbackWhere(filter)).OrderBy("created_at DESC")

	var rows []feedbackRow
	if err := repo.selectAll(ctx, exec, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying feedback")
	}
	feedback := make([]report.Feedback, 0, len(rows))
	for _, row := range rows {
		feedback = append(feedback, report.Feedback(row))
	}
	return feedback, nil
}

func (repo feedbackRepository) UpdateFeedback(ctx context.Context, fb report.Feedback, exec ...core.DBExecutor) (report.Feedback, error) {
	q := psql.Update(feedbackTable).
		Set("comments", fb.Comments).
		Set("grade", fb.Grade).
		Set("max_grade", fb.MaxGrade).
		Set("updated_at", fb.UpdatedAt.UTC()).
		Where(sq.Eq{"id": fb.ID})
	cnt, err := repo.execute(ctx, exec, q)
	if err != nil {
		return report.Feedback{}, errors.Wrap(err, "updating feedback")
	}
	if cnt == 0 {
		return report.Feedback{}, report.ErrFeedbackNotFound
	}
	return fb, nil
}

func (repo feedbackRepository) DeleteFeedback(ctx context.Context, filter report.FeedbackFilter, exec ...core.DBExecutor) (int, error) {
	if filter.ReportIDs == nil && filter.EvaluatorIDs == nil {
		return 0, nil
	}
	cnt, err := repo.execute(ctx, exec, psql.Delete(feedbackTable).Where(feedbackWhere(filter)))
	return cnt, errors.Wrap(err, "deleting feedback")
}
