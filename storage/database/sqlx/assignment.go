package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/reportal/core"
	"github.com/trezcool/reportal/core/assignment"
)

const (
	reportAssignmentTable  = "report_assignment"
	studentAssignmentTable = "evaluator_student_assignment"
)

var (
	reportAssignmentColumns  = []string{"id", "report_id", "evaluator_id", "assigned_by", "assigned_at", "is_active"}
	studentAssignmentColumns = []string{"id", "evaluator_id", "student_id", "assigned_by", "created_at", "is_active"}
)

type reportAssignmentRow struct {
	ID          string      `db:"id"`
	ReportID    string      `db:"report_id"`
	EvaluatorID string      `db:"evaluator_id"`
	AssignedBy  null.String `db:"assigned_by"`
	AssignedAt  time.Time   `db:"assigned_at"`
	IsActive    bool        `db:"is_active"`
}

func (row reportAssignmentRow) toAssignment() assignment.ReportAssignment {
	return assignment.ReportAssignment(row)
}

type studentAssignmentRow struct {
	ID          string      `db:"id"`
	EvaluatorID string      `db:"evaluator_id"`
	StudentID   string      `db:"student_id"`
	AssignedBy  null.String `db:"assigned_by"`
	CreatedAt   time.Time   `db:"created_at"`
	IsActive    bool        `db:"is_active"`
}

func (row studentAssignmentRow) toAssignment() assignment.StudentAssignment {
	return assignment.StudentAssignment(row)
}

type assignmentRepository struct {
	repository
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(exec core.DBExecutor) assignment.Repository {
	return &assignmentRepository{repository{exec: exec}}
}

func (repo assignmentRepository) GetOrCreateReportAssignment(ctx context.Context, ra assignment.ReportAssignment, exec ...core.DBExecutor) (assignment.ReportAssignment, bool, error) {
	var row reportAssignmentRow
	insert := psql.Insert(reportAssignmentTable).
		Columns(reportAssignmentColumns...).
		Values(uuid.NewString(), ra.ReportID, ra.EvaluatorID, ra.AssignedBy, ra.AssignedAt.UTC(), ra.IsActive).
		Suffix("ON CONFLICT (report_id, evaluator_id) DO NOTHING RETURNING *")
	err := repo.getOne(ctx, exec, &row, insert)
	if err == nil {
		return row.toAssignment(), true, nil
	}
	if err = trapNoRowsErr(err, nil, "inserting report assignment"); err != nil {
		return assignment.ReportAssignment{}, false, err
	}

	// already assigned
	where := sq.Eq{"report_id": ra.ReportID, "evaluator_id": ra.EvaluatorID}
	if err = repo.getOne(ctx, exec, &row, psql.Select(reportAssignmentColumns...).From(reportAssignmentTable).Where(where)); err != nil {
		return assignment.ReportAssignment{}, false, errors.Wrap(err, "getting report assignment")
	}
	if !row.IsActive {
		if _, err = repo.execute(ctx, exec, psql.Update(reportAssignmentTable).Set("is_active", true).Where(sq.Eq{"id": row.ID})); err != nil {
			return assignment.ReportAssignment{}, false, errors.Wrap(err, "re-activating report assignment")
		}
		row.IsActive = true
	}
	return row.toAssignment(), false, nil
}

func reportAssignmentWhere(filter assignment.ReportFilter) sq.And {
	where := sq.And{}
	where = inFilter(where, "report_id", filter.ReportIDs, true)
	where = inFilter(where, "evaluator_id", filter.EvaluatorIDs, true)
	if filter.ActiveOnly {
		where = append(where, sq.Eq{"is_active": true})
	}
	return where
}

func (repo assignmentRepository) QueryReportAssignments(ctx context.Context, filter assignment.ReportFilter, exec ...core.DBExecutor) ([]assignment.ReportAssignment, error) {
	q := psql.Select(reportAssignmentColumns...).
		From(reportAssignmentTable).
		Where(reportAssignmentWhere(filter)).
		OrderBy("assigned_at DESC")

	var rows []reportAssignmentRow
	if err := repo.selectAll(ctx, exec, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying report assignments")
	}
	assignments := make([]assignment.ReportAssignment, 0, len(rows))
	for _, row := range rows {
		assignments = append(assignments, row.toAssignment())
	}
	return assignments, nil
}

func (repo assignmentRepository) DeleteReportAssignments(ctx context.Context, filter assignment.ReportFilter, exec ...core.DBExecutor) (int, error) {
	if filter.ReportIDs == nil && filter.EvaluatorIDs == nil {
		return 0, nil
	}
	cnt, err := repo.execute(ctx, exec, psql.Delete(reportAssignmentTable).Where(reportAssignmentWhere(filter)))
	return cnt, errors.Wrap(err, "deleting report assignments")
}

func (repo assignmentRepository) GetOrCreateStudentAssignment(ctx context.Context, sa assignment.StudentAssignment, exec ...core.DBExecutor) (assignment.StudentAssignment, bool, error) {
	var row studentAssignmentRow
	insert := psql.Insert(studentAssignmentTable).
		Columns(studentAssignmentColumns...).
		Values(uuid.NewString(), sa.EvaluatorID, sa.StudentID, sa.AssignedBy, sa.CreatedAt.UTC(), sa.IsActive).
		Suffix("ON CONFLICT (evaluator_id, student_id) DO NOTHING RETURNING *")
	err := repo.getOne(ctx, exec, &row, insert)
	if err == nil {
		return row.toAssignment(), true, nil
	}
	if err = trapNoRowsErr(err, nil, "inserting student assignment"); err != nil {
		return assignment.StudentAssignment{}, false, err
	}

	// already mapped
	where := sq.Eq{"evaluator_id": sa.EvaluatorID, "student_id": sa.StudentID}
	if err = repo.getOne(ctx, exec, &row, psql.Select(studentAssignmentColumns...).From(studentAssignmentTable).Where(where)); err != nil {
		return assignment.StudentAssignment{}, false, errors.Wrap(err, "getting student assignment")
	}
	if !row.IsActive {
		if _, err = repo.execute(ctx, exec, psql.Update(studentAssignmentTable).Set("is_active", true).Where(sq.Eq{"id": row.ID})); err != nil {
			return assignment.StudentAssignment{}, false, errors.Wrap(err, "re-activating student assignment")
		}
		row.IsActive = true
	}
	return row.toAssignment(), false, nil
}

func (repo assignmentRepository) QueryStudentAssignments(ctx context.Context, filter assignment.StudentFilter, exec ...core.DBExecutor) ([]assignment.StudentAssignment, error) {
	where := sq.And{}
	where = inFilter(where, "evaluator_id", filter.EvaluatorIDs, true)
	where = inFilter(where, "student_id", filter.StudentIDs, true)
	if filter.ActiveOnly {
		where = append(where, sq.Eq{"is_active": true})
	}
	q := psql.Select(studentAssignmentColumns...).From(studentAssignmentTable).Where(where).OrderBy("created_at DESC")

	var rows []studentAssignmentRow
	if err := repo.selectAll(ctx, exec, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying student assignments")
	}
	mappings := make([]assignment.StudentAssignment, 0, len(rows))
	for _, row := range rows {
		mappings = append(mappings, row.toAssignment())
	}
	return mappings, nil
}

func (repo assignmentRepository) DeleteUserAssignments(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	ids = validUUIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	mapped, err := repo.execute(ctx, exec, psql.Delete(studentAssignmentTable).
		Where(sq.Or{sq.Eq{"evaluator_id": ids}, sq.Eq{"student_id": ids}}))
	if err != nil {
		return 0, errors.Wrap(err, "deleting student assignments")
	}
	assigned, err := repo.execute(ctx, exec, psql.Delete(reportAssignmentTable).Where(sq.Eq{"evaluator_id": ids}))
	if err != nil {
		return 0, errors.Wrap(err, "deleting report assignments")
	}
	return mapped + assigned, nil
}
