package report

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/reportal/core"
	"github.com/trezcool/reportal/core/assignment"
	"github.com/trezcool/reportal/core/user"
)

var (
	// errors
	ErrNotFound           = errors.New("report not found")
	ErrFeedbackNotFound   = errors.New("feedback not found")
	ErrForbidden          = errors.New("permission denied")
	ErrNotAnEvaluator     = errors.New("selected user is not an evaluator")
	ErrFileNotRetrievable = errors.New("report file could not be retrieved")

	OrderingFields = []string{"submitted_at", "updated_at", "title", "status", "department", "batch"}
)

type (
	Repository interface {
		CreateReport(ctx context.Context, rep Report, exec ...core.DBExecutor) (Report, error)
		GetReport(ctx context.Context, id string, exec ...core.DBExecutor) (Report, error)
		// QueryReports applies AND operation on Status, Department, Batch, IDs and StudentIDs.
		QueryReports(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Page, exec ...core.DBExecutor) ([]Report, error)
		CountReports(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) (int, error)
		// CountReportsBy groups the count of reports by one of "status" or "department".
		CountReportsBy(ctx context.Context, field string, exec ...core.DBExecutor) ([]Count, error)
		UpdateReportStatus(ctx context.Context, rep Report, exec ...core.DBExecutor) (Report, error)
		DeleteReports(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
	}

	FeedbackRepository interface {
		// GetOrCreateFeedback returns the (report, evaluator) feedback, creating `fb` if there is none.
		GetOrCreateFeedback(ctx context.Context, fb Feedback, exec ...core.DBExecutor) (Feedback, bool, error)
		// QueryFeedback returns the matching feedback, newest first.
		QueryFeedback(ctx context.Context, filter FeedbackFilter, exec ...core.DBExecutor) ([]Feedback, error)
		UpdateFeedback(ctx context.Context, fb Feedback, exec ...core.DBExecutor) (Feedback, error)
		DeleteFeedback(ctx context.Context, filter FeedbackFilter, exec ...core.DBExecutor) (int, error)
	}

	// Notifier is called once the change it notifies about has been committed.
	Notifier interface {
		ReportSubmitted(ctx context.Context, rep Report, student user.User, evaluators []user.User) error
		FeedbackSaved(ctx context.Context, rep Report, student user.User, fb Feedback) error
	}

	Service interface {
		Submit(ctx context.Context, student user.User, nr NewReport) (Report, error)
		Get(ctx context.Context, actor user.User, id string) (Detail, error)
		Query(ctx context.Context, actor user.User, filter *QueryFilter, ordering []core.DBOrdering, page core.Page) ([]Report, int, error)
		// Open returns the report and its stored file, which the caller must close.
		Open(ctx context.Context, actor user.User, id string) (Report, io.ReadCloser, error)
		AssignEvaluator(ctx context.Context, actor user.User, reportID, evaluatorID string) (assignment.ReportAssignment, bool, error)
		AvailableEvaluators(ctx context.Context, actor user.User, reportID string) ([]user.User, error)
		OpenFeedback(ctx context.Context, actor user.User, reportID string) (Feedback, error)
		SaveFeedback(ctx context.Context, actor user.User, reportID string, uf UpdateFeedback) (Feedback, error)
		CanGrade(ctx context.Context, actor user.User, rep Report) (bool, error)
		CanDownload(ctx context.Context, actor user.User, rep Report) (bool, error)

		StudentDashboard(ctx context.Context, student user.User) (StudentDashboard, error)
		EvaluatorDashboard(ctx context.Context, evaluator user.User) (EvaluatorDashboard, error)
		AdminDashboard(ctx context.Context, admin user.User, filter AdminFilter) (AdminDashboard, error)

		user.DataCleaner
	}

	service struct {
		db       core.Transactor
		repo     Repository
		fbRepo   FeedbackRepository
		asgRepo  assignment.Repository
		usrRepo  user.Repository
		files    core.FileStorage
		notifier Notifier
		logger   core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	db core.Transactor,
	repo Repository,
	fbRepo FeedbackRepository,
	asgRepo assignment.Repository,
	usrRepo user.Repository,
	files core.FileStorage,
	notifier Notifier,
	logger core.Logger,
) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(db, "db"),
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(fbRepo, "fbRepo"),
		vala.IsNotNil(asgRepo, "asgRepo"),
		vala.IsNotNil(usrRepo, "usrRepo"),
		vala.IsNotNil(files, "files"),
		vala.IsNotNil(notifier, "notifier"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &service{
		db:       db,
		repo:     repo,
		fbRepo:   fbRepo,
		asgRepo:  asgRepo,
		usrRepo:  usrRepo,
		files:    files,
		notifier: notifier,
		logger:   logger,
	}
}

func (svc *service) warn(err error, msg string, args ...interface{}) {
	if err != nil {
		svc.logger.Warn(msg, append([]interface{}{errors.Wrap(err, msg)}, args...)...)
	}
}

// Submit stores the file, creates the report and assigns it to the student's mapped evaluators,
// or else to the active evaluators of the report's department. `nr` must have been validated.
func (svc *service) Submit(ctx context.Context, student user.User, nr NewReport) (Report, error) {
	if !student.IsStudent() {
		return Report{}, ErrForbidden
	}
	if err := ValidateUpload(nr.File); err != nil {
		return Report{}, err
	}

	origName := path.Base(strings.ReplaceAll(nr.File.Filename, "\\", "/"))
	key := StorageKey(origName)
	if err := svc.files.Save(ctx, key, io.LimitReader(nr.File.Content, MaxUploadSize)); err != nil {
		return Report{}, errors.Wrap(err, "saving report file")
	}

	now := user.NowFunc().UTC()
	rep := Report{
		StudentID:        student.ID,
		Title:            nr.Title,
		Description:      nr.Description,
		Department:       nr.Department,
		Batch:            nr.Batch,
		Supervisor:       nr.Supervisor,
		FileName:         key,
		OriginalFilename: origName,
		FileSize:         nr.File.Size,
		Status:           StatusSubmitted,
		SubmittedAt:      now,
		UpdatedAt:        now,
	}

	var evaluators []user.User
	err := svc.db.Transact(ctx, func(exec core.DBExecutor) error {
		var err error
		if rep, err = svc.repo.CreateReport(ctx, rep, exec); err != nil {
			return errors.Wrap(err, "creating report")
		}
		if evaluators, err = svc.targetEvaluators(ctx, student, rep, exec); err != nil {
			return err
		}
		for _, ev := range evaluators {
			_, _, err = svc.asgRepo.GetOrCreateReportAssignment(ctx, assignment.ReportAssignment{
				ReportID:    rep.ID,
				EvaluatorID: ev.ID,
				AssignedBy:  null.StringFrom(student.ID),
				AssignedAt:  now,
				IsActive:    true,
			}, exec)
			if err != nil {
				return errors.Wrap(err, "assigning report")
			}
		}
		return nil
	})
	if err != nil {
		svc.warn(svc.files.Delete(ctx, key), "deleting orphan report file", student)
		return Report{}, err
	}

	if len(evaluators) > 0 {
		svc.warn(svc.notifier.ReportSubmitted(ctx, rep, student, evaluators), "sending report submitted emails", student, rep)
	}
	return rep, nil
}

// targetEvaluators returns the evaluators mapped to the student, falling back to the department's active ones.
func (svc *service) targetEvaluators(ctx context.Context, student user.User, rep Report, exec core.DBExecutor) ([]user.User, error) {
	mappings, err := svc.asgRepo.QueryStudentAssignments(ctx, assignment.StudentFilter{
		StudentIDs: []string{student.ID},
		ActiveOnly: true,
	}, exec)
	if err != nil {
		return nil, errors.Wrap(err, "querying student assignments")
	}

	filter := &user.QueryFilter{Roles: []string{user.RoleEvaluator}}
	if len(mappings) > 0 {
		filter.IDs = assignment.EvaluatorIDs(mappings)
	} else {
		if user.NormalizeDepartment(rep.Department) == "" {
			return nil, nil
		}
		active := true
		filter.IsActive = &active
		filter.Department = rep.Department
	}
	evaluators, err := svc.usrRepo.QueryUsers(ctx, filter, []core.DBOrdering{{Field: "username", Ascending: true}}, core.Page{}, exec)
	return evaluators, errors.Wrap(err, "querying evaluators")
}

func (svc *service) getReport(ctx context.Context, id string) (Report, error) {
	rep, err := svc.repo.GetReport(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Report{}, ErrNotFound
		}
		return Report{}, errors.Wrap(err, "getting report")
	}
	return rep, nil
}

func (svc *service) Get(ctx context.Context, actor user.User, id string) (Detail, error) {
	rep, err := svc.getReport(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	if err = checkView(actor, rep); err != nil {
		return Detail{}, err
	}

	dtl := Detail{Report: rep}
	if dtl.Student, err = svc.usrRepo.GetUser(ctx, user.GetFilter{ID: rep.StudentID}); err != nil {
		return Detail{}, errors.Wrap(err, "getting student")
	}
	if dtl.Feedback, err = svc.fbRepo.QueryFeedback(ctx, FeedbackFilter{ReportIDs: []string{rep.ID}}); err != nil {
		return Detail{}, errors.Wrap(err, "querying feedback")
	}
	if actor.IsStudent() {
		return dtl, nil
	}

	dtl.Assignments, err = svc.asgRepo.QueryReportAssignments(ctx, assignment.ReportFilter{ReportIDs: []string{rep.ID}})
	if err != nil {
		return Detail{}, errors.Wrap(err, "querying report assignments")
	}
	for i := range dtl.Feedback {
		if dtl.Feedback[i].EvaluatorID == actor.ID {
			fb := dtl.Feedback[i]
			dtl.UserFeedback = &fb
			break
		}
	}
	if dtl.CanGrade, err = svc.CanGrade(ctx, actor, rep); err != nil {
		return Detail{}, err
	}
	return dtl, nil
}

// Query lists the reports visible to actor: students only see their own.
func (svc *service) Query(ctx context.Context, actor user.User, filter *QueryFilter, ordering []core.DBOrdering, page core.Page) ([]Report, int, error) {
	if filter == nil {
		filter = &QueryFilter{}
	}
	filter.Clean()
	if err := svc.resolveFilter(ctx, actor, filter); err != nil {
		return nil, 0, err
	}

	ordering = core.FilterOrdering(ordering, OrderingFields...)
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "submitted_at"}}
	}
	reports, err := svc.repo.QueryReports(ctx, filter, ordering, page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying reports")
	}
	if page.IsZero() {
		return reports, len(reports), nil
	}
	count, err := svc.repo.CountReports(ctx, filter)
	return reports, count, errors.Wrap(err, "counting reports")
}

// resolveFilter turns the relational filters into IDs and StudentIDs.
func (svc *service) resolveFilter(ctx context.Context, actor user.User, filter *QueryFilter) error {
	switch {
	case actor.IsStudent():
		filter.StudentIDs = []string{actor.ID}
		filter.IDs = nil
		filter.StudentName, filter.EvaluatorID, filter.Assigned = "", "", false
		return nil
	case actor.IsAdmin(), actor.IsEvaluator():
	default:
		return ErrForbidden
	}

	if filter.StudentName != "" {
		students, err := svc.usrRepo.QueryUsers(ctx, &user.QueryFilter{
			Name:  filter.StudentName,
			Roles: []string{user.RoleStudent},
		}, nil, core.Page{})
		if err != nil {
			return errors.Wrap(err, "querying students")
		}
		filter.StudentIDs = intersect(filter.StudentIDs, userIDs(students))
	}
	if filter.EvaluatorID != "" {
		assignments, err := svc.asgRepo.QueryReportAssignments(ctx, assignment.ReportFilter{
			EvaluatorIDs: []string{filter.EvaluatorID},
		})
		if err != nil {
			return errors.Wrap(err, "querying report assignments")
		}
		filter.IDs = intersect(filter.IDs, assignment.ReportIDs(assignments))
	}
	if filter.Assigned && actor.IsEvaluator() {
		ids, err := svc.assignedReportIDs(ctx, actor)
		if err != nil {
			return err
		}
		filter.IDs = intersect(filter.IDs, ids)
	}
	return nil
}

// assignedReportIDs returns the reports an evaluator is assigned to, directly or through a student mapping.
func (svc *service) assignedReportIDs(ctx context.Context, evaluator user.User) ([]string, error) {
	assignments, err := svc.asgRepo.QueryReportAssignments(ctx, assignment.ReportFilter{
		EvaluatorIDs: []string{evaluator.ID},
		ActiveOnly:   true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying report assignments")
	}
	ids := assignment.ReportIDs(assignments)

	mappings, err := svc.asgRepo.QueryStudentAssignments(ctx, assignment.StudentFilter{
		EvaluatorIDs: []string{evaluator.ID},
		ActiveOnly:   true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying student assignments")
	}
	if len(mappings) == 0 {
		return ids, nil
	}
	mapped, err := svc.repo.QueryReports(ctx, &QueryFilter{StudentIDs: assignment.StudentIDs(mappings)}, nil, core.Page{})
	if err != nil {
		return nil, errors.Wrap(err, "querying mapped reports")
	}
	return union(ids, reportIDs(mapped)), nil
}

func (svc *service) Open(ctx context.Context, actor user.User, id string) (Report, io.ReadCloser, error) {
	rep, err := svc.getReport(ctx, id)
	if err != nil {
		return Report{}, nil, err
	}
	if err = svc.checkDownload(ctx, actor, rep); err != nil {
		return Report{}, nil, err
	}
	rc, err := svc.files.Open(ctx, rep.FileName)
	if err != nil {
		svc.logger.Error("opening report file", errors.Wrap(err, rep.FileName), actor, rep)
		return Report{}, nil, ErrFileNotRetrievable
	}
	return rep, rc, nil
}

// AssignEvaluator manually assigns an evaluator to a report (admin only). Assigning twice is a no-op.
func (svc *service) AssignEvaluator(ctx context.Context, actor user.User, reportID, evaluatorID string) (assignment.ReportAssignment, bool, error) {
	if !actor.IsAdmin() {
		return assignment.ReportAssignment{}, false, ErrForbidden
	}
	rep, err := svc.getReport(ctx, reportID)
	if err != nil {
		return assignment.ReportAssignment{}, false, err
	}
	evaluator, err := svc.usrRepo.GetUser(ctx, user.GetFilter{ID: evaluatorID})
	if err != nil && errors.Cause(err) != user.ErrNotFound {
		return assignment.ReportAssignment{}, false, errors.Wrap(err, "getting evaluator")
	}
	if err != nil || !evaluator.IsEvaluator() {
		return assignment.ReportAssignment{}, false, core.NewValidationError(
			ErrNotAnEvaluator, core.FieldError{Field: "evaluator_id", Error: ErrNotAnEvaluator.Error()},
		)
	}

	ra, created, err := svc.asgRepo.GetOrCreateReportAssignment(ctx, assignment.ReportAssignment{
		ReportID:    rep.ID,
		EvaluatorID: evaluator.ID,
		AssignedBy:  null.StringFrom(actor.ID),
		AssignedAt:  user.NowFunc().UTC(),
		IsActive:    true,
	})
	return ra, created, errors.Wrap(err, "assigning report")
}

// AvailableEvaluators returns the active evaluators not yet assigned to the report.
func (svc *service) AvailableEvaluators(ctx context.Context, actor user.User, reportID string) ([]user.User, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	rep, err := svc.getReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	assignments, err := svc.asgRepo.QueryReportAssignments(ctx, assignment.ReportFilter{
		ReportIDs:  []string{rep.ID},
		ActiveOnly: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying report assignments")
	}
	active := true
	evaluators, err := svc.usrRepo.QueryUsers(ctx, &user.QueryFilter{
		Roles:    []string{user.RoleEvaluator},
		IsActive: &active,
	}, []core.DBOrdering{{Field: "username", Ascending: true}}, core.Page{})
	if err != nil {
		return nil, errors.Wrap(err, "querying evaluators")
	}

	assigned := make(map[string]struct{}, len(assignments))
	for _, a := range assignments {
		assigned[a.EvaluatorID] = struct{}{}
	}
	available := make([]user.User, 0, len(evaluators))
	for _, ev := range evaluators {
		if _, ok := assigned[ev.ID]; !ok {
			available = append(available, ev)
		}
	}
	return available, nil
}

func newFeedback(reportID, evaluatorID string) Feedback {
	now := user.NowFunc().UTC()
	return Feedback{
		ReportID:    reportID,
		EvaluatorID: evaluatorID,
		MaxGrade:    DefaultMaxGrade,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// OpenFeedback returns the actor's feedback on the report, creating an empty one if needed.
func (svc *service) OpenFeedback(ctx context.Context, actor user.User, reportID string) (Feedback, error) {
	rep, err := svc.getReport(ctx, reportID)
	if err != nil {
		return Feedback{}, err
	}
	if err = svc.checkGrade(ctx, actor, rep); err != nil {
		return Feedback{}, err
	}
	fb, _, err := svc.fbRepo.GetOrCreateFeedback(ctx, newFeedback(rep.ID, actor.ID))
	return fb, errors.Wrap(err, "getting feedback")
}

// SaveFeedback saves the actor's feedback and sets the report status from it:
// graded means evaluated, ungraded means under review. The last save wins.
func (svc *service) SaveFeedback(ctx context.Context, actor user.User, reportID string, uf UpdateFeedback) (Feedback, error) {
	rep, err := svc.getReport(ctx, reportID)
	if err != nil {
		return Feedback{}, err
	}
	if err = svc.checkGrade(ctx, actor, rep); err != nil {
		return Feedback{}, err
	}

	var fb Feedback
	err = svc.db.Transact(ctx, func(exec core.DBExecutor) error {
		var err error
		if fb, _, err = svc.fbRepo.GetOrCreateFeedback(ctx, newFeedback(rep.ID, actor.ID), exec); err != nil {
			return errors.Wrap(err, "getting feedback")
		}
		now := user.NowFunc().UTC()
		fb.Comments = uf.Comments
		fb.Grade = uf.Grade
		fb.MaxGrade = uf.MaxGrade
		fb.UpdatedAt = now
		if fb, err = svc.fbRepo.UpdateFeedback(ctx, fb, exec); err != nil {
			return errors.Wrap(err, "updating feedback")
		}

		rep.Status = StatusUnderReview
		if fb.Grade.Valid {
			rep.Status = StatusEvaluated
		}
		rep.UpdatedAt = now
		rep, err = svc.repo.UpdateReportStatus(ctx, rep, exec)
		return errors.Wrap(err, "updating report status")
	})
	if err != nil {
		return Feedback{}, err
	}

	if rep.Status == StatusEvaluated {
		student, err := svc.usrRepo.GetUser(ctx, user.GetFilter{ID: rep.StudentID})
		if err != nil {
			svc.warn(err, "getting student to notify", actor)
		} else {
			svc.warn(svc.notifier.FeedbackSaved(ctx, rep, student, fb), "sending report evaluated email", student, rep)
		}
	}
	return fb, nil
}

// CleanUpUserData deletes the reports owned by the users (with their feedback and assignments)
// and the feedback they gave. Stored files are deleted once the transaction is committed.
func (svc *service) CleanUpUserData(ctx context.Context, ids []string, exec core.DBExecutor) (func(context.Context), error) {
	if len(ids) == 0 {
		return nil, nil
	}
	reports, err := svc.repo.QueryReports(ctx, &QueryFilter{StudentIDs: ids}, nil, core.Page{}, exec)
	if err != nil {
		return nil, errors.Wrap(err, "querying reports")
	}
	if _, err = svc.fbRepo.DeleteFeedback(ctx, FeedbackFilter{EvaluatorIDs: ids}, exec); err != nil {
		return nil, errors.Wrap(err, "deleting given feedback")
	}
	if len(reports) == 0 {
		return nil, nil
	}

	repIDs := reportIDs(reports)
	if _, err = svc.fbRepo.DeleteFeedback(ctx, FeedbackFilter{ReportIDs: repIDs}, exec); err != nil {
		return nil, errors.Wrap(err, "deleting report feedback")
	}
	if _, err = svc.asgRepo.DeleteReportAssignments(ctx, assignment.ReportFilter{ReportIDs: repIDs}, exec); err != nil {
		return nil, errors.Wrap(err, "deleting report assignments")
	}
	if _, err = svc.repo.DeleteReports(ctx, repIDs, exec); err != nil {
		return nil, errors.Wrap(err, "deleting reports")
	}

	return func(ctx context.Context) {
		for _, rep := range reports {
			svc.warn(svc.files.Delete(ctx, rep.FileName), "deleting report file", rep)
		}
	}, nil
}

func reportIDs(reports []Report) []string {
	ids := make([]string, 0, len(reports))
	for _, r := range reports {
		ids = append(ids, r.ID)
	}
	return ids
}

func userIDs(users []user.User) []string {
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}

// intersect treats a nil `current` as "everything".
func intersect(current, ids []string) []string {
	if ids == nil {
		ids = []string{}
	}
	if current == nil {
		return ids
	}
	kept := make([]string, 0, len(current))
	for _, id := range current {
		if core.ContainsString(ids, id) {
			kept = append(kept, id)
		}
	}
	return kept
}

func union(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	for _, id := range b {
		if !core.ContainsString(out, id) {
			out = append(out, id)
		}
	}
	return out
}
