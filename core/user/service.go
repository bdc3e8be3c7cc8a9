package user

import (
	"context"
	"strings"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/reportal/core"
	"github.com/trezcool/reportal/core/assignment"
)

const (
	generatedPasswordLen     = 12
	generatedTempPasswordLen = 10 // url-safe token bytes
)

var (
	// errors
	ErrNotFound             = errors.New("user not found")
	ErrEmailExists          = errors.New("a user with this email already exists")
	ErrUsernameExists       = errors.New("a user with this username already exists")
	ErrStudentIDExists      = errors.New("a user with this student ID already exists")
	ErrInvalidCredentials   = errors.New("invalid username or password")
	ErrPendingApproval      = errors.New("your account is pending approval by an evaluator")
	ErrRegistrationRejected = errors.New("your registration has been rejected")
	ErrAccountDeactivated   = errors.New("account deactivated")
	ErrNotPending           = errors.New("student is not pending approval")
	ErrForbidden            = errors.New("permission denied")

	OrderingFields = []string{"username", "email", "first_name", "last_name", "role", "department", "created_at", "last_login"}
)

type (
	Repository interface {
		// CheckUniqueness returns one of ErrUsernameExists, ErrEmailExists or ErrStudentIDExists. Empty values are not checked.
		CheckUniqueness(ctx context.Context, username, email, studentID string, excludedUsers []User, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Username, Email, FirstName, LastName or StudentID.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Page, exec ...core.DBExecutor) ([]User, error)
		CountUsers(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) (int, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		SetUsersActive(ctx context.Context, ids []string, active bool, exec ...core.DBExecutor) (int, error)
		DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
	}

	// Notifier is called once the change it notifies about has been committed.
	Notifier interface {
		RegistrationReceived(ctx context.Context, usr User) error
		AccountCreated(ctx context.Context, usr User, password string) error
		StudentApproved(ctx context.Context, student, approver User) error
		StudentRejected(ctx context.Context, student User) error
		PasswordReset(ctx context.Context, usr User, uid, token string) error
	}

	// DataCleaner removes the rows referencing users that are about to be deleted.
	// It runs inside the deletion transaction; the returned func (if any) runs after commit.
	DataCleaner interface {
		CleanUpUserData(ctx context.Context, ids []string, exec core.DBExecutor) (afterCommit func(context.Context), err error)
	}

	Service interface {
		CheckUniqueness(ctx context.Context, uname, email, studentID string, exclUsers ...User) error
		Register(ctx context.Context, ns NewStudent) (User, error)
		Create(ctx context.Context, creator User, nu NewUser) (NewAccount, error)
		CreateStudent(ctx context.Context, evaluator User, nu NewUser) (NewAccount, error)
		Authenticate(ctx context.Context, uname, pwd string) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		Approve(ctx context.Context, actor User, studentID string) (User, error)
		Reject(ctx context.Context, actor User, studentID string) (User, error)
		QueryPending(ctx context.Context) ([]User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Page) ([]User, int, error)
		QueryStudents(ctx context.Context, actor User) ([]User, error)
		QueryEvaluators(ctx context.Context, department string) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		Update(ctx context.Context, id string, uu UpdateUser) (User, error)
		SetActive(ctx context.Context, active bool, ids ...string) (int, error)
		GenerateRandomPasswords(ctx context.Context, ids ...string) ([]GeneratedPassword, error)
		AssignStudents(ctx context.Context, actor User, evaluatorID string, studentIDs []string) (int, error)
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, data ResetUserPassword) error
		Delete(ctx context.Context, ids ...string) (int, error)
		AddCleaners(cleaners ...DataCleaner)
	}

	service struct {
		db       core.Transactor
		repo     Repository
		asgRepo  assignment.Repository
		notifier Notifier
		logger   core.Logger
		conf     *core.Config
		tokens   tokenGenerator
		cleaners []DataCleaner
	}
)

var _ Service = (*service)(nil)

func NewService(
	db core.Transactor,
	repo Repository,
	asgRepo assignment.Repository,
	notifier Notifier,
	logger core.Logger,
	conf *core.Config,
) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(db, "db"),
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(asgRepo, "asgRepo"),
		vala.IsNotNil(notifier, "notifier"),
		vala.IsNotNil(logger, "logger"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	return &service{
		db:       db,
		repo:     repo,
		asgRepo:  asgRepo,
		notifier: notifier,
		logger:   logger,
		conf:     conf,
		tokens:   tokenGenerator{secret: []byte(conf.SecretKey), timeout: conf.PasswordResetTimeoutDelta},
	}
}

func (svc *service) AddCleaners(cleaners ...DataCleaner) {
	svc.cleaners = append(svc.cleaners, cleaners...)
}

func (svc *service) CheckUniqueness(ctx context.Context, uname, email, studentID string, exclUsers ...User) error {
	if err := svc.repo.CheckUniqueness(ctx, uname, email, studentID, exclUsers); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		case ErrStudentIDExists:
			field = "student_id"
		default:
			return errors.Wrap(err, "checking uniqueness")
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: errors.Cause(err).Error()})
	}
	return nil
}

// warn logs failed notifications; they never fail the committed operation.
func (svc *service) warn(err error, msg string, usr User) {
	if err != nil {
		svc.logger.Warn(msg, errors.Wrap(err, msg), usr)
	}
}

// Register creates a self-registered student, inactive and pending approval.
func (svc *service) Register(ctx context.Context, ns NewStudent) (User, error) {
	now := NowFunc().UTC()
	usr := User{
		Username:       ns.Username,
		Email:          ns.Email,
		FirstName:      ns.FirstName,
		LastName:       ns.LastName,
		Role:           RoleStudent,
		StudentID:      ns.StudentID,
		Department:     ns.Department,
		Batch:          ns.Batch,
		PhoneNumber:    ns.PhoneNumber,
		IsActive:       false,
		ApprovalStatus: ApprovalPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := usr.SetPassword(ns.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(err, "creating user")
	}

	svc.warn(svc.notifier.RegistrationReceived(ctx, usr), "sending registration email", usr)
	return usr, nil
}

func (svc *service) newAccount(nu NewUser, role string) (User, string, error) {
	pwd := nu.Password
	if pwd == "" {
		var err error
		if pwd, err = core.URLSafeToken(generatedTempPasswordLen); err != nil {
			return User{}, "", errors.Wrap(err, "generating password")
		}
	}

	now := NowFunc().UTC()
	usr := User{
		Username:       nu.Username,
		Email:          nu.Email,
		FirstName:      nu.FirstName,
		LastName:       nu.LastName,
		Role:           role,
		Department:     nu.Department,
		Batch:          nu.Batch,
		PhoneNumber:    nu.PhoneNumber,
		IsActive:       true,
		ApprovalStatus: ApprovalApproved,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if role == RoleStudent {
		usr.StudentID = nu.StudentID
	}
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, "", errors.Wrap(err, "setting password")
	}
	return usr, pwd, nil
}

// deliverCredentials emails the new credentials; the password is handed back when that fails.
func (svc *service) deliverCredentials(ctx context.Context, usr User, pwd string) NewAccount {
	acc := NewAccount{User: usr, EmailSent: true}
	if err := svc.notifier.AccountCreated(ctx, usr, pwd); err != nil {
		svc.warn(err, "sending account credentials", usr)
		acc.EmailSent = false
		acc.Password = pwd
	}
	return acc
}

// Create creates an approved and active account of any role (admin only).
func (svc *service) Create(ctx context.Context, creator User, nu NewUser) (NewAccount, error) {
	if !creator.IsAdmin() {
		return NewAccount{}, ErrForbidden
	}
	usr, pwd, err := svc.newAccount(nu, nu.Role)
	if err != nil {
		return NewAccount{}, err
	}
	if usr.Role == RoleStudent {
		usr.ApprovedBy = null.StringFrom(creator.ID)
		usr.ApprovalDate = null.TimeFrom(usr.CreatedAt)
	}
	if usr, err = svc.repo.CreateUser(ctx, usr); err != nil {
		return NewAccount{}, errors.Wrap(err, "creating user")
	}
	return svc.deliverCredentials(ctx, usr, pwd), nil
}

// CreateStudent creates an auto-approved student mapped to the creating evaluator.
func (svc *service) CreateStudent(ctx context.Context, evaluator User, nu NewUser) (NewAccount, error) {
	if !evaluator.IsEvaluator() {
		return NewAccount{}, ErrForbidden
	}
	if nu.StudentID == "" {
		return NewAccount{}, core.NewFieldError("student_id", "this field is required")
	}
	usr, pwd, err := svc.newAccount(nu, RoleStudent)
	if err != nil {
		return NewAccount{}, err
	}
	usr.ApprovedBy = null.StringFrom(evaluator.ID)
	usr.ApprovalDate = null.TimeFrom(usr.CreatedAt)
	if usr.Department == "" {
		usr.Department = evaluator.Department
	}

	err = svc.db.Transact(ctx, func(exec core.DBExecutor) error {
		var err error
		if usr, err = svc.repo.CreateUser(ctx, usr, exec); err != nil {
			return errors.Wrap(err, "creating user")
		}
		_, _, err = svc.asgRepo.GetOrCreateStudentAssignment(ctx, assignment.StudentAssignment{
			EvaluatorID: evaluator.ID,
			StudentID:   usr.ID,
			AssignedBy:  null.StringFrom(evaluator.ID),
			CreatedAt:   usr.CreatedAt,
			IsActive:    true,
		}, exec)
		return errors.Wrap(err, "assigning student")
	})
	if err != nil {
		return NewAccount{}, err
	}
	return svc.deliverCredentials(ctx, usr, pwd), nil
}

// Authenticate checks the credentials, then the approval gate, and records the login.
func (svc *service) Authenticate(ctx context.Context, uname, pwd string) (User, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidCredentials
		}
		return User{}, errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if err = usr.CheckCanLogin(); err != nil {
		return User{}, err
	}
	return svc.SetLastLogin(ctx, usr)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = null.TimeFrom(NowFunc().UTC())
	usr, err := svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "updating user")
}

func (svc *service) getPendingStudent(ctx context.Context, id string, exec core.DBExecutor) (User, error) {
	student, err := svc.repo.GetUser(ctx, GetFilter{ID: id}, exec)
	if err != nil {
		return User{}, err
	}
	if !student.IsStudent() {
		return User{}, ErrNotFound
	}
	if !student.IsPending() {
		return User{}, ErrNotPending
	}
	return student, nil
}

// Approve activates a pending student and maps them to the approving evaluator.
func (svc *service) Approve(ctx context.Context, actor User, studentID string) (User, error) {
	if !(actor.IsEvaluator() || actor.IsAdmin()) {
		return User{}, ErrForbidden
	}

	var student User
	err := svc.db.Transact(ctx, func(exec core.DBExecutor) error {
		var err error
		if student, err = svc.getPendingStudent(ctx, studentID, exec); err != nil {
			return err
		}

		now := NowFunc().UTC()
		student.IsActive = true
		student.ApprovalStatus = ApprovalApproved
		student.ApprovedBy = null.StringFrom(actor.ID)
		student.ApprovalDate = null.TimeFrom(now)
		student.UpdatedAt = now
		if student, err = svc.repo.UpdateUser(ctx, student, exec); err != nil {
			return errors.Wrap(err, "updating user")
		}

		if actor.IsEvaluator() {
			_, _, err = svc.asgRepo.GetOrCreateStudentAssignment(ctx, assignment.StudentAssignment{
				EvaluatorID: actor.ID,
				StudentID:   student.ID,
				AssignedBy:  null.StringFrom(actor.ID),
				CreatedAt:   now,
				IsActive:    true,
			}, exec)
			return errors.Wrap(err, "assigning student")
		}
		return nil
	})
	if err != nil {
		return User{}, err
	}

	svc.warn(svc.notifier.StudentApproved(ctx, student, actor), "sending approval email", student)
	return student, nil
}

// Reject permanently rejects a pending student.
func (svc *service) Reject(ctx context.Context, actor User, studentID string) (User, error) {
	if !(actor.IsEvaluator() || actor.IsAdmin()) {
		return User{}, ErrForbidden
	}

	student, err := svc.getPendingStudent(ctx, studentID, nil)
	if err != nil {
		return User{}, err
	}
	student.IsActive = false
	student.ApprovalStatus = ApprovalRejected
	student.UpdatedAt = NowFunc().UTC()
	if student, err = svc.repo.UpdateUser(ctx, student); err != nil {
		return User{}, errors.Wrap(err, "updating user")
	}

	svc.warn(svc.notifier.StudentRejected(ctx, student), "sending rejection email", student)
	return student, nil
}

func (svc *service) QueryPending(ctx context.Context) ([]User, error) {
	filter := &QueryFilter{Roles: []string{RoleStudent}, ApprovalStatus: []string{ApprovalPending}}
	users, err := svc.repo.QueryUsers(ctx, filter, []core.DBOrdering{{Field: "created_at"}}, core.Page{})
	return users, errors.Wrap(err, "querying users")
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Page) ([]User, int, error) {
	ordering = core.FilterOrdering(ordering, OrderingFields...)
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	users, err := svc.repo.QueryUsers(ctx, filter, ordering, page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying users")
	}
	if page.IsZero() {
		return users, len(users), nil
	}
	count, err := svc.repo.CountUsers(ctx, filter)
	return users, count, errors.Wrap(err, "counting users")
}

// QueryStudents returns the students mapped to an evaluator (all students for admins).
func (svc *service) QueryStudents(ctx context.Context, actor User) ([]User, error) {
	filter := &QueryFilter{Roles: []string{RoleStudent}}
	switch {
	case actor.IsAdmin():
	case actor.IsEvaluator():
		mappings, err := svc.asgRepo.QueryStudentAssignments(ctx, assignment.StudentFilter{
			EvaluatorIDs: []string{actor.ID},
			ActiveOnly:   true,
		})
		if err != nil {
			return nil, errors.Wrap(err, "querying student assignments")
		}
		filter.IDs = assignment.StudentIDs(mappings)
	default:
		return nil, ErrForbidden
	}
	users, err := svc.repo.QueryUsers(ctx, filter, []core.DBOrdering{{Field: "created_at"}}, core.Page{})
	return users, errors.Wrap(err, "querying users")
}

// QueryEvaluators returns the active evaluators, optionally of the given department (case-insensitive).
func (svc *service) QueryEvaluators(ctx context.Context, department string) ([]User, error) {
	active := true
	filter := &QueryFilter{Roles: []string{RoleEvaluator}, IsActive: &active, Department: core.CleanString(department)}
	users, err := svc.repo.QueryUsers(ctx, filter, []core.DBOrdering{{Field: "username", Ascending: true}}, core.Page{})
	return users, errors.Wrap(err, "querying users")
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

func (svc *service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		return User{}, err
	}

	usr.Email = uu.Email
	usr.FirstName = uu.FirstName
	usr.LastName = uu.LastName
	usr.Department = uu.Department
	usr.Batch = uu.Batch
	usr.PhoneNumber = uu.PhoneNumber
	usr.Role = uu.Role
	if usr.Role == RoleStudent {
		usr.StudentID = uu.StudentID
	} else {
		usr.StudentID = ""
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Password != "" {
		if err = usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = NowFunc().UTC()

	usr, err = svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "updating user")
}

func (svc *service) SetActive(ctx context.Context, active bool, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	cnt, err := svc.repo.SetUsersActive(ctx, ids, active)
	return cnt, errors.Wrap(err, "setting users active")
}

// GenerateRandomPasswords sets a random 12-char alphanumeric password on each user and emails it.
// Passwords are returned once so that they can be handed over when emailing fails.
func (svc *service) GenerateRandomPasswords(ctx context.Context, ids ...string) ([]GeneratedPassword, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	users, err := svc.repo.QueryUsers(ctx, &QueryFilter{IDs: ids}, nil, core.Page{})
	if err != nil {
		return nil, errors.Wrap(err, "querying users")
	}

	type generated struct {
		usr User
		pwd string
	}
	gens := make([]generated, 0, len(users))
	err = svc.db.Transact(ctx, func(exec core.DBExecutor) error {
		for _, usr := range users {
			pwd, err := core.RandomAlphaNum(generatedPasswordLen)
			if err != nil {
				return errors.Wrap(err, "generating password")
			}
			if err = usr.SetPassword(pwd); err != nil {
				return errors.Wrap(err, "setting password")
			}
			usr.UpdatedAt = NowFunc().UTC()
			if usr, err = svc.repo.UpdateUser(ctx, usr, exec); err != nil {
				return errors.Wrap(err, "updating user")
			}
			gens = append(gens, generated{usr: usr, pwd: pwd})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	pwds := make([]GeneratedPassword, 0, len(gens))
	for _, gen := range gens {
		acc := svc.deliverCredentials(ctx, gen.usr, gen.pwd)
		pwds = append(pwds, GeneratedPassword{
			UserID:    gen.usr.ID,
			Username:  gen.usr.Username,
			Password:  gen.pwd,
			EmailSent: acc.EmailSent,
		})
	}
	return pwds, nil
}

// AssignStudents maps students to an evaluator (get-or-create) and returns the number of new mappings.
func (svc *service) AssignStudents(ctx context.Context, actor User, evaluatorID string, studentIDs []string) (int, error) {
	if !actor.IsAdmin() {
		return 0, ErrForbidden
	}
	evaluator, err := svc.repo.GetUser(ctx, GetFilter{ID: evaluatorID})
	if err != nil {
		return 0, err
	}
	if !evaluator.IsEvaluator() {
		return 0, ErrNotFound
	}
	if len(studentIDs) == 0 {
		return 0, nil
	}
	students, err := svc.repo.QueryUsers(ctx, &QueryFilter{IDs: studentIDs, Roles: []string{RoleStudent}}, nil, core.Page{})
	if err != nil {
		return 0, errors.Wrap(err, "querying students")
	}

	var created int
	err = svc.db.Transact(ctx, func(exec core.DBExecutor) error {
		now := NowFunc().UTC()
		for _, student := range students {
			_, isNew, err := svc.asgRepo.GetOrCreateStudentAssignment(ctx, assignment.StudentAssignment{
				EvaluatorID: evaluator.ID,
				StudentID:   student.ID,
				AssignedBy:  null.StringFrom(actor.ID),
				CreatedAt:   now,
				IsActive:    true,
			}, exec)
			if err != nil {
				return errors.Wrap(err, "assigning student")
			}
			if isNew {
				created++
			}
		}
		return nil
	})
	return created, err
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		return err
	}
	if usr.CheckCanLogin() != nil {
		return ErrNotFound
	}
	token, err := svc.tokens.makeToken(usr)
	if err != nil {
		return errors.Wrap(err, "making token")
	}
	return errors.Wrap(svc.notifier.PasswordReset(ctx, usr, EncodeUID(usr), token), "sending password reset email")
}

func (svc *service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	invalidErr := core.NewValidationError(errors.New("invalid token"))

	uid, err := decodeUID(data.UID)
	if err != nil {
		return invalidErr
	}
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: uid})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return invalidErr
		}
		return errors.Wrap(err, "finding user")
	}
	if err = svc.tokens.verifyToken(usr, data.Token); err != nil {
		return core.NewValidationError(err)
	}
	if err = usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = NowFunc().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating user")
}

// Delete removes users and, in the same transaction, every row referencing them:
// mentorship mappings and report assignments, then whatever the registered DataCleaners own.
func (svc *service) Delete(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var (
		cnt         int
		afterCommit []func(context.Context)
	)
	err := svc.db.Transact(ctx, func(exec core.DBExecutor) error {
		for _, cleaner := range svc.cleaners {
			after, err := cleaner.CleanUpUserData(ctx, ids, exec)
			if err != nil {
				return errors.Wrap(err, "cleaning up user data")
			}
			if after != nil {
				afterCommit = append(afterCommit, after)
			}
		}
		if _, err := svc.asgRepo.DeleteUserAssignments(ctx, ids, exec); err != nil {
			return errors.Wrap(err, "deleting assignments")
		}
		var err error
		cnt, err = svc.repo.DeleteUsersByID(ctx, ids, exec)
		return errors.Wrap(err, "deleting users")
	})
	if err != nil {
		return 0, err
	}

	for _, after := range afterCommit {
		after(ctx)
	}
	return cnt, nil
}

// NormalizeDepartment is used to compare departments.
func NormalizeDepartment(dept string) string {
	return strings.ToLower(core.CleanString(dept))
}
