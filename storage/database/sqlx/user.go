package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/reportal/core"
	"github.com/trezcool/reportal/core/user"
)

const userTable = "users"

var userColumns = []string{
	"id", "username", "email", "first_name", "last_name", "password_hash", "role", "student_id",
	"department", "batch", "phone_number", "is_active", "approval_status", "approved_by",
	"approval_date", "last_login", "created_at", "updated_at",
}

type userRow struct {
	ID             string      `db:"id"`
	Username       string      `db:"username"`
	Email          string      `db:"email"`
	FirstName      string      `db:"first_name"`
	LastName       string      `db:"last_name"`
	PasswordHash   []byte      `db:"password_hash"`
	Role           string      `db:"role"`
	StudentID      null.String `db:"student_id"`
	Department     string      `db:"department"`
	Batch          string      `db:"batch"`
	PhoneNumber    string      `db:"phone_number"`
	IsActive       bool        `db:"is_active"`
	ApprovalStatus string      `db:"approval_status"`
	ApprovedBy     null.String `db:"approved_by"`
	ApprovalDate   null.Time   `db:"approval_date"`
	LastLogin      null.Time   `db:"last_login"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

func (row userRow) toUser() user.User {
	return user.User{
		ID:             row.ID,
		Username:       row.Username,
		Email:          row.Email,
		FirstName:      row.FirstName,
		LastName:       row.LastName,
		Role:           row.Role,
		StudentID:      row.StudentID.String,
		Department:     row.Department,
		Batch:          row.Batch,
		PhoneNumber:    row.PhoneNumber,
		IsActive:       row.IsActive,
		ApprovalStatus: row.ApprovalStatus,
		ApprovedBy:     row.ApprovedBy,
		ApprovalDate:   row.ApprovalDate,
		PasswordHash:   row.PasswordHash,
		LastLogin:      row.LastLogin,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

// userValues maps the updatable columns of usr.
func userValues(usr user.User) map[string]interface{} {
	return map[string]interface{}{
		"username":        usr.Username,
		"email":           usr.Email,
		"first_name":      usr.FirstName,
		"last_name":       usr.LastName,
		"password_hash":   usr.PasswordHash,
		"role":            usr.Role,
		"student_id":      null.NewString(usr.StudentID, usr.StudentID != ""),
		"department":      usr.Department,
		"batch":           usr.Batch,
		"phone_number":    usr.PhoneNumber,
		"is_active":       usr.IsActive,
		"approval_status": usr.ApprovalStatus,
		"approved_by":     usr.ApprovedBy,
		"approval_date":   usr.ApprovalDate,
		"last_login":      usr.LastLogin,
		"updated_at":      usr.UpdatedAt.UTC(),
	}
}

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) user.Repository {
	return &userRepository{repository{exec: exec}}
}

func (repo userRepository) exists(ctx context.Context, col, val string, exclIDs []string, exec []core.DBExecutor) (bool, error) {
	where := sq.And{sq.Eq{col: val}}
	if len(exclIDs) > 0 {
		where = append(where, sq.NotEq{"id": exclIDs})
	}
	cnt, err := repo.count(ctx, exec, psql.Select("COUNT(*)").From(userTable).Where(where))
	return cnt > 0, err
}

func (repo userRepository) CheckUniqueness(ctx context.Context, username, email, studentID string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	exclIDs := make([]string, 0, len(excludedUsers))
	for _, u := range excludedUsers {
		if u.ID != "" {
			exclIDs = append(exclIDs, u.ID)
		}
	}

	checks := []struct {
		col, val string
		err      error
	}{
		{"username", username, user.ErrUsernameExists},
		{"email", email, user.ErrEmailExists},
		{"student_id", studentID, user.ErrStudentIDExists},
	}
	for _, c := range checks {
		if c.val == "" {
			continue
		}
		found, err := repo.exists(ctx, c.col, c.val, exclIDs, exec)
		if err != nil {
			return errors.Wrap(err, "checking user uniqueness")
		}
		if found {
			return c.err
		}
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = uuid.NewString()
	vals := userValues(usr)
	vals["id"] = usr.ID
	vals["created_at"] = usr.CreatedAt.UTC()

	if _, err := repo.execute(ctx, exec, psql.Insert(userTable).SetMap(vals)); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) where(filter *user.QueryFilter) sq.And {
	where := sq.And{}
	if filter == nil {
		return where
	}

	// users with Username, Email, FirstName, LastName or StudentID matching the search keyword
	if filter.Search != "" {
		val := ilike(filter.Search)
		where = append(where, sq.Or{
			sq.ILike{"username": val},
			sq.ILike{"email": val},
			sq.ILike{"first_name": val},
			sq.ILike{"last_name": val},
			sq.ILike{"student_id": val},
		})
	}
	if filter.Name != "" {
		val := ilike(filter.Name)
		where = append(where, sq.Or{
			sq.ILike{"username": val},
			sq.ILike{"first_name": val},
			sq.ILike{"last_name": val},
		})
	}
	where = inFilter(where, "role", filter.Roles, false)
	where = inFilter(where, "approval_status", filter.ApprovalStatus, false)
	if filter.Department != "" {
		where = append(where, sq.Expr("LOWER(department) = LOWER(?)", filter.Department))
	}
	if filter.IsActive != nil {
		where = append(where, sq.Eq{"is_active": *filter.IsActive})
	}
	if !filter.CreatedFrom.IsZero() {
		where = append(where, sq.GtOrEq{"created_at": filter.CreatedFrom.UTC()})
	}
	if !filter.CreatedTo.IsZero() {
		where = append(where, sq.LtOrEq{"created_at": filter.CreatedTo.UTC()})
	}
	return inFilter(where, "id", filter.IDs, true)
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, page core.Page, exec ...core.DBExecutor) ([]user.User, error) {
	q := psql.Select(userColumns...).From(userTable).Where(repo.where(filter))
	q = paginate(orderBy(q, ordering), page)

	var rows []userRow
	if err := repo.selectAll(ctx, exec, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toUser())
	}
	return users, nil
}

func (repo userRepository) CountUsers(ctx context.Context, filter *user.QueryFilter, exec ...core.DBExecutor) (int, error) {
	cnt, err := repo.count(ctx, exec, psql.Select("COUNT(*)").From(userTable).Where(repo.where(filter)))
	return cnt, errors.Wrap(err, "counting users")
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	var where sq.Sqlizer
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		where = sq.Eq{"id": filter.ID}
	case filter.Username != "":
		where = sq.Eq{"username": filter.Username}
	case filter.Email != "":
		where = sq.Eq{"email": filter.Email}
	case filter.UsernameOrEmail != "":
		where = sq.Or{sq.Eq{"username": filter.UsernameOrEmail}, sq.Eq{"email": filter.UsernameOrEmail}}
	case filter.StudentID != "":
		where = sq.Eq{"student_id": filter.StudentID}
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := repo.getOne(ctx, exec, &row, psql.Select(userColumns...).From(userTable).Where(where).Limit(1)); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return row.toUser(), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	cnt, err := repo.execute(ctx, exec, psql.Update(userTable).SetMap(userValues(usr)).Where(sq.Eq{"id": usr.ID}))
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if cnt == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo userRepository) SetUsersActive(ctx context.Context, ids []string, active bool, exec ...core.DBExecutor) (int, error) {
	q := psql.Update(userTable).
		Set("is_active", active).
		Set("updated_at", user.NowFunc().UTC()).
		Where(sq.Eq{"id": validUUIDs(ids)})
	cnt, err := repo.execute(ctx, exec, q)
	return cnt, errors.Wrap(err, "setting users active")
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	cnt, err := repo.execute(ctx, exec, psql.Delete(userTable).Where(sq.Eq{"id": validUUIDs(ids)}))
	return cnt, errors.Wrap(err, "deleting users")
}
