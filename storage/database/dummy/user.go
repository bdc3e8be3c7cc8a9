package dummydb

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/reportal/core"
	"github.com/trezcool/reportal/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

// checkUnique reports the first unique field of usr already taken by another user. Callers hold a lock.
func (repo *userRepository) checkUnique(username, email, studentID string, excluded map[string]bool) error {
	for id, u := range repo.db.users {
		if excluded[id] {
			continue
		}
		switch {
		case username != "" && u.Username == username:
			return user.ErrUsernameExists
		case email != "" && u.Email == email:
			return user.ErrEmailExists
		case studentID != "" && u.StudentID == studentID:
			return user.ErrStudentIDExists
		}
	}
	return nil
}

func (repo *userRepository) CheckUniqueness(_ context.Context, username, email, studentID string, excludedUsers []user.User, _ ...core.DBExecutor) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	excluded := make(map[string]bool, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = true
	}
	// username first, like the SQL repository
	if err := repo.checkUnique(username, "", "", excluded); err != nil {
		return err
	}
	if err := repo.checkUnique("", email, "", excluded); err != nil {
		return err
	}
	return repo.checkUnique("", "", studentID, excluded)
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.checkUnique(usr.Username, usr.Email, usr.StudentID, nil); err != nil {
		return user.User{}, err
	}
	usr.ID = repo.db.newID()
	repo.db.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) match(usr user.User, filter *user.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Search != "" &&
		!(contains(usr.Username, filter.Search) || contains(usr.Email, filter.Search) ||
			contains(usr.FirstName, filter.Search) || contains(usr.LastName, filter.Search) ||
			contains(usr.StudentID, filter.Search)) {
		return false
	}
	if filter.Name != "" &&
		!(contains(usr.Username, filter.Name) || contains(usr.FirstName, filter.Name) || contains(usr.LastName, filter.Name)) {
		return false
	}
	if !inOrAll(filter.Roles, usr.Role) || !inOrAll(filter.ApprovalStatus, usr.ApprovalStatus) || !inOrAll(filter.IDs, usr.ID) {
		return false
	}
	if filter.Department != "" && user.NormalizeDepartment(usr.Department) != user.NormalizeDepartment(filter.Department) {
		return false
	}
	if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
		return false
	}
	if !filter.CreatedFrom.IsZero() && usr.CreatedAt.Before(filter.CreatedFrom) {
		return false
	}
	if !filter.CreatedTo.IsZero() && usr.CreatedAt.After(filter.CreatedTo) {
		return false
	}
	return true
}

// query returns the matching users in insertion order. Callers hold a lock.
func (repo *userRepository) query(filter *user.QueryFilter) []user.User {
	ids := make([]string, 0, len(repo.db.users))
	for id, usr := range repo.db.users {
		if repo.match(usr, filter) {
			ids = append(ids, id)
		}
	}
	users := make([]user.User, 0, len(ids))
	for _, id := range repo.db.sortedIDs(ids) {
		users = append(users, repo.db.users[id])
	}
	return users
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, page core.Page, _ ...core.DBExecutor) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	users := repo.query(filter)
	sortBy(len(users), func(i, j int) { users[i], users[j] = users[j], users[i] }, func(i int, field string) (interface{}, bool) {
		u := users[i]
		switch field {
		case "username":
			return u.Username, true
		case "email":
			return u.Email, true
		case "first_name":
			return u.FirstName, true
		case "last_name":
			return u.LastName, true
		case "role":
			return u.Role, true
		case "department":
			return u.Department, true
		case "created_at":
			return u.CreatedAt, true
		case "last_login":
			return u.LastLogin.Time, true
		}
		return nil, false
	}, ordering)

	start, end := page.Bounds(len(users))
	return users[start:end], nil
}

func (repo *userRepository) CountUsers(_ context.Context, filter *user.QueryFilter, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return len(repo.query(filter)), nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter.ID != "" {
		if usr, ok := repo.db.users[filter.ID]; ok {
			return usr, nil
		}
		return user.User{}, user.ErrNotFound
	}
	for _, usr := range repo.db.users {
		switch {
		case filter.Username != "":
			if usr.Username == filter.Username {
				return usr, nil
			}
		case filter.Email != "":
			if usr.Email == filter.Email {
				return usr, nil
			}
		case filter.UsernameOrEmail != "":
			if usr.Username == filter.UsernameOrEmail || usr.Email == filter.UsernameOrEmail {
				return usr, nil
			}
		case filter.StudentID != "":
			if usr.StudentID == filter.StudentID {
				return usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if err := repo.checkUnique(usr.Username, usr.Email, usr.StudentID, map[string]bool{usr.ID: true}); err != nil {
		return user.User{}, err
	}
	usr.CreatedAt = orig.CreatedAt
	repo.db.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) SetUsersActive(_ context.Context, ids []string, active bool, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var cnt int
	now := user.NowFunc().UTC()
	for _, id := range ids {
		if usr, ok := repo.db.users[id]; ok {
			usr.IsActive = active
			usr.UpdatedAt = now
			repo.db.users[id] = usr
			cnt++
		}
	}
	return cnt, nil
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids []string, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.checkReferences(ids); err != nil {
		return 0, err
	}
	var cnt int
	for _, id := range ids {
		if _, ok := repo.db.users[id]; ok {
			delete(repo.db.users, id)
			cnt++
		}
	}
	return cnt, nil
}

// checkReferences fails like a foreign key constraint would when rows still reference the users.
func (repo *userRepository) checkReferences(ids []string) error {
	for _, rep := range repo.db.reports {
		if core.ContainsString(ids, rep.StudentID) {
			return errors.Errorf("user %s is referenced by report %s", rep.StudentID, rep.ID)
		}
	}
	for _, fb := range repo.db.feedback {
		if core.ContainsString(ids, fb.EvaluatorID) {
			return errors.Errorf("user %s is referenced by feedback %s", fb.EvaluatorID, fb.ID)
		}
	}
	for _, a := range repo.db.reportAssignments {
		if core.ContainsString(ids, a.EvaluatorID) {
			return errors.Errorf("user %s is referenced by report assignment %s", a.EvaluatorID, a.ID)
		}
	}
	for _, m := range repo.db.studentAssignments {
		if core.ContainsString(ids, m.EvaluatorID) || core.ContainsString(ids, m.StudentID) {
			return errors.Errorf("user is referenced by student assignment %s", m.ID)
		}
	}
	return nil
}
