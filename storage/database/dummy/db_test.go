package dummydb_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/reportal/core/report"
	"github.com/trezcool/reportal/core/user"
	dummydb "github.com/trezcool/reportal/storage/database/dummy"
	"github.com/trezcool/reportal/testutil"
)

func newRepos(t *testing.T) testutil.Repos {
	db := dummydb.Open()
	return testutil.Repos{
		DB:         db,
		Users:      dummydb.NewUserRepository(db),
		Assignment: dummydb.NewAssignmentRepository(db),
		Reports:    dummydb.NewReportRepository(db),
		Feedback:   dummydb.NewFeedbackRepository(db),
	}
}

func TestRepositories(t *testing.T) {
	testutil.TestRepositories(t, newRepos)
}

func TestDeleteUsersByID_References(t *testing.T) {
	ctx := context.Background()
	r := newRepos(t)
	student := testutil.CreateUser(t, r.Users, user.RoleStudent, "jroe")
	_, err := r.Reports.CreateReport(ctx, report.Report{
		StudentID: student.ID, Title: "Thesis", FileName: "reports/x.pdf", Status: report.StatusSubmitted, SubmittedAt: time.Now(),
	})
	require.NoError(t, err)

	_, err = r.Users.DeleteUsersByID(ctx, []string{student.ID})
	assert.Error(t, err, "referenced by a report")

	_, err = r.Reports.CreateReport(ctx, report.Report{StudentID: "nobody", Title: "Orphan"})
	assert.Error(t, err)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	db := dummydb.Open()
	users := dummydb.NewUserRepository(db)
	testutil.CreateUser(t, users, user.RoleAdmin, "root")

	db.Reset()
	cnt, err := users.CountUsers(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, cnt)
}
