package user

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/reportal/core"
)

// Roles
const (
	RoleStudent   = "student"
	RoleEvaluator = "evaluator"
	RoleAdmin     = "admin"
)

// Approval statuses
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

var (
	AllRoles            = []string{RoleStudent, RoleEvaluator, RoleAdmin}
	AllApprovalStatuses = []string{ApprovalPending, ApprovalApproved, ApprovalRejected}

	Roles = []Choice{
		{Name: "Student", Value: RoleStudent},
		{Name: "Evaluator", Value: RoleEvaluator},
		{Name: "Admin", Value: RoleAdmin},
	}
)

type Choice struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID             string      `json:"id"`
	Username       string      `json:"username"`
	Email          string      `json:"email"`
	FirstName      string      `json:"first_name"`
	LastName       string      `json:"last_name"`
	Role           string      `json:"role"`
	StudentID      string      `json:"student_id,omitempty"`
	Department     string      `json:"department"`
	Batch          string      `json:"batch"`
	PhoneNumber    string      `json:"phone_number"`
	IsActive       bool        `json:"is_active"`
	ApprovalStatus string      `json:"approval_status"`
	ApprovedBy     null.String `json:"approved_by"`
	ApprovalDate   null.Time   `json:"approval_date"` // UTC
	PasswordHash   []byte      `json:"-"`
	LastLogin      null.Time   `json:"last_login"` // UTC
	CreatedAt      time.Time   `json:"created_at"` // UTC
	UpdatedAt      time.Time   `json:"updated_at"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) IsAdmin() bool     { return u.Role == RoleAdmin }
func (u User) IsEvaluator() bool { return u.Role == RoleEvaluator }
func (u User) IsStudent() bool   { return u.Role == RoleStudent }

func (u User) IsPending() bool { return u.ApprovalStatus == ApprovalPending }

// FullName returns "first last", falling back to the username.
func (u User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// CheckCanLogin applies the approval gate and the active flag.
func (u User) CheckCanLogin() error {
	switch u.ApprovalStatus {
	case ApprovalPending:
		return ErrPendingApproval
	case ApprovalRejected:
		return ErrRegistrationRejected
	}
	if !u.IsActive {
		return ErrAccountDeactivated
	}
	return nil
}

// NewStudent contains information needed for a student to register themselves.
type NewStudent struct {
	Username        string `json:"username" validate:"required,max=150,alphanum_"`
	Email           string `json:"email" validate:"required,email"`
	FirstName       string `json:"first_name" validate:"required,max=150"`
	LastName        string `json:"last_name" validate:"required,max=150"`
	StudentID       string `json:"student_id" validate:"required,max=20"`
	Department      string `json:"department" validate:"required,max=100"`
	Batch           string `json:"batch" validate:"required,max=20"`
	PhoneNumber     string `json:"phone_number" validate:"omitempty,max=15,phone"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (ns *NewStudent) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	ns.Username = core.CleanString(ns.Username, true /* lower */)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.FirstName = core.CleanString(ns.FirstName)
	ns.LastName = core.CleanString(ns.LastName)
	ns.StudentID = core.CleanString(ns.StudentID)
	ns.Department = core.CleanString(ns.Department)
	ns.Batch = core.CleanString(ns.Batch)
	ns.PhoneNumber = core.CleanString(ns.PhoneNumber)

	if err := validate.Struct(ns); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, ns.Username, ns.Email, ns.StudentID)
}

// NewUser contains information needed by an admin or an evaluator to create an account.
// A random password is generated when Password is empty.
type NewUser struct {
	Username    string `json:"username" validate:"required,max=150,alphanum_"`
	Email       string `json:"email" validate:"required,email"`
	FirstName   string `json:"first_name" validate:"max=150"`
	LastName    string `json:"last_name" validate:"max=150"`
	Role        string `json:"role" validate:"omitempty,role"`
	StudentID   string `json:"student_id" validate:"max=20"`
	Department  string `json:"department" validate:"max=100"`
	Batch       string `json:"batch" validate:"max=20"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,max=15,phone"`
	Password    string `json:"password"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.FirstName = core.CleanString(nu.FirstName)
	nu.LastName = core.CleanString(nu.LastName)
	nu.Role = core.CleanString(nu.Role, true /* lower */)
	nu.StudentID = core.CleanString(nu.StudentID)
	nu.Department = core.CleanString(nu.Department)
	nu.Batch = core.CleanString(nu.Batch)
	nu.PhoneNumber = core.CleanString(nu.PhoneNumber)
	if nu.Role == "" {
		nu.Role = RoleStudent
	}

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nu.Username, nu.Email, nu.StudentID)
}

// NewAccount is the result of an account creation with a delivered (or not) password.
type NewAccount struct {
	User      User   `json:"user"`
	EmailSent bool   `json:"email_sent"`
	Password  string `json:"password,omitempty"` // only set when the credentials email could not be sent
}

// UpdateUser defines what information may be provided to modify an existing User.
// Empty strings keep the current values.
type UpdateUser struct {
	Email           string  `json:"email" validate:"omitempty,email"`
	FirstName       string  `json:"first_name" validate:"max=150"`
	LastName        string  `json:"last_name" validate:"max=150"`
	Department      string  `json:"department" validate:"max=100"`
	Batch           string  `json:"batch" validate:"max=20"`
	PhoneNumber     string  `json:"phone_number" validate:"omitempty,max=15,phone"`
	StudentID       string  `json:"student_id" validate:"max=20"`
	Role            string  `json:"role" validate:"omitempty,role"`
	IsActive        *bool   `json:"is_active"`
	Password        string  `json:"password" validate:"omitempty"`
	PasswordConfirm string  `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
	username        *string // for password similarity checks
}

func (uu *UpdateUser) Validate(ctx context.Context, origUsr User, validate *validator.Validate, svc Service) error {
	keep := func(val, orig string, lower ...bool) string {
		if v := core.CleanString(val, lower...); v != "" {
			return v
		}
		return orig
	}
	uu.Email = keep(uu.Email, origUsr.Email, true /* lower */)
	uu.FirstName = keep(uu.FirstName, origUsr.FirstName)
	uu.LastName = keep(uu.LastName, origUsr.LastName)
	uu.Department = keep(uu.Department, origUsr.Department)
	uu.Batch = keep(uu.Batch, origUsr.Batch)
	uu.PhoneNumber = keep(uu.PhoneNumber, origUsr.PhoneNumber)
	uu.StudentID = keep(uu.StudentID, origUsr.StudentID)
	uu.Role = keep(uu.Role, origUsr.Role, true /* lower */)
	uu.username = &origUsr.Username

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, "", uu.Email, uu.StudentID, origUsr)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

// GeneratedPassword is returned once by the bulk password generation.
type GeneratedPassword struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	EmailSent bool   `json:"email_sent"`
}

type QueryFilter struct {
	Search         string    `query:"search"`
	Name           string    `query:"name"` // case-insensitive match on Username, FirstName or LastName
	Roles          []string  `query:"role"`
	ApprovalStatus []string  `query:"approval_status"`
	Department     string    `query:"department"` // case-insensitive, exact
	IsActive       *bool     `query:"is_active"`
	CreatedFrom    time.Time `query:"created_from"`
	CreatedTo      time.Time `query:"created_to"`
	IDs            []string  `query:"-"` // nil: ignored, empty: matches nothing
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Name == "" && qf.Roles == nil && qf.ApprovalStatus == nil && qf.Department == "" &&
		qf.IsActive == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero() && qf.IDs == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Name = core.CleanString(qf.Name)
	qf.Department = core.CleanString(qf.Department)
}

// GetFilter looks up a single user by one of its unique fields, in this order of precedence.
type GetFilter struct {
	ID              string
	Username        string
	Email           string
	UsernameOrEmail string
	StudentID       string
}
