package user

import (
	"bufio"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/reportal/core"
)

const commonPasswordsPath = "assets/common-passwords.txt"

var (
	roleTag  = "role"
	roleText = "invalid role"

	approvalTag  = "approval"
	approvalText = "invalid approval status"

	studentIDRequiredTag  = "studentid_required"
	studentIDRequiredText = "student ID is required for students"

	// password policy
	pwdMinLen     = 8
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = fmt.Sprintf("password must contain at least %d characters", pwdMinLen)

	pwdNoSpaceTag  = "pwdnospace"
	pwdNoSpaceText = "password must not contain whitespace"

	pwdNotAllNumTag  = "pwdnotallnum"
	pwdNotAllNumText = "password cannot be entirely numeric"

	pwdComplexityTag  = "pwdcplx"
	pwdComplexityText = "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"
	specialRegex      = regexp.MustCompile("[^A-Za-z0-9]")

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password cannot be similar to user attributes"

	pwdNoCommonTag  = "pwdnocommon"
	pwdNoCommonText = "password is too common"

	commonPasswords   []string // sorted
	commonPasswordsMu sync.RWMutex
)

// InitValidators registers the user validators and their english translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(roleTag, roleValidation)
	core.RegisterCustomTranslation(validate, translator, roleTag, roleText)

	_ = validate.RegisterValidation(approvalTag, approvalValidation)
	core.RegisterCustomTranslation(validate, translator, approvalTag, approvalText)

	validate.RegisterStructValidation(userStructValidation, NewStudent{}, NewUser{}, UpdateUser{}, ResetUserPassword{})
	core.RegisterCustomTranslation(validate, translator, studentIDRequiredTag, studentIDRequiredText)
	core.RegisterCustomTranslation(validate, translator, pwdMinLenTag, pwdMinLenText)
	core.RegisterCustomTranslation(validate, translator, pwdNoSpaceTag, pwdNoSpaceText)
	core.RegisterCustomTranslation(validate, translator, pwdNotAllNumTag, pwdNotAllNumText)
	core.RegisterCustomTranslation(validate, translator, pwdComplexityTag, pwdComplexityText)
	core.RegisterCustomTranslation(validate, translator, pwdAttrSimTag, pwdAttrSimText)
	core.RegisterCustomTranslation(validate, translator, pwdNoCommonTag, pwdNoCommonText)
}

// LoadCommonPasswords reads the common password list (one lowercase password per line) from fsys.
func LoadCommonPasswords(fsys fs.FS, logger core.Logger) {
	file, err := fsys.Open(commonPasswordsPath)
	if err != nil {
		logger.Warn("opening common passwords", err)
		return
	}
	//goland:noinspection GoUnhandledErrorResult
	defer file.Close()

	pwds := make([]string, 0, 200)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if pwd := strings.TrimSpace(scanner.Text()); pwd != "" {
			pwds = append(pwds, strings.ToLower(pwd))
		}
	}
	if err = scanner.Err(); err != nil {
		logger.Warn("reading common passwords", err)
	}
	sort.Strings(pwds)

	commonPasswordsMu.Lock()
	commonPasswords = pwds
	commonPasswordsMu.Unlock()
}

func isCommonPassword(pwd string) bool {
	commonPasswordsMu.RLock()
	defer commonPasswordsMu.RUnlock()
	lpwd := strings.ToLower(pwd)
	idx := sort.SearchStrings(commonPasswords, lpwd)
	return idx < len(commonPasswords) && commonPasswords[idx] == lpwd
}

// Custom Validators

func roleValidation(fl validator.FieldLevel) bool {
	return core.ContainsString(AllRoles, fl.Field().String())
}

func approvalValidation(fl validator.FieldLevel) bool {
	return core.ContainsString(AllApprovalStatuses, fl.Field().String())
}

// userStructValidation does struct level validation on the user input structs.
func userStructValidation(sl validator.StructLevel) {
	switch usr := sl.Current().Interface().(type) {
	case NewStudent:
		validatePassword(usr.Password, sl, usr.FirstName+" "+usr.LastName, usr.Username, usr.Email, usr.StudentID)
	case NewUser:
		if usr.Role == RoleStudent && usr.StudentID == "" {
			sl.ReportError(usr.StudentID, "student_id", "StudentID", studentIDRequiredTag, "")
		}
		if usr.Password != "" {
			validatePassword(usr.Password, sl, usr.FirstName+" "+usr.LastName, usr.Username, usr.Email)
		}
	case UpdateUser:
		if usr.Role == RoleStudent && usr.StudentID == "" {
			sl.ReportError(usr.StudentID, "student_id", "StudentID", studentIDRequiredTag, "")
		}
		if usr.Password != "" {
			var uname string
			if usr.username != nil {
				uname = *usr.username
			}
			validatePassword(usr.Password, sl, usr.FirstName+" "+usr.LastName, uname, usr.Email)
		}
	case ResetUserPassword:
		if usr.Password != "" {
			validatePassword(usr.Password, sl)
		}
	}
}

// validatePassword applies the password policy to provided password:
// - minLen: 8
// - no whitespace
// - no all numeric
// - complexity: 1 upper, 1 lower, 1 digit, 1 special
// - no user attrs similarity
// - no common password
func validatePassword(pwd string, sl validator.StructLevel, attrs ...string) {
	reportErr := func(tag string) {
		sl.ReportError(pwd, "password", "Password", tag, "")
	}

	var (
		digitCount         int
		hasUpper, hasLower bool
	)

	runes := []rune(pwd)
	if len(runes) < pwdMinLen {
		reportErr(pwdMinLenTag)
		return
	}
	for _, char := range runes {
		if unicode.IsSpace(char) {
			reportErr(pwdNoSpaceTag)
			return
		}
		if unicode.IsDigit(char) {
			digitCount++
		}
		if !hasUpper && unicode.IsUpper(char) {
			hasUpper = true
		}
		if !hasLower && unicode.IsLower(char) {
			hasLower = true
		}
	}

	if digitCount == len(runes) {
		reportErr(pwdNotAllNumTag)
		return
	}

	if !(hasUpper && hasLower && digitCount > 0 && specialRegex.MatchString(pwd)) {
		reportErr(pwdComplexityTag)
		return
	}

	lpwd := strings.ToLower(pwd)
	for _, attr := range attrs {
		attr = strings.ToLower(strings.TrimSpace(attr))
		if attr == "" {
			continue
		}
		ratio := difflib.NewMatcher(strings.Split(lpwd, ""), strings.Split(attr, "")).QuickRatio()
		if ratio >= pwdMaxSim {
			reportErr(pwdAttrSimTag)
			return
		}
	}

	if isCommonPassword(pwd) {
		reportErr(pwdNoCommonTag)
	}
}
