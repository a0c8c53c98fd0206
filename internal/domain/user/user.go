package user

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Role grants administrative access. Clients and checkers are both members;
// a member becomes a checker by owning a checker profile.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

// Status gates login. Disabled accounts keep their history.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusDisabled Status = "DISABLED"
)

const (
	MinPasswordLength  = 10
	MaxDisplayNameSize = 100
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already exists")
	ErrInvalid       = errors.New("invalid account")
)

// FieldError describes a rejected account field. It matches ErrInvalid.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Reason
}

func (e *FieldError) Is(target error) bool {
	return target == ErrInvalid
}

func invalid(field, format string, args ...interface{}) error {
	return &FieldError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

type User struct {
	ID           int64     `json:"-"`
	UserID       uuid.UUID `json:"user_id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// New validates the credentials and returns an active account with a hashed
// password. The username is stored lowercased.
func New(username, displayName, password string, role Role, now time.Time) (*User, error) {
	username = NormalizeUsername(username)
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ValidateRole(role); err != nil {
		return nil, err
	}
	u := &User{
		UserID:    uuid.New(),
		Username:  username,
		Role:      role,
		Status:    StatusActive,
		CreatedAt: now,
	}
	if err := u.Rename(displayName, now); err != nil {
		return nil, err
	}
	if err := u.SetPassword(password, now); err != nil {
		return nil, err
	}
	return u, nil
}

func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

// Name returns the display name, falling back to the username.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

func (u *User) Rename(displayName string, now time.Time) error {
	displayName = strings.TrimSpace(displayName)
	if len([]rune(displayName)) > MaxDisplayNameSize {
		return invalid("display_name", "at most %d characters", MaxDisplayNameSize)
	}
	u.DisplayName = displayName
	u.UpdatedAt = now
	return nil
}

func (u *User) SetPassword(password string, now time.Time) error {
	if err := ValidatePassword(password, u.Username); err != nil {
		return err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	u.UpdatedAt = now
	return nil
}

func (u *User) CheckPassword(password string) bool {
	return VerifyPassword(u.PasswordHash, password)
}

// Matches reports whether search occurs in the username or display name,
// ignoring case. An empty search matches everyone.
func (u *User) Matches(search string) bool {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return true
	}
	return strings.Contains(u.Username, search) ||
		strings.Contains(strings.ToLower(u.DisplayName), search)
}

func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

var usernamePattern = regexp.MustCompile(`^[a-z][a-z0-9._-]{2,30}[a-z0-9]$`)

// ValidateUsername expects a normalized username.
func ValidateUsername(username string) error {
	if username == "" {
		return invalid("username", "required")
	}
	if !usernamePattern.MatchString(username) {
		return invalid("username", "must be 4-32 chars, start with a letter, and contain only letters, digits, '.', '_' or '-'")
	}
	return nil
}

func ValidatePassword(password, username string) error {
	if len(password) < MinPasswordLength {
		return invalid("password", "at least %d characters", MinPasswordLength)
	}
	var letter, digit bool
	for _, r := range password {
		letter = letter || unicode.IsLetter(r)
		digit = digit || unicode.IsDigit(r)
	}
	if !letter || !digit {
		return invalid("password", "must include a letter and a digit")
	}
	if username != "" && strings.Contains(strings.ToLower(password), username) {
		return invalid("password", "must not contain the username")
	}
	return nil
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func VerifyPassword(hash, password string) bool {
	if hash == "" || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ParseRole accepts a role name in any case.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	return r, ValidateRole(r)
}

// ParseStatus accepts a status name in any case.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	return st, ValidateStatus(st)
}

func ValidateRole(role Role) error {
	switch role {
	case RoleAdmin, RoleMember:
		return nil
	}
	return invalid("role", "unknown role %q", role)
}

func ValidateStatus(status Status) error {
	switch status {
	case StatusActive, StatusDisabled:
		return nil
	}
	return invalid("status", "unknown status %q", status)
}
