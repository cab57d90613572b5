package session

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/nyaruka/phonenumbers"
)

// UserStatus is the account standing reported by the portal backend.
type UserStatus = string

const (
	// UserStatusAllowed grants portal access.
	UserStatusAllowed UserStatus = "allowed"
	// UserStatusActive is the legacy spelling some deployments still report.
	UserStatusActive UserStatus = "active"
	// UserStatusSuspended blocks sign-in until an admin reinstates the account.
	UserStatusSuspended UserStatus = "suspended"
	// UserStatusDisabled blocks sign-in permanently.
	UserStatusDisabled UserStatus = "disabled"
)

// User is the portal member record as returned by the backend. It never
// carries credentials; the snapshot projection below keeps it that way even
// if the backend payload grows new fields.
type User struct {
	ID              int64      `json:"user_id"`
	FirstName       string     `json:"first_name,omitempty"`
	LastName        string     `json:"last_name,omitempty"`
	Email           string     `json:"email,omitempty"`
	Phone           string     `json:"phone_number,omitempty"`
	Gender          string     `json:"gender,omitempty"`
	Level           string     `json:"level,omitempty"`
	Specialty       string     `json:"specialty,omitempty"`
	Active          bool       `json:"is_active"`
	ProfileImageURL string     `json:"profile_image_url,omitempty"`
	Status          UserStatus `json:"status,omitempty"`
	RoleID          int        `json:"role_id,omitempty"`
}

// FullName is a display helper for UI consumers.
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// statusPermitsLogin reports whether the account standing allows a session.
// An absent status is treated as permitted; the deactivation flag is checked
// separately.
func statusPermitsLogin(status UserStatus) bool {
	switch status {
	case "", UserStatusAllowed, UserStatusActive:
		return true
	default:
		return false
	}
}

// Snapshot is the durable, non-secret projection of the session that seeds
// the UI between process start and reconciliation. It is never a source of
// truth for authorization.
type Snapshot struct {
	User            *User `json:"user,omitempty"`
	IsAuthenticated bool  `json:"isAuthenticated"`
}

// snapshotUser builds the persisted projection of a user record. Fields are
// copied one by one on purpose: anything not listed here stays out of
// storage, so a future sensitive field on User is excluded by construction.
func snapshotUser(u User) User {
	return User{
		ID:              u.ID,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		Email:           u.Email,
		Phone:           u.Phone,
		Gender:          u.Gender,
		Level:           u.Level,
		Specialty:       u.Specialty,
		Active:          u.Active,
		ProfileImageURL: u.ProfileImageURL,
		Status:          u.Status,
		RoleID:          u.RoleID,
	}
}

// RegisterPayload is the multipart registration form. ProfileImage is the
// optional raw attachment; its presence is why registration travels as
// multipart form data rather than JSON.
type RegisterPayload struct {
	FirstName        string
	LastName         string
	Email            string
	Password         string
	Phone            string
	Gender           string
	Level            string
	Specialty        string
	ProfileImage     []byte
	ProfileImageName string
}

// Validate checks the payload before any network call is made.
func (p RegisterPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.FirstName, validation.Required),
		validation.Field(&p.LastName, validation.Required),
		validation.Field(&p.Email, validation.Required, is.Email),
		validation.Field(&p.Password, validation.Required, validation.Length(8, 128)),
		validation.Field(&p.Phone, validation.By(validPhoneNumber)),
	)
}

// validPhoneNumber accepts an empty phone or a parseable international
// number (leading +, so no region guess is needed).
func validPhoneNumber(value any) error {
	raw, _ := value.(string)
	if raw == "" {
		return nil
	}

	num, err := phonenumbers.Parse(raw, "ZZ")
	if err != nil {
		return validation.NewError("validation_phone", "must be an international phone number")
	}
	if !phonenumbers.IsValidNumber(num) {
		return validation.NewError("validation_phone", "must be a valid phone number")
	}
	return nil
}
