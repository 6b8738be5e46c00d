package person

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid person")

// Status is the relationship status of a Person.
type Status string

// Relationship statuses, in the order they are offered to the user.
// The first value is the default for new records.
const (
	StatusObserving          Status = "observing"
	StatusMetInPerson        Status = "met_in_person"
	StatusAmbiguous          Status = "ambiguous"
	StatusSteadilyDeveloping Status = "steadily_developing"
	StatusOfficiallyDating   Status = "officially_dating"
	StatusEndedOrNoProgress  Status = "ended_or_no_progress"
)

// Statuses lists every valid Status in display order.
var Statuses = []Status{
	StatusObserving,
	StatusMetInPerson,
	StatusAmbiguous,
	StatusSteadilyDeveloping,
	StatusOfficiallyDating,
	StatusEndedOrNoProgress,
}

// IsValid reports whether s is one of Statuses.
func (s Status) IsValid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Label returns a human-readable label.
func (s Status) Label() string {
	switch s {
	case StatusObserving:
		return "Observing"
	case StatusMetInPerson:
		return "Met in person"
	case StatusAmbiguous:
		return "Ambiguous"
	case StatusSteadilyDeveloping:
		return "Steadily developing"
	case StatusOfficiallyDating:
		return "Officially dating"
	case StatusEndedOrNoProgress:
		return "Ended / no progress"
	default:
		return string(s)
	}
}

// Gender is an optional self-described gender.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// Limits applied by validation.
const (
	MaxNameLength = 100
	MaxTagLength  = 30
	MinAge        = 18
	MaxAge        = 150
	MinRating     = 1
	MaxRating     = 5
)

// Profile holds the user-editable fields of a Person.
// It is the input to the local store's Add operation.
type Profile struct {
	Name               string     `json:"name" validate:"required,max=100"`
	Age                *int       `json:"age,omitempty" validate:"omitempty,min=18,max=150"`
	Gender             Gender     `json:"gender,omitempty" validate:"omitempty,oneof=male female other"`
	Occupation         string     `json:"occupation,omitempty"`
	ContactInfo        string     `json:"contactInfo,omitempty"`
	InstagramAccount   string     `json:"instagramAccount,omitempty"`
	RelationshipStatus Status     `json:"relationshipStatus" validate:"required,oneof=observing met_in_person ambiguous steadily_developing officially_dating ended_or_no_progress"`
	MeetChannel        string     `json:"meetChannel,omitempty"`
	PositiveTags       []string   `json:"positiveTags" validate:"dive,required,max=30"`
	NegativeTags       []string   `json:"negativeTags" validate:"dive,required,max=30"`
	PersonalityTags    []string   `json:"personalityTags" validate:"dive,required,max=30"`
	Rating             *int       `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
	Notes              string     `json:"notes,omitempty"`
	FirstDateAt        *time.Time `json:"firstDateAt,omitempty"`
}

// Person is one remembered dating contact.
type Person struct {
	ID string `json:"id"`
	Profile
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json names so messages match what users and the remote table see.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Normalize trims text fields, drops blank and duplicate tags (first occurrence wins),
// replaces nil tag slices with empty ones and applies the default status.
func (p *Profile) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.MeetChannel = strings.TrimSpace(p.MeetChannel)
	p.PositiveTags = normalizeTags(p.PositiveTags)
	p.NegativeTags = normalizeTags(p.NegativeTags)
	p.PersonalityTags = normalizeTags(p.PersonalityTags)
	if p.RelationshipStatus == "" {
		p.RelationshipStatus = Statuses[0]
	}
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Validate checks the field rules of the profile.
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if err := validate.Struct(p); err != nil {
		return wrapValidation(err)
	}
	return nil
}

// Validate checks the field rules and the record invariants.
func (p *Person) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalid)
	}
	if err := p.Profile.Validate(); err != nil {
		return err
	}
	if p.CreatedAt.IsZero() {
		return fmt.Errorf("%w: createdAt is required", ErrInvalid)
	}
	if p.UpdatedAt.IsZero() {
		return fmt.Errorf("%w: updatedAt is required", ErrInvalid)
	}
	if p.UpdatedAt.Before(p.CreatedAt) {
		return fmt.Errorf("%w: updatedAt %s is before createdAt %s", ErrInvalid,
			p.UpdatedAt.Format(time.RFC3339), p.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

// SetDefaults fills fields that may be absent in stored data.
// Tag slices are never nil afterwards.
func (p *Person) SetDefaults() {
	if p.PositiveTags == nil {
		p.PositiveTags = []string{}
	}
	if p.NegativeTags == nil {
		p.NegativeTags = []string{}
	}
	if p.PersonalityTags == nil {
		p.PersonalityTags = []string{}
	}
	if p.RelationshipStatus == "" {
		p.RelationshipStatus = Statuses[0]
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
}

// Clone returns a deep copy so callers can mutate without aliasing slices or pointers.
func (p Person) Clone() Person {
	c := p
	c.PositiveTags = append([]string{}, p.PositiveTags...)
	c.NegativeTags = append([]string{}, p.NegativeTags...)
	c.PersonalityTags = append([]string{}, p.PersonalityTags...)
	if p.Age != nil {
		v := *p.Age
		c.Age = &v
	}
	if p.Rating != nil {
		v := *p.Rating
		c.Rating = &v
	}
	if p.FirstDateAt != nil {
		v := *p.FirstDateAt
		c.FirstDateAt = &v
	}
	return c
}

func wrapValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("%s must be %s characters or less", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got %v)", field, fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
