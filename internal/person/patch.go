package person

import (
	"fmt"
	"time"
)

// Patch is a partial update. Nil fields are left untouched.
//
// Optional fields can be cleared by naming them (json names) in Clear; a field that
// is both set and cleared is cleared.
type Patch struct {
	Name               *string
	Age                *int
	Gender             *Gender
	Occupation         *string
	ContactInfo        *string
	InstagramAccount   *string
	RelationshipStatus *Status
	MeetChannel        *string
	PositiveTags       *[]string
	NegativeTags       *[]string
	PersonalityTags    *[]string
	Rating             *int
	Notes              *string
	FirstDateAt        *time.Time

	Clear []string
}

// ClearableFields are the json names accepted in Patch.Clear.
var ClearableFields = []string{
	"age", "gender", "occupation", "contactInfo", "instagramAccount",
	"meetChannel", "rating", "notes", "firstDateAt",
	"positiveTags", "negativeTags", "personalityTags",
}

// IsEmpty reports whether the patch changes nothing.
func (pt Patch) IsEmpty() bool {
	return pt.Name == nil && pt.Age == nil && pt.Gender == nil && pt.Occupation == nil &&
		pt.ContactInfo == nil && pt.InstagramAccount == nil && pt.RelationshipStatus == nil &&
		pt.MeetChannel == nil && pt.PositiveTags == nil && pt.NegativeTags == nil &&
		pt.PersonalityTags == nil && pt.Rating == nil && pt.Notes == nil &&
		pt.FirstDateAt == nil && len(pt.Clear) == 0
}

// Apply merges the patch over p. ID and timestamps are never touched; the caller
// owns UpdatedAt.
func (pt Patch) Apply(p *Person) error {
	if pt.Name != nil {
		p.Name = *pt.Name
	}
	if pt.Age != nil {
		v := *pt.Age
		p.Age = &v
	}
	if pt.Gender != nil {
		p.Gender = *pt.Gender
	}
	if pt.Occupation != nil {
		p.Occupation = *pt.Occupation
	}
	if pt.ContactInfo != nil {
		p.ContactInfo = *pt.ContactInfo
	}
	if pt.InstagramAccount != nil {
		p.InstagramAccount = *pt.InstagramAccount
	}
	if pt.RelationshipStatus != nil {
		p.RelationshipStatus = *pt.RelationshipStatus
	}
	if pt.MeetChannel != nil {
		p.MeetChannel = *pt.MeetChannel
	}
	if pt.PositiveTags != nil {
		p.PositiveTags = append([]string{}, (*pt.PositiveTags)...)
	}
	if pt.NegativeTags != nil {
		p.NegativeTags = append([]string{}, (*pt.NegativeTags)...)
	}
	if pt.PersonalityTags != nil {
		p.PersonalityTags = append([]string{}, (*pt.PersonalityTags)...)
	}
	if pt.Rating != nil {
		v := *pt.Rating
		p.Rating = &v
	}
	if pt.Notes != nil {
		p.Notes = *pt.Notes
	}
	if pt.FirstDateAt != nil {
		v := *pt.FirstDateAt
		p.FirstDateAt = &v
	}

	for _, field := range pt.Clear {
		if err := clearField(p, field); err != nil {
			return err
		}
	}
	return nil
}

func clearField(p *Person, field string) error {
	switch field {
	case "age":
		p.Age = nil
	case "gender":
		p.Gender = ""
	case "occupation":
		p.Occupation = ""
	case "contactInfo":
		p.ContactInfo = ""
	case "instagramAccount":
		p.InstagramAccount = ""
	case "meetChannel":
		p.MeetChannel = ""
	case "rating":
		p.Rating = nil
	case "notes":
		p.Notes = ""
	case "firstDateAt":
		p.FirstDateAt = nil
	case "positiveTags":
		p.PositiveTags = []string{}
	case "negativeTags":
		p.NegativeTags = []string{}
	case "personalityTags":
		p.PersonalityTags = []string{}
	default:
		return fmt.Errorf("%w: field %q cannot be cleared", ErrInvalid, field)
	}
	return nil
}
