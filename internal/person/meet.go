package person

import "strings"

// MeetCategoryOther is the category whose detail is stored after a colon.
const MeetCategoryOther = "other"

// MeetCategories are the channels offered when recording how two people met.
var MeetCategories = []string{
	"dating app", "friends", "work", "school", "social event", "online", MeetCategoryOther,
}

// FormatMeetChannel encodes a channel. Only the "other" category keeps its detail:
// "other:<detail>".
func FormatMeetChannel(category, detail string) string {
	category = strings.TrimSpace(category)
	detail = strings.TrimSpace(detail)
	if category == MeetCategoryOther && detail != "" {
		return category + ":" + detail
	}
	return category
}

// ParseMeetChannel splits a stored channel into category and detail.
func ParseMeetChannel(channel string) (category, detail string) {
	category, detail, _ = strings.Cut(channel, ":")
	return category, detail
}

// MeetChannelLabel renders the channel for display: "other: <detail>" for the other
// category, the bare category otherwise. Empty when no channel is recorded.
func (p *Person) MeetChannelLabel() string {
	if p.MeetChannel == "" {
		return ""
	}
	category, detail := ParseMeetChannel(p.MeetChannel)
	if category == MeetCategoryOther && detail != "" {
		return category + ": " + detail
	}
	return category
}
