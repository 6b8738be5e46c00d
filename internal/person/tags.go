package person

// TagKind selects one of the three tag sets.
type TagKind string

const (
	TagPositive    TagKind = "positive"
	TagNegative    TagKind = "negative"
	TagPersonality TagKind = "personality"
)

// Preset vocabularies offered when tagging. Custom tags are allowed alongside them.
var (
	PresetPositiveTags = []string{
		"humorous", "smart", "kind", "considerate", "fun", "responsible", "romantic",
		"ambitious", "caring", "good cook", "good listener", "patient", "opinionated",
		"talented", "takes care of others",
	}

	PresetNegativeTags = []string{
		"careless", "bad temper", "unpunctual", "complains a lot", "stingy", "selfish",
		"inconsiderate", "lazy", "glued to phone", "poor communicator", "irresponsible",
		"procrastinates", "takes advantage", "disrespectful",
	}

	PresetPersonalityTags = []string{
		"introverted", "extroverted", "rational", "emotional", "optimistic", "pessimistic",
		"adventurous", "conservative", "perfectionist", "easygoing", "independent",
		"dependent", "pragmatic", "idealistic", "leader", "follower",
	}
)

// Presets returns the preset vocabulary for kind, or nil for an unknown kind.
func Presets(kind TagKind) []string {
	switch kind {
	case TagPositive:
		return PresetPositiveTags
	case TagNegative:
		return PresetNegativeTags
	case TagPersonality:
		return PresetPersonalityTags
	default:
		return nil
	}
}

// IsPresetTag reports whether tag belongs to the preset vocabulary of kind.
func IsPresetTag(kind TagKind, tag string) bool {
	for _, t := range Presets(kind) {
		if t == tag {
			return true
		}
	}
	return false
}

// CustomTags returns the tags of kind on p that are not presets, in insertion order.
func (p *Person) CustomTags(kind TagKind) []string {
	var tags []string
	switch kind {
	case TagPositive:
		tags = p.PositiveTags
	case TagNegative:
		tags = p.NegativeTags
	case TagPersonality:
		tags = p.PersonalityTags
	}
	var custom []string
	for _, t := range tags {
		if !IsPresetTag(kind, t) {
			custom = append(custom, t)
		}
	}
	return custom
}

// AllTags returns positive, negative and personality tags concatenated.
func (p *Person) AllTags() []string {
	all := make([]string, 0, len(p.PositiveTags)+len(p.NegativeTags)+len(p.PersonalityTags))
	all = append(all, p.PositiveTags...)
	all = append(all, p.NegativeTags...)
	all = append(all, p.PersonalityTags...)
	return all
}
