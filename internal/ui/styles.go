// Package ui holds terminal styling for the dm command.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/datememo/datememo/internal/person"
)

var (
	ColorAccent = lipgloss.Color("#E0607E")
	ColorPass   = lipgloss.Color("#3FB68B")
	ColorWarn   = lipgloss.Color("#F4D03F")
	ColorFail   = lipgloss.Color("#E74C3C")
	ColorMuted  = lipgloss.Color("#7A7A8C")
)

var (
	accentStyle = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	passStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	warnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	failStyle   = lipgloss.NewStyle().Foreground(ColorFail)
	mutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	cardStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorAccent).
			Padding(0, 1)
)

func RenderAccent(s string) string { return accentStyle.Render(s) }
func RenderPass(s string) string   { return passStyle.Render(s) }
func RenderWarn(s string) string   { return warnStyle.Render(s) }
func RenderFail(s string) string   { return failStyle.Render(s) }
func RenderMuted(s string) string  { return mutedStyle.Render(s) }

// Stars renders a 1-5 rating, or a dash when unrated.
func Stars(rating *int) string {
	if rating == nil {
		return mutedStyle.Render("-")
	}
	n := min(max(*rating, 0), person.MaxRating)
	return accentStyle.Render(strings.Repeat("★", n) + strings.Repeat("☆", person.MaxRating-n))
}

// Row is one line of `dm list`.
func Row(p person.Person) string {
	return fmt.Sprintf("%s  %-20s %-12s %s  %s",
		mutedStyle.Render(shortID(p.ID)),
		p.Name,
		p.RelationshipStatus.Label(),
		Stars(p.Rating),
		mutedStyle.Render(p.UpdatedAt.Local().Format("2006-01-02 15:04")),
	)
}

// Card renders every field of p in a bordered box.
func Card(p person.Person) string {
	var b strings.Builder
	line := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&b, "%s %s\n", mutedStyle.Render(fmt.Sprintf("%-13s", label)), value)
	}

	b.WriteString(accentStyle.Render(p.Name) + "\n")
	line("id", p.ID)
	if p.Age != nil {
		line("age", fmt.Sprint(*p.Age))
	}
	line("gender", string(p.Gender))
	line("occupation", p.Occupation)
	line("contact", p.ContactInfo)
	line("instagram", p.InstagramAccount)
	line("status", p.RelationshipStatus.Label())
	line("met via", p.MeetChannelLabel())
	line("rating", Stars(p.Rating))
	line("positive", strings.Join(p.PositiveTags, ", "))
	line("negative", strings.Join(p.NegativeTags, ", "))
	line("personality", strings.Join(p.PersonalityTags, ", "))
	if p.FirstDateAt != nil {
		line("first date", p.FirstDateAt.Local().Format("2006-01-02"))
	}
	line("notes", p.Notes)
	line("updated", p.UpdatedAt.Local().Format("2006-01-02 15:04"))

	return cardStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
