package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/datememo/datememo/internal/person"
	"github.com/datememo/datememo/internal/ui"
)

// addProfileFlags registers the editable fields on cmd.
func addProfileFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("name", "", "Name")
	f.Int("age", 0, "Age (18-150)")
	f.String("gender", "", "Gender: male, female or other")
	f.String("occupation", "", "Occupation")
	f.String("contact", "", "Contact info")
	f.String("instagram", "", "Instagram account")
	f.String("status", "", "Relationship status ("+statusNames()+")")
	f.String("met", "", "How you met ("+strings.Join(person.MeetCategories, ", ")+")")
	f.String("met-detail", "", "Detail when --met is other")
	f.StringSlice("positive", nil, "Positive tags (comma separated)")
	f.StringSlice("negative", nil, "Negative tags (comma separated)")
	f.StringSlice("personality", nil, "Personality tags (comma separated)")
	f.Int("rating", 0, "Rating 1-5")
	f.String("notes", "", "Free-form notes")
	f.String("first-date", "", `First date: YYYY-MM-DD or phrases like "last friday"`)
}

func statusNames() string {
	names := make([]string, len(person.Statuses))
	for i, s := range person.Statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

// patchFromFlags turns the flags the user set into a Patch.
func patchFromFlags(cmd *cobra.Command) (person.Patch, error) {
	var pt person.Patch
	f := cmd.Flags()

	str := func(name string) *string {
		if !f.Changed(name) {
			return nil
		}
		v, _ := f.GetString(name)
		return &v
	}
	num := func(name string) *int {
		if !f.Changed(name) {
			return nil
		}
		v, _ := f.GetInt(name)
		return &v
	}
	tags := func(name string) *[]string {
		if !f.Changed(name) {
			return nil
		}
		v, _ := f.GetStringSlice(name)
		return &v
	}

	pt.Name = str("name")
	pt.Age = num("age")
	if g := str("gender"); g != nil {
		gender := person.Gender(*g)
		pt.Gender = &gender
	}
	pt.Occupation = str("occupation")
	pt.ContactInfo = str("contact")
	pt.InstagramAccount = str("instagram")
	if s := str("status"); s != nil {
		status := person.Status(*s)
		pt.RelationshipStatus = &status
	}
	if f.Changed("met") || f.Changed("met-detail") {
		category, _ := f.GetString("met")
		detail, _ := f.GetString("met-detail")
		if category == "" && detail != "" {
			category = person.MeetCategoryOther
		}
		channel := person.FormatMeetChannel(category, detail)
		pt.MeetChannel = &channel
	}
	pt.PositiveTags = tags("positive")
	pt.NegativeTags = tags("negative")
	pt.PersonalityTags = tags("personality")
	pt.Rating = num("rating")
	pt.Notes = str("notes")
	if d := str("first-date"); d != nil {
		t, err := parseDate(*d, time.Now())
		if err != nil {
			return pt, err
		}
		pt.FirstDateAt = &t
	}
	return pt, nil
}

var addCmd = &cobra.Command{
	Use:     "add [name]",
	GroupID: "memo",
	Short:   "Remember someone new",
	Long: `Add a person to your memo.

Examples:
  dm add Alice --age 29 --met "dating app" --positive funny,kind
  dm add Bob --status met_in_person --first-date "last friday" --rating 4`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := mustOpen(ctx)
		defer a.Close()

		pt, err := patchFromFlags(cmd)
		if err != nil {
			fail("%v", err)
		}
		if len(args) == 1 {
			pt.Name = &args[0]
		}
		if pt.Name == nil {
			name, err := promptName()
			if err != nil {
				fail("%v", err)
			}
			pt.Name = &name
		}

		var draft person.Person
		if err := pt.Apply(&draft); err != nil {
			fail("%v", err)
		}

		p, err := a.orch.Add(ctx, draft.Profile)
		report(err, fmt.Sprintf("Added %s (%s)", p.Name, p.ID))
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	GroupID: "memo",
	Short:   "List everyone, most recently updated first",
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpen(cmd.Context())
		defer a.Close()

		search, _ := cmd.Flags().GetString("search")
		status, _ := cmd.Flags().GetString("status")
		oldest, _ := cmd.Flags().GetBool("oldest")
		asJSON, _ := cmd.Flags().GetBool("json")

		persons := person.Filter(a.local.GetAll(), search)
		if status != "" {
			kept := persons[:0]
			for _, p := range persons {
				if string(p.RelationshipStatus) == status {
					kept = append(kept, p)
				}
			}
			persons = kept
		}
		person.SortByUpdated(persons, !oldest)

		if asJSON {
			if persons == nil {
				persons = []person.Person{}
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(persons)
			return
		}

		if len(persons) == 0 {
			fmt.Println(ui.RenderMuted("Nobody here yet. Add someone with 'dm add <name>'."))
			return
		}
		for _, p := range persons {
			fmt.Println(ui.Row(p))
		}
	},
}

var showCmd = &cobra.Command{
	Use:     "show <id>",
	GroupID: "memo",
	Short:   "Show everything about one person",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpen(cmd.Context())
		defer a.Close()

		p, err := resolve(a, args[0])
		if err != nil {
			fail("%v", err)
		}
		fmt.Println(ui.Card(p))
	},
}

var editCmd = &cobra.Command{
	Use:     "edit <id>",
	GroupID: "memo",
	Short:   "Change details about someone",
	Long: `Update the fields given as flags. Unset optional fields with --clear.

Examples:
  dm edit 3f2a --status steadily_developing --rating 5
  dm edit 3f2a --clear rating,notes`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := mustOpen(ctx)
		defer a.Close()

		p, err := resolve(a, args[0])
		if err != nil {
			fail("%v", err)
		}

		pt, err := patchFromFlags(cmd)
		if err != nil {
			fail("%v", err)
		}
		pt.Clear, _ = cmd.Flags().GetStringSlice("clear")

		if pt.IsEmpty() {
			if !interactive() {
				fail("nothing to change; pass at least one field flag")
			}
			options := make([]huh.Option[string], len(person.Statuses))
			for i, s := range person.Statuses {
				options[i] = huh.NewOption(s.Label(), string(s))
			}
			value, err := promptStatus(options, string(p.RelationshipStatus))
			if err != nil {
				fail("%v", err)
			}
			status := person.Status(value)
			pt.RelationshipStatus = &status
		}

		updated, err := a.orch.Update(ctx, p.ID, pt)
		report(err, fmt.Sprintf("Updated %s", updated.Name))
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	GroupID: "memo",
	Short:   "Forget someone",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := mustOpen(ctx)
		defer a.Close()

		id, name := args[0], args[0]
		if p, err := resolve(a, args[0]); err == nil {
			id, name = p.ID, p.Name
		}

		ok, asked := confirm(fmt.Sprintf("Delete %s? This cannot be undone.", name))
		if !asked {
			fail("refusing to delete without confirmation; pass --yes")
		}
		if !ok {
			fmt.Println("Cancelled")
			return
		}

		removed, err := a.orch.Delete(ctx, id)
		if err == nil && !removed {
			msg := fmt.Sprintf("%s was not on this device", id)
			if a.orch.Session().Cloud() {
				msg += "; removed it from the cloud copy"
			}
			fmt.Printf("%s %s\n", ui.RenderWarn("⚠"), msg)
			return
		}
		report(err, fmt.Sprintf("Deleted %s", name))
	},
}

var tagsCmd = &cobra.Command{
	Use:     "tags",
	GroupID: "memo",
	Short:   "Show preset tags and the custom tags you have used",
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpen(cmd.Context())
		defer a.Close()

		persons := a.local.GetAll()
		for _, kind := range []person.TagKind{person.TagPositive, person.TagNegative, person.TagPersonality} {
			fmt.Printf("%s\n", ui.RenderAccent(strings.ToUpper(string(kind[:1]))+string(kind[1:])))
			fmt.Printf("  %s\n", strings.Join(person.Presets(kind), ", "))

			seen := map[string]bool{}
			var custom []string
			for i := range persons {
				for _, t := range persons[i].CustomTags(kind) {
					if !seen[t] {
						seen[t] = true
						custom = append(custom, t)
					}
				}
			}
			if len(custom) > 0 {
				fmt.Printf("  %s %s\n", ui.RenderMuted("custom:"), strings.Join(custom, ", "))
			}
		}
	},
}

// resolve finds a person by id or unique id prefix.
func resolve(a *app, ref string) (person.Person, error) {
	if p, ok := a.local.Get(ref); ok {
		return p, nil
	}
	var found []person.Person
	for _, p := range a.local.GetAll() {
		if strings.HasPrefix(p.ID, ref) {
			found = append(found, p)
		}
	}
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return person.Person{}, fmt.Errorf("no person with id %q", ref)
	default:
		return person.Person{}, fmt.Errorf("id prefix %q is ambiguous (%d matches)", ref, len(found))
	}
}

func init() {
	addProfileFlags(addCmd)
	addProfileFlags(editCmd)
	editCmd.Flags().StringSlice("clear", nil, "Fields to unset ("+strings.Join(person.ClearableFields, ", ")+")")

	listCmd.Flags().StringP("search", "s", "", "Only people whose name, job, channel or tags match")
	listCmd.Flags().String("status", "", "Only people with this relationship status")
	listCmd.Flags().Bool("oldest", false, "Oldest update first")
	listCmd.Flags().Bool("json", false, "Output JSON")

	rootCmd.AddCommand(addCmd, listCmd, showCmd, editCmd, deleteCmd, tagsCmd)
}
