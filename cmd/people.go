package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-library/internal/constants"
	"github.com/kozaktomas/photo-library/internal/database"
	"github.com/kozaktomas/photo-library/internal/facematch"
)

var peopleCmd = &cobra.Command{
	Use:   "people",
	Short: "Inspect and maintain the people graph",
}

var peopleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List people",
	Long: `List everyone known to the library, ordered by surname and first name.
Use --query to keep only people whose names contain every given word,
ignoring case and diacritics.`,
	Args: cobra.NoArgs,
	RunE: runPeopleList,
}

var peopleMergeCmd = &cobra.Command{
	Use:   "merge <dst-id> <src-id>",
	Short: "Merge one person into another",
	Long: `Move every appearance and avatar of the source person to the destination
person and delete the source. Useful when the same person was minted twice.`,
	Args: cobra.ExactArgs(2),
	RunE: runPeopleMerge,
}

func init() {
	rootCmd.AddCommand(peopleCmd)
	peopleCmd.AddCommand(peopleListCmd)
	peopleCmd.AddCommand(peopleMergeCmd)

	peopleListCmd.Flags().StringP("query", "q", "", "Name filter")
	peopleListCmd.Flags().Bool("named", false, "Hide people still carrying the placeholder name")
}

func runPeopleList(cmd *cobra.Command, args []string) error {
	cfg, logCloser, err := loadConfig()
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx := context.Background()
	store, err := openStore(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	people, err := store.ListPeople(ctx)
	if err != nil {
		return fmt.Errorf("listing people: %w", err)
	}
	if q := mustGetString(cmd, "query"); q != "" {
		people = facematch.MatchPeople(people, q)
	}
	if mustGetBool(cmd, "named") {
		named := people[:0]
		for _, p := range people {
			if !isPlaceholder(&p) {
				named = append(named, p)
			}
		}
		people = named
	}

	writePeople(cmd.OutOrStdout(), people)
	return nil
}

func runPeopleMerge(cmd *cobra.Command, args []string) error {
	dst, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid destination id %q: %w", args[0], err)
	}
	src, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid source id %q: %w", args[1], err)
	}

	cfg, logCloser, err := loadConfig()
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx := context.Background()
	store, err := openStore(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.MergePeople(ctx, dst, src); err != nil {
		return fmt.Errorf("merging person %d into %d: %w", src, dst, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Merged person %d into %d\n", src, dst)
	return nil
}

// isPlaceholder reports whether p still has the name given to minted people.
func isPlaceholder(p *database.Person) bool {
	return p.FirstName == constants.PlaceholderFirstName &&
		p.Surname == constants.PlaceholderSurname &&
		p.MiddleNames != nil && *p.MiddleNames == constants.PlaceholderMiddleNames
}

// fullName joins the name parts of p, preferring the display name.
func fullName(p *database.Person) string {
	if p.DisplayName != nil && *p.DisplayName != "" {
		return *p.DisplayName
	}
	parts := []string{p.FirstName}
	if p.MiddleNames != nil && *p.MiddleNames != "" {
		parts = append(parts, *p.MiddleNames)
	}
	parts = append(parts, p.Surname)
	return strings.Join(parts, " ")
}

func writePeople(w io.Writer, people []database.Person) {
	if len(people) == 0 {
		fmt.Fprintln(w, "No people found")
		return
	}
	fmt.Fprintf(w, "%-8s %-40s %s\n", "ID", "NAME", "BORN")
	for i := range people {
		p := &people[i]
		born := "-"
		if p.DOB != nil {
			born = p.DOB.Format(constants.DayLayout)
		}
		fmt.Fprintf(w, "%-8d %-40s %s\n", p.ID, fullName(p), born)
	}
	fmt.Fprintf(w, "\n%d people\n", len(people))
}
