package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"familyhub/internal/database"
	"familyhub/internal/models"
	"familyhub/internal/repository"
	"familyhub/internal/service"
	"familyhub/internal/visibility"
)

var shellHelp = map[string]string{
	"as":        "as <userID>            act as a user for the following commands",
	"whoami":    "whoami                 print the current session",
	"family":    "family <familyID>      show a family",
	"members":   "members <familyID>     list members, loaded in batches",
	"related":   "related <familyID>     list related families",
	"feed":      "feed [limit]           show the current user's feed",
	"can":       "can <contentID>        check whether the current user sees an item",
	"link":      "link <a> <b>           link two families as the current user",
	"unlink":    "unlink <a> <b>         unlink two families as the current user",
	"reconcile": "reconcile              remove one-sided links",
	"exit":      "exit                   leave the shell",
}

// shell is the interactive inspector behind `familyctl shell`
type shell struct {
	users     *service.UserService
	families  *service.FamilyService
	content   *service.ContentService
	graph     *service.GraphService
	reconcile *service.ReconcileService
	contents  *repository.ContentRepository
	famRepo   *repository.FamilyRepository
	out       io.Writer
	session   *models.Session
}

func newShell(db *database.DB, out io.Writer) *shell {
	userRepo := repository.NewUserRepository(db)
	familyRepo := repository.NewFamilyRepository(db)
	return &shell{
		users:     service.NewUserService(userRepo, familyRepo),
		families:  service.NewFamilyService(db, nil),
		content:   service.NewContentService(db),
		graph:     service.NewGraphService(userRepo, familyRepo),
		reconcile: service.NewReconcileService(familyRepo),
		contents:  repository.NewContentRepository(db),
		famRepo:   familyRepo,
		out:       out,
	}
}

func (s *shell) prompt() string {
	if s.session == nil {
		return "familyhub> "
	}
	return s.session.UserID + "@familyhub> "
}

// exec runs one command line and reports whether the shell should exit
func (s *shell) exec(ctx context.Context, line string) bool {
	args := parseArgs(strings.TrimSpace(line))
	if len(args) == 0 {
		return false
	}
	if args[0] == "exit" || args[0] == "quit" {
		return true
	}
	if err := s.run(ctx, args[0], args[1:]); err != nil {
		fmt.Fprintln(s.out, "Error:", err)
	}
	return false
}

func (s *shell) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help":
		for _, name := range []string{"as", "whoami", "family", "members", "related", "feed", "can", "link", "unlink", "reconcile", "exit"} {
			fmt.Fprintln(s.out, shellHelp[name])
		}
		return nil
	case "as":
		if len(args) != 1 {
			return usage(cmd)
		}
		session, err := s.users.SessionFor(ctx, args[0])
		if err != nil {
			return err
		}
		s.session = &session
		return s.whoami()
	case "whoami":
		return s.whoami()
	case "family":
		if len(args) != 1 {
			return usage(cmd)
		}
		return s.showFamily(ctx, args[0])
	case "members":
		if len(args) != 1 {
			return usage(cmd)
		}
		result, err := s.graph.MemberUsers(ctx, args[0])
		if err != nil {
			return err
		}
		for _, u := range result.Items {
			fmt.Fprintf(s.out, "%s\t%s\tonline=%t\n", u.ID, u.DisplayName, u.IsOnline)
		}
		return result.Err()
	case "related":
		if len(args) != 1 {
			return usage(cmd)
		}
		result, err := s.graph.RelatedFamilyRecords(ctx, args[0])
		if err != nil {
			return err
		}
		for _, f := range result.Items {
			fmt.Fprintf(s.out, "%s\t%s\n", f.ID, f.Name)
		}
		return result.Err()
	case "feed":
		return s.feed(ctx, args)
	case "can":
		if len(args) != 1 {
			return usage(cmd)
		}
		return s.can(ctx, args[0])
	case "link", "unlink":
		if len(args) != 2 {
			return usage(cmd)
		}
		if s.session == nil {
			return fmt.Errorf("no current user, use 'as <userID>' first")
		}
		if cmd == "link" {
			return s.families.LinkFamilies(ctx, *s.session, args[0], args[1])
		}
		return s.families.UnlinkFamilies(ctx, *s.session, args[0], args[1])
	case "reconcile":
		report, err := s.reconcile.Reconcile(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "checked %d links, removed %d, failed %d, recent %d\n",
			report.Links, len(report.Removed), len(report.Failed), len(report.Recent))
		return nil
	default:
		return fmt.Errorf("unknown command: %s (try 'help')", cmd)
	}
}

func usage(cmd string) error {
	return fmt.Errorf("usage: %s", shellHelp[cmd])
}

func (s *shell) whoami() error {
	if s.session == nil {
		fmt.Fprintln(s.out, "no current user")
		return nil
	}
	fmt.Fprintf(s.out, "user=%s family=%s related=%v silenced=%t\n",
		s.session.UserID, s.session.FamilyID, s.session.RelatedFamilyIDs, s.session.Silenced)
	return nil
}

// showFamily prints the operator view of a family, bypassing membership checks
func (s *shell) showFamily(ctx context.Context, id string) error {
	f, err := s.famRepo.GetFamilyByID(ctx, id)
	if err != nil {
		return err
	}
	if f == nil {
		return fmt.Errorf("family not found: %s", id)
	}
	fmt.Fprintf(s.out, "%s %q code=%s creator=%s\n", f.ID, f.Name, f.Code, f.CreatedBy)
	fmt.Fprintf(s.out, "  members:  %v\n  related:  %v\n  silenced: %v\n", f.MemberIDs, f.RelatedFamilyIDs, f.SilencedMemberIDs)
	return nil
}

func (s *shell) feed(ctx context.Context, args []string) error {
	if s.session == nil {
		return fmt.Errorf("no current user, use 'as <userID>' first")
	}
	limit := 10
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return usage("feed")
		}
		limit = n
	}
	items, err := s.content.Feed(ctx, *s.session, limit)
	if err != nil {
		return err
	}
	for _, item := range items {
		fmt.Fprintf(s.out, "%s\t%s\t%s\t%s\n", item.ID, item.Kind, item.Privacy, item.OwnerID)
	}
	return nil
}

func (s *shell) can(ctx context.Context, contentID string) error {
	if s.session == nil {
		return fmt.Errorf("no current user, use 'as <userID>' first")
	}
	item, err := s.contents.GetContentByID(ctx, contentID)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("content not found: %s", contentID)
	}
	verdict := "hidden"
	if visibility.CanViewContent(item, *s.session) {
		verdict = "visible"
	}
	fmt.Fprintf(s.out, "%s (%s, owner=%s)\n", verdict, item.Privacy, item.OwnerID)
	return nil
}

// parseArgs splits a line on spaces, keeping double-quoted runs together
func parseArgs(input string) []string {
	var args []string
	var current strings.Builder
	inQuotes := false

	for _, char := range input {
		switch {
		case char == '"':
			inQuotes = !inQuotes
		case char == ' ' && !inQuotes:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(char)
		}
	}
	if current.Len() > 0 {
		args = append(args, current.String())
	}
	return args
}
