package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"google.golang.org/api/option"

	"github.com/teemow/mailsweep/internal/bounce"
	"github.com/teemow/mailsweep/internal/contacts"
	"github.com/teemow/mailsweep/internal/dispatch"
	"github.com/teemow/mailsweep/internal/google"
	"github.com/teemow/mailsweep/internal/instrumentation"
	"github.com/teemow/mailsweep/internal/logging"
)

// previewLimit is the number of matched contacts listed before acting.
const previewLimit = 20

type contactsOptions struct {
	loadFile   string
	saveFile   string
	exportFile string
	export     bool
	stats      bool
	commit     bool
}

// contactsService is the part of the People API the contacts workflow uses.
type contactsService interface {
	bounce.PageSource
	DeleteContact(ctx context.Context, resourceName string) error
	TotalPeople(ctx context.Context) (int, error)
}

func newContactsCmd() *cobra.Command {
	var (
		opts  contactsOptions
		flags authFlags
	)

	cmd := &cobra.Command{
		Use:   "contacts",
		Short: "Delete contacts whose address is on a bounced list",
		Long: `Scan all Google Contacts for addresses listed in a bounced list file
(one address per line) and delete the matching contacts.

By default this is a dry run that only lists what would be deleted.
Deleting contacts cannot be undone.`,
		Example: `  # Dry run with the default bounced_emails.txt
  mailsweep contacts

  # Actually delete the contacts
  mailsweep contacts --load-file bounced.txt --no-dry-run

  # Export the contacts that would be deleted
  mailsweep contacts --export --export-file review.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			set, err := loadBouncedSet(cmd.OutOrStdout(), opts)
			if err != nil {
				return err
			}
			if nothingToDo(set, opts) {
				fmt.Fprintln(cmd.OutOrStdout(), "No bounced emails loaded, nothing to do")
				return nil
			}

			httpClient, err := authorizedClient(ctx, cmd, app, flags, google.ContactsScopes)
			if err != nil {
				return err
			}
			client, err := contacts.NewClient(ctx, app.metrics(), option.WithHTTPClient(httpClient))
			if err != nil {
				return err
			}

			return runContacts(ctx, cmd.OutOrStdout(), app, client, set, opts)
		},
	}

	cmd.Flags().StringVar(&opts.loadFile, "load-file", "bounced_emails.txt", "File containing bounced emails (one per line)")
	cmd.Flags().BoolVar(&opts.commit, "no-dry-run", false, "Actually delete contacts (default is dry run)")
	cmd.Flags().BoolVar(&opts.export, "export", false, "Export the contacts to be deleted to JSON instead of deleting")
	cmd.Flags().StringVar(&opts.exportFile, "export-file", "contacts_to_delete.json", "Path of the JSON export")
	cmd.Flags().BoolVar(&opts.stats, "stats", false, "Show statistics only")
	cmd.Flags().StringVar(&opts.saveFile, "save-file", "", "Write the normalized bounced list to this file")
	flags.register(cmd, "token.json")

	cmd.MarkFlagsMutuallyExclusive("export", "stats", "no-dry-run")

	return cmd
}

func loadBouncedSet(out io.Writer, opts contactsOptions) (*bounce.Set, error) {
	set, err := bounce.LoadSet(opts.loadFile)
	if err != nil {
		fmt.Fprintf(out, "Create %s with one bounced address per line, for example:\n  baduser@example.com\n  invalid@domain.com\n", opts.loadFile)
		return nil, &ExitError{Code: ExitFailure, Err: err}
	}
	fmt.Fprintf(out, "Loaded %d bounced emails from %s\n", set.Len(), opts.loadFile)

	if opts.saveFile != "" {
		if err := set.Save(opts.saveFile); err != nil {
			return nil, &ExitError{Code: ExitFailure, Err: err}
		}
		fmt.Fprintf(out, "Saved %d bounced emails to %s\n", set.Len(), opts.saveFile)
	}
	return set, nil
}

// nothingToDo reports whether the run can end before talking to the API.
// Statistics still report the contact total for an empty bounced list.
func nothingToDo(set *bounce.Set, opts contactsOptions) bool {
	return set.Len() == 0 && !opts.stats
}

func runContacts(ctx context.Context, out io.Writer, rt *appRuntime, svc contactsService, set *bounce.Set, opts contactsOptions) error {
	logger := logging.WithWorkflow(rt.logger, "contacts")

	if opts.stats {
		return contactStats(ctx, out, svc, set)
	}

	records, err := findBouncedContacts(ctx, out, svc, set)
	if err != nil {
		return err
	}

	if opts.export {
		if len(records) == 0 {
			fmt.Fprintln(out, "No contacts to export")
			return nil
		}
		if err := bounce.ExportJSON(opts.exportFile, records); err != nil {
			return &ExitError{Code: ExitFailure, Err: err}
		}
		fmt.Fprintf(out, "Exported %d contacts to %s\n", len(records), opts.exportFile)
		return nil
	}

	if len(records) == 0 {
		fmt.Fprintln(out, "No matching contacts found to delete")
		return nil
	}

	if opts.commit {
		fmt.Fprintf(out, "\nDeleting %d contacts:\n", len(records))
	} else {
		fmt.Fprintf(out, "\nDRY RUN - Would delete %d contacts:\n", len(records))
	}
	for i, r := range records {
		if i == previewLimit {
			fmt.Fprintf(out, "  ... and %d more\n", len(records)-previewLimit)
			break
		}
		fmt.Fprintf(out, "  %d. %s (%s)\n", i+1, r.Name, r.Email)
	}

	if !opts.commit {
		fmt.Fprintln(out, "\nTo actually delete these contacts, run with --no-dry-run")
		fmt.Fprintln(out, "WARNING: This action cannot be undone!")
		return nil
	}

	fmt.Fprintln(out)
	byID := make(map[string]bounce.ContactRecord, len(records))
	for _, r := range records {
		byID[r.ResourceName] = r
	}

	outcome := dispatch.Run(ctx, records, dispatch.Options[bounce.ContactRecord]{
		Workflow: "contacts",
		Commit:   true,
		ID:       func(r bounce.ContactRecord) string { return r.ResourceName },
		Logger:   logger,
		Metrics:  rt.metrics(),
		OnItem: func(e dispatch.Event) {
			r := byID[e.ID]
			switch {
			case google.IsNotFound(e.Err):
				fmt.Fprintf(out, "  Failed: %s - contact no longer exists\n", r.Name)
				return
			case e.Err != nil:
				fmt.Fprintf(out, "  Failed: %s - %v\n", r.Name, e.Err)
				return
			}
			fmt.Fprintf(out, "  Deleted: %s (%s)\n", r.Name, r.Email)
		},
	}, func(ctx context.Context, r bounce.ContactRecord) error {
		action := instrumentation.NewAction("contacts", instrumentation.OperationDelete, r.Email).
			WithResource(r.ResourceName).
			WithSpanContext(ctx)
		err := svc.DeleteContact(ctx, r.ResourceName)
		rt.audit.LogAction(ctx, action.Complete(err))
		return err
	})

	logger.Debug("contacts outcome", slog.String("outcome", outcome.JSON()))

	fmt.Fprintln(out, "\nFinal results:")
	fmt.Fprintf(out, "  Successfully deleted: %d contacts\n", outcome.Succeeded)
	if outcome.Failed > 0 {
		fmt.Fprintf(out, "  Failed to delete: %d contacts\n", outcome.Failed)
	}

	return outcomeError(ctx, outcome, "deletions")
}

// findBouncedContacts lists all contacts and returns those with a bounced address.
func findBouncedContacts(ctx context.Context, out io.Writer, svc bounce.PageSource, set *bounce.Set) ([]bounce.ContactRecord, error) {
	fmt.Fprintf(out, "Searching contacts for %d bounced emails...\n", set.Len())

	result, err := bounce.Match(ctx, set, svc, bounce.MatchOptions{
		OnPage: func(scanned int) {
			fmt.Fprintf(out, "  Processed %d contacts so far...\n", scanned)
		},
	})
	if err != nil {
		return nil, &ExitError{Code: ExitFailure, Err: fmt.Errorf("failed to search contacts: %w", err)}
	}

	fmt.Fprintf(out, "Scanned %d total contacts\n", result.Scanned)
	fmt.Fprintf(out, "Found %d contacts with bounced emails\n", len(result.Records))
	return result.Records, nil
}

func contactStats(ctx context.Context, out io.Writer, svc contactsService, set *bounce.Set) error {
	total, err := svc.TotalPeople(ctx)
	if err != nil {
		return &ExitError{Code: ExitFailure, Err: fmt.Errorf("failed to count contacts: %w", err)}
	}

	var matched []bounce.ContactRecord
	if set.Len() > 0 {
		matched, err = findBouncedContacts(ctx, out, svc, set)
		if err != nil {
			return err
		}
	}

	fmt.Fprintln(out, "\nStatistics:")
	fmt.Fprintf(out, "  Total contacts in Google: %d\n", total)
	fmt.Fprintf(out, "  Bounced emails loaded: %d\n", set.Len())
	if set.Len() > 0 {
		fmt.Fprintf(out, "  Contacts to be deleted: %d\n", len(matched))
		fmt.Fprintf(out, "  Contacts that will remain: %d\n", total-len(matched))
	}
	return nil
}

// outcomeError turns a finished commit run into the command result.
func outcomeError(ctx context.Context, outcome *dispatch.Outcome, what string) error {
	if outcome.Interrupted {
		cause := ctx.Err()
		if cause == nil {
			cause = errors.New("run stopped")
		}
		return &ExitError{
			Code: ExitFailure,
			Err:  fmt.Errorf("interrupted after %d %s: %w", outcome.Attempted, what, cause),
		}
	}
	if outcome.Failed > 0 {
		return &ExitError{
			Code: outcome.ExitCode(),
			Err:  fmt.Errorf("%d of %d %s failed", outcome.Failed, outcome.Attempted, what),
		}
	}
	return nil
}
