package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/option"

	"github.com/teemow/mailsweep/internal/dispatch"
	"github.com/teemow/mailsweep/internal/gmail"
	"github.com/teemow/mailsweep/internal/google"
	"github.com/teemow/mailsweep/internal/instrumentation"
	"github.com/teemow/mailsweep/internal/logging"
	"github.com/teemow/mailsweep/internal/recipients"
	"github.com/teemow/mailsweep/internal/tmpl"
)

// defaultText is the plain text body of a single message sent with --html only.
const defaultText = "No text content"

type sendOptions struct {
	to           string
	bulk         string
	subject      string
	message      string
	html         string
	template     string
	htmlTemplate string
	attach       []string
	commit       bool
	delay        time.Duration
}

// mailService is the part of the Gmail API the send workflow uses.
type mailService interface {
	SenderAddress(ctx context.Context) (string, error)
	Send(ctx context.Context, raw []byte) (string, error)
}

// sendJob is everything a send run needs, loaded and validated up front.
type sendJob struct {
	recipients  []*recipients.Recipient
	skipped     []recipients.SkippedRow
	subject     string
	content     tmpl.Pair
	attachments []gmail.Attachment
}

func newSendCmd() *cobra.Command {
	var (
		opts  sendOptions
		flags authFlags
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a single message or templated bulk mail through Gmail",
		Long: `Send mail from your Gmail account.

Use --to for a single recipient or --bulk with a recipients file. A file
ending in .csv is read with a header row and every column is available as a
{{column}} placeholder; any other file is read as one address per line.

Templates may use {{email}}, {{name}}, {{first_name}}, {{last_name}} and any
CSV column. {{name}} defaults to the part of the address before the @.

By default this is a dry run. Messages are only sent with --no-dry-run.`,
		Example: `  # Send single email (dry run)
  mailsweep send --to user@example.com --subject "Test" --message "Hello World"

  # Send bulk emails from CSV
  mailsweep send --bulk recipients.csv --subject "Newsletter" --template template.txt

  # Actually send, two seconds apart
  mailsweep send --bulk recipients.csv --subject "News" --template template.txt --no-dry-run --delay 2s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			job, err := prepareSend(opts)
			if err != nil {
				return &ExitError{Code: ExitFailure, Err: err}
			}
			for _, s := range job.skipped {
				app.logger.Warn("skipping recipient row", logging.File(opts.bulk), "line", s.Line, "reason", s.Reason)
				fmt.Fprintf(out, "Skipping line %d of %s: %s\n", s.Line, opts.bulk, s.Reason)
			}

			httpClient, err := authorizedClient(ctx, cmd, app, flags, google.SendScopes)
			if err != nil {
				return err
			}
			client, err := gmail.NewClient(ctx, app.metrics(), option.WithHTTPClient(httpClient))
			if err != nil {
				return err
			}

			return runSend(ctx, out, app, client, job, opts)
		},
	}

	cmd.Flags().StringVar(&opts.to, "to", "", "Recipient email address")
	cmd.Flags().StringVar(&opts.bulk, "bulk", "", "Recipients file (CSV or one address per line)")
	cmd.Flags().StringVar(&opts.subject, "subject", "", "Email subject")
	cmd.Flags().StringVar(&opts.message, "message", "", "Email message text")
	cmd.Flags().StringVar(&opts.html, "html", "", "HTML message content")
	cmd.Flags().StringVar(&opts.template, "template", "", "Text template file")
	cmd.Flags().StringVar(&opts.htmlTemplate, "html-template", "", "HTML template file")
	cmd.Flags().StringSliceVar(&opts.attach, "attach", nil, "File to attach (repeatable)")
	cmd.Flags().BoolVar(&opts.commit, "no-dry-run", false, "Actually send emails (default is dry run)")
	cmd.Flags().DurationVar(&opts.delay, "delay", dispatch.DefaultDelay, "Delay between emails")
	flags.register(cmd, "gmail_token.json")

	cmd.MarkFlagsMutuallyExclusive("to", "bulk")
	cmd.MarkFlagsOneRequired("to", "bulk")
	cmd.MarkFlagsMutuallyExclusive("message", "template")
	cmd.MarkFlagsMutuallyExclusive("html", "html-template")

	return cmd
}

// prepareSend validates the options and loads every local input file.
func prepareSend(opts sendOptions) (*sendJob, error) {
	if opts.subject == "" {
		return nil, errors.New("subject is required")
	}
	if opts.delay < 0 {
		return nil, errors.New("delay must not be negative")
	}

	job := &sendJob{subject: opts.subject}

	if opts.template != "" {
		text, err := tmpl.Load(opts.template)
		if err != nil {
			return nil, err
		}
		job.content.Text = text
	} else {
		job.content.Text = opts.message
	}

	if opts.htmlTemplate != "" {
		html, err := tmpl.Load(opts.htmlTemplate)
		if err != nil {
			return nil, err
		}
		job.content.HTML = html
	} else {
		job.content.HTML = opts.html
	}

	switch {
	case opts.bulk != "":
		if opts.template == "" && opts.message == "" {
			return nil, errors.New("either --template or --message is required for bulk sending")
		}
		list, err := recipients.Load(opts.bulk)
		if err != nil {
			return nil, err
		}
		if len(list.Recipients) == 0 {
			return nil, fmt.Errorf("%w: no recipients found in %s", recipients.ErrRecipientLoad, opts.bulk)
		}
		job.recipients = list.Recipients
		job.skipped = list.Skipped
	case strings.TrimSpace(opts.to) == "" && opts.to != "":
		return nil, errors.New("recipient address must not be empty")
	case opts.to != "":
		if job.content.Text == "" && job.content.HTML == "" {
			return nil, errors.New("message content is required")
		}
		if job.content.Text == "" {
			job.content.Text = defaultText
		}
		job.recipients = []*recipients.Recipient{recipients.New(strings.TrimSpace(opts.to))}
	default:
		return nil, errors.New("either --to or --bulk is required")
	}

	for _, path := range opts.attach {
		a, err := gmail.LoadAttachment(path)
		if err != nil {
			return nil, err
		}
		job.attachments = append(job.attachments, a)
	}

	return job, nil
}

// buildMessage renders the job for one recipient.
func (j *sendJob) buildMessage(from string, r *recipients.Recipient) ([]byte, error) {
	fields := tmpl.FieldsFor(r)
	text, html := j.content.Render(fields)

	msg := &gmail.Message{
		From:        from,
		To:          r.Email(),
		Subject:     tmpl.Render(j.subject, fields),
		Text:        text,
		HTML:        html,
		Attachments: j.attachments,
	}
	raw, err := msg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build message: %w", err)
	}
	return raw, nil
}

func runSend(ctx context.Context, out io.Writer, rt *appRuntime, svc mailService, job *sendJob, opts sendOptions) error {
	logger := logging.WithWorkflow(rt.logger, "send")

	from, err := svc.SenderAddress(ctx)
	if err != nil {
		return &ExitError{Code: ExitFailure, Err: fmt.Errorf("could not get sender email: %w", err)}
	}
	fmt.Fprintf(out, "Sending from: %s\n", from)
	logger.Info("sender resolved", logging.UserHash(from), logging.Domain(from))

	if opts.commit {
		fmt.Fprintln(out, "\nSENDING EMAILS")
	} else {
		fmt.Fprintln(out, "\nDRY RUN MODE")
	}
	if opts.bulk != "" {
		fmt.Fprintf(out, "Loaded recipients from: %s\n", opts.bulk)
		fmt.Fprintf(out, "Found %d recipients\n", len(job.recipients))
	} else {
		r := job.recipients[0]
		fmt.Fprintf(out, "From: %s\nTo: %s\nSubject: %s\n", from, r.Email(), tmpl.Render(job.subject, tmpl.FieldsFor(r)))
	}

	outcome := dispatch.Run(ctx, job.recipients, dispatch.Options[*recipients.Recipient]{
		Workflow: "send",
		Commit:   opts.commit,
		Delay:    opts.delay,
		ID:       func(r *recipients.Recipient) string { return r.Email() },
		Logger:   logger,
		Metrics:  rt.metrics(),
		Preview: func(_ context.Context, r *recipients.Recipient) error {
			_, err := job.buildMessage(from, r)
			return err
		},
		OnItem: func(e dispatch.Event) {
			fmt.Fprintf(out, "\n[%d/%d] Processing: %s\n", e.Index, e.Total, e.ID)
			switch {
			case e.DryRun && e.Err != nil:
				fmt.Fprintf(out, "  Cannot send: %v\n", e.Err)
			case e.DryRun:
				fmt.Fprintln(out, "  Ready to send")
			case e.Err != nil:
				fmt.Fprintf(out, "  Error sending email: %v\n", e.Err)
				if google.IsRateLimited(e.Err) {
					fmt.Fprintln(out, "  Gmail is rate limiting this account, consider a longer --delay")
				}
			default:
				fmt.Fprintln(out, "  Sent successfully")
			}
		},
	}, func(ctx context.Context, r *recipients.Recipient) error {
		ctx, span := instrumentation.StartSpan(ctx, "send.recipient",
			attribute.String(instrumentation.SpanAttrRecipientDomain, logging.ExtractDomain(r.Email())))
		defer span.End()

		action := instrumentation.NewAction("send", instrumentation.OperationSend, r.Email()).WithSpanContext(ctx)

		raw, err := job.buildMessage(from, r)
		if err == nil {
			var id string
			id, err = svc.Send(ctx, raw)
			action.WithResource(id)
		}
		rt.audit.LogAction(ctx, action.Complete(err))
		if err != nil {
			instrumentation.SetSpanError(span, err)
		} else {
			instrumentation.SetSpanSuccess(span)
		}
		return err
	})

	logger.Debug("send outcome", slog.String("outcome", outcome.JSON()))

	fmt.Fprintln(out, "\nSUMMARY:")
	if opts.commit {
		fmt.Fprintf(out, "  Sent: %d\n", outcome.Succeeded)
		fmt.Fprintf(out, "  Failed: %d\n", outcome.Failed)
		fmt.Fprintf(out, "  Success rate: %.1f%%\n", outcome.SuccessRate())
	} else {
		fmt.Fprintf(out, "  Ready to send: %d\n", outcome.Succeeded)
		if outcome.Failed > 0 {
			fmt.Fprintf(out, "  Cannot send: %d\n", outcome.Failed)
		}
		fmt.Fprintln(out, "  Run with --no-dry-run to actually send")
	}
	if failed := outcome.FailedResults(); len(failed) > 0 {
		fmt.Fprintln(out, "  Failed recipients:")
		for _, r := range failed {
			fmt.Fprintf(out, "    %s: %s\n", r.ID, r.Error)
		}
	}

	if !opts.commit {
		return outcomeError(ctx, outcome, "messages")
	}
	return outcomeError(ctx, outcome, "sends")
}
