package gmail

import (
	"context"
	"encoding/base64"
	"fmt"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/mailsweep/internal/google"
	"github.com/teemow/mailsweep/internal/instrumentation"
)

// Client wraps the Gmail Users service.
type Client struct {
	svc     *gmail.UsersService
	metrics *instrumentation.Metrics
}

// Profile is the mailbox profile of the authenticated user.
type Profile struct {
	EmailAddress  string
	MessagesTotal int64
}

// NewClient creates a Gmail client. Pass option.WithHTTPClient with an
// authorized client; metrics may be nil.
func NewClient(ctx context.Context, metrics *instrumentation.Metrics, opts ...option.ClientOption) (*Client, error) {
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return &Client{
		svc:     svc.Users,
		metrics: metrics,
	}, nil
}

// Profile returns the profile of the authenticated mailbox.
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	var profile *gmail.Profile
	err := instrumentation.ObserveGoogleAPI(ctx, c.metrics, instrumentation.ServiceGmail, instrumentation.OperationGet,
		func(ctx context.Context) error {
			var err error
			profile, err = c.svc.GetProfile("me").Context(ctx).Do()
			return err
		})
	if err != nil {
		return nil, google.WrapAPIError("gmail.getProfile", err)
	}

	return &Profile{
		EmailAddress:  profile.EmailAddress,
		MessagesTotal: profile.MessagesTotal,
	}, nil
}

// SenderAddress returns the address messages are sent from.
func (c *Client) SenderAddress(ctx context.Context) (string, error) {
	profile, err := c.Profile(ctx)
	if err != nil {
		return "", err
	}
	return profile.EmailAddress, nil
}

// Send submits a built message and returns the ID Gmail assigned to it.
func (c *Client) Send(ctx context.Context, raw []byte) (string, error) {
	msg := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}

	var sent *gmail.Message
	err := instrumentation.ObserveGoogleAPI(ctx, c.metrics, instrumentation.ServiceGmail, instrumentation.OperationSend,
		func(ctx context.Context) error {
			var err error
			sent, err = c.svc.Messages.Send("me", msg).Context(ctx).Do()
			return err
		})
	if err != nil {
		return "", google.WrapAPIError("gmail.send", err)
	}

	return sent.Id, nil
}
