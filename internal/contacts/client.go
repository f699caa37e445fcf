// Package contacts lists and deletes Google Contacts through the People API.
package contacts

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/option"
	people "google.golang.org/api/people/v1"

	"github.com/teemow/mailsweep/internal/bounce"
	"github.com/teemow/mailsweep/internal/google"
	"github.com/teemow/mailsweep/internal/instrumentation"
)

const (
	// PageSize is the largest page the connections listing accepts.
	PageSize = 1000

	listFields = "names,emailAddresses,metadata"
	selfFields = "names,emailAddresses"
)

// Client wraps the People service.
type Client struct {
	svc     *people.Service
	metrics *instrumentation.Metrics
}

var _ bounce.PageSource = (*Client)(nil)

// NewClient creates a People client. Pass option.WithHTTPClient with an
// authorized client; metrics may be nil.
func NewClient(ctx context.Context, metrics *instrumentation.Metrics, opts ...option.ClientOption) (*Client, error) {
	svc, err := people.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create People service: %w", err)
	}
	return &Client{svc: svc, metrics: metrics}, nil
}

// ListConnections returns one page of the user's contacts.
func (c *Client) ListConnections(ctx context.Context, pageToken string) (*bounce.Page, error) {
	var resp *people.ListConnectionsResponse
	err := instrumentation.ObserveGoogleAPI(ctx, c.metrics, instrumentation.ServicePeople, instrumentation.OperationList,
		func(ctx context.Context) error {
			call := c.svc.People.Connections.List("people/me").
				PageSize(PageSize).
				PersonFields(listFields).
				Context(ctx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			var err error
			resp, err = call.Do()
			return err
		})
	if err != nil {
		return nil, google.WrapAPIError("people.connections.list", err)
	}

	page := &bounce.Page{
		Contacts:      make([]bounce.Contact, 0, len(resp.Connections)),
		NextPageToken: resp.NextPageToken,
		TotalPeople:   int(resp.TotalPeople),
	}
	for _, p := range resp.Connections {
		page.Contacts = append(page.Contacts, toContact(p))
	}
	return page, nil
}

// DeleteContact deletes the contact with the given resource name.
func (c *Client) DeleteContact(ctx context.Context, resourceName string) error {
	err := instrumentation.ObserveGoogleAPI(ctx, c.metrics, instrumentation.ServicePeople, instrumentation.OperationDelete,
		func(ctx context.Context) error {
			_, err := c.svc.People.DeleteContact(resourceName).Context(ctx).Do()
			return err
		},
		attribute.String(instrumentation.SpanAttrResourceID, resourceName),
	)
	return google.WrapAPIError("people.deleteContact", err)
}

// TotalPeople returns the number of contacts the user has.
func (c *Client) TotalPeople(ctx context.Context) (int, error) {
	var resp *people.ListConnectionsResponse
	err := instrumentation.ObserveGoogleAPI(ctx, c.metrics, instrumentation.ServicePeople, instrumentation.OperationList,
		func(ctx context.Context) error {
			var err error
			resp, err = c.svc.People.Connections.List("people/me").
				PageSize(1).
				PersonFields("names").
				Context(ctx).
				Do()
			return err
		})
	if err != nil {
		return 0, google.WrapAPIError("people.connections.list", err)
	}
	return int(resp.TotalPeople), nil
}

// Self describes the authenticated user.
type Self struct {
	DisplayName  string
	EmailAddress string
}

// Me returns the authenticated user's own profile.
func (c *Client) Me(ctx context.Context) (*Self, error) {
	var person *people.Person
	err := instrumentation.ObserveGoogleAPI(ctx, c.metrics, instrumentation.ServicePeople, instrumentation.OperationGet,
		func(ctx context.Context) error {
			var err error
			person, err = c.svc.People.Get("people/me").PersonFields(selfFields).Context(ctx).Do()
			return err
		})
	if err != nil {
		return nil, google.WrapAPIError("people.get", err)
	}

	contact := toContact(person)
	self := &Self{DisplayName: contact.DisplayName}
	if len(contact.Emails) > 0 {
		self.EmailAddress = contact.Emails[0]
	}
	return self, nil
}

func toContact(p *people.Person) bounce.Contact {
	contact := bounce.Contact{
		ResourceName: p.ResourceName,
		Etag:         p.Etag,
	}
	if len(p.Names) > 0 {
		contact.DisplayName = p.Names[0].DisplayName
	}
	for _, e := range p.EmailAddresses {
		if e.Value != "" {
			contact.Emails = append(contact.Emails, e.Value)
		}
	}
	return contact
}
