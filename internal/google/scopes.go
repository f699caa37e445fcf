package google

import (
	gmail "google.golang.org/api/gmail/v1"
	people "google.golang.org/api/people/v1"
)

// ContactsScopes are required by the contacts cleanup workflow.
var ContactsScopes = []string{
	people.ContactsScope, // read and delete contacts
}

// SendScopes are required by the send workflow. The read-only scope is needed
// to look up the sender address.
var SendScopes = []string{
	gmail.GmailSendScope,
	gmail.GmailReadonlyScope,
}

// AuthCheckScopes cover both workflows so one token can be tested against
// the People and Gmail APIs.
var AuthCheckScopes = []string{
	people.ContactsScope,
	gmail.GmailSendScope,
	gmail.GmailReadonlyScope,
}
