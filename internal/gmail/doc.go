// Package gmail sends messages through the Gmail API.
//
// Message builds the RFC 5322 bytes of an outgoing mail: a plain text body,
// an optional HTML alternative and optional attachments. Client looks up the
// sender address and submits the built message.
//
// Example usage:
//
//	client, err := gmail.NewClient(ctx, metrics, option.WithHTTPClient(httpClient))
//	if err != nil {
//	    return err
//	}
//
//	from, err := client.SenderAddress(ctx)
//	if err != nil {
//	    return err
//	}
//
//	raw, err := (&gmail.Message{From: from, To: "ann@example.com", Subject: "Hello", Text: "Hi Ann"}).Build()
//	if err != nil {
//	    return err
//	}
//	id, err := client.Send(ctx, raw)
package gmail
