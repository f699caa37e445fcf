// Package dispatch runs a per-item action over a batch with dry-run/commit duality.
//
// In dry-run mode the action is never called; every item is reported as
// "would process" and counted as a successful no-op. In commit mode the action
// runs exactly once per item, in input order. A failing item is counted and
// logged and the loop moves on: one bad contact or recipient never blocks the
// rest of the batch.
//
// An optional fixed delay separates consecutive commit-mode calls. It is not
// applied in dry-run mode or after the last item.
//
// Example usage:
//
//	outcome := dispatch.Run(ctx, contacts, dispatch.Options[bounce.ContactRecord]{
//	    Workflow: "contacts",
//	    Commit:   commit,
//	    ID:       func(c bounce.ContactRecord) string { return c.ResourceName },
//	}, func(ctx context.Context, c bounce.ContactRecord) error {
//	    return client.DeleteContact(ctx, c.ResourceName)
//	})
//	fmt.Printf("deleted %d, failed %d\n", outcome.Succeeded, outcome.Failed)
package dispatch
