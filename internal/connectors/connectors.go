package connectors

import "wastewatch/internal"

// MailConnector fetches raw report mail from one mailbox provider.
type MailConnector interface {
	FetchInbox(label string, max int) ([]internal.FetchedMailMessage, error)
}
