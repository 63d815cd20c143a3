package common

const (
	InvoiceStatusOpen = "open"
	InvoiceStatusPaid = "paid"

	EventInvoiceCreated   = "invoice.created"
	EventInvoicePaid      = "invoice.paid"
	EventInvoicesSnapshot = "invoices.snapshot"
	EventKeepalive        = "keepalive"

	TransferKindMemo  = "memo"
	TransferKindPlain = "plain"
	TransferKindMint  = "mint"

	MarkPaidResultPaid        = "paid"
	MarkPaidResultAlreadyPaid = "already_paid"
)
