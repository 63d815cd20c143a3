package service

type Config struct {
	LedgerRPCUrl            string  `envconfig:"LEDGER_RPC_URL" required:"true"`
	TokenAddress            string  `envconfig:"TOKEN_ADDRESS" required:"true"`
	RegistryAddress         string  `envconfig:"REGISTRY_ADDRESS" required:"true"`
	MerchantAddress         string  `envconfig:"MERCHANT_ADDRESS" required:"true"`
	OwnerAddress            string  `envconfig:"OWNER_ADDRESS" required:"true"`
	FaucetUrl               string  `envconfig:"FAUCET_URL"`
	PollInterval            int     `envconfig:"POLL_INTERVAL" default:"2"`             // seconds
	BackfillLookback        uint64  `envconfig:"BACKFILL_LOOKBACK" default:"5000"`      // blocks
	MaxBackfillLookback     uint64  `envconfig:"MAX_BACKFILL_LOOKBACK" default:"50000"` // hard cap, blocks
	MaxBlockRange           uint64  `envconfig:"MAX_BLOCK_RANGE" default:"500"`         // blocks per getLogs call
	BackfillInterval        int     `envconfig:"BACKFILL_INTERVAL" default:"120"`       // seconds, 0 disables the routine
	ConfirmationTimeout     int     `envconfig:"CONFIRMATION_TIMEOUT" default:"30"`     // seconds
	TransferLookback        uint64  `envconfig:"TRANSFER_LOOKBACK" default:"5000"`      // blocks, recent-transfer queries
	MinInvoiceAmount        int64   `envconfig:"MIN_INVOICE_AMOUNT" default:"100"`      // smallest unit, demo invoices
	MaxInvoiceAmount        int64   `envconfig:"MAX_INVOICE_AMOUNT" default:"10000"`    // smallest unit, demo invoices
	InvoiceDueDays          int     `envconfig:"INVOICE_DUE_DAYS" default:"7"`
	SentryDSN               string  `envconfig:"SENTRY_DSN"`
	SentryTracesSampleRate  float64 `envconfig:"SENTRY_TRACES_SAMPLE_RATE"`
	DatadogAgentUrl         string  `envconfig:"DATADOG_AGENT_URL"`
	LogFilePath             string  `envconfig:"LOG_FILE_PATH"`
	AdminToken              string  `envconfig:"ADMIN_TOKEN"`
	Host                    string  `envconfig:"HOST" default:"localhost:3000"`
	Port                    int     `envconfig:"PORT" default:"3000"`
	DefaultRateLimit        int     `envconfig:"DEFAULT_RATE_LIMIT" default:"10"`
	StrictRateLimit         int     `envconfig:"STRICT_RATE_LIMIT" default:"10"`
	BurstRateLimit          int     `envconfig:"BURST_RATE_LIMIT" default:"1"`
	EnablePrometheus        bool    `envconfig:"ENABLE_PROMETHEUS" default:"false"`
	PrometheusPort          int     `envconfig:"PROMETHEUS_PORT" default:"9092"`
	WebhookUrl              string  `envconfig:"WEBHOOK_URL"`
	RabbitMQUri             string  `envconfig:"RABBITMQ_URI"`
	RabbitMQInvoiceExchange string  `envconfig:"RABBITMQ_INVOICE_EXCHANGE" default:"invoicehub_invoice"`
}
