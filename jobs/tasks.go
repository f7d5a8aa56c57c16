package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending alert emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeLedgerIntegrity verifies denormalized balances against the ledgers.
	TaskTypeLedgerIntegrity = "ledger:integrity"
	// TaskTypeLotExpiry flips active lots past their expiry date.
	TaskTypeLotExpiry = "lots:expiry"
	// TaskTypeLowStockScan emails a summary of stock under minimum.
	TaskTypeLowStockScan = "stock:lowscan"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// NewLedgerIntegrityTask constructs the integrity sweep task.
func NewLedgerIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskTypeLedgerIntegrity, nil)
}

// NewLotExpiryTask constructs the lot expiry sweep task.
func NewLotExpiryTask() *asynq.Task {
	return asynq.NewTask(TaskTypeLotExpiry, nil)
}

// NewLowStockScanTask constructs the low stock scan task.
func NewLowStockScanTask() *asynq.Task {
	return asynq.NewTask(TaskTypeLowStockScan, nil)
}
