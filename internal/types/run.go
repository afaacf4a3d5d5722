package types

import (
	"fmt"
	"time"
)

// RunRecord captures the identifiers and outcome of one demo run.
type RunRecord struct {
	RunID              string          `json:"run_id"`
	StartedAt          time.Time       `json:"started_at"`
	FinishedAt         time.Time       `json:"finished_at"`
	AccountIDs         []string        `json:"account_ids"`
	WalletID           string          `json:"wallet_id,omitempty"`
	MinWeightOfSigners int             `json:"min_weight_of_signers"`
	SignersAdded       int             `json:"signers_added"`
	RegisteredWeight   int             `json:"registered_weight"`
	ProcessID          string          `json:"process_id,omitempty"`
	SignaturesSent     int             `json:"signatures_sent"`
	Status             SignatureStatus `json:"status,omitempty"`
	Error              string          `json:"error,omitempty"`
}

func (r RunRecord) Key() string {
	return fmt.Sprintf("multisig-demo-run-%s", r.RunID)
}

// ReportName is the object name used when archiving the record.
func (r RunRecord) ReportName() string {
	return fmt.Sprintf("runs/%s/%s.json", r.StartedAt.UTC().Format("2006-01-02"), r.RunID)
}
