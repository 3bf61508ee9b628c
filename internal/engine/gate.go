package engine

import (
	"github.com/chorex/chore-engine/internal/model"
)

// gateExternalChore probes the position cache before an externally-sourced
// NEW chore is accepted. The probe is alert-only: a failed availability check
// never blocks snapshot creation, it just puts a human on notice.
func (e *Engine) gateExternalChore(brief model.ChoreBrief) {
	probe := brief
	if probe.Broker == "" {
		probe.Broker = deriveBroker(brief.UnderlyingAccount, brief.InstrumentType)
	}

	ok, detail := e.positions.ExtractAvailability(probe)
	if ok {
		e.alerts.Info("position availability confirmed for external chore",
			"chore_id", brief.ChoreID, "detail", detail)
		return
	}
	e.alerts.Error("position availability check failed for external chore",
		"chore_id", brief.ChoreID, "account", brief.UnderlyingAccount,
		"security", brief.SecurityID, "detail", detail)
}

// deriveBroker resolves the forced broker for an account/instrument pair.
// Accounts routing convertible flow go to the CB desk; everything else goes
// to the default equity desk.
func deriveBroker(underlyingAccount, instrumentType string) string {
	if instrumentType == "CB" {
		return "BKR_CB_DESK"
	}
	if underlyingAccount == "" {
		return "BKR_EQT_DEFAULT"
	}
	return "BKR_EQT_" + underlyingAccount
}
