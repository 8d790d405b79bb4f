package reconciler

import (
	"strings"

	"settlement-reconciler/internal/models"
)

// Purpose names what an account is used for in the journal.
type Purpose int

const (
	PurposeCODFund Purpose = iota
	PurposeElectronicFund
	PurposeCODFreeze
	PurposeElectronicFreeze
	PurposeRoundOff
	PurposeCreditors
	PurposeDebtors
)

// chart holds the ledger account per GSTIN registration. Reserve and freeze
// accounts only exist on the 27 books.
var chart = map[Purpose]map[string]string{
	PurposeCODFund: {
		models.GSTINPrefix27: "1604 - Amazon COD Fund - TMPL",
		models.GSTINPrefix29: "1604 - Amazon COD Fund - TMPL29",
	},
	PurposeElectronicFund: {
		models.GSTINPrefix27: "1601 - Amazon Electronic Fund - TMPL",
		models.GSTINPrefix29: "1601 - Amazon Electronic Fund - TMPL29",
	},
	PurposeCODFreeze: {
		models.GSTINPrefix27: "1603 - Amazon Freeze Fund - COD - TMPL",
	},
	PurposeElectronicFreeze: {
		models.GSTINPrefix27: "1602 - Amazon Freeze Fund - Electronic - TMPL",
	},
	PurposeRoundOff: {
		models.GSTINPrefix27: "Rounded Off - TMPL27",
		models.GSTINPrefix29: "Rounded Off - TMPL29",
	},
	PurposeCreditors: {
		models.GSTINPrefix27: "Creditors (INR) - TMPL",
		models.GSTINPrefix29: "Creditors (INR) - TMPL29",
	},
	PurposeDebtors: {
		models.GSTINPrefix27: "Debtors (INR) - TMPL",
		models.GSTINPrefix29: "Debtors (INR) - TMPL29",
	},
}

// AccountFor returns the account used for purpose on the books of the given
// GSTIN prefix, or "" when there is none.
func AccountFor(prefix string, purpose Purpose) string {
	return chart[purpose][prefix]
}

// GSTINPrefix returns "27" or "29" for the supported registrations and ""
// otherwise.
func GSTINPrefix(gstin string) string {
	gstin = strings.TrimSpace(gstin)
	for _, p := range []string{models.GSTINPrefix27, models.GSTINPrefix29} {
		if strings.HasPrefix(gstin, p) {
			return p
		}
	}
	return ""
}

func fundPurpose(orderType string) Purpose {
	if orderType == models.OrderTypeElectronic {
		return PurposeElectronicFund
	}
	return PurposeCODFund
}

func freezePurpose(orderType string) Purpose {
	if orderType == models.OrderTypeElectronic {
		return PurposeElectronicFreeze
	}
	return PurposeCODFreeze
}

// orphanFundPurpose is the account period fees are settled against: COD
// fees come out of the COD freeze fund.
func orphanFundPurpose(orderType string) Purpose {
	if orderType == models.OrderTypeElectronic {
		return PurposeElectronicFund
	}
	return PurposeCODFreeze
}

func isAccountFor(account string, purpose Purpose) bool {
	for _, a := range chart[purpose] {
		if a == account {
			return true
		}
	}
	return false
}
