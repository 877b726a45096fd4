// Package lender exposes the direct-lender partner directory and the
// golden-tier connection flow.
package lender

// Partner is one entry of the static lender directory.
type Partner struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	MaxAmount    int64  `json:"max_amount"`
	InterestRate string `json:"interest_rate"`
	Contact      string `json:"contact"`
	Badge        string `json:"badge"`
	Color        string `json:"color"`
}

// Partners lists the lending partners in directory order.
func Partners() []Partner {
	return []Partner{
		{ID: "mshwari", Name: "M-Shwari", Type: "Instant Mobile Loans", MaxAmount: 50000, InterestRate: "7.5% per month", Contact: "+254700000001", Badge: "Pre-approved", Color: "green"},
		{ID: "tala", Name: "Tala Kenya", Type: "Fast Approval Loans", MaxAmount: 50000, InterestRate: "15% per month", Contact: "+254700000002", Badge: "Verified Partner", Color: "blue"},
		{ID: "branch", Name: "Branch Kenya", Type: "Flexible Repayment", MaxAmount: 70000, InterestRate: "1-3% per day", Contact: "+254700000003", Badge: "Trusted", Color: "purple"},
		{ID: "kcb", Name: "KCB M-Pesa", Type: "Bank-backed Loans", MaxAmount: 1000000, InterestRate: "1.083% per month", Contact: "+254700000004", Badge: "Official Bank", Color: "orange"},
		{ID: "zenka", Name: "Zenka Finance", Type: "Quick Cash Loans", MaxAmount: 30000, InterestRate: "9% per month", Contact: "+254700000005", Badge: "Fast Approval", Color: "teal"},
		{ID: "opesa", Name: "OPesa Loans", Type: "Emergency Loans", MaxAmount: 25000, InterestRate: "8% per month", Contact: "+254700000006", Badge: "Quick Access", Color: "cyan"},
		{ID: "fuliza", Name: "Fuliza by Safaricom", Type: "Overdraft Facility", MaxAmount: 100000, InterestRate: "1% per day", Contact: "+254700000007", Badge: "Official M-Pesa", Color: "green"},
		{ID: "equity", Name: "Equity Bank EazzyLoan", Type: "Bank Loans", MaxAmount: 500000, InterestRate: "1.25% per month", Contact: "+254700000008", Badge: "Premium Bank", Color: "red"},
	}
}

// PartnerByID looks up one partner, reporting whether it exists.
func PartnerByID(id string) (Partner, bool) {
	for _, p := range Partners() {
		if p.ID == id {
			return p, true
		}
	}
	return Partner{}, false
}
