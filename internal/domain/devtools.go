package domain

// ============================================================
// Dev Tools: endpoints for development/testing
// ============================================================

// DevSeedRequest is the body for POST /v1/dev/seed.
type DevSeedRequest struct {
	UserID string `json:"userId"`
	Month  string `json:"month,omitempty"` // anchor month of the demo data; defaults to the current month
}

// DevSeedResponse is returned by POST /v1/dev/seed.
type DevSeedResponse struct {
	Success      bool   `json:"success"`
	UserID       string `json:"userId"`
	Accounts     int    `json:"accounts"`
	Transactions int    `json:"transactions"`
	Debts        int    `json:"debts"`
	Purchases    int    `json:"purchases"`
	Pockets      int    `json:"pockets"`
	Message      string `json:"message"`
}

// DevTokenRequest is the body for POST /v1/dev/token.
type DevTokenRequest struct {
	UserID string `json:"userId"`
}

// DevTokenResponse is returned by POST /v1/dev/token.
type DevTokenResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int    `json:"expiresIn"`
}

// DueReminder is published for each unpaid entry due soon.
type DueReminder struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Source      DueSource `json:"source"`
	EntityID    string    `json:"entityId"`
	Description string    `json:"description"`
	Month       Month     `json:"month"`
	DueDate     Date      `json:"dueDate"`
	Amount      float64   `json:"amount"`
}
