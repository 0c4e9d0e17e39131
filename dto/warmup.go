package dto

// WarmupRequest targets a warm-up control operation at one domain account.
type WarmupRequest struct {
	DomainAccountID string `json:"domain_account_id" binding:"required"`
}
