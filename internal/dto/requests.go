package dto

import (
	"github.com/google/uuid"

	"github.com/ignatzorin/amhang-backend/internal/models"
	"github.com/ignatzorin/amhang-backend/internal/service"
)

// CreateMissionRequest represents the request to create a mission
type CreateMissionRequest struct {
	BusinessID  string `json:"business_id" binding:"required"`
	Title       string `json:"title" binding:"required"`
	MissionType string `json:"mission_type"`
	ProductCost int64  `json:"product_cost" binding:"gte=0"`
	ReviewerFee int64  `json:"reviewer_fee" binding:"gte=0"`
}

// ToInput converts the request to the service input
func (r *CreateMissionRequest) ToInput() (service.CreateMissionInput, error) {
	businessID, err := uuid.Parse(r.BusinessID)
	if err != nil {
		return service.CreateMissionInput{}, err
	}
	return service.CreateMissionInput{
		BusinessID:  businessID,
		Title:       r.Title,
		MissionType: r.MissionType,
		ProductCost: r.ProductCost,
		ReviewerFee: r.ReviewerFee,
	}, nil
}

// PayMissionRequest carries the payment key returned by the gateway widget
type PayMissionRequest struct {
	PaymentKey string `json:"paymentKey"`
}

// DisputeReviewRequest represents a business complaint about a review before publication
type DisputeReviewRequest struct {
	Reason string `json:"reason"`
}

// VerifyBankAccountRequest represents the reviewer's payout account
type VerifyBankAccountRequest struct {
	BankName      string `json:"bankName"`
	AccountNumber string `json:"accountNumber"`
	AccountHolder string `json:"accountHolder"`
}

// ToBankAccount converts the request to a bank account
func (r *VerifyBankAccountRequest) ToBankAccount() models.BankAccount {
	return models.BankAccount{
		BankName:      r.BankName,
		AccountNumber: r.AccountNumber,
		AccountHolder: r.AccountHolder,
	}
}

// AssignReviewerRequest represents an admin assignment of a selected reviewer
type AssignReviewerRequest struct {
	ReviewerID string `json:"reviewer_id" binding:"required"`
}
