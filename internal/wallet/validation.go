package wallet

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ValidateCreateWalletRequest checks the wallet creation contract.
func ValidateCreateWalletRequest(req *CreateWalletRequest) error {
	req.UserID = strings.TrimSpace(req.UserID)

	if req.UserID == "" {
		return validationErrorf("userId is required")
	}

	if _, err := uuid.Parse(req.UserID); err != nil {
		return validationErrorf(fmt.Sprintf("userId is not a valid UUID: %s", req.UserID))
	}

	return nil
}

// ValidateWalletID checks a path parameter before it reaches the store.
func ValidateWalletID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return validationErrorf(fmt.Sprintf("malformed wallet id: %s", id))
	}
	return nil
}
