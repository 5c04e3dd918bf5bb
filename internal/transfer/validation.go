package transfer

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ValidateCreateTransferRequest checks the initiation contract: two distinct
// wallet UUIDs and a positive integer amount in minor units.
func ValidateCreateTransferRequest(req *CreateTransferRequest) error {
	req.SenderWalletID = strings.TrimSpace(req.SenderWalletID)
	req.ReceiverWalletID = strings.TrimSpace(req.ReceiverWalletID)

	if req.SenderWalletID == "" {
		return validationErrorf("senderWalletId is required")
	}
	if req.ReceiverWalletID == "" {
		return validationErrorf("receiverWalletId is required")
	}

	if _, err := uuid.Parse(req.SenderWalletID); err != nil {
		return validationErrorf(fmt.Sprintf("senderWalletId is not a valid UUID: %s", req.SenderWalletID))
	}
	if _, err := uuid.Parse(req.ReceiverWalletID); err != nil {
		return validationErrorf(fmt.Sprintf("receiverWalletId is not a valid UUID: %s", req.ReceiverWalletID))
	}

	if req.SenderWalletID == req.ReceiverWalletID {
		return validationErrorf("cannot transfer to the same wallet")
	}

	if req.Amount < 1 {
		return validationErrorf("amount must be a positive integer (minor units)")
	}

	return nil
}

// ValidateTransferID checks a path parameter before it reaches the store.
func ValidateTransferID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return validationErrorf(fmt.Sprintf("malformed transfer id: %s", id))
	}
	return nil
}
