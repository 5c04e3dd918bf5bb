package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/kmassidik/payflow/internal/common/logger"
)

type MockService struct {
	InitiateFunc    func(ctx context.Context, req *CreateTransferRequest) (*Transfer, error)
	GetTransferFunc func(ctx context.Context, id string) (*Transfer, error)
}

func (m *MockService) Initiate(ctx context.Context, req *CreateTransferRequest) (*Transfer, error) {
	if m.InitiateFunc != nil {
		return m.InitiateFunc(ctx, req)
	}
	return nil, fmt.Errorf("InitiateFunc not set")
}

func (m *MockService) GetTransfer(ctx context.Context, id string) (*Transfer, error) {
	if m.GetTransferFunc != nil {
		return m.GetTransferFunc(ctx, id)
	}
	return nil, fmt.Errorf("GetTransferFunc not set")
}

var _ ServiceInterface = (*MockService)(nil)

func newTestMux(service ServiceInterface) *http.ServeMux {
	h := NewHandler(service, logger.New("test"))
	mux := http.NewServeMux()
	h.RegisterRoutes(mux, "") // auth disabled
	return mux
}

func TestHandlerCreateTransferAccepted(t *testing.T) {
	transferID := uuid.NewString()

	mock := &MockService{
		InitiateFunc: func(ctx context.Context, req *CreateTransferRequest) (*Transfer, error) {
			return &Transfer{ID: transferID, Status: StatusPending, Amount: req.Amount}, nil
		},
	}

	body, _ := json.Marshal(CreateTransferRequest{
		SenderWalletID:   uuid.NewString(),
		ReceiverWalletID: uuid.NewString(),
		Amount:           100,
	})

	req := httptest.NewRequest(http.MethodPost, "/transfers", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	newTestMux(mock).ServeHTTP(rec, req)

	// Initiation is asynchronous: the money has not moved yet.
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d (%s)", rec.Code, rec.Body.String())
	}

	var got Transfer
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if got.ID != transferID || got.Status != StatusPending {
		t.Errorf("Expected PENDING transfer %s, got %+v", transferID, got)
	}
}

func TestHandlerCreateTransferValidationError(t *testing.T) {
	mock := &MockService{
		InitiateFunc: func(ctx context.Context, req *CreateTransferRequest) (*Transfer, error) {
			return nil, &ValidationError{Message: "amount must be a positive integer (minor units)"}
		},
	}

	body, _ := json.Marshal(CreateTransferRequest{
		SenderWalletID:   uuid.NewString(),
		ReceiverWalletID: uuid.NewString(),
		Amount:           -1,
	})

	req := httptest.NewRequest(http.MethodPost, "/transfers", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	newTestMux(mock).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestHandlerCreateTransferRejectsUnknownFields(t *testing.T) {
	mock := &MockService{}

	req := httptest.NewRequest(http.MethodPost, "/transfers",
		bytes.NewReader([]byte(`{"senderWalletId":"a","receiverWalletId":"b","amount":1,"status":"COMPLETED"}`)))
	rec := httptest.NewRecorder()
	newTestMux(mock).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestHandlerGetTransfer(t *testing.T) {
	transferID := uuid.NewString()
	reason := "saga timeout"

	mock := &MockService{
		GetTransferFunc: func(ctx context.Context, id string) (*Transfer, error) {
			if id == transferID {
				return &Transfer{ID: transferID, Status: StatusFailed, FailureReason: &reason}, nil
			}
			return nil, ErrTransferNotFound
		},
	}
	mux := newTestMux(mock)

	req := httptest.NewRequest(http.MethodGet, "/transfers/"+transferID, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var got Transfer
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Status != StatusFailed || got.FailureReason == nil || *got.FailureReason != reason {
		t.Errorf("Expected failed transfer with reason, got %+v", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/transfers/"+uuid.NewString(), nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown transfer, got %d", rec.Code)
	}
}
