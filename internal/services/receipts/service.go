package receipts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
)

// Receipt is the archived record of a confirmed payment. One JSON object
// per purchase, keyed so a support operator can find it from the purchase id.
type Receipt struct {
	PurchaseID        int64     `json:"purchase_id"`
	UserID            int64     `json:"user_id"`
	CourseIDs         []int64   `json:"course_ids"`
	TotalMinor        int64     `json:"total_minor"`
	DiscountMinor     int64     `json:"discount_minor"`
	FinalMinor        int64     `json:"final_minor"`
	Currency          string    `json:"currency"`
	PaymentMethod     string    `json:"payment_method"`
	ProviderPaymentID string    `json:"provider_payment_id"`
	ConfirmedAt       time.Time `json:"confirmed_at"`
}

type Service struct {
	client *minio.Client
	bucket string
}

func NewService(client *minio.Client, bucket string) *Service {
	return &Service{client: client, bucket: bucket}
}

// Archive stores the receipt under receipts/<year>/<purchase id>.json.
// Failures are reported to the caller, which logs and moves on; receipts
// are an audit convenience, not part of the payment transaction.
func (s *Service) Archive(ctx context.Context, receipt Receipt) error {
	if s == nil || s.client == nil || s.bucket == "" {
		return fmt.Errorf("receipt storage is not configured")
	}
	if receipt.PurchaseID <= 0 {
		return fmt.Errorf("receipt purchase id is required")
	}

	body, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}

	objectName := fmt.Sprintf("receipts/%d/%d.json", receipt.ConfirmedAt.Year(), receipt.PurchaseID)

	_, err = s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("store receipt %s: %w", objectName, err)
	}

	return nil
}
