package voucher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrVoucherNotFound is returned when the store has no document for the booking
var ErrVoucherNotFound = errors.New("voucher not found")

// maxVoucherSize caps the document read into memory
const maxVoucherSize = 10 << 20

// Voucher is a rendered booking voucher (usually a PDF)
type Voucher struct {
	Content     []byte
	ContentType string
	Filename    string
}

// HTTPStore fetches vouchers from the document service
type HTTPStore struct {
	baseURL string
	client  *http.Client
}

// NewHTTPStore creates a new voucher store client
func NewHTTPStore(baseURL string, timeout time.Duration) *HTTPStore {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// DownloadVoucher returns the voucher for a booking
func (s *HTTPStore) DownloadVoucher(ctx context.Context, kind string, bookingID uuid.UUID) (*Voucher, error) {
	if s.baseURL == "" {
		return nil, fmt.Errorf("voucher store is not configured")
	}

	url := fmt.Sprintf("%s/vouchers/%s/%s", s.baseURL, kind, bookingID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create voucher request: %w", err)
	}
	req.Header.Set("Accept", "application/pdf")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch voucher: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrVoucherNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("voucher store returned status %d", resp.StatusCode)
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, maxVoucherSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read voucher: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/pdf"
	}

	return &Voucher{
		Content:     content,
		ContentType: contentType,
		Filename:    fmt.Sprintf("%s-voucher-%s.pdf", kind, bookingID),
	}, nil
}
