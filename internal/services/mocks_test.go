package services

import (
	"context"

	"github.com/giftdrop/backend/internal/payout"
	"github.com/stretchr/testify/mock"
)

type MockPayoutClient struct {
	mock.Mock
}

func (m *MockPayoutClient) Payout(ctx context.Context, req *payout.Request) (*payout.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payout.Response), args.Error(1)
}
