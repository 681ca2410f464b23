package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/dairykeeper/internal/common"
	"github.com/dmitrijs2005/dairykeeper/internal/entitlements"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func (s *GRPCServer) Ping(ctx context.Context) error {
	return nil
}

func (s *GRPCServer) GetAggregateStatus(ctx context.Context) (*entitlements.AggregateStatus, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	result, err := s.subscriptions.AggregateStatus(ctx, userID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return result, nil
}

func (s *GRPCServer) GetTabEntitlement(ctx context.Context, tab entitlements.TabID) (*entitlements.TabEntitlement, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	result, err := s.subscriptions.TabEntitlement(ctx, userID, tab)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return result, nil
}

func (s *GRPCServer) ListOffers(ctx context.Context, tab entitlements.TabID) ([]entitlements.SubscriptionOffer, error) {
	result, err := s.subscriptions.Offers(ctx, tab)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return result, nil
}

func (s *GRPCServer) Purchase(ctx context.Context, req entitlements.PurchaseRequest) (*entitlements.SubscriptionGrant, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Purchase request", "user", userID, "offer", req.OfferID)

	result, err := s.subscriptions.Purchase(ctx, userID, req)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return result, nil
}

// toStatus maps service errors onto gRPC codes. Internal details are logged
// and not sent to the client.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, entitlements.ErrInvalidPurchase), errors.Is(err, entitlements.ErrUnknownTab):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	}
	s.logger.Error(ctx, err.Error())
	return status.Error(codes.Internal, "internal error")
}
