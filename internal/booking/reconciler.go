package booking

import (
	"context"
	"errors"
	"fmt"

	"ms-booking/internal/booking/db"
	"ms-booking/internal/models"
)

// MapGatewayStatus translates a gateway transaction status into an order
// lifecycle status. Both the push and the pull path go through this one
// table; anything the table does not know is a no-op, never an error.
func MapGatewayStatus(ts *models.TransactionStatus) (models.OrderStatus, bool) {
	switch ts.TransactionStatus {
	case "capture":
		switch ts.FraudStatus {
		case "challenge":
			return models.StatusChallenge, true
		case "accept":
			return models.StatusLunas, true
		}
		return "", false
	case "settlement":
		return models.StatusLunas, true
	case "cancel", "deny", "expire":
		return models.StatusGagal, true
	case "pending":
		return models.StatusPending, true
	}
	return "", false
}

// HandleNotification is the push path. The gateway redelivers on anything
// but an acknowledgment, so every outcome here is absorbed: malformed or
// unrelated payloads are logged and dropped, and the pushed status value is
// never trusted. The payload only tells us which order to re-check; the
// re-query against the gateway is the source of truth.
func (s *Service) HandleNotification(ctx context.Context, payload models.NotificationPayload) {
	if payload.OrderRef == "" && payload.TransactionStatus == "" {
		s.log.Warn("WEBHOOK", "ignoring notification without order_id or transaction_status")
		return
	}

	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	authoritative, err := s.gateway.QueryStatus(queryCtx, payload.OrderRef)
	if err != nil {
		s.log.Error("WEBHOOK", fmt.Sprintf("status re-check failed for %s: %v", payload.OrderRef, err))
		return
	}

	if _, err := s.applyStatus(ctx, payload.OrderRef, authoritative); err != nil {
		s.log.Error("WEBHOOK", fmt.Sprintf("reconciliation failed for %s: %v", payload.OrderRef, err))
	}
}

// CheckStatus is the pull path: the client re-fetches the authoritative
// gateway status for a known order on demand. A gateway failure is
// recoverable and mutates nothing.
func (s *Service) CheckStatus(ctx context.Context, orderRef string) (*models.CheckStatusResponse, error) {
	if _, err := s.store.GetOrderByRef(ctx, orderRef); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderRef)
		}
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	authoritative, err := s.gateway.QueryStatus(queryCtx, orderRef)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	return s.applyStatus(ctx, orderRef, authoritative)
}

// applyStatus is the single reconciliation function behind both triggers.
// The transition into issuance is guarded by one conditional update per
// order key, so concurrent push and pull cannot double-issue.
func (s *Service) applyStatus(ctx context.Context, orderRef string, ts *models.TransactionStatus) (*models.CheckStatusResponse, error) {
	target, ok := MapGatewayStatus(ts)
	if !ok {
		order, err := s.store.GetOrderByRef(ctx, orderRef)
		if err != nil {
			return nil, err
		}
		return &models.CheckStatusResponse{OrderStatus: order.Status, Updated: false}, nil
	}

	if target == models.StatusLunas {
		claimed, err := s.store.ClaimPaid(ctx, orderRef)
		if err != nil {
			return nil, err
		}
		if !claimed {
			// Already paid, minted, or terminal. Issuance must not run
			// again.
			order, err := s.store.GetOrderByRef(ctx, orderRef)
			if err != nil {
				return nil, err
			}
			return &models.CheckStatusResponse{OrderStatus: order.Status, Updated: false}, nil
		}

		order, err := s.store.GetOrderByRef(ctx, orderRef)
		if err != nil {
			return nil, err
		}
		s.log.LogSettlement(orderRef, string(models.StatusPending), string(models.StatusLunas))

		if s.events != nil {
			if err := s.events.PublishOrderSettled(*order); err != nil {
				s.log.Warn("KAFKA", fmt.Sprintf("order settled event not published: %v", err))
			}
		}

		finalStatus, mintErr := s.issue(ctx, order)
		return &models.CheckStatusResponse{
			OrderStatus:  finalStatus,
			Updated:      true,
			MintingError: mintErr,
		}, nil
	}

	changed, err := s.store.TransitionStatus(ctx, orderRef, target)
	if err != nil {
		return nil, err
	}
	if changed {
		s.log.LogSettlement(orderRef, "pre-paid", string(target))
	}

	order, err := s.store.GetOrderByRef(ctx, orderRef)
	if err != nil {
		return nil, err
	}
	return &models.CheckStatusResponse{OrderStatus: order.Status, Updated: changed}, nil
}
