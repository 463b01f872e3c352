package booking

import (
	"context"
	"fmt"

	"ms-booking/internal/models"
)

// issue runs the one-time mint-and-notify sequence for an order that has
// just been claimed into LUNAS. The caller holds the claim, so this runs
// at most once per order. Payment is never rolled back from here: a
// missing wallet leaves the order at LUNAS, a failed mint downgrades it to
// LUNAS_MINT_FAILED, and in every case the e-ticket mail is dispatched
// after the status write so it reflects the final minting outcome.
func (s *Service) issue(ctx context.Context, order *models.Order) (models.OrderStatus, string) {
	finalStatus := models.StatusLunas
	mintErr := ""
	txHash := ""

	user, err := s.store.GetUserByEmail(ctx, order.Email)
	switch {
	case err != nil || user.WalletAddress == "":
		// Fulfillment defect, not a payment error: resolve operationally.
		mintErr = fmt.Sprintf("wallet address not found for %s", order.Email)
		s.log.Error("MINT", fmt.Sprintf("%s: %s, minting skipped", order.GatewayRef, mintErr))

	default:
		tokenURI := s.metadataURI(order.GatewayRef)
		s.log.LogMint(order.GatewayRef, fmt.Sprintf("minting ticket for %s, metadata %s", user.WalletAddress, tokenURI))

		hash, err := s.minter.Mint(ctx, []string{user.WalletAddress}, tokenURI)
		if err != nil {
			// No inline retry: an ambiguous partial failure must not
			// risk a duplicate mint. Out-of-band recovery only.
			mintErr = err.Error()
			finalStatus = models.StatusLunasMintFailed
			txHash = models.MintFailedHash
			if _, err := s.store.SetMintOutcome(ctx, order.GatewayRef, finalStatus, txHash); err != nil {
				s.log.Error("MINT", fmt.Sprintf("%s: failure record write failed: %v", order.GatewayRef, err))
			}
			s.log.Error("MINT", fmt.Sprintf("%s: minting failed: %s", order.GatewayRef, mintErr))
			if s.events != nil {
				if err := s.events.PublishMintFailed(*order, mintErr); err != nil {
					s.log.Warn("KAFKA", fmt.Sprintf("mint failed event not published: %v", err))
				}
			}
		} else {
			finalStatus = models.StatusMinted
			txHash = hash
			if _, err := s.store.SetMintOutcome(ctx, order.GatewayRef, finalStatus, txHash); err != nil {
				s.log.Error("MINT", fmt.Sprintf("%s: outcome write failed: %v", order.GatewayRef, err))
			}
			s.log.LogMint(order.GatewayRef, fmt.Sprintf("minted, hash %s", hash))
			if s.events != nil {
				if err := s.events.PublishTicketMinted(*order, hash); err != nil {
					s.log.Warn("KAFKA", fmt.Sprintf("ticket minted event not published: %v", err))
				}
			}
		}
	}

	// Status write above happens-before this dispatch; the mail always
	// reflects the final minting outcome. Dispatch itself is detached and
	// must never fail the request.
	s.dispatchETicket(*order, finalStatus, txHash)

	return finalStatus, mintErr
}

func (s *Service) dispatchETicket(order models.Order, status models.OrderStatus, txHash string) {
	if s.mailer == nil {
		return
	}
	order.Status = status
	order.MintHash = txHash

	go func() {
		if err := s.mailer.SendETicket(order, txHash); err != nil {
			s.log.Error("MAIL", fmt.Sprintf("e-ticket mail to %s failed: %v", order.Email, err))
			return
		}
		s.log.LogMail(order.Email, fmt.Sprintf("e-ticket sent for %s", order.GatewayRef))
	}()
}
