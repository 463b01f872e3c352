package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ms-booking/internal/booking/db"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

// Store is the order record store. It exclusively owns Order documents;
// the seat ledger, the reconciler and the issuance pipeline all read and
// write through it.
type Store interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByRef(ctx context.Context, ref string) (*models.Order, error)
	GetOrderByHash(ctx context.Context, hash string) (*models.Order, error)
	GetOrdersByEmail(ctx context.Context, email string) ([]models.Order, error)
	ClaimPaid(ctx context.Context, ref string) (bool, error)
	TransitionStatus(ctx context.Context, ref string, to models.OrderStatus) (bool, error)
	SetMintOutcome(ctx context.Context, ref string, status models.OrderStatus, hash string) (bool, error)

	HeldSeats(ctx context.Context, routeLabel, operator, timeSlot, date string) ([]string, error)
	HeldSeatsByDestination(ctx context.Context, destination, date string) ([]string, error)
	IsSeatHeld(ctx context.Context, routeLabel, operator, timeSlot, date, seatNumber string) (bool, error)

	GetActivePromo(ctx context.Context, code string) (*models.Promo, error)
	ConsumePromo(ctx context.Context, code string) (*models.Promo, error)
	RestorePromo(ctx context.Context, code string) error

	GetRouteByID(ctx context.Context, id int64) (*models.Route, error)
	SearchRoutes(ctx context.Context, origin, destination string, limit int) ([]models.Route, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	PaidOrderStats(ctx context.Context) (*models.AdminStats, error)
}

// SeatHolder is the short-TTL hold taken before the gateway round trip.
// The store's uniqueness constraint remains the authority; the hold only
// keeps a second buyer out of the gateway while the first one is paying.
type SeatHolder interface {
	HoldSeat(ctx context.Context, seatKey, orderRef string) (bool, error)
	ReleaseSeat(ctx context.Context, seatKey, orderRef string) error
}

// Gateway is the payment session gateway (external collaborator).
type Gateway interface {
	CreateSession(ctx context.Context, req models.SessionRequest) (*models.Session, error)
	QueryStatus(ctx context.Context, orderRef string) (*models.TransactionStatus, error)
}

// Minter mints one immutable ticket token. It is never retried inline: an
// ambiguous partial failure must not risk a duplicate mint.
type Minter interface {
	Mint(ctx context.Context, recipients []string, metadataURI string) (string, error)
}

// Mailer dispatches the e-ticket notification. Failures are logged only.
type Mailer interface {
	SendETicket(order models.Order, txHash string) error
}

// EventPublisher streams order lifecycle events. Publish failures never
// fail the request.
type EventPublisher interface {
	PublishOrderCreated(order models.Order) error
	PublishOrderSettled(order models.Order) error
	PublishTicketMinted(order models.Order, hash string) error
	PublishMintFailed(order models.Order, reason string) error
}

type Service struct {
	store   Store
	seats   SeatHolder
	gateway Gateway
	minter  Minter
	mailer  Mailer
	events  EventPublisher
	log     *logger.Logger

	// baseURL roots the metadata URI handed to the minting network.
	baseURL      string
	queryTimeout time.Duration
}

func NewService(store Store, seats SeatHolder, gateway Gateway, minter Minter, mailer Mailer, events EventPublisher, log *logger.Logger, baseURL string, queryTimeout time.Duration) *Service {
	if queryTimeout <= 0 {
		queryTimeout = 10 * time.Second
	}
	return &Service{
		store:        store,
		seats:        seats,
		gateway:      gateway,
		minter:       minter,
		mailer:       mailer,
		events:       events,
		log:          log,
		baseURL:      strings.TrimRight(baseURL, "/"),
		queryTimeout: queryTimeout,
	}
}

// seatKey is the tuple seat uniqueness is scoped to.
func seatKey(routeLabel, operator, timeSlot, date, seatNumber string) string {
	return strings.Join([]string{routeLabel, operator, timeSlot, date, seatNumber}, "|")
}

// ---------------- PURCHASE ----------------

// Purchase runs one purchase attempt end to end: seat hold, price
// resolution, gateway session, order commit. Seat and amount validation
// fail before any gateway call; the order row is only committed after the
// session exists, and the promo unit consumed along the way is restored on
// every failure path.
func (s *Service) Purchase(ctx context.Context, req models.PurchaseRequest) (*models.PurchaseResponse, error) {
	user, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %s", ErrNotFound, req.Email)
		}
		return nil, err
	}

	route, err := s.store.GetRouteByID(ctx, req.RouteID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: route %d", ErrNotFound, req.RouteID)
		}
		return nil, err
	}

	label := route.Label()
	key := seatKey(label, route.Operator, route.TimeSlot, req.TravelDate, req.SeatNumber)

	held, err := s.store.IsSeatHeld(ctx, label, route.Operator, route.TimeSlot, req.TravelDate, req.SeatNumber)
	if err != nil {
		return nil, err
	}
	if held {
		return nil, fmt.Errorf("%w: seat %s", ErrSeatConflict, req.SeatNumber)
	}

	gatewayRef := utils.GenerateGatewayRef()

	if s.seats != nil {
		ok, err := s.seats.HoldSeat(ctx, key, gatewayRef)
		if err != nil {
			s.log.Warn("SEATS", fmt.Sprintf("seat hold unavailable, relying on store constraint: %v", err))
		} else if !ok {
			return nil, fmt.Errorf("%w: seat %s", ErrSeatConflict, req.SeatNumber)
		}
	}

	finalPrice, discount, promoConsumed, err := s.resolvePrice(ctx, route.Fare, req.PromoCode)
	if err != nil {
		s.releaseSeat(key, gatewayRef)
		return nil, err
	}

	// The gateway cannot open a zero or negative transaction.
	if finalPrice < 1 {
		s.rollbackPurchase(key, gatewayRef, req.PromoCode, promoConsumed)
		return nil, fmt.Errorf("%w: total %d", ErrInvalidAmount, finalPrice)
	}

	session, err := s.gateway.CreateSession(ctx, models.SessionRequest{
		OrderRef:      gatewayRef,
		GrossAmount:   finalPrice,
		ItemName:      fmt.Sprintf("%s Trip", route.Operator),
		CustomerName:  req.PassengerName,
		CustomerEmail: user.Email,
		CustomerPhone: req.PassengerNIK,
	})
	if err != nil {
		s.rollbackPurchase(key, gatewayRef, req.PromoCode, promoConsumed)
		s.log.LogGateway("SESSION", gatewayRef, fmt.Sprintf("session creation failed: %v", err))
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	order := &models.Order{
		OrderID:       uuid.NewString(),
		GatewayRef:    gatewayRef,
		SnapToken:     session.Token,
		Email:         user.Email,
		RouteID:       route.ID,
		Route:         label,
		Operator:      route.Operator,
		TimeSlot:      route.TimeSlot,
		VehicleType:   route.VehicleType,
		Category:      route.Category,
		TravelDate:    req.TravelDate,
		SeatNumber:    req.SeatNumber,
		BasePrice:     route.Fare,
		Discount:      discount,
		Total:         finalPrice,
		PassengerName: req.PassengerName,
		PassengerNIK:  req.PassengerNIK,
		PickupPoint:   req.PickupPoint,
		DropPoint:     req.DropPoint,
		Status:        models.StatusPending,
		CreatedAt:     time.Now(),
	}

	if err := s.store.CreateOrder(ctx, order); err != nil {
		s.rollbackPurchase(key, gatewayRef, req.PromoCode, promoConsumed)
		if errors.Is(err, db.ErrSeatTaken) {
			return nil, fmt.Errorf("%w: seat %s", ErrSeatConflict, req.SeatNumber)
		}
		return nil, err
	}

	s.log.LogOrder("CREATE", gatewayRef, fmt.Sprintf("seat %s on %s (%s %s) total %d", req.SeatNumber, label, route.Operator, route.TimeSlot, finalPrice))

	if s.events != nil {
		if err := s.events.PublishOrderCreated(*order); err != nil {
			s.log.Warn("KAFKA", fmt.Sprintf("order created event not published: %v", err))
		}
	}

	// The redis hold lapses on its own TTL; the PENDING row now guards
	// the seat.
	return &models.PurchaseResponse{
		OrderRef:    gatewayRef,
		Token:       session.Token,
		RedirectURL: session.RedirectURL,
	}, nil
}

// resolvePrice applies an optional promo code. An unknown or exhausted
// code silently falls back to the base fare; a matching one consumes one
// quota unit atomically, so two buyers racing for the last unit cannot
// both get the discount.
func (s *Service) resolvePrice(ctx context.Context, baseFare int64, promoCode string) (finalPrice, discount int64, promoConsumed bool, err error) {
	if promoCode == "" {
		return baseFare, 0, false, nil
	}

	promo, err := s.store.ConsumePromo(ctx, promoCode)
	if err != nil {
		return 0, 0, false, err
	}
	if promo == nil {
		return baseFare, 0, false, nil
	}

	discount = promo.Discount
	finalPrice = baseFare - discount
	if finalPrice < 0 {
		finalPrice = 0
	}
	return finalPrice, discount, true, nil
}

// rollbackPurchase undoes the side effects of a purchase attempt that did
// not commit an order: the promo unit and the seat hold. Both writes run
// on a fresh context; a canceled request must not leave the quota short
// or the seat held.
func (s *Service) rollbackPurchase(key, orderRef, promoCode string, promoConsumed bool) {
	if promoConsumed {
		if err := s.store.RestorePromo(context.Background(), promoCode); err != nil {
			s.log.Error("PROMO", fmt.Sprintf("quota restore failed for %s: %v", promoCode, err))
		}
	}
	s.releaseSeat(key, orderRef)
}

func (s *Service) releaseSeat(key, orderRef string) {
	if s.seats == nil {
		return
	}
	if err := s.seats.ReleaseSeat(context.Background(), key, orderRef); err != nil {
		s.log.Warn("SEATS", fmt.Sprintf("seat hold release failed for %s: %v", key, err))
	}
}

// ---------------- SEAT LEDGER READS ----------------

func (s *Service) BookedSeats(ctx context.Context, destination, date string) ([]string, error) {
	seats, err := s.store.HeldSeatsByDestination(ctx, destination, date)
	if err != nil {
		return nil, err
	}
	if seats == nil {
		seats = []string{}
	}
	return seats, nil
}

// RoutesWithAvailability decorates matching routes with the seat ledger's
// answer for one travel date.
func (s *Service) RoutesWithAvailability(ctx context.Context, origin, destination, date string) ([]models.RouteAvailability, error) {
	if date == "" {
		date = "DEFAULT"
	}

	routes, err := s.store.SearchRoutes(ctx, origin, destination, 50)
	if err != nil {
		return nil, err
	}

	results := make([]models.RouteAvailability, 0, len(routes))
	for _, route := range routes {
		booked, err := s.store.HeldSeats(ctx, route.Label(), route.Operator, route.TimeSlot, date)
		if err != nil {
			return nil, err
		}
		if booked == nil {
			booked = []string{}
		}
		remaining := route.Capacity - len(booked)
		results = append(results, models.RouteAvailability{
			Route:          route,
			RemainingSeats: remaining,
			BookedSeats:    booked,
			Full:           remaining <= 0,
		})
	}
	return results, nil
}

// ---------------- PROMO PROBE ----------------

// CheckPromo is the read-only validity check; it never consumes quota.
func (s *Service) CheckPromo(ctx context.Context, code string) (*models.PromoCheckResponse, error) {
	promo, err := s.store.GetActivePromo(ctx, code)
	if errors.Is(err, db.ErrNotFound) {
		return &models.PromoCheckResponse{Valid: false}, nil
	}
	if err != nil {
		return nil, err
	}
	return &models.PromoCheckResponse{Valid: true, Discount: promo.Discount}, nil
}

// ---------------- LOOKUPS ----------------

func (s *Service) OrderHistory(ctx context.Context, email string) ([]models.Order, error) {
	return s.store.GetOrdersByEmail(ctx, email)
}

func (s *Service) VerifyTicket(ctx context.Context, hash string) (*models.VerifyTicketResponse, error) {
	order, err := s.store.GetOrderByHash(ctx, hash)
	if errors.Is(err, db.ErrNotFound) {
		return &models.VerifyTicketResponse{Valid: false}, nil
	}
	if err != nil {
		return nil, err
	}
	return &models.VerifyTicketResponse{
		Valid: true,
		Data: &models.TicketDetail{
			PassengerName: order.PassengerName,
			Route:         order.Route,
			TravelDate:    order.TravelDate,
			TimeSlot:      order.TimeSlot,
			Seat:          order.SeatNumber,
			Status:        order.Status,
		},
	}, nil
}

func (s *Service) Stats(ctx context.Context) (*models.AdminStats, error) {
	return s.store.PaidOrderStats(ctx)
}

// MetadataFor is the stable projection of an order served to the minting
// network as the ticket token's metadata.
func (s *Service) MetadataFor(ctx context.Context, ref string) (*models.TicketMetadata, error) {
	order, err := s.store.GetOrderByRef(ctx, ref)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: order %s", ErrNotFound, ref)
		}
		return nil, err
	}

	return &models.TicketMetadata{
		Name:        fmt.Sprintf("Tiket Bus %s", order.Route),
		Description: fmt.Sprintf("Tiket perjalanan %s untuk %s pada %s", order.Route, order.PassengerName, order.TravelDate),
		Image:       s.baseURL + "/logos/Logo.png",
		Attributes: []models.MetadataAttribute{
			{TraitType: "Passenger", Value: order.PassengerName},
			{TraitType: "Route", Value: order.Route},
			{TraitType: "Date", Value: order.TravelDate},
			{TraitType: "Seat", Value: order.SeatNumber},
		},
	}, nil
}

func (s *Service) metadataURI(orderRef string) string {
	return fmt.Sprintf("%s/api/tickets/metadata/%s", s.baseURL, orderRef)
}
