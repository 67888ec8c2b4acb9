package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/matchup/internal/model"
	"github.com/iliyamo/matchup/internal/notify"
	"github.com/iliyamo/matchup/internal/repository"
)

// Actor is the authenticated caller of a lifecycle operation.
type Actor struct {
	UserID string
	Role   string
}

func (a Actor) IsAdmin() bool { return a.Role == model.RoleAdmin }

// CreateGameInput is the body of a create request.  Limits mirror what the
// clients enforce.
type CreateGameInput struct {
	Title          string           `json:"title" validate:"required,min=3,max=100"`
	Sport          model.Sport      `json:"sport" validate:"required,oneof=football cricket basketball volleyball badminton"`
	VenueID        *string          `json:"venueId" validate:"omitempty,min=1"`
	CustomLocation *string          `json:"customLocation" validate:"omitempty,max=200"`
	Latitude       float64          `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude      float64          `json:"longitude" validate:"gte=-180,lte=180"`
	DateTime       time.Time        `json:"dateTime" validate:"required"`
	Duration       int              `json:"duration" validate:"gte=30,lte=480"`
	MaxPlayers     int              `json:"maxPlayers" validate:"gte=2,lte=50"`
	MinPlayers     int              `json:"minPlayers" validate:"omitempty,gte=2,lte=50"`
	SkillLevel     model.SkillLevel `json:"skillLevel" validate:"omitempty,oneof=beginner intermediate advanced any"`
	Description    *string          `json:"description" validate:"omitempty,max=1000"`
	Price          *int             `json:"price" validate:"omitempty,gte=0,lte=10000"`
}

// UpdateGameInput is a partial update; nil fields are left unchanged.
type UpdateGameInput struct {
	Title       *string           `json:"title" validate:"omitempty,min=3,max=100"`
	DateTime    *time.Time        `json:"dateTime"`
	Duration    *int              `json:"duration" validate:"omitempty,gte=30,lte=480"`
	MaxPlayers  *int              `json:"maxPlayers" validate:"omitempty,gte=2,lte=50"`
	MinPlayers  *int              `json:"minPlayers" validate:"omitempty,gte=2,lte=50"`
	SkillLevel  *model.SkillLevel `json:"skillLevel" validate:"omitempty,oneof=beginner intermediate advanced any"`
	Description *string           `json:"description" validate:"omitempty,max=1000"`
	Price       *int              `json:"price" validate:"omitempty,gte=0,lte=10000"`
	Status      *model.GameStatus `json:"status" validate:"omitempty,oneof=upcoming in_progress completed cancelled"`
}

// GameDetail is a game with its participants as seen by one viewer.
type GameDetail struct {
	model.Game
	Host              model.PublicUser    `json:"host"`
	CurrentPlayers    int                 `json:"currentPlayers"`
	WaitlistCount     int                 `json:"waitlistCount"`
	ConfirmedPlayers  []model.Participant `json:"confirmedPlayers"`
	WaitlistedPlayers []model.Participant `json:"waitlistedPlayers"`
	UserRSVPStatus    *model.RSVPStatus   `json:"userRsvpStatus"`
	IsHost            bool                `json:"isHost"`
}

// GameService is the game lifecycle manager.
type GameService struct {
	store     repository.RecordStore
	txTimeout time.Duration
	validate  *validator.Validate
	now       func() time.Time
	effects
}

// NewGameService wires the lifecycle manager to its store and side-effect
// ports.
func NewGameService(store repository.RecordStore, pub Publisher, disp notify.Dispatcher, txTimeout time.Duration) *GameService {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &GameService{
		store:     store,
		txTimeout: txTimeout,
		validate:  v,
		now:       func() time.Time { return time.Now().UTC() },
		effects: effects{
			log:        logrus.WithField("component", "games"),
			publisher:  pub,
			dispatcher: disp,
		},
	}
}

func (s *GameService) check(in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		return invalid("%s", strings.Join(msgs, "; "))
	}
	return invalid("%v", err)
}

// Create validates in and stores the game together with the host's
// confirmed RSVP, which takes the first position.
func (s *GameService) Create(ctx context.Context, actor Actor, in CreateGameInput) (*model.Game, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}
	if in.VenueID == nil && (in.CustomLocation == nil || strings.TrimSpace(*in.CustomLocation) == "") {
		return nil, invalid("venueId or customLocation is required")
	}
	if !in.DateTime.After(s.now()) {
		return nil, invalid("dateTime must be in the future")
	}
	if in.MinPlayers == 0 {
		in.MinPlayers = 2
	}
	if in.MinPlayers > in.MaxPlayers {
		return nil, invalid("minPlayers cannot exceed maxPlayers")
	}
	if in.SkillLevel == "" {
		in.SkillLevel = model.SkillAny
	}

	g := &model.Game{
		ID:             uuid.NewString(),
		Title:          strings.TrimSpace(in.Title),
		Sport:          in.Sport,
		HostID:         actor.UserID,
		VenueID:        in.VenueID,
		CustomLocation: in.CustomLocation,
		Latitude:       in.Latitude,
		Longitude:      in.Longitude,
		DateTime:       in.DateTime.UTC(),
		Duration:       in.Duration,
		MaxPlayers:     in.MaxPlayers,
		MinPlayers:     in.MinPlayers,
		SkillLevel:     in.SkillLevel,
		Description:    in.Description,
		Price:          in.Price,
		Status:         model.GameUpcoming,
		RSVPSeq:        1,
	}
	host := &model.RSVP{UserID: actor.UserID, Status: model.RSVPConfirmed, Position: 1}

	tctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()
	if err := s.store.CreateGame(tctx, g, host); err != nil {
		return nil, translate(err)
	}
	s.log.WithFields(logrus.Fields{"game_id": g.ID, "user_id": actor.UserID}).Info("game created")
	return g, nil
}

// Get returns the game with its confirmed and waitlisted players.
// viewerID may be empty for anonymous callers.
func (s *GameService) Get(ctx context.Context, gameID, viewerID string) (*GameDetail, error) {
	g, err := s.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, translate(err)
	}
	parts, err := s.store.ListParticipants(ctx, gameID)
	if err != nil {
		return nil, translate(err)
	}

	d := &GameDetail{
		Game:              *g,
		Host:              model.PublicUser{ID: g.HostID},
		ConfirmedPlayers:  []model.Participant{},
		WaitlistedPlayers: []model.Participant{},
		IsHost:            viewerID != "" && viewerID == g.HostID,
	}
	for _, p := range parts {
		switch p.Status {
		case model.RSVPConfirmed:
			d.ConfirmedPlayers = append(d.ConfirmedPlayers, p)
		case model.RSVPWaitlisted:
			d.WaitlistedPlayers = append(d.WaitlistedPlayers, p)
		}
		if viewerID != "" && p.UserID == viewerID {
			st := p.Status
			d.UserRSVPStatus = &st
		}
		if p.UserID == g.HostID {
			d.Host = p.User
		}
	}
	d.CurrentPlayers = len(d.ConfirmedPlayers)
	d.WaitlistCount = len(d.WaitlistedPlayers)
	return d, nil
}

// Update applies a partial update on behalf of the host or an admin.
//
// Status moves forward only (upcoming, in_progress, completed) and may be
// set to cancelled from any non-terminal state.  maxPlayers cannot drop
// below the confirmed head count; raising it on a game that is not
// completed or cancelled promotes waitlisted players into the new seats
// in FIFO order.  Cancelling
// notifies every confirmed and waitlisted player, moving the start time
// of an upcoming game notifies the confirmed players, and every
// successful update broadcasts game-updated.
func (s *GameService) Update(ctx context.Context, actor Actor, gameID string, in UpdateGameInput) (*model.Game, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}

	var (
		game                   model.Game
		promoted               []string
		cancelled, rescheduled bool
		confirmedIDs, waitIDs  []string
	)
	err := runGameTx(ctx, s.store, s.txTimeout, gameID, func(ctx context.Context, tx repository.GameTx) error {
		g, err := tx.FindGame(ctx, gameID)
		if err != nil {
			return err
		}
		if !canModify(actor, g) {
			return ErrForbidden
		}
		prev := *g

		applyUpdate(g, in)
		if !prev.Status.CanTransitionTo(g.Status) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, prev.Status, g.Status)
		}
		if g.MinPlayers > g.MaxPlayers {
			return invalid("minPlayers cannot exceed maxPlayers")
		}

		confirmed, err := tx.CountConfirmedRSVPs(ctx, gameID)
		if err != nil {
			return err
		}
		if in.MaxPlayers != nil && g.MaxPlayers < confirmed {
			return invalid("maxPlayers cannot be lower than the %d confirmed players", confirmed)
		}
		if err := tx.UpdateGame(ctx, g); err != nil {
			return err
		}

		if !g.Status.Terminal() {
			for free := g.MaxPlayers - confirmed; free > 0; free-- {
				next, err := tx.OldestWaitlisted(ctx, gameID)
				if errors.Is(err, repository.ErrRSVPNotFound) {
					break
				}
				if err != nil {
					return err
				}
				next.Status = model.RSVPConfirmed
				if err := tx.UpsertRSVP(ctx, next); err != nil {
					return err
				}
				promoted = append(promoted, next.UserID)
			}
		}

		cancelled = prev.Status != model.GameCancelled && g.Status == model.GameCancelled
		rescheduled = prev.Status == model.GameUpcoming && g.Status == model.GameUpcoming &&
			!g.DateTime.Equal(prev.DateTime)
		if cancelled || rescheduled {
			active, err := tx.ListRSVPs(ctx, gameID, model.RSVPConfirmed, model.RSVPWaitlisted)
			if err != nil {
				return err
			}
			for _, r := range active {
				if r.Status == model.RSVPConfirmed {
					confirmedIDs = append(confirmedIDs, r.UserID)
				} else {
					waitIDs = append(waitIDs, r.UserID)
				}
			}
		}
		game = *g
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"game_id": gameID, "user_id": actor.UserID, "status": game.Status, "promoted": len(promoted),
	}).Info("game updated")

	for _, id := range promoted {
		s.notify(ctx, notify.Event{Kind: notify.PlayerPromoted, Game: game, ActorID: actor.UserID, Player: model.PublicUser{ID: id}})
		s.publish(ctx, gameID, EventPlayerPromoted, PlayerPayload{UserID: id})
	}
	switch {
	case cancelled:
		s.notify(ctx, notify.Event{Kind: notify.GameCancelled, Game: game, ActorID: actor.UserID, Confirmed: confirmedIDs, Waitlisted: waitIDs})
	case rescheduled:
		s.notify(ctx, notify.Event{Kind: notify.GameRescheduled, Game: game, ActorID: actor.UserID, Confirmed: confirmedIDs, Waitlisted: waitIDs})
	}
	s.publish(ctx, gameID, EventGameUpdated, game)
	return &game, nil
}

// Cancel sets the game's status to cancelled.
func (s *GameService) Cancel(ctx context.Context, actor Actor, gameID string) (*model.Game, error) {
	st := model.GameCancelled
	return s.Update(ctx, actor, gameID, UpdateGameInput{Status: &st})
}

// Delete removes a game the host or an admin no longer wants.  A game that
// still has players other than the host must be cancelled instead.
func (s *GameService) Delete(ctx context.Context, actor Actor, gameID string) error {
	err := runGameTx(ctx, s.store, s.txTimeout, gameID, func(ctx context.Context, tx repository.GameTx) error {
		g, err := tx.FindGame(ctx, gameID)
		if err != nil {
			return err
		}
		if !canModify(actor, g) {
			return ErrForbidden
		}
		active, err := tx.ListRSVPs(ctx, gameID, model.RSVPConfirmed, model.RSVPWaitlisted)
		if err != nil {
			return err
		}
		for _, r := range active {
			if r.UserID != g.HostID {
				return ErrGameHasPlayers
			}
		}
		return tx.DeleteGame(ctx, gameID)
	})
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"game_id": gameID, "user_id": actor.UserID}).Info("game deleted")
	return nil
}

// ListHosted returns the games userID hosts, latest first.
func (s *GameService) ListHosted(ctx context.Context, userID string) ([]model.GameSummary, error) {
	games, err := s.store.ListHostedGames(ctx, userID)
	return games, translate(err)
}

// ListJoined returns the games userID is confirmed or waitlisted for,
// soonest first.
func (s *GameService) ListJoined(ctx context.Context, userID string) ([]model.GameSummary, error) {
	games, err := s.store.ListJoinedGames(ctx, userID)
	return games, translate(err)
}

func canModify(actor Actor, g *model.Game) bool {
	return actor.IsAdmin() || (actor.UserID != "" && actor.UserID == g.HostID)
}

func applyUpdate(g *model.Game, in UpdateGameInput) {
	if in.Title != nil {
		g.Title = strings.TrimSpace(*in.Title)
	}
	if in.DateTime != nil {
		g.DateTime = in.DateTime.UTC()
	}
	if in.Duration != nil {
		g.Duration = *in.Duration
	}
	if in.MaxPlayers != nil {
		g.MaxPlayers = *in.MaxPlayers
	}
	if in.MinPlayers != nil {
		g.MinPlayers = *in.MinPlayers
	}
	if in.SkillLevel != nil {
		g.SkillLevel = *in.SkillLevel
	}
	if in.Description != nil {
		g.Description = in.Description
	}
	if in.Price != nil {
		g.Price = in.Price
	}
	if in.Status != nil {
		g.Status = *in.Status
	}
}
