package session

import (
	"context"
	"fmt"
	"time"
)

// promotionDwell is how long a promotion page stays open so the visit
// registers.
var promotionDwell = 6 * time.Second

// CompleteDailySet visits every pending card of today's daily set and
// returns how many were opened. Quiz cards are opened but not answered.
func (s *Session) CompleteDailySet(ctx context.Context) (int, error) {
	d, err := s.Dashboard(ctx)
	if err != nil {
		return 0, err
	}
	return s.visitPromotions(ctx, "daily_set", d.DailySet())
}

// CompleteMorePromotions visits every pending "more activities" card.
func (s *Session) CompleteMorePromotions(ctx context.Context) (int, error) {
	d, err := s.Dashboard(ctx)
	if err != nil {
		return 0, err
	}
	return s.visitPromotions(ctx, "more_promotions", d.MorePromotions)
}

func (s *Session) visitPromotions(ctx context.Context, group string, promos []Promotion) (int, error) {
	done := 0
	for _, p := range promos {
		if !p.Pending() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if err := s.page.Navigate(ctx, p.DestinationURL); err != nil {
			s.logger.Warn("session: promotion failed", "group", group, "offer", p.OfferID, "error", err)
			continue
		}
		select {
		case <-ctx.Done():
			return done, ctx.Err()
		case <-time.After(promotionDwell):
		}
		done++
		s.logger.Info("session: promotion visited", "group", group, "offer", p.OfferID, "title", p.Title)
	}
	if err := s.page.Navigate(ctx, RewardsURL); err != nil {
		return done, fmt.Errorf("session: back to dashboard: %w", err)
	}
	return done, nil
}
