package farm

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnsupported is returned by a task the session cannot perform.
var ErrUnsupported = errors.New("farm: task not supported by session")

// Task is a bonus activity run on the desktop session before searching.
// Failures are logged and noted on the result, never fatal.
type Task interface {
	Name() string
	Run(ctx context.Context, s Session) error
}

// Task names accepted in tasks.skip.
const (
	TaskDailySet       = "daily_set"
	TaskMorePromotions = "more_promotions"
)

type dailySetCompleter interface {
	CompleteDailySet(ctx context.Context) (int, error)
}

type promotionsCompleter interface {
	CompleteMorePromotions(ctx context.Context) (int, error)
}

// DailySet opens today's daily-set cards.
type DailySet struct{}

func (DailySet) Name() string { return TaskDailySet }

func (DailySet) Run(ctx context.Context, s Session) error {
	c, ok := s.(dailySetCompleter)
	if !ok {
		return ErrUnsupported
	}
	if _, err := c.CompleteDailySet(ctx); err != nil {
		return fmt.Errorf("daily set: %w", err)
	}
	return nil
}

// MorePromotions opens the pending "more activities" cards.
type MorePromotions struct{}

func (MorePromotions) Name() string { return TaskMorePromotions }

func (MorePromotions) Run(ctx context.Context, s Session) error {
	c, ok := s.(promotionsCompleter)
	if !ok {
		return ErrUnsupported
	}
	if _, err := c.CompleteMorePromotions(ctx); err != nil {
		return fmt.Errorf("more promotions: %w", err)
	}
	return nil
}

// DefaultTasks returns the built-in tasks whose names enabled accepts.
func DefaultTasks(enabled func(name string) bool) []Task {
	all := []Task{DailySet{}, MorePromotions{}}
	if enabled == nil {
		return all
	}
	var out []Task
	for _, t := range all {
		if enabled(t.Name()) {
			out = append(out, t)
		}
	}
	return out
}
