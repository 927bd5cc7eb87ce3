package cron

import (
	"context"
	"fmt"

	"github.com/naijamart/storefront-backend/pkg/logger"
)

type ticketCloser interface {
	CloseStale(ctx context.Context) (int, error)
}

// NewTicketAutoCloseJob closes resolved tickets whose in-process timer was
// lost, for example across a restart.
func NewTicketAutoCloseJob(logg *logger.Logger, tickets ticketCloser) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if tickets == nil {
		return nil, fmt.Errorf("tickets service required")
	}
	return &ticketAutoCloseJob{logg: logg, tickets: tickets}, nil
}

type ticketAutoCloseJob struct {
	logg    *logger.Logger
	tickets ticketCloser
}

func (j *ticketAutoCloseJob) Name() string { return "ticket-autoclose" }

func (j *ticketAutoCloseJob) Run(ctx context.Context) error {
	closed, err := j.tickets.CloseStale(ctx)
	if closed > 0 {
		j.logg.Info(j.logg.WithField(ctx, "closed", closed), "stale resolved tickets closed")
	}
	if err != nil {
		return fmt.Errorf("ticket autoclose: %w", err)
	}
	return nil
}
