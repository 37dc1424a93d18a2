package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-engine/internal/config"
	"github.com/spec-kit/ticket-engine/internal/service"
	apperrors "github.com/spec-kit/ticket-engine/pkg/util/errorutil"
)

// AssignmentRunner runs one scheduling pass for an organization.
type AssignmentRunner interface {
	RunAssignmentBatch(ctx context.Context, organizationID, trigger string) (*service.AssignmentResult, error)
}

// SLASweeper emits breach alerts for an organization.
type SLASweeper interface {
	SweepOrganization(ctx context.Context, organizationID string) (int, error)
}

// OrganizationSource lists organizations that currently have open work.
type OrganizationSource interface {
	ListActiveOrganizations(ctx context.Context) ([]string, error)
}

// SchedulerDependencies bundles the periodic jobs' collaborators.
type SchedulerDependencies struct {
	Assignments   AssignmentRunner
	SLA           SLASweeper
	Organizations OrganizationSource
	Locker        service.Locker
	Logger        *zap.Logger
	Config        config.SchedulerConfig
}

// Scheduler triggers assignment passes and SLA sweeps on cron schedules.
type Scheduler struct {
	cron        *cron.Cron
	assignments AssignmentRunner
	sla         SLASweeper
	orgs        OrganizationSource
	locker      service.Locker
	logger      *zap.Logger
	lockTTL     time.Duration
}

// NewScheduler registers the periodic jobs without starting them.
func NewScheduler(deps SchedulerDependencies) (*Scheduler, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	lockTTL := deps.Config.LockTTL()
	if lockTTL <= 0 {
		lockTTL = time.Minute
	}
	logger = logger.Named("scheduler")
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger))
	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(
				cron.Recover(cronLogger),
				cron.SkipIfStillRunning(cronLogger),
			),
		),
		assignments: deps.Assignments,
		sla:         deps.SLA,
		orgs:        deps.Organizations,
		locker:      deps.Locker,
		logger:      logger,
		lockTTL:     lockTTL,
	}

	if _, err := s.cron.AddFunc(deps.Config.AssignmentCron, s.jobFunc(s.RunAssignments)); err != nil {
		return nil, fmt.Errorf("assignment schedule %q: %w", deps.Config.AssignmentCron, err)
	}
	if _, err := s.cron.AddFunc(deps.Config.SLASweepCron, s.jobFunc(s.RunSLASweep)); err != nil {
		return nil, fmt.Errorf("sla sweep schedule %q: %w", deps.Config.SLASweepCron, err)
	}
	return s, nil
}

// Start runs the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop prevents new runs and waits for running jobs until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) jobFunc(run func(context.Context)) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.lockTTL)
		defer cancel()
		run(ctx)
	}
}

// RunAssignments runs a scheduling pass for every organization whose lock this replica wins.
func (s *Scheduler) RunAssignments(ctx context.Context) {
	for _, orgID := range s.organizations(ctx) {
		if !s.acquire(ctx, "lock:assignment:"+orgID) {
			continue
		}
		result, err := s.assignments.RunAssignmentBatch(ctx, orgID, service.TriggerScheduled)
		switch {
		case apperrors.HasCode(err, "NO_ELIGIBLE_AGENTS"):
			s.logger.Debug("no eligible agents", zap.String("organization_id", orgID))
		case err != nil:
			s.logger.Error("scheduled assignment failed", zap.String("organization_id", orgID), zap.Error(err))
		case result.AssignedCount > 0:
			s.logger.Info("scheduled assignment",
				zap.String("organization_id", orgID),
				zap.Int("assigned", result.AssignedCount))
		}
	}
}

// RunSLASweep emits SLA breach alerts for every organization whose lock this replica wins.
func (s *Scheduler) RunSLASweep(ctx context.Context) {
	for _, orgID := range s.organizations(ctx) {
		if !s.acquire(ctx, "lock:sla-sweep:"+orgID) {
			continue
		}
		alerts, err := s.sla.SweepOrganization(ctx, orgID)
		if err != nil {
			s.logger.Error("sla sweep failed", zap.String("organization_id", orgID), zap.Error(err))
			continue
		}
		if alerts > 0 {
			s.logger.Info("sla alerts emitted", zap.String("organization_id", orgID), zap.Int("alerts", alerts))
		}
	}
}

func (s *Scheduler) organizations(ctx context.Context) []string {
	orgs, err := s.orgs.ListActiveOrganizations(ctx)
	if err != nil {
		s.logger.Error("listing organizations failed", zap.Error(err))
		return nil
	}
	return orgs
}

func (s *Scheduler) acquire(ctx context.Context, key string) bool {
	if s.locker == nil {
		return true
	}
	won, err := s.locker.AcquireOnce(ctx, key, s.lockTTL)
	if err != nil {
		s.logger.Warn("scheduler lock failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return won
}
