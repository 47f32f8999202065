package report

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/notification"
	"github.com/xenking/storefront/internal/domain/user"
)

const (
	summaryWindow      = 7 * 24 * time.Hour
	summaryTopProducts = 5

	// DefaultSummarySchedule fires at midnight every Sunday.
	DefaultSummarySchedule = "0 0 * * 0"
)

// ParseSchedule parses a standard five-field cron expression.
func ParseSchedule(spec string) (cron.Schedule, error) {
	s, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, errors.Wrapf(err, "parse schedule %q", spec)
	}
	return s, nil
}

// SummaryJob mails every seller the sales of the past week.
type SummaryJob struct {
	sales       Repository
	contacts    user.Directory
	notifier    notification.Notifier
	schedule    cron.Schedule
	loc         *time.Location
	concurrency int
	now         func() time.Time
}

// NewSummaryJob creates a SummaryJob firing on schedule, evaluated in loc,
// with at most concurrency sellers processed at once. A nil schedule means
// DefaultSummarySchedule.
func NewSummaryJob(
	sales Repository,
	contacts user.Directory,
	notifier notification.Notifier,
	schedule cron.Schedule,
	loc *time.Location,
	concurrency int,
) *SummaryJob {
	if schedule == nil {
		schedule, _ = cron.ParseStandard(DefaultSummarySchedule)
	}
	if loc == nil {
		loc = time.UTC
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &SummaryJob{
		sales:       sales,
		contacts:    contacts,
		notifier:    notifier,
		schedule:    schedule,
		loc:         loc,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Next returns the first fire time after now.
func (j *SummaryJob) Next(now time.Time) time.Time {
	return j.schedule.Next(now.In(j.loc))
}

// Run sends summaries on schedule until ctx is done. A failed round is
// logged and retried at the next fire time. Overlapping rounds are skipped.
func (j *SummaryJob) Run(ctx context.Context) error {
	lg := zctx.From(ctx)
	clg := cronLogger{lg: lg.Sugar()}
	c := cron.New(
		cron.WithLocation(j.loc),
		cron.WithLogger(clg),
		cron.WithChain(cron.Recover(clg), cron.SkipIfStillRunning(clg)),
	)
	c.Schedule(j.schedule, cron.FuncJob(func() {
		sent, err := j.RunOnce(ctx, "")
		if err != nil {
			lg.Error("Weekly sales summary failed", zap.Error(err))
			return
		}
		lg.Info("Weekly sales summary completed", zap.Int("sent", sent))
	}))

	lg.Info("Weekly sales summary scheduled", zap.Time("next", j.Next(j.now())))
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// cronLogger routes scheduler logs to zap.
type cronLogger struct {
	lg *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.lg.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.lg.Errorw(msg, append(keysAndValues, "error", err)...)
}

// RunOnce sends the summary to every seller with sales in the past week, or
// only to username when it is not empty. It returns the number of summaries
// sent.
func (j *SummaryJob) RunOnce(ctx context.Context, username string) (int, error) {
	sellers, err := j.contacts.Sellers(ctx, username)
	if err != nil {
		return 0, errors.Wrap(err, "list sellers")
	}

	end := j.now()
	start := end.Add(-summaryWindow)

	var sent atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency)
	for _, seller := range sellers {
		g.Go(func() error {
			ok, err := j.send(gctx, seller, start, end)
			if err != nil {
				return errors.Wrapf(err, "summary for %s", seller.Username)
			}
			if ok {
				sent.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(sent.Load()), err
	}
	return int(sent.Load()), nil
}

func (j *SummaryJob) send(ctx context.Context, seller user.Contact, start, end time.Time) (bool, error) {
	lines, err := j.sales.SellerLines(ctx, seller.UserID, start, end)
	if err != nil {
		return false, err
	}
	if len(lines) == 0 {
		zctx.From(ctx).Debug("No sales in the past week", zap.String("seller", seller.Username))
		return false, nil
	}

	totals := Summarize(lines)
	j.notifier.WeeklySalesSummary(ctx, seller.Email, notification.SalesSummary{
		Username:       seller.Username,
		TotalRevenue:   totals.Revenue,
		TotalOrders:    totals.Orders,
		TotalItemsSold: totals.ItemsSold,
		TopProducts:    TopByRevenue(totals.Products, summaryTopProducts),
		WeekStart:      start,
		WeekEnd:        end,
	})
	return true, nil
}
