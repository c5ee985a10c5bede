package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"sjsage522/specialsworker/pkg/errors"
	"sjsage522/specialsworker/services/publisher"
)

// ReportKey is the field deals are published under
const ReportKey = "specials"

// ConsoleReporter writes deals in the human-readable report format
type ConsoleReporter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleReporter creates a reporter writing to out
func NewConsoleReporter(out io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: out}
}

// Report writes the deal name on one line and its prices on the next, followed by a blank line
func (r *ConsoleReporter) Report(ctx context.Context, session *Session, deal Deal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := fmt.Fprintf(r.out, "%s\nold_price: %.2f\t new_price: %.2f\t discount: %.2f%%\n\n",
		deal.Name, deal.OldPrice, deal.NewPrice, deal.DiscountPercent)
	return err
}

// DealMessage is the published form of a deal
type DealMessage struct {
	RunID     string    `json:"run_id"`
	Page      int       `json:"page"`
	Identity  string    `json:"identity"`
	Deal      Deal      `json:"deal"`
	CrawledAt time.Time `json:"crawled_at"`
}

// PublishingReporter sends deals to a message stream
type PublishingReporter struct {
	publisher publisher.Publisher
	now       func() time.Time
}

// NewPublishingReporter creates a reporter publishing through pub
func NewPublishingReporter(pub publisher.Publisher) *PublishingReporter {
	return &PublishingReporter{publisher: pub, now: time.Now}
}

// Report publishes the deal together with the run it was found in
func (r *PublishingReporter) Report(ctx context.Context, session *Session, deal Deal) error {
	message := DealMessage{
		RunID:     session.RunID,
		Page:      session.Page,
		Identity:  string(session.Identity),
		Deal:      deal,
		CrawledAt: r.now().UTC(),
	}

	data, err := json.Marshal(message)
	if err != nil {
		return errors.NewPublisher("reporter", "encode deal", err)
	}
	if err := r.publisher.Publish(ReportKey, data); err != nil {
		return errors.NewPublisher("reporter", "publish deal", err)
	}
	return nil
}

// MultiReporter fans a deal out to several reporters. Every reporter sees every
// deal; the first error is returned.
type MultiReporter []Reporter

// Report implements Reporter
func (m MultiReporter) Report(ctx context.Context, session *Session, deal Deal) error {
	var first error
	for _, r := range m {
		if err := r.Report(ctx, session, deal); err != nil && first == nil {
			first = err
		}
	}
	return first
}
