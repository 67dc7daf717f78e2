package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Subjects are actioncreator.submissions.<event>.
const subjectPrefix = "actioncreator.submissions."

// Event names.
const (
	EventSubmitted = "submitted"
	EventFinished  = "finished"
)

// SubmissionEvent is the payload published on submission lifecycle
// changes.
type SubmissionEvent struct {
	JobID      string    `json:"job_id"`
	WorkflowID string    `json:"workflow_id"`
	Workspace  string    `json:"workspace"`
	Status     string    `json:"status"`
	At         time.Time `json:"at"`
}

// Publisher emits submission events over NATS. A nil publisher, or one
// built without a connection, no-ops so event delivery never blocks a
// submission.
type Publisher struct {
	nc  *nats.Conn
	log *logrus.Entry
}

// NewPublisher wraps a NATS connection. nc may be nil.
func NewPublisher(nc *nats.Conn, log *logrus.Entry) *Publisher {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Publisher{nc: nc, log: log}
}

// Connect dials the NATS server and returns a publisher over the
// connection. An empty URL yields a disabled publisher.
func Connect(url string, log *logrus.Entry) (*Publisher, error) {
	if url == "" {
		return NewPublisher(nil, log), nil
	}
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	return NewPublisher(nc, log), nil
}

// Close drains the underlying connection.
func (p *Publisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	_ = p.nc.Drain()
}

// Submitted publishes the submitted event for a new job.
func (p *Publisher) Submitted(event SubmissionEvent) {
	p.publish(EventSubmitted, event)
}

// Finished publishes the terminal event for a job.
func (p *Publisher) Finished(event SubmissionEvent) {
	p.publish(EventFinished, event)
}

func (p *Publisher) publish(name string, event SubmissionEvent) {
	if p == nil || p.nc == nil {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.WithError(err).Error("encoding submission event")
		return
	}
	if err := p.nc.Publish(subjectPrefix+name, data); err != nil {
		p.log.WithError(err).WithFields(logrus.Fields{
			"event":  name,
			"job_id": event.JobID,
		}).Warn("publishing submission event failed")
	}
}
