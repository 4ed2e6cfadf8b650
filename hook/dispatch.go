// Package hook delivers events to outgoing webhooks and fires the triggers
// of incoming webhooks.
package hook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/modelbee/mbee/core"
	"go.uber.org/zap"
)

// Dispatcher fans events out to the outgoing webhooks registered on the
// event's resource chain. It implements core.Observer. Deliveries run in
// their own goroutines, bounded by a semaphore, so controllers never wait
// on a slow receiver.
type Dispatcher struct {
	DB       *core.CoreDB
	Logger   *zap.Logger
	Client   *http.Client
	Attempts uint          // delivery attempts per webhook, default 3
	Delay    time.Duration // initial backoff delay, default 1s

	sem chan struct{}
	wg  sync.WaitGroup
}

func NewDispatcher(db *core.CoreDB, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		DB:       db,
		Logger:   logger,
		Client:   &http.Client{Timeout: 10 * time.Second},
		Attempts: 3,
		Delay:    time.Second,
		sem:      make(chan struct{}, 8),
	}
}

// Notify implements core.Observer.
func (d *Dispatcher) Notify(e core.Event) {
	hooks, err := d.DB.MatchingWebhooks(e, core.WebhookOutgoing)
	if err != nil {
		d.Logger.Error("matching webhooks", zap.String("trigger", e.Trigger), zap.Error(err))
		return
	}
	for _, w := range hooks {
		d.wg.Add(1)
		go d.deliver(w, e)
	}
}

// Wait blocks until all pending deliveries are done. Called on shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(w core.DBWebhook, e core.Event) {
	defer d.wg.Done()
	d.sem <- struct{}{}
	defer func() { <-d.sem }()

	body, err := json.Marshal(map[string]interface{}{
		"trigger": e.Trigger,
		"webhook": w.PublicID(),
		"payload": e.Payload,
	})
	if err != nil {
		d.Logger.Error("marshal webhook payload", zap.String("webhook", w.PublicID()), zap.Error(err))
		return
	}

	err = retry.Do(
		func() error {
			req, err := http.NewRequest(http.MethodPost, w.URL(), bytes.NewReader(body))
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Content-Type", "application/json")
			if w.AuthToken() != "" {
				req.Header.Set("Authorization", w.AuthToken())
			}
			resp, err := d.Client.Do(req)
			if err != nil {
				return err
			}
			resp.Body.Close()
			if resp.StatusCode >= 300 {
				return fmt.Errorf("webhook returned %s", resp.Status)
			}
			return nil
		},
		retry.Attempts(d.Attempts),
		retry.Delay(d.Delay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		d.Logger.Warn("webhook delivery failed",
			zap.String("webhook", w.PublicID()),
			zap.String("trigger", e.Trigger),
			zap.Error(err))
		return
	}
	d.Logger.Debug("webhook delivered",
		zap.String("webhook", w.PublicID()),
		zap.String("trigger", e.Trigger))
}

// TriggerIncoming fires the triggers of the incoming webhook identified by
// the given token. The fired events re-enter the observer chain scoped to
// the webhook's resource.
func (d *Dispatcher) TriggerIncoming(token string, payload map[string]interface{}) error {
	w, err := d.DB.WebhookDB.GetWebhookByToken(token)
	if err != nil {
		return err
	}
	if w.Kind() != core.WebhookIncoming || w.Archived() {
		return core.ErrUnauthorized
	}
	orgID, projectID, branchID, err := d.DB.EventScope(w)
	if err != nil {
		return err
	}
	for _, trigger := range w.Triggers() {
		d.DB.Emit(core.Event{
			Trigger:   trigger,
			OrgID:     orgID,
			ProjectID: projectID,
			BranchID:  branchID,
			Payload:   payload,
		})
	}
	return nil
}
