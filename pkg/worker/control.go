package worker

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	perrors "github.com/jmgilman/go/errors"

	"github.com/Sternrassler/edge-worker/pkg/lifecycle"
	"github.com/Sternrassler/edge-worker/pkg/message"
	"github.com/Sternrassler/edge-worker/pkg/notify"
	"github.com/Sternrassler/edge-worker/pkg/outbox"
)

// ControlPrefix is the path prefix of the control endpoints.
const ControlPrefix = "/__worker"

// Background sync tags.
const (
	SyncContactRetry = "contact-retry"
	SyncImageRetry   = "image-retry"
)

const maxControlBody = 64 << 10

// Routes mounts the control endpoints on r.
func (w *Worker) Routes(r chi.Router) {
	r.Route(ControlPrefix, func(r chi.Router) {
		r.Get("/state", w.HandleState)
		r.Post("/message", w.HandleMessage)
		r.Post("/register", w.HandleRegister)
		r.Post("/sync", w.HandleSync)
		r.Post("/outbox", w.HandleOutbox)
		r.Post("/push", w.HandlePush)
		r.Post("/notificationclick", w.HandleNotificationClick)
	})
}

// HandleState reports the lifecycle state.
func (w *Worker) HandleState(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, map[string]any{
		"state":       w.lifecycle.State(),
		"controlling": w.lifecycle.Controlling(),
	})
}

// HandleMessage answers SKIP_WAITING and CACHE_STATS messages.
func (w *Worker) HandleMessage(rw http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(rw, err)
		return
	}

	msg, err := message.Decode(body)
	if err != nil {
		w.logger.Warn().Err(err).Msg("Ignoring invalid message")
		writeError(rw, perrors.Wrap(err, perrors.CodeInvalidInput, err.Error()))
		return
	}

	switch msg.(type) {
	case message.SkipWaiting:
		if err := w.lifecycle.SkipWaiting(r.Context()); err != nil {
			writeError(rw, perrors.Wrap(err, perrors.CodeInternal, "activation failed"))
			return
		}
		writeJSON(rw, http.StatusOK, map[string]any{"state": w.lifecycle.State()})

	case message.CacheStats:
		stats, err := message.Stats(r.Context(), w.storage)
		if err != nil {
			w.logger.Error().Err(err).Msg("Failed to collect cache stats")
			writeError(rw, perrors.Wrap(err, perrors.CodeDatabase, "cache stats unavailable"))
			return
		}
		writeJSON(rw, http.StatusOK, stats)
	}
}

// HandleRegister is a fresh registration attempt.
func (w *Worker) HandleRegister(rw http.ResponseWriter, r *http.Request) {
	if err := w.lifecycle.Register(r.Context()); err != nil {
		code := perrors.CodeInternal
		if errors.Is(err, lifecycle.ErrInstallFailed) {
			code = perrors.CodeUnavailable
		}
		writeError(rw, perrors.Wrap(err, code, "registration failed"))
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{
		"state":       w.lifecycle.State(),
		"controlling": w.lifecycle.Controlling(),
	})
}

type syncRequest struct {
	Tag string `json:"tag"`
}

// HandleSync runs a background sync by tag.
func (w *Worker) HandleSync(rw http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(rw, err)
		return
	}

	switch req.Tag {
	case SyncContactRetry:
		if w.outbox == nil {
			writeError(rw, perrors.New(perrors.CodeNotImplemented, "background sync is not configured"))
			return
		}
		result, err := w.outbox.Replay(r.Context(), w.fetcher, w.retry)
		if err != nil {
			writeError(rw, perrors.Wrap(err, perrors.CodeDatabase, "outbox replay failed"))
			return
		}
		writeJSON(rw, http.StatusOK, result)

	case SyncImageRetry:
		w.logger.Info().Msg("Retrying failed image loads")
		writeJSON(rw, http.StatusOK, map[string]any{"tag": req.Tag})

	default:
		writeError(rw, perrors.Newf(perrors.CodeInvalidInput, "unknown sync tag %q", req.Tag))
	}
}

// HandleOutbox queues a contact submission for the next contact-retry sync.
func (w *Worker) HandleOutbox(rw http.ResponseWriter, r *http.Request) {
	if w.outbox == nil {
		writeError(rw, perrors.New(perrors.CodeNotImplemented, "background sync is not configured"))
		return
	}

	var sub outbox.Submission
	if err := decodeJSON(r, &sub); err != nil {
		writeError(rw, err)
		return
	}

	item, err := w.outbox.EnqueueSubmission(r.Context(), w.contactPath, sub)
	if err != nil {
		if perrors.GetCode(err) != perrors.CodeInvalidInput {
			err = perrors.Wrap(err, perrors.CodeDatabase, "enqueue failed")
		}
		writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusAccepted, map[string]any{"id": item.ID})
}

// HandlePush publishes a push notification.
func (w *Worker) HandlePush(rw http.ResponseWriter, r *http.Request) {
	if w.notifier == nil {
		writeError(rw, perrors.New(perrors.CodeNotImplemented, "push is not configured"))
		return
	}

	var note notify.Notification
	if err := decodeJSON(r, &note); err != nil {
		writeError(rw, err)
		return
	}
	if err := w.notifier.Push(r.Context(), note); err != nil {
		writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusAccepted, map[string]any{"published": true})
}

// HandleNotificationClick publishes a click and tells the client where to navigate.
func (w *Worker) HandleNotificationClick(rw http.ResponseWriter, r *http.Request) {
	if w.notifier == nil {
		writeError(rw, perrors.New(perrors.CodeNotImplemented, "push is not configured"))
		return
	}

	var click notify.Click
	if err := decodeJSON(r, &click); err != nil {
		writeError(rw, err)
		return
	}
	target, err := w.notifier.Click(r.Context(), click)
	if err != nil {
		writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]string{"navigate": target})
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxControlBody+1))
	if err != nil {
		return nil, perrors.Wrap(err, perrors.CodeInvalidInput, "read body")
	}
	if len(body) > maxControlBody {
		return nil, perrors.New(perrors.CodeInvalidInput, "body too large")
	}
	return body, nil
}

func decodeJSON(r *http.Request, v any) error {
	body, err := readBody(r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return perrors.Wrap(err, perrors.CodeInvalidInput, "invalid JSON body")
	}
	return nil
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, err error) {
	writeJSON(rw, httpStatus(perrors.GetCode(err)), perrors.ToJSON(err))
}

func httpStatus(code perrors.ErrorCode) int {
	switch code {
	case perrors.CodeInvalidInput:
		return http.StatusBadRequest
	case perrors.CodeNotFound:
		return http.StatusNotFound
	case perrors.CodeNotImplemented:
		return http.StatusNotImplemented
	case perrors.CodeUnavailable, perrors.CodeNetwork, perrors.CodeTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
