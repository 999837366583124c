// Package dispatch routes native messages to command handlers.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/nativehost/internal/domain"
	"github.com/eliteGoblin/focusd/nativehost/internal/nativemsg"
)

// Request is the union of every command's fields.
type Request struct {
	Cmd string `json:"cmd"`

	// restart_firefox, add_firefox_prefs, remove_firefox_prefs
	ProfileDir string          `json:"profiledir"`
	BrowserCmd string          `json:"browsercmd"`
	Prefs      json.RawMessage `json:"prefs"`

	// File commands
	File      string `json:"file"`
	Content   string `json:"content"`
	Prefix    string `json:"prefix"`
	Path      string `json:"path"`
	Dir       string `json:"dir"`
	From      string `json:"from"`
	To        string `json:"to"`
	ExistOK   bool   `json:"exist_ok"`
	Overwrite bool   `json:"overwrite"`
	Cleanup   bool   `json:"cleanup"`
	Force     bool   `json:"force"`

	Command string `json:"command"`
	Var     string `json:"var"`
}

// UnhandledMessage is the error of a reply to an unknown command.
const UnhandledMessage = "Unhandled message"

var legacyPing = []byte(`"ping"`)

// Dispatcher decodes requests and hands them to the registry.
type Dispatcher struct {
	registry *Registry
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher over registry.
func NewDispatcher(registry *Registry, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		logger:   logger,
	}
}

// IsPing reports whether payload is the legacy bare "ping" message.
func IsPing(payload []byte) bool {
	return bytes.Equal(bytes.TrimSpace(payload), legacyPing)
}

// Dispatch answers one request payload.
func (d *Dispatcher) Dispatch(ctx context.Context, payload []byte) domain.Reply {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		d.logger.Warn("malformed request", zap.Error(err))
		return domain.Unroutable(fmt.Sprintf("malformed request: %v", err))
	}

	h, ok := d.registry.Get(req.Cmd)
	if !ok {
		d.logger.Warn("unhandled command", zap.String("cmd", req.Cmd))
		return domain.Unroutable(UnhandledMessage)
	}

	d.logger.Debug("dispatching", zap.String("cmd", req.Cmd))
	reply := h.Handle(ctx, req)
	// Aliases answer under the name they were called by
	reply.Cmd = req.Cmd
	return reply
}

// Serve answers frames from r on w, one at a time, until the browser closes
// the stream.
func (d *Dispatcher) Serve(ctx context.Context, r *nativemsg.Reader, w *nativemsg.Writer) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		payload, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading message: %w", err)
		}

		if IsPing(payload) {
			if err := w.Write("pong"); err != nil {
				return fmt.Errorf("writing reply: %w", err)
			}
			continue
		}

		reply := d.Dispatch(ctx, payload)
		err = w.Write(reply)
		if errors.Is(err, nativemsg.ErrTooLarge) {
			d.logger.Warn("reply too large", zap.String("cmd", reply.Cmd), zap.Error(err))
			err = w.Write(domain.Failure(reply.Cmd, -1, err))
		}
		if err != nil {
			return fmt.Errorf("writing reply: %w", err)
		}
	}
}
