package daemon

import (
	"errors"
	"fmt"

	"github.com/berrythewa/ezpaste-daemon/internal/ipc"
	"github.com/berrythewa/ezpaste-daemon/internal/storage"
)

// ToggleResult is the payload of pause, resume and toggle responses.
type ToggleResult struct {
	Active bool `json:"active"`
}

// Handler answers CLI requests against a running engine.
type Handler struct {
	Engine  *Engine
	Storage storage.Store
}

// Handle implements ipc.Handler.
func (h *Handler) Handle(req *ipc.Request) *ipc.Response {
	switch req.Command {
	case ipc.CmdStatus:
		st, err := h.Engine.Status()
		if err != nil {
			return ipc.Error(err)
		}
		return ipc.OK("", st)

	case ipc.CmdPause:
		if err := h.Engine.Stop(); err != nil {
			return ipc.Error(err)
		}
		return ipc.OK("monitoring paused", ToggleResult{Active: false})

	case ipc.CmdResume:
		if err := h.Engine.Start(); err != nil {
			return ipc.Error(err)
		}
		return ipc.OK("monitoring resumed", ToggleResult{Active: true})

	case ipc.CmdToggle:
		active, err := h.Engine.Toggle()
		if err != nil {
			return ipc.Error(err)
		}
		msg := "monitoring paused"
		if active {
			msg = "monitoring resumed"
		}
		return ipc.OK(msg, ToggleResult{Active: active})

	case ipc.CmdLast:
		if h.Storage == nil {
			return ipc.Error(errors.New("storage disabled"))
		}
		rec, err := h.Storage.Latest()
		if errors.Is(err, storage.ErrNoRecord) {
			return ipc.OK("no screenshot recorded yet", nil)
		}
		if err != nil {
			return ipc.Error(err)
		}
		return ipc.OK("", rec)
	}
	return ipc.Error(fmt.Errorf("unknown command %q", req.Command))
}
