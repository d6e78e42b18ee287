package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/coherence/internal/engine"
	"github.com/aristath/coherence/internal/linalg"
	"github.com/aristath/coherence/internal/modules/evolution"
	"github.com/aristath/coherence/internal/modules/runs"
)

const (
	// streamUpdates is roughly how many progress messages one run sends
	streamUpdates = 50
	writeTimeout  = 5 * time.Second
)

type resultMessage struct {
	Type string      `json:"type"`
	Data RunResponse `json:"data"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func parseRunQuery(r *http.Request) (RunRequest, error) {
	q := r.URL.Query()
	req := RunRequest{
		Substrate:    q.Get("substrate"),
		InitialState: engine.InitialKind(q.Get("initial_state")),
		Persist:      q.Get("persist") == "true",
		Dimension:    defaultChannelDimension,
	}
	var err error
	if v := q.Get("dimension"); v != "" {
		if req.Dimension, err = strconv.Atoi(v); err != nil {
			return req, err
		}
	}
	if v := q.Get("duration"); v != "" {
		if req.Duration, err = strconv.ParseFloat(v, 64); err != nil {
			return req, err
		}
	}
	return req, req.validate()
}

// HandleStream handles GET /api/evolution/stream. It upgrades to a websocket, streams
// progress messages while the run integrates and finishes with one result message.
// Closing the socket cancels the run.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	req, err := parseRunQuery(r)
	if err != nil {
		http.Error(w, "Invalid stream parameters: "+err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to accept websocket")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected close")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	// reads surface client closes; nothing is expected from the client
	ctx = conn.CloseRead(ctx)

	space, err := h.engine.ConfigureHilbertSpace(req.Dimension)
	if err != nil {
		h.streamError(ctx, conn, err)
		return
	}
	ops, err := h.engine.BuildOperators(space, req.Substrate)
	if err != nil {
		h.streamError(ctx, conn, err)
		return
	}
	initial, err := h.engine.InitialState(space, ops, req.InitialState)
	if err != nil {
		h.streamError(ctx, conn, err)
		return
	}

	_, steps := h.engine.TimeStep(req.Duration)
	every := steps / streamUpdates
	if every < 1 {
		every = 1
	}

	observer := func(p evolution.Progress) {
		if err := h.write(ctx, conn, progressFrom(p)); err != nil {
			h.log.Debug().Err(err).Msg("Stream write failed, cancelling run")
			cancel()
		}
	}

	result, err := h.engine.Evolve(ctx, space, ops, initial, req.Duration, engine.WithObserver(observer, every))
	if err != nil {
		h.streamError(ctx, conn, err)
		return
	}

	resp := RunResponse{State: stateFrom(result.State), Diagnostics: diagnosticsFrom(result.Diagnostics)}
	if req.Persist {
		resp.Persisted = h.persist(context.Background(), result, req.Duration, runs.SourceAPI)
	}
	if err := h.write(ctx, conn, resultMessage{Type: "result", Data: resp}); err != nil {
		h.log.Debug().Err(err).Msg("Failed to write stream result")
		return
	}

	conn.Close(websocket.StatusNormalClosure, "")
}

func (h *Handler) write(ctx context.Context, conn *websocket.Conn, v interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}

func (h *Handler) streamError(ctx context.Context, conn *websocket.Conn, err error) {
	if werr := h.write(ctx, conn, errorMessage{Type: "error", Error: err.Error()}); werr != nil {
		h.log.Debug().Err(werr).Msg("Failed to write stream error")
	}
	conn.Close(websocket.StatusPolicyViolation, "run rejected")
}

func progressFrom(p evolution.Progress) ProgressMessage {
	n, _ := p.Density.Dims()
	off, _ := linalg.AbsSums(p.Density)
	norm := linalg.FrobeniusNorm(p.Density)

	msg := ProgressMessage{
		Type:            "progress",
		Step:            p.Step,
		Time:            Float(p.Time),
		Purity:          Float(norm * norm),
		OffDiagonalNorm: Float(off),
		Populations:     make([]Float, n),
	}
	for i := 0; i < n; i++ {
		msg.Populations[i] = Float(real(p.Density.At(i, i)))
	}
	return msg
}
