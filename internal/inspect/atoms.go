package inspect

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/atom/internal/errors"
	"github.com/vango-dev/atom/internal/scenario"
	"github.com/vango-dev/atom/pkg/atom"
	"github.com/vango-dev/atom/pkg/reactive"
)

// maxBody caps PUT bodies.
const maxBody = 1 << 20

// View is the JSON form of one atom. Async values are encoded as results:
// {"tag": "Success", "value": ...}.
type View struct {
	Name  string        `json:"name"`
	Kind  scenario.Kind `json:"kind"`
	Key   string        `json:"key,omitempty"`
	Value any           `json:"value"`
}

// Change is one message on a watch connection.
type Change struct {
	Atom  string `json:"atom"`
	Seq   int    `json:"seq"`
	Value any    `json:"value"`
}

func (s *Server) lookup(name string) (*scenario.Entry, error) {
	e, err := s.world.Lookup(name)
	if err != nil {
		return nil, errors.New("A300").WithDetailf("no atom named %q", name)
	}
	return e, nil
}

func (s *Server) view(e *scenario.Entry) (View, error) {
	v, err := s.world.Value(e.Name)
	if err != nil {
		return View{}, err
	}
	return View{Name: e.Name, Kind: e.Kind, Key: e.Key, Value: v}, nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	entries := s.world.Entries()
	views := make([]View, 0, len(entries))
	for _, e := range entries {
		v, err := s.view(e)
		if err != nil {
			writeError(w, err)
			return
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	e, err := s.lookup(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	v, err := s.view(e)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	e, err := s.lookup(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	if e.Kind != scenario.KindState {
		writeError(w, errors.New("A302").WithDetailf("%q is a %s atom", e.Name, e.Kind))
		return
	}

	var value any
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(&value); err != nil {
		writeError(w, errors.New("A301").WithDetailf("body of PUT %s", r.URL.Path).Wrap(err))
		return
	}
	if dec.More() {
		writeError(w, errors.New("A301").WithDetail("body holds more than one JSON value"))
		return
	}

	if err := s.world.Set(e.Name, value); err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("atom written", "atom", e.Name, "value", scenario.FormatValue(value))

	v, err := s.view(e)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleWatch streams every value of one atom, starting with the current
// one, until the client disconnects. Each connection subscribes under its
// own owner, which is disposed when the connection ends.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	e, err := s.lookup(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("watch upgrade failed", "atom", e.Name, "error", err)
		return
	}
	defer conn.Close()

	var (
		changes  = make(chan any, s.buffer)
		overflow = make(chan struct{})
		once     sync.Once
	)
	owner := reactive.NewOwner(nil)
	defer owner.Dispose()

	reactive.Run(owner, func() {
		err = s.world.Subscribe(e.Name, func(v any) {
			select {
			case changes <- v:
			default:
				once.Do(func() { close(overflow) })
			}
		}, atom.Immediate())
	})
	if err != nil {
		s.logger.Warn("watch subscribe failed", "atom", e.Name, "error", err)
		return
	}
	s.metrics.watchOpened()
	defer s.metrics.watchClosed()
	s.logger.Debug("watch opened", "atom", e.Name, "remote", r.RemoteAddr)
	defer s.logger.Debug("watch closed", "atom", e.Name, "remote", r.RemoteAddr)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	seq := 0
	for {
		select {
		case v := <-changes:
			seq++
			if err := conn.WriteJSON(Change{Atom: e.Name, Seq: seq, Value: v}); err != nil {
				return
			}
		case <-overflow:
			msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "watch fell behind")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			s.logger.Warn("watch dropped", "atom", e.Name, "buffer", s.buffer)
			return
		case <-closed:
			return
		}
	}
}
