package devhub

import (
	"encoding/json"
	"io"
	"net/http"

	"example.com/robo-sync/internal/events"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

type Paths struct {
	Lobby string
	Game  string
}

// NewServer mounts both hubs plus the dev event injection routes:
//
//	POST /dev/{hub}/groups/{group}/events/{kind}   body = event payload
//	GET  /dev/{hub}/groups/{group}                  members of a group
//
// where {hub} is "lobby" or "game".
func NewServer(lobby, game *Hub, paths Paths, secret []byte, log *logrus.Entry) http.Handler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	hubs := map[string]*Hub{"lobby": lobby, "game": game}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	authed := AuthMiddleware(secret)
	r.Handle(paths.Lobby, authed(lobby))
	r.Handle(paths.Game, authed(game))

	r.Route("/dev/{hub}/groups/{group}", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			h, ok := hubs[chi.URLParam(r, "hub")]
			if !ok {
				writeError(w, http.StatusNotFound, CodeNotFound, "unknown hub")
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"group":   chi.URLParam(r, "group"),
				"members": h.Members(chi.URLParam(r, "group")),
			})
		})

		r.Post("/events/{kind}", func(w http.ResponseWriter, r *http.Request) {
			h, ok := hubs[chi.URLParam(r, "hub")]
			if !ok {
				writeError(w, http.StatusNotFound, CodeNotFound, "unknown hub")
				return
			}
			kind := chi.URLParam(r, "kind")
			group := chi.URLParam(r, "group")

			body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
			if err != nil {
				writeError(w, http.StatusBadRequest, CodeBadInput, "unreadable body")
				return
			}
			if len(body) == 0 {
				body = []byte("{}")
			}

			// only events clients can decode are worth sending
			if _, err := events.Decode(kind, []json.RawMessage{body}); err != nil {
				writeDecodeError(w, err)
				return
			}

			n := h.EmitRaw(group, kind, json.RawMessage(body))
			log.WithFields(logrus.Fields{"event": kind, "group": group, "delivered": n}).Debug("injected event")
			writeJSON(w, http.StatusAccepted, map[string]int{"delivered": n})
		})
	})

	return r
}
