package http

import (
	"net/http"
	"strings"
)

// PublicPaths are the endpoints reachable without a session token.
var PublicPaths = []string{
	"/api/auth/register",
	"/api/auth/login",
	"/api/auth/outlook/callback",
	"/api/outlook/webhook",
}

type RouterConfig struct {
	Auth       *AuthHandler
	Tasks      *TaskHandler
	Reminders  *ReminderHandler
	Recurring  *RecurringHandler
	Outlook    *OutlookHandler
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Auth != nil {
		mux.HandleFunc("/api/auth/register", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.Register(w, r)
		})
		mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.Login(w, r)
		})
		mux.HandleFunc("/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.Logout(w, r)
		})
		mux.HandleFunc("/api/profile", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Auth.GetProfile(w, r)
			case http.MethodPut:
				cfg.Auth.UpdateProfile(w, r)
			case http.MethodDelete:
				cfg.Auth.DeleteAccount(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
			}
		})
	}

	if cfg.Tasks != nil {
		mux.HandleFunc("/api/tasks", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Tasks.List(w, r)
			case http.MethodPost:
				cfg.Tasks.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/api/tasks/", func(w http.ResponseWriter, r *http.Request) {
			routeTask(cfg.Tasks, w, r)
		})
		mux.HandleFunc("/api/scheduled-times", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Tasks.ListSlots(w, r)
		})
	}

	if cfg.Reminders != nil {
		mux.HandleFunc("/api/reminders", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Reminders.List(w, r)
			case http.MethodPost:
				cfg.Reminders.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/api/reminders/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/api/reminders/")
			if id == "" {
				http.NotFound(w, r)
				return
			}
			if id == "active" {
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				cfg.Reminders.Active(w, r)
				return
			}
			switch r.Method {
			case http.MethodGet:
				cfg.Reminders.Get(w, r, id)
			case http.MethodPatch:
				cfg.Reminders.Update(w, r, id)
			case http.MethodDelete:
				cfg.Reminders.Delete(w, r, id)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPatch, http.MethodDelete)
			}
		})
	}

	if cfg.Recurring != nil {
		mux.HandleFunc("/api/recurring-events", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Recurring.List(w, r)
			case http.MethodPost:
				cfg.Recurring.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/api/recurring-events/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/api/recurring-events/")
			if id == "" {
				http.NotFound(w, r)
				return
			}
			if id == "occurrences" {
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				cfg.Recurring.Occurrences(w, r)
				return
			}
			switch r.Method {
			case http.MethodPut:
				cfg.Recurring.Update(w, r, id)
			case http.MethodDelete:
				cfg.Recurring.Delete(w, r, id)
			default:
				methodNotAllowed(w, http.MethodPut, http.MethodDelete)
			}
		})
	}

	if cfg.Outlook != nil {
		mux.HandleFunc("/api/auth/outlook", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Outlook.Connect(w, r)
		})
		mux.HandleFunc("/api/auth/outlook/callback", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Outlook.Callback(w, r)
		})
		mux.HandleFunc("/api/outlook/disconnect", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Outlook.Disconnect(w, r)
		})
		mux.HandleFunc("/api/outlook/status", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Outlook.Status(w, r)
		})
		mux.HandleFunc("/api/outlook/sync", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Outlook.SyncNow(w, r)
		})
		mux.HandleFunc("/api/outlook/sync-enabled", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPut {
				methodNotAllowed(w, http.MethodPut)
				return
			}
			cfg.Outlook.SetSyncEnabled(w, r)
		})
		mux.HandleFunc("/api/outlook/subscribe", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Outlook.Subscribe(w, r)
		})
		mux.HandleFunc("/api/outlook/events", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Outlook.Events(w, r)
		})
		mux.HandleFunc("/api/outlook/events/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/api/outlook/events/")
			if id == "" {
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodDelete {
				methodNotAllowed(w, http.MethodDelete)
				return
			}
			cfg.Outlook.DeleteEvent(w, r, id)
		})
		mux.HandleFunc("/api/outlook/outcomes", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Outlook.Outcomes(w, r)
		})
		mux.HandleFunc("/api/outlook/webhook", func(w http.ResponseWriter, r *http.Request) {
			// Graph issues the validation handshake as well as notification
			// deliveries; both GET and POST must reach the receiver.
			if r.Method != http.MethodPost && r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
				return
			}
			cfg.Outlook.Webhook(w, r)
		})
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

// routeTask dispatches /api/tasks/{id}[/...] paths: completion, reopening,
// the nested scheduled-times collection, and the reserved history aggregate.
func routeTask(tasks *TaskHandler, w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		http.NotFound(w, r)
		return
	}

	if len(segments) == 1 && segments[0] == "history" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		tasks.History(w, r)
		return
	}

	ctx := ContextWithTaskID(r.Context(), segments[0])
	r = r.WithContext(ctx)

	switch {
	case len(segments) == 1:
		switch r.Method {
		case http.MethodGet:
			tasks.Get(w, r)
		case http.MethodPut:
			tasks.Update(w, r)
		case http.MethodDelete:
			tasks.Delete(w, r)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
		}

	case len(segments) == 2 && segments[1] == "complete":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		tasks.Complete(w, r)

	case len(segments) == 2 && segments[1] == "reopen":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		tasks.Reopen(w, r)

	case len(segments) == 2 && segments[1] == "scheduled-times":
		switch r.Method {
		case http.MethodGet:
			tasks.Slots(w, r)
		case http.MethodPost:
			tasks.AddSlot(w, r)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodPost)
		}

	case len(segments) == 3 && segments[1] == "scheduled-times":
		r = r.WithContext(ContextWithSlotID(r.Context(), segments[2]))
		switch r.Method {
		case http.MethodPut:
			tasks.UpdateSlot(w, r)
		case http.MethodDelete:
			tasks.DeleteSlot(w, r)
		default:
			methodNotAllowed(w, http.MethodPut, http.MethodDelete)
		}

	default:
		http.NotFound(w, r)
	}
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
