package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"lapelle-backend/lib/keychain"
	"lapelle-backend/services/directory"
	"lapelle-backend/services/portal"
	"lapelle-backend/services/schedule"
)

type api struct {
	svc *schedule.Service
	dir directory.Service
}

func newAPI(svc *schedule.Service, dir directory.Service) http.Handler {
	a := &api{svc: svc, dir: dir}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /users/{id}/courses/today", a.userToday)
	mux.HandleFunc("GET /users/{id}/courses/week", a.userWeek)
	mux.HandleFunc("GET /users/{id}/courses/current", a.userCurrent)
	mux.HandleFunc("GET /users/{id}/courses/next", a.userNext)
	mux.HandleFunc("GET /users/{id}/presence", a.userPresence)
	mux.HandleFunc("POST /users/{id}/credentials", a.setCredentials)
	mux.HandleFunc("POST /users/{id}/groups/import", a.importGroups)
	mux.HandleFunc("GET /groups/courses/today", a.groupsToday)
	mux.HandleFunc("GET /groups/courses/week", a.groupsWeek)
	mux.HandleFunc("GET /groups/presence", a.groupsPresence)
	return mux
}

type apiResponse struct {
	Data        any      `json:"data,omitempty"`
	Unprocessed []string `json:"unprocessed,omitempty"`
	Error       string   `json:"error,omitempty"`
}

func writeResult[T any](w http.ResponseWriter, res schedule.Response[T], err error) {
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(statusFor(err))
		json.NewEncoder(w).Encode(apiResponse{
			Unprocessed: res.Meta.Unprocessed,
			Error:       err.Error(),
		})
		return
	}
	json.NewEncoder(w).Encode(apiResponse{
		Data:        res.Data,
		Unprocessed: res.Meta.Unprocessed,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, schedule.ErrNoGroupFound),
		errors.Is(err, schedule.ErrNoCourseToday),
		errors.Is(err, schedule.ErrNoCurrentCourse),
		errors.Is(err, schedule.ErrNoNextCourse),
		errors.Is(err, portal.ErrPresenceUnavailable):
		return http.StatusNotFound
	case errors.Is(err, portal.ErrMissingCredentials),
		errors.Is(err, portal.ErrInvalidEmail),
		errors.Is(err, portal.ErrInvalidPassword):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func groupsParam(r *http.Request) []string {
	return r.URL.Query()["group"]
}

func (a *api) userToday(w http.ResponseWriter, r *http.Request) {
	res, err := a.svc.UserTodayCourses(r.Context(), r.PathValue("id"))
	writeResult(w, res, err)
}

func (a *api) userWeek(w http.ResponseWriter, r *http.Request) {
	res, err := a.svc.UserWeekCourses(r.Context(), r.PathValue("id"))
	writeResult(w, res, err)
}

func (a *api) userCurrent(w http.ResponseWriter, r *http.Request) {
	res, err := a.svc.UserCurrentCourse(r.Context(), r.PathValue("id"))
	writeResult(w, res, err)
}

func (a *api) userNext(w http.ResponseWriter, r *http.Request) {
	res, err := a.svc.UserNextCourse(r.Context(), r.PathValue("id"))
	writeResult(w, res, err)
}

func (a *api) userPresence(w http.ResponseWriter, r *http.Request) {
	res, err := a.svc.UserPresence(r.Context(), r.PathValue("id"))
	writeResult(w, res, err)
}

func (a *api) groupsToday(w http.ResponseWriter, r *http.Request) {
	res, err := a.svc.GroupsTodayCourses(r.Context(), groupsParam(r))
	writeResult(w, res, err)
}

func (a *api) groupsWeek(w http.ResponseWriter, r *http.Request) {
	res, err := a.svc.GroupsWeekCourses(r.Context(), groupsParam(r))
	writeResult(w, res, err)
}

func (a *api) groupsPresence(w http.ResponseWriter, r *http.Request) {
	res, err := a.svc.GroupsPresence(r.Context(), groupsParam(r))
	writeResult(w, res, err)
}

func (a *api) setCredentials(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if body.Email == "" || body.Password == "" {
		http.Error(w, "email and password are required", http.StatusBadRequest)
		return
	}
	creds := keychain.Credentials{Email: body.Email, Password: body.Password}
	if err := a.dir.SetCredentials(r.Context(), r.PathValue("id"), creds); err != nil {
		slog.ErrorContext(r.Context(), "failed to store credentials", "err", err.Error())
		http.Error(w, "failed to store credentials", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) importGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := a.svc.ImportGroups(r.Context(), r.PathValue("id"))
	writeResult(w, schedule.Response[[]string]{Data: groups}, err)
}
