// Copyright (C) 2017 ScyllaDB

package restapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/scylladb/scylla-autorepair/pkg/service/repair"
	"github.com/scylladb/scylla-autorepair/pkg/util/uuid"
)

type repairHandler struct {
	svc RepairService
}

func newRepairHandler(svc RepairService) *chi.Mux {
	m := chi.NewMux()
	h := repairHandler{svc: svc}

	m.Get("/", h.listJobs)
	m.Get("/{job_id}", h.getJob)

	return m
}

func (h repairHandler) listJobs(w http.ResponseWriter, r *http.Request) {
	jobs := h.svc.CurrentRepairJobs()
	if jobs == nil {
		jobs = []repair.JobView{}
	}

	// Optional filters
	q := r.URL.Query()
	if ks := q.Get("keyspace"); ks != "" {
		jobs = filterJobs(jobs, func(v repair.JobView) bool { return v.Keyspace == ks })
	}
	if t := q.Get("table"); t != "" {
		jobs = filterJobs(jobs, func(v repair.JobView) bool { return v.Table == t })
	}
	if host := q.Get("host"); host != "" {
		jobs = filterJobs(jobs, func(v repair.JobView) bool { return v.Host == host })
	}

	render.Respond(w, r, jobs)
}

func filterJobs(jobs []repair.JobView, f func(v repair.JobView) bool) []repair.JobView {
	out := make([]repair.JobView, 0, len(jobs))
	for _, v := range jobs {
		if f(v) {
			out = append(out, v)
		}
	}
	return out
}

func (h repairHandler) getJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "job_id"))
	if err != nil {
		respondBadRequest(w, r, err)
		return
	}

	v, ok := h.svc.Job(id)
	if !ok {
		respondNotFound(w, r, "repair job "+id.String())
		return
	}
	render.Respond(w, r, v)
}
