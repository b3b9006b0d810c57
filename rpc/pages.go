package rpc

import (
	"bytes"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/safwentrabelsi/civilchain-server/controller"
	"github.com/safwentrabelsi/civilchain-server/types"
	log "github.com/sirupsen/logrus"
)

// handlePublic renders the record listing. The ledger is read on every
// visit, so ?reload=1 from the Reload button needs no special case.
func (s *CivilService) handlePublic(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()
	public := s.pages.Public

	if err := public.Load(ctx); err != nil {
		log.Error("Failed to load the public listing: ", err)
	}
	if query.Has("q") {
		public.SetQuery(query.Get("q"))
	}
	// The toggle form sends a hidden "0" before the checkbox value, the last one wins.
	if mine := query["mine"]; len(mine) > 0 {
		if err := public.SetOnlyMine(ctx, mine[len(mine)-1] == "1"); err != nil {
			log.Debug("Only mine filter not applied: ", err)
		}
	}

	s.render(w, http.StatusOK, "public", pageData{
		Title:  "Records",
		Path:   "/",
		View:   public.View(),
		Target: public.Target,
	})
}

func (s *CivilService) handleCitizen(w http.ResponseWriter, r *http.Request) {
	citizen := s.pages.Citizen
	if citizen.View().State == controller.Connected {
		if err := citizen.Load(r.Context()); err != nil {
			log.Error("Failed to load citizen requests: ", err)
		}
	}
	s.render(w, http.StatusOK, "citizen", pageData{Title: "Citizen", Path: "/citizen", View: citizen.View()})
}

func (s *CivilService) handleCitizenConnect(w http.ResponseWriter, r *http.Request) {
	if err := s.pages.Citizen.Connect(r.Context()); err != nil {
		log.Error("Failed to connect the citizen page: ", err)
	}
	http.Redirect(w, r, "/citizen", http.StatusSeeOther)
}

func (s *CivilService) handleSubmitRequest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	serviceType := r.PostForm.Get("serviceType")
	if err := s.pages.Citizen.Submit(r.Context(), serviceType); err != nil {
		log.WithField("service_type", serviceType).Error("Request submission failed: ", err)
	}
	http.Redirect(w, r, "/citizen", http.StatusSeeOther)
}

func (s *CivilService) handleGov(w http.ResponseWriter, r *http.Request) {
	officer := s.pages.Officer
	query := r.URL.Query()
	if query.Has("filter") {
		if err := officer.SetFilter(query.Get("filter")); err != nil {
			http.Error(w, types.UserMessage(err), http.StatusBadRequest)
			return
		}
	}
	if officer.View().State == controller.Connected {
		if err := officer.Load(r.Context()); err != nil {
			log.Error("Failed to load requests for review: ", err)
		}
	}
	s.render(w, http.StatusOK, "gov", pageData{Title: "Officer", Path: "/gov", View: officer.View()})
}

func (s *CivilService) handleGovConnect(w http.ResponseWriter, r *http.Request) {
	if err := s.pages.Officer.Connect(r.Context()); err != nil {
		log.Error("Failed to connect the officer page: ", err)
	}
	http.Redirect(w, r, "/gov", http.StatusSeeOther)
}

func (s *CivilService) handleApprove(w http.ResponseWriter, r *http.Request) {
	id, ok := requestID(w, r)
	if !ok {
		return
	}
	if err := s.pages.Officer.Approve(r.Context(), id); err != nil {
		log.WithField("request_id", id).Error("Approval failed: ", err)
	}
	s.backToDashboard(w, r)
}

func (s *CivilService) handleReject(w http.ResponseWriter, r *http.Request) {
	id, ok := requestID(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	if err := s.pages.Officer.Reject(r.Context(), id, r.PostForm.Get("reason")); err != nil {
		log.WithField("request_id", id).Error("Rejection failed: ", err)
	}
	s.backToDashboard(w, r)
}

func (s *CivilService) backToDashboard(w http.ResponseWriter, r *http.Request) {
	filter := s.pages.Officer.View().Filter
	http.Redirect(w, r, "/gov?filter="+url.QueryEscape(string(filter)), http.StatusSeeOther)
}

func (s *CivilService) handleDetail(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["txHash"]
	view, err := s.pages.Detail.Load(r.Context(), hash)
	status := http.StatusOK
	switch {
	case errors.Is(err, types.ErrNotFound):
		status = http.StatusNotFound
	case err != nil:
		log.WithField("tx_hash", hash).Error("Failed to load transaction details: ", err)
	}
	s.render(w, status, "detail", pageData{Title: "Transaction", Path: r.URL.Path, View: view})
}

// requestID reads the {id} route variable, answering 400 when it does not fit a uint64.
func requestID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid request id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (s *CivilService) render(w http.ResponseWriter, status int, name string, data pageData) {
	data.Explorer = s.explorer
	var buf bytes.Buffer
	if err := render(&buf, name, data); err != nil {
		log.WithField("page", name).Error("Failed to render page: ", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
