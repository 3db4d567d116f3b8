package api

import "net/http"

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	report, err := s.Stats.Report(r.Context(), s.now())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
