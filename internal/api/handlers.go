package api

import (
	"net/http"
	"strconv"
)

// queryInt parses an integer query parameter, falling back to a default and
// clamping to a maximum. Unparseable values fall back rather than erroring.
func queryInt(r *http.Request, name string, def, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}

// handleSummary returns transfer totals and scan progress.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.statsService.Summary(r.Context())
	if err != nil {
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// handleProgress returns every stored scan checkpoint.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := s.statsService.Progress(r.Context())
	if err != nil {
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"checkpoints": progress})
}

// handleTopHolders returns the highest net balances, largest first.
func (s *Server) handleTopHolders(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50, 1000)

	holders, err := s.statsService.TopHolders(r.Context(), limit)
	if err != nil {
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"holders": holders,
		"limit":   limit,
	})
}

// handleConservation runs the ledger conservation check on demand.
func (s *Server) handleConservation(w http.ResponseWriter, r *http.Request) {
	if err := s.holderService.VerifyConservation(r.Context()); err != nil {
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "balanced"})
}

// handleRecentTransfers returns the most recently ingested transfers.
func (s *Server) handleRecentTransfers(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100, 1000)

	transfers, err := s.statsService.Recent(r.Context(), limit)
	if err != nil {
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"transfers": transfers,
		"limit":     limit,
	})
}

// handleDailyAudit returns per-day transfer counts and raw volume.
func (s *Server) handleDailyAudit(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 30, 365)

	rows, err := s.statsService.DailyAudit(r.Context(), days)
	if err != nil {
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"days":  days,
		"audit": rows,
	})
}

// handleLatestSnapshot returns the most recent supply snapshot.
func (s *Server) handleLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.snapshotService == nil {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "supply snapshots are not configured", nil)
		return
	}

	snap, err := s.snapshotService.Latest(r.Context())
	if err != nil {
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return
	}
	if snap == nil {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "no supply snapshot taken yet", nil)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// handleSnapshotHistory returns recent supply snapshots, newest first.
func (s *Server) handleSnapshotHistory(w http.ResponseWriter, r *http.Request) {
	if s.snapshotService == nil {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "supply snapshots are not configured", nil)
		return
	}
	limit := queryInt(r, "limit", 30, 365)

	snapshots, err := s.snapshotService.History(r.Context(), limit)
	if err != nil {
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"snapshots": snapshots,
		"limit":     limit,
	})
}
