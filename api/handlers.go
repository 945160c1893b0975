/*
handlers.go - HTTP API handlers for the fund lock and payout engine

PURPOSE:
  Exposes the vault engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Users:
    POST   /api/users                         Open an account
    GET    /api/users/{id}                    Account details
    GET    /api/users/{id}/balance            Wallet summary

  Locks:
    GET    /api/users/{id}/locks              List locks
    POST   /api/users/{id}/locks              Lock funds
    GET    /api/users/{id}/locks/upcoming     Next unlocks
    GET    /api/users/{id}/locks/{lockId}     One lock

  Schedules:
    GET    /api/users/{id}/schedules          List schedules
    POST   /api/users/{id}/schedules          Create schedule
    GET    /api/users/{id}/schedules/{sid}    One schedule
    PUT    /api/users/{id}/schedules/{sid}    Update mutable fields
    DELETE /api/users/{id}/schedules/{sid}    Cancel and release

  Payouts:
    GET    /api/users/{id}/payouts            Merged locks+schedules view
    POST   /api/users/{id}/payouts/{itemId}/complete?kind=lock|schedule

  Funding:
    POST   /api/users/{id}/deposits           Initiate deposit
    POST   /api/users/{id}/deposits/complete  Settle by reference
    POST   /api/users/{id}/withdrawals        Withdraw to bank
    GET    /api/users/{id}/transactions       Paged ledger history
    GET    /api/users/{id}/transactions/{txId}

  Banks:
    GET    /api/users/{id}/banks              List accounts
    POST   /api/users/{id}/banks              Register account
    POST   /api/users/{id}/banks/{bankId}/default
    DELETE /api/users/{id}/banks/{bankId}

  Impulse:
    GET    /api/users/{id}/stats              Current month stats
    POST   /api/users/{id}/impulse            Track resisted impulse
    PUT    /api/users/{id}/goal               Set savings goal

  Admin:
    POST   /api/admin/scan                    Run the due-payout sweep now

ERROR HANDLING:
  Engine errors are classified, not inspected per call site:
  - 400: validation, insufficient funds
  - 404: missing entity or ownership mismatch
  - 409: wrong status for the transition (already completed)
  - 500: storage and unexpected failures

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public and the
  user ID rides in the path.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pocketvault/ledger-engine/ledger"
	"github.com/pocketvault/ledger-engine/vault"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Users     *vault.Users
	Locks     *vault.LockManager
	Schedules *vault.ScheduleManager
	Payouts   *vault.PayoutEngine
	Banks     *vault.BankRegistry
	Funding   *vault.Funding
	Impulse   *vault.ImpulseTracker

	Log *zap.Logger
}

// NewHandler wires the handlers to the engine.
func NewHandler(users *vault.Users, locks *vault.LockManager, schedules *vault.ScheduleManager,
	payouts *vault.PayoutEngine, banks *vault.BankRegistry, funding *vault.Funding,
	impulse *vault.ImpulseTracker, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Users:     users,
		Locks:     locks,
		Schedules: schedules,
		Payouts:   payouts,
		Banks:     banks,
		Funding:   funding,
		Impulse:   impulse,
		Log:       log,
	}
}

func userID(r *http.Request) ledger.UserID {
	return ledger.UserID(chi.URLParam(r, "id"))
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// CreateUser opens an account.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	user, err := h.Users.CreateUser(r.Context(), req.Email, req.FullName)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(user))
}

// GetUser returns account details.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.Users.GetUser(r.Context(), userID(r))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(user))
}

// GetBalance returns the wallet summary.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	bal, err := h.Users.GetBalance(r.Context(), userID(r))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{
		Balance:     bal.Balance.String(),
		TotalLocked: bal.TotalLocked.String(),
		Total:       bal.Total.String(),
	})
}

// =============================================================================
// LOCK HANDLERS
// =============================================================================

// ListLocks returns all lock periods for the user.
func (h *Handler) ListLocks(w http.ResponseWriter, r *http.Request) {
	locks, err := h.Locks.GetAllLocks(r.Context(), userID(r))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	dtos := make([]LockDTO, len(locks))
	for i := range locks {
		dtos[i] = toLockDTO(&locks[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateLock locks funds for a fixed period.
func (h *Handler) CreateLock(w http.ResponseWriter, r *http.Request) {
	var req CreateLockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	lock, err := h.Locks.CreateLock(r.Context(), userID(r), amount, req.IntervalDays, req.Description)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLockDTO(lock))
}

// GetUpcomingUnlocks returns the next few unlock dates.
func (h *Handler) GetUpcomingUnlocks(w http.ResponseWriter, r *http.Request) {
	locks, err := h.Locks.GetUpcomingUnlocks(r.Context(), userID(r))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	dtos := make([]LockDTO, len(locks))
	for i := range locks {
		dtos[i] = toLockDTO(&locks[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetLock returns one lock period.
func (h *Handler) GetLock(w http.ResponseWriter, r *http.Request) {
	lock, err := h.Locks.GetLockByID(r.Context(), userID(r), ledger.LockID(chi.URLParam(r, "lockId")))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLockDTO(lock))
}

// =============================================================================
// SCHEDULE HANDLERS
// =============================================================================

// ListSchedules returns all schedules for the user.
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	scheds, err := h.Schedules.GetUserSchedules(r.Context(), userID(r))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	dtos := make([]ScheduleDTO, len(scheds))
	for i := range scheds {
		dtos[i] = toScheduleDTO(&scheds[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateSchedule creates a future-dated payout schedule.
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req CreateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	payout := decimal.Zero
	if req.PayoutAmount != "" {
		if payout, err = decimal.NewFromString(req.PayoutAmount); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid payout_amount", err)
			return
		}
	}
	scheduledDate, err := parseDate(req.ScheduledDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid scheduled_date (use YYYY-MM-DD or RFC3339)", err)
		return
	}

	sched, err := h.Schedules.CreateSchedule(r.Context(), userID(r), vault.CreateScheduleRequest{
		Title:         req.Title,
		Amount:        amount,
		PayoutAmount:  payout,
		ScheduledDate: scheduledDate,
		Recurrence:    req.Recurrence,
		AutoPayout:    req.AutoPayout,
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toScheduleDTO(sched))
}

// GetSchedule returns one schedule.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	sched, err := h.Schedules.GetScheduleByID(r.Context(), userID(r), ledger.ScheduleID(chi.URLParam(r, "scheduleId")))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleDTO(sched))
}

// UpdateSchedule rewrites mutable fields of a schedule.
func (h *Handler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	var req UpdateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	upd := vault.UpdateScheduleRequest{
		Title:      req.Title,
		Recurrence: req.Recurrence,
		AutoPayout: req.AutoPayout,
	}
	if req.PayoutAmount != nil {
		payout, err := decimal.NewFromString(*req.PayoutAmount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid payout_amount", err)
			return
		}
		upd.PayoutAmount = &payout
	}
	if req.ScheduledDate != nil {
		date, err := parseDate(*req.ScheduledDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid scheduled_date", err)
			return
		}
		upd.ScheduledDate = &date
	}

	sched, err := h.Schedules.UpdateSchedule(r.Context(), userID(r), ledger.ScheduleID(chi.URLParam(r, "scheduleId")), upd)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleDTO(sched))
}

// DeleteSchedule cancels a schedule and releases its commitment.
func (h *Handler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	err := h.Schedules.DeleteSchedule(r.Context(), userID(r), ledger.ScheduleID(chi.URLParam(r, "scheduleId")))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// =============================================================================
// PAYOUT HANDLERS
// =============================================================================

// ListPayouts returns the merged locks+schedules view sorted by payout date.
func (h *Handler) ListPayouts(w http.ResponseWriter, r *http.Request) {
	items, err := h.Schedules.GetUserPayouts(r.Context(), userID(r))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	dtos := make([]PayoutItemDTO, len(items))
	for i, it := range items {
		dtos[i] = toPayoutItemDTO(it)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CompletePayout settles one lock or schedule.
// POST /api/users/{id}/payouts/{itemId}/complete?kind=lock|schedule
func (h *Handler) CompletePayout(w http.ResponseWriter, r *http.Request) {
	kind := vault.PayoutKind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = vault.KindSchedule
	}

	res, err := h.Payouts.CompletePayout(r.Context(), userID(r), chi.URLParam(r, "itemId"), kind)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayoutResultDTO(res))
}

// =============================================================================
// FUNDING HANDLERS
// =============================================================================

// InitiateDeposit opens a pending deposit.
func (h *Handler) InitiateDeposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	txn, err := h.Funding.InitiateDeposit(r.Context(), userID(r), amount)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(txn))
}

// CompleteDeposit settles a pending deposit by reference. Idempotent.
func (h *Handler) CompleteDeposit(w http.ResponseWriter, r *http.Request) {
	var req CompleteDepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Reference == "" {
		writeError(w, http.StatusBadRequest, "Missing reference", nil)
		return
	}

	txn, err := h.Funding.CompleteDeposit(r.Context(), userID(r), req.Reference)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(txn))
}

// Withdraw debits the wallet to a bank account.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	txn, err := h.Funding.InitiateWithdrawal(r.Context(), userID(r), amount, ledger.BankID(req.BankID))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(txn))
}

// ListTransactions pages the ledger history, newest first.
// GET /api/users/{id}/transactions?type=&page=&limit=
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ledger.TxnFilter{Type: ledger.TxnType(q.Get("type"))}
	if v := q.Get("page"); v != "" {
		filter.Page, _ = strconv.Atoi(v)
	}
	if v := q.Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}

	txns, total, err := h.Funding.ListTransactions(r.Context(), userID(r), filter)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	dtos := make([]TransactionDTO, len(txns))
	for i := range txns {
		dtos[i] = toTransactionDTO(&txns[i])
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}
	writeJSON(w, http.StatusOK, TransactionListDTO{
		Transactions: dtos,
		Total:        total,
		Page:         filter.Page,
		Limit:        filter.Limit,
	})
}

// GetTransaction returns one ledger row.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	txn, err := h.Funding.GetTransaction(r.Context(), userID(r), ledger.TransactionID(chi.URLParam(r, "txId")))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(txn))
}

// =============================================================================
// BANK HANDLERS
// =============================================================================

// ListBanks returns the user's registered bank accounts.
func (h *Handler) ListBanks(w http.ResponseWriter, r *http.Request) {
	banks, err := h.Banks.ListBanks(r.Context(), userID(r))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	dtos := make([]BankDTO, len(banks))
	for i := range banks {
		dtos[i] = toBankDTO(&banks[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AddBank registers a payout destination.
func (h *Handler) AddBank(w http.ResponseWriter, r *http.Request) {
	var req AddBankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	bank, err := h.Banks.AddBank(r.Context(), userID(r), vault.AddBankRequest{
		BankName:      req.BankName,
		AccountNumber: req.AccountNumber,
		AccountName:   req.AccountName,
		BankCode:      req.BankCode,
		SetDefault:    req.SetDefault,
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBankDTO(bank))
}

// SetDefaultBank moves the default flag.
func (h *Handler) SetDefaultBank(w http.ResponseWriter, r *http.Request) {
	err := h.Banks.SetDefaultBank(r.Context(), userID(r), ledger.BankID(chi.URLParam(r, "bankId")))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "default updated"})
}

// DeleteBank removes a registered account.
func (h *Handler) DeleteBank(w http.ResponseWriter, r *http.Request) {
	err := h.Banks.DeleteBank(r.Context(), userID(r), ledger.BankID(chi.URLParam(r, "bankId")))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// =============================================================================
// IMPULSE HANDLERS
// =============================================================================

// GetStats returns the current month's savings summary.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Impulse.GetStats(r.Context(), userID(r))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatsDTO(stats))
}

// TrackImpulse records a resisted impulse purchase.
func (h *Handler) TrackImpulse(w http.ResponseWriter, r *http.Request) {
	var req ImpulseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount := decimal.Zero
	if req.Amount != "" {
		var err error
		if amount, err = decimal.NewFromString(req.Amount); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid amount", err)
			return
		}
	}

	stats, err := h.Impulse.TrackImpulseStopped(r.Context(), userID(r), amount)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatsDTO(stats))
}

// SetGoal updates the monthly savings goal.
func (h *Handler) SetGoal(w http.ResponseWriter, r *http.Request) {
	var req GoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	goal, err := decimal.NewFromString(req.SavingsGoal)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid savings_goal", err)
		return
	}

	stats, err := h.Impulse.SetSavingsGoal(r.Context(), userID(r), goal)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatsDTO(stats))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// TriggerScan runs the due-payout sweep immediately.
// POST /api/admin/scan
func (h *Handler) TriggerScan(w http.ResponseWriter, r *http.Request) {
	res, err := h.Payouts.ScanAndCompleteDue(r.Context())
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"locks_completed":     res.LocksCompleted,
		"schedules_completed": res.SchedulesCompleted,
		"skipped":             res.Skipped,
		"failed":              res.Failed,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// parseDate accepts YYYY-MM-DD or RFC3339.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// writeEngineError maps engine error classes to HTTP statuses.
func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case ledger.IsInvalidState(err):
		writeError(w, http.StatusConflict, "Conflict", err)
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	default:
		h.Log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
