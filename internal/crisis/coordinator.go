package crisis

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/astralcore/haven/internal/classify"
	"github.com/astralcore/haven/internal/models"
	"github.com/astralcore/haven/internal/notify"
	"github.com/astralcore/haven/internal/observ"
	"github.com/astralcore/haven/internal/protocol"
	"github.com/astralcore/haven/internal/repository"
)

// Delivery is the slice of the connection hub the coordinator needs for
// outbound sends. Everything is asynchronous on the hub side; these calls
// never block on a socket.
type Delivery interface {
	DeliverToUser(userID uuid.UUID, event string, payload any)
	BroadcastToRole(role models.Role, event string, payload any)
}

// PresenceSource answers counselor-availability lookups.
type PresenceSource interface {
	IsOnline(userID uuid.UUID) bool
}

// EmergencyFallback is surfaced whenever a crisis action is denied (rate
// limit) or cannot reach a counselor.
const EmergencyFallback = "If you are in immediate danger, call your local emergency number (911) " +
	"or the 988 Suicide & Crisis Lifeline now. You do not have to wait for this app."

// Config holds the coordinator's timing and load policy.
type Config struct {
	CounselorLoadCap   int
	MaxEscalationLevel int
	ConfidenceFloor    float64
	EscalationDelays   map[models.Severity]time.Duration
}

// DefaultEscalationDelays is the canonical severity → timeout table,
// applied uniformly at every call site.
func DefaultEscalationDelays() map[models.Severity]time.Duration {
	return map[models.Severity]time.Duration{
		models.SeverityCritical: 2 * time.Minute,
		models.SeverityHigh:     5 * time.Minute,
		models.SeverityMedium:   10 * time.Minute,
		models.SeverityLow:      30 * time.Minute,
	}
}

type counselorState struct {
	role      models.Role
	available bool
}

// Coordinator owns the crisis-alert state machine: intake, assignment,
// escalation timers, and resolution. Alert lifecycle is independent of
// any single connection; a user disconnecting does not close their alert.
type Coordinator struct {
	mu         sync.Mutex
	alerts     map[uuid.UUID]*models.CrisisAlert
	openByUser map[uuid.UUID]uuid.UUID
	counselors map[uuid.UUID]*counselorState
	loads      map[uuid.UUID]int

	timers *timerRegistry

	cfg      Config
	delivery Delivery
	presence PresenceSource
	notifier notify.Notifier
	recorder *repository.Recorder
	metrics  *observ.Metrics
	logger   *zap.Logger
}

func NewCoordinator(cfg Config, delivery Delivery, presence PresenceSource, notifier notify.Notifier, recorder *repository.Recorder, metrics *observ.Metrics, logger *zap.Logger) *Coordinator {
	if cfg.EscalationDelays == nil {
		cfg.EscalationDelays = DefaultEscalationDelays()
	}
	return &Coordinator{
		alerts:     make(map[uuid.UUID]*models.CrisisAlert),
		openByUser: make(map[uuid.UUID]uuid.UUID),
		counselors: make(map[uuid.UUID]*counselorState),
		loads:      make(map[uuid.UUID]int),
		timers:     newTimerRegistry(),
		cfg:        cfg,
		delivery:   delivery,
		presence:   presence,
		notifier:   notifier,
		recorder:   recorder,
		metrics:    metrics,
		logger:     logger,
	}
}

// CreateAlert opens an alert for the user, or merges into their existing
// open alert: severity becomes the max, triggers the union. On a fresh
// alert it attempts immediate assignment, schedules the escalation timer,
// and sends the user an immediate response.
func (c *Coordinator) CreateAlert(userID uuid.UUID, severity models.Severity, triggers []string) models.CrisisAlert {
	c.mu.Lock()

	if existingID, ok := c.openByUser[userID]; ok {
		alert := c.alerts[existingID]
		raised := c.mergeLocked(alert, severity, triggers)
		snapshot := *alert
		c.mu.Unlock()

		c.recorder.RecordAlertUpdated(snapshot)
		if raised {
			// A raised severity shortens the remaining window.
			c.scheduleEscalation(snapshot.ID, snapshot.Severity)
		}
		return snapshot
	}

	alert := &models.CrisisAlert{
		ID:        uuid.New(),
		UserID:    userID,
		Severity:  severity,
		Status:    models.AlertPending,
		Triggers:  append([]string(nil), triggers...),
		CreatedAt: time.Now(),
	}
	c.alerts[alert.ID] = alert
	c.openByUser[userID] = alert.ID

	assignee, assigned := c.assignLocked(alert)
	c.updateGaugesLocked()
	snapshot := *alert
	c.mu.Unlock()

	c.logger.Info("crisis alert created",
		zap.String("alert_id", snapshot.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("severity", string(snapshot.Severity)),
		zap.Bool("assigned", assigned),
	)

	c.recorder.RecordAlertCreated(snapshot)
	c.delivery.DeliverToUser(userID, protocol.PushCrisisResponse, immediateResponse(snapshot))

	if assigned {
		c.notifyAssignment(snapshot, assignee)
		c.scheduleEscalation(snapshot.ID, snapshot.Severity)
	} else {
		// No eligible counselor: escalate now instead of leaving the
		// alert pending.
		c.escalate(snapshot.ID)
	}

	return snapshot
}

// HandlePotentialCrisis is the intake from content analysis. It opens or
// merges an alert only when the classifier's confidence clears the floor.
func (c *Coordinator) HandlePotentialCrisis(userID uuid.UUID, result classify.Result) (models.CrisisAlert, bool) {
	if !result.CrisisDetected || result.Confidence < c.cfg.ConfidenceFloor {
		return models.CrisisAlert{}, false
	}
	return c.CreateAlert(userID, result.Severity, result.Keywords), true
}

// mergeLocked raises the open alert to at least the incoming severity and
// unions the trigger lists. Reports whether severity increased.
func (c *Coordinator) mergeLocked(alert *models.CrisisAlert, severity models.Severity, triggers []string) bool {
	raised := severity.Rank() > alert.Severity.Rank()
	alert.Severity = models.MaxSeverity(alert.Severity, severity)

	known := make(map[string]bool, len(alert.Triggers))
	for _, t := range alert.Triggers {
		known[t] = true
	}
	for _, t := range triggers {
		if !known[t] {
			alert.Triggers = append(alert.Triggers, t)
			known[t] = true
		}
	}
	return raised
}

// assignLocked picks the eligible counselor with the lowest load, ties
// broken by lowest id. Eligible means: marked available, counselor or
// admin role, currently present, load strictly below the cap.
func (c *Coordinator) assignLocked(alert *models.CrisisAlert) (uuid.UUID, bool) {
	var best uuid.UUID
	bestLoad := -1

	ids := make([]uuid.UUID, 0, len(c.counselors))
	for id := range c.counselors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	for _, id := range ids {
		state := c.counselors[id]
		if !state.available || !models.IsCounselorRole(state.role) {
			continue
		}
		if !c.presence.IsOnline(id) {
			continue
		}
		load := c.loads[id]
		if load >= c.cfg.CounselorLoadCap {
			continue
		}
		if bestLoad == -1 || load < bestLoad {
			best = id
			bestLoad = load
		}
	}

	if bestLoad == -1 {
		return uuid.Nil, false
	}

	alert.AssignedCounselors = append(alert.AssignedCounselors, best)
	alert.Status = models.AlertAssigned
	c.loads[best]++
	return best, true
}

func (c *Coordinator) notifyAssignment(alert models.CrisisAlert, counselorID uuid.UUID) {
	c.delivery.DeliverToUser(counselorID, protocol.PushCrisisAssigned, alert)
	c.delivery.DeliverToUser(alert.UserID, protocol.PushCrisisResponse, map[string]any{
		"alert_id": alert.ID,
		"message":  "A counselor has been notified and will be with you shortly.",
	})
}

func (c *Coordinator) scheduleEscalation(alertID uuid.UUID, severity models.Severity) {
	delay, ok := c.cfg.EscalationDelays[severity]
	if !ok {
		delay = c.cfg.EscalationDelays[models.SeverityMedium]
	}
	c.timers.Schedule(alertID, delay, func() { c.escalate(alertID) })
}

// escalate advances the alert one escalation level. Called by timer fire
// and directly when no counselor is eligible. A resolve that raced the
// timer wins: escalating a terminal alert is a no-op.
func (c *Coordinator) escalate(alertID uuid.UUID) {
	c.mu.Lock()
	alert, ok := c.alerts[alertID]
	if !ok || !alert.Status.Open() ||
		alert.Status == models.AlertEmergencyDispatched ||
		alert.Status == models.AlertInProgress {
		c.mu.Unlock()
		return
	}

	alert.EscalationLevel++
	if alert.EscalationLevel >= 3 {
		alert.Severity = models.SeverityCritical
	}

	reachedMax := alert.EscalationLevel >= c.cfg.MaxEscalationLevel
	if reachedMax {
		alert.Status = models.AlertEmergencyDispatched
	} else {
		alert.Status = models.AlertEscalated
	}
	c.updateGaugesLocked()
	snapshot := *alert
	c.mu.Unlock()

	c.logger.Warn("crisis alert escalated",
		zap.String("alert_id", alertID.String()),
		zap.Int("level", snapshot.EscalationLevel),
		zap.String("severity", string(snapshot.Severity)),
		zap.Bool("emergency_dispatched", reachedMax),
	)
	if c.metrics != nil {
		c.metrics.Escalations.Inc()
	}

	c.delivery.BroadcastToRole(models.RoleAdmin, protocol.PushSupervisorAlert, map[string]any{
		"alert":    snapshot,
		"priority": "URGENT",
	})

	if snapshot.Severity == models.SeverityCritical {
		c.runEmergencyProtocol(snapshot)
	}

	c.recorder.RecordAlertUpdated(snapshot)

	if !reachedMax {
		c.scheduleEscalation(alertID, snapshot.Severity)
	} else {
		c.timers.Cancel(alertID)
	}
}

// runEmergencyProtocol notifies emergency contacts through the outbound
// channel and surfaces the user's safety plan.
func (c *Coordinator) runEmergencyProtocol(alert models.CrisisAlert) {
	notification := models.Notification{
		ID:        uuid.New(),
		UserID:    alert.UserID,
		Kind:      "emergency_contact",
		Title:     "Emergency support requested",
		Body:      "A person you are listed as an emergency contact for may need urgent support.",
		Priority:  "URGENT",
		CreatedAt: time.Now(),
	}
	if err := c.notifier.Send(context.Background(), notification); err != nil {
		c.logger.Error("emergency contact notification failed",
			zap.String("alert_id", alert.ID.String()),
			zap.Error(err),
		)
	}

	c.delivery.DeliverToUser(alert.UserID, protocol.PushEmergencyProtocol, map[string]any{
		"alert_id":    alert.ID,
		"safety_plan": true,
		"message":     EmergencyFallback,
	})
	c.recorder.RecordAudit(alert.UserID, "crisis.emergency_protocol", alert.ID, string(alert.Severity))
}

// ResponseKind is how a counselor answers an alert.
type ResponseKind string

const (
	ResponseAcknowledge ResponseKind = "acknowledge"
	ResponseAccept      ResponseKind = "accept"
	ResponseTransfer    ResponseKind = "transfer"
)

// Respond records a counselor response. Accept assigns the counselor (and
// recovers an ESCALATED alert back to ASSIGNED); acknowledge by the
// assigned counselor moves the session to IN_PROGRESS; transfer drops the
// current assignment and reassigns. Every kind cancels the pending
// escalation timer.
func (c *Coordinator) Respond(alertID, counselorID uuid.UUID, kind ResponseKind) error {
	c.mu.Lock()
	alert, ok := c.alerts[alertID]
	if !ok {
		c.mu.Unlock()
		return ErrAlertNotFound
	}
	if !alert.Status.Open() {
		c.mu.Unlock()
		return ErrAlertClosed
	}

	now := time.Now()
	if alert.RespondedAt == nil {
		alert.RespondedAt = &now
	}

	var newAssignee uuid.UUID
	var reassigned bool
	switch kind {
	case ResponseAccept:
		if alert.Primary() != counselorID {
			c.unassignLocked(alert)
			alert.AssignedCounselors = append(alert.AssignedCounselors, counselorID)
			c.loads[counselorID]++
		}
		alert.Status = models.AlertAssigned
	case ResponseAcknowledge:
		if alert.Primary() == counselorID {
			alert.Status = models.AlertInProgress
		}
	case ResponseTransfer:
		c.unassignLocked(alert)
		alert.Status = models.AlertPending
		newAssignee, reassigned = c.assignLocked(alert)
	default:
		c.mu.Unlock()
		return ErrUnknownResponseKind
	}
	c.updateGaugesLocked()
	snapshot := *alert
	c.mu.Unlock()

	c.timers.Cancel(alertID)
	c.recorder.RecordAlertUpdated(snapshot)
	c.recorder.RecordAudit(counselorID, "crisis.respond."+string(kind), alertID, "")

	if kind == ResponseTransfer {
		if reassigned {
			c.notifyAssignment(snapshot, newAssignee)
			c.scheduleEscalation(alertID, snapshot.Severity)
		} else {
			c.escalate(alertID)
		}
	}
	return nil
}

// Resolve terminalizes the alert, releases the counselor's load, and
// notifies the originating user.
func (c *Coordinator) Resolve(alertID, counselorID uuid.UUID, note string) error {
	c.mu.Lock()
	alert, ok := c.alerts[alertID]
	if !ok {
		c.mu.Unlock()
		return ErrAlertNotFound
	}
	if alert.Status == models.AlertResolved {
		c.mu.Unlock()
		return ErrAlertClosed
	}

	now := time.Now()
	alert.Status = models.AlertResolved
	alert.ResolvedAt = &now
	alert.ResolutionNote = note
	c.unassignLocked(alert)
	delete(c.openByUser, alert.UserID)
	c.updateGaugesLocked()
	snapshot := *alert
	c.mu.Unlock()

	c.timers.Cancel(alertID)

	c.logger.Info("crisis alert resolved",
		zap.String("alert_id", alertID.String()),
		zap.String("counselor_id", counselorID.String()),
	)

	c.recorder.RecordAlertUpdated(snapshot)
	c.recorder.RecordAudit(counselorID, "crisis.resolve", alertID, note)
	c.delivery.DeliverToUser(snapshot.UserID, protocol.PushCrisisResolved, map[string]any{
		"alert_id": snapshot.ID,
		"message": "Thank you for reaching out today. Support is always here when you " +
			"need it, and you can start a new conversation any time.",
	})
	return nil
}

// unassignLocked clears the alert's assignment and returns the load held
// by its counselors.
func (c *Coordinator) unassignLocked(alert *models.CrisisAlert) {
	for _, id := range alert.AssignedCounselors {
		if c.loads[id] > 0 {
			c.loads[id]--
		}
	}
	alert.AssignedCounselors = nil
}

// CounselorConnected registers a counselor as present and available.
func (c *Coordinator) CounselorConnected(counselorID uuid.UUID, role models.Role) {
	if !models.IsCounselorRole(role) {
		return
	}
	c.mu.Lock()
	c.counselors[counselorID] = &counselorState{role: role, available: true}
	c.mu.Unlock()

	c.assignUnattended()
}

// CounselorDisconnected reassigns the counselor's open alerts. Alerts
// with no other eligible counselor escalate immediately.
func (c *Coordinator) CounselorDisconnected(counselorID uuid.UUID) {
	c.mu.Lock()
	state, ok := c.counselors[counselorID]
	if !ok {
		c.mu.Unlock()
		return
	}
	state.available = false

	type handoff struct {
		alertID    uuid.UUID
		severity   models.Severity
		assignee   uuid.UUID
		reassigned bool
		snapshot   models.CrisisAlert
	}
	var handoffs []handoff

	for _, alert := range c.alerts {
		if !alert.Status.Open() || alert.Primary() != counselorID {
			continue
		}
		c.unassignLocked(alert)
		alert.Status = models.AlertPending
		assignee, ok := c.assignLocked(alert)
		handoffs = append(handoffs, handoff{
			alertID:    alert.ID,
			severity:   alert.Severity,
			assignee:   assignee,
			reassigned: ok,
			snapshot:   *alert,
		})
	}
	c.updateGaugesLocked()
	c.mu.Unlock()

	for _, h := range handoffs {
		c.recorder.RecordAlertUpdated(h.snapshot)
		if h.reassigned {
			c.notifyAssignment(h.snapshot, h.assignee)
			c.scheduleEscalation(h.alertID, h.severity)
		} else {
			c.escalate(h.alertID)
		}
	}
}

// SetCounselorAvailability handles counselor_available / counselor_busy.
// Becoming available triggers a pass over unattended open alerts.
func (c *Coordinator) SetCounselorAvailability(counselorID uuid.UUID, role models.Role, available bool) {
	if !models.IsCounselorRole(role) {
		return
	}
	c.mu.Lock()
	state, ok := c.counselors[counselorID]
	if !ok {
		state = &counselorState{role: role}
		c.counselors[counselorID] = state
	}
	state.available = available
	c.mu.Unlock()

	if available {
		c.assignUnattended()
	}
}

// assignUnattended assigns open, unassigned alerts oldest-first.
func (c *Coordinator) assignUnattended() {
	c.mu.Lock()

	var open []*models.CrisisAlert
	for _, alert := range c.alerts {
		if alert.Status.Open() && alert.Status != models.AlertEmergencyDispatched && len(alert.AssignedCounselors) == 0 {
			open = append(open, alert)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].CreatedAt.Before(open[j].CreatedAt) })

	type assigned struct {
		snapshot models.CrisisAlert
		assignee uuid.UUID
	}
	var done []assigned
	for _, alert := range open {
		if assignee, ok := c.assignLocked(alert); ok {
			done = append(done, assigned{snapshot: *alert, assignee: assignee})
		}
	}
	c.updateGaugesLocked()
	c.mu.Unlock()

	for _, d := range done {
		c.recorder.RecordAlertUpdated(d.snapshot)
		c.notifyAssignment(d.snapshot, d.assignee)
		c.scheduleEscalation(d.snapshot.ID, d.snapshot.Severity)
	}
}

// Get returns a copy of the alert.
func (c *Coordinator) Get(alertID uuid.UUID) (models.CrisisAlert, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	alert, ok := c.alerts[alertID]
	if !ok {
		return models.CrisisAlert{}, false
	}
	return *alert, true
}

// OpenAlertForUser returns the user's open alert id, if any.
func (c *Coordinator) OpenAlertForUser(userID uuid.UUID) (uuid.UUID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.openByUser[userID]
	return id, ok
}

// ActiveCounselorsCount reports counselors currently present and
// available.
func (c *Coordinator) ActiveCounselorsCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for id, state := range c.counselors {
		if state.available && c.presence.IsOnline(id) {
			n++
		}
	}
	return n
}

// CounselorLoad reports the number of active alerts assigned to the
// counselor.
func (c *Coordinator) CounselorLoad(counselorID uuid.UUID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loads[counselorID]
}

// OpenAlertCounts returns open alerts grouped by status.
func (c *Coordinator) OpenAlertCounts() map[models.AlertStatus]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	counts := make(map[models.AlertStatus]int)
	for _, alert := range c.alerts {
		if alert.Status.Open() {
			counts[alert.Status]++
		}
	}
	return counts
}

func (c *Coordinator) updateGaugesLocked() {
	if c.metrics == nil {
		return
	}
	counts := make(map[models.AlertStatus]int)
	for _, alert := range c.alerts {
		if alert.Status.Open() {
			counts[alert.Status]++
		}
	}
	for _, status := range []models.AlertStatus{
		models.AlertPending, models.AlertAssigned, models.AlertInProgress,
		models.AlertEscalated, models.AlertEmergencyDispatched,
	} {
		c.metrics.AlertsOpen.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}

// immediateResponse is the tailored first reply sent to a user the moment
// their alert opens.
func immediateResponse(alert models.CrisisAlert) map[string]any {
	var message string
	switch alert.Severity {
	case models.SeverityCritical:
		message = "We hear you, and we're getting you help right now. A crisis counselor is " +
			"being connected. If you are in immediate danger, please call 911 or 988."
	case models.SeverityHigh:
		message = "Thank you for telling us. You're not alone. A counselor is being notified " +
			"and will reach out shortly."
	case models.SeverityMedium:
		message = "It sounds like things are heavy right now. We've let our support team know; " +
			"someone will check in with you soon."
	default:
		message = "We're here for you. A member of our support team has been notified, and " +
			"there are resources available whenever you're ready."
	}
	return map[string]any{
		"alert_id": alert.ID,
		"severity": alert.Severity,
		"kind":     "immediate",
		"message":  message,
		"actions":  []string{"talk_to_counselor", "view_safety_plan", "breathing_exercise", "emergency_services"},
	}
}
