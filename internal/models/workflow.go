package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TriggerKind identifies what kind of business condition starts a workflow
type TriggerKind string

const (
	TriggerAppointmentBooked    TriggerKind = "appointment_booked"
	TriggerAppointmentCompleted TriggerKind = "appointment_completed"
	TriggerAppointmentCancelled TriggerKind = "appointment_cancelled"
	TriggerNoShow               TriggerKind = "no_show"
	TriggerNewClient            TriggerKind = "new_client"
	TriggerClientBirthday       TriggerKind = "client_birthday"
	TriggerInactiveClient       TriggerKind = "inactive_client"
	TriggerReviewReceived       TriggerKind = "review_received"
	TriggerPaymentReceived      TriggerKind = "payment_received"
)

// ScanBased reports whether the trigger fires from the periodic scan
// instead of a pushed event.
func (k TriggerKind) ScanBased() bool {
	switch k {
	case TriggerClientBirthday, TriggerInactiveClient, TriggerNoShow:
		return true
	}
	return false
}

// Valid reports whether the kind is one of the known trigger kinds
func (k TriggerKind) Valid() bool {
	switch k {
	case TriggerAppointmentBooked, TriggerAppointmentCompleted, TriggerAppointmentCancelled,
		TriggerNoShow, TriggerNewClient, TriggerClientBirthday, TriggerInactiveClient,
		TriggerReviewReceived, TriggerPaymentReceived:
		return true
	}
	return false
}

// ActionKind identifies one effect executed after a trigger fires
type ActionKind string

const (
	ActionSendEmail        ActionKind = "send_email"
	ActionSendSMS          ActionKind = "send_sms"
	ActionAddPoints        ActionKind = "add_points"
	ActionApplyDiscount    ActionKind = "apply_discount"
	ActionCreateTask       ActionKind = "create_task"
	ActionUpdateClient     ActionKind = "update_client"
	ActionSendNotification ActionKind = "send_notification"
	ActionWebhook          ActionKind = "webhook"
)

// Valid reports whether the kind is one of the known action kinds
func (k ActionKind) Valid() bool {
	switch k {
	case ActionSendEmail, ActionSendSMS, ActionAddPoints, ActionApplyDiscount,
		ActionCreateTask, ActionUpdateClient, ActionSendNotification, ActionWebhook:
		return true
	}
	return false
}

// Workflow is a persisted automation definition: one trigger, an ordered
// list of actions.
type Workflow struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	BusinessID  uuid.UUID   `json:"business_id" db:"business_id"`
	Name        string      `json:"name" db:"name"`
	Description *string     `json:"description,omitempty" db:"description"`
	IsActive    bool        `json:"is_active" db:"is_active"`
	Trigger     TriggerSpec `json:"trigger" db:"trigger"`
	Actions     ActionList  `json:"actions" db:"actions"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}

// Defaults for trigger filter configuration
const (
	DefaultGracePeriodMinutes = 15
	DefaultDaysSinceVisit     = 60
)

// Filter values shared by appointment triggers
const (
	FilterAll       = "all"
	ClientFilterNew = "new"
	ClientFilterRet = "returning"

	RatingFilterPositive = "positive"
	RatingFilterNegative = "negative"
)

// TriggerSpec is a tagged union over trigger kind. Exactly the config for
// the declared kind is meaningful; the rest stay nil.
type TriggerSpec struct {
	Kind        TriggerKind        `json:"kind"`
	Appointment *AppointmentFilter `json:"appointment,omitempty"`
	NoShow      *NoShowConfig      `json:"no_show,omitempty"`
	Birthday    *BirthdayConfig    `json:"birthday,omitempty"`
	Inactivity  *InactivityConfig  `json:"inactivity,omitempty"`
	Review      *ReviewFilter      `json:"review,omitempty"`
	Payment     *PaymentFilter     `json:"payment,omitempty"`
}

// AppointmentFilter gates appointment_booked/completed/cancelled triggers
type AppointmentFilter struct {
	ServiceFilter string `json:"service_filter,omitempty"` // "all" or a service category
	ClientFilter  string `json:"client_filter,omitempty"`  // "all", "new" or "returning"
}

// NoShowConfig configures the no_show trigger
type NoShowConfig struct {
	GracePeriodMinutes int `json:"grace_period_minutes,omitempty"`
}

// BirthdayConfig configures the client_birthday trigger
type BirthdayConfig struct {
	DaysBefore int `json:"days_before,omitempty"`
}

// InactivityConfig configures the inactive_client trigger
type InactivityConfig struct {
	DaysSinceVisit int `json:"days_since_visit,omitempty"`
}

// ReviewFilter gates the review_received trigger
type ReviewFilter struct {
	RatingFilter string `json:"rating_filter,omitempty"` // "all", "positive" (4-5) or "negative" (1-3)
}

// PaymentFilter gates the payment_received trigger
type PaymentFilter struct {
	MinAmount float64 `json:"min_amount,omitempty"`
}

// GracePeriod returns the configured no-show grace period, defaulting to 15 minutes
func (t *TriggerSpec) GracePeriod() time.Duration {
	if t.NoShow != nil && t.NoShow.GracePeriodMinutes > 0 {
		return time.Duration(t.NoShow.GracePeriodMinutes) * time.Minute
	}
	return DefaultGracePeriodMinutes * time.Minute
}

// DaysBefore returns how many days ahead of the birthday the trigger fires
func (t *TriggerSpec) DaysBefore() int {
	if t.Birthday != nil && t.Birthday.DaysBefore > 0 {
		return t.Birthday.DaysBefore
	}
	return 0
}

// DaysSinceVisit returns the inactivity threshold, defaulting to 60 days
func (t *TriggerSpec) DaysSinceVisit() int {
	if t.Inactivity != nil && t.Inactivity.DaysSinceVisit > 0 {
		return t.Inactivity.DaysSinceVisit
	}
	return DefaultDaysSinceVisit
}

// MinAmount returns the payment threshold, defaulting to zero (always fires)
func (t *TriggerSpec) MinAmount() float64 {
	if t.Payment != nil {
		return t.Payment.MinAmount
	}
	return 0
}

// DelayUnit is the unit of an action delay
type DelayUnit string

const (
	DelayMinutes DelayUnit = "minutes"
	DelayHours   DelayUnit = "hours"
	DelayDays    DelayUnit = "days"
)

// Delay is a non-negative offset from trigger-match time. Delays are
// independent offsets from t0, never chained off the previous action.
type Delay struct {
	Value int       `json:"value"`
	Unit  DelayUnit `json:"unit,omitempty"`
}

// Duration converts the delay to a time.Duration. Zero-value delays and
// unknown units resolve to zero (fire immediately).
func (d Delay) Duration() time.Duration {
	if d.Value <= 0 {
		return 0
	}
	switch d.Unit {
	case DelayHours:
		return time.Duration(d.Value) * time.Hour
	case DelayDays:
		return time.Duration(d.Value) * 24 * time.Hour
	default:
		return time.Duration(d.Value) * time.Minute
	}
}

// ActionSpec is a tagged union over action kind
type ActionSpec struct {
	Kind         ActionKind          `json:"kind"`
	Delay        Delay               `json:"delay,omitempty"`
	Email        *EmailAction        `json:"email,omitempty"`
	SMS          *SMSAction          `json:"sms,omitempty"`
	Points       *PointsAction       `json:"points,omitempty"`
	Discount     *DiscountAction     `json:"discount,omitempty"`
	Task         *TaskAction         `json:"task,omitempty"`
	ClientUpdate *ClientUpdateAction `json:"client_update,omitempty"`
	Notification *NotificationAction `json:"notification,omitempty"`
	Webhook      *WebhookAction      `json:"webhook,omitempty"`
}

// ComposeConfig opts a message action into AI rewriting before send
type ComposeConfig struct {
	Enabled bool   `json:"enabled"`
	Tone    string `json:"tone,omitempty"` // e.g. "warm", "professional", "playful"
}

// EmailAction configures a send_email action. Either a stored template id
// or a literal subject/body with {{client.firstName}}-style placeholders.
type EmailAction struct {
	TemplateID *uuid.UUID     `json:"template_id,omitempty"`
	Subject    string         `json:"subject,omitempty"`
	Body       string         `json:"body,omitempty"`
	Compose    *ComposeConfig `json:"compose,omitempty"`
}

// SMSAction configures a send_sms action
type SMSAction struct {
	TemplateID *uuid.UUID     `json:"template_id,omitempty"`
	Message    string         `json:"message,omitempty"`
	Compose    *ComposeConfig `json:"compose,omitempty"`
}

// PointsAction configures an add_points action against the loyalty ledger
type PointsAction struct {
	Points int    `json:"points"`
	Reason string `json:"reason,omitempty"`
}

// DiscountAction configures an apply_discount action
type DiscountAction struct {
	DiscountType  string  `json:"discount_type"` // "percent" or "fixed"
	DiscountValue float64 `json:"discount_value"`
	ValidDays     int     `json:"valid_days"`
}

// TaskAssignee selects who a created task is assigned to
type TaskAssignee string

const (
	AssigneeOwner         TaskAssignee = "owner"
	AssigneeAssignedStaff TaskAssignee = "assigned_staff"
	AssigneeManager       TaskAssignee = "manager"
)

// TaskAction configures a create_task action
type TaskAction struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Assignee    TaskAssignee `json:"assignee,omitempty"`
}

// ClientUpdateAction configures an update_client action (partial CRM patch)
type ClientUpdateAction struct {
	AddTags []string `json:"add_tags,omitempty"`
	Note    string   `json:"note,omitempty"`
}

// NotificationAction configures a send_notification action targeting staff
type NotificationAction struct {
	Title   string       `json:"title"`
	Message string       `json:"message,omitempty"`
	Target  TaskAssignee `json:"target,omitempty"`
}

// WebhookAction configures a webhook action
type WebhookAction struct {
	URL    string `json:"url"`
	Method string `json:"method,omitempty"`
}

// ActionList is an ordered sequence of ActionSpec stored as JSONB
type ActionList []ActionSpec

// CreateWorkflowRequest represents the request to create a workflow
type CreateWorkflowRequest struct {
	Name        string      `json:"name" validate:"required,min=1,max=200"`
	Description *string     `json:"description,omitempty"`
	IsActive    bool        `json:"is_active"`
	Trigger     TriggerSpec `json:"trigger" validate:"required"`
	Actions     ActionList  `json:"actions"`
}

// UpdateWorkflowRequest replaces the whole definition; there is no
// partial-field versioning.
type UpdateWorkflowRequest struct {
	Name        string      `json:"name" validate:"required,min=1,max=200"`
	Description *string     `json:"description,omitempty"`
	IsActive    bool        `json:"is_active"`
	Trigger     TriggerSpec `json:"trigger" validate:"required"`
	Actions     ActionList  `json:"actions"`
}

// ValidateForActivation checks the invariants an active workflow must hold.
// Drafts (IsActive=false) may be incomplete; active workflows may not.
func (w *Workflow) ValidateForActivation() error {
	var missing []string

	if w.Name == "" {
		missing = append(missing, "name")
	}
	if !w.Trigger.Kind.Valid() {
		missing = append(missing, "trigger.kind")
	}
	if len(w.Actions) == 0 {
		missing = append(missing, "actions")
	}
	for i, action := range w.Actions {
		if !action.Kind.Valid() {
			missing = append(missing, fmt.Sprintf("actions[%d].kind", i))
		}
		if action.Delay.Value < 0 {
			missing = append(missing, fmt.Sprintf("actions[%d].delay", i))
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("workflow cannot be activated, invalid or missing fields: %v", missing)
	}

	return nil
}

// JSONB scanning for TriggerSpec

func (t *TriggerSpec) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, t)
}

func (t TriggerSpec) Value() (driver.Value, error) {
	return json.Marshal(t)
}

// JSONB scanning for ActionList

func (a *ActionList) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, a)
}

func (a ActionList) Value() (driver.Value, error) {
	return json.Marshal(a)
}
