package exception

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/wms-platform/fulfillment/shared/pkg/cloudevents"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/common"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/pipeline"
)

// Errors
var (
	ErrInvalidTransition = errors.New("invalid exception transition")
	ErrAlreadyResolved   = errors.New("exception already resolved")
	ErrValidation        = errors.New("invalid exception input")

	ErrUnknownType       = fmt.Errorf("%w: unknown exception type", ErrValidation)
	ErrUnknownSeverity   = fmt.Errorf("%w: unknown severity", ErrValidation)
	ErrUnknownPriority   = fmt.Errorf("%w: unknown priority", ErrValidation)
	ErrResolutionMissing = fmt.Errorf("%w: a resolution is required", ErrValidation)
	ErrResolutionType    = fmt.Errorf("%w: unknown resolution type", ErrValidation)
	ErrResolverRequired  = fmt.Errorf("%w: resolvedBy is required", ErrValidation)
	ErrInvalidRating     = fmt.Errorf("%w: satisfaction rating must be between 1 and 5", ErrValidation)
	ErrNegativeAmount    = fmt.Errorf("%w: amounts must not be negative", ErrValidation)
	ErrResolutionDate    = fmt.Errorf("%w: resolution date precedes the exception date", ErrValidation)
	ErrInvalidRestock    = fmt.Errorf("%w: restock items need a product and a positive quantity", ErrValidation)
	ErrRestockNotShipped = fmt.Errorf("%w: product was not shipped", ErrValidation)
	ErrRestockExceeds    = fmt.Errorf("%w: restock quantity exceeds the shipped quantity", ErrValidation)
	ErrAgentRequired     = fmt.Errorf("%w: an agent is required", ErrValidation)
)

// Type classifies what went wrong with a delivery
type Type string

const (
	TypeDamaged              Type = "DAMAGED"
	TypeLost                 Type = "LOST"
	TypeDelayed              Type = "DELAYED"
	TypeRefused              Type = "REFUSED"
	TypeWrongAddress         Type = "WRONG_ADDRESS"
	TypeCustomerNotAvailable Type = "CUSTOMER_NOT_AVAILABLE"
	TypeWeatherDelay         Type = "WEATHER_DELAY"
	TypeMechanicalIssue      Type = "MECHANICAL_ISSUE"
)

// IsValid checks if the exception type is valid
func (t Type) IsValid() bool {
	switch t {
	case TypeDamaged, TypeLost, TypeDelayed, TypeRefused, TypeWrongAddress,
		TypeCustomerNotAvailable, TypeWeatherDelay, TypeMechanicalIssue:
		return true
	default:
		return false
	}
}

// Severity of an exception
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// IsValid checks if the severity is valid
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// Priority of handling an exception
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// IsValid checks if the priority is valid
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// Status of an exception
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusEscalated  Status = "ESCALATED"
	StatusResolved   Status = "RESOLVED"
)

// Params is a reported delivery exception
type Params struct {
	Type          Type
	Severity      Severity
	Description   string
	Location      string
	ExceptionDate time.Time
	ReportedBy    string
	Priority      Priority
}

// DeliveryException tracks a problem with a shipment until it is resolved
type DeliveryException struct {
	ExceptionID     string      `bson:"_id" json:"exceptionId"`
	ExceptionNumber string      `bson:"exceptionNumber" json:"exceptionNumber"`
	TrackingNumber  string      `bson:"trackingNumber" json:"trackingNumber"`
	ShipmentID      string      `bson:"shipmentId" json:"shipmentId"`
	OrderID         string      `bson:"orderId" json:"orderId"`
	PackageID       string      `bson:"packageId" json:"packageId"`
	Carrier         string      `bson:"carrier" json:"carrier"`
	Type            Type        `bson:"type" json:"type"`
	Severity        Severity    `bson:"severity" json:"severity"`
	Description     string      `bson:"description" json:"description"`
	Location        string      `bson:"location,omitempty" json:"location,omitempty"`
	ExceptionDate   time.Time   `bson:"exceptionDate" json:"exceptionDate"`
	ReportedBy      string      `bson:"reportedBy,omitempty" json:"reportedBy,omitempty"`
	AssignedTo      string      `bson:"assignedTo,omitempty" json:"assignedTo,omitempty"`
	Status          Status      `bson:"status" json:"status"`
	Priority        Priority    `bson:"priority" json:"priority"`
	EscalatedAt     *time.Time  `bson:"escalatedAt,omitempty" json:"escalatedAt,omitempty"`
	Resolution      *Resolution `bson:"resolution,omitempty" json:"resolution,omitempty"`
	Version         int         `bson:"version" json:"version"`
	CreatedAt       time.Time   `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time   `bson:"updatedAt" json:"updatedAt"`

	common.EventRecorder `bson:"-" json:"-"`
}

// New opens an exception against a shipment
func New(s *pipeline.Shipment, params Params) (*DeliveryException, error) {
	if !params.Type.IsValid() {
		return nil, ErrUnknownType
	}
	if params.Severity == "" {
		params.Severity = SeverityMedium
	}
	if !params.Severity.IsValid() {
		return nil, ErrUnknownSeverity
	}
	if params.Priority == "" {
		params.Priority = PriorityMedium
	}
	if !params.Priority.IsValid() {
		return nil, ErrUnknownPriority
	}

	now := time.Now().UTC()
	exceptionDate := params.ExceptionDate.UTC()
	if params.ExceptionDate.IsZero() {
		exceptionDate = now
	}

	e := &DeliveryException{
		ExceptionID:     common.NewID(),
		ExceptionNumber: common.NewNumber("EXC", now),
		TrackingNumber:  s.TrackingNumber,
		ShipmentID:      s.ShipmentID,
		OrderID:         s.OrderID,
		PackageID:       s.PackageID,
		Carrier:         s.Carrier,
		Type:            params.Type,
		Severity:        params.Severity,
		Description:     params.Description,
		Location:        params.Location,
		ExceptionDate:   exceptionDate,
		ReportedBy:      params.ReportedBy,
		Status:          StatusOpen,
		Priority:        params.Priority,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	e.Record(&ExceptionReportedEvent{
		ExceptionID:    e.ExceptionID,
		TrackingNumber: e.TrackingNumber,
		OrderID:        e.OrderID,
		Type:           e.Type,
		Severity:       e.Severity,
		ReportedAt:     now,
	})
	return e, nil
}

func (e *DeliveryException) transition(from []Status, to Status) error {
	if e.Status == StatusResolved {
		return ErrAlreadyResolved
	}
	for _, s := range from {
		if e.Status == s {
			e.Status = to
			e.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.Status, to)
}

// Assign hands an open exception to an agent
func (e *DeliveryException) Assign(agent string) error {
	if strings.TrimSpace(agent) == "" {
		return ErrAgentRequired
	}
	if err := e.transition([]Status{StatusOpen}, StatusInProgress); err != nil {
		return err
	}
	e.AssignedTo = agent
	return nil
}

// Escalate raises an exception being worked on to URGENT
func (e *DeliveryException) Escalate() error {
	if err := e.transition([]Status{StatusInProgress}, StatusEscalated); err != nil {
		return err
	}
	now := e.UpdatedAt
	e.EscalatedAt = &now
	e.Priority = PriorityUrgent
	return nil
}

// Resolve closes the exception with a resolution record
func (e *DeliveryException) Resolve(in *ResolutionInput) error {
	if e.Status == StatusResolved {
		return ErrAlreadyResolved
	}
	if e.Status != StatusInProgress && e.Status != StatusEscalated {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.Status, StatusResolved)
	}
	if in == nil {
		return ErrResolutionMissing
	}
	res, err := newResolution(in, e.ExceptionDate)
	if err != nil {
		return err
	}

	e.Resolution = res
	e.Status = StatusResolved
	e.UpdatedAt = time.Now().UTC()
	e.Record(&ExceptionResolvedEvent{
		ExceptionID:    e.ExceptionID,
		TrackingNumber: e.TrackingNumber,
		OrderID:        e.OrderID,
		ResolutionType: res.Type,
		DurationHours:  res.DurationHours,
		ResolvedAt:     res.ResolutionDate,
	})
	return nil
}

// Clone returns a deep copy without pending events
func (e *DeliveryException) Clone() *DeliveryException {
	c := *e
	c.EventRecorder = common.EventRecorder{}
	if e.Resolution != nil {
		r := *e.Resolution
		r.RestockItems = append([]RestockItem(nil), e.Resolution.RestockItems...)
		c.Resolution = &r
	}
	return &c
}

// durationHours floors the elapsed hours between two instants
func durationHours(from, to time.Time) int {
	return int(math.Floor(to.Sub(from).Hours()))
}

// ExceptionReportedEvent is raised when an exception is opened
type ExceptionReportedEvent struct {
	ExceptionID    string    `json:"exceptionId"`
	TrackingNumber string    `json:"trackingNumber"`
	OrderID        string    `json:"orderId"`
	Type           Type      `json:"type"`
	Severity       Severity  `json:"severity"`
	ReportedAt     time.Time `json:"reportedAt"`
}

func (e *ExceptionReportedEvent) EventType() string     { return cloudevents.ExceptionReported }
func (e *ExceptionReportedEvent) OccurredAt() time.Time { return e.ReportedAt }

// ExceptionResolvedEvent is raised when an exception is resolved
type ExceptionResolvedEvent struct {
	ExceptionID    string         `json:"exceptionId"`
	TrackingNumber string         `json:"trackingNumber"`
	OrderID        string         `json:"orderId"`
	ResolutionType ResolutionType `json:"resolutionType"`
	DurationHours  int            `json:"durationHours"`
	ResolvedAt     time.Time      `json:"resolvedAt"`
}

func (e *ExceptionResolvedEvent) EventType() string     { return cloudevents.ExceptionResolved }
func (e *ExceptionResolvedEvent) OccurredAt() time.Time { return e.ResolvedAt }
