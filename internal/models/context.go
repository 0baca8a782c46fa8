package models

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/google/uuid"
)

// ClientContext is the client snapshot available to action templates
type ClientContext struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
}

// AppointmentContext is the appointment snapshot available to action templates
type AppointmentContext struct {
	Date    string `json:"date"`
	Time    string `json:"time"`
	Service string `json:"service"`
}

// StaffContext is the staff snapshot available to action templates
type StaffContext struct {
	Name string `json:"name"`
}

// BusinessContext is the business snapshot available to action templates
type BusinessContext struct {
	Name string `json:"name"`
}

// TemplateContext is the snapshot of entity fields captured at trigger-match
// time and substituted into action templates at dispatch time. It also
// carries the entity references executors need (loyalty, CRM, tasks).
type TemplateContext struct {
	ClientID    uuid.UUID           `json:"client_id"`
	StaffID     *uuid.UUID          `json:"staff_id,omitempty"`
	Client      ClientContext       `json:"client"`
	Appointment *AppointmentContext `json:"appointment,omitempty"`
	Staff       *StaffContext       `json:"staff,omitempty"`
	Business    BusinessContext     `json:"business"`
}

// Variables flattens the context into the dotted variable names recognized
// in literal action bodies.
func (c TemplateContext) Variables() map[string]string {
	vars := map[string]string{
		"client.firstName": c.Client.FirstName,
		"client.lastName":  c.Client.LastName,
		"client.email":     c.Client.Email,
		"client.phone":     c.Client.Phone,
		"business.name":    c.Business.Name,
	}

	if c.Appointment != nil {
		vars["appointment.date"] = c.Appointment.Date
		vars["appointment.time"] = c.Appointment.Time
		vars["appointment.service"] = c.Appointment.Service
	}

	if c.Staff != nil {
		vars["staff.name"] = c.Staff.Name
	}

	return vars
}

// JSONB scanning for TemplateContext

func (c *TemplateContext) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, c)
}

func (c TemplateContext) Value() (driver.Value, error) {
	return json.Marshal(c)
}
