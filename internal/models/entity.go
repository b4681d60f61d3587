package models

import (
	"time"
)

// EntityKind names one of the six canonical tables.
type EntityKind string

const (
	KindCustomer  EntityKind = "customers"
	KindPart      EntityKind = "parts"
	KindLaborItem EntityKind = "labor_items"
	KindJob       EntityKind = "jobs"
	KindQuote     EntityKind = "quotes"
	KindInvoice   EntityKind = "invoices"
)

// AllKinds returns every entity kind, in dependency order.
func AllKinds() []EntityKind {
	return []EntityKind{KindCustomer, KindPart, KindLaborItem, KindJob, KindQuote, KindInvoice}
}

// EntityRow is the typed payload of a ChangeEvent. Each of the six entity
// structs implements it, so a malformed payload cannot be constructed.
type EntityRow interface {
	Kind() EntityKind
	EntityID() string
	Workspace() string
	SetWorkspace(id string)
	ModifiedAt() time.Time
	Tombstone() *time.Time
	Touch(now time.Time, created bool)
	MarkDeleted(now time.Time)
	Clone() EntityRow
}

type Customer struct {
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspace_id"`
	Name        string     `json:"name"`
	Email       string     `json:"email,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

func (c *Customer) Kind() EntityKind       { return KindCustomer }
func (c *Customer) EntityID() string       { return c.ID }
func (c *Customer) Workspace() string      { return c.WorkspaceID }
func (c *Customer) SetWorkspace(id string) { c.WorkspaceID = id }
func (c *Customer) ModifiedAt() time.Time  { return c.UpdatedAt }
func (c *Customer) Tombstone() *time.Time  { return c.DeletedAt }
func (c *Customer) Touch(now time.Time, created bool) {
	if created {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
}
func (c *Customer) MarkDeleted(now time.Time) {
	c.DeletedAt = &now
	c.UpdatedAt = now
}
func (c *Customer) Clone() EntityRow {
	cp := *c
	cp.DeletedAt = cloneTime(c.DeletedAt)
	return &cp
}

type Part struct {
	ID            string     `json:"id"`
	WorkspaceID   string     `json:"workspace_id"`
	Name          string     `json:"name"`
	PartNumber    string     `json:"part_number,omitempty"`
	UnitCostCents int64      `json:"unit_cost_cents"`
	Quantity      int        `json:"quantity"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
}

func (p *Part) Kind() EntityKind       { return KindPart }
func (p *Part) EntityID() string       { return p.ID }
func (p *Part) Workspace() string      { return p.WorkspaceID }
func (p *Part) SetWorkspace(id string) { p.WorkspaceID = id }
func (p *Part) ModifiedAt() time.Time  { return p.UpdatedAt }
func (p *Part) Tombstone() *time.Time  { return p.DeletedAt }
func (p *Part) Touch(now time.Time, created bool) {
	if created {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
}
func (p *Part) MarkDeleted(now time.Time) {
	p.DeletedAt = &now
	p.UpdatedAt = now
}
func (p *Part) Clone() EntityRow {
	cp := *p
	cp.DeletedAt = cloneTime(p.DeletedAt)
	return &cp
}

type LaborItem struct {
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspace_id"`
	Description string     `json:"description"`
	RateCents   int64      `json:"rate_cents"`
	Hours       float64    `json:"hours"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

func (l *LaborItem) Kind() EntityKind       { return KindLaborItem }
func (l *LaborItem) EntityID() string       { return l.ID }
func (l *LaborItem) Workspace() string      { return l.WorkspaceID }
func (l *LaborItem) SetWorkspace(id string) { l.WorkspaceID = id }
func (l *LaborItem) ModifiedAt() time.Time  { return l.UpdatedAt }
func (l *LaborItem) Tombstone() *time.Time  { return l.DeletedAt }
func (l *LaborItem) Touch(now time.Time, created bool) {
	if created {
		l.CreatedAt = now
	}
	l.UpdatedAt = now
}
func (l *LaborItem) MarkDeleted(now time.Time) {
	l.DeletedAt = &now
	l.UpdatedAt = now
}
func (l *LaborItem) Clone() EntityRow {
	cp := *l
	cp.DeletedAt = cloneTime(l.DeletedAt)
	return &cp
}

type Job struct {
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspace_id"`
	CustomerID  string     `json:"customer_id"`
	Title       string     `json:"title"`
	Status      string     `json:"status"`
	Notes       string     `json:"notes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

func (j *Job) Kind() EntityKind       { return KindJob }
func (j *Job) EntityID() string       { return j.ID }
func (j *Job) Workspace() string      { return j.WorkspaceID }
func (j *Job) SetWorkspace(id string) { j.WorkspaceID = id }
func (j *Job) ModifiedAt() time.Time  { return j.UpdatedAt }
func (j *Job) Tombstone() *time.Time  { return j.DeletedAt }
func (j *Job) Touch(now time.Time, created bool) {
	if created {
		j.CreatedAt = now
	}
	j.UpdatedAt = now
}
func (j *Job) MarkDeleted(now time.Time) {
	j.DeletedAt = &now
	j.UpdatedAt = now
}
func (j *Job) Clone() EntityRow {
	cp := *j
	cp.DeletedAt = cloneTime(j.DeletedAt)
	return &cp
}

type Quote struct {
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspace_id"`
	CustomerID  string     `json:"customer_id"`
	JobID       string     `json:"job_id"`
	Status      string     `json:"status"`
	TotalCents  int64      `json:"total_cents"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

func (q *Quote) Kind() EntityKind       { return KindQuote }
func (q *Quote) EntityID() string       { return q.ID }
func (q *Quote) Workspace() string      { return q.WorkspaceID }
func (q *Quote) SetWorkspace(id string) { q.WorkspaceID = id }
func (q *Quote) ModifiedAt() time.Time  { return q.UpdatedAt }
func (q *Quote) Tombstone() *time.Time  { return q.DeletedAt }
func (q *Quote) Touch(now time.Time, created bool) {
	if created {
		q.CreatedAt = now
	}
	q.UpdatedAt = now
}
func (q *Quote) MarkDeleted(now time.Time) {
	q.DeletedAt = &now
	q.UpdatedAt = now
}
func (q *Quote) Clone() EntityRow {
	cp := *q
	cp.DeletedAt = cloneTime(q.DeletedAt)
	return &cp
}

type Invoice struct {
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspace_id"`
	CustomerID  string     `json:"customer_id"`
	JobID       string     `json:"job_id"`
	QuoteID     string     `json:"quote_id,omitempty"`
	Status      string     `json:"status"`
	TotalCents  int64      `json:"total_cents"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

func (i *Invoice) Kind() EntityKind       { return KindInvoice }
func (i *Invoice) EntityID() string       { return i.ID }
func (i *Invoice) Workspace() string      { return i.WorkspaceID }
func (i *Invoice) SetWorkspace(id string) { i.WorkspaceID = id }
func (i *Invoice) ModifiedAt() time.Time  { return i.UpdatedAt }
func (i *Invoice) Tombstone() *time.Time  { return i.DeletedAt }
func (i *Invoice) Touch(now time.Time, created bool) {
	if created {
		i.CreatedAt = now
	}
	i.UpdatedAt = now
}
func (i *Invoice) MarkDeleted(now time.Time) {
	i.DeletedAt = &now
	i.UpdatedAt = now
}
func (i *Invoice) Clone() EntityRow {
	cp := *i
	cp.DeletedAt = cloneTime(i.DeletedAt)
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}
