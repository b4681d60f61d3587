package store

import (
	"github.com/google/uuid"

	"github.com/fieldledger/fieldledger/internal/models"
)

// Typed accessor surface consumed by the UI layer. Adds assign an id when the
// caller did not; updates and deletes are optimistic and always queue a
// change event.

func (s *Store) AddCustomer(userID string, c *models.Customer) *models.Customer {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	s.apply(userID, models.OpCreate, c)
	return c
}

func (s *Store) UpdateCustomer(userID string, c *models.Customer) *models.Customer {
	s.apply(userID, models.OpUpdate, c)
	return c
}

func (s *Store) DeleteCustomer(userID, id string) {
	s.softDelete(userID, models.KindCustomer, id)
}

func (s *Store) CustomerByID(id string) (*models.Customer, bool) {
	row, ok := s.get(models.KindCustomer, id)
	if !ok {
		return nil, false
	}
	return row.(*models.Customer), true
}

func (s *Store) AddPart(userID string, p *models.Part) *models.Part {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	s.apply(userID, models.OpCreate, p)
	return p
}

func (s *Store) UpdatePart(userID string, p *models.Part) *models.Part {
	s.apply(userID, models.OpUpdate, p)
	return p
}

func (s *Store) DeletePart(userID, id string) {
	s.softDelete(userID, models.KindPart, id)
}

func (s *Store) PartByID(id string) (*models.Part, bool) {
	row, ok := s.get(models.KindPart, id)
	if !ok {
		return nil, false
	}
	return row.(*models.Part), true
}

func (s *Store) AddLaborItem(userID string, l *models.LaborItem) *models.LaborItem {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	s.apply(userID, models.OpCreate, l)
	return l
}

func (s *Store) UpdateLaborItem(userID string, l *models.LaborItem) *models.LaborItem {
	s.apply(userID, models.OpUpdate, l)
	return l
}

func (s *Store) DeleteLaborItem(userID, id string) {
	s.softDelete(userID, models.KindLaborItem, id)
}

func (s *Store) LaborItemByID(id string) (*models.LaborItem, bool) {
	row, ok := s.get(models.KindLaborItem, id)
	if !ok {
		return nil, false
	}
	return row.(*models.LaborItem), true
}

func (s *Store) AddJob(userID string, j *models.Job) *models.Job {
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	s.apply(userID, models.OpCreate, j)
	return j
}

func (s *Store) UpdateJob(userID string, j *models.Job) *models.Job {
	s.apply(userID, models.OpUpdate, j)
	return j
}

func (s *Store) DeleteJob(userID, id string) {
	s.softDelete(userID, models.KindJob, id)
}

func (s *Store) JobByID(id string) (*models.Job, bool) {
	row, ok := s.get(models.KindJob, id)
	if !ok {
		return nil, false
	}
	return row.(*models.Job), true
}

func (s *Store) AddQuote(userID string, q *models.Quote) *models.Quote {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	s.apply(userID, models.OpCreate, q)
	return q
}

func (s *Store) UpdateQuote(userID string, q *models.Quote) *models.Quote {
	s.apply(userID, models.OpUpdate, q)
	return q
}

func (s *Store) DeleteQuote(userID, id string) {
	s.softDelete(userID, models.KindQuote, id)
}

func (s *Store) QuoteByID(id string) (*models.Quote, bool) {
	row, ok := s.get(models.KindQuote, id)
	if !ok {
		return nil, false
	}
	return row.(*models.Quote), true
}

func (s *Store) AddInvoice(userID string, i *models.Invoice) *models.Invoice {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	s.apply(userID, models.OpCreate, i)
	return i
}

func (s *Store) UpdateInvoice(userID string, i *models.Invoice) *models.Invoice {
	s.apply(userID, models.OpUpdate, i)
	return i
}

func (s *Store) DeleteInvoice(userID, id string) {
	s.softDelete(userID, models.KindInvoice, id)
}

func (s *Store) InvoiceByID(id string) (*models.Invoice, bool) {
	row, ok := s.get(models.KindInvoice, id)
	if !ok {
		return nil, false
	}
	return row.(*models.Invoice), true
}

// ListActive returns the non-deleted rows of one kind, for list screens.
func (s *Store) ListActive(kind models.EntityKind) []models.EntityRow {
	return s.listActive(kind)
}
