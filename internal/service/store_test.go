package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/sgea-api/internal/models"
	"github.com/noah-isme/sgea-api/internal/repository"
	"github.com/noah-isme/sgea-api/pkg/token"
)

// memStore is an in-memory stand-in for the PostgreSQL schema. Every method
// holds the mutex for its whole body, which gives CreateWithinCapacity the
// same atomicity as the row lock.
type memStore struct {
	mu           sync.Mutex
	seq          int
	users        map[string]*models.User
	events       map[string]*models.Event
	enrollments  map[string]*models.Enrollment
	certificates map[string]*models.Certificate
	audit        []models.AuditEntry
	failAudit    error
}

func newMemStore() *memStore {
	return &memStore{
		users:        make(map[string]*models.User),
		events:       make(map[string]*models.Event),
		enrollments:  make(map[string]*models.Enrollment),
		certificates: make(map[string]*models.Certificate),
	}
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *memStore) addUser(id, name string, role models.UserRole) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &models.User{ID: id, Name: name, Login: id, Email: id + "@sgea.test", Role: role, Active: true}
	s.users[id] = u
	return u
}

func (s *memStore) addEvent(id, name, organizerID string, start time.Time, capacity int) *models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &models.Event{ID: id, Name: name, OrganizerID: organizerID, StartDate: start, EndDate: start, Capacity: capacity, Type: models.EventTypeLecture}
	s.events[id] = e
	return e
}

func (s *memStore) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.audit))
	for _, entry := range s.audit {
		out = append(out, entry.Action)
	}
	return out
}

func (s *memStore) enrollmentCount(eventID string) int {
	count := 0
	for _, e := range s.enrollments {
		if e.EventID == eventID {
			count++
		}
	}
	return count
}

func (s *memStore) certificateFor(enrollmentID string) *models.Certificate {
	for _, c := range s.certificates {
		if c.EnrollmentID == enrollmentID {
			return c
		}
	}
	return nil
}

type fakeUsers struct{ *memStore }

func (f fakeUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (f fakeUsers) FindByLogin(ctx context.Context, login string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Login == login {
			clone := *u
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f fakeUsers) ExistsEmailOrLogin(ctx context.Context, email, login string) (bool, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var emailTaken, loginTaken bool
	for _, u := range f.users {
		emailTaken = emailTaken || u.Email == email
		loginTaken = loginTaken || u.Login == login
	}
	return emailTaken, loginTaken, nil
}

func (f fakeUsers) Create(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == user.Email {
			return repository.ErrEmailTaken
		}
		if u.Login == user.Login {
			return repository.ErrLoginTaken
		}
	}
	if user.ID == "" {
		user.ID = f.nextID("user")
	}
	clone := *user
	f.users[user.ID] = &clone
	return nil
}

func (f fakeUsers) Activate(ctx context.Context, id string, confirmedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.Active = true
	u.EmailConfirmedAt = &confirmedAt
	return nil
}

func (f fakeUsers) ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.User
	for _, u := range f.users {
		if u.Role == role {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type fakeEvents struct{ *memStore }

func (f fakeEvents) Create(ctx context.Context, event *models.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if event.ID == "" {
		event.ID = f.nextID("event")
	}
	clone := *event
	f.events[event.ID] = &clone
	return nil
}

func (f fakeEvents) Update(ctx context.Context, event *models.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.events[event.ID]; !ok {
		return sql.ErrNoRows
	}
	clone := *event
	f.events[event.ID] = &clone
	return nil
}

func (f fakeEvents) FindByID(ctx context.Context, id string) (*models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.events[id]; ok {
		clone := *e
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (f fakeEvents) ListUpcoming(ctx context.Context, after time.Time, viewerID string) ([]models.EventSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cutoff := after.Format(models.DateLayout)
	var out []models.EventSummary
	for _, e := range f.events {
		if e.StartDate.Format(models.DateLayout) <= cutoff {
			continue
		}
		enrolled := false
		for _, en := range f.enrollments {
			if en.EventID == e.ID && en.UserID == viewerID {
				enrolled = true
			}
		}
		if enrolled {
			continue
		}
		summary := models.EventSummary{ID: e.ID, Name: e.Name, Location: e.Location, StartDate: e.StartDate}
		if org, ok := f.users[e.OrganizerID]; ok {
			summary.OrganizerName = org.Name
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (f fakeEvents) ListByOrganizer(ctx context.Context, organizerID string) ([]models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Event
	for _, e := range f.events {
		if e.OrganizerID == organizerID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (f fakeEvents) CountEnrollments(ctx context.Context, eventID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enrollmentCount(eventID), nil
}

type fakeEnrollments struct{ *memStore }

func (f fakeEnrollments) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.enrollments[id]; ok {
		clone := *e
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (f fakeEnrollments) FindByUserAndEvent(ctx context.Context, userID, eventID string) (*models.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.enrollments {
		if e.UserID == userID && e.EventID == eventID {
			clone := *e
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f fakeEnrollments) CreateWithinCapacity(ctx context.Context, enrollment *models.Enrollment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	event, ok := f.events[enrollment.EventID]
	if !ok {
		return sql.ErrNoRows
	}
	for _, e := range f.enrollments {
		if e.UserID == enrollment.UserID && e.EventID == enrollment.EventID {
			return repository.ErrEnrollmentDuplicate
		}
	}
	if f.enrollmentCount(event.ID) >= event.Capacity {
		return repository.ErrEnrollmentCapacityReached
	}
	if enrollment.ID == "" {
		enrollment.ID = f.nextID("enrollment")
	}
	clone := *enrollment
	f.enrollments[enrollment.ID] = &clone
	return nil
}

func (f fakeEnrollments) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.enrollments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.enrollments, id)
	for certID, c := range f.certificates {
		if c.EnrollmentID == id {
			delete(f.certificates, certID)
		}
	}
	return nil
}

func (f fakeEnrollments) UpdateAttendance(ctx context.Context, id string, confirmed bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.enrollments[id]
	if !ok {
		return sql.ErrNoRows
	}
	if !confirmed && f.certificateFor(id) != nil {
		return repository.ErrCertificateExists
	}
	e.AttendanceConfirmed = confirmed
	return nil
}

func (f fakeEnrollments) ListForEvent(ctx context.Context, eventID string) ([]models.EnrollmentDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.EnrollmentDetail
	for _, e := range f.enrollments {
		if e.EventID == eventID {
			out = append(out, f.detail(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserName < out[j].UserName })
	return out, nil
}

func (f fakeEnrollments) ListForUser(ctx context.Context, userID string) ([]models.EnrollmentDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.EnrollmentDetail
	for _, e := range f.enrollments {
		if e.UserID == userID {
			out = append(out, f.detail(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventStartDate.Before(out[j].EventStartDate) })
	return out, nil
}

func (f fakeEnrollments) detail(e *models.Enrollment) models.EnrollmentDetail {
	d := models.EnrollmentDetail{Enrollment: *e, HasCertificate: f.certificateFor(e.ID) != nil}
	if u, ok := f.users[e.UserID]; ok {
		d.UserName = u.Name
		d.UserEmail = u.Email
	}
	if ev, ok := f.events[e.EventID]; ok {
		d.EventName = ev.Name
		d.EventStartDate = ev.StartDate
	}
	return d
}

type fakeCertificates struct{ *memStore }

func (f fakeCertificates) ListIssuable(ctx context.Context, eventID string) ([]models.IssuableEnrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	event, ok := f.events[eventID]
	if !ok {
		return nil, nil
	}
	var out []models.IssuableEnrollment
	for _, e := range f.enrollments {
		if e.EventID != eventID || !e.AttendanceConfirmed || f.certificateFor(e.ID) != nil {
			continue
		}
		out = append(out, models.IssuableEnrollment{
			EnrollmentID:  e.ID,
			UserName:      f.users[e.UserID].Name,
			EventName:     event.Name,
			OrganizerName: f.users[event.OrganizerID].Name,
		})
	}
	return out, nil
}

func (f fakeCertificates) CreateIfConfirmed(ctx context.Context, cert *models.Certificate) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.enrollments[cert.EnrollmentID]
	if !ok || !e.AttendanceConfirmed || f.certificateFor(e.ID) != nil {
		return false, nil
	}
	if cert.ID == "" {
		cert.ID = f.nextID("certificate")
	}
	clone := *cert
	f.certificates[cert.ID] = &clone
	return true, nil
}

func (f fakeCertificates) FindDetail(ctx context.Context, id string) (*models.CertificateDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.certificates[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	d := f.certificateDetail(c)
	return &d, nil
}

func (f fakeCertificates) ListForUser(ctx context.Context, userID string) ([]models.CertificateDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CertificateDetail
	for _, c := range f.certificates {
		if d := f.certificateDetail(c); d.UserID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f fakeCertificates) certificateDetail(c *models.Certificate) models.CertificateDetail {
	d := models.CertificateDetail{Certificate: *c}
	if e, ok := f.enrollments[c.EnrollmentID]; ok {
		d.UserID = e.UserID
		d.EventID = e.EventID
		if u, ok := f.users[e.UserID]; ok {
			d.UserName = u.Name
		}
		if ev, ok := f.events[e.EventID]; ok {
			d.EventName = ev.Name
		}
	}
	return d
}

type fakeAuditRepo struct{ *memStore }

func (f fakeAuditRepo) Create(ctx context.Context, entry *models.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAudit != nil {
		return f.failAudit
	}
	entry.ID = f.nextID("audit")
	entry.CreatedAt = time.Now().UTC()
	f.audit = append(f.audit, *entry)
	return nil
}

func (f fakeAuditRepo) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AuditEntry
	for i := len(f.audit) - 1; i >= 0 && len(out) < filter.Limit; i-- {
		entry := f.audit[i]
		if filter.ActorID != "" && (entry.ActorID == nil || *entry.ActorID != filter.ActorID) {
			continue
		}
		if filter.Category != "" && (entry.Category == nil || *entry.Category != filter.Category) {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

// kernel wires every service over one memStore.
type kernel struct {
	store        *memStore
	audit        *AuditService
	users        *UserService
	events       *EventService
	enrollments  *EnrollmentService
	certificates *CertificateService
	exports      *ExportService
	notifier     *recordingNotifier
}

func newKernel(loc *time.Location) *kernel {
	store := newMemStore()
	audit := NewAuditService(fakeAuditRepo{store}, nil, nil, AuditConfig{Location: loc})
	notifier := &recordingNotifier{}
	signer := token.NewSigner("test-activation-secret", time.Hour)
	return &kernel{
		store:        store,
		audit:        audit,
		users:        NewUserService(fakeUsers{store}, signer, notifier, audit, nil, nil, RegistrationConfig{APIPrefix: "/api/v1"}),
		events:       NewEventService(fakeEvents{store}, fakeUsers{store}, audit, nil, nil, loc),
		enrollments:  NewEnrollmentService(fakeEnrollments{store}, fakeUsers{store}, fakeEvents{store}, audit, nil, nil, loc),
		certificates: NewCertificateService(fakeCertificates{store}, fakeEvents{store}, audit, nil, nil, loc),
		exports:      NewExportService(fakeEnrollments{store}, fakeEvents{store}, nil),
		notifier:     notifier,
	}
}

type recordingNotifier struct {
	mu    sync.Mutex
	links map[string]string
	err   error
}

func (n *recordingNotifier) NotifyRegistration(ctx context.Context, user *models.User, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.links == nil {
		n.links = make(map[string]string)
	}
	n.links[user.ID] = link
	return n.err
}

func (n *recordingNotifier) link(userID string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.links[userID]
}

func day(value string) time.Time {
	t, err := time.Parse(models.DateLayout, value)
	if err != nil {
		panic(err)
	}
	return t
}
