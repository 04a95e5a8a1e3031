package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/sma-health-api/internal/models"
	"github.com/noah-isme/sma-health-api/internal/repository"
	appErrors "github.com/noah-isme/sma-health-api/pkg/errors"
	"github.com/noah-isme/sma-health-api/pkg/mailer"
)

// memoryStore backs the in-memory repositories used across service tests.
type memoryStore struct {
	mu            sync.Mutex
	seq           int
	clock         time.Time
	events        map[string]*models.CampaignEvent
	registrations map[string]*models.Registration
	appointments  map[string]*models.Appointment
	visits        map[string]*models.NurseVisit
	students      map[string]models.StudentDetail
	users         map[string]models.Contact
	parentLinks   map[string][]string
	eventLookups  int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		clock:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		events:        map[string]*models.CampaignEvent{},
		registrations: map[string]*models.Registration{},
		appointments:  map[string]*models.Appointment{},
		visits:        map[string]*models.NurseVisit{},
		students:      map[string]models.StudentDetail{},
		users:         map[string]models.Contact{},
		parentLinks:   map[string][]string{},
	}
}

func (m *memoryStore) nextID(prefix string) (string, time.Time) {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq), m.clock.Add(time.Duration(m.seq) * time.Second)
}

func (m *memoryStore) addStudent(id, name, grade string, parentIDs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[id] = models.StudentDetail{Student: models.Student{ID: id, FullName: name, Active: true}, Grade: grade}
	for _, pid := range parentIDs {
		if _, ok := m.users[pid]; !ok {
			m.users[pid] = models.Contact{UserID: pid, Email: pid + "@example.com", FullName: "Parent " + pid}
		}
		m.parentLinks[id] = append(m.parentLinks[id], pid)
	}
}

func (m *memoryStore) addEvent(event models.CampaignEvent) *models.CampaignEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := event
	if e.Status == "" {
		e.Status = models.EventStatusOngoing
	}
	m.events[e.ID] = &e
	return &e
}

func (m *memoryStore) addRegistration(reg models.Registration) *models.Registration {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := reg
	id, created := m.nextID("reg")
	if r.ID == "" {
		r.ID = id
	}
	r.CreatedAt = created
	m.registrations[r.ID] = &r
	return &r
}

func (m *memoryStore) addVisit(visit models.NurseVisit) *models.NurseVisit {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := visit
	if v.ID == "" {
		v.ID, v.CreatedAt = m.nextID("visit")
	}
	m.visits[v.ID] = &v
	return &v
}

func (m *memoryStore) appointmentsFor(studentID, eventID string) []models.Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Appointment
	for _, a := range m.appointments {
		if a.StudentID == studentID && a.EventID == eventID && !a.IsDeleted {
			out = append(out, *a)
		}
	}
	return out
}

func (m *memoryStore) registration(id string) models.Registration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.registrations[id]
}

func (m *memoryStore) visit(id string) models.NurseVisit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.visits[id]
}

func paginate[T any](items []T, p models.PageRequest) []T {
	start := p.Offset()
	if start >= len(items) {
		return nil
	}
	end := start + p.PageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// --- campaign events ---

type fakeEventRepo struct{ *memoryStore }

func (r fakeEventRepo) Create(ctx context.Context, event *models.CampaignEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event.ID == "" {
		event.ID, event.CreatedAt = r.nextID("evt")
	}
	stored := *event
	r.events[event.ID] = &stored
	return nil
}

func (r fakeEventRepo) FindByID(ctx context.Context, kind models.CampaignKind, id string) (*models.CampaignEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.eventLookups++
	e, ok := r.events[id]
	if !ok || e.IsDeleted || e.Kind != kind {
		return nil, sql.ErrNoRows
	}
	out := *e
	return &out, nil
}

func (r fakeEventRepo) List(ctx context.Context, filter models.CampaignEventFilter) ([]models.CampaignEvent, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.CampaignEvent
	for _, e := range r.events {
		if e.IsDeleted || e.Kind != filter.Kind {
			continue
		}
		if filter.Grade != "" && e.Grade != filter.Grade {
			continue
		}
		if filter.Query != "" && !strings.Contains(strings.ToLower(e.Name), strings.ToLower(filter.Query)) {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, filter.PageRequest), len(out), nil
}

func (r fakeEventRepo) UpdateStatus(ctx context.Context, id string, from, to models.EventStatus, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok || e.IsDeleted || e.Status != from {
		return false, nil
	}
	e.Status = to
	e.UpdatedAt = at
	return true, nil
}

func (r fakeEventRepo) SoftDelete(ctx context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok || e.IsDeleted {
		return false, nil
	}
	e.IsDeleted = true
	return true, nil
}

// --- registrations ---

type fakeRegistrationRepo struct {
	*memoryStore
	expireErr error
}

func (r *fakeRegistrationRepo) liveExists(studentID, eventID string) bool {
	for _, reg := range r.registrations {
		if reg.StudentID == studentID && reg.EventID == eventID && !reg.IsDeleted {
			return true
		}
	}
	return false
}

func (r *fakeRegistrationRepo) insert(reg *models.Registration) {
	id, created := r.nextID("reg")
	if reg.ID == "" {
		reg.ID = id
	}
	reg.CreatedAt = created
	reg.UpdatedAt = created
	stored := *reg
	r.registrations[reg.ID] = &stored
}

func (r *fakeRegistrationRepo) Create(ctx context.Context, reg *models.Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.liveExists(reg.StudentID, reg.EventID) {
		return repository.ErrDuplicate
	}
	r.insert(reg)
	return nil
}

func (r *fakeRegistrationRepo) CreateBatch(ctx context.Context, regs []models.Registration) ([]models.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var inserted []models.Registration
	for i := range regs {
		reg := regs[i]
		if r.liveExists(reg.StudentID, reg.EventID) {
			continue
		}
		r.insert(&reg)
		inserted = append(inserted, reg)
	}
	return inserted, nil
}

func (r *fakeRegistrationRepo) detail(reg *models.Registration) models.RegistrationDetail {
	d := models.RegistrationDetail{Registration: *reg}
	if e, ok := r.events[reg.EventID]; ok {
		d.EventName = e.Name
	}
	d.StudentName = r.students[reg.StudentID].FullName
	d.ParentName = r.users[reg.ParentID].FullName
	return d
}

func (r *fakeRegistrationRepo) FindByID(ctx context.Context, kind models.CampaignKind, id string) (*models.RegistrationDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.registrations[id]
	if !ok || reg.IsDeleted || reg.Kind != kind {
		return nil, sql.ErrNoRows
	}
	d := r.detail(reg)
	return &d, nil
}

func (r *fakeRegistrationRepo) ExistsActive(ctx context.Context, studentID, eventID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.liveExists(studentID, eventID), nil
}

func (r *fakeRegistrationRepo) List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationDetail, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.RegistrationDetail
	for _, reg := range r.registrations {
		if reg.IsDeleted || reg.Kind != filter.Kind {
			continue
		}
		if (filter.StudentID != "" && reg.StudentID != filter.StudentID) ||
			(filter.ParentID != "" && reg.ParentID != filter.ParentID) ||
			(filter.EventID != "" && reg.EventID != filter.EventID) ||
			(filter.Status != "" && reg.Status != filter.Status) {
			continue
		}
		d := r.detail(reg)
		if filter.Query != "" && !strings.Contains(strings.ToLower(d.EventName), strings.ToLower(filter.Query)) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return paginate(out, filter.PageRequest), len(out), nil
}

func (r *fakeRegistrationRepo) ListByEvent(ctx context.Context, kind models.CampaignKind, eventID string) ([]models.RegistrationDetail, error) {
	out, _, err := r.List(ctx, models.RegistrationFilter{Kind: kind, EventID: eventID, PageRequest: models.PageRequest{PageNum: 1, PageSize: 1000}})
	return out, err
}

func (r *fakeRegistrationRepo) Decide(ctx context.Context, reg *models.Registration, appt *models.Appointment) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.registrations[reg.ID]
	if !ok || stored.IsDeleted || stored.Status != models.RegistrationStatusPending {
		return false, nil
	}
	*stored = *reg
	if appt != nil {
		for _, a := range r.appointments {
			if a.StudentID == appt.StudentID && a.EventID == appt.EventID && !a.IsDeleted {
				return true, nil
			}
		}
		appt.ID, appt.CreatedAt = r.nextID("appt")
		a := *appt
		r.appointments[a.ID] = &a
	}
	return true, nil
}

func (r *fakeRegistrationRepo) SoftDelete(ctx context.Context, kind models.CampaignKind, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.registrations[id]
	if !ok || reg.IsDeleted || reg.Kind != kind {
		return false, nil
	}
	reg.IsDeleted = true
	return true, nil
}

func (r *fakeRegistrationRepo) ExpirePending(ctx context.Context, now time.Time, reason string, limit int) (int64, error) {
	if r.expireErr != nil {
		return 0, r.expireErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, reg := range r.registrations {
		if int(n) == limit {
			break
		}
		e, ok := r.events[reg.EventID]
		if !ok || e.IsDeleted || reg.IsDeleted || reg.Status != models.RegistrationStatusPending || !e.EndRegistrationDate.Before(now) {
			continue
		}
		reason := reason
		reg.Status = models.RegistrationStatusExpired
		reg.CancellationReason = &reason
		n++
	}
	return n, nil
}

// --- appointments ---

type fakeAppointmentRepo struct{ *memoryStore }

func (r fakeAppointmentRepo) add(appt models.Appointment) *models.Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := appt
	if a.ID == "" {
		a.ID, a.CreatedAt = r.nextID("appt")
	}
	if a.Status == "" {
		a.Status = models.AppointmentStatusPending
	}
	r.appointments[a.ID] = &a
	return &a
}

func (r fakeAppointmentRepo) FindByID(ctx context.Context, kind models.CampaignKind, id string) (*models.AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.IsDeleted || a.Kind != kind {
		return nil, sql.ErrNoRows
	}
	return &models.AppointmentDetail{Appointment: *a, StudentName: r.students[a.StudentID].FullName}, nil
}

func (r fakeAppointmentRepo) List(ctx context.Context, filter models.AppointmentFilter) ([]models.AppointmentDetail, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.AppointmentDetail
	for _, a := range r.appointments {
		if a.IsDeleted || a.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		out = append(out, models.AppointmentDetail{Appointment: *a})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, filter.PageRequest), len(out), nil
}

func (r fakeAppointmentRepo) SaveExamination(ctx context.Context, appt *models.Appointment, from models.AppointmentStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.appointments[appt.ID]
	if !ok || stored.IsDeleted || stored.Status != from {
		return false, nil
	}
	*stored = *appt
	return true, nil
}

func (r fakeAppointmentRepo) Cancel(ctx context.Context, kind models.CampaignKind, id, reason string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.IsDeleted || (a.Status != models.AppointmentStatusPending && a.Status != models.AppointmentStatusChecked) {
		return false, nil
	}
	a.Status = models.AppointmentStatusCancelled
	a.CancellationReason = &reason
	return true, nil
}

func (r fakeAppointmentRepo) SoftDelete(ctx context.Context, kind models.CampaignKind, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.IsDeleted || a.Kind != kind {
		return false, nil
	}
	a.IsDeleted = true
	return true, nil
}

// --- nurse visits ---

type fakeVisitRepo struct{ *memoryStore }

func (r fakeVisitRepo) Create(ctx context.Context, visit *models.NurseVisit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	visit.ID, visit.CreatedAt = r.nextID("visit")
	v := *visit
	r.visits[v.ID] = &v
	return nil
}

func (r fakeVisitRepo) FindByID(ctx context.Context, id string) (*models.NurseVisit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.visits[id]
	if !ok || v.IsDeleted {
		return nil, sql.ErrNoRows
	}
	out := *v
	return &out, nil
}

func (r fakeVisitRepo) List(ctx context.Context, filter models.NurseVisitFilter) ([]models.NurseVisit, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.NurseVisit
	for _, v := range r.visits {
		if v.IsDeleted || (filter.ParentID != "" && v.ParentID != filter.ParentID) {
			continue
		}
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppointmentTime.After(out[j].AppointmentTime) })
	return paginate(out, filter.PageRequest), len(out), nil
}

func (r fakeVisitRepo) Update(ctx context.Context, visit *models.NurseVisit, from models.NurseVisitStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.visits[visit.ID]
	if !ok || stored.IsDeleted || stored.Status != from {
		return false, nil
	}
	*stored = *visit
	return true, nil
}

func (r fakeVisitRepo) SoftDelete(ctx context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.visits[id]
	if !ok || v.IsDeleted {
		return false, nil
	}
	v.IsDeleted = true
	return true, nil
}

func (r fakeVisitRepo) open(v *models.NurseVisit, statuses []models.NurseVisitStatus) bool {
	if v.IsDeleted || v.ParentArrivalTime != nil {
		return false
	}
	for _, s := range statuses {
		if v.Status == s {
			return true
		}
	}
	return false
}

func (r fakeVisitRepo) notice(v *models.NurseVisit) models.NurseVisitNotice {
	parent := r.users[v.ParentID]
	return models.NurseVisitNotice{
		ID: v.ID, ParentID: v.ParentID, StudentID: v.StudentID, AppointmentTime: v.AppointmentTime,
		ParentEmail: parent.Email, ParentName: parent.FullName, StudentName: r.students[v.StudentID].FullName,
	}
}

func (r fakeVisitRepo) sorted() []*models.NurseVisit {
	out := make([]*models.NurseVisit, 0, len(r.visits))
	for _, v := range r.visits {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r fakeVisitRepo) ClaimDueReminders(ctx context.Context, statuses []models.NurseVisitStatus, from, until time.Time, limit int) ([]models.NurseVisitNotice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.NurseVisitNotice
	for _, v := range r.sorted() {
		if len(out) == limit {
			break
		}
		if !r.open(v, statuses) || v.IsRemindedBeforeAppointment || v.AppointmentTime.Before(from) || v.AppointmentTime.After(until) {
			continue
		}
		v.IsRemindedBeforeAppointment = true
		out = append(out, r.notice(v))
	}
	return out, nil
}

func (r fakeVisitRepo) CancelOverdue(ctx context.Context, statuses []models.NurseVisitStatus, cutoff, now time.Time, note string, limit int) ([]models.NurseVisitNotice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.NurseVisitNotice
	for _, v := range r.sorted() {
		if len(out) == limit {
			break
		}
		if !r.open(v, statuses) || !v.AppointmentTime.Before(cutoff) {
			continue
		}
		n := note
		v.Status = models.NurseVisitStatusCancelled
		v.Note = &n
		out = append(out, r.notice(v))
	}
	return out, nil
}

// --- directory ---

type fakeDirectory struct{ *memoryStore }

func (d fakeDirectory) FindDetailByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (d fakeDirectory) ListCohort(ctx context.Context, grade string) ([]models.CohortMember, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]string, 0, len(d.students))
	for id, s := range d.students {
		if s.Grade == grade && s.Active {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	var out []models.CohortMember
	for _, id := range ids {
		for _, pid := range d.parentLinks[id] {
			p := d.users[pid]
			out = append(out, models.CohortMember{StudentID: id, StudentName: d.students[id].FullName, ParentID: pid, ParentName: p.FullName, ParentEmail: p.Email})
		}
	}
	return out, nil
}

func (d fakeDirectory) ListParents(ctx context.Context, studentID string) ([]models.Contact, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []models.Contact
	for _, pid := range d.parentLinks[studentID] {
		out = append(out, d.users[pid])
	}
	return out, nil
}

func (d fakeDirectory) IsParentOf(ctx context.Context, parentID, studentID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, pid := range d.parentLinks[studentID] {
		if pid == parentID {
			return true, nil
		}
	}
	return false, nil
}

func (d fakeDirectory) FindContact(ctx context.Context, id string) (*models.Contact, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

// --- notifications ---

type recordingNotifier struct {
	mu   sync.Mutex
	jobs []models.NotificationJob
}

func (n *recordingNotifier) Enqueue(ctx context.Context, job models.NotificationJob) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.jobs = append(n.jobs, job)
}

func (n *recordingNotifier) byTemplate(t models.NotificationTemplate) []models.NotificationJob {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []models.NotificationJob
	for _, j := range n.jobs {
		if j.Template == t {
			out = append(out, j)
		}
	}
	return out
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.jobs)
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) messages() []mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mailer.Message(nil), m.sent...)
}

// --- cache ---

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]interface{}
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]interface{}{}}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	event, ok := v.(*models.CampaignEvent)
	target, okDest := dest.(*models.CampaignEvent)
	if !ok || !okDest {
		return errors.New("unsupported cache value")
	}
	*target = *event
	return nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	event := *value.(*models.CampaignEvent)
	c.entries[key] = &event
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

// --- fixture ---

type workflowFixture struct {
	store         *memoryStore
	notifier      *recordingNotifier
	registrations *RegistrationService
	appointments  *AppointmentService
	events        *CampaignEventService
	visits        *NurseVisitService
	regRepo       *fakeRegistrationRepo
	apptRepo      fakeAppointmentRepo
	now           time.Time
}

func newWorkflowFixture() *workflowFixture {
	store := newMemoryStore()
	notifier := &recordingNotifier{}
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	regRepo := &fakeRegistrationRepo{memoryStore: store}
	catalog := NewEventCatalog(fakeEventRepo{store}, nil, 0, nil)
	regs := NewRegistrationService(regRepo, fakeDirectory{store}, catalog, notifier, nil, nil)
	regs.now = clock
	appts := NewAppointmentService(fakeAppointmentRepo{store}, nil, nil)
	appts.now = clock
	events := NewCampaignEventService(fakeEventRepo{store}, catalog, regs, nil, nil)
	events.now = clock
	visits := NewNurseVisitService(fakeVisitRepo{store}, fakeDirectory{store}, fakeDirectory{store}, notifier, nil, nil)
	visits.now = clock

	return &workflowFixture{
		store:         store,
		notifier:      notifier,
		registrations: regs,
		appointments:  appts,
		events:        events,
		visits:        visits,
		regRepo:       regRepo,
		apptRepo:      fakeAppointmentRepo{store},
		now:           now,
	}
}

var (
	staff  = models.Principal{ID: "mgr-1", Role: models.RoleManager}
	nurse  = models.Principal{ID: "nurse-1", Role: models.RoleSchoolNurse}
	parent = func(id string) models.Principal { return models.Principal{ID: id, Role: models.RoleParent} }
)

func ptr[T any](v T) *T { return &v }
