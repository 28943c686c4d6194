package guardian

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lakshin-amin/RakshaNet/internal/models"
	"github.com/Lakshin-amin/RakshaNet/pkg/errors"
)

// fakeStore 内存版 SessionStore
type fakeStore struct {
	mu         sync.Mutex
	alerts     []models.AlertRecord
	contacts   map[string][]string
	sessions   []string
	failInsert bool
	nextID     uint
}

func newFakeStore() *fakeStore {
	return &fakeStore{contacts: map[string][]string{}}
}

func (f *fakeStore) InsertAlert(ctx context.Context, user string, reason models.AlertReason, lat, lng *float64) (*models.AlertRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInsert {
		return nil, errors.WithCode(errors.CodeStorage, "insert alert failed")
	}
	f.nextID++
	rec := models.AlertRecord{
		ID:        f.nextID,
		User:      user,
		Reason:    reason,
		Latitude:  lat,
		Longitude: lng,
		CreatedAt: models.Now(),
		DateOnly:  models.FormatDate(models.Now()),
		TimeOnly:  models.FormatClock(models.Now()),
	}
	f.alerts = append(f.alerts, rec)
	return &rec, nil
}

func (f *fakeStore) GetContacts(ctx context.Context, user string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contacts[user], nil
}

func (f *fakeStore) LogSession(ctx context.Context, user, event, device string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, user+":"+event)
	return nil
}

func (f *fakeStore) alertReasons() []models.AlertReason {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.AlertReason, 0, len(f.alerts))
	for _, a := range f.alerts {
		out = append(out, a.Reason)
	}
	return out
}

type fakeMail struct {
	mu     sync.Mutex
	fail   bool
	bodies []string
}

func (f *fakeMail) SendAlertEmail(subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.WithCode(errors.CodeDelivery, "smtp unreachable")
	}
	f.bodies = append(f.bodies, body)
	return nil
}

func (f *fakeMail) sent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bodies)
}

type fakeSMS struct {
	mu        sync.Mutex
	failPhone map[string]bool
	sent      []string
	messages  []string
}

func (f *fakeSMS) SendAlert(ctx context.Context, phone, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPhone[phone] {
		return errors.WithCode(errors.CodeDelivery, "twilio rejected "+phone)
	}
	f.sent = append(f.sent, phone)
	f.messages = append(f.messages, message)
	return nil
}

func (f *fakeSMS) delivered() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func TestEscalatePersistsAndFansOut(t *testing.T) {
	store := newFakeStore()
	store.contacts["alice"] = []string{"+911111111111", "+912222222222"}
	mail := &fakeMail{}
	sms := &fakeSMS{}
	p := NewPipeline(store, mail, sms, nil)

	err := p.Escalate(context.Background(), Event{User: "alice", Reason: ReasonTimerExpired})
	require.NoError(t, err)

	assert.Equal(t, []models.AlertReason{ReasonTimerExpired}, store.alertReasons())
	assert.Equal(t, 1, mail.sent())
	assert.Equal(t, []string{"+911111111111", "+912222222222"}, sms.delivered())
}

// 单个联系人投递失败不影响其余联系人，也不影响整体结果
func TestEscalateFanOutIsolation(t *testing.T) {
	store := newFakeStore()
	store.contacts["bob"] = []string{"+911", "+912", "+913"}
	mail := &fakeMail{}
	sms := &fakeSMS{failPhone: map[string]bool{"+912": true}}
	p := NewPipeline(store, mail, sms, nil)

	err := p.Escalate(context.Background(), Event{User: "bob", Reason: ReasonSosTriggered})
	require.NoError(t, err)

	assert.Equal(t, []string{"+911", "+913"}, sms.delivered())
	assert.Len(t, store.alertReasons(), 1)
}

func TestEscalateZeroContacts(t *testing.T) {
	store := newFakeStore()
	mail := &fakeMail{}
	sms := &fakeSMS{}
	p := NewPipeline(store, mail, sms, nil)

	err := p.Escalate(context.Background(), Event{User: "carol", Reason: ReasonSosTriggered})
	require.NoError(t, err)

	// 无联系人仍视为成功：告警已落库、邮件已发出
	assert.Len(t, store.alertReasons(), 1)
	assert.Equal(t, 1, mail.sent())
	assert.Empty(t, sms.delivered())
}

// 持久化失败让升级整体失败，且不发出任何通知
func TestEscalateStorageFailure(t *testing.T) {
	store := newFakeStore()
	store.failInsert = true
	store.contacts["dave"] = []string{"+911"}
	mail := &fakeMail{}
	sms := &fakeSMS{}
	p := NewPipeline(store, mail, sms, nil)

	err := p.Escalate(context.Background(), Event{User: "dave", Reason: ReasonTimerExpired})
	require.Error(t, err)
	assert.True(t, errors.IsStorage(err))
	assert.Equal(t, 0, mail.sent())
	assert.Empty(t, sms.delivered())
}

func TestEscalateMailFailureIsAdvisory(t *testing.T) {
	store := newFakeStore()
	store.contacts["erin"] = []string{"+911"}
	mail := &fakeMail{fail: true}
	sms := &fakeSMS{}
	p := NewPipeline(store, mail, sms, nil)

	err := p.Escalate(context.Background(), Event{User: "erin", Reason: ReasonTimerExpired})
	require.NoError(t, err)
	assert.Equal(t, []string{"+911"}, sms.delivered())
}

func TestAlertMessageContents(t *testing.T) {
	store := newFakeStore()
	store.contacts["frank"] = []string{"+911"}
	lat, lng := 19.076, 72.8777
	p := NewPipeline(store, &fakeMail{}, &fakeSMS{}, nil)

	sms := &fakeSMS{}
	p.sms = sms
	err := p.Escalate(context.Background(), Event{
		User: "frank", Reason: ReasonSosTriggered, Latitude: &lat, Longitude: &lng,
	})
	require.NoError(t, err)

	require.Len(t, sms.messages, 1)
	msg := sms.messages[0]
	assert.Contains(t, msg, "frank")
	assert.Contains(t, msg, "https://maps.google.com/?q=19.076,72.8777")
	assert.Contains(t, msg, "SOS")
}

// 到期路径端到端：计时器走完 → 告警落库 + 邮件 + 每个联系人一条短信
func TestExpiryEndToEnd(t *testing.T) {
	store := newFakeStore()
	store.contacts["grace"] = []string{"+911", "+912"}
	mail := &fakeMail{}
	sms := &fakeSMS{}
	p := NewPipeline(store, mail, sms, nil)

	reg := NewRegistry(p, nil)
	defer reg.Close()

	reg.Start(context.Background(), "grace", 30*time.Millisecond)

	require.True(t, waitFor(t, 2*time.Second, func() bool { return len(sms.delivered()) == 2 }))
	assert.Equal(t, []models.AlertReason{ReasonTimerExpired}, store.alertReasons())
	assert.Equal(t, 1, mail.sent())
}
