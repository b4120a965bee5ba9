package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Fixer-backend/internal/apperror"
	"Fixer-backend/internal/database"
	"Fixer-backend/internal/logger"
	"Fixer-backend/internal/model"
	"Fixer-backend/internal/repository"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingChannel struct {
	mu     sync.Mutex
	accept model.NotificationType
	got    []*model.Notification
	users  []*model.User
}

func (r *recordingChannel) Name() string { return "recording" }

func (r *recordingChannel) Accepts(t model.NotificationType) bool {
	return r.accept == "" || r.accept == t
}

func (r *recordingChannel) Deliver(_ context.Context, u *model.User, n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	r.users = append(r.users, u)
	return nil
}

type fakeSES struct {
	inputs []*ses.SendEmailInput
}

func (f *fakeSES) SendEmail(_ context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.inputs = append(f.inputs, in)
	return &ses.SendEmailOutput{}, nil
}

type fakeSNS struct {
	inputs []*sns.PublishInput
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, in)
	return &sns.PublishOutput{}, nil
}

func newDispatcher(t *testing.T, channels ...Channel) (*Dispatcher, *repository.Store, database.Fixtures) {
	t.Helper()
	db, fx := database.NewTestDB(t)
	store := repository.New(db.DB)
	return NewDispatcher(store, logger.NewTestLogger(t), channels...), store, fx
}

func TestNotify_PersistsAndDelivers(t *testing.T) {
	ch := &recordingChannel{}
	d, _, fx := newDispatcher(t, ch)
	ctx := context.Background()

	jobID := uint(12)
	n, err := d.Notify(ctx, Input{
		UserID:     fx.Worker.ID,
		Type:       model.NotificationJobCanceled,
		Title:      "Job canceled",
		Message:    "The poster canceled the job.",
		SourceID:   &jobID,
		SourceType: model.SourceJob,
		Metadata:   map[string]interface{}{"job_id": jobID},
	})
	require.NoError(t, err)
	assert.NotZero(t, n.ID)
	assert.False(t, n.IsRead)
	assert.JSONEq(t, `{"job_id":12}`, string(n.Metadata))

	d.Wait()
	require.Len(t, ch.got, 1)
	assert.Equal(t, n.ID, ch.got[0].ID)
	assert.Equal(t, fx.Worker.ID, ch.users[0].ID)

	_, err = d.Notify(ctx, Input{UserID: fx.Worker.ID, Type: model.NotificationJobCanceled})
	assert.True(t, apperror.Is(err, apperror.CodeValidation))
}

func TestReadOperations_AreScopedToOwner(t *testing.T) {
	d, _, fx := newDispatcher(t)
	ctx := context.Background()

	var ids []uint
	for i := 0; i < 3; i++ {
		n, err := d.Notify(ctx, Input{UserID: fx.Worker.ID, Type: model.NotificationJobStarted, Title: "Started", Message: "m"})
		require.NoError(t, err)
		ids = append(ids, n.ID)
	}
	other, err := d.Notify(ctx, Input{UserID: fx.Poster.ID, Type: model.NotificationNewApplication, Title: "Applied", Message: "m"})
	require.NoError(t, err)

	count, err := d.UnreadCount(ctx, fx.Worker.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	read, err := d.MarkRead(ctx, fx.Worker.ID, ids[0])
	require.NoError(t, err)
	assert.True(t, read.IsRead)
	assert.NotNil(t, read.ReadAt)

	_, err = d.MarkRead(ctx, fx.Worker.ID, other.ID)
	assert.True(t, apperror.Is(err, apperror.CodeAuthorization))
	_, err = d.MarkRead(ctx, fx.Worker.ID, 9999)
	assert.True(t, apperror.Is(err, apperror.CodeNotFound))

	unread, err := d.List(ctx, fx.Worker.ID, repository.NotificationFilter{UnreadOnly: true})
	require.NoError(t, err)
	assert.Len(t, unread, 2)

	changed, err := d.MarkAllRead(ctx, fx.Worker.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), changed)

	assert.True(t, apperror.Is(d.Delete(ctx, fx.Worker.ID, other.ID), apperror.CodeAuthorization))
	require.NoError(t, d.Delete(ctx, fx.Worker.ID, ids[1]))

	all, err := d.List(ctx, fx.Worker.ID, repository.NotificationFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	posterCount, err := d.UnreadCount(ctx, fx.Poster.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), posterCount)
}

func TestEmailAndSMSChannels(t *testing.T) {
	mail := &fakeSES{}
	text := &fakeSNS{}
	email := NewEmailChannelWithClient(mail, "no-reply@fixer.test")
	sms := NewSMSChannelWithClient(text)

	assert.True(t, email.Accepts(model.NotificationPaymentSent))
	assert.False(t, email.Accepts(model.NotificationNewApplication))
	assert.True(t, sms.Accepts(model.NotificationPaymentFailed))
	assert.False(t, sms.Accepts(model.NotificationPaymentSent))

	addr := "worker@example.com"
	phone := "+15555550100"
	u := &model.User{ID: 1, Email: &addr, Phone: &phone}
	n := &model.Notification{UserID: 1, Title: "Payment failed", Message: "Try again", Type: model.NotificationPaymentFailed}

	require.NoError(t, email.Deliver(context.Background(), u, n))
	require.NoError(t, sms.Deliver(context.Background(), u, n))
	require.Len(t, mail.inputs, 1)
	assert.Equal(t, []string{addr}, mail.inputs[0].Destination.ToAddresses)
	assert.Equal(t, "Payment failed", *mail.inputs[0].Message.Subject.Data)
	require.Len(t, text.inputs, 1)
	assert.Equal(t, phone, *text.inputs[0].PhoneNumber)

	// Recipients without contact details are skipped.
	require.NoError(t, email.Deliver(context.Background(), &model.User{ID: 2}, n))
	require.NoError(t, sms.Deliver(context.Background(), &model.User{ID: 2}, n))
	assert.Len(t, mail.inputs, 1)
	assert.Len(t, text.inputs, 1)
}

func TestChannelFor(t *testing.T) {
	assert.Equal(t, "notifications:42", ChannelFor(42))
	id, ok := userFromChannel("notifications:42")
	assert.True(t, ok)
	assert.Equal(t, uint(42), id)
	_, ok = userFromChannel("sessions:42")
	assert.False(t, ok)
	_, ok = userFromChannel("notifications:abc")
	assert.False(t, ok)
}

func TestRedisPusherReachesWebsocketClient(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	hub := NewHub(logger.NewTestLogger(t), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Relay(ctx, rdb) }()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(7, w, r)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Connected(7) == 1 }, 2*time.Second, 10*time.Millisecond)

	pusher := NewRedisPusher(rdb)
	n := &model.Notification{ID: 3, UserID: 7, Title: "Payment sent", Type: model.NotificationPaymentSent}

	// The relay subscribes asynchronously.
	require.Eventually(t, func() bool { return mr.PubSubNumPat() > 0 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, pusher.Deliver(context.Background(), nil, n))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, "notification", env.Type)
	assert.Equal(t, uint(3), env.Notification.ID)
}

func TestHubDeliverWithoutRedis(t *testing.T) {
	hub := NewHub(logger.NewTestLogger(t), []string{"https://app.fixer.test"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(9, w, r)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.test"}})
	require.Error(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://app.fixer.test"}})
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Connected(9) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Deliver(context.Background(), nil, &model.Notification{ID: 1, UserID: 9, Title: "Hi"}))
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"title":"Hi"`)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Connected(9) == 0 }, 2*time.Second, 10*time.Millisecond)
}
