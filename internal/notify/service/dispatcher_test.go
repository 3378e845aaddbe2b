package service_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/duesflow/duesflow/internal/config"
	memberdomain "github.com/duesflow/duesflow/internal/member/domain"
	memberservice "github.com/duesflow/duesflow/internal/member/service"
	notifydomain "github.com/duesflow/duesflow/internal/notify/domain"
	"github.com/duesflow/duesflow/internal/notify/service"
	"github.com/duesflow/duesflow/internal/observability"
	"github.com/duesflow/duesflow/internal/security/vault"
)

func setupDispatcher(t *testing.T, cfg config.Config) (notifydomain.Dispatcher, memberdomain.Service) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&memberdomain.Member{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	sealer, err := vault.New("test-key")
	require.NoError(t, err)

	members := memberservice.NewService(memberservice.ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Vault: sealer,
	})

	dispatcher, err := service.NewDispatcher(service.DispatcherParam{
		Cfg:     cfg,
		Log:     zap.NewNop(),
		Members: members,
		Metrics: observability.NewMetrics(),
	})
	require.NoError(t, err)
	return dispatcher, members
}

func TestNotifyDefaultsToLogProvider(t *testing.T) {
	dispatcher, members := setupDispatcher(t, config.Config{})
	ctx := context.Background()

	member, err := members.Create(ctx, memberdomain.CreateRequest{
		Email:    "casey@example.com",
		FullName: "Casey Morgan",
	})
	require.NoError(t, err)

	err = dispatcher.Notify(ctx, notifydomain.Message{
		MemberID: member.ID,
		Kind:     notifydomain.KindPaymentReceipt,
		Subject:  "Payment received",
		Body:     "Thanks for your payment.",
	})
	assert.NoError(t, err)
}

func TestNotifyUnknownMember(t *testing.T) {
	dispatcher, _ := setupDispatcher(t, config.Config{})

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	err = dispatcher.Notify(context.Background(), notifydomain.Message{
		MemberID: node.Generate(),
		Kind:     notifydomain.KindPlanCompleted,
	})
	assert.ErrorIs(t, err, memberdomain.ErrMemberNotFound)
}

func TestNotifyViaSlackWebhook(t *testing.T) {
	var received int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received++
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	cfg := config.Config{}
	cfg.Notify.Provider = "slack"
	cfg.Notify.SlackWebhookURL = srv.URL

	dispatcher, members := setupDispatcher(t, cfg)
	ctx := context.Background()

	member, err := members.Create(ctx, memberdomain.CreateRequest{
		Email:    "robin@example.com",
		FullName: "Robin Blake",
	})
	require.NoError(t, err)

	err = dispatcher.Notify(ctx, notifydomain.Message{
		MemberID: member.ID,
		Kind:     notifydomain.KindInstallmentUpcoming,
		Subject:  "Installment due soon",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, received)
}

func TestNotifySlackFailureSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	cfg := config.Config{}
	cfg.Notify.Provider = "slack"
	cfg.Notify.SlackWebhookURL = srv.URL

	dispatcher, members := setupDispatcher(t, cfg)
	ctx := context.Background()

	member, err := members.Create(ctx, memberdomain.CreateRequest{
		Email:    "sam@example.com",
		FullName: "Sam Lee",
	})
	require.NoError(t, err)

	err = dispatcher.Notify(ctx, notifydomain.Message{
		MemberID: member.ID,
		Kind:     notifydomain.KindPaymentFailed,
		Subject:  "Payment failed",
	})
	assert.Error(t, err)
}

func TestNewDispatcherRejectsUnknownProvider(t *testing.T) {
	cfg := config.Config{}
	cfg.Notify.Provider = "carrier-pigeon"

	_, err := service.NewDispatcher(service.DispatcherParam{
		Cfg:     cfg,
		Log:     zap.NewNop(),
		Metrics: observability.NewMetrics(),
	})
	assert.ErrorIs(t, err, notifydomain.ErrUnknownProvider)
}
