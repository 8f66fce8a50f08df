package core_test

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/erp-sync/internal/auth"
	"github.com/nhle/erp-sync/internal/core"
	"github.com/nhle/erp-sync/internal/credential"
	"github.com/nhle/erp-sync/internal/model"
	"github.com/nhle/erp-sync/internal/notify"
	"github.com/nhle/erp-sync/tests/testutil"
)

func testConfig(t *testing.T) *model.AppConfig {
	t.Helper()
	cfg, err := model.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	cfg.Offline.DBPath = ":memory:"
	cfg.Sync.GracePeriodSec = 1
	return cfg
}

func newCore(t *testing.T, opts core.Options) *core.Core {
	t.Helper()
	if opts.Config == nil {
		opts.Config = testConfig(t)
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	c, err := core.New(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func signToken(t *testing.T, claims auth.Claims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test"))
	require.NoError(t, err)
	return raw
}

func projectIDs(c *core.Core) []string {
	st, _ := c.Sink.Projects().Get()
	ids := make([]string, 0, len(st.Items))
	for _, p := range st.Items {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestCoreServesRoleScopedViews(t *testing.T) {
	c := newCore(t, core.Options{Store: testutil.NewSeededStore(t)})

	assert.Empty(t, projectIDs(c), "signed out sees nothing")

	c.Identities.SignInAs(&model.Identity{UserID: "a1", Role: model.RoleAdmin})
	require.Eventually(t, func() bool { return len(projectIDs(c)) == 2 }, 2*time.Second, 10*time.Millisecond)

	c.Identities.SignInAs(&model.Identity{UserID: "v2", Role: model.RoleVendor})
	require.Eventually(t, func() bool {
		ids := projectIDs(c)
		return len(ids) == 1 && ids[0] == "p2"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCoreRoutesNotification(t *testing.T) {
	c := newCore(t, core.Options{Store: testutil.NewSeededStore(t)})
	c.Identities.SignInAs(&model.Identity{UserID: "a1", Role: model.RoleAdmin})

	n := c.Receive(map[string]any{"title": "Tiles ordered", "projectId": "p1", "taskId": "t1"})
	assert.Equal(t, 1, c.Inbox.Unread())

	intent, err := c.Router.Route(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, model.SectionProjects, intent.Section)
	assert.Equal(t, "p1", intent.ProjectID())
	assert.Equal(t, model.SubTabTasks, intent.SubTab)
}

func TestCoreOpensOfflineStore(t *testing.T) {
	dir := t.TempDir()
	seed := filepath.Join(dir, "seed.json")
	data, err := json.Marshal(testutil.Fixtures())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(seed, data, 0o600))

	cfg := testConfig(t)
	cfg.Offline.DBPath = filepath.Join(dir, "nested", "offline.db")
	cfg.Offline.SeedFile = seed

	c := newCore(t, core.Options{Config: cfg})
	require.NotNil(t, c.Local)
	assert.FileExists(t, cfg.Offline.DBPath)
	assert.False(t, c.Sender.Enabled())

	c.Identities.SignInAs(&model.Identity{UserID: "a1", Role: model.RoleAdmin})
	require.Eventually(t, func() bool { return len(projectIDs(c)) == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestCoreBadSeedFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Offline.SeedFile = filepath.Join(t.TempDir(), "nope.json")

	_, err := core.New(context.Background(), core.Options{Config: cfg, Logger: log.New(io.Discard, "", 0)})
	assert.Error(t, err)
}

func TestCoreSession(t *testing.T) {
	creds := credential.NewMemory()
	c := newCore(t, core.Options{Store: testutil.NewSeededStore(t), Credentials: creds})

	_, err := c.RestoreSession()
	assert.ErrorIs(t, err, credential.ErrNotFound)

	raw := signToken(t, auth.Claims{Role: "designer", UserID: "d1"})
	id, err := c.SignIn(raw)
	require.NoError(t, err)
	assert.Equal(t, model.RoleDesigner, id.Role)

	saved, err := creds.Get(credential.KeyIDToken)
	require.NoError(t, err)
	assert.Equal(t, raw, saved)

	c.Identities.SignOut()
	id, err = c.RestoreSession()
	require.NoError(t, err)
	assert.Equal(t, "d1", c.Identities.Current().UserID)
	assert.Equal(t, "d1", id.UserID)

	c.SignOut()
	assert.Nil(t, c.Identities.Current())
	_, err = creds.Get(credential.KeyIDToken)
	assert.ErrorIs(t, err, credential.ErrNotFound)
}

func TestCoreRegisterDevice(t *testing.T) {
	s := testutil.NewSeededStore(t)
	creds := credential.NewMemory()
	c := newCore(t, core.Options{Store: s, Credentials: creds})
	ctx := context.Background()

	assert.Error(t, c.RegisterDevice(ctx, "tok"), "needs a signed-in user")

	c.Identities.SignInAs(&model.Identity{UserID: "v1", Role: model.RoleVendor})
	require.NoError(t, c.RegisterDevice(ctx, "tok-v1"))

	doc, err := s.Get(ctx, model.CollectionUsers+"/v1")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "tok-v1", doc.Fields.String("fcm_token"))
	assert.Equal(t, "vendor1@example.com", doc.Fields.String("email"), "merge keeps other fields")

	saved, err := creds.Get(credential.KeyDeviceToken)
	require.NoError(t, err)
	assert.Equal(t, "tok-v1", saved)
}

func TestCorePushRelay(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Push.RedisURL = "redis://" + mr.Addr()

	c := newCore(t, core.Options{Config: cfg, Store: testutil.NewSeededStore(t)})
	require.NotNil(t, c.Relay)

	// Wait for the relay's subscription before publishing.
	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(cfg.Push.Channel)[cfg.Push.Channel] == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Relay.Publish(context.Background(), notify.Push{Title: "Invoice paid"}))
	require.Eventually(t, func() bool { return len(c.Inbox.List()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "Invoice paid", c.Inbox.List()[0].Title)
}

func TestCoreUnreachableRelayIsOptional(t *testing.T) {
	cfg := testConfig(t)
	cfg.Push.RedisURL = "redis://127.0.0.1:1"

	c := newCore(t, core.Options{Config: cfg, Store: testutil.NewSeededStore(t)})
	assert.Nil(t, c.Relay)
}
