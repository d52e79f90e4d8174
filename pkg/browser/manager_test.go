package browser_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/odvcencio/autotap/pkg/browser"
	"github.com/odvcencio/autotap/pkg/browser/browsermock"
)

func TestManager_CreateSessionAssignsID(t *testing.T) {
	ctrl := gomock.NewController(t)
	rt := browsermock.NewMockRuntime(ctrl)
	sess := browsermock.NewMockBrowserSession(ctrl)

	var gotID string
	rt.EXPECT().NewSession(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, cfg browser.SessionConfig) (browser.BrowserSession, error) {
			gotID = cfg.SessionID
			return sess, nil
		})

	m := browser.NewManager(rt)
	_, err := m.CreateSession(context.Background(), browser.DefaultSessionConfig())
	require.NoError(t, err)
	assert.NotEmpty(t, gotID)

	assert.Equal(t, 1, m.Len())
	require.ErrorIs(t, m.CloseSession("unknown"), browser.ErrSessionClosed)
	assert.Equal(t, 1, m.Len())
}

func TestManager_DuplicateSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	rt := browsermock.NewMockRuntime(ctrl)
	rt.EXPECT().NewSession(gomock.Any(), gomock.Any()).Return(browsermock.NewMockBrowserSession(ctrl), nil)

	m := browser.NewManager(rt)
	cfg := browser.DefaultSessionConfig()
	cfg.SessionID = "dup"
	_, err := m.CreateSession(context.Background(), cfg)
	require.NoError(t, err)

	_, err = m.CreateSession(context.Background(), cfg)
	assert.Error(t, err)
}

func TestManager_RuntimeError(t *testing.T) {
	ctrl := gomock.NewController(t)
	rt := browsermock.NewMockRuntime(ctrl)
	boom := errors.New("launch failed")
	rt.EXPECT().NewSession(gomock.Any(), gomock.Any()).Return(nil, boom)

	m := browser.NewManager(rt)
	_, err := m.CreateSession(context.Background(), browser.DefaultSessionConfig())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, m.Len())
}

func TestManager_SessionCloseUntracks(t *testing.T) {
	ctrl := gomock.NewController(t)
	rt := browsermock.NewMockRuntime(ctrl)
	sess := browsermock.NewMockBrowserSession(ctrl)
	rt.EXPECT().NewSession(gomock.Any(), gomock.Any()).Return(sess, nil)
	sess.EXPECT().Close().Return(nil).Times(1)

	m := browser.NewManager(rt)
	cfg := browser.DefaultSessionConfig()
	cfg.SessionID = "s1"
	tracked, err := m.CreateSession(context.Background(), cfg)
	require.NoError(t, err)

	require.NoError(t, tracked.Close())
	assert.Equal(t, 0, m.Len())
	assert.ErrorIs(t, tracked.Close(), browser.ErrSessionClosed)
}

func TestManager_CloseReleasesEverything(t *testing.T) {
	ctrl := gomock.NewController(t)
	rt := browsermock.NewMockRuntime(ctrl)
	a := browsermock.NewMockBrowserSession(ctrl)
	b := browsermock.NewMockBrowserSession(ctrl)
	gomock.InOrder(
		rt.EXPECT().NewSession(gomock.Any(), gomock.Any()).Return(a, nil),
		rt.EXPECT().NewSession(gomock.Any(), gomock.Any()).Return(b, nil),
	)
	a.EXPECT().Close().Return(nil)
	b.EXPECT().Close().Return(nil)
	rt.EXPECT().Close().Return(nil)

	m := browser.NewManager(rt)
	_, err := m.CreateSession(context.Background(), browser.SessionConfig{})
	require.NoError(t, err)
	_, err = m.CreateSession(context.Background(), browser.SessionConfig{})
	require.NoError(t, err)

	require.NoError(t, m.Close())
	assert.Equal(t, 0, m.Len())
}

func TestManager_NilRuntime(t *testing.T) {
	m := browser.NewManager(nil)
	_, err := m.CreateSession(context.Background(), browser.SessionConfig{})
	assert.ErrorIs(t, err, browser.ErrUnavailable)

	var nilManager *browser.Manager
	assert.NoError(t, nilManager.Close())
	assert.Equal(t, 0, nilManager.Len())
}

func TestManager_CreateAfterClose(t *testing.T) {
	ctrl := gomock.NewController(t)
	rt := browsermock.NewMockRuntime(ctrl)
	rt.EXPECT().Close().Return(nil).Times(1)

	m := browser.NewManager(rt)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	_, err := m.CreateSession(context.Background(), browser.SessionConfig{})
	assert.ErrorIs(t, err, browser.ErrUnavailable)
}

func TestManager_CloseJoinsErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	rt := browsermock.NewMockRuntime(ctrl)
	sess := browsermock.NewMockBrowserSession(ctrl)
	tabErr := errors.New("tab crashed")
	procErr := errors.New("chrome still running")
	rt.EXPECT().NewSession(gomock.Any(), gomock.Any()).Return(sess, nil)
	sess.EXPECT().Close().Return(tabErr)
	rt.EXPECT().Close().Return(procErr)

	m := browser.NewManager(rt)
	_, err := m.CreateSession(context.Background(), browser.SessionConfig{})
	require.NoError(t, err)

	err = m.Close()
	assert.ErrorIs(t, err, tabErr)
	assert.ErrorIs(t, err, procErr)
}

func TestManager_ReservedIDRejectsConcurrentCreate(t *testing.T) {
	ctrl := gomock.NewController(t)
	rt := browsermock.NewMockRuntime(ctrl)
	sess := browsermock.NewMockBrowserSession(ctrl)
	m := browser.NewManager(rt)

	cfg := browser.SessionConfig{SessionID: "same"}
	var nested error
	rt.EXPECT().NewSession(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ browser.SessionConfig) (browser.BrowserSession, error) {
			// The id is reserved while the first create is still in flight.
			_, nested = m.CreateSession(ctx, cfg)
			assert.Equal(t, 0, m.Len())
			return sess, nil
		})

	_, err := m.CreateSession(context.Background(), cfg)
	require.NoError(t, err)
	assert.Error(t, nested)
	assert.Equal(t, 1, m.Len())
}
