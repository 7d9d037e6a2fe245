package topology

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestFileBackend_PersistsUpdates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "vpcctl.json")
	store := NewStore(NewFileBackend(path, time.Second))
	ctx := context.Background()

	err := store.Update(ctx, func(st *State) error {
		_, err := st.CreateVPC("shop", "10.1.0.0/16", "eth0", testNow)
		return err
	})
	require.NoError(t, err)

	st, err := store.Snapshot(ctx)
	require.NoError(t, err)
	v, err := st.VPC("shop")
	require.NoError(t, err)
	assert.Equal(t, "10.1.0.1", v.BridgeIP)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"vpcs"`)
	assert.Contains(t, string(data), `"bridge_ip": "10.1.0.1"`)
}

func TestFileBackend_FailedUpdateWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vpcctl.json")
	store := NewStore(NewFileBackend(path, time.Second))
	ctx := context.Background()

	require.NoError(t, store.Update(ctx, func(st *State) error {
		_, err := st.CreateVPC("shop", "10.1.0.0/16", "eth0", testNow)
		return err
	}))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	boom := errors.New("provisioning failed")
	err = store.Update(ctx, func(st *State) error {
		if _, err := st.AddSubnet("shop", "web", "10.1.1.0/24", SubnetPublic, testNow); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestFileBackend_MissingFileIsEmpty(t *testing.T) {
	store := NewStore(NewFileBackend(filepath.Join(t.TempDir(), "none.json"), time.Second))
	st, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, st.VPCs)
	assert.Empty(t, st.Peerings)
}

func TestFileBackend_LockTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vpcctl.json")
	f, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0o600)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, unix.Flock(int(f.Fd()), unix.LOCK_EX))
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	store := NewStore(NewFileBackend(path, 100*time.Millisecond))
	called := false
	err = store.Update(context.Background(), func(st *State) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, ErrLockTimeout)
	assert.False(t, called)
}

func TestFileBackend_SerializesWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vpcctl.json")
	ctx := context.Background()

	const writers = 8
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			store := NewStore(NewFileBackend(path, 5*time.Second))
			errs <- store.Update(ctx, func(st *State) error {
				_, err := st.CreateVPC(string(rune('a'+i)), "10.0.0.0/16", "eth0", testNow)
				return err
			})
		}(i)
	}
	for i := 0; i < writers; i++ {
		require.NoError(t, <-errs)
	}

	st, err := NewStore(NewFileBackend(path, time.Second)).Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, st.VPCs, writers)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open("etcd", filepath.Join(t.TempDir(), "x"), time.Second)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
