package coordinator

import (
	gocontext "context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// etcd tests run only when ENRICH_ETCD_ENDPOINTS is set (comma-separated).
func newTestEtcd(t *testing.T) Coordinator {
	endpoints := os.Getenv("ENRICH_ETCD_ENDPOINTS")
	if endpoints == "" {
		t.Skip("ENRICH_ETCD_ENDPOINTS is not set")
	}
	crd, err := NewEtcd(strings.Split(endpoints, ","), "enrich-test/")
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = crd.Delete(gocontext.Background(), "")
		_ = crd.Close()
	})
	return crd
}

func TestEtcd_PutGetWatch(t *testing.T) {
	crd := newTestEtcd(t)
	ctx, cancel := gocontext.WithTimeout(gocontext.Background(), 10*time.Second)
	defer cancel()

	events := crd.Watch(ctx, "w/")
	require.NoError(t, crd.Put(ctx, "w/key", map[string]int{"a": 1}))

	ev := <-events
	require.Equal(t, PutEvent, ev.Type)
	require.Equal(t, "w/key", ev.Item.Key)

	var v map[string]int
	require.NoError(t, crd.Get(ctx, "w/key", &v))
	require.Equal(t, 1, v["a"])

	items, err := crd.Scan(ctx, "w/")
	require.NoError(t, err)
	require.Len(t, items, 1)

	deleted, err := crd.Delete(ctx, "w/")
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)
}
