package workspace

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"insightsnap/internal/config"
	"insightsnap/internal/models"
	"insightsnap/internal/redis"
	"insightsnap/internal/table"
)

func mustTable(t *testing.T, csv string) *table.Table {
	t.Helper()
	tbl, err := table.ParseCSV(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return tbl
}

func TestRegistryKeepsLatestPerSession(t *testing.T) {
	r := New(nil, 0, nil)
	ctx := context.Background()

	if _, _, ok := r.Table(ctx, "s1"); ok {
		t.Fatalf("unexpected table before upload")
	}
	r.SetTable(ctx, "s1", "first.csv", mustTable(t, "a,b\n1,2\n"))
	r.SetTable(ctx, "s1", "second.csv", mustTable(t, "x,y,z\n1,2,3\n"))
	r.SetText(ctx, "s2", models.RecognizedText{Text: "hello", Language: "eng"})

	tbl, name, ok := r.Table(ctx, "s1")
	if !ok || name != "second.csv" || tbl.NumCols() != 3 {
		t.Fatalf("table = %v %q %v", tbl, name, ok)
	}
	if _, ok := r.Text(ctx, "s1"); ok {
		t.Fatalf("text leaked across sessions")
	}
	if text, ok := r.Text(ctx, "s2"); !ok || text.Text != "hello" {
		t.Fatalf("text = %+v %v", text, ok)
	}

	r.Drop(ctx, "s1")
	if _, _, ok := r.Table(ctx, "s1"); ok {
		t.Fatalf("table survived drop")
	}
	if r.Len() != 1 {
		t.Fatalf("len = %d", r.Len())
	}
	r.Listen(ctx)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := New(nil, 0, nil)
	ctx := context.Background()
	tbl := mustTable(t, "a,b\n1,2\n")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			session := "s" + strconv.Itoa(i%4)
			r.SetTable(ctx, session, "t.csv", tbl)
			r.SetText(ctx, session, models.RecognizedText{Text: strconv.Itoa(i)})
			r.Table(ctx, session)
			r.Text(ctx, session)
			if i%5 == 0 {
				r.Drop(ctx, session)
			}
		}(i)
	}
	wg.Wait()
}

func newRedisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	if err != nil {
		t.Fatalf("miniredis port: %v", err)
	}
	client, err := redis.NewRedisClient(&config.Config{Redis: config.RedisConfig{Host: mr.Host(), Port: port}})
	if err != nil {
		t.Fatalf("redis connect: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestRegistryMirrorsAcrossInstances(t *testing.T) {
	_, client := newRedisClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session := "ws-test"
	a := New(client, time.Minute, nil)
	b := New(client, time.Minute, nil)
	b.Listen(ctx)

	a.SetTable(ctx, session, "data.csv", mustTable(t, "a,b\n1,2\n3,4\n"))
	a.SetText(ctx, session, models.RecognizedText{Text: "mirrored", Language: "eng"})

	tbl, name, ok := b.Table(ctx, session)
	if !ok || name != "data.csv" || tbl.NumRows() != 2 || tbl.Columns[1].Kind != table.KindInt {
		t.Fatalf("mirrored table = %v %q %v", tbl, name, ok)
	}
	if text, ok := b.Text(ctx, session); !ok || text.Text != "mirrored" {
		t.Fatalf("mirrored text = %+v %v", text, ok)
	}

	a.Drop(ctx, session)
	if !waitFor(t, func() bool { return b.Len() == 0 }) {
		t.Fatalf("invalidation not received")
	}
	if _, _, ok := b.Table(ctx, session); ok {
		t.Fatalf("table survived drop in redis")
	}
}

func TestRegistryWriteReplacesCopyOnOtherInstances(t *testing.T) {
	_, client := newRedisClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := New(client, time.Minute, nil)
	b := New(client, time.Minute, nil)
	a.Listen(ctx)
	b.Listen(ctx)

	a.SetTable(ctx, "s1", "one.csv", mustTable(t, "a,b\n1,2\n"))
	a.SetText(ctx, "s1", models.RecognizedText{Text: "first"})
	if _, name, ok := b.Table(ctx, "s1"); !ok || name != "one.csv" {
		t.Fatalf("b table = %q %v", name, ok)
	}
	if text, _ := b.Text(ctx, "s1"); text.Text != "first" {
		t.Fatalf("b text = %q", text.Text)
	}

	a.SetTable(ctx, "s1", "two.csv", mustTable(t, "x,y,z\n1,2,3\n"))
	if !waitFor(t, func() bool {
		_, name, _ := b.Table(ctx, "s1")
		return name == "two.csv"
	}) {
		_, name, _ := b.Table(ctx, "s1")
		t.Fatalf("b still serves %q after a replaced the table", name)
	}

	// an instance's own writes never evict its local copy
	time.Sleep(50 * time.Millisecond)
	a.mu.RLock()
	e := a.entries["s1"]
	a.mu.RUnlock()
	if e == nil || e.table == nil || e.tableName != "two.csv" {
		t.Fatalf("writer lost its local table: %+v", e)
	}

	b.SetText(ctx, "s1", models.RecognizedText{Text: "second"})
	if !waitFor(t, func() bool {
		text, _ := a.Text(ctx, "s1")
		return text.Text == "second"
	}) {
		t.Fatalf("a did not pick up text written on b")
	}
}

func TestRegistryRefreshKeepsMirrorAlive(t *testing.T) {
	mr, client := newRedisClient(t)
	ctx := context.Background()

	a := New(client, time.Hour, nil)
	a.SetTable(ctx, "s1", "data.csv", mustTable(t, "a,b\n1,2\n"))
	a.SetText(ctx, "s1", models.RecognizedText{Text: "kept"})

	for i := 0; i < 3; i++ {
		mr.FastForward(40 * time.Minute)
		a.Refresh(ctx, "s1")
	}
	fresh := New(client, time.Hour, nil)
	if _, _, ok := fresh.Table(ctx, "s1"); !ok {
		t.Fatalf("table expired while the session was active")
	}
	if text, ok := fresh.Text(ctx, "s1"); !ok || text.Text != "kept" {
		t.Fatalf("text = %+v %v", text, ok)
	}

	mr.FastForward(2 * time.Hour)
	idle := New(client, time.Hour, nil)
	if _, _, ok := idle.Table(ctx, "s1"); ok {
		t.Fatalf("table outlived an idle session")
	}
}
