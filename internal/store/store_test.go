package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory(context.Background(), t.Name())
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type profile struct {
	Meta
	Name    string   `json:"name"`
	XP      int      `json:"xp"`
	Active  bool     `json:"active"`
	Topics  []string `json:"topics,omitempty"`
	Comment string   `json:"comment,omitempty"`
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.conn.(*sqlConn).db

	tests := []struct {
		pragma string
		want   string
	}{
		// WAL mode falls back to "memory" for in-memory databases,
		// so we skip journal_mode here.
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		if err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got); err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestCreateGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	doc, err := s.Create(ctx, "users", "u1", profile{Name: "ada", XP: 10})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if doc.ID != "u1" || doc.Version != 1 {
		t.Errorf("created doc = %+v", doc.Meta)
	}

	var got profile
	if err := Fetch(ctx, s, "users", "u1", &got); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.Name != "ada" || got.XP != 10 {
		t.Errorf("got %+v", got)
	}
	if got.ID != "u1" || got.CreatedAt.IsZero() {
		t.Errorf("meta not populated: %+v", got.Meta)
	}
}

func TestCreateGeneratesID(t *testing.T) {
	s := openTestStore(t)
	doc, err := s.Create(context.Background(), "feedback", "", map[string]any{"text": "hi"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(doc.ID) != 36 {
		t.Errorf("ID = %q, want a UUID", doc.ID)
	}
}

func TestCreateConflict(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, "users", "u1", profile{Name: "a"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := s.Create(ctx, "users", "u1", profile{Name: "b"})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("second create err = %v, want ErrAlreadyExists", err)
	}

	// Same id in another collection is independent.
	if _, err := s.Create(ctx, "responses", "u1", profile{Name: "c"}); err != nil {
		t.Fatalf("create in other collection: %v", err)
	}

	var got profile
	if err := Fetch(ctx, s, "users", "u1", &got); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.Name != "a" {
		t.Errorf("Name = %q, conflicting create overwrote the document", got.Name)
	}
}

func TestGetNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), "users", "missing")
	if !IsNotFound(err) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateMerges(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, "users", "u1", profile{Name: "ada", XP: 10, Topics: []string{"logic"}}); err != nil {
		t.Fatalf("create: %v", err)
	}
	doc, err := s.Update(ctx, "users", "u1", map[string]any{"xp": 25, "active": true})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if doc.Version != 2 {
		t.Errorf("Version = %d, want 2", doc.Version)
	}

	var got profile
	if err := doc.Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Name != "ada" || got.XP != 25 || !got.Active || len(got.Topics) != 1 {
		t.Errorf("merged doc = %+v", got)
	}
}

func TestUpdateIgnoresSystemFields(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.Create(ctx, "users", "u1", profile{Name: "ada"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	doc, err := s.Update(ctx, "users", "u1", profile{Meta: Meta{ID: "other"}, Name: "bob"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if strings.Contains(string(doc.Data), "$id") {
		t.Errorf("system attribute persisted in body: %s", doc.Data)
	}
	if doc.ID != "u1" {
		t.Errorf("ID = %q, want u1", doc.ID)
	}
}

func TestUpdateIfVersion(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.Create(ctx, "users", "u1", profile{XP: 1}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := s.Update(ctx, "users", "u1", map[string]any{"xp": 2}, IfVersion(1)); err != nil {
		t.Fatalf("update at v1: %v", err)
	}
	_, err := s.Update(ctx, "users", "u1", map[string]any{"xp": 3}, IfVersion(1))
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("stale update err = %v, want ErrVersionConflict", err)
	}
	_, err = s.Update(ctx, "users", "nobody", map[string]any{"xp": 3}, IfVersion(1))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing update err = %v, want ErrNotFound", err)
	}
}

func TestConcurrentVersionedUpdates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.Create(ctx, "users", "u1", profile{XP: 0}); err != nil {
		t.Fatalf("create: %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, "users", "u1", map[string]any{"xp": 5}, IfVersion(1))
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Errorf("%d updates won at version 1, want exactly 1", wins)
	}
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.Create(ctx, "topics", "t1", map[string]any{"name": "logic"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Delete(ctx, "topics", "t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "topics", "t1"); !IsNotFound(err) {
		t.Fatalf("second delete err = %v, want ErrNotFound", err)
	}
}

func seedProfiles(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	rows := []profile{
		{Name: "ada", XP: 50, Active: true},
		{Name: "bob", XP: 120, Active: false},
		{Name: "cy", XP: 90, Active: true},
		{Name: "di", XP: 120, Active: true},
	}
	for _, p := range rows {
		if _, err := s.Create(ctx, "users", p.Name, p); err != nil {
			t.Fatalf("seed %s: %v", p.Name, err)
		}
	}
}

func names(t *testing.T, docs []*Document) []string {
	t.Helper()
	var out []string
	for _, d := range docs {
		var p profile
		if err := d.Decode(&p); err != nil {
			t.Fatalf("decode: %v", err)
		}
		out = append(out, p.Name)
	}
	return out
}

func TestListFiltersAndOrder(t *testing.T) {
	s := openTestStore(t)
	seedProfiles(t, s)
	ctx := context.Background()

	tests := []struct {
		name string
		q    Query
		want string
	}{
		{"order desc with id tiebreak", Query{OrderBy: "xp", Desc: true}, "bob,di,cy,ada"},
		{"limit", Query{OrderBy: "xp", Desc: true, Limit: 2}, "bob,di"},
		{"offset", Query{OrderBy: "xp", Desc: true, Limit: 2, Offset: 2}, "cy,ada"},
		{"offset without limit", Query{OrderBy: "xp", Offset: 3}, "di"},
		{"bool filter", Query{Filters: []Filter{Eq("active", true)}, OrderBy: "xp"}, "ada,cy,di"},
		{"greater than", Query{Filters: []Filter{Gt("xp", 90)}}, "bob,di"},
		{"in", Query{Filters: []Filter{In("name", []string{"ada", "cy", "zed"})}}, "ada,cy"},
		{"empty in", Query{Filters: []Filter{In("name", []string{})}}, ""},
		{"not equal", Query{Filters: []Filter{Ne("name", "ada")}}, "bob,cy,di"},
		{"by system id", Query{Filters: []Filter{In(FieldID, []string{"bob", "di"})}}, "bob,di"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := s.List(ctx, "users", tt.q)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if got := strings.Join(names(t, docs), ","); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestListRejectsBadField(t *testing.T) {
	s := openTestStore(t)
	_, err := s.List(context.Background(), "users", Query{OrderBy: "xp'); DROP TABLE documents; --"})
	if !errors.Is(err, ErrInvalidField) {
		t.Fatalf("err = %v, want ErrInvalidField", err)
	}
}

func TestCount(t *testing.T) {
	s := openTestStore(t)
	seedProfiles(t, s)
	ctx := context.Background()

	n, err := s.Count(ctx, "users")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 4 {
		t.Errorf("count = %d, want 4", n)
	}

	n, err = s.Count(ctx, "users", Gt("xp", 90))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("count(xp > 90) = %d, want 2", n)
	}
}

func TestClaim(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := IdempotencyKey("u1", "c1")
	if key != "u1_c1" {
		t.Fatalf("key = %q", key)
	}

	_, created, err := Claim(ctx, s, "responses", key, map[string]any{"text": "first"})
	if err != nil || !created {
		t.Fatalf("first claim created=%v err=%v", created, err)
	}
	doc, created, err := Claim(ctx, s, "responses", key, map[string]any{"text": "second"})
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if created {
		t.Fatal("second claim reported created")
	}
	if !strings.Contains(string(doc.Data), "first") {
		t.Errorf("existing doc = %s, want the first write", doc.Data)
	}
}

func TestEncodeRejectsNonObject(t *testing.T) {
	if _, err := Encode([]int{1, 2}); err == nil {
		t.Fatal("expected error for array body")
	}
}

func TestDocumentFields(t *testing.T) {
	s := openTestStore(t)
	doc, err := s.Create(context.Background(), "topics", "t1", map[string]any{"name": "logic"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f, err := doc.Fields()
	if err != nil {
		t.Fatalf("fields: %v", err)
	}
	if f["$id"] != "t1" || f["name"] != "logic" {
		t.Errorf("fields = %v", f)
	}
	if _, ok := f["$createdAt"].(time.Time); !ok {
		t.Errorf("$createdAt = %T, want time.Time", f["$createdAt"])
	}
}

func TestLLMEventRepo(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	events := []LLMRequestEventData{
		{Provider: "gemini", Model: "gemini-2.5-flash", Purpose: "hint", InputTokens: 100, OutputTokens: 20, LatencyMs: 300, Success: true},
		{Provider: "gemini", Model: "gemini-2.5-flash", Purpose: "hint", InputTokens: 50, OutputTokens: 10, LatencyMs: 100, Success: true},
		{Provider: "gemini", Model: "gemini-2.5-pro", Purpose: "challenge-gen", InputTokens: 10, OutputTokens: 5, LatencyMs: 50, Success: false, ErrorMessage: "boom"},
	}
	for _, e := range events {
		if err := repo.AppendLLMRequest(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	all, err := repo.QueryLLMEvents(ctx, QueryOpts{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}

	hints, err := repo.QueryLLMEvents(ctx, QueryOpts{Purpose: "hint"})
	if err != nil {
		t.Fatalf("query purpose: %v", err)
	}
	if len(hints) != 2 {
		t.Errorf("hint events = %d, want 2", len(hints))
	}

	got, err := repo.GetLLMEvent(ctx, all[0].ID)
	if err != nil || got == nil {
		t.Fatalf("get: %v %v", got, err)
	}
	missing, err := repo.GetLLMEvent(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("get missing = %v, %v; want nil, nil", missing, err)
	}

	byPurpose, err := repo.LLMUsageByPurpose(ctx)
	if err != nil {
		t.Fatalf("usage by purpose: %v", err)
	}
	if len(byPurpose) != 2 || byPurpose[1].Purpose != "hint" || byPurpose[1].Calls != 2 || byPurpose[1].AvgLatencyMs != 200 {
		t.Errorf("usage by purpose = %+v", byPurpose)
	}

	byModel, err := repo.LLMUsageByModel(ctx)
	if err != nil {
		t.Fatalf("usage by model: %v", err)
	}
	if len(byModel) != 2 || byModel[0].InputTokens != 150 {
		t.Errorf("usage by model = %+v", byModel)
	}
}
